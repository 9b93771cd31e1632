// Package huffheap implements the indexable min-heap of Huffman tree
// nodes used by package huffman to build a code from symbol
// frequencies. Nodes are ordered by (freq, depth, id): frequency
// dominates, depth breaks ties to keep the tree shallow, and id breaks
// remaining ties to make construction deterministic.
package huffheap

import "container/heap"

// Node is either a leaf (Sym is a valid alphabet symbol, Left/Right
// are -1) or an internal node (Sym is -1, Left/Right index into the
// tree arena the caller maintains alongside the heap).
type Node struct {
	Freq  uint32
	Depth uint8
	ID    uint32 // tie-breaker; leaves keep their original symbol id

	Sym         int32 // -1 for internal nodes
	Left, Right int32 // -1 for leaves, else arena index
}

// Heap is a container/heap.Interface over *Node keyed by (Freq, Depth, ID).
type Heap []*Node

func (h Heap) Len() int { return len(h) }

func (h Heap) Less(i, j int) bool {
	if h[i].Freq != h[j].Freq {
		return h[i].Freq < h[j].Freq
	}
	if h[i].Depth != h[j].Depth {
		return h[i].Depth < h[j].Depth
	}
	return h[i].ID < h[j].ID
}

func (h Heap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *Heap) Push(x any) {
	*h = append(*h, x.(*Node))
}

func (h *Heap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Init, Push and Pop wrap container/heap for callers that don't want
// to import it directly.
func Init(h *Heap) { heap.Init(h) }

func PushNode(h *Heap, n *Node) { heap.Push(h, n) }

func PopNode(h *Heap) *Node { return heap.Pop(h).(*Node) }
