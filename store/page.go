package store

import (
	"fmt"
	"io"
)

// page is one fixed-size page of the backing file: a node-array-backed
// AVL tree. Leaf pages store full records; parent
// pages store only keys plus a child-page id per node, and carry an
// extra firstChild pointer for keys below the page's smallest key.
type page struct {
	id         uint64
	data       []byte
	pageSize   int
	parentFlag bool
	recSize    int // bytes of the record portion of one node (key, or key+value)
	nodeSize   int // nodeOverhead + recSize (+childPtrSize for parent pages)
	cap        int // max allocHigh this page can hold

	root       uint16
	count      uint16
	freeHead   uint16
	allocHigh  uint16
	firstChild uint64

	dirty bool
}

// newPage allocates a zeroed page of the given id and kind.
func newPage(id uint64, parent bool, codec Codec, pageSize int) *page {
	recSize := codec.KeySize()
	if !parent {
		recSize += codec.ValueSize()
	}
	nodeSize := nodeOverhead + recSize
	if parent {
		nodeSize += childPtrSize
	}
	p := &page{
		id:         id,
		data:       make([]byte, pageSize),
		pageSize:   pageSize,
		parentFlag: parent,
		recSize:    recSize,
		nodeSize:   nodeSize,
	}
	p.cap = p.computeCapacity()
	return p
}

// computeCapacity returns the largest allocHigh this page's geometry
// can support: parent pages reserve childPtrSize bytes at the tail for
// firstChild (relocated there fresh on every pack, see pack()), leaf
// pages use the remainder of the page outright.
func (p *page) computeCapacity() int {
	avail := p.pageSize - headerSize
	if p.parentFlag {
		avail -= childPtrSize
	}
	if avail < 0 || p.nodeSize == 0 {
		return 0
	}
	c := avail / p.nodeSize
	if c > maxNodeID {
		c = maxNodeID
	}
	return c
}

// parsePage decodes a page from raw bytes, whose length may be
// shorter than pageSize (the final page of a file is allowed to be
// truncated, per the backing-storage contract).
func parsePage(id uint64, raw []byte, codec Codec, pageSize int) (*page, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: page %d shorter than header", ErrCorrupt, id)
	}
	buf := make([]byte, pageSize)
	copy(buf, raw)

	parentFlag, root, count, freeHead, allocHigh := unpackHeader(buf)

	recSize := codec.KeySize()
	if !parentFlag {
		recSize += codec.ValueSize()
	}
	nodeSize := nodeOverhead + recSize
	if parentFlag {
		nodeSize += childPtrSize
	}

	p := &page{
		id:         id,
		data:       buf,
		pageSize:   pageSize,
		parentFlag: parentFlag,
		recSize:    recSize,
		nodeSize:   nodeSize,
		root:       root,
		count:      count,
		freeHead:   freeHead,
		allocHigh:  allocHigh,
	}
	p.cap = p.computeCapacity()
	if int(allocHigh) > p.cap || int(root) > int(allocHigh) || int(freeHead) > int(allocHigh) {
		return nil, fmt.Errorf("%w: page %d header out of range", ErrCorrupt, id)
	}
	if parentFlag {
		p.firstChild = unpackChildPtr(buf, headerSize+int(allocHigh)*nodeSize)
	}
	return p, nil
}

// pack renders the page's live fields back into its byte buffer,
// including relocating firstChild to sit right after the last
// allocated node, at offset header + alloc_high*node_size.
func (p *page) pack() []byte {
	packHeader(p.data, p.parentFlag, p.root, p.count, p.freeHead, p.allocHigh)
	if p.parentFlag {
		packChildPtr(p.data, headerSize+int(p.allocHigh)*p.nodeSize, p.firstChild)
	}
	return p.data
}

// bytes returns the page's on-disk representation, trimmed to
// pageSize (callers writing the final page of a file may further trim
// trailing zero bytes; this module always writes full-size pages).
func (p *page) bytes() []byte {
	return p.pack()
}

func (p *page) full() bool {
	return p.freeHead == 0 && int(p.allocHigh) >= p.cap
}

func (p *page) nodeOffset(id uint16) int {
	return headerSize + (int(id)-1)*p.nodeSize
}

func (p *page) recordOffset(id uint16) int {
	return p.nodeOffset(id) + nodeOverhead
}

func (p *page) childOffset(id uint16) int {
	return p.recordOffset(id) + p.recSize
}

// allocNode reserves a node id, preferring the free list over bumping
// allocHigh.
func (p *page) allocNode() uint16 {
	if p.freeHead != 0 {
		id := p.freeHead
		left, _ := unpackNodeLinks(p.data, p.nodeOffset(id))
		p.freeHead = left
		return id
	}
	p.allocHigh++
	return p.allocHigh
}

// freeNode threads id onto the free list via its left slot.
func (p *page) freeNode(id uint16) {
	off := p.nodeOffset(id)
	packNode(p.data, off, balanceBalanced, p.freeHead, 0)
	p.freeHead = id
}

func (p *page) getBalance(id uint16) balance {
	b, _, _ := unpackNode(p.data, p.nodeOffset(id))
	return b
}

func (p *page) getLeft(id uint16) uint16 {
	_, l, _ := unpackNode(p.data, p.nodeOffset(id))
	return l
}

func (p *page) getRight(id uint16) uint16 {
	_, _, r := unpackNode(p.data, p.nodeOffset(id))
	return r
}

func (p *page) setBalance(id uint16, b balance) {
	_, l, r := unpackNode(p.data, p.nodeOffset(id))
	packNode(p.data, p.nodeOffset(id), b, l, r)
}

func (p *page) setLeft(id uint16, left uint16) {
	b, _, r := unpackNode(p.data, p.nodeOffset(id))
	packNode(p.data, p.nodeOffset(id), b, left, r)
}

func (p *page) setRight(id uint16, right uint16) {
	b, l, _ := unpackNode(p.data, p.nodeOffset(id))
	packNode(p.data, p.nodeOffset(id), b, l, right)
}

// dump writes the page header and per-node shape to w, in key order,
// for debugging page corruption.
func (p *page) dump(w io.Writer) {
	fmt.Fprintf(w, "page %d parent=%v root=%d count=%d free=%d alloc=%d",
		p.id, p.parentFlag, p.root, p.count, p.freeHead, p.allocHigh)
	if p.parentFlag {
		fmt.Fprintf(w, " first_child=%d", p.firstChild)
	}
	fmt.Fprintf(w, "\n")
	for _, id := range p.inOrder() {
		b, l, r := unpackNode(p.data, p.nodeOffset(id))
		fmt.Fprintf(w, "  node %4d balance=%d left=%d right=%d", id, b, l, r)
		if p.parentFlag {
			fmt.Fprintf(w, " child=%d", p.getChildPtr(id))
		}
		fmt.Fprintf(w, "\n")
	}
}

func (p *page) getChildPtr(id uint16) uint64 {
	return unpackChildPtr(p.data, p.childOffset(id))
}

func (p *page) setChildPtr(id uint16, child uint64) {
	packChildPtr(p.data, p.childOffset(id), child)
}
