// Package huffman builds length-limited canonical Huffman codes: a
// heap-based construction for the common case, falling back to
// package-merge whenever the unconstrained tree would exceed the
// caller's bit-length limit. See RFC 1951 §3.2.2 for the canonical
// code convention this package follows.
package huffman

import (
	"fmt"
	"io"
	"math/bits"
	"slices"

	"github.com/go-dflate/dflate/internal/huffheap"
)

// BitCoder is a length-limited canonical Huffman code over a fixed
// alphabet of `symbols` entries. Lifecycle: zero value with Used
// populated, then ComputeBits, then optionally ComputeCodes.
type BitCoder struct {
	Used      []uint32 // frequency of each symbol; 0 means unused
	Bits      []uint8  // code length of each symbol, 0 if unused
	Code      []uint16 // canonical, bit-reversed code, valid after ComputeCodes
	LimitBits int      // maximum permitted code length
	MaxBits   int      // longest code length actually used
}

// NewBitCoder allocates a coder for the given alphabet size and
// length limit (15 for the literal/length and distance alphabets, 7
// for the code-length alphabet, per RFC 1951).
func NewBitCoder(symbols, limitBits int) *BitCoder {
	return &BitCoder{
		Used:      make([]uint32, symbols),
		Bits:      make([]uint8, symbols),
		LimitBits: limitBits,
	}
}

// Symbols returns the size of the coder's alphabet, as allocated
// (TrimmedLen gives the size without trailing unused symbols).
func (c *BitCoder) Symbols() int { return len(c.Used) }

// ComputeBits runs the Huffman construction: a heap-based tree build,
// falling back to package-merge if the resulting max depth exceeds
// LimitBits. It populates Bits and MaxBits.
func (c *BitCoder) ComputeBits() {
	var used []int
	for i, f := range c.Used {
		if f > 0 {
			used = append(used, i)
		}
	}

	switch len(used) {
	case 0:
		c.MaxBits = 0
		return
	case 1:
		c.Bits[used[0]] = 1
		c.MaxBits = 1
		return
	}

	bitsOut := huffmanTree(c.Used, used)
	maxBits := 0
	for _, b := range bitsOut {
		if int(b) > maxBits {
			maxBits = int(b)
		}
	}

	if maxBits > c.LimitBits {
		bitsOut = packageMerge(c.Used, used, c.LimitBits)
		maxBits = c.LimitBits
	}

	for _, s := range used {
		c.Bits[s] = bitsOut[s]
	}
	c.MaxBits = maxBits
}

// huffmanTree builds the unconstrained Huffman tree over the given
// used symbol indices and returns a full-alphabet-sized bit-length
// slice (zero for unused symbols).
func huffmanTree(freq []uint32, used []int) []uint8 {
	arena := make([]huffheap.Node, 0, 2*len(used))
	h := make(huffheap.Heap, 0, len(used))

	for _, s := range used {
		arena = append(arena, huffheap.Node{
			Freq: freq[s], Depth: 0, ID: uint32(s),
			Sym: int32(s), Left: -1, Right: -1,
		})
		idx := int32(len(arena) - 1)
		h = append(h, &arena[idx])
	}

	huffheap.Init(&h)

	// Track arena index for every *Node we push back, since
	// huffheap.Node doesn't know its own arena slot.
	indexOf := make(map[*huffheap.Node]int32, 2*len(used))
	for i := range arena {
		indexOf[&arena[i]] = int32(i)
	}

	for h.Len() > 1 {
		n1 := huffheap.PopNode(&h)
		n2 := huffheap.PopNode(&h)

		depth := n1.Depth
		if n2.Depth > depth {
			depth = n2.Depth
		}

		arena = append(arena, huffheap.Node{
			Freq:  n1.Freq + n2.Freq,
			Depth: depth + 1,
			ID:    uint32(len(arena)),
			Sym:   -1,
			Left:  indexOf[n1],
			Right: indexOf[n2],
		})
		idx := int32(len(arena) - 1)
		indexOf[&arena[idx]] = idx
		huffheap.PushNode(&h, &arena[idx])
	}

	root := indexOf[h[0]]

	bitsOut := make([]uint8, len(freq))

	type walk struct {
		node  int32
		depth uint8
	}
	stack := []walk{{root, 0}}
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &arena[w.node]
		if n.Sym >= 0 {
			bitsOut[n.Sym] = w.depth
			continue
		}
		stack = append(stack, walk{n.Left, w.depth + 1}, walk{n.Right, w.depth + 1})
	}

	return bitsOut
}

// packageMerge computes optimal code lengths bounded by limit using
// the package-merge algorithm. It returns a full-alphabet
// bit-length slice, zero for unused symbols.
func packageMerge(freq []uint32, used []int, limit int) []uint8 {
	type leaf struct {
		sym  int
		freq uint64
	}
	leaves := make([]leaf, len(used))
	for i, s := range used {
		leaves[i] = leaf{sym: s, freq: uint64(freq[s])}
	}
	slices.SortFunc(leaves, func(a, b leaf) int {
		if a.freq != b.freq {
			if a.freq < b.freq {
				return -1
			}
			return 1
		}
		return a.sym - b.sym
	})

	// A package is a set of original leaf symbols (by index into
	// `leaves`) merged together, plus its total frequency.
	type pkg struct {
		freq    uint64
		members []int // indices into leaves
	}

	// M starts empty; each of `limit` iterations merges the sorted
	// leaves with the current M two at a time from the front.
	var m []pkg
	for iter := 0; iter < limit; iter++ {
		var merged []pkg
		li, mi := 0, 0
		// Build the combined, frequency-sorted sequence of
		// "atoms" (a leaf or a prior package), then pair them off.
		type atom struct {
			freq    uint64
			isLeaf  bool
			leafIdx int
			pk      pkg
		}
		var atoms []atom
		for li < len(leaves) || mi < len(m) {
			if mi >= len(m) || (li < len(leaves) && leaves[li].freq <= m[mi].freq) {
				atoms = append(atoms, atom{freq: leaves[li].freq, isLeaf: true, leafIdx: li})
				li++
			} else {
				atoms = append(atoms, atom{freq: m[mi].freq, pk: m[mi]})
				mi++
			}
		}
		for i := 0; i+1 < len(atoms); i += 2 {
			a, b := atoms[i], atoms[i+1]
			var members []int
			if a.isLeaf {
				members = append(members, a.leafIdx)
			} else {
				members = append(members, a.pk.members...)
			}
			if b.isLeaf {
				members = append(members, b.leafIdx)
			} else {
				members = append(members, b.pk.members...)
			}
			merged = append(merged, pkg{freq: a.freq + b.freq, members: members})
		}
		m = merged
	}

	bitsOut := make([]uint8, len(freq))
	n := len(used)
	take := 2*n - 2
	if take > len(m) {
		take = len(m)
	}
	for i := 0; i < take; i++ {
		for _, idx := range m[i].members {
			bitsOut[leaves[idx].sym]++
		}
	}
	return bitsOut
}

// ComputeCodes assigns canonical, bit-reversed codes given the
// already-computed Bits. It does not trim the alphabet: Used/Bits/Code
// stay full-length, and callers that need the transmitted count after
// dropping trailing unused symbols use TrimmedLen.
func (c *BitCoder) ComputeCodes() {
	c.Code = make([]uint16, len(c.Bits))

	var blCount [16]int
	maxBits := 0
	for _, b := range c.Bits {
		blCount[b]++
		if int(b) > maxBits {
			maxBits = int(b)
		}
	}
	blCount[0] = 0

	var nextCode [17]int
	code := 0
	for bits := 1; bits <= maxBits; bits++ {
		code = (code + blCount[bits-1]) << 1
		nextCode[bits] = code
	}

	for sym, l := range c.Bits {
		if l == 0 {
			continue
		}
		cd := nextCode[l]
		nextCode[l]++
		rev := bits.Reverse16(uint16(cd)) >> (16 - uint(l))
		c.Code[sym] = rev
	}
}

// TrimmedLen returns the alphabet size after dropping trailing unused
// symbols, with a caller-supplied floor (e.g. 4 for the code-length
// alphabet's HCLEN encoding).
func (c *BitCoder) TrimmedLen(min int) int {
	n := len(c.Bits)
	for n > min && c.Bits[n-1] == 0 {
		n--
	}
	return n
}

// Dump writes a human-readable table of the used symbols, their
// frequencies, code lengths and (if computed) codes to w, for
// debugging block construction.
func (c *BitCoder) Dump(w io.Writer) {
	for sym, l := range c.Bits {
		if l == 0 {
			continue
		}
		used := uint32(0)
		if c.Used != nil {
			used = c.Used[sym]
		}
		fmt.Fprintf(w, "%3d used=%d bits=%d ", sym, used, l)
		if c.Code != nil {
			code := c.Code[sym]
			for j := 0; j < int(l); j++ {
				fmt.Fprintf(w, "%d", code&1)
				code >>= 1
			}
		}
		fmt.Fprintf(w, "\n")
	}
}

// Validate checks the length limit and the Kraft inequality (the sum
// of 2^-len over used symbols must not exceed 1); tests use it, and
// the decoder uses it to reject malformed code-length tables.
func (c *BitCoder) Validate() error {
	var sum float64
	for sym, l := range c.Bits {
		if l == 0 {
			continue
		}
		if int(l) > c.LimitBits {
			return fmt.Errorf("huffman: symbol %d has length %d exceeding limit %d", sym, l, c.LimitBits)
		}
		sum += 1.0 / float64(uint64(1)<<l)
	}
	if sum > 1.0+1e-9 {
		return fmt.Errorf("huffman: Kraft sum %.12f exceeds 1", sum)
	}
	return nil
}
