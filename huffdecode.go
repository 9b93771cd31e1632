package dflate

import (
	"errors"

	"github.com/go-dflate/dflate/bitio"
	"github.com/go-dflate/dflate/huffman"
)

// errInvalidHuffman is returned whenever a decoded code-length table
// fails the Kraft check, or a decode lookup lands on an unused slot -
// both signal a corrupt or non-conformant stream.
var errInvalidHuffman = errors.New("dflate: invalid huffman code lengths")

const (
	huffmanChunkBits  = 9
	huffmanNumChunks  = 1 << huffmanChunkBits
	huffmanCountMask  = 0xf
	huffmanValueShift = 4
)

// huffDecoder is a two-level canonical-Huffman decode table: any code
// no longer than huffmanChunkBits resolves directly out of chunks;
// longer codes overflow into a link table selected by their low
// huffmanChunkBits bits. This is the inverse of huffman.BitCoder: it
// consumes the same canonical, bit-reversed (LSB-transmission) codes
// ComputeCodes assigns, so building one reuses ComputeCodes directly
// rather than re-deriving code order by hand.
type huffDecoder struct {
	max      int
	chunks   [huffmanNumChunks]uint32 // entry = sym<<huffmanValueShift | codeLen
	links    [][]uint32
	linkMask uint32
}

// newHuffDecoder builds a decode table from per-symbol code lengths
// (0 for an unused symbol).
func newHuffDecoder(lengths []uint8) (*huffDecoder, error) {
	tmp := &huffman.BitCoder{Bits: lengths, LimitBits: 15}
	if err := tmp.Validate(); err != nil {
		return nil, errInvalidHuffman
	}
	tmp.ComputeCodes()

	h := &huffDecoder{}
	for _, l := range lengths {
		if int(l) > h.max {
			h.max = int(l)
		}
	}
	if h.max == 0 {
		return h, nil
	}

	if h.max <= huffmanChunkBits {
		for sym, l := range lengths {
			if l == 0 {
				continue
			}
			entry := uint32(sym)<<huffmanValueShift | uint32(l)
			code := uint32(tmp.Code[sym])
			for fill := code; fill < huffmanNumChunks; fill += uint32(1) << l {
				h.chunks[fill] = entry
			}
		}
		return h, nil
	}

	// Group symbols whose code is longer than the chunk table by the
	// low huffmanChunkBits bits of their code: that prefix can't
	// collide with any complete shorter code (canonical codes are
	// prefix-free), so each distinct prefix gets exactly one link
	// table, sized to the longest suffix actually in use.
	groups := make(map[uint32][]int)
	for sym, l := range lengths {
		if l == 0 || int(l) <= huffmanChunkBits {
			continue
		}
		lo := uint32(tmp.Code[sym]) & (huffmanNumChunks - 1)
		groups[lo] = append(groups[lo], sym)
	}

	h.linkMask = uint32(1)<<uint(h.max-huffmanChunkBits) - 1
	h.links = make([][]uint32, len(groups))
	i := 0
	for lo, syms := range groups {
		tab := make([]uint32, h.linkMask+1)
		for _, sym := range syms {
			l := int(lengths[sym])
			entry := uint32(sym)<<huffmanValueShift | uint32(l)
			hi := uint32(tmp.Code[sym]) >> huffmanChunkBits
			extra := uint(l - huffmanChunkBits)
			for fill := hi; fill <= h.linkMask; fill += uint32(1) << extra {
				tab[fill] = entry
			}
		}
		h.links[i] = tab
		h.chunks[lo] = uint32(i)<<huffmanValueShift | uint32(huffmanChunkBits+1)
		i++
	}

	for sym, l := range lengths {
		if l == 0 || int(l) > huffmanChunkBits {
			continue
		}
		entry := uint32(sym)<<huffmanValueShift | uint32(l)
		code := uint32(tmp.Code[sym])
		for fill := code; fill < huffmanNumChunks; fill += uint32(1) << l {
			h.chunks[fill] = entry
		}
	}
	return h, nil
}

// decode reads and consumes the next symbol from r.
func (h *huffDecoder) decode(r *bitio.Reader) (int, error) {
	if h.max == 0 {
		return 0, errInvalidHuffman
	}
	peek := uint32(r.Peek(h.max))
	entry := h.chunks[peek&(huffmanNumChunks-1)]
	n := entry & huffmanCountMask
	if n == huffmanChunkBits+1 {
		idx := entry >> huffmanValueShift
		hi := (peek >> huffmanChunkBits) & h.linkMask
		entry = h.links[idx][hi]
		n = entry & huffmanCountMask
	}
	if n == 0 {
		return 0, errInvalidHuffman
	}
	r.Advance(int(n))
	return int(entry >> huffmanValueShift), nil
}
