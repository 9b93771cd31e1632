package dflate

import (
	"fmt"

	"github.com/go-dflate/dflate/bitio"
	"github.com/go-dflate/dflate/huffman"
	"github.com/go-dflate/dflate/lz77"
	"github.com/go-dflate/dflate/rle"
)

type blockState int

const (
	stateNew blockState = iota
	stateInitialised
	stateBitsComputed
	stateWritten
)

// block is the encoder-side block descriptor: a half-open input range
// and the matches whose positions fall within it, plus the three
// Huffman coders built over that range.
type block struct {
	input []byte
	// matches is the full, input-ordered match stream shared by every
	// block; matchStart/matchEnd index into it.
	matches    []lz77.Match
	inputStart int
	inputEnd   int
	matchStart int
	matchEnd   int

	litCoder  *huffman.BitCoder
	distCoder *huffman.BitCoder
	clCoder   *huffman.BitCoder

	litExtraBits  int
	distExtraBits int

	hlit, hdist, hclen int
	clLengths          []uint8 // permuted, trimmed code-length sequence

	state blockState
	last  bool
}

func newBlock(input []byte, matches []lz77.Match, inputStart, inputEnd, matchStart int) *block {
	return &block{
		input:      input,
		matches:    matches,
		inputStart: inputStart,
		inputEnd:   inputEnd,
		matchStart: matchStart,
	}
}

// init sweeps the block's input range counting literal/length and
// distance symbol uses and locates matchEnd, the count of matches at
// position < inputEnd starting from matchStart.
func (b *block) init() {
	if b.state != stateNew {
		panic("dflate: block.init called out of order")
	}

	b.litCoder = huffman.NewBitCoder(numLitLenSymbols, 15)
	b.distCoder = huffman.NewBitCoder(numDistSymbols, 15)

	pos := b.inputStart
	idx := b.matchStart
	for pos < b.inputEnd {
		if idx < len(b.matches) && b.matches[idx].Position == pos {
			m := b.matches[idx]
			sym, _, extraBits := lengthCode(m.Length)
			b.litCoder.Used[sym]++
			b.litExtraBits += extraBits

			dsym, _, dExtraBits := distanceCode(m.Distance)
			b.distCoder.Used[dsym]++
			b.distExtraBits += dExtraBits

			pos += m.Length
			idx++
			continue
		}
		b.litCoder.Used[b.input[pos]]++
		pos++
	}
	b.matchEnd = idx
	b.litCoder.Used[endOfBlockSymbol]++

	b.state = stateInitialised
}

// bitSize lazily computes the Huffman codes and returns the exact
// header+payload bit cost of writing this block.
func (b *block) bitSize() int {
	if b.state == stateNew {
		panic("dflate: block.bitSize before init")
	}
	if b.state == stateInitialised {
		b.computeBits()
	}
	return b.cost()
}

func (b *block) computeBits() {
	b.litCoder.ComputeBits()
	b.distCoder.ComputeBits()

	b.hlit = b.litCoder.TrimmedLen(257)
	// RFC 1951 requires HDIST>=1 even for an all-literal block; an
	// unused distance alphabet trims to a single symbol of length 0
	// (a zero-length code, not a real 1-bit code), matching the
	// original's `if self.dist.symbols == 0 { self.dist.symbols = 1; }`
	// which never touches `bits`.
	b.hdist = b.distCoder.TrimmedLen(1)

	concatenated := make([]uint8, 0, b.hlit+b.hdist)
	concatenated = append(concatenated, b.litCoder.Bits[:b.hlit]...)
	concatenated = append(concatenated, b.distCoder.Bits[:b.hdist]...)

	counter := rle.NewCounter()
	rle.Encode(concatenated, counter)

	b.clCoder = huffman.NewBitCoder(numCLenSymbols, 7)
	copy(b.clCoder.Used, counter.Used)
	b.clCoder.ComputeBits()
	b.clCoder.ComputeCodes()
	b.litCoder.ComputeCodes()
	b.distCoder.ComputeCodes()

	// Permute the code-length alphabet's bit lengths into transmission
	// order and trim trailing zero lengths to a 4-symbol floor.
	permuted := make([]uint8, numCLenSymbols)
	for i, sym := range CLenAlphabet {
		permuted[i] = b.clCoder.Bits[sym]
	}
	n := numCLenSymbols
	for n > 4 && permuted[n-1] == 0 {
		n--
	}
	b.clLengths = permuted[:n]
	b.hclen = n

	b.state = stateBitsComputed
}

func clExtraBitsFor(sym int) int {
	switch sym {
	case rle.SymRepeat:
		return 2
	case rle.SymZeros3:
		return 3
	case rle.SymZeros11:
		return 7
	}
	return 0
}

func (b *block) cost() int {
	header := 3 + 5 + 5 + 4 + 3*b.hclen

	rleBits := 0
	for sym, used := range b.clCoder.Used {
		if used == 0 {
			continue
		}
		rleBits += int(used) * (int(b.clCoder.Bits[sym]) + clExtraBitsFor(sym))
	}

	payload := 0
	for sym, used := range b.litCoder.Used[:b.hlit] {
		payload += int(used) * int(b.litCoder.Bits[sym])
	}
	payload += b.litExtraBits

	for sym, used := range b.distCoder.Used[:b.hdist] {
		payload += int(used) * int(b.distCoder.Bits[sym])
	}
	payload += b.distExtraBits

	return header + rleBits + payload
}

// write emits the block header and body to w. bitSize must have been
// called at least once first (or write calls it implicitly).
func (b *block) write(w *bitio.Writer) {
	if b.state == stateNew || b.state == stateInitialised {
		b.bitSize()
	}
	if b.state != stateBitsComputed {
		panic("dflate: block already written")
	}

	lastBit := uint64(0)
	if b.last {
		lastBit = 1
	}
	w.Write(1, lastBit)
	w.Write(2, 0b10) // btype = dynamic Huffman

	w.Write(5, uint64(b.hlit-257))
	w.Write(5, uint64(b.hdist-1))
	w.Write(4, uint64(b.hclen-4))

	for _, l := range b.clLengths {
		w.Write(3, uint64(l))
	}

	concatenated := make([]uint8, 0, b.hlit+b.hdist)
	concatenated = append(concatenated, b.litCoder.Bits[:b.hlit]...)
	concatenated = append(concatenated, b.distCoder.Bits[:b.hdist]...)

	emitter := &rle.Emitter{W: w, Codes: b.clCoder.Code, Bits: b.clCoder.Bits}
	rle.Encode(concatenated, emitter)

	pos := b.inputStart
	idx := b.matchStart
	for pos < b.inputEnd {
		if idx < b.matchEnd && b.matches[idx].Position == pos {
			m := b.matches[idx]
			sym, extra, extraBits := lengthCode(m.Length)
			w.Write(int(b.litCoder.Bits[sym]), uint64(b.litCoder.Code[sym]))
			if extraBits > 0 {
				w.Write(extraBits, uint64(extra))
			}
			dsym, dExtra, dExtraBits := distanceCode(m.Distance)
			w.Write(int(b.distCoder.Bits[dsym]), uint64(b.distCoder.Code[dsym]))
			if dExtraBits > 0 {
				w.Write(dExtraBits, uint64(dExtra))
			}
			pos += m.Length
			idx++
			continue
		}
		sym := int(b.input[pos])
		w.Write(int(b.litCoder.Bits[sym]), uint64(b.litCoder.Code[sym]))
		pos++
	}

	w.Write(int(b.litCoder.Bits[endOfBlockSymbol]), uint64(b.litCoder.Code[endOfBlockSymbol]))

	b.state = stateWritten
}

func (b *block) String() string {
	return fmt.Sprintf("block[%d:%d) matches[%d:%d)", b.inputStart, b.inputEnd, b.matchStart, b.matchEnd)
}
