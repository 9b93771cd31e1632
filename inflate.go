package dflate

import (
	"bytes"
	"errors"

	"github.com/go-dflate/dflate/bitio"
	"github.com/go-dflate/dflate/rle"
)

var (
	ErrTruncated = errors.New("dflate: stream too short for a zlib header")
	ErrChecksum  = errors.New("dflate: adler-32 checksum mismatch")
	ErrCorrupt   = errors.New("dflate: corrupt deflate stream")
)

// decodeFixedLit reads one RFC 1951 §3.2.6 fixed literal/length
// symbol via the reader's MSB-first get_huff primitive rather than a
// precomputed lookup table: the fixed alphabet only ever has codes of
// length 7, 8 or 9, so the well-known constant ranges can be checked
// directly as the code grows one bit at a time.
func decodeFixedLit(r *bitio.Reader) (int, error) {
	code := r.ReadHuff(7)
	if code <= 0b0010111 {
		return 256 + int(code), nil
	}
	code = code<<1 | r.ReadBits(1)
	if code >= 0b00110000 && code <= 0b10111111 {
		return int(code) - 0b00110000, nil
	}
	if code >= 0b11000000 && code <= 0b11000111 {
		return 280 + int(code) - 0b11000000, nil
	}
	code = code<<1 | r.ReadBits(1)
	if code < 0b110010000 || code > 0b111111111 {
		return 0, ErrCorrupt
	}
	return 144 + int(code) - 0b110010000, nil
}

// decodeFixedDist reads one fixed distance symbol: all 32 codes are 5
// bits and assigned in natural order, so the code value is the symbol
// directly. Symbols 30 and 31 are reserved and never used.
func decodeFixedDist(r *bitio.Reader) (int, error) {
	sym := int(r.ReadHuff(5))
	if sym >= numDistSymbols {
		return 0, ErrCorrupt
	}
	return sym, nil
}

// Decompress inverts Compress/CompressSequential: it skips the two
// zlib header bytes, walks the DEFLATE block stream (stored, fixed, and
// dynamic Huffman blocks are all accepted on decode,
// even though the encoder only ever emits dynamic blocks), and
// verifies the trailing Adler-32 against the bytes actually produced.
func Decompress(compressed []byte) ([]byte, error) {
	if len(compressed) < 2 {
		return nil, ErrTruncated
	}
	r := bitio.NewReader(bytes.NewReader(compressed))

	// The two zlib header bytes carry the method and window size; like
	// the level bits they don't affect decoding, so they are skipped
	// rather than validated (a level-9 encoder writes 0x78 0xda).
	r.ReadBits(16)

	var out []byte
	var err error
	for {
		last := r.ReadBits(1)
		btype := r.ReadBits(2)

		switch btype {
		case 0:
			out, err = inflateStored(r, out)
		case 1:
			out, err = inflateBlock(r, out,
				func() (int, error) { return decodeFixedLit(r) },
				func() (int, error) { return decodeFixedDist(r) })
		case 2:
			var litDec, distDec *huffDecoder
			litDec, distDec, err = readDynamicTables(r)
			if err == nil {
				out, err = inflateBlock(r, out,
					func() (int, error) { return litDec.decode(r) },
					func() (int, error) { return distDec.decode(r) })
			}
		default:
			err = ErrCorrupt
		}
		if err == nil && r.Err() != nil {
			// Past the end of a truncated stream the reader yields zero
			// bits, on which a block can still finish cleanly, so the
			// reader's error has to stop the block loop here.
			err = ErrCorrupt
		}
		if err != nil {
			return nil, err
		}
		if last == 1 {
			break
		}
	}

	r.Pad(8)
	want := readAdlerTrailer(r)
	if got := Adler32(out); got != want {
		return nil, ErrChecksum
	}
	return out, nil
}

// inflateStored copies a btype=00 stored block verbatim, checking the
// LEN/NLEN one's-complement pair RFC 1951 §3.2.4 requires.
func inflateStored(r *bitio.Reader, out []byte) ([]byte, error) {
	r.Pad(8)
	length := int(r.ReadBits(8)) | int(r.ReadBits(8))<<8
	nlen := int(r.ReadBits(8)) | int(r.ReadBits(8))<<8
	if length != ^nlen&0xffff {
		return out, ErrCorrupt
	}
	for i := 0; i < length; i++ {
		out = append(out, byte(r.ReadBits(8)))
	}
	return out, nil
}

// inflateBlock decodes a Huffman-coded block's literal/length and
// distance symbols until end-of-block, applying back-references as it
// goes. Overlapping matches (distance < length) resolve correctly
// because out is appended to one byte at a time, so a copy can read
// bytes this same call already wrote. A reader error (input exhausted
// mid-block) fails the block with ErrCorrupt.
func inflateBlock(r *bitio.Reader, out []byte, decodeLit, decodeDist func() (int, error)) ([]byte, error) {
	for {
		if r.Err() != nil {
			return out, ErrCorrupt
		}
		sym, err := decodeLit()
		if err != nil {
			return out, err
		}
		if sym < endOfBlockSymbol {
			out = append(out, byte(sym))
			continue
		}
		if sym == endOfBlockSymbol {
			return out, nil
		}

		idx := sym - firstLengthSymbol
		if idx < 0 || idx >= len(MatchExtra) {
			return out, ErrCorrupt
		}
		extra := 0
		if n := MatchExtra[idx]; n > 0 {
			extra = int(r.ReadBits(n))
		}
		length := MatchOff[idx] + extra

		dsym, err := decodeDist()
		if err != nil {
			return out, err
		}
		if dsym < 0 || dsym >= len(DistExtra) {
			return out, ErrCorrupt
		}
		dExtra := 0
		if n := DistExtra[dsym]; n > 0 {
			dExtra = int(r.ReadBits(n))
		}
		distance := DistOff[dsym] + dExtra

		if distance > len(out) {
			return out, ErrCorrupt
		}
		start := len(out) - distance
		for i := 0; i < length; i++ {
			out = append(out, out[start+i])
		}
	}
}

// readDynamicTables reads a btype=10 block's header: the code-length
// alphabet's own lengths, then the RLE-condensed literal/length and
// distance code lengths, and builds decoders from both.
func readDynamicTables(r *bitio.Reader) (lit, dist *huffDecoder, err error) {
	hlit := int(r.ReadBits(5)) + 257
	hdist := int(r.ReadBits(5)) + 1
	hclen := int(r.ReadBits(4)) + 4
	if hdist > numDistSymbols {
		return nil, nil, ErrCorrupt
	}

	clLengths := make([]uint8, numCLenSymbols)
	for i := 0; i < hclen; i++ {
		clLengths[CLenAlphabet[i]] = uint8(r.ReadBits(3))
	}

	clDec, err := newHuffDecoder(clLengths)
	if err != nil {
		return nil, nil, err
	}

	lengths, err := rle.Decode(r, hlit+hdist, func() (int, error) { return clDec.decode(r) })
	if err != nil {
		return nil, nil, err
	}

	litLengths := make([]uint8, numLitLenSymbols)
	copy(litLengths, lengths[:hlit])
	distLengths := make([]uint8, numDistSymbols)
	copy(distLengths, lengths[hlit:])

	lit, err = newHuffDecoder(litLengths)
	if err != nil {
		return nil, nil, err
	}
	dist, err = newHuffDecoder(distLengths)
	if err != nil {
		return nil, nil, err
	}
	return lit, dist, nil
}
