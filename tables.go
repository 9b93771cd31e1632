// Package dflate implements a from-scratch RFC 1950/1951 (zlib/DEFLATE)
// codec: a streaming LZ77 match finder feeding a dynamic-Huffman block
// encoder on compress, and a two-level lookup-table decoder on
// decompress.
package dflate

// CLenAlphabet is the fixed order in which code-length alphabet code
// lengths are transmitted (RFC 1951 §3.2.7).
var CLenAlphabet = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// MatchOff and MatchExtra give the base length and extra-bit count for
// length codes 257..285 (index 0..28), plus a sentinel 0xffff at
// index 29 that is never a valid length code.
var MatchOff = [30]int{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258, 0xffff}
var MatchExtra = [29]int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}

// DistOff and DistExtra give the base distance and extra-bit count
// for distance codes 0..29.
var DistOff = [30]int{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
var DistExtra = [30]int{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}

const (
	numLitLenSymbols  = 288
	numDistSymbols    = 30
	numCLenSymbols    = 19
	endOfBlockSymbol  = 256
	firstLengthSymbol = 257

	zlibMagic0 = 0x78
	zlibMagic1 = 0x9c
)

// lengthCode returns the length-alphabet symbol and extra-bits value
// for a match length in [3, 258].
func lengthCode(length int) (sym, extra, extraBits int) {
	for i := 0; i < 29; i++ {
		base := MatchOff[i]
		next := MatchOff[i+1]
		if length >= base && (i == 28 || length < next) {
			return firstLengthSymbol + i, length - base, MatchExtra[i]
		}
	}
	panic("dflate: length out of range")
}

// distanceCode returns the distance-alphabet symbol and extra-bits
// value for a match distance in [1, 32768].
func distanceCode(dist int) (sym, extra, extraBits int) {
	for i := 0; i < 30; i++ {
		base := DistOff[i]
		var next int
		if i+1 < 30 {
			next = DistOff[i+1]
		} else {
			next = 1 << 30
		}
		if dist >= base && dist < next {
			return i, dist - base, DistExtra[i]
		}
	}
	panic("dflate: distance out of range")
}
