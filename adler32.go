package dflate

import "github.com/go-dflate/dflate/bitio"

const adlerMod = 65521

// writeAdlerTrailer emits sum through a single 32-bit write on the
// LSB-first bit stream, so its low byte goes out first - the opposite
// byte order from RFC 1950's own big-endian convention, but what this
// stream format actually uses throughout.
func writeAdlerTrailer(w *bitio.Writer, sum uint32) {
	w.Write(32, uint64(sum))
}

// readAdlerTrailer reads the trailer written by writeAdlerTrailer. r
// must already be byte-aligned.
func readAdlerTrailer(r *bitio.Reader) uint32 {
	return uint32(r.ReadBits(32))
}

// Adler32 computes the RFC 1950 Adler-32 checksum of b.
func Adler32(b []byte) uint32 {
	var s1, s2 uint32 = 1, 0
	// Process in chunks small enough that s1/s2 can't overflow a
	// uint32 between reductions mod 65521 (the classic zlib trick).
	const chunk = 5552
	for len(b) > 0 {
		n := len(b)
		if n > chunk {
			n = chunk
		}
		for _, c := range b[:n] {
			s1 += uint32(c)
			s2 += s1
		}
		s1 %= adlerMod
		s2 %= adlerMod
		b = b[n:]
	}
	return s2<<16 | s1
}
