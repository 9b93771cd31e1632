// Package lz77 implements the whole-buffer LZ77 match finder of the
// codec: a rolling 3-byte hash with chained positions and lazy
// matching, the same shape compress/flate uses but hand-rolled to the
// exact hash/bias/lazy-match policy this module's wire format assumes.
package lz77

const (
	MinMatch    = 3
	MaxMatch    = 258
	MaxDistance = 32768

	// encodePosition biases stored hash-table/link entries so that 0
	// unambiguously means "no entry yet": a stored entry e means
	// position e-encodePosition, and p >= e means that position is
	// more than MaxDistance behind p.
	encodePosition = MaxDistance + 1

	maxShift = 6
)

// Match is one LZ77 back-reference: Length bytes, MinMatch..MaxMatch,
// found Distance bytes (1..MaxDistance) before Position.
type Match struct {
	Position int
	Length   int
	Distance int
}

// Finder holds the hash table and link array needed to search a
// single input buffer; it is not reusable across buffers.
type Finder struct {
	input     []byte
	shift     uint
	mask      int
	hashTable []int
	link      []int
	maxProbes int // 0 means unlimited
}

// NewFinder prepares a match finder over input. The hash table has
// 1<<(3*shift) entries with shift chosen so it holds at least twice
// the input length, capped at 6. maxProbes bounds the hash-chain walk
// length (0 for unlimited).
func NewFinder(input []byte, maxProbes int) *Finder {
	shift := uint(1)
	for shift < maxShift {
		if (1 << (3 * shift)) >= 2*len(input) {
			break
		}
		shift++
	}

	size := 1 << (3 * shift)
	f := &Finder{
		input:     input,
		shift:     shift,
		mask:      size - 1,
		hashTable: make([]int, size),
		link:      make([]int, max(len(input), 1)),
		maxProbes: maxProbes,
	}
	return f
}

// hashAt hashes the three bytes at p. Written as a sum of shifted
// bytes rather than a concatenation: truncation by mask makes every
// byte older than p fall out exactly after three positions, so this
// equals the incremental rolling form ((h << shift) + next) & mask.
func (f *Finder) hashAt(p int) int {
	in := f.input
	h := int(in[p])<<(2*f.shift) + int(in[p+1])<<f.shift + int(in[p+2])
	return h & f.mask
}

// matchLen returns the length of the common prefix of input[a:] and
// input[b:], capped at limit and by the end of the buffer.
func (f *Finder) matchLen(a, b, limit int) int {
	n := len(f.input)
	max := n - b
	if n-a < max {
		max = n - a
	}
	if max > limit {
		max = limit
	}
	i := 0
	for i < max && f.input[a+i] == f.input[b+i] {
		i++
	}
	return i
}

// matchPossible short-circuits the chain walk: a match longer than
// bestLen would end with the three bytes at position+bestLen-2, and if
// no position within MaxDistance has hashed that trigram, no extension
// can succeed.
func (f *Finder) matchPossible(position, bestLen int) bool {
	p := position + bestLen - 2
	if p+2 >= len(f.input) {
		return false
	}
	return f.hashTable[f.hashAt(p)] > position
}

// FindAll runs the match finder over the whole buffer, calling emit
// for each chosen Match and advancing past it. It is the
// single-threaded building block both the pipelined and sequential
// drivers use.
func (f *Finder) FindAll(emit func(Match)) {
	n := len(f.input)
	if n < MinMatch {
		return
	}

	p := 0
	for p < n-2 {
		h := f.hashAt(p)
		old := f.hashTable[h]
		f.hashTable[h] = p + encodePosition

		var bestLen, bestDist int
		if old > p {
			f.link[p] = old
			bestLen, bestDist = f.bestMatch(p, old-encodePosition)
		}

		if bestLen < MinMatch {
			p++
			continue
		}

		// Lazy matching: check position p+1 for a strictly longer
		// match (or an equal-length match at a smaller distance).
		// Peek only: hashTable/link for p+1 must not be written yet,
		// since p+1 is revisited as a fresh position if it wins.
		if p+1 < n-2 {
			old2 := f.hashTable[f.hashAt(p+1)]
			if old2 > p+1 {
				len2, dist2 := f.bestMatch(p+1, old2-encodePosition)
				if len2 > bestLen || (len2 == bestLen && dist2 < bestDist) {
					p++
					continue
				}
			}
		}

		emit(Match{Position: p, Length: bestLen, Distance: bestDist})

		// Skip the hash-update loop forward to the end of the match,
		// still threading the hash chain for positions within it so
		// future matches can reference into the match body.
		end := p + bestLen
		p++
		for p < end && p < n-2 {
			h := f.hashAt(p)
			f.link[p] = f.hashTable[h]
			f.hashTable[h] = p + encodePosition
			p++
		}
	}
}

// bestMatch walks the hash chain starting at oldPos (the entry found
// for p's trigram) and returns the longest match; ties keep the first
// hit, which is always the smallest distance since the chain runs from
// newest to oldest.
func (f *Finder) bestMatch(p, oldPos int) (length, distance int) {
	avail := len(f.input) - p
	if avail > MaxMatch {
		avail = MaxMatch
	}

	bestLen := 0
	bestDist := 0
	keyByte := f.input[p]
	cand := oldPos
	probes := 0
	for {
		if f.input[cand+bestLen] == keyByte {
			l := f.matchLen(cand, p, avail)
			if l > bestLen {
				bestLen = l
				bestDist = p - cand
				if bestLen == avail || !f.matchPossible(p, bestLen) {
					break
				}
				keyByte = f.input[p+bestLen]
			}
		}
		probes++
		if f.maxProbes > 0 && probes >= f.maxProbes {
			break
		}
		next := f.link[cand]
		if next <= p {
			break
		}
		cand = next - encodePosition
	}
	return bestLen, bestDist
}
