package dflate

import (
	"bytes"
	"context"

	"github.com/go-dflate/dflate/bitio"
	"github.com/go-dflate/dflate/lz77"
)

// DefaultBlockSize is the target number of input bytes covered by
// each dynamic Huffman block before the driver starts a new one.
const DefaultBlockSize = 16 * 1024

// Options configures Compress/CompressSequential.
type Options struct {
	BlockSize       int
	DynamicBoundary bool // merge adjacent blocks when that costs fewer bits
	MaxProbes       int  // 0 = unlimited hash-chain walk in the match finder
}

// DriverOption mutates Options; see WithBlockSize, WithDynamicBoundary,
// WithMaxProbes.
type DriverOption func(*Options)

func WithBlockSize(n int) DriverOption { return func(o *Options) { o.BlockSize = n } }

func WithDynamicBoundary(b bool) DriverOption { return func(o *Options) { o.DynamicBoundary = b } }

func WithMaxProbes(n int) DriverOption { return func(o *Options) { o.MaxProbes = n } }

func resolveOptions(opts []DriverOption) Options {
	o := Options{BlockSize: DefaultBlockSize}
	for _, f := range opts {
		f(&o)
	}
	return o
}

func writeHeader(w *bitio.Writer) {
	w.Write(8, zlibMagic0)
	w.Write(8, zlibMagic1)
}

// matchSource yields the LZ77 match stream in increasing-position
// order; it abstracts over the pipelined (channel-backed) and
// sequential (slice-backed) drivers so block construction is shared
// between them.
type matchSource interface {
	next() (lz77.Match, bool)
}

type sliceSource struct {
	matches []lz77.Match
	i       int
}

func (s *sliceSource) next() (lz77.Match, bool) {
	if s.i >= len(s.matches) {
		return lz77.Match{}, false
	}
	m := s.matches[s.i]
	s.i++
	return m, true
}

type channelSource struct{ p *pipeline }

func (c *channelSource) next() (lz77.Match, bool) { return c.p.nextMatch() }

// buildBlocks consumes src, partitioning input into blocks of at
// least targetSize covered bytes each, except the last, which may be
// shorter (a block never ends mid-match),
// accumulating consumed matches into a single growing slice shared by
// every block's descriptor.
func buildBlocks(input []byte, src matchSource, targetSize int) []*block {
	var matches []lz77.Match
	var pending *lz77.Match

	var blocks []*block
	pos := 0
	matchStart := 0

	for pos < len(input) {
		start := pos
		mStart := matchStart

		for pos-start < targetSize && pos < len(input) {
			if pending == nil {
				if m, ok := src.next(); ok {
					pending = &m
				}
			}
			if pending != nil && pending.Position == pos {
				matches = append(matches, *pending)
				pos += pending.Length
				matchStart++
				pending = nil
				continue
			}
			pos++
		}

		b := newBlock(input, matches, start, pos, mStart)
		b.init()
		blocks = append(blocks, b)
	}

	if len(blocks) == 0 {
		b := newBlock(input, matches, 0, 0, 0)
		b.init()
		blocks = append(blocks, b)
	}

	if len(blocks) > 0 {
		blocks[len(blocks)-1].last = true
	}
	return blocks
}

// coalesce greedily merges adjacent blocks whenever doing so reduces
// total encoded bits (the dynamic block-boundary mode). Output may
// differ from the fixed-size partition's encoding while remaining
// RFC 1951-compliant: callers that need byte-stable output must not
// enable it.
func coalesce(input []byte, blocks []*block) []*block {
	if len(blocks) < 2 {
		return blocks
	}

	// Every block's snapshot shares one globally increasing match
	// index space (buildBlocks grows a single matches slice across
	// the whole input), so the final block's snapshot already covers
	// everything earlier blocks need too.
	matches := blocks[len(blocks)-1].matches

	out := []*block{blocks[0]}
	for i := 1; i < len(blocks); i++ {
		cur := out[len(out)-1]
		next := blocks[i]

		merged := newBlock(input, matches, cur.inputStart, next.inputEnd, cur.matchStart)
		merged.init()

		if merged.bitSize() < cur.bitSize()+next.bitSize() {
			out[len(out)-1] = merged
			continue
		}
		out = append(out, next)
	}

	for _, b := range out {
		b.last = false
	}
	out[len(out)-1].last = true
	return out
}

// CompressSequential builds the full match vector before emitting any
// block: a single-threaded, deterministic path, useful both as a
// simpler default and as a reference to diff the pipelined Compress
// against in tests.
func CompressSequential(input []byte, opts ...DriverOption) ([]byte, error) {
	o := resolveOptions(opts)

	var matches []lz77.Match
	f := lz77.NewFinder(input, o.MaxProbes)
	f.FindAll(func(m lz77.Match) { matches = append(matches, m) })

	blocks := buildBlocks(input, &sliceSource{matches: matches}, o.BlockSize)
	if o.DynamicBoundary {
		blocks = coalesce(input, blocks)
	}

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	writeHeader(w)
	for _, b := range blocks {
		b.write(w)
	}
	w.Pad(8)
	writeAdlerTrailer(w, Adler32(input))
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Compress runs the three-task compression pipeline: a match-finder
// goroutine and an Adler-32 goroutine cooperate with the calling
// goroutine (the block writer/driver) via a bounded match queue and a
// single-slot checksum channel, all scoped under one errgroup so the
// call does not return until every task has finished.
func Compress(input []byte, opts ...DriverOption) ([]byte, error) {
	o := resolveOptions(opts)

	p := newPipeline(context.Background(), input, o.MaxProbes)

	blocks := buildBlocks(input, &channelSource{p: p}, o.BlockSize)
	if o.DynamicBoundary {
		blocks = coalesce(input, blocks)
	}

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	writeHeader(w)
	for _, b := range blocks {
		b.write(w)
	}

	// Suspend until the checksum task delivers its result; the
	// trailer cannot be written before the last block anyway.
	sum := p.waitChecksum()

	w.Pad(8)
	writeAdlerTrailer(w, sum)
	if err := w.Flush(); err != nil {
		return nil, err
	}
	if err := p.wait(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
