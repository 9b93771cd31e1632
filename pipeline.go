package dflate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/go-dflate/dflate/lz77"
)

// matchQueueCapacity is the bounded FIFO capacity carrying Matches
// from the match finder to the block writer.
const matchQueueCapacity = 1000

// pipeline runs the three cooperating compress-side tasks of a
// compression call under one errgroup.Group, which acts as the scope:
// Wait returns only once every task has finished, and the first task
// to return an error cancels the shared context, which the other
// tasks observe and unwind from. The block writer is not itself a
// goroutine in the group — it is the calling goroutine, which doubles
// as the driver.
type pipeline struct {
	group    *errgroup.Group
	ctx      context.Context
	matches  chan lz77.Match
	checksum chan uint32
}

func newPipeline(ctx context.Context, input []byte, maxProbes int) *pipeline {
	g, gctx := errgroup.WithContext(ctx)
	p := &pipeline{
		group:    g,
		ctx:      gctx,
		matches:  make(chan lz77.Match, matchQueueCapacity),
		checksum: make(chan uint32, 1),
	}

	g.Go(func() error {
		defer close(p.matches)
		f := lz77.NewFinder(input, maxProbes)
		f.FindAll(func(m lz77.Match) {
			select {
			case p.matches <- m:
			case <-gctx.Done():
			}
		})
		return gctx.Err()
	})

	g.Go(func() error {
		select {
		case p.checksum <- Adler32(input):
		case <-gctx.Done():
			return gctx.Err()
		}
		return nil
	})

	return p
}

// nextMatch blocks until a Match is available or the queue has
// closed: the writer suspends whenever the match queue is
// empty and not yet closed.
func (p *pipeline) nextMatch() (lz77.Match, bool) {
	m, ok := <-p.matches
	return m, ok
}

// waitChecksum blocks for the Adler-32 of the whole input, computed
// concurrently by the checksum task.
func (p *pipeline) waitChecksum() uint32 {
	return <-p.checksum
}

// wait blocks until every task in the scope has completed, returning
// the first error encountered by any of them, if any.
func (p *pipeline) wait() error {
	return p.group.Wait()
}
