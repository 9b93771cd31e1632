// Package store implements a fixed-page-size, on-disk ordered-record
// store: each page holds a node-array-backed AVL tree with 11-bit node
// ids, and the pages themselves form a B-tree (parent pages hold only
// keys and child-page pointers; records live in leaf pages). See
// DESIGN.md for how the pieces fit together.
package store

import (
	"errors"
	"io"
)

const (
	// DefaultPageSize is used when callers don't override it.
	DefaultPageSize = 16 * 1024

	// maxNodeID is the largest value an 11-bit node id can hold; id 0
	// means "nil".
	maxNodeID = 1<<11 - 1

	// nodeOverhead is the number of packed bytes preceding the record
	// bytes in every node: one byte of (balance, left_hi, right_hi)
	// plus left_lo and right_lo.
	nodeOverhead = 3

	// childPtrSize is the width in bytes of a child-page id, used both
	// for a parent node's own child pointer and for a parent page's
	// first_child_page field.
	childPtrSize = 6

	// headerSize is the packed page header: parent_flag(1) + root(11)
	// + count(11) + free_head(11) + alloc_high(11) = 45 bits, rounded
	// up to whole bytes.
	headerSize = 6

	// cursorMaxDepth bounds the cursor's path stack: tree
	// height never approaches this for realistic page sizes, so a
	// deeper descent means a corrupt backing file.
	cursorMaxDepth = 50
)

var (
	// ErrCorrupt is returned when a page's on-disk invariants don't
	// hold (a page shorter than its header, header node ids out of
	// range, a full page with fewer than 2 nodes, or a cursor descent
	// deeper than cursorMaxDepth); balance fields are not checked. The
	// in-memory tree state is undefined once this is returned; callers
	// should not continue using the Store.
	ErrCorrupt = errors.New("store: corrupt page")

	// ErrRecordTooLarge is returned by New when a single record (plus
	// per-node overhead) would not fit in even an empty page. Open does
	// not check this.
	ErrRecordTooLarge = errors.New("store: record too large for page size")
)

// balance is the AVL balance factor of a node, packed into 2 bits.
type balance uint8

const (
	balanceLeftHigher balance = iota
	balanceBalanced
	balanceRightHigher
)

// Store ties a BackingStorage to a Codec and drives inserts, removes
// and cursors over the resulting paged AVL tree.
type Store struct {
	backing  BackingStorage
	codec    Codec
	pageSize int

	root  uint64
	pages map[uint64]*page
	next  uint64 // next unused page id, for allocation
}

// New creates an empty Store backed by b, with records described by
// codec and pages of pageSize bytes.
func New(b BackingStorage, codec Codec, pageSize int) (*Store, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	s := &Store{
		backing:  b,
		codec:    codec,
		pageSize: pageSize,
		pages:    make(map[uint64]*page),
		next:     1,
	}
	root := newPage(0, false, codec, pageSize)
	if root.cap < 1 {
		return nil, ErrRecordTooLarge
	}
	root.dirty = true
	s.pages[0] = root
	return s, nil
}

// Open reconstructs a Store from an existing backing file written by a
// prior Save.
func Open(b BackingStorage, codec Codec, pageSize int) (*Store, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	s := &Store{
		backing:  b,
		codec:    codec,
		pageSize: pageSize,
		pages:    make(map[uint64]*page),
	}
	size, err := b.Size()
	if err != nil {
		return nil, err
	}
	n := uint64(size) / uint64(pageSize)
	if n == 0 {
		n = 1
	}
	s.next = n
	if _, err := s.loadPage(0); err != nil {
		return nil, err
	}
	return s, nil
}

// Dump writes the shape of every page reachable from the root to w,
// breadth-first, for debugging a misbehaving backing file.
func (s *Store) Dump(w io.Writer) error {
	queue := []uint64{s.root}
	seen := map[uint64]bool{s.root: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		p, err := s.loadPage(id)
		if err != nil {
			return err
		}
		p.dump(w)
		if !p.parentFlag {
			continue
		}
		for _, child := range append([]uint64{p.firstChild}, childPtrs(p)...) {
			if !seen[child] {
				seen[child] = true
				queue = append(queue, child)
			}
		}
	}
	return nil
}

func childPtrs(p *page) []uint64 {
	ids := p.inOrder()
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = p.getChildPtr(id)
	}
	return out
}

// Len reports the number of records currently in the store, walking a
// full forward cursor. It is a convenience wrapper, not part of the
// core cursor contract.
func (s *Store) Len() (int, error) {
	c, err := s.Cursor(nil)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		_, ok, err := c.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}
