package store

// cursorFrame is one level of a Cursor's explicit descent stack: for a
// parent page, items holds its children in ascending key order
// (firstChild, then each separator node's own child); for a leaf page,
// items holds its node ids (widened to uint64 for a uniform type) in
// ascending key order.
type cursorFrame struct {
	pageID uint64
	items  []uint64
	idx    int
	isLeaf bool
}

// Cursor is a stack-based bidirectional iterator over a Store,
// positioned by an optional start key. Once positioned,
// the start key is forgotten (tracked by seeking) and the cursor just
// walks every record in order from there.
type Cursor struct {
	s       *Store
	stack   []cursorFrame
	seeking bool
	start   Record
}

// Cursor returns a new Cursor positioned at start (or at the very
// first/last record, depending on which of Next/Prev is called first,
// if start is nil).
func (s *Store) Cursor(start Record) (*Cursor, error) {
	return &Cursor{s: s, start: start, seeking: true}, nil
}

func toUint64s(ids []uint16) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}

func buildChildren(p *page, ids []uint16) []uint64 {
	children := make([]uint64, 0, len(ids)+1)
	children = append(children, p.firstChild)
	for _, id := range ids {
		children = append(children, p.getChildPtr(id))
	}
	return children
}

// descendFrom pushes a fresh path from pageID down to a leaf. When
// start is non-nil it positions at the first record >= start (forward)
// or <= start (backward); otherwise it positions at the subtree's
// absolute first (forward) or last (backward) record.
func (c *Cursor) descendFrom(pageID uint64, forward bool, start Record) error {
	for {
		if len(c.stack) >= cursorMaxDepth {
			return ErrCorrupt
		}
		p, err := c.s.loadPage(pageID)
		if err != nil {
			return err
		}
		ids := p.inOrder()

		if !p.parentFlag {
			items := toUint64s(ids)
			idx := 0
			if start != nil {
				if forward {
					for idx < len(items) && start.Compare(p.data, p.recordOffset(uint16(items[idx]))) > 0 {
						idx++
					}
				} else {
					idx = len(items) - 1
					for idx >= 0 && start.Compare(p.data, p.recordOffset(uint16(items[idx]))) < 0 {
						idx--
					}
				}
			} else if !forward {
				idx = len(items) - 1
			}
			c.stack = append(c.stack, cursorFrame{pageID: pageID, items: items, idx: idx, isLeaf: true})
			return nil
		}

		children := buildChildren(p, ids)
		childIdx := 0
		if start != nil {
			best := -1
			for i, id := range ids {
				if start.Compare(p.data, p.recordOffset(id)) >= 0 {
					best = i
				} else {
					break
				}
			}
			childIdx = best + 1
		} else if !forward {
			childIdx = len(children) - 1
		}
		c.stack = append(c.stack, cursorFrame{pageID: pageID, items: children, idx: childIdx, isLeaf: false})
		pageID = children[childIdx]
	}
}

// advanceParent moves the stack's new top (a parent frame, since its
// leaf child frame was just exhausted and popped) to the next sibling
// in the given direction, descending fresh to an edge of that sibling.
// It pops exhausted parent frames and keeps climbing until it either
// finds a sibling to descend into or empties the stack.
func (c *Cursor) advanceParent(forward bool) error {
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		if forward {
			top.idx++
		} else {
			top.idx--
		}
		if top.idx >= 0 && top.idx < len(top.items) {
			return c.descendFrom(top.items[top.idx], forward, nil)
		}
		c.stack = c.stack[:len(c.stack)-1]
	}
	return nil
}

// Next returns the next record in ascending key order, or ok=false
// once the store is exhausted.
func (c *Cursor) Next() (rec Record, ok bool, err error) {
	if c.seeking {
		if err := c.descendFrom(c.s.root, true, c.start); err != nil {
			return nil, false, err
		}
		c.seeking = false
	}
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		if !top.isLeaf {
			// Only reachable if a parent frame is left on top with an
			// empty subtree beneath it; treat as exhausted.
			c.stack = c.stack[:len(c.stack)-1]
			continue
		}
		if top.idx >= len(top.items) {
			c.stack = c.stack[:len(c.stack)-1]
			if err := c.advanceParent(true); err != nil {
				return nil, false, err
			}
			continue
		}
		p, err := c.s.loadPage(top.pageID)
		if err != nil {
			return nil, false, err
		}
		id := uint16(top.items[top.idx])
		top.idx++
		rec = c.s.codec.New().Load(p.data, p.recordOffset(id), true)
		return rec, true, nil
	}
	return nil, false, nil
}

// Prev returns the previous record in descending key order, or
// ok=false once the store is exhausted.
func (c *Cursor) Prev() (rec Record, ok bool, err error) {
	if c.seeking {
		if err := c.descendFrom(c.s.root, false, c.start); err != nil {
			return nil, false, err
		}
		c.seeking = false
	}
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		if !top.isLeaf {
			c.stack = c.stack[:len(c.stack)-1]
			continue
		}
		if top.idx < 0 {
			c.stack = c.stack[:len(c.stack)-1]
			if err := c.advanceParent(false); err != nil {
				return nil, false, err
			}
			continue
		}
		p, err := c.s.loadPage(top.pageID)
		if err != nil {
			return nil, false, err
		}
		id := uint16(top.items[top.idx])
		top.idx--
		rec = c.s.codec.New().Load(p.data, p.recordOffset(id), true)
		return rec, true, nil
	}
	return nil, false, nil
}

// All drains the cursor forward into a slice. It is a convenience
// wrapper over Next, not part of the core cursor contract.
func (c *Cursor) All() ([]Record, error) {
	var out []Record
	for {
		rec, ok, err := c.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}
