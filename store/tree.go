package store

import "fmt"

// allocPageID reserves a fresh page id for a newly split-off page.
func (s *Store) allocPageID() uint64 {
	id := s.next
	s.next++
	return id
}

// loadPage returns the in-memory page for id, reading it from the
// backing storage (and decoding it) on first touch.
func (s *Store) loadPage(id uint64) (*page, error) {
	if p, ok := s.pages[id]; ok {
		return p, nil
	}
	buf := make([]byte, s.pageSize)
	n, err := s.backing.ReadAt(buf, int64(id)*int64(s.pageSize))
	if n == 0 && err != nil {
		return nil, err
	}
	p, perr := parsePage(id, buf[:n], s.codec, s.pageSize)
	if perr != nil {
		return nil, perr
	}
	s.pages[id] = p
	return p, nil
}

// Save writes every dirty page back to the backing storage.
func (s *Store) Save() error {
	for id, p := range s.pages {
		if !p.dirty {
			continue
		}
		if _, err := s.backing.WriteAt(p.bytes(), int64(id)*int64(s.pageSize)); err != nil {
			return err
		}
		p.dirty = false
	}
	return nil
}

// chooseChildID finds the child page a search for rec should descend
// into from a parent page: the child pointer of the node holding the
// largest key <= rec's key, or firstChild if rec's key is smaller than
// every key on the page. Every separator key is <= every key in its
// own child's subtree: a split sets it to that subtree's minimum, and
// Remove may later delete that minimum without updating the separator.
func chooseChildID(p *page, rec Record) uint64 {
	cur := p.root
	var best uint16
	for cur != 0 {
		cmp := rec.Compare(p.data, p.recordOffset(cur))
		if cmp >= 0 {
			best = cur
			cur = p.getRight(cur)
		} else {
			cur = p.getLeft(cur)
		}
	}
	if best == 0 {
		return p.firstChild
	}
	return p.getChildPtr(best)
}

// find walks page's AVL tree looking for an exact key match, returning
// 0 if none exists.
func (p *page) find(cmp func(id uint16) int) uint16 {
	cur := p.root
	for cur != 0 {
		c := cmp(cur)
		switch {
		case c == 0:
			return cur
		case c < 0:
			cur = p.getLeft(cur)
		default:
			cur = p.getRight(cur)
		}
	}
	return 0
}

// promotion describes a page split that bubbled up to a caller: a new
// separator key and the id of the freshly allocated right-hand page.
type promotion struct {
	key   Record
	child uint64
}

// Insert adds rec to the store. A duplicate key is a
// silent no-op. A full leaf splits without absorbing rec; the split's
// promotion bubbles up (growing a new root if it escapes the top) and
// the insert then retries with a second descent from the root, which
// now has room on the path down to rec's leaf.
func (s *Store) Insert(rec Record) error {
	for {
		p, done, err := s.insertDescend(s.root, rec)
		if err != nil {
			return err
		}
		if p != nil {
			// Page 0 is always the tree root on disk, so growing the
			// tree moves the old root (the split's left half) to a
			// fresh page and puts the new parent root at its id.
			moved := s.pages[s.root]
			moved.id = s.allocPageID()
			moved.dirty = true
			s.pages[moved.id] = moved

			newRoot := newPage(s.root, true, s.codec, s.pageSize)
			newRoot.firstChild = moved.id
			newRoot.dirty = true
			s.avlInsertParentNode(newRoot, p.key, p.child)
			s.pages[s.root] = newRoot
		}
		if done {
			return nil
		}
	}
}

// insertDescend recursively finds rec's home page and inserts it
// there. done reports whether rec itself landed (or was a duplicate);
// false means a page on the path split and the caller must descend
// again. A non-nil promotion out of the top-level call means the root
// itself just split; Insert handles allocating a new root.
func (s *Store) insertDescend(pageID uint64, rec Record) (*promotion, bool, error) {
	p, err := s.loadPage(pageID)
	if err != nil {
		return nil, false, err
	}

	if p.parentFlag {
		childID := chooseChildID(p, rec)
		sub, done, err := s.insertDescend(childID, rec)
		if err != nil {
			return nil, false, err
		}
		if sub == nil {
			return nil, done, nil
		}
		if p.full() {
			prom, err := s.splitParentWithExtra(p, sub.key, sub.child)
			return prom, done, err
		}
		s.avlInsertParentNode(p, sub.key, sub.child)
		p.dirty = true
		return nil, done, nil
	}

	// leaf page
	exists := p.find(func(id uint16) int { return rec.Compare(p.data, p.recordOffset(id)) }) != 0
	if exists {
		return nil, true, nil
	}
	if p.full() {
		prom, err := s.splitLeaf(p)
		return prom, false, err
	}
	s.avlInsertLeafNode(p, rec)
	p.dirty = true
	return nil, true, nil
}

// avlInsertLeafNode inserts rec into a non-full leaf page.
func (s *Store) avlInsertLeafNode(p *page, rec Record) {
	newRoot, _, _ := p.avlInsert(p.root, avlOps{
		compare: func(id uint16) int { return rec.Compare(p.data, p.recordOffset(id)) },
		create: func() uint16 {
			id := p.allocNode()
			rec.Save(p.data, p.recordOffset(id), true)
			packNode(p.data, p.nodeOffset(id), balanceBalanced, 0, 0)
			p.count++
			return id
		},
	})
	p.root = newRoot
}

// avlInsertParentNode inserts a (key, child) separator into a non-full
// parent page.
func (s *Store) avlInsertParentNode(p *page, key Record, child uint64) {
	newRoot, _, _ := p.avlInsert(p.root, avlOps{
		compare: func(id uint16) int { return key.Compare(p.data, p.recordOffset(id)) },
		create: func() uint16 {
			id := p.allocNode()
			key.Save(p.data, p.recordOffset(id), false)
			packNode(p.data, p.nodeOffset(id), balanceBalanced, 0, 0)
			p.setChildPtr(id, child)
			p.count++
			return id
		},
	})
	p.root = newRoot
}

// Remove deletes the record whose key matches rec's. A missing key
// is a silent no-op.
func (s *Store) Remove(rec Record) error {
	return s.removeDescend(s.root, rec)
}

func (s *Store) removeDescend(pageID uint64, rec Record) error {
	p, err := s.loadPage(pageID)
	if err != nil {
		return err
	}
	if p.parentFlag {
		childID := chooseChildID(p, rec)
		return s.removeDescend(childID, rec)
	}
	newRoot, _, removed := p.avlRemove(p.root, func(id uint16) int {
		return rec.Compare(p.data, p.recordOffset(id))
	})
	if !removed {
		return nil
	}
	p.root = newRoot
	p.count--
	p.dirty = true
	return nil
}

// splitLeaf splits a full leaf page in place (old.id keeps the left
// half) and allocates a new page for the right half.
func (s *Store) splitLeaf(old *page) (*promotion, error) {
	ids := old.inOrder()
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: page %d full with fewer than 2 nodes", ErrCorrupt, old.id)
	}
	mid := len(ids) / 2

	left := newPage(old.id, false, s.codec, s.pageSize)
	right := newPage(s.allocPageID(), false, s.codec, s.pageSize)

	leftIDs := copyLeafNodes(left, old, ids[:mid])
	rightIDs := copyLeafNodes(right, old, ids[mid:])

	left.root = buildBalanced(leftIDs, left.setNodeShape)
	left.count = uint16(len(leftIDs))
	right.root = buildBalanced(rightIDs, right.setNodeShape)
	right.count = uint16(len(rightIDs))
	left.dirty = true
	right.dirty = true

	s.pages[left.id] = left
	s.pages[right.id] = right

	splitKey := s.codec.New().Key(right.data, right.recordOffset(rightIDs[0]))
	return &promotion{key: splitKey, child: right.id}, nil
}

// splitParentWithExtra splits a full parent page while incorporating a
// pending (newKey, newChild) separator that triggered the overflow.
// The parent case carries the median node's own child pointer into the
// new right page's firstChild rather than keeping the median node
// itself on either side.
func (s *Store) splitParentWithExtra(old *page, newKey Record, newChild uint64) (*promotion, error) {
	ids := old.inOrder()

	idx := 0
	for idx < len(ids) && newKey.Compare(old.data, old.recordOffset(ids[idx])) > 0 {
		idx++
	}

	total := len(ids) + 1
	mid := total / 2

	type entry struct {
		oldID   uint16
		isNew   bool
	}
	combined := make([]entry, 0, total)
	for i := 0; i < idx; i++ {
		combined = append(combined, entry{oldID: ids[i]})
	}
	combined = append(combined, entry{isNew: true})
	for i := idx; i < len(ids); i++ {
		combined = append(combined, entry{oldID: ids[i]})
	}

	if mid >= len(combined) {
		return nil, fmt.Errorf("%w: page %d split index out of range", ErrCorrupt, old.id)
	}

	left := newPage(old.id, true, s.codec, s.pageSize)
	right := newPage(s.allocPageID(), true, s.codec, s.pageSize)

	copyParentEntry := func(dst *page, e entry) uint16 {
		id := dst.allocNode()
		if e.isNew {
			newKey.Save(dst.data, dst.recordOffset(id), false)
			dst.setChildPtr(id, newChild)
		} else {
			copy(dst.data[dst.recordOffset(id):dst.recordOffset(id)+dst.recSize],
				old.data[old.recordOffset(e.oldID):old.recordOffset(e.oldID)+old.recSize])
			dst.setChildPtr(id, old.getChildPtr(e.oldID))
		}
		return id
	}

	leftIDs := make([]uint16, mid)
	for i := 0; i < mid; i++ {
		leftIDs[i] = copyParentEntry(left, combined[i])
	}
	medianEntry := combined[mid]
	rightIDs := make([]uint16, 0, len(combined)-mid-1)
	for i := mid + 1; i < len(combined); i++ {
		rightIDs = append(rightIDs, copyParentEntry(right, combined[i]))
	}

	left.root = buildBalanced(leftIDs, left.setNodeShape)
	left.count = uint16(len(leftIDs))
	left.firstChild = old.firstChild

	var medianChild uint64
	var medianKey Record
	if medianEntry.isNew {
		// newKey already arrived as a key-only Record (the promotion
		// from whichever lower split or leaf insert produced it).
		medianChild = newChild
		medianKey = newKey
	} else {
		medianChild = old.getChildPtr(medianEntry.oldID)
		medianKey = s.codec.New().Key(old.data, old.recordOffset(medianEntry.oldID))
	}
	right.firstChild = medianChild

	if len(rightIDs) > 0 {
		right.root = buildBalanced(rightIDs, right.setNodeShape)
	}
	right.count = uint16(len(rightIDs))

	left.dirty = true
	right.dirty = true
	s.pages[left.id] = left
	s.pages[right.id] = right

	return &promotion{key: medianKey, child: right.id}, nil
}

// copyLeafNodes allocates fresh node ids on dst and copies the full
// records of oldIDs (from src) into them, in order. It does not wire
// up left/right/balance; callers rebuild the shape with buildBalanced.
func copyLeafNodes(dst, src *page, oldIDs []uint16) []uint16 {
	newIDs := make([]uint16, len(oldIDs))
	for i, oid := range oldIDs {
		id := dst.allocNode()
		copy(dst.data[dst.recordOffset(id):dst.recordOffset(id)+dst.recSize],
			src.data[src.recordOffset(oid):src.recordOffset(oid)+src.recSize])
		newIDs[i] = id
	}
	return newIDs
}

// setNodeShape is a buildBalanced callback bound to a specific page.
func (p *page) setNodeShape(id, left, right uint16, b balance) {
	p.setLeft(id, left)
	p.setRight(id, right)
	p.setBalance(id, b)
}

// inOrder returns the page's node ids in ascending key order.
func (p *page) inOrder() []uint16 {
	var ids []uint16
	var walk func(id uint16)
	walk = func(id uint16) {
		if id == 0 {
			return
		}
		walk(p.getLeft(id))
		ids = append(ids, id)
		walk(p.getRight(id))
	}
	walk(p.root)
	return ids
}

// buildBalanced arranges ids (already in ascending key order) into a
// height-balanced binary tree via bisection, invoking set(id, left,
// right, balance) once per id. It returns the new root id.
func buildBalanced(ids []uint16, set func(id, left, right uint16, b balance)) uint16 {
	var build func(lo, hi int) (root uint16, height int)
	build = func(lo, hi int) (uint16, int) {
		if lo > hi {
			return 0, 0
		}
		mid := (lo + hi + 1) / 2
		leftRoot, lh := build(lo, mid-1)
		rightRoot, rh := build(mid+1, hi)
		var b balance
		switch {
		case lh < rh:
			b = balanceRightHigher
		case lh > rh:
			b = balanceLeftHigher
		default:
			b = balanceBalanced
		}
		set(ids[mid], leftRoot, rightRoot, b)
		h := lh
		if rh > h {
			h = rh
		}
		return ids[mid], h + 1
	}
	root, _ := build(0, len(ids)-1)
	return root
}
