package store

// avlOps binds the generic AVL insert walk to a concrete node
// encoding: compare orders the value being inserted against the
// existing node id, and create allocates and populates a brand new
// node for that value, returning its id.
type avlOps struct {
	compare func(existingID uint16) int
	create  func() uint16
}

// bf/balance conversions. The AVL balance factor here is
// height(right)-height(left); balanceLeftHigher/balanceRightHigher
// are its -1/+1 packed encodings.
func bfFromBalance(b balance) int8 {
	switch b {
	case balanceLeftHigher:
		return -1
	case balanceRightHigher:
		return 1
	default:
		return 0
	}
}

func balanceFromBF(bf int8) balance {
	switch {
	case bf < 0:
		return balanceLeftHigher
	case bf > 0:
		return balanceRightHigher
	default:
		return balanceBalanced
	}
}

// rotateRightSingle and rotateLeftSingle rearrange pointers only; the
// caller is responsible for fixing up balance fields afterward.
func (p *page) rotateRightSingle(root uint16) uint16 {
	newRoot := p.getLeft(root)
	p.setLeft(root, p.getRight(newRoot))
	p.setRight(newRoot, root)
	return newRoot
}

func (p *page) rotateLeftSingle(root uint16) uint16 {
	newRoot := p.getRight(root)
	p.setRight(root, p.getLeft(newRoot))
	p.setLeft(newRoot, root)
	return newRoot
}

// rotateLeftHeavy restores balance at a node whose balance factor has
// reached -2 (left subtree two taller than right), via a single or
// double rotation depending on the left child's own lean. It returns
// the new subtree root and whether the subtree's height is unchanged
// from immediately before the rotation. That can only happen when the
// left child was itself perfectly balanced, a configuration deletion
// can produce but insertion never can; insert callers may ignore it.
func (p *page) rotateLeftHeavy(root uint16) (newRoot uint16, heightUnchanged bool) {
	left := p.getLeft(root)
	lbf := bfFromBalance(p.getBalance(left))
	if lbf <= 0 {
		newRoot = p.rotateRightSingle(root)
		if lbf == 0 {
			p.setBalance(root, balanceLeftHigher)
			p.setBalance(left, balanceRightHigher)
			return newRoot, true
		}
		p.setBalance(root, balanceBalanced)
		p.setBalance(left, balanceBalanced)
		return newRoot, false
	}
	lr := p.getRight(left)
	lrbf := bfFromBalance(p.getBalance(lr))
	p.setLeft(root, p.rotateLeftSingle(left))
	newRoot = p.rotateRightSingle(root)
	switch {
	case lrbf < 0:
		p.setBalance(root, balanceRightHigher)
		p.setBalance(left, balanceBalanced)
	case lrbf > 0:
		p.setBalance(root, balanceBalanced)
		p.setBalance(left, balanceLeftHigher)
	default:
		p.setBalance(root, balanceBalanced)
		p.setBalance(left, balanceBalanced)
	}
	p.setBalance(newRoot, balanceBalanced)
	return newRoot, false
}

// rotateRightHeavy is the mirror image of rotateLeftHeavy for a
// balance factor of +2.
func (p *page) rotateRightHeavy(root uint16) (newRoot uint16, heightUnchanged bool) {
	right := p.getRight(root)
	rbf := bfFromBalance(p.getBalance(right))
	if rbf >= 0 {
		newRoot = p.rotateLeftSingle(root)
		if rbf == 0 {
			p.setBalance(root, balanceRightHigher)
			p.setBalance(right, balanceLeftHigher)
			return newRoot, true
		}
		p.setBalance(root, balanceBalanced)
		p.setBalance(right, balanceBalanced)
		return newRoot, false
	}
	rl := p.getLeft(right)
	rlbf := bfFromBalance(p.getBalance(rl))
	p.setRight(root, p.rotateRightSingle(right))
	newRoot = p.rotateLeftSingle(root)
	switch {
	case rlbf > 0:
		p.setBalance(root, balanceLeftHigher)
		p.setBalance(right, balanceBalanced)
	case rlbf < 0:
		p.setBalance(root, balanceBalanced)
		p.setBalance(right, balanceRightHigher)
	default:
		p.setBalance(root, balanceBalanced)
		p.setBalance(right, balanceBalanced)
	}
	p.setBalance(newRoot, balanceBalanced)
	return newRoot, false
}

// avlInsert walks the subtree rooted at root looking for ops.compare's
// insertion point. It returns the (possibly new) subtree root, whether
// the subtree's height grew, and whether a node was actually inserted
// (false for a duplicate key, which is a silent no-op).
func (p *page) avlInsert(root uint16, ops avlOps) (newRoot uint16, grew, inserted bool) {
	if root == 0 {
		id := ops.create()
		return id, true, true
	}

	cmp := ops.compare(root)
	if cmp == 0 {
		return root, false, false
	}

	var delta int8
	if cmp < 0 {
		left := p.getLeft(root)
		newLeft, childGrew, ins := p.avlInsert(left, ops)
		p.setLeft(root, newLeft)
		if !ins {
			return root, false, false
		}
		if !childGrew {
			return root, false, true
		}
		delta = -1
	} else {
		right := p.getRight(root)
		newRight, childGrew, ins := p.avlInsert(right, ops)
		p.setRight(root, newRight)
		if !ins {
			return root, false, false
		}
		if !childGrew {
			return root, false, true
		}
		delta = 1
	}

	oldBF := bfFromBalance(p.getBalance(root))
	newBF := oldBF + delta
	if newBF == -2 {
		nr, _ := p.rotateLeftHeavy(root)
		return nr, false, true
	}
	if newBF == 2 {
		nr, _ := p.rotateRightHeavy(root)
		return nr, false, true
	}
	p.setBalance(root, balanceFromBF(newBF))
	return root, oldBF == 0, true
}

// avlRemove walks the subtree rooted at root looking for the node
// matching cmp (cmp(id) should return <0/0/>0 comparing the sought key
// against node id's key). It returns the new subtree root, whether the
// subtree's height shrank, and whether a node was removed (false for a
// missing key, a no-op).
func (p *page) avlRemove(root uint16, cmp func(id uint16) int) (newRoot uint16, shrank, removed bool) {
	if root == 0 {
		return 0, false, false
	}

	c := cmp(root)
	switch {
	case c < 0:
		left := p.getLeft(root)
		newLeft, childShrank, rem := p.avlRemove(left, cmp)
		p.setLeft(root, newLeft)
		if !rem {
			return root, false, false
		}
		if !childShrank {
			return root, false, true
		}
		nr, sh := p.shrinkLeft(root)
		return nr, sh, true
	case c > 0:
		right := p.getRight(root)
		newRight, childShrank, rem := p.avlRemove(right, cmp)
		p.setRight(root, newRight)
		if !rem {
			return root, false, false
		}
		if !childShrank {
			return root, false, true
		}
		nr, sh := p.shrinkRight(root)
		return nr, sh, true
	}

	// root is the node to delete.
	left := p.getLeft(root)
	right := p.getRight(root)
	switch {
	case left == 0:
		p.freeNode(root)
		return right, true, true
	case right == 0:
		p.freeNode(root)
		return left, true, true
	}

	predID, newLeft, leftShrank := p.removeMax(left)
	p.copyNodePayload(predID, root)
	p.setLeft(root, newLeft)
	p.freeNode(predID)
	if !leftShrank {
		return root, false, true
	}
	nr, sh := p.shrinkLeft(root)
	return nr, sh, true
}

// removeMax detaches and returns the id of the rightmost (maximum-key)
// node in the subtree rooted at root, along with the subtree's new
// root and whether its height shrank. The returned node is not yet
// freed; the caller still owns its allocation (avlRemove copies its
// payload elsewhere before freeing it, since it becomes the in-order
// predecessor replacing a two-child delete target).
func (p *page) removeMax(root uint16) (maxID, newRoot uint16, shrank bool) {
	right := p.getRight(root)
	if right == 0 {
		return root, p.getLeft(root), true
	}
	maxID, newRight, childShrank := p.removeMax(right)
	p.setRight(root, newRight)
	if !childShrank {
		return maxID, root, false
	}
	nr, sh := p.shrinkRight(root)
	return maxID, nr, sh
}

// shrinkLeft/shrinkRight apply a one-level height decrease on the
// named side, rebalancing root if needed, and report whether root's
// own height decreased as a result.
func (p *page) shrinkLeft(root uint16) (uint16, bool) {
	oldBF := bfFromBalance(p.getBalance(root))
	newBF := oldBF + 1
	if newBF == 2 {
		nr, unchanged := p.rotateRightHeavy(root)
		return nr, !unchanged
	}
	p.setBalance(root, balanceFromBF(newBF))
	return root, oldBF == -1
}

func (p *page) shrinkRight(root uint16) (uint16, bool) {
	oldBF := bfFromBalance(p.getBalance(root))
	newBF := oldBF - 1
	if newBF == -2 {
		nr, unchanged := p.rotateLeftHeavy(root)
		return nr, !unchanged
	}
	p.setBalance(root, balanceFromBF(newBF))
	return root, oldBF == 1
}

// copyNodePayload copies src's record bytes (and child pointer, for
// parent pages) into dst's slot, leaving dst's own links and balance
// untouched. Used when a two-child delete promotes its in-order
// predecessor's key up into the deleted node's slot.
func (p *page) copyNodePayload(src, dst uint16) {
	copy(p.data[p.recordOffset(dst):p.recordOffset(dst)+p.recSize], p.data[p.recordOffset(src):p.recordOffset(src)+p.recSize])
	if p.parentFlag {
		p.setChildPtr(dst, p.getChildPtr(src))
	}
}
