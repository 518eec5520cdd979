package index

import "pagedb/internal/storage/disk"

// Remove deletes key from the tree if present, rebalancing via
// coalesce-or-redistribute on underflow. Returns false if key is absent.
func (t *BTree) Remove(key []byte) (bool, error) {
	path, leafID, err := t.descend(key)
	if err != nil {
		return false, err
	}
	_, node, err := t.fetchNode(leafID)
	if err != nil {
		return false, err
	}
	idx, found := node.findIndex(key, t.keySchema, true)
	if !found {
		if err := t.pool.UnpinPage(leafID, false); err != nil {
			return false, err
		}
		return false, nil
	}
	node.removeEntryAt(idx)
	if err := t.pool.UnpinPage(leafID, true); err != nil {
		return false, err
	}

	if leafID == t.rootID {
		if node.Size() == 0 {
			t.rootID = disk.InvalidPageID
			if _, err := t.pool.DeletePage(leafID); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	if node.Size() >= node.MinSize() {
		return true, nil
	}
	return true, t.coalesceOrRedistribute(path, leafID)
}

// coalesceOrRedistribute repairs an underflowed node at id whose parent
// chain is path (path[len-1] is id's parent). It picks the left sibling
// when one exists, else the right, merges if the combined size fits one
// node, else redistributes a single entry from the fuller side.
func (t *BTree) coalesceOrRedistribute(path []disk.PageID, id disk.PageID) error {
	if len(path) == 0 {
		return t.shrinkRoot(id)
	}

	parentID := path[len(path)-1]
	_, parent, err := t.fetchNode(parentID)
	if err != nil {
		return err
	}
	childIdx := t.findChildIndex(parent, id)
	useLeft := childIdx > 0
	var siblingIdx int
	if useLeft {
		siblingIdx = childIdx - 1
	} else {
		siblingIdx = childIdx + 1
	}
	siblingID := parent.ChildAt(siblingIdx)
	if err := t.pool.UnpinPage(parentID, false); err != nil {
		return err
	}

	_, node, err := t.fetchNode(id)
	if err != nil {
		return err
	}
	_, sibling, err := t.fetchNode(siblingID)
	if err != nil {
		return err
	}
	combined := node.Size() + sibling.Size()
	isLeaf := node.IsLeaf()
	if err := t.pool.UnpinPage(id, false); err != nil {
		return err
	}
	if err := t.pool.UnpinPage(siblingID, false); err != nil {
		return err
	}

	if combined <= t.maxSize {
		var leftID, rightID disk.PageID
		if useLeft {
			leftID, rightID = siblingID, id
		} else {
			leftID, rightID = id, siblingID
		}
		if isLeaf {
			return t.mergeLeaves(path, parentID, leftID, rightID)
		}
		return t.mergeInternal(path, parentID, leftID, rightID)
	}

	if isLeaf {
		return t.redistributeLeaf(parentID, id, siblingID, useLeft)
	}
	return t.redistributeInternal(parentID, id, siblingID, useLeft)
}

// shrinkRoot handles an underflowed root: an internal root with a single
// child is replaced by that child; a leaf root is left below min-size (the
// spec allows this) unless it has already been emptied by Remove itself.
func (t *BTree) shrinkRoot(id disk.PageID) error {
	_, node, err := t.fetchNode(id)
	if err != nil {
		return err
	}
	if node.IsLeaf() || node.Size() != 1 {
		return t.pool.UnpinPage(id, false)
	}
	child := node.ChildAt(0)
	if err := t.pool.UnpinPage(id, false); err != nil {
		return err
	}
	if err := t.setParent(child, disk.InvalidPageID); err != nil {
		return err
	}
	t.rootID = child
	_, err = t.pool.DeletePage(id)
	return err
}

// mergeLeaves appends right's entries onto left, relinks the leaf chain,
// frees right, and removes its separator from the parent.
func (t *BTree) mergeLeaves(path []disk.PageID, parentID, leftID, rightID disk.PageID) error {
	_, left, err := t.fetchNode(leftID)
	if err != nil {
		return err
	}
	_, right, err := t.fetchNode(rightID)
	if err != nil {
		return err
	}
	base := left.Size()
	for i := 0; i < right.Size(); i++ {
		left.insertEntryAt(base+i, right.KeyAt(i), right.ValueAt(i))
	}
	left.SetNextLeaf(right.NextLeaf())
	if err := t.pool.UnpinPage(leftID, true); err != nil {
		return err
	}
	if err := t.pool.UnpinPage(rightID, false); err != nil {
		return err
	}
	if _, err := t.pool.DeletePage(rightID); err != nil {
		return err
	}
	return t.removeSeparatorFor(path, parentID, rightID)
}

// mergeInternal brings down the parent separator between left and right as
// the key for right's former dummy-slot child, appends right's remaining
// entries to left, reparents right's children, frees right, and removes
// the separator from the parent.
func (t *BTree) mergeInternal(path []disk.PageID, parentID, leftID, rightID disk.PageID) error {
	_, parent, err := t.fetchNode(parentID)
	if err != nil {
		return err
	}
	sepIdx := t.findChildIndex(parent, rightID)
	sepKey := append([]byte(nil), parent.KeyAt(sepIdx)...)
	if err := t.pool.UnpinPage(parentID, false); err != nil {
		return err
	}

	_, left, err := t.fetchNode(leftID)
	if err != nil {
		return err
	}
	_, right, err := t.fetchNode(rightID)
	if err != nil {
		return err
	}
	base := left.Size()
	left.insertEntryAt(base, sepKey, right.ValueAt(0))
	for i := 1; i < right.Size(); i++ {
		left.insertEntryAt(base+i, right.KeyAt(i), right.ValueAt(i))
	}
	if err := t.pool.UnpinPage(leftID, true); err != nil {
		return err
	}
	if err := t.pool.UnpinPage(rightID, false); err != nil {
		return err
	}
	if err := t.reparentChildren(leftID); err != nil {
		return err
	}
	if _, err := t.pool.DeletePage(rightID); err != nil {
		return err
	}
	return t.removeSeparatorFor(path, parentID, rightID)
}

// removeSeparatorFor removes the parent entry that routed to rightID, then
// recurses if the parent itself now underflows (unless it is the root).
func (t *BTree) removeSeparatorFor(path []disk.PageID, parentID, rightID disk.PageID) error {
	_, parent, err := t.fetchNode(parentID)
	if err != nil {
		return err
	}
	idx := t.findChildIndex(parent, rightID)
	parent.removeEntryAt(idx)
	size := parent.Size()
	if err := t.pool.UnpinPage(parentID, true); err != nil {
		return err
	}
	if parentID == t.rootID {
		return t.shrinkRoot(parentID)
	}
	if size >= parent.MinSize() {
		return nil
	}
	return t.coalesceOrRedistribute(path[:len(path)-1], parentID)
}

// redistributeLeaf borrows a single entry from the fuller sibling, from
// the sibling's edge nearest node, and fixes up the parent's separator.
func (t *BTree) redistributeLeaf(parentID, id, siblingID disk.PageID, useLeft bool) error {
	_, node, err := t.fetchNode(id)
	if err != nil {
		return err
	}
	_, sibling, err := t.fetchNode(siblingID)
	if err != nil {
		return err
	}
	_, parent, err := t.fetchNode(parentID)
	if err != nil {
		return err
	}

	if useLeft {
		last := sibling.Size() - 1
		k, v := append([]byte(nil), sibling.KeyAt(last)...), sibling.ValueAt(last)
		sibling.removeEntryAt(last)
		node.insertEntryAt(0, k, v)
		sepIdx := t.findChildIndex(parent, id)
		parent.setKeyAt(sepIdx, k)
	} else {
		k, v := append([]byte(nil), sibling.KeyAt(0)...), sibling.ValueAt(0)
		sibling.removeEntryAt(0)
		node.insertEntryAt(node.Size(), k, v)
		sepIdx := t.findChildIndex(parent, siblingID)
		parent.setKeyAt(sepIdx, append([]byte(nil), sibling.KeyAt(0)...))
	}

	if err := t.pool.UnpinPage(id, true); err != nil {
		return err
	}
	if err := t.pool.UnpinPage(siblingID, true); err != nil {
		return err
	}
	return t.pool.UnpinPage(parentID, true)
}

// redistributeInternal rotates one child through the parent separator:
// borrowing from the left sibling moves its last child to become node's
// new leftmost child, with the old parent separator descending to mark
// the boundary between the borrowed child and node's former children, and
// the sibling's own separator for that child rising to replace it in the
// parent (symmetrically for the right sibling).
func (t *BTree) redistributeInternal(parentID, id, siblingID disk.PageID, useLeft bool) error {
	_, node, err := t.fetchNode(id)
	if err != nil {
		return err
	}
	_, sibling, err := t.fetchNode(siblingID)
	if err != nil {
		return err
	}
	_, parent, err := t.fetchNode(parentID)
	if err != nil {
		return err
	}
	dummy := make([]byte, t.width)

	var borrowedChild disk.PageID

	if useLeft {
		last := sibling.Size() - 1
		borrowedChild = sibling.ChildAt(last)
		borrowedKey := append([]byte(nil), sibling.KeyAt(last)...)
		sepIdx := t.findChildIndex(parent, id)
		oldSep := append([]byte(nil), parent.KeyAt(sepIdx)...)

		sibling.removeEntryAt(last)

		// node's old slot 0 (dummy, D0) shifts to slot 1 under oldSep;
		// slot 0 becomes the newly borrowed leftmost child.
		node.insertEntryAt(1, oldSep, node.ValueAt(0))
		node.setKeyAt(0, dummy)
		node.setValueAt(0, packChild(borrowedChild))

		parent.setKeyAt(sepIdx, borrowedKey)
	} else {
		borrowedChild = sibling.ChildAt(0)
		sepIdx := t.findChildIndex(parent, siblingID)
		oldSep := append([]byte(nil), parent.KeyAt(sepIdx)...)
		promotedKey := append([]byte(nil), sibling.KeyAt(1)...)
		newSiblingSlot0Child := sibling.ChildAt(1)

		sibling.setValueAt(0, packChild(newSiblingSlot0Child))
		sibling.removeEntryAt(1)

		node.insertEntryAt(node.Size(), oldSep, packChild(borrowedChild))

		parent.setKeyAt(sepIdx, promotedKey)
	}

	if err := t.pool.UnpinPage(id, true); err != nil {
		return err
	}
	if err := t.pool.UnpinPage(siblingID, true); err != nil {
		return err
	}
	if err := t.pool.UnpinPage(parentID, true); err != nil {
		return err
	}
	return t.setParent(borrowedChild, id)
}
