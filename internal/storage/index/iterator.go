package index

import (
	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/record"
)

// Iterator is a forward-only, single-pass cursor over a leaf chain. It
// holds no pin between calls: Key, Value and Next each fetch the current
// leaf and unpin it before returning.
//
// End() is not a sentinel tied to a particular leaf's identity: it is
// simply the exhausted state reachable by calling Next repeatedly from
// Begin() until it returns false. Comparing an iterator against End() is
// therefore always a comparison against "no more entries", never against
// a specific page.
type Iterator struct {
	tree      *BTree
	leafID    disk.PageID
	idx       int
	exhausted bool
}

// Begin positions an iterator at the first entry of the leftmost leaf.
func (t *BTree) Begin() (*Iterator, error) {
	id := t.rootID
	if id == disk.InvalidPageID {
		return &Iterator{tree: t, exhausted: true}, nil
	}
	for {
		_, node, err := t.fetchNode(id)
		if err != nil {
			return nil, err
		}
		isLeaf := node.IsLeaf()
		child := disk.PageID(0)
		if !isLeaf {
			child = node.ChildAt(0)
		}
		if err := t.pool.UnpinPage(id, false); err != nil {
			return nil, err
		}
		if isLeaf {
			break
		}
		id = child
	}
	return t.iteratorAt(id, 0)
}

// BeginAt positions an iterator at the first entry whose key is >= key.
func (t *BTree) BeginAt(key []byte) (*Iterator, error) {
	if t.rootID == disk.InvalidPageID {
		return &Iterator{tree: t, exhausted: true}, nil
	}
	_, leafID, err := t.descend(key)
	if err != nil {
		return nil, err
	}
	_, node, err := t.fetchNode(leafID)
	if err != nil {
		return nil, err
	}
	idx, _ := node.findIndex(key, t.keySchema, true)
	if err := t.pool.UnpinPage(leafID, false); err != nil {
		return nil, err
	}
	return t.iteratorAt(leafID, idx)
}

// End returns the exhausted-iterator sentinel.
func (t *BTree) End() *Iterator { return &Iterator{tree: t, exhausted: true} }

// iteratorAt builds an iterator at (leafID, idx), normalizing to the
// exhausted state if idx falls off the end of the leaf and the chain has
// nothing further.
func (t *BTree) iteratorAt(leafID disk.PageID, idx int) (*Iterator, error) {
	it := &Iterator{tree: t, leafID: leafID, idx: idx}
	if err := it.normalize(); err != nil {
		return nil, err
	}
	return it, nil
}

// normalize advances past an exhausted leaf until it finds a live entry or
// the chain runs out.
func (it *Iterator) normalize() error {
	for {
		if it.exhausted {
			return nil
		}
		_, node, err := it.tree.fetchNode(it.leafID)
		if err != nil {
			return err
		}
		size := node.Size()
		next := node.NextLeaf()
		if err := it.tree.pool.UnpinPage(it.leafID, false); err != nil {
			return err
		}
		if it.idx < size {
			return nil
		}
		if next == disk.InvalidPageID {
			it.exhausted = true
			return nil
		}
		it.leafID = next
		it.idx = 0
	}
}

// Valid reports whether the iterator currently sits on an entry.
func (it *Iterator) Valid() bool { return !it.exhausted }

// Key returns the packed key at the current position.
func (it *Iterator) Key() ([]byte, error) {
	_, node, err := it.tree.fetchNode(it.leafID)
	if err != nil {
		return nil, err
	}
	k := append([]byte(nil), node.KeyAt(it.idx)...)
	return k, it.tree.pool.UnpinPage(it.leafID, false)
}

// Value returns the RowID at the current position.
func (it *Iterator) Value() (record.RowID, error) {
	_, node, err := it.tree.fetchNode(it.leafID)
	if err != nil {
		return record.RowID{}, err
	}
	v := node.RowAt(it.idx)
	return v, it.tree.pool.UnpinPage(it.leafID, false)
}

// Next advances the iterator by one entry, crossing leaf boundaries as
// needed, reaching End() when the chain is exhausted.
func (it *Iterator) Next() error {
	if it.exhausted {
		return nil
	}
	it.idx++
	return it.normalize()
}
