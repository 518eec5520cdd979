package index

import "pagedb/internal/storage/disk"

// Destroy frees every page belonging to the tree, root to leaves. The tree
// must not be used afterwards. Used by the catalog when dropping an index
// or the table that owns it.
func (t *BTree) Destroy() error {
	if t.rootID == disk.InvalidPageID {
		return nil
	}
	if err := t.destroyNode(t.rootID); err != nil {
		return err
	}
	t.rootID = disk.InvalidPageID
	return nil
}

func (t *BTree) destroyNode(id disk.PageID) error {
	_, node, err := t.fetchNode(id)
	if err != nil {
		return err
	}
	isLeaf := node.IsLeaf()
	var children []disk.PageID
	if !isLeaf {
		children = make([]disk.PageID, node.Size())
		for i := range children {
			children[i] = node.ChildAt(i)
		}
	}
	if err := t.pool.UnpinPage(id, false); err != nil {
		return err
	}
	for _, c := range children {
		if err := t.destroyNode(c); err != nil {
			return err
		}
	}
	_, err = t.pool.DeletePage(id)
	return err
}
