package index

import (
	"fmt"

	"pagedb/internal/storage/buffer"
	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/record"
)

// BTree is an ordered map from a packed fixed-width key to a RowID,
// descending through internal nodes addressed by child PageID. The tree's
// root id is owned by the caller (the catalog's IndexInfo persists it in
// the index-metadata page) — Create/Open just track it in memory.
type BTree struct {
	pool      *buffer.Pool
	keySchema *KeySchema
	width     Width
	maxSize   int
	rootID    disk.PageID
}

// Create allocates a fresh, empty leaf root and returns a ready BTree.
func Create(pool *buffer.Pool, keySchema *KeySchema) (*BTree, error) {
	width, err := WidthFor(keySchema.PackedSize())
	if err != nil {
		return nil, fmt.Errorf("index: create: %w", err)
	}
	maxSize := MaxNodeSize(width)
	id, frame, err := pool.NewPage()
	if err != nil {
		return nil, fmt.Errorf("index: create: %w", err)
	}
	if frame == nil {
		return nil, fmt.Errorf("index: create: buffer pool exhausted")
	}
	InitNode(frame.Data(), width, true, maxSize, disk.InvalidPageID)
	if err := pool.UnpinPage(id, true); err != nil {
		return nil, err
	}
	return &BTree{pool: pool, keySchema: keySchema, width: width, maxSize: maxSize, rootID: id}, nil
}

// Open attaches a BTree handle to an already-persisted tree.
func Open(pool *buffer.Pool, keySchema *KeySchema, width Width, rootID disk.PageID) *BTree {
	return &BTree{pool: pool, keySchema: keySchema, width: width, maxSize: MaxNodeSize(width), rootID: rootID}
}

// RootID returns the tree's current root page id — callers must re-persist
// this after any Insert/Remove that might have split or collapsed the root.
func (t *BTree) RootID() disk.PageID { return t.rootID }

// Width returns the tree's fixed key width.
func (t *BTree) Width() Width { return t.width }

func (t *BTree) fetchNode(id disk.PageID) (*buffer.Frame, *Node, error) {
	frame, err := t.pool.FetchPage(id)
	if err != nil {
		return nil, nil, fmt.Errorf("index: fetch node %d: %w", id, err)
	}
	if frame == nil {
		return nil, nil, fmt.Errorf("index: fetch node %d: buffer pool exhausted", id)
	}
	return frame, WrapNode(frame.Data(), t.width), nil
}

// descend walks from the root to the leaf owning key, returning the path
// of ancestor ids (root..parent-of-leaf, possibly empty) and the leaf id.
// No pins are held past the call.
func (t *BTree) descend(key []byte) ([]disk.PageID, disk.PageID, error) {
	var path []disk.PageID
	id := t.rootID
	for {
		frame, node, err := t.fetchNode(id)
		if err != nil {
			return nil, disk.InvalidPageID, err
		}
		if node.IsLeaf() {
			if err := t.pool.UnpinPage(id, false); err != nil {
				return nil, disk.InvalidPageID, err
			}
			return path, id, nil
		}
		idx, _ := node.findIndex(key, t.keySchema, false)
		child := node.ChildAt(idx)
		if err := t.pool.UnpinPage(id, false); err != nil {
			return nil, disk.InvalidPageID, err
		}
		path = append(path, id)
		id = child
		_ = frame
	}
}

// GetValue descends to the owning leaf and returns the matching RowID, if
// present. An empty tree (invalid root id) holds no keys.
func (t *BTree) GetValue(key []byte) (record.RowID, bool, error) {
	if t.rootID == disk.InvalidPageID {
		return record.RowID{}, false, nil
	}
	_, leafID, err := t.descend(key)
	if err != nil {
		return record.RowID{}, false, err
	}
	_, node, err := t.fetchNode(leafID)
	if err != nil {
		return record.RowID{}, false, err
	}
	idx, found := node.findIndex(key, t.keySchema, true)
	if err := t.pool.UnpinPage(leafID, false); err != nil {
		return record.RowID{}, false, err
	}
	if !found {
		return record.RowID{}, false, nil
	}
	return node.RowAt(idx), true, nil
}

// Insert adds (key, value) to the tree. Returns false if key already
// exists — keys are unique by construction. An empty tree (invalid root
// id) first gets a fresh leaf root.
func (t *BTree) Insert(key []byte, value record.RowID) (bool, error) {
	if t.rootID == disk.InvalidPageID {
		id, frame, err := t.pool.NewPage()
		if err != nil {
			return false, err
		}
		if frame == nil {
			return false, fmt.Errorf("index: insert: buffer pool exhausted")
		}
		InitNode(frame.Data(), t.width, true, t.maxSize, disk.InvalidPageID)
		if err := t.pool.UnpinPage(id, true); err != nil {
			return false, err
		}
		t.rootID = id
	}
	path, leafID, err := t.descend(key)
	if err != nil {
		return false, err
	}
	frame, node, err := t.fetchNode(leafID)
	if err != nil {
		return false, err
	}
	idx, found := node.findIndex(key, t.keySchema, true)
	if found {
		if err := t.pool.UnpinPage(leafID, false); err != nil {
			return false, err
		}
		return false, nil
	}

	if node.Size() < node.MaxSize() {
		node.insertEntryAt(idx, key, value.Pack())
		if err := t.pool.UnpinPage(leafID, true); err != nil {
			return false, err
		}
		return true, nil
	}
	_ = frame

	// Overflow: collect maxSize+1 entries including the new one, split.
	keys, vals := t.collectWithInsert(node, idx, key, value.Pack())
	if err := t.pool.UnpinPage(leafID, true); err != nil {
		return false, err
	}

	moveCount := (len(keys) + 1) / 2 // "half, rounded up" moves to the sibling
	splitAt := len(keys) - moveCount

	newID, newFrame, err := t.pool.NewPage()
	if err != nil {
		return false, err
	}
	if newFrame == nil {
		return false, fmt.Errorf("index: insert: buffer pool exhausted")
	}
	newNode := InitNode(newFrame.Data(), t.width, true, t.maxSize, disk.InvalidPageID)

	_, leftNode, err := t.fetchNode(leafID)
	if err != nil {
		return false, err
	}
	*leftNode = *InitNode(leftNode.buf, t.width, true, t.maxSize, leftNode.Parent())
	for i := 0; i < splitAt; i++ {
		leftNode.insertEntryAt(i, keys[i], vals[i])
	}
	for i := splitAt; i < len(keys); i++ {
		newNode.insertEntryAt(i-splitAt, keys[i], vals[i])
	}

	oldNext := leftNode.NextLeaf()
	leftNode.SetNextLeaf(newID)
	newNode.SetNextLeaf(oldNext)
	newNode.SetParent(leftNode.Parent())

	if err := t.pool.UnpinPage(leafID, true); err != nil {
		return false, err
	}
	if err := t.pool.UnpinPage(newID, true); err != nil {
		return false, err
	}

	sep := keys[splitAt]
	if err := t.insertIntoParent(path, leafID, sep, newID); err != nil {
		return false, err
	}
	return true, nil
}

// collectWithInsert returns node's existing (key,value) pairs with a new
// one inserted at idx, as parallel slices, without mutating node.
func (t *BTree) collectWithInsert(node *Node, idx int, key []byte, value [8]byte) ([][]byte, [][8]byte) {
	size := node.Size()
	keys := make([][]byte, 0, size+1)
	vals := make([][8]byte, 0, size+1)
	for i := 0; i < idx; i++ {
		keys = append(keys, append([]byte(nil), node.KeyAt(i)...))
		vals = append(vals, node.ValueAt(i))
	}
	keys = append(keys, key)
	vals = append(vals, value)
	for i := idx; i < size; i++ {
		keys = append(keys, append([]byte(nil), node.KeyAt(i)...))
		vals = append(vals, node.ValueAt(i))
	}
	return keys, vals
}

// insertIntoParent links a freshly split pair (left, right) into their
// parent (the last element of path), recursing on parent overflow. An
// empty path means left was the root: a new root is created.
func (t *BTree) insertIntoParent(path []disk.PageID, left disk.PageID, sepKey []byte, right disk.PageID) error {
	if len(path) == 0 {
		id, frame, err := t.pool.NewPage()
		if err != nil {
			return err
		}
		if frame == nil {
			return fmt.Errorf("index: insert into parent: buffer pool exhausted")
		}
		root := InitNode(frame.Data(), t.width, false, t.maxSize, disk.InvalidPageID)
		dummy := make([]byte, t.width)
		root.insertEntryAt(0, dummy, packChild(left))
		root.insertEntryAt(1, sepKey, packChild(right))
		if err := t.pool.UnpinPage(id, true); err != nil {
			return err
		}
		if err := t.setParent(left, id); err != nil {
			return err
		}
		if err := t.setParent(right, id); err != nil {
			return err
		}
		t.rootID = id
		return nil
	}

	parentID := path[len(path)-1]
	frame, parent, err := t.fetchNode(parentID)
	if err != nil {
		return err
	}
	childIdx := t.findChildIndex(parent, left)
	insertAt := childIdx + 1

	if parent.Size() < parent.MaxSize() {
		parent.insertEntryAt(insertAt, sepKey, packChild(right))
		if err := t.pool.UnpinPage(parentID, true); err != nil {
			return err
		}
		return t.setParent(right, parentID)
	}
	_ = frame

	keys, vals := t.collectWithInsert(parent, insertAt, sepKey, packChild(right))
	if err := t.pool.UnpinPage(parentID, true); err != nil {
		return err
	}

	total := len(keys)
	splitAt := total / 2
	promotedKey := keys[splitAt]
	promotedChild := vals[splitAt]

	newID, newFrame, err := t.pool.NewPage()
	if err != nil {
		return err
	}
	if newFrame == nil {
		return fmt.Errorf("index: insert into parent: buffer pool exhausted")
	}
	newNode := InitNode(newFrame.Data(), t.width, false, t.maxSize, disk.InvalidPageID)

	_, leftNode, err := t.fetchNode(parentID)
	if err != nil {
		return err
	}
	grandparent := leftNode.Parent()
	*leftNode = *InitNode(leftNode.buf, t.width, false, t.maxSize, grandparent)
	for i := 0; i < splitAt; i++ {
		leftNode.insertEntryAt(i, keys[i], vals[i])
	}

	dummy := make([]byte, t.width)
	newNode.insertEntryAt(0, dummy, promotedChild)
	for i := splitAt + 1; i < total; i++ {
		newNode.insertEntryAt(i-splitAt, keys[i], vals[i])
	}
	newNode.SetParent(grandparent)

	if err := t.pool.UnpinPage(parentID, true); err != nil {
		return err
	}
	if err := t.pool.UnpinPage(newID, true); err != nil {
		return err
	}

	if err := t.reparentChildren(newID); err != nil {
		return err
	}

	return t.insertIntoParent(path[:len(path)-1], parentID, promotedKey, newID)
}

// findChildIndex locates the slot of parent whose child pointer is id.
func (t *BTree) findChildIndex(parent *Node, id disk.PageID) int {
	for i := 0; i < parent.Size(); i++ {
		if parent.ChildAt(i) == id {
			return i
		}
	}
	return -1
}

// setParent rewrites child's stored parent pointer.
func (t *BTree) setParent(child disk.PageID, parent disk.PageID) error {
	_, node, err := t.fetchNode(child)
	if err != nil {
		return err
	}
	node.SetParent(parent)
	return t.pool.UnpinPage(child, true)
}

// reparentChildren fixes up the Parent pointer of every child referenced
// by the internal node at id, after those children moved to it in a split.
func (t *BTree) reparentChildren(id disk.PageID) error {
	_, node, err := t.fetchNode(id)
	if err != nil {
		return err
	}
	children := make([]disk.PageID, node.Size())
	for i := range children {
		children[i] = node.ChildAt(i)
	}
	if err := t.pool.UnpinPage(id, false); err != nil {
		return err
	}
	for _, c := range children {
		if err := t.setParent(c, id); err != nil {
			return err
		}
	}
	return nil
}

func packChild(id disk.PageID) [8]byte {
	return record.RowID{Page: id, Slot: 0}.Pack()
}
