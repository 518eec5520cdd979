package catalog

import (
	"fmt"

	"pagedb/internal/storage/heap"
	"pagedb/internal/storage/record"
)

// Insert is the only path that adds a row to a table. It checks every
// primary-key and UNIQUE index for a conflict before touching the heap,
// then maintains every index once the heap insert succeeds.
func (c *Catalog) Insert(tableName string, row record.Row) (record.RowID, Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tablesByName[tableName]
	if !ok {
		return record.RowID{}, StatusTableNotExist, nil
	}
	if len(row.Marshal()) > heap.MaxTupleSize {
		return record.RowID{}, StatusTupleTooLarge, nil
	}

	for _, ix := range t.Indexes {
		key, err := ix.KeySchema.Encode(ix.keyRowFor(row), ix.Tree.Width())
		if err != nil {
			return record.RowID{}, StatusFailed, err
		}
		_, found, err := ix.Tree.GetValue(key)
		if err != nil {
			return record.RowID{}, StatusFailed, err
		}
		if found {
			if ix.IsPrimary {
				return record.RowID{}, StatusPKDuplicate, nil
			}
			return record.RowID{}, StatusUniKeyDuplicate, nil
		}
	}

	rid, err := t.Heap.InsertTuple(row)
	if err != nil {
		return record.RowID{}, StatusFailed, err
	}

	for _, ix := range t.Indexes {
		key, err := ix.KeySchema.Encode(ix.keyRowFor(row), ix.Tree.Width())
		if err != nil {
			return rid, StatusFailed, err
		}
		if _, err := ix.Tree.Insert(key, rid); err != nil {
			return rid, StatusFailed, err
		}
		if err := c.persistIndexLocked(ix); err != nil {
			return rid, StatusFailed, err
		}
	}
	return rid, StatusSuccess, nil
}

// Update is the only path that replaces a row. oldRow must carry a valid
// RowID (as read back from a scan); newRow is checked for a key conflict
// only on the index key-maps whose projected value actually changes, but
// every index is deleted-and-reinserted regardless — see the catalog's
// UPDATE design note.
func (c *Catalog) Update(tableName string, oldRow, newRow record.Row) (record.RowID, Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tablesByName[tableName]
	if !ok {
		return record.RowID{}, StatusTableNotExist, nil
	}
	if len(newRow.Marshal()) > heap.MaxTupleSize {
		return record.RowID{}, StatusTupleTooLarge, nil
	}

	for _, ix := range t.Indexes {
		oldKey, err := ix.KeySchema.Encode(ix.keyRowFor(oldRow), ix.Tree.Width())
		if err != nil {
			return record.RowID{}, StatusFailed, err
		}
		newKey, err := ix.KeySchema.Encode(ix.keyRowFor(newRow), ix.Tree.Width())
		if err != nil {
			return record.RowID{}, StatusFailed, err
		}
		if string(oldKey) == string(newKey) {
			continue
		}
		_, found, err := ix.Tree.GetValue(newKey)
		if err != nil {
			return record.RowID{}, StatusFailed, err
		}
		if found {
			if ix.IsPrimary {
				return record.RowID{}, StatusPKDuplicate, nil
			}
			return record.RowID{}, StatusUniKeyDuplicate, nil
		}
	}

	newRID, hstatus, err := t.Heap.UpdateTuple(newRow, oldRow.RID)
	if err != nil {
		return record.RowID{}, StatusFailed, err
	}
	if hstatus != heap.UpdateOK {
		return record.RowID{}, StatusFailed, fmt.Errorf("catalog: update %q: heap reported status %d for rid %v", tableName, hstatus, oldRow.RID)
	}

	for _, ix := range t.Indexes {
		oldKey, err := ix.KeySchema.Encode(ix.keyRowFor(oldRow), ix.Tree.Width())
		if err != nil {
			return newRID, StatusFailed, err
		}
		if _, err := ix.Tree.Remove(oldKey); err != nil {
			return newRID, StatusFailed, err
		}
		newKey, err := ix.KeySchema.Encode(ix.keyRowFor(newRow), ix.Tree.Width())
		if err != nil {
			return newRID, StatusFailed, err
		}
		if _, err := ix.Tree.Insert(newKey, newRID); err != nil {
			return newRID, StatusFailed, err
		}
		if err := c.persistIndexLocked(ix); err != nil {
			return newRID, StatusFailed, err
		}
	}
	return newRID, StatusSuccess, nil
}

// Delete is the only path that removes a row. row must carry a valid
// RowID.
func (c *Catalog) Delete(tableName string, row record.Row) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tablesByName[tableName]
	if !ok {
		return StatusTableNotExist, nil
	}

	for _, ix := range t.Indexes {
		key, err := ix.KeySchema.Encode(ix.keyRowFor(row), ix.Tree.Width())
		if err != nil {
			return StatusFailed, err
		}
		if _, err := ix.Tree.Remove(key); err != nil {
			return StatusFailed, err
		}
		if err := c.persistIndexLocked(ix); err != nil {
			return StatusFailed, err
		}
	}

	if _, err := t.Heap.MarkDelete(row.RID); err != nil {
		return StatusFailed, err
	}
	if err := t.Heap.ApplyDelete(row.RID); err != nil {
		return StatusFailed, err
	}
	return StatusSuccess, nil
}
