package heap

import (
	"fmt"

	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/record"
)

// Iterator yields rows from a TableHeap in (page order, slot order). It is
// forward-only and single-pass. It holds no pin between calls: Next fetches
// the page it examines and unpins it before returning, and Row fetches the
// page again through GetTuple. Equality between two
// iterators is defined by (page, RowId) — exposed via RID, not a
// comparable struct, since a finite forward cursor has no use for restart
// from an arbitrary snapshot.
type Iterator struct {
	heap    *TableHeap
	schema  *record.Schema
	pageID  disk.PageID
	slot    int
	done    bool
	lastErr error
}

// NewIterator positions a fresh iterator before the heap's first live
// tuple. Call Next to advance to it.
func NewIterator(h *TableHeap, schema *record.Schema) *Iterator {
	return &Iterator{heap: h, schema: schema, pageID: h.firstPageID, slot: -1}
}

// Next advances to the next live tuple, returning false once the chain is
// exhausted (or a fatal error occurred — check Err).
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	for it.pageID != disk.InvalidPageID {
		frame, err := it.heap.pool.FetchPage(it.pageID)
		if err != nil {
			it.lastErr = fmt.Errorf("heap: iterator: %w", err)
			it.done = true
			return false
		}
		if frame == nil {
			it.lastErr = fmt.Errorf("heap: iterator: buffer pool exhausted")
			it.done = true
			return false
		}
		page := Wrap(frame.Data())

		var next int
		if it.slot < 0 {
			next = page.FirstTuple()
		} else {
			next = page.NextTuple(it.slot)
		}

		if next >= 0 {
			it.slot = next
			if err := it.heap.pool.UnpinPage(it.pageID, false); err != nil {
				it.lastErr = err
				it.done = true
				return false
			}
			return true
		}

		nextPageID := page.NextPageID()
		if err := it.heap.pool.UnpinPage(it.pageID, false); err != nil {
			it.lastErr = err
			it.done = true
			return false
		}
		it.pageID = nextPageID
		it.slot = -1
	}
	it.done = true
	return false
}

// Row materializes the row at the iterator's current position. Must only
// be called after a Next that returned true.
func (it *Iterator) Row() (record.Row, error) {
	rid := record.RowID{Page: it.pageID, Slot: uint32(it.slot)}
	return it.heap.GetTuple(rid, it.schema)
}

// RID returns the RowId at the iterator's current position.
func (it *Iterator) RID() record.RowID {
	return record.RowID{Page: it.pageID, Slot: uint32(it.slot)}
}

// Err returns the first error encountered while advancing, if any.
func (it *Iterator) Err() error { return it.lastErr }
