package heap

import (
	"fmt"

	"pagedb/internal/storage/buffer"
	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/record"
)

// TableHeap orchestrates a linked list of heap pages rooted at FirstPageID,
// storing serialized rows and handing back their RowIDs.
type TableHeap struct {
	pool        *buffer.Pool
	firstPageID disk.PageID
}

// Open attaches a TableHeap to an already-allocated chain starting at
// firstPageID (as persisted in the table's catalog metadata).
func Open(pool *buffer.Pool, firstPageID disk.PageID) *TableHeap {
	return &TableHeap{pool: pool, firstPageID: firstPageID}
}

// Create allocates the heap's first page and returns a ready TableHeap. The
// first page id must be persisted by the caller (the catalog) immediately —
// a table heap never defers that write.
func Create(pool *buffer.Pool) (*TableHeap, error) {
	id, frame, err := pool.NewPage()
	if err != nil {
		return nil, fmt.Errorf("heap: create: %w", err)
	}
	if frame == nil {
		return nil, fmt.Errorf("heap: create: buffer pool exhausted")
	}
	Init(frame.Data(), disk.InvalidPageID, disk.InvalidPageID)
	if err := pool.UnpinPage(id, true); err != nil {
		return nil, err
	}
	return &TableHeap{pool: pool, firstPageID: id}, nil
}

// FirstPageID returns the heap's root page id.
func (h *TableHeap) FirstPageID() disk.PageID { return h.firstPageID }

// InsertTuple serializes row and appends it to the first page in the chain
// with free space, allocating a new tail page if none has room.
func (h *TableHeap) InsertTuple(row record.Row) (record.RowID, error) {
	data := row.Marshal()

	pageID := h.firstPageID
	lastID := disk.InvalidPageID

	for pageID != disk.InvalidPageID {
		frame, err := h.pool.FetchPage(pageID)
		if err != nil {
			return record.RowID{}, fmt.Errorf("heap: insert: %w", err)
		}
		if frame == nil {
			return record.RowID{}, fmt.Errorf("heap: insert: buffer pool exhausted")
		}
		page := Wrap(frame.Data())
		slot, ok := page.InsertTuple(data)
		if ok {
			rid := record.RowID{Page: pageID, Slot: uint32(slot)}
			if err := h.pool.UnpinPage(pageID, true); err != nil {
				return record.RowID{}, err
			}
			return rid, nil
		}
		next := page.NextPageID()
		if err := h.pool.UnpinPage(pageID, false); err != nil {
			return record.RowID{}, err
		}
		lastID = pageID
		pageID = next
	}

	return h.appendPageAndInsert(lastID, data)
}

// appendPageAndInsert allocates a fresh tail page linked after prevID,
// links prevID.next to it, and inserts data there.
func (h *TableHeap) appendPageAndInsert(prevID disk.PageID, data []byte) (record.RowID, error) {
	newID, newFrame, err := h.pool.NewPage()
	if err != nil {
		return record.RowID{}, fmt.Errorf("heap: append page: %w", err)
	}
	if newFrame == nil {
		return record.RowID{}, fmt.Errorf("heap: append page: buffer pool exhausted")
	}
	Init(newFrame.Data(), prevID, disk.InvalidPageID)
	newPage := Wrap(newFrame.Data())
	slot, ok := newPage.InsertTuple(data)
	if !ok {
		h.pool.UnpinPage(newID, false)
		return record.RowID{}, fmt.Errorf("heap: row of %d bytes does not fit a fresh page", len(data))
	}
	if err := h.pool.UnpinPage(newID, true); err != nil {
		return record.RowID{}, err
	}

	if prevID != disk.InvalidPageID {
		prevFrame, err := h.pool.FetchPage(prevID)
		if err != nil {
			return record.RowID{}, err
		}
		Wrap(prevFrame.Data()).SetNextPageID(newID)
		if err := h.pool.UnpinPage(prevID, true); err != nil {
			return record.RowID{}, err
		}
	} else {
		h.firstPageID = newID
	}

	return record.RowID{Page: newID, Slot: uint32(slot)}, nil
}

// GetTuple materializes the row at rid using schema to interpret field types.
func (h *TableHeap) GetTuple(rid record.RowID, schema *record.Schema) (record.Row, error) {
	frame, err := h.pool.FetchPage(rid.Page)
	if err != nil {
		return record.Row{}, fmt.Errorf("heap: get tuple: %w", err)
	}
	if frame == nil {
		return record.Row{}, fmt.Errorf("heap: get tuple: buffer pool exhausted")
	}
	defer h.pool.UnpinPage(rid.Page, false)

	page := Wrap(frame.Data())
	body, err := page.GetTuple(int(rid.Slot))
	if err != nil {
		return record.Row{}, fmt.Errorf("heap: get tuple %v: %w", rid, err)
	}
	row, err := record.UnmarshalRow(body, schema)
	if err != nil {
		return record.Row{}, err
	}
	row.RID = rid
	return row, nil
}

// MarkDelete tombstones rid's slot without reclaiming space.
func (h *TableHeap) MarkDelete(rid record.RowID) (bool, error) {
	frame, err := h.pool.FetchPage(rid.Page)
	if err != nil {
		return false, fmt.Errorf("heap: mark delete: %w", err)
	}
	if frame == nil {
		return false, fmt.Errorf("heap: mark delete: buffer pool exhausted")
	}
	ok := Wrap(frame.Data()).MarkDelete(int(rid.Slot))
	if err := h.pool.UnpinPage(rid.Page, ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ApplyDelete reclaims rid's slot space and compacts its page.
func (h *TableHeap) ApplyDelete(rid record.RowID) error {
	frame, err := h.pool.FetchPage(rid.Page)
	if err != nil {
		return fmt.Errorf("heap: apply delete: %w", err)
	}
	if frame == nil {
		return fmt.Errorf("heap: apply delete: buffer pool exhausted")
	}
	page := Wrap(frame.Data())
	page.ApplyDelete(int(rid.Slot))
	page.Compact()
	return h.pool.UnpinPage(rid.Page, true)
}

// UpdateTuple attempts an in-place update at oldRID's page; on NO_SPACE it
// deletes the old tuple and reinserts elsewhere, returning the new RowID
// (equal to oldRID when the update was in-place).
func (h *TableHeap) UpdateTuple(newRow record.Row, oldRID record.RowID) (record.RowID, UpdateStatus, error) {
	data := newRow.Marshal()

	frame, err := h.pool.FetchPage(oldRID.Page)
	if err != nil {
		return record.RowID{}, UpdateSlotInvalid, fmt.Errorf("heap: update: %w", err)
	}
	if frame == nil {
		return record.RowID{}, UpdateSlotInvalid, fmt.Errorf("heap: update: buffer pool exhausted")
	}
	page := Wrap(frame.Data())
	status := page.UpdateTuple(int(oldRID.Slot), data)

	switch status {
	case UpdateOK:
		if err := h.pool.UnpinPage(oldRID.Page, true); err != nil {
			return record.RowID{}, status, err
		}
		return oldRID, status, nil
	case UpdateSlotInvalid, UpdateAlreadyDeleted:
		if err := h.pool.UnpinPage(oldRID.Page, false); err != nil {
			return record.RowID{}, status, err
		}
		return record.RowID{}, status, nil
	default: // UpdateNoSpace
		if err := h.pool.UnpinPage(oldRID.Page, false); err != nil {
			return record.RowID{}, status, err
		}
	}

	if _, err := h.MarkDelete(oldRID); err != nil {
		return record.RowID{}, UpdateNoSpace, err
	}
	newRID, err := h.InsertTuple(newRow)
	if err != nil {
		return record.RowID{}, UpdateNoSpace, err
	}
	return newRID, UpdateOK, nil
}

// FreeHeap traverses the chain, deallocating every page. The heap must not
// be used afterwards.
func (h *TableHeap) FreeHeap() error {
	id := h.firstPageID
	for id != disk.InvalidPageID {
		frame, err := h.pool.FetchPage(id)
		if err != nil {
			return fmt.Errorf("heap: free heap: %w", err)
		}
		if frame == nil {
			return fmt.Errorf("heap: free heap: buffer pool exhausted")
		}
		next := Wrap(frame.Data()).NextPageID()
		if err := h.pool.UnpinPage(id, false); err != nil {
			return err
		}
		if _, err := h.pool.DeletePage(id); err != nil {
			return fmt.Errorf("heap: free heap: delete page %d: %w", id, err)
		}
		id = next
	}
	h.firstPageID = disk.InvalidPageID
	return nil
}
