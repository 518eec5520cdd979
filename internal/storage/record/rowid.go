package record

import "pagedb/internal/storage/disk"

// RowID is the stable logical address of a tuple: its heap page and slot
// number within that page.
type RowID struct {
	Page disk.PageID
	Slot uint32
}

// InvalidRowID is the sentinel "no such row" address.
var InvalidRowID = RowID{Page: disk.InvalidPageID, Slot: 0}

// Valid reports whether r addresses a real page.
func (r RowID) Valid() bool { return r.Page != disk.InvalidPageID }

// Pack encodes the RowID into a fixed 8-byte big-endian-free little layout,
// used as B+-tree leaf values.
func (r RowID) Pack() [8]byte {
	var b [8]byte
	b[0] = byte(r.Page)
	b[1] = byte(r.Page >> 8)
	b[2] = byte(r.Page >> 16)
	b[3] = byte(r.Page >> 24)
	b[4] = byte(r.Slot)
	b[5] = byte(r.Slot >> 8)
	b[6] = byte(r.Slot >> 16)
	b[7] = byte(r.Slot >> 24)
	return b
}

// UnpackRowID decodes a RowID from its 8-byte packed form.
func UnpackRowID(b [8]byte) RowID {
	page := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16 | int32(b[3])<<24
	slot := uint32(b[4]) | uint32(b[5])<<8 | uint32(b[6])<<16 | uint32(b[7])<<24
	return RowID{Page: disk.PageID(page), Slot: slot}
}
