package disk

import (
	"encoding/binary"
	"fmt"
)

// ───────────────────────────────────────────────────────────────────────────
// Disk meta page — physical page 0
// ───────────────────────────────────────────────────────────────────────────
//
// Layout:
//   [0:4]   Magic            uint32 LE
//   [4:8]   NumExtents       uint32 LE
//   [8:12]  NumAllocated     uint32 LE  (pages allocated across all extents)
//   [12:16] ExtentUsedCount  uint32 LE  (count-prefix for the array below)
//   [16:16+4*N]  ExtentUsed[i]  uint32 LE  — live page count of extent i

const metaMagic uint32 = 0x4449534B // "DISK"

const (
	metaMagicOff       = 0
	metaNumExtentsOff  = 4
	metaNumAllocOff    = 8
	metaExtentCountOff = 12
	metaExtentArrayOff = 16
)

// Meta is the parsed contents of the disk-meta page.
type Meta struct {
	NumExtents  uint32
	NumAlloc    uint32
	ExtentUsed  []uint32
}

// MarshalMeta serializes m into a full PageSize buffer.
func MarshalMeta(m *Meta) ([]byte, error) {
	need := metaExtentArrayOff + 4*len(m.ExtentUsed)
	if need > PageSize {
		return nil, fmt.Errorf("disk meta: %d extents do not fit in one page", len(m.ExtentUsed))
	}
	buf := NewZeroPage()
	binary.LittleEndian.PutUint32(buf[metaMagicOff:], metaMagic)
	binary.LittleEndian.PutUint32(buf[metaNumExtentsOff:], m.NumExtents)
	binary.LittleEndian.PutUint32(buf[metaNumAllocOff:], m.NumAlloc)
	binary.LittleEndian.PutUint32(buf[metaExtentCountOff:], uint32(len(m.ExtentUsed)))
	for i, u := range m.ExtentUsed {
		binary.LittleEndian.PutUint32(buf[metaExtentArrayOff+4*i:], u)
	}
	return buf, nil
}

// UnmarshalMeta parses the disk-meta page from buf.
func UnmarshalMeta(buf []byte) (*Meta, error) {
	if len(buf) < metaExtentArrayOff {
		return nil, fmt.Errorf("disk meta page too small: %d bytes", len(buf))
	}
	if magic := binary.LittleEndian.Uint32(buf[metaMagicOff:]); magic != metaMagic {
		return nil, fmt.Errorf("disk meta: bad magic %08x, expected %08x", magic, metaMagic)
	}
	m := &Meta{
		NumExtents: binary.LittleEndian.Uint32(buf[metaNumExtentsOff:]),
		NumAlloc:   binary.LittleEndian.Uint32(buf[metaNumAllocOff:]),
	}
	n := binary.LittleEndian.Uint32(buf[metaExtentCountOff:])
	m.ExtentUsed = make([]uint32, n)
	for i := range m.ExtentUsed {
		m.ExtentUsed[i] = binary.LittleEndian.Uint32(buf[metaExtentArrayOff+4*i:])
	}
	return m, nil
}

// NewMeta returns the meta for a freshly created, empty database file.
func NewMeta() *Meta {
	return &Meta{NumExtents: 0, NumAlloc: 0, ExtentUsed: nil}
}
