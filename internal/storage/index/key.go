// Package index implements the generic-key-width B+-tree: an ordered map
// from a packed fixed-width key to a RowID (leaf values) or child PageID
// (internal values), split/merged under a shared buffer pool.
//
// What: keys are packed into a fixed-width byte array whose width is
// chosen by the catalog at index-creation time from {4,8,16,32,64} — the
// smallest that covers the key columns' combined serialized size.
// How: every node page is a contiguous, fixed-stride array of (key,
// value) entries — no slot directory, no variable length — so entries can
// be binary-searched and shifted with plain slice arithmetic.
package index

import (
	"bytes"
	"fmt"
	"math"

	"pagedb/internal/storage/record"
)

// Width is the fixed byte width of a packed key, one of {4,8,16,32,64}.
type Width int

var supportedWidths = []Width{4, 8, 16, 32, 64}

// WidthFor returns the smallest supported width that can hold n bytes, or
// an error if n exceeds the largest supported width.
func WidthFor(n int) (Width, error) {
	for _, w := range supportedWidths {
		if int(w) >= n {
			return w, nil
		}
	}
	return 0, fmt.Errorf("index: key of %d bytes exceeds the largest supported width (%d)", n, supportedWidths[len(supportedWidths)-1])
}

// KeySchema describes the columns that make up an index key, in order, and
// computes the packed width needed to hold them.
type KeySchema struct {
	Columns []record.Column
}

// columnWidth returns a column's packed byte width.
func columnWidth(c record.Column) int {
	if fl := c.Type.FixedLength(); fl >= 0 {
		return fl
	}
	return int(c.Length)
}

// PackedSize returns the sum of the key columns' fixed widths (the size
// before rounding up to a supported Width).
func (ks *KeySchema) PackedSize() int {
	n := 0
	for _, c := range ks.Columns {
		n += columnWidth(c)
	}
	return n
}

// Encode packs row's fields (already projected to the key columns, in
// order) into a zero-padded buffer of exactly width bytes.
func (ks *KeySchema) Encode(row record.Row, width Width) ([]byte, error) {
	if len(row.Fields) != len(ks.Columns) {
		return nil, fmt.Errorf("index: key encode: row has %d fields, key schema has %d columns", len(row.Fields), len(ks.Columns))
	}
	buf := make([]byte, width)
	off := 0
	for i, c := range ks.Columns {
		f := row.Fields[i]
		w := columnWidth(c)
		switch c.Type {
		case record.TypeInt:
			putInt32(buf[off:off+w], f.IntVal)
		case record.TypeFloat:
			putFloat32(buf[off:off+w], f.FloatVal)
		case record.TypeChar:
			copy(buf[off:off+w], f.CharVal)
		default:
			return nil, fmt.Errorf("index: key encode: unsupported column type %s", c.Type)
		}
		off += w
	}
	return buf, nil
}

// Compare orders two packed keys column-wise, in key-schema order: INT and
// FLOAT use natural numeric comparison, CHAR(N) uses lexicographic byte
// comparison over its declared width.
func (ks *KeySchema) Compare(a, b []byte) int {
	off := 0
	for _, c := range ks.Columns {
		w := columnWidth(c)
		ca, cb := a[off:off+w], b[off:off+w]
		var cmp int
		switch c.Type {
		case record.TypeInt:
			ia, ib := getInt32(ca), getInt32(cb)
			cmp = compareInt32(ia, ib)
		case record.TypeFloat:
			fa, fb := getFloat32(ca), getFloat32(cb)
			cmp = compareFloat32(fa, fb)
		default: // CHAR
			cmp = bytes.Compare(ca, cb)
		}
		if cmp != 0 {
			return cmp
		}
		off += w
	}
	return 0
}

func compareInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat32(a, b float32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func putInt32(buf []byte, v int32) {
	u := uint32(v)
	buf[0] = byte(u)
	buf[1] = byte(u >> 8)
	buf[2] = byte(u >> 16)
	buf[3] = byte(u >> 24)
}

func getInt32(buf []byte) int32 {
	return int32(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
}

func putFloat32(buf []byte, v float32) {
	putInt32(buf, int32(math.Float32bits(v)))
}

func getFloat32(buf []byte) float32 {
	return math.Float32frombits(uint32(getInt32(buf)))
}
