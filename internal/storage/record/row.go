package record

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Row is an ordered list of fields plus an optional RowID identifying where
// it lives in a table heap (zero value RowID for a row not yet inserted).
type Row struct {
	Fields []Field
	RID    RowID
}

// nullBitmapBytes returns how many bytes a null bitmap for n fields needs.
func nullBitmapBytes(n int) int { return (n + 7) / 8 }

// Marshal serializes a Row: a 32-bit field count, a null bitmap (bit set
// means the field is NULL), then each non-null field's payload in schema
// order. The schema itself is not embedded — Unmarshal requires it.
func (r Row) Marshal() []byte {
	n := len(r.Fields)
	bitmapLen := nullBitmapBytes(n)
	buf := make([]byte, 4+bitmapLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n))

	bitmap := buf[4 : 4+bitmapLen]
	for i, f := range r.Fields {
		if f.Null {
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}

	for _, f := range r.Fields {
		if f.Null {
			continue
		}
		switch f.Type {
		case TypeInt:
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], uint32(f.IntVal))
			buf = append(buf, tmp[:]...)
		case TypeFloat:
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(f.FloatVal))
			buf = append(buf, tmp[:]...)
		case TypeChar:
			buf = append(buf, f.CharVal...)
		}
	}
	return buf
}

// UnmarshalRow deserializes a Row using schema to determine each field's
// TypeID and (for CHAR) its fixed length.
func UnmarshalRow(data []byte, schema *Schema) (Row, error) {
	if len(data) < 4 {
		return Row{}, fmt.Errorf("record: row: short buffer")
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	if n != schema.Len() {
		return Row{}, fmt.Errorf("record: row: field count %d does not match schema length %d", n, schema.Len())
	}
	bitmapLen := nullBitmapBytes(n)
	if len(data) < 4+bitmapLen {
		return Row{}, fmt.Errorf("record: row: truncated null bitmap")
	}
	bitmap := data[4 : 4+bitmapLen]
	off := 4 + bitmapLen

	fields := make([]Field, n)
	for i, col := range schema.Columns {
		isNull := bitmap[i/8]&(1<<uint(i%8)) != 0
		if isNull {
			fields[i] = NewNullField(col.Type)
			continue
		}
		switch col.Type {
		case TypeInt:
			if len(data) < off+4 {
				return Row{}, fmt.Errorf("record: row: truncated int field %d", i)
			}
			fields[i] = NewIntField(int32(binary.LittleEndian.Uint32(data[off : off+4])))
			off += 4
		case TypeFloat:
			if len(data) < off+4 {
				return Row{}, fmt.Errorf("record: row: truncated float field %d", i)
			}
			fields[i] = NewFloatField(math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4])))
			off += 4
		case TypeChar:
			width := int(col.Length)
			if len(data) < off+width {
				return Row{}, fmt.Errorf("record: row: truncated char field %d", i)
			}
			buf := make([]byte, width)
			copy(buf, data[off:off+width])
			fields[i] = Field{Type: TypeChar, CharVal: buf}
			off += width
		default:
			return Row{}, fmt.Errorf("record: row: unknown column type %s", col.Type)
		}
	}
	return Row{Fields: fields}, nil
}

// Project builds a key-row from source positions keyMap, preserving order.
// Used to derive an index key-row from a full table row.
func (r Row) Project(keyMap []int) Row {
	out := make([]Field, len(keyMap))
	for i, pos := range keyMap {
		out[i] = r.Fields[pos]
	}
	return Row{Fields: out}
}
