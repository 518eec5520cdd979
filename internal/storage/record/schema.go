package record

import (
	"encoding/binary"
	"fmt"
)

const schemaMagic uint32 = 0x53434831 // "SCH1"

// Schema is an ordered list of columns.
type Schema struct {
	Columns []Column
}

// NewSchema builds a Schema, assigning Index to each column by position.
func NewSchema(cols ...Column) *Schema {
	for i := range cols {
		cols[i].Index = uint32(i)
	}
	return &Schema{Columns: cols}
}

// ColumnByName returns the column with the given name and true, or the zero
// value and false if absent.
func (s *Schema) ColumnByName(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.Columns) }

// Marshal writes the schema: magic, count, then each column's own encoding.
func (s *Schema) Marshal() []byte {
	buf := make([]byte, 0, 8+len(s.Columns)*24)
	var tmp [4]byte

	binary.LittleEndian.PutUint32(tmp[:], schemaMagic)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(s.Columns)))
	buf = append(buf, tmp[:]...)

	for _, c := range s.Columns {
		buf = append(buf, c.Marshal()...)
	}
	return buf
}

// UnmarshalSchema validates the magic and reconstructs a Schema.
func UnmarshalSchema(data []byte) (*Schema, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("record: schema: short buffer")
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != schemaMagic {
		return nil, fmt.Errorf("record: schema: bad magic %x", got)
	}
	count := int(binary.LittleEndian.Uint32(data[4:8]))
	off := 8
	cols := make([]Column, 0, count)
	for i := 0; i < count; i++ {
		c, n, err := UnmarshalColumn(data[off:])
		if err != nil {
			return nil, fmt.Errorf("record: schema: column %d: %w", i, err)
		}
		cols = append(cols, c)
		off += n
	}
	return &Schema{Columns: cols}, nil
}
