package record

import (
	"encoding/binary"
	"fmt"
)

const columnMagic uint32 = 210928

// Column describes one field of a schema: its name, type, fixed on-row
// length, its position within the row, and whether it may be null or must
// be unique.
type Column struct {
	Name     string
	Type     TypeID
	Length   uint32 // INT=4, FLOAT=4, CHAR=N
	Index    uint32 // position within the row
	Nullable bool
	Unique   bool
}

// NewColumn builds a Column, defaulting Length for fixed-width types.
func NewColumn(name string, typ TypeID, length uint32, index uint32, nullable, unique bool) Column {
	if fl := typ.FixedLength(); fl >= 0 {
		length = uint32(fl)
	}
	return Column{Name: name, Type: typ, Length: length, Index: index, Nullable: nullable, Unique: unique}
}

// Marshal writes the column in its on-disk format: magic, name length, name
// bytes, TypeID, length, index, nullable flag, unique flag.
func (c Column) Marshal() []byte {
	buf := make([]byte, 0, 4+4+len(c.Name)+4+4+4+1+1)
	var tmp [4]byte

	binary.LittleEndian.PutUint32(tmp[:], columnMagic)
	buf = append(buf, tmp[:]...)

	binary.LittleEndian.PutUint32(tmp[:], uint32(len(c.Name)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, c.Name...)

	binary.LittleEndian.PutUint32(tmp[:], uint32(c.Type))
	buf = append(buf, tmp[:]...)

	binary.LittleEndian.PutUint32(tmp[:], c.Length)
	buf = append(buf, tmp[:]...)

	binary.LittleEndian.PutUint32(tmp[:], c.Index)
	buf = append(buf, tmp[:]...)

	if c.Nullable {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	if c.Unique {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// UnmarshalColumn validates the magic and reconstructs a Column, returning
// the number of bytes consumed.
func UnmarshalColumn(data []byte) (Column, int, error) {
	if len(data) < 4 {
		return Column{}, 0, fmt.Errorf("record: column: short buffer")
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != columnMagic {
		return Column{}, 0, fmt.Errorf("record: column: bad magic %x", got)
	}
	off := 4
	if len(data) < off+4 {
		return Column{}, 0, fmt.Errorf("record: column: truncated name length")
	}
	nameLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	if len(data) < off+nameLen {
		return Column{}, 0, fmt.Errorf("record: column: truncated name")
	}
	name := string(data[off : off+nameLen])
	off += nameLen

	if len(data) < off+12+1+1 {
		return Column{}, 0, fmt.Errorf("record: column: truncated fixed fields")
	}
	typ := TypeID(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	length := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	index := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	nullable := data[off] != 0
	off++
	unique := data[off] != 0
	off++

	return Column{Name: name, Type: typ, Length: length, Index: index, Nullable: nullable, Unique: unique}, off, nil
}
