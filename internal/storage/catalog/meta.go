package catalog

import (
	"encoding/binary"
	"fmt"

	"pagedb/internal/storage/disk"
)

const (
	catalogMetaMagic uint32 = 89849
	tableIndexMagic  uint32 = 344528 // table-meta and index-meta share this magic

	kindTable byte = 0
	kindIndex byte = 1
)

// catalogMetaPageID is the convention this catalog relies on in place of a
// superblock field dedicated to it: the catalog meta page is always the
// very first page a fresh database ever allocates, so it is always page 0.
const catalogMetaPageID disk.PageID = 0

// tableRef and indexRef are the catalog meta page's two ordered maps:
// object id to the page id of that object's own metadata page.
type tableRef struct {
	id     uint32
	pageID disk.PageID
}

type indexRef struct {
	id     uint32
	pageID disk.PageID
}

type catalogMeta struct {
	nextTableID uint32
	nextIndexID uint32
	tables      []tableRef
	indexes     []indexRef
}

// catalogMetaCapacity is the number of (id, page-id) pairs, combined across
// the table and index lists, that fit in one catalog meta page.
const catalogMetaCapacity = (disk.PageSize - 16) / 8

func marshalCatalogMeta(m *catalogMeta) ([]byte, error) {
	if len(m.tables)+len(m.indexes) > catalogMetaCapacity {
		return nil, fmt.Errorf("catalog: meta: %d tables and %d indexes do not fit in one catalog meta page", len(m.tables), len(m.indexes))
	}
	buf := disk.NewZeroPage()
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], catalogMetaMagic)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], m.nextTableID)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], m.nextIndexID)
	off += 4

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(m.tables)))
	off += 4
	for _, t := range m.tables {
		binary.LittleEndian.PutUint32(buf[off:], t.id)
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(int32(t.pageID)))
		off += 4
	}

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(m.indexes)))
	off += 4
	for _, ix := range m.indexes {
		binary.LittleEndian.PutUint32(buf[off:], ix.id)
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(int32(ix.pageID)))
		off += 4
	}
	return buf, nil
}

func unmarshalCatalogMeta(buf []byte) (*catalogMeta, error) {
	if len(buf) < 16 {
		return nil, fmt.Errorf("catalog: meta: short buffer")
	}
	off := 0
	if got := binary.LittleEndian.Uint32(buf[off:]); got != catalogMetaMagic {
		return nil, fmt.Errorf("catalog: meta: bad magic %d", got)
	}
	off += 4
	m := &catalogMeta{}
	m.nextTableID = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	m.nextIndexID = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	tblCount := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	m.tables = make([]tableRef, tblCount)
	for i := range m.tables {
		m.tables[i].id = binary.LittleEndian.Uint32(buf[off:])
		off += 4
		m.tables[i].pageID = disk.PageID(int32(binary.LittleEndian.Uint32(buf[off:])))
		off += 4
	}

	ixCount := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	m.indexes = make([]indexRef, ixCount)
	for i := range m.indexes {
		m.indexes[i].id = binary.LittleEndian.Uint32(buf[off:])
		off += 4
		m.indexes[i].pageID = disk.PageID(int32(binary.LittleEndian.Uint32(buf[off:])))
		off += 4
	}
	return m, nil
}

// tableMeta is the on-disk record describing one table; it shares a magic
// and page format with indexMeta (see kindTable/kindIndex).
type tableMeta struct {
	id          uint32
	name        string
	firstPageID disk.PageID
	primaryKey  []uint32
	schema      []byte // record.Schema.Marshal() output, read to its own end
}

func marshalTableMeta(m *tableMeta) []byte {
	buf := make([]byte, 0, disk.PageSize)
	var tmp [4]byte

	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}

	putU32(tableIndexMagic)
	buf = append(buf, kindTable)
	putU32(m.id)
	putU32(uint32(len(m.name)))
	buf = append(buf, m.name...)
	putU32(uint32(int32(m.firstPageID)))
	putU32(uint32(len(m.primaryKey)))
	for _, p := range m.primaryKey {
		putU32(p)
	}
	buf = append(buf, m.schema...)
	return buf
}

func unmarshalTableMeta(data []byte) (*tableMeta, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("catalog: table meta: short buffer")
	}
	off := 0
	if got := binary.LittleEndian.Uint32(data[off:]); got != tableIndexMagic {
		return nil, fmt.Errorf("catalog: table meta: bad magic %d", got)
	}
	off += 4
	if data[off] != kindTable {
		return nil, fmt.Errorf("catalog: table meta: wrong kind tag %d", data[off])
	}
	off++

	m := &tableMeta{}
	m.id = binary.LittleEndian.Uint32(data[off:])
	off += 4
	nameLen := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	m.name = string(data[off : off+nameLen])
	off += nameLen
	m.firstPageID = disk.PageID(int32(binary.LittleEndian.Uint32(data[off:])))
	off += 4
	pkCount := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	m.primaryKey = make([]uint32, pkCount)
	for i := range m.primaryKey {
		m.primaryKey[i] = binary.LittleEndian.Uint32(data[off:])
		off += 4
	}
	m.schema = data[off:]
	return m, nil
}

// indexMeta is the on-disk record describing one index.
type indexMeta struct {
	id         uint32
	name       string
	tableID    uint32
	isPrimary  bool
	width      uint32
	rootPageID disk.PageID
	keyMap     []uint32
}

func marshalIndexMeta(m *indexMeta) []byte {
	buf := make([]byte, 0, 256)
	var tmp [4]byte

	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}

	putU32(tableIndexMagic)
	buf = append(buf, kindIndex)
	putU32(m.id)
	putU32(uint32(len(m.name)))
	buf = append(buf, m.name...)
	putU32(m.tableID)
	if m.isPrimary {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	putU32(m.width)
	putU32(uint32(int32(m.rootPageID)))
	putU32(uint32(len(m.keyMap)))
	for _, p := range m.keyMap {
		putU32(p)
	}
	return buf
}

func unmarshalIndexMeta(data []byte) (*indexMeta, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("catalog: index meta: short buffer")
	}
	off := 0
	if got := binary.LittleEndian.Uint32(data[off:]); got != tableIndexMagic {
		return nil, fmt.Errorf("catalog: index meta: bad magic %d", got)
	}
	off += 4
	if data[off] != kindIndex {
		return nil, fmt.Errorf("catalog: index meta: wrong kind tag %d", data[off])
	}
	off++

	m := &indexMeta{}
	m.id = binary.LittleEndian.Uint32(data[off:])
	off += 4
	nameLen := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	m.name = string(data[off : off+nameLen])
	off += nameLen
	m.tableID = binary.LittleEndian.Uint32(data[off:])
	off += 4
	m.isPrimary = data[off] != 0
	off++
	m.width = binary.LittleEndian.Uint32(data[off:])
	off += 4
	m.rootPageID = disk.PageID(int32(binary.LittleEndian.Uint32(data[off:])))
	off += 4
	kmCount := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	m.keyMap = make([]uint32, kmCount)
	for i := range m.keyMap {
		m.keyMap[i] = binary.LittleEndian.Uint32(data[off:])
		off += 4
	}
	return m, nil
}

// peekKind reports whether a table/index metadata page buffer describes a
// table or an index, without fully decoding it.
func peekKind(buf []byte) (byte, error) {
	if len(buf) < 5 {
		return 0, fmt.Errorf("catalog: meta: short buffer")
	}
	if got := binary.LittleEndian.Uint32(buf[0:4]); got != tableIndexMagic {
		return 0, fmt.Errorf("catalog: meta: bad magic %d", got)
	}
	return buf[4], nil
}
