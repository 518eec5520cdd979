package catalog

import (
	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/heap"
	"pagedb/internal/storage/index"
	"pagedb/internal/storage/record"
)

// TableInfo is the catalog's in-memory handle on one table: its schema,
// its open heap, and the indexes built over it.
type TableInfo struct {
	ID          uint32
	Name        string
	Schema      *record.Schema
	PrimaryKey  []uint32
	FirstPageID disk.PageID
	MetaPageID  disk.PageID
	Heap        *heap.TableHeap
	Indexes     []*IndexInfo
}

// IndexInfo is the catalog's in-memory handle on one index: its key-map
// (positions into the owning table's schema) and its open B+-tree.
type IndexInfo struct {
	ID         uint32
	Name       string
	TableID    uint32
	IsPrimary  bool
	KeyMap     []uint32
	MetaPageID disk.PageID
	KeySchema  *index.KeySchema
	Tree       *index.BTree
}

// keyRowFor projects row onto this index's key columns.
func (ix *IndexInfo) keyRowFor(row record.Row) record.Row {
	return row.Project(intSlice(ix.KeyMap))
}

func intSlice(u []uint32) []int {
	out := make([]int, len(u))
	for i, v := range u {
		out[i] = int(v)
	}
	return out
}

// keyMapEqual reports whether a and b name the same columns in the same
// order.
func keyMapEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
