package index

import (
	"encoding/binary"

	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/record"
)

// Node page header offsets. Entries follow immediately after the header,
// each a fixed stride of keyWidth + valueWidth bytes.
const (
	nodeIsLeafOff   = 0  // 1 byte
	nodeSizeOff     = 2  // uint16
	nodeMaxSizeOff  = 4  // uint16
	nodeParentOff   = 6  // int32
	nodeNextLeafOff = 10 // int32, leaves only
	nodeKeyWidthOff = 14 // uint16
	nodeEntriesOff  = 16

	valueWidth = 8 // RowID and PageID both pack into 8 bytes
)

// Node wraps a raw page buffer as a B+-tree node: a tagged leaf/internal
// variant sharing one fixed-stride entry array.
type Node struct {
	buf   []byte
	width Width
}

// WrapNode wraps an existing node page buffer; width must match how it was
// initialized.
func WrapNode(buf []byte, width Width) *Node {
	return &Node{buf: buf, width: width}
}

// InitNode formats buf as a fresh, empty node of the given leaf-ness.
func InitNode(buf []byte, width Width, leaf bool, maxSize int, parent disk.PageID) *Node {
	n := &Node{buf: buf, width: width}
	if leaf {
		buf[nodeIsLeafOff] = 1
	} else {
		buf[nodeIsLeafOff] = 0
	}
	n.setSize(0)
	binary.LittleEndian.PutUint16(buf[nodeMaxSizeOff:], uint16(maxSize))
	n.SetParent(parent)
	n.SetNextLeaf(disk.InvalidPageID)
	binary.LittleEndian.PutUint16(buf[nodeKeyWidthOff:], uint16(width))
	return n
}

func (n *Node) IsLeaf() bool { return n.buf[nodeIsLeafOff] == 1 }

func (n *Node) Size() int { return int(binary.LittleEndian.Uint16(n.buf[nodeSizeOff:])) }

func (n *Node) setSize(sz int) { binary.LittleEndian.PutUint16(n.buf[nodeSizeOff:], uint16(sz)) }

func (n *Node) MaxSize() int { return int(binary.LittleEndian.Uint16(n.buf[nodeMaxSizeOff:])) }

// MinSize is ceil((max_size+1)/2), the spec's effective floor before a node
// must coalesce-or-redistribute.
func (n *Node) MinSize() int { return (n.MaxSize() + 2) / 2 }

func (n *Node) Parent() disk.PageID {
	return disk.PageID(int32(binary.LittleEndian.Uint32(n.buf[nodeParentOff:])))
}

func (n *Node) SetParent(id disk.PageID) {
	binary.LittleEndian.PutUint32(n.buf[nodeParentOff:], uint32(int32(id)))
}

func (n *Node) NextLeaf() disk.PageID {
	return disk.PageID(int32(binary.LittleEndian.Uint32(n.buf[nodeNextLeafOff:])))
}

func (n *Node) SetNextLeaf(id disk.PageID) {
	binary.LittleEndian.PutUint32(n.buf[nodeNextLeafOff:], uint32(int32(id)))
}

func (n *Node) stride() int { return int(n.width) + valueWidth }

func (n *Node) entryOff(i int) int { return nodeEntriesOff + i*n.stride() }

// KeyAt returns the key bytes at slot i (slot 0 of an internal node is a
// dummy key and should not be compared against).
func (n *Node) KeyAt(i int) []byte {
	off := n.entryOff(i)
	return n.buf[off : off+int(n.width)]
}

func (n *Node) setKeyAt(i int, key []byte) {
	off := n.entryOff(i)
	copy(n.buf[off:off+int(n.width)], key)
}

// ValueAt returns the raw 8-byte value at slot i.
func (n *Node) ValueAt(i int) [8]byte {
	off := n.entryOff(i) + int(n.width)
	var v [8]byte
	copy(v[:], n.buf[off:off+valueWidth])
	return v
}

func (n *Node) setValueAt(i int, v [8]byte) {
	off := n.entryOff(i) + int(n.width)
	copy(n.buf[off:off+valueWidth], v[:])
}

// ChildAt interprets slot i's value as a child PageID (internal nodes).
func (n *Node) ChildAt(i int) disk.PageID {
	v := n.ValueAt(i)
	return disk.PageID(int32(binary.LittleEndian.Uint32(v[0:4])))
}

func (n *Node) setChildAt(i int, id disk.PageID) {
	var v [8]byte
	binary.LittleEndian.PutUint32(v[0:4], uint32(int32(id)))
	n.setValueAt(i, v)
}

// RowAt interprets slot i's value as a RowID (leaf nodes).
func (n *Node) RowAt(i int) record.RowID {
	return record.UnpackRowID(n.ValueAt(i))
}

func (n *Node) setRowAt(i int, rid record.RowID) {
	n.setValueAt(i, rid.Pack())
}

// findIndex returns (index, found): for a leaf, the index of an exact key
// match, or the insertion point if absent. For an internal node, the index
// of the greatest separator <= key (routing strictly-less to the left,
// equality to the right, per the spec's tie-break rule), found is unused.
func (n *Node) findIndex(key []byte, ks *KeySchema, leafSearch bool) (int, bool) {
	size := n.Size()
	if leafSearch {
		lo, hi := 0, size
		for lo < hi {
			mid := (lo + hi) / 2
			if ks.Compare(n.KeyAt(mid), key) < 0 {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo < size && ks.Compare(n.KeyAt(lo), key) == 0 {
			return lo, true
		}
		return lo, false
	}

	// Internal: slot 0 is a dummy; real separators live at [1, size).
	// Find the greatest i in [1,size) with KeyAt(i) <= key; if none, use 0.
	idx := 0
	lo, hi := 1, size
	for lo < hi {
		mid := (lo + hi) / 2
		if ks.Compare(n.KeyAt(mid), key) <= 0 {
			idx = mid
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return idx, false
}

// insertEntryAt shifts slots [i, size) right by one and writes key/value at
// i, growing size by one. Caller must have checked capacity.
func (n *Node) insertEntryAt(i int, key []byte, value [8]byte) {
	size := n.Size()
	for j := size; j > i; j-- {
		copy(n.buf[n.entryOff(j):n.entryOff(j)+n.stride()], n.buf[n.entryOff(j-1):n.entryOff(j-1)+n.stride()])
	}
	n.setSize(size + 1)
	n.setKeyAt(i, key)
	n.setValueAt(i, value)
}

// removeEntryAt shifts slots (i, size) left by one, shrinking size by one.
func (n *Node) removeEntryAt(i int) {
	size := n.Size()
	for j := i; j < size-1; j++ {
		copy(n.buf[n.entryOff(j):n.entryOff(j)+n.stride()], n.buf[n.entryOff(j+1):n.entryOff(j+1)+n.stride()])
	}
	n.setSize(size - 1)
}

// MaxNodeSize returns the number of entries of the given key width that
// fit in one page, after the fixed header.
func MaxNodeSize(width Width) int {
	stride := int(width) + valueWidth
	return (disk.PageSize - nodeEntriesOff) / stride
}
