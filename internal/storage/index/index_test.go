package index

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagedb/internal/storage/buffer"
	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/record"
	"pagedb/internal/storage/replacer"
)

func newTestTree(t *testing.T, poolSize int, smallMaxSize int) (*BTree, *KeySchema) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := disk.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.NewPool(dm, replacer.NewLRU(), poolSize, nil)
	ks := &KeySchema{Columns: []record.Column{
		record.NewColumn("id", record.TypeInt, 0, 0, false, false),
	}}
	bt, err := Create(pool, ks)
	require.NoError(t, err)
	if smallMaxSize > 0 {
		bt.maxSize = smallMaxSize
		// Re-stamp the already-initialized root leaf with the smaller cap.
		_, node, err := bt.fetchNode(bt.rootID)
		require.NoError(t, err)
		node.buf[nodeMaxSizeOff] = byte(smallMaxSize)
		node.buf[nodeMaxSizeOff+1] = 0
		require.NoError(t, pool.UnpinPage(bt.rootID, true))
	}
	return bt, ks
}

func keyFor(ks *KeySchema, bt *BTree, id int32) []byte {
	row := record.Row{Fields: []record.Field{record.NewIntField(id)}}
	k, err := ks.Encode(row, bt.width)
	if err != nil {
		panic(err)
	}
	return k
}

func TestInsertAndGetValueSmallTree(t *testing.T) {
	bt, ks := newTestTree(t, 32, 4)

	for i := int32(0); i < 40; i++ {
		ok, err := bt.Insert(keyFor(ks, bt, i), record.RowID{Page: disk.PageID(i), Slot: 0})
		require.NoError(t, err)
		require.True(t, ok)
	}

	for i := int32(0); i < 40; i++ {
		rid, found, err := bt.GetValue(keyFor(ks, bt, i))
		require.NoError(t, err)
		require.True(t, found, "key %d", i)
		require.Equal(t, disk.PageID(i), rid.Page)
	}
}

func TestInsertDuplicateRejected(t *testing.T) {
	bt, ks := newTestTree(t, 32, 4)
	ok, err := bt.Insert(keyFor(ks, bt, 1), record.RowID{Page: 1})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = bt.Insert(keyFor(ks, bt, 1), record.RowID{Page: 2})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIterationYieldsSortedOrder(t *testing.T) {
	bt, ks := newTestTree(t, 64, 4)

	order := rand.New(rand.NewSource(1)).Perm(60)
	for _, i := range order {
		ok, err := bt.Insert(keyFor(ks, bt, int32(i)), record.RowID{Page: disk.PageID(i)})
		require.NoError(t, err)
		require.True(t, ok)
	}

	it, err := bt.Begin()
	require.NoError(t, err)
	var seen []int32
	for it.Valid() {
		k, err := it.Key()
		require.NoError(t, err)
		seen = append(seen, getInt32(k))
		require.NoError(t, it.Next())
	}
	require.Len(t, seen, 60)
	for i := 1; i < len(seen); i++ {
		require.Less(t, seen[i-1], seen[i])
	}
}

func TestDeleteHalfLeavesRestSearchable(t *testing.T) {
	bt, ks := newTestTree(t, 64, 4)

	const n = 80
	order := rand.New(rand.NewSource(2)).Perm(n)
	for _, i := range order {
		ok, err := bt.Insert(keyFor(ks, bt, int32(i)), record.RowID{Page: disk.PageID(i)})
		require.NoError(t, err)
		require.True(t, ok)
	}

	deleteOrder := rand.New(rand.NewSource(3)).Perm(n / 2)
	for _, i := range deleteOrder {
		ok, err := bt.Remove(keyFor(ks, bt, int32(i)))
		require.NoError(t, err)
		require.True(t, ok, "delete %d", i)
	}

	for i := 0; i < n/2; i++ {
		_, found, err := bt.GetValue(keyFor(ks, bt, int32(i)))
		require.NoError(t, err)
		require.False(t, found, "key %d should be deleted", i)
	}
	for i := n / 2; i < n; i++ {
		rid, found, err := bt.GetValue(keyFor(ks, bt, int32(i)))
		require.NoError(t, err)
		require.True(t, found, "key %d should survive", i)
		require.Equal(t, disk.PageID(i), rid.Page)
	}

	it, err := bt.Begin()
	require.NoError(t, err)
	count := 0
	var prev int32 = -1
	for it.Valid() {
		k, err := it.Key()
		require.NoError(t, err)
		v := getInt32(k)
		require.Greater(t, v, prev)
		prev = v
		count++
		require.NoError(t, it.Next())
	}
	require.Equal(t, n/2, count)
}

func TestBeginAtPositionsAtFirstGreaterOrEqual(t *testing.T) {
	bt, ks := newTestTree(t, 32, 4)
	for _, i := range []int32{0, 2, 4, 6, 8, 10} {
		ok, err := bt.Insert(keyFor(ks, bt, i), record.RowID{Page: disk.PageID(i)})
		require.NoError(t, err)
		require.True(t, ok)
	}

	it, err := bt.BeginAt(keyFor(ks, bt, 5))
	require.NoError(t, err)
	require.True(t, it.Valid())
	k, err := it.Key()
	require.NoError(t, err)
	require.Equal(t, int32(6), getInt32(k))
}

func TestEndIsReachedByRepeatedNextFromBegin(t *testing.T) {
	bt, ks := newTestTree(t, 32, 4)
	for i := int32(0); i < 10; i++ {
		_, err := bt.Insert(keyFor(ks, bt, i), record.RowID{Page: disk.PageID(i)})
		require.NoError(t, err)
	}

	it, err := bt.Begin()
	require.NoError(t, err)
	n := 0
	for it.Valid() {
		require.NoError(t, it.Next())
		n++
	}
	require.Equal(t, 10, n)
	require.False(t, it.Valid())
}
