package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/replacer"
)

func newTestPool(t *testing.T, size int) (*Pool, *disk.Manager) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := disk.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return NewPool(dm, replacer.NewLRU(), size, nil), dm
}

func TestNewPageThenFetchReturnsSameContent(t *testing.T) {
	p, _ := newTestPool(t, 4)

	id, f, err := p.NewPage()
	require.NoError(t, err)
	require.NotNil(t, f)
	copy(f.Data(), []byte("hello"))
	require.NoError(t, p.UnpinPage(id, true))

	f2, err := p.FetchPage(id)
	require.NoError(t, err)
	require.Equal(t, byte('h'), f2.Data()[0])
	require.NoError(t, p.UnpinPage(id, false))
}

func TestFetchAlreadyResidentIsAdditivePin(t *testing.T) {
	p, _ := newTestPool(t, 4)

	id, f1, err := p.NewPage()
	require.NoError(t, err)
	require.Equal(t, 1, f1.PinCount())

	f2, err := p.FetchPage(id)
	require.NoError(t, err)
	require.Same(t, f1, f2)
	require.Equal(t, 2, f1.PinCount())

	require.NoError(t, p.UnpinPage(id, false))
	require.Equal(t, 1, p.PinCount(id))
	require.NoError(t, p.UnpinPage(id, false))
	require.Equal(t, 0, p.PinCount(id))
}

func TestAllFramesPinnedReturnsNilHandle(t *testing.T) {
	p, _ := newTestPool(t, 2)

	_, f1, err := p.NewPage()
	require.NoError(t, err)
	require.NotNil(t, f1)

	_, f2, err := p.NewPage()
	require.NoError(t, err)
	require.NotNil(t, f2)

	id3, f3, err := p.NewPage()
	require.NoError(t, err)
	require.Nil(t, f3)
	require.Equal(t, disk.InvalidPageID, id3)
}

func TestUnpinUnknownPageIsError(t *testing.T) {
	p, _ := newTestPool(t, 2)
	err := p.UnpinPage(disk.PageID(99), false)
	require.Error(t, err)
}

func TestUnpinBelowZeroIsError(t *testing.T) {
	p, _ := newTestPool(t, 2)
	id, _, err := p.NewPage()
	require.NoError(t, err)
	require.NoError(t, p.UnpinPage(id, false))
	err = p.UnpinPage(id, false)
	require.Error(t, err)
}

func TestDeletePinnedPageFails(t *testing.T) {
	p, _ := newTestPool(t, 2)
	id, _, err := p.NewPage()
	require.NoError(t, err)

	ok, err := p.DeletePage(id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteUnpinnedPageFreesFrame(t *testing.T) {
	p, _ := newTestPool(t, 1)
	id, _, err := p.NewPage()
	require.NoError(t, err)
	require.NoError(t, p.UnpinPage(id, false))

	ok, err := p.DeletePage(id)
	require.NoError(t, err)
	require.True(t, ok)

	// Frame is free again: a brand new page must succeed even at pool size 1.
	_, f, err := p.NewPage()
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestEvictsUnpinnedVictimWhenFull(t *testing.T) {
	p, _ := newTestPool(t, 1)

	id1, f1, err := p.NewPage()
	require.NoError(t, err)
	copy(f1.Data(), []byte("first"))
	require.NoError(t, p.UnpinPage(id1, true))

	id2, f2, err := p.NewPage()
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
	require.NotNil(t, f2)
	require.NoError(t, p.UnpinPage(id2, false))

	// id1's dirty content must have been flushed to disk on eviction.
	f1Again, err := p.FetchPage(id1)
	require.NoError(t, err)
	require.Equal(t, byte('f'), f1Again.Data()[0])
	require.NoError(t, p.UnpinPage(id1, false))
}

func TestCloseFlushesDirtyPages(t *testing.T) {
	p, dm := newTestPool(t, 2)
	id, f, err := p.NewPage()
	require.NoError(t, err)
	copy(f.Data(), []byte("persisted"))
	require.NoError(t, p.UnpinPage(id, true))
	require.NoError(t, p.Close())

	out := make([]byte, disk.PageSize)
	require.NoError(t, dm.ReadPage(id, out))
	require.Equal(t, byte('p'), out[0])
}
