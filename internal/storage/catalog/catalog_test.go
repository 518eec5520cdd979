package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagedb/internal/storage/buffer"
	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/record"
	"pagedb/internal/storage/replacer"
)

func newTestCatalog(t *testing.T, path string, poolSize int) (*Catalog, *buffer.Pool, *disk.Manager) {
	t.Helper()
	dm, err := disk.Open(path, nil)
	require.NoError(t, err)
	pool := buffer.NewPool(dm, replacer.NewLRU(), poolSize, nil)
	cat, err := Create(pool, nil)
	require.NoError(t, err)
	return cat, pool, dm
}

func usersSchema() *record.Schema {
	return record.NewSchema(
		record.NewColumn("id", record.TypeInt, 0, 0, false, false),
		record.NewColumn("email", record.TypeChar, 16, 0, false, true),
		record.NewColumn("age", record.TypeInt, 0, 0, true, false),
	)
}

func usersRow(id int32, email string, age int32) record.Row {
	return record.Row{Fields: []record.Field{
		record.NewIntField(id),
		record.NewCharField(email, 16),
		record.NewIntField(age),
	}}
}

func TestCreateTableAutoCreatesPKAndUniqueIndexes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat, _, dm := newTestCatalog(t, path, 32)
	defer dm.Close()

	ti, status, err := cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)
	require.True(t, status.OK())
	require.Len(t, ti.Indexes, 2)

	_, ok := cat.GetIndex("users", "_users_PK_")
	require.True(t, ok)
	_, ok = cat.GetIndex("users", "_users_UNI_email_")
	require.True(t, ok)
}

func TestCreateTableTwiceIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat, _, dm := newTestCatalog(t, path, 32)
	defer dm.Close()

	_, status, err := cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)
	require.True(t, status.OK())

	_, status, err = cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)
	require.Equal(t, StatusTableAlreadyExists, status)
}

func TestInsertEnforcesPrimaryKeyAndUnique(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat, _, dm := newTestCatalog(t, path, 32)
	defer dm.Close()

	_, status, err := cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)
	require.True(t, status.OK())

	_, status, err = cat.Insert("users", usersRow(1, "a@x.com", 30))
	require.NoError(t, err)
	require.True(t, status.OK())

	_, status, err = cat.Insert("users", usersRow(1, "b@x.com", 31))
	require.NoError(t, err)
	require.Equal(t, StatusPKDuplicate, status)

	_, status, err = cat.Insert("users", usersRow(2, "a@x.com", 31))
	require.NoError(t, err)
	require.Equal(t, StatusUniKeyDuplicate, status)

	_, status, err = cat.Insert("users", usersRow(2, "c@x.com", 31))
	require.NoError(t, err)
	require.True(t, status.OK())
}

func TestInsertAcceleratesThroughIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat, _, dm := newTestCatalog(t, path, 32)
	defer dm.Close()

	ti, _, err := cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)

	for i := int32(0); i < 5; i++ {
		_, status, err := cat.Insert("users", usersRow(i, "u"+string(rune('a'+i))+"@x.com", 20+i))
		require.NoError(t, err)
		require.True(t, status.OK())
	}

	pk, ok := cat.GetIndex("users", "_users_PK_")
	require.True(t, ok)
	key, err := pk.KeySchema.Encode(record.Row{Fields: []record.Field{record.NewIntField(3)}}, pk.Tree.Width())
	require.NoError(t, err)
	rid, found, err := pk.Tree.GetValue(key)
	require.NoError(t, err)
	require.True(t, found)

	row, err := ti.Heap.GetTuple(rid, ti.Schema)
	require.NoError(t, err)
	require.Equal(t, int32(3), row.Fields[0].IntVal)
}

func TestUpdateChangingPrimaryKeyMaintainsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat, _, dm := newTestCatalog(t, path, 32)
	defer dm.Close()

	ti, _, err := cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)

	rid, status, err := cat.Insert("users", usersRow(1, "a@x.com", 30))
	require.NoError(t, err)
	require.True(t, status.OK())

	oldRow, err := ti.Heap.GetTuple(rid, ti.Schema)
	require.NoError(t, err)
	newRow := usersRow(9, "a2@x.com", 31)

	newRID, status, err := cat.Update("users", oldRow, newRow)
	require.NoError(t, err)
	require.True(t, status.OK())

	pk, ok := cat.GetIndex("users", "_users_PK_")
	require.True(t, ok)

	oldKey, err := pk.KeySchema.Encode(record.Row{Fields: []record.Field{record.NewIntField(1)}}, pk.Tree.Width())
	require.NoError(t, err)
	_, found, err := pk.Tree.GetValue(oldKey)
	require.NoError(t, err)
	require.False(t, found)

	newKey, err := pk.KeySchema.Encode(record.Row{Fields: []record.Field{record.NewIntField(9)}}, pk.Tree.Width())
	require.NoError(t, err)
	gotRID, found, err := pk.Tree.GetValue(newKey)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, newRID, gotRID)
}

func TestDeleteRemovesRowAndIndexEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat, _, dm := newTestCatalog(t, path, 32)
	defer dm.Close()

	ti, _, err := cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)

	rid, status, err := cat.Insert("users", usersRow(1, "a@x.com", 30))
	require.NoError(t, err)
	require.True(t, status.OK())

	row, err := ti.Heap.GetTuple(rid, ti.Schema)
	require.NoError(t, err)

	status, err = cat.Delete("users", row)
	require.NoError(t, err)
	require.True(t, status.OK())

	pk, ok := cat.GetIndex("users", "_users_PK_")
	require.True(t, ok)
	key, err := pk.KeySchema.Encode(record.Row{Fields: []record.Field{record.NewIntField(1)}}, pk.Tree.Width())
	require.NoError(t, err)
	_, found, err := pk.Tree.GetValue(key)
	require.NoError(t, err)
	require.False(t, found)
}

func TestCreateIndexRejectsNonUniqueColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat, _, dm := newTestCatalog(t, path, 32)
	defer dm.Close()

	_, _, err := cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)

	_, status, err := cat.Insert("users", usersRow(1, "a@x.com", 30))
	require.NoError(t, err)
	require.True(t, status.OK())
	_, status, err = cat.Insert("users", usersRow(2, "b@x.com", 30))
	require.NoError(t, err)
	require.True(t, status.OK())

	_, status, err = cat.CreateIndex("users", "_users_age_", []string{"age"})
	require.NoError(t, err)
	require.Equal(t, StatusColumnNotUnique, status)
}

func TestCreateIndexOnProvablyUniqueDataSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat, _, dm := newTestCatalog(t, path, 32)
	defer dm.Close()

	_, _, err := cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)

	for i := int32(0); i < 3; i++ {
		_, status, err := cat.Insert("users", usersRow(i, "u"+string(rune('a'+i))+"@x.com", 20+i))
		require.NoError(t, err)
		require.True(t, status.OK())
	}

	_, status, err := cat.CreateIndex("users", "_users_age_", []string{"age"})
	require.NoError(t, err)
	require.True(t, status.OK())

	ti, _ := cat.GetTable("users")
	col, _ := ti.Schema.ColumnByName("age")
	require.True(t, col.Unique)
}

func TestDropTableFreesHeapAndIndexes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat, _, dm := newTestCatalog(t, path, 32)
	defer dm.Close()

	_, _, err := cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)

	status, err := cat.DropTable("users")
	require.NoError(t, err)
	require.True(t, status.OK())

	_, ok := cat.GetTable("users")
	require.False(t, ok)

	status, err = cat.DropTable("users")
	require.NoError(t, err)
	require.Equal(t, StatusTableNotExist, status)
}

func TestCatalogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := disk.Open(path, nil)
	require.NoError(t, err)
	pool := buffer.NewPool(dm, replacer.NewLRU(), 32, nil)
	cat, err := Create(pool, nil)
	require.NoError(t, err)

	_, status, err := cat.CreateTable("users", usersSchema(), []uint32{0})
	require.NoError(t, err)
	require.True(t, status.OK())

	_, status, err = cat.Insert("users", usersRow(1, "a@x.com", 30))
	require.NoError(t, err)
	require.True(t, status.OK())

	require.NoError(t, cat.Close())
	require.NoError(t, dm.Close())

	dm2, err := disk.Open(path, nil)
	require.NoError(t, err)
	defer dm2.Close()
	pool2 := buffer.NewPool(dm2, replacer.NewLRU(), 32, nil)
	cat2, err := Open(pool2, nil)
	require.NoError(t, err)

	ti, ok := cat2.GetTable("users")
	require.True(t, ok)
	require.Equal(t, "users", ti.Name)

	pk, ok := cat2.GetIndex("users", "_users_PK_")
	require.True(t, ok)
	key, err := pk.KeySchema.Encode(record.Row{Fields: []record.Field{record.NewIntField(1)}}, pk.Tree.Width())
	require.NoError(t, err)
	rid, found, err := pk.Tree.GetValue(key)
	require.NoError(t, err)
	require.True(t, found)

	row, err := ti.Heap.GetTuple(rid, ti.Schema)
	require.NoError(t, err)
	require.Equal(t, int32(1), row.Fields[0].IntVal)
}
