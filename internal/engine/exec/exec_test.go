package exec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagedb/internal/engine/sql"
	"pagedb/internal/storage/buffer"
	"pagedb/internal/storage/catalog"
	"pagedb/internal/storage/disk"
	"pagedb/internal/storage/replacer"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := disk.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	pool := buffer.NewPool(dm, replacer.NewLRU(), 64, nil)
	cat, err := catalog.Create(pool, nil)
	require.NoError(t, err)
	return New(cat, nil)
}

func mustParse(t *testing.T, src string) sql.Statement {
	t.Helper()
	stmt, err := sql.Parse(src)
	require.NoError(t, err)
	return stmt
}

func setupUsers(t *testing.T, env *Env) {
	t.Helper()
	rs, err := env.Execute(mustParse(t, "CREATE TABLE users (id INT, email CHAR(16) UNIQUE, age INT, PRIMARY KEY (id))"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())

	inserts := []string{
		"INSERT INTO users VALUES(1, 'a@x.com', 18)",
		"INSERT INTO users VALUES(2, 'b@x.com', 25)",
		"INSERT INTO users VALUES(3, 'c@x.com', 30)",
		"INSERT INTO users VALUES(4, 'd@x.com', 40)",
	}
	for _, s := range inserts {
		rs, err := env.Execute(mustParse(t, s))
		require.NoError(t, err)
		require.True(t, rs.Status.OK())
		require.Equal(t, 1, rs.RowsAffected)
	}
}

func rowIDs(rows []Row) []int32 {
	out := make([]int32, len(rows))
	for i, r := range rows {
		out[i] = r["id"].(int32)
	}
	return out
}

func TestCreateTableThenShowTables(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "SHOW TABLES"))
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, "users", rs.Rows[0]["table"])
}

func TestSelectFullHeapScanWithoutIndex(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "SELECT id FROM users WHERE age > 20 AND age < 40"))
	require.NoError(t, err)
	require.Equal(t, "heap-scan", rs.Plan)
	require.ElementsMatch(t, []int32{2, 3}, rowIDs(rs.Rows))
}

func TestSelectAcceleratedThroughPrimaryKey(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "SELECT id, email FROM users WHERE id = 3"))
	require.NoError(t, err)
	require.Equal(t, "index:_users_PK_", rs.Plan)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, int32(3), rs.Rows[0]["id"])
	require.Equal(t, "c@x.com", rs.Rows[0]["email"])
}

func TestSelectAcceleratedThroughUniqueIndex(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "SELECT id FROM users WHERE email = 'b@x.com'"))
	require.NoError(t, err)
	require.Equal(t, "index:_users_UNI_email_", rs.Plan)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, int32(2), rs.Rows[0]["id"])
}

func TestSelectNoMatchThroughIndexReturnsEmpty(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "SELECT id FROM users WHERE id = 999"))
	require.NoError(t, err)
	require.Equal(t, "index:_users_PK_", rs.Plan)
	require.Empty(t, rs.Rows)
}

func TestSelectStarProjectsEveryColumn(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "SELECT * FROM users WHERE id = 1"))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"id", "email", "age"}, rs.Cols)
	require.Len(t, rs.Rows, 1)
}

func TestSelectThreeValuedNullHandling(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "INSERT INTO users VALUES(5, 'e@x.com', NULL)"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())

	rs, err = env.Execute(mustParse(t, "SELECT id FROM users WHERE age > 10"))
	require.NoError(t, err)
	require.NotContains(t, rowIDs(rs.Rows), int32(5))

	rs, err = env.Execute(mustParse(t, "SELECT id FROM users WHERE age IS NULL"))
	require.NoError(t, err)
	require.Equal(t, []int32{5}, rowIDs(rs.Rows))
}

func TestUpdateChangesMatchingRowsOnly(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "UPDATE users SET age = 99 WHERE age >= 30"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())
	require.Equal(t, 2, rs.RowsAffected)

	rs, err = env.Execute(mustParse(t, "SELECT id FROM users WHERE age = 99"))
	require.NoError(t, err)
	require.ElementsMatch(t, []int32{3, 4}, rowIDs(rs.Rows))
}

func TestUpdatePrimaryKeyConflictStopsAndReportsStatus(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "UPDATE users SET id = 2 WHERE id = 1"))
	require.NoError(t, err)
	require.Equal(t, catalog.StatusPKDuplicate, rs.Status)
}

func TestDeleteRemovesMatchingRows(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "DELETE FROM users WHERE age < 30"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())
	require.Equal(t, 2, rs.RowsAffected)

	rs, err = env.Execute(mustParse(t, "SELECT id FROM users"))
	require.NoError(t, err)
	require.ElementsMatch(t, []int32{3, 4}, rowIDs(rs.Rows))
}

func TestCreateIndexThenDropIndexByTableAndCascading(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "CREATE INDEX idx_age ON users(age)"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())

	rs, err = env.Execute(mustParse(t, "SELECT id FROM users WHERE age >= 25 AND age <= 30"))
	require.NoError(t, err)
	require.Equal(t, "index:idx_age", rs.Plan)
	require.ElementsMatch(t, []int32{2, 3}, rowIDs(rs.Rows))

	rs, err = env.Execute(mustParse(t, "DROP INDEX idx_age"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())

	rs, err = env.Execute(mustParse(t, "SHOW INDEX ON users"))
	require.NoError(t, err)
	for _, row := range rs.Rows {
		require.NotEqual(t, "idx_age", row["index"])
	}
}

func TestDropTableRemovesFromCatalog(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)

	rs, err := env.Execute(mustParse(t, "DROP TABLE users"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())

	rs, err = env.Execute(mustParse(t, "SELECT id FROM users"))
	require.NoError(t, err)
	require.Equal(t, catalog.StatusTableNotExist, rs.Status)
}

func TestFormatResultSetRendersNullLiterally(t *testing.T) {
	env := newTestEnv(t)
	setupUsers(t, env)
	_, err := env.Execute(mustParse(t, "INSERT INTO users VALUES(5, 'e@x.com', NULL)"))
	require.NoError(t, err)

	rs, err := env.Execute(mustParse(t, "SELECT id, age FROM users WHERE id = 5"))
	require.NoError(t, err)

	out := FormatResultSet(rs)
	require.Contains(t, out, "NULL")
}

func TestFormatStatusReportsFailure(t *testing.T) {
	rs := &ResultSet{Status: catalog.StatusTableNotExist}
	require.Contains(t, FormatStatus(rs), "TABLE_NOT_EXIST")
}
