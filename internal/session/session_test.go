package session

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagedb/internal/engine/sql"
)

func mustParse(t *testing.T, src string) sql.Statement {
	t.Helper()
	stmt, err := sql.Parse(src)
	require.NoError(t, err)
	return stmt
}

func TestCreateUseAndShowDatabases(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, &bytes.Buffer{})
	defer s.Close()

	rs, err := s.Execute(mustParse(t, "CREATE DATABASE shop"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())

	name, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, "shop", name)

	rs, err = s.Execute(mustParse(t, "SHOW DATABASES"))
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, "shop", rs.Rows[0]["database"])
}

func TestCreateDatabaseTwiceFails(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, &bytes.Buffer{})
	defer s.Close()

	_, err := s.Execute(mustParse(t, "CREATE DATABASE shop"))
	require.NoError(t, err)

	_, err = s.Execute(mustParse(t, "CREATE DATABASE shop"))
	require.Error(t, err)
}

func TestStatementWithoutUseFails(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, &bytes.Buffer{})
	defer s.Close()

	_, err := s.Execute(mustParse(t, "SHOW TABLES"))
	require.Error(t, err)
}

func TestCreateTableAndInsertThroughSession(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, &bytes.Buffer{})
	defer s.Close()

	_, err := s.Execute(mustParse(t, "CREATE DATABASE shop"))
	require.NoError(t, err)

	rs, err := s.Execute(mustParse(t, "CREATE TABLE items (id INT, name CHAR(8), PRIMARY KEY (id))"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())

	rs, err = s.Execute(mustParse(t, "INSERT INTO items VALUES(1, 'widget')"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())

	rs, err = s.Execute(mustParse(t, "SELECT id, name FROM items WHERE id = 1"))
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, "widget", rs.Rows[0]["name"])
}

func TestDropDatabaseClosesAndRemovesFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, &bytes.Buffer{})
	defer s.Close()

	_, err := s.Execute(mustParse(t, "CREATE DATABASE shop"))
	require.NoError(t, err)

	_, err = s.Execute(mustParse(t, "DROP DATABASE shop"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "shop.db"))
	require.True(t, os.IsNotExist(err))

	_, ok := s.Current()
	require.False(t, ok)
}

func TestUseDatabaseReopensExistingFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, &bytes.Buffer{})

	_, err := s.Execute(mustParse(t, "CREATE DATABASE shop"))
	require.NoError(t, err)
	_, err = s.Execute(mustParse(t, "CREATE TABLE items (id INT, PRIMARY KEY (id))"))
	require.NoError(t, err)
	_, err = s.Execute(mustParse(t, "INSERT INTO items VALUES(1)"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2 := New(dir, nil, &bytes.Buffer{})
	defer s2.Close()

	rs, err := s2.Execute(mustParse(t, "USE shop"))
	require.NoError(t, err)
	require.True(t, rs.Status.OK())

	rs, err = s2.Execute(mustParse(t, "SELECT id FROM items"))
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, int32(1), rs.Rows[0]["id"])
}

func TestQuitReturnsErrQuit(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, &bytes.Buffer{})
	defer s.Close()

	_, err := s.Execute(mustParse(t, "QUIT"))
	require.ErrorIs(t, err, ErrQuit)
}

func TestExecFileRunsEachStatementAndStreamsOutput(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "setup.sql")
	require.NoError(t, os.WriteFile(script, []byte(
		"-- seed data\n"+
			"CREATE TABLE items (id INT, PRIMARY KEY (id));\n"+
			"INSERT INTO items VALUES(1);\n"+
			"INSERT INTO items VALUES(2);\n"+
			"SELECT id FROM items;\n",
	), 0o644))

	var out bytes.Buffer
	s := New(dir, nil, &out)
	defer s.Close()

	_, err := s.Execute(mustParse(t, "CREATE DATABASE shop"))
	require.NoError(t, err)

	rs, err := s.Execute(sql.ExecFile{Path: script})
	require.NoError(t, err)
	require.Equal(t, 4, rs.RowsAffected)
	require.Contains(t, out.String(), "id")
}
