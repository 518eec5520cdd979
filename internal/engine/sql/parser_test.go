package sql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pagedb/internal/storage/record"
)

func TestParseCreateTableWithPrimaryKey(t *testing.T) {
	stmt, err := Parse("CREATE TABLE users (id INT, email CHAR(16) UNIQUE, age INT, PRIMARY KEY (id))")
	require.NoError(t, err)
	ct, ok := stmt.(CreateTable)
	require.True(t, ok)
	require.Equal(t, "users", ct.Name)
	require.Equal(t, []string{"id"}, ct.PrimaryKey)
	require.Len(t, ct.Columns, 3)
	require.Equal(t, record.TypeInt, ct.Columns[0].Type)
	require.False(t, ct.Columns[0].Nullable)
	require.Equal(t, record.TypeChar, ct.Columns[1].Type)
	require.EqualValues(t, 16, ct.Columns[1].Length)
	require.True(t, ct.Columns[1].Unique)
	require.True(t, ct.Columns[2].Nullable)
}

func TestParseCreateIndex(t *testing.T) {
	stmt, err := Parse("CREATE INDEX idx_age ON users(age)")
	require.NoError(t, err)
	ci, ok := stmt.(CreateIndex)
	require.True(t, ok)
	require.Equal(t, "idx_age", ci.Name)
	require.Equal(t, "users", ci.Table)
	require.Equal(t, []string{"age"}, ci.Columns)
}

func TestParseDropIndexCascading(t *testing.T) {
	stmt, err := Parse("DROP INDEX idx_age")
	require.NoError(t, err)
	di, ok := stmt.(DropIndex)
	require.True(t, ok)
	require.Equal(t, "", di.Table)
}

func TestParseSelectWithWhere(t *testing.T) {
	stmt, err := Parse("SELECT id, email FROM users WHERE age >= 18 AND NOT email IS NULL")
	require.NoError(t, err)
	sel, ok := stmt.(Select)
	require.True(t, ok)
	require.False(t, sel.Star)
	require.Equal(t, []string{"id", "email"}, sel.Columns)
	require.Equal(t, "users", sel.Table)

	and, ok := sel.Where.(Binary)
	require.True(t, ok)
	require.Equal(t, "AND", and.Op)
	ge, ok := and.Left.(Binary)
	require.True(t, ok)
	require.Equal(t, ">=", ge.Op)
	lit, ok := ge.Right.(Literal)
	require.True(t, ok)
	require.Equal(t, int32(18), lit.Val)

	not, ok := and.Right.(Unary)
	require.True(t, ok)
	require.Equal(t, "NOT", not.Op)
	isNull, ok := not.Expr.(IsNull)
	require.True(t, ok)
	require.False(t, isNull.Negate)
}

func TestParseSelectStar(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users")
	require.NoError(t, err)
	sel, ok := stmt.(Select)
	require.True(t, ok)
	require.True(t, sel.Star)
}

func TestParseInsert(t *testing.T) {
	stmt, err := Parse("INSERT INTO users VALUES(1, 'a@x.com', 30)")
	require.NoError(t, err)
	ins, ok := stmt.(Insert)
	require.True(t, ok)
	require.Equal(t, "users", ins.Table)
	require.Len(t, ins.Values, 3)
	require.Equal(t, int32(1), ins.Values[0].(Literal).Val)
	require.Equal(t, "a@x.com", ins.Values[1].(Literal).Val)
	require.Equal(t, int32(30), ins.Values[2].(Literal).Val)
}

func TestParseUpdate(t *testing.T) {
	stmt, err := Parse("UPDATE users SET age = 31, email = 'b@x.com' WHERE id = 1")
	require.NoError(t, err)
	upd, ok := stmt.(Update)
	require.True(t, ok)
	require.Equal(t, "users", upd.Table)
	require.Len(t, upd.Sets, 2)
	require.Equal(t, "age", upd.Sets[0].Column)
	require.NotNil(t, upd.Where)
}

func TestParseDelete(t *testing.T) {
	stmt, err := Parse("DELETE FROM users WHERE id = 1")
	require.NoError(t, err)
	del, ok := stmt.(Delete)
	require.True(t, ok)
	require.Equal(t, "users", del.Table)
	require.NotNil(t, del.Where)
}

func TestParseMisc(t *testing.T) {
	cases := map[string]Statement{
		"CREATE DATABASE shop":     CreateDatabase{Name: "shop"},
		"DROP DATABASE shop":       DropDatabase{Name: "shop"},
		"SHOW DATABASES":           ShowDatabases{},
		"USE shop":                 UseDatabase{Name: "shop"},
		"SHOW TABLES":              ShowTables{},
		"DROP TABLE users":         DropTable{Name: "users"},
		"SHOW INDEX":               ShowIndex{},
		"SHOW INDEX ON users":      ShowIndex{Table: "users"},
		"QUIT":                     Quit{},
		"EXECFILE 'script.sql'":    ExecFile{Path: "script.sql"},
	}
	for src, want := range cases {
		stmt, err := Parse(src)
		require.NoError(t, err, src)
		require.Equal(t, want, stmt, src)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("SELECT FROM")
	require.Error(t, err)
}
