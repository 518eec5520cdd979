package sql

import "pagedb/internal/storage/record"

// Expr is the root interface for every parsed WHERE/SET expression node.
type Expr interface{ exprNode() }

// VarRef refers to a column by name.
type VarRef struct{ Name string }

// Literal holds a constant value: int32, float32, string, bool, or nil (NULL).
type Literal struct{ Val any }

// Unary represents a prefix operator: NOT or unary minus.
type Unary struct {
	Op   string
	Expr Expr
}

// Binary represents a comparison (=, <>, <, <=, >, >=) or a boolean
// connective (AND, OR).
type Binary struct {
	Op          string
	Left, Right Expr
}

// IsNull represents `expr IS [NOT] NULL`.
type IsNull struct {
	Expr   Expr
	Negate bool
}

func (VarRef) exprNode()  {}
func (Literal) exprNode() {}
func (Unary) exprNode()   {}
func (Binary) exprNode()  {}
func (IsNull) exprNode()  {}

// Statement is the root interface for every parsed statement kind in
// the statement surface.
type Statement interface{ stmtNode() }

// ColumnDef is one column of a CREATE TABLE column-definition list.
type ColumnDef struct {
	Name     string
	Type     record.TypeID
	Length   uint32 // meaningful for CHAR(N) only
	Unique   bool
	Nullable bool
}

// CreateDatabase is `CREATE DATABASE <name>`.
type CreateDatabase struct{ Name string }

// DropDatabase is `DROP DATABASE <name>`.
type DropDatabase struct{ Name string }

// ShowDatabases is `SHOW DATABASES`.
type ShowDatabases struct{}

// UseDatabase is `USE <name>`.
type UseDatabase struct{ Name string }

// ShowTables is `SHOW TABLES`.
type ShowTables struct{}

// CreateTable is `CREATE TABLE <name> (<col-def>+ [, PRIMARY KEY (<col>+)])`.
type CreateTable struct {
	Name       string
	Columns    []ColumnDef
	PrimaryKey []string // column names, empty if none declared
}

// DropTable is `DROP TABLE <name>`.
type DropTable struct{ Name string }

// ShowIndex is `SHOW INDEX` (optionally scoped to one table).
type ShowIndex struct{ Table string } // Table == "" means every table

// CreateIndex is `CREATE INDEX <name> ON <table>(<col>+)`.
type CreateIndex struct {
	Name    string
	Table   string
	Columns []string
}

// DropIndex is `DROP INDEX <name> [ON <table>]`. Table == "" cascades
// across every table carrying an index of that name.
type DropIndex struct {
	Name  string
	Table string
}

// Select is `SELECT {* | col-list} FROM <t> [WHERE …]`.
type Select struct {
	Star    bool
	Columns []string
	Table   string
	Where   Expr
}

// Insert is `INSERT INTO <t> VALUES(…)`.
type Insert struct {
	Table  string
	Values []Expr
}

// Update is `UPDATE <t> SET col=expr[,…] [WHERE …]`.
type Update struct {
	Table string
	Sets  []SetClause
	Where Expr
}

// SetClause is one `col = expr` inside an UPDATE's SET list.
type SetClause struct {
	Column string
	Value  Expr
}

// Delete is `DELETE FROM <t> [WHERE …]`.
type Delete struct {
	Table string
	Where Expr
}

// ExecFile is `EXECFILE <path>`.
type ExecFile struct{ Path string }

// Quit is `QUIT`.
type Quit struct{}

func (CreateDatabase) stmtNode() {}
func (DropDatabase) stmtNode()   {}
func (ShowDatabases) stmtNode()  {}
func (UseDatabase) stmtNode()    {}
func (ShowTables) stmtNode()     {}
func (CreateTable) stmtNode()    {}
func (DropTable) stmtNode()      {}
func (ShowIndex) stmtNode()      {}
func (CreateIndex) stmtNode()    {}
func (DropIndex) stmtNode()      {}
func (Select) stmtNode()         {}
func (Insert) stmtNode()         {}
func (Update) stmtNode()         {}
func (Delete) stmtNode()         {}
func (ExecFile) stmtNode()       {}
func (Quit) stmtNode()           {}
