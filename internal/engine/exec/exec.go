package exec

import (
	"fmt"

	"pagedb/internal/engine/sql"
)

// Execute dispatches one parsed statement to its handler. Database-
// lifecycle statements (CREATE/DROP/SHOW DATABASES, USE, EXECFILE, QUIT)
// are not handled here: a Catalog is already scoped to one open database
// file, so switching between databases is a session-level concern.
func (env *Env) Execute(stmt sql.Statement) (*ResultSet, error) {
	switch s := stmt.(type) {
	case sql.CreateTable:
		return env.executeCreateTable(s)
	case sql.DropTable:
		return env.executeDropTable(s)
	case sql.CreateIndex:
		return env.executeCreateIndex(s)
	case sql.DropIndex:
		return env.executeDropIndex(s)
	case sql.ShowTables:
		return env.executeShowTables()
	case sql.ShowIndex:
		return env.executeShowIndex(s)
	case sql.Insert:
		return env.executeInsert(s)
	case sql.Update:
		return env.executeUpdate(s)
	case sql.Delete:
		return env.executeDelete(s)
	case sql.Select:
		return env.executeSelect(s)
	default:
		return nil, fmt.Errorf("exec: statement %T is not handled by the executor", stmt)
	}
}
