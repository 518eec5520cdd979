package exec

import (
	"fmt"
	"strings"

	"pagedb/internal/engine/sql"
	"pagedb/internal/storage/catalog"
	"pagedb/internal/storage/record"
)

func (env *Env) executeCreateTable(s sql.CreateTable) (*ResultSet, error) {
	cols := make([]record.Column, len(s.Columns))
	for i, cd := range s.Columns {
		cols[i] = record.NewColumn(cd.Name, cd.Type, cd.Length, uint32(i), cd.Nullable, cd.Unique)
	}
	schema := record.NewSchema(cols...)

	pk := make([]uint32, len(s.PrimaryKey))
	for i, name := range s.PrimaryKey {
		col, ok := schema.ColumnByName(name)
		if !ok {
			return nil, fmt.Errorf("exec: create table %q: primary key column %q does not exist", s.Name, name)
		}
		pk[i] = col.Index
	}

	_, status, err := env.Catalog.CreateTable(s.Name, schema, pk)
	if err != nil {
		return nil, err
	}
	return &ResultSet{Status: status}, nil
}

func (env *Env) executeDropTable(s sql.DropTable) (*ResultSet, error) {
	status, err := env.Catalog.DropTable(s.Name)
	if err != nil {
		return nil, err
	}
	return &ResultSet{Status: status}, nil
}

func (env *Env) executeCreateIndex(s sql.CreateIndex) (*ResultSet, error) {
	_, status, err := env.Catalog.CreateIndex(s.Table, s.Name, s.Columns)
	if err != nil {
		return nil, err
	}
	return &ResultSet{Status: status}, nil
}

func (env *Env) executeDropIndex(s sql.DropIndex) (*ResultSet, error) {
	var status catalog.Status
	var err error
	if s.Table == "" {
		status, err = env.Catalog.DropIndexByName(s.Name)
	} else {
		status, err = env.Catalog.DropIndex(s.Table, s.Name)
	}
	if err != nil {
		return nil, err
	}
	return &ResultSet{Status: status}, nil
}

func (env *Env) executeShowTables() (*ResultSet, error) {
	tables := env.Catalog.GetTables()
	rows := make([]Row, 0, len(tables))
	for _, t := range tables {
		rows = append(rows, Row{"table": t.Name})
	}
	return &ResultSet{Cols: []string{"table"}, Rows: rows, Status: catalog.StatusSuccess}, nil
}

func (env *Env) executeShowIndex(s sql.ShowIndex) (*ResultSet, error) {
	rs := &ResultSet{Cols: []string{"table", "index", "columns", "primary"}}

	appendIndex := func(tableName string, ix *catalog.IndexInfo, schema *record.Schema) {
		names := make([]string, len(ix.KeyMap))
		for i, pos := range ix.KeyMap {
			names[i] = schema.Columns[pos].Name
		}
		rs.Rows = append(rs.Rows, Row{
			"table":   tableName,
			"index":   ix.Name,
			"columns": strings.Join(names, ","),
			"primary": ix.IsPrimary,
		})
	}

	if s.Table != "" {
		ixs, ok := env.Catalog.GetTableIndexes(s.Table)
		if !ok {
			rs.Status = catalog.StatusTableNotExist
			return rs, nil
		}
		ti, _ := env.Catalog.GetTable(s.Table)
		for _, ix := range ixs {
			appendIndex(s.Table, ix, ti.Schema)
		}
		rs.Status = catalog.StatusSuccess
		return rs, nil
	}

	for _, t := range env.Catalog.GetTables() {
		for _, ix := range t.Indexes {
			appendIndex(t.Name, ix, t.Schema)
		}
	}
	rs.Status = catalog.StatusSuccess
	return rs, nil
}
