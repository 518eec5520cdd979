package exec

import (
	"fmt"
	"strings"

	"pagedb/internal/engine/sql"
	"pagedb/internal/storage/catalog"
	"pagedb/internal/storage/record"
)

func (env *Env) executeSelect(s sql.Select) (*ResultSet, error) {
	ti, ok := env.Catalog.GetTable(s.Table)
	if !ok {
		return &ResultSet{Status: catalog.StatusTableNotExist}, nil
	}

	cols := s.Columns
	if s.Star {
		cols = columnNames(ti.Schema)
	}
	for _, c := range cols {
		if _, ok := ti.Schema.ColumnByName(c); !ok {
			return nil, fmt.Errorf("exec: select %q: column %q does not exist", s.Table, c)
		}
	}

	rows, plan, err := matchingRows(ti, s.Where)
	if err != nil {
		return nil, err
	}
	env.log.WithField("table", s.Table).Debugf("select access path: %s", plan)

	rs := &ResultSet{Cols: cols, Plan: plan, Status: catalog.StatusSuccess}
	for _, row := range rows {
		rs.Rows = append(rs.Rows, projectRow(row, ti.Schema, cols))
	}
	return rs, nil
}

func columnNames(schema *record.Schema) []string {
	out := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		out[i] = c.Name
	}
	return out
}

func projectRow(row record.Row, schema *record.Schema, cols []string) Row {
	out := make(Row, len(cols))
	for _, c := range cols {
		col, _ := schema.ColumnByName(c)
		out[c] = fieldToGoValue(row.Fields[col.Index])
	}
	return out
}

func fieldToGoValue(f record.Field) any {
	if f.Null {
		return nil
	}
	switch f.Type {
	case record.TypeInt:
		return f.IntVal
	case record.TypeFloat:
		return f.FloatVal
	case record.TypeChar:
		return strings.TrimRight(string(f.CharVal), "\x00")
	default:
		return nil
	}
}
