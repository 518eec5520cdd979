package exec

import (
	"fmt"

	"pagedb/internal/engine/sql"
	"pagedb/internal/storage/catalog"
	"pagedb/internal/storage/record"
)

func (env *Env) executeInsert(s sql.Insert) (*ResultSet, error) {
	ti, ok := env.Catalog.GetTable(s.Table)
	if !ok {
		return &ResultSet{Status: catalog.StatusTableNotExist}, nil
	}
	if len(s.Values) != ti.Schema.Len() {
		return nil, fmt.Errorf("exec: insert into %q expects %d values, got %d", s.Table, ti.Schema.Len(), len(s.Values))
	}

	fields := make([]record.Field, len(s.Values))
	for i, v := range s.Values {
		col := ti.Schema.Columns[i]
		f, err := literalFieldAs(v, col.Type, col.Length)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}

	_, status, err := env.Catalog.Insert(s.Table, record.Row{Fields: fields})
	if err != nil {
		return nil, err
	}
	rs := &ResultSet{Status: status}
	if status.OK() {
		rs.RowsAffected = 1
	}
	return rs, nil
}

func (env *Env) executeUpdate(s sql.Update) (*ResultSet, error) {
	ti, ok := env.Catalog.GetTable(s.Table)
	if !ok {
		return &ResultSet{Status: catalog.StatusTableNotExist}, nil
	}

	rows, plan, err := matchingRows(ti, s.Where)
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Plan: plan}
	env.log.WithField("table", s.Table).Debugf("update access path: %s", plan)

	for _, oldRow := range rows {
		newRow := record.Row{Fields: append([]record.Field(nil), oldRow.Fields...), RID: oldRow.RID}
		for _, set := range s.Sets {
			col, ok := ti.Schema.ColumnByName(set.Column)
			if !ok {
				return nil, fmt.Errorf("exec: update %q: column %q does not exist", s.Table, set.Column)
			}
			f, err := resolveSetValue(oldRow, ti.Schema, col, set.Value)
			if err != nil {
				return nil, err
			}
			newRow.Fields[col.Index] = f
		}

		_, status, err := env.Catalog.Update(s.Table, oldRow, newRow)
		if err != nil {
			return nil, err
		}
		if !status.OK() {
			rs.Status = status
			return rs, nil
		}
		rs.RowsAffected++
	}
	rs.Status = catalog.StatusSuccess
	return rs, nil
}

func (env *Env) executeDelete(s sql.Delete) (*ResultSet, error) {
	ti, ok := env.Catalog.GetTable(s.Table)
	if !ok {
		return &ResultSet{Status: catalog.StatusTableNotExist}, nil
	}

	rows, plan, err := matchingRows(ti, s.Where)
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Plan: plan}
	env.log.WithField("table", s.Table).Debugf("delete access path: %s", plan)

	for _, row := range rows {
		status, err := env.Catalog.Delete(s.Table, row)
		if err != nil {
			return nil, err
		}
		if !status.OK() {
			rs.Status = status
			return rs, nil
		}
		rs.RowsAffected++
	}
	rs.Status = catalog.StatusSuccess
	return rs, nil
}

// resolveSetValue types a SET clause's right-hand side: a literal is
// coerced to col's declared type, a bare column reference copies that
// column's current value from the row being updated.
func resolveSetValue(row record.Row, schema *record.Schema, col record.Column, e sql.Expr) (record.Field, error) {
	if isLiteralExpr(e) {
		return literalFieldAs(e, col.Type, col.Length)
	}
	if v, ok := e.(sql.VarRef); ok {
		f, _, err := fieldForVarRef(row, schema, v)
		return f, err
	}
	return record.Field{}, fmt.Errorf("exec: unsupported SET expression for column %q", col.Name)
}
