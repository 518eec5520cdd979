package exec

import (
	"fmt"

	"pagedb/internal/engine/sql"
	"pagedb/internal/storage/record"
)

// evalPredicate evaluates a WHERE/boolean expression against row using
// three-valued logic (spec §4.8 step 3): only a True result selects the
// row, both False and Unknown (NULL) reject it.
func evalPredicate(row record.Row, schema *record.Schema, e sql.Expr) (record.TriState, error) {
	switch v := e.(type) {
	case sql.Binary:
		switch v.Op {
		case "AND":
			l, err := evalPredicate(row, schema, v.Left)
			if err != nil {
				return record.Unknown, err
			}
			r, err := evalPredicate(row, schema, v.Right)
			if err != nil {
				return record.Unknown, err
			}
			return l.And(r), nil
		case "OR":
			l, err := evalPredicate(row, schema, v.Left)
			if err != nil {
				return record.Unknown, err
			}
			r, err := evalPredicate(row, schema, v.Right)
			if err != nil {
				return record.Unknown, err
			}
			return l.Or(r), nil
		default:
			lf, rf, err := evalComparisonOperands(row, schema, v.Left, v.Right)
			if err != nil {
				return record.Unknown, err
			}
			return compareFields(lf, rf, v.Op)
		}
	case sql.Unary:
		if v.Op != "NOT" {
			return record.Unknown, fmt.Errorf("exec: %q is not a boolean expression", v.Op)
		}
		inner, err := evalPredicate(row, schema, v.Expr)
		if err != nil {
			return record.Unknown, err
		}
		return inner.Not(), nil
	case sql.IsNull:
		f, err := evalFieldValue(row, schema, v.Expr)
		if err != nil {
			return record.Unknown, err
		}
		result := f.IsNull()
		if v.Negate {
			return result.Not(), nil
		}
		return result, nil
	default:
		return record.Unknown, fmt.Errorf("exec: expression is not a boolean predicate")
	}
}

func compareFields(lf, rf record.Field, op string) (record.TriState, error) {
	switch op {
	case "=":
		return lf.Equal(rf), nil
	case "<>":
		return lf.NotEqual(rf), nil
	case "<":
		return lf.Less(rf), nil
	case "<=":
		return lf.LessEqual(rf), nil
	case ">":
		return lf.Greater(rf), nil
	case ">=":
		return lf.GreaterEqual(rf), nil
	default:
		return record.Unknown, fmt.Errorf("exec: unknown comparison operator %q", op)
	}
}

// evalComparisonOperands resolves both sides of a comparison to typed
// Fields. Whichever side names a column decides the type a literal on the
// other side is parsed as; if both sides are columns, each keeps its own
// column's type (Field.compare rejects a mismatch).
func evalComparisonOperands(row record.Row, schema *record.Schema, left, right sql.Expr) (record.Field, record.Field, error) {
	lVar, lIsVar := asVarRef(left)
	rVar, rIsVar := asVarRef(right)

	switch {
	case lIsVar && !rIsVar:
		lf, col, err := fieldForVarRef(row, schema, lVar)
		if err != nil {
			return record.Field{}, record.Field{}, err
		}
		rf, err := literalFieldAs(right, col.Type, col.Length)
		return lf, rf, err
	case rIsVar && !lIsVar:
		rf, col, err := fieldForVarRef(row, schema, rVar)
		if err != nil {
			return record.Field{}, record.Field{}, err
		}
		lf, err := literalFieldAs(left, col.Type, col.Length)
		return lf, rf, err
	case lIsVar && rIsVar:
		lf, _, err := fieldForVarRef(row, schema, lVar)
		if err != nil {
			return record.Field{}, record.Field{}, err
		}
		rf, _, err := fieldForVarRef(row, schema, rVar)
		if err != nil {
			return record.Field{}, record.Field{}, err
		}
		return lf, rf, nil
	default:
		lf, err := defaultFieldFromLiteral(left)
		if err != nil {
			return record.Field{}, record.Field{}, err
		}
		rf, err := literalFieldAs(right, lf.Type, uint32(len(lf.CharVal)))
		return lf, rf, err
	}
}

// evalFieldValue resolves a single expression (IS NULL's operand, or a
// bare VarRef/literal) to a Field.
func evalFieldValue(row record.Row, schema *record.Schema, e sql.Expr) (record.Field, error) {
	if v, ok := asVarRef(e); ok {
		f, _, err := fieldForVarRef(row, schema, v)
		return f, err
	}
	return defaultFieldFromLiteral(e)
}

func asVarRef(e sql.Expr) (sql.VarRef, bool) {
	v, ok := e.(sql.VarRef)
	return v, ok
}

func fieldForVarRef(row record.Row, schema *record.Schema, v sql.VarRef) (record.Field, record.Column, error) {
	col, ok := schema.ColumnByName(v.Name)
	if !ok {
		return record.Field{}, record.Column{}, fmt.Errorf("exec: column %q does not exist", v.Name)
	}
	if int(col.Index) >= len(row.Fields) {
		return record.Field{}, record.Column{}, fmt.Errorf("exec: row is missing column %q", v.Name)
	}
	return row.Fields[col.Index], col, nil
}

// literalFieldAs parses e (a Literal, or a unary-minus over one) as typ,
// the type named by the comparison's other, column-backed operand.
func literalFieldAs(e sql.Expr, typ record.TypeID, length uint32) (record.Field, error) {
	negate := false
	for {
		if u, ok := e.(sql.Unary); ok && u.Op == "-" {
			negate = !negate
			e = u.Expr
			continue
		}
		break
	}
	lit, ok := e.(sql.Literal)
	if !ok {
		return record.Field{}, fmt.Errorf("exec: expected a literal value")
	}
	if lit.Val == nil {
		return record.NewNullField(typ), nil
	}
	switch typ {
	case record.TypeInt:
		iv, ok := toInt32(lit.Val)
		if !ok {
			return record.Field{}, fmt.Errorf("exec: %v is not a valid INT literal", lit.Val)
		}
		if negate {
			iv = -iv
		}
		return record.NewIntField(iv), nil
	case record.TypeFloat:
		fv, ok := toFloat32(lit.Val)
		if !ok {
			return record.Field{}, fmt.Errorf("exec: %v is not a valid FLOAT literal", lit.Val)
		}
		if negate {
			fv = -fv
		}
		return record.NewFloatField(fv), nil
	case record.TypeChar:
		sv, ok := lit.Val.(string)
		if !ok {
			return record.Field{}, fmt.Errorf("exec: %v is not a valid CHAR literal", lit.Val)
		}
		return record.NewCharField(sv, length), nil
	default:
		return record.Field{}, fmt.Errorf("exec: unsupported column type %s", typ)
	}
}

// defaultFieldFromLiteral types a literal by its own Go value when no
// column operand is present to decide a type for it.
func defaultFieldFromLiteral(e sql.Expr) (record.Field, error) {
	negate := false
	for {
		if u, ok := e.(sql.Unary); ok && u.Op == "-" {
			negate = !negate
			e = u.Expr
			continue
		}
		break
	}
	lit, ok := e.(sql.Literal)
	if !ok {
		return record.Field{}, fmt.Errorf("exec: expected a literal value")
	}
	switch val := lit.Val.(type) {
	case nil:
		return record.NewNullField(record.TypeInt), nil
	case int32:
		if negate {
			val = -val
		}
		return record.NewIntField(val), nil
	case float32:
		if negate {
			val = -val
		}
		return record.NewFloatField(val), nil
	case string:
		return record.NewCharField(val, uint32(len(val))), nil
	default:
		return record.Field{}, fmt.Errorf("exec: %v cannot be compared", lit.Val)
	}
}

func toInt32(v any) (int32, bool) {
	i, ok := v.(int32)
	return i, ok
}

func toFloat32(v any) (float32, bool) {
	switch n := v.(type) {
	case float32:
		return n, true
	case int32:
		return float32(n), true
	default:
		return 0, false
	}
}
