package exec

import (
	"strings"

	"pagedb/internal/engine/sql"
	"pagedb/internal/storage/catalog"
	"pagedb/internal/storage/heap"
	"pagedb/internal/storage/index"
	"pagedb/internal/storage/record"
)

// simpleCond is one `column op literal` leaf of a WHERE conjunction,
// normalized so Column always names the left-hand side.
type simpleCond struct {
	Column string
	Op     string
	Value  sql.Expr
}

// flattenConjunction reduces a WHERE expression to its top-level list of
// `column op literal` conditions if it is a pure AND-tree of such
// comparisons. Any OR, NOT, IS NULL, or column-to-column comparison makes
// the whole expression ineligible for index acceleration (ok=false) — the
// executor falls back to a full heap scan and evaluates the original
// expression directly against every row.
func flattenConjunction(e sql.Expr) ([]simpleCond, bool) {
	switch v := e.(type) {
	case sql.Binary:
		if v.Op == "AND" {
			l, lok := flattenConjunction(v.Left)
			if !lok {
				return nil, false
			}
			r, rok := flattenConjunction(v.Right)
			if !rok {
				return nil, false
			}
			return append(l, r...), true
		}
		switch v.Op {
		case "=", "<>", "<", "<=", ">", ">=":
			if lv, ok := v.Left.(sql.VarRef); ok && isLiteralExpr(v.Right) {
				return []simpleCond{{Column: lv.Name, Op: v.Op, Value: v.Right}}, true
			}
			if rv, ok := v.Right.(sql.VarRef); ok && isLiteralExpr(v.Left) {
				return []simpleCond{{Column: rv.Name, Op: flipOp(v.Op), Value: v.Left}}, true
			}
		}
	}
	return nil, false
}

func isLiteralExpr(e sql.Expr) bool {
	for {
		u, ok := e.(sql.Unary)
		if !ok || u.Op != "-" {
			break
		}
		e = u.Expr
	}
	_, ok := e.(sql.Literal)
	return ok
}

func flipOp(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	default:
		return op // "=" and "<>" are symmetric
	}
}

// chooseAccessPath implements spec §4.8 step 2: it tries an exact lookup
// through an index whose full key-map is pinned by equality conditions,
// then falls back to intersecting the candidate sets of the single-column
// indexes touched by the conjunction, and finally reports no acceleration
// is possible.
func chooseAccessPath(ti *catalog.TableInfo, where sql.Expr) ([]record.RowID, string, bool, error) {
	if where == nil {
		return nil, "heap-scan", false, nil
	}
	conds, ok := flattenConjunction(where)
	if !ok || len(conds) == 0 {
		return nil, "heap-scan", false, nil
	}

	eq := map[string]simpleCond{}
	byCol := map[string][]simpleCond{}
	for _, c := range conds {
		byCol[c.Column] = append(byCol[c.Column], c)
		if c.Op == "=" {
			eq[c.Column] = c
		}
	}

	// Step A: an index whose entire key-map is covered by equality
	// conditions resolves with a single get_value.
	for _, ix := range ti.Indexes {
		if len(ix.KeyMap) == 0 {
			continue
		}
		fields := make([]record.Field, len(ix.KeyMap))
		complete := true
		for i, pos := range ix.KeyMap {
			col := ti.Schema.Columns[pos]
			cond, ok := eq[col.Name]
			if !ok {
				complete = false
				break
			}
			f, err := literalFieldAs(cond.Value, col.Type, col.Length)
			if err != nil {
				return nil, "", false, err
			}
			fields[i] = f
		}
		if !complete {
			continue
		}
		key, err := ix.KeySchema.Encode(record.Row{Fields: fields}, ix.Tree.Width())
		if err != nil {
			return nil, "", false, err
		}
		rid, found, err := ix.Tree.GetValue(key)
		if err != nil {
			return nil, "", false, err
		}
		if !found {
			return []record.RowID{}, "index:" + ix.Name, true, nil
		}
		return []record.RowID{rid}, "index:" + ix.Name, true, nil
	}

	// Step B: intersect candidate sets from every applicable single-column
	// index; remaining conditions are left for the final per-row
	// three-valued evaluation against the materialized rows.
	var sets [][]record.RowID
	var usedNames []string
	for _, ix := range ti.Indexes {
		if len(ix.KeyMap) != 1 {
			continue
		}
		col := ti.Schema.Columns[ix.KeyMap[0]]
		cs, ok := byCol[col.Name]
		if !ok {
			continue
		}
		rids, err := scanSingleColumnIndex(ix, col, cs)
		if err != nil {
			return nil, "", false, err
		}
		sets = append(sets, rids)
		usedNames = append(usedNames, ix.Name)
	}
	if len(sets) == 0 {
		return nil, "heap-scan", false, nil
	}
	plan := "index:" + usedNames[0]
	if len(usedNames) > 1 {
		plan = "index-intersect:" + strings.Join(usedNames, ",")
	}
	return intersectRIDSets(sets), plan, true, nil
}

// scanSingleColumnIndex produces the candidate RowID set a single-column
// index can contribute for the conditions touching its column: an exact
// lookup if an equality condition is present, otherwise a bounded leaf-
// chain range scan whose low bound comes from the last >/>= condition seen
// and whose high bound comes from the last </<= condition seen (a later
// condition replaces an earlier one even when it is looser).
func scanSingleColumnIndex(ix *catalog.IndexInfo, col record.Column, conds []simpleCond) ([]record.RowID, error) {
	for _, c := range conds {
		if c.Op != "=" {
			continue
		}
		f, err := literalFieldAs(c.Value, col.Type, col.Length)
		if err != nil {
			return nil, err
		}
		key, err := ix.KeySchema.Encode(record.Row{Fields: []record.Field{f}}, ix.Tree.Width())
		if err != nil {
			return nil, err
		}
		rid, found, err := ix.Tree.GetValue(key)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return []record.RowID{rid}, nil
	}

	var lowKey, highKey []byte
	lowIncl, highIncl := true, true
	for _, c := range conds {
		f, err := literalFieldAs(c.Value, col.Type, col.Length)
		if err != nil {
			return nil, err
		}
		key, err := ix.KeySchema.Encode(record.Row{Fields: []record.Field{f}}, ix.Tree.Width())
		if err != nil {
			return nil, err
		}
		switch c.Op {
		case ">":
			lowKey, lowIncl = key, false
		case ">=":
			lowKey, lowIncl = key, true
		case "<":
			highKey, highIncl = key, false
		case "<=":
			highKey, highIncl = key, true
		}
	}

	var it *index.Iterator
	var err error
	if lowKey != nil {
		it, err = ix.Tree.BeginAt(lowKey)
	} else {
		it, err = ix.Tree.Begin()
	}
	if err != nil {
		return nil, err
	}

	var out []record.RowID
	for it.Valid() {
		key, err := it.Key()
		if err != nil {
			return nil, err
		}
		if lowKey != nil {
			cmp := ix.KeySchema.Compare(key, lowKey)
			if cmp == 0 && !lowIncl {
				if err := it.Next(); err != nil {
					return nil, err
				}
				continue
			}
		}
		if highKey != nil {
			cmp := ix.KeySchema.Compare(key, highKey)
			if cmp > 0 || (cmp == 0 && !highIncl) {
				break
			}
		}
		rid, err := it.Value()
		if err != nil {
			return nil, err
		}
		out = append(out, rid)
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func intersectRIDSets(sets [][]record.RowID) []record.RowID {
	if len(sets) == 1 {
		return sets[0]
	}
	counts := make(map[record.RowID]int)
	for _, s := range sets {
		seen := make(map[record.RowID]bool, len(s))
		for _, r := range s {
			if !seen[r] {
				counts[r]++
				seen[r] = true
			}
		}
	}
	var out []record.RowID
	for r, c := range counts {
		if c == len(sets) {
			out = append(out, r)
		}
	}
	return out
}

// matchingRows materializes every row of ti that satisfies where,
// choosing an access path first and always re-checking the full WHERE
// expression against each candidate (spec §4.8 step 3) so the access
// path only needs to narrow, never exactly decide, membership.
func matchingRows(ti *catalog.TableInfo, where sql.Expr) ([]record.Row, string, error) {
	if where == nil {
		rows, err := fullScan(ti, nil)
		return rows, "heap-scan", err
	}
	candidates, plan, accelerated, err := chooseAccessPath(ti, where)
	if err != nil {
		return nil, "", err
	}
	if !accelerated {
		rows, err := fullScan(ti, where)
		return rows, "heap-scan", err
	}
	var out []record.Row
	for _, rid := range candidates {
		row, err := ti.Heap.GetTuple(rid, ti.Schema)
		if err != nil {
			return nil, "", err
		}
		result, err := evalPredicate(row, ti.Schema, where)
		if err != nil {
			return nil, "", err
		}
		if result == record.True {
			out = append(out, row)
		}
	}
	return out, plan, nil
}

func fullScan(ti *catalog.TableInfo, where sql.Expr) ([]record.Row, error) {
	var out []record.Row
	it := heap.NewIterator(ti.Heap, ti.Schema)
	for it.Next() {
		row, err := it.Row()
		if err != nil {
			return nil, err
		}
		if where != nil {
			result, err := evalPredicate(row, ti.Schema, where)
			if err != nil {
				return nil, err
			}
			if result != record.True {
				continue
			}
		}
		out = append(out, row)
	}
	return out, it.Err()
}
