package sql

import (
	"fmt"
	"strconv"

	"pagedb/internal/storage/record"
)

// Parser walks the token slice produced by tokenize, exposing the
// current and next token for one-token lookahead during recursive-descent
// parsing of a single statement.
type Parser struct {
	toks []token
	pos  int
	cur  token
	peek token
}

// NewParser creates a parser over a single statement's source text.
func NewParser(s string) *Parser {
	p := &Parser{toks: tokenize(s)}
	p.cur = p.tokenAt(0)
	p.peek = p.tokenAt(1)
	return p
}

// tokenAt returns the token at pos+n, or the trailing tEOF once past the end.
func (p *Parser) tokenAt(n int) token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *Parser) advance() {
	p.pos++
	p.cur = p.peek
	p.peek = p.tokenAt(1)
}

func (p *Parser) errf(format string, a ...any) error {
	return fmt.Errorf("sql: parse error near %q: %s", p.cur.Val, fmt.Sprintf(format, a...))
}

func (p *Parser) expectSymbol(sym string) error {
	if p.cur.Typ == tSymbol && p.cur.Val == sym {
		p.advance()
		return nil
	}
	return p.errf("expected %q", sym)
}

func (p *Parser) expectKeyword(kw string) error {
	if p.cur.Typ == tKeyword && p.cur.Val == kw {
		p.advance()
		return nil
	}
	return p.errf("expected %q", kw)
}

// ident accepts a plain identifier (a tIdent token) only; a keyword in a
// name position is rejected with a parse error.
func (p *Parser) ident() (string, error) {
	if p.cur.Typ != tIdent {
		return "", p.errf("expected identifier")
	}
	v := p.cur.Val
	p.advance()
	return v, nil
}

// Parse parses exactly one statement from s.
func Parse(s string) (Statement, error) {
	p := NewParser(s)
	return p.ParseStatement()
}

// ParseStatement parses a single statement into an AST node.
func (p *Parser) ParseStatement() (Statement, error) {
	if p.cur.Typ != tKeyword {
		return nil, p.errf("expected a statement keyword")
	}
	switch p.cur.Val {
	case "CREATE":
		return p.parseCreate()
	case "DROP":
		return p.parseDrop()
	case "SHOW":
		return p.parseShow()
	case "USE":
		p.advance()
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		return UseDatabase{Name: name}, nil
	case "SELECT":
		return p.parseSelect()
	case "INSERT":
		return p.parseInsert()
	case "UPDATE":
		return p.parseUpdate()
	case "DELETE":
		return p.parseDelete()
	case "EXECFILE":
		p.advance()
		if p.cur.Typ != tString && p.cur.Typ != tIdent {
			return nil, p.errf("expected a file path")
		}
		path := p.cur.Val
		p.advance()
		return ExecFile{Path: path}, nil
	case "QUIT":
		p.advance()
		return Quit{}, nil
	default:
		return nil, p.errf("expected a statement")
	}
}

func (p *Parser) parseCreate() (Statement, error) {
	p.advance()
	switch {
	case p.cur.Typ == tKeyword && p.cur.Val == "DATABASE":
		p.advance()
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		return CreateDatabase{Name: name}, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "TABLE":
		p.advance()
		return p.parseCreateTable()
	case p.cur.Typ == tKeyword && p.cur.Val == "INDEX":
		p.advance()
		return p.parseCreateIndex()
	default:
		return nil, p.errf("expected DATABASE, TABLE, or INDEX")
	}
}

func (p *Parser) parseDrop() (Statement, error) {
	p.advance()
	switch {
	case p.cur.Typ == tKeyword && p.cur.Val == "DATABASE":
		p.advance()
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		return DropDatabase{Name: name}, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "TABLE":
		p.advance()
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		return DropTable{Name: name}, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "INDEX":
		p.advance()
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		table := ""
		if p.cur.Typ == tKeyword && p.cur.Val == "ON" {
			p.advance()
			t, err := p.ident()
			if err != nil {
				return nil, err
			}
			table = t
		}
		return DropIndex{Name: name, Table: table}, nil
	default:
		return nil, p.errf("expected DATABASE, TABLE, or INDEX")
	}
}

func (p *Parser) parseShow() (Statement, error) {
	p.advance()
	switch {
	case p.cur.Typ == tKeyword && p.cur.Val == "DATABASES":
		p.advance()
		return ShowDatabases{}, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "TABLES":
		p.advance()
		return ShowTables{}, nil
	case p.cur.Typ == tKeyword && p.cur.Val == "INDEX":
		p.advance()
		table := ""
		if p.cur.Typ == tKeyword && p.cur.Val == "ON" {
			p.advance()
			t, err := p.ident()
			if err != nil {
				return nil, err
			}
			table = t
		}
		return ShowIndex{Table: table}, nil
	default:
		return nil, p.errf("expected DATABASES, TABLES, or INDEX")
	}
}

// parseColumnType consumes one of INT, FLOAT, or CHAR(N).
func (p *Parser) parseColumnType() (record.TypeID, uint32, error) {
	if p.cur.Typ != tKeyword {
		return 0, 0, p.errf("expected a column type")
	}
	switch p.cur.Val {
	case "INT":
		p.advance()
		return record.TypeInt, 0, nil
	case "FLOAT":
		p.advance()
		return record.TypeFloat, 0, nil
	case "CHAR":
		p.advance()
		if err := p.expectSymbol("("); err != nil {
			return 0, 0, err
		}
		if p.cur.Typ != tNumber {
			return 0, 0, p.errf("expected CHAR length")
		}
		n, err := strconv.Atoi(p.cur.Val)
		if err != nil {
			return 0, 0, p.errf("invalid CHAR length %q", p.cur.Val)
		}
		p.advance()
		if err := p.expectSymbol(")"); err != nil {
			return 0, 0, err
		}
		return record.TypeChar, uint32(n), nil
	default:
		return 0, 0, p.errf("expected INT, FLOAT, or CHAR")
	}
}

func (p *Parser) parseCreateTable() (Statement, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []ColumnDef
	var pk []string
	for {
		if p.cur.Typ == tKeyword && p.cur.Val == "PRIMARY" {
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			if err := p.expectSymbol("("); err != nil {
				return nil, err
			}
			for {
				col, err := p.ident()
				if err != nil {
					return nil, err
				}
				pk = append(pk, col)
				if p.cur.Typ == tSymbol && p.cur.Val == "," {
					p.advance()
					continue
				}
				break
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
		} else {
			colName, err := p.ident()
			if err != nil {
				return nil, err
			}
			typ, length, err := p.parseColumnType()
			if err != nil {
				return nil, err
			}
			unique := false
			if p.cur.Typ == tKeyword && p.cur.Val == "UNIQUE" {
				unique = true
				p.advance()
			}
			cols = append(cols, ColumnDef{Name: colName, Type: typ, Length: length, Unique: unique, Nullable: true})
		}
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	for _, pkCol := range pk {
		for i := range cols {
			if cols[i].Name == pkCol {
				cols[i].Nullable = false
			}
		}
	}
	return CreateTable{Name: name, Columns: cols, PrimaryKey: pk}, nil
}

func (p *Parser) parseCreateIndex() (Statement, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		col, err := p.ident()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return CreateIndex{Name: name, Table: table, Columns: cols}, nil
}

func (p *Parser) parseSelect() (Statement, error) {
	p.advance()
	sel := Select{}
	if p.cur.Typ == tSymbol && p.cur.Val == "*" {
		sel.Star = true
		p.advance()
	} else {
		for {
			col, err := p.ident()
			if err != nil {
				return nil, err
			}
			sel.Columns = append(sel.Columns, col)
			if p.cur.Typ == tSymbol && p.cur.Val == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	sel.Table = table
	if p.cur.Typ == tKeyword && p.cur.Val == "WHERE" {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}
	return sel, nil
}

func (p *Parser) parseInsert() (Statement, error) {
	p.advance()
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var vals []Expr
	for {
		e, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		vals = append(vals, e)
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return Insert{Table: table, Values: vals}, nil
}

func (p *Parser) parseUpdate() (Statement, error) {
	p.advance()
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	var sets []SetClause
	for {
		col, err := p.ident()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sets = append(sets, SetClause{Column: col, Value: val})
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.advance()
			continue
		}
		break
	}
	upd := Update{Table: table, Sets: sets}
	if p.cur.Typ == tKeyword && p.cur.Val == "WHERE" {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		upd.Where = where
	}
	return upd, nil
}

func (p *Parser) parseDelete() (Statement, error) {
	p.advance()
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	del := Delete{Table: table}
	if p.cur.Typ == tKeyword && p.cur.Val == "WHERE" {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		del.Where = where
	}
	return del, nil
}

// ------------------------------ Expressions ------------------------------
//
// Precedence, loosest to tightest: OR, AND, NOT, comparison, unary minus,
// primary. IS [NOT] NULL binds at comparison level, on the left operand
// already parsed.

func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == tKeyword && p.cur.Val == "OR" {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == tKeyword && p.cur.Val == "AND" {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.cur.Typ == tKeyword && p.cur.Val == "NOT" {
		p.advance()
		e, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "NOT", Expr: e}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.cur.Typ == tKeyword && p.cur.Val == "IS" {
		p.advance()
		negate := false
		if p.cur.Typ == tKeyword && p.cur.Val == "NOT" {
			negate = true
			p.advance()
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return IsNull{Expr: left, Negate: negate}, nil
	}
	if p.cur.Typ == tSymbol {
		switch p.cur.Val {
		case "=", "<>", "<=", ">=", "<", ">":
			op := p.cur.Val
			p.advance()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return Binary{Op: op, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.cur.Typ == tSymbol && p.cur.Val == "-" {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "-", Expr: e}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.cur.Typ {
	case tNumber:
		v := p.cur.Val
		p.advance()
		return parseNumberLiteral(v)
	case tString:
		v := p.cur.Val
		p.advance()
		return Literal{Val: v}, nil
	case tIdent:
		v := p.cur.Val
		p.advance()
		return VarRef{Name: v}, nil
	case tKeyword:
		switch p.cur.Val {
		case "TRUE":
			p.advance()
			return Literal{Val: true}, nil
		case "FALSE":
			p.advance()
			return Literal{Val: false}, nil
		case "NULL":
			p.advance()
			return Literal{Val: nil}, nil
		}
	case tSymbol:
		if p.cur.Val == "(" {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, p.errf("expected an expression")
}

func parseNumberLiteral(v string) (Expr, error) {
	if i, err := strconv.ParseInt(v, 10, 32); err == nil {
		return Literal{Val: int32(i)}, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return nil, fmt.Errorf("sql: invalid numeric literal %q", v)
	}
	return Literal{Val: float32(f)}, nil
}
