package parser

import (
	"github.com/zhukovaskychina/grizzly/errs"
	gexpr "github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/token"
	"github.com/zhukovaskychina/grizzly/value"
)

// parseExpr is the entry point for WHERE/HAVING expression parsing.
// Precedence, lowest first: OR < AND < NOT < comparison < additive <
// multiplicative, with parentheses overriding.
func (p *Parser) parseExpr() (gexpr.Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (gexpr.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.eatKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &gexpr.Logical{Op: gexpr.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (gexpr.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.eatKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &gexpr.Logical{Op: gexpr.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (gexpr.Expr, error) {
	if p.eatKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &gexpr.Logical{Op: gexpr.OpNot, Left: operand}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]gexpr.CompareOp{
	"=": gexpr.OpEq, "<>": gexpr.OpNe, "!=": gexpr.OpNe,
	"<": gexpr.OpLt, ">": gexpr.OpGt, "<=": gexpr.OpLe, ">=": gexpr.OpGe,
}

func (p *Parser) parseComparison() (gexpr.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atKeyword("IS"):
			p.advance()
			negate := p.eatKeyword("NOT")
			if err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			left = &gexpr.IsNull{Operand: left, Negate: negate}
		case p.atKeyword("LIKE"):
			p.advance()
			pat, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			lit, ok := pat.(*gexpr.Literal)
			if !ok {
				return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "LIKE pattern must be a string literal")
			}
			left = &gexpr.Like{Operand: left, Pattern: lit.Value.String()}
		case p.atKeyword("NOT") && (p.peek().Kind == token.Keyword && (p.peek().Text == "LIKE" || p.peek().Text == "IN" || p.peek().Text == "BETWEEN")):
			p.advance() // NOT
			switch p.advance().Text {
			case "LIKE":
				pat, err := p.parseAdditive()
				if err != nil {
					return nil, err
				}
				lit, ok := pat.(*gexpr.Literal)
				if !ok {
					return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "LIKE pattern must be a string literal")
				}
				left = &gexpr.Like{Operand: left, Pattern: lit.Value.String(), Negate: true}
			case "IN":
				set, err := p.parseInSet()
				if err != nil {
					return nil, err
				}
				left = &gexpr.In{Operand: left, Set: set, Negate: true}
			case "BETWEEN":
				lo, hi, err := p.parseBetweenBounds()
				if err != nil {
					return nil, err
				}
				left = &gexpr.Between{Operand: left, Low: lo, High: hi, Negate: true}
			}
		case p.atKeyword("IN"):
			p.advance()
			set, err := p.parseInSet()
			if err != nil {
				return nil, err
			}
			left = &gexpr.In{Operand: left, Set: set}
		case p.atKeyword("BETWEEN"):
			p.advance()
			lo, hi, err := p.parseBetweenBounds()
			if err != nil {
				return nil, err
			}
			left = &gexpr.Between{Operand: left, Low: lo, High: hi}
		case p.cur().Kind == token.Punct && isCompareOp(p.cur().Text):
			op := compareOps[p.advance().Text]
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &gexpr.Comparison{Op: op, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func isCompareOp(s string) bool { _, ok := compareOps[s]; return ok }

func (p *Parser) parseInSet() ([]gexpr.Expr, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var set []gexpr.Expr
	for {
		e, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		set = append(set, e)
		if !p.eatPunct(",") {
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return set, nil
}

func (p *Parser) parseBetweenBounds() (lo, hi gexpr.Expr, err error) {
	lo, err = p.parseAdditive()
	if err != nil {
		return nil, nil, err
	}
	if err := p.expectKeyword("AND"); err != nil {
		return nil, nil, err
	}
	hi, err = p.parseAdditive()
	if err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

func (p *Parser) parseAdditive() (gexpr.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.atPunct("+") || p.atPunct("-") {
		op := gexpr.OpAdd
		if p.cur().Text == "-" {
			op = gexpr.OpSub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &gexpr.Arithmetic{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (gexpr.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.atPunct("*") || p.atPunct("/") {
		op := gexpr.OpMul
		if p.cur().Text == "/" {
			op = gexpr.OpDiv
		}
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &gexpr.Arithmetic{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// parsePrimary handles literals, column references (optionally
// table-qualified), parenthesized sub-expressions, and the distinguished
// vector_search(...) table-level form.
func (p *Parser) parsePrimary() (gexpr.Expr, error) {
	t := p.cur()
	switch {
	case p.atPunct("("):
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	case p.atPunct("-"):
		p.advance()
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &gexpr.Arithmetic{Op: gexpr.OpSub, Left: &gexpr.Literal{Value: value.NewInt64(0)}, Right: operand}, nil
	case t.Kind == token.Number:
		p.advance()
		isFloat, i, f, err := parseNumber(t.Text)
		if err != nil {
			return nil, err
		}
		if isFloat {
			return &gexpr.Literal{Value: value.NewFloat64(f)}, nil
		}
		return &gexpr.Literal{Value: value.NewInt64(i)}, nil
	case t.Kind == token.String:
		p.advance()
		return &gexpr.Literal{Value: value.NewString(t.Text)}, nil
	case p.atKeyword("TRUE"):
		p.advance()
		return &gexpr.Literal{Value: value.NewBool(true)}, nil
	case p.atKeyword("FALSE"):
		p.advance()
		return &gexpr.Literal{Value: value.NewBool(false)}, nil
	case p.atKeyword("VECTOR_SEARCH"):
		return p.parseVectorSearch()
	case t.Kind == token.Ident:
		return p.parseColumnOrAggRef()
	default:
		return nil, errs.NewAt(errs.UnexpectedToken, t.Pos, "unexpected token %q in expression", t.Text)
	}
}

func (p *Parser) parseVectorSearch() (gexpr.Expr, error) {
	p.advance() // VECTOR_SEARCH
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	col, err := p.expectIdent("vector_search column")
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(","); err != nil {
		return nil, err
	}
	vec, err := p.parseVectorLiteral()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(","); err != nil {
		return nil, err
	}
	kTok := p.cur()
	if kTok.Kind != token.Number {
		return nil, errs.NewAt(errs.UnexpectedToken, kTok.Pos, "vector_search k must be a number")
	}
	p.advance()
	_, ki, _, err := parseNumber(kTok.Text)
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &gexpr.VectorSearch{Column: col, Query: vec, K: int(ki)}, nil
}

// parseVectorLiteral parses a parenthesized float list `(1.0, 2.0, 3.0)`.
func (p *Parser) parseVectorLiteral() ([]float32, error) {
	if err := p.expectPunct("("); err == nil {
		return p.parseVectorElems(")")
	}
	return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "expected vector literal in parentheses")
}

func (p *Parser) parseVectorElems(closing string) ([]float32, error) {
	var out []float32
	for {
		neg := false
		if p.atPunct("-") {
			neg = true
			p.advance()
		}
		t := p.cur()
		if t.Kind != token.Number {
			return nil, errs.NewAt(errs.UnexpectedToken, t.Pos, "expected number in vector literal")
		}
		p.advance()
		_, i, f, err := parseNumber(t.Text)
		if err != nil {
			return nil, err
		}
		val := f
		if f == 0 && i != 0 {
			val = float64(i)
		}
		if neg {
			val = -val
		}
		out = append(out, float32(val))
		if !p.eatPunct(",") {
			break
		}
	}
	if err := p.expectPunct(closing); err != nil {
		return nil, err
	}
	return out, nil
}

// parseColumnOrAggRef parses a column reference, `ident` or
// `table.ident`; it does not parse function calls (the aggregate function
// names -- COUNT/SUM/AVG/MIN/MAX -- are reserved keywords and handled in
// select.go's projection-list parser; this path only covers bare column
// references used inside WHERE/HAVING).
func (p *Parser) parseColumnOrAggRef() (gexpr.Expr, error) {
	name, err := p.expectIdent("column reference")
	if err != nil {
		return nil, err
	}
	if p.eatPunct(".") {
		col, err := p.expectIdent("column reference")
		if err != nil {
			return nil, err
		}
		return &gexpr.ColumnRef{Table: name, Name: col}, nil
	}
	return &gexpr.ColumnRef{Name: name}, nil
}
