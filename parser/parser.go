// Package parser implements Grizzly's recursive-descent, operator-
// precedence parser: tokens in, plan.QueryPlan/Statement out. The
// dialect's extensions (CREATE MODEL, CREATE SCHEDULE ... CRON,
// vector_search(...), PL-Grizzly AS SYNC|ASYNC) rule out reusing a stock
// MySQL/Postgres grammar, so the grammar is hand-written with one method
// per production.
package parser

import (
	"strconv"
	"strings"

	"github.com/zhukovaskychina/grizzly/errs"
	gexpr "github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/token"
)

// Parser consumes a fixed token slice with a `pos` cursor and one-token
// lookahead via peek().
type Parser struct {
	toks []token.Token
	pos  int

	// src is the original query text, kept alongside the token stream so
	// CTE bodies can be sliced out as raw source by byte position
	// (captureParenGroup) instead of reconstructed from tokens.
	src string

	// ctes maps a WITH-introduced name to its captured, unparsed
	// subquery source text, re-parsed on first reference.
	ctes map[string]string
	// cteCache memoizes the QueryPlan built the first time a CTE name is
	// referenced in FROM.
	cteCache map[string]interface{}
	// cteExpanding detects a CTE that (directly or transitively)
	// references itself while being expanded.
	cteExpanding map[string]bool
}

// New tokenizes sql and returns a ready Parser.
func New(sql string) (*Parser, error) {
	toks, err := token.Tokenize(sql)
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks, src: sql, ctes: map[string]string{}, cteCache: map[string]interface{}{}, cteExpanding: map[string]bool{}}, nil
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

// peek returns the token one position ahead without consuming anything,
// the one-token lookahead primitive the expression parser uses to tell
// `NOT LIKE`, `NOT IN` and `NOT BETWEEN` apart from a plain `NOT`.
func (p *Parser) peek() token.Token {
	if p.pos+1 >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+1]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) atEOF() bool { return p.cur().Kind == token.EOF }

func (p *Parser) atKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == token.Keyword && t.Text == kw
}

func (p *Parser) atPunct(s string) bool {
	t := p.cur()
	return t.Kind == token.Punct && t.Text == s
}

func (p *Parser) eatKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) eatPunct(s string) bool {
	if p.atPunct(s) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.eatKeyword(kw) {
		return errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "expected %q, got %q", kw, p.cur().Text)
	}
	return nil
}

func (p *Parser) expectPunct(s string) error {
	if !p.eatPunct(s) {
		return errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "expected %q, got %q", s, p.cur().Text)
	}
	return nil
}

// expectIdent consumes an identifier token (plain or double-quoted; a
// keyword is never accepted as a name) and returns its text.
func (p *Parser) expectIdent(what string) (string, error) {
	t := p.cur()
	if t.Kind != token.Ident {
		return "", errs.NewAt(errs.ExpectedIdentifier, t.Pos, "expected identifier for %s, got %q", what, t.Text)
	}
	p.advance()
	return t.Text, nil
}

// parseNumber parses a Number token's text into an int64 or float64:
// integer unless a '.' or exponent is present.
func parseNumber(text string) (isFloat bool, i int64, f float64, err error) {
	if strings.ContainsAny(text, ".eE") {
		fv, perr := strconv.ParseFloat(text, 64)
		if perr != nil {
			return false, 0, 0, errs.New(errs.InvalidNumber, "invalid number literal %q", text)
		}
		return true, 0, fv, nil
	}
	iv, perr := strconv.ParseInt(text, 10, 64)
	if perr != nil {
		return false, 0, 0, errs.New(errs.InvalidNumber, "invalid number literal %q", text)
	}
	return false, iv, 0, nil
}

// Parse parses one or more `;`-separated statements from sql (the final
// `;` is optional) and returns them in source order.
func Parse(sql string) ([]*Statement, error) {
	p, err := New(sql)
	if err != nil {
		return nil, err
	}
	var out []*Statement
	for !p.atEOF() {
		for p.eatPunct(";") {
		}
		if p.atEOF() {
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		for p.eatPunct(";") {
		}
	}
	return out, nil
}

// ParseOne parses exactly one statement, ignoring anything after it.
func ParseOne(sql string) (*Statement, error) {
	p, err := New(sql)
	if err != nil {
		return nil, err
	}
	return p.parseStatement()
}

func (p *Parser) parseStatement() (*Statement, error) {
	t := p.cur()
	if t.Kind != token.Keyword {
		return nil, errs.NewAt(errs.UnexpectedToken, t.Pos, "expected a statement keyword, got %q", t.Text)
	}
	switch t.Text {
	case "WITH", "SELECT":
		qp, err := p.parseSelectStatement()
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtSelect, Select: qp}, nil
	case "CREATE":
		return p.parseCreate()
	case "INSERT":
		return p.parseInsert()
	case "DROP":
		return p.parseDrop()
	case "REFRESH":
		return p.parseRefresh()
	case "SHOW":
		return p.parseShow()
	case "DESCRIBE":
		return p.parseDescribe()
	case "SAVE":
		return p.parseSave()
	case "LOAD":
		return p.parseLoad()
	case "ATTACH":
		return p.parseAttach()
	case "DETACH":
		return p.parseDetach()
	default:
		return nil, errs.NewAt(errs.UnexpectedToken, t.Pos, "unexpected statement keyword %q", t.Text)
	}
}

// ParseExpr parses a single standalone expression using the same
// operator-precedence grammar WHERE/HAVING clauses use. plgrizzly uses
// this to compile a user function's body without needing its own copy of
// the tokenizer/parser.
func ParseExpr(text string) (gexpr.Expr, error) {
	p, err := New(text)
	if err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "unexpected trailing tokens after expression %q", text)
	}
	return e, nil
}
