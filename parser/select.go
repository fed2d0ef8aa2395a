package parser

import (
	"fmt"
	"strings"

	"github.com/zhukovaskychina/grizzly/errs"
	gexpr "github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/plan"
	"github.com/zhukovaskychina/grizzly/token"
)

// parseSelectStatement handles the optional WITH clause and the SELECT
// core, returning a ready plan.QueryPlan.
func (p *Parser) parseSelectStatement() (*plan.QueryPlan, error) {
	if p.eatKeyword("WITH") {
		if err := p.parseWithClause(); err != nil {
			return nil, err
		}
	}
	root, err := p.parseSelectCore()
	if err != nil {
		return nil, err
	}
	return &plan.QueryPlan{Root: root}, nil
}

// parseWithClause captures each CTE's parenthesized subquery as raw
// source text, deferring parsing until first reference.
func (p *Parser) parseWithClause() error {
	for {
		name, err := p.expectIdent("CTE name")
		if err != nil {
			return err
		}
		if err := p.expectKeyword("AS"); err != nil {
			return err
		}
		text, err := p.captureParenGroup()
		if err != nil {
			return err
		}
		p.ctes[name] = text
		if !p.eatPunct(",") {
			break
		}
	}
	return nil
}

// captureParenGroup consumes a balanced `( ... )` token group and returns
// its interior as raw source text, sliced from the original query string
// by token byte position.
func (p *Parser) captureParenGroup() (string, error) {
	if err := p.expectPunct("("); err != nil {
		return "", err
	}
	depth := 1
	start := p.cur().Pos
	end := start
	for depth > 0 {
		t := p.cur()
		if t.Kind == token.EOF {
			return "", errs.NewAt(errs.UnexpectedEndOfQuery, t.Pos, "unterminated parenthesized group")
		}
		if t.Kind == token.Punct && t.Text == "(" {
			depth++
		}
		if t.Kind == token.Punct && t.Text == ")" {
			depth--
			if depth == 0 {
				end = t.Pos
				p.advance()
				break
			}
		}
		p.advance()
	}
	if end < start {
		end = start
	}
	return strings.TrimSpace(p.src[start:end]), nil
}

// resolveCTE re-parses (and memoizes) the named CTE's captured text on
// first reference, detecting self/mutual reference via cteExpanding.
func (p *Parser) resolveCTE(name string) (plan.Node, error) {
	if cached, ok := p.cteCache[name]; ok {
		return cached.(plan.Node), nil
	}
	if p.cteExpanding[name] {
		return nil, errs.New(errs.CircularCTEReference, "circular CTE reference via %q", name)
	}
	text := p.ctes[name]
	p.cteExpanding[name] = true
	sub, err := New(text)
	if err != nil {
		delete(p.cteExpanding, name)
		return nil, err
	}
	sub.ctes = p.ctes
	sub.cteCache = p.cteCache
	sub.cteExpanding = p.cteExpanding
	root, err := sub.parseSelectCore()
	delete(p.cteExpanding, name)
	if err != nil {
		return nil, err
	}
	p.cteCache[name] = root
	return root, nil
}

var aggFuncKeywords = map[string]bool{"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true}

func aggFuncFor(fn string, isStar bool) plan.AggFunc {
	switch fn {
	case "COUNT":
		if isStar {
			return plan.AggCountStar
		}
		return plan.AggCount
	case "SUM":
		return plan.AggSum
	case "AVG":
		return plan.AggAvg
	case "MIN":
		return plan.AggMin
	case "MAX":
		return plan.AggMax
	}
	return plan.AggCount
}

// parseProjectionList parses the SELECT list: column names, `*`, or
// single aggregate function applications, returning both the plain-column
// projection items and the aggregate items, plus the SELECT-order list
// Aggregate.Order needs.
func (p *Parser) parseProjectionList() (items []plan.ProjectItem, star bool, aggItems []plan.AggItem, order []string, hasAgg bool, err error) {
	for {
		switch {
		case p.atPunct("*"):
			p.advance()
			star = true
			order = append(order, "*")
		case p.cur().Kind == token.Keyword && aggFuncKeywords[p.cur().Text]:
			fn := p.advance().Text
			if err = p.expectPunct("("); err != nil {
				return
			}
			col := ""
			isStar := false
			if p.atPunct("*") {
				p.advance()
				isStar = true
			} else {
				col, err = p.expectIdent("aggregate argument")
				if err != nil {
					return
				}
			}
			if err = p.expectPunct(")"); err != nil {
				return
			}
			argText := col
			if isStar {
				argText = "*"
			}
			alias := fmt.Sprintf("%s(%s)", strings.ToLower(fn), argText)
			if p.eatKeyword("AS") {
				alias, err = p.expectIdent("alias")
				if err != nil {
					return
				}
			}
			aggItems = append(aggItems, plan.AggItem{Func: aggFuncFor(fn, isStar), Column: col, Alias: alias})
			order = append(order, alias)
			hasAgg = true
		default:
			var table, name string
			name, err = p.expectIdent("projection column")
			if err != nil {
				return
			}
			if p.eatPunct(".") {
				table = name
				name, err = p.expectIdent("projection column")
				if err != nil {
					return
				}
			}
			alias := name
			if p.eatKeyword("AS") {
				alias, err = p.expectIdent("alias")
				if err != nil {
					return
				}
			}
			items = append(items, plan.ProjectItem{Expr: &gexpr.ColumnRef{Table: table, Name: name}, Alias: alias})
			order = append(order, name)
		}
		if !p.eatPunct(",") {
			break
		}
	}
	return
}

func (p *Parser) atJoinKeyword() bool {
	return p.atKeyword("JOIN") || p.atKeyword("INNER") || p.atKeyword("LEFT") || p.atKeyword("RIGHT") || p.atKeyword("FULL")
}

func (p *Parser) parseJoinType() (plan.JoinType, error) {
	jt := plan.InnerJoin
	switch {
	case p.eatKeyword("INNER"):
		jt = plan.InnerJoin
	case p.eatKeyword("LEFT"):
		jt = plan.LeftJoin
	case p.eatKeyword("RIGHT"):
		jt = plan.RightJoin
	case p.eatKeyword("FULL"):
		jt = plan.FullJoin
	}
	p.eatKeyword("OUTER")
	if err := p.expectKeyword("JOIN"); err != nil {
		return jt, err
	}
	return jt, nil
}

// parseFromOperand parses one FROM/JOIN source: an identifier naming a
// table, CTE, or model; or a string literal naming an external file path
// resolved by the format registry.
func (p *Parser) parseFromOperand() (plan.Node, error) {
	t := p.cur()
	switch {
	case t.Kind == token.String:
		p.advance()
		path := t.Text
		s := plan.NewScan("")
		s.IsFile = true
		s.FilePath = path
		s.Alias = baseFileAlias(path)
		p.maybeConsumeAlias(&s.Alias)
		return s, nil
	case t.Kind == token.Ident:
		name, err := p.expectIdent("table name")
		if err != nil {
			return nil, err
		}
		if _, ok := p.ctes[name]; ok {
			root, err := p.resolveCTE(name)
			if err != nil {
				return nil, err
			}
			dummy := ""
			p.maybeConsumeAlias(&dummy)
			return root, nil
		}
		s := plan.NewScan(name)
		s.Alias = name
		p.maybeConsumeAlias(&s.Alias)
		return s, nil
	default:
		return nil, errs.NewAt(errs.UnexpectedToken, t.Pos, "expected table name or file path in FROM")
	}
}

// maybeConsumeAlias eats an optional `[AS] alias` following a FROM/JOIN
// operand, writing into alias only when one is present.
func (p *Parser) maybeConsumeAlias(alias *string) {
	if p.eatKeyword("AS") {
		if name, err := p.expectIdent("alias"); err == nil {
			*alias = name
		}
		return
	}
	if p.cur().Kind == token.Ident {
		*alias = p.advance().Text
	}
}

func baseFileAlias(path string) string {
	s := path
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return s
}

// parseSelectCore parses one SELECT body (without a leading WITH clause)
// into the canonical bottom-up plan shape: Scan/IndexScan -> Join? ->
// Filter? -> Project?, wrapped by Aggregate? -> Sort? -> Limit?.
func (p *Parser) parseSelectCore() (plan.Node, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	p.eatKeyword("DISTINCT")
	p.eatKeyword("ALL")

	items, star, aggItems, order, hasAgg, err := p.parseProjectionList()
	if err != nil {
		return nil, err
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	root, err := p.parseFromOperand()
	if err != nil {
		return nil, err
	}

	for p.atJoinKeyword() {
		jt, err := p.parseJoinType()
		if err != nil {
			return nil, err
		}
		right, err := p.parseFromOperand()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		cmp, ok := cond.(*gexpr.Comparison)
		if !ok || cmp.Op != gexpr.OpEq {
			return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "JOIN ON condition must be col = col")
		}
		lcol, ok1 := cmp.Left.(*gexpr.ColumnRef)
		rcol, ok2 := cmp.Right.(*gexpr.ColumnRef)
		if !ok1 || !ok2 {
			return nil, errs.NewAt(errs.UnexpectedToken, p.cur().Pos, "JOIN ON condition must compare two columns")
		}
		j := &plan.Join{Left: root, Right: right, Type: jt, LeftCol: lcol.Name, RightCol: rcol.Name}
		if s, ok := root.(*plan.Scan); ok {
			j.LeftTable = s.Table
		}
		if s, ok := right.(*plan.Scan); ok {
			j.RightTable = s.Table
		}
		root = j
	}

	if p.eatKeyword("WHERE") {
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		root = &plan.Filter{Child: root, Predicate: where}
	}

	var groupBy []string
	if p.eatKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			name, err := p.expectIdent("GROUP BY column")
			if err != nil {
				return nil, err
			}
			groupBy = append(groupBy, name)
			if !p.eatPunct(",") {
				break
			}
		}
	}

	isAggQuery := hasAgg || len(groupBy) > 0
	if isAggQuery {
		root = &plan.Aggregate{Child: root, GroupBy: groupBy, Aggregates: aggItems, Order: order}
		if p.eatKeyword("HAVING") {
			having, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			root.(*plan.Aggregate).Having = having
		}
	} else {
		root = &plan.Project{Child: root, Items: items, Star: star}
	}

	if p.eatKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		var keys []plan.SortKey
		for {
			name, err := p.expectIdent("ORDER BY column")
			if err != nil {
				return nil, err
			}
			desc := false
			if p.eatKeyword("DESC") {
				desc = true
			} else {
				p.eatKeyword("ASC")
			}
			keys = append(keys, plan.SortKey{Column: name, Desc: desc})
			if !p.eatPunct(",") {
				break
			}
		}
		root = &plan.Sort{Child: root, Keys: keys}
	}

	limit, offset := -1, 0
	if p.eatKeyword("LIMIT") {
		t := p.cur()
		if t.Kind != token.Number {
			return nil, errs.NewAt(errs.UnexpectedToken, t.Pos, "LIMIT requires a number")
		}
		p.advance()
		_, i, _, err := parseNumber(t.Text)
		if err != nil {
			return nil, err
		}
		limit = int(i)
	}
	if p.eatKeyword("OFFSET") {
		t := p.cur()
		if t.Kind != token.Number {
			return nil, errs.NewAt(errs.UnexpectedToken, t.Pos, "OFFSET requires a number")
		}
		p.advance()
		_, i, _, err := parseNumber(t.Text)
		if err != nil {
			return nil, err
		}
		offset = int(i)
	}
	if limit >= 0 || offset > 0 {
		if limit < 0 {
			limit = 1<<31 - 1
		}
		root = &plan.Limit{Child: root, Count: limit, Offset: offset}
	}

	return root, nil
}
