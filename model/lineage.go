package model

import (
	"strings"

	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/token"
)

// ColumnLineage is the result of SHOW LINEAGE FOR COLUMN t.c: the
// projection expression that produced c, and the upstream column names
// found in it.
type ColumnLineage struct {
	Table             string
	Column            string
	ProjectionExprText string
	UpstreamColumns   []string
}

// LineageForColumn answers `SHOW LINEAGE FOR COLUMN t.c`: it parses the
// defining SELECT of model t, locates the projection expression aliased
// or named c, and extracts identifier tokens from that expression
// (filtered against SQL keywords) as upstream columns. This is
// deliberately shallow -- it does not resolve those identifiers against
// any particular upstream table's schema, and a bare column name that
// happens to collide with a string literal's contents is not an issue
// since string literals tokenize as token.String, never token.Ident.
func LineageForColumn(r *Registry, table, column string) (*ColumnLineage, error) {
	m, ok := r.Get(table)
	if !ok {
		return nil, errs.New(errs.ModelNotFound, "model %q not found", table)
	}
	exprText, ok := findProjectionExpr(m.SQLText, column)
	if !ok {
		return nil, errs.New(errs.ColumnNotFound, "column %q not found in model %q's projection list", column, table)
	}
	return &ColumnLineage{
		Table:              table,
		Column:             column,
		ProjectionExprText: exprText,
		UpstreamColumns:    identifiersIn(exprText),
	}, nil
}

// findProjectionExpr scans sql's top-level SELECT list (respecting
// parenthesis depth so a function call's commas/FROM-like words inside
// string arguments don't confuse the split) for the item whose explicit
// `AS alias` or trailing bare identifier equals column, returning that
// item's expression text with any trailing alias removed.
func findProjectionExpr(sql, column string) (string, bool) {
	toks, err := token.Tokenize(sql)
	if err != nil {
		return "", false
	}

	start := -1
	for i, t := range toks {
		if t.Kind == token.Keyword && t.Text == "SELECT" {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", false
	}

	// Skip an optional DISTINCT.
	if start < len(toks) && toks[start].Kind == token.Keyword && toks[start].Text == "DISTINCT" {
		start++
	}

	end := len(toks)
	for i := start; i < len(toks); i++ {
		if toks[i].Kind == token.Keyword && toks[i].Text == "FROM" {
			end = i
			break
		}
	}

	for _, item := range splitProjectionItems(toks[start:end]) {
		name, exprToks, ok := itemAliasAndExpr(item)
		if ok && strings.EqualFold(name, column) {
			return renderTokens(exprToks), true
		}
	}
	return "", false
}

// splitProjectionItems splits a SELECT list's token slice on top-level
// commas (depth-tracked so `f(a, b)` stays one item).
func splitProjectionItems(toks []token.Token) [][]token.Token {
	var items [][]token.Token
	var cur []token.Token
	depth := 0
	for _, t := range toks {
		if t.Kind == token.Punct && t.Text == "(" {
			depth++
		}
		if t.Kind == token.Punct && t.Text == ")" {
			depth--
		}
		if depth == 0 && t.Kind == token.Punct && t.Text == "," {
			items = append(items, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		items = append(items, cur)
	}
	return items
}

// itemAliasAndExpr splits one projection item into its resolved name
// (explicit `AS alias`, or for a bare column reference the column name
// itself) and the expression token span that produced it.
func itemAliasAndExpr(item []token.Token) (name string, exprToks []token.Token, ok bool) {
	if len(item) == 0 {
		return "", nil, false
	}
	for i, t := range item {
		if t.Kind == token.Keyword && t.Text == "AS" && i+1 < len(item) {
			return item[i+1].Text, item[:i], true
		}
	}
	// No explicit alias: a bare `col` or `t.col` item is named by its last
	// identifier segment; a bare function call `f(x)` has no name match.
	last := item[len(item)-1]
	if last.Kind == token.Ident {
		return last.Text, item, true
	}
	return "", item, false
}

func renderTokens(toks []token.Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Raw)
	}
	return b.String()
}

// identifiersIn tokenizes text and returns its Ident-kind tokens,
// deduplicated in first-seen order -- token.Kind already excludes any
// reserved word, so this is exactly identifier tokens filtered against
// SQL keywords.
func identifiersIn(text string) []string {
	toks, err := token.Tokenize(text)
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range toks {
		if t.Kind != token.Ident {
			continue
		}
		if seen[t.Text] {
			continue
		}
		seen[t.Text] = true
		out = append(out, t.Text)
	}
	return out
}
