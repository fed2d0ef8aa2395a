// Package plan implements Grizzly's logical plan node variants
// (scan/index_scan/filter/project/join/aggregate/sort/limit), the
// QueryPlan wrapper, and the EXPLAIN text/JSON/Mermaid emitters, plus the
// cost/row-estimate bookkeeping the optimizer populates.
package plan

import (
	"fmt"
	"strings"

	"github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/value"
)

// Kind discriminates the eight plan-node variants.
type Kind int

const (
	KindScan Kind = iota
	KindIndexScan
	KindFilter
	KindProject
	KindJoin
	KindAggregate
	KindSort
	KindLimit
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindIndexScan:
		return "index_scan"
	case KindFilter:
		return "filter"
	case KindProject:
		return "project"
	case KindJoin:
		return "join"
	case KindAggregate:
		return "aggregate"
	case KindSort:
		return "sort"
	case KindLimit:
		return "limit"
	}
	return "unknown"
}

// Node is the common surface every plan-node variant implements. A node
// owns its child/right-child nodes; it holds a non-owning reference to
// any bound expr.Expr, which is managed by the parser for the lifetime of
// one query.
type Node interface {
	Kind() Kind
	Schema() *schema.Schema
	Children() []Node
	SetSchema(*schema.Schema)

	// Cost/Rows are populated by the optimizer's bottom-up cost pass;
	// zero until Optimize has run.
	Cost() float64
	Rows() int64
	SetCostRows(cost float64, rows int64)
}

type base struct {
	sch  *schema.Schema
	cost float64
	rows int64
}

func (b *base) Schema() *schema.Schema         { return b.sch }
func (b *base) SetSchema(s *schema.Schema)     { b.sch = s }
func (b *base) Cost() float64                  { return b.cost }
func (b *base) Rows() int64                    { return b.rows }
func (b *base) SetCostRows(c float64, r int64) { b.cost, b.rows = c, r }

// Scan is a full table scan.
type Scan struct {
	base
	Table string
	// Alias is the optional `AS alias` name used to qualify column
	// references from this scan in JOIN ON / WHERE clauses.
	Alias string
	// Columns, when non-nil, is the tightened output column list left by
	// projection pushdown; nil means "all columns".
	Columns []string
	// IsFile marks a FROM operand that named a string-literal file path:
	// the scan resolves against the format registry instead of a
	// registered table.
	IsFile   bool
	FilePath string
}

// NewScan creates a Scan over table. Schema is left nil on the plan node;
// the executor reads the table's schema from the catalog when it opens
// the table, since the parser builds plan trees without catalog access (a
// CREATE MODEL/VIEW body may reference a model whose output table does
// not exist yet).
func NewScan(table string) *Scan {
	return &Scan{Table: table}
}

func (s *Scan) Kind() Kind      { return KindScan }
func (s *Scan) Children() []Node { return nil }
func (s *Scan) String() string  { return fmt.Sprintf("Scan(%s)", s.Table) }

// IndexScan replaces a Scan when index selection finds a usable index
// for an equality-bound conjunction.
type IndexScan struct {
	base
	Table    string
	Index    string
	Strategy string // "single-column" | "composite-hash"
	// Columns, when non-nil, is the tightened output column list left by
	// projection pushdown, exactly like Scan.Columns; nil means "all
	// columns".
	Columns  []string
	// Keys holds the equality-bound literal values, in the index's key
	// column order.
	Keys []value.Value
	// Remainder is any leftover predicate the index match didn't fully
	// cover (e.g. extra AND terms); nil if the index match was exact.
	Remainder expr.Expr
}

func (s *IndexScan) Kind() Kind       { return KindIndexScan }
func (s *IndexScan) Children() []Node { return nil }
func (s *IndexScan) String() string {
	return fmt.Sprintf("IndexScan(%s.%s, strategy=%s)", s.Table, s.Index, s.Strategy)
}

// Filter re-evaluates Predicate per row and drops non-matches.
type Filter struct {
	base
	Child     Node
	Predicate expr.Expr
}

func (f *Filter) Kind() Kind       { return KindFilter }
func (f *Filter) Children() []Node { return []Node{f.Child} }
func (f *Filter) String() string   { return fmt.Sprintf("Filter(%s)", f.Predicate) }

// ProjectItem is one projection-list entry: a column reference or a
// function-call form f(arg, ...).
type ProjectItem struct {
	Expr  expr.Expr
	Alias string
}

// Project selects/reorders columns. Star, when true, means "expand to the
// input schema" rather than using Items.
type Project struct {
	base
	Child Node
	Items []ProjectItem
	Star  bool
}

func (p *Project) Kind() Kind       { return KindProject }
func (p *Project) Children() []Node { return []Node{p.Child} }
func (p *Project) String() string {
	if p.Star {
		return "Project(*)"
	}
	return "Project"
}

// JoinType enumerates the four join flavors.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
)

func (j JoinType) String() string {
	switch j {
	case InnerJoin:
		return "INNER"
	case LeftJoin:
		return "LEFT"
	case RightJoin:
		return "RIGHT"
	case FullJoin:
		return "FULL"
	}
	return "?"
}

// Join is a hash join keyed on a single equality column from each side.
type Join struct {
	base
	Left, Right         Node
	Type                JoinType
	LeftTable, RightTable string
	LeftCol, RightCol    string
}

func (j *Join) Kind() Kind       { return KindJoin }
func (j *Join) Children() []Node { return []Node{j.Left, j.Right} }
func (j *Join) String() string   { return fmt.Sprintf("Join(%s)", j.Type) }

// AggFunc enumerates the supported aggregate functions.
type AggFunc int

const (
	AggCountStar AggFunc = iota
	AggCount
	AggSum
	AggAvg
	AggMin
	AggMax
)

func (f AggFunc) String() string {
	switch f {
	case AggCountStar, AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	}
	return "?"
}

// AggItem is one `f(col)` or `COUNT(*)` aggregate projection entry.
type AggItem struct {
	Func   AggFunc
	Column string // "" for COUNT(*)
	Alias  string
}

// Aggregate implements GROUP BY + aggregate functions + HAVING. The node
// is omitted entirely when neither GROUP BY nor an aggregate function is
// requested.
type Aggregate struct {
	base
	Child      Node
	GroupBy    []string
	Aggregates []AggItem
	Having     expr.Expr
	// Order lists the final output column names in SELECT-list order;
	// each entry names either a GroupBy column or an AggItem.Alias. This
	// lets `SELECT k, SUM(v) ...` and `SELECT SUM(v), k ...` over the
	// same GROUP BY produce differently-ordered result schemas.
	Order []string
}

func (a *Aggregate) Kind() Kind       { return KindAggregate }
func (a *Aggregate) Children() []Node { return []Node{a.Child} }
func (a *Aggregate) String() string {
	return fmt.Sprintf("Aggregate(group_by=%v)", a.GroupBy)
}

// SortKey is one `ORDER BY col {ASC|DESC}` entry.
type SortKey struct {
	Column string
	Desc   bool
}

// Sort performs a stable row-level sort by the named columns.
type Sort struct {
	base
	Child Node
	Keys  []SortKey
}

func (s *Sort) Kind() Kind       { return KindSort }
func (s *Sort) Children() []Node { return []Node{s.Child} }
func (s *Sort) String() string   { return fmt.Sprintf("Sort(%v)", s.Keys) }

// Limit trims rows to [Offset, Offset+Count).
type Limit struct {
	base
	Child        Node
	Count, Offset int
}

func (l *Limit) Kind() Kind       { return KindLimit }
func (l *Limit) Children() []Node { return []Node{l.Child} }
func (l *Limit) String() string {
	return fmt.Sprintf("Limit(%d, offset=%d)", l.Count, l.Offset)
}

// QueryPlan wraps a root plan Node plus metadata the engine needs
// alongside it: whether it has been through Optimize, and the referenced
// table list in scan order (EXPLAIN and execution report the same table
// list in the same order).
type QueryPlan struct {
	Root      Node
	Optimized bool
}

// Tables walks the plan left-to-right, depth-first, collecting every Scan/
// IndexScan table name in the order the executor will visit them.
func (qp *QueryPlan) Tables() []string {
	var out []string
	var walk func(n Node)
	walk = func(n Node) {
		if n == nil {
			return
		}
		switch t := n.(type) {
		case *Scan:
			out = append(out, t.Table)
		case *IndexScan:
			out = append(out, t.Table)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(qp.Root)
	return out
}

// TotalCost returns the root node's cost, 0 before Optimize runs.
func (qp *QueryPlan) TotalCost() float64 {
	if qp.Root == nil {
		return 0
	}
	return qp.Root.Cost()
}

// indent is the per-depth-level prefix ExplainText uses.
const indent = "  "

func explainLines(n Node, depth int, w *strings.Builder) {
	fmt.Fprintf(w, "%s%s [cost=%.2f rows=%d]\n", strings.Repeat(indent, depth), nodeLabel(n), n.Cost(), n.Rows())
	for _, c := range n.Children() {
		explainLines(c, depth+1, w)
	}
}

func nodeLabel(n Node) string {
	switch t := n.(type) {
	case *Scan:
		return t.String()
	case *IndexScan:
		return t.String()
	case *Filter:
		return t.String()
	case *Project:
		return t.String()
	case *Join:
		return t.String()
	case *Aggregate:
		return t.String()
	case *Sort:
		return t.String()
	case *Limit:
		return t.String()
	}
	return "?"
}

// ExplainText renders the plan as a textual indented tree.
func ExplainText(qp *QueryPlan) string {
	var w strings.Builder
	if qp.Root != nil {
		explainLines(qp.Root, 0, &w)
	}
	return w.String()
}
