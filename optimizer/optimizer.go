package optimizer

import (
	"fmt"
	"sort"

	"github.com/zhukovaskychina/grizzly/audit"
	"github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/plan"
	"github.com/zhukovaskychina/grizzly/value"
)

// Optimize applies the rewrite rules -- index selection, projection
// pushdown, and the predicate-pushdown placeholder (the parser already
// emits filters below projects, so that rule has nothing to move yet) --
// and fills in every node's Cost()/Rows() via the bottom-up cost pass.
// aud may be nil, in which case decisions are simply not recorded.
func Optimize(root plan.Node, stats *Stats, model *CostModel, aud *audit.Stream) *plan.QueryPlan {
	if model == nil {
		model = NewDefaultCostModel()
	}
	root = indexSelectionPass(root, stats, model, aud)
	root = projectionPushdownPass(root)
	estimateCosts(root, stats, model)
	return &plan.QueryPlan{Root: root, Optimized: true}
}

// transformChildren rewrites n's child/children in place via f, covering
// every plan.Node variant that owns children. Scan/IndexScan are leaves
// and fall through untouched.
func transformChildren(n plan.Node, f func(plan.Node) plan.Node) plan.Node {
	switch t := n.(type) {
	case *plan.Filter:
		t.Child = f(t.Child)
	case *plan.Project:
		t.Child = f(t.Child)
	case *plan.Aggregate:
		t.Child = f(t.Child)
	case *plan.Sort:
		t.Child = f(t.Child)
	case *plan.Limit:
		t.Child = f(t.Child)
	case *plan.Join:
		t.Left = f(t.Left)
		t.Right = f(t.Right)
	}
	return n
}

// --- Rule 3: index selection ---------------------------------------------

// indexSelectionPass walks the tree bottom-up and rewrites every Filter
// directly above a Scan into an IndexScan when the filter's predicate is
// (or contains) a conjunction of column = literal equalities a registered
// index can satisfy.
func indexSelectionPass(n plan.Node, stats *Stats, model *CostModel, aud *audit.Stream) plan.Node {
	if n == nil {
		return nil
	}
	n = transformChildren(n, func(c plan.Node) plan.Node { return indexSelectionPass(c, stats, model, aud) })

	f, ok := n.(*plan.Filter)
	if !ok {
		return n
	}
	scan, ok := f.Child.(*plan.Scan)
	if !ok || scan.IsFile {
		return n
	}
	ts, ok := stats.Table(scan.Table)
	if !ok {
		return n
	}
	eq := expr.ConjunctiveEqualities(f.Predicate)
	if len(eq) == 0 {
		return n
	}

	if is, ok := selectComposite(ts, eq); ok {
		rewritten := buildIndexScan(scan, is.IndexName, "composite-hash", is.Columns, eq, f.Predicate, ts.RowCount, CompositeIndexFactor)
		logIndexDecision(aud, scan.Table, is.IndexName, "composite-hash", is.Columns)
		return attachRemainder(rewritten, f)
	}
	if col, idxName, ok := selectSingleColumn(ts, eq); ok {
		rewritten := buildIndexScan(scan, idxName, "single-column", []string{col}, eq, f.Predicate, ts.RowCount, SingleColumnIndexFactor)
		logIndexDecision(aud, scan.Table, idxName, "single-column", []string{col})
		return attachRemainder(rewritten, f)
	}
	return n
}

// conjunctCount returns the number of top-level AND-joined conjuncts in
// e (1 for anything that is not itself an AND), used to decide whether an
// equality conjunction exactly exhausts the predicate.
func conjunctCount(e expr.Expr) int {
	if l, ok := e.(*expr.Logical); ok && l.Op == expr.OpAnd {
		return conjunctCount(l.Left) + conjunctCount(l.Right)
	}
	return 1
}

// selectComposite returns the first (by the stats registry's name-sorted
// order) composite-hash index whose entire ordered key-column list is
// covered by eq, or false if none match; a composite index needs every
// one of its key columns equality-bound before it can serve.
func selectComposite(ts *TableStats, eq map[string]value.Value) (CompositeIndexStats, bool) {
	for _, ci := range ts.Composite {
		covered := true
		for _, col := range ci.Columns {
			if _, ok := eq[col]; !ok {
				covered = false
				break
			}
		}
		if covered {
			return ci, true
		}
	}
	return CompositeIndexStats{}, false
}

// selectSingleColumn picks any single-column B+Tree index whose column
// appears with an equality binding, iterating ts.SingleColumnBTree's keys
// in sorted order for deterministic tie-breaking.
func selectSingleColumn(ts *TableStats, eq map[string]value.Value) (col, indexName string, ok bool) {
	cols := make([]string, 0, len(ts.SingleColumnBTree))
	for c := range ts.SingleColumnBTree {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		if _, bound := eq[c]; bound {
			return c, ts.SingleColumnBTree[c], true
		}
	}
	return "", "", false
}

// buildIndexScan constructs the plan.IndexScan replacing scan, binding
// keys in idxCols order and reducing the estimated row count by the
// strategy's fixed factor. The Remainder is nil (exact match) only when
// eq has exactly as many terms as the index covers and the original
// predicate was a pure conjunction of equalities (no extra AND terms, no
// OR/NOT); otherwise the original predicate is kept as Remainder so the
// executor re-checks it per row.
func buildIndexScan(scan *plan.Scan, idxName, strategy string, idxCols []string, eq map[string]value.Value, predicate expr.Expr, baseRows int64, factor int64) *plan.IndexScan {
	keys := make([]value.Value, len(idxCols))
	for i, c := range idxCols {
		keys[i] = eq[c]
	}
	is := &plan.IndexScan{
		Table:    scan.Table,
		Index:    idxName,
		Strategy: strategy,
		Keys:     keys,
	}
	is.SetSchema(scan.Schema())
	if conjunctCount(predicate) != len(idxCols) {
		is.Remainder = predicate
	}
	estRows := baseRows / factor
	if estRows < 1 {
		estRows = 1
	}
	is.SetCostRows(0, estRows)
	return is
}

func attachRemainder(is *plan.IndexScan, f *plan.Filter) plan.Node {
	if is.Remainder == nil {
		return is
	}
	f.Child = is
	f.Predicate = is.Remainder
	return f
}

func logIndexDecision(aud *audit.Stream, table, index, strategy string, cols []string) {
	if aud == nil {
		return
	}
	aud.Log(audit.Event{
		Operation: audit.OpOptimizer,
		Component: "optimizer.index_selection",
		Subject:   table,
		Message:   fmt.Sprintf("selected %s index %q on %v", strategy, index, cols),
	})
}

// --- Rule 2: projection pushdown -----------------------------------------

// projectionPushdownPass tightens a Scan/IndexScan's output column list
// to exactly the columns a Project above it references. It only fires
// when the Project sits directly above the leaf (no Filter/Join in
// between still needing the full row).
func projectionPushdownPass(n plan.Node) plan.Node {
	if n == nil {
		return nil
	}
	n = transformChildren(n, projectionPushdownPass)

	p, ok := n.(*plan.Project)
	if !ok || p.Star {
		return n
	}
	cols := referencedColumns(p)
	if cols == nil {
		return n
	}
	switch leaf := p.Child.(type) {
	case *plan.Scan:
		if !leaf.IsFile {
			leaf.Columns = cols
		}
	case *plan.IndexScan:
		leaf.Columns = unionColumns(leaf.Columns, cols)
	}
	return n
}

func referencedColumns(p *plan.Project) []string {
	seen := map[string]bool{}
	var out []string
	for _, item := range p.Items {
		for _, ref := range expr.ColumnRefs(item.Expr) {
			if !seen[ref.Name] {
				seen[ref.Name] = true
				out = append(out, ref.Name)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func unionColumns(base, add []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range base {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range add {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// --- Rule 4: cost estimation ----------------------------------------------

// estimateCosts walks the plan bottom-up, computing each node's cost/row
// estimate and recording it via SetCostRows.
func estimateCosts(n plan.Node, stats *Stats, model *CostModel) (float64, int64) {
	switch t := n.(type) {
	case *plan.Scan:
		rows, rowSize := int64(0), int64(8)
		if ts, ok := stats.Table(t.Table); ok {
			rows, rowSize = ts.RowCount, ts.RowSize
		}
		cost := model.ScanCost(rows, rowSize)
		t.SetCostRows(cost, rows)
		return cost, rows
	case *plan.IndexScan:
		// Rows was already set by index selection to the reduced estimate;
		// recompute cost from that estimate.
		cost := model.IndexScanCost(t.Rows())
		t.SetCostRows(cost, t.Rows())
		return cost, t.Rows()
	case *plan.Filter:
		childCost, childRows := estimateCosts(t.Child, stats, model)
		cost := model.FilterCost(childCost, childRows)
		rows := int64(float64(childRows) * Selectivity)
		t.SetCostRows(cost, rows)
		return cost, rows
	case *plan.Project:
		childCost, childRows := estimateCosts(t.Child, stats, model)
		cols := len(t.Items)
		if t.Star {
			if sch := t.Child.Schema(); sch != nil {
				cols = sch.Len()
			}
		}
		cost := model.ProjectCost(childCost, childRows, cols)
		t.SetCostRows(cost, childRows)
		return cost, childRows
	case *plan.Join:
		lc, lr := estimateCosts(t.Left, stats, model)
		rc, rr := estimateCosts(t.Right, stats, model)
		cost := model.JoinCost(lc, rc, lr, rr)
		rows := (lr * rr) / 10
		if rows < 1 && (lr > 0 || rr > 0) {
			rows = 1
		}
		t.SetCostRows(cost, rows)
		return cost, rows
	case *plan.Aggregate:
		childCost, childRows := estimateCosts(t.Child, stats, model)
		cost := model.AggregateCost(childCost, childRows)
		rows := int64(1)
		if len(t.GroupBy) > 0 {
			rows = childRows
		}
		t.SetCostRows(cost, rows)
		return cost, rows
	case *plan.Sort:
		childCost, childRows := estimateCosts(t.Child, stats, model)
		cost := model.SortCost(childCost, childRows)
		t.SetCostRows(cost, childRows)
		return cost, childRows
	case *plan.Limit:
		childCost, childRows := estimateCosts(t.Child, stats, model)
		cost := model.LimitCost(childCost)
		rows := int64(t.Count)
		if childRows < rows {
			rows = childRows
		}
		t.SetCostRows(cost, rows)
		return cost, rows
	}
	return 0, 0
}
