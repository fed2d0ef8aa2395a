package optimizer

import (
	"math"
	"testing"

	"github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/index/btree"
	"github.com/zhukovaskychina/grizzly/index/hash"
	"github.com/zhukovaskychina/grizzly/plan"
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/table"
	"github.com/zhukovaskychina/grizzly/value"
)

func usersTable(t *testing.T, rows int) *table.Table {
	t.Helper()
	sch, err := schema.New(
		schema.ColumnDef{Name: "id", Type: schema.TypeInt64},
		schema.ColumnDef{Name: "region", Type: schema.TypeString},
		schema.ColumnDef{Name: "age", Type: schema.TypeInt64},
	)
	if err != nil {
		t.Fatal(err)
	}
	tbl := table.New("users", sch)
	regions := []string{"eu", "us", "ap"}
	for i := 0; i < rows; i++ {
		err := tbl.AppendRow([]value.Value{
			value.NewInt64(int64(i)),
			value.NewString(regions[i%len(regions)]),
			value.NewInt64(int64(20 + i%50)),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func eq(col string, v value.Value) expr.Expr {
	return &expr.Comparison{Op: expr.OpEq, Left: &expr.ColumnRef{Name: col}, Right: &expr.Literal{Value: v}}
}

func TestStatsRegister(t *testing.T) {
	tbl := usersTable(t, 90)
	bt := btree.New("idx_id", []string{"id"})
	tbl.RegisterIndex(bt)
	ch := hash.New("idx_region_age", []string{"region", "age"})
	tbl.RegisterIndex(ch)

	stats := NewStats()
	ts := stats.Register(tbl)

	if ts.RowCount != 90 {
		t.Errorf("RowCount = %d", ts.RowCount)
	}
	if ts.ColumnCardinality["id"] != 90 {
		t.Errorf("id cardinality = %d", ts.ColumnCardinality["id"])
	}
	if ts.ColumnCardinality["region"] != 3 {
		t.Errorf("region cardinality = %d", ts.ColumnCardinality["region"])
	}
	if ts.SingleColumnBTree["id"] != "idx_id" {
		t.Errorf("single-column index map = %v", ts.SingleColumnBTree)
	}
	if len(ts.Composite) != 1 || ts.Composite[0].IndexName != "idx_region_age" {
		t.Errorf("composite list = %+v", ts.Composite)
	}
	if ts.RowSize <= 0 {
		t.Errorf("RowSize = %d", ts.RowSize)
	}
}

func TestIndexSelectionSingleColumn(t *testing.T) {
	tbl := usersTable(t, 100)
	tbl.RegisterIndex(btree.New("idx_id", []string{"id"}))
	stats := NewStats()
	stats.Register(tbl)

	scan := plan.NewScan("users")
	f := &plan.Filter{Child: scan, Predicate: eq("id", value.NewInt64(7))}
	qp := Optimize(f, stats, nil, nil)

	is, ok := qp.Root.(*plan.IndexScan)
	if !ok {
		t.Fatalf("root = %T, want *plan.IndexScan", qp.Root)
	}
	if is.Index != "idx_id" || is.Strategy != "single-column" {
		t.Errorf("index scan = %+v", is)
	}
	if len(is.Keys) != 1 || !is.Keys[0].Equal(value.NewInt64(7)) {
		t.Errorf("keys = %v", is.Keys)
	}
	if is.Remainder != nil {
		t.Errorf("exact single-equality match should carry no remainder")
	}
	if is.Rows() != 100/SingleColumnIndexFactor {
		t.Errorf("estimated rows = %d", is.Rows())
	}
}

func TestIndexSelectionPrefersCompositeWhenCovered(t *testing.T) {
	tbl := usersTable(t, 100)
	tbl.RegisterIndex(btree.New("idx_region", []string{"region"}))
	tbl.RegisterIndex(hash.New("idx_region_age", []string{"region", "age"}))
	stats := NewStats()
	stats.Register(tbl)

	pred := &expr.Logical{
		Op:    expr.OpAnd,
		Left:  eq("region", value.NewString("eu")),
		Right: eq("age", value.NewInt64(30)),
	}
	scan := plan.NewScan("users")
	qp := Optimize(&plan.Filter{Child: scan, Predicate: pred}, stats, nil, nil)

	is, ok := qp.Root.(*plan.IndexScan)
	if !ok {
		t.Fatalf("root = %T, want *plan.IndexScan", qp.Root)
	}
	if is.Strategy != "composite-hash" || is.Index != "idx_region_age" {
		t.Errorf("composite index should win when fully covered: %+v", is)
	}
	// Keys bound in the index's ordered key-column order.
	if !is.Keys[0].Equal(value.NewString("eu")) || !is.Keys[1].Equal(value.NewInt64(30)) {
		t.Errorf("keys = %v", is.Keys)
	}
	if is.Rows() != 100/CompositeIndexFactor {
		t.Errorf("estimated rows = %d", is.Rows())
	}
}

func TestCompositeRequiresFullCoverage(t *testing.T) {
	tbl := usersTable(t, 100)
	tbl.RegisterIndex(hash.New("idx_region_age", []string{"region", "age"}))
	stats := NewStats()
	stats.Register(tbl)

	// Only one of the two key columns is bound: the composite cannot match,
	// and with no single-column index the Filter+Scan shape survives.
	scan := plan.NewScan("users")
	qp := Optimize(&plan.Filter{Child: scan, Predicate: eq("region", value.NewString("eu"))}, stats, nil, nil)
	if _, ok := qp.Root.(*plan.Filter); !ok {
		t.Fatalf("root = %T, want the original *plan.Filter", qp.Root)
	}
}

func TestIndexSelectionKeepsRemainder(t *testing.T) {
	tbl := usersTable(t, 100)
	tbl.RegisterIndex(btree.New("idx_id", []string{"id"}))
	stats := NewStats()
	stats.Register(tbl)

	pred := &expr.Logical{
		Op:    expr.OpAnd,
		Left:  eq("id", value.NewInt64(7)),
		Right: eq("region", value.NewString("eu")),
	}
	scan := plan.NewScan("users")
	qp := Optimize(&plan.Filter{Child: scan, Predicate: pred}, stats, nil, nil)

	f, ok := qp.Root.(*plan.Filter)
	if !ok {
		t.Fatalf("root = %T, want Filter above the rewritten IndexScan", qp.Root)
	}
	is, ok := f.Child.(*plan.IndexScan)
	if !ok {
		t.Fatalf("filter child = %T", f.Child)
	}
	if is.Remainder == nil {
		t.Errorf("partial equality coverage should keep the predicate as remainder")
	}
}

func TestProjectionPushdown(t *testing.T) {
	tbl := usersTable(t, 10)
	stats := NewStats()
	stats.Register(tbl)

	scan := plan.NewScan("users")
	p := &plan.Project{Child: scan, Items: []plan.ProjectItem{
		{Expr: &expr.ColumnRef{Name: "age"}, Alias: "age"},
		{Expr: &expr.ColumnRef{Name: "id"}, Alias: "id"},
	}}
	Optimize(p, stats, nil, nil)

	if len(scan.Columns) != 2 || scan.Columns[0] != "age" || scan.Columns[1] != "id" {
		t.Errorf("scan columns not tightened: %v", scan.Columns)
	}
}

func TestProjectionPushdownSkipsStar(t *testing.T) {
	tbl := usersTable(t, 10)
	stats := NewStats()
	stats.Register(tbl)

	scan := plan.NewScan("users")
	p := &plan.Project{Child: scan, Star: true}
	Optimize(p, stats, nil, nil)
	if scan.Columns != nil {
		t.Errorf("star projection must not tighten the scan: %v", scan.Columns)
	}
}

func TestCostFormulas(t *testing.T) {
	m := NewDefaultCostModel()
	if got := m.ScanCost(1000, 8); got != 1000*8.0/4096 {
		t.Errorf("ScanCost = %v", got)
	}
	if got := m.IndexScanCost(100); math.Abs(got-(math.Log(100)+100)) > 1e-9 {
		t.Errorf("IndexScanCost = %v", got)
	}
	if got := m.FilterCost(10, 100); got != 10+100*0.1 {
		t.Errorf("FilterCost = %v", got)
	}
	if got := m.ProjectCost(10, 100, 3); got != 10+100*3*0.01 {
		t.Errorf("ProjectCost = %v", got)
	}
	if got := m.JoinCost(1, 2, 100, 50); got != 1+2+(100.0*50/10)*0.05 {
		t.Errorf("JoinCost = %v", got)
	}
	if got := m.LimitCost(42); got != 42 {
		t.Errorf("LimitCost = %v", got)
	}
}

func TestCostPassRowEstimates(t *testing.T) {
	tbl := usersTable(t, 200)
	stats := NewStats()
	stats.Register(tbl)

	scan := plan.NewScan("users")
	f := &plan.Filter{Child: scan, Predicate: &expr.Comparison{
		Op: expr.OpGt, Left: &expr.ColumnRef{Name: "age"}, Right: &expr.Literal{Value: value.NewInt64(30)},
	}}
	lim := &plan.Limit{Child: f, Count: 5}
	qp := Optimize(lim, stats, nil, nil)

	if scan.Rows() != 200 {
		t.Errorf("scan rows = %d", scan.Rows())
	}
	if f.Rows() != int64(200*Selectivity) {
		t.Errorf("filter rows = %d", f.Rows())
	}
	if lim.Rows() != 5 {
		t.Errorf("limit rows = %d", lim.Rows())
	}
	if !qp.Optimized || qp.TotalCost() <= 0 {
		t.Errorf("plan not costed: optimized=%v cost=%v", qp.Optimized, qp.TotalCost())
	}

	// Aggregate without grouping estimates one output row.
	agg := &plan.Aggregate{Child: plan.NewScan("users"), Aggregates: []plan.AggItem{{Func: plan.AggCountStar, Alias: "count(*)"}}, Order: []string{"count(*)"}}
	Optimize(agg, stats, nil, nil)
	if agg.Rows() != 1 {
		t.Errorf("ungrouped aggregate rows = %d", agg.Rows())
	}
}
