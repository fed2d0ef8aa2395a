package exec

import (
	"testing"

	"github.com/zhukovaskychina/grizzly/errs"
	gexpr "github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/index/btree"
	"github.com/zhukovaskychina/grizzly/plan"
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/table"
	"github.com/zhukovaskychina/grizzly/value"
)

func mustSchema(t *testing.T, defs ...schema.ColumnDef) *schema.Schema {
	t.Helper()
	s, err := schema.New(defs...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustAppend(t *testing.T, tbl *table.Table, rows ...[]value.Value) {
	t.Helper()
	for _, r := range rows {
		if err := tbl.AppendRow(r); err != nil {
			t.Fatal(err)
		}
	}
}

func usersFixture(t *testing.T) MapCatalog {
	t.Helper()
	tbl := table.New("users", mustSchema(t,
		schema.ColumnDef{Name: "id", Type: schema.TypeInt32},
		schema.ColumnDef{Name: "name", Type: schema.TypeString},
		schema.ColumnDef{Name: "age", Type: schema.TypeInt32},
	))
	mustAppend(t, tbl,
		[]value.Value{value.NewInt32(1), value.NewString("Alice"), value.NewInt32(30)},
		[]value.Value{value.NewInt32(2), value.NewString("Bob"), value.NewInt32(25)},
		[]value.Value{value.NewInt32(3), value.NewString("Al"), value.NewInt32(40)},
	)
	return MapCatalog{"users": tbl}
}

func col(name string) gexpr.Expr { return &gexpr.ColumnRef{Name: name} }

func TestScanMaterializesCopy(t *testing.T) {
	cat := usersFixture(t)
	out, err := Execute(plan.NewScan("users"), cat)
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 3 {
		t.Fatalf("RowCount = %d", out.RowCount())
	}
	// Mutating the scan output must not touch the source table.
	mustAppend(t, out, []value.Value{value.NewInt32(4), value.NewString("x"), value.NewInt32(1)})
	if cat["users"].RowCount() != 3 {
		t.Errorf("scan output shares storage with the source table")
	}
}

func TestScanMissingTable(t *testing.T) {
	_, err := Execute(plan.NewScan("nope"), MapCatalog{})
	if !errs.Is(err, errs.TableNotFound) {
		t.Errorf("expected TableNotFound, got %v", err)
	}
}

func TestEmptyTableScan(t *testing.T) {
	tbl := table.New("empty", mustSchema(t, schema.ColumnDef{Name: "a", Type: schema.TypeInt64}))
	out, err := Execute(plan.NewScan("empty"), MapCatalog{"empty": tbl})
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 0 {
		t.Errorf("empty scan returned %d rows", out.RowCount())
	}
}

func TestFilter(t *testing.T) {
	cat := usersFixture(t)
	f := &plan.Filter{
		Child: plan.NewScan("users"),
		Predicate: &gexpr.Comparison{Op: gexpr.OpGt, Left: col("age"),
			Right: &gexpr.Literal{Value: value.NewInt32(26)}},
	}
	out, err := Execute(f, cat)
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 2 {
		t.Fatalf("RowCount = %d", out.RowCount())
	}
}

func TestFilterLike(t *testing.T) {
	cat := usersFixture(t)
	f := &plan.Filter{
		Child:     plan.NewScan("users"),
		Predicate: &gexpr.Like{Operand: col("name"), Pattern: "Al%"},
	}
	out, err := Execute(f, cat)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	c, _ := out.Column("name")
	for _, v := range c.Data {
		names[v.String()] = true
	}
	if out.RowCount() != 2 || !names["Alice"] || !names["Al"] {
		t.Errorf("LIKE 'Al%%' matched %v", names)
	}
}

func TestProjectReorders(t *testing.T) {
	cat := usersFixture(t)
	p := &plan.Project{
		Child: plan.NewScan("users"),
		Items: []plan.ProjectItem{
			{Expr: col("age"), Alias: "age"},
			{Expr: col("name"), Alias: "name"},
		},
	}
	out, err := Execute(p, cat)
	if err != nil {
		t.Fatal(err)
	}
	names := out.Schema.Names()
	if len(names) != 2 || names[0] != "age" || names[1] != "name" {
		t.Errorf("projected schema = %v", names)
	}
	if out.Schema.Columns[0].Type != schema.TypeInt32 {
		t.Errorf("projected column type = %v", out.Schema.Columns[0].Type)
	}
}

func TestProjectStarPassthrough(t *testing.T) {
	cat := usersFixture(t)
	p := &plan.Project{Child: plan.NewScan("users"), Star: true}
	out, err := Execute(p, cat)
	if err != nil {
		t.Fatal(err)
	}
	if out.Schema.Len() != 3 || out.RowCount() != 3 {
		t.Errorf("star projection reshaped the input")
	}
}

func joinFixture(t *testing.T) MapCatalog {
	t.Helper()
	l := table.New("l", mustSchema(t, schema.ColumnDef{Name: "id", Type: schema.TypeInt32}))
	mustAppend(t, l,
		[]value.Value{value.NewInt32(1)},
		[]value.Value{value.NewInt32(2)},
	)
	r := table.New("r", mustSchema(t,
		schema.ColumnDef{Name: "rid", Type: schema.TypeInt32},
		schema.ColumnDef{Name: "tag", Type: schema.TypeString},
	))
	mustAppend(t, r, []value.Value{value.NewInt32(1), value.NewString("x")})
	return MapCatalog{"l": l, "r": r}
}

func runJoin(t *testing.T, cat MapCatalog, jt plan.JoinType) *table.Table {
	t.Helper()
	j := &plan.Join{
		Left: plan.NewScan("l"), Right: plan.NewScan("r"),
		Type: jt, LeftCol: "id", RightCol: "rid",
	}
	out, err := Execute(j, cat)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestInnerJoin(t *testing.T) {
	out := runJoin(t, joinFixture(t), plan.InnerJoin)
	if out.RowCount() != 1 {
		t.Fatalf("inner join rows = %d", out.RowCount())
	}
	row := out.Row(0)
	if row[0].Int() != 1 || row[1].Int() != 1 || row[2].String() != "x" {
		t.Errorf("row = %v", row)
	}
	if names := out.Schema.Names(); names[0] != "id" || names[1] != "rid" {
		t.Errorf("result schema should be left columns then right: %v", names)
	}
}

func TestLeftJoinPadsTypeZero(t *testing.T) {
	out := runJoin(t, joinFixture(t), plan.LeftJoin)
	if out.RowCount() != 2 {
		t.Fatalf("left join rows = %d", out.RowCount())
	}
	// Row for id=2 has no match: right side must be type-zero values.
	var padded []value.Value
	for i := 0; i < out.RowCount(); i++ {
		if out.Row(i)[0].Int() == 2 {
			padded = out.Row(i)
		}
	}
	if padded == nil {
		t.Fatal("unmatched left row missing")
	}
	if padded[1].Int() != 0 || padded[1].Kind() != value.Int32 {
		t.Errorf("right id pad = %v", padded[1])
	}
	if padded[2].String() != "" || padded[2].Kind() != value.String {
		t.Errorf("right tag pad = %v", padded[2])
	}
}

func TestLeftJoinEmptyRightSide(t *testing.T) {
	cat := joinFixture(t)
	cat["r"] = table.New("r", cat["r"].Schema)
	out := runJoin(t, cat, plan.LeftJoin)
	if out.RowCount() != 2 {
		t.Fatalf("left join against empty right = %d rows", out.RowCount())
	}
	for i := 0; i < 2; i++ {
		if out.Row(i)[2].String() != "" {
			t.Errorf("row %d right columns not padded: %v", i, out.Row(i))
		}
	}
}

func TestRightJoin(t *testing.T) {
	cat := joinFixture(t)
	mustAppend(t, cat["r"], []value.Value{value.NewInt32(9), value.NewString("orphan")})
	out := runJoin(t, cat, plan.RightJoin)
	// Matched (1) plus unmatched right (9); unmatched left (2) is dropped.
	if out.RowCount() != 2 {
		t.Fatalf("right join rows = %d", out.RowCount())
	}
	var orphan []value.Value
	for i := 0; i < out.RowCount(); i++ {
		if out.Row(i)[2].String() == "orphan" {
			orphan = out.Row(i)
		}
	}
	if orphan == nil || orphan[0].Int() != 0 {
		t.Errorf("unmatched right row not padded on the left: %v", orphan)
	}
}

func TestFullJoin(t *testing.T) {
	cat := joinFixture(t)
	mustAppend(t, cat["r"], []value.Value{value.NewInt32(9), value.NewString("orphan")})
	out := runJoin(t, cat, plan.FullJoin)
	// Matched (1), unmatched left (2), unmatched right (9).
	if out.RowCount() != 3 {
		t.Fatalf("full join rows = %d", out.RowCount())
	}
}

func TestJoinCollidingColumnNames(t *testing.T) {
	l := table.New("l", mustSchema(t, schema.ColumnDef{Name: "id", Type: schema.TypeInt32}))
	r := table.New("r", mustSchema(t, schema.ColumnDef{Name: "id", Type: schema.TypeInt32}))
	mustAppend(t, l, []value.Value{value.NewInt32(1)})
	mustAppend(t, r, []value.Value{value.NewInt32(1)})
	j := &plan.Join{Left: plan.NewScan("l"), Right: plan.NewScan("r"),
		Type: plan.InnerJoin, LeftCol: "id", RightCol: "id"}
	out, err := Execute(j, MapCatalog{"l": l, "r": r})
	if err != nil {
		t.Fatal(err)
	}
	names := out.Schema.Names()
	if names[0] != "id" || names[1] != "right_id" {
		t.Errorf("colliding right column not renamed: %v", names)
	}
}

func aggFixture(t *testing.T) MapCatalog {
	t.Helper()
	tbl := table.New("t", mustSchema(t,
		schema.ColumnDef{Name: "k", Type: schema.TypeString},
		schema.ColumnDef{Name: "v", Type: schema.TypeInt32},
	))
	mustAppend(t, tbl,
		[]value.Value{value.NewString("a"), value.NewInt32(10)},
		[]value.Value{value.NewString("a"), value.NewInt32(20)},
		[]value.Value{value.NewString("b"), value.NewInt32(5)},
	)
	return MapCatalog{"t": tbl}
}

func TestGroupBySum(t *testing.T) {
	cat := aggFixture(t)
	agg := &plan.Aggregate{
		Child:      plan.NewScan("t"),
		GroupBy:    []string{"k"},
		Aggregates: []plan.AggItem{{Func: plan.AggSum, Column: "v", Alias: "sum(v)"}},
		Order:      []string{"k", "sum(v)"},
	}
	out, err := Execute(agg, cat)
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 2 {
		t.Fatalf("group count = %d", out.RowCount())
	}
	if out.Schema.Columns[1].Type != schema.TypeFloat64 {
		t.Errorf("SUM output type = %v, want float64", out.Schema.Columns[1].Type)
	}
	sums := map[string]float64{}
	for i := 0; i < out.RowCount(); i++ {
		row := out.Row(i)
		sums[row[0].String()] = row[1].Float()
	}
	if sums["a"] != 30 || sums["b"] != 5 {
		t.Errorf("sums = %v", sums)
	}
}

func TestCountStarAndMinMax(t *testing.T) {
	cat := aggFixture(t)
	agg := &plan.Aggregate{
		Child: plan.NewScan("t"),
		Aggregates: []plan.AggItem{
			{Func: plan.AggCountStar, Alias: "count(*)"},
			{Func: plan.AggMin, Column: "v", Alias: "min(v)"},
			{Func: plan.AggMax, Column: "v", Alias: "max(v)"},
			{Func: plan.AggAvg, Column: "v", Alias: "avg(v)"},
		},
		Order: []string{"count(*)", "min(v)", "max(v)", "avg(v)"},
	}
	out, err := Execute(agg, cat)
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 1 {
		t.Fatalf("ungrouped aggregate rows = %d", out.RowCount())
	}
	row := out.Row(0)
	if row[0].Kind() != value.Int64 || row[0].Int() != 3 {
		t.Errorf("count = %v", row[0])
	}
	if row[1].Int() != 5 || row[1].Kind() != value.Int32 {
		t.Errorf("min should keep the input type: %v", row[1])
	}
	if row[2].Int() != 20 {
		t.Errorf("max = %v", row[2])
	}
	if got := row[3].Float(); got < 11.66 || got > 11.67 {
		t.Errorf("avg = %v", got)
	}
}

func TestHavingFiltersGroups(t *testing.T) {
	cat := aggFixture(t)
	agg := &plan.Aggregate{
		Child:      plan.NewScan("t"),
		GroupBy:    []string{"k"},
		Aggregates: []plan.AggItem{{Func: plan.AggSum, Column: "v", Alias: "total"}},
		Order:      []string{"k", "total"},
		Having: &gexpr.Comparison{Op: gexpr.OpGt, Left: col("total"),
			Right: &gexpr.Literal{Value: value.NewFloat64(10)}},
	}
	out, err := Execute(agg, cat)
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 1 || out.Row(0)[0].String() != "a" {
		t.Errorf("HAVING kept the wrong groups: %d rows", out.RowCount())
	}
}

func TestSortStableAndDesc(t *testing.T) {
	cat := aggFixture(t)
	s := &plan.Sort{Child: plan.NewScan("t"), Keys: []plan.SortKey{{Column: "v", Desc: true}}}
	out, err := Execute(s, cat)
	if err != nil {
		t.Fatal(err)
	}
	vals := make([]int64, out.RowCount())
	for i := range vals {
		vals[i] = out.Row(i)[1].Int()
	}
	if vals[0] != 20 || vals[1] != 10 || vals[2] != 5 {
		t.Errorf("desc sort order = %v", vals)
	}
}

func TestLimitOffsetBounds(t *testing.T) {
	cat := usersFixture(t)
	run := func(count, offset int) int {
		l := &plan.Limit{Child: plan.NewScan("users"), Count: count, Offset: offset}
		out, err := Execute(l, cat)
		if err != nil {
			t.Fatal(err)
		}
		return out.RowCount()
	}
	if got := run(0, 0); got != 0 {
		t.Errorf("LIMIT 0 returned %d rows", got)
	}
	if got := run(10, 5); got != 0 {
		t.Errorf("OFFSET past the end returned %d rows", got)
	}
	if got := run(2, 1); got != 2 {
		t.Errorf("LIMIT 2 OFFSET 1 returned %d rows", got)
	}
}

func TestIndexScanSingleColumn(t *testing.T) {
	cat := usersFixture(t)
	idx := btree.New("idx_id", []string{"id"})
	if err := idx.Rebuild(cat["users"]); err != nil {
		t.Fatal(err)
	}
	cat["users"].RegisterIndex(idx)

	is := &plan.IndexScan{
		Table: "users", Index: "idx_id", Strategy: "single-column",
		Keys: []value.Value{value.NewInt32(2)},
	}
	out, err := Execute(is, cat)
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 1 || out.Row(0)[1].String() != "Bob" {
		t.Errorf("index scan result wrong: %d rows", out.RowCount())
	}
}

func TestIndexScanMissingIndex(t *testing.T) {
	cat := usersFixture(t)
	is := &plan.IndexScan{Table: "users", Index: "nope", Strategy: "single-column"}
	_, err := Execute(is, cat)
	if !errs.Is(err, errs.IndexNotFound) {
		t.Errorf("expected IndexNotFound, got %v", err)
	}
}
