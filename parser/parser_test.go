package parser

import (
	"testing"

	"github.com/zhukovaskychina/grizzly/errs"
	gexpr "github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/plan"
	"github.com/zhukovaskychina/grizzly/schema"
)

func parseSelect(t *testing.T, sql string) *plan.QueryPlan {
	t.Helper()
	stmt, err := ParseOne(sql)
	if err != nil {
		t.Fatalf("ParseOne(%q): %v", sql, err)
	}
	if stmt.Kind != StmtSelect {
		t.Fatalf("expected a SELECT, got kind %v", stmt.Kind)
	}
	return stmt.Select
}

func TestSelectCanonicalShape(t *testing.T) {
	qp := parseSelect(t, "SELECT name FROM users WHERE age > 21 ORDER BY name DESC LIMIT 10 OFFSET 5;")

	lim, ok := qp.Root.(*plan.Limit)
	if !ok {
		t.Fatalf("root = %T, want *plan.Limit", qp.Root)
	}
	if lim.Count != 10 || lim.Offset != 5 {
		t.Errorf("limit = %d offset = %d", lim.Count, lim.Offset)
	}
	srt, ok := lim.Child.(*plan.Sort)
	if !ok {
		t.Fatalf("limit child = %T, want *plan.Sort", lim.Child)
	}
	if len(srt.Keys) != 1 || srt.Keys[0].Column != "name" || !srt.Keys[0].Desc {
		t.Errorf("sort keys = %+v", srt.Keys)
	}
	proj, ok := srt.Child.(*plan.Project)
	if !ok {
		t.Fatalf("sort child = %T, want *plan.Project", srt.Child)
	}
	flt, ok := proj.Child.(*plan.Filter)
	if !ok {
		t.Fatalf("project child = %T, want *plan.Filter", proj.Child)
	}
	scan, ok := flt.Child.(*plan.Scan)
	if !ok || scan.Table != "users" {
		t.Fatalf("filter child = %#v", flt.Child)
	}
}

func TestSelectStar(t *testing.T) {
	qp := parseSelect(t, "SELECT * FROM t")
	proj, ok := qp.Root.(*plan.Project)
	if !ok || !proj.Star {
		t.Fatalf("expected Project(*), got %#v", qp.Root)
	}
}

func TestWherePrecedence(t *testing.T) {
	qp := parseSelect(t, "SELECT a FROM t WHERE a = 1 OR b = 2 AND c = 3")
	flt := qp.Root.(*plan.Project).Child.(*plan.Filter)
	or, ok := flt.Predicate.(*gexpr.Logical)
	if !ok || or.Op != gexpr.OpOr {
		t.Fatalf("top of predicate should be OR, got %v", flt.Predicate)
	}
	and, ok := or.Right.(*gexpr.Logical)
	if !ok || and.Op != gexpr.OpAnd {
		t.Errorf("AND should bind tighter than OR: %v", or.Right)
	}
}

func TestParenthesesOverridePrecedence(t *testing.T) {
	e, err := ParseExpr("(a = 1 OR b = 2) AND c = 3")
	if err != nil {
		t.Fatal(err)
	}
	and, ok := e.(*gexpr.Logical)
	if !ok || and.Op != gexpr.OpAnd {
		t.Fatalf("top should be AND, got %v", e)
	}
	if inner, ok := and.Left.(*gexpr.Logical); !ok || inner.Op != gexpr.OpOr {
		t.Errorf("parenthesized OR should be the left operand: %v", and.Left)
	}
}

func TestJoinParsing(t *testing.T) {
	qp := parseSelect(t, "SELECT * FROM l LEFT OUTER JOIN r ON l.id = r.id")
	j, ok := qp.Root.(*plan.Project).Child.(*plan.Join)
	if !ok {
		t.Fatalf("expected a Join below Project, got %T", qp.Root.(*plan.Project).Child)
	}
	if j.Type != plan.LeftJoin {
		t.Errorf("join type = %v", j.Type)
	}
	if j.LeftCol != "id" || j.RightCol != "id" {
		t.Errorf("join cols = %q, %q", j.LeftCol, j.RightCol)
	}
	if j.LeftTable != "l" || j.RightTable != "r" {
		t.Errorf("join tables = %q, %q", j.LeftTable, j.RightTable)
	}
}

func TestAggregateParsing(t *testing.T) {
	qp := parseSelect(t, "SELECT k, SUM(v) FROM t GROUP BY k HAVING k <> 'x'")
	agg, ok := qp.Root.(*plan.Aggregate)
	if !ok {
		t.Fatalf("root = %T, want *plan.Aggregate", qp.Root)
	}
	if len(agg.GroupBy) != 1 || agg.GroupBy[0] != "k" {
		t.Errorf("group by = %v", agg.GroupBy)
	}
	if len(agg.Aggregates) != 1 || agg.Aggregates[0].Func != plan.AggSum || agg.Aggregates[0].Column != "v" {
		t.Errorf("aggregates = %+v", agg.Aggregates)
	}
	if len(agg.Order) != 2 || agg.Order[0] != "k" {
		t.Errorf("output order = %v", agg.Order)
	}
	if agg.Having == nil {
		t.Errorf("HAVING predicate not captured")
	}
}

func TestCountStar(t *testing.T) {
	qp := parseSelect(t, "SELECT COUNT(*) FROM t")
	agg := qp.Root.(*plan.Aggregate)
	if agg.Aggregates[0].Func != plan.AggCountStar {
		t.Errorf("func = %v, want AggCountStar", agg.Aggregates[0].Func)
	}
}

func TestFileScanOperand(t *testing.T) {
	qp := parseSelect(t, "SELECT * FROM '/data/events.csv'")
	scan := qp.Root.(*plan.Project).Child.(*plan.Scan)
	if !scan.IsFile || scan.FilePath != "/data/events.csv" {
		t.Errorf("file scan = %+v", scan)
	}
	if scan.Alias != "events" {
		t.Errorf("default file alias = %q", scan.Alias)
	}
}

func TestCTECaptureAndExpansion(t *testing.T) {
	qp := parseSelect(t, "WITH recent AS (SELECT id FROM events WHERE id > 5) SELECT id FROM recent")
	// The CTE reference expands inline: the plan bottoms out at the events
	// scan, not at a scan of a table named "recent".
	tables := qp.Tables()
	if len(tables) != 1 || tables[0] != "events" {
		t.Errorf("tables = %v, want [events]", tables)
	}
}

func TestCircularCTE(t *testing.T) {
	_, err := ParseOne("WITH a AS (SELECT x FROM a) SELECT x FROM a")
	if !errs.Is(err, errs.CircularCTEReference) {
		t.Errorf("expected CircularCTEReference, got %v", err)
	}
}

func TestQueryPlanTablesOrder(t *testing.T) {
	qp := parseSelect(t, "SELECT * FROM l JOIN r ON l.id = r.id")
	tables := qp.Tables()
	if len(tables) != 2 || tables[0] != "l" || tables[1] != "r" {
		t.Errorf("tables = %v, want left before right", tables)
	}
}

func TestCreateTable(t *testing.T) {
	stmt, err := ParseOne("CREATE TABLE users (id INT32, name STRING, embedding VECTOR(3))")
	if err != nil {
		t.Fatal(err)
	}
	ct := stmt.CreateTable
	if ct.Name != "users" || len(ct.Columns) != 3 {
		t.Fatalf("%+v", ct)
	}
	if ct.Columns[2].Type != schema.TypeVector || ct.Columns[2].VectorDim != 3 {
		t.Errorf("vector column = %+v", ct.Columns[2])
	}
}

func TestCreateIncrementalModel(t *testing.T) {
	stmt, err := ParseOne("CREATE INCREMENTAL MODEL daily PARTITION BY DATE(event_date) AS SELECT * FROM events")
	if err != nil {
		t.Fatal(err)
	}
	cm := stmt.CreateModel
	if !cm.Incremental || cm.PartitionColumn != "event_date" {
		t.Errorf("%+v", cm)
	}
	if cm.QueryText != "SELECT * FROM events" {
		t.Errorf("query text = %q", cm.QueryText)
	}
}

func TestCreateSchedule(t *testing.T) {
	stmt, err := ParseOne("CREATE SCHEDULE nightly FOR MODEL daily CRON '0 2 * * *' ON FAILURE RETRY 3")
	if err != nil {
		t.Fatal(err)
	}
	cs := stmt.CreateSchedule
	if cs.ID != "nightly" || cs.ModelName != "daily" || cs.Cron != "0 2 * * *" || cs.RetryOnFailure != 3 {
		t.Errorf("%+v", cs)
	}

	// The shorter RETRY form without ON FAILURE also parses.
	stmt, err = ParseOne("CREATE SCHEDULE nightly FOR MODEL daily CRON '0 2 * * *' RETRY 3 TIMES")
	if err != nil {
		t.Fatal(err)
	}
	if stmt.CreateSchedule.RetryOnFailure != 3 {
		t.Errorf("%+v", stmt.CreateSchedule)
	}
}

func TestCreateFunction(t *testing.T) {
	stmt, err := ParseOne("CREATE FUNCTION double_it(x INT64) RETURNS INT64 AS SYNC x * 2;")
	if err != nil {
		t.Fatal(err)
	}
	cf := stmt.CreateFunction
	if cf.Name != "double_it" || cf.Mode != "SYNC" || cf.Body != "x * 2" {
		t.Errorf("%+v", cf)
	}
	if len(cf.Params) != 1 || cf.Params[0].Name != "x" || cf.Params[0].Type != schema.TypeInt64 {
		t.Errorf("params = %+v", cf.Params)
	}
}

func TestCreateTypeVariants(t *testing.T) {
	stmt, err := ParseOne("CREATE TYPE status AS ENUM ('open', 'closed')")
	if err != nil {
		t.Fatal(err)
	}
	if stmt.CreateType.TypeKind != "ENUM" || len(stmt.CreateType.EnumValues) != 2 {
		t.Errorf("%+v", stmt.CreateType)
	}

	stmt, err = ParseOne("CREATE TYPE point AS STRUCT (x FLOAT64, y FLOAT64)")
	if err != nil {
		t.Fatal(err)
	}
	if stmt.CreateType.TypeKind != "STRUCT" || len(stmt.CreateType.StructFields) != 2 {
		t.Errorf("%+v", stmt.CreateType)
	}

	stmt, err = ParseOne("CREATE TYPE uid AS ALIAS INT64")
	if err != nil {
		t.Fatal(err)
	}
	if stmt.CreateType.TypeKind != "ALIAS" || stmt.CreateType.AliasOf != "int64" {
		t.Errorf("%+v", stmt.CreateType)
	}
}

func TestInsertValues(t *testing.T) {
	stmt, err := ParseOne("INSERT INTO t (a, b) VALUES (1, 'x'), (2, 'y')")
	if err != nil {
		t.Fatal(err)
	}
	ins := stmt.Insert
	if ins.Table != "t" || len(ins.Columns) != 2 || len(ins.Rows) != 2 {
		t.Errorf("%+v", ins)
	}
}

func TestShowVariants(t *testing.T) {
	cases := []struct {
		sql    string
		kind   ShowKind
		target string
	}{
		{"SHOW LINEAGE FOR MODEL m", ShowLineageForModel, "m"},
		{"SHOW LINEAGE FOR COLUMN t.c", ShowLineageForColumn, "t.c"},
		{"SHOW DEPENDENCIES FOR MODEL m", ShowDependenciesForModel, "m"},
		{"SHOW SCHEDULES", ShowSchedules, ""},
		{"SHOW DATABASES", ShowDatabases, ""},
		{"SHOW TYPES", ShowTypes, ""},
	}
	for _, c := range cases {
		stmt, err := ParseOne(c.sql)
		if err != nil {
			t.Fatalf("%q: %v", c.sql, err)
		}
		if stmt.Show.ShowKind != c.kind || stmt.Show.Target != c.target {
			t.Errorf("%q parsed to %+v", c.sql, stmt.Show)
		}
	}
}

func TestSaveLoadAttachDetach(t *testing.T) {
	stmt, err := ParseOne("SAVE DATABASE '/tmp/db.grz' WITH COMPRESSION zstd")
	if err != nil {
		t.Fatal(err)
	}
	if stmt.SaveDatabase.Path != "/tmp/db.grz" || stmt.SaveDatabase.Compression != "zstd" {
		t.Errorf("%+v", stmt.SaveDatabase)
	}

	stmt, err = ParseOne("LOAD DATABASE '/tmp/db.grz'")
	if err != nil {
		t.Fatal(err)
	}
	if stmt.LoadDatabase.Path != "/tmp/db.grz" {
		t.Errorf("%+v", stmt.LoadDatabase)
	}

	stmt, err = ParseOne("ATTACH DATABASE '/tmp/other.grz' AS other")
	if err != nil {
		t.Fatal(err)
	}
	if stmt.AttachDatabase.Alias != "other" {
		t.Errorf("%+v", stmt.AttachDatabase)
	}

	stmt, err = ParseOne("DETACH DATABASE other")
	if err != nil {
		t.Fatal(err)
	}
	if stmt.DetachDatabase.Alias != "other" {
		t.Errorf("%+v", stmt.DetachDatabase)
	}
}

func TestMultiStatementParse(t *testing.T) {
	stmts, err := Parse("CREATE TABLE t (a INT64); INSERT INTO t VALUES (1); SELECT a FROM t")
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 3 {
		t.Fatalf("parsed %d statements", len(stmts))
	}
	kinds := []StmtKind{StmtCreateTable, StmtInsert, StmtSelect}
	for i, k := range kinds {
		if stmts[i].Kind != k {
			t.Errorf("statement %d kind = %v, want %v", i, stmts[i].Kind, k)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		sql  string
		kind errs.Kind
	}{
		{"SELECT FROM t", errs.ExpectedIdentifier},
		{"FROB x", errs.UnexpectedToken},
		{"SELECT a FROM t WHERE a = 'unterminated", errs.UnterminatedString},
	}
	for _, c := range cases {
		_, err := ParseOne(c.sql)
		if !errs.Is(err, c.kind) {
			t.Errorf("%q: expected %s, got %v", c.sql, c.kind, err)
		}
	}
}

// parse(emit(expr)) = expr, modulo whitespace, for the operators whose
// String form is directly re-parseable (numeric literals and column refs;
// string literals render unquoted by design and are excluded).
func TestExprRoundTrip(t *testing.T) {
	inputs := []string{
		"a = 1",
		"a < 2 AND b >= 3",
		"NOT (a = 1 OR b = 2)",
		"x BETWEEN 1 AND 10",
		"x IN (1, 2, 3)",
		"t.a <> 4",
		"a + b * 2 > 10",
	}
	for _, in := range inputs {
		first, err := ParseExpr(in)
		if err != nil {
			t.Fatalf("ParseExpr(%q): %v", in, err)
		}
		second, err := ParseExpr(first.String())
		if err != nil {
			t.Fatalf("re-parsing %q (from %q): %v", first.String(), in, err)
		}
		if first.String() != second.String() {
			t.Errorf("round trip diverged: %q -> %q -> %q", in, first.String(), second.String())
		}
	}
}
