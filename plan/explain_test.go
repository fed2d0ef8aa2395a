package plan

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/value"
)

func samplePlan() *QueryPlan {
	left := NewScan("orders")
	left.SetCostRows(10, 100)
	right := NewScan("customers")
	right.SetCostRows(5, 50)
	j := &Join{Left: left, Right: right, Type: InnerJoin, LeftCol: "cid", RightCol: "id"}
	j.SetCostRows(40, 500)
	f := &Filter{Child: j, Predicate: &expr.Comparison{
		Op:   expr.OpGt,
		Left: &expr.ColumnRef{Name: "amount"}, Right: &expr.Literal{Value: value.NewInt64(10)},
	}}
	f.SetCostRows(90, 50)
	return &QueryPlan{Root: f, Optimized: true}
}

func TestExplainTextIndentedTree(t *testing.T) {
	out := ExplainText(samplePlan())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "Filter") {
		t.Errorf("root line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  Join") {
		t.Errorf("join should be indented one level: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "    Scan(orders)") {
		t.Errorf("left scan should be indented two levels: %q", lines[2])
	}
	if !strings.Contains(lines[0], "cost=90.00") || !strings.Contains(lines[0], "rows=50") {
		t.Errorf("cost/rows missing from %q", lines[0])
	}
}

func TestExplainJSONShape(t *testing.T) {
	s, err := ExplainJSONString(samplePlan())
	if err != nil {
		t.Fatal(err)
	}
	var decoded ExplainJSON
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		t.Fatalf("emitted JSON does not parse: %v", err)
	}
	if !decoded.Optimized || decoded.TotalCost != 90 {
		t.Errorf("top-level fields: %+v", decoded)
	}
	if decoded.Plan.Type != "filter" {
		t.Errorf("root type = %q", decoded.Plan.Type)
	}
	join := decoded.Plan.Children[0]
	if join.Type != "join" || join.Join != "INNER" {
		t.Errorf("join node = %+v", join)
	}
	if join.Children[0].Table != "orders" || join.Children[1].Table != "customers" {
		t.Errorf("scan children = %+v", join.Children)
	}
}

func TestExplainMermaidEdges(t *testing.T) {
	out := ExplainMermaid(samplePlan())
	if !strings.HasPrefix(out, "graph TD") {
		t.Fatalf("missing graph TD header:\n%s", out)
	}
	solid := strings.Count(out, "-->")
	dashed := strings.Count(out, "-.->")
	// Filter->Join and Join->left scan are solid; Join->right scan dashed.
	if solid != 2 {
		t.Errorf("solid edge count = %d:\n%s", solid, out)
	}
	if dashed != 1 {
		t.Errorf("dashed edge count = %d:\n%s", dashed, out)
	}
}

func TestIndexScanExplainLabel(t *testing.T) {
	is := &IndexScan{Table: "users", Index: "idx_id", Strategy: "single-column"}
	qp := &QueryPlan{Root: is, Optimized: true}
	if !strings.Contains(ExplainText(qp), "IndexScan(users.idx_id") {
		t.Errorf("text explain missing index scan label:\n%s", ExplainText(qp))
	}
	j := Explain(qp)
	if j.Plan.Type != "index_scan" || j.Plan.Index != "idx_id" {
		t.Errorf("json explain = %+v", j.Plan)
	}
}

func TestTablesWalkOrder(t *testing.T) {
	qp := samplePlan()
	tables := qp.Tables()
	if len(tables) != 2 || tables[0] != "orders" || tables[1] != "customers" {
		t.Errorf("tables = %v", tables)
	}
}
