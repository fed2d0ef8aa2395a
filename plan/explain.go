package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExplainJSON is the structured EXPLAIN emission: {optimized,
// total_cost, plan: {type, cost, rows, table?, index?, join?,
// children: [...]}}.
type ExplainJSON struct {
	Optimized bool            `json:"optimized"`
	TotalCost float64         `json:"total_cost"`
	Plan      *ExplainNodeJSON `json:"plan"`
}

type ExplainNodeJSON struct {
	Type     string             `json:"type"`
	Cost     float64            `json:"cost"`
	Rows     int64              `json:"rows"`
	Table    string             `json:"table,omitempty"`
	Index    string             `json:"index,omitempty"`
	Join     string             `json:"join,omitempty"`
	Children []*ExplainNodeJSON `json:"children"`
}

func toExplainNodeJSON(n Node) *ExplainNodeJSON {
	if n == nil {
		return nil
	}
	out := &ExplainNodeJSON{
		Type:     n.Kind().String(),
		Cost:     n.Cost(),
		Rows:     n.Rows(),
		Children: make([]*ExplainNodeJSON, 0, len(n.Children())),
	}
	switch t := n.(type) {
	case *Scan:
		out.Table = t.Table
	case *IndexScan:
		out.Table = t.Table
		out.Index = t.Index
	case *Join:
		out.Join = t.Type.String()
	}
	for _, c := range n.Children() {
		out.Children = append(out.Children, toExplainNodeJSON(c))
	}
	return out
}

// Explain builds the ExplainJSON value for qp.
func Explain(qp *QueryPlan) *ExplainJSON {
	return &ExplainJSON{
		Optimized: qp.Optimized,
		TotalCost: qp.TotalCost(),
		Plan:      toExplainNodeJSON(qp.Root),
	}
}

// ExplainJSONString marshals Explain(qp) to indented JSON text.
func ExplainJSONString(qp *QueryPlan) (string, error) {
	b, err := json.MarshalIndent(Explain(qp), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExplainMermaid renders qp as a `graph TD` Mermaid diagram: solid edges
// to left children, dashed edges to right children.
func ExplainMermaid(qp *QueryPlan) string {
	var w strings.Builder
	w.WriteString("graph TD\n")
	if qp.Root == nil {
		return w.String()
	}
	ids := map[Node]string{}
	counter := 0
	var nodeID func(n Node) string
	nodeID = func(n Node) string {
		if id, ok := ids[n]; ok {
			return id
		}
		id := fmt.Sprintf("n%d", counter)
		counter++
		ids[n] = id
		return id
	}
	var walk func(n Node)
	walk = func(n Node) {
		id := nodeID(n)
		w.WriteString(fmt.Sprintf("  %s[%q]\n", id, mermaidLabel(n)))
		children := n.Children()
		for i, c := range children {
			walk(c)
			cid := nodeID(c)
			if j, ok := n.(*Join); ok && j.Right == c && len(children) == 2 {
				w.WriteString(fmt.Sprintf("  %s -.-> %s\n", id, cid))
			} else if i == 1 {
				w.WriteString(fmt.Sprintf("  %s -.-> %s\n", id, cid))
			} else {
				w.WriteString(fmt.Sprintf("  %s --> %s\n", id, cid))
			}
		}
	}
	walk(qp.Root)
	return w.String()
}

func mermaidLabel(n Node) string {
	switch t := n.(type) {
	case *Scan:
		return fmt.Sprintf("scan:%s", t.Table)
	case *IndexScan:
		return fmt.Sprintf("index_scan:%s.%s", t.Table, t.Index)
	case *Join:
		return fmt.Sprintf("join:%s", t.Type)
	default:
		return n.Kind().String()
	}
}
