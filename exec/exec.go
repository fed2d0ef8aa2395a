// Package exec implements Grizzly's tree-walking executor: one function
// per plan.Node variant, each running its operator to completion and
// returning an owned table.Table to its parent rather than streaming rows
// lazily.
package exec

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/grizzly/errs"
	gexpr "github.com/zhukovaskychina/grizzly/expr"
	"github.com/zhukovaskychina/grizzly/index/btree"
	"github.com/zhukovaskychina/grizzly/index/hash"
	"github.com/zhukovaskychina/grizzly/plan"
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/table"
	"github.com/zhukovaskychina/grizzly/value"
)

// boundTable pairs a materialized table with the per-column table alias
// that owns it, so a later Filter/Join/Project can resolve a qualified
// column reference ("o.id") back to the Scan it came from even after
// several operators have reshaped the row.
type boundTable struct {
	t       *table.Table
	aliases []string // len == t.Schema.Len(); "" when the column has no owning alias
}

func (bt *boundTable) indexMaps() (byName, byQual map[string]int) {
	byName = make(map[string]int, bt.t.Schema.Len())
	byQual = make(map[string]int, bt.t.Schema.Len())
	for i, col := range bt.t.Schema.Columns {
		byName[col.Name] = i
		if bt.aliases[i] != "" {
			byQual[bt.aliases[i]+"."+col.Name] = i
		}
	}
	return
}

func sameAlias(alias string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = alias
	}
	return out
}

// Execute runs plan root Node against cat and returns its output table.
func Execute(root plan.Node, cat Catalog) (*table.Table, error) {
	bt, err := execNode(root, cat)
	if err != nil {
		return nil, err
	}
	return bt.t, nil
}

func execNode(n plan.Node, cat Catalog) (*boundTable, error) {
	switch t := n.(type) {
	case *plan.Scan:
		return execScan(t, cat)
	case *plan.IndexScan:
		return execIndexScan(t, cat)
	case *plan.Filter:
		return execFilter(t, cat)
	case *plan.Project:
		return execProject(t, cat)
	case *plan.Join:
		return execJoin(t, cat)
	case *plan.Aggregate:
		return execAggregate(t, cat)
	case *plan.Sort:
		return execSort(t, cat)
	case *plan.Limit:
		return execLimit(t, cat)
	default:
		return nil, errs.New(errs.InvalidExpression, "unsupported plan node %T", n)
	}
}

func execScan(s *plan.Scan, cat Catalog) (*boundTable, error) {
	var src *table.Table
	if s.IsFile {
		loaded, err := LoadFile(s.FilePath, s.Alias)
		if err != nil {
			return nil, err
		}
		src = loaded
	} else {
		t, ok := cat.Table(s.Table)
		if !ok {
			return nil, errs.New(errs.TableNotFound, "table %q not found", s.Table)
		}
		src = t.Clone(s.Table)
	}
	if s.Columns != nil {
		projected, err := src.Schema.Project(s.Columns)
		if err != nil {
			return nil, err
		}
		out := table.New(src.Name, projected)
		for r := 0; r < src.RowCount(); r++ {
			row := src.Row(r)
			newRow := make([]value.Value, len(s.Columns))
			for i, name := range s.Columns {
				idx, _ := src.Schema.IndexOf(name)
				newRow[i] = row[idx]
			}
			if err := out.AppendRow(newRow); err != nil {
				return nil, err
			}
		}
		src = out
	}
	return &boundTable{t: src, aliases: sameAlias(s.Alias, src.Schema.Len())}, nil
}

func execIndexScan(s *plan.IndexScan, cat Catalog) (*boundTable, error) {
	src, ok := cat.Table(s.Table)
	if !ok {
		return nil, errs.New(errs.TableNotFound, "table %q not found", s.Table)
	}
	idx, ok := src.Index(s.Index)
	if !ok {
		return nil, errs.New(errs.IndexNotFound, "index %q not found on table %q", s.Index, s.Table)
	}
	var rowIDs []int
	switch s.Strategy {
	case "composite-hash":
		h, ok := idx.(*hash.Index)
		if !ok {
			return nil, errs.New(errs.IndexNotFound, "index %q is not a composite-hash index", s.Index)
		}
		rowIDs = h.Lookup(s.Keys)
	default:
		b, ok := idx.(*btree.Index)
		if !ok {
			return nil, errs.New(errs.IndexNotFound, "index %q is not a B+Tree index", s.Index)
		}
		rowIDs = b.Search(btree.Key(s.Keys))
	}
	outSchema := src.Schema
	if s.Columns != nil {
		projected, err := src.Schema.Project(s.Columns)
		if err != nil {
			return nil, err
		}
		outSchema = projected
	}
	out := table.New(src.Name, outSchema)
	for _, rid := range rowIDs {
		row := src.Row(rid)
		if s.Remainder != nil {
			ok, err := evalRemainder(s.Remainder, src.Schema, s.Table, row)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		var cloned []value.Value
		if s.Columns != nil {
			cloned = make([]value.Value, len(s.Columns))
			for i, name := range s.Columns {
				idx, _ := src.Schema.IndexOf(name)
				cloned[i] = row[idx].Clone()
			}
		} else {
			cloned = make([]value.Value, len(row))
			for i, v := range row {
				cloned[i] = v.Clone()
			}
		}
		if err := out.AppendRow(cloned); err != nil {
			return nil, err
		}
	}
	return &boundTable{t: out, aliases: sameAlias(s.Table, out.Schema.Len())}, nil
}

func evalRemainder(e gexpr.Expr, sch *schema.Schema, alias string, row []value.Value) (bool, error) {
	byName, byQual := indexMapsFor(sch, alias)
	return gexpr.EvalBool(e, NewRow(row, byName, byQual))
}

func indexMapsFor(sch *schema.Schema, alias string) (byName, byQual map[string]int) {
	byName = make(map[string]int, sch.Len())
	byQual = make(map[string]int, sch.Len())
	for i, col := range sch.Columns {
		byName[col.Name] = i
		if alias != "" {
			byQual[alias+"."+col.Name] = i
		}
	}
	return
}

func execFilter(f *plan.Filter, cat Catalog) (*boundTable, error) {
	child, err := execNode(f.Child, cat)
	if err != nil {
		return nil, err
	}
	byName, byQual := child.indexMaps()
	out := table.New(child.t.Name, child.t.Schema)
	for r := 0; r < child.t.RowCount(); r++ {
		row := child.t.Row(r)
		ok, err := gexpr.EvalBool(f.Predicate, NewRow(row, byName, byQual))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return &boundTable{t: out, aliases: child.aliases}, nil
}

func execProject(p *plan.Project, cat Catalog) (*boundTable, error) {
	child, err := execNode(p.Child, cat)
	if err != nil {
		return nil, err
	}
	if p.Star {
		return child, nil
	}
	byName, byQual := child.indexMaps()
	defs := make([]schema.ColumnDef, len(p.Items))
	for i, item := range p.Items {
		defs[i] = schema.ColumnDef{Name: item.Alias, Type: projectItemType(item, child)}
	}
	sch, err := schema.New(defs...)
	if err != nil {
		return nil, err
	}
	out := table.New(child.t.Name, sch)
	for r := 0; r < child.t.RowCount(); r++ {
		srcRow := child.t.Row(r)
		row := NewRow(srcRow, byName, byQual)
		newRow := make([]value.Value, len(p.Items))
		for i, item := range p.Items {
			v, err := gexpr.Eval(item.Expr, row)
			if err != nil {
				return nil, err
			}
			newRow[i] = v
		}
		if err := out.AppendRow(newRow); err != nil {
			return nil, err
		}
	}
	return &boundTable{t: out, aliases: sameAlias("", out.Schema.Len())}, nil
}

func projectItemType(item plan.ProjectItem, child *boundTable) schema.DataType {
	if cr, ok := item.Expr.(*gexpr.ColumnRef); ok {
		if col, ok := child.t.Schema.Column(cr.Name); ok {
			return col.Type
		}
	}
	if child.t.RowCount() > 0 {
		byName, byQual := child.indexMaps()
		if v, err := gexpr.Eval(item.Expr, NewRow(child.t.Row(0), byName, byQual)); err == nil {
			return schema.FromValueKind(v.Kind())
		}
	}
	return schema.TypeFloat64
}

// concatJoinSchemas builds the joined output schema, left columns then
// right columns. Colliding column names across the two sides (e.g. both
// tables having an "id" column) rename only the colliding right-side
// columns with a "right_" prefix rather than erroring, since
// schema.Schema requires globally unique names.
func concatJoinSchemas(l, r *schema.Schema) (*schema.Schema, error) {
	if sch, err := l.Concat(r); err == nil {
		return sch, nil
	}
	existing := make(map[string]bool, l.Len())
	cols := append([]schema.ColumnDef{}, l.Columns...)
	for _, c := range l.Columns {
		existing[c.Name] = true
	}
	for _, c := range r.Columns {
		name := c.Name
		if existing[name] {
			name = "right_" + name
		}
		cols = append(cols, schema.ColumnDef{Name: name, Type: c.Type, VectorDim: c.VectorDim})
	}
	return schema.New(cols...)
}

func execJoin(j *plan.Join, cat Catalog) (*boundTable, error) {
	left, err := execNode(j.Left, cat)
	if err != nil {
		return nil, err
	}
	right, err := execNode(j.Right, cat)
	if err != nil {
		return nil, err
	}
	li, ok := left.t.Schema.IndexOf(j.LeftCol)
	if !ok {
		return nil, errs.New(errs.ColumnNotFound, "join column %q not found on left side", j.LeftCol)
	}
	ri, ok := right.t.Schema.IndexOf(j.RightCol)
	if !ok {
		return nil, errs.New(errs.ColumnNotFound, "join column %q not found on right side", j.RightCol)
	}

	outSchema, err := concatJoinSchemas(left.t.Schema, right.t.Schema)
	if err != nil {
		return nil, err
	}
	outAliases := append(append([]string{}, left.aliases...), right.aliases...)
	out := table.New("join", outSchema)

	rightBuckets := make(map[uint64][]int)
	for r := 0; r < right.t.RowCount(); r++ {
		v := right.t.Row(r)[ri]
		rightBuckets[v.Hash()] = append(rightBuckets[v.Hash()], r)
	}
	matchedRight := make([]bool, right.t.RowCount())

	nullPad := func(sch *schema.Schema) []value.Value {
		out := make([]value.Value, sch.Len())
		for i, c := range sch.Columns {
			out[i] = value.Zero(c.Type.ToValueKind())
		}
		return out
	}

	for l := 0; l < left.t.RowCount(); l++ {
		lrow := left.t.Row(l)
		lv := lrow[li]
		matched := false
		for _, r := range rightBuckets[lv.Hash()] {
			rrow := right.t.Row(r)
			if !lv.Equal(rrow[ri]) {
				continue
			}
			matched = true
			matchedRight[r] = true
			combined := append(append([]value.Value{}, lrow...), rrow...)
			if err := out.AppendRow(combined); err != nil {
				return nil, err
			}
		}
		if !matched && (j.Type == plan.LeftJoin || j.Type == plan.FullJoin) {
			combined := append(append([]value.Value{}, lrow...), nullPad(right.t.Schema)...)
			if err := out.AppendRow(combined); err != nil {
				return nil, err
			}
		}
	}
	if j.Type == plan.RightJoin || j.Type == plan.FullJoin {
		for r := 0; r < right.t.RowCount(); r++ {
			if matchedRight[r] {
				continue
			}
			rrow := right.t.Row(r)
			combined := append(append([]value.Value{}, nullPad(left.t.Schema)...), rrow...)
			if err := out.AppendRow(combined); err != nil {
				return nil, err
			}
		}
	}
	return &boundTable{t: out, aliases: outAliases}, nil
}

type groupState struct {
	key     string
	groupBy []value.Value
	counts  []int64
	sums    []decimal.Decimal
	mins    []value.Value
	maxs    []value.Value
	haveAgg []bool
}

func numericDecimal(v value.Value) decimal.Decimal {
	switch v.Kind() {
	case value.Int32, value.Int64:
		return decimal.NewFromInt(v.Int())
	default:
		return decimal.NewFromFloat(v.Float())
	}
}

func execAggregate(a *plan.Aggregate, cat Catalog) (*boundTable, error) {
	child, err := execNode(a.Child, cat)
	if err != nil {
		return nil, err
	}
	byName, byQual := child.indexMaps()

	groupIdx := make([]int, len(a.GroupBy))
	for i, name := range a.GroupBy {
		idx, ok := child.t.Schema.IndexOf(name)
		if !ok {
			return nil, errs.New(errs.ColumnNotFound, "GROUP BY column %q not found", name)
		}
		groupIdx[i] = idx
	}

	var states []*groupState
	byKey := make(map[string]*groupState)

	for r := 0; r < child.t.RowCount(); r++ {
		row := child.t.Row(r)
		groupVals := make([]value.Value, len(groupIdx))
		for i, idx := range groupIdx {
			groupVals[i] = row[idx]
		}
		key := value.FormatGroupKey(groupVals)
		gs, ok := byKey[key]
		if !ok {
			gs = &groupState{
				key: key, groupBy: groupVals,
				counts: make([]int64, len(a.Aggregates)),
				sums:   make([]decimal.Decimal, len(a.Aggregates)),
				mins:   make([]value.Value, len(a.Aggregates)),
				maxs:   make([]value.Value, len(a.Aggregates)),
				haveAgg: make([]bool, len(a.Aggregates)),
			}
			for i := range gs.sums {
				gs.sums[i] = decimal.Zero
			}
			byKey[key] = gs
			states = append(states, gs)
		}
		for i, item := range a.Aggregates {
			switch item.Func {
			case plan.AggCountStar:
				gs.counts[i]++
			case plan.AggCount:
				// No value.Value variant represents NULL, so COUNT(col)
				// counts every row exactly like COUNT(*).
				gs.counts[i]++
			case plan.AggSum, plan.AggAvg:
				v, err := gexpr.Eval(&gexpr.ColumnRef{Name: item.Column}, NewRow(row, byName, byQual))
				if err != nil {
					return nil, err
				}
				gs.counts[i]++
				gs.sums[i] = gs.sums[i].Add(numericDecimal(v))
			case plan.AggMin, plan.AggMax:
				v, err := gexpr.Eval(&gexpr.ColumnRef{Name: item.Column}, NewRow(row, byName, byQual))
				if err != nil {
					return nil, err
				}
				gs.counts[i]++
				if !gs.haveAgg[i] {
					gs.mins[i], gs.maxs[i] = v, v
					gs.haveAgg[i] = true
				} else {
					if v.Compare(gs.mins[i]) < 0 {
						gs.mins[i] = v
					}
					if v.Compare(gs.maxs[i]) > 0 {
						gs.maxs[i] = v
					}
				}
			}
		}
	}

	aliasToItem := make(map[string]plan.AggItem, len(a.Aggregates))
	aliasToIdx := make(map[string]int, len(a.Aggregates))
	for i, item := range a.Aggregates {
		aliasToItem[item.Alias] = item
		aliasToIdx[item.Alias] = i
	}
	groupByIdx := make(map[string]int, len(a.GroupBy))
	for i, n := range a.GroupBy {
		groupByIdx[n] = i
	}

	defs := make([]schema.ColumnDef, 0, len(a.Order))
	for _, name := range a.Order {
		if item, ok := aliasToItem[name]; ok {
			dt := schema.TypeFloat64
			switch item.Func {
			case plan.AggCountStar, plan.AggCount:
				dt = schema.TypeInt64
			case plan.AggMin, plan.AggMax:
				if col, ok := child.t.Schema.Column(item.Column); ok {
					dt = col.Type
				}
			}
			defs = append(defs, schema.ColumnDef{Name: name, Type: dt})
			continue
		}
		if gi, ok := groupByIdx[name]; ok {
			defs = append(defs, schema.ColumnDef{Name: name, Type: child.t.Schema.Columns[groupIdx[gi]].Type})
			continue
		}
		return nil, errs.New(errs.ColumnNotFound, "aggregate output column %q is neither a GROUP BY column nor an aggregate alias", name)
	}
	outSchema, err := schema.New(defs...)
	if err != nil {
		return nil, err
	}
	outByName, _ := indexMapsFor(outSchema, "")

	out := table.New("aggregate", outSchema)
	for _, gs := range states {
		rowVals := make([]value.Value, len(a.Order))
		for i, name := range a.Order {
			if item, ok := aliasToItem[name]; ok {
				idx := aliasToIdx[name]
				switch item.Func {
				case plan.AggCountStar, plan.AggCount:
					rowVals[i] = value.NewInt64(gs.counts[idx])
				case plan.AggSum:
					f, _ := gs.sums[idx].Float64()
					rowVals[i] = value.NewFloat64(f)
				case plan.AggAvg:
					f, _ := gs.sums[idx].Float64()
					if gs.counts[idx] > 0 {
						f = f / float64(gs.counts[idx])
					}
					rowVals[i] = value.NewFloat64(f)
				case plan.AggMin:
					rowVals[i] = gs.mins[idx]
				case plan.AggMax:
					rowVals[i] = gs.maxs[idx]
				}
				continue
			}
			gi := groupByIdx[name]
			rowVals[i] = gs.groupBy[gi]
		}
		if a.Having != nil {
			ok, err := gexpr.EvalBool(a.Having, NewRow(rowVals, outByName, map[string]int{}))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if err := out.AppendRow(rowVals); err != nil {
			return nil, err
		}
	}
	return &boundTable{t: out, aliases: sameAlias("", out.Schema.Len())}, nil
}

func execSort(s *plan.Sort, cat Catalog) (*boundTable, error) {
	child, err := execNode(s.Child, cat)
	if err != nil {
		return nil, err
	}
	idxs := make([]int, len(s.Keys))
	for i, k := range s.Keys {
		idx, ok := child.t.Schema.IndexOf(k.Column)
		if !ok {
			return nil, errs.New(errs.ColumnNotFound, "ORDER BY column %q not found", k.Column)
		}
		idxs[i] = idx
	}
	order := make([]int, child.t.RowCount())
	for i := range order {
		order[i] = i
	}
	rows := make([][]value.Value, child.t.RowCount())
	for i := range rows {
		rows[i] = child.t.Row(i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rows[order[a]], rows[order[b]]
		for i, idx := range idxs {
			c := ra[idx].Compare(rb[idx])
			if c == 0 {
				continue
			}
			if s.Keys[i].Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	out := table.New(child.t.Name, child.t.Schema)
	for _, i := range order {
		if err := out.AppendRow(rows[i]); err != nil {
			return nil, err
		}
	}
	return &boundTable{t: out, aliases: child.aliases}, nil
}

func execLimit(l *plan.Limit, cat Catalog) (*boundTable, error) {
	child, err := execNode(l.Child, cat)
	if err != nil {
		return nil, err
	}
	out := table.New(child.t.Name, child.t.Schema)
	n := child.t.RowCount()
	for i := l.Offset; i < n && i < l.Offset+l.Count; i++ {
		if err := out.AppendRow(child.t.Row(i)); err != nil {
			return nil, err
		}
	}
	return &boundTable{t: out, aliases: child.aliases}, nil
}
