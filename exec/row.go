package exec

import (
	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/value"
)

// Row adapts one materialized row of Values into the expr.Row contract
// (Column(table, name) (value.Value, error)). It resolves a bare,
// unqualified reference by name first; a table-qualified reference
// ("alias.col") is looked up under its alias first and falls back to the
// bare name so predicates written before a join was planned still work.
type Row struct {
	values    []value.Value
	byName    map[string]int
	byQualName map[string]int
}

// NewRow builds a Row from values in schema-column order alongside the
// byName/byQualified index maps a Scan/Join/Aggregate output builds once
// per table, not once per row.
func NewRow(values []value.Value, byName, byQualified map[string]int) Row {
	return Row{values: values, byName: byName, byQualName: byQualified}
}

func (r Row) Column(table, name string) (value.Value, error) {
	if table != "" {
		if i, ok := r.byQualName[table+"."+name]; ok {
			return r.values[i], nil
		}
	}
	if i, ok := r.byName[name]; ok {
		return r.values[i], nil
	}
	return value.Value{}, errs.New(errs.ColumnNotFound, "column %q not found in row", qualify(table, name))
}

func qualify(table, name string) string {
	if table == "" {
		return name
	}
	return table + "." + name
}
