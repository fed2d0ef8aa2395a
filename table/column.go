// Package table implements Grizzly's columnar in-memory Table: row count,
// per-column storage, and a named secondary-index registry.
package table

import (
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/value"
)

// Column is a dense vector of Values all of the same DataType, plus a
// cardinality estimator the optimizer consults for selectivity.
type Column struct {
	Def   schema.ColumnDef
	Data  []value.Value
	card  *schema.CardinalityEstimator
}

func newColumn(def schema.ColumnDef) *Column {
	return &Column{Def: def, card: schema.NewCardinalityEstimator()}
}

func (c *Column) Len() int { return len(c.Data) }

func (c *Column) Append(v value.Value) {
	c.Data = append(c.Data, v)
	c.card.Observe(v)
}

func (c *Column) At(i int) value.Value { return c.Data[i] }

// Cardinality returns this column's cardinality estimator, read by the
// optimizer's statistics registry.
func (c *Column) Cardinality() *schema.CardinalityEstimator { return c.card }

// Clone duplicates the column's storage, cloning each Value's payload so
// the clone survives the source table's release.
func (c *Column) Clone() *Column {
	out := newColumn(c.Def)
	out.Data = make([]value.Value, len(c.Data))
	for i, v := range c.Data {
		out.Data[i] = v.Clone()
		out.card.Observe(out.Data[i])
	}
	return out
}
