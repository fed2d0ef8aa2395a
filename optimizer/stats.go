// Package optimizer implements Grizzly's rule-based query optimizer:
// the statistics registry, predicate/projection pushdown, index
// selection, the bottom-up cost model, and decision-audit logging.
package optimizer

import (
	"sort"

	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/table"
)

// CompositeIndexStats names one composite-hash index and its ordered key
// columns.
type CompositeIndexStats struct {
	IndexName string
	Columns   []string
}

// TableStats is everything the optimizer caches per registered table:
// row count, per-column cardinality, available single-column indexes by
// column name, and the ordered composite-hash index list.
type TableStats struct {
	Name     string
	RowCount int64
	// RowSize is an estimated average row width in bytes, used by the
	// scan-cost formula (rows x row_size / page_size). Computed once at
	// registration from each column's DataType and, for variable-width
	// columns, the observed average payload length.
	RowSize int64

	ColumnCardinality map[string]int64
	// SingleColumnBTree maps a column name to the name of a B+Tree index
	// whose sole key column is that column.
	SingleColumnBTree map[string]string
	// Composite lists composite-hash indexes in a fixed, name-sorted
	// order, so index selection's tie-breaking is deterministic and
	// reproducible across runs.
	Composite []CompositeIndexStats
}

// Stats is the optimizer's table-statistics registry, rebuilt (or
// refreshed) from the live table.Table each time a query is planned.
type Stats struct {
	tables map[string]*TableStats
}

// NewStats returns an empty registry.
func NewStats() *Stats {
	return &Stats{tables: make(map[string]*TableStats)}
}

// Register computes and stores TableStats for t, replacing any prior
// entry under the same name.
func (s *Stats) Register(t *table.Table) *TableStats {
	ts := &TableStats{
		Name:              t.Name,
		RowCount:          int64(t.RowCount()),
		ColumnCardinality: make(map[string]int64, t.Schema.Len()),
		SingleColumnBTree: make(map[string]string),
	}

	var rowSize int64
	for _, def := range t.Schema.Columns {
		col, err := t.Column(def.Name)
		if err != nil {
			continue
		}
		ts.ColumnCardinality[def.Name] = col.Cardinality().Distinct()
		rowSize += estimateColumnWidth(def, col)
	}
	ts.RowSize = rowSize
	if ts.RowSize <= 0 {
		ts.RowSize = 1
	}

	var composite []CompositeIndexStats
	for _, idx := range t.Indexes() {
		switch idx.Kind() {
		case table.KindBTree:
			if cols := idx.Columns(); len(cols) == 1 {
				ts.SingleColumnBTree[cols[0]] = idx.Name()
			}
		case table.KindCompositeHash:
			composite = append(composite, CompositeIndexStats{IndexName: idx.Name(), Columns: idx.Columns()})
		}
	}
	sort.Slice(composite, func(i, j int) bool { return composite[i].IndexName < composite[j].IndexName })
	ts.Composite = composite

	s.tables[t.Name] = ts
	return ts
}

// Table returns the cached stats for name, if registered.
func (s *Stats) Table(name string) (*TableStats, bool) {
	ts, ok := s.tables[name]
	return ts, ok
}

// estimateColumnWidth returns a per-row byte estimate for one column:
// fixed widths for scalar kinds, 4 bytes per declared dimension for
// vectors (64 when no dimension is declared), and the average length of
// up to 64 sampled payloads for string-like kinds, since those dominate a
// row's true size.
func estimateColumnWidth(def schema.ColumnDef, col *table.Column) int64 {
	switch def.Type {
	case schema.TypeInt32, schema.TypeFloat32, schema.TypeBoolean:
		return 4
	case schema.TypeInt64, schema.TypeFloat64, schema.TypeTimestamp:
		return 8
	case schema.TypeVector:
		if def.VectorDim > 0 {
			return int64(def.VectorDim) * 4
		}
		return 64
	case schema.TypeString, schema.TypeCustom, schema.TypeException:
		if col.Len() == 0 {
			return 16
		}
		sample := col.Len()
		if sample > 64 {
			sample = 64
		}
		var total int64
		for i := 0; i < sample; i++ {
			total += int64(len(col.At(i).String()))
		}
		avg := total / int64(sample)
		if avg <= 0 {
			return 16
		}
		return avg
	default:
		return 8
	}
}
