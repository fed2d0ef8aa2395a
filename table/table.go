package table

import (
	"sync"

	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/value"
)

// Table is {name, schema, per-column storage, row_count, named index
// registry}. Tables own their columns exclusively; indexes are weak
// references by name into the table's rows.
type Table struct {
	Name   string
	Schema *schema.Schema

	mu       sync.RWMutex
	columns  []*Column
	rowCount int
	indexes  map[string]Index
}

// New creates an empty table with the given schema, one Column per schema
// entry, allocated up front since schemas are fixed at creation time.
func New(name string, sch *schema.Schema) *Table {
	cols := make([]*Column, sch.Len())
	for i, def := range sch.Columns {
		cols[i] = newColumn(def)
	}
	return &Table{
		Name:    name,
		Schema:  sch,
		columns: cols,
		indexes: make(map[string]Index),
	}
}

func (t *Table) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rowCount
}

// Column returns the Column backing colName, or an error if it does not
// exist in the table's schema.
func (t *Table) Column(colName string) (*Column, error) {
	i, ok := t.Schema.IndexOf(colName)
	if !ok {
		return nil, errs.New(errs.ColumnNotFound, "column %q not found in table %q", colName, t.Name)
	}
	return t.columns[i], nil
}

// ColumnValues implements table.RowSource for index rebuilds.
func (t *Table) ColumnValues(colName string) ([]value.Value, error) {
	c, err := t.Column(colName)
	if err != nil {
		return nil, err
	}
	return c.Data, nil
}

// AppendRow appends one row of Values, one per schema column in order.
// Every column ends at length row_count: the append covers all columns
// atomically under the table's write lock.
func (t *Table) AppendRow(row []value.Value) error {
	if len(row) != len(t.columns) {
		return errs.New(errs.ColumnCountMismatch, "table %q expects %d columns, got %d", t.Name, len(t.columns), len(row))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, v := range row {
		t.columns[i].Append(v)
	}
	t.rowCount++
	return nil
}

// DeleteRows removes the rows at the given 0-based row indices (callers
// may pass indices in any order). Because indexes are weak references
// into row positions, every registered index is invalidated and rebuilt
// against the post-delete table; row ids held by an index are never
// mutated in place.
func (t *Table) DeleteRows(rowIdx []int) error {
	t.mu.Lock()
	drop := make(map[int]bool, len(rowIdx))
	for _, i := range rowIdx {
		drop[i] = true
	}
	for _, col := range t.columns {
		kept := col.Data[:0]
		for i, v := range col.Data {
			if !drop[i] {
				kept = append(kept, v)
			}
		}
		col.Data = kept
	}
	t.rowCount -= len(rowIdx)
	indexes := make([]Index, 0, len(t.indexes))
	for _, idx := range t.indexes {
		indexes = append(indexes, idx)
	}
	t.mu.Unlock()

	// Rebuild reads the table back through RowCount, which takes the read
	// lock, so it runs after the write lock is released.
	for _, idx := range indexes {
		if err := idx.Rebuild(t); err != nil {
			return errs.Wrap(err, "rebuilding index %q after delete", idx.Name())
		}
	}
	return nil
}

// RegisterIndex adds idx to the table's named index registry.
func (t *Table) RegisterIndex(idx Index) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.indexes[idx.Name()] = idx
}

// Index looks up a registered index by name.
func (t *Table) Index(name string) (Index, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.indexes[name]
	return idx, ok
}

// Indexes returns every registered index in unspecified order; the
// optimizer sorts what it reads from here by index name so its
// tie-breaking stays deterministic across runs.
func (t *Table) Indexes() []Index {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Index, 0, len(t.indexes))
	for _, idx := range t.indexes {
		out = append(out, idx)
	}
	return out
}

// Row materializes the values of row i across every column.
func (t *Table) Row(i int) []value.Value {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]value.Value, len(t.columns))
	for c, col := range t.columns {
		out[c] = col.Data[i]
	}
	return out
}

// Clone returns a deep copy of the table; Scan uses it to materialize a
// full copy of the source table, string payloads included.
func (t *Table) Clone(newName string) *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := New(newName, t.Schema)
	for i, col := range t.columns {
		out.columns[i] = col.Clone()
	}
	out.rowCount = t.rowCount
	return out
}
