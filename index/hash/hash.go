// Package hash implements Grizzly's composite-hash index: an
// equality-only, multi-column index keyed by the mixed hashes of its
// ordered key columns' values.
package hash

import (
	"github.com/zhukovaskychina/grizzly/table"
	"github.com/zhukovaskychina/grizzly/value"
)

// Index is a composite-hash secondary index: Columns() gives the ordered
// key columns, all of which must be equality-bound for the index to
// match.
type Index struct {
	name    string
	columns []string
	buckets map[uint64][]entry
}

type entry struct {
	key []value.Value
	row int
}

// New creates an empty composite-hash index named name over the ordered
// columns.
func New(name string, columns []string) *Index {
	return &Index{name: name, columns: columns, buckets: make(map[uint64][]entry)}
}

func (idx *Index) Name() string          { return idx.name }
func (idx *Index) Kind() table.IndexKind { return table.KindCompositeHash }
func (idx *Index) Columns() []string     { return idx.columns }

func bucketKey(key []value.Value) uint64 {
	var h uint64 = 1469598103934665603 // FNV offset basis, mixed with each value's xxhash
	for _, v := range key {
		h ^= v.Hash()
		h *= 1099511628211
	}
	return h
}

// Insert adds key (one Value per column, in Columns() order) -> rowID.
func (idx *Index) Insert(key []value.Value, rowID int) {
	bk := bucketKey(key)
	idx.buckets[bk] = append(idx.buckets[bk], entry{key: append([]value.Value{}, key...), row: rowID})
}

// Lookup returns every row id whose key equals key exactly (structural
// Value equality per component, after confirming the bucket-hash match to
// rule out collisions).
func (idx *Index) Lookup(key []value.Value) []int {
	bk := bucketKey(key)
	var out []int
	for _, e := range idx.buckets[bk] {
		if keysEqual(e.key, key) {
			out = append(out, e.row)
		}
	}
	return out
}

func keysEqual(a, b []value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Rebuild discards and repopulates the index from src.
func (idx *Index) Rebuild(src table.RowSource) error {
	cols := make([][]value.Value, len(idx.columns))
	for i, col := range idx.columns {
		vals, err := src.ColumnValues(col)
		if err != nil {
			return err
		}
		cols[i] = vals
	}
	idx.buckets = make(map[uint64][]entry)
	for row := 0; row < src.RowCount(); row++ {
		key := make([]value.Value, len(cols))
		for i := range cols {
			key[i] = cols[i][row]
		}
		idx.Insert(key, row)
	}
	return nil
}
