package table

import "github.com/zhukovaskychina/grizzly/value"

// IndexKind distinguishes the two index flavors: the ordered B+Tree and
// the equality-only composite hash.
type IndexKind int

const (
	KindBTree IndexKind = iota
	KindCompositeHash
)

// Index is the common surface every secondary index registers under a
// table's index registry. Concrete operations (Search/RangeScan for
// index/btree.Index, Lookup for index/hash.Index) are reached by type
// assertion from the optimizer/executor.
type Index interface {
	Name() string
	Kind() IndexKind
	Columns() []string
	// Rebuild discards and repopulates the index from the current table
	// rows. Indexes are weak references into a table's rows and are
	// invalidated on row deletion; rebuilding replaces any in-place
	// mutation of stored row ids.
	Rebuild(rows RowSource) error
}

// RowSource lets an index rebuild itself without depending on the table
// package's concrete Table type; index/btree and index/hash rebuild
// through this interface.
type RowSource interface {
	RowCount() int
	ColumnValues(colName string) ([]value.Value, error)
}
