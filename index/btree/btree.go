// Package btree implements Grizzly's ordered secondary index: an
// in-memory B+Tree over composite value.Value keys with equality lookup,
// ascending range scans via a leaf linked list, and basic height/fanout
// statistics. Inserts split full nodes preemptively on the way down, so
// no split ever propagates back up.
package btree

import (
	"github.com/zhukovaskychina/grizzly/table"
	"github.com/zhukovaskychina/grizzly/value"
	"go.uber.org/atomic"
)

// Order bounds fan-out: a node holds at most MaxKeys = Order-1 keys and
// at least MinKeys = ceil(Order/2)-1.
const (
	Order   = 32
	MaxKeys = Order - 1
	MinKeys = (Order+1)/2 - 1
)

// Key is a composite key: one value.Value per indexed column, with the
// single-column case being a Key of length 1.
type Key []value.Value

// Compare orders two keys component-wise, the shorter key sorting first
// on a shared prefix (used only internally; Grizzly never builds keys of
// mismatched arity for the same index).
func (k Key) Compare(other Key) int {
	n := len(k)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if c := k[i].Compare(other[i]); c != 0 {
			return c
		}
	}
	return len(k) - len(other)
}

type node struct {
	leaf bool

	// Internal nodes: len(children) == len(keys)+1.
	keys     []Key
	children []*node

	// Leaf nodes: entries[i] holds every row id inserted under keys[i], in
	// insertion order, so duplicates come back in the order they arrived.
	entries []([]int)
	next    *node
}

func newLeaf() *node  { return &node{leaf: true} }
func newInternal() *node { return &node{leaf: false} }

func (n *node) full() bool { return len(n.keys) >= MaxKeys }

// Stats is the height/node-count/avg-fanout triple reported by Stats().
type Stats struct {
	Height     int
	NodeCount  int
	AvgFanout  float64
}

// Index is one named B+Tree secondary index over a table's columns.
type Index struct {
	name    string
	columns []string
	root    *node

	refCount atomic.Int32
}

// New creates an empty B+Tree index named name over columns (ordered).
func New(name string, columns []string) *Index {
	return &Index{name: name, columns: columns, root: newLeaf()}
}

func (idx *Index) Name() string          { return idx.name }
func (idx *Index) Kind() table.IndexKind { return table.KindBTree }
func (idx *Index) Columns() []string     { return idx.columns }

// Insert adds key -> rowID. Duplicate keys are allowed.
func (idx *Index) Insert(key Key, rowID int) {
	if idx.root.full() {
		oldRoot := idx.root
		newRoot := newInternal()
		newRoot.children = []*node{oldRoot}
		idx.splitChild(newRoot, 0)
		idx.root = newRoot
	}
	idx.insertNonFull(idx.root, key, rowID)
}

// splitChild splits the i-th child of parent (which must be full) in
// place, promoting a middle key into parent at position i.
func (idx *Index) splitChild(parent *node, i int) {
	child := parent.children[i]
	mid := len(child.keys) / 2

	if child.leaf {
		right := newLeaf()
		right.keys = append([]Key{}, child.keys[mid:]...)
		right.entries = append([][]int{}, child.entries[mid:]...)
		right.next = child.next

		child.keys = child.keys[:mid]
		child.entries = child.entries[:mid]
		child.next = right

		promoted := right.keys[0] // leaves retain a duplicate of the promoted key
		parent.keys = insertKeyAt(parent.keys, i, promoted)
		parent.children = insertChildAt(parent.children, i+1, right)
		return
	}

	right := newInternal()
	promoted := child.keys[mid]
	right.keys = append([]Key{}, child.keys[mid+1:]...)
	right.children = append([]*node{}, child.children[mid+1:]...)

	child.keys = child.keys[:mid]
	child.children = child.children[:mid+1]

	parent.keys = insertKeyAt(parent.keys, i, promoted)
	parent.children = insertChildAt(parent.children, i+1, right)
}

func (idx *Index) insertNonFull(n *node, key Key, rowID int) {
	if n.leaf {
		pos := searchInsertPos(n.keys, key)
		if pos < len(n.keys) && n.keys[pos].Compare(key) == 0 {
			n.entries[pos] = append(n.entries[pos], rowID)
			return
		}
		n.keys = insertKeyAt(n.keys, pos, key)
		n.entries = insertEntryAt(n.entries, pos, []int{rowID})
		return
	}

	pos := childIndexFor(n.keys, key)
	if n.children[pos].full() {
		idx.splitChild(n, pos)
		if key.Compare(n.keys[pos]) >= 0 {
			pos++
		}
	}
	idx.insertNonFull(n.children[pos], key, rowID)
}

// Search returns every row id inserted under key, in insertion order. An
// empty index returns an empty result without error.
func (idx *Index) Search(key Key) []int {
	leaf := idx.findLeaf(key)
	pos := searchInsertPos(leaf.keys, key)
	if pos < len(leaf.keys) && leaf.keys[pos].Compare(key) == 0 {
		out := make([]int, len(leaf.entries[pos]))
		copy(out, leaf.entries[pos])
		return out
	}
	return nil
}

func (idx *Index) findLeaf(key Key) *node {
	n := idx.root
	for !n.leaf {
		n = n.children[childIndexFor(n.keys, key)]
	}
	return n
}

// RangeScan returns row ids in ascending key order whose key intersects
// [lo, hi]; either bound may be nil (open-ended, inclusive when present).
func (idx *Index) RangeScan(lo, hi *Key) []int {
	var start *node
	if lo == nil {
		start = idx.leftmostLeaf()
	} else {
		start = idx.findLeaf(*lo)
	}

	var out []int
	for n := start; n != nil; n = n.next {
		for i, k := range n.keys {
			if lo != nil && k.Compare(*lo) < 0 {
				continue
			}
			if hi != nil && k.Compare(*hi) > 0 {
				return out
			}
			out = append(out, n.entries[i]...)
		}
	}
	return out
}

func (idx *Index) leftmostLeaf() *node {
	n := idx.root
	for !n.leaf {
		n = n.children[0]
	}
	return n
}

// Stats reports height/node count/avg fanout by walking the tree.
func (idx *Index) Stats() Stats {
	height, nodes, fanoutSum, internalCount := 0, 0, 0, 0
	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		nodes++
		if depth > height {
			height = depth
		}
		if !n.leaf {
			internalCount++
			fanoutSum += len(n.children)
			for _, c := range n.children {
				walk(c, depth+1)
			}
		}
	}
	walk(idx.root, 1)
	avg := 0.0
	if internalCount > 0 {
		avg = float64(fanoutSum) / float64(internalCount)
	}
	return Stats{Height: height, NodeCount: nodes, AvgFanout: avg}
}

// Rebuild discards the tree and reinserts every row from src, used when a
// table invalidates this index after a delete.
func (idx *Index) Rebuild(src table.RowSource) error {
	cols := make([][]value.Value, len(idx.columns))
	for i, col := range idx.columns {
		vals, err := src.ColumnValues(col)
		if err != nil {
			return err
		}
		cols[i] = vals
	}
	idx.root = newLeaf()
	for row := 0; row < src.RowCount(); row++ {
		key := make(Key, len(cols))
		for i := range cols {
			key[i] = cols[i][row]
		}
		idx.Insert(key, row)
	}
	return nil
}

func searchInsertPos(keys []Key, key Key) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if keys[mid].Compare(key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// childIndexFor returns which child to descend into for key: the first
// child whose separator key is > key (standard B+Tree routing, keys[i]
// divides children[i] and children[i+1]).
func childIndexFor(keys []Key, key Key) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if keys[mid].Compare(key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func insertKeyAt(keys []Key, i int, k Key) []Key {
	keys = append(keys, Key{})
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	return keys
}

func insertChildAt(children []*node, i int, c *node) []*node {
	children = append(children, nil)
	copy(children[i+1:], children[i:])
	children[i] = c
	return children
}

func insertEntryAt(entries [][]int, i int, e []int) [][]int {
	entries = append(entries, nil)
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	return entries
}
