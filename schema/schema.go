package schema

import (
	"fmt"

	"github.com/zhukovaskychina/grizzly/errs"
)

// ColumnDef is one ordered entry in a Schema: {column_name, data_type,
// optional vector_dimension}.
type ColumnDef struct {
	Name          string
	Type          DataType
	VectorDim     int // only meaningful when Type == TypeVector
	OrdinalPosition int
}

// Schema is an ordered sequence of ColumnDefs. Column names are unique
// case-sensitive within a schema.
type Schema struct {
	Columns []ColumnDef
	byName  map[string]int
}

// New builds a Schema from an ordered column-def list, validating name
// uniqueness up front since schemas are immutable once built.
func New(cols ...ColumnDef) (*Schema, error) {
	s := &Schema{byName: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := s.addColumn(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Schema) addColumn(c ColumnDef) error {
	if _, exists := s.byName[c.Name]; exists {
		return errs.New(errs.ColumnCountMismatch, "duplicate column name %q in schema", c.Name)
	}
	c.OrdinalPosition = len(s.Columns)
	s.byName[c.Name] = len(s.Columns)
	s.Columns = append(s.Columns, c)
	return nil
}

// IndexOf returns the 0-based column position of name, case-sensitive.
func (s *Schema) IndexOf(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// Column returns the ColumnDef for name.
func (s *Schema) Column(name string) (ColumnDef, bool) {
	i, ok := s.byName[name]
	if !ok {
		return ColumnDef{}, false
	}
	return s.Columns[i], true
}

func (s *Schema) Len() int { return len(s.Columns) }

func (s *Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Project returns a new Schema containing only the named columns, in the
// order requested -- used by projection pushdown to tighten a Scan's
// output column list.
func (s *Schema) Project(names []string) (*Schema, error) {
	cols := make([]ColumnDef, 0, len(names))
	for _, n := range names {
		c, ok := s.Column(n)
		if !ok {
			return nil, errs.New(errs.ColumnNotFound, "column %q not found", n)
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Concat appends right's columns after s's columns, used to build a join's
// result schema (left columns followed by right columns).
func (s *Schema) Concat(right *Schema) (*Schema, error) {
	cols := append(append([]ColumnDef{}, s.Columns...), right.Columns...)
	return New(cols...)
}

func (s *Schema) String() string {
	return fmt.Sprintf("Schema%v", s.Names())
}
