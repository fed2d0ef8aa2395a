package schema

import (
	"fmt"
	"testing"

	"github.com/zhukovaskychina/grizzly/value"
)

func TestSchemaDuplicateColumn(t *testing.T) {
	_, err := New(
		ColumnDef{Name: "a", Type: TypeInt64},
		ColumnDef{Name: "a", Type: TypeString},
	)
	if err == nil {
		t.Fatal("duplicate column name should be rejected")
	}
}

func TestSchemaOrderAndLookup(t *testing.T) {
	s, err := New(
		ColumnDef{Name: "id", Type: TypeInt32},
		ColumnDef{Name: "name", Type: TypeString},
		ColumnDef{Name: "Name", Type: TypeString}, // case-sensitive: distinct
	)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d", s.Len())
	}
	i, ok := s.IndexOf("name")
	if !ok || i != 1 {
		t.Errorf("IndexOf(name) = %d, %v", i, ok)
	}
	if _, ok := s.IndexOf("NAME"); ok {
		t.Errorf("column lookup must be case-sensitive")
	}
	for pos, def := range s.Columns {
		if def.OrdinalPosition != pos {
			t.Errorf("column %q ordinal %d at position %d", def.Name, def.OrdinalPosition, pos)
		}
	}
}

func TestSchemaProject(t *testing.T) {
	s, _ := New(
		ColumnDef{Name: "a", Type: TypeInt64},
		ColumnDef{Name: "b", Type: TypeString},
		ColumnDef{Name: "c", Type: TypeFloat64},
	)
	p, err := s.Project([]string{"c", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Names(); got[0] != "c" || got[1] != "a" {
		t.Errorf("Project order not preserved: %v", got)
	}
	if _, err := s.Project([]string{"missing"}); err == nil {
		t.Errorf("projecting a missing column should fail")
	}
}

func TestSchemaConcat(t *testing.T) {
	l, _ := New(ColumnDef{Name: "a", Type: TypeInt64})
	r, _ := New(ColumnDef{Name: "b", Type: TypeString})
	j, err := l.Concat(r)
	if err != nil {
		t.Fatal(err)
	}
	if got := j.Names(); got[0] != "a" || got[1] != "b" {
		t.Errorf("Concat should keep left columns first: %v", got)
	}
}

func TestCardinalityExactBelowThreshold(t *testing.T) {
	c := NewCardinalityEstimator()
	for i := 0; i < 100; i++ {
		c.Observe(value.NewInt64(int64(i % 10)))
	}
	if !c.IsExact() {
		t.Fatal("estimator should stay exact below the threshold")
	}
	if got := c.Distinct(); got != 10 {
		t.Errorf("Distinct = %d, want 10", got)
	}
}

func TestCardinalitySketchAboveThreshold(t *testing.T) {
	c := NewCardinalityEstimator()
	const n = 5000
	for i := 0; i < n; i++ {
		c.Observe(value.NewString(fmt.Sprintf("key-%d", i)))
	}
	if c.IsExact() {
		t.Fatal("estimator should have upgraded to the sketch")
	}
	got := c.Distinct()
	// Probabilistic estimate; accept a generous band.
	if got < n/4 || got > n*4 {
		t.Errorf("sketch estimate %d way off true cardinality %d", got, n)
	}
}
