package hash

import (
	"testing"

	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/value"
)

func TestLookupExactMatch(t *testing.T) {
	idx := New("idx_uk", []string{"region", "id"})
	idx.Insert([]value.Value{value.NewString("eu"), value.NewInt64(1)}, 0)
	idx.Insert([]value.Value{value.NewString("eu"), value.NewInt64(2)}, 1)
	idx.Insert([]value.Value{value.NewString("us"), value.NewInt64(1)}, 2)

	got := idx.Lookup([]value.Value{value.NewString("eu"), value.NewInt64(2)})
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Lookup = %v, want [1]", got)
	}
	if got := idx.Lookup([]value.Value{value.NewString("ap"), value.NewInt64(1)}); len(got) != 0 {
		t.Errorf("missing key matched: %v", got)
	}
	// A prefix of the composite key must not match (invariant: all key
	// columns required).
	if got := idx.Lookup([]value.Value{value.NewString("eu")}); len(got) != 0 {
		t.Errorf("partial key matched: %v", got)
	}
}

func TestLookupDuplicates(t *testing.T) {
	idx := New("idx_k", []string{"k"})
	idx.Insert([]value.Value{value.NewInt64(9)}, 4)
	idx.Insert([]value.Value{value.NewInt64(9)}, 7)
	got := idx.Lookup([]value.Value{value.NewInt64(9)})
	if len(got) != 2 || got[0] != 4 || got[1] != 7 {
		t.Errorf("Lookup = %v, want [4 7]", got)
	}
}

type fakeRows struct {
	regions []string
}

func (f *fakeRows) RowCount() int { return len(f.regions) }
func (f *fakeRows) ColumnValues(col string) ([]value.Value, error) {
	if col != "region" {
		return nil, errs.New(errs.ColumnNotFound, "no column %q", col)
	}
	out := make([]value.Value, len(f.regions))
	for i, s := range f.regions {
		out[i] = value.NewString(s)
	}
	return out, nil
}

func TestRebuild(t *testing.T) {
	idx := New("idx_region", []string{"region"})
	idx.Insert([]value.Value{value.NewString("stale")}, 99)

	if err := idx.Rebuild(&fakeRows{regions: []string{"eu", "us", "eu"}}); err != nil {
		t.Fatal(err)
	}
	if got := idx.Lookup([]value.Value{value.NewString("stale")}); len(got) != 0 {
		t.Errorf("stale entry survived rebuild: %v", got)
	}
	got := idx.Lookup([]value.Value{value.NewString("eu")})
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("Lookup(eu) = %v, want [0 2]", got)
	}
}
