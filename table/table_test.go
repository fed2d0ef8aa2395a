package table

import (
	"testing"

	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/value"
)

func twoColTable(t *testing.T) *Table {
	t.Helper()
	sch, err := schema.New(
		schema.ColumnDef{Name: "id", Type: schema.TypeInt32},
		schema.ColumnDef{Name: "name", Type: schema.TypeString},
	)
	if err != nil {
		t.Fatal(err)
	}
	return New("users", sch)
}

func TestAppendRowKeepsColumnsInSync(t *testing.T) {
	tbl := twoColTable(t)
	rows := [][]value.Value{
		{value.NewInt32(1), value.NewString("a")},
		{value.NewInt32(2), value.NewString("b")},
		{value.NewInt32(3), value.NewString("c")},
	}
	for _, r := range rows {
		if err := tbl.AppendRow(r); err != nil {
			t.Fatal(err)
		}
	}
	if tbl.RowCount() != 3 {
		t.Fatalf("RowCount = %d", tbl.RowCount())
	}
	for _, name := range tbl.Schema.Names() {
		col, err := tbl.Column(name)
		if err != nil {
			t.Fatal(err)
		}
		if col.Len() != tbl.RowCount() {
			t.Errorf("column %q length %d != row count %d", name, col.Len(), tbl.RowCount())
		}
	}
}

func TestAppendRowArityMismatch(t *testing.T) {
	tbl := twoColTable(t)
	err := tbl.AppendRow([]value.Value{value.NewInt32(1)})
	if !errs.Is(err, errs.ColumnCountMismatch) {
		t.Errorf("expected ColumnCountMismatch, got %v", err)
	}
	if tbl.RowCount() != 0 {
		t.Errorf("failed append must leave the table unchanged")
	}
}

func TestColumnNotFound(t *testing.T) {
	tbl := twoColTable(t)
	_, err := tbl.Column("missing")
	if !errs.Is(err, errs.ColumnNotFound) {
		t.Errorf("expected ColumnNotFound, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	tbl := twoColTable(t)
	if err := tbl.AppendRow([]value.Value{value.NewInt32(1), value.NewString("a")}); err != nil {
		t.Fatal(err)
	}
	clone := tbl.Clone("copy")
	if err := tbl.AppendRow([]value.Value{value.NewInt32(2), value.NewString("b")}); err != nil {
		t.Fatal(err)
	}
	if clone.RowCount() != 1 {
		t.Errorf("clone saw a mutation of the source table")
	}
	if clone.Name != "copy" {
		t.Errorf("clone name = %q", clone.Name)
	}
}

// recordingIndex counts rebuilds so the delete-invalidates-indexes rule is
// observable without importing a concrete index package (import cycle).
type recordingIndex struct {
	rebuilds int
	lastRows int
}

func (r *recordingIndex) Name() string      { return "rec" }
func (r *recordingIndex) Kind() IndexKind   { return KindBTree }
func (r *recordingIndex) Columns() []string { return []string{"id"} }
func (r *recordingIndex) Rebuild(rows RowSource) error {
	r.rebuilds++
	r.lastRows = rows.RowCount()
	return nil
}

func TestDeleteRowsRebuildsIndexes(t *testing.T) {
	tbl := twoColTable(t)
	for i := 1; i <= 4; i++ {
		if err := tbl.AppendRow([]value.Value{value.NewInt32(int32(i)), value.NewString("x")}); err != nil {
			t.Fatal(err)
		}
	}
	rec := &recordingIndex{}
	tbl.RegisterIndex(rec)

	if err := tbl.DeleteRows([]int{1, 3}); err != nil {
		t.Fatal(err)
	}
	if tbl.RowCount() != 2 {
		t.Fatalf("RowCount after delete = %d", tbl.RowCount())
	}
	col, _ := tbl.Column("id")
	if col.Len() != 2 {
		t.Errorf("column length %d != row count", col.Len())
	}
	if got := col.At(0).Int(); got != 1 {
		t.Errorf("surviving row 0 id = %d, want 1", got)
	}
	if got := col.At(1).Int(); got != 3 {
		t.Errorf("surviving row 1 id = %d, want 3", got)
	}
	if rec.rebuilds != 1 || rec.lastRows != 2 {
		t.Errorf("index not rebuilt against the post-delete table: %+v", rec)
	}
}

func TestIndexRegistryLookup(t *testing.T) {
	tbl := twoColTable(t)
	rec := &recordingIndex{}
	tbl.RegisterIndex(rec)
	got, ok := tbl.Index("rec")
	if !ok || got.Name() != "rec" {
		t.Errorf("registered index not found")
	}
	if _, ok := tbl.Index("nope"); ok {
		t.Errorf("unknown index name should miss")
	}
	if len(tbl.Indexes()) != 1 {
		t.Errorf("Indexes() should list one entry")
	}
}
