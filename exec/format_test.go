package exec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/plan"
	"github.com/zhukovaskychina/grizzly/schema"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "events.csv", "id,name,score\n1,alice,1.5\n2,bob,2.5\n")
	tbl, err := LoadFile(path, "events")
	if err != nil {
		t.Fatal(err)
	}
	if tbl.RowCount() != 2 {
		t.Fatalf("rows = %d", tbl.RowCount())
	}
	if tbl.Schema.Columns[0].Type != schema.TypeInt64 {
		t.Errorf("id inferred as %v", tbl.Schema.Columns[0].Type)
	}
	if tbl.Schema.Columns[1].Type != schema.TypeString {
		t.Errorf("name inferred as %v", tbl.Schema.Columns[1].Type)
	}
	if tbl.Schema.Columns[2].Type != schema.TypeFloat64 {
		t.Errorf("score inferred as %v", tbl.Schema.Columns[2].Type)
	}
	if got := tbl.Row(1)[1].String(); got != "bob" {
		t.Errorf("row 1 name = %q", got)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "events.json", `[{"id": 1, "name": "alice"}, {"id": 2, "name": "bob"}]`)
	tbl, err := LoadFile(path, "events")
	if err != nil {
		t.Fatal(err)
	}
	if tbl.RowCount() != 2 {
		t.Fatalf("rows = %d", tbl.RowCount())
	}
	// JSON keys are sorted for a deterministic column order.
	names := tbl.Schema.Names()
	if names[0] != "id" || names[1] != "name" {
		t.Errorf("columns = %v", names)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile("/does/not/exist.csv", "x"); !errs.Is(err, errs.FailedToLoadFile) {
		t.Errorf("missing file: %v", err)
	}
	path := writeFile(t, "data.parquet", "binary")
	if _, err := LoadFile(path, "x"); !errs.Is(err, errs.InvalidFileFormat) {
		t.Errorf("unknown extension: %v", err)
	}
}

func TestFileScanThroughExecutor(t *testing.T) {
	path := writeFile(t, "users.csv", "id,name\n1,alice\n")
	s := plan.NewScan("")
	s.IsFile = true
	s.FilePath = path
	s.Alias = "users"
	out, err := Execute(s, MapCatalog{})
	if err != nil {
		t.Fatal(err)
	}
	if out.RowCount() != 1 || out.Row(0)[1].String() != "alice" {
		t.Errorf("file scan result: %d rows", out.RowCount())
	}
}
