package exec

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/table"
	"github.com/zhukovaskychina/grizzly/value"
)

// LoadFile resolves a FROM-clause string-literal operand into a
// transient table scoped to one query, detecting CSV/JSON by file
// extension. Column types are inferred per column, ignoring empty cells:
// int64 if every value parses as an integer, float64 if every value
// parses as a number, boolean if every value parses as a bool, else
// string.
func LoadFile(path, alias string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.New(errs.FailedToLoadFile, "reading %q", path), "%v", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(alias, data)
	case ".json":
		return loadJSON(alias, data)
	default:
		return nil, errs.New(errs.InvalidFileFormat, "unrecognized file extension for %q", path)
	}
}

func loadCSV(name string, data []byte) (*table.Table, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, errs.Wrap(errs.New(errs.InvalidFileFormat, "parsing csv"), "%v", err)
	}
	if len(records) == 0 {
		return nil, errs.New(errs.InvalidFileFormat, "csv file has no header row")
	}
	header := records[0]
	rows := records[1:]
	cols := make([][]string, len(header))
	for _, rec := range rows {
		for i := range header {
			if i < len(rec) {
				cols[i] = append(cols[i], rec[i])
			} else {
				cols[i] = append(cols[i], "")
			}
		}
	}
	defs := make([]schema.ColumnDef, len(header))
	for i, h := range header {
		defs[i] = schema.ColumnDef{Name: h, Type: inferColumnType(cols[i])}
	}
	sch, err := schema.New(defs...)
	if err != nil {
		return nil, err
	}
	t := table.New(name, sch)
	for r := range rows {
		row := make([]value.Value, len(header))
		for c, def := range defs {
			row[c] = parseCell(def.Type, cols[c][r])
		}
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func loadJSON(name string, data []byte) (*table.Table, error) {
	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errs.Wrap(errs.New(errs.InvalidFileFormat, "parsing json"), "%v", err)
	}
	if len(records) == 0 {
		return nil, errs.New(errs.InvalidFileFormat, "json file has no records")
	}
	var keys []string
	for k := range records[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([][]string, len(keys))
	for _, rec := range records {
		for i, k := range keys {
			cols[i] = append(cols[i], toCell(rec[k]))
		}
	}
	defs := make([]schema.ColumnDef, len(keys))
	for i, k := range keys {
		defs[i] = schema.ColumnDef{Name: k, Type: inferColumnType(cols[i])}
	}
	sch, err := schema.New(defs...)
	if err != nil {
		return nil, err
	}
	t := table.New(name, sch)
	for r := range records {
		row := make([]value.Value, len(keys))
		for c, def := range defs {
			row[c] = parseCell(def.Type, cols[c][r])
		}
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func toCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func inferColumnType(vals []string) schema.DataType {
	allInt, allFloat, allBool := true, true, true
	for _, s := range vals {
		if s == "" {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			allFloat = false
		}
		if _, err := strconv.ParseBool(s); err != nil {
			allBool = false
		}
	}
	switch {
	case allInt:
		return schema.TypeInt64
	case allFloat:
		return schema.TypeFloat64
	case allBool:
		return schema.TypeBoolean
	default:
		return schema.TypeString
	}
}

func parseCell(dt schema.DataType, s string) value.Value {
	switch dt {
	case schema.TypeInt64:
		i, _ := strconv.ParseInt(s, 10, 64)
		return value.NewInt64(i)
	case schema.TypeFloat64:
		f, _ := strconv.ParseFloat(s, 64)
		return value.NewFloat64(f)
	case schema.TypeBoolean:
		b, _ := strconv.ParseBool(s)
		return value.NewBool(b)
	default:
		return value.NewString(s)
	}
}
