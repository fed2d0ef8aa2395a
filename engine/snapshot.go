package engine

import (
	"bytes"
	"encoding/gob"

	"github.com/juju/errors"

	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/table"
	"github.com/zhukovaskychina/grizzly/value"
)

// wireValue is Value's gob-safe mirror: value.Value's fields are
// unexported, so the save/load artifact boundary round-trips through this
// plain struct built from Value's public accessors instead of reflecting
// into it.
type wireValue struct {
	Kind value.Kind
	I    int64
	F    float64
	S    string
	Vec  []float32
}

func toWire(v value.Value) wireValue {
	w := wireValue{Kind: v.Kind()}
	switch v.Kind() {
	case value.Int32, value.Int64, value.Timestamp:
		w.I = v.Int()
	case value.Bool:
		if v.Bool() {
			w.I = 1
		}
	case value.Float32, value.Float64:
		w.F = v.Float()
	case value.String, value.Custom, value.Exception:
		w.S = v.String()
	case value.Vector:
		w.Vec = v.Vector()
	}
	return w
}

func fromWire(w wireValue) value.Value {
	switch w.Kind {
	case value.Int32:
		return value.NewInt32(int32(w.I))
	case value.Int64:
		return value.NewInt64(w.I)
	case value.Float32:
		return value.NewFloat32(float32(w.F))
	case value.Float64:
		return value.NewFloat64(w.F)
	case value.Bool:
		return value.NewBool(w.I != 0)
	case value.String:
		return value.NewString(w.S)
	case value.Timestamp:
		return value.NewTimestamp(w.I)
	case value.Vector:
		return value.NewVector(w.Vec)
	case value.Custom:
		return value.NewCustom(w.S)
	case value.Exception:
		return value.NewException(w.S)
	}
	return value.Value{}
}

type wireTable struct {
	Name    string
	Columns []schema.ColumnDef
	Rows    [][]wireValue
}

type wireDatabase struct {
	Tables []wireTable
}

// snapshot renders every live table into a gob-encoded wireDatabase --
// the payload artifact.SaveToFile then frames and compresses. What goes
// inside this payload is deliberately simple and private to engine/; the
// container framing and codec choice live in artifact/.
func (db *Database) snapshot() ([]byte, error) {
	db.mu.RLock()
	wd := wireDatabase{Tables: make([]wireTable, 0, len(db.tables))}
	for name, t := range db.tables {
		wt := wireTable{Name: name, Columns: append([]schema.ColumnDef(nil), t.Schema.Columns...)}
		for i := 0; i < t.RowCount(); i++ {
			row := t.Row(i)
			wireRow := make([]wireValue, len(row))
			for j, v := range row {
				wireRow[j] = toWire(v)
			}
			wt.Rows = append(wt.Rows, wireRow)
		}
		wd.Tables = append(wd.Tables, wt)
	}
	db.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wd); err != nil {
		return nil, errors.Annotate(err, "encode database snapshot")
	}
	return buf.Bytes(), nil
}

// restore decodes payload and installs each table, replacing any table of
// the same name already registered.
func (db *Database) restore(payload []byte) error {
	var wd wireDatabase
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&wd); err != nil {
		return errors.Annotate(err, "decode database snapshot")
	}
	for _, wt := range wd.Tables {
		sch, err := schema.New(wt.Columns...)
		if err != nil {
			return err
		}
		t := table.New(wt.Name, sch)
		for _, wireRow := range wt.Rows {
			row := make([]value.Value, len(wireRow))
			for i, wv := range wireRow {
				row[i] = fromWire(wv)
			}
			if err := t.AppendRow(row); err != nil {
				return err
			}
		}
		db.RegisterTable(t)
	}
	return nil
}
