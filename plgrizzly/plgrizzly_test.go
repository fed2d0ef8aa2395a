package plgrizzly

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/grizzly/parser"
	"github.com/zhukovaskychina/grizzly/schema"
	"github.com/zhukovaskychina/grizzly/value"
)

func TestExpandSyncFunction(t *testing.T) {
	r := NewRegistry()
	r.RegisterUser(&parser.CreateFunctionStmt{
		Name:       "double_of",
		Params:     []schema.ColumnDef{{Name: "x"}},
		ReturnType: schema.TypeInt64,
		Mode:       "SYNC",
		Body:       "${x} * 2",
	})

	got := r.Expand("SELECT double_of(age) FROM users WHERE id = 1")
	require.Equal(t, "SELECT age * 2 FROM users WHERE id = 1", got)
}

func TestExpandNestedArgs(t *testing.T) {
	r := NewRegistry()
	r.RegisterUser(&parser.CreateFunctionStmt{
		Name:   "wrap",
		Params: []schema.ColumnDef{{Name: "inner"}},
		Mode:   "SYNC",
		Body:   "(${inner})",
	})
	got := r.Expand("SELECT wrap(a + b) FROM t")
	require.Equal(t, "SELECT (a + b) FROM t", got)
}

func TestCallAsyncFunction(t *testing.T) {
	r := NewRegistry()
	r.RegisterUser(&parser.CreateFunctionStmt{
		Name:       "add_tax",
		Params:     []schema.ColumnDef{{Name: "price"}, {Name: "rate"}},
		ReturnType: schema.TypeFloat64,
		Mode:       "ASYNC",
		Body:       "price * rate",
	})

	got, err := r.CallAsync("add_tax", []value.Value{value.NewFloat64(100), value.NewFloat64(1.1)})
	require.NoError(t, err)
	require.InDelta(t, 110.0, got.Float(), 0.0001)
}

func TestCallAsyncRejectsSyncFunction(t *testing.T) {
	r := NewRegistry()
	r.RegisterUser(&parser.CreateFunctionStmt{Name: "f", Mode: "SYNC", Body: "1"})
	_, err := r.CallAsync("f", nil)
	require.Error(t, err)
}

func TestBuiltinFunctions(t *testing.T) {
	r := NewRegistry()

	got, err := r.CallBuiltin("UPPER", []value.Value{value.NewString("abc")})
	require.NoError(t, err)
	require.Equal(t, "ABC", got.String())

	got, err = r.CallBuiltin("CAST_INT64", []value.Value{value.NewString("42")})
	require.NoError(t, err)
	require.Equal(t, int64(42), got.Int())

	_, err = r.CallBuiltin("NOT_A_FUNCTION", nil)
	require.Error(t, err)
}
