package plgrizzly

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/zhukovaskychina/grizzly/errs"
	"github.com/zhukovaskychina/grizzly/value"
)

// registerCastBuiltins populates the CAST_* family, one function per
// target type, reusing github.com/spf13/cast for the actual
// string<->number coercion -- the same library value.go already leans on
// for cross-type comparison.
func registerCastBuiltins(t map[string]BuiltinFunc) {
	t["CAST_STRING"] = func(args []value.Value) (value.Value, error) {
		if err := arity("CAST_STRING", args, 1); err != nil {
			return value.Value{}, err
		}
		return value.NewString(args[0].String()), nil
	}
	t["CAST_INT64"] = func(args []value.Value) (value.Value, error) {
		if err := arity("CAST_INT64", args, 1); err != nil {
			return value.Value{}, err
		}
		i, err := cast.ToInt64E(argScalar(args[0]))
		if err != nil {
			return value.Value{}, errs.Wrap(err, "CAST_INT64(%v)", args[0])
		}
		return value.NewInt64(i), nil
	}
	t["CAST_FLOAT64"] = func(args []value.Value) (value.Value, error) {
		if err := arity("CAST_FLOAT64", args, 1); err != nil {
			return value.Value{}, err
		}
		f, err := cast.ToFloat64E(argScalar(args[0]))
		if err != nil {
			return value.Value{}, errs.Wrap(err, "CAST_FLOAT64(%v)", args[0])
		}
		return value.NewFloat64(f), nil
	}
	t["CAST_BOOL"] = func(args []value.Value) (value.Value, error) {
		if err := arity("CAST_BOOL", args, 1); err != nil {
			return value.Value{}, err
		}
		b, err := cast.ToBoolE(argScalar(args[0]))
		if err != nil {
			return value.Value{}, errs.Wrap(err, "CAST_BOOL(%v)", args[0])
		}
		return value.NewBool(b), nil
	}
}

// argScalar hands cast.ToXxxE() the Go value it actually knows how to
// coerce, since Value's fields are unexported.
func argScalar(v value.Value) interface{} {
	switch v.Kind() {
	case value.Int32, value.Int64, value.Timestamp:
		return v.Int()
	case value.Float32, value.Float64:
		return v.Float()
	case value.Bool:
		return v.Bool()
	default:
		return v.String()
	}
}

// registerMiscBuiltins populates a small set of simple, context-free
// scalar helpers PL-Grizzly bodies and templated SQL can call.
func registerMiscBuiltins(t map[string]BuiltinFunc) {
	t["UPPER"] = func(args []value.Value) (value.Value, error) {
		if err := arity("UPPER", args, 1); err != nil {
			return value.Value{}, err
		}
		return value.NewString(strings.ToUpper(args[0].String())), nil
	}
	t["LOWER"] = func(args []value.Value) (value.Value, error) {
		if err := arity("LOWER", args, 1); err != nil {
			return value.Value{}, err
		}
		return value.NewString(strings.ToLower(args[0].String())), nil
	}
	t["LENGTH"] = func(args []value.Value) (value.Value, error) {
		if err := arity("LENGTH", args, 1); err != nil {
			return value.Value{}, err
		}
		return value.NewInt64(int64(len(args[0].String()))), nil
	}
	t["CONCAT"] = func(args []value.Value) (value.Value, error) {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(a.String())
		}
		return value.NewString(sb.String()), nil
	}
	// ANY_VALUE returns its first argument unchanged: a pass-through
	// helper PL-Grizzly bodies can use to pick one of several candidate
	// columns.
	t["ANY_VALUE"] = func(args []value.Value) (value.Value, error) {
		if err := arity("ANY_VALUE", args, 1); err != nil {
			return value.Value{}, err
		}
		return args[0], nil
	}
}

func arity(name string, args []value.Value, want int) error {
	if len(args) != want {
		return errs.New(errs.InvalidExpression, "%s expects %d argument(s), got %d", name, want, len(args))
	}
	return nil
}
