package value

import (
	"testing"
)

func TestCompareWithinType(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int lt", NewInt64(1), NewInt64(2), -1},
		{"int eq", NewInt64(3), NewInt64(3), 0},
		{"int gt", NewInt32(5), NewInt32(4), 1},
		{"float lt", NewFloat64(1.5), NewFloat64(2.5), -1},
		{"string lex", NewString("abc"), NewString("abd"), -1},
		{"string eq", NewString("x"), NewString("x"), 0},
		{"bool", NewBool(false), NewBool(true), -1},
		{"timestamp", NewTimestamp(10), NewTimestamp(20), -1},
		{"vector elementwise", NewVector([]float32{1, 2}), NewVector([]float32{1, 3}), -1},
		{"vector shorter first", NewVector([]float32{1}), NewVector([]float32{1, 0}), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Compare(tt.b)
			if sign(got) != tt.want {
				t.Errorf("Compare = %d, want sign %d", got, tt.want)
			}
			if sign(tt.b.Compare(tt.a)) != -tt.want {
				t.Errorf("Compare is not antisymmetric")
			}
		})
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func TestCrossTypeNumericCoercion(t *testing.T) {
	if !NewInt64(2).Equal(NewFloat64(2.0)) {
		t.Errorf("int64 2 should equal float64 2.0 after coercion")
	}
	if NewInt32(2).Compare(NewFloat32(2.5)) != -1 {
		t.Errorf("int32 2 should order before float32 2.5")
	}
	if NewInt64(1).Equal(NewString("1")) {
		t.Errorf("non-numeric cross-type values must never be equal")
	}
}

func TestCloneVectorIndependence(t *testing.T) {
	orig := NewVector([]float32{1, 2, 3})
	clone := orig.Clone()
	orig.Vector()[0] = 99
	if clone.Vector()[0] != 1 {
		t.Errorf("clone shares the source vector payload")
	}
}

func TestZeroSentinels(t *testing.T) {
	kinds := []Kind{Int32, Int64, Float32, Float64, Bool, String, Timestamp, Vector, Custom, Exception}
	for _, k := range kinds {
		z := Zero(k)
		if z.Kind() != k {
			t.Errorf("Zero(%v) has kind %v", k, z.Kind())
		}
	}
	if Zero(String).String() != "" {
		t.Errorf("type-zero string should be empty")
	}
	if Zero(Int32).Int() != 0 {
		t.Errorf("type-zero int32 should be 0")
	}
}

func TestHashEqualValuesHashEqual(t *testing.T) {
	pairs := [][2]Value{
		{NewInt64(42), NewInt64(42)},
		{NewString("grizzly"), NewString("grizzly")},
		{NewFloat64(3.14), NewFloat64(3.14)},
		{NewVector([]float32{1, 2}), NewVector([]float32{1, 2})},
	}
	for _, p := range pairs {
		if p[0].Hash() != p[1].Hash() {
			t.Errorf("equal values %v hash differently", p[0])
		}
	}
	if NewInt64(1).Hash() == NewInt64(2).Hash() {
		t.Errorf("distinct ints collided (possible but indicates a bug at this scale)")
	}
	// The kind byte keeps an int64 and a timestamp of the same payload apart.
	if NewInt64(7).Hash() == NewTimestamp(7).Hash() {
		t.Errorf("int64 and timestamp with the same payload should hash differently")
	}
}

func TestFormatGroupKeyStableAcrossTypes(t *testing.T) {
	a := FormatGroupKey([]Value{NewInt64(1), NewString("x")})
	b := FormatGroupKey([]Value{NewInt64(1), NewString("x")})
	if a != b {
		t.Errorf("identical group values produced different keys")
	}
	// "1" as string vs 1 as int must not collide.
	c := FormatGroupKey([]Value{NewString("1"), NewString("x")})
	if a == c {
		t.Errorf("int 1 and string \"1\" collided in the group key")
	}
}

func TestSortValues(t *testing.T) {
	vals := []Value{NewInt64(3), NewInt64(1), NewInt64(2)}
	SortValues(vals)
	for i := 1; i < len(vals); i++ {
		if vals[i-1].Compare(vals[i]) > 0 {
			t.Fatalf("values not sorted at %d: %v", i, vals)
		}
	}
}
