// Package value implements Grizzly's tagged Value domain: the runtime
// counterpart of schema.DataType, with total ordering within a type,
// structural equality, cloning, and hashing for hash-join bucket keys.
package value

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/spf13/cast"
)

// Kind is the static tag of a Value, mirroring schema.DataType's variants.
type Kind int

const (
	Int32 Kind = iota
	Int64
	Float32
	Float64
	Bool
	String
	Timestamp
	Vector
	Custom
	Exception
)

func (k Kind) String() string {
	switch k {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Bool:
		return "boolean"
	case String:
		return "string"
	case Timestamp:
		return "timestamp"
	case Vector:
		return "vector"
	case Custom:
		return "custom"
	case Exception:
		return "exception"
	default:
		return "unknown"
	}
}

// Value is Grizzly's tagged sum type. The zero Value of each Kind is the
// type-zero sentinel used to pad unmatched outer-join rows.
type Value struct {
	kind Kind

	i   int64   // Int32/Int64/Timestamp (unix nanos)/Bool(0/1)
	f   float64 // Float32/Float64
	s   string  // String/Custom/Exception message
	vec []float32
}

// Constructors, one per variant.

func NewInt32(v int32) Value   { return Value{kind: Int32, i: int64(v)} }
func NewInt64(v int64) Value   { return Value{kind: Int64, i: v} }
func NewFloat32(v float32) Value { return Value{kind: Float32, f: float64(v)} }
func NewFloat64(v float64) Value { return Value{kind: Float64, f: v} }
func NewBool(v bool) Value {
	if v {
		return Value{kind: Bool, i: 1}
	}
	return Value{kind: Bool, i: 0}
}
func NewString(v string) Value    { return Value{kind: String, s: v} }
func NewTimestamp(unixNanos int64) Value { return Value{kind: Timestamp, i: unixNanos} }
func NewVector(v []float32) Value {
	cp := make([]float32, len(v))
	copy(cp, v)
	return Value{kind: Vector, vec: cp}
}
func NewCustom(name string) Value    { return Value{kind: Custom, s: name} }
func NewException(msg string) Value  { return Value{kind: Exception, s: msg} }

// Zero returns the type-zero sentinel for kind, used to pad outer-join rows
// that have no match on one side.
func Zero(kind Kind) Value {
	switch kind {
	case Int32:
		return NewInt32(0)
	case Int64:
		return NewInt64(0)
	case Float32:
		return NewFloat32(0)
	case Float64:
		return NewFloat64(0)
	case Bool:
		return NewBool(false)
	case String:
		return NewString("")
	case Timestamp:
		return NewTimestamp(0)
	case Vector:
		return NewVector(nil)
	case Custom:
		return NewCustom("")
	case Exception:
		return NewException("")
	default:
		return NewInt64(0)
	}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNumeric() bool {
	switch v.kind {
	case Int32, Int64, Float32, Float64:
		return true
	}
	return false
}

// Clone duplicates v's vector payload (string payloads are immutable and
// shared) so the clone remains valid
// after the source table (and its backing slices) is released; rows
// materialized during aggregation and joins rely on this.
func (v Value) Clone() Value {
	out := v
	if v.kind == Vector {
		out.vec = make([]float32, len(v.vec))
		copy(out.vec, v.vec)
	}
	return out
}

func (v Value) Int() int64 {
	switch v.kind {
	case Int32, Int64, Timestamp:
		return v.i
	case Bool:
		return v.i
	case Float32, Float64:
		return int64(v.f)
	default:
		return cast.ToInt64(v.s)
	}
}

func (v Value) Float() float64 {
	switch v.kind {
	case Float32, Float64:
		return v.f
	case Int32, Int64, Timestamp:
		return float64(v.i)
	case Bool:
		return float64(v.i)
	default:
		return cast.ToFloat64(v.s)
	}
}

func (v Value) Bool() bool {
	switch v.kind {
	case Bool:
		return v.i != 0
	case Int32, Int64:
		return v.i != 0
	case Float32, Float64:
		return v.f != 0
	default:
		return v.s != ""
	}
}

func (v Value) String() string {
	switch v.kind {
	case String, Custom, Exception:
		return v.s
	case Int32, Int64:
		return fmt.Sprintf("%d", v.i)
	case Timestamp:
		return fmt.Sprintf("%d", v.i)
	case Bool:
		return fmt.Sprintf("%v", v.i != 0)
	case Float32, Float64:
		return fmt.Sprintf("%g", v.f)
	case Vector:
		parts := make([]string, len(v.vec))
		for i, f := range v.vec {
			parts[i] = fmt.Sprintf("%g", f)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return ""
	}
}

func (v Value) Vector() []float32 { return v.vec }

// Equal is structural equality. Cross-type numeric comparisons coerce to
// float64; non-numeric cross-type comparisons are never equal.
func (v Value) Equal(other Value) bool {
	return v.Compare(other) == 0
}

// Compare gives total ordering within a type: lexicographic for strings,
// numeric for scalars, element-wise for vectors. Cross-type comparison
// between an integer and a floating tag coerces to float; any other
// cross-type comparison orders by Kind so a total order still exists
// (used only for map-key stability, never surfaced as a user-visible
// ordering guarantee).
func (v Value) Compare(other Value) int {
	if v.kind != other.kind {
		if v.IsNumeric() && other.IsNumeric() {
			return compareFloat(v.Float(), other.Float())
		}
		if v.kind < other.kind {
			return -1
		}
		return 1
	}
	switch v.kind {
	case Int32, Int64, Timestamp, Bool:
		if v.i < other.i {
			return -1
		} else if v.i > other.i {
			return 1
		}
		return 0
	case Float32, Float64:
		return compareFloat(v.f, other.f)
	case String, Custom, Exception:
		return strings.Compare(v.s, other.s)
	case Vector:
		n := len(v.vec)
		if len(other.vec) < n {
			n = len(other.vec)
		}
		for i := 0; i < n; i++ {
			if v.vec[i] < other.vec[i] {
				return -1
			} else if v.vec[i] > other.vec[i] {
				return 1
			}
		}
		return len(v.vec) - len(other.vec)
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// Hash feeds v's canonical byte form through xxhash, used for hash-join
// bucket keys and the column cardinality sketch. Two equal Values always
// hash equal.
func (v Value) Hash() uint64 {
	h := xxhash.New64()
	if v.IsNumeric() {
		// Numeric kinds compare equal across tags (Compare coerces to
		// float64), so all of them hash one float64 form under one tag.
		f := v.Float()
		if f == 0 {
			f = 0 // fold -0 into +0
		}
		var b [8]byte
		putUint64(&b, math.Float64bits(f))
		h.Write(b[:])
		h.Write([]byte{byte(Float64)})
		return h.Sum64()
	}
	switch v.kind {
	case Timestamp, Bool:
		var b [8]byte
		putUint64(&b, uint64(v.i))
		h.Write(b[:])
	case String, Custom, Exception:
		h.Write([]byte(v.s))
	case Vector:
		for _, f := range v.vec {
			var b [4]byte
			putUint32(&b, math.Float32bits(f))
			h.Write(b[:])
		}
	}
	h.Write([]byte{byte(v.kind)})
	return h.Sum64()
}

func putUint64(b *[8]byte, x uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(x >> (8 * uint(i)))
	}
}

func putUint32(b *[4]byte, x uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(x >> (8 * uint(i)))
	}
}

// FormatGroupKey builds the GROUP BY bucket key: a formatted string over
// the group Values, stable across types (the kind tag keeps int 1 and
// string "1" apart).
func FormatGroupKey(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d:%s", v.kind, v.String())
	}
	return strings.Join(parts, "\x1f")
}

// SortValues stable-sorts a slice of Values ascending using Compare.
func SortValues(vals []Value) {
	sort.SliceStable(vals, func(i, j int) bool {
		return vals[i].Compare(vals[j]) < 0
	})
}
