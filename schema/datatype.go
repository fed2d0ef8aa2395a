// Package schema implements Schema, Column definitions, and the
// cardinality estimator the optimizer reads from.
package schema

import "github.com/zhukovaskychina/grizzly/value"

// DataType is the static counterpart of value.Value, used in schemas and
// cast rules.
type DataType int

const (
	TypeInt32 DataType = iota
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeBoolean
	TypeString
	TypeTimestamp
	TypeVector
	TypeCustom
	TypeException
)

func (d DataType) String() string {
	return value.Kind(d).String()
}

// FromValueKind maps a runtime value.Kind back to its static DataType.
func FromValueKind(k value.Kind) DataType { return DataType(k) }

// ToValueKind maps a DataType to the value.Kind Values of that type carry.
func (d DataType) ToValueKind() value.Kind { return value.Kind(d) }
