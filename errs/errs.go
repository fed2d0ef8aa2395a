// Package errs defines the typed error kinds used across Grizzly's layers
// and the juju/errors-based wrapping convention callers use to propagate
// them with trace context.
package errs

import (
	"fmt"

	"github.com/juju/errors"
)

// Kind identifies which typed error enumeration value a Grizzly error
// carries, grouped by the layer that raises it.
type Kind string

const (
	// Parse layer.
	UnexpectedToken      Kind = "UnexpectedToken"
	UnexpectedEndOfQuery Kind = "UnexpectedEndOfQuery"
	ExpectedIdentifier   Kind = "ExpectedIdentifier"
	InvalidNumber        Kind = "InvalidNumber"
	UnterminatedString   Kind = "UnterminatedString"

	// Schema layer.
	TableNotFound        Kind = "TableNotFound"
	TableAlreadyExists   Kind = "TableAlreadyExists"
	ColumnNotFound       Kind = "ColumnNotFound"
	TypeMismatch         Kind = "TypeMismatch"
	ColumnCountMismatch  Kind = "ColumnCountMismatch"

	// Index layer.
	IndexNotFound       Kind = "IndexNotFound"
	IndexColumnMissing  Kind = "IndexColumnMissing"
	IndexKeyMissing     Kind = "IndexKeyMissing"
	IndexValuesMissing  Kind = "IndexValuesMissing"

	// Execution layer.
	InvalidExpression             Kind = "InvalidExpression"
	DivisionByZero                Kind = "DivisionByZero"
	InvalidOperandTypes            Kind = "InvalidOperandTypes"
	NoPatternMatched               Kind = "NoPatternMatched"
	VectorSearchRequiresTableContext Kind = "VectorSearchRequiresTableContext"

	// Model layer.
	ModelNotFound            Kind = "ModelNotFound"
	ModelAlreadyExists       Kind = "ModelAlreadyExists"
	CircularCTEReference     Kind = "CircularCTEReference"
	CircularModelDependency  Kind = "CircularModelDependency"

	// I/O layer.
	FileAlreadyExists  Kind = "FileAlreadyExists"
	FailedToLoadFile   Kind = "FailedToLoadFile"
	InvalidFileFormat  Kind = "InvalidFileFormat"
	Timeout            Kind = "Timeout"

	// Scheduler layer.
	InvalidCronExpression Kind = "InvalidCronExpression"
	MaxRetriesExceeded    Kind = "MaxRetriesExceeded"
)

// Error is the typed error value every Grizzly layer returns instead of a
// bare string error, so callers can switch on Kind rather than parse text.
type Error struct {
	Kind    Kind
	Message string
	Pos     int // token/byte position, -1 when not applicable
	cause   error
}

func (e *Error) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at position %d: %s", e.Kind, e.Pos, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a typed Error with no byte position and wraps it with
// juju/errors so callers further up the stack retain a trace.
func New(kind Kind, format string, args ...interface{}) error {
	return errors.Trace(&Error{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: -1})
}

// NewAt is New with an explicit token/byte position, for parse errors.
func NewAt(kind Kind, pos int, format string, args ...interface{}) error {
	return errors.Trace(&Error{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos})
}

// Wrap annotates an existing error without losing its Kind, if any.
func Wrap(err error, format string, args ...interface{}) error {
	return errors.Annotatef(err, format, args...)
}

// KindOf extracts the Kind of err, walking Unwrap/Cause chains. Returns ""
// if err does not carry a Grizzly Kind.
func KindOf(err error) Kind {
	for err != nil {
		if ge, ok := err.(*Error); ok {
			return ge.Kind
		}
		cause := errors.Cause(err)
		if cause == err {
			type unwrapper interface{ Unwrap() error }
			if u, ok := err.(unwrapper); ok {
				err = u.Unwrap()
				continue
			}
			return ""
		}
		err = cause
	}
	return ""
}

// Is reports whether err (or something it wraps) carries kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
