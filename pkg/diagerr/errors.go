// Package diagerr defines the classified errors returned by the chemistry
// registry and the diagnostic engine.
//
// Every error carries a Kind plus the offending field, the measured value and
// the violated bound, so that callers can tell a client exactly what to fix.
// Kinds compare with errors.Is:
//
//	if errors.Is(err, diagerr.InvalidVoltage) { ... }
package diagerr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind string

const (
	UnknownChemistry      Kind = "UnknownChemistry"
	UnknownVoltageClass   Kind = "UnknownVoltageClass"
	InvalidVoltage        Kind = "InvalidVoltage"
	TemperatureOutOfRange Kind = "TemperatureOutOfRange"
	InvalidCapacity       Kind = "InvalidCapacity"
	InvalidCycleCount     Kind = "InvalidCycleCount"
	InvalidCurrent        Kind = "InvalidCurrent"
	InvalidCellVoltages   Kind = "InvalidCellVoltages"
	InvalidPressure       Kind = "InvalidPressure"
	InvalidPercentage     Kind = "InvalidPercentage"
	InvalidDuration       Kind = "InvalidDuration"
	InvalidLoadProfile    Kind = "InvalidLoadProfile"
)

// Error implements the error interface so a bare Kind can be used as a
// target for errors.Is.
func (k Kind) Error() string {
	return string(k)
}

// Error is a classified domain error.
type Error struct {
	Kind  Kind
	Field string
	// Actual is the measured value, if any.
	Actual any
	// Bound is the violated limit, if any. It may be a list of valid values.
	Bound any
	Msg   string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is reports whether target is this error's Kind, or an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind with a formatted message.
func New(kind Kind, field string, actual, bound any, format string, a ...any) *Error {
	return &Error{
		Kind:   kind,
		Field:  field,
		Actual: actual,
		Bound:  bound,
		Msg:    fmt.Sprintf(format, a...),
	}
}

// KindOf returns the Kind of err, or "" if err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsDomain reports whether err is (or wraps) a domain error.
func IsDomain(err error) bool {
	return KindOf(err) != ""
}

// As unwraps err into a domain error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
