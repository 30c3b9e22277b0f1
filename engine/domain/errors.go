package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Messages double as the user-facing text.
var (
	ErrVINRequired    = errors.New("VIN is required")
	ErrVINInvalid     = errors.New("VIN must be 17 characters")
	ErrVINNotFound    = errors.New("VIN not found")
	ErrInvalidTruck   = errors.New("invalid truck")
	ErrTruckNotFound  = errors.New("truck not found")
	ErrDuplicatePlate = errors.New("license plate already registered")
)

// Stable machine-readable codes, one per sentinel.
const (
	CodeVINRequired    = "VIN_REQUIRED"
	CodeVINInvalid     = "VIN_INVALID"
	CodeVINNotFound    = "VIN_NOT_FOUND"
	CodeTruckInvalid   = "TRUCK_INVALID"
	CodeTruckNotFound  = "TRUCK_NOT_FOUND"
	CodeDuplicatePlate = "TRUCK_DUPLICATE_PLATE"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrVINRequired, CodeVINRequired},
	{ErrVINInvalid, CodeVINInvalid},
	{ErrVINNotFound, CodeVINNotFound},
	{ErrInvalidTruck, CodeTruckInvalid},
	{ErrTruckNotFound, CodeTruckNotFound},
	{ErrDuplicatePlate, CodeDuplicatePlate},
}

// ErrorCode returns the stable code for err, or "" if err does not wrap a
// known sentinel.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// Message is the user-facing text, without field/value decoration.
func (e *ValidationError) Message() string {
	if e.Wrapped == nil {
		return "validation failed"
	}
	return e.Wrapped.Error()
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
