package premium

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrValidation marks errors the caller can fix by correcting input
	ErrValidation = errors.New("validation failed")

	// ErrInternal marks contract violations between pipeline stages
	ErrInternal = errors.New("internal pipeline error")
)

// ValidationError is implemented by every input rejection. Field and Reason
// are safe to show to clients.
type ValidationError interface {
	error
	FieldName() string
	Reason() string
	Constraint() string
	Received() any
}

// RangeError reports a numeric value outside the declared domain
type RangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("field %q: value %v outside allowed range %s", e.Field, e.Value, e.Constraint())
}

func (e *RangeError) FieldName() string { return e.Field }
func (e *RangeError) Reason() string    { return "out_of_range" }
func (e *RangeError) Received() any     { return e.Value }
func (e *RangeError) Is(target error) bool {
	return target == ErrValidation
}

func (e *RangeError) Constraint() string {
	if math.IsInf(e.Max, 1) {
		return fmt.Sprintf("[%v, +inf)", e.Min)
	}
	return fmt.Sprintf("[%v, %v]", e.Min, e.Max)
}

// UnknownCategoryError reports a categorical value not in the closed set
type UnknownCategoryError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("field %q: unknown category %q (allowed: %s)", e.Field, e.Value, e.Constraint())
}

func (e *UnknownCategoryError) FieldName() string  { return e.Field }
func (e *UnknownCategoryError) Reason() string     { return "unknown_category" }
func (e *UnknownCategoryError) Received() any      { return e.Value }
func (e *UnknownCategoryError) Constraint() string { return strings.Join(e.Allowed, ", ") }
func (e *UnknownCategoryError) Is(target error) bool {
	return target == ErrValidation
}

// MissingFieldError reports an absent or null field
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("field %q is required", e.Field)
}

func (e *MissingFieldError) FieldName() string  { return e.Field }
func (e *MissingFieldError) Reason() string     { return "missing" }
func (e *MissingFieldError) Received() any      { return nil }
func (e *MissingFieldError) Constraint() string { return "required" }
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidTypeError reports a value of the wrong kind for its field
type InvalidTypeError struct {
	Field    string
	Value    any
	Expected string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("field %q: expected %s, got %v (%T)", e.Field, e.Expected, e.Value, e.Value)
}

func (e *InvalidTypeError) FieldName() string  { return e.Field }
func (e *InvalidTypeError) Reason() string     { return "invalid_type" }
func (e *InvalidTypeError) Received() any      { return e.Value }
func (e *InvalidTypeError) Constraint() string { return e.Expected }
func (e *InvalidTypeError) Is(target error) bool {
	return target == ErrValidation
}

// UnknownFieldError reports an undeclared field when strict mode is on
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("field %q is not part of the schema", e.Field)
}

func (e *UnknownFieldError) FieldName() string  { return e.Field }
func (e *UnknownFieldError) Reason() string     { return "unknown_field" }
func (e *UnknownFieldError) Received() any      { return nil }
func (e *UnknownFieldError) Constraint() string { return "not allowed" }
func (e *UnknownFieldError) Is(target error) bool {
	return target == ErrValidation
}

// Violations collects every validation failure of a record
type Violations []ValidationError

func (v Violations) Error() string {
	if len(v) == 0 {
		return ErrValidation.Error()
	}
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (v Violations) Is(target error) bool {
	return target == ErrValidation
}

// Unwrap exposes the individual violations to errors.As
func (v Violations) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// DimensionMismatchError means the encoder and the artifact disagree on the
// vector length. It is a defect, never a client error.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("feature vector has %d values, artifact expects %d", e.Got, e.Expected)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrInternal
}

// NoSegmentError means no artifact segment matched a validated record
type NoSegmentError struct {
	Artifact string
}

func (e *NoSegmentError) Error() string {
	return fmt.Sprintf("no segment of artifact %q matched the record", e.Artifact)
}

func (e *NoSegmentError) Is(target error) bool {
	return target == ErrInternal
}

// ArtifactUnavailableError means the scoring artifact could not be loaded
// or compiled. The process must not serve when this happens at startup.
type ArtifactUnavailableError struct {
	Source string
	Err    error
}

func (e *ArtifactUnavailableError) Error() string {
	return fmt.Sprintf("scoring artifact %s unavailable: %v", e.Source, e.Err)
}

func (e *ArtifactUnavailableError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was caused by bad input
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
