package dqerror

// file: internal/dqerror/error.go

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// KindError is a structured error carrying one of the closed Kind values,
// a category for labeling, and free-form context. It plays the same role
// the teacher's schema.ValidationError plays for MCP schema errors, widened
// to the gateway's full error taxonomy.
type KindError struct {
	Kind     Kind
	Category Category
	Message  string
	Cause    error
	Context  map[string]interface{}
}

// Error implements the standard error interface.
func (e *KindError) Error() string {
	base := fmt.Sprintf("%s[%s]: %s", e.Category, e.Kind, e.Message)
	if e.Cause != nil {
		base += fmt.Sprintf(": %+v", e.Cause)
	}
	return base
}

// Unwrap allows errors.Is/As to see through to the cause.
func (e *KindError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair and returns the receiver for chaining.
func (e *KindError) WithContext(key string, value interface{}) *KindError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewKindError creates a KindError, wrapping cause (if any) with a stack
// trace via cockroachdb/errors so the original failure site is preserved.
func NewKindError(category Category, kind Kind, message string, cause error) *KindError {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &KindError{
		Kind:     kind,
		Category: category,
		Message:  message,
		Cause:    wrapped,
		Context: map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *KindError, returning ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return "", false
}
