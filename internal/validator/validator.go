// Package validator implements the pluggable validation capability
// (spec.md §4.2): a Validator checks one payload against one schema
// document and reports either a pass or a structured ValidationError, and
// a Chain composes validators with short-circuit semantics.
package validator

// file: internal/validator/validator.go

import (
	"context"

	"github.com/kimosabey/dataquarantine/internal/dqerror"
	"github.com/kimosabey/dataquarantine/internal/schema"
)

// ValidationError is spec.md §3's error record: a classified defect at a
// specific location in the payload.
type ValidationError struct {
	Kind      dqerror.Kind
	Message   string
	FieldPath string
	Expected  string
	Actual    string
}

// Validator is the capability spec.md §3/§9 describes: a stable name and
// one operation, check a payload against a schema. A non-nil
// *ValidationError return is the message-level verdict "invalid"; a
// non-nil error return is a validator-internal fault (e.g. the schema
// document itself does not compile), which the engine reports as
// invalid_schema rather than a message defect.
type Validator interface {
	Name() string
	Validate(ctx context.Context, doc schema.Document, instance map[string]interface{}) (*ValidationError, error)
}
