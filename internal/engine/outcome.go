// Package engine implements the Validation Engine (spec.md §4.4): the
// orchestration of schema resolution, the validator chain, the optional
// remediation retry, and metrics/duration recording into a single
// ValidationOutcome.
package engine

// file: internal/engine/outcome.go

import "github.com/kimosabey/dataquarantine/internal/dqerror"

// Result is spec.md §3's three-way classification of a ValidationOutcome.
type Result string

const (
	ResultValid   Result = "VALID"
	ResultInvalid Result = "INVALID"
	ResultError   Result = "ERROR"
)

// ValidationOutcome is spec.md §3's outcome record. Engine.Validate always
// returns one; it never raises for a message-level or engine-level
// failure. Payload carries the document the caller should route: the
// input payload unchanged, except when Remediated is true, in which case
// it is the repaired document that passed re-validation.
type ValidationOutcome struct {
	Result       Result
	ErrorKind    dqerror.Kind
	ErrorMessage string
	FieldPath    string
	Remediated   bool
	Payload      map[string]interface{}
	Metadata     map[string]interface{}
}
