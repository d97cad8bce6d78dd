// Package remediate implements the single-shot structural-repair hook of
// spec.md §4.3: a narrow, optional attempt to fix a message that failed
// validation, re-validated exactly once by the engine.
package remediate

// file: internal/remediate/remediate.go

import (
	"github.com/kimosabey/dataquarantine/internal/validator"
)

// Remediator attempts to repair payload given the error that was raised
// against it. Returning ok=false means no repair was attempted or
// possible; the engine then leaves the original invalid verdict standing.
// This is the only path in the pipeline that can produce a remediated
// outcome, and the engine calls it at most once per message.
type Remediator interface {
	TryRepair(payload map[string]interface{}, failure *validator.ValidationError) (repaired map[string]interface{}, ok bool)
}

// NoopRemediator never repairs anything. It is the default, matching
// spec.md §4.3's "disabled by default".
type NoopRemediator struct{}

// TryRepair implements Remediator.
func (NoopRemediator) TryRepair(map[string]interface{}, *validator.ValidationError) (map[string]interface{}, bool) {
	return nil, false
}
