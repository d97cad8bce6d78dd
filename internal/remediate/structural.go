package remediate

// file: internal/remediate/structural.go

import (
	"strconv"

	"github.com/kimosabey/dataquarantine/internal/dqerror"
	"github.com/kimosabey/dataquarantine/internal/schema"
	"github.com/kimosabey/dataquarantine/internal/validator"
)

// StructuralRemediator attempts the two narrow repairs the original
// source's disabled remediation block gestures at: filling in a schema
// default for a missing field, and coercing a numeric-looking string into
// a number when the schema demanded "type": "number". Anything else is
// left alone — this is deliberately not a general-purpose coercer.
type StructuralRemediator struct {
	doc schema.Document
}

// NewStructuralRemediator builds a remediator scoped to a single schema
// document; the engine constructs one per validation call since schema
// identity varies per message.
func NewStructuralRemediator(doc schema.Document) *StructuralRemediator {
	return &StructuralRemediator{doc: doc}
}

// TryRepair implements Remediator.
func (r *StructuralRemediator) TryRepair(payload map[string]interface{}, failure *validator.ValidationError) (map[string]interface{}, bool) {
	if failure == nil {
		return nil, false
	}

	switch failure.Kind {
	case dqerror.KindMissingField:
		return r.fillDefault(payload, failure.FieldPath)
	case dqerror.KindBadType:
		return r.coerceNumericString(payload, failure.FieldPath)
	default:
		return nil, false
	}
}

func (r *StructuralRemediator) fillDefault(payload map[string]interface{}, fieldPath string) (map[string]interface{}, bool) {
	props, ok := r.doc["properties"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	fieldSchema, ok := props[fieldPath].(map[string]interface{})
	if !ok {
		return nil, false
	}
	def, ok := fieldSchema["default"]
	if !ok {
		return nil, false
	}

	repaired := copyPayload(payload)
	repaired[fieldPath] = def
	return repaired, true
}

func (r *StructuralRemediator) coerceNumericString(payload map[string]interface{}, fieldPath string) (map[string]interface{}, bool) {
	current, ok := payload[fieldPath]
	if !ok {
		return nil, false
	}
	s, ok := current.(string)
	if !ok {
		return nil, false
	}
	asFloat, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}

	props, ok := r.doc["properties"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	fieldSchema, ok := props[fieldPath].(map[string]interface{})
	if !ok || fieldSchema["type"] != "number" {
		return nil, false
	}

	repaired := copyPayload(payload)
	repaired[fieldPath] = asFloat
	return repaired, true
}

func copyPayload(payload map[string]interface{}) map[string]interface{} {
	repaired := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		repaired[k] = v
	}
	return repaired
}
