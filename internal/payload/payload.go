// Package payload implements the dynamic, JSON-shaped value model shared
// by the registry, validators, and sinks: a decoded event's payload is a
// nested mapping of string keys to values drawn from the six JSON kinds
// (null, boolean, number, string, array, mapping), constructed once by the
// stream decoder and consumed uniformly everywhere downstream.
package payload

// file: internal/payload/payload.go

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Payload is the decoded, in-memory representation of a message's JSON
// body. Go's encoding/json already produces exactly the tagged variant
// spec.md's Design Notes call for (nil, bool, float64, string, []any,
// map[string]any) when unmarshaled into interface{}; Payload names that
// shape so the rest of the pipeline has one vocabulary for it.
type Payload = map[string]interface{}

// Decode parses raw JSON bytes into a Payload. Decode never panics; a
// malformed document is reported as an error for the caller to classify
// as a malformed_json outcome (spec.md §4.5 step 1).
func Decode(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// RuntimeTypeName returns the JSON-kind name of v, matching the vocabulary
// JSON Schema itself uses for "type" (null, boolean, number, string,
// array, object). Used to populate ValidationError.Actual.
func RuntimeTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, int, int64, json.Number:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "unknown"
	}
}

// JoinFieldPath joins path segments with "." the way spec.md §3 describes
// ("user.addresses.0.zip"), returning the literal "root" for an empty path.
func JoinFieldPath(segments ...string) string {
	filtered := segments[:0:0]
	for _, s := range segments {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return "root"
	}
	return strings.Join(filtered, ".")
}

// FieldPathFromJSONPointer converts a JSON Pointer (as produced by
// santhosh-tekuri/jsonschema's InstanceLocation, e.g. "/user/addresses/0/zip")
// into the dotted field-path format spec.md §3 requires.
func FieldPathFromJSONPointer(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return "root"
	}
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		// JSON Pointer escapes; undo them for readability in the field path.
		p = strings.ReplaceAll(p, "~1", "/")
		p = strings.ReplaceAll(p, "~0", "~")
		parts[i] = p
	}
	return JoinFieldPath(parts...)
}

// IsArrayIndex reports whether s looks like a zero-based array index
// segment, useful for callers that want to distinguish object keys from
// array positions while walking a field path.
func IsArrayIndex(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}
