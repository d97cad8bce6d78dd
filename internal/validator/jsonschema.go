package validator

// file: internal/validator/jsonschema.go

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kimosabey/dataquarantine/internal/dqerror"
	"github.com/kimosabey/dataquarantine/internal/payload"
	"github.com/kimosabey/dataquarantine/internal/schema"
)

// JSONSchemaValidator is the reference validator of spec.md §4.2: it
// compiles a Draft-7 schema from the document it is given and reports the
// first error the underlying compiled schema returns. Compiled schemas are
// cached per-instance, keyed by the document's "$id" or "name", falling
// back to the literal "default" — the cache is private to this instance
// and is not shared across JSONSchemaValidator values.
type JSONSchemaValidator struct {
	mu    sync.Mutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator constructs an empty, ready-to-use validator.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{cache: make(map[string]*jsonschema.Schema)}
}

// Name implements Validator.
func (v *JSONSchemaValidator) Name() string { return "json_schema" }

// Validate implements Validator.
func (v *JSONSchemaValidator) Validate(_ context.Context, doc schema.Document, instance map[string]interface{}) (*ValidationError, error) {
	compiled, err := v.compiled(doc)
	if err != nil {
		// A schema that fails to compile is an engine-level fault, not a
		// message defect: the caller (the engine) maps this to
		// invalid_schema, never to a message-level kind.
		return nil, err
	}

	if err := compiled.Validate(instance); err != nil {
		valErr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, err
		}
		return toValidationError(valErr, instance), nil
	}
	return nil, nil
}

func (v *JSONSchemaValidator) compiled(doc schema.Document) (*jsonschema.Schema, error) {
	key := cacheKeyFor(doc)

	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.cache[key]; ok {
		return s, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: document for key %q is not JSON-encodable: %w", key, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	resourceURL := "mem://" + key + ".json"
	if err := compiler.AddResource(resourceURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("jsonschema: adding resource %q: %w", resourceURL, err)
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: compiling %q: %w", resourceURL, err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

// cacheKeyFor returns the document's $id or name field if present,
// otherwise the literal "default", per spec.md §4.2.
func cacheKeyFor(doc schema.Document) string {
	if id, ok := doc["$id"].(string); ok && id != "" {
		return sanitizeKey(id)
	}
	if name, ok := doc["name"].(string); ok && name != "" {
		return sanitizeKey(name)
	}
	return "default"
}

func sanitizeKey(s string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_", " ", "_")
	return replacer.Replace(s)
}

// toValidationError maps a *jsonschema.ValidationError to spec.md §3's
// ValidationError shape. The library returns a tree of causes; the first
// leaf in that tree is what spec.md §4.2 calls "report only the first
// (iteration order of the underlying validator)".
func toValidationError(err *jsonschema.ValidationError, instance map[string]interface{}) *ValidationError {
	leaf := firstLeaf(err)

	kind, expected := classify(leaf)

	instanceLocation := leaf.InstanceLocation
	if kind == dqerror.KindMissingField {
		// santhosh-tekuri/jsonschema reports a "required" failure against
		// the *container's* pointer (the object missing the property), not
		// the property itself, so the container pointer needs the missing
		// property name appended before it becomes a field path.
		if missing, ok := firstMissingProperty(leaf.Message); ok {
			instanceLocation = instanceLocation + "/" + missing
		}
	}

	return &ValidationError{
		Kind:      kind,
		Message:   leaf.Message,
		FieldPath: payload.FieldPathFromJSONPointer(instanceLocation),
		Expected:  expected,
		Actual:    payload.RuntimeTypeName(valueAtPointer(instance, instanceLocation)),
	}
}

// firstMissingProperty extracts the first single-quoted property name out
// of a "required" keyword's message, e.g. "missing properties: 'event_type'"
// or "missing properties: 'a', 'b'" yields "event_type"/"a" respectively.
func firstMissingProperty(message string) (string, bool) {
	start := strings.IndexByte(message, '\'')
	if start == -1 {
		return "", false
	}
	end := strings.IndexByte(message[start+1:], '\'')
	if end == -1 {
		return "", false
	}
	name := message[start+1 : start+1+end]
	if name == "" {
		return "", false
	}
	return name, true
}

func firstLeaf(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

// classify derives spec.md §7's closed error kind from the failing
// keyword location, mirroring how the teacher's schema/errors.go
// classified jsonschema errors by inspecting keyword and message text
// rather than relying on a typed error-kind from the library.
func classify(leaf *jsonschema.ValidationError) (dqerror.Kind, string) {
	keyword := lastKeyword(leaf.KeywordLocation)
	switch keyword {
	case "required":
		return dqerror.KindMissingField, "present"
	case "type":
		return dqerror.KindBadType, extractExpectedType(leaf.Message)
	case "enum":
		return dqerror.KindEnumViolation, "one of enum values"
	case "format":
		return dqerror.KindFormatError, "valid format"
	case "pattern":
		return dqerror.KindFormatError, "matching pattern"
	default:
		return dqerror.KindSchemaMismatch, ""
	}
}

func lastKeyword(keywordLocation string) string {
	segments := strings.Split(strings.TrimRight(keywordLocation, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// extractExpectedType pulls the "want" type out of a jsonschema "type"
// message of the form `got string, want object`.
func extractExpectedType(message string) string {
	const marker = "want "
	idx := strings.Index(message, marker)
	if idx == -1 {
		return ""
	}
	return strings.TrimSpace(message[idx+len(marker):])
}

// valueAtPointer walks a JSON Pointer path through instance to find the
// offending value, for runtime-type reporting. Missing path segments
// (e.g. a missing required field has no value to walk to) yield nil,
// which RuntimeTypeName reports as "null" — an acceptable approximation
// since "missing" and "null" are indistinguishable once the field path is
// already carrying the precise location.
func valueAtPointer(instance map[string]interface{}, pointer string) interface{} {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return instance
	}
	var current interface{} = instance
	for _, seg := range strings.Split(pointer, "/") {
		switch node := current.(type) {
		case map[string]interface{}:
			current = node[seg]
		case []interface{}:
			current = nil // numeric-index walking omitted; best-effort only.
		default:
			return nil
		}
	}
	return current
}
