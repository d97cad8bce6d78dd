// Package schema implements the TTL-cached schema registry: resolution of
// a (name, version) pair to a JSON-Schema document from a backing
// directory, envelope unwrapping, and a concurrency-safe cache that
// guarantees at most one concurrent load per key.
package schema

// file: internal/schema/registry.go

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/kimosabey/dataquarantine/internal/dqerror"
	"github.com/kimosabey/dataquarantine/internal/logging"
	"github.com/kimosabey/dataquarantine/internal/payload"
)

var registryLogger = logging.GetLogger("schema_registry")

// Document is a schema document: either a raw JSON-Schema object, or an
// envelope {name, version, schema} wrapping one.
type Document = payload.Payload

// cacheEntry is a Schema Cache Entry per spec.md §3: a loaded document and
// the instant it was loaded, used to compute liveness against the TTL.
type cacheEntry struct {
	document Document
	loadedAt time.Time
}

func (e cacheEntry) isLive(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.loadedAt) <= ttl
}

// Registry resolves (name, version) to schema documents, caching them for
// TTL. All mutation is gated by mu, held only for the duration of a cache
// load/insert, matching spec.md §4.1's "single mutual-exclusion primitive".
type Registry struct {
	source Source
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// Source abstracts the backing key-value store the registry probes.
// The reference implementation (DirectorySource) probes a directory on
// disk; other backends (object storage, a remote registry service) can
// satisfy the same interface without the cache logic changing.
type Source interface {
	// Load returns the raw bytes for name/version, trying each candidate
	// key in probe order (spec.md §4.1: YAML, then YML, then JSON) and
	// returning the first match. If none match, the error is a
	// *dqerror.KindError of kind KindSchemaNotFound.
	Load(ctx context.Context, name, version string) ([]byte, error)
}

// NewRegistry constructs a Registry backed by source, caching entries for
// ttl.
func NewRegistry(source Source, ttl time.Duration) *Registry {
	return &Registry{
		source: source,
		ttl:    ttl,
		cache:  make(map[string]cacheEntry),
	}
}

func cacheKey(name, version string) string {
	return fmt.Sprintf("%s:%s", name, version)
}

// Get resolves (name, version) to the inner schema document, consulting
// the cache first. version = "latest" is resolved by Source the same way
// any explicit version is; the registry itself treats it as an opaque
// cache key segment.
//
// Concurrent Get calls for the same key result in exactly one load: the
// cache is checked, and on a miss the lock is held across the load so a
// second caller arriving during the load observes the first caller's
// insert on its own double-check rather than triggering a second load.
func (r *Registry) Get(ctx context.Context, name, version string) (Document, error) {
	key := cacheKey(name, version)

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && entry.isLive(r.ttl, time.Now()) {
		r.mu.Unlock()
		return entry.document, nil
	}
	// Miss, or stale: hold the lock across the load. Any other goroutine
	// racing for the same key blocks here and will find the entry already
	// fresh on its own check below.
	defer r.mu.Unlock()
	if entry, ok := r.cache[key]; ok && entry.isLive(r.ttl, time.Now()) {
		return entry.document, nil
	}

	doc, err := r.load(ctx, name, version)
	if err != nil {
		return nil, err
	}
	r.cache[key] = cacheEntry{document: doc, loadedAt: time.Now()}
	return doc, nil
}

// Clear drops all cached entries atomically.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cacheEntry)
}

// Lister is implemented by a Source that can enumerate the schema names it
// serves, mirroring the original implementation's
// SchemaRegistry.list_schemas(). Not every Source need support it.
type Lister interface {
	ListSchemas(ctx context.Context) ([]string, error)
}

// ListSchemas enumerates available schema names when the Registry's
// Source implements Lister, for operator tooling (cmd/gateway's
// list-schemas, for instance) rather than the hot validation path.
func (r *Registry) ListSchemas(ctx context.Context) ([]string, error) {
	lister, ok := r.source.(Lister)
	if !ok {
		return nil, errors.New("schema: source does not support listing schemas")
	}
	return lister.ListSchemas(ctx)
}

func (r *Registry) load(ctx context.Context, name, version string) (Document, error) {
	raw, err := r.source.Load(ctx, name, version)
	if err != nil {
		if kind, ok := dqerror.KindOf(err); ok && kind == dqerror.KindSchemaNotFound {
			return nil, err
		}
		return nil, dqerror.NewKindError(dqerror.CategorySchema, dqerror.KindSchemaNotFound,
			fmt.Sprintf("failed to load schema %s:%s", name, version), err)
	}

	// yaml.v3 parses JSON too (JSON is a YAML subset), so one decoder
	// handles every extension the probe order tries.
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, dqerror.NewKindError(dqerror.CategorySchema, dqerror.KindInvalidSchema,
			fmt.Sprintf("schema %s:%s is not valid YAML/JSON", name, version), err)
	}

	unwrapped, err := unwrapEnvelope(doc)
	if err != nil {
		return nil, dqerror.NewKindError(dqerror.CategorySchema, dqerror.KindInvalidSchema,
			fmt.Sprintf("schema %s:%s has a malformed envelope", name, version), err)
	}

	registryLogger.Debug("schema loaded", "name", name, "version", version)
	return unwrapped, nil
}

// unwrapEnvelope implements spec.md §4.1's structural check: a document
// carrying a "schema" field must also carry "name" and "version", and the
// inner "schema" value is returned; otherwise the document is a raw schema
// returned verbatim.
func unwrapEnvelope(doc Document) (Document, error) {
	inner, hasSchema := doc["schema"]
	if !hasSchema {
		return doc, nil
	}
	_, hasName := doc["name"]
	_, hasVersion := doc["version"]
	if !hasName || !hasVersion {
		return nil, errors.New("envelope has a \"schema\" field but is missing \"name\" and/or \"version\"")
	}
	inset, ok := inner.(map[string]interface{})
	if !ok {
		return nil, errors.New("envelope \"schema\" field is not a JSON object")
	}
	return inset, nil
}
