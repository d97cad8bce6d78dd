package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimosabey/dataquarantine/internal/dqerror"
)

func writeSchemaFile(t *testing.T, dir, relPath, content string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
}

func TestRegistryGetLatestByName(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "user_event.json", `{"type":"object","properties":{"user_id":{"type":"string"}}}`)

	reg := NewRegistry(NewDirectorySource(dir), time.Minute)
	doc, err := reg.Get(context.Background(), "user_event", "latest")
	require.NoError(t, err)
	assert.Equal(t, "object", doc["type"])
}

func TestRegistryGetExplicitVersion(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "user_event/2.yaml", "type: object\n")

	reg := NewRegistry(NewDirectorySource(dir), time.Minute)
	doc, err := reg.Get(context.Background(), "user_event", "2")
	require.NoError(t, err)
	assert.Equal(t, "object", doc["type"])
}

func TestRegistryProbeOrderPrefersYAMLOverJSON(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "user_event.json", `{"type":"wrong"}`)
	writeSchemaFile(t, dir, "user_event.yaml", "type: right\n")

	reg := NewRegistry(NewDirectorySource(dir), time.Minute)
	doc, err := reg.Get(context.Background(), "user_event", "latest")
	require.NoError(t, err)
	assert.Equal(t, "right", doc["type"])
}

func TestRegistryEnvelopeUnwrap(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "user_event.json", `{
		"name": "user_event",
		"version": "1",
		"schema": {"type": "object"}
	}`)

	reg := NewRegistry(NewDirectorySource(dir), time.Minute)
	doc, err := reg.Get(context.Background(), "user_event", "latest")
	require.NoError(t, err)
	assert.Equal(t, "object", doc["type"])
	_, hasName := doc["name"]
	assert.False(t, hasName, "unwrapped document should not carry the envelope's name field")
}

func TestRegistryEnvelopeMissingNameIsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "bad_envelope.json", `{"version": "1", "schema": {"type": "object"}}`)

	reg := NewRegistry(NewDirectorySource(dir), time.Minute)
	_, err := reg.Get(context.Background(), "bad_envelope", "latest")
	require.Error(t, err)
	kind, ok := dqerror.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dqerror.KindInvalidSchema, kind)
}

func TestRegistryNotFound(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(NewDirectorySource(dir), time.Minute)

	_, err := reg.Get(context.Background(), "nonexistent", "latest")
	require.Error(t, err)
	kind, ok := dqerror.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dqerror.KindSchemaNotFound, kind)
}

func TestRegistryCachesWithinTTL(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "user_event.json", `{"type":"object"}`)

	reg := NewRegistry(NewDirectorySource(dir), time.Hour)
	_, err := reg.Get(context.Background(), "user_event", "latest")
	require.NoError(t, err)

	// Remove the backing file; a cached, live entry must still be served.
	require.NoError(t, os.Remove(filepath.Join(dir, "user_event.json")))

	doc, err := reg.Get(context.Background(), "user_event", "latest")
	require.NoError(t, err)
	assert.Equal(t, "object", doc["type"])
}

func TestRegistryReloadsAfterTTLExpiry(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "user_event.json", `{"type":"object"}`)

	reg := NewRegistry(NewDirectorySource(dir), time.Nanosecond)
	_, err := reg.Get(context.Background(), "user_event", "latest")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	require.NoError(t, os.Remove(filepath.Join(dir, "user_event.json")))

	_, err = reg.Get(context.Background(), "user_event", "latest")
	require.Error(t, err)
	kind, ok := dqerror.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dqerror.KindSchemaNotFound, kind)
}

func TestRegistryClear(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "user_event.json", `{"type":"object"}`)

	reg := NewRegistry(NewDirectorySource(dir), time.Hour)
	_, err := reg.Get(context.Background(), "user_event", "latest")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "user_event.json")))
	reg.Clear()

	_, err = reg.Get(context.Background(), "user_event", "latest")
	require.Error(t, err)
}

func TestRegistryConcurrentGetsLoadOnce(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "user_event.json", `{"type":"object"}`)

	reg := NewRegistry(NewDirectorySource(dir), time.Hour)

	const n = 20
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := reg.Get(context.Background(), "user_event", "latest")
			results <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-results)
	}
}
