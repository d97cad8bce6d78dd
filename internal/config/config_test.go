// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, "raw-events", cfg.Stream.InputTopic)
	assert.Equal(t, "earliest", cfg.Stream.AutoOffsetReset)
	assert.Equal(t, "_schema", cfg.Stream.SchemaIDField)
	assert.Equal(t, 500, cfg.Stream.MaxPollRecords)
	assert.Equal(t, "validated-events", cfg.Sinks.ValidatedTopic)
	assert.Equal(t, "quarantine-dlq", cfg.Sinks.DLQTopic)
	assert.Equal(t, 300*time.Second, cfg.Schema.CacheTTL)
	assert.False(t, cfg.Validation.EnableAutoRemediation)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	yamlContent := `
stream:
  input_topic: custom-events
  max_poll_records: 250
validation:
  enable_auto_remediation: true
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-events", cfg.Stream.InputTopic)
	assert.Equal(t, 250, cfg.Stream.MaxPollRecords)
	assert.True(t, cfg.Validation.EnableAutoRemediation)
	// Untouched fields keep their defaults.
	assert.Equal(t, "validated-events", cfg.Sinks.ValidatedTopic)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/gateway.yaml")
	require.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := ExpandPath("~/configs/gateway.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "configs/gateway.yaml"), expanded)

	unchanged, err := ExpandPath("/already/absolute")
	require.NoError(t, err)
	assert.Equal(t, "/already/absolute", unchanged)
}
