package config

// file: internal/config/load.go

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Load reads Settings from a YAML file at path, starting from New()'s
// defaults and overlaying whatever the file specifies. An empty path
// returns the defaults untouched, mirroring the teacher's
// loadConfiguration behavior for a missing -config flag.
func Load(path string) (*Settings, error) {
	cfg := New()
	if path == "" {
		return cfg, nil
	}

	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config.Load: failed to expand config path %q", path)
	}

	data, err := os.ReadFile(expanded) //nolint:gosec // path comes from trusted CLI/operator configuration.
	if err != nil {
		return nil, errors.Wrapf(err, "config.Load: failed to read config file %q", expanded)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config.Load: failed to parse config file %q", expanded)
	}

	return cfg, nil
}
