package schema

// file: internal/schema/directory_source.go

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kimosabey/dataquarantine/internal/dqerror"
)

// probeExtensions is the fixed lookup order spec.md §4.1 mandates: YAML,
// then YML, then JSON. The first matching file wins.
var probeExtensions = []string{"yaml", "yml", "json"}

// DirectorySource is the reference Source: schemas live as files under a
// root directory, named "name.{ext}" for the latest version of a schema
// or "name/version.{ext}" for an explicit version.
type DirectorySource struct {
	root string
}

// NewDirectorySource constructs a DirectorySource rooted at dir.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{root: dir}
}

// Load implements Source.
func (d *DirectorySource) Load(_ context.Context, name, version string) ([]byte, error) {
	var base string
	if version == "" || version == "latest" {
		base = name
	} else {
		base = filepath.Join(name, version)
	}

	var lastErr error
	for _, ext := range probeExtensions {
		candidate := filepath.Join(d.root, base+"."+ext)
		data, err := os.ReadFile(candidate) //nolint:gosec // schema directory is operator-controlled configuration.
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, dqerror.NewKindError(dqerror.CategorySchema, dqerror.KindSchemaNotFound,
			"schema file exists but could not be read: "+base, lastErr)
	}
	return nil, dqerror.NewKindError(dqerror.CategorySchema, dqerror.KindSchemaNotFound,
		"no schema file found for "+base+" with extensions yaml/yml/json", nil)
}

// ListSchemas implements Lister by listing the top-level schema names in
// the directory: one name per file with a probed extension (extension
// stripped) and one name per subdirectory (a schema kept as per-version
// files). The version files inside a subdirectory are not listed
// individually.
func (d *DirectorySource) ListSchemas(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			seen[entry.Name()] = struct{}{}
			continue
		}
		ext := filepath.Ext(entry.Name())
		name := strings.TrimSuffix(entry.Name(), ext)
		trimmed := strings.TrimPrefix(ext, ".")
		for _, probe := range probeExtensions {
			if trimmed == probe {
				seen[name] = struct{}{}
				break
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
