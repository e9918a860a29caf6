// Package cache maps step outputs to date-versioned files in a shared
// database, so expensive setup steps can be replaced by downloads.
package cache

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/errors"
)

// Database maps "<task-path>/<step-name>/<output-filename>" keys to
// filenames relative to the database root
type Database struct {
	entries map[string]string
}

// New returns an empty cache database
func New() *Database {
	return &Database{entries: map[string]string{}}
}

// Key builds the canonical lookup key for one step output
func Key(taskPath domain.WorkPath, stepName, filename string) string {
	return path.Join(taskPath.String(), stepName, filename)
}

// Lookup returns the database-relative filename cached for the given output
func (d *Database) Lookup(taskPath domain.WorkPath, stepName, filename string) (string, error) {
	key := Key(taskPath, stepName, filename)
	cached, ok := d.entries[key]
	if !ok {
		return "", errors.NewCacheEntryMissingError(key)
	}
	return cached, nil
}

// Add records a cached filename for the given output, replacing any
// previous entry
func (d *Database) Add(taskPath domain.WorkPath, stepName, filename, cached string) {
	d.entries[Key(taskPath, stepName, filename)] = cached
}

// AddDated records an output under a date-versioned name derived from the
// original filename, and returns that name. A file cached on 2026-08-29 as
// ocean/mesh/culled_mesh.flds becomes ocean/mesh/culled_mesh.20260829.flds.
func (d *Database) AddDated(taskPath domain.WorkPath, stepName, filename string, date time.Time) string {
	stamp := date.Format("20060102")
	ext := path.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	cached := path.Join(taskPath.String(), stepName, fmt.Sprintf("%s.%s%s", stem, stamp, ext))
	d.Add(taskPath, stepName, filename, cached)
	return cached
}

// Len returns the number of cache entries
func (d *Database) Len() int {
	return len(d.entries)
}

// Keys returns all lookup keys in sorted order
func (d *Database) Keys() []string {
	keys := make([]string, 0, len(d.entries))
	for key := range d.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Merge copies every entry of other into d, overwriting collisions
func (d *Database) Merge(other *Database) {
	for key, cached := range other.entries {
		d.entries[key] = cached
	}
}

// Load reads a cache database manifest. A missing file yields an empty
// database: components without cached steps carry no manifest.
func Load(manifestPath string) (*Database, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed,
			"failed to read cache manifest "+manifestPath, err)
	}

	entries := map[string]string{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheManifestError,
			"failed to parse cache manifest "+manifestPath, err)
	}
	return &Database{entries: entries}, nil
}

// Save writes the database as a YAML manifest
func (d *Database) Save(manifestPath string) error {
	data, err := yaml.Marshal(d.entries)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheManifestError, "failed to encode cache manifest", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed,
			"failed to write cache manifest "+manifestPath, err)
	}
	return nil
}
