// Package suite parses suite manifests: plain text files listing one task
// work-directory-relative path per line. A line reading "cached" marks the
// whole preceding task as cached; "cached: step1 step2" marks only those
// steps. Lines starting with # are comments.
package suite

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/errors"
)

// Entry is one task selection in a suite
type Entry struct {
	// TaskPath is the task's work-directory-relative path
	TaskPath domain.WorkPath
	// Cached marks every step of the task as cached
	Cached bool
	// CachedSteps marks a subset of steps as cached
	CachedSteps []string
}

// CachesStep reports whether the named step should serve cached outputs
func (e Entry) CachesStep(name string) bool {
	if e.Cached {
		return true
	}
	for _, step := range e.CachedSteps {
		if step == name {
			return true
		}
	}
	return false
}

// Manifest is an ordered list of task selections
type Manifest struct {
	Name    string
	Entries []Entry
}

// TaskPaths returns the selected task paths in manifest order
func (m *Manifest) TaskPaths() []domain.WorkPath {
	out := make([]domain.WorkPath, len(m.Entries))
	for i, entry := range m.Entries {
		out[i] = entry.TaskPath
	}
	return out
}

// Parse reads a suite manifest
func Parse(name string, r io.Reader) (*Manifest, error) {
	manifest := &Manifest{Name: name}
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if line == "cached" || strings.HasPrefix(line, "cached:") {
			if len(manifest.Entries) == 0 {
				return nil, errors.New(errors.ErrCodeSuiteInvalid,
					fmt.Sprintf("suite %s line %d: cached annotation before any task", name, lineNo))
			}
			entry := &manifest.Entries[len(manifest.Entries)-1]
			if line == "cached" {
				entry.Cached = true
			} else {
				steps := strings.Fields(strings.TrimPrefix(line, "cached:"))
				if len(steps) == 0 {
					return nil, errors.New(errors.ErrCodeSuiteInvalid,
						fmt.Sprintf("suite %s line %d: cached: annotation names no steps", name, lineNo))
				}
				entry.CachedSteps = append(entry.CachedSteps, steps...)
			}
			continue
		}

		taskPath, err := domain.NewWorkPath(line)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeSuiteInvalid,
				fmt.Sprintf("suite %s line %d: invalid task path", name, lineNo), err)
		}
		manifest.Entries = append(manifest.Entries, Entry{TaskPath: taskPath})
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read suite "+name, err)
	}
	return manifest, nil
}

// Load reads a suite manifest from a file
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeSuiteNotFound, "suite manifest not found: "+path).
				WithSuggestion("Check the suite name passed to 'floe suite'")
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to open suite "+path, err)
	}
	defer f.Close()

	name := strings.TrimSuffix(strings.TrimSuffix(path, ".txt"), ".suite")
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	return Parse(name, f)
}
