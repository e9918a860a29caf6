package domain

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// WorkPath represents a work-directory-relative path for a task or step.
// This is a value object that enforces valid path formats: slash-separated
// segments of lowercase letters, numbers, underscores and hyphens.
type WorkPath string

var (
	// segmentPattern validates a single path segment.
	// Must start with a letter or number, and can contain lowercase letters,
	// numbers, underscores, hyphens and dots.
	segmentPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

	// maxWorkPathLength is the maximum allowed length for a work path
	maxWorkPathLength = 255
)

// NewWorkPath creates a new WorkPath value object with validation
func NewWorkPath(value string) (WorkPath, error) {
	p := WorkPath(value)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Validate checks if the work path is valid
func (p WorkPath) Validate() error {
	s := string(p)

	if s == "" {
		return fmt.Errorf("work path cannot be empty")
	}

	if len(s) > maxWorkPathLength {
		return fmt.Errorf("work path %q exceeds maximum length of %d characters", s, maxWorkPathLength)
	}

	if strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
		return fmt.Errorf("work path %q must be relative with no trailing slash", s)
	}

	if path.Clean(s) != s {
		return fmt.Errorf("work path %q must be in clean form without . or .. segments", s)
	}

	for _, segment := range strings.Split(s, "/") {
		if !segmentPattern.MatchString(segment) {
			return fmt.Errorf("work path segment %q must start with a letter or number and contain only lowercase letters, numbers, underscores, hyphens and dots", segment)
		}
	}

	return nil
}

// Join appends further segments, returning an unvalidated WorkPath
func (p WorkPath) Join(segments ...string) WorkPath {
	parts := append([]string{string(p)}, segments...)
	return WorkPath(path.Join(parts...))
}

// Base returns the final segment of the path
func (p WorkPath) Base() string {
	return path.Base(string(p))
}

// String returns the string representation
func (p WorkPath) String() string {
	return string(p)
}
