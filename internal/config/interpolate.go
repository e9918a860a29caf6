package config

import (
	"regexp"
	"strings"

	"github.com/polarlab/floe/internal/errors"
)

// referencePattern matches ${section:key} interpolation references
var referencePattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.-]+):([A-Za-z0-9_.-]+)\}`)

// interpolate resolves every ${section:key} reference in value against the
// merged stack. A reference to a missing option or a reference cycle is a
// fatal configuration error.
func (c *Config) interpolate(secName, key, value string) (string, error) {
	type ref struct{ section, key string }
	seen := map[ref]bool{{secName, key}: true}

	for range [32]struct{}{} {
		match := referencePattern.FindStringSubmatchIndex(value)
		if match == nil {
			return value, nil
		}

		refSec := value[match[2]:match[3]]
		refKey := value[match[4]:match[5]]
		reference := value[match[0]:match[1]]

		if seen[ref{refSec, refKey}] {
			return "", errors.New(errors.ErrCodeBadInterpolation,
				"interpolation cycle detected at "+reference+" while resolving ["+secName+"] "+key).
				WithSuggestion("Remove the circular ${section:key} reference chain")
		}
		seen[ref{refSec, refKey}] = true

		raw, err := c.raw(refSec, refKey)
		if err != nil {
			return "", errors.NewBadInterpolationError(secName, key, reference)
		}

		// Replace every occurrence at once; a reference that reappears
		// afterwards was reintroduced by its own expansion.
		value = strings.ReplaceAll(value, reference, raw)
	}

	// Reference chains this deep are in practice always cycles through
	// options that re-introduce references.
	return "", errors.New(errors.ErrCodeBadInterpolation,
		"interpolation did not converge while resolving ["+secName+"] "+key).
		WithSuggestion("Check for ${section:key} references that expand to further references")
}

// containsReference reports whether a value still carries an unresolved
// ${section:key} reference, for use by validation sweeps.
func containsReference(value string) bool {
	return strings.Contains(value, "${") && referencePattern.MatchString(value)
}
