package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/polarlab/floe/internal/errors"
)

// Get returns the fully interpolated string value for (section, key)
func (c *Config) Get(secName, key string) (string, error) {
	raw, err := c.raw(secName, key)
	if err != nil {
		return "", err
	}
	return c.interpolate(secName, key, raw)
}

// GetInt returns the option parsed as an integer
func (c *Config) GetInt(secName, key string) (int, error) {
	value, err := c.Get(secName, key)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, badType(secName, key, value, "integer")
	}
	return parsed, nil
}

// GetFloat returns the option parsed as a float
func (c *Config) GetFloat(secName, key string) (float64, error) {
	value, err := c.Get(secName, key)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, badType(secName, key, value, "float")
	}
	return parsed, nil
}

// GetBool returns the option parsed as a boolean.
// Accepts true/false, yes/no, on/off and 1/0 in any case.
func (c *Config) GetBool(secName, key string) (bool, error) {
	value, err := c.Get(secName, key)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, badType(secName, key, value, "boolean")
	}
}

// GetList returns the option split on commas and whitespace
func (c *Config) GetList(secName, key string) ([]string, error) {
	value, err := c.Get(secName, key)
	if err != nil {
		return nil, err
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if field != "" {
			out = append(out, field)
		}
	}
	return out, nil
}

// GetIntList returns the option as a list of integers
func (c *Config) GetIntList(secName, key string) ([]int, error) {
	fields, err := c.GetList(secName, key)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(fields))
	for i, field := range fields {
		parsed, err := strconv.Atoi(field)
		if err != nil {
			return nil, badType(secName, key, field, "integer list element")
		}
		out[i] = parsed
	}
	return out, nil
}

// GetFloatList returns the option as a list of floats
func (c *Config) GetFloatList(secName, key string) ([]float64, error) {
	fields, err := c.GetList(secName, key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(fields))
	for i, field := range fields {
		parsed, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, badType(secName, key, field, "float list element")
		}
		out[i] = parsed
	}
	return out, nil
}

// GetExpression parses the option with the restricted expression grammar:
// literals, lists, tuples, dicts and a whitelist of numeric helper calls.
// Arbitrary code is rejected.
func (c *Config) GetExpression(secName, key string) (any, error) {
	value, err := c.Get(secName, key)
	if err != nil {
		return nil, err
	}
	result, err := evalExpression(value)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadExpression,
			fmt.Sprintf("cannot evaluate option [%s] %s", secName, key), err).
			WithSuggestion("Expressions may use literals, lists, dicts, tuples and numeric helpers like range() and sqrt()")
	}
	return result, nil
}

func badType(secName, key, value, want string) error {
	return errors.New(errors.ErrCodeOptionBadType,
		fmt.Sprintf("option [%s] %s has value %q, not a valid %s", secName, key, value, want))
}
