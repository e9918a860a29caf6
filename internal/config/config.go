// Package config implements the layered configuration stack used by every
// task: machine defaults, component defaults, task and step package defaults,
// and finally user overrides, merged in order so that later sources win.
//
// Files use INI syntax ([section] headers with key = value pairs) parsed and
// rendered with gopkg.in/ini.v1. Values may reference other options with
// ${section:key} interpolation, resolved against the fully merged stack.
package config

import (
	"os"

	"gopkg.in/ini.v1"

	"github.com/polarlab/floe/internal/errors"
)

// option is one merged key with the comment and origin that survive override
type option struct {
	value   string
	comment string
	origin  string
}

// section is an ordered collection of merged options
type section struct {
	options map[string]*option
	order   []string
}

func newSection() *section {
	return &section{options: make(map[string]*option)}
}

func (s *section) set(key string, opt *option) {
	if existing, ok := s.options[key]; ok {
		// Overrides keep an earlier comment when the new source has none,
		// so provenance notes survive user overrides.
		if opt.comment == "" {
			opt.comment = existing.comment
		}
		s.options[key] = opt
		return
	}
	s.options[key] = opt
	s.order = append(s.order, key)
}

// Config is an ordered stack of INI option sources merged into one view.
// The zero value is not usable; call New.
type Config struct {
	sections map[string]*section
	order    []string
	sources  []string
}

// New creates an empty configuration stack
func New() *Config {
	return &Config{sections: make(map[string]*section)}
}

// Copy returns an independent copy of the merged stack.
// Configure hooks use this to re-read config-driven parameters without
// mutating the task's canonical config.
func (c *Config) Copy() *Config {
	out := New()
	out.sources = append(out.sources, c.sources...)
	for _, name := range c.order {
		src := c.sections[name]
		dst := newSection()
		for _, key := range src.order {
			opt := *src.options[key]
			dst.set(key, &opt)
		}
		out.sections[name] = dst
		out.order = append(out.order, name)
	}
	return out
}

// Sources returns the ordered list of merged source descriptions
func (c *Config) Sources() []string {
	return append([]string(nil), c.sources...)
}

// SectionNames returns the merged section names in first-seen order
func (c *Config) SectionNames() []string {
	return append([]string(nil), c.order...)
}

// AddFromFile merges an INI file's sections and options on top of the stack.
// Missing files are a configuration error.
func (c *Config) AddFromFile(path string) error {
	return c.addFile(path, true)
}

// AddFromFileOptional merges an INI file if it exists and returns silently
// when it does not.
func (c *Config) AddFromFileOptional(path string) error {
	return c.addFile(path, false)
}

func (c *Config) addFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if !required {
				return nil
			}
			return errors.NewConfigNotFoundError(path)
		}
		return errors.Wrap(errors.ErrCodeFileReadFailed, "failed to stat config file", err)
	}

	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
	}, path)
	if err != nil {
		return errors.NewFileUnmarshalError(path, "INI", err)
	}

	for _, sec := range file.Sections() {
		keys := sec.Keys()
		if sec.Name() == ini.DefaultSection && len(keys) == 0 {
			continue
		}
		for _, key := range keys {
			c.setOption(sec.Name(), key.Name(), key.Value(), key.Comment, path)
		}
	}

	c.sources = append(c.sources, path)
	return nil
}

// AddFromMap merges literal options on top of the stack, attributed to the
// given origin. Used by Configure hooks and tests.
func (c *Config) AddFromMap(origin string, options map[string]map[string]string) {
	for secName, keys := range options {
		for key, value := range keys {
			c.setOption(secName, key, value, "", origin)
		}
	}
	c.sources = append(c.sources, origin)
}

// Set stores a single option, overriding any earlier source
func (c *Config) Set(secName, key, value string) {
	c.setOption(secName, key, value, "", "explicit")
}

// SetWithComment stores a single option with an attached comment
func (c *Config) SetWithComment(secName, key, value, comment string) {
	c.setOption(secName, key, value, comment, "explicit")
}

func (c *Config) setOption(secName, key, value, comment, origin string) {
	sec, ok := c.sections[secName]
	if !ok {
		sec = newSection()
		c.sections[secName] = sec
		c.order = append(c.order, secName)
	}
	sec.set(key, &option{value: value, comment: comment, origin: origin})
}

// Has reports whether the merged stack defines (section, key)
func (c *Config) Has(secName, key string) bool {
	sec, ok := c.sections[secName]
	if !ok {
		return false
	}
	_, ok = sec.options[key]
	return ok
}

// HasSection reports whether the merged stack defines the section
func (c *Config) HasSection(secName string) bool {
	_, ok := c.sections[secName]
	return ok
}

// raw returns the uninterpolated value for (section, key)
func (c *Config) raw(secName, key string) (string, error) {
	sec, ok := c.sections[secName]
	if !ok {
		return "", errors.NewOptionNotFoundError(secName, key)
	}
	opt, ok := sec.options[key]
	if !ok {
		return "", errors.NewOptionNotFoundError(secName, key)
	}
	return opt.value, nil
}
