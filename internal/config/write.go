package config

import (
	"io"
	"os"

	"gopkg.in/ini.v1"

	"github.com/polarlab/floe/internal/errors"
)

// Write renders the merged stack as a single INI document, keeping section
// and option order and the comments that survived override.
func (c *Config) Write(w io.Writer) error {
	file := ini.Empty()

	for _, secName := range c.order {
		sec, err := file.NewSection(secName)
		if err != nil {
			return errors.Wrap(errors.ErrCodeFileMarshal, "failed to render config section "+secName, err)
		}
		merged := c.sections[secName]
		for _, keyName := range merged.order {
			opt := merged.options[keyName]
			key, err := sec.NewKey(keyName, opt.value)
			if err != nil {
				return errors.Wrap(errors.ErrCodeFileMarshal, "failed to render config option "+keyName, err)
			}
			key.Comment = opt.comment
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write config", err)
	}
	return nil
}

// WriteFile renders the merged stack to path. Once a task's config is
// written to its work directory it is treated as frozen.
func (c *Config) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create config file "+path, err)
	}
	defer f.Close()
	return c.Write(f)
}

// Validate resolves every option in the merged stack, surfacing any bad or
// cyclic interpolation before setup materializes anything.
func (c *Config) Validate() error {
	for _, secName := range c.order {
		sec := c.sections[secName]
		for _, keyName := range sec.order {
			if _, err := c.interpolate(secName, keyName, sec.options[keyName].value); err != nil {
				return err
			}
		}
	}
	return nil
}
