package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/polarlab/floe/internal/domain"
)

// TaskListing is the machine-readable form of the registered task list
type TaskListing struct {
	Number int    `json:"number" yaml:"number"`
	Path   string `json:"path" yaml:"path"`
}

// Listing converts task paths into numbered entries
func Listing(paths []domain.WorkPath) []TaskListing {
	out := make([]TaskListing, len(paths))
	for i, path := range paths {
		out[i] = TaskListing{Number: i + 1, Path: path.String()}
	}
	return out
}

// Formatter writes structured data in one output format. CI consumers use
// json or yaml; the default text form is the styled terminal output.
type Formatter interface {
	Format(data any) error
}

// NewFormatter creates a formatter for the given format string
func NewFormatter(format string, w io.Writer) (Formatter, error) {
	if w == nil {
		w = os.Stdout
	}
	switch format {
	case "json":
		return &jsonFormatter{w: w}, nil
	case "yaml":
		return &yamlFormatter{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s (supported: text, json, yaml)", format)
	}
}

type jsonFormatter struct {
	w io.Writer
}

func (f *jsonFormatter) Format(data any) error {
	encoder := json.NewEncoder(f.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

type yamlFormatter struct {
	w io.Writer
}

func (f *yamlFormatter) Format(data any) error {
	encoder := yaml.NewEncoder(f.w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}
