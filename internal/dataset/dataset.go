// Package dataset implements the minimal self-describing variable container
// step bodies write and validation reads. A dataset file maps variable names
// to a dtype, a shape and a raw payload; comparisons are bit-exact through
// BLAKE3 digests of the payload, so validation never needs to understand
// the science that produced the values.
package dataset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/polarlab/floe/internal/errors"
)

// Variable is one named array in a dataset
type Variable struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
	Data  []byte `json:"data"`
}

// Dataset is a named collection of variables
type Dataset struct {
	Variables map[string]Variable `json:"variables"`
}

// New creates an empty dataset
func New() *Dataset {
	return &Dataset{Variables: make(map[string]Variable)}
}

// SetFloat64 stores a float64 array under name
func (d *Dataset) SetFloat64(name string, shape []int, values []float64) {
	data := make([]byte, 8*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(value))
	}
	d.Variables[name] = Variable{DType: "float64", Shape: shape, Data: data}
}

// Float64 reads a float64 array back out of the dataset
func (d *Dataset) Float64(name string) ([]float64, error) {
	variable, ok := d.Variables[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeValidationNoVar,
			fmt.Sprintf("dataset has no variable %s", name))
	}
	if variable.DType != "float64" {
		return nil, errors.New(errors.ErrCodeValidationNoVar,
			fmt.Sprintf("variable %s has dtype %s, not float64", name, variable.DType))
	}
	values := make([]float64, len(variable.Data)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(variable.Data[i*8:]))
	}
	return values, nil
}

// Names returns the variable names in sorted order
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.Variables))
	for name := range d.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Digest returns the BLAKE3 digest of a variable's dtype, shape and payload.
// Two variables with equal digests are bit-identical.
func (d *Dataset) Digest(name string) (string, error) {
	variable, ok := d.Variables[name]
	if !ok {
		return "", errors.New(errors.ErrCodeValidationNoVar,
			fmt.Sprintf("dataset has no variable %s", name))
	}

	hasher := blake3.New()
	fmt.Fprintf(hasher, "%s|", variable.DType)
	for _, dim := range variable.Shape {
		fmt.Fprintf(hasher, "%d,", dim)
	}
	hasher.Write([]byte("|"))
	hasher.Write(variable.Data)
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// Write serializes the dataset to path
func (d *Dataset) Write(path string) error {
	encoded, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode dataset", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write dataset "+path, err)
	}
	return nil
}

// Read loads a dataset from path
func Read(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read dataset "+path, err)
	}
	d := New()
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "dataset", err)
	}
	if d.Variables == nil {
		d.Variables = make(map[string]Variable)
	}
	return d, nil
}

// FileDigest returns the BLAKE3 digest of an arbitrary file's contents,
// used by the cache database to name stored outputs.
func FileDigest(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read "+path, err)
	}
	sum := blake3.Sum256(raw)
	return fmt.Sprintf("%x", sum[:]), nil
}
