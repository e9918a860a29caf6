package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigNotFound      ErrorCode = "CONFIG-001"
	ErrCodeOptionNotFound      ErrorCode = "CONFIG-002"
	ErrCodeOptionBadType       ErrorCode = "CONFIG-003"
	ErrCodeBadInterpolation    ErrorCode = "CONFIG-004"
	ErrCodeBadExpression       ErrorCode = "CONFIG-005"
	ErrCodePathCollision       ErrorCode = "CONFIG-006"
	ErrCodeDependencyCycle     ErrorCode = "CONFIG-007"
	ErrCodeUnsatisfiedInput    ErrorCode = "CONFIG-008"
	ErrCodeAmbiguousInputMode  ErrorCode = "CONFIG-009"
	ErrCodeUnknownTask         ErrorCode = "CONFIG-010"
	ErrCodeDuplicateRegistered ErrorCode = "CONFIG-011"

	// Step errors (STEP-001 to STEP-099)
	ErrCodeStepInputMissing  ErrorCode = "STEP-001"
	ErrCodeStepOutputMissing ErrorCode = "STEP-002"
	ErrCodeStepRunFailed     ErrorCode = "STEP-003"
	ErrCodeStepUnknown       ErrorCode = "STEP-004"

	// Task errors (TASK-001 to TASK-099)
	ErrCodeTaskFailed        ErrorCode = "TASK-001"
	ErrCodeTaskNotConfigured ErrorCode = "TASK-002"

	// Suite errors (SUITE-001 to SUITE-099)
	ErrCodeSuiteNotFound ErrorCode = "SUITE-001"
	ErrCodeSuiteInvalid  ErrorCode = "SUITE-002"
	ErrCodeSuiteFailed   ErrorCode = "SUITE-003"

	// Resource errors (RES-001 to RES-099)
	ErrCodeResourceExhausted ErrorCode = "RES-001"
	ErrCodeResourceInvalid   ErrorCode = "RES-002"

	// Validation errors (VALID-001 to VALID-099)
	ErrCodeValidationMismatch ErrorCode = "VALID-001"
	ErrCodeValidationNoVar    ErrorCode = "VALID-002"

	// Cache errors (CACHE-001 to CACHE-099)
	ErrCodeCacheEntryMissing  ErrorCode = "CACHE-001"
	ErrCodeCacheManifestError ErrorCode = "CACHE-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDownloadFailed  ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

// FloeError represents an enhanced error with code, suggestions, and documentation
type FloeError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *FloeError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FloeError) Unwrap() error {
	return e.Cause
}

// New creates a new FloeError
func New(code ErrorCode, message string) *FloeError {
	return &FloeError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new FloeError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *FloeError {
	return &FloeError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *FloeError) WithSuggestion(suggestion string) *FloeError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *FloeError) WithSuggestions(suggestions ...string) *FloeError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *FloeError) WithDocs(url string) *FloeError {
	e.DocsURL = url
	return e
}

// HasCode reports whether err or any error in its cause chain is a
// FloeError carrying the given code
func HasCode(err error, code ErrorCode) bool {
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if floeErr, ok := e.(*FloeError); ok && floeErr.Code == code {
			return true
		}
	}
	return false
}

// As is the standard library errors.As, re-exported so callers need a
// single errors import
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Common error constructors for frequently used errors

// NewConfigNotFoundError creates a config file not found error
func NewConfigNotFoundError(path string) *FloeError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("config file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Load the file with AddFromFileOptional if it may legitimately be absent")
}

// NewOptionNotFoundError creates a missing (section, key) error
func NewOptionNotFoundError(section, key string) *FloeError {
	return New(ErrCodeOptionNotFound, fmt.Sprintf("config option not found: [%s] %s", section, key)).
		WithSuggestion("Check the section and option names for typos").
		WithSuggestion("Supply the option in a user config file passed to 'floe setup -f'")
}

// NewBadInterpolationError creates an interpolation failure error
func NewBadInterpolationError(section, key, reference string) *FloeError {
	return New(ErrCodeBadInterpolation,
		fmt.Sprintf("cannot interpolate %s in option [%s] %s", reference, section, key)).
		WithSuggestion("Interpolation references must use the form ${section:key}").
		WithSuggestion("The referenced option must exist somewhere in the merged config stack")
}

// NewPathCollisionError creates a work-directory collision error
func NewPathCollisionError(path, first, second string) *FloeError {
	return New(ErrCodePathCollision,
		fmt.Sprintf("work directory %s claimed by both %s and %s", path, first, second)).
		WithSuggestion("Give one of the colliding tasks or steps a distinct subdir").
		WithSuggestion("Register a shared step on the component so both tasks reuse one instance")
}

// NewDependencyCycleError creates a dependency cycle error
func NewDependencyCycleError(cycle []string) *FloeError {
	return New(ErrCodeDependencyCycle,
		fmt.Sprintf("dependency cycle between steps: %s", strings.Join(cycle, " -> "))).
		WithSuggestion("Steps must be added in an order that already respects their file dependencies")
}

// NewUnsatisfiedInputError creates an error for an input nothing produces
func NewUnsatisfiedInputError(step, filename string) *FloeError {
	return New(ErrCodeUnsatisfiedInput,
		fmt.Sprintf("step %s declares input %s that no step produces and no recipe supplies", step, filename)).
		WithSuggestion("Declare the file as an output of an earlier step").
		WithSuggestion("Supply the file externally via a symlink, copy, or download recipe")
}

// NewStepOutputMissingError creates a missing declared output error
func NewStepOutputMissingError(step, output string) *FloeError {
	return New(ErrCodeStepOutputMissing,
		fmt.Sprintf("step %s completed but declared output is missing: %s", step, output)).
		WithSuggestion("Make sure the step body writes every file it declares with AddOutputFile")
}

// NewStepInputMissingError creates a missing input at run time error
func NewStepInputMissingError(step, input string) *FloeError {
	return New(ErrCodeStepInputMissing,
		fmt.Sprintf("step %s is missing input at run time: %s", step, input)).
		WithSuggestion("Run 'floe setup' again to re-materialize input recipes").
		WithSuggestion("Check that the producing step ran before this one")
}

// NewResourceExhaustedError creates a resource shortfall error
func NewResourceExhaustedError(step string, want, have int, what string) *FloeError {
	return New(ErrCodeResourceExhausted,
		fmt.Sprintf("step %s needs at least %d %s but only %d available", step, want, what, have)).
		WithSuggestion("Run on a machine or allocation with more resources").
		WithSuggestion(fmt.Sprintf("Lower the minimum %s in the step's config section if the case permits", what))
}

// NewValidationMismatchError creates a variable comparison mismatch error
func NewValidationMismatchError(variable, fileA, fileB string) *FloeError {
	return New(ErrCodeValidationMismatch,
		fmt.Sprintf("variable %s differs between %s and %s", variable, fileA, fileB)).
		WithSuggestion("Inspect both files to locate the differing values").
		WithSuggestion("If the change is expected, regenerate the baseline")
}

// NewCacheEntryMissingError creates a missing cache database entry error
func NewCacheEntryMissingError(key string) *FloeError {
	return New(ErrCodeCacheEntryMissing, fmt.Sprintf("no cache database entry for %s", key)).
		WithSuggestion("Update the cache database from a successful run with 'floe cache'").
		WithSuggestion("Remove the cached annotation from the suite manifest for this task")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *FloeError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *FloeError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
