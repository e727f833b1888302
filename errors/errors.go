// Package errors defines the error taxonomy shared by every layer of the
// resizer. Import it as apperrors.
package errors

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryValidation Category = "validation"
	CategorySource     Category = "source"
	CategoryCodec      Category = "codec"
	CategoryStorage    Category = "storage"
	CategoryPipeline   Category = "pipeline"
	CategoryConfig     Category = "config"
	CategoryTransient  Category = "transient"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category  Category
	Op        string // operation name
	Err       error
	Retryable bool
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a non-retryable ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Transient creates a retryable ProcessingError.
func Transient(op string, err error) *ProcessingError {
	return &ProcessingError{Category: CategoryTransient, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context. A nil err yields nil.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// Sentinel errors, one per failure kind. Every structured error below
// matches exactly one of them through errors.Is.
var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrBooleanParse         = errors.New("invalid boolean")
	ErrInvalidResizeFormat  = errors.New("invalid resize format")
	ErrSourceNotFound       = errors.New("source not found")
	ErrInvalidSourceURL     = errors.New("invalid source url")
	ErrCodec                = errors.New("codec failure")
	ErrUnsupportedBackend   = errors.New("unsupported storage backend")
	ErrTransferVerification = errors.New("transfer verification failed")
	ErrBackendIO            = errors.New("backend i/o failure")
	ErrRetryExhausted       = errors.New("retry attempts exhausted")
	ErrCompensation         = errors.New("compensation delete failed")
	ErrEmptyInput           = errors.New("empty input")
)

// ── Parameter errors ──────────────────────────────────────────────────────────

// ParameterError names the offending field and the constraint it violated.
type ParameterError struct {
	Field      string
	Constraint string
	Err        error // ErrInvalidParameter, ErrBooleanParse or ErrInvalidResizeFormat
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Field, e.Constraint, e.kind())
}

func (e *ParameterError) Unwrap() error { return e.kind() }

func (e *ParameterError) kind() error {
	if e.Err == nil {
		return ErrInvalidParameter
	}
	return e.Err
}

// Invalid builds a ParameterError of kind ErrInvalidParameter.
func Invalid(field, constraint string, args ...any) *ParameterError {
	return &ParameterError{Field: field, Constraint: fmt.Sprintf(constraint, args...), Err: ErrInvalidParameter}
}

// BadBool builds a ParameterError of kind ErrBooleanParse.
func BadBool(field string, value any) *ParameterError {
	return &ParameterError{
		Field:      field,
		Constraint: fmt.Sprintf("expected true/false/1/0, got %v", value),
		Err:        ErrBooleanParse,
	}
}

// BadSize builds a ParameterError of kind ErrInvalidResizeFormat.
func BadSize(field, value string) *ParameterError {
	return &ParameterError{
		Field:      field,
		Constraint: fmt.Sprintf("expected <width>x<height>, got %q", value),
		Err:        ErrInvalidResizeFormat,
	}
}

// ── Backend errors ────────────────────────────────────────────────────────────

// BackendError wraps a filesystem or network failure together with the
// destination it was aimed at.
type BackendError struct {
	Backend   string
	Dir       string
	File      string
	Op        string
	Err       error
	Retryable bool
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Backend, e.Op, e.Location(), e.Err)
}

// Location is the dir/file pair joined the way object keys are composed.
func (e *BackendError) Location() string {
	return strings.TrimPrefix(path.Join(e.Dir, e.File), "/")
}

// Is matches ErrBackendIO unless the wrapped error already names a more
// specific kind.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackendIO && !errors.Is(e.Err, ErrTransferVerification)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ── Retry errors ──────────────────────────────────────────────────────────────

// RetryError is returned once every allowed attempt has been used.
type RetryError struct {
	Attempts int
	Failed   []string // labels of the tasks still failing
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %s: %v",
		ErrRetryExhausted, e.Attempts, strings.Join(e.Failed, ", "), e.Last)
}

func (e *RetryError) Is(target error) bool { return target == ErrRetryExhausted }

func (e *RetryError) Unwrap() error { return e.Last }
