// Package errors provides the error kinds shared by the verse core and its shell.
//
// Fatal kinds (ErrInputUnreadable, ErrInputMalformed) abort a whole normalization.
// Record kinds (ErrRecordMalformed, ErrUnknownBook, ErrReferenceMalformed) are
// collected per record and never stop a batch.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for each error kind.
var (
	// ErrInputUnreadable indicates the raw bytes could not be obtained.
	ErrInputUnreadable = errors.New("input unreadable")
	// ErrInputMalformed indicates the content is not valid structured data
	// or lacks the expected top-level shape.
	ErrInputMalformed = errors.New("input malformed")
	// ErrRecordMalformed indicates a single record failed shape or type checks.
	ErrRecordMalformed = errors.New("record malformed")
	// ErrUnknownBook indicates a book id or name has no registry match.
	ErrUnknownBook = errors.New("unknown book")
	// ErrReferenceMalformed indicates a reference string could not be parsed.
	ErrReferenceMalformed = errors.New("reference malformed")
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// Kind names an error kind for diagnostics and logs.
type Kind string

// Kind values, one per sentinel.
const (
	KindInputUnreadable    Kind = "InputUnreadable"
	KindInputMalformed     Kind = "InputMalformed"
	KindRecordMalformed    Kind = "RecordMalformed"
	KindUnknownBook        Kind = "UnknownBook"
	KindReferenceMalformed Kind = "ReferenceMalformed"
)

// sentinel returns the sentinel error for a kind.
func (k Kind) sentinel() error {
	switch k {
	case KindInputUnreadable:
		return ErrInputUnreadable
	case KindInputMalformed:
		return ErrInputMalformed
	case KindRecordMalformed:
		return ErrRecordMalformed
	case KindUnknownBook:
		return ErrUnknownBook
	case KindReferenceMalformed:
		return ErrReferenceMalformed
	default:
		return nil
	}
}

// KindOf reports the kind of err, or "" when err carries none of the kinds.
func KindOf(err error) Kind {
	for _, k := range []Kind{
		KindInputUnreadable,
		KindInputMalformed,
		KindRecordMalformed,
		KindUnknownBook,
		KindReferenceMalformed,
	} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return ""
}

// IsFatal reports whether err aborts a normalization as a whole.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindInputUnreadable, KindInputMalformed:
		return true
	}
	return false
}

// RecordError describes why a single input record was skipped.
type RecordError struct {
	Kind   Kind   // RecordMalformed, UnknownBook or ReferenceMalformed
	Record string // Key or row position identifying the record
	Reason string // Human-readable detail
	Err    error  // Underlying error, if any
}

func (e *RecordError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("%s: record %s: %s", e.Kind, e.Record, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *RecordError) Unwrap() []error {
	errs := []error{}
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "reference", "flat JSON", "tabular XML")
	Input   string // Offending input, if short enough to be useful
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("failed to parse %s %q: %s", e.Format, e.Input, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "book", "verse")
	ID       string // Identifier of the resource
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrInputUnreadable, e.Err}
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewRecord creates a RecordError
func NewRecord(kind Kind, record, reason string) *RecordError {
	return &RecordError{Kind: kind, Record: record, Reason: reason}
}

// NewReference creates the error returned for an unparseable reference.
func NewReference(input, message string) error {
	return fmt.Errorf("%w: %w", ErrReferenceMalformed, &ParseError{
		Format:  "reference",
		Input:   input,
		Message: message,
	})
}

// NewMalformed creates a fatal InputMalformed error for the named format.
func NewMalformed(format, message string, err error) error {
	return fmt.Errorf("%w: %w", ErrInputMalformed, &ParseError{
		Format:  format,
		Message: message,
		Err:     err,
	})
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// New wraps errors.New for convenience
func New(text string) error {
	return errors.New(text)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join wraps errors.Join for convenience
func Join(errs ...error) error {
	return errors.Join(errs...)
}
