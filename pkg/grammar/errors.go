package grammar

import (
	"errors"
	"fmt"
)

// Grammar errors.
var (
	// ErrUnknownPhase is returned for a phase outside the defined set.
	ErrUnknownPhase = errors.New("grammar: unknown phase")

	// ErrInvalidSchema is returned when a schema resource is inconsistent.
	ErrInvalidSchema = errors.New("grammar: invalid schema")

	// ErrUnknownElement is returned for an element name or code the schema does not declare.
	ErrUnknownElement = errors.New("grammar: unknown element")

	// ErrUnexpectedElement is returned when a declared element appears where the schema does not allow it.
	ErrUnexpectedElement = errors.New("grammar: unexpected element")

	// ErrMissingElement is returned when a required child element is absent.
	ErrMissingElement = errors.New("grammar: missing required element")

	// ErrMissingValue is returned when a simple element has no value.
	ErrMissingValue = errors.New("grammar: missing value")

	// ErrUnexpectedValue is returned for a value inside a complex element or a second value.
	ErrUnexpectedValue = errors.New("grammar: unexpected value")

	// ErrKindMismatch is returned when a value does not match the declared kind.
	ErrKindMismatch = errors.New("grammar: value kind mismatch")

	// ErrInvalidEnumValue is returned for a value outside the declared enumeration.
	ErrInvalidEnumValue = errors.New("grammar: invalid enumeration value")

	// ErrValueTooLong is returned when a string or octet string exceeds its declared maximum length.
	ErrValueTooLong = errors.New("grammar: value exceeds maximum length")

	// ErrIncomplete is returned when the event stream ends before the root element is closed.
	ErrIncomplete = errors.New("grammar: incomplete document")
)

// ValidationError reports where in the document validation failed.
type ValidationError struct {
	Path string // Slash separated element names, empty at document level
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v at %s", e.Err, e.Path)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SchemaBootstrapError is returned when a schema resource cannot be loaded.
// No session can be constructed without both schemas, so callers treat it as fatal.
type SchemaBootstrapError struct {
	Resource string
	Err      error
}

func (e *SchemaBootstrapError) Error() string {
	return fmt.Sprintf("grammar: loading schema %q: %v", e.Resource, e.Err)
}

func (e *SchemaBootstrapError) Unwrap() error {
	return e.Err
}
