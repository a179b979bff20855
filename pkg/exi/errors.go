package exi

import (
	"errors"
	"fmt"

	"github.com/backkem/v2g/pkg/grammar"
)

// Codec errors.
var (
	// ErrInvalidConfig is returned when a codec is built without a resolver or binder.
	ErrInvalidConfig = errors.New("exi: invalid codec config")

	// ErrHeaderTooShort is returned when input is shorter than the header.
	ErrHeaderTooShort = errors.New("exi: header too short")

	// ErrInvalidHeader is returned when the distinguishing bits are wrong.
	ErrInvalidHeader = errors.New("exi: invalid header")

	// ErrUnsupportedVersion is returned for an unknown format version.
	ErrUnsupportedVersion = errors.New("exi: unsupported format version")

	// ErrOptionsMismatch is returned when the encoder used different options.
	ErrOptionsMismatch = errors.New("exi: options mismatch")

	// ErrSchemaMismatch is returned when the encoded schema fingerprint does
	// not match the schema of the requested phase.
	ErrSchemaMismatch = errors.New("exi: schema mismatch")

	// ErrEmptyBody is returned when input holds a header and nothing else.
	ErrEmptyBody = errors.New("exi: empty body")

	// ErrMalformedEvents is returned when an event stream is not well nested.
	ErrMalformedEvents = errors.New("exi: malformed event stream")
)

// EncodeError reports a failure to encode a message for a phase.
type EncodeError struct {
	Phase grammar.Phase
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("exi: encode (%s): %v", e.Phase, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// DecodeError reports bytes that are truncated, malformed or invalid for the
// grammar of a phase.
type DecodeError struct {
	Phase grammar.Phase
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("exi: decode (%s): %v", e.Phase, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
