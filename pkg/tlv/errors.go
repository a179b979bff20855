package tlv

import "errors"

var (
	// ErrInvalidElementType is returned when an invalid element type is encountered.
	ErrInvalidElementType = errors.New("tlv: invalid element type")

	// ErrTypeMismatch is returned when trying to read a value as the wrong type.
	ErrTypeMismatch = errors.New("tlv: type mismatch")

	// ErrNotInElement is returned when an end marker appears outside an open element.
	ErrNotInElement = errors.New("tlv: end marker outside element")

	// ErrElementNotClosed is returned when input ends with open elements.
	ErrElementNotClosed = errors.New("tlv: element not closed")

	// ErrInvalidUTF8 is returned when a string contains invalid UTF-8 sequences.
	ErrInvalidUTF8 = errors.New("tlv: invalid UTF-8 string")

	// ErrNoElement is returned when trying to access an element before calling Next().
	ErrNoElement = errors.New("tlv: no current element")

	// ErrValueTooLong is returned when a length prefix exceeds MaxValueLength.
	ErrValueTooLong = errors.New("tlv: value too long")

	// ErrOverflow is returned when a varint overflows 64 bits.
	ErrOverflow = errors.New("tlv: varint overflow")

	// ErrInvalidTag is returned for the reserved tag 0.
	ErrInvalidTag = errors.New("tlv: invalid tag")
)
