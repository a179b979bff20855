package message

import "errors"

// Message layer errors.
var (
	// ErrUnknownType is returned for a name outside the closed message set.
	ErrUnknownType = errors.New("message: unknown message type")

	// ErrPhaseMismatch is returned when a message is bound for the wrong phase.
	ErrPhaseMismatch = errors.New("message: type not valid in phase")

	// ErrBodyMismatch is returned when the body element does not match the type.
	ErrBodyMismatch = errors.New("message: body does not match type")

	// ErrNoBody is returned for a message without a body element.
	ErrNoBody = errors.New("message: missing body")

	// ErrInvalidSessionID is returned when a header does not carry 8 bytes.
	ErrInvalidSessionID = errors.New("message: invalid session id length")
)
