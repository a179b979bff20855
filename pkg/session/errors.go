package session

import (
	"errors"
	"fmt"

	"github.com/backkem/v2g/pkg/message"
)

// Session package errors.
var (
	// ErrInvalidState is returned when a paused or terminated session is
	// asked to dispatch, or a terminated session is terminated again.
	ErrInvalidState = errors.New("session: invalid state for operation")

	// ErrUnexpectedMessage is returned when no handler is registered for
	// the current state and message type.
	ErrUnexpectedMessage = errors.New("session: unexpected message")

	// ErrInvalidSessionID is returned for identifiers that are not 8 bytes.
	ErrInvalidSessionID = errors.New("session: invalid session ID")

	// ErrNilSessionID is returned when an absent or all-zero identifier
	// is assigned.
	// The session holds the never-assigned sentinel afterwards.
	ErrNilSessionID = errors.New("session: nil session ID replaced by sentinel")

	// ErrUnassignedSession is returned when a message that needs an
	// identifier is sent before one was generated or loaded.
	ErrUnassignedSession = errors.New("session: no session ID assigned")

	// ErrIDGeneration is returned when the random source cannot produce an
	// acceptable identifier.
	ErrIDGeneration = errors.New("session: session ID generation failed")

	// ErrPhaseRegression is returned when a phase change would go backwards.
	ErrPhaseRegression = errors.New("session: phase cannot be reverted")

	// ErrHandlerPanic is returned when a state handler panics.
	ErrHandlerPanic = errors.New("session: handler panic")

	// ErrNoCodec is returned by wire operations on a session without a codec.
	ErrNoCodec = errors.New("session: no codec configured")

	// ErrNoRegistry is returned when a session is created without a registry.
	ErrNoRegistry = errors.New("session: no registry")

	// ErrRegistrySealed is returned when a handler is registered after a
	// session started using the registry.
	ErrRegistrySealed = errors.New("session: registry sealed")

	// ErrDuplicateHandler is returned when a (state, type) pair is registered twice.
	ErrDuplicateHandler = errors.New("session: duplicate handler")

	// ErrInvalidRegistration is returned for undeclared states, unknown
	// message types or nil handlers.
	ErrInvalidRegistration = errors.New("session: invalid registration")

	// ErrInvalidOutcome is returned when a handler returns an outcome
	// without a directive or with an undeclared next state.
	ErrInvalidOutcome = errors.New("session: invalid outcome")

	// ErrSessionNotFound is returned when a manager lookup fails.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrSessionTableFull is returned when no more sessions can be tracked.
	ErrSessionTableFull = errors.New("session: session table full")
)

// UnexpectedMessageError reports a message type with no registry entry for
// the current state. It is a protocol violation by the peer.
type UnexpectedMessageError struct {
	State State
	Type  message.Type
}

func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("session: unexpected message %s in state %s", e.Type, e.State)
}

// Is matches ErrUnexpectedMessage.
func (e *UnexpectedMessageError) Is(target error) bool {
	return target == ErrUnexpectedMessage
}
