package session

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/backkem/v2g/pkg/grammar"
	"github.com/backkem/v2g/pkg/message"
	"github.com/pion/logging"
)

// Config configures a Session.
type Config struct {
	// Registry maps (state, message type) to handlers. Required.
	// It is sealed when the session is created.
	Registry *Registry

	// StartState is the initial state (default: StateStart).
	StartState State

	// Codec encodes and decodes wire messages. Required for HandleWire
	// and Send; Dispatch works without it.
	Codec *message.Codec

	// Secure reports whether the transport below is authenticated and
	// encrypted. Informational for handlers.
	Secure bool

	// PreviousID is the identifier of the preceding session in this
	// process. GenerateID never returns it.
	PreviousID ID

	// Rand is the identifier source (default: crypto/rand).
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// onAssign is called with s.mu held whenever an identifier is assigned.
	onAssign func(ID)
}

// Session is one conversation. A session is driven by a single goroutine,
// typically the owner of its transport connection; Terminate may be called
// from any goroutine and waits for an in-flight dispatch to commit.
type Session struct {
	registry *Registry
	codec    *message.Codec
	channel  *Channel
	rand     io.Reader
	secure   bool
	start    State
	onAssign func(ID)
	log      logging.LeveledLogger

	// idValue mirrors id for lock-free reads from other goroutines.
	idValue atomic.Uint64

	mu       sync.Mutex
	id       ID
	previous ID
	phase    grammar.Phase
	current  State
	status   Status
}

// New creates a session in its start state with the never-assigned
// identifier and the handshake phase.
func New(config Config) (*Session, error) {
	if config.Registry == nil {
		return nil, ErrNoRegistry
	}
	if config.StartState == stateInvalid {
		config.StartState = StateStart
	}
	if !config.StartState.IsValid() || config.StartState.IsTerminal() {
		return nil, fmt.Errorf("%w: start state %s", ErrInvalidState, config.StartState)
	}
	config.Registry.Seal()

	s := &Session{
		registry: config.Registry,
		codec:    config.Codec,
		rand:     config.Rand,
		secure:   config.Secure,
		start:    config.StartState,
		previous: config.PreviousID,
		onAssign: config.onAssign,
		phase:    grammar.PhaseHandshake,
		current:  config.StartState,
		status:   StatusActive,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("session")
	}
	s.channel = NewChannel(s.log)
	return s, nil
}

// ID returns the session identifier; zero until one is assigned.
func (s *Session) ID() ID {
	return IDFromValue(s.idValue.Load())
}

// GenerateID assigns a fresh random identifier that is neither zero nor
// equal to the previous one.
func (s *Session) GenerateID() (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generateID()
}

func (s *Session) generateID() (ID, error) {
	previous := s.previous
	if !s.id.IsZero() {
		previous = s.id
	}
	id, err := GenerateID(s.rand, previous)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("session ID generation failed: %v", err)
		}
		return ID{}, err
	}
	s.assign(id)
	if s.log != nil {
		s.log.Infof("generated session ID %s", id)
	}
	return id, nil
}

// ResumeID assigns a previously issued identifier.
func (s *Session) ResumeID(v uint64) ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeID(v)
}

func (s *Session) resumeID(v uint64) ID {
	id := IDFromValue(v)
	s.assign(id)
	if s.log != nil {
		s.log.Infof("resumed session ID %s", id)
	}
	return id
}

// SetID assigns an identifier received from the peer. A nil, empty or
// all-zero b leaves the never-assigned sentinel and returns ErrNilSessionID
// so the caller notices the substitution.
func (s *Session) SetID(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setID(b)
}

func (s *Session) setID(b []byte) error {
	if len(b) == 0 {
		s.assign(IDFromValue(0))
		if s.log != nil {
			s.log.Warn("nil session ID replaced by sentinel")
		}
		return ErrNilSessionID
	}
	id, err := IDFromBytes(b)
	if err != nil {
		return err
	}
	s.assign(id)
	if id.IsZero() {
		if s.log != nil {
			s.log.Warn("peer assigned the never-assigned session ID")
		}
		return ErrNilSessionID
	}
	return nil
}

func (s *Session) assign(id ID) {
	if !s.id.IsZero() && s.id != id {
		s.previous = s.id
	}
	s.id = id
	s.idValue.Store(id.Value())
	if s.onAssign != nil {
		s.onAssign(id)
	}
}

// Phase returns the active codec phase.
func (s *Session) Phase() grammar.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// AdvancePhase switches to p. Phases never go backwards.
func (s *Session) AdvancePhase(p grammar.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advancePhase(p)
}

func (s *Session) advancePhase(p grammar.Phase) error {
	if !p.IsValid() {
		return grammar.ErrUnknownPhase
	}
	if p < s.phase {
		return ErrPhaseRegression
	}
	if p != s.phase && s.log != nil {
		s.log.Debugf("session %s phase %s -> %s", s.id, s.phase, p)
	}
	s.phase = p
	return nil
}

// Secure reports whether the transport is treated as secure.
func (s *Session) Secure() bool {
	return s.secure
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// StartState returns the initial state.
func (s *Session) StartState() State {
	return s.start
}

// Status returns the lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Registry returns the session's sealed registry.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Subscribe registers a listener for pause and terminate events and
// returns a function that removes it.
func (s *Session) Subscribe(l Listener) (unsubscribe func()) {
	return s.channel.Subscribe(l)
}

// Dispatch routes a decoded message to the handler registered for the
// current state and commits the outcome. Pause and terminate events are
// delivered after the commit.
//
// Dispatch returns ErrInvalidState when the session is paused or
// terminated, an *UnexpectedMessageError when no handler matches,
// ErrPhaseRegression when the outcome asks for an earlier phase and
// ErrHandlerPanic when the handler panics. In every case the session is
// unchanged. Callers convert recoverable
// failures into Terminate.
func (s *Session) Dispatch(msg *message.Message) (Outcome, error) {
	s.mu.Lock()
	out, err := s.dispatch(msg)
	if err != nil {
		s.mu.Unlock()
		return Outcome{}, err
	}
	s.commit(out)
	if p, ok := out.Phase(); ok {
		// checked by dispatch
		_ = s.advancePhase(p)
	}
	ev := s.event(out)
	s.mu.Unlock()

	s.deliver(ev)
	return out, nil
}

// dispatch runs the handler with s.mu held.
func (s *Session) dispatch(msg *message.Message) (Outcome, error) {
	if s.status != StatusActive {
		return Outcome{}, fmt.Errorf("%w: dispatch while %s", ErrInvalidState, s.status)
	}
	if msg == nil {
		return Outcome{}, fmt.Errorf("%w: nil message", message.ErrNoBody)
	}

	h, ok := s.registry.Lookup(s.current, msg.Type)
	if !ok {
		return Outcome{}, &UnexpectedMessageError{State: s.current, Type: msg.Type}
	}

	if s.log != nil {
		s.log.Tracef("session %s dispatch %s in %s", s.id, msg.Type, s.current)
	}
	out, err := s.handle(h, msg)
	if err != nil {
		return Outcome{}, err
	}
	if err := out.validate(); err != nil {
		return Outcome{}, err
	}
	if p, ok := out.Phase(); ok && p < s.phase {
		return Outcome{}, fmt.Errorf("%w: %s -> %s", ErrPhaseRegression, s.phase, p)
	}
	return out, nil
}

// handle runs h and converts a panic into ErrHandlerPanic so s.mu is
// released by the caller.
func (s *Session) handle(h Handler, msg *message.Message) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			if s.log != nil {
				s.log.Errorf("session %s handler for %s panicked: %v", s.id, msg.Type, r)
			}
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h.Handle(&Context{s: s}, msg)
}

// commit applies a validated outcome with s.mu held.
func (s *Session) commit(out Outcome) {
	switch out.directive {
	case DirectiveNextState:
		if s.log != nil {
			s.log.Debugf("session %s state %s -> %s", s.id, s.current, out.next)
		}
		s.current = out.next
	case DirectivePause:
		s.status = StatusPaused
		if s.log != nil {
			s.log.Infof("session %s paused in %s", s.id, s.current)
		}
	case DirectiveTerminate:
		s.current = StateTerminated
		s.status = StatusTerminated
		if s.log != nil {
			if out.ok {
				s.log.Infof("session %s terminated: %s", s.id, out.reason)
			} else {
				s.log.Warnf("session %s terminated: %s", s.id, out.reason)
			}
		}
	}
	if out.outgoing != nil && out.outgoing.Type.Phase() == grammar.PhaseMainExchange {
		out.outgoing.SessionID = s.id
	}
}

// pendingEvent is the notification owed after a commit.
type pendingEvent struct {
	pause     *PauseEvent
	terminate *TerminationEvent
}

func (s *Session) event(out Outcome) pendingEvent {
	switch out.directive {
	case DirectivePause:
		return pendingEvent{pause: &PauseEvent{SessionID: s.id, Token: out.token}}
	case DirectiveTerminate:
		return pendingEvent{terminate: &TerminationEvent{SessionID: s.id, Reason: out.reason, Successful: out.ok}}
	}
	return pendingEvent{}
}

// deliver notifies listeners without holding s.mu.
func (s *Session) deliver(ev pendingEvent) {
	if ev.pause != nil {
		_ = s.channel.NotifyPause(*ev.pause)
	}
	if ev.terminate != nil {
		_ = s.channel.NotifyTerminate(*ev.terminate)
	}
}

// HandleWire decodes data with the active phase, dispatches it and encodes
// the outgoing message, if any. Decode, dispatch and encode failures end
// the session with Terminate(successful=false) and are returned; the
// session is terminated when the error is not ErrInvalidState.
func (s *Session) HandleWire(data []byte) ([]byte, error) {
	if s.codec == nil {
		return nil, ErrNoCodec
	}

	s.mu.Lock()
	if s.status != StatusActive {
		status := s.status
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: receive while %s", ErrInvalidState, status)
	}

	out, committed, reply, err := s.handleWire(data)
	if err != nil {
		// A terminate outcome whose reply failed to encode still ends
		// with its own event; anything else becomes a failed termination.
		var ev pendingEvent
		if committed && out.directive == DirectiveTerminate {
			ev = s.event(out)
		} else {
			ev = s.fail(err)
		}
		s.mu.Unlock()
		s.deliver(ev)
		return nil, err
	}
	ev := s.event(out)
	s.mu.Unlock()

	s.deliver(ev)
	return reply, nil
}

func (s *Session) handleWire(data []byte) (out Outcome, committed bool, reply []byte, err error) {
	msg, err := s.codec.Decode(data, s.phase)
	if err != nil {
		return Outcome{}, false, nil, err
	}
	if out, err = s.dispatch(msg); err != nil {
		return Outcome{}, false, nil, err
	}

	// The outgoing message is stamped during commit and encoded with the
	// phase active before any switch the outcome requests.
	s.commit(out)
	if out.outgoing != nil {
		if reply, err = s.encode(out.outgoing); err != nil {
			return out, true, nil, err
		}
	}
	if p, ok := out.Phase(); ok {
		if err = s.advancePhase(p); err != nil {
			return out, true, nil, err
		}
	}
	return out, true, reply, nil
}

// Send encodes an initiator message with the active phase and the session
// identifier.
func (s *Session) Send(msg *message.Message) ([]byte, error) {
	if s.codec == nil {
		return nil, ErrNoCodec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return nil, fmt.Errorf("%w: send while %s", ErrInvalidState, s.status)
	}
	if msg.Type.Phase() == grammar.PhaseMainExchange {
		msg.SessionID = s.id
	}
	return s.encode(msg)
}

func (s *Session) encode(msg *message.Message) ([]byte, error) {
	if !msg.Type.AllowsUnassignedSession() && s.id.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrUnassignedSession, msg.Type)
	}
	return s.codec.Encode(msg, s.phase)
}

// fail converts a recoverable failure into Terminate(successful=false)
// with s.mu held.
func (s *Session) fail(err error) pendingEvent {
	out := Terminate(err.Error(), false)
	s.commit(out)
	return s.event(out)
}

// Terminate ends the session from outside normal message handling, for
// example on transport failure. It waits for an in-flight dispatch to
// commit. A paused session may be terminated; a terminated one returns
// ErrInvalidState and no second event is delivered.
func (s *Session) Terminate(reason string, successful bool) error {
	s.mu.Lock()
	if s.status == StatusTerminated {
		s.mu.Unlock()
		return fmt.Errorf("%w: already terminated", ErrInvalidState)
	}
	out := Terminate(reason, successful)
	s.commit(out)
	ev := s.event(out)
	s.mu.Unlock()

	s.deliver(ev)
	return nil
}

// Resume reactivates a paused session in the state it paused in.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPaused {
		return fmt.Errorf("%w: resume while %s", ErrInvalidState, s.status)
	}
	s.status = StatusActive
	if s.log != nil {
		s.log.Infof("session %s resumed in %s", s.id, s.current)
	}
	return nil
}

// Context is the view of a session passed to handlers. Its methods act on
// the session directly; the session lock is already held.
type Context struct {
	s *Session
}

// ID returns the session identifier.
func (c *Context) ID() ID { return c.s.id }

// State returns the state the message arrived in.
func (c *Context) State() State { return c.s.current }

// Phase returns the active phase.
func (c *Context) Phase() grammar.Phase { return c.s.phase }

// Secure reports whether the transport is treated as secure.
func (c *Context) Secure() bool { return c.s.secure }

// GenerateID assigns a fresh identifier.
func (c *Context) GenerateID() (ID, error) { return c.s.generateID() }

// ResumeID assigns a previously issued identifier.
func (c *Context) ResumeID(v uint64) ID { return c.s.resumeID(v) }

// SetID assigns an identifier received from the peer.
func (c *Context) SetID(b []byte) error { return c.s.setID(b) }

// AdvancePhase switches phase immediately, so an outgoing message of the
// same outcome is encoded with the new phase.
func (c *Context) AdvancePhase(p grammar.Phase) error { return c.s.advancePhase(p) }
