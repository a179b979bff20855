package session

import (
	"github.com/backkem/v2g/pkg/grammar"
	"github.com/backkem/v2g/pkg/message"
)

// PauseEvent is delivered once when a conversation pauses.
type PauseEvent struct {
	SessionID ID

	// Token is the opaque resumption token.
	Token string
}

// TerminationEvent is delivered once when a conversation ends.
type TerminationEvent struct {
	SessionID  ID
	Reason     string
	Successful bool
}

// Outcome is the result of handling one message.
type Outcome struct {
	directive Directive
	next      State
	outgoing  *message.Message
	token     string
	reason    string
	ok        bool
	phase     grammar.Phase
	setPhase  bool
}

// NextState moves the conversation to s. out is the optional message to
// send; the state is committed before out is encoded.
func NextState(s State, out *message.Message) Outcome {
	return Outcome{directive: DirectiveNextState, next: s, outgoing: out}
}

// Pause suspends the conversation, keeping the current state.
func Pause(token string) Outcome {
	return Outcome{directive: DirectivePause, token: token}
}

// Terminate ends the conversation.
func Terminate(reason string, successful bool) Outcome {
	return Outcome{directive: DirectiveTerminate, reason: reason, ok: successful}
}

// Reply attaches a final message to a Pause or Terminate outcome.
func (o Outcome) Reply(out *message.Message) Outcome {
	o.outgoing = out
	return o
}

// WithPhase switches the session phase once the outgoing message, if any,
// has been encoded with the old phase.
func (o Outcome) WithPhase(p grammar.Phase) Outcome {
	o.phase = p
	o.setPhase = true
	return o
}

// Directive returns the outcome category.
func (o Outcome) Directive() Directive {
	return o.directive
}

// Next returns the committed state of a NextState outcome.
func (o Outcome) Next() State {
	return o.next
}

// Outgoing returns the message to send, or nil.
func (o Outcome) Outgoing() *message.Message {
	return o.outgoing
}

// Token returns the resumption token of a Pause outcome.
func (o Outcome) Token() string {
	return o.token
}

// Reason returns the reason of a Terminate outcome.
func (o Outcome) Reason() string {
	return o.reason
}

// Successful returns the success flag of a Terminate outcome.
func (o Outcome) Successful() bool {
	return o.ok
}

// Phase returns the requested phase switch.
func (o Outcome) Phase() (grammar.Phase, bool) {
	return o.phase, o.setPhase
}

func (o Outcome) validate() error {
	switch o.directive {
	case DirectiveNextState:
		if !o.next.IsValid() || o.next.IsTerminal() {
			return ErrInvalidOutcome
		}
	case DirectivePause, DirectiveTerminate:
	default:
		return ErrInvalidOutcome
	}
	if o.setPhase && !o.phase.IsValid() {
		return ErrInvalidOutcome
	}
	return nil
}
