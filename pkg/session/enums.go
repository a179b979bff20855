// Package session implements the per-conversation state machine.
//
// A Session holds the conversation's 8-byte identity, its active codec
// phase, and its current protocol state. Decoded messages are dispatched
// through a Registry keyed by (current state, message type); the matching
// Handler returns an Outcome that either moves to a next state, pauses the
// conversation, or terminates it. Pause and terminate events are delivered
// to subscribed listeners through a Channel exactly once per occurrence.
//
// The package manages:
//   - ID: session identifier generation and the never-assigned sentinel
//   - Registry: the (state, message type) to handler table
//   - Session: dispatch, wire handling and termination
//   - Manager: the table of live and paused sessions
package session

import (
	"fmt"
	"sync"
)

// State is a named conversation step. The set of states is closed once
// registries are built; protocol packages declare their states with
// DefineState at init time.
type State uint16

const (
	stateInvalid State = iota

	// StateStart is the default initial state.
	StateStart

	// StatePaused marks a conversation suspended for later resumption.
	StatePaused

	// StateTerminated is entered when the conversation ends.
	StateTerminated
)

var (
	stateMu    sync.RWMutex
	stateNames = []string{"Invalid", "Start", "Paused", "Terminated"}
)

// DefineState declares a protocol state and returns it.
func DefineState(name string) State {
	stateMu.Lock()
	defer stateMu.Unlock()
	stateNames = append(stateNames, name)
	return State(len(stateNames) - 1)
}

// String returns the state name.
func (s State) String() string {
	stateMu.RLock()
	defer stateMu.RUnlock()
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint16(s))
}

// IsValid returns true if the state has been declared.
func (s State) IsValid() bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return s != stateInvalid && int(s) < len(stateNames)
}

// IsTerminal returns true for states that refuse further dispatch.
func (s State) IsTerminal() bool {
	return s == StatePaused || s == StateTerminated
}

// Status is the lifecycle status of a session.
type Status int

const (
	// StatusActive accepts dispatch.
	StatusActive Status = iota

	// StatusPaused keeps the current state for resumption.
	StatusPaused

	// StatusTerminated is final.
	StatusTerminated
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusPaused:
		return "Paused"
	case StatusTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Directive is the category of a dispatch outcome.
type Directive int

const (
	// DirectiveNextState commits a new current state.
	DirectiveNextState Directive = iota + 1

	// DirectivePause suspends the conversation.
	DirectivePause

	// DirectiveTerminate ends the conversation.
	DirectiveTerminate
)

// String returns a human-readable name for the directive.
func (d Directive) String() string {
	switch d {
	case DirectiveNextState:
		return "NextState"
	case DirectivePause:
		return "Pause"
	case DirectiveTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}
