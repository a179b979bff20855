package session

import (
	"fmt"
	"sync"

	"github.com/backkem/v2g/pkg/message"
)

// Handler handles one message type in one state.
type Handler interface {
	Handle(ctx *Context, msg *message.Message) (Outcome, error)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx *Context, msg *message.Message) (Outcome, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx *Context, msg *message.Message) (Outcome, error) {
	return f(ctx, msg)
}

type registryKey struct {
	state State
	typ   message.Type
}

// Registry maps (state, incoming message type) to the handler that
// produces the next state. It is filled during setup and sealed when the
// first session using it is created; afterwards it is read-only and may be
// shared by any number of sessions.
type Registry struct {
	handlers map[registryKey]Handler

	mu     sync.RWMutex
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[registryKey]Handler)}
}

// Register adds the handler for messages of type t received in state.
func (r *Registry) Register(state State, t message.Type, h Handler) error {
	if !state.IsValid() || state.IsTerminal() || !t.IsValid() || h == nil {
		return fmt.Errorf("%w: %s/%s", ErrInvalidRegistration, state, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	k := registryKey{state, t}
	if _, exists := r.handlers[k]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateHandler, state, t)
	}
	r.handlers[k] = h
	return nil
}

// RegisterFunc is Register with a HandlerFunc.
func (r *Registry) RegisterFunc(state State, t message.Type, f func(*Context, *message.Message) (Outcome, error)) error {
	return r.Register(state, t, HandlerFunc(f))
}

// Lookup returns the handler for (state, t).
func (r *Registry) Lookup(state State, t message.Type) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[registryKey{state, t}]
	return h, ok
}

// Expected returns the message types accepted in state.
func (r *Registry) Expected(state State) []message.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []message.Type
	for _, t := range message.Types() {
		if _, ok := r.handlers[registryKey{state, t}]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed returns true once the registry is frozen.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
