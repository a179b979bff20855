package grammar

import (
	"embed"
	"fmt"
	"sync"
)

// Embedded schema resource paths.
const (
	HandshakeResource    = "schemas/app_protocol.yaml"
	MainExchangeResource = "schemas/msg_def.yaml"
)

//go:embed schemas/*.yaml
var resources embed.FS

// Resolver maps a phase to its schema. Both schemas are fixed at
// construction and never mutated, so a Resolver is safe for unsynchronized
// concurrent use.
type Resolver struct {
	handshake    *Schema
	mainExchange *Schema
}

// NewResolver creates a resolver over two loaded schemas.
// The schemas must differ so a phase mismatch is detectable on the wire.
func NewResolver(handshake, mainExchange *Schema) (*Resolver, error) {
	if handshake == nil || mainExchange == nil {
		return nil, fmt.Errorf("%w: resolver requires both schemas", ErrInvalidSchema)
	}
	if handshake.Fingerprint() == mainExchange.Fingerprint() {
		return nil, fmt.Errorf("%w: handshake and main exchange schemas share fingerprint %s",
			ErrInvalidSchema, handshake.Fingerprint())
	}
	return &Resolver{handshake: handshake, mainExchange: mainExchange}, nil
}

// LoadResolver loads both schemas from raw resources.
// Failures are reported as *SchemaBootstrapError.
func LoadResolver(handshake, mainExchange []byte) (*Resolver, error) {
	hs, err := Load(handshake)
	if err != nil {
		return nil, &SchemaBootstrapError{Resource: "handshake", Err: err}
	}
	me, err := Load(mainExchange)
	if err != nil {
		return nil, &SchemaBootstrapError{Resource: "main exchange", Err: err}
	}
	r, err := NewResolver(hs, me)
	if err != nil {
		return nil, &SchemaBootstrapError{Resource: "resolver", Err: err}
	}
	return r, nil
}

// LoadDefault loads the embedded schemas.
func LoadDefault() (*Resolver, error) {
	hs, err := resources.ReadFile(HandshakeResource)
	if err != nil {
		return nil, &SchemaBootstrapError{Resource: HandshakeResource, Err: err}
	}
	me, err := resources.ReadFile(MainExchangeResource)
	if err != nil {
		return nil, &SchemaBootstrapError{Resource: MainExchangeResource, Err: err}
	}
	return LoadResolver(hs, me)
}

var defaultResolver = sync.OnceValues(LoadDefault)

// Default returns the process-wide resolver over the embedded schemas.
// It is loaded on first use and shared thereafter.
func Default() (*Resolver, error) {
	return defaultResolver()
}

// MustDefault is like Default but panics if the embedded schemas cannot be
// loaded. Use it at process bootstrap.
func MustDefault() *Resolver {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the schema for a phase.
func (r *Resolver) Resolve(p Phase) (*Schema, error) {
	switch p {
	case PhaseHandshake:
		return r.handshake, nil
	case PhaseMainExchange:
		return r.mainExchange, nil
	default:
		return nil, ErrUnknownPhase
	}
}

// Cache builds a grammar cache for one encode or decode call.
func (r *Resolver) Cache(p Phase, options Options) (*Cache, error) {
	s, err := r.Resolve(p)
	if err != nil {
		return nil, err
	}
	return NewCache(s, options), nil
}
