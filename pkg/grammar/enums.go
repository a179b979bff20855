// Package grammar holds the schemas that govern the wire encoding of each
// protocol phase.
//
// Two schemas are loaded once at bootstrap: the handshake schema, which
// covers application protocol negotiation, and the main exchange schema,
// which covers every message after it. Schemas are immutable after loading
// and safe for concurrent use. A Cache pairs a schema with codec options and
// is created per encode or decode call; its Validator checks an element
// event stream against the schema structure.
package grammar

// Phase selects which schema is active.
type Phase int

const (
	// PhaseHandshake covers supported application protocol negotiation.
	PhaseHandshake Phase = iota

	// PhaseMainExchange covers every message after the handshake.
	PhaseMainExchange
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseHandshake:
		return "Handshake"
	case PhaseMainExchange:
		return "MainExchange"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the phase is a defined value.
func (p Phase) IsValid() bool {
	return p == PhaseHandshake || p == PhaseMainExchange
}

// ParsePhase parses the short phase names used in configuration and CLI flags.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "handshake", "Handshake":
		return PhaseHandshake, nil
	case "main", "MainExchange", "main-exchange":
		return PhaseMainExchange, nil
	default:
		return 0, ErrUnknownPhase
	}
}

// Options is the fixed option set shared by encoder and decoder.
// It is written into every encoded header and must match on decode.
type Options uint8

const (
	// OptionLax skips child order and occurrence bound checks. Membership
	// of each child in its parent is still enforced.
	OptionLax Options = 1 << iota
)

// DefaultOptions is the option set used when none is configured.
const DefaultOptions Options = 0

// Has returns true if all bits of o2 are set.
func (o Options) Has(o2 Options) bool {
	return o&o2 == o2
}

// Kind is the content model of an element declaration.
type Kind int

const (
	KindComplex Kind = iota // Child elements, no value
	KindString              // UTF-8 text
	KindBytes               // Octet string
	KindUint                // Unsigned integer
	KindInt                 // Signed integer
	KindBool                // Boolean
	KindEnum                // One of a declared list of strings
)

// String returns the name used for the kind in schema resources.
func (k Kind) String() string {
	switch k {
	case KindComplex:
		return "complex"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

func parseKind(s string) (Kind, bool) {
	for k := KindComplex; k <= KindEnum; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}
