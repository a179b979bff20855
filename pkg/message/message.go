package message

import (
	"fmt"

	"github.com/backkem/v2g/pkg/exi"
	"github.com/backkem/v2g/pkg/grammar"
)

// SessionIDSize is the size of the session identifier in the header.
const SessionIDSize = 8

// Envelope element names of the main exchange schema.
const (
	envelopeRoot       = "V2G_Message"
	envelopeHeader     = "Header"
	envelopeBody       = "Body"
	headerSessionID    = "SessionID"
	headerNotification = "Notification"
)

// Message is a decoded protocol message.
type Message struct {
	Type Type

	// SessionID is the header identifier. Unused in the handshake phase.
	SessionID [SessionIDSize]byte

	// Notification is the optional header notification element.
	Notification *exi.Element

	// Body is the message element; its name equals Type.String().
	Body *exi.Element
}

// New returns a message of type t with body children.
func New(t Type, children ...*exi.Element) *Message {
	return &Message{Type: t, Body: exi.NewElement(t.String(), children...)}
}

// Phase returns the phase whose schema governs the message.
func (m *Message) Phase() grammar.Phase {
	return m.Type.Phase()
}

// ResponseCode returns the body's response code, if it has one.
func (m *Message) ResponseCode() (ResponseCode, bool) {
	if m.Body == nil {
		return "", false
	}
	s, ok := m.Body.TextOf("ResponseCode")
	return ResponseCode(s), ok
}

// Equal reports whether two messages have the same content.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Type == o.Type &&
		m.SessionID == o.SessionID &&
		m.Notification.Equal(o.Notification) &&
		m.Body.Equal(o.Body)
}

// String returns a short description for logs.
func (m *Message) String() string {
	if m.Type.Phase() == grammar.PhaseHandshake {
		return m.Type.String()
	}
	return fmt.Sprintf("%s(session=%X)", m.Type, m.SessionID)
}

// Binder converts messages to and from codec event streams.
type Binder struct{}

var _ exi.Binder[*Message] = Binder{}

// MarshalEvents implements exi.Binder.
func (Binder) MarshalEvents(m *Message, phase grammar.Phase) ([]exi.Event, error) {
	if m == nil || m.Body == nil {
		return nil, ErrNoBody
	}
	if !m.Type.IsValid() {
		return nil, ErrUnknownType
	}
	if m.Type.Phase() != phase {
		return nil, fmt.Errorf("%w: %s in %s", ErrPhaseMismatch, m.Type, phase)
	}
	if m.Body.Name != m.Type.String() {
		return nil, fmt.Errorf("%w: %s body for %s", ErrBodyMismatch, m.Body.Name, m.Type)
	}

	if phase == grammar.PhaseHandshake {
		return m.Body.Events(), nil
	}

	header := exi.NewElement(envelopeHeader, exi.Octets(headerSessionID, m.SessionID[:]))
	if m.Notification != nil {
		header.Add(m.Notification)
	}
	root := exi.NewElement(envelopeRoot, header, exi.NewElement(envelopeBody, m.Body))
	return root.Events(), nil
}

// UnmarshalEvents implements exi.Binder.
func (Binder) UnmarshalEvents(events []exi.Event, phase grammar.Phase) (*Message, error) {
	root, err := exi.BuildElement(events)
	if err != nil {
		return nil, err
	}

	if phase == grammar.PhaseHandshake {
		t, err := typeOf(root, phase)
		if err != nil {
			return nil, err
		}
		return &Message{Type: t, Body: root}, nil
	}

	if root.Name != envelopeRoot {
		return nil, fmt.Errorf("%w: root %s", ErrBodyMismatch, root.Name)
	}
	header := root.Child(envelopeHeader)
	body := root.Child(envelopeBody)
	if header == nil || body == nil || len(body.Children) != 1 {
		return nil, ErrNoBody
	}

	m := &Message{Body: body.Children[0]}
	if m.Type, err = typeOf(m.Body, phase); err != nil {
		return nil, err
	}
	id, _ := header.OctetsOf(headerSessionID)
	if len(id) != SessionIDSize {
		return nil, ErrInvalidSessionID
	}
	copy(m.SessionID[:], id)
	m.Notification = header.Child(headerNotification)
	return m, nil
}

func typeOf(e *exi.Element, phase grammar.Phase) (Type, error) {
	t, err := ParseType(e.Name)
	if err != nil {
		return TypeUnknown, fmt.Errorf("%w: %s", err, e.Name)
	}
	if t.Phase() != phase {
		return TypeUnknown, fmt.Errorf("%w: %s in %s", ErrPhaseMismatch, t, phase)
	}
	return t, nil
}

// Codec is the wire codec for protocol messages.
type Codec = exi.Codec[*Message]

// NewCodec creates a message codec. A nil resolver selects the embedded
// default schemas; the binder is always Binder.
func NewCodec(config exi.CodecConfig[*Message]) (*Codec, error) {
	if config.Resolver == nil {
		r, err := grammar.Default()
		if err != nil {
			return nil, err
		}
		config.Resolver = r
	}
	config.Binder = Binder{}
	return exi.NewCodec(config)
}
