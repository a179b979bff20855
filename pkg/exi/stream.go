package exi

import (
	"bytes"
	"fmt"
	"io"

	"github.com/backkem/v2g/pkg/grammar"
	"github.com/backkem/v2g/pkg/tlv"
)

// Serialize validates an event stream against the cache and writes header
// and body. It is the transform below the marshal boundary; most callers use
// Codec instead.
func Serialize(cache *grammar.Cache, events []Event) ([]byte, error) {
	var buf bytes.Buffer
	var hdr [HeaderSize]byte
	h := Header{
		Version:     FormatVersion,
		Options:     cache.Options(),
		Fingerprint: cache.Schema().Fingerprint(),
	}
	h.EncodeTo(hdr[:])
	buf.Write(hdr[:])

	w := tlv.NewWriter(&buf)
	v := cache.NewValidator()

	// Simple elements are written once their value is known.
	var pending *grammar.Element
	for i, ev := range events {
		switch ev.Kind {
		case EventStartElement:
			if pending != nil {
				// Let the validator report the misplaced child.
				if _, err := v.Start(ev.Name); err != nil {
					return nil, err
				}
				return nil, fmt.Errorf("%w: element inside %s", ErrMalformedEvents, pending.Name)
			}
			decl, err := v.Start(ev.Name)
			if err != nil {
				return nil, err
			}
			if decl.Kind == grammar.KindComplex {
				if err := w.StartElement(tlv.Tag(decl.Code)); err != nil {
					return nil, err
				}
			} else {
				pending = decl
			}

		case EventValue:
			if err := v.Value(ev.Value); err != nil {
				return nil, err
			}
			if pending == nil {
				return nil, fmt.Errorf("%w: value at event %d", ErrMalformedEvents, i)
			}
			if err := writeValue(w, pending, ev.Value); err != nil {
				return nil, err
			}

		case EventEndElement:
			if err := v.End(); err != nil {
				return nil, err
			}
			if pending != nil {
				pending = nil
				continue
			}
			if err := w.EndElement(); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%w: unknown event kind %d", ErrMalformedEvents, ev.Kind)
		}
	}

	if err := v.Finish(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeValue writes a simple element. The validator has already checked the
// value against decl.
func writeValue(w *tlv.Writer, decl *grammar.Element, val any) error {
	tag := tlv.Tag(decl.Code)
	switch decl.Kind {
	case grammar.KindString:
		return w.PutString(tag, val.(string))
	case grammar.KindEnum:
		i, _ := decl.EnumIndex(val.(string))
		return w.PutEnum(tag, uint64(i))
	case grammar.KindBytes:
		return w.PutBytes(tag, val.([]byte))
	case grammar.KindUint:
		return w.PutUint(tag, val.(uint64))
	case grammar.KindInt:
		return w.PutInt(tag, val.(int64))
	case grammar.KindBool:
		return w.PutBool(tag, val.(bool))
	default:
		return fmt.Errorf("%w: %s", grammar.ErrKindMismatch, decl.Kind)
	}
}

// Deserialize checks the header against the cache and reads the body back
// into an event stream, validating it on the way.
func Deserialize(cache *grammar.Cache, data []byte) ([]Event, error) {
	var h Header
	n, err := h.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := h.check(cache); err != nil {
		return nil, err
	}
	if len(data) == n {
		return nil, ErrEmptyBody
	}

	r := tlv.NewReader(bytes.NewReader(data[n:]))
	v := cache.NewValidator()
	var events []Event

	for {
		if err := r.Next(); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		if r.Type() == tlv.ElementTypeEnd {
			if err := v.End(); err != nil {
				return nil, err
			}
			events = append(events, EndElement())
			continue
		}

		decl, err := v.StartCode(uint32(r.Tag()))
		if err != nil {
			return nil, err
		}

		if r.Type() == tlv.ElementTypeStart {
			if decl.Kind != grammar.KindComplex {
				return nil, fmt.Errorf("%w: %s encoded as complex", grammar.ErrKindMismatch, decl.Name)
			}
			events = append(events, StartElement(decl.Name))
			continue
		}

		val, err := readValue(r, decl)
		if err != nil {
			return nil, err
		}
		if err := v.Value(val); err != nil {
			return nil, err
		}
		if err := v.End(); err != nil {
			return nil, err
		}
		events = append(events, StartElement(decl.Name), Value(val), EndElement())
	}

	if err := v.Finish(); err != nil {
		return nil, err
	}
	return events, nil
}

// readValue reads the current simple element as the Go value for decl.
func readValue(r *tlv.Reader, decl *grammar.Element) (any, error) {
	mismatch := func() error {
		return fmt.Errorf("%w: %s encoded as %s", grammar.ErrKindMismatch, decl.Name, r.Type())
	}

	switch decl.Kind {
	case grammar.KindString:
		s, err := r.String()
		if err != nil {
			return nil, mismatch()
		}
		return s, nil
	case grammar.KindEnum:
		i, err := r.Enum()
		if err != nil {
			return nil, mismatch()
		}
		s, ok := decl.EnumValue(i)
		if !ok {
			return nil, fmt.Errorf("%w: index %d for %s", grammar.ErrInvalidEnumValue, i, decl.Name)
		}
		return s, nil
	case grammar.KindBytes:
		b, err := r.Bytes()
		if err != nil {
			return nil, mismatch()
		}
		return b, nil
	case grammar.KindUint:
		u, err := r.Uint()
		if err != nil {
			return nil, mismatch()
		}
		return u, nil
	case grammar.KindInt:
		i, err := r.Int()
		if err != nil {
			return nil, mismatch()
		}
		return i, nil
	case grammar.KindBool:
		b, err := r.Bool()
		if err != nil {
			return nil, mismatch()
		}
		return b, nil
	default:
		return nil, mismatch()
	}
}
