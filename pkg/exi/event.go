package exi

import (
	"bytes"
	"fmt"
)

// EventKind identifies a syntactic event.
type EventKind int

const (
	EventStartElement EventKind = iota + 1
	EventValue
	EventEndElement
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventStartElement:
		return "StartElement"
	case EventValue:
		return "Value"
	case EventEndElement:
		return "EndElement"
	default:
		return "Unknown"
	}
}

// Event is one item of the stream the codec consumes and produces.
// Values are string, []byte, uint64, int64 or bool; enumeration values are
// carried as their string form.
type Event struct {
	Kind  EventKind
	Name  string // StartElement only
	Value any    // Value only
}

// StartElement returns a start event.
func StartElement(name string) Event {
	return Event{Kind: EventStartElement, Name: name}
}

// Value returns a value event.
func Value(v any) Event {
	return Event{Kind: EventValue, Value: v}
}

// EndElement returns an end event.
func EndElement() Event {
	return Event{Kind: EventEndElement}
}

// Element is a document node. Simple elements hold a Value and no children;
// complex elements hold children and a nil Value.
type Element struct {
	Name     string
	Value    any
	Children []*Element
}

// NewElement returns a complex element.
func NewElement(name string, children ...*Element) *Element {
	return &Element{Name: name, Children: children}
}

// Text returns a string or enumeration element.
func Text(name, v string) *Element {
	return &Element{Name: name, Value: v}
}

// Octets returns an octet string element.
func Octets(name string, v []byte) *Element {
	return &Element{Name: name, Value: v}
}

// Uint returns an unsigned integer element.
func Uint(name string, v uint64) *Element {
	return &Element{Name: name, Value: v}
}

// Int returns a signed integer element.
func Int(name string, v int64) *Element {
	return &Element{Name: name, Value: v}
}

// Bool returns a boolean element.
func Bool(name string, v bool) *Element {
	return &Element{Name: name, Value: v}
}

// Add appends children and returns e.
func (e *Element) Add(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Child returns the first child with the given name, or nil.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all children with the given name.
func (e *Element) ChildrenNamed(name string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// TextOf returns the string value of the named child.
func (e *Element) TextOf(name string) (string, bool) {
	c := e.Child(name)
	if c == nil {
		return "", false
	}
	s, ok := c.Value.(string)
	return s, ok
}

// UintOf returns the unsigned value of the named child.
func (e *Element) UintOf(name string) (uint64, bool) {
	c := e.Child(name)
	if c == nil {
		return 0, false
	}
	v, ok := c.Value.(uint64)
	return v, ok
}

// OctetsOf returns the octet string value of the named child.
func (e *Element) OctetsOf(name string) ([]byte, bool) {
	c := e.Child(name)
	if c == nil {
		return nil, false
	}
	v, ok := c.Value.([]byte)
	return v, ok
}

// Equal reports whether two trees have the same names, values and children.
func (e *Element) Equal(o *Element) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Name != o.Name || len(e.Children) != len(o.Children) {
		return false
	}
	if !valueEqual(e.Value, o.Value) {
		return false
	}
	for i := range e.Children {
		if !e.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	ab, aok := a.([]byte)
	bb, bok := b.([]byte)
	if aok || bok {
		return aok && bok && bytes.Equal(ab, bb)
	}
	return a == b
}

// Events flattens the tree into a document-order event stream.
func (e *Element) Events() []Event {
	var out []Event
	e.appendEvents(&out)
	return out
}

func (e *Element) appendEvents(out *[]Event) {
	*out = append(*out, StartElement(e.Name))
	if e.Value != nil {
		*out = append(*out, Value(e.Value))
	}
	for _, c := range e.Children {
		c.appendEvents(out)
	}
	*out = append(*out, EndElement())
}

// BuildElement rebuilds a tree from an event stream holding one root element.
func BuildElement(events []Event) (*Element, error) {
	var stack []*Element
	var root *Element

	for i, ev := range events {
		switch ev.Kind {
		case EventStartElement:
			if root != nil && len(stack) == 0 {
				return nil, fmt.Errorf("%w: second root at event %d", ErrMalformedEvents, i)
			}
			el := &Element{Name: ev.Name}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else {
				root = el
			}
			stack = append(stack, el)
		case EventValue:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: value outside element at event %d", ErrMalformedEvents, i)
			}
			stack[len(stack)-1].Value = ev.Value
		case EventEndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced end at event %d", ErrMalformedEvents, i)
			}
			stack = stack[:len(stack)-1]
		default:
			return nil, fmt.Errorf("%w: unknown event kind %d", ErrMalformedEvents, ev.Kind)
		}
	}

	if root == nil || len(stack) != 0 {
		return nil, fmt.Errorf("%w: incomplete document", ErrMalformedEvents)
	}
	return root, nil
}
