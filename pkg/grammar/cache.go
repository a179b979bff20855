package grammar

import (
	"fmt"
	"strings"
)

// Cache pairs a schema with the options of one codec call.
type Cache struct {
	schema  *Schema
	options Options
}

// NewCache creates a grammar cache.
func NewCache(s *Schema, options Options) *Cache {
	return &Cache{schema: s, options: options}
}

// Schema returns the cached schema.
func (c *Cache) Schema() *Schema {
	return c.schema
}

// Options returns the cached options.
func (c *Cache) Options() Options {
	return c.options
}

// NewValidator starts validation of one document.
func (c *Cache) NewValidator() *Validator {
	return &Validator{cache: c}
}

// frame tracks one open element during validation.
type frame struct {
	decl     *Element
	index    int // Current particle in the content model
	count    int // Occurrences of the current particle
	children int
	hasValue bool
}

// Validator checks an element event stream against the schema.
// Feed it Start, Value and End calls in document order, then Finish.
type Validator struct {
	cache *Cache
	stack []frame
	done  bool
}

// Depth returns the number of open elements.
func (v *Validator) Depth() int {
	return len(v.stack)
}

// Start opens an element and returns its declaration.
func (v *Validator) Start(name string) (*Element, error) {
	decl, ok := v.cache.schema.Lookup(name)
	if !ok {
		return nil, v.fail(fmt.Errorf("%w %q", ErrUnknownElement, name))
	}

	if len(v.stack) == 0 {
		if v.done || !decl.Root {
			return nil, v.fail(fmt.Errorf("%w %q at document level", ErrUnexpectedElement, name))
		}
	} else if err := v.acceptChild(&v.stack[len(v.stack)-1], name); err != nil {
		return nil, v.fail(err)
	}

	v.stack = append(v.stack, frame{decl: decl})
	return decl, nil
}

// StartCode opens an element by code and returns its declaration.
func (v *Validator) StartCode(code uint32) (*Element, error) {
	decl, ok := v.cache.schema.LookupCode(code)
	if !ok {
		return nil, v.fail(fmt.Errorf("%w code %d", ErrUnknownElement, code))
	}
	return v.Start(decl.Name)
}

// acceptChild advances the parent's content model over one child.
func (v *Validator) acceptChild(parent *frame, name string) error {
	decl := parent.decl
	if decl.Kind != KindComplex {
		return fmt.Errorf("%w %q inside simple element", ErrUnexpectedElement, name)
	}
	parent.children++

	if decl.Choice {
		if _, ok := decl.particle(name); !ok || parent.children > 1 {
			return fmt.Errorf("%w %q", ErrUnexpectedElement, name)
		}
		return nil
	}

	if v.cache.options.Has(OptionLax) {
		if _, ok := decl.particle(name); !ok {
			return fmt.Errorf("%w %q", ErrUnexpectedElement, name)
		}
		return nil
	}

	for parent.index < len(decl.Children) {
		p := decl.Children[parent.index]
		if p.Name == name && (p.Max == 0 || parent.count < p.Max) {
			parent.count++
			return nil
		}
		if parent.count < p.Min {
			return fmt.Errorf("%w %q before %q", ErrMissingElement, p.Name, name)
		}
		parent.index++
		parent.count = 0
	}
	return fmt.Errorf("%w %q", ErrUnexpectedElement, name)
}

// Value records the value of the innermost element.
// Accepted Go types are string (string and enum kinds), []byte, uint64,
// int64 and bool.
func (v *Validator) Value(val any) error {
	if len(v.stack) == 0 {
		return v.fail(fmt.Errorf("%w at document level", ErrUnexpectedValue))
	}
	top := &v.stack[len(v.stack)-1]
	decl := top.decl
	if decl.Kind == KindComplex || top.hasValue {
		return v.fail(ErrUnexpectedValue)
	}

	if err := checkValue(decl, val); err != nil {
		return v.fail(err)
	}
	top.hasValue = true
	return nil
}

func checkValue(decl *Element, val any) error {
	switch x := val.(type) {
	case string:
		switch decl.Kind {
		case KindString:
			if decl.MaxLength > 0 && len(x) > decl.MaxLength {
				return ErrValueTooLong
			}
		case KindEnum:
			if _, ok := decl.EnumIndex(x); !ok {
				return fmt.Errorf("%w %q", ErrInvalidEnumValue, x)
			}
		default:
			return fmt.Errorf("%w: string for %s", ErrKindMismatch, decl.Kind)
		}
	case []byte:
		if decl.Kind != KindBytes {
			return fmt.Errorf("%w: bytes for %s", ErrKindMismatch, decl.Kind)
		}
		if decl.MaxLength > 0 && len(x) > decl.MaxLength {
			return ErrValueTooLong
		}
	case uint64:
		if decl.Kind != KindUint {
			return fmt.Errorf("%w: uint for %s", ErrKindMismatch, decl.Kind)
		}
	case int64:
		if decl.Kind != KindInt {
			return fmt.Errorf("%w: int for %s", ErrKindMismatch, decl.Kind)
		}
	case bool:
		if decl.Kind != KindBool {
			return fmt.Errorf("%w: bool for %s", ErrKindMismatch, decl.Kind)
		}
	default:
		return fmt.Errorf("%w: unsupported Go type %T", ErrKindMismatch, val)
	}
	return nil
}

// End closes the innermost element.
func (v *Validator) End() error {
	if len(v.stack) == 0 {
		return v.fail(fmt.Errorf("%w: end without open element", ErrUnexpectedElement))
	}
	top := v.stack[len(v.stack)-1]

	if err := v.checkComplete(top); err != nil {
		return v.fail(err)
	}

	v.stack = v.stack[:len(v.stack)-1]
	if len(v.stack) == 0 {
		v.done = true
	}
	return nil
}

func (v *Validator) checkComplete(f frame) error {
	decl := f.decl
	if decl.Kind != KindComplex {
		if !f.hasValue {
			return ErrMissingValue
		}
		return nil
	}
	if decl.Choice {
		if f.children == 0 {
			return fmt.Errorf("%w: %s requires one child", ErrMissingElement, decl.Name)
		}
		return nil
	}
	if v.cache.options.Has(OptionLax) {
		return nil
	}
	for i := f.index; i < len(decl.Children); i++ {
		p := decl.Children[i]
		count := 0
		if i == f.index {
			count = f.count
		}
		if count < p.Min {
			return fmt.Errorf("%w %q", ErrMissingElement, p.Name)
		}
	}
	return nil
}

// Finish checks that exactly one root element was opened and closed.
func (v *Validator) Finish() error {
	if !v.done || len(v.stack) != 0 {
		return v.fail(ErrIncomplete)
	}
	return nil
}

// fail wraps err with the path of open elements.
func (v *Validator) fail(err error) error {
	names := make([]string, len(v.stack))
	for i, f := range v.stack {
		names[i] = f.decl.Name
	}
	return &ValidationError{Path: strings.Join(names, "/"), Err: err}
}
