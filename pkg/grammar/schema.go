package grammar

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

// FingerprintSize is the number of digest bytes identifying a schema on the wire.
const FingerprintSize = 4

// Fingerprint identifies a schema resource. It is the leading bytes of the
// BLAKE2b-256 digest of the resource.
type Fingerprint [FingerprintSize]byte

// String returns the fingerprint as lowercase hex.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Particle is one entry in the content model of a complex element.
type Particle struct {
	Name string
	Min  int
	Max  int // 0 means unbounded

	decl *Element
}

// Element returns the declaration the particle refers to.
func (p Particle) Element() *Element {
	return p.decl
}

// Element is an element declaration.
type Element struct {
	Name      string
	Code      uint32
	Kind      Kind
	Root      bool
	Choice    bool // Exactly one of Children appears
	MaxLength int  // Strings and octet strings, 0 means unlimited
	Enum      []string
	Children  []Particle

	enumIndex map[string]int
}

// EnumIndex returns the position of s in the enumeration.
func (e *Element) EnumIndex(s string) (int, bool) {
	i, ok := e.enumIndex[s]
	return i, ok
}

// EnumValue returns the enumeration value at index i.
func (e *Element) EnumValue(i uint64) (string, bool) {
	if i >= uint64(len(e.Enum)) {
		return "", false
	}
	return e.Enum[i], true
}

// particle returns the content model entry for name.
func (e *Element) particle(name string) (Particle, bool) {
	for _, p := range e.Children {
		if p.Name == name {
			return p, true
		}
	}
	return Particle{}, false
}

// Schema is an immutable, loaded schema resource.
type Schema struct {
	name        string
	namespace   string
	fingerprint Fingerprint
	byName      map[string]*Element
	byCode      map[uint32]*Element
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.name
}

// Namespace returns the schema namespace URI.
func (s *Schema) Namespace() string {
	return s.namespace
}

// Fingerprint returns the digest prefix identifying the schema.
func (s *Schema) Fingerprint() Fingerprint {
	return s.fingerprint
}

// Lookup returns the declaration for an element name.
func (s *Schema) Lookup(name string) (*Element, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// LookupCode returns the declaration for an element code.
func (s *Schema) LookupCode(code uint32) (*Element, bool) {
	e, ok := s.byCode[code]
	return e, ok
}

// resource mirrors the YAML layout of a schema file.
type resource struct {
	Name      string            `yaml:"name"`
	Namespace string            `yaml:"namespace"`
	Elements  []elementResource `yaml:"elements"`
}

type elementResource struct {
	Name      string             `yaml:"name"`
	Code      uint32             `yaml:"code"`
	Type      string             `yaml:"type"`
	Root      bool               `yaml:"root"`
	Choice    bool               `yaml:"choice"`
	MaxLength int                `yaml:"max_length"`
	Enum      []string           `yaml:"enum"`
	Children  []particleResource `yaml:"children"`
}

type particleResource struct {
	Name string `yaml:"name"`
	Min  *int   `yaml:"min"`
	Max  *int   `yaml:"max"`
}

// Load parses and checks a schema resource.
func Load(data []byte) (*Schema, error) {
	var res resource
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if res.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidSchema)
	}

	s := &Schema{
		name:      res.Name,
		namespace: res.Namespace,
		byName:    make(map[string]*Element, len(res.Elements)),
		byCode:    make(map[uint32]*Element, len(res.Elements)),
	}
	sum := blake2b.Sum256(data)
	copy(s.fingerprint[:], sum[:FingerprintSize])

	for _, er := range res.Elements {
		decl, err := buildElement(er)
		if err != nil {
			return nil, err
		}
		if _, dup := s.byName[decl.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate element %q", ErrInvalidSchema, decl.Name)
		}
		if _, dup := s.byCode[decl.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %d", ErrInvalidSchema, decl.Code)
		}
		s.byName[decl.Name] = decl
		s.byCode[decl.Code] = decl
	}

	roots := 0
	for _, decl := range s.byName {
		if decl.Root {
			roots++
		}
		for i := range decl.Children {
			child, ok := s.byName[decl.Children[i].Name]
			if !ok {
				return nil, fmt.Errorf("%w: element %q references undeclared %q",
					ErrInvalidSchema, decl.Name, decl.Children[i].Name)
			}
			decl.Children[i].decl = child
		}
	}
	if roots == 0 {
		return nil, fmt.Errorf("%w: no root element", ErrInvalidSchema)
	}

	return s, nil
}

func buildElement(er elementResource) (*Element, error) {
	if er.Name == "" {
		return nil, fmt.Errorf("%w: element without name", ErrInvalidSchema)
	}
	if er.Code == 0 {
		return nil, fmt.Errorf("%w: element %q has reserved code 0", ErrInvalidSchema, er.Name)
	}

	kind := KindComplex
	if er.Type != "" {
		k, ok := parseKind(er.Type)
		if !ok {
			return nil, fmt.Errorf("%w: element %q has unknown type %q", ErrInvalidSchema, er.Name, er.Type)
		}
		kind = k
	}

	switch {
	case kind == KindComplex && len(er.Children) == 0:
		return nil, fmt.Errorf("%w: complex element %q has no children", ErrInvalidSchema, er.Name)
	case kind != KindComplex && len(er.Children) > 0:
		return nil, fmt.Errorf("%w: simple element %q has children", ErrInvalidSchema, er.Name)
	case kind == KindEnum && len(er.Enum) == 0:
		return nil, fmt.Errorf("%w: enumeration %q has no values", ErrInvalidSchema, er.Name)
	}

	decl := &Element{
		Name:      er.Name,
		Code:      er.Code,
		Kind:      kind,
		Root:      er.Root,
		Choice:    er.Choice,
		MaxLength: er.MaxLength,
		Enum:      er.Enum,
	}

	if kind == KindEnum {
		decl.enumIndex = make(map[string]int, len(er.Enum))
		for i, v := range er.Enum {
			if _, dup := decl.enumIndex[v]; dup {
				return nil, fmt.Errorf("%w: enumeration %q repeats %q", ErrInvalidSchema, er.Name, v)
			}
			decl.enumIndex[v] = i
		}
	}

	for _, pr := range er.Children {
		p := Particle{Name: pr.Name, Min: 1, Max: 1}
		if pr.Min != nil {
			p.Min = *pr.Min
		}
		if pr.Max != nil {
			p.Max = *pr.Max
		}
		if p.Min < 0 || p.Max < 0 || (p.Max != 0 && p.Max < p.Min) {
			return nil, fmt.Errorf("%w: element %q has invalid bounds for %q", ErrInvalidSchema, er.Name, pr.Name)
		}
		decl.Children = append(decl.Children, p)
	}

	return decl, nil
}
