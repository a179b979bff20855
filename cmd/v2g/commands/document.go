package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/backkem/v2g/pkg/exi"
	"github.com/backkem/v2g/pkg/grammar"
	"gopkg.in/yaml.v3"
)

var errDocumentShape = errors.New("document: each element must be a single-key mapping")

// readDocument parses a YAML document into an element tree, typing simple
// values from their declarations in s.
func readDocument(r io.Reader, s *grammar.Schema) (*exi.Element, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) != 1 {
			return nil, errDocumentShape
		}
		root = root.Content[0]
	}
	return elementFromNode(root, s)
}

func elementFromNode(n *yaml.Node, s *grammar.Schema) (*exi.Element, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, fmt.Errorf("%w (line %d)", errDocumentShape, n.Line)
	}
	key, val := n.Content[0], n.Content[1]

	decl, ok := s.Lookup(key.Value)
	if !ok {
		return nil, fmt.Errorf("document: unknown element %q (line %d)", key.Value, key.Line)
	}

	if decl.Kind == grammar.KindComplex {
		e := exi.NewElement(decl.Name)
		switch {
		case val.Kind == yaml.SequenceNode:
			for _, child := range val.Content {
				c, err := elementFromNode(child, s)
				if err != nil {
					return nil, err
				}
				e.Add(c)
			}
		case val.Kind == yaml.ScalarNode && val.Tag == "!!null":
		default:
			return nil, fmt.Errorf("document: %s must be a sequence (line %d)", decl.Name, val.Line)
		}
		return e, nil
	}

	if val.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("document: %s must be a scalar (line %d)", decl.Name, val.Line)
	}
	v, err := parseValue(decl, val.Value)
	if err != nil {
		return nil, fmt.Errorf("document: %s (line %d): %w", decl.Name, val.Line, err)
	}
	return &exi.Element{Name: decl.Name, Value: v}, nil
}

func parseValue(decl *grammar.Element, s string) (any, error) {
	switch decl.Kind {
	case grammar.KindString, grammar.KindEnum:
		return s, nil
	case grammar.KindBytes:
		return hex.DecodeString(strings.TrimSpace(s))
	case grammar.KindUint:
		return strconv.ParseUint(s, 0, 64)
	case grammar.KindInt:
		return strconv.ParseInt(s, 0, 64)
	case grammar.KindBool:
		return strconv.ParseBool(s)
	default:
		return nil, fmt.Errorf("unsupported kind %s", decl.Kind)
	}
}

// writeDocument renders e as YAML.
func writeDocument(w io.Writer, e *exi.Element) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(nodeFromElement(e)); err != nil {
		return fmt.Errorf("document: %w", err)
	}
	return enc.Close()
}

func nodeFromElement(e *exi.Element) *yaml.Node {
	key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Name}

	var val *yaml.Node
	switch v := e.Value.(type) {
	case nil:
		val = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(e.Children) == 0 {
			val.Style = yaml.FlowStyle
		}
		for _, c := range e.Children {
			val.Content = append(val.Content, nodeFromElement(c))
		}
	case string:
		val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
	case []byte:
		val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: hex.EncodeToString(v)}
	case uint64:
		val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(v, 10)}
	case int64:
		val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v, 10)}
	case bool:
		val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}
	default:
		val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprint(v)}
	}

	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{key, val}}
}
