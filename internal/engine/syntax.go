package engine

import (
	"fmt"
	"strings"
)

// Element is one node of a linear gst-launch chain.
type Element struct {
	Factory    string
	Properties map[string]string
}

// Name returns the element's name property, or "".
func (e Element) Name() string {
	return e.Properties["name"]
}

// SyntaxError describes why a description cannot be parsed.
type SyntaxError struct {
	Position int
	Reason   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in element %d: %s", e.Position, e.Reason)
}

// Tokenize splits a description into whitespace separated tokens, keeping
// double-quoted runs together and dropping the quotes.
func Tokenize(description string) []string {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range description {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case !quoted && (r == ' ' || r == '\t' || r == '\n'):
			if pending {
				tokens = append(tokens, current.String())
				current.Reset()
				pending = false
			}
		default:
			current.WriteRune(r)
			pending = true
		}
	}
	if pending {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// ParseChain parses a linear description (elements joined by "!") into its
// elements. Branch syntax beyond a single chain is rejected.
func ParseChain(description string) ([]Element, error) {
	tokens := Tokenize(description)
	if len(tokens) == 0 {
		return nil, &SyntaxError{Position: 0, Reason: "empty description"}
	}

	var (
		elements []Element
		current  *Element
	)
	names := make(map[string]bool)
	finish := func() error {
		if current == nil {
			return &SyntaxError{Position: len(elements), Reason: "empty element"}
		}
		if n := current.Name(); n != "" {
			if names[n] {
				return &SyntaxError{Position: len(elements), Reason: fmt.Sprintf("duplicate element name %q", n)}
			}
			names[n] = true
		}
		elements = append(elements, *current)
		current = nil
		return nil
	}

	for _, tok := range tokens {
		switch {
		case tok == "!":
			if err := finish(); err != nil {
				return nil, err
			}
		case current == nil:
			if strings.ContainsAny(tok, "=.") {
				return nil, &SyntaxError{Position: len(elements), Reason: fmt.Sprintf("expected element factory, got %q", tok)}
			}
			current = &Element{Factory: tok, Properties: map[string]string{}}
		default:
			key, value, ok := strings.Cut(tok, "=")
			if !ok || key == "" || value == "" {
				return nil, &SyntaxError{Position: len(elements), Reason: fmt.Sprintf("malformed property %q", tok)}
			}
			current.Properties[key] = value
		}
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return elements, nil
}
