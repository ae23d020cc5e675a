// Package field defines the typed values stored in a block's data.
//
// A Field cleans raw submitted values into storage-ready ones and turns
// stored values back into native Go values. The Blocks field additionally
// references child blocks by uuid, which is how the form walks a block tree.
package field

import (
	"fmt"
	"strings"
)

// Field is one named value of a block model.
type Field interface {
	// Clean validates a submitted value and returns its storage form. A
	// *ValidationError reports bad input; any other error is a failure.
	Clean(raw any) (any, error)
	// ToNative converts a stored value for reading.
	ToNative(stored any, r Resolver) (any, error)
}

// Referencer is implemented by fields whose value points at other blocks.
type Referencer interface {
	// References returns the uuids held by a cleaned value.
	References(cleaned any) []string
	// Accepts reports whether a block of the given type may be referenced.
	Accepts(blockType string) bool
}

// Getter reads the fields of one block.
type Getter interface {
	UUID() string
	Type() string
	Get(name string) (any, error)
}

// Resolver finds blocks by uuid.
type Resolver interface {
	Resolve(uuid string) (Getter, error)
}

// ValidationError is an expected, user-facing rejection of a value.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Invalid returns a ValidationError with a single formatted message.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Messages: []string{fmt.Sprintf(format, args...)}}
}

const msgRequired = "This field is required."

// Set is an ordered collection of named fields.
type Set struct {
	names  []string
	fields map[string]Field
}

func NewSet() *Set {
	return &Set{fields: make(map[string]Field)}
}

// Add appends a field, replacing any previous field of the same name in
// place.
func (s *Set) Add(name string, f Field) *Set {
	if _, ok := s.fields[name]; !ok {
		s.names = append(s.names, name)
	}
	s.fields[name] = f
	return s
}

func (s *Set) Get(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

func (s *Set) Has(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// Names returns the field names in declaration order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Set) Len() int {
	return len(s.names)
}

// Clone returns a copy that can be extended without touching s.
func (s *Set) Clone() *Set {
	out := NewSet()
	for _, name := range s.names {
		out.Add(name, s.fields[name])
	}
	return out
}
