package blocks

import (
	"sort"

	"awful/internal/domain"
)

// Registration binds a model to its block type strings. The first type is
// canonical; the rest are aliases kept for renamed types.
type Registration struct {
	Model Model
	Types []string
}

// TypeMap resolves block type strings to models and back. It is immutable
// once built.
type TypeMap struct {
	models    map[string]Model
	byType    map[string]Model
	canonical map[string]string
}

// NewTypeMap builds the registry, failing on the first duplicate.
func NewTypeMap(regs ...Registration) (*TypeMap, error) {
	tm := &TypeMap{
		models:    make(map[string]Model, len(regs)),
		byType:    make(map[string]Model),
		canonical: make(map[string]string, len(regs)),
	}
	for _, reg := range regs {
		name := reg.Model.Name()
		if _, ok := tm.models[name]; ok {
			return nil, &domain.AlreadyRegisteredError{Name: name}
		}
		tm.models[name] = reg.Model

		for _, typ := range reg.Types {
			if prev, ok := tm.byType[typ]; ok {
				return nil, &domain.DuplicateTypeError{Type: typ, First: prev.Name(), Second: name}
			}
			tm.byType[typ] = reg.Model
		}
		if len(reg.Types) > 0 {
			tm.canonical[name] = reg.Types[0]
		}
	}
	return tm, nil
}

// MustTypeMap is NewTypeMap for static registrations.
func MustTypeMap(regs ...Registration) *TypeMap {
	tm, err := NewTypeMap(regs...)
	if err != nil {
		panic(err)
	}
	return tm
}

// ModelForType returns the model handling typ.
func (tm *TypeMap) ModelForType(typ string) (Model, error) {
	m, ok := tm.byType[typ]
	if !ok {
		return nil, &domain.UnknownTypeError{Type: typ}
	}
	return m, nil
}

// TypeForModel returns the canonical type of the named model.
func (tm *TypeMap) TypeForModel(name string) (string, error) {
	typ, ok := tm.canonical[name]
	if !ok {
		return "", &domain.UnregisteredModelError{Model: name}
	}
	return typ, nil
}

// Types returns every registered type string, sorted.
func (tm *TypeMap) Types() []string {
	out := make([]string, 0, len(tm.byType))
	for typ := range tm.byType {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}
