// Package schema builds block models from declarative definitions, such as
// the [[block_types]] tables of the configuration file.
package schema

import (
	"context"
	"fmt"
	"strings"

	"awful/internal/blocks"
	"awful/internal/domain"
	"awful/internal/field"
)

// Field kinds.
const (
	KindText   = "text"
	KindNumber = "number"
	KindBool   = "bool"
	KindChoice = "choice"
	KindBlocks = "blocks"
)

// FieldDef declares one field.
type FieldDef struct {
	Name      string   `toml:"name" json:"name"`
	Kind      string   `toml:"kind" json:"kind"`
	Required  bool     `toml:"required" json:"required,omitempty"`
	MaxLength int      `toml:"max_length" json:"max_length,omitempty"`
	Integer   bool     `toml:"integer" json:"integer,omitempty"`
	Min       *float64 `toml:"min" json:"min,omitempty"`
	Max       *float64 `toml:"max" json:"max,omitempty"`
	Choices   []string `toml:"choices" json:"choices,omitempty"`
	// Types restricts the block types a blocks field may reference.
	Types    []string `toml:"types" json:"types,omitempty"`
	MinItems int      `toml:"min_items" json:"min_items,omitempty"`
	MaxItems int      `toml:"max_items" json:"max_items,omitempty"`
}

// Definition declares one block model.
type Definition struct {
	Name string `toml:"name" json:"name"`
	// Types are the block type strings of the model, canonical first. A
	// definition without types can only be extended.
	Types []string `toml:"types" json:"types"`
	// Extends names a definition whose fields come first.
	Extends string     `toml:"extends" json:"extends,omitempty"`
	Fields  []FieldDef `toml:"fields" json:"fields"`
	// RequireAny rejects a block whose listed fields are all empty.
	RequireAny []string `toml:"require_any" json:"require_any,omitempty"`
}

// Build resolves inheritance and returns the type map of defs.
func Build(defs []Definition) (*blocks.TypeMap, error) {
	byName := make(map[string]*Definition, len(defs))
	for i := range defs {
		d := &defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("block type %d has no name", i)
		}
		if _, ok := byName[d.Name]; ok {
			return nil, &domain.AlreadyRegisteredError{Name: d.Name}
		}
		byName[d.Name] = d
	}

	b := &builder{defs: byName, fields: make(map[string]*field.Set, len(defs))}
	regs := make([]blocks.Registration, 0, len(defs))
	for _, d := range defs {
		fields, err := b.resolve(d.Name, nil)
		if err != nil {
			return nil, err
		}
		for _, name := range d.RequireAny {
			if !fields.Has(name) {
				return nil, fmt.Errorf("%s: require_any names unknown field %q", d.Name, name)
			}
		}
		regs = append(regs, blocks.Registration{
			Model: blocks.NewModel(d.Name, fields, requireAny(d.RequireAny)),
			Types: d.Types,
		})
	}
	return blocks.NewTypeMap(regs...)
}

type builder struct {
	defs   map[string]*Definition
	fields map[string]*field.Set
}

// resolve returns the fields of name including inherited ones. path holds
// the definitions being resolved, to detect loops.
func (b *builder) resolve(name string, path []string) (*field.Set, error) {
	if set, ok := b.fields[name]; ok {
		return set, nil
	}
	for _, p := range path {
		if p == name {
			return nil, &domain.CircularDependencyError{Path: append(path, name)}
		}
	}
	d, ok := b.defs[name]
	if !ok {
		return nil, fmt.Errorf("%s extends unknown block type %q", path[len(path)-1], name)
	}

	set := field.NewSet()
	if d.Extends != "" {
		parent, err := b.resolve(d.Extends, append(path, name))
		if err != nil {
			return nil, err
		}
		set = parent.Clone()
	}
	for _, fd := range d.Fields {
		f, err := NewField(fd)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, fd.Name, err)
		}
		set.Add(fd.Name, f)
	}
	b.fields[name] = set
	return set, nil
}

// NewField builds the field declared by fd.
func NewField(fd FieldDef) (field.Field, error) {
	if fd.Name == "" || strings.HasPrefix(fd.Name, "$") {
		return nil, fmt.Errorf("invalid field name %q", fd.Name)
	}
	switch fd.Kind {
	case KindText, "":
		return field.Text{Required: fd.Required, MaxLength: fd.MaxLength}, nil
	case KindNumber:
		return field.Number{Required: fd.Required, Integer: fd.Integer, Min: fd.Min, Max: fd.Max}, nil
	case KindBool:
		return field.Bool{}, nil
	case KindChoice:
		if len(fd.Choices) == 0 {
			return nil, fmt.Errorf("choice field without choices")
		}
		return field.Choice{Required: fd.Required, Choices: fd.Choices}, nil
	case KindBlocks:
		return field.Blocks{Types: fd.Types, Min: fd.MinItems, Max: fd.MaxItems}, nil
	default:
		return nil, fmt.Errorf("unknown field kind %q", fd.Kind)
	}
}

func requireAny(names []string) blocks.ValidateFunc {
	if len(names) == 0 {
		return nil
	}
	return func(_ context.Context, b *blocks.Instance) error {
		for _, name := range names {
			if !empty(b.Raw(name)) {
				return nil
			}
		}
		return field.Invalid("At least one of %s must be filled in.", strings.Join(names, ", "))
	}
}

func empty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case bool:
		return !val
	case []string:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}
