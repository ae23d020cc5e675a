package blocks

import (
	"context"

	"awful/internal/field"
)

// Model describes one kind of block: its fields and an optional
// whole-block validation hook.
type Model interface {
	Name() string
	Fields() *field.Set
	// Validate checks cross-field rules once every field is valid. A
	// *field.ValidationError rejects the block; other errors abort the save.
	Validate(ctx context.Context, b *Instance) error
}

// ValidateFunc is a whole-block validation hook.
type ValidateFunc func(ctx context.Context, b *Instance) error

// BasicModel is a Model assembled from values.
type BasicModel struct {
	name     string
	fields   *field.Set
	validate ValidateFunc
}

// NewModel returns a model named name. validate may be nil.
func NewModel(name string, fields *field.Set, validate ValidateFunc) *BasicModel {
	if fields == nil {
		fields = field.NewSet()
	}
	return &BasicModel{name: name, fields: fields, validate: validate}
}

func (m *BasicModel) Name() string       { return m.name }
func (m *BasicModel) Fields() *field.Set { return m.fields }

func (m *BasicModel) Validate(ctx context.Context, b *Instance) error {
	if m.validate == nil {
		return nil
	}
	return m.validate(ctx, b)
}
