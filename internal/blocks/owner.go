package blocks

import (
	"context"

	"awful/internal/domain"
	"awful/internal/field"
)

// Owner is an entity with blocks: a site, user, post, term or comment. It
// loads its set lazily and keeps it until Reload.
type Owner struct {
	id      domain.OwnerID
	manager *Manager
	set     *Set
}

func (o *Owner) ID() domain.OwnerID { return o.id }

// Model returns the model of the owner's root block.
func (o *Owner) Model() (Model, error) {
	return o.manager.types.ModelForType(o.id.RootType())
}

// Fields returns the fields of the owner's root block.
func (o *Owner) Fields() (*field.Set, error) {
	m, err := o.Model()
	if err != nil {
		return nil, err
	}
	return m.Fields(), nil
}

// Blocks returns the owner's set, loading it on first use.
func (o *Owner) Blocks(ctx context.Context) (*Set, error) {
	if o.set != nil {
		return o.set, nil
	}
	set, err := o.manager.BlockSet(ctx, o.id)
	if err != nil {
		return nil, err
	}
	o.set = set
	return set, nil
}

// Reload forgets the loaded set and its cache entry so the next read comes
// from storage.
func (o *Owner) Reload(ctx context.Context) error {
	o.set = nil
	return o.manager.Invalidate(ctx, o.id)
}

// Root returns the owner's root block as an Instance.
func (o *Owner) Root(ctx context.Context) (*Instance, error) {
	set, err := o.Blocks(ctx)
	if err != nil {
		return nil, err
	}
	root, err := set.Root()
	if err != nil {
		return nil, err
	}
	return set.Instance(root.UUID)
}

// Get reads a field of the owner's root block.
func (o *Owner) Get(ctx context.Context, name string) (any, error) {
	root, err := o.Root(ctx)
	if err != nil {
		return nil, err
	}
	return root.Get(name)
}

// bind returns a copy of o working on set. Nothing done through the copy is
// visible to o.
func (o *Owner) bind(set *Set) *Owner {
	return &Owner{id: o.id, manager: o.manager, set: set}
}
