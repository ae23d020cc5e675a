package blocks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"awful/internal/domain"
	"awful/internal/field"
)

// Set is the working copy of one owner's blocks. It is not safe for
// concurrent use; each request works on its own Set.
type Set struct {
	owner   domain.OwnerID
	types   *TypeMap
	manager *Manager
	order   []string
	blocks  map[string]*domain.Block
}

// NewSet builds a set over copies of blocks. manager may be nil, in which
// case Save fails.
func NewSet(owner domain.OwnerID, types *TypeMap, manager *Manager, blocks []domain.Block) *Set {
	s := &Set{
		owner:   owner,
		types:   types,
		manager: manager,
		blocks:  make(map[string]*domain.Block, len(blocks)),
	}
	for _, b := range blocks {
		s.put(b.Clone())
	}
	return s
}

func (s *Set) put(b domain.Block) {
	if _, ok := s.blocks[b.UUID]; !ok {
		s.order = append(s.order, b.UUID)
	}
	s.blocks[b.UUID] = &b
}

func (s *Set) Owner() domain.OwnerID { return s.owner }

func (s *Set) Len() int { return len(s.order) }

// Get returns the block with the given uuid.
func (s *Set) Get(uuid string) (domain.Block, bool) {
	b, ok := s.blocks[uuid]
	if !ok {
		return domain.Block{}, false
	}
	return *b, true
}

// Set replaces the data of an existing block.
func (s *Set) Set(uuid string, data map[string]any) error {
	b, ok := s.blocks[uuid]
	if !ok {
		return &domain.BlockNotFoundError{UUID: uuid}
	}
	if data == nil {
		data = map[string]any{}
	}
	b.Data = data
	return nil
}

// Create adds a new block owned by the set's owner. An empty id gets a
// fresh v4 uuid.
func (s *Set) Create(typ string, data map[string]any, id string) (domain.Block, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := s.blocks[id]; ok {
		return domain.Block{}, &domain.UUIDCollisionError{UUID: id}
	}
	if data == nil {
		data = map[string]any{}
	}
	b := domain.Block{UUID: id, Owner: s.owner.Ref, Type: typ, Data: data}
	s.put(b)
	return b, nil
}

// CreateForModel creates an empty block of the named model's canonical type.
func (s *Set) CreateForModel(model, id string) (domain.Block, error) {
	typ, err := s.types.TypeForModel(model)
	if err != nil {
		return domain.Block{}, err
	}
	return s.Create(typ, nil, id)
}

// Root returns the owner's root block, creating an empty one if the set
// has none.
func (s *Set) Root() (domain.Block, error) {
	if b, ok := s.findRoot(); ok {
		return b, nil
	}
	return s.Create(s.owner.RootType(), nil, "")
}

func (s *Set) findRoot() (domain.Block, bool) {
	rootType := s.owner.RootType()
	for _, id := range s.order {
		if b := s.blocks[id]; b.Type == rootType {
			return *b, true
		}
	}
	return domain.Block{}, false
}

// Save persists every block of the set.
func (s *Set) Save(ctx context.Context) error {
	if s.manager == nil {
		return errors.New("block set has no manager")
	}
	return s.manager.Save(ctx, s)
}

// Clone returns a deep copy that shares nothing mutable with s.
func (s *Set) Clone() *Set {
	return NewSet(s.owner, s.types, s.manager, s.Blocks())
}

// subset returns a copy holding only the listed uuids that exist in s.
func (s *Set) subset(keep map[string]bool) *Set {
	out := NewSet(s.owner, s.types, s.manager, nil)
	for _, id := range s.order {
		if keep[id] {
			out.put(s.blocks[id].Clone())
		}
	}
	return out
}

// Blocks returns the blocks in insertion order.
func (s *Set) Blocks() []domain.Block {
	out := make([]domain.Block, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.blocks[id])
	}
	return out
}

// UUIDs returns the block uuids in insertion order.
func (s *Set) UUIDs() []string {
	return append([]string(nil), s.order...)
}

// Instance returns a reader for the block with the given uuid.
func (s *Set) Instance(id string) (*Instance, error) {
	b, ok := s.blocks[id]
	if !ok {
		return nil, &domain.BlockNotFoundError{UUID: id}
	}
	model, err := s.types.ModelForType(b.Type)
	if err != nil {
		return nil, err
	}
	return &Instance{set: s, block: b, model: model}, nil
}

// Resolve implements field.Resolver.
func (s *Set) Resolve(id string) (field.Getter, error) {
	inst, err := s.Instance(id)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// Instance is a block bound to its model, reading fields as native values.
type Instance struct {
	set   *Set
	block *domain.Block
	model Model
}

var _ field.Getter = (*Instance)(nil)

func (i *Instance) UUID() string { return i.block.UUID }
func (i *Instance) Type() string { return i.block.Type }
func (i *Instance) Model() Model { return i.model }

// Raw returns the stored value of a field.
func (i *Instance) Raw(name string) any {
	return i.block.Data[name]
}

// Get returns a field's native value. Block references resolve against the
// instance's set.
func (i *Instance) Get(name string) (any, error) {
	f, ok := i.model.Fields().Get(name)
	if !ok {
		return nil, fmt.Errorf("%s has no field %q", i.model.Name(), name)
	}
	return f.ToNative(i.block.Data[name], i.set)
}

// Unreachable returns the uuids that no chain of block references from the
// root reaches, in insertion order. A set without a root has nothing
// unreachable.
func (s *Set) Unreachable() []string {
	root, ok := s.findRoot()
	if !ok {
		return nil
	}
	seen := map[string]bool{}
	stack := []string{root.UUID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		b, ok := s.blocks[id]
		if !ok {
			continue
		}
		seen[id] = true
		model, err := s.types.ModelForType(b.Type)
		if err != nil {
			continue
		}
		fields := model.Fields()
		for _, name := range fields.Names() {
			f, _ := fields.Get(name)
			if ref, ok := f.(field.Referencer); ok {
				stack = append(stack, ref.References(b.Data[name])...)
			}
		}
	}
	var out []string
	for _, id := range s.order {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}
