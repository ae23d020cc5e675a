package domain

import (
	"context"

	"awful/internal/tenant"
)

// Block is one stored content fragment. ID is assigned by storage and is
// zero until the block has been inserted.
type Block struct {
	ID    int64          `json:"id,omitempty"`
	UUID  string         `json:"uuid"`
	Owner OwnerRef       `json:"owner"`
	Type  string         `json:"type"`
	Data  map[string]any `json:"data"`
}

// Clone returns a deep copy of b, so the copy's Data can be mutated freely.
func (b Block) Clone() Block {
	b.Data = CloneData(b.Data)
	return b
}

// CloneData deep-copies a decoded JSON object.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneData(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// BlockStore is the persistence gateway for blocks.
type BlockStore interface {
	FetchBlocks(ctx context.Context, q Query) ([]Block, error)
	SaveBlocks(ctx context.Context, t tenant.ID, blocks []Block) error
	DeleteBlocksFor(ctx context.Context, owner OwnerID, uuids []string) error
	// TakenUUIDs returns those of uuids already stored in t's table.
	TakenUUIDs(ctx context.Context, t tenant.ID, uuids []string) ([]string, error)
	// Atomically runs fn against a store whose writes commit or roll back
	// together.
	Atomically(ctx context.Context, fn func(BlockStore) error) error
}

// OwnerLister enumerates the owners that have at least one block in a tenant.
type OwnerLister interface {
	ListOwners(ctx context.Context, t tenant.ID) ([]OwnerID, error)
}
