package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo is a Cache shared between processes, backed by one MongoDB
// collection.
type Mongo struct {
	scopes
	coll *mongo.Collection
}

type mongoEntry struct {
	ID        string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongo(coll *mongo.Collection) *Mongo {
	return &Mongo{coll: coll}
}

func (m *Mongo) Get(ctx context.Context, group, key string) ([]byte, bool, error) {
	var entry mongoEntry
	err := m.coll.FindOne(ctx, bson.M{"_id": m.key(ctx, group, key)}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s/%s: %w", group, key, err)
	}
	return entry.Value, true, nil
}

func (m *Mongo) Set(ctx context.Context, group, key string, value []byte) error {
	id := m.key(ctx, group, key)
	_, err := m.coll.ReplaceOne(ctx,
		bson.M{"_id": id},
		mongoEntry{ID: id, Value: value, UpdatedAt: time.Now().UTC()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("cache set %s/%s: %w", group, key, err)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, group, key string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": m.key(ctx, group, key)}); err != nil {
		return fmt.Errorf("cache delete %s/%s: %w", group, key, err)
	}
	return nil
}

func (m *Mongo) AddGlobalGroups(groups ...string) {
	m.addGlobal(groups...)
}

var _ Cache = (*Mongo)(nil)
