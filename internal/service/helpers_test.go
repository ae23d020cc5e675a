package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"awful/internal/blocks"
	"awful/internal/cache"
	"awful/internal/config"
	"awful/internal/schema"
	"awful/internal/service"
	"awful/internal/storage"
	"awful/internal/tenant"
)

const primary tenant.ID = 1

type fixture struct {
	db      *storage.DB
	store   *storage.BlockStore
	manager *blocks.Manager
	svc     *service.BlockService
	emitter *service.MockEmitter
}

// newFixture wires the default block types over a SQLite file with
// tenants 1 and 2 installed.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "awful.db"), storage.Options{
		Prefix:  "wp_",
		Primary: primary,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Install(ctx, primary))
	require.NoError(t, db.Install(ctx, 2))

	types, err := schema.Build(config.DefaultBlockTypes())
	require.NoError(t, err)

	store := storage.NewBlockStore(db)
	manager := blocks.NewManager(store, cache.NewMemory(), types, blocks.ManagerOptions{
		Primary: primary,
		Logger:  zerolog.Nop(),
	})
	emitter := &service.MockEmitter{}
	return &fixture{
		db:      db,
		store:   store,
		manager: manager,
		svc:     service.NewBlockService(manager, emitter, zerolog.Nop()),
		emitter: emitter,
	}
}

func paragraphs(uuids ...string) []any {
	out := make([]any, len(uuids))
	for i, id := range uuids {
		out[i] = id
	}
	return out
}
