package blocks_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awful/internal/blocks"
	"awful/internal/cache"
	"awful/internal/domain"
	"awful/internal/field"
	"awful/internal/storage"
)

func sqliteManager(t *testing.T) (*blocks.Manager, *storage.BlockStore) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "blocks.db"), storage.Options{Prefix: "wp_", Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Install(ctx, 0))

	types, _ := testTypes(t)
	store := storage.NewBlockStore(db)
	return blocks.NewManager(store, cache.NewMemory(), types, blocks.ManagerOptions{Logger: zerolog.Nop()}), store
}

func TestSQLite_ScenarioAndPruning(t *testing.T) {
	ctx := context.Background()
	m, store := sqliteManager(t)
	site := m.Owner(domain.SiteOwner(0))
	post := m.Owner(domain.PostOwner(0, 3))

	require.Nil(t, submit(t, post, map[string]blocks.Incoming{
		"p": {Type: domain.RootPost, Data: map[string]any{"title": "untouched"}},
	}))
	require.Nil(t, submit(t, site, map[string]blocks.Incoming{
		"uuid1": {Type: domain.RootSite, Data: map[string]any{"text": "hello", "children": refs("uuid2")}},
		"uuid2": {Type: "child", Data: map[string]any{"value": "x", "children": refs("uuid3")}},
		"uuid3": {Type: "child", Data: map[string]any{"value": "y"}},
	}, "text", "children"))

	text, err := site.Get(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	children, err := site.Get(ctx, "children")
	require.NoError(t, err)
	list := children.([]field.Getter)
	require.Len(t, list, 1)
	value, err := list[0].Get("value")
	require.NoError(t, err)
	assert.Equal(t, "x", value)

	require.Nil(t, submit(t, site, map[string]blocks.Incoming{
		"uuid1": {Type: domain.RootSite, Data: map[string]any{"children": refs("uuid2")}},
		"uuid2": {Type: "child", Data: map[string]any{"value": "x2"}},
	}, "children"))

	rows, err := store.FetchBlocks(ctx, domain.ForSite(0))
	require.NoError(t, err)
	var uuids []string
	for _, b := range rows {
		uuids = append(uuids, b.UUID)
		if b.UUID == "uuid2" {
			assert.Equal(t, "x2", b.Data["value"])
		}
		if b.UUID == "uuid1" {
			assert.Equal(t, "hello", b.Data["text"])
		}
	}
	assert.ElementsMatch(t, []string{"uuid1", "uuid2"}, uuids)

	rows, err = store.FetchBlocks(ctx, domain.ForPosts(0, 3))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "untouched", rows[0].Data["title"])
}

func TestSQLite_UUIDOfAnotherOwnerIsAFieldError(t *testing.T) {
	ctx := context.Background()
	m, store := sqliteManager(t)
	post := m.Owner(domain.PostOwner(0, 3))
	site := m.Owner(domain.SiteOwner(0))

	require.Nil(t, submit(t, post, map[string]blocks.Incoming{
		"root-post": {Type: domain.RootPost, Data: map[string]any{"quotes": refs("p")}},
		"p":         {Type: "strict", Data: map[string]any{"value": "mine"}},
	}))
	errs := submit(t, site, map[string]blocks.Incoming{
		"root": {Type: domain.RootSite, Data: map[string]any{"children": refs("p")}},
		"p":    {Type: "child", Data: map[string]any{"value": "hijack"}},
	})
	require.NotNil(t, errs)
	assert.Equal(t, []string{"block uuid p is already in use"}, errs["p"][blocks.FormErrors])

	rows, err := store.FetchBlocks(ctx, domain.ForPosts(0, 3))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, b := range rows {
		if b.UUID == "p" {
			assert.Equal(t, "mine", b.Data["value"])
		}
	}
	rows, err = store.FetchBlocks(ctx, domain.ForSite(0))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
