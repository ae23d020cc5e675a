package service_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awful/internal/domain"
	"awful/internal/service"
)

func writeEnvelope(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func readResult(t *testing.T, path string) service.ImportResult {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var res service.ImportResult
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}

const validEnvelope = `{
  "owner": {"kind": "post", "id": 12},
  "blocks": {
    "root": {"type": "Awful.RootBlocks.Post", "data": {"subtitle": "imported", "blocks": ["h"]}},
    "h": {"type": "heading", "data": {"text": "Title", "level": 2}}
  }
}`

func TestImporter_ProcessFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dir := t.TempDir()
	im := service.NewImporter(f.svc, f.emitter, dir, 2, zerolog.Nop())

	path := writeEnvelope(t, dir, "post-12.json", validEnvelope)
	res, err := im.ProcessFile(ctx, path)
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.Equal(t, &domain.OwnerRef{Kind: domain.OwnerPost, ID: 12}, res.Owner)

	onDisk := readResult(t, filepath.Join(dir, "post-12.result.json"))
	assert.True(t, onDisk.Saved)
	assert.Equal(t, "post-12.json", onDisk.File)

	snap, err := f.svc.Snapshot(ctx, domain.PostOwner(2, 12))
	require.NoError(t, err)
	assert.Equal(t, "heading", snap["h"].Type)
	assert.Len(t, f.emitter.Named(service.EventImportCompleted), 1)
}

func TestImporter_ReportsProblems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dir := t.TempDir()
	im := service.NewImporter(f.svc, f.emitter, dir, 2, zerolog.Nop())

	res, err := im.ProcessFile(ctx, writeEnvelope(t, dir, "garbage.json", "{"))
	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.Contains(t, res.Error, "decode envelope")
	assert.Nil(t, res.Owner)

	res, err = im.ProcessFile(ctx, writeEnvelope(t, dir, "invalid.json", `{
	  "owner": {"kind": "post", "id": 3},
	  "blocks": {
	    "root": {"type": "Awful.RootBlocks.Post", "data": {"blocks": ["h"]}},
	    "h": {"type": "heading", "data": {"text": "Title", "level": 9}}
	  }
	}`))
	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.Errors["h"]["level"])

	res, err = im.ProcessFile(ctx, writeEnvelope(t, dir, "empty.json", `{"owner": {"kind": "post", "id": 3}}`))
	require.NoError(t, err)
	assert.Equal(t, "envelope has no blocks", res.Error)

	_, err = im.ProcessFile(ctx, filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestImporter_ProcessPendingSkipsDone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dir := t.TempDir()
	im := service.NewImporter(f.svc, f.emitter, dir, 2, zerolog.Nop())

	writeEnvelope(t, dir, "a.json", validEnvelope)
	writeEnvelope(t, dir, "b.json", validEnvelope)
	writeEnvelope(t, dir, "b.result.json", `{"file":"b.json","saved":true}`)

	require.NoError(t, im.ProcessPending(ctx))
	assert.Len(t, f.emitter.Named(service.EventImportCompleted), 1)
	assert.FileExists(t, filepath.Join(dir, "a.result.json"))
}

func TestImporter_WatchesDirectory(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	im := service.NewImporter(f.svc, f.emitter, dir, 2, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, im.Start(ctx))
	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		im.Stop(stopCtx)
	})

	writeEnvelope(t, dir, "dropped.json", validEnvelope)
	result := filepath.Join(dir, "dropped.result.json")
	require.Eventually(t, func() bool {
		return len(f.emitter.Named(service.EventImportCompleted)) == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.True(t, readResult(t, result).Saved)
}
