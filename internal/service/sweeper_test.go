package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awful/internal/blocks"
	"awful/internal/domain"
	"awful/internal/service"
	"awful/internal/tenant"
)

// seedOrphan saves a post whose root references one paragraph, plus a
// second paragraph nothing references.
func seedOrphan(t *testing.T, f *fixture, owner domain.OwnerID) {
	t.Helper()
	ctx := context.Background()
	errs, err := f.svc.Submit(ctx, owner, map[string]blocks.Incoming{
		"root-" + owner.Ref.String(): {Type: domain.RootPost, Data: map[string]any{"blocks": paragraphs("kept-" + owner.Ref.String())}},
		"kept-" + owner.Ref.String(): {Type: "paragraph", Data: map[string]any{"text": "kept"}},
	}, nil)
	require.NoError(t, err)
	require.Nil(t, errs)
	require.NoError(t, f.store.SaveBlocks(ctx, owner.Tenant, []domain.Block{
		{UUID: "orphan-" + owner.Ref.String(), Owner: owner.Ref, Type: "paragraph", Data: map[string]any{"text": "lost"}},
	}))
}

func newSweeper(f *fixture, concurrency int) *service.Sweeper {
	return service.NewSweeper(f.store, f.manager, f.emitter, service.SweeperOptions{
		Timeout:     time.Minute,
		Concurrency: concurrency,
		Logger:      zerolog.Nop(),
	})
}

func TestSweeper_SweepTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedOrphan(t, f, domain.PostOwner(2, 1))
	seedOrphan(t, f, domain.PostOwner(2, 2))

	res, err := newSweeper(f, 1).SweepTenant(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, service.SweepResult{Tenant: 2, Owners: 2, Deleted: 2}, res)

	snap, err := f.svc.Snapshot(ctx, domain.PostOwner(2, 1))
	require.NoError(t, err)
	assert.Len(t, snap, 2)
	assert.NotContains(t, snap, "orphan-post:1")

	events := f.emitter.Named(service.EventSweepCompleted)
	require.Len(t, events, 1)
	assert.Equal(t, res, events[0].Data)
}

func TestSweeper_SweepSeveralTenants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedOrphan(t, f, domain.PostOwner(primary, 1))
	seedOrphan(t, f, domain.PostOwner(2, 1))

	results, err := newSweeper(f, 2).Sweep(ctx, []tenant.ID{primary, 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, primary, results[0].Tenant)
	assert.Equal(t, 1, results[0].Deleted)
	assert.Equal(t, tenant.ID(2), results[1].Tenant)
	assert.Equal(t, 1, results[1].Deleted)
}

func TestSweeper_UninstalledTenantDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedOrphan(t, f, domain.PostOwner(2, 1))

	results, err := newSweeper(f, 1).Sweep(ctx, []tenant.ID{9, 2})
	require.Error(t, err)
	assert.Equal(t, 1, results[1].Deleted)
}

type blockingPruner struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPruner) Prune(ctx context.Context, _ domain.OwnerID) ([]string, error) {
	close(p.entered)
	<-p.release
	return nil, nil
}

func TestSweeper_RejectsConcurrentSweepOfSameTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedOrphan(t, f, domain.PostOwner(2, 1))

	pruner := &blockingPruner{entered: make(chan struct{}), release: make(chan struct{})}
	sw := service.NewSweeper(f.store, pruner, f.emitter, service.SweeperOptions{Logger: zerolog.Nop()})

	done := make(chan error, 1)
	go func() {
		_, err := sw.SweepTenant(ctx, 2)
		done <- err
	}()
	<-pruner.entered

	_, err := sw.SweepTenant(ctx, 2)
	require.True(t, errors.Is(err, service.ErrSweepRunning))

	close(pruner.release)
	require.NoError(t, <-done)
}

func TestSweeper_StartValidatesSchedule(t *testing.T) {
	f := newFixture(t)
	sw := newSweeper(f, 1)
	require.Error(t, sw.Start(context.Background(), "not a schedule", []tenant.ID{2}))

	require.NoError(t, sw.Start(context.Background(), "@every 1h", []tenant.ID{2}))
	require.Error(t, sw.Start(context.Background(), "@every 1h", []tenant.ID{2}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sw.Stop(ctx)
}
