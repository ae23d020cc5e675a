package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awful/internal/blocks"
	"awful/internal/domain"
	"awful/internal/service"
)

func TestBlockService_SubmitAndSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := domain.PostOwner(2, 7)

	errs, err := f.svc.Submit(ctx, owner, map[string]blocks.Incoming{
		"root": {Type: domain.RootPost, Data: map[string]any{"subtitle": "hello", "blocks": paragraphs("p1")}},
		"p1":   {Type: "paragraph", Data: map[string]any{"text": "first", "stray": true}},
	}, nil)
	require.NoError(t, err)
	require.Nil(t, errs)

	saved := f.emitter.Named(service.EventBlocksSaved)
	require.Len(t, saved, 1)
	assert.Equal(t, service.SavedEvent{Tenant: 2, Owner: owner.Ref}, saved[0].Data)

	snap, err := f.svc.Snapshot(ctx, owner)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, "paragraph", snap["p1"].Type)
	assert.Equal(t, map[string]any{"text": "first"}, snap["p1"].Data)
	assert.Equal(t, "hello", snap["root"].Data["subtitle"])
}

func TestBlockService_SubmitRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := domain.PostOwner(2, 7)

	errs, err := f.svc.Submit(ctx, owner, map[string]blocks.Incoming{
		"root": {Type: domain.RootPost, Data: map[string]any{"blocks": paragraphs("p1")}},
		"p1":   {Type: "paragraph", Data: map[string]any{}},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, errs)
	assert.NotEmpty(t, errs["p1"]["text"])

	rejected := f.emitter.Named(service.EventBlocksRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, errs, rejected[0].Data.(service.RejectedEvent).Errors)
	assert.Empty(t, f.emitter.Named(service.EventBlocksSaved))

	snap, err := f.svc.Snapshot(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestBlockService_SubmitStorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// tenant 3 was never installed
	_, err := f.svc.Submit(ctx, domain.PostOwner(3, 1), map[string]blocks.Incoming{
		"root": {Type: domain.RootPost, Data: map[string]any{}},
	}, nil)
	var dbErr *domain.DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Empty(t, f.emitter.Events)
}

func TestBlockService_ParseOwner(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		tenant, kind, id string
		want             domain.OwnerID
	}{
		{"2", "site", "", domain.SiteOwner(2)},
		{"2", "site", "99", domain.SiteOwner(2)},
		{"2", "post", "5", domain.PostOwner(2, 5)},
		{"2", "term", "6", domain.TermOwner(2, 6)},
		{"2", "comment", "8", domain.CommentOwner(2, 8)},
		{"2", "user", "9", domain.UserOwner(primary, 9)},
	}
	for _, tt := range tests {
		got, err := f.svc.ParseOwner(tt.tenant, tt.kind, tt.id)
		require.NoError(t, err, tt)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range [][3]string{
		{"x", "post", "1"},
		{"0", "post", "1"},
		{"2", "page", "1"},
		{"2", "post", ""},
		{"2", "post", "0"},
		{"2", "post", "-1"},
	} {
		_, err := f.svc.ParseOwner(bad[0], bad[1], bad[2])
		assert.Error(t, err, bad)
	}
}
