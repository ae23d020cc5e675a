package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"awful/internal/blocks"
	"awful/internal/domain"
	"awful/internal/tenant"
)

// BlockService is the entry point transports use to read and submit an
// owner's blocks.
type BlockService struct {
	manager *blocks.Manager
	emitter EventEmitter
	logger  zerolog.Logger
}

// NewBlockService creates a BlockService.
func NewBlockService(manager *blocks.Manager, emitter EventEmitter, logger zerolog.Logger) *BlockService {
	return &BlockService{
		manager: manager,
		emitter: emitter,
		logger:  logger.With().Str("component", "block-service").Logger(),
	}
}

// SavedEvent is the payload of EventBlocksSaved.
type SavedEvent struct {
	Tenant tenant.ID       `json:"tenant"`
	Owner  domain.OwnerRef `json:"owner"`
}

// RejectedEvent is the payload of EventBlocksRejected.
type RejectedEvent struct {
	Tenant tenant.ID       `json:"tenant"`
	Owner  domain.OwnerRef `json:"owner"`
	Errors blocks.Errors   `json:"errors"`
}

// Submit validates incoming against the owner's blocks and saves it when
// valid. fields limits the root fields that may change; nil allows all.
// Validation problems come back as Errors with a nil error.
func (s *BlockService) Submit(ctx context.Context, owner domain.OwnerID, incoming map[string]blocks.Incoming, fields []string) (blocks.Errors, error) {
	form := blocks.NewForm(s.manager.Owner(owner), incoming, fields)
	errs, err := form.SaveIfValid(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("owner", owner.String()).Msg("submit failed")
		return nil, fmt.Errorf("submit blocks for %s: %w", owner, err)
	}
	if errs != nil {
		s.emitter.Emit(ctx, EventBlocksRejected, RejectedEvent{Tenant: owner.Tenant, Owner: owner.Ref, Errors: errs})
		return errs, nil
	}
	s.emitter.Emit(ctx, EventBlocksSaved, SavedEvent{Tenant: owner.Tenant, Owner: owner.Ref})
	return nil, nil
}

// Snapshot returns the owner's blocks in the shape Submit accepts, so a
// client can edit and send it back.
func (s *BlockService) Snapshot(ctx context.Context, owner domain.OwnerID) (map[string]blocks.Incoming, error) {
	set, err := s.manager.BlockSet(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load blocks for %s: %w", owner, err)
	}
	out := make(map[string]blocks.Incoming, set.Len())
	for _, b := range set.Blocks() {
		out[b.UUID] = blocks.Incoming{Type: b.Type, Data: b.Data}
	}
	return out, nil
}

// Prune deletes the owner's unreachable blocks.
func (s *BlockService) Prune(ctx context.Context, owner domain.OwnerID) ([]string, error) {
	return s.manager.Prune(ctx, owner)
}

// ParseOwner builds an owner id from transport strings.
func (s *BlockService) ParseOwner(tenantStr, kindStr, idStr string) (domain.OwnerID, error) {
	t, err := strconv.ParseInt(tenantStr, 10, 64)
	if err != nil || t <= 0 {
		return domain.OwnerID{}, fmt.Errorf("invalid tenant %q", tenantStr)
	}
	kind, err := domain.ParseOwnerKind(kindStr)
	if err != nil {
		return domain.OwnerID{}, err
	}
	var id uint64
	if kind != domain.OwnerSite {
		id, err = strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			return domain.OwnerID{}, fmt.Errorf("invalid %s id %q", kind, idStr)
		}
	}
	return s.OwnerFor(tenant.ID(t), domain.OwnerRef{Kind: kind, ID: id})
}

// OwnerFor places ref in tenant t. Users always resolve to the primary
// tenant and site owners ignore the ref id.
func (s *BlockService) OwnerFor(t tenant.ID, ref domain.OwnerRef) (domain.OwnerID, error) {
	switch {
	case ref.Kind == domain.OwnerSite:
		return domain.SiteOwner(t), nil
	case ref.ID == 0:
		return domain.OwnerID{}, fmt.Errorf("missing %s id", ref.Kind)
	case ref.Kind == domain.OwnerUser:
		return domain.UserOwner(s.manager.Primary(), ref.ID), nil
	default:
		return domain.NewOwnerID(t, ref.Kind, ref.ID)
	}
}

// Types lists every registered block type.
func (s *BlockService) Types() []string {
	return s.manager.Types().Types()
}
