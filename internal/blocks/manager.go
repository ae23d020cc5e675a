package blocks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"awful/internal/cache"
	"awful/internal/domain"
	"awful/internal/metrics"
	"awful/internal/tenant"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Primary is the tenant holding every user's blocks.
	Primary  tenant.ID
	Switcher tenant.Switcher
	Metrics  metrics.Metrics
	Logger   zerolog.Logger
}

// Manager loads block sets through the cache and writes them back through
// the store.
type Manager struct {
	store    domain.BlockStore
	cache    cache.Cache
	types    *TypeMap
	primary  tenant.ID
	switcher tenant.Switcher
	metrics  metrics.Metrics
	logger   zerolog.Logger
	fetches  singleflight.Group

	// gens counts invalidations per cache entry. A fetch only fills an
	// entry whose generation did not move while it ran.
	gensMu sync.Mutex
	gens   map[string]uint64
}

func NewManager(store domain.BlockStore, c cache.Cache, types *TypeMap, opts ManagerOptions) *Manager {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNopMetrics()
	}
	// User accounts are shared, so their cache entries must be too.
	c.AddGlobalGroups(cacheGroup(domain.OwnerUser))
	return &Manager{
		store:    store,
		cache:    c,
		types:    types,
		primary:  opts.Primary,
		switcher: opts.Switcher,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With().Str("component", "blocks").Logger(),
		gens:     make(map[string]uint64),
	}
}

func (m *Manager) Types() *TypeMap { return m.types }

func (m *Manager) Primary() tenant.ID { return m.primary }

// cacheGroup is the cache group of one owner kind.
func cacheGroup(kind domain.OwnerKind) string {
	return "awful_blocks_" + kind.String()
}

// cacheKey is the key of one owner within its group. The site query is a
// single unit keyed by its tenant.
func cacheKey(q domain.Query, id uint64) string {
	if q.WholeTenant() {
		return strconv.FormatInt(int64(q.Tenant), 10)
	}
	return strconv.FormatUint(id, 10)
}

// genKey names a cache entry across tenants. The user group is global.
func genKey(t tenant.ID, kind domain.OwnerKind, key string) string {
	if kind == domain.OwnerUser {
		t = 0
	}
	return fmt.Sprintf("%d/%s/%s", t, kind, key)
}

func (m *Manager) generations(q domain.Query) []uint64 {
	m.gensMu.Lock()
	defer m.gensMu.Unlock()
	out := make([]uint64, len(q.IDs))
	for i, id := range q.IDs {
		out[i] = m.gens[genKey(q.Tenant, q.Kind, cacheKey(q, id))]
	}
	return out
}

func (m *Manager) bump(owner domain.OwnerID) {
	k := genKey(owner.Tenant, owner.Ref.Kind, cacheKey(owner.Query(), owner.Ref.ID))
	m.gensMu.Lock()
	m.gens[k]++
	m.gensMu.Unlock()
}

// BlockSetsForQuery returns a fresh Set for every owner selected by q.
// Owners without blocks get an empty set. Cached owners are served from the
// cache; the rest are fetched with one query and cached, empty ones
// included.
func (m *Manager) BlockSetsForQuery(ctx context.Context, q domain.Query) (map[uint64]*Set, error) {
	if q.Empty() {
		return nil, &domain.EmptyQueryError{Kind: q.Kind}
	}
	group := cacheGroup(q.Kind)
	kind := q.Kind.String()
	sets := make(map[uint64]*Set, len(q.IDs))

	err := tenant.Within(ctx, m.switcher, q.Tenant, func(ctx context.Context) error {
		var hits []uint64
		for _, id := range q.IDs {
			raw, ok, err := m.cache.Get(ctx, group, cacheKey(q, id))
			if err != nil {
				m.logger.Warn().Err(err).Str("group", group).Uint64("owner", id).Msg("cache read failed")
				ok = false
			}
			if ok {
				var blocks []domain.Block
				if err := json.Unmarshal(raw, &blocks); err == nil {
					sets[id] = NewSet(q.Owner(id), m.types, m, blocks)
					hits = append(hits, id)
					m.metrics.IncCacheHits(kind)
					continue
				}
				m.logger.Warn().Str("group", group).Uint64("owner", id).Msg("discarding undecodable cache entry")
			}
			m.metrics.IncCacheMisses(kind)
		}

		missing := q.Without(hits...)
		if missing.Empty() {
			return nil
		}
		gens := m.generations(missing)
		rows, err := m.fetch(ctx, missing, gens)
		if err != nil {
			return err
		}
		current := m.generations(missing)

		byOwner := make(map[uint64][]domain.Block, len(missing.IDs))
		for _, b := range rows {
			byOwner[b.Owner.ID] = append(byOwner[b.Owner.ID], b)
		}
		for i, id := range missing.IDs {
			blocks := byOwner[id]
			if blocks == nil {
				blocks = []domain.Block{}
			}
			sets[id] = NewSet(q.Owner(id), m.types, m, blocks)
			if current[i] != gens[i] {
				// invalidated mid-fetch; the rows may predate the write
				continue
			}
			encoded, err := json.Marshal(blocks)
			if err != nil {
				return fmt.Errorf("encode blocks of %s: %w", q.Owner(id), err)
			}
			if err := m.cache.Set(ctx, group, cacheKey(q, id), encoded); err != nil {
				m.logger.Warn().Err(err).Str("group", group).Uint64("owner", id).Msg("cache write failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sets, nil
}

// fetch collapses identical concurrent fetches into one storage call. A
// caller only joins a fetch started at the same cache generations. The
// rows are shared between callers and must not be mutated; NewSet copies
// them.
func (m *Manager) fetch(ctx context.Context, q domain.Query, gens []uint64) ([]domain.Block, error) {
	key := fmt.Sprintf("%d/%s/%v/%v", q.Tenant, q.Kind, q.IDs, gens)
	v, err, _ := m.fetches.Do(key, func() (any, error) {
		m.metrics.IncStorageFetches(q.Kind.String())
		start := time.Now()
		rows, err := m.store.FetchBlocks(ctx, q)
		m.metrics.ObserveFetchLatency(q.Kind.String(), time.Since(start))
		return rows, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Block), nil
}

// BlockSet returns the set of a single owner.
func (m *Manager) BlockSet(ctx context.Context, owner domain.OwnerID) (*Set, error) {
	sets, err := m.BlockSetsForQuery(ctx, owner.Query())
	if err != nil {
		return nil, err
	}
	return sets[owner.Ref.ID], nil
}

// Save writes every block of the given sets in one statement. All sets must
// belong to the same tenant. The cache is left alone; callers reload the
// owners they changed.
func (m *Manager) Save(ctx context.Context, sets ...*Set) error {
	t, blocks, err := flatten(sets)
	if err != nil || len(blocks) == 0 {
		return err
	}
	if err := m.store.SaveBlocks(ctx, t, blocks); err != nil {
		return err
	}
	m.metrics.AddBlocksSaved(len(blocks))
	return nil
}

func flatten(sets []*Set) (tenant.ID, []domain.Block, error) {
	if len(sets) == 0 {
		return 0, nil, nil
	}
	t := sets[0].owner.Tenant
	var blocks []domain.Block
	for _, s := range sets {
		if s.owner.Tenant != t {
			return 0, nil, &domain.CrossTenantError{Want: t, Got: s.owner.Tenant}
		}
		blocks = append(blocks, s.Blocks()...)
	}
	return t, blocks, nil
}

// DeleteBlocksFor deletes the owner's blocks with the given uuids.
func (m *Manager) DeleteBlocksFor(ctx context.Context, owner domain.OwnerID, uuids []string) error {
	if err := m.store.DeleteBlocksFor(ctx, owner, uuids); err != nil {
		return err
	}
	m.metrics.AddBlocksDeleted(len(uuids))
	return nil
}

// Replace saves set and deletes the owner's orphans in one transaction.
func (m *Manager) Replace(ctx context.Context, set *Set, orphans []string) error {
	blocks := set.Blocks()
	err := m.store.Atomically(ctx, func(tx domain.BlockStore) error {
		if err := tx.SaveBlocks(ctx, set.owner.Tenant, blocks); err != nil {
			return err
		}
		return tx.DeleteBlocksFor(ctx, set.owner, orphans)
	})
	if err != nil {
		return err
	}
	m.metrics.AddBlocksSaved(len(blocks))
	m.metrics.AddBlocksDeleted(len(orphans))
	return nil
}

// Prune deletes the owner's blocks that the root no longer reaches and
// returns their uuids. The set is read from storage, not the cache, and
// the read and the delete share one transaction.
func (m *Manager) Prune(ctx context.Context, owner domain.OwnerID) ([]string, error) {
	var orphans []string
	err := m.store.Atomically(ctx, func(tx domain.BlockStore) error {
		rows, err := tx.FetchBlocks(ctx, owner.Query())
		if err != nil {
			return err
		}
		orphans = NewSet(owner, m.types, m, rows).Unreachable()
		if len(orphans) == 0 {
			return nil
		}
		return tx.DeleteBlocksFor(ctx, owner, orphans)
	})
	if err != nil || len(orphans) == 0 {
		return nil, err
	}
	m.metrics.AddBlocksDeleted(len(orphans))
	m.logger.Info().
		Str("owner", owner.String()).
		Strs("uuids", orphans).
		Msg("pruned unreachable blocks")
	return orphans, m.Invalidate(ctx, owner)
}

// TakenUUIDs returns those of uuids already stored in t's table, by any
// owner.
func (m *Manager) TakenUUIDs(ctx context.Context, t tenant.ID, uuids []string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	return m.store.TakenUUIDs(ctx, t, uuids)
}

// Invalidate drops the owner's cache entry. Fetches already in flight for
// the owner will not write it back.
func (m *Manager) Invalidate(ctx context.Context, owner domain.OwnerID) error {
	m.bump(owner)
	q := owner.Query()
	return tenant.Within(ctx, m.switcher, owner.Tenant, func(ctx context.Context) error {
		return m.cache.Delete(ctx, cacheGroup(owner.Ref.Kind), cacheKey(q, owner.Ref.ID))
	})
}

// Owner returns a handle on the owner's blocks.
func (m *Manager) Owner(id domain.OwnerID) *Owner {
	return &Owner{id: id, manager: m}
}
