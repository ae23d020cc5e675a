package blocks_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"awful/internal/blocks"
	"awful/internal/cache"
	"awful/internal/domain"
	"awful/internal/field"
	"awful/internal/tenant"
)

// fakeStore is an in-memory domain.BlockStore that counts calls.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[tenant.ID][]domain.Block
	nextID  int64
	fetches int
	saves   int
	deletes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[tenant.ID][]domain.Block)}
}

func matches(q domain.Query, b domain.Block) bool {
	if b.Owner.Kind != q.Kind {
		return false
	}
	if q.Kind == domain.OwnerSite {
		return true
	}
	return slices.Contains(q.IDs, b.Owner.ID)
}

func (s *fakeStore) FetchBlocks(_ context.Context, q domain.Query) ([]domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.Empty() {
		return nil, &domain.EmptyQueryError{Kind: q.Kind}
	}
	s.fetches++
	var out []domain.Block
	for _, b := range s.rows[q.Tenant] {
		if matches(q, b) {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (s *fakeStore) SaveBlocks(_ context.Context, t tenant.ID, blocks []domain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(blocks) == 0 {
		return nil
	}
	s.saves++
	for _, b := range blocks {
		i := slices.IndexFunc(s.rows[t], func(r domain.Block) bool { return r.UUID == b.UUID })
		if b.ID > 0 && i >= 0 && s.rows[t][i].ID == b.ID {
			s.rows[t][i].Data = domain.CloneData(b.Data)
			continue
		}
		if i >= 0 {
			return &domain.DatabaseError{Op: "save blocks", Err: errors.New("duplicate uuid " + b.UUID)}
		}
		s.nextID++
		b = b.Clone()
		b.ID = s.nextID
		s.rows[t] = append(s.rows[t], b)
	}
	return nil
}

func (s *fakeStore) DeleteBlocksFor(_ context.Context, owner domain.OwnerID, uuids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(uuids) == 0 {
		return nil
	}
	s.deletes++
	q := owner.Query()
	s.rows[owner.Tenant] = slices.DeleteFunc(s.rows[owner.Tenant], func(b domain.Block) bool {
		return matches(q, b) && b.Owner.ID == owner.Ref.ID && slices.Contains(uuids, b.UUID)
	})
	return nil
}

func (s *fakeStore) TakenUUIDs(_ context.Context, t tenant.ID, uuids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, b := range s.rows[t] {
		if slices.Contains(uuids, b.UUID) {
			out = append(out, b.UUID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *fakeStore) Atomically(_ context.Context, fn func(domain.BlockStore) error) error {
	s.mu.Lock()
	snapshot := make(map[tenant.ID][]domain.Block, len(s.rows))
	for t, rows := range s.rows {
		for _, b := range rows {
			snapshot[t] = append(snapshot[t], b.Clone())
		}
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.rows = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *fakeStore) uuids(t tenant.ID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, b := range s.rows[t] {
		out = append(out, b.UUID)
	}
	return out
}

func (s *fakeStore) row(t tenant.ID, uuid string) (domain.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.rows[t] {
		if b.UUID == uuid {
			return b.Clone(), true
		}
	}
	return domain.Block{}, false
}

// mockStore is a testify mock of domain.BlockStore.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) FetchBlocks(ctx context.Context, q domain.Query) ([]domain.Block, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]domain.Block), args.Error(1)
}

func (m *mockStore) SaveBlocks(ctx context.Context, t tenant.ID, blocks []domain.Block) error {
	return m.Called(ctx, t, blocks).Error(0)
}

func (m *mockStore) DeleteBlocksFor(ctx context.Context, owner domain.OwnerID, uuids []string) error {
	return m.Called(ctx, owner, uuids).Error(0)
}

func (m *mockStore) TakenUUIDs(ctx context.Context, t tenant.ID, uuids []string) ([]string, error) {
	args := m.Called(ctx, t, uuids)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) Atomically(ctx context.Context, fn func(domain.BlockStore) error) error {
	m.Called(ctx)
	return fn(m)
}

// hookCalls counts how often the "strict" model's validation hook ran.
type hookCalls struct {
	mu sync.Mutex
	n  int
}

func (h *hookCalls) inc() {
	h.mu.Lock()
	h.n++
	h.mu.Unlock()
}

func (h *hookCalls) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

func testTypes(t *testing.T) (*blocks.TypeMap, *hookCalls) {
	t.Helper()
	calls := &hookCalls{}
	tm, err := blocks.NewTypeMap(
		blocks.Registration{
			Model: blocks.NewModel("site", field.NewSet().
				Add("text", field.Text{}).
				Add("subtitle", field.Text{}).
				Add("children", field.Blocks{}), nil),
			Types: []string{domain.RootSite},
		},
		blocks.Registration{
			Model: blocks.NewModel("post", field.NewSet().
				Add("title", field.Text{}).
				Add("quotes", field.Blocks{Types: []string{"strict"}}), nil),
			Types: []string{domain.RootPost},
		},
		blocks.Registration{
			Model: blocks.NewModel("user", field.NewSet().Add("bio", field.Text{}), nil),
			Types: []string{domain.RootUser},
		},
		blocks.Registration{
			Model: blocks.NewModel("child", field.NewSet().
				Add("value", field.Text{}).
				Add("children", field.Blocks{}), nil),
			Types: []string{"child", "legacy-child"},
		},
		blocks.Registration{
			Model: blocks.NewModel("strict", field.NewSet().Add("value", field.Text{Required: true}),
				func(_ context.Context, b *blocks.Instance) error {
					calls.inc()
					v, err := b.Get("value")
					if err != nil {
						return err
					}
					if v == "bad" {
						return field.Invalid("value must not be bad")
					}
					return nil
				}),
			Types: []string{"strict"},
		},
	)
	require.NoError(t, err)
	return tm, calls
}

type fixture struct {
	store   *fakeStore
	cache   *cache.Memory
	manager *blocks.Manager
	hooks   *hookCalls
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	types, hooks := testTypes(t)
	store := newFakeStore()
	c := cache.NewMemory()
	return &fixture{
		store:   store,
		cache:   c,
		manager: blocks.NewManager(store, c, types, blocks.ManagerOptions{Logger: zerolog.Nop()}),
		hooks:   hooks,
	}
}
