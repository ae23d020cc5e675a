package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"awful/internal/domain"
	"awful/internal/metrics"
	"awful/internal/tenant"
)

// ErrSweepRunning is returned when a sweep of the same tenant is already in
// progress.
var ErrSweepRunning = errors.New("sweep already running")

// Pruner deletes an owner's unreachable blocks.
type Pruner interface {
	Prune(ctx context.Context, owner domain.OwnerID) ([]string, error)
}

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	// Timeout bounds the sweep of one tenant. Zero means no bound.
	Timeout time.Duration
	// Concurrency is the number of tenants swept at once. Hosts with a
	// tenant switcher must use 1.
	Concurrency int
	Metrics     metrics.Metrics
	Logger      zerolog.Logger
}

// SweepResult summarises the sweep of one tenant.
type SweepResult struct {
	Tenant  tenant.ID `json:"tenant"`
	Owners  int       `json:"owners"`
	Deleted int       `json:"deleted"`
}

// Sweeper garbage-collects blocks left unreachable by concurrent form
// submissions on the same owner.
type Sweeper struct {
	owners  domain.OwnerLister
	pruner  Pruner
	emitter EventEmitter
	opts    SweeperOptions
	logger  zerolog.Logger

	running runningJobsGuard

	mu        sync.Mutex
	cronSched *cron.Cron
}

// NewSweeper creates a Sweeper.
func NewSweeper(owners domain.OwnerLister, pruner Pruner, emitter EventEmitter, opts SweeperOptions) *Sweeper {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNopMetrics()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Sweeper{
		owners:  owners,
		pruner:  pruner,
		emitter: emitter,
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "sweeper").Logger(),
	}
}

// SweepTenant prunes every owner of tenant t. Owners that fail are logged
// and skipped; their errors are joined into the returned error.
func (s *Sweeper) SweepTenant(ctx context.Context, t tenant.ID) (SweepResult, error) {
	jobID := "sweep:" + strconv.FormatInt(int64(t), 10)
	if !s.running.TryLock(jobID) {
		return SweepResult{}, fmt.Errorf("tenant %d: %w", t, ErrSweepRunning)
	}
	defer s.running.Unlock(jobID)

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	result := SweepResult{Tenant: t}
	owners, err := s.owners.ListOwners(ctx, t)
	if err != nil {
		return result, fmt.Errorf("list owners of tenant %d: %w", t, err)
	}
	result.Owners = len(owners)

	var errs []error
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		pruned, err := s.pruner.Prune(ctx, owner)
		if err != nil {
			s.logger.Warn().Err(err).Str("owner", owner.String()).Msg("prune failed")
			errs = append(errs, fmt.Errorf("prune %s: %w", owner, err))
			continue
		}
		result.Deleted += len(pruned)
	}

	s.opts.Metrics.AddSweeperDeleted(result.Deleted)
	s.logger.Info().
		Int64("tenant", int64(t)).
		Int("owners", result.Owners).
		Int("deleted", result.Deleted).
		Msg("sweep finished")
	s.emitter.Emit(ctx, EventSweepCompleted, result)
	return result, errors.Join(errs...)
}

// Sweep sweeps each tenant, several at a time when Concurrency allows.
// Results are in the order of tenants. One tenant failing does not stop
// the others.
func (s *Sweeper) Sweep(ctx context.Context, tenants []tenant.ID) ([]SweepResult, error) {
	results := make([]SweepResult, len(tenants))
	errs := make([]error, len(tenants))
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, t := range tenants {
		g.Go(func() error {
			results[i], errs[i] = s.SweepTenant(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

// Start runs Sweep over tenants on the cron schedule until Stop. A tick
// that finds a tenant still being swept skips it.
func (s *Sweeper) Start(ctx context.Context, schedule string, tenants []tenant.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cronSched != nil {
		return errors.New("sweeper already started")
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx, tenants); err != nil {
			s.logger.Error().Err(err).Msg("scheduled sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cronSched = c
	s.logger.Info().Str("schedule", schedule).Int("tenants", len(tenants)).Msg("sweeper scheduled")
	return nil
}

// Stop cancels the schedule and waits for running sweeps until ctx ends.
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cronSched
	s.cronSched = nil
	s.mu.Unlock()
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.running.WaitAll(ctx)
}
