// Package cache is the key-value store in front of the block tables.
//
// Keys are grouped, and every group except the global ones is partitioned
// by the tenant carried in the context, so callers must scope the context
// (tenant.Within) before reading or writing.
package cache

import (
	"context"
	"strconv"
	"sync"

	"awful/internal/tenant"
)

// Cache stores opaque values by group and key. A missing key is not an
// error: Get reports it through the boolean.
type Cache interface {
	Get(ctx context.Context, group, key string) ([]byte, bool, error)
	Set(ctx context.Context, group, key string, value []byte) error
	Delete(ctx context.Context, group, key string) error
	// AddGlobalGroups marks groups whose keys are shared by all tenants.
	AddGlobalGroups(groups ...string)
}

// scopes tracks the global groups and turns (ctx, group, key) into the
// backend key.
type scopes struct {
	mu     sync.RWMutex
	global map[string]bool
}

func (s *scopes) addGlobal(groups ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.global == nil {
		s.global = make(map[string]bool)
	}
	for _, g := range groups {
		s.global[g] = true
	}
}

func (s *scopes) scope(ctx context.Context, group string) string {
	s.mu.RLock()
	global := s.global[group]
	s.mu.RUnlock()
	if global {
		return "global"
	}
	return strconv.FormatInt(int64(tenant.FromOr(ctx, 0)), 10)
}

func (s *scopes) key(ctx context.Context, group, key string) string {
	return s.scope(ctx, group) + ":" + group + ":" + key
}
