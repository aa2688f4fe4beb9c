package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"todo-api/internal/cache"
	"todo-api/internal/models"

	"golang.org/x/sync/singleflight"
)

const listAllKey = "tasks:all"

func taskKey(id int64) string {
	return fmt.Sprintf("task:%d", id)
}

// CachedStore caches Get and ListAll of another TaskStore. Cache failures
// are logged and the inner store answers instead; a write that succeeds
// always invalidates the affected keys.
//
// Every write bumps gen. A fill whose read started under an older gen is
// dropped, so a read racing a write never puts the old record back. Keys
// whose invalidation failed stay in pending and the cache is bypassed until
// they are deleted.
type CachedStore struct {
	inner TaskStore
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
	gen   atomic.Uint64

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewCachedStore(inner TaskStore, c cache.Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedStore{inner: inner, cache: c, ttl: ttl, pending: make(map[string]struct{})}
}

func (s *CachedStore) Unwrap() TaskStore {
	return s.inner
}

func (s *CachedStore) Get(ctx context.Context, id int64) (models.Task, bool, error) {
	key := taskKey(id)
	if !s.cacheUsable(ctx) {
		return s.inner.Get(ctx, id)
	}

	var task models.Task
	if err := s.cache.Get(ctx, key, &task); err == nil {
		task.NormalizeTimes()
		return task, true, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("[store] cache read %s failed: %v", key, err)
	}

	type result struct {
		task  models.Task
		found bool
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		gen := s.gen.Load()
		t, found, err := s.inner.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			s.fill(ctx, gen, key, t)
		}
		return result{task: t, found: found}, nil
	})
	if err != nil {
		return models.Task{}, false, err
	}
	r := v.(result)
	return r.task.Clone(), r.found, nil
}

func (s *CachedStore) ListAll(ctx context.Context) ([]models.Task, error) {
	if !s.cacheUsable(ctx) {
		return s.inner.ListAll(ctx)
	}

	var tasks []models.Task
	if err := s.cache.Get(ctx, listAllKey, &tasks); err == nil {
		for i := range tasks {
			tasks[i].NormalizeTimes()
		}
		return tasks, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("[store] cache read %s failed: %v", listAllKey, err)
	}

	v, err, _ := s.group.Do(listAllKey, func() (interface{}, error) {
		gen := s.gen.Load()
		all, err := s.inner.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		s.fill(ctx, gen, listAllKey, all)
		return all, nil
	})
	if err != nil {
		return nil, err
	}

	shared := v.([]models.Task)
	out := make([]models.Task, len(shared))
	for i, t := range shared {
		out[i] = t.Clone()
	}
	return out, nil
}

func (s *CachedStore) Insert(ctx context.Context, task models.Task) (models.Task, error) {
	created, err := s.inner.Insert(ctx, task)
	if err != nil {
		return created, err
	}
	s.invalidate(ctx, listAllKey)
	return created, nil
}

func (s *CachedStore) Update(ctx context.Context, task models.Task) (models.Task, error) {
	updated, err := s.inner.Update(ctx, task)
	if err != nil {
		return updated, err
	}
	s.invalidate(ctx, listAllKey, taskKey(task.ID))
	return updated, nil
}

func (s *CachedStore) Delete(ctx context.Context, id int64) (bool, error) {
	removed, err := s.inner.Delete(ctx, id)
	if err != nil {
		return removed, err
	}
	if removed {
		s.invalidate(ctx, listAllKey, taskKey(id))
	}
	return removed, nil
}

func (s *CachedStore) Health(ctx context.Context) error {
	return s.inner.Health(ctx)
}

// Close closes the inner store only. The cache has its own owner.
func (s *CachedStore) Close() error {
	return s.inner.Close()
}

// fill caches value read under gen. If a write lands after the read, the
// entry is skipped, or removed again when the write raced the Set itself.
func (s *CachedStore) fill(ctx context.Context, gen uint64, key string, value interface{}) {
	if s.gen.Load() != gen {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		log.Printf("[store] cache fill %s failed: %v", key, err)
		return
	}
	if s.gen.Load() != gen {
		s.invalidate(ctx, key)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	s.gen.Add(1)
	for _, k := range keys {
		s.group.Forget(k)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Printf("[store] cache invalidate %v failed: %v", keys, err)
		s.mu.Lock()
		for _, k := range keys {
			s.pending[k] = struct{}{}
		}
		s.mu.Unlock()
	}
}

// cacheUsable retries invalidations that failed earlier. Until they
// succeed the cache may hold records older than the store.
func (s *CachedStore) cacheUsable(ctx context.Context) bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return true
	}
	keys := make([]string, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	if err := s.cache.Delete(ctx, keys...); err != nil {
		return false
	}

	s.mu.Lock()
	for _, k := range keys {
		delete(s.pending, k)
	}
	s.mu.Unlock()
	return true
}

// ResolveOwners finds an OwnerResolver in st or in any store it wraps.
func ResolveOwners(st TaskStore) (OwnerResolver, bool) {
	for st != nil {
		if r, ok := st.(OwnerResolver); ok {
			return r, true
		}
		u, ok := st.(interface{ Unwrap() TaskStore })
		if !ok {
			return nil, false
		}
		st = u.Unwrap()
	}
	return nil, false
}
