// Package ratelimit enforces request quotas per logical backend. Several
// sources may share one backend key; the quota is spent once per request
// regardless of which source issued it.
package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Bucket is the persisted counter of one backend.
type Bucket struct {
	Backend     string        `json:"backend"`
	Used        int           `json:"used"`
	Limit       int           `json:"limit"`
	PeriodStart time.Time     `json:"period_start"`
	Period      time.Duration `json:"period"`
}

// Usage is a read-only snapshot of a bucket for display.
type Usage struct {
	Backend     string
	Used        int
	Limit       int
	Remaining   int
	Period      time.Duration
	PeriodStart time.Time
	ResetsAt    time.Time
}

// Store persists buckets between runs.
type Store interface {
	// Load returns nil without error when the backend has no bucket yet.
	Load(ctx context.Context, backend string) (*Bucket, error)
	Save(ctx context.Context, b *Bucket) error
	Close() error
}

// reopener is implemented by stores that can recover a broken connection.
type reopener interface {
	Reopen() error
}

// Limiter hands out quota. Calls for the same backend are serialized by a
// per-backend mutex; unrelated backends never wait for each other.
type Limiter struct {
	rules    map[string]Rule
	fallback Rule
	logger   *zap.Logger
	now      func() time.Time

	storeMu  sync.RWMutex
	store    Store
	degraded bool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a limiter over store. A nil store keeps counters in memory.
func New(store Store, rules map[string]Rule, logger *zap.Logger) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	copied := make(map[string]Rule, len(rules))
	for backend, rule := range rules {
		copied[backend] = rule
	}

	return &Limiter{
		rules:    copied,
		fallback: FallbackRule,
		logger:   logger,
		now:      time.Now,
		store:    store,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Rule returns the quota rule applied to backend.
func (l *Limiter) Rule(backend string) Rule {
	if rule, ok := l.rules[backend]; ok {
		return rule
	}
	return l.fallback
}

// Backends returns the backends with a configured rule, sorted.
func (l *Limiter) Backends() []string {
	backends := make([]string, 0, len(l.rules))
	for backend := range l.rules {
		backends = append(backends, backend)
	}
	sort.Strings(backends)
	return backends
}

// Allow spends one request of the backend quota. It returns false when the
// quota of the current period is exhausted; that is not an error.
func (l *Limiter) Allow(ctx context.Context, backend string) bool {
	lock := l.lockFor(backend)
	lock.Lock()
	defer lock.Unlock()

	b := l.current(ctx, backend)
	if b.Used >= b.Limit {
		l.logger.Debug("quota exhausted",
			zap.String("backend", backend),
			zap.Int("used", b.Used),
			zap.Int("limit", b.Limit),
		)
		return false
	}

	b.Used++
	l.withStore(func(s Store) error { return s.Save(ctx, b) })

	return true
}

// QuotaUsage returns the usage of backend in the current period without
// spending quota.
func (l *Limiter) QuotaUsage(ctx context.Context, backend string) Usage {
	lock := l.lockFor(backend)
	lock.Lock()
	defer lock.Unlock()

	b := l.current(ctx, backend)
	remaining := b.Limit - b.Used
	if remaining < 0 {
		remaining = 0
	}

	return Usage{
		Backend:     backend,
		Used:        b.Used,
		Limit:       b.Limit,
		Remaining:   remaining,
		Period:      b.Period,
		PeriodStart: b.PeriodStart,
		ResetsAt:    b.PeriodStart.Add(b.Period),
	}
}

// Snapshot returns the usage of every backend in extra plus the configured
// ones, sorted by backend.
func (l *Limiter) Snapshot(ctx context.Context, extra ...string) []Usage {
	seen := make(map[string]struct{})
	backends := make([]string, 0, len(l.rules)+len(extra))
	for _, backend := range append(l.Backends(), extra...) {
		if _, ok := seen[backend]; ok || backend == "" {
			continue
		}
		seen[backend] = struct{}{}
		backends = append(backends, backend)
	}
	sort.Strings(backends)

	usage := make([]Usage, 0, len(backends))
	for _, backend := range backends {
		usage = append(usage, l.QuotaUsage(ctx, backend))
	}
	return usage
}

// Degraded reports whether the limiter fell back to in-memory counters.
func (l *Limiter) Degraded() bool {
	l.storeMu.RLock()
	defer l.storeMu.RUnlock()
	return l.degraded
}

// Close closes the underlying store.
func (l *Limiter) Close() error {
	l.storeMu.RLock()
	defer l.storeMu.RUnlock()
	return l.store.Close()
}

// current loads the bucket and rolls it into the current period. The caller
// holds the backend lock.
func (l *Limiter) current(ctx context.Context, backend string) *Bucket {
	var b *Bucket
	l.withStore(func(s Store) error {
		loaded, err := s.Load(ctx, backend)
		if err != nil {
			return err
		}
		b = loaded
		return nil
	})

	rule := l.Rule(backend)
	now := l.now().UTC()

	if b == nil {
		b = &Bucket{Backend: backend}
	}

	if b.Period != rule.Period || b.PeriodStart.IsZero() || !now.Before(b.PeriodStart.Add(rule.Period)) {
		b.Used = 0
		b.PeriodStart = now.Truncate(rule.Period)
	}
	b.Backend = backend
	b.Period = rule.Period
	b.Limit = rule.Limit

	return b
}

// withStore runs fn against the store. On failure the store is reopened once
// when it supports that; if it still fails the limiter switches to in-memory
// counters for the rest of the run.
func (l *Limiter) withStore(fn func(Store) error) {
	l.storeMu.RLock()
	store := l.store
	l.storeMu.RUnlock()

	err := fn(store)
	if err == nil {
		return
	}

	l.logger.Warn("quota store failed", zap.Error(err))

	if r, ok := store.(reopener); ok {
		if rerr := r.Reopen(); rerr == nil {
			if err = fn(store); err == nil {
				return
			}
		} else {
			err = rerr
		}
	}

	l.storeMu.Lock()
	if l.store == store {
		l.logger.Warn("quota store unavailable, counting in memory for this run", zap.Error(err))
		l.store = NewMemoryStore()
		l.degraded = true
		_ = store.Close()
	}
	fallback := l.store
	l.storeMu.Unlock()

	_ = fn(fallback)
}

func (l *Limiter) lockFor(backend string) *sync.Mutex {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()

	lock, ok := l.locks[backend]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[backend] = lock
	}
	return lock
}
