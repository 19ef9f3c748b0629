// Package tracker remembers which listings were seen in earlier runs.
package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store persists seen records keyed by listing key (source:id).
type Store interface {
	// MarkSeen records key at time at. isNew is true when the key was not
	// recorded before.
	MarkSeen(ctx context.Context, key string, at time.Time) (isNew bool, err error)
	Close() error
}

type reopener interface {
	Reopen() error
}

// Tracker annotates listings as new or already seen. When the store breaks it
// is reopened once; after that tracking is disabled for the rest of the run
// and every listing is reported as new.
type Tracker struct {
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	store    Store
	degraded bool
}

// New creates a tracker over store. A nil store keeps records in memory.
func New(store Store, logger *zap.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Tracker{
		logger: logger,
		now:    time.Now,
		store:  store,
	}
}

// MarkAndCheck records key and reports whether it was seen for the first time.
func (t *Tracker) MarkAndCheck(ctx context.Context, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.degraded {
		return true
	}

	at := t.now().UTC()
	isNew, err := t.store.MarkSeen(ctx, key, at)
	if err == nil {
		return isNew
	}

	t.logger.Warn("seen store failed", zap.String("key", key), zap.Error(err))

	if r, ok := t.store.(reopener); ok {
		if rerr := r.Reopen(); rerr == nil {
			if isNew, err = t.store.MarkSeen(ctx, key, at); err == nil {
				return isNew
			}
		} else {
			err = rerr
		}
	}

	t.logger.Warn("seen store unavailable, tracking disabled for this run", zap.Error(err))
	t.degraded = true

	return true
}

// Degraded reports whether tracking was disabled after a store failure.
func (t *Tracker) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

// Close closes the underlying store.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Close()
}
