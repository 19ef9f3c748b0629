// Package storage owns the local bolt database shared by the quota and seen
// stores.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// DefaultLockTimeout bounds how long Open waits for the file lock held by
// another process.
const DefaultLockTimeout = 2 * time.Second

var (
	// ErrLocked is returned when another process holds the database file.
	ErrLocked = errors.New("store is locked by another process")
	// ErrClosed is returned by Reopen once Close has been called.
	ErrClosed = errors.New("store is closed")
)

// DB wraps a bolt database with reopen support.
type DB struct {
	path    string
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	db     *bolt.DB
	closed bool
}

// Open opens (or creates) the database file and ensures the given buckets.
func Open(path string, logger *zap.Logger, buckets ...string) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &DB{
		path:    path,
		timeout: DefaultLockTimeout,
		logger:  logger,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	d.mu.Lock()
	err := d.open()
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := d.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		_ = d.Close()
		return nil, err
	}

	return d, nil
}

// open expects d.mu to be held.
func (d *DB) open() error {
	db, err := bolt.Open(d.path, 0o600, &bolt.Options{Timeout: d.timeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return fmt.Errorf("opening %s: %w", d.path, ErrLocked)
		}
		return fmt.Errorf("opening %s: %w", d.path, err)
	}

	d.db = db

	return nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Update runs fn in a read-write transaction.
func (d *DB) Update(fn func(tx *bolt.Tx) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return bolt.ErrDatabaseNotOpen
	}

	return d.db.Update(fn)
}

// View runs fn in a read-only transaction.
func (d *DB) View(fn func(tx *bolt.Tx) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return bolt.ErrDatabaseNotOpen
	}

	return d.db.View(fn)
}

// Reopen closes the current handle, if any, and opens the file again. It
// returns ErrClosed after Close.
func (d *DB) Reopen() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	if d.db != nil {
		if err := d.db.Close(); err != nil {
			d.logger.Debug("closing store before reopen", zap.String("path", d.path), zap.Error(err))
		}
		d.db = nil
	}

	d.logger.Info("reopening store", zap.String("path", d.path))

	return d.open()
}

// Close releases the file lock for good. It is safe to call more than once.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.db == nil {
		return nil
	}

	err := d.db.Close()
	d.db = nil

	return err
}
