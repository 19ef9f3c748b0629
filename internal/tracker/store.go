package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	bolt "go.etcd.io/bbolt"

	"github.com/spigell/jobscout/internal/storage"
)

// BucketName is the bolt bucket holding seen records.
const BucketName = "seen"

// MemoryStore keeps seen records for the lifetime of the process.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]time.Time)}
}

func (s *MemoryStore) MarkSeen(_ context.Context, key string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = at
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }

// BoltStore keeps seen records in the local database, one transaction per key.
type BoltStore struct {
	db *storage.DB
}

// NewBoltStore expects db to be opened with BucketName.
func NewBoltStore(db *storage.DB) *BoltStore {
	return &BoltStore{db: db}
}

func (s *BoltStore) MarkSeen(_ context.Context, key string, at time.Time) (bool, error) {
	isNew := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(BucketName))
		if err != nil {
			return err
		}
		if bucket.Get([]byte(key)) != nil {
			return nil
		}
		isNew = true
		return bucket.Put([]byte(key), []byte(at.Format(time.RFC3339)))
	})
	if err != nil {
		return false, fmt.Errorf("marking %s as seen: %w", key, err)
	}
	return isNew, nil
}

func (s *BoltStore) Reopen() error { return s.db.Reopen() }

// Close is a no-op: the database is shared with the quota store and closed by
// its owner.
func (s *BoltStore) Close() error { return nil }

const createSeenTable = `CREATE TABLE IF NOT EXISTS seen_listings (
	key        TEXT PRIMARY KEY,
	first_seen TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps seen records in a shared postgres table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and ensures the seen table.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, createSeenTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating seen_listings: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) MarkSeen(ctx context.Context, key string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO seen_listings (key, first_seen) VALUES ($1, $2)
		 ON CONFLICT (key) DO NOTHING`,
		key, at,
	)
	if err != nil {
		return false, fmt.Errorf("marking %s as seen: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
