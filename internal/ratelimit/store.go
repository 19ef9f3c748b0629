package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"

	"github.com/spigell/jobscout/internal/storage"
)

// BucketName is the bolt bucket holding quota counters.
const BucketName = "quota"

// MemoryStore keeps buckets for the lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]Bucket
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]Bucket)}
}

func (s *MemoryStore) Load(_ context.Context, backend string) (*Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[backend]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *MemoryStore) Save(_ context.Context, b *Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets[b.Backend] = *b
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// BoltStore persists buckets in the local database.
type BoltStore struct {
	db *storage.DB
}

// NewBoltStore expects db to be opened with BucketName.
func NewBoltStore(db *storage.DB) *BoltStore {
	return &BoltStore{db: db}
}

func (s *BoltStore) Load(_ context.Context, backend string) (*Bucket, error) {
	var b *Bucket
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(BucketName))
		if bucket == nil {
			return fmt.Errorf("bucket %s is missing", BucketName)
		}
		raw := bucket.Get([]byte(backend))
		if raw == nil {
			return nil
		}
		b = &Bucket{}
		return json.Unmarshal(raw, b)
	})
	if err != nil {
		return nil, fmt.Errorf("loading quota for %s: %w", backend, err)
	}
	return b, nil
}

func (s *BoltStore) Save(_ context.Context, b *Bucket) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(BucketName))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(b.Backend), data)
	})
	if err != nil {
		return fmt.Errorf("saving quota for %s: %w", b.Backend, err)
	}
	return nil
}

func (s *BoltStore) Reopen() error { return s.db.Reopen() }

// Close is a no-op: the database is shared with the seen store and closed by
// its owner.
func (s *BoltStore) Close() error { return nil }

const redisKeyPrefix = "jobscout:quota:"

// RedisStore keeps buckets in redis hashes so several hosts can share quota.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore parses redisURL and verifies connectivity.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, backend string) (*Bucket, error) {
	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+backend).Result()
	if err != nil {
		return nil, fmt.Errorf("loading quota for %s: %w", backend, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	return bucketFromHash(backend, fields)
}

// bucketFromHash decodes the hash written by Save. A field that does not
// parse is an error, so a corrupted hash is never read as an empty quota.
func bucketFromHash(backend string, fields map[string]string) (*Bucket, error) {
	used, err := strconv.Atoi(fields["used"])
	if err != nil {
		return nil, fmt.Errorf("quota for %s: used: %w", backend, err)
	}
	limit, err := strconv.Atoi(fields["limit"])
	if err != nil {
		return nil, fmt.Errorf("quota for %s: limit: %w", backend, err)
	}
	start, err := strconv.ParseInt(fields["period_start"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("quota for %s: period_start: %w", backend, err)
	}
	period, err := strconv.ParseInt(fields["period_seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("quota for %s: period_seconds: %w", backend, err)
	}

	return &Bucket{
		Backend:     backend,
		Used:        used,
		Limit:       limit,
		PeriodStart: time.Unix(start, 0).UTC(),
		Period:      time.Duration(period) * time.Second,
	}, nil
}

func (s *RedisStore) Save(ctx context.Context, b *Bucket) error {
	key := redisKeyPrefix + b.Backend

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"used", b.Used,
			"limit", b.Limit,
			"period_start", b.PeriodStart.Unix(),
			"period_seconds", int64(b.Period/time.Second),
		)
		pipe.ExpireAt(ctx, key, b.PeriodStart.Add(2*b.Period))
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving quota for %s: %w", b.Backend, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
