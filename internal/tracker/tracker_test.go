package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobscout/internal/storage"
)

type brokenStore struct {
	calls   int
	reopens int
}

func (s *brokenStore) MarkSeen(context.Context, string, time.Time) (bool, error) {
	s.calls++
	return false, errors.New("disk on fire")
}

func (s *brokenStore) Reopen() error {
	s.reopens++
	return nil
}

func (s *brokenStore) Close() error { return nil }

func TestMarkAndCheckMemory(t *testing.T) {
	tr := New(nil, zap.NewNop())
	ctx := context.Background()

	assert.True(t, tr.MarkAndCheck(ctx, "lever:1"))
	assert.False(t, tr.MarkAndCheck(ctx, "lever:1"))
	assert.True(t, tr.MarkAndCheck(ctx, "lever:2"))
	assert.False(t, tr.Degraded())
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobscout.db")
	ctx := context.Background()

	db, err := storage.Open(path, zap.NewNop(), BucketName)
	require.NoError(t, err)

	tr := New(NewBoltStore(db), zap.NewNop())
	assert.True(t, tr.MarkAndCheck(ctx, "greenhouse:42"))
	assert.False(t, tr.MarkAndCheck(ctx, "greenhouse:42"))
	require.NoError(t, db.Close())

	db, err = storage.Open(path, zap.NewNop(), BucketName)
	require.NoError(t, err)
	defer db.Close()

	tr = New(NewBoltStore(db), zap.NewNop())
	assert.False(t, tr.MarkAndCheck(ctx, "greenhouse:42"))
	assert.True(t, tr.MarkAndCheck(ctx, "greenhouse:43"))
}

func TestBoltStoreAfterCloseDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobscout.db")
	db, err := storage.Open(path, zap.NewNop(), BucketName)
	require.NoError(t, err)

	// Shutdown closed the database while the run was still going.
	require.NoError(t, db.Close())

	tr := New(NewBoltStore(db), zap.NewNop())
	assert.True(t, tr.MarkAndCheck(context.Background(), "lever:1"))
	assert.True(t, tr.Degraded())

	// No handle was reopened behind the closed store.
	other, err := storage.Open(path, zap.NewNop(), BucketName)
	require.NoError(t, err)
	require.NoError(t, other.Close())
}

func TestBrokenStoreDegradesOnce(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := &brokenStore{}
	tr := New(store, zap.New(core))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, tr.MarkAndCheck(ctx, "adzuna:1"))
	}

	assert.True(t, tr.Degraded())
	assert.Equal(t, 1, store.reopens)
	assert.Equal(t, 2, store.calls)
	assert.Equal(t, 1, logs.FilterMessage("seen store unavailable, tracking disabled for this run").Len())
}
