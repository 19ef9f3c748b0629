package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

func TestOpenCreatesBuckets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "jobscout.db")

	db, err := Open(path, zap.NewNop(), "quota", "seen")
	require.NoError(t, err)
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		for _, name := range []string{"quota", "seen"} {
			if tx.Bucket([]byte(name)) == nil {
				return errors.New("missing bucket " + name)
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestCloseIsIdempotentAndBlocksUse(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "jobscout.db"), nil, "quota")
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	err = db.Update(func(*bolt.Tx) error { return nil })
	assert.ErrorIs(t, err, bolt.ErrDatabaseNotOpen)
}

func TestReopenRestoresAccess(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "jobscout.db"), nil, "quota")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("quota")).Put([]byte("k"), []byte("v"))
	}))

	// A stale handle fails every transaction until Reopen.
	require.NoError(t, db.db.Close())
	assert.Error(t, db.Update(func(*bolt.Tx) error { return nil }))
	require.NoError(t, db.Reopen())

	var got []byte
	require.NoError(t, db.View(func(tx *bolt.Tx) error {
		got = append(got, tx.Bucket([]byte("quota")).Get([]byte("k"))...)
		return nil
	}))
	assert.Equal(t, "v", string(got))
}

func TestReopenAfterCloseIsRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobscout.db")
	db, err := Open(path, nil, "quota")
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.ErrorIs(t, db.Reopen(), ErrClosed)

	err = db.View(func(*bolt.Tx) error { return nil })
	assert.ErrorIs(t, err, bolt.ErrDatabaseNotOpen)

	// The file lock is released, so another handle can take it.
	other, err := Open(path, nil, "quota")
	require.NoError(t, err)
	require.NoError(t, other.Close())
}
