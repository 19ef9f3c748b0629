package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *time.Time) {
	t.Helper()

	c, err := New(t.TempDir(), ttl, zap.NewNop())
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	return c, &now
}

func TestCacheHitBeforeTTLAndMissAfter(t *testing.T) {
	c, now := newTestCache(t, time.Hour)
	fp := Fingerprint("GET", "https://api.example.com/jobs?q=go")

	require.NoError(t, c.Put(fp, []byte(`{"ok":true}`)))

	*now = now.Add(59 * time.Minute)
	body, hit := c.Get(fp)
	require.True(t, hit)
	assert.Equal(t, `{"ok":true}`, string(body))

	*now = now.Add(2 * time.Minute)
	_, hit = c.Get(fp)
	assert.False(t, hit)
}

func TestCacheMissWhenAbsent(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	_, hit := c.Get(Fingerprint("GET", "https://example.com"))
	assert.False(t, hit)
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	fp := Fingerprint("GET", "https://example.com/broken")

	require.NoError(t, os.WriteFile(c.path(fp), []byte(`{"fingerprint":`), 0o644))

	_, hit := c.Get(fp)
	assert.False(t, hit)
}

func TestCachePutOverwritesStaleEntry(t *testing.T) {
	c, now := newTestCache(t, time.Hour)
	fp := Fingerprint("GET", "https://example.com/a")

	require.NoError(t, c.Put(fp, []byte("old")))
	*now = now.Add(2 * time.Hour)
	require.NoError(t, c.Put(fp, []byte("new")))

	body, hit := c.Get(fp)
	require.True(t, hit)
	assert.Equal(t, "new", string(body))
}

func TestCachePutLeavesNoTemporaryFiles(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Put(Fingerprint("GET", "https://example.com/x"), []byte("body")))
	}

	entries, err := os.ReadDir(c.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fileSuffix, filepath.Ext(entries[0].Name()))
}

func TestPruneRemovesExpiredAndCorrupt(t *testing.T) {
	c, now := newTestCache(t, time.Hour)

	require.NoError(t, c.Put(Fingerprint("GET", "https://example.com/old"), []byte("old")))
	*now = now.Add(90 * time.Minute)
	require.NoError(t, c.Put(Fingerprint("GET", "https://example.com/fresh"), []byte("fresh")))
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "junk"+fileSuffix), []byte("not json"), 0o644))

	removed, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, hit := c.Get(Fingerprint("GET", "https://example.com/fresh"))
	assert.True(t, hit)
}

func TestFingerprintCanonicalization(t *testing.T) {
	a := Fingerprint("get", "HTTPS://API.Example.com/search?b=2&a=1#frag")
	b := Fingerprint("GET", "https://api.example.com/search?a=1&b=2")
	assert.Equal(t, a, b)

	withKey := Fingerprint("GET", "https://api.example.com/search?a=1&app_key=secret")
	withoutKey := Fingerprint("GET", "https://api.example.com/search?a=1")
	assert.Equal(t, withKey, withoutKey)

	assert.NotEqual(t, Fingerprint("GET", "https://api.example.com/search?a=1"), Fingerprint("POST", "https://api.example.com/search?a=1"))
	assert.NotEqual(t, Fingerprint("GET", "https://api.example.com/search?a=1"), Fingerprint("GET", "https://api.example.com/search?a=2"))
}
