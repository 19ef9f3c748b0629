// Package cache stores fetched response bodies on disk keyed by request
// fingerprint. Entries older than their TTL are treated as absent.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
)

// DefaultTTL is used when the configuration does not set one.
const DefaultTTL = 6 * time.Hour

const fileSuffix = ".json"

// credentialParams never take part in a fingerprint so rotating a key keeps
// the cache warm.
var credentialParams = map[string]struct{}{
	"app_id":       {},
	"app_key":      {},
	"api_key":      {},
	"apikey":       {},
	"token":        {},
	"access_token": {},
}

// Entry is the on-disk representation of a cached response.
type Entry struct {
	Fingerprint string        `json:"fingerprint"`
	FetchedAt   time.Time     `json:"fetched_at"`
	TTL         time.Duration `json:"ttl"`
	Body        []byte        `json:"body"`
}

// Expired reports whether the entry is older than its TTL at now.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.FetchedAt) > e.TTL
}

// Cache is a directory of entries, one file per fingerprint.
type Cache struct {
	dir    string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// New creates the cache directory when missing.
func New(dir string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache directory is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	return &Cache{
		dir:    dir,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}, nil
}

// TTL returns the TTL applied to new entries.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached body. Missing, unreadable, corrupt and expired
// entries are all reported as a miss.
func (c *Cache) Get(fingerprint string) ([]byte, bool) {
	entry, err := c.read(c.path(fingerprint))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("treating unreadable cache entry as miss",
				zap.String("fingerprint", fingerprint),
				zap.Error(err),
			)
		}
		return nil, false
	}

	if entry.Fingerprint != fingerprint || entry.Expired(c.now()) {
		return nil, false
	}

	return entry.Body, true
}

// Put stores the body. The file is written to a temporary name and renamed
// into place, so readers never observe a partial entry.
func (c *Cache) Put(fingerprint string, body []byte) error {
	entry := &Entry{
		Fingerprint: fingerprint,
		FetchedAt:   c.now().UTC(),
		TTL:         c.ttl,
		Body:        body,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	if err := renameio.WriteFile(c.path(fingerprint), data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}

	return nil
}

// Prune removes expired and corrupt entries and returns how many were deleted.
func (c *Cache) Prune() (int, error) {
	files, err := filepath.Glob(filepath.Join(c.dir, "*"+fileSuffix))
	if err != nil {
		return 0, err
	}

	removed := 0
	now := c.now()
	for _, file := range files {
		entry, err := c.read(file)
		if err == nil && !entry.Expired(now) {
			continue
		}
		if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("removing %s: %w", file, err)
		}
		removed++
	}

	return removed, nil
}

func (c *Cache) read(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}

	return &entry, nil
}

func (c *Cache) path(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+fileSuffix)
}

// Fingerprint builds the canonical key of a request: the method plus the URL
// with a lower-cased scheme and host, sorted query parameters, no fragment and
// no credential parameters.
func Fingerprint(method, rawURL string) string {
	canonical := strings.ToUpper(strings.TrimSpace(method)) + " " + NormalizeURL(rawURL)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// NormalizeURL returns the canonical form used by Fingerprint. Unparsable
// input is returned trimmed.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	keys := make([]string, 0, len(q))
	for key := range q {
		if _, secret := credentialParams[strings.ToLower(key)]; secret {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clean := url.Values{}
	for _, key := range keys {
		values := append([]string(nil), q[key]...)
		sort.Strings(values)
		clean[key] = values
	}
	u.RawQuery = clean.Encode()

	return u.String()
}
