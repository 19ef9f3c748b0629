package sources

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/cache"
	"github.com/spigell/jobscout/internal/ratelimit"
	"github.com/spigell/jobscout/internal/utils"
)

const (
	DefaultUserAgent = "jobscout/1.0 (+https://github.com/spigell/jobscout)"
	acceptEncoding   = "gzip"
	contentType      = "application/json"
	maxBodySize      = 16 << 20 // upper bound for a single response body
	bodyPreviewLen   = 200
)

// ErrBodyTooLarge is returned when a response body exceeds maxBodySize.
var ErrBodyTooLarge = errors.New("response body too large")

// Client performs GET requests on behalf of fetchers. Every request goes
// through the response cache first and only then spends backend quota.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string

	cache   *cache.Cache
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewClient returns a client. cache and limiter may be nil.
func NewClient(c *cache.Cache, limiter *ratelimit.Limiter, logger *zap.Logger, userAgent string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		UserAgent: userAgent,
		cache:     c,
		limiter:   limiter,
		logger:    logger,
	}
}

// Request describes a GET issued by a fetcher.
type Request struct {
	Backend string
	URL     string
	Headers map[string]string
	// NoCache skips both the cache lookup and the cache write.
	NoCache bool
	// Decode parses the body into the caller's value. A body is cached only
	// after Decode accepts it, and a cached body Decode rejects is refetched.
	Decode func(body []byte) error
}

// JSON returns a Request.Decode that unmarshals into target. target is reset
// before every attempt so a rejected cached body leaves nothing behind.
func JSON(target any) func([]byte) error {
	return func(body []byte) error {
		if v := reflect.ValueOf(target); v.Kind() == reflect.Pointer && !v.IsNil() {
			v.Elem().SetZero()
		}
		return json.Unmarshal(body, target)
	}
}

// Get returns the response body for req. A cached body is returned without
// touching the rate limiter. When the backend quota is spent ErrRateLimited
// is returned and no request is made.
func (c *Client) Get(ctx context.Context, req Request) ([]byte, error) {
	fp := cache.Fingerprint(http.MethodGet, req.URL)

	if c.cache != nil && !req.NoCache {
		if body, ok := c.cache.Get(fp); ok {
			err := req.decode(body)
			if err == nil {
				c.logger.Debug("cache hit", zap.String("backend", req.Backend), zap.String("url", cache.NormalizeURL(req.URL)))
				return body, nil
			}
			c.logger.Debug("ignoring unreadable cached response",
				zap.String("backend", req.Backend),
				zap.String("url", cache.NormalizeURL(req.URL)),
				zap.Error(err),
			)
		}
	}

	if c.limiter != nil && !c.limiter.Allow(ctx, req.Backend) {
		c.logger.Info("backend quota exhausted, skipping request", zap.String("backend", req.Backend))
		return nil, ErrRateLimited
	}

	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := req.decode(body); err != nil {
		c.logger.Debug("unreadable response",
			zap.String("backend", req.Backend),
			zap.String("body_preview", utils.BodyPreview(body, bodyPreviewLen)),
		)
		return nil, fmt.Errorf("decoding %s response: %w", req.Backend, err)
	}

	if c.cache != nil && !req.NoCache {
		if err := c.cache.Put(fp, body); err != nil {
			c.logger.Warn("failed to write response cache", zap.String("backend", req.Backend), zap.Error(err))
		}
	}

	return body, nil
}

func (r Request) decode(body []byte) error {
	if r.Decode == nil {
		return nil
	}
	return r.Decode(body)
}

func (c *Client) do(ctx context.Context, r Request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set("Accept", contentType)
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug("make request", zap.String("backend", r.Backend), zap.String("url", cache.NormalizeURL(r.URL)))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(data) > maxBodySize {
		return nil, fmt.Errorf("%s: %w", cache.NormalizeURL(r.URL), ErrBodyTooLarge)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("unexpected response",
			zap.String("backend", r.Backend),
			zap.Int("status", resp.StatusCode),
			zap.String("body_preview", utils.BodyPreview(data, bodyPreviewLen)),
		)
		return nil, &HTTPError{URL: cache.NormalizeURL(r.URL), StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return data, nil
}
