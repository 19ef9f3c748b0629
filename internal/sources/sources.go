// Package sources defines the fetcher contract, the registry of source kinds
// and the HTTP client every adapter goes through.
package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/jobscout/internal/listing"
)

// Status is the outcome of a fetch.
type Status string

const (
	StatusSucceeded   Status = "succeeded"
	StatusRateLimited Status = "rate_limited"
	StatusFailed      Status = "failed"
	StatusEmpty       Status = "empty"
)

// ErrRateLimited is returned by Client.Get when the backend quota is spent.
// Fetchers turn it into StatusRateLimited; it never fails a run.
var ErrRateLimited = errors.New("backend quota exhausted")

// Query is one search issued to a source.
type Query struct {
	Text     string
	Location string
	Remote   bool
	// Keywords are profile skills; sources that support keyword search may
	// use them to narrow results.
	Keywords []string
}

func (q Query) String() string {
	parts := []string{q.Text}
	if q.Location != "" {
		parts = append(parts, "in "+q.Location)
	}
	if q.Remote {
		parts = append(parts, "(remote)")
	}
	return strings.Join(parts, " ")
}

// Result is what a fetcher returns for one query.
type Result struct {
	Listings []listing.Listing
	Status   Status
	Elapsed  time.Duration
}

// Fetcher is implemented by every source adapter.
type Fetcher interface {
	Name() string
	Backend() string
	Fetch(ctx context.Context, q Query) (*Result, error)
}

// Outcome converts the listings and error gathered by an adapter into a
// result. Rate limiting keeps whatever was fetched before the quota ran out;
// any other failure discards partial pages.
func Outcome(listings []listing.Listing, err error) (*Result, error) {
	switch {
	case errors.Is(err, ErrRateLimited):
		return &Result{Listings: listings, Status: StatusRateLimited}, nil
	case err != nil:
		return &Result{Status: StatusFailed}, err
	case len(listings) == 0:
		return &Result{Status: StatusEmpty}, nil
	default:
		return &Result{Listings: listings, Status: StatusSucceeded}, nil
	}
}

// HTTPError is returned for non-200 responses.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("bad status from %s: %s", e.URL, e.Status)
}

// MatchesQuery reports whether title covers at least half of the query words.
// Boards without server-side search use it to keep relevant postings only.
func MatchesQuery(title string, q Query) bool {
	words := strings.Fields(strings.ToLower(q.Text))
	if len(words) == 0 {
		return true
	}

	lower := strings.ToLower(title)
	hits := 0
	for _, word := range words {
		if strings.Contains(lower, word) {
			hits++
		}
	}

	return hits*2 >= len(words)
}
