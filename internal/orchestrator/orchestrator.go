// Package orchestrator runs every configured source concurrently and gathers
// their listings and statuses.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/sources"
)

const (
	DefaultWorkers = 8
	MaxWorkers     = 10
	DefaultTimeout = 45 * time.Second
)

// Event reports that one source has finished. Exactly one event is emitted
// per source.
type Event struct {
	Source  string
	Backend string
	Status  sources.Status
	Count   int
	Err     string
	Elapsed time.Duration
	// Done and Total describe overall progress when the event was emitted.
	Done  int
	Total int
}

// SourceStatus is the final state of one source in a run.
type SourceStatus struct {
	Name    string         `json:"name"`
	Backend string         `json:"backend"`
	Status  sources.Status `json:"status"`
	Count   int            `json:"count"`
	Error   string         `json:"error,omitempty"`
	Elapsed time.Duration  `json:"elapsed"`
}

// Combined is the output of a run, in stable source order.
type Combined struct {
	Listings []listing.Listing
	Statuses []SourceStatus
}

// Count returns how many sources ended with status.
func (c *Combined) Count(status sources.Status) int {
	n := 0
	for _, s := range c.Statuses {
		if s.Status == status {
			n++
		}
	}
	return n
}

type Options struct {
	Workers int
	Timeout time.Duration
	// OnEvent is called once per source, never concurrently.
	OnEvent func(Event)
}

type Orchestrator struct {
	fetchers []sources.Fetcher
	opts     Options
	logger   *zap.Logger
}

func New(fetchers []sources.Fetcher, opts Options, log *zap.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Workers > MaxWorkers {
		opts.Workers = MaxWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Orchestrator{fetchers: fetchers, opts: opts, logger: log}
}

// Queries builds one query per target title, using the primary location and
// the remote flag of the profile.
func Queries(p *profile.Profile) []sources.Query {
	queries := make([]sources.Query, 0, len(p.TargetTitles))
	seen := make(map[string]struct{}, len(p.TargetTitles))

	for _, title := range p.TargetTitles {
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}

		queries = append(queries, sources.Query{
			Text:     title,
			Location: p.PrimaryLocation(),
			Remote:   p.RemoteOK && len(p.Locations) == 0,
			Keywords: p.Skills,
		})
	}

	return queries
}

type sourceRun struct {
	listings []listing.Listing
	status   SourceStatus
}

// RunAll fetches every query from every source. It never fails: each source
// ends with a status and the listings it produced.
func (o *Orchestrator) RunAll(ctx context.Context, p *profile.Profile) *Combined {
	queries := Queries(p)
	total := len(o.fetchers)
	runs := make([]sourceRun, total)

	if total == 0 {
		return &Combined{}
	}

	workers := o.opts.Workers
	if total < workers {
		workers = total
	}

	var (
		eventsMu sync.Mutex
		done     int
	)
	emit := func(s SourceStatus) {
		eventsMu.Lock()
		defer eventsMu.Unlock()

		done++
		if o.opts.OnEvent != nil {
			o.opts.OnEvent(Event{
				Source:  s.Name,
				Backend: s.Backend,
				Status:  s.Status,
				Count:   s.Count,
				Err:     s.Error,
				Elapsed: s.Elapsed,
				Done:    done,
				Total:   total,
			})
		}
	}

	g := &errgroup.Group{}
	g.SetLimit(workers)

	for i, f := range o.fetchers {
		g.Go(func() error {
			runs[i] = o.runSource(ctx, f, queries)
			emit(runs[i].status)
			return nil
		})
	}
	_ = g.Wait()

	combined := &Combined{Statuses: make([]SourceStatus, 0, total)}
	for _, run := range runs {
		combined.Listings = append(combined.Listings, run.listings...)
		combined.Statuses = append(combined.Statuses, run.status)
	}

	return combined
}

type fetchOutcome struct {
	listings []listing.Listing
	status   sources.Status
	err      error
}

func (o *Orchestrator) runSource(parent context.Context, f sources.Fetcher, queries []sources.Query) sourceRun {
	log := logger.WithSourceFields(o.logger, f.Name(), f.Backend())
	start := time.Now()

	ctx, cancel := context.WithTimeout(parent, o.opts.Timeout)
	defer cancel()

	results := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- fetchOutcome{status: sources.StatusFailed, err: fmt.Errorf("fetcher panicked: %v", r)}
			}
		}()
		results <- fetchQueries(ctx, f, queries)
	}()

	var out fetchOutcome
	select {
	case out = <-results:
	case <-ctx.Done():
		out = fetchOutcome{status: sources.StatusFailed, err: ctx.Err()}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.err = fmt.Errorf("timed out after %s", o.opts.Timeout)
		}
	}

	status := SourceStatus{
		Name:    f.Name(),
		Backend: f.Backend(),
		Status:  out.status,
		Count:   len(out.listings),
		Elapsed: time.Since(start),
	}

	switch {
	case out.err != nil:
		status.Error = out.err.Error()
		log.Warn("source failed", zap.Error(out.err), zap.Duration("elapsed", status.Elapsed))
	case out.status == sources.StatusRateLimited:
		log.Info("source rate limited", zap.Int("listings", status.Count))
	default:
		log.Debug("source finished", zap.String("status", string(out.status)), zap.Int("listings", status.Count), zap.Duration("elapsed", status.Elapsed))
	}

	return sourceRun{listings: out.listings, status: status}
}

// fetchQueries runs the queries of one source in order. A failure discards
// what the source produced; a spent quota stops the remaining queries but
// keeps what was fetched. Listings repeated across queries are kept once.
func fetchQueries(ctx context.Context, f sources.Fetcher, queries []sources.Query) fetchOutcome {
	var (
		listings []listing.Listing
		seen     = make(map[string]struct{})
	)

	add := func(res *sources.Result) {
		if res == nil {
			return
		}
		for _, l := range res.Listings {
			key := l.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			listings = append(listings, l)
		}
	}

	for _, q := range queries {
		res, err := f.Fetch(ctx, q)
		if err != nil {
			return fetchOutcome{status: sources.StatusFailed, err: fmt.Errorf("query %q: %w", q.Text, err)}
		}
		if res != nil && res.Status == sources.StatusFailed {
			return fetchOutcome{status: sources.StatusFailed, err: fmt.Errorf("query %q failed", q.Text)}
		}

		add(res)

		if res != nil && res.Status == sources.StatusRateLimited {
			return fetchOutcome{listings: listings, status: sources.StatusRateLimited}
		}
	}

	if len(listings) == 0 {
		return fetchOutcome{status: sources.StatusEmpty}
	}
	return fetchOutcome{listings: listings, status: sources.StatusSucceeded}
}
