package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/sources"
)

type fakeFetcher struct {
	name  string
	delay time.Duration
	fetch func(ctx context.Context, q sources.Query) (*sources.Result, error)
}

func (f *fakeFetcher) Name() string    { return f.name }
func (f *fakeFetcher) Backend() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context, q sources.Query) (*sources.Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.fetch(ctx, q)
}

func returning(source string, ids ...string) func(context.Context, sources.Query) (*sources.Result, error) {
	return func(_ context.Context, _ sources.Query) (*sources.Result, error) {
		listings := make([]listing.Listing, 0, len(ids))
		for _, id := range ids {
			listings = append(listings, listing.Listing{ID: id, Title: "Go Engineer", Source: source})
		}
		return sources.Outcome(listings, nil)
	}
}

func testProfile() *profile.Profile {
	return &profile.Profile{
		Version:      profile.CurrentVersion,
		TargetTitles: []string{"Go Engineer", "Platform Engineer", "Go Engineer"},
		Locations:    []string{"Berlin", "Hamburg"},
		Skills:       []string{"go"},
		Weights:      profile.DefaultWeights(),
	}
}

func TestQueries(t *testing.T) {
	qs := Queries(testProfile())
	require.Len(t, qs, 2)
	assert.Equal(t, "Go Engineer", qs[0].Text)
	assert.Equal(t, "Berlin", qs[0].Location)
	assert.False(t, qs[0].Remote)

	remoteOnly := &profile.Profile{TargetTitles: []string{"SRE"}, RemoteOK: true}
	assert.True(t, Queries(remoteOnly)[0].Remote)
}

func TestRunAllStatusesAndEvents(t *testing.T) {
	fetchers := []sources.Fetcher{
		&fakeFetcher{name: "a-slow", delay: 30 * time.Millisecond, fetch: returning("a-slow", "1", "2")},
		&fakeFetcher{name: "b-empty", fetch: returning("b-empty")},
		&fakeFetcher{name: "c-broken", fetch: func(context.Context, sources.Query) (*sources.Result, error) {
			return sources.Outcome(nil, errors.New("connection reset"))
		}},
		&fakeFetcher{name: "d-limited", fetch: func(context.Context, sources.Query) (*sources.Result, error) {
			return sources.Outcome([]listing.Listing{{ID: "x", Source: "d-limited"}}, sources.ErrRateLimited)
		}},
		&fakeFetcher{name: "e-panic", fetch: func(context.Context, sources.Query) (*sources.Result, error) {
			panic("boom")
		}},
	}

	var (
		mu     sync.Mutex
		events []Event
	)
	o := New(fetchers, Options{Workers: 3, OnEvent: func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}}, zap.NewNop())

	combined := o.RunAll(context.Background(), testProfile())

	require.Len(t, combined.Statuses, 5)
	want := []sources.Status{
		sources.StatusSucceeded,
		sources.StatusEmpty,
		sources.StatusFailed,
		sources.StatusRateLimited,
		sources.StatusFailed,
	}
	for i, s := range combined.Statuses {
		assert.Equal(t, fetchers[i].Name(), s.Name)
		assert.Equal(t, want[i], s.Status, s.Name)
	}
	assert.Contains(t, combined.Statuses[2].Error, "connection reset")
	assert.Contains(t, combined.Statuses[4].Error, "panicked")

	// The slow source queried two titles but returned the same ids both times.
	assert.Equal(t, 2, combined.Statuses[0].Count)
	// Rate limiting stops after the first query and keeps its listings.
	assert.Equal(t, 1, combined.Statuses[3].Count)
	require.Len(t, combined.Listings, 3)
	assert.Equal(t, "a-slow", combined.Listings[0].Source)
	assert.Equal(t, "d-limited", combined.Listings[2].Source)

	require.Len(t, events, 5)
	names := map[string]int{}
	for i, e := range events {
		assert.Equal(t, i+1, e.Done)
		assert.Equal(t, 5, e.Total)
		names[e.Source]++
	}
	for _, f := range fetchers {
		assert.Equal(t, 1, names[f.Name()], f.Name())
	}
	assert.Equal(t, "a-slow", events[4].Source)
	assert.Equal(t, 2, combined.Count(sources.StatusFailed))
}

func TestRunAllTimesOutSlowSource(t *testing.T) {
	blocking := &fakeFetcher{name: "stuck", fetch: func(ctx context.Context, _ sources.Query) (*sources.Result, error) {
		<-ctx.Done()
		// Ignore cancellation for a while, like a misbehaving adapter.
		time.Sleep(500 * time.Millisecond)
		return sources.Outcome(nil, nil)
	}}

	o := New([]sources.Fetcher{blocking, &fakeFetcher{name: "quick", fetch: returning("quick", "1")}},
		Options{Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	combined := o.RunAll(context.Background(), testProfile())
	assert.Less(t, time.Since(start), 300*time.Millisecond)

	assert.Equal(t, sources.StatusFailed, combined.Statuses[0].Status)
	assert.Contains(t, combined.Statuses[0].Error, "timed out")
	assert.Equal(t, sources.StatusSucceeded, combined.Statuses[1].Status)
}

func TestRunAllRespectsWorkerLimit(t *testing.T) {
	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	fetch := func(context.Context, sources.Query) (*sources.Result, error) {
		now := running.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return sources.Outcome(nil, nil)
	}

	fetchers := make([]sources.Fetcher, 0, 12)
	for i := 0; i < 12; i++ {
		fetchers = append(fetchers, &fakeFetcher{name: string(rune('a' + i)), fetch: fetch})
	}

	o := New(fetchers, Options{Workers: 50}, nil)
	combined := o.RunAll(context.Background(), testProfile())

	require.Len(t, combined.Statuses, 12)
	assert.LessOrEqual(t, peak.Load(), int32(MaxWorkers))
}

func TestRunAllWithoutSources(t *testing.T) {
	combined := New(nil, Options{}, nil).RunAll(context.Background(), testProfile())
	assert.Empty(t, combined.Statuses)
	assert.Empty(t, combined.Listings)
}
