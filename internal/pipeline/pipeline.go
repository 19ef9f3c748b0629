// Package pipeline wires one aggregation run: fetch, deduplicate, score,
// track and filter.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/dedupe"
	"github.com/spigell/jobscout/internal/filtering"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/orchestrator"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/results"
	"github.com/spigell/jobscout/internal/scoring"
	"github.com/spigell/jobscout/internal/sources"
)

// Aggregator fetches listings from every configured source.
type Aggregator interface {
	RunAll(ctx context.Context, p *profile.Profile) *orchestrator.Combined
}

// Tracker annotates listings as new.
type Tracker interface {
	MarkAndCheck(ctx context.Context, key string) bool
	Degraded() bool
}

// Summary describes a run for progress displays and logs.
type Summary struct {
	Sources     []orchestrator.SourceStatus `json:"sources"`
	Succeeded   int                         `json:"succeeded"`
	RateLimited int                         `json:"rate_limited"`
	Failed      int                         `json:"failed"`
	Empty       int                         `json:"empty"`
	Fetched     int                         `json:"fetched"`
	Unique      int                         `json:"unique"`
	Merged      int                         `json:"merged"`
	Excluded    int                         `json:"excluded"`
	Filtered    int                         `json:"filtered"`
	New         int                         `json:"new"`
	Shown       int                         `json:"shown"`
	Steps       []filtering.Applied         `json:"steps,omitempty"`
	NoTracking  bool                        `json:"no_tracking,omitempty"`
}

// Report is the outcome of one run. Provenance maps each surviving listing
// key to the sources that reported it.
type Report struct {
	RunID      string              `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Items      *results.Items      `json:"items"`
	Provenance map[string][]string `json:"provenance,omitempty"`
	Summary    Summary             `json:"summary"`
}

// Pipeline holds the collaborators of a run.
type Pipeline struct {
	aggregator Aggregator
	tracker    Tracker
	filters    []filtering.Filter
	filterCfg  *filtering.Config
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*Pipeline)

// WithFilters replaces the default filter chain.
func WithFilters(filters []filtering.Filter, cfg *filtering.Config) Option {
	return func(p *Pipeline) {
		p.filters = filters
		p.filterCfg = cfg
	}
}

// New builds a pipeline. A nil tracker reports every listing as new.
func New(aggregator Aggregator, tracker Tracker, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pipeline{
		aggregator: aggregator,
		tracker:    tracker,
		filters:    filtering.Default(),
		filterCfg:  &filtering.Config{},
		logger:     log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one aggregation run. Source failures never surface as errors;
// they are reported in the summary. An error is returned only when a later
// stage could not complete, and the report then carries what was collected up
// to that point.
func (p *Pipeline) Run(ctx context.Context, prof *profile.Profile) (report *Report, err error) {
	report = &Report{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
		Items:     &results.Items{},
	}
	log := logger.WithRunID(p.logger, report.RunID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline aborted", zap.Any("panic", r))
			err = fmt.Errorf("pipeline aborted: %v", r)
		}
		if err != nil {
			filtering.DropExcluded(p.filters, report.Items)
		}
		report.FinishedAt = p.now().UTC()
		report.Summary.Shown = report.Items.Len()
	}()

	log.Info("starting aggregation run", zap.Strings("titles", prof.TargetTitles))

	combined := p.aggregator.RunAll(ctx, prof)
	report.Summary.Sources = combined.Statuses
	report.Summary.Succeeded = combined.Count(sources.StatusSucceeded)
	report.Summary.RateLimited = combined.Count(sources.StatusRateLimited)
	report.Summary.Failed = combined.Count(sources.StatusFailed)
	report.Summary.Empty = combined.Count(sources.StatusEmpty)
	report.Summary.Fetched = len(combined.Listings)

	deduped := dedupe.Dedupe(combined.Listings)
	report.Provenance = deduped.Provenance
	report.Summary.Unique = deduped.Stats.Output
	report.Summary.Merged = deduped.Stats.Merged

	log.Info("deduplicated listings",
		zap.Int("fetched", deduped.Stats.Input),
		zap.Int("unique", deduped.Stats.Output),
		zap.Int("merged", deduped.Stats.Merged),
	)

	ranked := scoring.New(prof).Rank(deduped.Listings)
	for _, s := range ranked {
		if s.Result.Filtered {
			report.Summary.Excluded++
		}
	}

	report.Items = results.New(ranked, p.isNew(ctx))
	report.Summary.New = report.Items.CountNew()
	if p.tracker != nil && p.tracker.Degraded() {
		report.Summary.NoTracking = true
	}

	filtered, applied, err := filtering.Run(ctx, p.filterCfg, filtering.Deps{Logger: log, Profile: prof}, p.filters, report.Items)
	if err != nil {
		return report, fmt.Errorf("filtering results: %w", err)
	}
	report.Items = filtered
	report.Summary.Steps = applied
	report.Summary.Filtered = filtering.Dropped(applied)

	return report, ctx.Err()
}

func (p *Pipeline) isNew(ctx context.Context) func(string) bool {
	if p.tracker == nil {
		return nil
	}
	return func(key string) bool {
		return p.tracker.MarkAndCheck(ctx, key)
	}
}
