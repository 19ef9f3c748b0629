package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/results"
	"github.com/spigell/jobscout/internal/scoring"
)

type dealbreakersFilter struct {
	toggle
}

// NewDealbreakers creates a filter that removes listings excluded by a
// profile dealbreaker.
func NewDealbreakers() Filter {
	return &dealbreakersFilter{}
}

func (f *dealbreakersFilter) Name() string { return DealbreakersName }

func (f *dealbreakersFilter) Validate(*Config) error { return nil }

func (f *dealbreakersFilter) Apply(_ context.Context, deps Deps, v *results.Items) (*results.Items, Step, error) {
	initial := v.Len()
	excluded := v.Keep(func(it *results.Item) bool { return !it.Score.Filtered })
	if len(excluded) > 0 {
		deps.Logger.Info("excluding listings matching dealbreakers",
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", v.Len()),
		)
	}
	return v, stepOf(initial, v), nil
}

func (f *dealbreakersFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type minScoreFilter struct {
	toggle
	min float64
}

// NewMinScore creates a filter that removes listings scoring below the
// configured minimum.
func NewMinScore() Filter {
	return &minScoreFilter{}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Validate(cfg *Config) error {
	f.min = 0
	if cfg == nil || cfg.MinScore == 0 {
		return nil
	}
	if cfg.MinScore < scoring.MinScore || cfg.MinScore > scoring.MaxScore {
		return fmt.Errorf("min score %.2f is outside [%.0f, %.0f]", cfg.MinScore, scoring.MinScore, scoring.MaxScore)
	}
	f.min = cfg.MinScore
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, deps Deps, v *results.Items) (*results.Items, Step, error) {
	initial := v.Len()
	if f.min == 0 {
		return v, stepOf(initial, v), nil
	}

	excluded := v.Keep(func(it *results.Item) bool { return it.Score.Score >= f.min })
	if len(excluded) > 0 {
		deps.Logger.Info("excluding listings below minimum score",
			zap.Float64("min_score", f.min),
			zap.Int("excluded", len(excluded)),
			zap.Int("listings_left", v.Len()),
		)
	}
	return v, stepOf(initial, v), nil
}

func (f *minScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min_score": fmt.Sprintf("%.2f", f.min)},
	}
}

type onlyNewFilter struct {
	toggle
	enabled bool
}

// NewOnlyNew creates a filter that keeps listings not seen in earlier runs.
func NewOnlyNew() Filter {
	return &onlyNewFilter{}
}

func (f *onlyNewFilter) Name() string { return "only_new" }

func (f *onlyNewFilter) Validate(cfg *Config) error {
	f.enabled = cfg != nil && cfg.OnlyNew
	return nil
}

func (f *onlyNewFilter) Apply(_ context.Context, deps Deps, v *results.Items) (*results.Items, Step, error) {
	initial := v.Len()
	if !f.enabled {
		return v, stepOf(initial, v), nil
	}

	excluded := v.Keep(func(it *results.Item) bool { return it.IsNew })
	if len(excluded) > 0 {
		deps.Logger.Info("excluding already seen listings",
			zap.Int("excluded", len(excluded)),
			zap.Int("listings_left", v.Len()),
		)
	}
	return v, stepOf(initial, v), nil
}
