// Package filtering narrows the ranked results with a chain of steps.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/results"
)

// DealbreakersName names the step that removes listings excluded by a
// profile dealbreaker.
const DealbreakersName = "dealbreakers"

// Filter represents a single filtering step applied to ranked results.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, v *results.Items) (*results.Items, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger  *zap.Logger
	Profile *profile.Profile
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Applied pairs a step with the filter that produced it.
type Applied struct {
	Name string
	Step
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	MinScore      float64
	ExcludeFile   string
	Organizations []string
	OnlyNew       bool
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// toggle carries the enabled state shared by every filter.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// Default returns the standard chain in execution order.
func Default() []Filter {
	return []Filter{
		NewDealbreakers(),
		NewMinScore(),
		NewSalaryFloor(),
		NewOrganizations(),
		NewExcludeFile(),
		NewOnlyNew(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns the remaining
// items together with the statistics of every enabled step.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, v *results.Items) (*results.Items, []Applied, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if err := Validate(cfg, steps); err != nil {
		return nil, nil, err
	}

	applied := make([]Applied, 0, len(steps))
	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, v)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		v = next
		applied = append(applied, Applied{Name: step.Name(), Step: info})
	}

	return v, applied, nil
}

// Validate checks cfg against every enabled filter.
func Validate(cfg *Config, steps []Filter) error {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

// DropExcluded removes listings excluded by a dealbreaker from v unless the
// dealbreakers step is disabled in steps. It works without the rest of the
// chain, so excluded listings stay hidden even when Run fails.
func DropExcluded(steps []Filter, v *results.Items) []string {
	if v == nil {
		return nil
	}
	for _, step := range steps {
		if step.Name() == DealbreakersName && !step.IsEnabled() {
			return nil
		}
	}
	return v.Keep(func(it *results.Item) bool { return !it.Score.Filtered })
}

// Dropped sums the dropped counts of the applied steps.
func Dropped(applied []Applied) int {
	n := 0
	for _, a := range applied {
		n += a.Dropped
	}
	return n
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

func stepOf(initial int, v *results.Items) Step {
	return Step{Initial: initial, Dropped: initial - v.Len(), Left: v.Len()}
}
