package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/results"
)

type salaryFloorFilter struct {
	toggle
	floor float64
}

// NewSalaryFloor creates a filter that removes listings whose highest stated
// compensation is below the profile minimum. Listings without a parsable
// compensation are kept.
func NewSalaryFloor() Filter {
	return &salaryFloorFilter{}
}

func (f *salaryFloorFilter) Name() string { return "salary_floor" }

func (f *salaryFloorFilter) Validate(*Config) error { return nil }

func (f *salaryFloorFilter) Apply(_ context.Context, deps Deps, v *results.Items) (*results.Items, Step, error) {
	initial := v.Len()
	f.floor = 0
	if deps.Profile != nil {
		f.floor = deps.Profile.MinCompensation
	}
	if f.floor <= 0 {
		return v, stepOf(initial, v), nil
	}

	excluded := v.Keep(func(it *results.Item) bool {
		_, hi, ok := it.Listing.CompensationRange()
		return !ok || hi >= f.floor
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding listings below salary floor",
			zap.Float64("floor", f.floor),
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", v.Len()),
		)
	}
	return v, stepOf(initial, v), nil
}

func (f *salaryFloorFilter) Status() Status {
	details := map[string]string{}
	if f.floor > 0 {
		details["floor"] = fmt.Sprintf("%.0f", f.floor)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
