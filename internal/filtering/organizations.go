package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/dedupe"
	"github.com/spigell/jobscout/internal/results"
)

type organizationsFilter struct {
	toggle
	organizations []string
}

// NewOrganizations creates a filter that removes listings by organizations
// configured in the config. Names are compared after normalization, so
// "Acme" also excludes "ACME Inc.".
func NewOrganizations() Filter {
	return &organizationsFilter{}
}

func (f *organizationsFilter) Name() string { return "organizations" }

func (f *organizationsFilter) Validate(cfg *Config) error {
	f.organizations = nil
	if cfg == nil {
		return nil
	}
	for _, org := range cfg.Organizations {
		if n := dedupe.NormalizeOrganization(org); n != "" {
			f.organizations = append(f.organizations, n)
		}
	}
	return nil
}

func (f *organizationsFilter) Apply(_ context.Context, deps Deps, v *results.Items) (*results.Items, Step, error) {
	initial := v.Len()
	if len(f.organizations) == 0 {
		return v, stepOf(initial, v), nil
	}

	excluded := v.Exclude(results.ItemOrganizationField, f.organizations)
	if len(excluded) > 0 {
		deps.Logger.Info("excluding listings by organizations",
			zap.Strings("excluded_organizations", f.organizations),
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", v.Len()),
		)
	}

	return v, stepOf(initial, v), nil
}

func (f *organizationsFilter) Status() Status {
	details := map[string]string{}
	if len(f.organizations) > 0 {
		details["organizations"] = strings.Join(f.organizations, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
