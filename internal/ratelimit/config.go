package ratelimit

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Rule is the quota of one backend: Limit requests per Period.
type Rule struct {
	Limit  int           `mapstructure:"limit"`
	Period time.Duration `mapstructure:"period"`
}

// Validate rejects rules that could never be enforced.
func (r Rule) Validate() error {
	if r.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", r.Limit)
	}
	if r.Period <= 0 {
		return fmt.Errorf("period must be positive, got %s", r.Period)
	}
	return nil
}

// FallbackRule applies to backends without a built-in or configured rule.
var FallbackRule = Rule{Limit: 60, Period: time.Hour}

// DefaultRules returns the built-in quotas of the supported backends. They
// stay below the documented free-tier limits of each provider.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"headhunter": {Limit: 500, Period: 24 * time.Hour},
		"adzuna":     {Limit: 250, Period: 24 * time.Hour},
		"remotive":   {Limit: 48, Period: 24 * time.Hour},
		"arbeitnow":  {Limit: 120, Period: time.Hour},
		"greenhouse": {Limit: 300, Period: time.Hour},
		"lever":      {Limit: 300, Period: time.Hour},
	}
}

// ApplyOverrides merges operator overrides into the defaults. An invalid
// override is ignored with a warning and the default stays in place.
func ApplyOverrides(defaults map[string]Rule, overrides map[string]Rule, logger *zap.Logger) map[string]Rule {
	if logger == nil {
		logger = zap.NewNop()
	}

	rules := make(map[string]Rule, len(defaults)+len(overrides))
	for backend, rule := range defaults {
		rules[backend] = rule
	}

	backends := make([]string, 0, len(overrides))
	for backend := range overrides {
		backends = append(backends, backend)
	}
	sort.Strings(backends)

	for _, backend := range backends {
		override := overrides[backend]
		if err := override.Validate(); err != nil {
			fallback, ok := rules[backend]
			if !ok {
				fallback = FallbackRule
			}
			logger.Warn("ignoring invalid rate limit override",
				zap.String("backend", backend),
				zap.Error(err),
				zap.Int("limit", fallback.Limit),
				zap.Duration("period", fallback.Period),
			)
			continue
		}
		rules[backend] = override
	}

	return rules
}
