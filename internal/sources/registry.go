package sources

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/logger"
)

// Config describes one configured source instance.
type Config struct {
	Name    string         `mapstructure:"name"`
	Type    string         `mapstructure:"type"`
	Backend string         `mapstructure:"backend"`
	Enabled *bool          `mapstructure:"enabled"`
	Options map[string]any `mapstructure:"options"`
}

// IsEnabled treats a missing flag as enabled.
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Deps are shared by every fetcher.
type Deps struct {
	Client   *Client
	Logger   *zap.Logger
	MaxPages int
}

// Factory builds a fetcher from its configuration.
type Factory func(cfg Config, deps Deps) (Fetcher, error)

type registration struct {
	factory        Factory
	defaultBackend string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register makes a source kind available to configuration. Adapters call it
// from init. defaultBackend is used when the configuration names none.
func Register(kind, defaultBackend string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	kind = strings.ToLower(strings.TrimSpace(kind))
	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("sources: kind %q registered twice", kind))
	}
	registry[kind] = registration{factory: factory, defaultBackend: defaultBackend}
}

// Kinds returns the registered source kinds, sorted.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Build instantiates every enabled source. A source that cannot be built is
// skipped and reported in the returned errors; it never stops the others.
// Fetchers come back sorted by name.
func Build(cfgs []Config, deps Deps) ([]Fetcher, []error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	var (
		fetchers []Fetcher
		errs     []error
		names    = make(map[string]struct{})
	)

	for _, cfg := range cfgs {
		if !cfg.IsEnabled() {
			continue
		}

		cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
		if cfg.Name = strings.TrimSpace(cfg.Name); cfg.Name == "" {
			cfg.Name = cfg.Type
		}
		if _, dup := names[cfg.Name]; dup {
			errs = append(errs, fmt.Errorf("source %s: duplicate name", cfg.Name))
			continue
		}

		registryMu.RLock()
		reg, ok := registry[cfg.Type]
		registryMu.RUnlock()
		if !ok {
			errs = append(errs, fmt.Errorf("source %s: unknown type %q (known: %s)", cfg.Name, cfg.Type, strings.Join(Kinds(), ", ")))
			continue
		}

		if strings.TrimSpace(cfg.Backend) == "" {
			cfg.Backend = reg.defaultBackend
		}
		if cfg.Backend == "" {
			cfg.Backend = cfg.Name
		}

		fetcher, err := reg.factory(cfg, deps)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", cfg.Name, err))
			continue
		}

		names[cfg.Name] = struct{}{}
		fetchers = append(fetchers, fetcher)
	}

	sort.Slice(fetchers, func(i, j int) bool { return fetchers[i].Name() < fetchers[j].Name() })

	return fetchers, errs
}

// DecodeOptions decodes the free-form options map of a source into target.
func DecodeOptions(options map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(options); err != nil {
		return fmt.Errorf("decoding options: %w", err)
	}
	return nil
}

// Base carries the identity and shared dependencies of an adapter.
type Base struct {
	name    string
	backend string
	Client  *Client
	Logger  *zap.Logger
	Pages   int
}

// NewBase builds the common part of an adapter from its configuration.
func NewBase(cfg Config, deps Deps) Base {
	pages := deps.MaxPages
	if pages <= 0 {
		pages = 1
	}

	return Base{
		name:    cfg.Name,
		backend: cfg.Backend,
		Client:  deps.Client,
		Logger:  logger.WithSourceFields(deps.Logger, cfg.Name, cfg.Backend),
		Pages:   pages,
	}
}

func (b Base) Name() string    { return b.name }
func (b Base) Backend() string { return b.backend }

// Stamp fills the provenance fields every listing of this source carries.
func (b Base) Stamp(l listing.Listing, origin listing.Origin) listing.Listing {
	l.Source = b.name
	l.Backend = b.backend
	l.Origin = origin
	l.Confidence = listing.ConfidenceFor(origin)
	if l.Arrangement == "" {
		l.Arrangement = listing.DetectArrangement(l.Location, l.Title)
	}
	return l
}
