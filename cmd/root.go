package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/jobscout/internal/filtering"
	"github.com/spigell/jobscout/internal/orchestrator"
	"github.com/spigell/jobscout/internal/ratelimit"
	"github.com/spigell/jobscout/internal/sources"
)

const (
	app       = "jobscout"
	envPrefix = "JOBSCOUT"
)

type Config struct {
	Profile   string           `mapstructure:"profile"`
	DataDir   string           `mapstructure:"data-dir"`
	UserAgent string           `mapstructure:"user-agent"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Fetch     FetchConfig      `mapstructure:"fetch"`
	RateLimit RateLimitConfig  `mapstructure:"ratelimit"`
	Tracker   TrackerConfig    `mapstructure:"tracker"`
	Sources   []sources.Config `mapstructure:"sources"`
	Filters   FiltersConfig    `mapstructure:"filters"`
	Watch     WatchConfig      `mapstructure:"watch"`
}

type CacheConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	Disabled bool          `mapstructure:"disabled"`
}

type FetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Workers  int           `mapstructure:"workers"`
	MaxPages int           `mapstructure:"max-pages"`
}

type RateLimitConfig struct {
	Store     string                    `mapstructure:"store"`
	RedisURL  string                    `mapstructure:"redis-url"`
	Overrides map[string]ratelimit.Rule `mapstructure:"overrides"`
}

type TrackerConfig struct {
	Store       string `mapstructure:"store"`
	DatabaseURL string `mapstructure:"database-url"`
}

type FiltersConfig struct {
	MinScore             float64  `mapstructure:"min-score"`
	ExcludeFile          string   `mapstructure:"exclude-file"`
	ExcludeOrganizations []string `mapstructure:"exclude-organizations"`
	OnlyNew              bool     `mapstructure:"only-new"`
}

func (f FiltersConfig) chainConfig() *filtering.Config {
	return &filtering.Config{
		MinScore:      f.MinScore,
		ExcludeFile:   f.ExcludeFile,
		Organizations: f.ExcludeOrganizations,
		OnlyNew:       f.OnlyNew,
	}
}

type WatchConfig struct {
	Schedule string `mapstructure:"schedule"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobscout aggregates job postings from many sources and ranks them against your profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobscout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("profile", "profile.json")
	viper.SetDefault("data-dir", ".jobscout")
	viper.SetDefault("user-agent", sources.DefaultUserAgent)
	viper.SetDefault("cache.ttl", 6*time.Hour)
	viper.SetDefault("cache.disabled", false)
	viper.SetDefault("fetch.timeout", orchestrator.DefaultTimeout)
	viper.SetDefault("fetch.workers", orchestrator.DefaultWorkers)
	viper.SetDefault("fetch.max-pages", 3)
	viper.SetDefault("ratelimit.store", "bolt")
	viper.SetDefault("ratelimit.redis-url", "")
	viper.SetDefault("tracker.store", "bolt")
	viper.SetDefault("tracker.database-url", "")
	viper.SetDefault("filters.min-score", 0.0)
	viper.SetDefault("filters.exclude-file", "")
	viper.SetDefault("filters.only-new", false)
	viper.SetDefault("watch.schedule", "@every 6h")
}

func initConfig() {
	// Credentials may live in .env next to the config.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// An explicit config must exist; the default one is optional.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if err := filtering.Validate(config.Filters.chainConfig(), filtering.Default()); err != nil {
		return config, fmt.Errorf("filters: %w", err)
	}

	return config, nil
}
