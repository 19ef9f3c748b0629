package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/shutdown"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show the request quota left for every backend",
	Run: func(_ *cobra.Command, _ []string) {
		quota()
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}

func quota() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	hooks := shutdown.New(logger)
	defer hooks.Run()

	ctx := context.Background()
	components, err := setup(ctx, config, logger, hooks)
	if err != nil {
		hooks.Run()
		logger.Fatal("preparing local state", zap.Error(err))
	}
	components.buildFetchers()

	for _, usage := range components.limiter.Snapshot(ctx, components.backends()...) {
		logger.Info("quota",
			zap.String("backend", usage.Backend),
			zap.Int("used", usage.Used),
			zap.Int("limit", usage.Limit),
			zap.Int("remaining", usage.Remaining),
			zap.Duration("period", usage.Period),
			zap.Time("resets_at", usage.ResetsAt),
		)
	}

	if components.limiter.Degraded() {
		logger.Warn("quota store is unavailable, figures above cover this process only")
	}
}
