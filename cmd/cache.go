package cmd

import (
	"log"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/cache"
	"github.com/spigell/jobscout/internal/logger"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired and unreadable cache entries",
	Run: func(_ *cobra.Command, _ []string) {
		pruneCache()
	},
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func pruneCache() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	dir := filepath.Join(config.DataDir, cacheDir)
	c, err := cache.New(dir, config.Cache.TTL, logger)
	if err != nil {
		logger.Fatal("opening cache", zap.Error(err))
	}

	removed, err := c.Prune()
	if err != nil {
		logger.Fatal("pruning cache", zap.String("dir", dir), zap.Error(err))
	}

	logger.Info("cache pruned", zap.String("dir", dir), zap.Int("removed", removed))
}
