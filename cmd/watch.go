package cmd

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/filtering"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/pipeline"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/shutdown"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline on a schedule and report new listings",
	Run: func(cmd *cobra.Command, _ []string) {
		watch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("schedule", "s", "", "cron spec, e.g. \"@every 6h\" or \"0 8 * * *\"")
	viper.BindPFlag("watch.schedule", watchCmd.Flags().Lookup("schedule"))
}

func watch(_ *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	hooks := shutdown.New(logger)
	ctx, stop := hooks.Context(context.Background())
	defer stop()
	defer hooks.Run()

	components, err := setup(ctx, config, logger, hooks)
	if err != nil {
		hooks.Run()
		logger.Fatal("preparing local state", zap.Error(err))
	}

	// Only new listings are interesting between scheduled runs.
	config.Filters.OnlyNew = true
	p, err := components.pipeline(filtering.Default(), progress(logger))
	if err != nil {
		hooks.Run()
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	runOnce := func() { tick(ctx, p, config.Profile, logger) }

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	id, err := scheduler.AddFunc(config.Watch.Schedule, runOnce)
	if err != nil {
		hooks.Run()
		logger.Fatal("invalid watch schedule", zap.String("schedule", config.Watch.Schedule), zap.Error(err))
	}
	hooks.Add("scheduler", func() error {
		<-scheduler.Stop().Done()
		return nil
	})

	scheduler.Start()
	logger.Info("watching", zap.String("schedule", config.Watch.Schedule))

	// First run right away, through the same chain so it never overlaps a tick.
	go scheduler.Entry(id).WrappedJob.Run()

	<-ctx.Done()
}

type runner interface {
	Run(ctx context.Context, prof *profile.Profile) (*pipeline.Report, error)
}

// tick is one scheduled run. The profile is read again on every tick so edits
// apply without a restart; a profile that cannot be read skips the tick.
func tick(ctx context.Context, p runner, profilePath string, logger *zap.Logger) {
	prof, err := readProfile(profilePath, logger)
	if err != nil {
		logger.Error("skipping scheduled run", zap.String("profile", profilePath), zap.Error(err))
		return
	}

	report, err := p.Run(ctx, prof)
	logSummary(logger, report)
	if err != nil {
		logger.Error("scheduled run did not complete", zap.Error(err))
	}
	if report.Items.Len() > 0 {
		printReport(logger, report.Items)
	}
}
