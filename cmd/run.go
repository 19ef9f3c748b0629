package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/filtering"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/orchestrator"
	"github.com/spigell/jobscout/internal/pipeline"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/results"
	"github.com/spigell/jobscout/internal/shutdown"
)

const (
	PromptExit                  = "Exit"
	PromptBack                  = "back"
	PromptReportByOrganizations = "Report by organizations"
	PromptBrowse                = "Browse listings"
	PromptAppendToExcludeFile   = "Append all listings to exclude file"
	PromptResultsToFile         = "Dump results to file"
	PromptExcludeListing        = "Exclude this listing"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptReportByOrganizations, PromptBrowse, PromptResultsToFile, PromptAppendToExcludeFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, deduplicate and rank listings from every configured source",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("yes", "y", false, "do not show the action menu, print the report and exit")
	runCmd.Flags().Bool("show-excluded", false, "keep listings excluded by dealbreakers")
	runCmd.Flags().Bool("only-new", false, "show only listings not seen in earlier runs")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with listings to exclude. Default is unset.")
	runCmd.Flags().StringP("profile", "p", "", "profile document (default is profile.json)")

	viper.BindPFlag("filters.exclude-file", runCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("filters.only-new", runCmd.Flags().Lookup("only-new"))
	viper.BindPFlag("profile", runCmd.Flags().Lookup("profile"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the jobscout", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	hooks := shutdown.New(logger)
	ctx, stop := hooks.Context(context.Background())
	defer stop()
	defer hooks.Run()

	prof := loadProfile(config.Profile, logger)

	components, err := setup(ctx, config, logger, hooks)
	if err != nil {
		hooks.Run()
		logger.Fatal("preparing local state", zap.Error(err))
	}

	steps := filtering.Default()
	if show, _ := cmd.Flags().GetBool("show-excluded"); show {
		filtering.DisableByName(steps, filtering.DealbreakersName, "show-excluded flag is set")
	}

	p, err := components.pipeline(steps, progress(logger))
	if err != nil {
		hooks.Run()
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	report, err := p.Run(ctx, prof)
	logSummary(logger, report)
	if err != nil {
		logger.Error("run did not complete, showing partial results", zap.Error(err))
	}

	if report.Items.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no listings left after filters"))
		return
	}

	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		printReport(logger, report.Items)
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Info("exiting", zap.Error(err))
			return
		}

		logger.Info("current list of listings", zap.Int("count", report.Items.Len()))

		if err := handleAction(action, logger, config, report.Items); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Error("action failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func loadProfile(path string, log *zap.Logger) *profile.Profile {
	prof, err := readProfile(path, log)
	if err != nil {
		log.Fatal("loading profile", zap.String("path", path), zap.Error(err))
	}
	return prof
}

// readProfile loads the profile and logs its warnings and upgrades.
func readProfile(path string, log *zap.Logger) (*profile.Profile, error) {
	loaded, err := profile.Load(path, log)
	if err != nil {
		return nil, err
	}
	for _, warning := range loaded.Warnings {
		log.Warn("profile", zap.String("warning", warning))
	}
	if loaded.Upgraded {
		log.Info("profile upgraded",
			zap.Int("from_version", loaded.FromVersion),
			zap.Int("to_version", profile.CurrentVersion),
		)
	}
	return loaded.Profile, nil
}

func progress(log *zap.Logger) func(orchestrator.Event) {
	return func(e orchestrator.Event) {
		fields := []zap.Field{
			zap.String("status", string(e.Status)),
			zap.Int("listings", e.Count),
			zap.Duration("elapsed", e.Elapsed),
			zap.String("progress", fmt.Sprintf("%d/%d", e.Done, e.Total)),
		}
		if e.Err != "" {
			fields = append(fields, zap.String("error", e.Err))
		}
		logger.WithSourceFields(log, e.Source, e.Backend).Info("source finished", fields...)
	}
}

func logSummary(log *zap.Logger, report *pipeline.Report) {
	s := report.Summary
	log.Info("run summary",
		zap.String(logger.FieldRunID, report.RunID),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("rate_limited", s.RateLimited),
		zap.Int("failed", s.Failed),
		zap.Int("empty", s.Empty),
		zap.Int("fetched", s.Fetched),
		zap.Int("unique", s.Unique),
		zap.Int("merged", s.Merged),
		zap.Int("excluded", s.Excluded),
		zap.Int("filtered", s.Filtered),
		zap.Int("new", s.New),
		zap.Int("shown", s.Shown),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	if s.NoTracking {
		log.Warn("seen tracking was disabled during this run, every listing is reported as new")
	}
}

func printReport(log *zap.Logger, items *results.Items) {
	pretty, _ := json.MarshalIndent(items.ReportByOrganization(), "", "  ")
	log.Info(string(pretty), zap.Int("listings count", items.Len()))
}

func handleAction(action string, logger *zap.Logger, config *Config, items *results.Items) error {
	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "exit selected"))
		return errExit
	case PromptReportByOrganizations:
		printReport(logger, items)
		return nil
	case PromptBrowse:
		return browse(logger, config, items)
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(logger, config.Filters.ExcludeFile, items, items)
	case PromptResultsToFile:
		filename, err := items.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func browse(logger *zap.Logger, config *Config, items *results.Items) error {
	for {
		labels := make([]string, 0, items.Len()+1)
		for _, it := range items.Items {
			marker := " "
			if it.IsNew {
				marker = "*"
			}
			labels = append(labels, fmt.Sprintf("%s %s %.2f %s / %s / %s",
				it.Key(), marker, it.Score.Score, it.Listing.Title, it.Listing.Organization, it.Listing.Location,
			))
		}

		listingPrompt := promptui.Select{
			Label: "Choose a listing and press ENTER",
			Items: append(labels, PromptBack),
			Size:  15,
		}

		_, selected, err := listingPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		key := strings.Split(selected, " ")[0]
		item := items.FindByID(key)
		if item == nil {
			return fmt.Errorf("there is no such listing %s", key)
		}

		pretty, _ := json.MarshalIndent(item, "", "  ")
		logger.Info(string(pretty))

		if config.Filters.ExcludeFile == "" {
			continue
		}

		confirm := promptui.Select{
			Label: "Action",
			Items: []string{PromptExcludeListing, PromptBack},
		}
		_, choice, err := confirm.Run()
		if err != nil {
			return err
		}
		if choice == PromptExcludeListing {
			single := &results.Items{Items: []*results.Item{item}}
			if err := appendToExcludeFile(logger, config.Filters.ExcludeFile, single, items); err != nil {
				return err
			}
		}
	}
}

// appendToExcludeFile records selected in the exclude file and removes them
// from items.
func appendToExcludeFile(logger *zap.Logger, path string, selected, items *results.Items) error {
	if path == "" {
		return errors.New("exclude file is not configured, set filters.exclude-file or --exclude-file")
	}

	excluded, err := results.GetExcludedFromFile(path)
	if err != nil {
		return err
	}

	toExclude := selected.ToExcluded()
	excluded.Append(toExclude)

	if err = excluded.ToFile(path); err != nil {
		return err
	}

	logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("count", len(toExclude.Items)))

	items.Exclude(results.ItemKeyField, toExclude.Keys())
	return nil
}
