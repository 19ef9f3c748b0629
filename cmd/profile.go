package cmd

import (
	"log"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Work with the candidate profile",
}

var profileCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Load, migrate and validate the profile and print the effective weights",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		path := viper.GetString("profile")
		if len(args) == 1 {
			path = args[0]
		}
		checkProfile(path)
	},
}

func init() {
	profileCmd.AddCommand(profileCheckCmd)
	rootCmd.AddCommand(profileCmd)
}

func checkProfile(path string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	p := loadProfile(path, logger)

	weights := p.Weights
	if err := weights.Validate(); err != nil {
		weights = profile.DefaultWeights()
	}

	components := weights.Map()
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]zap.Field, 0, len(names)+1)
	for _, name := range names {
		fields = append(fields, zap.Float64(name, components[name]))
	}
	fields = append(fields, zap.Float64("sum", weights.Sum()))

	logger.Info("profile is valid",
		zap.String("path", path),
		zap.Int("version", p.Version),
		zap.Strings("target_titles", p.TargetTitles),
		zap.Int("skills", len(p.Skills)),
		zap.String("staffing", string(p.Staffing)),
	)
	logger.Info("effective weights", fields...)
}
