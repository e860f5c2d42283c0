package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewscontrol/internal/config"
	"github.com/ShayCichocki/crewscontrol/internal/logging"
)

var (
	flagProjectsDir string
	flagLogLevel    string
	flagDebugFile   string
)

// app holds what every command needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
}

var current app

var rootCmd = &cobra.Command{
	Use:   "crewscontrol",
	Short: "Crew orchestration engine",
	Long: `crewscontrol runs crew projects. A project declares named crews of
agents and tasks, the crews each one depends on, and the user inputs it
needs. Crews run in dependency order; each crew's result is available to
the crews after it, and results are cached on disk.

Projects live under the projects directory (execution.projects_dir):

  projects/<name>/execution.yaml   crews, settings and user inputs
  projects/<name>/benchmark.yaml   optional benchmark sweep
  projects/<name>/context/         context files crews can reference
  projects/<name>/output/          cached crew results
  projects/<name>/validations/     expected outputs and .result files`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("projects-dir") {
			cfg.Execution.ProjectsDir = flagProjectsDir
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = flagLogLevel
		}
		if cmd.Flags().Changed("debug-file") {
			cfg.Logging.DebugFile = flagDebugFile
		}

		logger, err := logging.New(logging.Options{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			DebugFile: cfg.Logging.DebugFile,
		})
		if err != nil {
			return err
		}
		slog.SetDefault(logger.Logger)

		current = app{cfg: cfg, logger: logger}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current.logger != nil {
			current.logger.Close()
		}
	},
}

// Execute runs the root command. Any error exits with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProjectsDir, "projects-dir", "", "Directory holding the projects (default from config: projects)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&flagDebugFile, "debug-file", "", "Append debug logs to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func requireProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("--project-name is required")
	}
	return nil
}
