package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewscontrol/internal/orchestrator"
	"github.com/ShayCichocki/crewscontrol/internal/project"
	"github.com/ShayCichocki/crewscontrol/internal/watch"
)

var (
	watchProjectName string
	watchParams      []string
	watchIgnoreCache bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run a project whenever its files change",
	Long: `Run a project, then run it again each time execution.yaml,
benchmark.yaml or a file under context/ changes. Inputs come from --params.
The cache is ignored by default so edited context is picked up; pass
--ignore-cache=false to keep it.`,
	Args: cobra.NoArgs,
	RunE: watchProject,
}

func init() {
	watchCmd.Flags().StringVar(&watchProjectName, "project-name", "", "The name of the project to watch")
	watchCmd.Flags().StringSliceVar(&watchParams, "params", nil, "Input values as key=value pairs")
	watchCmd.Flags().BoolVar(&watchIgnoreCache, "ignore-cache", true, "Ignore the cache on every run")
}

func watchProject(cmd *cobra.Command, args []string) error {
	if err := requireProjectName(watchProjectName); err != nil {
		return err
	}
	cfg := current.cfg

	p, err := project.Open(cfg.Execution.ProjectsDir, watchProjectName)
	if err != nil {
		return err
	}
	supplied, err := project.ParseParams(watchParams)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx, cfg, p)
	if err != nil {
		return err
	}
	defer s.Close()
	defer s.printUsage()

	rc := orchestrator.RunConfig{IgnoreCache: watchIgnoreCache, ExitOnError: cfg.Execution.ExitOnError}
	rerun := func(ctx context.Context) error {
		// execution.yaml is reloaded on every run since it may be the file that changed.
		execCfg, err := p.LoadExecution()
		if err != nil {
			return err
		}
		inputs, err := project.ValidateInputs(execCfg.UserInputs, supplied)
		if err != nil {
			return err
		}
		summary, err := s.orch.Execute(ctx, execCfg, inputs, nil, rc)
		printSummary(summary)
		if err != nil {
			return err
		}
		printFinalResult(summary)
		return nil
	}

	printBanner(fmt.Sprintf("Watching %s", p.Name))
	if err := rerun(ctx); err != nil {
		printError(err)
	}

	return watch.Watch(ctx, watch.Config{Dir: p.Dir, Logger: slog.Default()}, func(ctx context.Context, changed []string) error {
		rel := make([]string, len(changed))
		for i, path := range changed {
			if r, err := filepath.Rel(p.Dir, path); err == nil {
				path = r
			}
			rel[i] = path
		}
		fmt.Println(color.New(color.Faint).Sprintf("\nChanged: %s", strings.Join(rel, ", ")))
		err := rerun(ctx)
		if err != nil {
			printError(err)
		}
		return err
	})
}
