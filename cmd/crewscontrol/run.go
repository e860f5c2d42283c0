package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewscontrol/internal/orchestrator"
	"github.com/ShayCichocki/crewscontrol/internal/project"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

var (
	runProjectName string
	runParams      []string
	runBenchmark   bool
	runIgnoreCache bool
	runExitOnError bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a project",
	Long: `Run every crew of a project in dependency order.

Inputs are taken from --params, from benchmark.yaml with --benchmark, or
asked for interactively. With --benchmark each execution of the sweep is
run and validated, then the success percentage of the validations
directory is reported.

Failed crews normally record their error as their result and the run
continues; --exit-on-error (or CREWS_EXIT_ON_ERROR) stops at the first one.`,
	Args: cobra.NoArgs,
	RunE: runProject,
}

func init() {
	runCmd.Flags().StringVar(&runProjectName, "project-name", "", "The name of the project to run")
	runCmd.Flags().StringSliceVar(&runParams, "params", nil, "Input values as key=value pairs")
	runCmd.Flags().BoolVar(&runBenchmark, "benchmark", false, "Run the project from its benchmark file")
	runCmd.Flags().BoolVar(&runIgnoreCache, "ignore-cache", false, "Ignore the cache and run all crews")
	runCmd.Flags().BoolVar(&runExitOnError, "exit-on-error", false, "Stop the run at the first remote failure")
	runCmd.MarkFlagsMutuallyExclusive("params", "benchmark")
}

func runProject(cmd *cobra.Command, args []string) error {
	if err := requireProjectName(runProjectName); err != nil {
		return err
	}
	cfg := current.cfg

	p, err := project.Open(cfg.Execution.ProjectsDir, runProjectName)
	if err != nil {
		return err
	}
	execCfg, err := p.LoadExecution()
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

	rc := orchestrator.RunConfig{
		IgnoreCache: runIgnoreCache,
		ExitOnError: runExitOnError || cfg.Execution.ExitOnError,
	}

	printBanner(fmt.Sprintf("Welcome to %s", p.Name))

	if runBenchmark {
		return runBenchmarkSweep(ctx, s, p, execCfg, rc)
	}

	var inputs models.Inputs
	if len(runParams) > 0 {
		supplied, err := project.ParseParams(runParams)
		if err != nil {
			return err
		}
		if inputs, err = project.ValidateInputs(execCfg.UserInputs, supplied); err != nil {
			return err
		}
	} else {
		if inputs, err = promptInputs(os.Stdin, os.Stdout, execCfg.UserInputs); err != nil {
			return err
		}
	}
	fmt.Printf("User inputs: %v\n", inputs.Map())

	summary, err := s.orch.Execute(ctx, execCfg, inputs, nil, rc)
	printSummary(summary)
	if err != nil {
		return err
	}
	printFinalResult(summary)
	return nil
}

func runBenchmarkSweep(ctx context.Context, s *session, p *project.Project, execCfg *models.ExecutionConfig, rc orchestrator.RunConfig) error {
	bench, err := p.LoadBenchmark()
	if err != nil {
		return err
	}

	summaries, err := s.orch.Benchmark(ctx, execCfg, bench, rc)
	for i, summary := range summaries {
		fmt.Println(color.New(color.Faint).Sprintf("Benchmark execution <%d>", i))
		printSummary(summary)
	}
	if err != nil {
		return err
	}

	report, err := orchestrator.Report(p.ValidationsDir())
	if err != nil {
		return err
	}
	fmt.Println()
	printReport(report)
	return nil
}

// printFinalResult prints the output of the last crew of the run.
func printFinalResult(summary *orchestrator.RunSummary) {
	if summary == nil || len(summary.Order) == 0 {
		return
	}
	last := summary.Result(summary.Order[len(summary.Order)-1])
	if last == nil {
		return
	}
	fmt.Println()
	fmt.Println(color.New(color.Bold).Sprintf("Result of %s:", last.Unit))
	fmt.Println(last.Text)
}
