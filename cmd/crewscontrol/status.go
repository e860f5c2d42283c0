package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewscontrol/internal/config"
	"github.com/ShayCichocki/crewscontrol/internal/state"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

var (
	statusProjectName string
	statusLimit       int
	statusPurge       time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show recorded runs",
	Long: `Show the run history. Without arguments the most recent runs are
listed, optionally filtered by --project-name. With a run ID the crews of
that run are shown.

--purge removes runs that finished longer ago than the given duration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := current.cfg.State.DBPath
		if path == "" {
			path = config.DefaultStatePath()
		}
		db, err := state.OpenAndMigrate(path)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		if statusPurge > 0 {
			n, err := db.PurgeOldRuns(ctx, statusPurge)
			if err != nil {
				return err
			}
			printStatus("✓", fmt.Sprintf("Purged %d run(s)", n), color.FgGreen)
			return nil
		}
		if len(args) == 1 {
			return showRun(ctx, db, args[0])
		}
		return listRuns(ctx, db)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusProjectName, "project-name", "", "Only show runs of this project")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "Maximum number of runs to show")
	statusCmd.Flags().DurationVar(&statusPurge, "purge", 0, "Delete runs finished longer ago than this")
}

func listRuns(ctx context.Context, db state.HistoryReader) error {
	runs, err := db.ListRuns(ctx, statusProjectName, statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %-20s %s  %s  %s\n",
			r.ID, r.Project, colorRunStatus(r.Status),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), runDuration(&r))
	}
	return nil
}

func showRun(ctx context.Context, db state.HistoryReader, id string) error {
	run, err := db.GetRun(ctx, id)
	if errors.Is(err, state.ErrRunNotFound) {
		return fmt.Errorf("no run with ID %s", id)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Run:      %s\n", run.ID)
	fmt.Printf("Project:  %s\n", run.Project)
	fmt.Printf("Status:   %s\n", colorRunStatus(run.Status))
	fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format(time.RFC1123))
	fmt.Printf("Duration: %s\n", runDuration(run))
	if len(run.Inputs) > 0 {
		fmt.Printf("Inputs:   %s\n", formatInputs(run.Inputs))
	}
	if run.Error != "" {
		fmt.Printf("Error:    %s\n", color.RedString(run.Error))
	}

	units, err := db.ListUnits(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return nil
	}
	fmt.Println()
	for _, u := range units {
		line := fmt.Sprintf("%-24s %-12s attempts=%d %s", u.Unit, u.Status, u.Attempts, formatDuration(u.Duration))
		if u.CacheHit {
			line += " (cached)"
		}
		switch {
		case u.Passed == nil:
			fmt.Println(line)
		case *u.Passed:
			fmt.Println(line + " " + color.GreenString("validation passed"))
		default:
			fmt.Println(line + " " + color.RedString("validation failed"))
		}
	}
	return nil
}

func colorRunStatus(s models.RunStatus) string {
	switch s {
	case models.RunSucceeded:
		return color.GreenString("%-9s", s)
	case models.RunFailed:
		return color.RedString("%-9s", s)
	default:
		return color.YellowString("%-9s", s)
	}
}

func runDuration(r *models.RunRecord) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return formatDuration(r.FinishedAt.Sub(r.StartedAt))
}

func formatInputs(inputs map[string]string) string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + inputs[k]
	}
	return strings.Join(parts, " ")
}
