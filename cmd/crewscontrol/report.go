package main

import (
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewscontrol/internal/orchestrator"
	"github.com/ShayCichocki/crewscontrol/internal/project"
)

var reportProjectName string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report the validation success rate of a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProjectName(reportProjectName); err != nil {
			return err
		}
		p, err := project.Open(current.cfg.Execution.ProjectsDir, reportProjectName)
		if err != nil {
			return err
		}
		report, err := orchestrator.Report(p.ValidationsDir())
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportProjectName, "project-name", "", "The name of the project")
}
