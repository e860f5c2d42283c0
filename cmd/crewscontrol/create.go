package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewscontrol/internal/project"
)

var (
	createProjectName string
	createFile        string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project from an execution YAML file",
	Long: `Create a project folder and copy the given YAML into its execution.yaml.
A surrounding yaml code fence, as produced by chat assistants, is removed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProjectName(createProjectName); err != nil {
			return err
		}
		source, err := os.ReadFile(createFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", createFile, err)
		}

		p, err := project.Create(current.cfg.Execution.ProjectsDir, createProjectName, source)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Project folder '%s' created successfully.", p.Name), color.FgGreen)
		printStatus("→", fmt.Sprintf("YAML file copied to '%s'.", p.Path(project.ExecutionFile)), color.FgBlue)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createProjectName, "project-name", "", "The name of the project")
	createCmd.Flags().StringVar(&createFile, "file", "", "The path to the YAML input file")
	_ = createCmd.MarkFlagRequired("file")
}
