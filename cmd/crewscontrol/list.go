package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewscontrol/internal/api"
	"github.com/ShayCichocki/crewscontrol/internal/project"
)

var listCmd = &cobra.Command{
	Use:       "list projects|tools|models",
	Short:     "List projects, tools or models",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"projects", "tools", "models"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var items []string
		switch args[0] {
		case "projects":
			names, err := project.List(current.cfg.Execution.ProjectsDir)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Printf("No projects in %s\n", current.cfg.Execution.ProjectsDir)
				return nil
			}
			items = names
		case "tools":
			items = api.ToolNames()
		case "models":
			items = api.Models()
		}
		for _, item := range items {
			fmt.Println(item)
		}
		return nil
	},
}
