package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewscontrol/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("crewscontrol version " + version.String())
		return nil
	},
}
