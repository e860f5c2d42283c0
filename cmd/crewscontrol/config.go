package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/crewscontrol/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key [value]]",
	Short: "Show or change configuration",
	Long: `Without arguments, print every configuration key with its effective
value. With a key, print that value. With a key and a value, store the
value in the user config file (` + "`~/.config/crewscontrol/config.yaml`" + `).

The API key is always shown masked.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := current.cfg
		switch len(args) {
		case 0:
			for _, key := range config.Keys() {
				value, err := config.Display(cfg, key)
				if err != nil {
					return err
				}
				fmt.Printf("%-24s %s\n", key, value)
			}
			_, source, err := config.ResolveAPIKey(cfg)
			if err != nil {
				printStatus("⚠", err.Error(), color.FgYellow)
			} else {
				fmt.Printf("\nCredentials from: %s\n", source)
			}
			if path := config.GetProjectConfigPath(); path != "" {
				fmt.Printf("Project config:   %s\n", path)
			}
			fmt.Printf("User config:      %s\n", config.GetUserConfigPath())
			return nil
		case 1:
			value, err := config.Display(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			if err := config.SetUserValue(args[0], args[1]); err != nil {
				return err
			}
			printStatus("✓", fmt.Sprintf("%s saved to %s", args[0], config.GetUserConfigPath()), color.FgGreen)
			return nil
		}
	},
}
