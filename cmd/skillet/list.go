package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skillet-dev/skillet/pkg/presenter"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered skills",
	Long:  `Discover skills from the configured directories and list their names, descriptions, and locations.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		cfg, err := loadConfig(cmd)
		if err != nil {
			presenter.Error(err, "Failed to load configuration")
			os.Exit(1)
		}

		manager, err := newManager(ctx, cfg)
		if err != nil {
			presenter.Error(err, "Failed to initialize skill manager")
			os.Exit(1)
		}

		available := manager.Skills()
		if len(available) == 0 {
			presenter.Info("No skills found")
			return
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDIRECTORY\tDESCRIPTION")
		fmt.Fprintln(tw, "----\t---------\t-----------")

		for _, skill := range available {
			description := skill.Description
			if len(description) > 60 {
				description = description[:57] + "..."
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", skill.Name, skill.Path, description)
		}
		tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
