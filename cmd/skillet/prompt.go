package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillet-dev/skillet/pkg/presenter"
	"github.com/skillet-dev/skillet/pkg/prompt"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the skills prompt block",
	Long: `Discover skills and print the <available_skills> block that gets
injected into an agent's system prompt, optionally preceded by the usage
guidance text.`,
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

		guidance, _ := cmd.Flags().GetBool("guidance")
		if guidance {
			fmt.Println(prompt.Guidance)
			fmt.Println()
		}
		fmt.Println(prompt.SkillsBlock(manager.Skills(), cfg.Prompt))
	},
}

func init() {
	promptCmd.Flags().Bool("guidance", false, "Include the skill usage guidance text")
	rootCmd.AddCommand(promptCmd)
}
