package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillet-dev/skillet/pkg/presenter"
	"github.com/skillet-dev/skillet/pkg/skills"
)

var validateCmd = &cobra.Command{
	Use:   "validate <skill-dir>",
	Short: "Validate a skill directory",
	Long: `Check that a skill directory contains a well-formed SKILL.md with the
required frontmatter fields. With --strict, additional structural checks are
applied to the description and resource directories.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		strict, _ := cmd.Flags().GetBool("strict")

		var problems []string
		if strict {
			problems = skills.ValidateStrict(args[0])
		} else {
			problems = skills.Validate(args[0])
		}

		if len(problems) == 0 {
			presenter.Success(fmt.Sprintf("%s is a valid skill", args[0]))
			return
		}

		presenter.Warning(fmt.Sprintf("%s has %d problem(s):", args[0], len(problems)))
		for _, problem := range problems {
			fmt.Fprintf(os.Stderr, "  - %s\n", problem)
		}
		os.Exit(1)
	},
}

func init() {
	validateCmd.Flags().Bool("strict", false, "Apply strict validation checks")
	rootCmd.AddCommand(validateCmd)
}
