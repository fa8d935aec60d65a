package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillet-dev/skillet/pkg/presenter"
	"github.com/skillet-dev/skillet/pkg/skills"
)

var runCmd = &cobra.Command{
	Use:   "run <skill> <script> [args...]",
	Short: "Run a script bundled with a skill",
	Long: `Activate the named skill and run one of its bundled scripts in the
sandbox. Script output is written to stdout and stderr, and the script's exit
code becomes the command's exit code.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		skillName, scriptName := args[0], args[1]
		scriptArgs := args[2:]

		cfg, err := loadConfig(cmd)
		if err != nil {
			presenter.Error(err, "Failed to load configuration")
			os.Exit(1)
		}

		if !cfg.Scripts.Enabled {
			presenter.Warning("Script execution is disabled (scripts.enabled is false)")
			os.Exit(1)
		}

		manager, err := newManager(ctx, cfg)
		if err != nil {
			presenter.Error(err, "Failed to initialize skill manager")
			os.Exit(1)
		}

		skill, err := manager.Activate(ctx, skillName)
		if err != nil {
			presenter.Error(err, "Failed to activate skill")
			os.Exit(1)
		}

		scriptPath, err := manager.ResourcePath(skillName, skills.ResourceScripts, scriptName)
		if err != nil {
			presenter.Error(err, "Failed to resolve script")
			os.Exit(1)
		}

		if cfg.Scripts.RequireConfirmation {
			question := fmt.Sprintf("Run %s from skill '%s'", scriptName, skillName)
			answer := presenter.Prompt(question, "y", "N")
			if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
				presenter.Info("Aborted")
				os.Exit(1)
			}
		}

		exec := newExecutor(cfg)
		result, err := exec.Run(ctx, scriptPath, scriptArgs, skill.Path, 0)
		if err != nil {
			presenter.Error(err, "Script execution failed")
			os.Exit(1)
		}

		if result.Stdout != "" {
			fmt.Fprint(os.Stdout, result.Stdout)
		}
		if result.Stderr != "" {
			fmt.Fprint(os.Stderr, result.Stderr)
		}
		if result.TimedOut {
			presenter.Warning(fmt.Sprintf("Script timed out after %s", exec.Timeout()))
		}
		if result.ReturnCode != 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
