package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/skillet-dev/skillet/pkg/config"
	"github.com/skillet-dev/skillet/pkg/executor"
	"github.com/skillet-dev/skillet/pkg/logger"
	"github.com/skillet-dev/skillet/pkg/skills"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("skillet")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.skillet")
	config.SetDefaults(viper.GetViper())

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "skillet",
	Short: "Skillet manages and runs agent skills",
	Long: `Skillet discovers skills from configured directories, validates them,
activates them on demand, and runs their bundled scripts in a sandbox.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return err
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

// loadConfig resolves the effective configuration, preferring an explicit
// --config file over the ambient viper state.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, err := cmd.Flags().GetString("config"); err == nil && path != "" {
		return config.LoadFile(path)
	}
	return config.FromViper(viper.GetViper())
}

// newManager builds a skill manager from the configuration and runs an
// initial discovery pass.
func newManager(ctx context.Context, cfg *config.Config) (*skills.Manager, error) {
	opts := []skills.Option{
		skills.WithValidation(cfg.Validation.ValidateOnLoad, cfg.Validation.StrictMode),
	}
	if len(cfg.AllowedSkills) > 0 {
		opts = append(opts, skills.WithAllowedSkills(cfg.AllowedSkills))
	}

	manager, err := skills.NewManager(cfg.SkillDirectories, opts...)
	if err != nil {
		return nil, err
	}
	manager.Discover(ctx)
	return manager, nil
}

func newExecutor(cfg *config.Config) *executor.ScriptExecutor {
	return executor.New(executor.Options{
		Sandbox:              cfg.Scripts.Sandbox,
		AllowedInterpreters:  cfg.Scripts.AllowedInterpreters,
		Timeout:              cfg.Scripts.Timeout(),
		AllowNetwork:         cfg.Security.AllowNetwork,
		AllowFilesystemWrite: cfg.Security.AllowFilesystemWrite,
	})
}

// registerGlobalFlags declares the persistent flags and binds them into viper
// so config files, environment variables, and flags share one key space.
func registerGlobalFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to a skillet configuration file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.StringSlice("skill-dir", nil, "Skill directory to search (repeatable, overrides config)")

	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("skill_directories", flags.Lookup("skill-dir"))
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registerGlobalFlags(rootCmd.PersistentFlags())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
