// Package config defines the skillet configuration surface and its loading
// from YAML files, environment variables, and explicit maps. All paths in
// skill_directories are expanded for ~ shorthand and resolved to absolute
// form at load time so the rest of the system only ever sees canonical roots.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigurationError indicates invalid or missing configuration.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ValidationConfig controls discovery-time skill validation.
type ValidationConfig struct {
	ValidateOnLoad bool `mapstructure:"validate_on_load" yaml:"validate_on_load"`
	StrictMode     bool `mapstructure:"strict_mode" yaml:"strict_mode"`
}

// ScriptsConfig controls script execution.
type ScriptsConfig struct {
	Enabled             bool     `mapstructure:"enabled" yaml:"enabled"`
	Sandbox             bool     `mapstructure:"sandbox" yaml:"sandbox"`
	TimeoutSeconds      int      `mapstructure:"timeout" yaml:"timeout"`
	AllowedInterpreters []string `mapstructure:"allowed_interpreters" yaml:"allowed_interpreters"`
	RequireConfirmation bool     `mapstructure:"require_confirmation" yaml:"require_confirmation"`
}

// Timeout returns the script timeout as a duration.
func (c ScriptsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SecurityConfig controls sandbox restrictions for executed scripts and
// commands.
type SecurityConfig struct {
	AllowNetwork         bool `mapstructure:"allow_network" yaml:"allow_network"`
	AllowFilesystemWrite bool `mapstructure:"allow_filesystem_write" yaml:"allow_filesystem_write"`
	WorkingDirOnly       bool `mapstructure:"working_dir_only" yaml:"working_dir_only"`
}

// PromptConfig controls the rendering of the skills prompt block.
type PromptConfig struct {
	MaxSkillDescription  int  `mapstructure:"max_skill_description" yaml:"max_skill_description"`
	IncludeCompatibility bool `mapstructure:"include_compatibility" yaml:"include_compatibility"`
}

// Config is the top-level skillet configuration.
type Config struct {
	SkillDirectories []string         `mapstructure:"skill_directories" yaml:"skill_directories"`
	AllowedSkills    []string         `mapstructure:"allowed_skills" yaml:"allowed_skills,omitempty"`
	Validation       ValidationConfig `mapstructure:"validation" yaml:"validation"`
	Scripts          ScriptsConfig    `mapstructure:"scripts" yaml:"scripts"`
	Security         SecurityConfig   `mapstructure:"security" yaml:"security"`
	Prompt           PromptConfig     `mapstructure:"prompt" yaml:"prompt"`
}

// Default returns the configuration defaults with no skill directories set.
func Default() *Config {
	return &Config{
		Validation: ValidationConfig{
			ValidateOnLoad: true,
			StrictMode:     false,
		},
		Scripts: ScriptsConfig{
			Enabled:             true,
			Sandbox:             true,
			TimeoutSeconds:      30,
			AllowedInterpreters: []string{"python3", "python", "bash", "sh"},
			RequireConfirmation: false,
		},
		Security: SecurityConfig{
			AllowNetwork:         false,
			AllowFilesystemWrite: false,
			WorkingDirOnly:       true,
		},
		Prompt: PromptConfig{
			MaxSkillDescription:  200,
			IncludeCompatibility: true,
		},
	}
}

// SetDefaults registers the default values on a viper instance so config
// files and environment variables only need to override what they change.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("validation.validate_on_load", d.Validation.ValidateOnLoad)
	v.SetDefault("validation.strict_mode", d.Validation.StrictMode)
	v.SetDefault("scripts.enabled", d.Scripts.Enabled)
	v.SetDefault("scripts.sandbox", d.Scripts.Sandbox)
	v.SetDefault("scripts.timeout", d.Scripts.TimeoutSeconds)
	v.SetDefault("scripts.allowed_interpreters", d.Scripts.AllowedInterpreters)
	v.SetDefault("scripts.require_confirmation", d.Scripts.RequireConfirmation)
	v.SetDefault("security.allow_network", d.Security.AllowNetwork)
	v.SetDefault("security.allow_filesystem_write", d.Security.AllowFilesystemWrite)
	v.SetDefault("security.working_dir_only", d.Security.WorkingDirOnly)
	v.SetDefault("prompt.max_skill_description", d.Prompt.MaxSkillDescription)
	v.SetDefault("prompt.include_compatibility", d.Prompt.IncludeCompatibility)
}

// LoadFile loads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ConfigurationError{Reason: "configuration file not found: " + path, Err: err}
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigurationError{Reason: "invalid configuration file", Err: err}
	}

	return FromViper(v)
}

// FromViper unmarshals a configuration from a viper instance and finalizes it.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Reason: "failed to unmarshal configuration", Err: err}
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromMap builds a configuration from a raw map, applying defaults for any
// missing groups.
func FromMap(data map[string]any) (*Config, error) {
	cfg := Default()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create configuration decoder")
	}
	if err := decoder.Decode(data); err != nil {
		return nil, &ConfigurationError{Reason: "failed to decode configuration", Err: err}
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finalize validates required fields and canonicalizes skill directories.
func (c *Config) finalize() error {
	if len(c.SkillDirectories) == 0 {
		return &ConfigurationError{Reason: "skill_directories is required and cannot be empty"}
	}

	resolved := make([]string, 0, len(c.SkillDirectories))
	for _, dir := range c.SkillDirectories {
		abs, err := ExpandPath(dir)
		if err != nil {
			return &ConfigurationError{Reason: "cannot resolve skill directory " + dir, Err: err}
		}
		resolved = append(resolved, abs)
	}
	c.SkillDirectories = resolved

	return nil
}

// ExpandPath expands a leading ~ to the user home directory and resolves the
// path to absolute form.
func ExpandPath(path string) (string, error) {
	if path == "~" || len(path) > 1 && path[0] == '~' && os.IsPathSeparator(path[1]) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to resolve user home directory")
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// SaveYAML writes the effective configuration to a YAML file.
func (c *Config) SaveYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal configuration")
	}
	return os.WriteFile(path, data, 0o644)
}
