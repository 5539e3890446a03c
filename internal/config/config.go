// Package config handles configuration loading and management for greengate.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	// ProjectConfigFile is the project-level config file name.
	ProjectConfigFile = ".greengate.yaml"
	// EnvPrefix prefixes environment overrides, e.g. GREENGATE_LOOP_MAX_ITERATIONS.
	EnvPrefix = "GREENGATE"
)

// Config holds all configuration for greengate.
type Config struct {
	Loop    LoopConfig    `mapstructure:"loop"`
	Checks  ChecksConfig  `mapstructure:"checks"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`

	// File is the project or explicit config file that was read, if any.
	File string `mapstructure:"-"`

	v *viper.Viper
}

// LoopConfig holds anti-loop controller settings.
type LoopConfig struct {
	// MaxIterations is the budget for contracts that do not set one.
	MaxIterations int `mapstructure:"max_iterations" validate:"gte=1"`
	// StagnationThreshold is the no-progress streak that triggers the
	// diagnostic re-run. Zero disables it.
	StagnationThreshold int `mapstructure:"stagnation_threshold" validate:"gte=0"`
}

// ChecksConfig holds check execution settings.
type ChecksConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// OutputLimit caps captured output in characters; -1 disables truncation.
	OutputLimit int    `mapstructure:"output_limit" validate:"gte=-1"`
	Shell       string `mapstructure:"shell" validate:"required"`
	WorkDir     string `mapstructure:"work_dir"`
	EnvFile     string `mapstructure:"env_file"`
}

// OutputConfig holds artifact locations.
type OutputConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// TracingConfig holds span export settings.
type TracingConfig struct {
	File string `mapstructure:"file"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (GREENGATE_*)
// 2. Explicit config file, or project config (.greengate.yaml in current directory or parent)
// 3. User config (~/.config/greengate/config.yaml)
// 4. Built-in defaults
func Load(explicitPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := explicitPath
	if projectConfig == "" {
		projectConfig = findProjectConfig()
	}
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", projectConfig, err)
		}
		// Merge project config (takes precedence)
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	cfg.File = projectConfig
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path, skipping the user
// and project files. Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	bindEnv(v)

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	cfg.File = path
	return cfg, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Checks.EnvFile = os.ExpandEnv(cfg.Checks.EnvFile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// WriteTemplate writes a config file holding every default. It refuses to
// overwrite an existing file unless force is set.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("loop.max_iterations", 5)
	v.SetDefault("loop.stagnation_threshold", 2)

	v.SetDefault("checks.timeout", "10m")
	v.SetDefault("checks.output_limit", 800)
	v.SetDefault("checks.shell", "sh")
	v.SetDefault("checks.work_dir", "")
	v.SetDefault("checks.env_file", "")

	v.SetDefault("output.dir", filepath.Join(".greengate", "runs"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("tracing.file", "")
}

// getUserConfigDir returns the XDG config directory for greengate.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "greengate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "greengate")
	}
	return filepath.Join(home, ".config", "greengate")
}

// findProjectConfig searches for .greengate.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Loop: LoopConfig{
			MaxIterations:       5,
			StagnationThreshold: 2,
		},
		Checks: ChecksConfig{
			Timeout:     10 * time.Minute,
			OutputLimit: 800,
			Shell:       "sh",
		},
		Output: OutputConfig{
			Dir: filepath.Join(".greengate", "runs"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
