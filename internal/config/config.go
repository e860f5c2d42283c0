// Package config handles configuration loading and management for crewscontrol.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for crewscontrol.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	State     StateConfig     `mapstructure:"state"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// ExecutionConfig holds settings for running projects.
type ExecutionConfig struct {
	// ProjectsDir is the directory holding one sub-directory per project.
	ProjectsDir string `mapstructure:"projects_dir"`
	// ExitOnError stops a run at the first remote failure.
	ExitOnError bool `mapstructure:"exit_on_error"`
	// BackoffBase is raised to the attempt number on rate limiting.
	BackoffBase float64 `mapstructure:"backoff_base"`
	// BackoffUnit is the duration of one backoff unit.
	BackoffUnit time.Duration `mapstructure:"backoff_unit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	DebugFile string `mapstructure:"debug_file"`
}

// StateConfig holds run history settings.
type StateConfig struct {
	// DBPath is the SQLite database path. Empty uses the user data dir.
	DBPath string `mapstructure:"db_path"`
}

// defaults maps every known key to its default value.
var defaults = map[string]interface{}{
	"anthropic.api_key":       "",
	"anthropic.model":         "claude-sonnet-4-5-20250929",
	"anthropic.max_tokens":    8192,
	"anthropic.use_bedrock":   false,
	"anthropic.aws_region":    "",
	"anthropic.aws_profile":   "",
	"execution.projects_dir":  "projects",
	"execution.exit_on_error": false,
	"execution.backoff_base":  2.0,
	"execution.backoff_unit":  "1s",
	"logging.level":           "info",
	"logging.format":          "text",
	"logging.debug_file":      "",
	"state.db_path":           "",
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, CREWS_EXIT_ON_ERROR, EXIT_ON_ERROR, CREWS_LOG_LEVEL, CREWS_<SECTION>_<KEY>)
// 2. Project config (.crewscontrol.yaml in current directory or parent)
// 3. User config (~/.config/crewscontrol/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
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

	// Load project config if present
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		// Merge project config (takes precedence)
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Execution.ProjectsDir = expandEnv(cfg.Execution.ProjectsDir)
	cfg.State.DBPath = expandEnv(cfg.State.DBPath)

	return cfg, nil
}

// bindEnv maps environment variables onto config keys.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CREWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map specific environment variables
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("execution.exit_on_error", "CREWS_EXIT_ON_ERROR", "EXIT_ON_ERROR")
	_ = v.BindEnv("logging.level", "CREWS_LOG_LEVEL")
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is a configuration key.
func IsKnownKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

// Get returns the effective value of key as a string.
func Get(cfg *Config, key string) (string, error) {
	switch key {
	case "anthropic.api_key":
		return cfg.Anthropic.APIKey, nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return fmt.Sprint(cfg.Anthropic.MaxTokens), nil
	case "anthropic.use_bedrock":
		return fmt.Sprint(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "execution.projects_dir":
		return cfg.Execution.ProjectsDir, nil
	case "execution.exit_on_error":
		return fmt.Sprint(cfg.Execution.ExitOnError), nil
	case "execution.backoff_base":
		return fmt.Sprint(cfg.Execution.BackoffBase), nil
	case "execution.backoff_unit":
		return cfg.Execution.BackoffUnit.String(), nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.format":
		return cfg.Logging.Format, nil
	case "logging.debug_file":
		return cfg.Logging.DebugFile, nil
	case "state.db_path":
		return cfg.State.DBPath, nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// SetUserValue writes key=value into the user config file, keeping the
// other values already stored there.
func SetUserValue(key, value string) error {
	return setValue(GetUserConfigPath(), key, value)
}

func setValue(path, key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}

	v.Set(key, value)
	return v.WriteConfigAs(path)
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	return save(GetUserConfigPath(), cfg)
}

func save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("execution.projects_dir", cfg.Execution.ProjectsDir)
	v.Set("execution.exit_on_error", cfg.Execution.ExitOnError)
	v.Set("execution.backoff_base", cfg.Execution.BackoffBase)
	v.Set("execution.backoff_unit", cfg.Execution.BackoffUnit.String())
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.format", cfg.Logging.Format)
	v.Set("logging.debug_file", cfg.Logging.DebugFile)
	v.Set("state.db_path", cfg.State.DBPath)

	return v.WriteConfigAs(path)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// DefaultStatePath returns the run history database used when
// state.db_path is empty.
func DefaultStatePath() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "crewscontrol", "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".crewscontrol", "history.db")
	}
	return filepath.Join(home, ".local", "share", "crewscontrol", "history.db")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// getUserConfigDir returns the XDG config directory for crewscontrol.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "crewscontrol")
	}

	// Fall back to ~/.config/crewscontrol
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "crewscontrol")
	}
	return filepath.Join(home, ".config", "crewscontrol")
}

// findProjectConfig searches for .crewscontrol.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".crewscontrol.yaml")
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

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 8192,
		},
		Execution: ExecutionConfig{
			ProjectsDir: "projects",
			BackoffBase: 2,
			BackoffUnit: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
