package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all taleWEAVER configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Narration model configuration
	Model ModelConfig `yaml:"model"`

	// Completion API endpoint configuration
	API APIConfig `yaml:"api"`

	// Session behavior
	Session SessionConfig `yaml:"session"`

	// Terminal interface
	UI UIConfig `yaml:"ui"`

	// Transcript persistence
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig configures the narration model.
type ModelConfig struct {
	Name            string `yaml:"name"`
	StoryMaxTokens  int    `yaml:"story_max_tokens"`
	SceneMaxTokens  int    `yaml:"scene_max_tokens"`
	ReasoningEffort string `yaml:"reasoning_effort"` // minimal, low, medium, high
}

// APIConfig configures the completion endpoint.
type APIConfig struct {
	BaseURL         string `yaml:"base_url"`
	RequestTimeout  string `yaml:"request_timeout"`
	ValidateTimeout string `yaml:"validate_timeout"`
}

// SessionConfig configures session behavior.
type SessionConfig struct {
	// HistoryLimit bounds the flattened conversation items sent per request.
	HistoryLimit int `yaml:"history_limit"`
}

// UIConfig configures the terminal interface.
type UIConfig struct {
	// Theme forces "light" or "dark" chrome; "auto" detects from the
	// terminal.
	Theme string `yaml:"theme"`
}

// StorageConfig configures transcript persistence.
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "taleWEAVER",
		Version: "0.1.0",

		Model: ModelConfig{
			Name:            "gpt-5-mini",
			StoryMaxTokens:  500,
			SceneMaxTokens:  400,
			ReasoningEffort: "low",
		},

		API: APIConfig{
			BaseURL:         "https://api.openai.com/v1/responses",
			RequestTimeout:  "60s",
			ValidateTimeout: "15s",
		},

		Session: SessionConfig{
			HistoryLimit: 60,
		},

		UI: UIConfig{
			Theme: "auto",
		},

		Storage: StorageConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(".taleweaver", "transcripts.db"),
		},

		Logging: LoggingConfig{
			Debug: false,
		},
	}
}

// DefaultPath returns the config file path under the given workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".taleweaver", "config.yaml")
}

// Load loads configuration from a YAML file. Missing file returns defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if model := os.Getenv("TALEWEAVER_MODEL"); model != "" {
		c.Model.Name = model
	}
	if url := os.Getenv("TALEWEAVER_BASE_URL"); url != "" {
		c.API.BaseURL = url
	}
	if path := os.Getenv("TALEWEAVER_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
}

// GetRequestTimeout returns the completion request timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.RequestTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetValidateTimeout returns the key validation timeout as a duration.
func (c *Config) GetValidateTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.ValidateTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// ValidEfforts lists the reasoning effort levels the completion API accepts.
var ValidEfforts = []string{"minimal", "low", "medium", "high"}

// ValidThemes lists the accepted ui.theme values.
var ValidThemes = []string{"auto", "light", "dark"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("model name not configured")
	}
	if c.Model.StoryMaxTokens <= 0 {
		return fmt.Errorf("story_max_tokens must be positive, got %d", c.Model.StoryMaxTokens)
	}
	if c.Model.SceneMaxTokens <= 0 {
		return fmt.Errorf("scene_max_tokens must be positive, got %d", c.Model.SceneMaxTokens)
	}

	validEffort := false
	for _, e := range ValidEfforts {
		if c.Model.ReasoningEffort == e {
			validEffort = true
			break
		}
	}
	if !validEffort {
		return fmt.Errorf("invalid reasoning effort: %s (valid: %v)", c.Model.ReasoningEffort, ValidEfforts)
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL not configured")
	}
	if c.Session.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", c.Session.HistoryLimit)
	}

	validTheme := false
	for _, th := range ValidThemes {
		if c.UI.Theme == th {
			validTheme = true
			break
		}
	}
	if !validTheme {
		return fmt.Errorf("invalid theme: %s (valid: %v)", c.UI.Theme, ValidThemes)
	}

	return nil
}
