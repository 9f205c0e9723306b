// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName        = "voxprep"
	configFileName = "config.json"
)

// Config represents the application configuration.
type Config struct {
	// APIKey authenticates against the realtime and scoring APIs. The
	// OPENAI_API_KEY environment variable overrides it.
	APIKey string `json:"api_key,omitempty"`

	// Model is the realtime voice model.
	Model string `json:"model,omitempty"`

	// Voice is the synthesized interviewer voice.
	Voice string `json:"voice"`

	// ScoringModel grades completed interviews.
	ScoringModel string `json:"scoring_model,omitempty"`

	// HTTPAddr is the local observability API listen address.
	HTTPAddr string `json:"http_addr"`

	// DataDir holds the interview archive. Defaults under the user
	// data directory.
	DataDir string `json:"data_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`
}

// Load loads configuration from the config file, applying defaults for
// anything unset. A missing file yields the default config.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks that the configuration can run a session.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("api key not set (config api_key or OPENAI_API_KEY)")
	}
	if c.Voice == "" {
		return errors.New("voice not set")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Voice:        "marin",
		HTTPAddr:     "127.0.0.1:8632",
		LogLevel:     "info",
		ScoringModel: "gpt-4o",
	}
}

func (c *Config) applyDefaults() {
	def := defaultConfig()
	if c.Voice == "" {
		c.Voice = def.Voice
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = def.HTTPAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.ScoringModel == "" {
		c.ScoringModel = def.ScoringModel
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.APIKey = v
	}
}

// ResolveDataDir returns the configured data dir or the per-user
// default, creating it.
func (c *Config) ResolveDataDir() (string, error) {
	dir := c.DataDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("get user config dir: %w", err)
		}
		dir = filepath.Join(base, appName, "interviews")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appName, configFileName), nil
}
