package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "ASKAI_"

// Config holds all application configuration
type Config struct {
	Completion  CompletionConfig  `json:"completion"`
	Persistence PersistenceConfig `json:"persistence" envPrefix:"PERSISTENCE_"`
	Server      ServerConfig      `json:"server" envPrefix:"SERVER_"`
	Logging     LoggingConfig     `json:"logging" envPrefix:"LOG_"`
}

// CompletionConfig configures the Gemini client
type CompletionConfig struct {
	APIKey         string `json:"api_key" env:"GEMINI_API_KEY"`
	BaseURL        string `json:"base_url" env:"GEMINI_BASE_URL"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"COMPLETION_TIMEOUT_SECONDS"` // per attempt
	MaxAttempts    int    `json:"max_attempts" env:"COMPLETION_MAX_ATTEMPTS"`
}

// PersistenceConfig configures the remote API and the local fallback store.
// An empty APIBaseURL disables the remote.
type PersistenceConfig struct {
	APIBaseURL     string `json:"api_base_url" env:"API_BASE_URL"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	DatabasePath   string `json:"database_path" env:"DATABASE_PATH"`
	Namespace      string `json:"namespace" env:"NAMESPACE"`
}

// ServerConfig controls HTTP server
type ServerConfig struct {
	Port        int    `json:"port" env:"PORT"`
	BindAddress string `json:"bind_address" env:"BIND_ADDRESS"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level      string `json:"level" env:"LEVEL"` // "debug", "info", "warn", "error"
	File       string `json:"file" env:"FILE"`   // empty disables the log file
	MaxSizeMB  int    `json:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `json:"max_backups" env:"MAX_BACKUPS"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Completion: CompletionConfig{
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta",
			TimeoutSeconds: 30,
			MaxAttempts:    3,
		},
		Persistence: PersistenceConfig{
			TimeoutSeconds: 10,
			DatabasePath:   "askai.db",
			Namespace:      "askAI_",
		},
		Server: ServerConfig{
			Port:        8080,
			BindAddress: "127.0.0.1",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "askai.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads configuration from file and environment. A missing file is
// created with the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Fields missing from the file keep their defaults
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if os.IsNotExist(err) {
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) applyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}
	return nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Completion.TimeoutSeconds <= 0 {
		return fmt.Errorf("completion timeout_seconds must be positive, got %d", c.Completion.TimeoutSeconds)
	}
	if c.Completion.MaxAttempts < 1 {
		return fmt.Errorf("completion max_attempts must be at least 1, got %d", c.Completion.MaxAttempts)
	}
	if err := validURL("completion base_url", c.Completion.BaseURL, false); err != nil {
		return err
	}

	if err := validURL("persistence api_base_url", c.Persistence.APIBaseURL, true); err != nil {
		return err
	}
	if c.Persistence.TimeoutSeconds <= 0 {
		return fmt.Errorf("persistence timeout_seconds must be positive, got %d", c.Persistence.TimeoutSeconds)
	}
	if c.Persistence.DatabasePath == "" {
		return fmt.Errorf("persistence database_path is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Port < 1024 && os.Geteuid() != 0 {
		return fmt.Errorf("privileged port %d requires root", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.File != "" && (c.Logging.MaxSizeMB <= 0 || c.Logging.MaxBackups < 0) {
		return fmt.Errorf("log rotation needs max_size_mb > 0 and max_backups >= 0")
	}
	return nil
}

// ListenAddr is the host:port the HTTP server binds to
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

func validURL(name, raw string, optional bool) error {
	if raw == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
	}
	return nil
}
