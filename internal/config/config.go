// Package config holds all companion configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all companion configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Server       ServerConfig       `yaml:"server"`
	LLM          LLMConfig          `yaml:"llm"`
	Storage      StorageConfig      `yaml:"storage"`
	Chat         ChatConfig         `yaml:"chat"`
	Relationship RelationshipConfig `yaml:"relationship"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	Timeout         string  `yaml:"timeout"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// StorageConfig configures the durable character store.
type StorageConfig struct {
	Driver     string `yaml:"driver"` // file, sqlite, redis
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
	Namespace  string `yaml:"namespace"`
	WatchFiles bool   `yaml:"watch_files"` // invalidate file-store cache on external edits
}

// ChatConfig configures conversation orchestration.
type ChatConfig struct {
	HistoryWindow  int    `yaml:"history_window"`  // entries kept in the assembled prompt
	HistoryLimit   int    `yaml:"history_limit"`   // entries retained in the persisted log
	StreamPacing   string `yaml:"stream_pacing"`   // delay between forwarded chunks
	RequestTimeout string `yaml:"request_timeout"` // overall per-turn timeout
}

// RelationshipConfig configures the progression engine.
type RelationshipConfig struct {
	// CountFailedResponses records a conversation even when the gateway returned
	// its terminal failure text instead of a model response.
	CountFailedResponses bool `yaml:"count_failed_responses"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "companion",
		Version: "1.0.0",

		Server: ServerConfig{
			Addr:            ":8000",
			ShutdownTimeout: "10s",
		},

		LLM: LLMConfig{
			Model:           "gemini-2.5-flash",
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Timeout:         "120s",
			Temperature:     0.7,
			MaxOutputTokens: 3000,
		},

		Storage: StorageConfig{
			Driver:     "file",
			DataDir:    "data/characters",
			SQLitePath: "data/companion.db",
			RedisAddr:  "localhost:6379",
			Namespace:  "companion",
			WatchFiles: false,
		},

		Chat: ChatConfig{
			HistoryWindow:  15,
			HistoryLimit:   200,
			StreamPacing:   "10ms",
			RequestTimeout: "180s",
		},

		Relationship: RelationshipConfig{
			CountFailedResponses: false,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when the
// file does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
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

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (set GEMINI_API_KEY)")
	}
	switch c.Storage.Driver {
	case "file", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if addr := os.Getenv("COMPANION_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if dir := os.Getenv("COMPANION_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
	if driver := os.Getenv("COMPANION_STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if addr := os.Getenv("COMPANION_REDIS_ADDR"); addr != "" {
		c.Storage.RedisAddr = addr
	}
}

// GetLLMTimeout returns the provider timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetShutdownTimeout returns the HTTP shutdown timeout as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// GetStreamPacing returns the inter-chunk pacing delay as a duration.
func (c *Config) GetStreamPacing() time.Duration {
	return parseDuration(c.Chat.StreamPacing, 10*time.Millisecond)
}

// GetRequestTimeout returns the per-turn timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration(c.Chat.RequestTimeout, 180*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
