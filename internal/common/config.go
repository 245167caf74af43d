package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeline configuration. It is loaded once at
// startup and passed by value into the orchestrator and gateway; no
// component reads configuration mid-run.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Limits     LimitsConfig     `yaml:"limits"`
	Cache      CacheConfig      `yaml:"cache"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Extract    ExtractConfig    `yaml:"extract"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Queue      QueueConfig      `yaml:"queue"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug|info|warn|error
	JSON  bool   `yaml:"json"`
}

// LimitsConfig bounds backend usage across all concurrent runs.
type LimitsConfig struct {
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	UnitsPerMinute    int     `yaml:"units_per_minute"`
	SpendPerHourUSD   float64 `yaml:"spend_per_hour_usd"`
	SpendPerDayUSD    float64 `yaml:"spend_per_day_usd"`
}

type CacheConfig struct {
	Backend    string `yaml:"backend"` // memory|sqlite
	SQLitePath string `yaml:"sqlite_path"`
}

type ProviderConfig struct {
	Name            string  `yaml:"name"` // openai|openrouter|gemini
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	PricePerKInput  float64 `yaml:"price_per_k_input"`
	PricePerKOutput float64 `yaml:"price_per_k_output"`
}

type GatewayConfig struct {
	DefaultProvider string           `yaml:"default_provider"`
	MaxAttempts     int              `yaml:"max_attempts"`
	RequestTimeout  time.Duration    `yaml:"request_timeout"`
	Providers       []ProviderConfig `yaml:"providers"`
}

type ExtractConfig struct {
	Pdftotext       string `yaml:"pdftotext"`
	Pdftoppm        string `yaml:"pdftoppm"`
	Tesseract       string `yaml:"tesseract"`
	TesseractLang   string `yaml:"tesseract_lang"`
	DPI             int    `yaml:"dpi"`
	MaxPages        int    `yaml:"max_pages"`
	MinCharsPerPage int    `yaml:"min_chars_per_page"`
}

type SimilarityConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DatabaseDSN   string `yaml:"database_dsn"`
	EmbedEndpoint string `yaml:"embed_endpoint"`
	EmbedKeyEnv   string `yaml:"embed_key_env"`
	TopK          int    `yaml:"top_k"`
}

type QueueConfig struct {
	Workers    int           `yaml:"workers"`
	Size       int           `yaml:"size"`
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// DefaultConfig returns the built-in defaults. Limit and threshold
// values mirror the operating numbers the service shipped with; they
// are overridable, not derived.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", JSON: true},
		Limits: LimitsConfig{
			RequestsPerMinute: 30,
			UnitsPerMinute:    90000,
			SpendPerHourUSD:   5.0,
			SpendPerDayUSD:    40.0,
		},
		Cache: CacheConfig{Backend: "memory", SQLitePath: "./glassbox-cache.db"},
		Gateway: GatewayConfig{
			DefaultProvider: "openai",
			MaxAttempts:     3,
			RequestTimeout:  60 * time.Second,
			Providers: []ProviderConfig{
				{
					Name:            "openai",
					Model:           "gpt-4o-mini",
					BaseURL:         "https://api.openai.com/v1",
					APIKeyEnv:       "OPENAI_API_KEY",
					PricePerKInput:  0.00015, // USD per 1K input units
					PricePerKOutput: 0.0006,
				},
			},
		},
		Extract: ExtractConfig{
			Pdftotext:       "pdftotext",
			Pdftoppm:        "pdftoppm",
			Tesseract:       "tesseract",
			TesseractLang:   "eng",
			DPI:             300,
			MaxPages:        40,
			MinCharsPerPage: 200,
		},
		Similarity: SimilarityConfig{Enabled: false, TopK: 5},
		Queue:      QueueConfig{Workers: 4, Size: 256, RunTimeout: 5 * time.Minute},
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, and
// environment overrides, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Logging.Level = getEnv("GLASSBOX_LOG_LEVEL", cfg.Logging.Level)
	cfg.Cache.Backend = getEnv("GLASSBOX_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.SQLitePath = getEnv("GLASSBOX_CACHE_SQLITE_PATH", cfg.Cache.SQLitePath)
	cfg.Gateway.DefaultProvider = getEnv("GLASSBOX_PROVIDER", cfg.Gateway.DefaultProvider)
	cfg.Limits.RequestsPerMinute = getEnvAsInt("GLASSBOX_REQUESTS_PER_MINUTE", cfg.Limits.RequestsPerMinute)
	cfg.Limits.UnitsPerMinute = getEnvAsInt("GLASSBOX_UNITS_PER_MINUTE", cfg.Limits.UnitsPerMinute)
	cfg.Limits.SpendPerHourUSD = getEnvAsFloat("GLASSBOX_SPEND_PER_HOUR", cfg.Limits.SpendPerHourUSD)
	cfg.Limits.SpendPerDayUSD = getEnvAsFloat("GLASSBOX_SPEND_PER_DAY", cfg.Limits.SpendPerDayUSD)
	cfg.Similarity.DatabaseDSN = getEnv("GLASSBOX_SIMILARITY_DSN", cfg.Similarity.DatabaseDSN)
	cfg.Queue.RunTimeout = getEnvAsDuration("GLASSBOX_RUN_TIMEOUT", cfg.Queue.RunTimeout)
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Gateway.DefaultProvider == "" {
		return fmt.Errorf("gateway.default_provider is required")
	}
	found := false
	for _, p := range c.Gateway.Providers {
		if p.Name == c.Gateway.DefaultProvider {
			found = true
		}
		if p.Model == "" {
			return fmt.Errorf("provider %q: model is required", p.Name)
		}
	}
	if !found {
		return fmt.Errorf("default provider %q not configured", c.Gateway.DefaultProvider)
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "sqlite" {
		return fmt.Errorf("cache.backend must be memory or sqlite, got %q", c.Cache.Backend)
	}
	if c.Limits.RequestsPerMinute <= 0 || c.Limits.UnitsPerMinute <= 0 {
		return fmt.Errorf("limits must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
