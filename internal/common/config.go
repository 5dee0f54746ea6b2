package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	ProfileRoot string          `toml:"profile_root" validate:"required"`
	Storage     StorageConfig   `toml:"storage"`
	Pool        PoolConfig      `toml:"pool"`
	Scraper     ScraperConfig   `toml:"scraper"`
	Processor   ProcessorConfig `toml:"processor"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Logging     LoggingConfig   `toml:"logging"`
}

// StorageConfig controls the per-profile Badger store
type StorageConfig struct {
	SyncWrites bool `toml:"sync_writes"` // fsync every write (slower, safer)
}

// PoolConfig controls the browser pool
type PoolConfig struct {
	Size           int           `toml:"size" validate:"min=1,max=8"` // bounded pool; oversubscription blocks acquirers
	Headless       bool          `toml:"headless"`
	UserAgent      string        `toml:"user_agent"`
	AcquireTimeout time.Duration `toml:"acquire_timeout"` // max wait for a free context
	PageTimeout    time.Duration `toml:"page_timeout"`    // per-navigation budget
	JSWaitTime     time.Duration `toml:"js_wait_time"`    // settle time after navigation for JS rendering
	Prewarm        bool          `toml:"prewarm"`         // navigate neutral sites before first use
	PrewarmURLs    []string      `toml:"prewarm_urls"`
}

// ScraperConfig controls the fan-out crawler
type ScraperConfig struct {
	MaxPagesPerKeyword   int           `toml:"max_pages_per_keyword" validate:"min=1"`
	MaxJobsPerKeyword    int           `toml:"max_jobs_per_keyword" validate:"min=1"`
	DaysPostedWindow     int           `toml:"days_posted_window"`
	MaxConcurrentWorkers int           `toml:"max_concurrent_workers" validate:"min=1"`
	PageDelayMin         time.Duration `toml:"page_delay_min"` // floor of the jittered inter-page delay
	PageDelayMax         time.Duration `toml:"page_delay_max"` // ceiling of the jittered inter-page delay
	RetryAttempts        int           `toml:"retry_attempts"`
	ClickBudget          time.Duration `toml:"click_budget"`   // per-click resolution budget
	MonsterWarmup        bool          `toml:"monster_warmup"` // extra warm-up navigation for Monster, off by default
}

// ProcessorConfig controls the two-stage pipeline
type ProcessorConfig struct {
	CPUWorkers      int     `toml:"cpu_workers" validate:"min=1"`
	Stage2Workers   int     `toml:"stage2_workers" validate:"min=1"`
	MaxRecords      int     `toml:"max_records"`
	Stage1Threshold float64 `toml:"stage1_threshold" validate:"min=0,max=1"`
	Stage1Weight    float64 `toml:"stage1_weight"`
	Stage2Weight    float64 `toml:"stage2_weight"`
	Analyzer        string  `toml:"analyzer" validate:"oneof=heuristic llm embedding"`
}

// GeminiConfig contains Google Gemini API settings
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	EmbeddingModel string  `toml:"embedding_model"`
	Temperature    float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API settings
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

// LLMConfig selects the default provider when a model string carries no prefix
type LLMConfig struct {
	DefaultProvider string `toml:"default_provider"` // "gemini" or "claude"
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // time format for log lines
}

// NewDefaultConfig returns the built-in defaults. File and environment
// overrides are layered on top by LoadFromFiles.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		ProfileRoot: "./profiles",
		Storage: StorageConfig{
			SyncWrites: false,
		},
		Pool: PoolConfig{
			Size:           2,
			Headless:       true,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			AcquireTimeout: 60 * time.Second,
			PageTimeout:    30 * time.Second,
			JSWaitTime:     3 * time.Second,
			Prewarm:        false,
			PrewarmURLs:    []string{"https://www.wikipedia.org", "https://www.bing.com"},
		},
		Scraper: ScraperConfig{
			MaxPagesPerKeyword:   3,
			MaxJobsPerKeyword:    50,
			DaysPostedWindow:     14,
			MaxConcurrentWorkers: 2,
			PageDelayMin:         500 * time.Millisecond,
			PageDelayMax:         2 * time.Second,
			RetryAttempts:        3,
			ClickBudget:          5 * time.Second,
			MonsterWarmup:        false,
		},
		Processor: ProcessorConfig{
			CPUWorkers:      4,
			Stage2Workers:   2,
			MaxRecords:      0, // unlimited
			Stage1Threshold: 0.5,
			Stage1Weight:    0.4,
			Stage2Weight:    0.6,
			Analyzer:        "heuristic",
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "gemini-embedding-001",
			Temperature:    0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Temperature: 0.2,
			Timeout:     "60s",
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFiles loads configuration with layered precedence:
// defaults -> file1 -> file2 -> ... -> environment.
// Later files override earlier ones; missing files are an error.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides layers environment variables over the loaded config.
// VENATOR_PROFILE_ROOT is the single required environment input; the API
// keys follow the providers' conventional variable names.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("VENATOR_PROFILE_ROOT"); v != "" {
		config.ProfileRoot = v
	}
	if v := os.Getenv("VENATOR_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("VENATOR_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Pool.Headless = b
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
}

// ValidateConfig checks structural constraints on the configuration.
func ValidateConfig(config *Config) error {
	v := validator.New()
	if err := v.Struct(config); err != nil {
		return Ef(KindInvalid, "config.validate", "invalid configuration: %v", err)
	}
	if config.Scraper.PageDelayMax < config.Scraper.PageDelayMin {
		return Ef(KindInvalid, "config.validate", "page_delay_max %s below page_delay_min %s",
			config.Scraper.PageDelayMax, config.Scraper.PageDelayMin)
	}
	if config.Processor.Stage1Weight+config.Processor.Stage2Weight <= 0 {
		return Ef(KindInvalid, "config.validate", "stage score weights must sum above zero")
	}
	return nil
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
