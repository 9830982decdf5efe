package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/deskindex/internal/httpretry"
)

// Embedding providers.
const (
	ProviderNative = "native"
	ProviderOpenAI = "openai"
)

// Config holds the deskindex service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	IndexStore IndexStoreConfig `yaml:"index_store"`
	AI         AIConfig         `yaml:"ai"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Search     SearchConfig     `yaml:"search"`
	Autotagger AutotaggerConfig `yaml:"autotagger"`
	Events     EventsConfig     `yaml:"events"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the primary datastore connection.
type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"`
}

// IndexStoreConfig holds index store credentials and HNSW parameters.
// Host, port and the enable flag live in runtime settings.
type IndexStoreConfig struct {
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
	HNSWM            int    `yaml:"hnsw_m"`
	HNSWEFConstruct  int    `yaml:"hnsw_ef_construction"`
}

// AIConfig holds AI service client settings.
type AIConfig struct {
	TimeoutSec int         `yaml:"timeout_sec"`
	Retry      RetryConfig `yaml:"retry"`
}

// RetryConfig mirrors httpretry.Policy.
type RetryConfig struct {
	MaxRetries      int     `yaml:"max_retries"`
	InitialDelayMs  int     `yaml:"initial_delay_ms"`
	ExponentialBase float64 `yaml:"exponential_base"`
	DisableJitter   bool    `yaml:"disable_jitter"`
	RetryOn         []int   `yaml:"retry_on"`
}

// Policy converts the retry settings.
func (r RetryConfig) Policy() httpretry.Policy {
	return httpretry.Policy{
		MaxRetries:      r.MaxRetries,
		InitialDelay:    time.Duration(r.InitialDelayMs) * time.Millisecond,
		ExponentialBase: r.ExponentialBase,
		DisableJitter:   r.DisableJitter,
		RetryOn:         r.RetryOn,
	}
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string       `yaml:"provider"` // native (AI service) | openai
	OpenAI   OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds OpenAI-compatible provider settings.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// SearchConfig holds source sync settings.
type SearchConfig struct {
	SyncBatchSize int `yaml:"sync_batch_size"`
}

// AutotaggerConfig holds background tagging settings.
type AutotaggerConfig struct {
	IntervalSec int `yaml:"interval_sec"`
	BatchSize   int `yaml:"batch_size"`
}

// EventsConfig holds the optional NATS bridge.
type EventsConfig struct {
	NatsURL       string `yaml:"nats_url"` // empty disables the bridge
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, docker, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.IndexStore.ReadinessTimeout <= 0 {
		c.IndexStore.ReadinessTimeout = 10
	}
	if c.IndexStore.HNSWM <= 0 {
		c.IndexStore.HNSWM = 16
	}
	if c.IndexStore.HNSWEFConstruct <= 0 {
		c.IndexStore.HNSWEFConstruct = 200
	}
	if c.AI.TimeoutSec <= 0 {
		c.AI.TimeoutSec = 30
	}
	if c.AI.Retry.MaxRetries <= 0 {
		c.AI.Retry.MaxRetries = httpretry.DefaultMaxRetries
	}
	if c.AI.Retry.InitialDelayMs <= 0 {
		c.AI.Retry.InitialDelayMs = int(httpretry.DefaultInitialDelay / time.Millisecond)
	}
	if c.AI.Retry.ExponentialBase <= 0 {
		c.AI.Retry.ExponentialBase = httpretry.DefaultExponentialBase
	}
	if len(c.AI.Retry.RetryOn) == 0 {
		c.AI.Retry.RetryOn = append([]int(nil), httpretry.DefaultRetryOn...)
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderNative
	}
	if c.Search.SyncBatchSize <= 0 {
		c.Search.SyncBatchSize = 10
	}
	if c.Autotagger.IntervalSec <= 0 {
		c.Autotagger.IntervalSec = 300
	}
	if c.Autotagger.BatchSize <= 0 {
		c.Autotagger.BatchSize = 50
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	switch c.Embedding.Provider {
	case ProviderNative:
	case ProviderOpenAI:
		if c.Embedding.OpenAI.APIKey == "" {
			return fmt.Errorf("embedding.openai.api_key is required for provider %q", ProviderOpenAI)
		}
		if c.Embedding.OpenAI.Model == "" {
			return fmt.Errorf("embedding.openai.model is required for provider %q", ProviderOpenAI)
		}
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q",
			ProviderNative, ProviderOpenAI, c.Embedding.Provider)
	}
	if c.AI.Retry.ExponentialBase < 1 {
		return fmt.Errorf("ai.retry.exponential_base must be >= 1, got %g", c.AI.Retry.ExponentialBase)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
