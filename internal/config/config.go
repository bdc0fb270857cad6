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

	"github.com/kailas-cloud/syllabus/internal/domain/search/fusion"
)

// Credential modes of the database connection.
const (
	CredentialService    = "service"
	CredentialRestricted = "restricted"
)

// EnvProd is the environment that refuses restricted credentials.
const EnvProd = "prod"

// Config holds the syllabus API configuration.
type Config struct {
	// Env is the environment the file was loaded for.
	Env          string             `yaml:"-"`
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Chat         ChatConfig         `yaml:"chat"`
	Search       SearchConfig       `yaml:"search"`
	SearchLog    SearchLogConfig    `yaml:"search_log"`
	Conversation ConversationConfig `yaml:"conversation"`
	Auth         AuthConfig         `yaml:"auth"`
	Logging      LoggingConfig      `yaml:"logging"`
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

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	// CredentialMode is "service" (full access) or "restricted" (read-only).
	CredentialMode   string `yaml:"credential_mode"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
	KeyPrefix        string `yaml:"key_prefix"`
}

// Restricted reports whether the configured credentials are read-only.
func (d DatabaseConfig) Restricted() bool { return d.CredentialMode == CredentialRestricted }

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider             string  `yaml:"provider"`
	BaseURL              string  `yaml:"base_url"`
	APIKey               string  `yaml:"api_key"`
	Model                string  `yaml:"model"`
	Dimensions           int     `yaml:"dimensions"`
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"`
	TimeoutSec           int     `yaml:"timeout_sec"`
	// MaxRetries nil selects 2; 0 disables retries.
	MaxRetries   *int `yaml:"max_retries"`
	BaseDelayMs  int  `yaml:"base_delay_ms"`
	DisableCache bool `yaml:"disable_cache"`
	// CacheTTLSec expires cached vectors; 0 keeps them until evicted.
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// ChatConfig holds the chat model settings. Empty base_url and api_key reuse the embedding provider's.
type ChatConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// Enabled reports whether chat is configured.
func (c ChatConfig) Enabled() bool { return c.Model != "" }

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	DensePool       int           `yaml:"dense_pool"`
	KeyPool         int           `yaml:"key_pool"`
	Weights         WeightsConfig `yaml:"weights"`
	EmbedTimeoutSec int           `yaml:"embed_timeout_sec"`
	TimeoutSec      int           `yaml:"timeout_sec"`
	// AllowFallback nil selects true.
	AllowFallback *bool `yaml:"allow_fallback"`
}

// FallbackAllowed reports whether /search may degrade to lexical by default.
func (s SearchConfig) FallbackAllowed() bool {
	return s.AllowFallback == nil || *s.AllowFallback
}

// WeightsConfig holds the default fusion weights.
type WeightsConfig struct {
	Sem float64 `yaml:"sem"`
	Key float64 `yaml:"key"`
	K   int     `yaml:"k"`
}

// Fusion converts the weights for the fusion package.
func (w WeightsConfig) Fusion() fusion.Weights {
	return fusion.Weights{Sem: w.Sem, Key: w.Key, K: w.K}
}

// SearchLogConfig holds search log sink settings.
type SearchLogConfig struct {
	Enabled   bool  `yaml:"enabled"`
	Workers   int   `yaml:"workers"`
	MaxLen    int64 `yaml:"max_len"`
	TimeoutMs int   `yaml:"timeout_ms"`
}

// ConversationConfig holds chat history settings.
type ConversationConfig struct {
	TTLSec   int `yaml:"ttl_sec"`
	MaxTurns int `yaml:"max_turns"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(env, data)
}

// Parse decodes, defaults and validates configuration for env.
func Parse(env string, data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Env = env

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
	if c.Database.CredentialMode == "" {
		c.Database.CredentialMode = CredentialService
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "syllabus:"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.MaxRetries == nil {
		n := 2
		c.Embedding.MaxRetries = &n
	}
	if c.Embedding.BaseDelayMs <= 0 {
		c.Embedding.BaseDelayMs = 200
	}
	if c.Chat.BaseURL == "" {
		c.Chat.BaseURL = c.Embedding.BaseURL
	}
	if c.Chat.APIKey == "" {
		c.Chat.APIKey = c.Embedding.APIKey
	}
	if c.Chat.TimeoutSec <= 0 {
		c.Chat.TimeoutSec = 60
	}
	if c.Chat.Temperature == 0 {
		c.Chat.Temperature = 0.3
	}
	if c.Search.DensePool <= 0 {
		c.Search.DensePool = 50
	}
	if c.Search.KeyPool <= 0 {
		c.Search.KeyPool = 50
	}
	if c.Search.Weights == (WeightsConfig{}) {
		c.Search.Weights = WeightsConfig{Sem: fusion.DefaultSemWeight, Key: fusion.DefaultKeyWeight, K: fusion.DefaultK}
	}
	if c.Search.EmbedTimeoutSec <= 0 {
		c.Search.EmbedTimeoutSec = 12
	}
	if c.Search.TimeoutSec <= 0 {
		c.Search.TimeoutSec = 8
	}
	if c.SearchLog.Workers <= 0 {
		c.SearchLog.Workers = 4
	}
	if c.SearchLog.MaxLen <= 0 {
		c.SearchLog.MaxLen = 100_000
	}
	if c.SearchLog.TimeoutMs <= 0 {
		c.SearchLog.TimeoutMs = 2000
	}
	if c.Conversation.TTLSec <= 0 {
		c.Conversation.TTLSec = 86400
	}
	if c.Conversation.MaxTurns <= 0 {
		c.Conversation.MaxTurns = 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Database.CredentialMode {
	case CredentialService, CredentialRestricted:
	default:
		return fmt.Errorf("database.credential_mode must be %q or %q, got %q",
			CredentialService, CredentialRestricted, c.Database.CredentialMode)
	}
	if c.Env == EnvProd && c.Database.Restricted() {
		return fmt.Errorf("database.credential_mode %q is not allowed in %s", CredentialRestricted, EnvProd)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if *c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("embedding.max_retries must be non-negative, got %d", *c.Embedding.MaxRetries)
	}
	if c.Embedding.CacheTTLSec < 0 {
		return fmt.Errorf("embedding.cache_ttl_sec must be non-negative, got %d", c.Embedding.CacheTTLSec)
	}
	if c.Embedding.CostPerMillionTokens < 0 {
		return fmt.Errorf("embedding.cost_per_million_tokens must be non-negative")
	}
	if err := c.Search.Weights.Fusion().Validate(); err != nil {
		return fmt.Errorf("search.weights: %w", err)
	}
	return nil
}

// Sec converts whole seconds from config to a duration.
func Sec(n int) time.Duration { return time.Duration(n) * time.Second }

// Ms converts milliseconds from config to a duration.
func Ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

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
