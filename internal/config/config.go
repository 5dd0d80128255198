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
)

// Config holds the trialmatch API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Quota      QuotaConfig      `yaml:"quota"`
	Match      MatchConfig      `yaml:"match"`
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

// CorpusConfig holds the trial corpus source settings.
type CorpusConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	DocInstruction   string `yaml:"document_instruction"`
}

// ClassifierConfig holds eligibility classifier settings.
type ClassifierConfig struct {
	Provider    string  `yaml:"provider"` // openai, gemini, demo
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	Concurrency int     `yaml:"concurrency"`
}

// QuotaConfig holds the rate governor settings.
type QuotaConfig struct {
	Limit     int64    `yaml:"limit"`
	WindowSec int      `yaml:"window_sec"`
	Store     string   `yaml:"store"` // memory, redis
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
}

// Window returns the quota window as a duration.
func (q QuotaConfig) Window() time.Duration {
	return time.Duration(q.WindowSec) * time.Second
}

// MatchConfig holds retrieval settings.
type MatchConfig struct {
	TopK     int      `yaml:"top_k"`
	MinScore *float64 `yaml:"min_score"` // nil picks the default cutoff
}

// MaxTopK caps the candidate count regardless of configuration.
const MaxTopK = 25

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
		// Classification fan-out can take most of a minute on a cold provider.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Corpus.Path == "" {
		c.Corpus.Path = "data/trials.json"
	}
	if c.Classifier.Provider == "" {
		c.Classifier.Provider = "demo"
	}
	if c.Classifier.TimeoutSec <= 0 {
		c.Classifier.TimeoutSec = 30
	}
	if c.Quota.Limit <= 0 {
		c.Quota.Limit = 10
	}
	if c.Quota.WindowSec <= 0 {
		c.Quota.WindowSec = 3600
	}
	if c.Quota.Store == "" {
		c.Quota.Store = "memory"
	}
	if c.Match.TopK <= 0 {
		c.Match.TopK = 5
	}
	if c.Match.MinScore == nil {
		minScore := -0.5
		c.Match.MinScore = &minScore
	}
	if c.Classifier.Concurrency <= 0 {
		c.Classifier.Concurrency = c.Match.TopK
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Match.TopK > MaxTopK {
		return fmt.Errorf("match.top_k must not exceed %d, got %d", MaxTopK, c.Match.TopK)
	}
	if c.Match.MinScore != nil {
		if s := *c.Match.MinScore; s < -1 || s > 1 {
			return fmt.Errorf("match.min_score must be within [-1, 1], got %g", s)
		}
	}
	switch c.Classifier.Provider {
	case "openai", "gemini", "demo":
	default:
		return fmt.Errorf(
			"classifier.provider must be \"openai\", \"gemini\" or \"demo\", got %q",
			c.Classifier.Provider,
		)
	}
	if c.Classifier.Provider != "demo" && c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier.api_key is required for provider %q", c.Classifier.Provider)
	}
	switch c.Quota.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("quota.store must be \"memory\" or \"redis\", got %q", c.Quota.Store)
	}
	if c.Quota.Store == "redis" && len(c.Quota.Addrs) == 0 {
		return fmt.Errorf("quota.addrs is required for the redis store")
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
