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

	"github.com/velora/visearch/internal/domain"
)

// Extractor drivers.
const (
	DriverFeatureAPI = "featureapi"
	DriverSubprocess = "subprocess"
	DriverOpenAI     = "openai"
)

// Config holds the visearch API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Matching  MatchingConfig  `yaml:"matching"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Cache     CacheConfig     `yaml:"cache"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port               int      `yaml:"port"`
	ReadTimeoutSec     int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec    int      `yaml:"write_timeout_sec"`
	ShutdownSec        int      `yaml:"shutdown_timeout_sec"`
	MaxUploadMB        int      `yaml:"max_upload_mb"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// CatalogConfig points at the static catalog file (.json, .yaml or .yml).
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// MatchingConfig holds ranking defaults.
type MatchingConfig struct {
	Threshold *float64 `yaml:"threshold"` // pointer: 0 is a valid threshold
	TopK      int      `yaml:"top_k"`
}

// ExtractorConfig selects and configures the feature extraction collaborator.
type ExtractorConfig struct {
	Driver      string `yaml:"driver"` // featureapi, subprocess, openai (default: featureapi)
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	Python      string `yaml:"python"`
	Script      string `yaml:"script"`
	MaxAttempts int    `yaml:"max_attempts"`  // 1 = no retries
	RetryBaseMs int    `yaml:"retry_base_ms"` // first backoff step
}

// CacheConfig holds the optional Valkey/Redis feature cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// UploadsConfig holds temporary upload storage settings.
type UploadsConfig struct {
	Dir string `yaml:"dir"` // empty: OS temp dir
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references, then applies
// defaults and validates.
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
	defaults := domain.DefaultMatchConfig()

	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 10
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "data/catalog.json"
	}
	if c.Matching.Threshold == nil {
		t := defaults.Threshold
		c.Matching.Threshold = &t
	}
	if c.Matching.TopK <= 0 {
		c.Matching.TopK = defaults.TopK
	}
	if c.Extractor.Driver == "" {
		c.Extractor.Driver = DriverFeatureAPI
	}
	if c.Extractor.Driver == DriverFeatureAPI && c.Extractor.BaseURL == "" {
		c.Extractor.BaseURL = "http://localhost:5001"
	}
	if c.Extractor.TimeoutSec <= 0 {
		c.Extractor.TimeoutSec = int(defaults.ExtractTimeout / time.Second)
	}
	if c.Extractor.Python == "" {
		c.Extractor.Python = "python3"
	}
	if c.Extractor.MaxAttempts <= 0 {
		c.Extractor.MaxAttempts = 1
	}
	if c.Extractor.RetryBaseMs <= 0 {
		c.Extractor.RetryBaseMs = 200
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "valkey"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 24 * 60 * 60
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if t := c.Matching.Threshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("matching.threshold must be within [0, 1], got %v", *t)
	}
	if c.Matching.TopK < 0 {
		return fmt.Errorf("matching.top_k must be positive, got %d", c.Matching.TopK)
	}

	switch c.Extractor.Driver {
	case DriverFeatureAPI:
		if c.Extractor.BaseURL == "" {
			return fmt.Errorf("extractor.base_url is required for driver %q", c.Extractor.Driver)
		}
	case DriverOpenAI:
		if c.Extractor.BaseURL == "" || c.Extractor.Model == "" {
			return fmt.Errorf("extractor.base_url and extractor.model are required for driver %q", c.Extractor.Driver)
		}
	case DriverSubprocess:
		if c.Extractor.Script == "" {
			return fmt.Errorf("extractor.script is required for driver %q", c.Extractor.Driver)
		}
	default:
		return fmt.Errorf(
			"extractor.driver must be %q, %q or %q, got %q",
			DriverFeatureAPI, DriverSubprocess, DriverOpenAI, c.Extractor.Driver,
		)
	}

	if c.Cache.Enabled {
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required when cache is enabled")
		}
		switch c.Cache.Driver {
		case "", "valkey", "redis":
			// ok
		default:
			return fmt.Errorf("cache.driver must be \"valkey\" or \"redis\", got %q", c.Cache.Driver)
		}
	}
	return nil
}

// Match returns the ranking defaults derived from the config.
func (c *Config) Match() domain.MatchConfig {
	mc := domain.DefaultMatchConfig()
	if c.Matching.Threshold != nil {
		mc.Threshold = *c.Matching.Threshold
	}
	if c.Matching.TopK > 0 {
		mc.TopK = c.Matching.TopK
	}
	if c.Extractor.TimeoutSec > 0 {
		mc.ExtractTimeout = time.Duration(c.Extractor.TimeoutSec) * time.Second
	}
	return mc
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.HTTP.MaxUploadMB) << 20
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
