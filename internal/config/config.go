// Package config provides configuration loading and structs for the osusume server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv overrides enrichment.api_key when set, so the key can stay out of the config file.
const APIKeyEnv = "OSUSUME_OMDB_API_KEY"

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Recommend  RecommendConfig  `yaml:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port" validate:"min=1,max=65535"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	RateLimitRequests  int           `yaml:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow    time.Duration `yaml:"rate_limit_window"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
}

// DataConfig holds paths to the persisted catalog and similarity matrix.
type DataConfig struct {
	CatalogPath string `yaml:"catalog_path" validate:"required"`
	MatrixPath  string `yaml:"matrix_path" validate:"required"`
}

// EnrichmentConfig holds settings for the external poster metadata lookup.
type EnrichmentConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	FallbackURL string        `yaml:"fallback_url" validate:"required,url"`
	// MaxInFlight caps outbound lookups across all concurrent requests.
	MaxInFlight int `yaml:"max_in_flight" validate:"gte=1"`
	// BreakerFailures is the number of consecutive failures that opens the circuit.
	BreakerFailures    uint32        `yaml:"breaker_failures" validate:"gte=1"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout"`
}

// RecommendConfig holds ranking and response shaping settings.
type RecommendConfig struct {
	K               int    `yaml:"k" validate:"gte=1"`
	SearchURLPrefix string `yaml:"search_url_prefix" validate:"required,url"`
	// SearchSuffix is appended to the title before URL-encoding into the search link.
	SearchSuffix string `yaml:"search_suffix"`
	SuggestLimit int    `yaml:"suggest_limit" validate:"gte=0"`
}

var validate = validator.New()

// Load reads and parses the config file at path, expands paths, and applies defaults
// and environment overrides. Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.Enrichment.APIKey = key
	}

	configDir := filepath.Dir(path)
	cfg.Data.CatalogPath = expandPath(cfg.Data.CatalogPath, configDir)
	cfg.Data.MatrixPath = expandPath(cfg.Data.MatrixPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints that defaults cannot repair.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var errs []error
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("server.rate_limit_window must be positive when rate limiting is enabled"))
	}
	if c.Enrichment.Timeout <= 0 {
		errs = append(errs, errors.New("enrichment.timeout must be positive"))
	}
	if c.Enrichment.BreakerOpenTimeout <= 0 {
		errs = append(errs, errors.New("enrichment.breaker_open_timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
