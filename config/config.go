// Package config holds runtime configuration for the retrieval tool.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvAPIKey is the environment variable holding the Congress.gov API key.
const EnvAPIKey = "CONGRESS_API_KEY"

// Config holds client and output configuration.
type Config struct {
	BaseURL string
	APIKey  string

	// PageSize is capped at 250 by the API.
	PageSize int
	MaxPages int
	Timeout  time.Duration

	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	ResultsDir    string
	OutputFile    string
	OutputFormat  string // csv, json, or dual
	DedupeMaxSize int

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns defaults suited to the Congress.gov rate limits.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://api.congress.gov/v3",
		PageSize:        250,
		MaxPages:        100,
		Timeout:         15 * time.Second,
		MaxRetries:      0,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		ResultsDir:      "results",
		OutputFormat:    "csv",
		DedupeMaxSize:   10000,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.PageSize <= 0 || c.PageSize > 250 {
		return fmt.Errorf("page size must be between 1 and 250")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.ResultsDir == "" {
		return fmt.Errorf("results directory cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	return nil
}

// fileConfig is the YAML overlay shape. Pointer fields distinguish an absent
// key from a zero value; durations are plain integers in the file.
type fileConfig struct {
	BaseURL           *string `yaml:"base_url"`
	PageSize          *int    `yaml:"page_size"`
	MaxPages          *int    `yaml:"max_pages"`
	TimeoutSec        *int    `yaml:"timeout_sec"`
	MaxRetries        *int    `yaml:"max_retries"`
	RetryBackoffMs    *int    `yaml:"retry_backoff_ms"`
	RetryBackoffMaxMs *int    `yaml:"retry_backoff_max_ms"`
	ResultsDir        *string `yaml:"results_dir"`
	OutputFile        *string `yaml:"output_file"`
	OutputFormat      *string `yaml:"output_format"`
	DedupeMaxSize     *int    `yaml:"dedupe_max_size"`
	MetricsAddr       *string `yaml:"metrics_addr"`
	Verbose           *bool   `yaml:"verbose"`
}

// LoadFile overlays values from a YAML config file onto c. Keys absent from
// the file leave the corresponding field untouched.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}

	if fc.BaseURL != nil {
		c.BaseURL = *fc.BaseURL
	}
	if fc.PageSize != nil {
		c.PageSize = *fc.PageSize
	}
	if fc.MaxPages != nil {
		c.MaxPages = *fc.MaxPages
	}
	if fc.TimeoutSec != nil {
		c.Timeout = time.Duration(*fc.TimeoutSec) * time.Second
	}
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	if fc.RetryBackoffMs != nil {
		c.RetryBackoff = time.Duration(*fc.RetryBackoffMs) * time.Millisecond
	}
	if fc.RetryBackoffMaxMs != nil {
		c.RetryBackoffMax = time.Duration(*fc.RetryBackoffMaxMs) * time.Millisecond
	}
	if fc.ResultsDir != nil {
		c.ResultsDir = *fc.ResultsDir
	}
	if fc.OutputFile != nil {
		c.OutputFile = *fc.OutputFile
	}
	if fc.OutputFormat != nil {
		c.OutputFormat = *fc.OutputFormat
	}
	if fc.DedupeMaxSize != nil {
		c.DedupeMaxSize = *fc.DedupeMaxSize
	}
	if fc.MetricsAddr != nil {
		c.MetricsAddr = *fc.MetricsAddr
	}
	if fc.Verbose != nil {
		c.Verbose = *fc.Verbose
	}
	return nil
}

// ResolveAPIKey returns the API key from the explicit argument, a local .env
// file, or the environment, in that order of preference.
func ResolveAPIKey(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if _, err := os.Stat(".env"); err == nil {
		// Existing environment values win over .env entries.
		_ = godotenv.Load()
	}
	return os.Getenv(EnvAPIKey)
}

// EnvString reads a string environment variable, reporting presence.
func EnvString(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	return value, ok
}

// EnvInt reads an integer environment variable, reporting presence.
func EnvInt(name string) (int, bool, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, true, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return parsed, true, nil
}
