// Package config loads pipeline settings from defaults, an optional YAML
// file and QC_BIKE_PATH_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "QC_BIKE_PATH_"

// Config holds all configuration values.
type Config struct {
	// Source API
	APIBaseURL       string        `yaml:"api_base_url"`
	ResourceID       string        `yaml:"bike_path_resource_id"`
	APITimeout       time.Duration `yaml:"api_timeout"`
	APIRetryAttempts int           `yaml:"api_retry_attempts"`
	BatchSize        int           `yaml:"batch_size"`

	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`
	Collection         string `yaml:"collection"`
	WriteConcurrency   int    `yaml:"write_concurrency"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`

	Environment string `yaml:"environment"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBaseURL:       "https://www.donneesquebec.ca/recherche/api/3/action/datastore_search",
		APITimeout:       30 * time.Second,
		APIRetryAttempts: 3,
		BatchSize:        1000,

		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "quebec",
		SurrealDBDatabase:  "bike_paths",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",
		Collection:         "bike_path",
		WriteConcurrency:   8,

		LogLevel:  "INFO",
		LogFormat: "text",
		LogFile:   "",

		Environment: "development",
	}
}

// Load builds the configuration. An empty path skips the file; a path that
// does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.APIBaseURL = getEnv("API_BASE_URL", c.APIBaseURL)
	c.ResourceID = getEnv("BIKE_PATH_RESOURCE_ID", c.ResourceID)
	c.SurrealDBURL = getEnv("SURREALDB_URL", c.SurrealDBURL)
	c.SurrealDBNamespace = getEnv("SURREALDB_NAMESPACE", c.SurrealDBNamespace)
	c.SurrealDBDatabase = getEnv("SURREALDB_DATABASE", c.SurrealDBDatabase)
	c.SurrealDBUser = getEnv("SURREALDB_USER", c.SurrealDBUser)
	c.SurrealDBPass = getEnv("SURREALDB_PASS", c.SurrealDBPass)
	c.SurrealDBAuthLevel = getEnv("SURREALDB_AUTH_LEVEL", c.SurrealDBAuthLevel)
	c.Collection = getEnv("COLLECTION", c.Collection)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	var errs []error
	if v := getEnv("API_TIMEOUT", ""); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sAPI_TIMEOUT: %w", EnvPrefix, err))
		} else {
			c.APITimeout = d
		}
	}
	for key, dst := range map[string]*int{
		"API_RETRY_ATTEMPTS": &c.APIRetryAttempts,
		"BATCH_SIZE":         &c.BatchSize,
		"WRITE_CONCURRENCY":  &c.WriteConcurrency,
	} {
		v := getEnv(key, "")
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			continue
		}
		*dst = n
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIBaseURL) == "" {
		errs = append(errs, errors.New("api_base_url is required"))
	}
	if strings.TrimSpace(c.SurrealDBURL) == "" {
		errs = append(errs, errors.New("surrealdb_url is required"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.WriteConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("write_concurrency must be positive, got %d", c.WriteConcurrency))
	}
	if c.APIRetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("api_retry_attempts must be positive, got %d", c.APIRetryAttempts))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, fmt.Errorf("api_timeout must be positive, got %s", c.APITimeout))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

// parseDuration accepts Go durations ("45s") and bare seconds ("45").
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
