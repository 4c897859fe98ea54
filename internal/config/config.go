package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "foodstats.yaml"

// DateLayout is the layout of Config.Today.
const DateLayout = "2006-01-02"

// Config holds all foodstats configuration.
type Config struct {
	// Source URL: postgres://, mysql://, sqlite:// or csv://
	Source string `yaml:"source"`

	// Memory copies a SQL source into memory at startup
	Memory bool `yaml:"memory"`

	// Today fixes the processing date (YYYY-MM-DD); empty uses the clock
	Today string `yaml:"today"`

	QueryTimeout string `yaml:"query_timeout"`

	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source:       "csv://data",
		QueryTimeout: "30s",
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a .env file into the environment.
// Variables already set win; a missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies FOODSTATS_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("FOODSTATS_SOURCE"); v != "" {
		c.Source = v
	}
	if v := os.Getenv("FOODSTATS_MEMORY"); v != "" {
		memory, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FOODSTATS_MEMORY %q: %w", v, err)
		}
		c.Memory = memory
	}
	if v := os.Getenv("FOODSTATS_TODAY"); v != "" {
		c.Today = v
	}
	if v := os.Getenv("FOODSTATS_QUERY_TIMEOUT"); v != "" {
		c.QueryTimeout = v
	}
	if v := os.Getenv("FOODSTATS_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("FOODSTATS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FOODSTATS_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate checks the values that are parsed later.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Logging.Format)
	}
	if _, err := c.TodayDate(); err != nil {
		return err
	}
	if _, err := time.ParseDuration(c.QueryTimeout); err != nil {
		return fmt.Errorf("invalid query timeout %q: %w", c.QueryTimeout, err)
	}
	return nil
}

// TodayDate returns the fixed processing date, or the zero time when the
// clock should be used.
func (c *Config) TodayDate() (time.Time, error) {
	if c.Today == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(DateLayout, c.Today, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid today %q (want YYYY-MM-DD): %w", c.Today, err)
	}
	return d, nil
}

// GetQueryTimeout returns the per-request timeout as a duration.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
