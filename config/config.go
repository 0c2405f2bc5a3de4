// Package config provides YAML configuration parsing for cryptolab.
//
// The CLI and the relay server read one file; everything in it has a default,
// so an empty file (or no file) is a valid configuration.
//
// Example configuration:
//
//	base_url: ${CRYPTOLAB_BASE_URL:-http://localhost:8000}
//	poll_interval: 3s
//	request_timeout: 30s
//
//	session:
//	  backend: redis
//	  redis:
//	    addr: localhost:6379
//	    password: ${REDIS_PASSWORD:-}
//
//	server:
//	  port: 8080
//
//	log:
//	  level: debug
//	  format: json
//
//	sweep:
//	  concurrency: 4
//	  timeframes: [60, 240]
//	  history_window: 120
//
// A .env file next to the configuration file is loaded into the process
// environment before variables are expanded.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// minPollInterval keeps a misconfigured client from hammering the backend.
	minPollInterval = 500 * time.Millisecond

	// maxPollInterval bounds how stale a task snapshot can get.
	maxPollInterval = time.Minute

	defaultBaseURL        = "http://localhost:8000"
	defaultPollInterval   = 3 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultPort           = 8080
	defaultConcurrency    = 4
	defaultTimeframe      = 60
	defaultHistoryWindow  = 120
	minHistoryWindow      = 24
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the root configuration structure.
//
// Use [Load], [Parse] or [Default] to create one; all three apply defaults
// and validate.
type Config struct {
	// BaseURL is the backend address. Defaults to http://localhost:8000.
	// Supports ${VAR} and ${VAR:-default}.
	BaseURL string `yaml:"base_url"`

	// PollInterval is the delay between task status requests. Defaults to 3s.
	PollInterval Duration `yaml:"poll_interval"`

	// RequestTimeout bounds each backend request. Defaults to 30s.
	RequestTimeout Duration `yaml:"request_timeout"`

	Session SessionConfig `yaml:"session"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Sweep   SweepConfig   `yaml:"sweep"`
}

// SessionConfig selects where the access token is kept.
type SessionConfig struct {
	// Backend is memory, file or redis. Defaults to file.
	Backend string `yaml:"backend"`

	// Path is the token file for the file backend. Empty selects the
	// per-user default location.
	Path string `yaml:"path"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis session backend.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Key      string   `yaml:"key"`
	TTL      Duration `yaml:"ttl"`
}

// ServerConfig configures the local relay server.
type ServerConfig struct {
	// Port defaults to 8080.
	Port int `yaml:"port"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Defaults to info.
	Level string `yaml:"level"`

	// Format is text or json. Defaults to text.
	Format string `yaml:"format"`
}

// SweepConfig holds defaults for watchlist score sweeps.
type SweepConfig struct {
	Concurrency   int   `yaml:"concurrency"`
	Timeframes    []int `yaml:"timeframes"`
	HistoryWindow int   `yaml:"history_window"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Variables that are already set win. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads and parses a YAML configuration file.
//
// A .env file in the same directory is loaded first so the YAML can refer to
// its variables.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		// defaults are static and always valid
		panic("config: invalid defaults: " + err.Error())
	}
	return cfg
}

// Parse parses YAML configuration data, applies defaults, expands
// environment variables and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(defaultRequestTimeout)
	}
	if c.Session.Backend == "" {
		c.Session.Backend = BackendFile
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Sweep.Concurrency == 0 {
		c.Sweep.Concurrency = defaultConcurrency
	}
	if len(c.Sweep.Timeframes) == 0 {
		c.Sweep.Timeframes = []int{defaultTimeframe}
	}
	if c.Sweep.HistoryWindow == 0 {
		c.Sweep.HistoryWindow = defaultHistoryWindow
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	expanded, err := expandEnvVars(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	c.BaseURL = strings.TrimRight(expanded, "/")

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("base_url: url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url: url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("base_url: url must have a host")
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.PollInterval.Duration() > maxPollInterval {
		return fmt.Errorf("poll_interval must not exceed %s, got %s", maxPollInterval, c.PollInterval.Duration())
	}
	if c.RequestTimeout.Duration() < 0 {
		return fmt.Errorf("request_timeout cannot be negative, got %s", c.RequestTimeout.Duration())
	}

	if err := c.Session.expandAndValidate(); err != nil {
		return err
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
		c.Log.Format = strings.ToLower(c.Log.Format)
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return c.Sweep.validate()
}

func (s *SessionConfig) expandAndValidate() error {
	s.Backend = strings.ToLower(s.Backend)

	switch s.Backend {
	case BackendMemory:
	case BackendFile:
		expanded, err := expandEnvVars(s.Path)
		if err != nil {
			return fmt.Errorf("session.path: %w", err)
		}
		s.Path = expanded
	case BackendRedis:
		for name, field := range map[string]*string{
			"addr":     &s.Redis.Addr,
			"password": &s.Redis.Password,
			"key":      &s.Redis.Key,
		} {
			expanded, err := expandEnvVars(*field)
			if err != nil {
				return fmt.Errorf("session.redis.%s: %w", name, err)
			}
			*field = expanded
		}
		if s.Redis.Addr == "" {
			return errors.New("session.redis.addr is required for the redis backend")
		}
		if s.Redis.DB < 0 {
			return fmt.Errorf("session.redis.db cannot be negative, got %d", s.Redis.DB)
		}
		if s.Redis.TTL.Duration() < 0 {
			return fmt.Errorf("session.redis.ttl cannot be negative, got %s", s.Redis.TTL.Duration())
		}
	default:
		return fmt.Errorf("session.backend must be memory, file or redis, got %q", s.Backend)
	}
	return nil
}

func (s *SweepConfig) validate() error {
	if s.Concurrency < 1 {
		return fmt.Errorf("sweep.concurrency must be at least 1, got %d", s.Concurrency)
	}
	seen := make(map[int]struct{}, len(s.Timeframes))
	for _, tf := range s.Timeframes {
		if tf <= 0 {
			return fmt.Errorf("sweep.timeframes: timeframe must be positive, got %d", tf)
		}
		if _, dup := seen[tf]; dup {
			return fmt.Errorf("sweep.timeframes: duplicate timeframe %d", tf)
		}
		seen[tf] = struct{}{}
	}
	if s.HistoryWindow < minHistoryWindow {
		return fmt.Errorf("sweep.history_window must be at least %d, got %d", minHistoryWindow, s.HistoryWindow)
	}
	return nil
}
