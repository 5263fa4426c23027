package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/bytes"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

// Default values for the relay configuration.
const (
	DefaultHTTPPort        = 4000
	DefaultWSPort          = 8080
	DefaultWSPath          = "/"
	DefaultMaxBodySize     = "1M"
	DefaultSendBuffer      = 16
	DefaultReadLimit       = 4096
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the relay configuration. Values come from, in increasing
// precedence: built-in defaults, the YAML file, the process environment.
type Config struct {
	// HTTPPort is the port serving the producer-facing HTTP API (default 4000).
	HTTPPort int `yaml:"http_port" env:"PORT"`

	// WSPort is the port accepting subscriber WebSocket connections (default 8080).
	WSPort int `yaml:"ws_port" env:"WS_PORT"`

	// WSPath is the path the WebSocket endpoint is mounted on. "/" accepts
	// upgrades on any path.
	WSPath string `yaml:"ws_path" env:"WS_PATH"`

	// MaxBodySize limits POST bodies, e.g. "1M" or "512K".
	MaxBodySize string `yaml:"max_body_size" env:"MAX_BODY_SIZE"`

	// SendBuffer is the per-subscriber outgoing frame buffer depth.
	SendBuffer int `yaml:"send_buffer" env:"WS_SEND_BUFFER"`

	// ReadLimit is the largest inbound frame, in bytes, accepted from a subscriber.
	ReadLimit int64 `yaml:"read_limit" env:"WS_READ_LIMIT"`

	// LogLevel is one of: debug | info | warn | error. Reloaded on file change.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// LogFormat is one of: json | text.
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// ShutdownTimeout bounds graceful shutdown of both listeners.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// BodyLimitBytes returns MaxBodySize in bytes. It assumes validate has run.
func (c *Config) BodyLimitBytes() int64 {
	n, _ := bytes.Parse(c.MaxBodySize)
	return n
}

// Load builds the configuration. The YAML file at path is optional: an empty
// path or a missing file leaves the defaults in place. Environment variables
// are applied last.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse yaml: %w", err)
			}
		}
	}

	if err := env.Load(cfg, nil); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// named) without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		HTTPPort:        DefaultHTTPPort,
		WSPort:          DefaultWSPort,
		WSPath:          DefaultWSPath,
		MaxBodySize:     DefaultMaxBodySize,
		SendBuffer:      DefaultSendBuffer,
		ReadLimit:       DefaultReadLimit,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d is out of range [1, 65535]", cfg.HTTPPort)
	}
	if cfg.WSPort <= 0 || cfg.WSPort > 65535 {
		return fmt.Errorf("ws_port %d is out of range [1, 65535]", cfg.WSPort)
	}
	if cfg.HTTPPort == cfg.WSPort {
		return fmt.Errorf("http_port and ws_port must differ (both %d)", cfg.HTTPPort)
	}
	if !strings.HasPrefix(cfg.WSPath, "/") {
		return fmt.Errorf("ws_path %q must start with /", cfg.WSPath)
	}
	if n, err := bytes.Parse(cfg.MaxBodySize); err != nil || n <= 0 {
		return fmt.Errorf("max_body_size %q is not a positive size", cfg.MaxBodySize)
	}
	if cfg.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive")
	}
	if cfg.ReadLimit <= 0 {
		return fmt.Errorf("read_limit must be positive")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q unknown: want debug|info|warn|error", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format %q unknown: want json|text", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}
