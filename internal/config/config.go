// Package config loads and validates querysync.json.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/querysync-dev/querysync/internal/errors"
)

const (
	// FileName is the name of the configuration file.
	FileName = "querysync.json"

	// DefaultHost is the default listen host.
	DefaultHost = ""

	// DefaultPort is the default listen port.
	DefaultPort = 8080
)

// Config is the complete querysync.json configuration.
type Config struct {
	// Name is the application name, used in logs and metrics labels.
	Name string `json:"name,omitempty"`

	// Server contains listener configuration.
	Server ServerConfig `json:"server,omitempty"`

	// Session contains session persistence configuration.
	Session SessionConfig `json:"session,omitempty"`

	// Debug enables hook order validation and verbose logging.
	Debug bool `json:"debug,omitempty"`
}

// ServerConfig contains listener configuration.
type ServerConfig struct {
	// Host is the listen host. Empty means all interfaces.
	Host string `json:"host,omitempty"`

	// Port is the listen port.
	Port int `json:"port,omitempty"`

	// AllowedOrigins whitelists WebSocket origins. Empty means same-origin.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// SessionConfig contains session persistence configuration.
type SessionConfig struct {
	// Store selects the snapshot backend: "memory" (default) or "s3".
	Store string `json:"store,omitempty"`

	// Bucket is the S3 bucket. Required when Store is "s3".
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the S3 object key prefix.
	Prefix string `json:"prefix,omitempty"`

	// Region is the AWS region for the S3 store.
	Region string `json:"region,omitempty"`

	// ResumeWindow is how long detached sessions stay resumable,
	// as a Go duration string ("5m", "1h"). Default: 5m.
	ResumeWindow string `json:"resume_window,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Session: SessionConfig{
			Store: "memory",
		},
	}
}

// Load reads the configuration from path. A missing file yields the
// defaults; a present file is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.New("E120").WithDetail(err.Error())
	}
	return Parse(data)
}

// Parse decodes and validates raw configuration bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E120").WithDetail(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("E123").
			WithSuggestion("set server.port to a value between 1 and 65535")
	}

	switch c.Session.Store {
	case "", "memory":
	case "s3":
		if c.Session.Bucket == "" {
			return errors.New("E122").
				WithSuggestion("set session.bucket to the S3 bucket holding session snapshots")
		}
	default:
		return errors.New("E121").WithDetail("got " + c.Session.Store)
	}

	if c.Session.ResumeWindow != "" {
		if _, err := time.ParseDuration(c.Session.ResumeWindow); err != nil {
			return errors.New("E120").
				WithDetail("session.resume_window: " + err.Error()).
				WithSuggestion(`use a Go duration string such as "5m" or "1h"`)
		}
	}

	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// ResumeWindow returns the parsed resume window, defaulting to 5 minutes.
func (c *Config) ResumeWindow() time.Duration {
	if c.Session.ResumeWindow == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.Session.ResumeWindow)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}
