// Package config provides configuration loading for the storefront.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultAPIURL = "https://fsd-backend-demo-b17.onrender.com/api"

type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Server  ServerConfig  `yaml:"server"`
	Logger  LoggerConfig  `yaml:"logger"`
	MockAPI MockAPIConfig `yaml:"mock_api"`
}

type APIConfig struct {
	// BaseURL is the REST backend root, including the /api prefix.
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	// Path is the bbolt file holding the persisted session.
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
	Metrics      bool     `yaml:"metrics"`
}

type LoggerConfig struct {
	// Mode is "production" or "development".
	Mode       string `yaml:"mode"`
	Level      string `yaml:"level"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type MockAPIConfig struct {
	Addr string `yaml:"addr"`
	// MongoURL selects the MongoDB store; empty keeps data in memory.
	MongoURL    string `yaml:"mongo_url"`
	Database    string `yaml:"database"`
	JWTSecret   string `yaml:"jwt_secret"`
	CheckoutURL string `yaml:"checkout_url"`
	Seed        bool   `yaml:"seed"`
}

func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{
			Path: defaultSessionPath(),
		},
		Server: ServerConfig{
			Addr:    "127.0.0.1:3000",
			Metrics: true,
		},
		Logger: LoggerConfig{
			Mode:     "development",
			Level:    "info",
			Filename: "storefront.log",
		},
		MockAPI: MockAPIConfig{
			Addr:      "127.0.0.1:8080",
			Database:  "teakspice",
			JWTSecret: "SECRET",
			Seed:      true,
		},
	}
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "storefront-session.db"
	}
	return filepath.Join(home, UserConfigDir, "session.db")
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return errors.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return errors.New("api.timeout cannot be negative")
	}
	if c.Session.Path == "" {
		return errors.New("session.path is required")
	}
	switch c.Logger.Mode {
	case "production", "development":
	default:
		return errors.Errorf("logger.mode must be production or development, got %q", c.Logger.Mode)
	}
	if c.Logger.FileEnable && c.Logger.Filename == "" {
		return errors.New("logger.filename is required when file logging is enabled")
	}
	return nil
}

// LoadFromFile reads path on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.overlayFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile decodes path onto c. Keys the file does not mention keep their
// current value.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	return errors.Wrap(yaml.Unmarshal(data, c), "parse config file")
}

func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write config file")
}

// Merge overlays the non-zero values of other onto c. Boolean switches can
// only be turned on this way.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.API.BaseURL != "" {
		c.API.BaseURL = other.API.BaseURL
	}
	if other.API.Timeout != 0 {
		c.API.Timeout = other.API.Timeout
	}

	if other.Session.Path != "" {
		c.Session.Path = other.Session.Path
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if len(other.Server.AllowOrigins) > 0 {
		c.Server.AllowOrigins = other.Server.AllowOrigins
	}
	c.Server.Metrics = c.Server.Metrics || other.Server.Metrics

	if other.Logger.Mode != "" {
		c.Logger.Mode = other.Logger.Mode
	}
	if other.Logger.Level != "" {
		c.Logger.Level = other.Logger.Level
	}
	if other.Logger.Filename != "" {
		c.Logger.Filename = other.Logger.Filename
	}
	c.Logger.FileEnable = c.Logger.FileEnable || other.Logger.FileEnable

	if other.MockAPI.Addr != "" {
		c.MockAPI.Addr = other.MockAPI.Addr
	}
	if other.MockAPI.MongoURL != "" {
		c.MockAPI.MongoURL = other.MockAPI.MongoURL
	}
	if other.MockAPI.Database != "" {
		c.MockAPI.Database = other.MockAPI.Database
	}
	if other.MockAPI.JWTSecret != "" {
		c.MockAPI.JWTSecret = other.MockAPI.JWTSecret
	}
	if other.MockAPI.CheckoutURL != "" {
		c.MockAPI.CheckoutURL = other.MockAPI.CheckoutURL
	}
	c.MockAPI.Seed = c.MockAPI.Seed || other.MockAPI.Seed
}
