package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const (
	ProjectConfigFile = "storefront.yaml"
	UserConfigDir     = ".config/teakspice"
	UserConfigFile    = "config.yaml"
)

// Environment overrides, applied last.
const (
	EnvAPIURL      = "STOREFRONT_API_URL"
	EnvAPITimeout  = "STOREFRONT_API_TIMEOUT"
	EnvSessionPath = "STOREFRONT_SESSION_PATH"
	EnvJWTSecret   = "STOREFRONT_JWT_SECRET"
	EnvMongoPublic = "MONGO_PUBLIC_URL"
	EnvMongo       = "MONGO_URL"
)

// Loader layers configuration: defaults, then the user file, then the project
// file (or an explicit path), then the environment.
type Loader struct {
	log      *zap.Logger
	explicit string
	lookup   func(string) (string, bool)
}

func NewLoader(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.L()
	}
	return &Loader{log: log, lookup: os.LookupEnv}
}

// WithFile replaces the project file search with path.
func (l *Loader) WithFile(path string) *Loader {
	l.explicit = path
	return l
}

// WithEnv replaces the environment lookup.
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	l.lookup = lookup
	return l
}

func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if p := l.userConfigPath(); p != "" {
		if err := cfg.overlayFile(p); err == nil {
			l.log.Debug("loaded user config", zap.String("path", p))
		} else if !errors.Is(err, os.ErrNotExist) {
			l.log.Warn("failed to load user config", zap.String("path", p), zap.Error(err))
		}
	}

	if l.explicit != "" {
		if err := cfg.overlayFile(l.explicit); err != nil {
			return nil, err
		}
	} else if p := findProjectConfig(); p != "" {
		if err := cfg.overlayFile(p); err == nil {
			l.log.Debug("loaded project config", zap.String("path", p))
		} else {
			l.log.Warn("failed to load project config", zap.String("path", p), zap.Error(err))
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	if v, ok := l.lookup(EnvAPIURL); ok && v != "" {
		cfg.API.BaseURL = v
	}
	if v, ok := l.lookup(EnvAPITimeout); ok && v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return err
		}
		cfg.API.Timeout = d
	}
	if v, ok := l.lookup(EnvSessionPath); ok && v != "" {
		cfg.Session.Path = v
	}
	if v, ok := l.lookup(EnvJWTSecret); ok && v != "" {
		cfg.MockAPI.JWTSecret = v
	}
	if v, ok := l.lookup(EnvMongoPublic); ok && v != "" {
		cfg.MockAPI.MongoURL = v
	} else if v, ok := l.lookup(EnvMongo); ok && v != "" {
		cfg.MockAPI.MongoURL = v
	}
	return nil
}

// EnsureUserConfig writes the defaults to the user config file when absent.
func (l *Loader) EnsureUserConfig() error {
	p := l.userConfigPath()
	if p == "" {
		return nil
	}
	if _, err := os.Stat(p); err == nil {
		return nil
	}
	if err := DefaultConfig().SaveToFile(p); err != nil {
		return err
	}
	l.log.Info("created default user config", zap.String("path", p))
	return nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches the working directory and its parents.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		p := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
