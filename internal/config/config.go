package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/rapport/internal/classifier"
	"github.com/JaimeStill/rapport/internal/dispatcher"
	"github.com/JaimeStill/rapport/pkg/database"
	"github.com/JaimeStill/rapport/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvRapportEnv             = "RAPPORT_ENV"
	EnvRapportShutdownTimeout = "RAPPORT_SHUTDOWN_TIMEOUT"
	EnvRapportVersion         = "RAPPORT_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "RAPPORT_DB_HOST",
	Port:            "RAPPORT_DB_PORT",
	Name:            "RAPPORT_DB_NAME",
	User:            "RAPPORT_DB_USER",
	Password:        "RAPPORT_DB_PASSWORD",
	SSLMode:         "RAPPORT_DB_SSL_MODE",
	MaxOpenConns:    "RAPPORT_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "RAPPORT_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "RAPPORT_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "RAPPORT_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "RAPPORT_STORAGE_CONTAINER_NAME",
	ConnectionString: "RAPPORT_STORAGE_CONNECTION_STRING",
}

// Config is the root configuration for the Rapport service and CLI.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	API             APIConfig         `toml:"api"`
	Inference       classifier.Config `toml:"inference"`
	Mail            dispatcher.Config `toml:"mail"`
	Pipeline        PipelineConfig    `toml:"pipeline"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the RAPPORT_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvRapportEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads config.toml from the working directory (if present), applies
// any environment overlay, and finalizes all values. If no config.toml
// exists, defaults and environment variables provide all configuration.
func Load() (*Config, error) {
	return LoadFile(BaseConfigFile)
}

// LoadFile is Load with an explicit base file. The overlay is resolved
// next to it.
func LoadFile(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.finalize(true); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// LoadLocal loads configuration for a standalone pipeline run. The server,
// database, storage, and api sections are left unfinalized.
func LoadLocal(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.finalize(false); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// LoadDatabase loads only the database section, for tools that need a
// connection without the rest of the service configuration.
func LoadDatabase(path string) (*database.Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Database.Finalize(databaseEnv); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return &cfg.Database, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Inference.Merge(&overlay.Inference)
	c.Mail.Merge(&overlay.Mail)
	c.Pipeline.Merge(&overlay.Pipeline)
}

func read(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if overlay := overlayPath(filepath.Dir(path)); overlay != "" {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}

	return cfg, nil
}

func (c *Config) finalize(service bool) error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	if service {
		if err := c.Server.Finalize(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		if err := c.Database.Finalize(databaseEnv); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if err := c.Storage.Finalize(storageEnv); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		if err := c.API.Finalize(); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	if err := FinalizeAgent(&c.Inference.Agent); err != nil {
		return fmt.Errorf("inference agent: %w", err)
	}
	if err := c.Inference.Finalize(inferenceEnv); err != nil {
		return fmt.Errorf("inference: %w", err)
	}
	if err := c.Mail.Finalize(mailEnv); err != nil {
		return fmt.Errorf("mail: %w", err)
	}
	if err := c.Pipeline.Finalize(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvRapportShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvRapportVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(dir string) string {
	if env := os.Getenv(EnvRapportEnv); env != "" {
		path := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
