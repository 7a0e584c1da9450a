package dispatcher

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/rapport/pkg/retry"
)

const (
	ProviderSMTP = "smtp"
	ProviderLog  = "log"
)

// Config holds delivery settings for outbound responses.
type Config struct {
	Provider  string       `toml:"provider"`
	Host      string       `toml:"host"`
	Port      int          `toml:"port"`
	Username  string       `toml:"username"`
	Password  string       `toml:"password"`
	FromEmail string       `toml:"from_email"`
	FromName  string       `toml:"from_name"`
	TLS       bool         `toml:"tls"`
	HTML      bool         `toml:"html"`
	Retry     retry.Config `toml:"retry"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider  string
	Host      string
	Port      string
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Retry     *retry.Env
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	var retryEnv *retry.Env
	if env != nil {
		c.loadEnv(env)
		retryEnv = env.Retry
	}
	if err := c.Retry.Finalize(retryEnv); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.Username != "" {
		c.Username = overlay.Username
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.FromEmail != "" {
		c.FromEmail = overlay.FromEmail
	}
	if overlay.FromName != "" {
		c.FromName = overlay.FromName
	}
	if overlay.TLS {
		c.TLS = true
	}
	if overlay.HTML {
		c.HTML = true
	}
	c.Retry.Merge(&overlay.Retry)
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLog
	}
	if c.Port == 0 {
		c.Port = 587
	}
	if c.FromName == "" {
		c.FromName = "Customer Care"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = v
		}
	}
	if env.Host != "" {
		if v := os.Getenv(env.Host); v != "" {
			c.Host = v
		}
	}
	if env.Port != "" {
		if v := os.Getenv(env.Port); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				c.Port = port
			}
		}
	}
	if env.Username != "" {
		if v := os.Getenv(env.Username); v != "" {
			c.Username = v
		}
	}
	if env.Password != "" {
		if v := os.Getenv(env.Password); v != "" {
			c.Password = v
		}
	}
	if env.FromEmail != "" {
		if v := os.Getenv(env.FromEmail); v != "" {
			c.FromEmail = v
		}
	}
	if env.FromName != "" {
		if v := os.Getenv(env.FromName); v != "" {
			c.FromName = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderLog:
	case ProviderSMTP:
		if c.Host == "" {
			return fmt.Errorf("smtp host required")
		}
		if c.FromEmail == "" {
			return fmt.Errorf("from_email required")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}
