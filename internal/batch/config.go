package batch

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config bounds batch execution.
// Concurrency is the default in-flight limit; MaxConcurrency caps any
// limit a caller requests.
type Config struct {
	Concurrency    int    `toml:"concurrency"`
	MaxConcurrency int    `toml:"max_concurrency"`
	Timeout        string `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Concurrency    string
	MaxConcurrency string
	Timeout        string
}

// TimeoutDuration returns Timeout as a time.Duration. Zero means no batch timeout.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.MaxConcurrency != 0 {
		c.MaxConcurrency = overlay.MaxConcurrency
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 5
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = max(20, c.Concurrency)
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Concurrency != "" {
		if v := os.Getenv(env.Concurrency); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Concurrency = n
			}
		}
	}
	if env.MaxConcurrency != "" {
		if v := os.Getenv(env.MaxConcurrency); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxConcurrency = n
			}
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.MaxConcurrency < c.Concurrency {
		return fmt.Errorf("max_concurrency %d is below concurrency %d", c.MaxConcurrency, c.Concurrency)
	}
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("timeout must not be negative")
		}
	}
	return nil
}
