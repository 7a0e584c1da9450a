package retry

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the retry budget and backoff curve for an external call.
// MaxAttempts includes the first call; the default of 3 allows two retries.
type Config struct {
	MaxAttempts     int     `toml:"max_attempts"`
	InitialInterval string  `toml:"initial_interval"`
	MaxInterval     string  `toml:"max_interval"`
	Multiplier      float64 `toml:"multiplier"`
	Timeout         string  `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxAttempts     string
	InitialInterval string
	MaxInterval     string
	Multiplier      string
	Timeout         string
}

// InitialIntervalDuration returns InitialInterval as a time.Duration.
func (c *Config) InitialIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.InitialInterval)
	return d
}

// MaxIntervalDuration returns MaxInterval as a time.Duration.
func (c *Config) MaxIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxInterval)
	return d
}

// TimeoutDuration returns the per-attempt Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Budget is the longest a single Do call can spend in attempts, ignoring waits.
func (c *Config) Budget() time.Duration {
	return time.Duration(c.MaxAttempts) * c.TimeoutDuration()
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
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.InitialInterval != "" {
		c.InitialInterval = overlay.InitialInterval
	}
	if overlay.MaxInterval != "" {
		c.MaxInterval = overlay.MaxInterval
	}
	if overlay.Multiplier != 0 {
		c.Multiplier = overlay.Multiplier
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialInterval == "" {
		c.InitialInterval = "500ms"
	}
	if c.MaxInterval == "" {
		c.MaxInterval = "10s"
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.MaxAttempts != "" {
		if v := os.Getenv(env.MaxAttempts); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxAttempts = n
			}
		}
	}
	if env.InitialInterval != "" {
		if v := os.Getenv(env.InitialInterval); v != "" {
			c.InitialInterval = v
		}
	}
	if env.MaxInterval != "" {
		if v := os.Getenv(env.MaxInterval); v != "" {
			c.MaxInterval = v
		}
	}
	if env.Multiplier != "" {
		if v := os.Getenv(env.Multiplier); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.Multiplier = f
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
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1")
	}
	if _, err := time.ParseDuration(c.InitialInterval); err != nil {
		return fmt.Errorf("invalid initial_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.MaxInterval); err != nil {
		return fmt.Errorf("invalid max_interval: %w", err)
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
