package classifier

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/rapport/pkg/retry"
)

const (
	ProviderAgent  = "agent"
	ProviderGemini = "gemini"
)

// DefaultTaxonomy is the category set offered to the model when none is configured.
var DefaultTaxonomy = []string{
	"quality", "service", "pricing", "delivery", "usability",
	"communication", "performance", "support", "experience", "other",
}

// Config selects the inference provider and bounds how it is called.
// Agent is finalized by the owning configuration because its defaults come
// from go-agents.
type Config struct {
	Provider          string               `toml:"provider"`
	Taxonomy          []string             `toml:"taxonomy"`
	RequestsPerSecond float64              `toml:"requests_per_second"`
	Burst             int                  `toml:"burst"`
	Retry             retry.Config         `toml:"retry"`
	Gemini            GeminiConfig         `toml:"gemini"`
	Agent             gaconfig.AgentConfig `toml:"agent"`
}

// GeminiConfig holds Google Gemini connection parameters.
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider          string
	Taxonomy          string
	RequestsPerSecond string
	Burst             string
	GeminiAPIKey      string
	GeminiModel       string
	Retry             *retry.Env
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
	if overlay.Taxonomy != nil {
		c.Taxonomy = overlay.Taxonomy
	}
	if overlay.RequestsPerSecond != 0 {
		c.RequestsPerSecond = overlay.RequestsPerSecond
	}
	if overlay.Burst != 0 {
		c.Burst = overlay.Burst
	}
	if overlay.Gemini.APIKey != "" {
		c.Gemini.APIKey = overlay.Gemini.APIKey
	}
	if overlay.Gemini.Model != "" {
		c.Gemini.Model = overlay.Gemini.Model
	}
	if overlay.Gemini.Temperature != 0 {
		c.Gemini.Temperature = overlay.Gemini.Temperature
	}
	c.Retry.Merge(&overlay.Retry)
	c.Agent.Merge(&overlay.Agent)
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderAgent
	}
	if len(c.Taxonomy) == 0 {
		c.Taxonomy = DefaultTaxonomy
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-1.5-flash"
	}
	if c.Gemini.Temperature == 0 {
		c.Gemini.Temperature = 0.1
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = v
		}
	}
	if env.Taxonomy != "" {
		if v := os.Getenv(env.Taxonomy); v != "" {
			c.Taxonomy = splitList(v)
		}
	}
	if env.RequestsPerSecond != "" {
		if v := os.Getenv(env.RequestsPerSecond); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.RequestsPerSecond = f
			}
		}
	}
	if env.Burst != "" {
		if v := os.Getenv(env.Burst); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Burst = n
			}
		}
	}
	if env.GeminiAPIKey != "" {
		if v := os.Getenv(env.GeminiAPIKey); v != "" {
			c.Gemini.APIKey = v
		}
	}
	if env.GeminiModel != "" {
		if v := os.Getenv(env.GeminiModel); v != "" {
			c.Gemini.Model = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderAgent:
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini api_key required")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
