package composer

import (
	"os"
	"strings"
)

// Business identifies the sender in rendered messages.
type Business struct {
	Name     string `toml:"name"`
	Phone    string `toml:"phone"`
	Email    string `toml:"email"`
	FromName string `toml:"from_name"`
}

// Config selects the template set and sender details for a Composer.
// An empty TemplatesFile uses the built-in set. A non-empty Priority
// replaces the priority declared by the set.
type Config struct {
	TemplatesFile string   `toml:"templates_file"`
	Priority      []string `toml:"priority"`
	Business      Business `toml:"business"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	TemplatesFile string
	Priority      string
	BusinessName  string
	BusinessPhone string
	BusinessEmail string
	FromName      string
}

// Finalize applies defaults and environment variable overrides.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.TemplatesFile != "" {
		c.TemplatesFile = overlay.TemplatesFile
	}
	if overlay.Priority != nil {
		c.Priority = overlay.Priority
	}
	if overlay.Business.Name != "" {
		c.Business.Name = overlay.Business.Name
	}
	if overlay.Business.Phone != "" {
		c.Business.Phone = overlay.Business.Phone
	}
	if overlay.Business.Email != "" {
		c.Business.Email = overlay.Business.Email
	}
	if overlay.Business.FromName != "" {
		c.Business.FromName = overlay.Business.FromName
	}
}

func (c *Config) loadDefaults() {
	if c.Business.Name == "" {
		c.Business.Name = "Our Team"
	}
	if c.Business.FromName == "" {
		c.Business.FromName = "Customer Care"
	}
}

func (c *Config) loadEnv(env *Env) {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(env.TemplatesFile, &c.TemplatesFile)
	set(env.BusinessName, &c.Business.Name)
	set(env.BusinessPhone, &c.Business.Phone)
	set(env.BusinessEmail, &c.Business.Email)
	set(env.FromName, &c.Business.FromName)

	if env.Priority != "" {
		if v := os.Getenv(env.Priority); v != "" {
			c.Priority = nil
			for p := range strings.SplitSeq(v, ",") {
				if trimmed := strings.TrimSpace(p); trimmed != "" {
					c.Priority = append(c.Priority, trimmed)
				}
			}
		}
	}
}
