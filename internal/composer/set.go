package composer

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultKey names the fallback template every Set must define.
const DefaultKey = "default"

//go:embed templates.yaml
var defaultSet []byte

// Template is a subject and body pair in text/template syntax.
type Template struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// Set maps categories (or DefaultKey) to templates along with the
// category priority used for template selection.
type Set struct {
	Priority  []string            `yaml:"priority"`
	Templates map[string]Template `yaml:"templates"`
}

// DefaultSet returns the built-in template set.
func DefaultSet() (*Set, error) {
	return ParseSet(defaultSet)
}

// LoadSet reads a YAML template set from path.
func LoadSet(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template set: %w", err)
	}
	return ParseSet(data)
}

// ParseSet decodes a YAML template set.
func ParseSet(data []byte) (*Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse template set: %w", err)
	}
	return &s, nil
}
