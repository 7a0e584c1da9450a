// Package composer renders personalized response messages from category
// templates and the classification of a review.
package composer

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"github.com/JaimeStill/rapport/internal/reviews"
)

const (
	markerName    = "@@customer-name@@"
	markerUrgency = "@@urgency@@"
)

var funcs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}

// Data is the value templates are executed against.
type Data struct {
	CustomerName  string
	CustomerEmail string
	Review        string
	Category      string
	Categories    []string
	Urgency       string
	Sentiment     string
	KeyIssues     []string
	Business      Business
}

type compiled struct {
	name    string
	subject *template.Template
	body    *template.Template
}

// Composer selects and renders templates. It holds no mutable state and
// is safe for concurrent use.
type Composer struct {
	priority  []string
	templates map[string]*compiled
	business  Business
}

// New compiles every template in set and checks that each one interpolates
// the customer name and a classification detail. A default template is required.
func New(set *Set, priority []string, business Business) (*Composer, error) {
	if set == nil {
		return nil, ErrNoDefault
	}
	if _, ok := set.Templates[DefaultKey]; !ok {
		return nil, ErrNoDefault
	}

	if len(priority) == 0 {
		priority = set.Priority
	}

	c := &Composer{
		priority:  normalizeAll(priority),
		templates: make(map[string]*compiled, len(set.Templates)),
		business:  business,
	}

	for key, tmpl := range set.Templates {
		ct, err := compile(normalize(key), tmpl)
		if err != nil {
			return nil, err
		}
		if err := c.checkMarkers(ct); err != nil {
			return nil, err
		}
		c.templates[ct.name] = ct
	}

	return c, nil
}

// FromConfig builds a Composer from the configured template file or the
// built-in set.
func FromConfig(cfg *Config) (*Composer, error) {
	var (
		set *Set
		err error
	)
	if cfg.TemplatesFile != "" {
		set, err = LoadSet(cfg.TemplatesFile)
	} else {
		set, err = DefaultSet()
	}
	if err != nil {
		return nil, err
	}
	return New(set, cfg.Priority, cfg.Business)
}

// Templates returns the names of the compiled templates in sorted order.
func (c *Composer) Templates() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Select returns the template name and category used for a classification.
// The category is the highest-priority matched category, or the first
// category when none is ranked, or empty for an empty category set.
func (c *Composer) Select(cl reviews.Classification) (string, string) {
	ranked := c.rank(cl.Categories)

	for _, cat := range ranked {
		if _, ok := c.templates[cat]; ok {
			return cat, cat
		}
	}

	if len(ranked) > 0 {
		return DefaultKey, ranked[0]
	}
	return DefaultKey, ""
}

// Compose renders a message for the record. When the selected category
// template cannot render a specific message, the default template is used.
func (c *Composer) Compose(r reviews.Record, cl reviews.Classification) (*reviews.Message, error) {
	name, category := c.Select(cl)
	data := c.data(r, cl, category)

	msg, err := c.render(c.templates[name], data)
	if err == nil {
		return msg, nil
	}
	if name == DefaultKey {
		return nil, &Error{Template: name, Err: err}
	}

	msg, fallbackErr := c.render(c.templates[DefaultKey], data)
	if fallbackErr != nil {
		return nil, &Error{Template: DefaultKey, Err: fallbackErr}
	}
	return msg, nil
}

func (c *Composer) rank(categories []string) []string {
	normalized := normalizeAll(categories)

	ranked := make([]string, 0, len(normalized))
	for _, p := range c.priority {
		if slices.Contains(normalized, p) && !slices.Contains(ranked, p) {
			ranked = append(ranked, p)
		}
	}
	for _, cat := range normalized {
		if !slices.Contains(ranked, cat) {
			ranked = append(ranked, cat)
		}
	}
	return ranked
}

func (c *Composer) data(r reviews.Record, cl reviews.Classification, category string) Data {
	return Data{
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		Review:        r.Text,
		Category:      category,
		Categories:    cl.Categories,
		Urgency:       string(cl.Urgency),
		Sentiment:     string(cl.Sentiment),
		KeyIssues:     cl.KeyIssues,
		Business:      c.business,
	}
}

func (c *Composer) render(ct *compiled, data Data) (*reviews.Message, error) {
	subject, err := execute(ct.subject, data)
	if err != nil {
		return nil, err
	}
	body, err := execute(ct.body, data)
	if err != nil {
		return nil, err
	}

	if !specific(subject+"\n"+body, data) {
		return nil, ErrGenericOutput
	}

	return &reviews.Message{
		ID:        uuid.NewString(),
		Recipient: data.CustomerEmail,
		Subject:   strings.TrimSpace(subject),
		Body:      strings.TrimSpace(body),
		Template:  ct.name,
	}, nil
}

// checkMarkers renders ct with marker values to prove it interpolates the
// customer name and either the category or the urgency.
func (c *Composer) checkMarkers(ct *compiled) error {
	data := Data{
		CustomerName:  markerName,
		CustomerEmail: "marker@example.com",
		Urgency:       markerUrgency,
		Sentiment:     string(reviews.SentimentNegative),
		Business:      c.business,
	}
	if ct.name != DefaultKey {
		data.Category = ct.name
		data.Categories = []string{ct.name}
	}

	if _, err := c.render(ct, data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, ct.name, err)
	}
	return nil
}

func compile(name string, t Template) (*compiled, error) {
	if strings.TrimSpace(t.Body) == "" {
		return nil, fmt.Errorf("%w: %s: empty body", ErrInvalid, name)
	}

	subject, err := template.New(name + ".subject").
		Funcs(funcs).
		Option("missingkey=error").
		Parse(t.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %s subject: %w", ErrInvalid, name, err)
	}

	body, err := template.New(name + ".body").
		Funcs(funcs).
		Option("missingkey=error").
		Parse(t.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s body: %w", ErrInvalid, name, err)
	}

	return &compiled{name: name, subject: subject, body: body}, nil
}

func execute(t *template.Template, data Data) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	return buf.String(), nil
}

func specific(text string, data Data) bool {
	if !strings.Contains(text, data.CustomerName) {
		return false
	}
	if data.Category != "" && strings.Contains(text, data.Category) {
		return true
	}
	return data.Urgency != "" && strings.Contains(text, data.Urgency)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}
