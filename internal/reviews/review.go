// Package reviews defines the data model that flows through the review
// analysis and response pipeline: the immutable input Record, the
// Classification produced for it, the response Decision, the transient
// Message, and the per-record Outcome.
package reviews

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Record is a single customer review. It is created by ingestion and
// read-only within the pipeline.
type Record struct {
	ID            uuid.UUID         `json:"id"`
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	Text          string            `json:"review"`
	Rating        int               `json:"rating,omitempty"`
	Source        map[string]string `json:"source,omitempty"`
}

// NewRecord builds a Record with a generated ID and trimmed fields.
func NewRecord(name, email, text string) Record {
	return Record{
		ID:            uuid.New(),
		CustomerName:  strings.TrimSpace(name),
		CustomerEmail: strings.TrimSpace(email),
		Text:          strings.TrimSpace(text),
	}
}

// Validate checks the required fields of a record.
func (r Record) Validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return fmt.Errorf("%w: customer name required", ErrInvalidRecord)
	}
	if !ValidEmail(r.CustomerEmail) {
		return fmt.Errorf("%w: invalid customer email %q", ErrInvalidRecord, r.CustomerEmail)
	}
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: review text required", ErrInvalidRecord)
	}
	return nil
}

// ValidEmail reports whether s is a syntactically valid email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
