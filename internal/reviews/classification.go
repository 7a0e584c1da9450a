package reviews

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Sentiment is the coarse polarity of a review.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Sentiments lists every valid Sentiment.
var Sentiments = []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral}

// Valid reports whether s is one of the allowed sentiments.
func (s Sentiment) Valid() bool {
	return slices.Contains(Sentiments, s)
}

// ParseSentiment normalizes case and whitespace and rejects unknown values.
func ParseSentiment(v string) (Sentiment, error) {
	s := Sentiment(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown sentiment %q", ErrInvalidClassification, v)
	}
	return s, nil
}

// Urgency is the priority level for responding to a review.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Urgencies lists every valid Urgency.
var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}

// Valid reports whether u is one of the allowed urgency levels.
func (u Urgency) Valid() bool {
	return slices.Contains(Urgencies, u)
}

// ParseUrgency normalizes case and whitespace and rejects unknown values.
// "critical" is accepted as an alias for high.
func ParseUrgency(v string) (Urgency, error) {
	normalized := strings.ToLower(strings.TrimSpace(v))
	if normalized == "critical" {
		return UrgencyHigh, nil
	}
	u := Urgency(normalized)
	if !u.Valid() {
		return "", fmt.Errorf("%w: unknown urgency %q", ErrInvalidClassification, v)
	}
	return u, nil
}

// Classification is the analysis of a single Record.
// Urgency is always set, even when the sentiment is not negative.
type Classification struct {
	Sentiment  Sentiment `json:"sentiment"`
	Confidence float64   `json:"confidence"`
	Categories []string  `json:"categories"`
	Urgency    Urgency   `json:"urgency"`
	KeyIssues  []string  `json:"key_issues,omitempty"`
	Rationale  string    `json:"rationale,omitempty"`
}

// Validate checks sentiment, confidence range, and urgency.
func (c Classification) Validate() error {
	if !c.Sentiment.Valid() {
		return fmt.Errorf("%w: unknown sentiment %q", ErrInvalidClassification, c.Sentiment)
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range [0,1]", ErrInvalidClassification, c.Confidence)
	}
	if !c.Urgency.Valid() {
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalidClassification, c.Urgency)
	}
	return nil
}

// HasCategory reports whether the classification carries category.
func (c Classification) HasCategory(category string) bool {
	return slices.Contains(c.Categories, category)
}
