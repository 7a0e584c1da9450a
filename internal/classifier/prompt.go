package classifier

import (
	"fmt"
	"strings"

	"github.com/JaimeStill/rapport/internal/reviews"
)

// Prompt is the request sent to an Inference capability.
type Prompt struct {
	System string
	User   string
}

// Text joins the system and user parts for providers with a single input.
func (p Prompt) Text() string {
	return p.System + "\n\n" + p.User
}

const systemPrompt = `You analyze customer reviews for any kind of business.

For the review provided, determine:
1. sentiment: one of positive, negative, neutral
2. confidence: your confidence in the sentiment, from 0.0 to 1.0
3. categories: every category from the list below that the review is about
4. urgency: one of low, medium, high
   - high: very unsatisfied customer, safety or legal concerns, multiple serious issues
   - medium: moderately unsatisfied, specific fixable issues
   - low: minor issues or positive feedback
5. key_issues: short phrases naming the specific issues raised
6. rationale: one sentence explaining the assessment

Urgency is required even when the review is not negative.

Available categories:
%s

Respond with JSON only, in this exact shape:
{
  "sentiment": "positive|negative|neutral",
  "confidence": 0.85,
  "categories": ["category"],
  "urgency": "low|medium|high",
  "key_issues": ["issue"],
  "rationale": "explanation"
}`

func buildPrompt(r reviews.Record, taxonomy []string) Prompt {
	var cats strings.Builder
	for _, t := range taxonomy {
		cats.WriteString("- ")
		cats.WriteString(t)
		cats.WriteString("\n")
	}

	var user strings.Builder
	user.WriteString("Review to analyze:\n")
	fmt.Fprintf(&user, "Customer: %s\n", r.CustomerName)
	if r.Rating > 0 {
		fmt.Fprintf(&user, "Rating: %d/5\n", r.Rating)
	}
	fmt.Fprintf(&user, "Review: %s\n", r.Text)

	return Prompt{
		System: fmt.Sprintf(systemPrompt, strings.TrimRight(cats.String(), "\n")),
		User:   user.String(),
	}
}
