// Package policy decides whether a classified review warrants an
// automated response.
package policy

import "github.com/JaimeStill/rapport/internal/reviews"

// RequiresResponse is the response rule: a review is answered when it is
// negative and its urgency is medium or high.
func RequiresResponse(c reviews.Classification) bool {
	return c.Sentiment == reviews.SentimentNegative &&
		(c.Urgency == reviews.UrgencyMedium || c.Urgency == reviews.UrgencyHigh)
}

// Decide maps a classification to its response decision. It is total and pure.
func Decide(c reviews.Classification) reviews.Decision {
	if RequiresResponse(c) {
		return reviews.Decision{ShouldRespond: true, Reason: reviews.ReasonNegativeUrgent}
	}
	if c.Sentiment != reviews.SentimentNegative {
		return reviews.Decision{ShouldRespond: false, Reason: reviews.ReasonNotNegative}
	}
	return reviews.Decision{ShouldRespond: false, Reason: reviews.ReasonLowUrgency}
}
