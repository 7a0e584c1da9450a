// Package classifier derives sentiment, categories, urgency, and confidence
// for a review by calling an external inference capability under a bounded
// retry policy and a shared request rate limit.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/JaimeStill/rapport/internal/reviews"
	"github.com/JaimeStill/rapport/pkg/formatting"
	"github.com/JaimeStill/rapport/pkg/retry"
)

// Inference is the external classification capability. One Infer call is
// one outbound request.
type Inference interface {
	Infer(ctx context.Context, prompt Prompt) (string, error)
	Name() string
}

type response struct {
	Sentiment  *string  `json:"sentiment"`
	Confidence *float64 `json:"confidence"`
	Categories []string `json:"categories"`
	Urgency    *string  `json:"urgency"`
	KeyIssues  []string `json:"key_issues"`
	Rationale  string   `json:"rationale"`
}

// Classifier turns records into validated classifications.
type Classifier struct {
	inference Inference
	taxonomy  []string
	retry     *retry.Config
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New creates a Classifier. A RequestsPerSecond of zero disables rate limiting.
func New(inference Inference, cfg *Config, logger *slog.Logger) *Classifier {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Classifier{
		inference: inference,
		taxonomy:  normalizeTaxonomy(cfg.Taxonomy),
		retry:     &cfg.Retry,
		limiter:   rate.NewLimiter(limit, max(cfg.Burst, 1)),
		logger:    logger.With("system", "classifier", "inference", inference.Name()),
	}
}

// Taxonomy returns the normalized category taxonomy.
func (c *Classifier) Taxonomy() []string {
	return slices.Clone(c.taxonomy)
}

// Classify analyzes one record. Failures are returned as *Error; malformed
// output and invalid input are never retried.
func (c *Classifier) Classify(ctx context.Context, r reviews.Record) (reviews.Classification, error) {
	if strings.TrimSpace(r.Text) == "" {
		return reviews.Classification{}, &Error{
			Err: fmt.Errorf("%w: empty review text", ErrInvalidInput),
		}
	}

	prompt := buildPrompt(r, c.taxonomy)

	var result reviews.Classification
	attempts, err := retry.Do(ctx, c.retry, func(actx context.Context) error {
		if err := c.limiter.Wait(actx); err != nil {
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}

		raw, err := c.inference.Infer(actx, prompt)
		if err != nil {
			err = classifyError(err)
			if IsTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}

		cl, err := c.parse(raw)
		if err != nil {
			return retry.Permanent(err)
		}

		result = cl
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.Warn(
			"classification attempt failed, retrying",
			"record_id", r.ID,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	})

	if err != nil {
		return reviews.Classification{}, &Error{Attempts: attempts, Err: classifyError(err)}
	}

	return result, nil
}

func (c *Classifier) parse(raw string) (reviews.Classification, error) {
	resp, err := formatting.Parse[response](raw)
	if err != nil {
		return reviews.Classification{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if resp.Sentiment == nil {
		return reviews.Classification{}, fmt.Errorf("%w: missing sentiment", ErrMalformed)
	}
	if resp.Confidence == nil {
		return reviews.Classification{}, fmt.Errorf("%w: missing confidence", ErrMalformed)
	}
	if resp.Urgency == nil {
		return reviews.Classification{}, fmt.Errorf("%w: missing urgency", ErrMalformed)
	}

	sentiment, err := reviews.ParseSentiment(*resp.Sentiment)
	if err != nil {
		return reviews.Classification{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	urgency, err := reviews.ParseUrgency(*resp.Urgency)
	if err != nil {
		return reviews.Classification{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	cl := reviews.Classification{
		Sentiment:  sentiment,
		Confidence: *resp.Confidence,
		Categories: c.filterCategories(resp.Categories),
		Urgency:    urgency,
		KeyIssues:  resp.KeyIssues,
		Rationale:  resp.Rationale,
	}

	if err := cl.Validate(); err != nil {
		return reviews.Classification{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return cl, nil
}

// filterCategories normalizes, de-duplicates, and drops categories outside
// the taxonomy.
func (c *Classifier) filterCategories(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, cat := range raw {
		n := strings.ToLower(strings.TrimSpace(cat))
		if n == "" || slices.Contains(out, n) {
			continue
		}
		if len(c.taxonomy) > 0 && !slices.Contains(c.taxonomy, n) {
			c.logger.Warn("dropping category outside taxonomy", "category", cat)
			continue
		}
		out = append(out, n)
	}
	return out
}

func normalizeTaxonomy(taxonomy []string) []string {
	out := make([]string, 0, len(taxonomy))
	for _, t := range taxonomy {
		n := strings.ToLower(strings.TrimSpace(t))
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
