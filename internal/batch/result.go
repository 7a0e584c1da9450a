package batch

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/rapport/internal/reviews"
)

// Result aggregates the outcomes of one batch. It is written only by the
// coordinator's aggregator and is read-only once Run returns.
type Result struct {
	ID                   uuid.UUID                 `json:"id"`
	Submitted            int                       `json:"submitted"`
	Completed            int                       `json:"completed"`
	Processed            int                       `json:"processed"`
	ClassificationFailed int                       `json:"classification_failed"`
	DispatchFailed       int                       `json:"dispatch_failed"`
	NoResponse           int                       `json:"no_response"`
	MessagesSent         int                       `json:"messages_sent"`
	Sentiment            map[reviews.Sentiment]int `json:"sentiment"`
	Urgency              map[reviews.Urgency]int   `json:"urgency"`
	Categories           map[string]int            `json:"categories"`
	Cancelled            bool                      `json:"cancelled"`
	Unprocessed          int                       `json:"unprocessed"`
	SuccessRate          float64                   `json:"success_rate"`
	ResponseRate         float64                   `json:"response_rate"`
	StartedAt            time.Time                 `json:"started_at"`
	CompletedAt          time.Time                 `json:"completed_at"`
	Outcomes             []reviews.Outcome         `json:"outcomes,omitempty"`
}

// Progress is a point-in-time view of a running batch.
type Progress struct {
	BatchID              uuid.UUID      `json:"batch_id"`
	Submitted            int            `json:"submitted"`
	Completed            int            `json:"completed"`
	Processed            int            `json:"processed"`
	ClassificationFailed int            `json:"classification_failed"`
	DispatchFailed       int            `json:"dispatch_failed"`
	NoResponse           int            `json:"no_response"`
	MessagesSent         int            `json:"messages_sent"`
	Elapsed              time.Duration  `json:"elapsed"`
	Last                 *OutcomeDigest `json:"last,omitempty"`
}

// OutcomeDigest identifies the outcome that triggered a progress update.
type OutcomeDigest struct {
	RecordID    uuid.UUID           `json:"record_id"`
	Customer    string              `json:"customer"`
	Status      reviews.Status      `json:"status"`
	Disposition reviews.Disposition `json:"disposition"`
}

// Fraction returns completed over submitted in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Submitted == 0 {
		return 1
	}
	return float64(p.Completed) / float64(p.Submitted)
}

func newResult(id uuid.UUID, submitted int) *Result {
	return &Result{
		ID:         id,
		Submitted:  submitted,
		Sentiment:  make(map[reviews.Sentiment]int),
		Urgency:    make(map[reviews.Urgency]int),
		Categories: make(map[string]int),
		StartedAt:  time.Now(),
		Outcomes:   make([]reviews.Outcome, 0, submitted),
	}
}

// add folds one outcome into the aggregate.
func (r *Result) add(o reviews.Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Completed++

	switch o.Status {
	case reviews.StatusClassificationFailed:
		r.ClassificationFailed++
	case reviews.StatusDispatchFailed:
		r.DispatchFailed++
	default:
		r.Processed++
	}

	switch o.Disposition() {
	case reviews.DispositionNoResponse:
		r.NoResponse++
	case reviews.DispositionResponded:
		r.MessagesSent++
	}

	if cl := o.Classification; cl != nil {
		r.Sentiment[cl.Sentiment]++
		r.Urgency[cl.Urgency]++
		for _, cat := range cl.Categories {
			r.Categories[cat]++
		}
	}
}

func (r *Result) progress(last *reviews.Outcome) Progress {
	p := Progress{
		BatchID:              r.ID,
		Submitted:            r.Submitted,
		Completed:            r.Completed,
		Processed:            r.Processed,
		ClassificationFailed: r.ClassificationFailed,
		DispatchFailed:       r.DispatchFailed,
		NoResponse:           r.NoResponse,
		MessagesSent:         r.MessagesSent,
		Elapsed:              time.Since(r.StartedAt),
	}
	if last != nil {
		p.Last = &OutcomeDigest{
			RecordID:    last.Record.ID,
			Customer:    last.Record.CustomerName,
			Status:      last.Status,
			Disposition: last.Disposition(),
		}
	}
	return p
}

func (r *Result) finalize(cancelled bool) {
	r.Unprocessed = r.Submitted - r.Completed
	r.Cancelled = cancelled && r.Unprocessed > 0
	r.SuccessRate = percent(r.Processed, r.Submitted)
	r.ResponseRate = percent(r.MessagesSent, r.MessagesSent+r.DispatchFailed)
	r.CompletedAt = time.Now()
}

// Snapshot returns the progress view of a finished result.
func (r *Result) Snapshot() Progress {
	return r.progress(nil)
}

// Duration is the batch wall time.
func (r *Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*10000) / 100
}
