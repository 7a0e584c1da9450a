// Package batches implements the batch domain of the HTTP service. It
// accepts review batches, runs them in the background through the batch
// coordinator, streams live progress, and persists finished results and
// per-review outcomes.
package batches

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/internal/ingest"
	"github.com/JaimeStill/rapport/internal/reviews"
)

// Status is the lifecycle state of a batch.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"

	// StatusInterrupted marks a batch whose outcomes were never stored,
	// either because persisting them failed or because the process
	// stopped while it was running.
	StatusInterrupted Status = "interrupted"
)

// Batch is a stored batch summary, or the live view of a running batch.
type Batch struct {
	ID                   uuid.UUID      `json:"id"`
	Status               Status         `json:"status"`
	Source               string         `json:"source"`
	Concurrency          int            `json:"concurrency"`
	Submitted            int            `json:"submitted"`
	Completed            int            `json:"completed"`
	Processed            int            `json:"processed"`
	ClassificationFailed int            `json:"classification_failed"`
	DispatchFailed       int            `json:"dispatch_failed"`
	NoResponse           int            `json:"no_response"`
	MessagesSent         int            `json:"messages_sent"`
	Unprocessed          int            `json:"unprocessed"`
	SuccessRate          float64        `json:"success_rate"`
	ResponseRate         float64        `json:"response_rate"`
	Sentiment            map[string]int `json:"sentiment"`
	Urgency              map[string]int `json:"urgency"`
	Categories           map[string]int `json:"categories"`
	ArchiveKey           *string        `json:"archive_key"`
	StartedAt            time.Time      `json:"started_at"`
	CompletedAt          *time.Time     `json:"completed_at"`
}

// Outcome is the stored result of one review within a batch.
type Outcome struct {
	ID             uuid.UUID           `json:"id"`
	BatchID        uuid.UUID           `json:"batch_id"`
	RecordID       uuid.UUID           `json:"record_id"`
	CustomerName   string              `json:"customer_name"`
	CustomerEmail  string              `json:"customer_email"`
	Status         reviews.Status      `json:"status"`
	Disposition    reviews.Disposition `json:"disposition"`
	Sentiment      *string             `json:"sentiment"`
	Urgency        *string             `json:"urgency"`
	Confidence     *float64            `json:"confidence"`
	Categories     []string            `json:"categories"`
	ShouldRespond  *bool               `json:"should_respond"`
	Reason         *string             `json:"reason"`
	DispatchStatus *string             `json:"dispatch_status"`
	Attempts       int                 `json:"attempts"`
	MessageID      *string             `json:"message_id"`
	Error          *string             `json:"error"`
	Path           []reviews.State     `json:"path"`
	StartedAt      time.Time           `json:"started_at"`
	CompletedAt    time.Time           `json:"completed_at"`
}

// CategoryCount is one entry of the category ranking in Stats.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats aggregates every finished batch.
type Stats struct {
	Batches              int             `json:"batches"`
	Running              int             `json:"running"`
	Reviews              int             `json:"reviews"`
	Processed            int             `json:"processed"`
	ClassificationFailed int             `json:"classification_failed"`
	DispatchFailed       int             `json:"dispatch_failed"`
	NoResponse           int             `json:"no_response"`
	MessagesSent         int             `json:"messages_sent"`
	SuccessRate          float64         `json:"success_rate"`
	ResponseRate         float64         `json:"response_rate"`
	Sentiment            map[string]int  `json:"sentiment"`
	Urgency              map[string]int  `json:"urgency"`
	TopCategories        []CategoryCount `json:"top_categories"`
}

// ReviewInput is one review in a JSON submission.
type ReviewInput struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Review        string `json:"review"`
	Rating        int    `json:"rating,omitempty"`
}

// SubmitCommand carries a JSON batch submission. A Concurrency of zero
// uses the configured default.
type SubmitCommand struct {
	Reviews     []ReviewInput `json:"reviews"`
	Concurrency int           `json:"concurrency"`
	Source      string        `json:"source,omitempty"`
}

// Records converts the submission into pipeline records.
func (c SubmitCommand) Records() []reviews.Record {
	out := make([]reviews.Record, len(c.Reviews))
	for i, in := range c.Reviews {
		r := reviews.NewRecord(in.CustomerName, in.CustomerEmail, in.Review)
		r.Rating = in.Rating
		out[i] = r
	}
	return out
}

// UploadCommand carries a parsed CSV upload.
type UploadCommand struct {
	Filename    string
	Parsed      *ingest.Result
	Concurrency int
}

// Accepted acknowledges a submission that started running.
type Accepted struct {
	ID          uuid.UUID         `json:"id"`
	Status      Status            `json:"status"`
	Submitted   int               `json:"submitted"`
	Concurrency int               `json:"concurrency"`
	RowErrors   []ingest.RowError `json:"row_errors,omitempty"`
}

// fromResult builds the stored summary of a finished batch.
func fromResult(res *batch.Result, source string, concurrency int) Batch {
	status := StatusCompleted
	if res.Cancelled {
		status = StatusCancelled
	}

	completed := res.CompletedAt

	return Batch{
		ID:                   res.ID,
		Status:               status,
		Source:               source,
		Concurrency:          concurrency,
		Submitted:            res.Submitted,
		Completed:            res.Completed,
		Processed:            res.Processed,
		ClassificationFailed: res.ClassificationFailed,
		DispatchFailed:       res.DispatchFailed,
		NoResponse:           res.NoResponse,
		MessagesSent:         res.MessagesSent,
		Unprocessed:          res.Unprocessed,
		SuccessRate:          res.SuccessRate,
		ResponseRate:         res.ResponseRate,
		Sentiment:            stringKeys(res.Sentiment),
		Urgency:              stringKeys(res.Urgency),
		Categories:           res.Categories,
		StartedAt:            res.StartedAt,
		CompletedAt:          &completed,
	}
}

// fromOutcome flattens a pipeline outcome into its stored form.
func fromOutcome(batchID uuid.UUID, o reviews.Outcome) Outcome {
	out := Outcome{
		ID:            uuid.New(),
		BatchID:       batchID,
		RecordID:      o.Record.ID,
		CustomerName:  o.Record.CustomerName,
		CustomerEmail: o.Record.CustomerEmail,
		Status:        o.Status,
		Disposition:   o.Disposition(),
		Categories:    []string{},
		Path:          o.Path,
		StartedAt:     o.StartedAt,
		CompletedAt:   o.CompletedAt,
	}

	if cl := o.Classification; cl != nil {
		sentiment := string(cl.Sentiment)
		urgency := string(cl.Urgency)
		confidence := cl.Confidence
		out.Sentiment = &sentiment
		out.Urgency = &urgency
		out.Confidence = &confidence
		if cl.Categories != nil {
			out.Categories = cl.Categories
		}
	}

	if d := o.Decision; d != nil {
		respond := d.ShouldRespond
		reason := string(d.Reason)
		out.ShouldRespond = &respond
		out.Reason = &reason
	}

	if d := o.Dispatch; d != nil {
		status := string(d.Status)
		out.DispatchStatus = &status
		out.Attempts = d.Attempts
		if d.MessageID != "" {
			id := d.MessageID
			out.MessageID = &id
		}
	}

	if o.Error != "" {
		msg := o.Error
		out.Error = &msg
	}

	if out.Path == nil {
		out.Path = []reviews.State{}
	}

	return out
}

// fromProgress builds the live view of a running batch.
func fromProgress(p batch.Progress, source string, concurrency int, started time.Time) Batch {
	return Batch{
		ID:                   p.BatchID,
		Status:               StatusRunning,
		Source:               source,
		Concurrency:          concurrency,
		Submitted:            p.Submitted,
		Completed:            p.Completed,
		Processed:            p.Processed,
		ClassificationFailed: p.ClassificationFailed,
		DispatchFailed:       p.DispatchFailed,
		NoResponse:           p.NoResponse,
		MessagesSent:         p.MessagesSent,
		Unprocessed:          p.Submitted - p.Completed,
		Sentiment:            map[string]int{},
		Urgency:              map[string]int{},
		Categories:           map[string]int{},
		StartedAt:            started,
	}
}

func stringKeys[K ~string](m map[K]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}
