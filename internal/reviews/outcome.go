package reviews

import "time"

// Status is the terminal status of a record's pipeline run.
type Status string

const (
	StatusProcessed            Status = "processed"
	StatusClassificationFailed Status = "classification_failed"
	StatusDispatchFailed       Status = "dispatch_failed"
)

// Disposition separates the actionable cases that share a Status.
type Disposition string

const (
	DispositionUnanalyzed     Disposition = "unanalyzed"
	DispositionNoResponse     Disposition = "no_response"
	DispositionResponded      Disposition = "responded"
	DispositionResponseFailed Disposition = "response_failed"
)

// Outcome is the immutable result of running the pipeline for one Record.
// Classification is nil on classification failure. Dispatch is nil when
// no response was required.
type Outcome struct {
	Record         Record          `json:"record"`
	Classification *Classification `json:"classification,omitempty"`
	Decision       *Decision       `json:"decision,omitempty"`
	Dispatch       *DispatchResult `json:"dispatch,omitempty"`
	Status         Status          `json:"status"`
	Path           []State         `json:"path"`
	Error          string          `json:"error,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// Disposition reports what the pipeline determined and did for the record.
func (o Outcome) Disposition() Disposition {
	switch {
	case o.Status == StatusClassificationFailed:
		return DispositionUnanalyzed
	case o.Status == StatusDispatchFailed:
		return DispositionResponseFailed
	case o.Dispatch.Sent():
		return DispositionResponded
	default:
		return DispositionNoResponse
	}
}

// Duration is the wall time the pipeline spent on the record.
func (o Outcome) Duration() time.Duration {
	return o.CompletedAt.Sub(o.StartedAt)
}
