package reviews

// Reason explains a response Decision.
type Reason string

const (
	ReasonNegativeUrgent Reason = "negative_urgent"
	ReasonNotNegative    Reason = "not_negative"
	ReasonLowUrgency     Reason = "low_urgency"
)

// Decision records whether an automated response is warranted.
type Decision struct {
	ShouldRespond bool   `json:"should_respond"`
	Reason        Reason `json:"reason"`
}

// Message is a composed response. It exists only between composition
// and the dispatch attempt for one record.
type Message struct {
	ID        string `json:"message_id"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Template  string `json:"template"`
}

// DispatchStatus is the terminal state of a dispatch call.
type DispatchStatus string

const (
	DispatchSent   DispatchStatus = "sent"
	DispatchFailed DispatchStatus = "failed"
)

// DispatchResult is the outcome of dispatching one Message.
type DispatchResult struct {
	Status    DispatchStatus `json:"status"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"last_error,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
}

// Sent reports whether the message was delivered.
func (d *DispatchResult) Sent() bool {
	return d != nil && d.Status == DispatchSent
}
