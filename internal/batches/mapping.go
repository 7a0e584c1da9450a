package batches

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/JaimeStill/rapport/pkg/query"
	"github.com/JaimeStill/rapport/pkg/repository"
)

var batchProjection = query.
	NewProjectionMap("public", "batches", "b").
	Project("id", "ID").
	Project("status", "Status").
	Project("source", "Source").
	Project("concurrency", "Concurrency").
	Project("submitted", "Submitted").
	Project("completed", "Completed").
	Project("processed", "Processed").
	Project("classification_failed", "ClassificationFailed").
	Project("dispatch_failed", "DispatchFailed").
	Project("no_response", "NoResponse").
	Project("messages_sent", "MessagesSent").
	Project("unprocessed", "Unprocessed").
	Project("success_rate", "SuccessRate").
	Project("response_rate", "ResponseRate").
	Project("sentiment", "Sentiment").
	Project("urgency", "Urgency").
	Project("categories", "Categories").
	Project("archive_key", "ArchiveKey").
	Project("started_at", "StartedAt").
	Project("completed_at", "CompletedAt")

var batchDefaultSort = query.SortField{
	Field:      "StartedAt",
	Descending: true,
}

var outcomeProjection = query.
	NewProjectionMap("public", "batch_outcomes", "o").
	Project("id", "ID").
	Project("batch_id", "BatchID").
	Project("record_id", "RecordID").
	Project("customer_name", "CustomerName").
	Project("customer_email", "CustomerEmail").
	Project("status", "Status").
	Project("disposition", "Disposition").
	Project("sentiment", "Sentiment").
	Project("urgency", "Urgency").
	Project("confidence", "Confidence").
	Project("categories", "Categories").
	Project("should_respond", "ShouldRespond").
	Project("reason", "Reason").
	Project("dispatch_status", "DispatchStatus").
	Project("attempts", "Attempts").
	Project("message_id", "MessageID").
	Project("error", "Error").
	Project("path", "Path").
	Project("started_at", "StartedAt").
	Project("completed_at", "CompletedAt")

var outcomeDefaultSort = query.SortField{
	Field: "CompletedAt",
}

// Filters contains optional criteria for batch listings.
type Filters struct {
	Status *string `json:"status,omitempty"`
	Source *string `json:"source,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereContains("Source", f.Source)
}

// FiltersFromQuery extracts batch filters from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if s := values.Get("status"); s != "" {
		f.Status = &s
	}
	if s := values.Get("source"); s != "" {
		f.Source = &s
	}
	return f
}

// OutcomeFilters narrows an outcome listing. Each field accepts several
// values; a review matches when it has any of them.
type OutcomeFilters struct {
	Status      []string `json:"status,omitempty"`
	Disposition []string `json:"disposition,omitempty"`
	Sentiment   []string `json:"sentiment,omitempty"`
	Urgency     []string `json:"urgency,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f OutcomeFilters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereOneOf("Status", f.Status).
		WhereOneOf("Disposition", f.Disposition).
		WhereOneOf("Sentiment", f.Sentiment).
		WhereOneOf("Urgency", f.Urgency)
}

// OutcomeFiltersFromQuery reads repeated or comma-separated values:
// ?status=processed&status=dispatch_failed and ?status=processed,dispatch_failed
// are equivalent.
func OutcomeFiltersFromQuery(values url.Values) OutcomeFilters {
	return OutcomeFilters{
		Status:      listParam(values, "status"),
		Disposition: listParam(values, "disposition"),
		Sentiment:   listParam(values, "sentiment"),
		Urgency:     listParam(values, "urgency"),
	}
}

func listParam(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for part := range strings.SplitSeq(raw, ",") {
			if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func scanBatch(s repository.Scanner) (Batch, error) {
	var b Batch
	var sentiment, urgency, categories []byte

	err := s.Scan(
		&b.ID,
		&b.Status,
		&b.Source,
		&b.Concurrency,
		&b.Submitted,
		&b.Completed,
		&b.Processed,
		&b.ClassificationFailed,
		&b.DispatchFailed,
		&b.NoResponse,
		&b.MessagesSent,
		&b.Unprocessed,
		&b.SuccessRate,
		&b.ResponseRate,
		&sentiment,
		&urgency,
		&categories,
		&b.ArchiveKey,
		&b.StartedAt,
		&b.CompletedAt,
	)
	if err != nil {
		return b, err
	}

	if b.Sentiment, err = unmarshalCounts(sentiment); err != nil {
		return b, fmt.Errorf("unmarshal sentiment: %w", err)
	}
	if b.Urgency, err = unmarshalCounts(urgency); err != nil {
		return b, fmt.Errorf("unmarshal urgency: %w", err)
	}
	if b.Categories, err = unmarshalCounts(categories); err != nil {
		return b, fmt.Errorf("unmarshal categories: %w", err)
	}

	return b, nil
}

func scanOutcome(s repository.Scanner) (Outcome, error) {
	var o Outcome
	var categories, path []byte

	err := s.Scan(
		&o.ID,
		&o.BatchID,
		&o.RecordID,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.Status,
		&o.Disposition,
		&o.Sentiment,
		&o.Urgency,
		&o.Confidence,
		&categories,
		&o.ShouldRespond,
		&o.Reason,
		&o.DispatchStatus,
		&o.Attempts,
		&o.MessageID,
		&o.Error,
		&path,
		&o.StartedAt,
		&o.CompletedAt,
	)
	if err != nil {
		return o, err
	}

	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &o.Categories); err != nil {
			return o, fmt.Errorf("unmarshal categories: %w", err)
		}
	}
	if o.Categories == nil {
		o.Categories = []string{}
	}

	if len(path) > 0 {
		if err := json.Unmarshal(path, &o.Path); err != nil {
			return o, fmt.Errorf("unmarshal path: %w", err)
		}
	}

	return o, nil
}

func unmarshalCounts(raw []byte) (map[string]int, error) {
	out := map[string]int{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
