package batches

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/internal/reviews"
)

func TestRunSubscribe(t *testing.T) {
	id := uuid.New()
	r := newRun(id, "api", 4, 2, func() {})

	updates, release := r.subscribe()
	defer release()

	first := <-updates
	if first.Submitted != 4 || first.Completed != 0 {
		t.Fatalf("initial progress = %+v", first)
	}

	r.publish(batch.Progress{BatchID: id, Submitted: 4, Completed: 1})
	r.publish(batch.Progress{BatchID: id, Submitted: 4, Completed: 2})

	latest := <-updates
	if latest.Completed != 2 {
		t.Errorf("completed = %d, want latest value 2", latest.Completed)
	}

	r.finish()

	if _, ok := <-updates; ok {
		t.Error("channel still open after finish")
	}

	select {
	case <-r.done:
	default:
		t.Error("done not closed")
	}
}

func TestRunSubscribeAfterFinish(t *testing.T) {
	r := newRun(uuid.New(), "api", 1, 1, func() {})
	r.finish()

	updates, release := r.subscribe()
	defer release()

	if _, ok := <-updates; ok {
		t.Error("expected closed channel")
	}
}

func TestRunReleaseIsIdempotent(t *testing.T) {
	r := newRun(uuid.New(), "api", 1, 1, func() {})
	_, release := r.subscribe()

	release()
	release()
	r.finish()
}

func TestRunSnapshot(t *testing.T) {
	id := uuid.New()
	r := newRun(id, "reviews.csv", 10, 3, func() {})
	r.publish(batch.Progress{BatchID: id, Submitted: 10, Completed: 4, Processed: 3, ClassificationFailed: 1})

	b := r.snapshot()
	if b.Status != StatusRunning {
		t.Errorf("status = %s, want running", b.Status)
	}
	if b.Source != "reviews.csv" || b.Concurrency != 3 {
		t.Errorf("source/concurrency = %s/%d", b.Source, b.Concurrency)
	}
	if b.Unprocessed != 6 {
		t.Errorf("unprocessed = %d, want 6", b.Unprocessed)
	}
	if b.CompletedAt != nil {
		t.Error("running batch has completed_at")
	}
}

func TestRegistry(t *testing.T) {
	g := newRegistry()
	r := newRun(uuid.New(), "api", 1, 1, func() {})

	g.add(r)
	if got, ok := g.get(r.id); !ok || got != r {
		t.Fatal("run not registered")
	}
	if g.count() != 1 {
		t.Errorf("count = %d, want 1", g.count())
	}

	g.remove(r.id)
	if _, ok := g.get(r.id); ok {
		t.Error("run still registered")
	}
}

func TestFromOutcome(t *testing.T) {
	batchID := uuid.New()
	rec := reviews.NewRecord("Ada", "ada@example.com", "It broke")
	now := time.Now()

	t.Run("responded", func(t *testing.T) {
		o := reviews.Outcome{
			Record: rec,
			Classification: &reviews.Classification{
				Sentiment:  reviews.SentimentNegative,
				Urgency:    reviews.UrgencyHigh,
				Confidence: 0.9,
				Categories: []string{"product_quality"},
			},
			Decision:    &reviews.Decision{ShouldRespond: true, Reason: reviews.ReasonNegativeUrgent},
			Dispatch:    &reviews.DispatchResult{Status: reviews.DispatchSent, Attempts: 2, MessageID: "m-1"},
			Status:      reviews.StatusProcessed,
			Path:        []reviews.State{reviews.StateReceived, reviews.StateDone},
			StartedAt:   now,
			CompletedAt: now,
		}

		out := fromOutcome(batchID, o)

		if out.BatchID != batchID || out.RecordID != rec.ID {
			t.Error("ids not carried")
		}
		if out.Disposition != reviews.DispositionResponded {
			t.Errorf("disposition = %s", out.Disposition)
		}
		if out.Sentiment == nil || *out.Sentiment != "negative" {
			t.Errorf("sentiment = %v", out.Sentiment)
		}
		if out.MessageID == nil || *out.MessageID != "m-1" {
			t.Errorf("message id = %v", out.MessageID)
		}
		if out.Attempts != 2 {
			t.Errorf("attempts = %d", out.Attempts)
		}
		if out.Error != nil {
			t.Errorf("error = %v, want nil", *out.Error)
		}
	})

	t.Run("classification failed", func(t *testing.T) {
		o := reviews.Outcome{
			Record: rec,
			Status: reviews.StatusClassificationFailed,
			Error:  "model unavailable",
		}

		out := fromOutcome(batchID, o)

		if out.Disposition != reviews.DispositionUnanalyzed {
			t.Errorf("disposition = %s", out.Disposition)
		}
		if out.Sentiment != nil || out.ShouldRespond != nil || out.DispatchStatus != nil {
			t.Error("expected unset analysis fields")
		}
		if out.Categories == nil || out.Path == nil {
			t.Error("slices must be non-nil for storage")
		}
		if out.Error == nil || *out.Error != "model unavailable" {
			t.Errorf("error = %v", out.Error)
		}
	})
}

func TestFromResult(t *testing.T) {
	res := &batch.Result{
		ID:          uuid.New(),
		Submitted:   4,
		Completed:   2,
		Processed:   2,
		Unprocessed: 2,
		Cancelled:   true,
		Sentiment:   map[reviews.Sentiment]int{reviews.SentimentPositive: 2},
		Urgency:     map[reviews.Urgency]int{reviews.UrgencyLow: 2},
		Categories:  map[string]int{"shipping": 1},
		StartedAt:   time.Now().Add(-time.Second),
		CompletedAt: time.Now(),
	}

	b := fromResult(res, "api", 2)

	if b.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", b.Status)
	}
	if b.Sentiment["positive"] != 2 || b.Urgency["low"] != 2 {
		t.Errorf("counts = %v %v", b.Sentiment, b.Urgency)
	}
	if b.CompletedAt == nil || !b.CompletedAt.Equal(res.CompletedAt) {
		t.Errorf("completed_at = %v", b.CompletedAt)
	}
}

func TestArchiveKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := ArchiveKey(id)
	if key != "batches/550e8400-e29b-41d4-a716-446655440000.json" {
		t.Errorf("ArchiveKey = %q", key)
	}

	tests := []struct {
		name string
		key  string
		ok   bool
	}{
		{"archive key", key, true},
		{"outside prefix", "uploads/550e8400-e29b-41d4-a716-446655440000.json", false},
		{"nested path", "batches/x/550e8400-e29b-41d4-a716-446655440000.json", false},
		{"not a batch id", "batches/summary.json", false},
		{"wrong extension", "batches/550e8400-e29b-41d4-a716-446655440000.csv", false},
		{"non-canonical id", "batches/{550e8400-e29b-41d4-a716-446655440000}.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseArchiveKey(tt.key)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != id {
				t.Errorf("id = %s, want %s", got, id)
			}
		})
	}
}
