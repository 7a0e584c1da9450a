package batches_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/internal/batches"
	"github.com/JaimeStill/rapport/internal/reviews"
	"github.com/JaimeStill/rapport/pkg/pagination"
	"github.com/JaimeStill/rapport/pkg/storage"
)

const (
	summaryUpdate = "classification_failed = $5"
	outcomeInsert = "INSERT INTO batch_outcomes"
	findBatch     = "FROM public.batches b WHERE b.id = $1"
	countOutcomes = "SELECT COUNT(*) FROM public.batch_outcomes"
	pageOutcomes  = "SELECT o.id, o.batch_id"
)

var pageConfig = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runNow launches batches synchronously so Submit returns after persistence.
func runNow(fn func(ctx context.Context)) {
	fn(context.Background())
}

func answered(ctx context.Context, r reviews.Record) reviews.Outcome {
	now := time.Now()
	return reviews.Outcome{
		Record: r,
		Status: reviews.StatusProcessed,
		Classification: &reviews.Classification{
			Sentiment:  reviews.SentimentNegative,
			Urgency:    reviews.UrgencyHigh,
			Categories: []string{"delivery"},
			Confidence: 0.8,
		},
		Decision: &reviews.Decision{ShouldRespond: true, Reason: reviews.ReasonNegativeUrgent},
		Dispatch: &reviews.DispatchResult{Status: reviews.DispatchSent, Attempts: 1, MessageID: "msg-" + r.ID.String()},
		Path: []reviews.State{
			reviews.StateReceived, reviews.StateClassifying, reviews.StateClassified,
			reviews.StateDeciding, reviews.StateComposing, reviews.StateDispatching,
			reviews.StateDispatched, reviews.StateDone,
		},
		StartedAt:   now,
		CompletedAt: now,
	}
}

func newRepo(t *testing.T, store storage.System) (*fakeDB, batches.System) {
	t.Helper()
	fdb, db := newFakeDB(t)
	coord := batch.NewWithPipeline(answered, &batch.Config{Concurrency: 2, MaxConcurrency: 3}, quiet())
	return fdb, batches.New(db, coord, store, runNow, quiet(), pageConfig)
}

func submission(n int) batches.SubmitCommand {
	cmd := batches.SubmitCommand{}
	for i := range n {
		cmd.Reviews = append(cmd.Reviews, batches.ReviewInput{
			CustomerName:  fmt.Sprintf("Customer %d", i),
			CustomerEmail: fmt.Sprintf("c%d@example.com", i),
			Review:        "arrived broken",
		})
	}
	return cmd
}

// batchRow builds a stored batches row in projection order.
func batchRow(id uuid.UUID, status batches.Status, archiveKey *string) fakeRows {
	var key driver.Value
	if archiveKey != nil {
		key = *archiveKey
	}
	started := time.Now().Add(-time.Minute)
	return fakeRows{
		cols: columns(20),
		vals: [][]driver.Value{{
			id.String(), string(status), "api", int64(2),
			int64(2), int64(2), int64(2), int64(0), int64(0), int64(0), int64(2), int64(0),
			100.0, 100.0,
			[]byte(`{"negative":2}`), []byte(`{"high":2}`), []byte(`{"delivery":2}`),
			key, started, started.Add(time.Second),
		}},
	}
}

func columns(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("c%d", i)
	}
	return out
}

func TestSubmitPersistsResult(t *testing.T) {
	store := storage.NewMemory()
	fdb, sys := newRepo(t, store)

	acc, err := sys.Submit(context.Background(), submission(2))
	require.NoError(t, err)
	assert.Equal(t, batches.StatusRunning, acc.Status)

	inserts := fdb.execsMatching("INSERT INTO batches")
	require.Len(t, inserts, 1)
	assert.Equal(t, acc.ID.String(), inserts[0].args[0])
	assert.Equal(t, "running", inserts[0].args[1])

	updates := fdb.execsMatching(summaryUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "completed", updates[0].args[1])
	assert.Equal(t, int64(2), updates[0].args[3], "processed")

	assert.Len(t, fdb.execsMatching(outcomeInsert), 2)
	assert.Equal(t, 1, fdb.commits)
	assert.Zero(t, fdb.rollbacks)

	key := batches.ArchiveKey(acc.ID)
	_, err = store.Find(context.Background(), key)
	require.NoError(t, err, "result archived")

	archived := fdb.execsMatching("SET archive_key")
	require.Len(t, archived, 1)
	assert.Equal(t, key, archived[0].args[0])
}

func TestSubmitMarksInterruptedWhenOutcomesFail(t *testing.T) {
	store := storage.NewMemory()
	fdb, sys := newRepo(t, store)
	fdb.failOn = outcomeInsert

	acc, err := sys.Submit(context.Background(), submission(3))
	require.NoError(t, err)

	assert.Zero(t, fdb.commits)
	assert.Equal(t, 1, fdb.rollbacks)

	updates := fdb.execsMatching(summaryUpdate)
	require.Len(t, updates, 2)
	assert.Equal(t, "completed", updates[0].args[1], "transactional update")
	assert.Equal(t, "interrupted", updates[1].args[1], "fallback summary")
	assert.Equal(t, int64(3), updates[1].args[2], "completed count kept")
	assert.Equal(t, int64(0), updates[1].args[8], "nothing left unprocessed")

	_, err = store.Find(context.Background(), batches.ArchiveKey(acc.ID))
	assert.NoError(t, err, "report still archived")
	assert.Len(t, fdb.execsMatching("SET archive_key"), 1)
}

func TestSubmitSummaryWriteFails(t *testing.T) {
	store := storage.NewMemory()
	fdb, sys := newRepo(t, store)
	fdb.failOn = summaryUpdate

	acc, err := sys.Submit(context.Background(), submission(1))
	require.NoError(t, err)

	assert.Len(t, fdb.execsMatching(summaryUpdate), 2)
	assert.Empty(t, fdb.execsMatching("SET archive_key"))

	_, err = store.Find(context.Background(), batches.ArchiveKey(acc.ID))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSubmitConcurrency(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"configured default", 0, 2},
		{"lower than default", 1, 1},
		{"capped at maximum", 500, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fdb, sys := newRepo(t, storage.NewMemory())

			cmd := submission(1)
			cmd.Concurrency = tt.requested

			acc, err := sys.Submit(context.Background(), cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, acc.Concurrency)

			inserts := fdb.execsMatching("INSERT INTO batches")
			require.Len(t, inserts, 1)
			assert.Equal(t, int64(tt.want), inserts[0].args[3])
		})
	}
}

func TestSubmitValidation(t *testing.T) {
	fdb, sys := newRepo(t, storage.NewMemory())

	_, err := sys.Submit(context.Background(), batches.SubmitCommand{})
	assert.ErrorIs(t, err, batches.ErrEmptyBatch)

	_, err = sys.Submit(context.Background(), submission(batches.MaxReviews+1))
	assert.ErrorIs(t, err, batches.ErrTooLarge)

	assert.Empty(t, fdb.execsMatching("INSERT INTO batches"))
}

func TestRecover(t *testing.T) {
	fdb, sys := newRepo(t, storage.NewMemory())
	fdb.affected["started_at < $3"] = 3

	n, err := sys.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	execs := fdb.execsMatching("started_at < $3")
	require.Len(t, execs, 1)
	assert.Equal(t, "interrupted", execs[0].args[0])
	assert.Equal(t, "running", execs[0].args[1])

	cutoff, ok := execs[0].args[2].(time.Time)
	require.True(t, ok)
	assert.False(t, cutoff.After(time.Now()))
}

func TestRecoverError(t *testing.T) {
	fdb, sys := newRepo(t, storage.NewMemory())
	fdb.failOn = "started_at < $3"

	_, err := sys.Recover(context.Background())
	assert.ErrorIs(t, err, errFakeExec)
}

func TestInterruptedBatch(t *testing.T) {
	fdb, sys := newRepo(t, storage.NewMemory())
	id := uuid.New()
	fdb.rows[findBatch] = batchRow(id, batches.StatusInterrupted, nil)

	b, err := sys.Find(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, batches.StatusInterrupted, b.Status)
	assert.Equal(t, map[string]int{"negative": 2}, b.Sentiment)

	_, err = sys.Outcomes(context.Background(), id, pagination.PageRequest{}, batches.OutcomeFilters{})
	assert.ErrorIs(t, err, batches.ErrInterrupted)

	_, err = sys.Report(context.Background(), id)
	assert.ErrorIs(t, err, batches.ErrNoArchive)

	assert.ErrorIs(t, sys.Cancel(context.Background(), id), batches.ErrNotRunning)
}

func TestFindMissing(t *testing.T) {
	_, sys := newRepo(t, storage.NewMemory())

	_, err := sys.Find(context.Background(), uuid.New())
	assert.ErrorIs(t, err, batches.ErrNotFound)
}

func TestOutcomesReadBackStoredRows(t *testing.T) {
	fdb, sys := newRepo(t, storage.NewMemory())

	acc, err := sys.Submit(context.Background(), submission(2))
	require.NoError(t, err)

	inserted := fdb.execsMatching(outcomeInsert)
	require.Len(t, inserted, 2)

	stored := fakeRows{cols: columns(20)}
	for _, e := range inserted {
		stored.vals = append(stored.vals, e.args)
	}
	fdb.rows[findBatch] = batchRow(acc.ID, batches.StatusCompleted, nil)
	fdb.rows[countOutcomes] = fakeRows{cols: columns(1), vals: [][]driver.Value{{int64(2)}}}
	fdb.rows[pageOutcomes] = stored

	page, err := sys.Outcomes(context.Background(), acc.ID, pagination.PageRequest{Page: 1}, batches.OutcomeFilters{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Data, 2)

	for _, o := range page.Data {
		assert.Equal(t, acc.ID, o.BatchID)
		assert.Equal(t, reviews.StatusProcessed, o.Status)
		assert.Equal(t, reviews.DispositionResponded, o.Disposition)
		require.NotNil(t, o.Sentiment)
		assert.Equal(t, "negative", *o.Sentiment)
		require.NotNil(t, o.ShouldRespond)
		assert.True(t, *o.ShouldRespond)
		require.NotNil(t, o.MessageID)
		assert.Equal(t, "msg-"+o.RecordID.String(), *o.MessageID)
		assert.Equal(t, []string{"delivery"}, o.Categories)
		assert.Equal(t, 1, o.Attempts)
		assert.Len(t, o.Path, 8)
		assert.Nil(t, o.Error)
	}
}

func TestStats(t *testing.T) {
	fdb, sys := newRepo(t, storage.NewMemory())
	fdb.rows["COALESCE(SUM(submitted)"] = fakeRows{
		cols: columns(7),
		vals: [][]driver.Value{{int64(3), int64(10), int64(7), int64(1), int64(2), int64(2), int64(5)}},
	}
	fdb.rows["GROUP BY sentiment"] = fakeRows{
		cols: columns(2),
		vals: [][]driver.Value{{"negative", int64(6)}, {"positive", int64(3)}},
	}
	fdb.rows["GROUP BY urgency"] = fakeRows{
		cols: columns(2),
		vals: [][]driver.Value{{"high", int64(4)}, {"low", int64(5)}},
	}
	fdb.rows["jsonb_array_elements_text"] = fakeRows{
		cols: columns(2),
		vals: [][]driver.Value{{"delivery", int64(4)}, {"service", int64(2)}},
	}

	s, err := sys.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, s.Batches)
	assert.Equal(t, 10, s.Reviews)
	assert.Equal(t, 7, s.Processed)
	assert.Equal(t, 5, s.MessagesSent)
	assert.InDelta(t, 70.0, s.SuccessRate, 0.001)
	assert.InDelta(t, 71.43, s.ResponseRate, 0.001)
	assert.Equal(t, map[string]int{"negative": 6, "positive": 3}, s.Sentiment)
	assert.Equal(t, map[string]int{"high": 4, "low": 5}, s.Urgency)
	assert.Equal(t, []batches.CategoryCount{{Category: "delivery", Count: 4}, {Category: "service", Count: 2}}, s.TopCategories)
	assert.Zero(t, s.Running)
}

func TestDelete(t *testing.T) {
	t.Run("removes row and archive", func(t *testing.T) {
		store := storage.NewMemory()
		fdb, sys := newRepo(t, store)
		id := uuid.New()
		key := batches.ArchiveKey(id)

		require.NoError(t, store.Upload(context.Background(), key, strings.NewReader(`{}`), "application/json"))
		fdb.rows[findBatch] = batchRow(id, batches.StatusCompleted, &key)

		require.NoError(t, sys.Delete(context.Background(), id))

		deletes := fdb.execsMatching("DELETE FROM batches")
		require.Len(t, deletes, 1)
		assert.Equal(t, id.String(), deletes[0].args[0])

		_, err := store.Find(context.Background(), key)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("missing archive is ignored", func(t *testing.T) {
		fdb, sys := newRepo(t, storage.NewMemory())
		id := uuid.New()
		key := batches.ArchiveKey(id)
		fdb.rows[findBatch] = batchRow(id, batches.StatusCompleted, &key)

		assert.NoError(t, sys.Delete(context.Background(), id))
	})

	t.Run("row already gone", func(t *testing.T) {
		fdb, sys := newRepo(t, storage.NewMemory())
		id := uuid.New()
		fdb.rows[findBatch] = batchRow(id, batches.StatusCompleted, nil)
		fdb.affected["DELETE FROM batches"] = 0

		err := sys.Delete(context.Background(), id)
		assert.True(t, errors.Is(err, batches.ErrNotFound), "got %v", err)
	})
}

func TestReportDownloadsArchive(t *testing.T) {
	store := storage.NewMemory()
	fdb, sys := newRepo(t, store)
	id := uuid.New()
	key := batches.ArchiveKey(id)

	require.NoError(t, store.Upload(context.Background(), key, strings.NewReader(`{"submitted":2}`), "application/json"))
	fdb.rows[findBatch] = batchRow(id, batches.StatusCompleted, &key)

	res, err := sys.Report(context.Background(), id)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"submitted":2}`, string(body))
}
