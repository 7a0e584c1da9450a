package batches

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/internal/reviews"
	"github.com/JaimeStill/rapport/pkg/pagination"
	"github.com/JaimeStill/rapport/pkg/query"
	"github.com/JaimeStill/rapport/pkg/repository"
	"github.com/JaimeStill/rapport/pkg/storage"
)

// MaxReviews bounds the size of a single batch submission.
const MaxReviews = 5000

const persistTimeout = 30 * time.Second

// Launcher starts fn in the background. lifecycle.Coordinator.Go satisfies
// it, which makes shutdown wait for running batches.
type Launcher func(fn func(ctx context.Context))

type repo struct {
	db         *sql.DB
	coord      *batch.Coordinator
	store      storage.System
	launch     Launcher
	runs       *registry
	logger     *slog.Logger
	pagination pagination.Config
	booted     time.Time
}

// New creates a batch repository implementing the System interface.
func New(
	db *sql.DB,
	coord *batch.Coordinator,
	store storage.System,
	launch Launcher,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		coord:      coord,
		store:      store,
		launch:     launch,
		runs:       newRegistry(),
		logger:     logger.With("system", "batches"),
		pagination: pagination,
		booted:     time.Now(),
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) Submit(ctx context.Context, cmd SubmitCommand) (*Accepted, error) {
	source := cmd.Source
	if source == "" {
		source = "api"
	}
	return r.start(ctx, cmd.Records(), cmd.Concurrency, source)
}

func (r *repo) Upload(ctx context.Context, cmd UploadCommand) (*Accepted, error) {
	if cmd.Parsed == nil || len(cmd.Parsed.Records) == 0 {
		return nil, ErrEmptyBatch
	}

	accepted, err := r.start(ctx, cmd.Parsed.Records, cmd.Concurrency, cmd.Filename)
	if err != nil {
		return nil, err
	}
	accepted.RowErrors = cmd.Parsed.Errors
	return accepted, nil
}

func (r *repo) start(ctx context.Context, records []reviews.Record, limit int, source string) (*Accepted, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(records) > MaxReviews {
		return nil, fmt.Errorf("%w: %d reviews, limit %d", ErrTooLarge, len(records), MaxReviews)
	}
	limit = r.coord.Limit(limit)

	id := uuid.New()

	if err := r.insertRunning(ctx, id, source, len(records), limit); err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	stop, cancel := context.WithCancel(context.Background())
	live := newRun(id, source, len(records), limit, cancel)
	r.runs.add(live)

	r.launch(func(taskCtx context.Context) {
		defer cancel()

		runCtx, stopRun := context.WithCancel(taskCtx)
		defer stopRun()
		release := context.AfterFunc(stop, stopRun)
		defer release()

		result := r.coord.Run(runCtx, records, limit, batch.WithID(id), batch.OnProgress(live.publish))

		persistCtx, done := context.WithTimeout(context.WithoutCancel(taskCtx), persistTimeout)
		defer done()
		r.persist(persistCtx, result, source, limit)

		r.runs.remove(id)
		live.finish()
	})

	r.logger.Info("batch accepted", "id", id, "reviews", len(records), "concurrency", limit, "source", source)

	return &Accepted{
		ID:          id,
		Status:      StatusRunning,
		Submitted:   len(records),
		Concurrency: limit,
	}, nil
}

func (r *repo) insertRunning(ctx context.Context, id uuid.UUID, source string, submitted, concurrency int) error {
	q := `
		INSERT INTO batches (id, status, source, concurrency, submitted, unprocessed, started_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6)`

	_, err := r.db.ExecContext(ctx, q, id, StatusRunning, source, concurrency, submitted, time.Now())
	return err
}

// Recover marks batches left running by an earlier process as
// interrupted. Batches started by this process are never touched.
func (r *repo) Recover(ctx context.Context) (int64, error) {
	q := `
		UPDATE batches SET status = $1, completed_at = NOW()
		WHERE status = $2 AND started_at < $3`

	result, err := r.db.ExecContext(ctx, q, StatusInterrupted, StatusRunning, r.booted)
	if err != nil {
		return 0, fmt.Errorf("recover batches: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recover batches: %w", err)
	}
	if n > 0 {
		r.logger.Warn("interrupted batches recovered", "count", n)
	}
	return n, nil
}

// persist stores the final summary and every outcome in one transaction,
// then archives the full result document. When the outcomes cannot be
// stored the summary alone is written with StatusInterrupted so the row
// never stays running. Failures are logged only.
func (r *repo) persist(ctx context.Context, res *batch.Result, source string, concurrency int) {
	summary := fromResult(res, source, concurrency)

	if err := r.save(ctx, summary, res); err != nil {
		r.logger.Error("persist batch failed", "id", res.ID, "error", err)

		summary.Status = StatusInterrupted
		if err := r.updateBatch(ctx, r.db, summary); err != nil {
			r.logger.Error("mark batch interrupted failed", "id", res.ID, "error", err)
			return
		}
	}

	key, err := r.archive(ctx, res)
	if err != nil {
		r.logger.Error("archive batch failed", "id", res.ID, "error", err)
		return
	}

	if err := repository.ExecExpectOne(ctx, r.db,
		"UPDATE batches SET archive_key = $1 WHERE id = $2", key, res.ID,
	); err != nil {
		r.logger.Error("record archive key failed", "id", res.ID, "error", err)
		return
	}

	r.logger.Info("batch persisted", "id", res.ID, "status", summary.Status, "outcomes", len(res.Outcomes), "archive", key)
}

func (r *repo) updateBatch(ctx context.Context, e repository.Executor, b Batch) error {
	sentiment, err := json.Marshal(b.Sentiment)
	if err != nil {
		return fmt.Errorf("marshal sentiment: %w", err)
	}
	urgency, err := json.Marshal(b.Urgency)
	if err != nil {
		return fmt.Errorf("marshal urgency: %w", err)
	}
	categories, err := json.Marshal(b.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	q := `
		UPDATE batches SET
			status = $2, completed = $3, processed = $4,
			classification_failed = $5, dispatch_failed = $6, no_response = $7,
			messages_sent = $8, unprocessed = $9, success_rate = $10,
			response_rate = $11, sentiment = $12, urgency = $13,
			categories = $14, started_at = $15, completed_at = $16
		WHERE id = $1`

	if err := repository.ExecExpectOne(ctx, e, q,
		b.ID, b.Status, b.Completed, b.Processed,
		b.ClassificationFailed, b.DispatchFailed, b.NoResponse,
		b.MessagesSent, b.Unprocessed, b.SuccessRate,
		b.ResponseRate, sentiment, urgency,
		categories, b.StartedAt, b.CompletedAt,
	); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

func (r *repo) save(ctx context.Context, b Batch, res *batch.Result) error {
	insertQ := `
		INSERT INTO batch_outcomes (
			id, batch_id, record_id, customer_name, customer_email,
			status, disposition, sentiment, urgency, confidence,
			categories, should_respond, reason, dispatch_status, attempts,
			message_id, error, path, started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	rows := make([][]any, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		out := fromOutcome(res.ID, o)
		cats, err := json.Marshal(out.Categories)
		if err != nil {
			return fmt.Errorf("marshal outcome categories: %w", err)
		}
		path, err := json.Marshal(out.Path)
		if err != nil {
			return fmt.Errorf("marshal outcome path: %w", err)
		}
		rows = append(rows, []any{
			out.ID, out.BatchID, out.RecordID, out.CustomerName, out.CustomerEmail,
			out.Status, out.Disposition, out.Sentiment, out.Urgency, out.Confidence,
			cats, out.ShouldRespond, out.Reason, out.DispatchStatus, out.Attempts,
			out.MessageID, out.Error, path, out.StartedAt, out.CompletedAt,
		})
	}

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (int64, error) {
		if err := r.updateBatch(ctx, tx, b); err != nil {
			return 0, err
		}

		n, err := repository.ExecEach(ctx, tx, insertQ, rows)
		if err != nil {
			return n, fmt.Errorf("insert outcomes: %w", err)
		}
		return n, nil
	})

	return err
}

// ArchivePrefix is the storage prefix under which finished batch results
// are archived.
const ArchivePrefix = "batches/"

// ArchiveKey returns the storage key of a batch's archived result.
func ArchiveKey(id uuid.UUID) string {
	return ArchivePrefix + id.String() + ".json"
}

// ParseArchiveKey extracts the batch id from an archive key. Keys outside
// ArchivePrefix or not named after a batch id are rejected.
func ParseArchiveKey(key string) (uuid.UUID, bool) {
	name, ok := strings.CutPrefix(key, ArchivePrefix)
	if !ok {
		return uuid.Nil, false
	}
	name, ok = strings.CutSuffix(name, ".json")
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(name)
	if err != nil || ArchiveKey(id) != key {
		return uuid.Nil, false
	}
	return id, true
}

func (r *repo) archive(ctx context.Context, res *batch.Result) (string, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	key := ArchiveKey(res.ID)
	if err := r.store.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Batch], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(batchProjection, batchDefaultSort).
		WhereSearch(page.Search, "Source")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count batches: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanBatch)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}

	// stored rows of running batches only carry their submission counts
	for i := range items {
		if live, ok := r.runs.get(items[i].ID); ok {
			items[i] = live.snapshot()
		}
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Batch, error) {
	if live, ok := r.runs.get(id); ok {
		b := live.snapshot()
		return &b, nil
	}

	q, args := query.NewBuilder(batchProjection).BuildSingle("ID", id)

	b, err := repository.QueryOne(ctx, r.db, q, args, scanBatch)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &b, nil
}

func (r *repo) Watch(ctx context.Context, id uuid.UUID) (<-chan batch.Progress, error) {
	live, ok := r.runs.get(id)
	if !ok {
		if _, err := r.Find(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotRunning
	}

	updates, release := live.subscribe()
	out := make(chan batch.Progress)

	go func() {
		defer close(out)
		defer release()
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-updates:
				if !ok {
					return
				}
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *repo) Cancel(ctx context.Context, id uuid.UUID) error {
	live, ok := r.runs.get(id)
	if !ok {
		if _, err := r.Find(ctx, id); err != nil {
			return err
		}
		return ErrNotRunning
	}

	live.cancel()
	r.logger.Info("batch cancellation requested", "id", id)
	return nil
}

func (r *repo) Outcomes(
	ctx context.Context,
	id uuid.UUID,
	page pagination.PageRequest,
	filters OutcomeFilters,
) (*pagination.PageResult[Outcome], error) {
	if _, ok := r.runs.get(id); ok {
		return nil, ErrRunning
	}
	b, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == StatusInterrupted {
		return nil, ErrInterrupted
	}

	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(outcomeProjection, outcomeDefaultSort).
		WhereEquals("BatchID", id).
		WhereSearch(page.Search, "CustomerName", "CustomerEmail")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanOutcome)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{
		Running:       r.runs.count(),
		Sentiment:     map[string]int{},
		Urgency:       map[string]int{},
		TopCategories: []CategoryCount{},
	}

	totalsQ := `
		SELECT COUNT(*),
			COALESCE(SUM(submitted), 0), COALESCE(SUM(processed), 0),
			COALESCE(SUM(classification_failed), 0), COALESCE(SUM(dispatch_failed), 0),
			COALESCE(SUM(no_response), 0), COALESCE(SUM(messages_sent), 0)
		FROM batches
		WHERE status <> 'running'`

	if err := r.db.QueryRowContext(ctx, totalsQ).Scan(
		&s.Batches, &s.Reviews, &s.Processed,
		&s.ClassificationFailed, &s.DispatchFailed,
		&s.NoResponse, &s.MessagesSent,
	); err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}

	s.SuccessRate = percent(s.Processed, s.Reviews)
	s.ResponseRate = percent(s.MessagesSent, s.MessagesSent+s.DispatchFailed)

	if err := r.countBy(ctx, "sentiment", s.Sentiment); err != nil {
		return nil, err
	}
	if err := r.countBy(ctx, "urgency", s.Urgency); err != nil {
		return nil, err
	}

	catQ := `
		SELECT c.category, COUNT(*)
		FROM batch_outcomes o, jsonb_array_elements_text(o.categories) AS c(category)
		GROUP BY c.category
		ORDER BY COUNT(*) DESC, c.category
		LIMIT 10`

	cats, err := repository.QueryMany(ctx, r.db, catQ, nil, func(sc repository.Scanner) (CategoryCount, error) {
		var c CategoryCount
		err := sc.Scan(&c.Category, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	s.TopCategories = cats

	return s, nil
}

// countBy tallies outcomes grouped by a classification column.
func (r *repo) countBy(ctx context.Context, column string, into map[string]int) error {
	q := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*)
		FROM batch_outcomes
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s`, column)

	type pair struct {
		key   string
		count int
	}

	rows, err := repository.QueryMany(ctx, r.db, q, nil, func(s repository.Scanner) (pair, error) {
		var p pair
		err := s.Scan(&p.key, &p.count)
		return p, err
	})
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}

	for _, p := range rows {
		into[p.key] = p.count
	}
	return nil
}

func (r *repo) Report(ctx context.Context, id uuid.UUID) (*storage.BlobResult, error) {
	b, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == StatusRunning {
		return nil, ErrRunning
	}
	if b.ArchiveKey == nil {
		return nil, ErrNoArchive
	}

	return r.store.Download(ctx, *b.ArchiveKey)
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.runs.get(id); ok {
		return ErrRunning
	}

	b, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	if err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM batches WHERE id = $1", id); err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if b.ArchiveKey != nil {
		if err := r.store.Delete(ctx, *b.ArchiveKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("delete archived report failed", "id", id, "key", *b.ArchiveKey, "error", err)
		}
	}

	r.logger.Info("batch deleted", "id", id)
	return nil
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*10000) / 100
}
