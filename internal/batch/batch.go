// Package batch runs the review pipeline over a batch of records under
// bounded concurrency and folds the outcomes into a single Result.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/rapport/internal/reviews"
	"github.com/JaimeStill/rapport/internal/workflow"
)

// Pipeline runs one record to a terminal outcome. workflow.Execute bound
// to a Runtime satisfies it.
type Pipeline func(ctx context.Context, r reviews.Record) reviews.Outcome

// Coordinator runs batches. A single Coordinator may run several batches
// concurrently; each Run owns its own Result.
type Coordinator struct {
	pipeline       Pipeline
	concurrency    int
	maxConcurrency int
	timeout        time.Duration
	logger         *slog.Logger
}

// New creates a Coordinator that runs records through the workflow runtime.
func New(rt *workflow.Runtime, cfg *Config, logger *slog.Logger) *Coordinator {
	return NewWithPipeline(func(ctx context.Context, r reviews.Record) reviews.Outcome {
		return workflow.Execute(ctx, rt, r)
	}, cfg, logger)
}

// NewWithPipeline creates a Coordinator around an arbitrary pipeline.
func NewWithPipeline(p Pipeline, cfg *Config, logger *slog.Logger) *Coordinator {
	concurrency := max(cfg.Concurrency, 1)
	return &Coordinator{
		pipeline:       p,
		concurrency:    concurrency,
		maxConcurrency: max(cfg.MaxConcurrency, concurrency),
		timeout:        cfg.TimeoutDuration(),
		logger:         logger.With("system", "batch"),
	}
}

// Concurrency returns the default in-flight limit.
func (c *Coordinator) Concurrency() int {
	return c.concurrency
}

// Limit resolves a requested in-flight limit: zero or less selects the
// default, anything above the configured maximum is capped.
func (c *Coordinator) Limit(requested int) int {
	if requested <= 0 {
		return c.concurrency
	}
	return min(requested, c.maxConcurrency)
}

type options struct {
	id         uuid.UUID
	onProgress func(Progress)
}

// Option configures a single Run.
type Option func(*options)

// WithID assigns the batch id instead of generating one.
func WithID(id uuid.UUID) Option {
	return func(o *options) { o.id = id }
}

// OnProgress registers a callback invoked after each outcome is folded in.
// Calls are serialized on the aggregating goroutine; a slow callback slows
// aggregation but never the pipelines already running.
func OnProgress(fn func(Progress)) Option {
	return func(o *options) { o.onProgress = fn }
}

// Run executes the pipeline for every record with at most limit pipelines
// in flight. A limit <= 0 uses the configured concurrency and a limit
// above the configured maximum is capped.
//
// Cancelling ctx, or reaching the batch timeout, stops new records from
// starting. Pipelines already started run to their terminal outcome.
// Every started record contributes exactly one outcome.
func (c *Coordinator) Run(ctx context.Context, records []reviews.Record, limit int, opts ...Option) *Result {
	o := options{id: uuid.New()}
	for _, opt := range opts {
		opt(&o)
	}

	workers := max(min(c.Limit(limit), len(records)), 1)

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	pipelineCtx := context.WithoutCancel(ctx)

	logger := c.logger.With("batch_id", o.id)
	logger.Info("batch started", "records", len(records), "concurrency", workers)

	result := newResult(o.id, len(records))
	outcomes := make(chan reviews.Outcome, workers)
	aggregated := make(chan struct{})

	go func() {
		defer close(aggregated)
		for out := range outcomes {
			result.add(out)
			if o.onProgress != nil {
				o.onProgress(result.progress(&out))
			}
		}
	}()

	var skipped atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, r := range records {
		if runCtx.Err() != nil {
			skipped.Add(int64(len(records) - i))
			break
		}
		g.Go(func() error {
			if runCtx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			outcomes <- c.pipeline(pipelineCtx, r)
			return nil
		})
	}

	g.Wait()
	close(outcomes)
	<-aggregated

	cancelled := skipped.Load() > 0
	result.finalize(cancelled)

	attrs := []any{
		"submitted", result.Submitted,
		"completed", result.Completed,
		"processed", result.Processed,
		"classification_failed", result.ClassificationFailed,
		"dispatch_failed", result.DispatchFailed,
		"messages_sent", result.MessagesSent,
		"duration", result.Duration(),
	}

	if cancelled {
		reason := "cancelled"
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			reason = "timeout"
		}
		logger.Warn("batch stopped early", append(attrs, "reason", reason, "unprocessed", result.Unprocessed)...)
	} else {
		logger.Info("batch finished", attrs...)
	}

	return result
}
