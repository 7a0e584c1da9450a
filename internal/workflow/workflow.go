// Package workflow runs the per-record pipeline:
// classify, decide, compose, dispatch.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/JaimeStill/rapport/internal/policy"
	"github.com/JaimeStill/rapport/internal/reviews"
)

// ErrPanic marks an outcome produced by recovering from a panic in a collaborator.
var ErrPanic = errors.New("pipeline panic")

// Execute runs the pipeline for a single record. It never returns an error
// and never panics: every failure is captured in the outcome's status.
// Stages run strictly in order; only Classify and Dispatch block.
func Execute(ctx context.Context, rt *Runtime, r reviews.Record) (outcome reviews.Outcome) {
	x := newRun(r)
	logger := rt.Logger.With("record_id", r.ID)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: %v", ErrPanic, p)
			logger.ErrorContext(ctx, "pipeline recovered from panic", "state", x.state, "error", err)
			outcome = x.abort(err)
		}
	}()

	x.advance(reviews.StateClassifying)

	if err := r.Validate(); err != nil {
		x.advance(reviews.StateClassificationFailed)
		logger.WarnContext(ctx, "record rejected", "error", err)
		return x.finish(reviews.StatusClassificationFailed, err)
	}

	cl, err := rt.Classifier.Classify(ctx, r)
	if err != nil {
		x.advance(reviews.StateClassificationFailed)
		logger.WarnContext(ctx, "classification failed", "error", err)
		return x.finish(reviews.StatusClassificationFailed, err)
	}

	x.outcome.Classification = &cl
	x.advance(reviews.StateClassified)

	x.advance(reviews.StateDeciding)
	decision := policy.Decide(cl)
	x.outcome.Decision = &decision

	if !decision.ShouldRespond {
		x.advance(reviews.StateNoResponseNeeded)
		logger.DebugContext(ctx, "no response needed",
			"sentiment", cl.Sentiment,
			"urgency", cl.Urgency,
			"reason", decision.Reason,
		)
		return x.finish(reviews.StatusProcessed, nil)
	}

	x.advance(reviews.StateComposing)
	msg, err := rt.Composer.Compose(r, cl)
	if err != nil {
		x.advance(reviews.StateDispatchFailed)
		x.outcome.Dispatch = &reviews.DispatchResult{
			Status:    reviews.DispatchFailed,
			LastError: err.Error(),
		}
		logger.ErrorContext(ctx, "composition failed", "error", err)
		return x.finish(reviews.StatusDispatchFailed, err)
	}

	x.advance(reviews.StateDispatching)
	result, err := rt.Dispatcher.Dispatch(ctx, msg)
	x.outcome.Dispatch = &result

	if err != nil || !result.Sent() {
		if err == nil {
			err = errors.New(result.LastError)
		}
		x.advance(reviews.StateDispatchFailed)
		logger.WarnContext(ctx, "dispatch failed",
			"attempts", result.Attempts,
			"error", err,
		)
		return x.finish(reviews.StatusDispatchFailed, err)
	}

	x.advance(reviews.StateDispatched)
	logger.InfoContext(ctx, "response dispatched",
		"message_id", result.MessageID,
		"template", msg.Template,
		"attempts", result.Attempts,
	)
	return x.finish(reviews.StatusProcessed, nil)
}
