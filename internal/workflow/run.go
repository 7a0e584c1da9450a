package workflow

import (
	"fmt"
	"time"

	"github.com/JaimeStill/rapport/internal/reviews"
)

// run tracks one record through the pipeline states.
type run struct {
	state   reviews.State
	outcome reviews.Outcome
}

func newRun(r reviews.Record) *run {
	return &run{
		state: reviews.StateReceived,
		outcome: reviews.Outcome{
			Record:    r,
			Path:      []reviews.State{reviews.StateReceived},
			StartedAt: time.Now(),
		},
	}
}

// advance moves to the next state. An illegal transition is a programming
// error in the pipeline itself.
func (x *run) advance(to reviews.State) {
	if !reviews.CanTransition(x.state, to) {
		panic(fmt.Sprintf("illegal pipeline transition %s -> %s", x.state, to))
	}
	x.state = to
	x.outcome.Path = append(x.outcome.Path, to)
}

// finish walks to done when the current state allows it and seals the outcome.
func (x *run) finish(status reviews.Status, err error) reviews.Outcome {
	if reviews.CanTransition(x.state, reviews.StateDone) {
		x.advance(reviews.StateDone)
	}
	x.outcome.Status = status
	if err != nil {
		x.outcome.Error = err.Error()
	}
	x.outcome.CompletedAt = time.Now()
	return x.outcome
}

// abort converts an unexpected failure at any point into a terminal outcome
// without re-entering advance.
func (x *run) abort(err error) reviews.Outcome {
	switch {
	case x.outcome.Classification == nil:
		if x.state != reviews.StateClassificationFailed {
			x.state = reviews.StateClassificationFailed
			x.outcome.Path = append(x.outcome.Path, x.state)
		}
		x.outcome.Classification = nil
		x.outcome.Decision = nil
		x.outcome.Dispatch = nil
		x.outcome.Status = reviews.StatusClassificationFailed
	case x.state == reviews.StateDone:
		x.outcome.CompletedAt = time.Now()
		return x.outcome
	case x.state == reviews.StateDispatched, x.state == reviews.StateNoResponseNeeded:
		return x.finish(reviews.StatusProcessed, nil)
	default:
		if x.state != reviews.StateDispatchFailed {
			x.outcome.Path = append(x.outcome.Path, reviews.StateDispatchFailed)
		}
		x.state = reviews.StateDone
		x.outcome.Path = append(x.outcome.Path, reviews.StateDone)
		if x.outcome.Dispatch == nil || x.outcome.Dispatch.Sent() {
			attempts := 0
			if x.outcome.Dispatch != nil {
				attempts = x.outcome.Dispatch.Attempts
			}
			x.outcome.Dispatch = &reviews.DispatchResult{
				Status:   reviews.DispatchFailed,
				Attempts: attempts,
			}
		}
		x.outcome.Dispatch.LastError = err.Error()
		x.outcome.Status = reviews.StatusDispatchFailed
	}
	x.outcome.Error = err.Error()
	x.outcome.CompletedAt = time.Now()
	return x.outcome
}
