package workflow

import (
	"context"
	"log/slog"

	"github.com/JaimeStill/rapport/internal/reviews"
)

// Classifier derives a classification for one record.
type Classifier interface {
	Classify(ctx context.Context, r reviews.Record) (reviews.Classification, error)
}

// Composer renders the response message for a classified record.
type Composer interface {
	Compose(r reviews.Record, cl reviews.Classification) (*reviews.Message, error)
}

// Dispatcher delivers a composed message.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *reviews.Message) (reviews.DispatchResult, error)
}

// Runtime bundles the collaborators a pipeline run requires.
// It is constructed by higher-level composition code from Infrastructure.
type Runtime struct {
	Classifier Classifier
	Composer   Composer
	Dispatcher Dispatcher
	Logger     *slog.Logger
}
