package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/internal/classifier"
	"github.com/JaimeStill/rapport/internal/composer"
	"github.com/JaimeStill/rapport/internal/config"
	"github.com/JaimeStill/rapport/internal/dispatcher"
	"github.com/JaimeStill/rapport/internal/workflow"
)

// Pipeline holds the review processing components built from configuration.
// It is shared by the HTTP service and the CLI.
type Pipeline struct {
	Classifier  *classifier.Classifier
	Composer    *composer.Composer
	Dispatcher  *dispatcher.Dispatcher
	Runtime     *workflow.Runtime
	Coordinator *batch.Coordinator

	closer io.Closer
}

// NewPipeline builds the classifier, composer, and dispatcher for the
// configured providers and assembles the batch coordinator around them.
func NewPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	cl, closer, err := classifier.FromConfig(ctx, &cfg.Inference, logger)
	if err != nil {
		return nil, fmt.Errorf("classifier init failed: %w", err)
	}

	comp, err := composer.FromConfig(&cfg.Pipeline.Templates)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("composer init failed: %w", err)
	}

	disp, err := dispatcher.FromConfig(&cfg.Mail, logger)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("dispatcher init failed: %w", err)
	}

	rt := &workflow.Runtime{
		Classifier: cl,
		Composer:   comp,
		Dispatcher: disp,
		Logger:     logger,
	}

	return &Pipeline{
		Classifier:  cl,
		Composer:    comp,
		Dispatcher:  disp,
		Runtime:     rt,
		Coordinator: batch.New(rt, &cfg.Pipeline.Batch, logger),
		closer:      closer,
	}, nil
}

// Close releases inference provider resources.
func (p *Pipeline) Close() error {
	return p.closer.Close()
}
