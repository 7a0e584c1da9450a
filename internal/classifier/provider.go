package classifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// FromConfig builds a Classifier over the configured provider. The returned
// closer releases provider resources and is never nil.
func FromConfig(ctx context.Context, cfg *Config, logger *slog.Logger) (*Classifier, io.Closer, error) {
	switch cfg.Provider {
	case ProviderGemini:
		g, err := NewGeminiInference(ctx, &cfg.Gemini)
		if err != nil {
			return nil, nil, err
		}
		return New(g, cfg, logger), g, nil
	case ProviderAgent:
		a, err := NewAgentInference(&cfg.Agent)
		if err != nil {
			return nil, nil, err
		}
		return New(a, cfg, logger), closerFunc(func() error { return nil }), nil
	default:
		return nil, nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
