// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, review pipeline)
// that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/rapport/internal/config"
	"github.com/JaimeStill/rapport/pkg/database"
	"github.com/JaimeStill/rapport/pkg/lifecycle"
	"github.com/JaimeStill/rapport/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Pipeline  *Pipeline
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	pipeline, err := NewPipeline(lc.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Pipeline:  pipeline,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}

	i.Lifecycle.OnStartup(func() {
		if err := i.Pipeline.Dispatcher.Ping(i.Lifecycle.Context()); err != nil {
			i.Logger.Warn("mail delivery unreachable", "error", err)
		}
	})

	i.Lifecycle.OnShutdown(func() {
		<-i.Lifecycle.Context().Done()
		if err := i.Pipeline.Close(); err != nil {
			i.Logger.Error("inference provider close failed", "error", err)
		}
	})

	return nil
}
