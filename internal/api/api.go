// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/rapport/internal/config"
	"github.com/JaimeStill/rapport/internal/infrastructure"
	"github.com/JaimeStill/rapport/pkg/middleware"
	"github.com/JaimeStill/rapport/pkg/module"
	"github.com/JaimeStill/rapport/pkg/routes"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	runtime.Lifecycle.OnStartup(func() {
		if _, err := domain.Batches.Recover(runtime.Lifecycle.Context()); err != nil {
			runtime.Logger.Error("batch recovery failed", "error", err)
		}
	})

	mux := http.NewServeMux()
	groups := registerRoutes(mux, domain, cfg, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	for _, p := range routes.Patterns(groups...) {
		runtime.Logger.Debug("route registered", "pattern", p, "base", cfg.API.BasePath)
	}

	return m, nil
}
