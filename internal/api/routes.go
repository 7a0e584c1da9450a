package api

import (
	"net/http"

	"github.com/JaimeStill/rapport/internal/config"
	"github.com/JaimeStill/rapport/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) []routes.Group {
	groups := []routes.Group{
		domain.Batches.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		newReportsHandler(runtime.Storage, domain.Batches, runtime.Logger).routes(),
		newMailHandler(runtime.Pipeline.Dispatcher, runtime.Logger).routes(),
	}

	routes.Register(mux, groups...)
	return groups
}
