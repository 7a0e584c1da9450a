package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JaimeStill/rapport/pkg/handlers"
	"github.com/JaimeStill/rapport/pkg/routes"
)

const mailPingTimeout = 10 * time.Second

// mailPinger is satisfied by *dispatcher.Dispatcher.
type mailPinger interface {
	Ping(ctx context.Context) error
}

type mailHandler struct {
	mail   mailPinger
	logger *slog.Logger
}

type mailHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func newMailHandler(mail mailPinger, logger *slog.Logger) *mailHandler {
	return &mailHandler{
		mail:   mail,
		logger: logger.With("handler", "mail"),
	}
}

func (h *mailHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/mail",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/health", Handler: h.health},
		},
	}
}

func (h *mailHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), mailPingTimeout)
	defer cancel()

	if err := h.mail.Ping(ctx); err != nil {
		h.logger.Warn("mail health check failed", "error", err)
		handlers.RespondJSON(w, http.StatusServiceUnavailable, mailHealth{
			Status: "unavailable",
			Error:  err.Error(),
		})
		return
	}

	handlers.RespondJSON(w, http.StatusOK, mailHealth{Status: "ok"})
}
