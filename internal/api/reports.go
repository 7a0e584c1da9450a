package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/rapport/internal/batches"
	"github.com/JaimeStill/rapport/pkg/handlers"
	"github.com/JaimeStill/rapport/pkg/routes"
	"github.com/JaimeStill/rapport/pkg/storage"
)

const maxReportPage int32 = 100

type batchFinder interface {
	Find(ctx context.Context, id uuid.UUID) (*batches.Batch, error)
}

// archivedReport is one archived batch result with the summary stored for
// that batch. Batch is nil when the row has been removed.
type archivedReport struct {
	BatchID uuid.UUID `json:"batch_id"`
	storage.BlobMeta
	Batch *batches.Batch `json:"batch,omitempty"`
}

type reportList struct {
	Reports    []archivedReport `json:"reports"`
	NextMarker string           `json:"next_marker,omitempty"`
}

// reportsHandler browses the archive of finished batch results. Only keys
// under batches.ArchivePrefix are ever read.
type reportsHandler struct {
	store   storage.System
	batches batchFinder
	logger  *slog.Logger
}

func newReportsHandler(store storage.System, finder batchFinder, logger *slog.Logger) *reportsHandler {
	return &reportsHandler{
		store:   store,
		batches: finder,
		logger:  logger.With("handler", "reports"),
	}
}

func (h *reportsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/reports",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list},
			{Method: "GET", Pattern: "/{id}", Handler: h.find},
		},
	}
}

func (h *reportsHandler) list(w http.ResponseWriter, r *http.Request) {
	maxResults, err := storage.ParseMaxResults(
		r.URL.Query().Get("max_results"),
		maxReportPage,
	)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	marker := r.URL.Query().Get("marker")
	if marker != "" && !strings.HasPrefix(marker, batches.ArchivePrefix) {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid marker"))
		return
	}

	page, err := h.store.List(
		r.Context(),
		batches.ArchivePrefix,
		marker,
		min(maxResults, maxReportPage),
	)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	out := reportList{
		Reports:    make([]archivedReport, 0, len(page.Blobs)),
		NextMarker: page.NextMarker,
	}
	for _, meta := range page.Blobs {
		id, ok := batches.ParseArchiveKey(meta.Key)
		if !ok {
			continue
		}
		out.Reports = append(out.Reports, h.describe(r.Context(), id, meta))
	}

	handlers.RespondJSON(w, http.StatusOK, out)
}

func (h *reportsHandler) find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid batch id"))
		return
	}

	meta, err := h.store.Find(r.Context(), batches.ArchiveKey(id))
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, h.describe(r.Context(), id, *meta))
}

func (h *reportsHandler) describe(ctx context.Context, id uuid.UUID, meta storage.BlobMeta) archivedReport {
	report := archivedReport{BatchID: id, BlobMeta: meta}

	b, err := h.batches.Find(ctx, id)
	switch {
	case err == nil:
		report.Batch = b
	case !errors.Is(err, batches.ErrNotFound):
		h.logger.Warn("report summary lookup failed", "batch_id", id, "error", err)
	}
	return report
}
