package batches

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/rapport/internal/ingest"
	"github.com/JaimeStill/rapport/pkg/storage"
)

// Domain errors for batch operations.
var (
	ErrNotFound     = errors.New("batch not found")
	ErrDuplicate    = errors.New("batch already exists")
	ErrEmptyBatch   = errors.New("batch contains no reviews")
	ErrTooLarge     = errors.New("batch exceeds maximum size")
	ErrInvalidFile  = errors.New("invalid file")
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
	ErrNotRunning   = errors.New("batch is not running")
	ErrRunning      = errors.New("batch is still running")
	ErrNoArchive    = errors.New("batch report not archived")
	ErrInterrupted  = errors.New("batch was interrupted before its outcomes were stored")
)

// MapHTTPStatus maps batch domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoArchive), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrNotRunning), errors.Is(err, ErrRunning),
		errors.Is(err, ErrInterrupted):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge), errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrTooLarge), errors.Is(err, ErrInvalidFile),
		errors.Is(err, ingest.ErrEmpty), errors.Is(err, ingest.ErrMissingColumns):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
