package batches

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/pkg/pagination"
	"github.com/JaimeStill/rapport/pkg/storage"
)

// System defines the public contract for batch domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	// Submit starts a batch in the background and returns immediately.
	Submit(ctx context.Context, cmd SubmitCommand) (*Accepted, error)
	// Upload starts a batch from a parsed CSV file.
	Upload(ctx context.Context, cmd UploadCommand) (*Accepted, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Batch], error)

	// Find returns the live view of a running batch or the stored summary.
	Find(ctx context.Context, id uuid.UUID) (*Batch, error)
	// Watch streams progress of a running batch. The channel closes when
	// the batch finishes or ctx is done. Returns ErrNotRunning for a
	// stored batch.
	Watch(ctx context.Context, id uuid.UUID) (<-chan batch.Progress, error)
	// Cancel stops a running batch from starting further reviews.
	Cancel(ctx context.Context, id uuid.UUID) error

	Outcomes(
		ctx context.Context,
		id uuid.UUID,
		page pagination.PageRequest,
		filters OutcomeFilters,
	) (*pagination.PageResult[Outcome], error)

	Stats(ctx context.Context) (*Stats, error)
	// Report returns the archived result document of a finished batch.
	Report(ctx context.Context, id uuid.UUID) (*storage.BlobResult, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Recover marks batches left running by an earlier process as
	// interrupted and returns how many it found.
	Recover(ctx context.Context) (int64, error)
}
