package api

import (
	"github.com/JaimeStill/rapport/internal/batches"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Batches batches.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	batchesSystem := batches.New(
		runtime.Database.Connection(),
		runtime.Pipeline.Coordinator,
		runtime.Storage,
		runtime.Lifecycle.Go,
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Batches: batchesSystem,
	}
}
