package ports

import (
	"context"

	"github.com/aretw0/callflow/pkg/domain"
)

// FlowLoader defines how flows are read from a source.
// This allows the storage layer (Loam, files, databases) to be decoupled.
type FlowLoader interface {
	// LoadFlow returns the full flow. A missing flow yields *domain.NotFoundError.
	LoadFlow(ctx context.Context, flowID string) (domain.Flow, error)

	// ListFlows returns the catalogue of available flows.
	ListFlows(ctx context.Context) ([]domain.FlowSummary, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload of flow documents.
type Watchable interface {
	// Watch returns a channel that receives the id of every flow that changed.
	Watch(ctx context.Context) (<-chan string, error)
}
