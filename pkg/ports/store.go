package ports

import (
	"context"

	"github.com/aretw0/dsflow/pkg/domain"
)

// RunStore persists run states so finished or failed runs can be inspected.
type RunStore interface {
	// Save persists the state for a given run ID.
	Save(ctx context.Context, runID string, state *domain.State) error

	// Load retrieves the state for a given run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.State, error)

	// Delete removes the state for a given run ID.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of all stored runs.
	List(ctx context.Context) ([]string, error)
}
