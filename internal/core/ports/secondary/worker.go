package secondary

import (
	"context"
	"time"

	"gitlab.com/clb-2025.net/internal/domain"
)

// WorkerRepository mirrors worker state into an external store so it can be
// served by the HTTP API without touching the scheduling path. The in-memory
// registry stays authoritative; mirror failures must never be fatal.
type WorkerRepository interface {
	// SaveWorker stores worker information
	SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error

	// GetWorker retrieves worker information by ID, nil when absent
	GetWorker(ctx context.Context, workerID string) (*domain.WorkerInfo, error)

	// GetAllWorkers retrieves all stored workers
	GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error)

	// RemoveWorker deletes worker information
	RemoveWorker(ctx context.Context, workerID string) error

	// RemoveInactiveWorkers drops workers whose last report predates cutoffTime
	RemoveInactiveWorkers(ctx context.Context, cutoffTime time.Time) error
}
