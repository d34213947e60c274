package registry

import (
	"context"

	"github.com/google/uuid"
	"gitlab.com/clb-2025.net/internal/domain"
)

// IWorkerRegistry defines the interface for the connection registry. It is
// the single authority over connected-worker state: created on handshake,
// updated on every report, removed on disconnect or liveness timeout.
type IWorkerRegistry interface {
	// Register creates a fresh handle for a new connection
	Register(ctx context.Context, name string, ipAddress string) (*domain.WorkerInfo, error)

	// UpdateLoad replaces the worker's last-reported load and report time
	UpdateLoad(ctx context.Context, workerID string, load float64) error

	// Heartbeat refreshes the worker's report time without changing its load
	Heartbeat(ctx context.Context, workerID string) error

	// MarkBusy records an outstanding task assignment on the worker
	MarkBusy(ctx context.Context, workerID string, taskID uuid.UUID) error

	// MarkIdle clears the worker's outstanding assignment
	MarkIdle(ctx context.Context, workerID string) error

	// Deregister removes the handle and returns the in-flight task id, if any
	Deregister(ctx context.Context, workerID string) (*uuid.UUID, error)

	// Snapshot returns a consistent point-in-time copy of all handles,
	// ordered by registration sequence
	Snapshot() []domain.WorkerInfo
}
