package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/core/ports/secondary"
	"gitlab.com/clb-2025.net/internal/domain"
)

var _ IWorkerRegistry = &WorkerRegistry{}

// WorkerRegistry is the in-memory connection registry. All mutations are
// serialized behind one mutex; Snapshot hands out deep copies so the
// scheduler never sees a handle mutate mid-selection. Every mutation is
// mirrored best-effort into the worker repository for the HTTP surface.
type WorkerRegistry struct {
	mu      sync.Mutex
	workers map[string]*domain.WorkerInfo
	nextSeq uint64

	workerRepo secondary.WorkerRepository
	logger     primary.Logger
}

// NewWorkerRegistry creates a new worker registry. workerRepo may be nil
// when no mirror is configured.
func NewWorkerRegistry(workerRepo secondary.WorkerRepository, logger primary.Logger) *WorkerRegistry {
	return &WorkerRegistry{
		workers:    make(map[string]*domain.WorkerInfo),
		workerRepo: workerRepo,
		logger:     logger,
	}
}

// Register creates a fresh handle for a new connection
func (r *WorkerRegistry) Register(ctx context.Context, name string, ipAddress string) (*domain.WorkerInfo, error) {
	r.mu.Lock()
	r.nextSeq++
	worker := &domain.WorkerInfo{
		ID:         uuid.NewString(),
		Name:       name,
		IpAddress:  ipAddress,
		State:      domain.WorkerStateIdle,
		LastReport: time.Now(),
		Seq:        r.nextSeq,
	}
	r.workers[worker.ID] = worker
	snapshot := *worker
	r.mu.Unlock()

	r.logger.Info("Worker registered", "workerID", worker.ID, "name", name, "ip address", ipAddress)
	r.mirrorSave(ctx, &snapshot)
	return &snapshot, nil
}

// UpdateLoad replaces the worker's last-reported load and report time
func (r *WorkerRegistry) UpdateLoad(ctx context.Context, workerID string, load float64) error {
	r.mu.Lock()
	worker, exists := r.workers[workerID]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("worker not found: %s", workerID)
	}
	// Most recent value wins, never accumulated or averaged
	worker.LastLoad = load
	worker.LastReport = time.Now()
	snapshot := *worker
	r.mu.Unlock()

	r.mirrorSave(ctx, &snapshot)
	return nil
}

// Heartbeat refreshes the worker's report time without changing its load
func (r *WorkerRegistry) Heartbeat(ctx context.Context, workerID string) error {
	r.mu.Lock()
	worker, exists := r.workers[workerID]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("worker not found: %s", workerID)
	}
	worker.LastReport = time.Now()
	snapshot := *worker
	r.mu.Unlock()

	r.mirrorSave(ctx, &snapshot)
	return nil
}

// MarkBusy records an outstanding task assignment on the worker
func (r *WorkerRegistry) MarkBusy(ctx context.Context, workerID string, taskID uuid.UUID) error {
	r.mu.Lock()
	worker, exists := r.workers[workerID]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("worker not found: %s", workerID)
	}
	if worker.State == domain.WorkerStateBusy {
		r.mu.Unlock()
		return fmt.Errorf("worker already busy: %s", workerID)
	}
	worker.State = domain.WorkerStateBusy
	id := taskID
	worker.CurrentTaskID = &id
	snapshot := *worker
	r.mu.Unlock()

	r.mirrorSave(ctx, &snapshot)
	return nil
}

// MarkIdle clears the worker's outstanding assignment
func (r *WorkerRegistry) MarkIdle(ctx context.Context, workerID string) error {
	r.mu.Lock()
	worker, exists := r.workers[workerID]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("worker not found: %s", workerID)
	}
	worker.State = domain.WorkerStateIdle
	worker.CurrentTaskID = nil
	snapshot := *worker
	r.mu.Unlock()

	r.mirrorSave(ctx, &snapshot)
	return nil
}

// Deregister removes the handle and returns the in-flight task id, if any.
// The handle is terminal after this call; a reconnecting worker gets a new one.
func (r *WorkerRegistry) Deregister(ctx context.Context, workerID string) (*uuid.UUID, error) {
	r.mu.Lock()
	worker, exists := r.workers[workerID]
	if !exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("worker not found: %s", workerID)
	}
	inflight := worker.CurrentTaskID
	worker.State = domain.WorkerStateDead
	delete(r.workers, workerID)
	r.mu.Unlock()

	r.logger.Info("Worker deregistered", "workerID", workerID)
	if r.workerRepo != nil {
		if err := r.workerRepo.RemoveWorker(ctx, workerID); err != nil {
			r.logger.Warn("Failed to remove worker from mirror", "workerID", workerID, "error", err)
		}
	}
	return inflight, nil
}

// Snapshot returns a consistent point-in-time copy of all handles, ordered
// by registration sequence
func (r *WorkerRegistry) Snapshot() []domain.WorkerInfo {
	r.mu.Lock()
	snapshot := make([]domain.WorkerInfo, 0, len(r.workers))
	for _, worker := range r.workers {
		copied := *worker
		if worker.CurrentTaskID != nil {
			id := *worker.CurrentTaskID
			copied.CurrentTaskID = &id
		}
		snapshot = append(snapshot, copied)
	}
	r.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Seq < snapshot[j].Seq
	})
	return snapshot
}

// mirrorSave pushes worker state to the repository. Mirror failures are
// logged and never propagate into the control path.
func (r *WorkerRegistry) mirrorSave(ctx context.Context, worker *domain.WorkerInfo) {
	if r.workerRepo == nil {
		return
	}
	if err := r.workerRepo.SaveWorker(ctx, worker); err != nil {
		r.logger.Warn("Failed to mirror worker state", "workerID", worker.ID, "error", err)
	}
}
