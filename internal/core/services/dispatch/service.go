package dispatch

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gitlab.com/clb-2025.net/internal/domain"
)

// ErrQueueFull is returned by Enqueue when the pending queue is at capacity.
// The failure surfaces to whatever enqueued the task; nothing is dropped
// silently.
var ErrQueueFull = errors.New("pending task queue is full")

// TaskSender pushes a task assignment onto a worker's connection. The TCP
// server implements it; injected after construction to keep the transport
// dependency one-directional.
type TaskSender interface {
	SendTask(ctx context.Context, workerID string, task *domain.Task) error
}

// IDispatchService owns the pending-task queue and the dispatch decisions.
// Tasks are delivered at most once: an assignment lost to a dead connection
// is requeued best-effort, never duplicated.
type IDispatchService interface {
	// Enqueue adds a task to the pending queue and attempts a dispatch round
	Enqueue(ctx context.Context, task *domain.Task) error

	// Dispatch drains the pending queue onto eligible workers
	Dispatch(ctx context.Context)

	// OnTaskDone processes a completion signal and redispatches
	OnTaskDone(ctx context.Context, result domain.TaskResult) error

	// OnWorkerLost requeues the in-flight task of a dead worker, if any
	OnWorkerLost(ctx context.Context, workerID string, inflight *uuid.UUID)

	// QueueDepth returns the current pending-queue length
	QueueDepth() int

	// SetSender injects the transport used to deliver assignments
	SetSender(sender TaskSender)
}
