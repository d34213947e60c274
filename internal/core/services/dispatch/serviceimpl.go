package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/core/services/registry"
	"gitlab.com/clb-2025.net/internal/core/services/schedule"
	"gitlab.com/clb-2025.net/internal/domain"
)

var _ IDispatchService = &DispatchService{}

// DispatchService implements IDispatchService. The queue mutex is
// independent of the registry's lock; registry state is only read through
// snapshots, so no lock ordering spans the two.
type DispatchService struct {
	mu       sync.Mutex
	queue    []*domain.Task
	capacity int
	// inflight maps workerID to its outstanding task. At most one entry per
	// worker, matching the one-assignment invariant.
	inflight map[string]*domain.Task

	workerRegistry registry.IWorkerRegistry
	scheduler      schedule.ISchedulerService
	sender         TaskSender
	logger         primary.Logger
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(
	workerRegistry registry.IWorkerRegistry,
	scheduler schedule.ISchedulerService,
	capacity int,
	logger primary.Logger,
) *DispatchService {
	return &DispatchService{
		queue:          make([]*domain.Task, 0, capacity),
		capacity:       capacity,
		inflight:       make(map[string]*domain.Task),
		workerRegistry: workerRegistry,
		scheduler:      scheduler,
		logger:         logger,
	}
}

// SetSender injects the transport used to deliver assignments
func (s *DispatchService) SetSender(sender TaskSender) {
	s.mu.Lock()
	s.sender = sender
	s.mu.Unlock()
}

// Enqueue adds a task to the pending queue and attempts a dispatch round
func (s *DispatchService) Enqueue(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	if len(s.queue) >= s.capacity {
		s.mu.Unlock()
		task.Status = domain.TaskStatusRejected
		s.logger.Warn("Pending queue full, rejecting task", "taskId", task.ID)
		return ErrQueueFull
	}
	task.Status = domain.TaskStatusPending
	s.queue = append(s.queue, task)
	depth := len(s.queue)
	s.mu.Unlock()

	s.logger.Info("Task enqueued", "taskId", task.ID, "queueDepth", depth)
	s.Dispatch(ctx)
	return nil
}

// Dispatch drains the pending queue onto eligible workers. Each round takes
// a fresh snapshot so the decision never races a concurrent mutation.
func (s *DispatchService) Dispatch(ctx context.Context) {
	for {
		if !s.dispatchOne(ctx) {
			return
		}
	}
}

// dispatchOne assigns the head of the queue to the best worker. Returns
// false when the queue is empty or no worker is eligible.
func (s *DispatchService) dispatchOne(ctx context.Context) bool {
	s.mu.Lock()
	if len(s.queue) == 0 || s.sender == nil {
		s.mu.Unlock()
		return false
	}

	snapshot := s.workerRegistry.Snapshot()
	worker, stale := s.scheduler.Select(snapshot, time.Now())
	if len(stale) > 0 {
		s.logger.Debug("Workers excluded as stale", "workerIDs", stale)
	}
	if worker == nil {
		s.mu.Unlock()
		return false
	}

	task := s.queue[0]
	s.queue = s.queue[1:]

	if err := s.workerRegistry.MarkBusy(ctx, worker.ID, task.ID); err != nil {
		// Lost a race with a disconnect; requeue and try the next round
		s.queue = append([]*domain.Task{task}, s.queue...)
		s.mu.Unlock()
		s.logger.Warn("Failed to mark worker busy", "workerID", worker.ID, "error", err)
		return false
	}

	task.Status = domain.TaskStatusAssigned
	workerID := worker.ID
	task.WorkerID = &workerID
	s.inflight[worker.ID] = task
	sender := s.sender
	s.mu.Unlock()

	if err := sender.SendTask(ctx, worker.ID, task); err != nil {
		s.logger.Error("Failed to send task assignment", "taskId", task.ID, "workerID", worker.ID, "error", err)
		// Treat a failed send as a dead connection: the receive loop will
		// tear it down, but the task must not wait for that.
		inflight, derr := s.workerRegistry.Deregister(ctx, worker.ID)
		if derr == nil {
			s.OnWorkerLost(ctx, worker.ID, inflight)
		}
		return true
	}

	s.logger.Info("Task assigned", "taskId", task.ID, "workerID", worker.ID, "load", worker.LastLoad)
	return true
}

// OnTaskDone processes a completion signal and redispatches
func (s *DispatchService) OnTaskDone(ctx context.Context, result domain.TaskResult) error {
	s.mu.Lock()
	task, exists := s.inflight[result.WorkerID]
	if !exists || task.ID != result.TaskID {
		s.mu.Unlock()
		return fmt.Errorf("no matching assignment for task %s on worker %s", result.TaskID, result.WorkerID)
	}
	delete(s.inflight, result.WorkerID)
	s.mu.Unlock()

	if result.Success {
		task.Status = domain.TaskStatusCompleted
	} else {
		task.Status = domain.TaskStatusFailed
		// No automatic retry; the failure is recorded and the worker
		// returns to the pool.
		s.logger.Warn("Task failed on worker", "taskId", task.ID, "workerID", result.WorkerID, "error", result.Error)
	}

	if err := s.workerRegistry.MarkIdle(ctx, result.WorkerID); err != nil {
		return fmt.Errorf("failed to mark worker idle: %w", err)
	}

	s.logger.Info("Task completed", "taskId", task.ID, "workerID", result.WorkerID, "success", result.Success)
	s.Dispatch(ctx)
	return nil
}

// OnWorkerLost requeues the in-flight task of a dead worker, if any. The
// guarantee is at most once: the task is requeued exactly once, and dropped
// with a log line when the queue has no room left.
func (s *DispatchService) OnWorkerLost(ctx context.Context, workerID string, inflightID *uuid.UUID) {
	s.mu.Lock()
	task, exists := s.inflight[workerID]
	delete(s.inflight, workerID)
	if !exists || (inflightID != nil && task.ID != *inflightID) {
		s.mu.Unlock()
		return
	}

	if len(s.queue) >= s.capacity {
		s.mu.Unlock()
		task.Status = domain.TaskStatusRejected
		s.logger.Error("Task lost: worker died and queue is full", "taskId", task.ID, "workerID", workerID)
		return
	}

	task.Status = domain.TaskStatusPending
	task.WorkerID = nil
	// Requeue at the front to preserve age ordering
	s.queue = append([]*domain.Task{task}, s.queue...)
	s.mu.Unlock()

	s.logger.Warn("Worker lost, task requeued", "taskId", task.ID, "workerID", workerID)
	s.Dispatch(ctx)
}

// QueueDepth returns the current pending-queue length
func (s *DispatchService) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
