package schedulerengine

import (
	"context"
	"time"

	"gitlab.com/clb-2025.net/internal/config"
	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/core/ports/secondary"
	"gitlab.com/clb-2025.net/internal/core/services/dispatch"
	"gitlab.com/clb-2025.net/internal/core/services/registry"
)

// DispatchEngine runs the master's background loops: pumping the task
// source into the pending queue and sweeping workers whose connection went
// silent past the liveness timeout.
type DispatchEngine struct {
	dispatchCfg     *config.DispatchCfg
	taskSource      secondary.TaskSource
	dispatchService dispatch.IDispatchService
	workerRegistry  registry.IWorkerRegistry
	workerRepo      secondary.WorkerRepository
	logger          primary.Logger
}

func NewDispatchEngine(
	dispatchCfg *config.DispatchCfg,
	taskSource secondary.TaskSource,
	dispatchService dispatch.IDispatchService,
	workerRegistry registry.IWorkerRegistry,
	workerRepo secondary.WorkerRepository,
	logger primary.Logger,
) *DispatchEngine {
	return &DispatchEngine{
		dispatchCfg:     dispatchCfg,
		taskSource:      taskSource,
		dispatchService: dispatchService,
		workerRegistry:  workerRegistry,
		workerRepo:      workerRepo,
		logger:          logger,
	}
}

// Start launches the background loops. They stop when ctx is cancelled.
func (e *DispatchEngine) Start(ctx context.Context) {
	if e.taskSource != nil {
		ticker := time.NewTicker(e.dispatchCfg.TaskSourceInterval)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					e.pumpTaskSource(ctx)
				}
			}
		}()
	}

	sweepTicker := time.NewTicker(e.dispatchCfg.SweepInterval)
	go func() {
		defer sweepTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweepTicker.C:
				e.sweepStaleWorkers(ctx)
			}
		}
	}()
}

// pumpTaskSource pulls the next available task into the pending queue
func (e *DispatchEngine) pumpTaskSource(ctx context.Context) {
	task, err := e.taskSource.NextTask(ctx)
	if err != nil {
		e.logger.Error("Failed to pull task from source", "error", err)
		return
	}
	if task == nil {
		return
	}

	if err := e.dispatchService.Enqueue(ctx, task); err != nil {
		e.logger.Warn("Task rejected by queue", "taskId", task.ID, "error", err)
	}
}

// sweepStaleWorkers deregisters workers whose last report exceeds the
// liveness timeout and requeues their in-flight tasks. The per-connection
// read deadline usually fires first; this sweep is the backstop.
func (e *DispatchEngine) sweepStaleWorkers(ctx context.Context) {
	now := time.Now()
	for _, worker := range e.workerRegistry.Snapshot() {
		if !worker.Stale(now, e.dispatchCfg.LivenessTimeout) {
			continue
		}

		e.logger.Warn("Removing stale worker", "workerID", worker.ID, "lastReport", worker.LastReport)
		inflight, err := e.workerRegistry.Deregister(ctx, worker.ID)
		if err != nil {
			continue
		}
		e.dispatchService.OnWorkerLost(ctx, worker.ID, inflight)
	}

	if e.workerRepo != nil {
		cutoff := now.Add(-2 * e.dispatchCfg.LivenessTimeout)
		if err := e.workerRepo.RemoveInactiveWorkers(ctx, cutoff); err != nil {
			e.logger.Warn("Failed to sweep worker mirror", "error", err)
		}
	}
}
