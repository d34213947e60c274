package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/clb-2025.net/internal/core/services/registry"
	"gitlab.com/clb-2025.net/internal/core/services/schedule"
	"gitlab.com/clb-2025.net/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Warn(msg string, args ...interface{})  {}

// fakeSender records task deliveries per worker
type fakeSender struct {
	mu    sync.Mutex
	sent  map[string][]*domain.Task
	fail  bool
	calls int
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string][]*domain.Task)}
}

func (f *fakeSender) SendTask(ctx context.Context, workerID string, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("connection reset")
	}
	f.sent[workerID] = append(f.sent[workerID], task)
	return nil
}

func (f *fakeSender) tasksFor(workerID string) []*domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.Task(nil), f.sent[workerID]...)
}

type fixture struct {
	registry *registry.WorkerRegistry
	sender   *fakeSender
	service  *DispatchService
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	reg := registry.NewWorkerRegistry(nil, nopLogger{})
	scheduler := schedule.NewLeastLoadScheduler(time.Minute)
	sender := newFakeSender()
	svc := NewDispatchService(reg, scheduler, capacity, nopLogger{})
	svc.SetSender(sender)
	return &fixture{registry: reg, sender: sender, service: svc}
}

func (f *fixture) addWorker(t *testing.T, name string, load float64) *domain.WorkerInfo {
	t.Helper()
	w, err := f.registry.Register(context.Background(), name, "10.0.0.1:1")
	require.NoError(t, err)
	require.NoError(t, f.registry.UpdateLoad(context.Background(), w.ID, load))
	return w
}

func TestEnqueue_DispatchesToLeastLoadedWorker(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	f.addWorker(t, "heavy", 0.8)
	light := f.addWorker(t, "light", 0.2)

	task := domain.NewTask(map[string]interface{}{"work": "compute_pi"})
	require.NoError(t, f.service.Enqueue(ctx, task))

	sent := f.sender.tasksFor(light.ID)
	require.Len(t, sent, 1)
	assert.Equal(t, task.ID, sent[0].ID)
	assert.Equal(t, domain.TaskStatusAssigned, task.Status)
	assert.Equal(t, 0, f.service.QueueDepth())

	// The chosen worker is now busy and excluded from selection
	snapshot := f.registry.Snapshot()
	for _, w := range snapshot {
		if w.ID == light.ID {
			assert.Equal(t, domain.WorkerStateBusy, w.State)
		}
	}
}

func TestEnqueue_QueuesWhenAllWorkersBusy(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	w := f.addWorker(t, "only", 0.1)

	first := domain.NewTask(nil)
	require.NoError(t, f.service.Enqueue(ctx, first))
	require.Len(t, f.sender.tasksFor(w.ID), 1)

	// Second task has nowhere to go
	second := domain.NewTask(nil)
	require.NoError(t, f.service.Enqueue(ctx, second))
	assert.Equal(t, 1, f.service.QueueDepth())
	assert.Len(t, f.sender.tasksFor(w.ID), 1)

	// Completion frees the worker and the queued task goes out immediately
	require.NoError(t, f.service.OnTaskDone(ctx, domain.TaskResult{
		TaskID:   first.ID,
		WorkerID: w.ID,
		Success:  true,
	}))

	sent := f.sender.tasksFor(w.ID)
	require.Len(t, sent, 2)
	assert.Equal(t, second.ID, sent[1].ID)
	assert.Equal(t, 0, f.service.QueueDepth())
	assert.Equal(t, domain.TaskStatusCompleted, first.Status)
}

func TestEnqueue_RejectsWhenQueueFull(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	// No workers at all: everything queues
	require.NoError(t, f.service.Enqueue(ctx, domain.NewTask(nil)))
	require.NoError(t, f.service.Enqueue(ctx, domain.NewTask(nil)))

	rejected := domain.NewTask(nil)
	err := f.service.Enqueue(ctx, rejected)
	require.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, domain.TaskStatusRejected, rejected.Status)
	assert.Equal(t, 2, f.service.QueueDepth())
}

func TestOnTaskDone_FailureStillFreesWorker(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	w := f.addWorker(t, "only", 0.1)
	task := domain.NewTask(nil)
	require.NoError(t, f.service.Enqueue(ctx, task))

	require.NoError(t, f.service.OnTaskDone(ctx, domain.TaskResult{
		TaskID:   task.ID,
		WorkerID: w.ID,
		Success:  false,
		Error:    "simulated failure",
	}))

	// Recorded as failed, no automatic retry
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Equal(t, 0, f.service.QueueDepth())

	snapshot := f.registry.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, domain.WorkerStateIdle, snapshot[0].State)
}

func TestOnTaskDone_UnknownAssignmentIsRejected(t *testing.T) {
	f := newFixture(t, 8)

	err := f.service.OnTaskDone(context.Background(), domain.TaskResult{
		TaskID:   domain.NewTask(nil).ID,
		WorkerID: "ghost",
	})
	assert.Error(t, err)
}

func TestOnWorkerLost_RequeuesInflightTaskOnce(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	w := f.addWorker(t, "doomed", 0.1)
	task := domain.NewTask(nil)
	require.NoError(t, f.service.Enqueue(ctx, task))
	require.Len(t, f.sender.tasksFor(w.ID), 1)

	// Connection dies mid-task
	inflight, err := f.registry.Deregister(ctx, w.ID)
	require.NoError(t, err)
	f.service.OnWorkerLost(ctx, w.ID, inflight)

	// No workers left: the task sits in the queue, exactly once
	assert.Equal(t, 1, f.service.QueueDepth())
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Nil(t, task.WorkerID)

	// A second loss notification for the same worker is a no-op
	f.service.OnWorkerLost(ctx, w.ID, inflight)
	assert.Equal(t, 1, f.service.QueueDepth())
}

func TestOnWorkerLost_RequeuedTaskGoesToNextWorker(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	doomed := f.addWorker(t, "doomed", 0.1)
	task := domain.NewTask(nil)
	require.NoError(t, f.service.Enqueue(ctx, task))

	survivor := f.addWorker(t, "survivor", 0.5)

	inflight, err := f.registry.Deregister(ctx, doomed.ID)
	require.NoError(t, err)
	f.service.OnWorkerLost(ctx, doomed.ID, inflight)

	sent := f.sender.tasksFor(survivor.ID)
	require.Len(t, sent, 1)
	assert.Equal(t, task.ID, sent[0].ID)
	assert.Equal(t, 0, f.service.QueueDepth())
}

func TestDispatch_SendFailureRequeuesTask(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	f.addWorker(t, "flaky", 0.1)
	f.sender.fail = true

	task := domain.NewTask(nil)
	require.NoError(t, f.service.Enqueue(ctx, task))

	// The send failed, the worker was dropped, the task is pending again
	assert.Equal(t, 1, f.service.QueueDepth())
	assert.Empty(t, f.registry.Snapshot())
	assert.Equal(t, domain.TaskStatusPending, task.Status)
}

func TestDispatch_RequeueOrderPreservesAge(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	w := f.addWorker(t, "doomed", 0.1)
	oldest := domain.NewTask(nil)
	require.NoError(t, f.service.Enqueue(ctx, oldest))
	younger := domain.NewTask(nil)
	require.NoError(t, f.service.Enqueue(ctx, younger))

	inflight, err := f.registry.Deregister(ctx, w.ID)
	require.NoError(t, err)
	f.service.OnWorkerLost(ctx, w.ID, inflight)

	// Requeued in-flight task goes to the front
	require.Equal(t, 2, f.service.QueueDepth())

	replacement := f.addWorker(t, "fresh", 0.2)
	f.service.Dispatch(ctx)

	sent := f.sender.tasksFor(replacement.ID)
	require.Len(t, sent, 1)
	assert.Equal(t, oldest.ID, sent[0].ID)
}
