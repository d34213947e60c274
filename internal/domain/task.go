package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusAssigned  TaskStatus = "ASSIGNED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusRejected  TaskStatus = "REJECTED"
)

// Task represents a unit of work to be dispatched to a worker. Tasks are
// fungible unit-cost work items; the payload is opaque to the master.
type Task struct {
	ID        uuid.UUID              `json:"id"`
	Status    TaskStatus             `json:"status"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
	// WorkerID is set once the task has been assigned.
	WorkerID *string `json:"worker_id,omitempty"`
}

// NewTask creates a new pending task with the given opaque payload.
func NewTask(payload map[string]interface{}) *Task {
	return &Task{
		ID:        uuid.New(),
		Status:    TaskStatusPending,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// TaskResult represents a completion signal reported by a worker.
type TaskResult struct {
	TaskID      uuid.UUID
	WorkerID    string
	Success     bool
	Error       string
	CompletedAt time.Time
}
