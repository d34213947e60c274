package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkerState represents the lifecycle state of a worker connection
type WorkerState string

const (
	WorkerStateHandshaking WorkerState = "HANDSHAKING"
	WorkerStateIdle        WorkerState = "IDLE"
	WorkerStateBusy        WorkerState = "BUSY"
	WorkerStateDead        WorkerState = "DEAD"
)

// WorkerInfo represents one connected worker. A new physical connection
// always produces a new WorkerInfo; handles are never reused across
// reconnections.
type WorkerInfo struct {
	ID         string      `json:"id"`
	Name       string      `json:"name,omitempty"`
	IpAddress  string      `json:"ip_address"`
	LastLoad   float64     `json:"last_load"`
	LastReport time.Time   `json:"last_report"`
	State      WorkerState `json:"state"`
	// Seq is the registration order assigned by the registry. It is the
	// deterministic tie-break when two idle workers report the same load.
	Seq uint64 `json:"seq"`
	// CurrentTaskID is set while the worker is busy, nil otherwise.
	CurrentTaskID *uuid.UUID `json:"current_task_id,omitempty"`
	IsActive      bool       `json:"is_active"`
}

// Idle reports whether the worker is eligible to receive a task.
func (w *WorkerInfo) Idle() bool {
	return w.State == WorkerStateIdle
}

// Stale reports whether the last report is older than the given threshold.
func (w *WorkerInfo) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(w.LastReport) > threshold
}
