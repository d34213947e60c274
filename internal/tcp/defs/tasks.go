package defs

import (
	"github.com/google/uuid"
)

// Protocol data structures
type (
	// TaskAssignData represents the data sent during task dispatch
	TaskAssignData struct {
		TaskID  uuid.UUID              `json:"task_id"`
		Payload map[string]interface{} `json:"payload"`
	}

	// TaskDoneData represents the completion signal sent by a worker
	TaskDoneData struct {
		TaskID  uuid.UUID `json:"task_id"`
		Success bool      `json:"success"`
		Error   string    `json:"error,omitempty"`
	}
)
