package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/core/services/dispatch"
	"gitlab.com/clb-2025.net/internal/domain"
	"gitlab.com/clb-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/clb-2025.net/internal/tcp/defs"
)

var _ primary.MessageHandler = (*TaskDoneHandler)(nil)

// TaskDoneHandler handles task completion signals
type TaskDoneHandler struct {
	DispatchService dispatch.IDispatchService
	Logger          primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *TaskDoneHandler) HandleMessage(ctx context.Context, conn net.Conn, payload []byte, workerID *string) error {
	if *workerID == "" {
		connectionmanager.SendErrorMessage(conn, 1010, "Worker not registered")
		return fmt.Errorf("worker not registered")
	}

	var doneData defs.TaskDoneData
	if err := json.Unmarshal(payload, &doneData); err != nil {
		h.Logger.Error("Failed to parse task done", "error", err)
		connectionmanager.SendErrorMessage(conn, 1011, "Invalid task done data")
		return err
	}

	result := domain.TaskResult{
		TaskID:      doneData.TaskID,
		WorkerID:    *workerID,
		Success:     doneData.Success,
		Error:       doneData.Error,
		CompletedAt: time.Now(),
	}

	if err := h.DispatchService.OnTaskDone(ctx, result); err != nil {
		h.Logger.Error("Failed to handle task done", "taskId", doneData.TaskID, "error", err)
		connectionmanager.SendErrorMessage(conn, 1012, "Failed to handle task done")
		return err
	}

	return nil
}
