package publishers

import (
	"context"
	"encoding/json"
	"net"

	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/domain"
	"gitlab.com/clb-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/clb-2025.net/internal/tcp/defs"
)

var _ primary.MessagePublisher = (*TaskAssignPublisher)(nil)

// TaskAssignPublisher pushes TASK_ASSIGN frames onto worker connections
type TaskAssignPublisher struct {
	Logger primary.Logger
}

func NewTaskAssignPublisher(logger primary.Logger) *TaskAssignPublisher {
	return &TaskAssignPublisher{Logger: logger}
}

func (p *TaskAssignPublisher) PublishMessage(ctx context.Context, conn net.Conn, task *domain.Task, w domain.WorkerInfo) error {
	assignData := defs.TaskAssignData{
		TaskID:  task.ID,
		Payload: task.Payload,
	}

	assignBytes, err := json.Marshal(assignData)
	if err != nil {
		p.Logger.Error("Failed to marshal task assignment", "taskId", task.ID, "error", err)
		return err
	}

	if err := connectionmanager.SendMessage(conn, defs.MsgTaskAssign, assignBytes); err != nil {
		p.Logger.Error("Failed to send task assignment", "taskId", task.ID, "workerID", w.ID, "error", err)
		return err
	}

	return nil
}
