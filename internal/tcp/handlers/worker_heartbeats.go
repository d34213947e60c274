package handlers

import (
	"context"
	"fmt"
	"net"

	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/core/services/registry"
	"gitlab.com/clb-2025.net/internal/tcp/connectionmanager"
)

var _ primary.MessageHandler = (*WorkerHeartbeatHandler)(nil)

// WorkerHeartbeatHandler handles keep-alive frames sent while a worker has
// nothing else to say. The payload is empty; only liveness is refreshed.
type WorkerHeartbeatHandler struct {
	WorkerRegistry registry.IWorkerRegistry
	Logger         primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *WorkerHeartbeatHandler) HandleMessage(ctx context.Context, conn net.Conn, payload []byte, workerID *string) error {
	if *workerID == "" {
		connectionmanager.SendErrorMessage(conn, 1008, "Worker not registered")
		return fmt.Errorf("worker not registered")
	}

	if err := h.WorkerRegistry.Heartbeat(ctx, *workerID); err != nil {
		h.Logger.Error("Failed to update worker heartbeat", "workerID", *workerID, "error", err)
		connectionmanager.SendErrorMessage(conn, 1009, "Failed to update heartbeat")
		return err
	}

	h.Logger.Debug("Worker heartbeat received", "workerID", *workerID)
	return nil
}
