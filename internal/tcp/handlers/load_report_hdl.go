package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/core/services/registry"
	"gitlab.com/clb-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/clb-2025.net/internal/tcp/defs"
)

var _ primary.MessageHandler = (*LoadReportHandler)(nil)

// LoadReportHandler handles periodic utilization samples
type LoadReportHandler struct {
	WorkerRegistry registry.IWorkerRegistry
	Logger         primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *LoadReportHandler) HandleMessage(ctx context.Context, conn net.Conn, payload []byte, workerID *string) error {
	if *workerID == "" {
		connectionmanager.SendErrorMessage(conn, 1005, "Worker not registered")
		return fmt.Errorf("worker not registered")
	}

	var reportData defs.LoadReportData
	if err := json.Unmarshal(payload, &reportData); err != nil {
		h.Logger.Error("Failed to parse load report", "error", err)
		connectionmanager.SendErrorMessage(conn, 1006, "Invalid load report data")
		return err
	}

	if err := h.WorkerRegistry.UpdateLoad(ctx, *workerID, reportData.Load); err != nil {
		h.Logger.Error("Failed to update worker load", "workerID", *workerID, "error", err)
		connectionmanager.SendErrorMessage(conn, 1007, "Failed to update load")
		return err
	}

	h.Logger.Debug("Load report received", "workerID", *workerID, "load", reportData.Load)
	return nil
}
