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

// Implementation of message handlers
// Each handler deals with one specific message type

var _ primary.MessageHandler = (*WorkerHelloHandler)(nil)

// WorkerHelloHandler handles the connection handshake
type WorkerHelloHandler struct {
	WorkerRegistry registry.IWorkerRegistry
	ConnectionMgr  *connectionmanager.ConnectionManager
	Logger         primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *WorkerHelloHandler) HandleMessage(ctx context.Context, conn net.Conn, payload []byte, workerID *string) error {
	if *workerID != "" {
		connectionmanager.SendErrorMessage(conn, 1001, "Worker already registered")
		return fmt.Errorf("duplicate hello on registered connection")
	}

	var helloData defs.HelloData
	if err := json.Unmarshal(payload, &helloData); err != nil {
		h.Logger.Error("Failed to parse hello", "error", err)
		connectionmanager.SendErrorMessage(conn, 1002, "Invalid hello data")
		return err
	}

	if helloData.ProtocolVersion != defs.ProtocolVersion {
		h.Logger.Error("Protocol version mismatch", "got", helloData.ProtocolVersion, "want", defs.ProtocolVersion)
		connectionmanager.SendErrorMessage(conn, 1003, "Unsupported protocol version")
		return fmt.Errorf("unsupported protocol version: %d", helloData.ProtocolVersion)
	}

	worker, err := h.WorkerRegistry.Register(ctx, helloData.Name, conn.RemoteAddr().String())
	if err != nil {
		h.Logger.Error("Failed to register worker", "error", err)
		connectionmanager.SendErrorMessage(conn, 1004, "Failed to register worker")
		return err
	}

	*workerID = worker.ID
	h.ConnectionMgr.RegisterWorker(worker.ID, conn)

	ackBytes, err := json.Marshal(defs.HelloAckData{AssignedID: worker.ID})
	if err != nil {
		return err
	}
	if err := connectionmanager.SendMessage(conn, defs.MsgHelloAck, ackBytes); err != nil {
		h.Logger.Error("Failed to send hello ack", "workerID", worker.ID, "error", err)
		return err
	}

	h.Logger.Info("Worker handshake complete", "workerID", worker.ID, "name", helloData.Name)
	return nil
}
