package primary

import (
	"context"
	"net"

	"gitlab.com/clb-2025.net/internal/domain"
)

// MessageHandler defines an interface for handling different message types
type MessageHandler interface {
	HandleMessage(ctx context.Context, conn net.Conn, payload []byte, workerID *string) error
}

// MessagePublisher pushes an outbound message to a worker connection
type MessagePublisher interface {
	PublishMessage(ctx context.Context, conn net.Conn, task *domain.Task, w domain.WorkerInfo) error
}
