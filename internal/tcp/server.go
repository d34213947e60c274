package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/core/services/dispatch"
	"gitlab.com/clb-2025.net/internal/core/services/registry"
	"gitlab.com/clb-2025.net/internal/domain"
	"gitlab.com/clb-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/clb-2025.net/internal/tcp/defs"
	"gitlab.com/clb-2025.net/internal/tcp/handlers"
	"gitlab.com/clb-2025.net/internal/tcp/publishers"
)

// TCPServer handles TCP connections from workers. It runs one goroutine per
// connection; all shared state lives in the registry and dispatch services.
type TCPServer struct {
	address         string
	livenessTimeout time.Duration
	workerRegistry  registry.IWorkerRegistry
	dispatchService dispatch.IDispatchService
	logger          primary.Logger
	listener        net.Listener
	connectionMgr   *connectionmanager.ConnectionManager
	stopCh          chan struct{}
	handlers        map[byte]primary.MessageHandler
	publisher       map[byte]primary.MessagePublisher
}

var _ dispatch.TaskSender = (*TCPServer)(nil)

// TCPServerOption configures a TCPServer
type TCPServerOption func(*TCPServer)

// WithAddress sets the server address
func WithAddress(address string) TCPServerOption {
	return func(s *TCPServer) {
		s.address = address
	}
}

// WithLivenessTimeout sets the window after which a silent connection is
// declared dead
func WithLivenessTimeout(timeout time.Duration) TCPServerOption {
	return func(s *TCPServer) {
		s.livenessTimeout = timeout
	}
}

// NewTCPServer creates a new TCP server
func NewTCPServer(
	workerRegistry registry.IWorkerRegistry,
	dispatchService dispatch.IDispatchService,
	logger primary.Logger,
	options ...TCPServerOption,
) *TCPServer {
	server := &TCPServer{
		address:         ":9000", // Default address
		livenessTimeout: 15 * time.Second,
		workerRegistry:  workerRegistry,
		dispatchService: dispatchService,
		logger:          logger,
		connectionMgr:   connectionmanager.NewConnectionManager(logger),
		stopCh:          make(chan struct{}),
	}

	// Apply options
	for _, option := range options {
		option(server)
	}

	// Register message handlers
	server.setupMessageHandlers()

	return server
}

// setupMessageHandlers registers all message handlers
func (s *TCPServer) setupMessageHandlers() {
	s.handlers = map[byte]primary.MessageHandler{
		defs.MsgHello:      &handlers.WorkerHelloHandler{WorkerRegistry: s.workerRegistry, ConnectionMgr: s.connectionMgr, Logger: s.logger},
		defs.MsgLoadReport: &handlers.LoadReportHandler{WorkerRegistry: s.workerRegistry, Logger: s.logger},
		defs.MsgHeartbeat:  &handlers.WorkerHeartbeatHandler{WorkerRegistry: s.workerRegistry, Logger: s.logger},
		defs.MsgTaskDone:   &handlers.TaskDoneHandler{DispatchService: s.dispatchService, Logger: s.logger},
	}

	s.publisher = map[byte]primary.MessagePublisher{
		defs.MsgTaskAssign: publishers.NewTaskAssignPublisher(s.logger),
	}
}

// Start starts the TCP server
func (s *TCPServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.logger.Info("TCP server listening", "address", s.address)

	// Accept connections in a goroutine
	go s.acceptConnections()

	return nil
}

// Addr returns the bound listener address. Useful when starting on ":0".
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the TCP server
func (s *TCPServer) Stop(ctx context.Context) error {
	close(s.stopCh)

	// Close listener
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Error("Failed to close listener", "error", err)
		}
	}

	// Close all connections
	s.closeAllConnections()

	<-ctx.Done()

	return nil
}

// closeAllConnections closes all worker connections
func (s *TCPServer) closeAllConnections() {
	s.connectionMgr.ConnMutex.Lock()
	defer s.connectionMgr.ConnMutex.Unlock()

	for workerID, conn := range s.connectionMgr.Connections {
		if err := conn.Close(); err != nil {
			s.logger.Error("Failed to close connection", "workerID", workerID, "error", err)
		}
	}
}

// SendTask implements dispatch.TaskSender by pushing a TASK_ASSIGN frame to
// the worker's connection
func (s *TCPServer) SendTask(ctx context.Context, workerID string, task *domain.Task) error {
	conn, exists := s.connectionMgr.GetConnection(workerID)
	if !exists {
		return fmt.Errorf("worker not connected: %s", workerID)
	}

	return s.publisher[defs.MsgTaskAssign].PublishMessage(ctx, conn, task, domain.WorkerInfo{ID: workerID})
}

// acceptConnections accepts incoming connections
func (s *TCPServer) acceptConnections() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.stopCh:
					return
				default:
					s.logger.Error("Failed to accept connection", "error", err)
					time.Sleep(defs.ConnectionRetryDelay) // Avoid tight loop on error
					continue
				}
			}

			// Handle connection in a goroutine
			go s.handleConnection(conn)
		}
	}
}

// handleConnection handles a single worker connection. State machine:
// HANDSHAKING until the hello completes, then IDLE/BUSY driven by the
// dispatch service, DEAD on any read error or missed liveness window.
func (s *TCPServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	// Tight deadline until the handshake completes
	conn.SetDeadline(time.Now().Add(defs.HandshakeTimeout))

	var workerID string
	defer func() {
		if workerID != "" {
			s.teardownWorker(workerID)
		}
	}()

	for {
		select {
		case <-s.stopCh:
			return
		default:
			msgType, payload, err := connectionmanager.ReadMessage(conn)
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrDeadlineExceeded) {
					s.logger.Error("Failed to read message", "error", err)
				}
				return
			}

			handler, exists := s.handlers[msgType]
			if !exists {
				// Unknown frame is a protocol error; close the connection
				s.logger.Error("Unknown message type", "type", msgType)
				connectionmanager.SendErrorMessage(conn, 1016, fmt.Sprintf("Unknown message type: %d", msgType))
				return
			}

			ctx := context.Background()

			if err := handler.HandleMessage(ctx, conn, payload, &workerID); err != nil {
				s.logger.Error("Error handling message", "type", msgType, "error", err)
				return
			}

			// Every inbound frame refreshes the liveness window
			conn.SetDeadline(time.Now().Add(s.livenessTimeout))
		}
	}
}

// teardownWorker removes a dead connection's handle and recovers its
// in-flight task
func (s *TCPServer) teardownWorker(workerID string) {
	s.connectionMgr.RemoveWorker(workerID)

	ctx := context.Background()
	inflight, err := s.workerRegistry.Deregister(ctx, workerID)
	if err != nil {
		// Already deregistered by the stale sweep or a failed send
		return
	}

	s.logger.Info("Worker disconnected", "workerID", workerID)
	s.dispatchService.OnWorkerLost(ctx, workerID, inflight)
}
