package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"gitlab.com/clb-2025.net/internal/adapter/sysload"
	"gitlab.com/clb-2025.net/internal/config"
	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/clb-2025.net/internal/tcp/defs"
)

// Executor runs one opaque task and returns its failure, if any. Execution
// is the agent's concern; the master only sees the completion signal.
type Executor func(ctx context.Context, assignment defs.TaskAssignData) error

// Agent owns one persistent connection to the master. It runs two
// activities per connection: a load-report loop and a receive loop that
// executes assignments. On any connection loss it reconnects with
// exponential backoff.
type Agent struct {
	cfg     *config.AgentConfig
	sampler sysload.Sampler
	exec    Executor
	logger  primary.Logger

	mu sync.Mutex
	id string // master-assigned, fresh per connection
}

// NewAgent creates a worker agent. exec defaults to the simulated
// busy-work executor when nil.
func NewAgent(cfg *config.AgentConfig, sampler sysload.Sampler, exec Executor, logger primary.Logger) *Agent {
	if exec == nil {
		exec = SimulatedExecutor
	}
	return &Agent{
		cfg:     cfg,
		sampler: sampler,
		exec:    exec,
		logger:  logger,
	}
}

// ID returns the master-assigned worker id for the current connection.
func (a *Agent) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// Run connects to the master and serves until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	backoff := a.cfg.ReconnectMin
	for {
		err := a.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Warn("Connection to master lost", "error", err, "retryIn", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > a.cfg.ReconnectMax {
			backoff = a.cfg.ReconnectMax
		}
	}
}

// runConnection serves one physical connection: handshake, then the report
// loop and the receive loop until either fails.
func (a *Agent) runConnection(ctx context.Context) error {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", a.cfg.MasterAddr)
	if err != nil {
		return fmt.Errorf("failed to dial master: %w", err)
	}
	defer conn.Close()

	if err := a.handshake(conn); err != nil {
		return err
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- a.reportLoop(connCtx, conn) }()
	go func() { errCh <- a.receiveLoop(connCtx, conn) }()

	select {
	case err := <-errCh:
		// Closing the socket unblocks whichever loop is still waiting
		conn.Close()
		return err
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	}
}

// handshake sends HELLO and waits for HELLO_ACK with the assigned id
func (a *Agent) handshake(conn net.Conn) error {
	helloBytes, err := json.Marshal(defs.HelloData{
		ProtocolVersion: defs.ProtocolVersion,
		Name:            a.cfg.Name,
	})
	if err != nil {
		return err
	}
	if err := connectionmanager.SendMessage(conn, defs.MsgHello, helloBytes); err != nil {
		return fmt.Errorf("failed to send hello: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(defs.HandshakeTimeout))
	msgType, payload, err := connectionmanager.ReadMessage(conn)
	if err != nil {
		return fmt.Errorf("failed to read hello ack: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	if msgType == defs.MsgError {
		var errData connectionmanager.ErrorData
		_ = json.Unmarshal(payload, &errData)
		return fmt.Errorf("master rejected handshake: %d %s", errData.Code, errData.Message)
	}
	if msgType != defs.MsgHelloAck {
		return fmt.Errorf("unexpected handshake response type: %d", msgType)
	}

	var ackData defs.HelloAckData
	if err := json.Unmarshal(payload, &ackData); err != nil {
		return fmt.Errorf("failed to parse hello ack: %w", err)
	}

	a.mu.Lock()
	a.id = ackData.AssignedID
	a.mu.Unlock()

	a.logger.Info("Registered with master", "workerID", ackData.AssignedID, "master", a.cfg.MasterAddr)
	return nil
}

// reportLoop periodically sends load samples, with heartbeats in between so
// liveness holds even if sampling stalls
func (a *Agent) reportLoop(ctx context.Context, conn net.Conn) error {
	reportTicker := time.NewTicker(a.cfg.ReportInterval)
	defer reportTicker.Stop()
	heartbeatTicker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reportTicker.C:
			load := a.sampler.Sample()
			reportBytes, err := json.Marshal(defs.LoadReportData{
				Load:      load,
				Timestamp: time.Now().Unix(),
			})
			if err != nil {
				return err
			}
			if err := connectionmanager.SendMessage(conn, defs.MsgLoadReport, reportBytes); err != nil {
				return fmt.Errorf("failed to send load report: %w", err)
			}
			a.logger.Debug("Load report sent", "load", load)
		case <-heartbeatTicker.C:
			if err := connectionmanager.SendMessage(conn, defs.MsgHeartbeat, nil); err != nil {
				return fmt.Errorf("failed to send heartbeat: %w", err)
			}
		}
	}
}

// receiveLoop waits for assignments, executes them, and reports completion
func (a *Agent) receiveLoop(ctx context.Context, conn net.Conn) error {
	for {
		msgType, payload, err := connectionmanager.ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("master closed connection")
			}
			return err
		}

		switch msgType {
		case defs.MsgTaskAssign:
			var assignData defs.TaskAssignData
			if err := json.Unmarshal(payload, &assignData); err != nil {
				a.logger.Error("Failed to parse task assignment", "error", err)
				continue
			}
			a.runTask(ctx, conn, assignData)
		case defs.MsgError:
			var errData connectionmanager.ErrorData
			_ = json.Unmarshal(payload, &errData)
			a.logger.Warn("Error from master", "code", errData.Code, "message", errData.Message)
		case defs.MsgHeartbeat:
			// Keep-alive from the master, nothing to do
		default:
			a.logger.Warn("Unexpected message type from master", "type", msgType)
		}
	}
}

// runTask executes one assignment and sends TASK_DONE
func (a *Agent) runTask(ctx context.Context, conn net.Conn, assignment defs.TaskAssignData) {
	a.logger.Info("Task received", "taskId", assignment.TaskID)

	execErr := a.exec(ctx, assignment)

	doneData := defs.TaskDoneData{
		TaskID:  assignment.TaskID,
		Success: execErr == nil,
	}
	if execErr != nil {
		doneData.Error = execErr.Error()
		a.logger.Error("Task execution failed", "taskId", assignment.TaskID, "error", execErr)
	} else {
		a.logger.Info("Task done", "taskId", assignment.TaskID)
	}

	doneBytes, err := json.Marshal(doneData)
	if err != nil {
		return
	}
	if err := connectionmanager.SendMessage(conn, defs.MsgTaskDone, doneBytes); err != nil {
		a.logger.Error("Failed to send task done", "taskId", assignment.TaskID, "error", err)
	}
}

// SimulatedExecutor burns CPU for the payload-specified duration. The
// default workload for local runs.
func SimulatedExecutor(ctx context.Context, assignment defs.TaskAssignData) error {
	duration := 3 * time.Second
	if secs, ok := assignment.Payload["duration"].(float64); ok && secs > 0 {
		duration = time.Duration(secs) * time.Second
	}

	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Busy work to keep the CPU occupied
		sum := 0
		for i := 0; i < 2000; i++ {
			sum += i * i
		}
		_ = sum
	}
	return nil
}
