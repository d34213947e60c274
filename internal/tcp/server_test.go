package tcp

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/clb-2025.net/internal/core/services/dispatch"
	"gitlab.com/clb-2025.net/internal/core/services/registry"
	"gitlab.com/clb-2025.net/internal/core/services/schedule"
	"gitlab.com/clb-2025.net/internal/domain"
	"gitlab.com/clb-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/clb-2025.net/internal/tcp/defs"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Warn(msg string, args ...interface{})  {}

type testMaster struct {
	server         *TCPServer
	workerRegistry *registry.WorkerRegistry
	dispatchSvc    *dispatch.DispatchService
}

func startMaster(t *testing.T) *testMaster {
	t.Helper()

	reg := registry.NewWorkerRegistry(nil, nopLogger{})
	scheduler := schedule.NewLeastLoadScheduler(time.Minute)
	dispatchSvc := dispatch.NewDispatchService(reg, scheduler, 8, nopLogger{})

	server := NewTCPServer(reg, dispatchSvc, nopLogger{},
		WithAddress("127.0.0.1:0"),
		WithLivenessTimeout(time.Minute),
	)
	dispatchSvc.SetSender(server)

	require.NoError(t, server.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = server.Stop(ctx)
	})

	return &testMaster{server: server, workerRegistry: reg, dispatchSvc: dispatchSvc}
}

// dialAndHandshake connects a fake worker and completes the hello exchange
func dialAndHandshake(t *testing.T, m *testMaster, name string) (net.Conn, string) {
	t.Helper()

	conn, err := net.Dial("tcp", m.server.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	helloBytes, err := json.Marshal(defs.HelloData{ProtocolVersion: defs.ProtocolVersion, Name: name})
	require.NoError(t, err)
	require.NoError(t, connectionmanager.SendMessage(conn, defs.MsgHello, helloBytes))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := connectionmanager.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, defs.MsgHelloAck, msgType)

	var ack defs.HelloAckData
	require.NoError(t, json.Unmarshal(payload, &ack))
	require.NotEmpty(t, ack.AssignedID)
	conn.SetReadDeadline(time.Time{})
	return conn, ack.AssignedID
}

func sendLoad(t *testing.T, conn net.Conn, load float64) {
	t.Helper()
	reportBytes, err := json.Marshal(defs.LoadReportData{Load: load, Timestamp: time.Now().Unix()})
	require.NoError(t, err)
	require.NoError(t, connectionmanager.SendMessage(conn, defs.MsgLoadReport, reportBytes))
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestHandshake_RegistersWorker(t *testing.T) {
	m := startMaster(t)

	_, workerID := dialAndHandshake(t, m, "alpha")

	waitForCondition(t, time.Second, func() bool {
		snapshot := m.workerRegistry.Snapshot()
		return len(snapshot) == 1 && snapshot[0].ID == workerID
	})
}

func TestHandshake_RejectsBadProtocolVersion(t *testing.T) {
	m := startMaster(t)

	conn, err := net.Dial("tcp", m.server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	helloBytes, err := json.Marshal(defs.HelloData{ProtocolVersion: 99})
	require.NoError(t, err)
	require.NoError(t, connectionmanager.SendMessage(conn, defs.MsgHello, helloBytes))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := connectionmanager.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, defs.MsgError, msgType)

	var errData connectionmanager.ErrorData
	require.NoError(t, json.Unmarshal(payload, &errData))
	assert.Equal(t, 1003, errData.Code)
	assert.Empty(t, m.workerRegistry.Snapshot())
}

func TestLoadReport_UpdatesRegistry(t *testing.T) {
	m := startMaster(t)

	conn, workerID := dialAndHandshake(t, m, "alpha")
	sendLoad(t, conn, 42.5)

	waitForCondition(t, time.Second, func() bool {
		for _, w := range m.workerRegistry.Snapshot() {
			if w.ID == workerID && w.LastLoad == 42.5 {
				return true
			}
		}
		return false
	})
}

func TestTaskRoundTrip(t *testing.T) {
	m := startMaster(t)

	conn, workerID := dialAndHandshake(t, m, "alpha")
	sendLoad(t, conn, 10)

	waitForCondition(t, time.Second, func() bool {
		snapshot := m.workerRegistry.Snapshot()
		return len(snapshot) == 1 && snapshot[0].LastLoad == 10
	})

	task := domain.NewTask(map[string]interface{}{"work": "compute_pi"})
	require.NoError(t, m.dispatchSvc.Enqueue(context.Background(), task))

	// The worker receives the assignment
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := connectionmanager.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, defs.MsgTaskAssign, msgType)

	var assignData defs.TaskAssignData
	require.NoError(t, json.Unmarshal(payload, &assignData))
	assert.Equal(t, task.ID, assignData.TaskID)

	// Worker reports completion and returns to the idle pool
	doneBytes, err := json.Marshal(defs.TaskDoneData{TaskID: task.ID, Success: true})
	require.NoError(t, err)
	require.NoError(t, connectionmanager.SendMessage(conn, defs.MsgTaskDone, doneBytes))

	waitForCondition(t, time.Second, func() bool {
		snapshot := m.workerRegistry.Snapshot()
		return len(snapshot) == 1 &&
			snapshot[0].ID == workerID &&
			snapshot[0].State == domain.WorkerStateIdle
	})
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
}

func TestDisconnect_RemovesWorkerAndRequeuesTask(t *testing.T) {
	m := startMaster(t)

	conn, _ := dialAndHandshake(t, m, "doomed")
	sendLoad(t, conn, 5)

	waitForCondition(t, time.Second, func() bool {
		return len(m.workerRegistry.Snapshot()) == 1
	})

	task := domain.NewTask(nil)
	require.NoError(t, m.dispatchSvc.Enqueue(context.Background(), task))

	// Drop the connection mid-task
	conn.Close()

	waitForCondition(t, 2*time.Second, func() bool {
		return len(m.workerRegistry.Snapshot()) == 0 &&
			m.dispatchSvc.QueueDepth() == 1
	})
	assert.Equal(t, domain.TaskStatusPending, task.Status)
}

func TestUnknownMessageType_ClosesConnection(t *testing.T) {
	m := startMaster(t)

	conn, _ := dialAndHandshake(t, m, "alpha")
	require.NoError(t, connectionmanager.SendMessage(conn, 0x7F, []byte("{}")))

	waitForCondition(t, 2*time.Second, func() bool {
		return len(m.workerRegistry.Snapshot()) == 0
	})
}
