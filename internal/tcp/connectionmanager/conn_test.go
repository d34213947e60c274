package connectionmanager

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/clb-2025.net/internal/tcp/defs"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Warn(msg string, args ...interface{})  {}

func TestSendAndReadMessage(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte(`{"load":12.5}`)
	go func() {
		_ = SendMessage(client, defs.MsgLoadReport, payload)
	}()

	msgType, got, err := ReadMessage(server)
	require.NoError(t, err)
	assert.Equal(t, defs.MsgLoadReport, msgType)
	assert.Equal(t, payload, got)
}

func TestSendAndReadMessage_EmptyPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = SendMessage(client, defs.MsgHeartbeat, nil)
	}()

	msgType, got, err := ReadMessage(server)
	require.NoError(t, err)
	assert.Equal(t, defs.MsgHeartbeat, msgType)
	assert.Empty(t, got)
}

func TestReadMessage_RejectsBadMagic(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		header := make([]byte, 8)
		binary.BigEndian.PutUint16(header[0:2], 0xDEAD)
		header[2] = defs.MsgHello
		binary.BigEndian.PutUint32(header[4:8], 0)
		_, _ = client.Write(header)
	}()

	_, _, err := ReadMessage(server)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid magic number")
}

func TestConnectionManager_RegisterAndRemove(t *testing.T) {
	cm := NewConnectionManager(nopLogger{})
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cm.RegisterWorker("w1", server)

	conn, exists := cm.GetConnection("w1")
	require.True(t, exists)
	assert.Equal(t, server, conn)

	cm.RemoveWorker("w1")
	_, exists = cm.GetConnection("w1")
	assert.False(t, exists)
}
