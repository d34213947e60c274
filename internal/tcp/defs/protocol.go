package defs

import "time"

// Protocol constants
const (
	MagicNumber uint16 = 0xBA1D

	// ProtocolVersion is checked during the HELLO handshake; a mismatch
	// closes the connection.
	ProtocolVersion = 1

	// Message types
	MsgHello      byte = 0x01
	MsgHelloAck   byte = 0x02
	MsgLoadReport byte = 0x03
	MsgTaskAssign byte = 0x04
	MsgTaskDone   byte = 0x05
	MsgHeartbeat  byte = 0x06
	MsgError      byte = 0x07

	// Configuration constants
	HandshakeTimeout     = 30 * time.Second
	ConnectionRetryDelay = 1 * time.Second
)
