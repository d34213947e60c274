package defs

// Protocol data structures
type (
	// HelloData represents the data sent during the worker handshake
	HelloData struct {
		ProtocolVersion int    `json:"protocol_version"`
		Name            string `json:"name,omitempty"`
	}

	// HelloAckData confirms registration and carries the master-assigned id
	HelloAckData struct {
		AssignedID string `json:"assigned_id"`
	}

	// LoadReportData represents a periodic utilization sample
	LoadReportData struct {
		Load      float64 `json:"load"`
		Timestamp int64   `json:"timestamp"`
	}
)
