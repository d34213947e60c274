package config

import (
	"os"
	"time"
)

// AgentConfig configures the worker-side agent.
type AgentConfig struct {
	MasterAddr        string
	Name              string
	ReportInterval    time.Duration
	HeartbeatInterval time.Duration
	ReconnectMin      time.Duration
	ReconnectMax      time.Duration
}

func NewAgentConfig() *AgentConfig {
	masterAddr := os.Getenv("MASTER_ADDR")
	if masterAddr == "" {
		masterAddr = "localhost:9000"
	}
	name := os.Getenv("WORKER_NAME")
	if name == "" {
		hostname, _ := os.Hostname()
		name = hostname
	}
	return &AgentConfig{
		MasterAddr:        masterAddr,
		Name:              name,
		ReportInterval:    getDurationEnv("LOAD_REPORT_INTERVAL_SEC", 2*time.Second),
		HeartbeatInterval: getDurationEnv("HEARTBEAT_INTERVAL_SEC", 5*time.Second),
		ReconnectMin:      getDurationEnv("RECONNECT_MIN_SEC", 1*time.Second),
		ReconnectMax:      getDurationEnv("RECONNECT_MAX_SEC", 30*time.Second),
	}
}
