package config

import (
	"os"
	"strconv"
	"time"
)

// DispatchCfg bundles the tunables of the scheduling and dispatch path.
type DispatchCfg struct {
	// QueueCapacity bounds the pending-task FIFO; enqueues beyond it are rejected.
	QueueCapacity int
	// StaleAfter excludes a worker from selection once its last report is older.
	StaleAfter time.Duration
	// LivenessTimeout declares a silent connection dead.
	LivenessTimeout time.Duration
	// TaskSourceInterval is the cadence of the task-source pump.
	TaskSourceInterval time.Duration
	// SweepInterval is the cadence of the stale-worker sweep.
	SweepInterval time.Duration
}

func NewDispatchCfg() *DispatchCfg {
	return &DispatchCfg{
		QueueCapacity:      getIntEnv("DISPATCH_QUEUE_CAPACITY", 64),
		StaleAfter:         getDurationEnv("WORKER_STALE_AFTER_SEC", 10*time.Second),
		LivenessTimeout:    getDurationEnv("WORKER_LIVENESS_TIMEOUT_SEC", 15*time.Second),
		TaskSourceInterval: getDurationEnv("TASK_SOURCE_INTERVAL_SEC", 5*time.Second),
		SweepInterval:      getDurationEnv("STALE_SWEEP_INTERVAL_SEC", 5*time.Second),
	}
}

func getIntEnv(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return time.Duration(value) * time.Second
}
