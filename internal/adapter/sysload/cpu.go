package sysload

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sampler yields a scalar utilization metric in the 0..100 range.
type Sampler interface {
	Sample() float64
}

// CPUSampler computes CPU utilization from /proc/stat deltas between
// consecutive samples. The first call returns 0 since there is no previous
// reading to diff against.
type CPUSampler struct {
	mu        sync.Mutex
	prevTotal uint64
	prevIdle  uint64
	primed    bool
}

func NewCPUSampler() *CPUSampler {
	return &CPUSampler{}
}

// Sample implements Sampler
func (s *CPUSampler) Sample() float64 {
	total, idle, err := readCPUTimes()
	if err != nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.primed {
		s.prevTotal, s.prevIdle = total, idle
		s.primed = true
		return 0
	}

	totalDelta := total - s.prevTotal
	idleDelta := idle - s.prevIdle
	s.prevTotal, s.prevIdle = total, idle

	if totalDelta == 0 {
		return 0
	}
	return (1.0 - float64(idleDelta)/float64(totalDelta)) * 100.0
}

// readCPUTimes returns total and idle CPU times from the first line of
// /proc/stat
func readCPUTimes() (total uint64, idle uint64, err error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, 0, err
	}

	line, _, _ := strings.Cut(string(data), "\n")
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, fmt.Errorf("unexpected /proc/stat format: %q", line)
	}

	for i, field := range fields[1:] {
		value, perr := strconv.ParseUint(field, 10, 64)
		if perr != nil {
			return 0, 0, perr
		}
		total += value
		if i == 3 { // idle is the 4th cpu field
			idle = value
		}
	}
	return total, idle, nil
}

// SyntheticSampler is the fallback where /proc/stat is unavailable. It
// produces a slowly drifting sawtooth so scheduling decisions stay visible
// in local runs.
type SyntheticSampler struct {
	start time.Time
}

func NewSyntheticSampler() *SyntheticSampler {
	return &SyntheticSampler{start: time.Now()}
}

// Sample implements Sampler
func (s *SyntheticSampler) Sample() float64 {
	elapsed := time.Since(s.start).Seconds()
	return float64(int(elapsed*7) % 100)
}

// NewSampler picks the CPU sampler when /proc/stat exists, the synthetic
// one otherwise.
func NewSampler() Sampler {
	if _, err := os.Stat("/proc/stat"); err == nil {
		return NewCPUSampler()
	}
	return NewSyntheticSampler()
}
