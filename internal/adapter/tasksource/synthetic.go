package tasksource

import (
	"context"
	"sync/atomic"

	"gitlab.com/clb-2025.net/internal/core/ports/secondary"
	"gitlab.com/clb-2025.net/internal/domain"
)

var _ secondary.TaskSource = (*SyntheticSource)(nil)

// SyntheticSource generates one simulated busy-work task per pump tick.
// Used in local runs so the dispatch path has traffic without an external
// producer; real tasks arrive through the HTTP API.
type SyntheticSource struct {
	durationSec int
	counter     atomic.Uint64
}

func NewSyntheticSource(durationSec int) *SyntheticSource {
	return &SyntheticSource{durationSec: durationSec}
}

// NextTask implements secondary.TaskSource
func (s *SyntheticSource) NextTask(ctx context.Context) (*domain.Task, error) {
	n := s.counter.Add(1)
	return domain.NewTask(map[string]interface{}{
		"work":     "compute_pi",
		"sequence": n,
		"duration": s.durationSec,
	}), nil
}
