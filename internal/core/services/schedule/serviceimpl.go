package schedule

import (
	"time"

	"gitlab.com/clb-2025.net/internal/domain"
)

var _ ISchedulerService = &LeastLoadScheduler{}

// LeastLoadScheduler selects the idle worker with the minimum last-reported
// load. Ties resolve by registration order so behavior is reproducible.
type LeastLoadScheduler struct {
	staleAfter time.Duration
}

// NewLeastLoadScheduler creates a scheduler with the given staleness threshold.
func NewLeastLoadScheduler(staleAfter time.Duration) *LeastLoadScheduler {
	return &LeastLoadScheduler{staleAfter: staleAfter}
}

// Select implements ISchedulerService
func (s *LeastLoadScheduler) Select(snapshot []domain.WorkerInfo, now time.Time) (*domain.WorkerInfo, []string) {
	var best *domain.WorkerInfo
	var stale []string

	for i := range snapshot {
		w := &snapshot[i]
		if w.Stale(now, s.staleAfter) {
			stale = append(stale, w.ID)
			continue
		}
		if !w.Idle() {
			continue
		}
		// Snapshot is ordered by registration sequence, so a strict
		// less-than keeps the earliest-registered worker on ties.
		if best == nil || w.LastLoad < best.LastLoad {
			best = w
		}
	}

	if best == nil {
		return nil, stale
	}
	picked := *best
	return &picked, stale
}
