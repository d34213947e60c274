package schedule

import (
	"time"

	"gitlab.com/clb-2025.net/internal/domain"
)

// ISchedulerService defines the interface for target selection. Select is a
// pure function of the snapshot: no hidden state, no side effects.
type ISchedulerService interface {
	// Select picks the idle worker with the minimum last-reported load.
	// Returns nil when no idle worker is eligible. The second return value
	// lists workers whose last report is older than the staleness threshold;
	// those are excluded from selection and flagged for a liveness re-check.
	Select(snapshot []domain.WorkerInfo, now time.Time) (*domain.WorkerInfo, []string)
}
