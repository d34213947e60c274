package secondary

import (
	"context"

	"gitlab.com/clb-2025.net/internal/domain"
)

// TaskSource produces tasks for the dispatcher to distribute. Returns nil
// when no task is currently available.
type TaskSource interface {
	NextTask(ctx context.Context) (*domain.Task, error)
}
