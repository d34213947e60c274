package workerport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/core/ports/secondary"
	"gitlab.com/clb-2025.net/internal/domain"
)

const (
	workerKeyPrefix  = "worker:"
	workerExpiration = 2 * time.Minute
)

var _ secondary.WorkerRepository = (*WorkerRepository)(nil)

// WorkerRepository implements the WorkerRepository interface with Redis.
// Entries carry a TTL so a crashed master leaves no permanent ghosts.
type WorkerRepository struct {
	redisClient *redis.Client
	logger      primary.Logger
}

// NewWorkerRepository creates a new Redis worker repository
func NewWorkerRepository(redisClient *redis.Client, logger primary.Logger) *WorkerRepository {
	return &WorkerRepository{
		redisClient: redisClient,
		logger:      logger,
	}
}

// SaveWorker saves worker information to Redis
func (r *WorkerRepository) SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error {
	workerJSON, err := json.Marshal(worker)
	if err != nil {
		r.logger.Error("Failed to marshal worker info", "error", err)
		return fmt.Errorf("failed to marshal worker info: %w", err)
	}

	workerKey := fmt.Sprintf("%s%s", workerKeyPrefix, worker.ID)
	if err := r.redisClient.Set(ctx, workerKey, workerJSON, workerExpiration).Err(); err != nil {
		return fmt.Errorf("failed to save worker info: %w", err)
	}

	return nil
}

// GetWorker retrieves worker information from Redis by ID
func (r *WorkerRepository) GetWorker(ctx context.Context, workerID string) (*domain.WorkerInfo, error) {
	workerKey := fmt.Sprintf("%s%s", workerKeyPrefix, workerID)
	workerJSON, err := r.redisClient.Get(ctx, workerKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get worker info: %w", err)
	}

	var worker domain.WorkerInfo
	if err := json.Unmarshal(workerJSON, &worker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worker info: %w", err)
	}

	return &worker, nil
}

// GetAllWorkers retrieves all worker information from Redis.
func (r *WorkerRepository) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	var cursor uint64
	var workerKeys []string
	var workers []*domain.WorkerInfo
	var err error

	// Use SCAN to iterate over keys with the specified prefix
	for {
		var keys []string
		keys, cursor, err = r.redisClient.Scan(ctx, cursor, workerKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker keys: %w", err)
		}
		workerKeys = append(workerKeys, keys...)
		if cursor == 0 {
			break
		}
	}

	if len(workerKeys) == 0 {
		return workers, nil // No workers found
	}

	// Use MGET to retrieve all worker data at once
	workerData, err := r.redisClient.MGet(ctx, workerKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve worker data: %w", err)
	}

	for _, data := range workerData {
		if data == nil {
			continue
		}
		var worker domain.WorkerInfo
		if err := json.Unmarshal([]byte(data.(string)), &worker); err != nil {
			return nil, fmt.Errorf("failed to unmarshal worker data: %w", err)
		}
		workers = append(workers, &worker)
	}

	return workers, nil
}

// RemoveWorker deletes worker information from Redis
func (r *WorkerRepository) RemoveWorker(ctx context.Context, workerID string) error {
	workerKey := fmt.Sprintf("%s%s", workerKeyPrefix, workerID)
	if err := r.redisClient.Del(ctx, workerKey).Err(); err != nil {
		return fmt.Errorf("failed to remove worker info: %w", err)
	}
	return nil
}

// RemoveInactiveWorkers drops workers whose last report predates cutoffTime.
// Expiration handles crashes; this handles clean shutdowns of the sweep.
func (r *WorkerRepository) RemoveInactiveWorkers(ctx context.Context, cutoffTime time.Time) error {
	workers, err := r.GetAllWorkers(ctx)
	if err != nil {
		return err
	}

	for _, worker := range workers {
		if worker.LastReport.After(cutoffTime) {
			continue
		}
		if err := r.RemoveWorker(ctx, worker.ID); err != nil {
			r.logger.Error("Failed to remove inactive worker", "workerId", worker.ID, "error", err)
		}
	}

	return nil
}
