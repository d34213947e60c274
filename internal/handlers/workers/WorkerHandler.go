package workers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/clb-2025.net/internal/core/ports/secondary"
	"gitlab.com/clb-2025.net/internal/core/services/registry"
	"gitlab.com/clb-2025.net/internal/domain"
	"gitlab.com/clb-2025.net/internal/handlers"
)

// ApiHandler serves the worker views: the live registry snapshot and the
// Redis mirror for per-worker lookups.
type ApiHandler struct {
	WorkerRegistry registry.IWorkerRegistry
	WorkerRepo     secondary.WorkerRepository
	StaleAfter     time.Duration
}

func NewHandler(workerRegistry registry.IWorkerRegistry, workerRepo secondary.WorkerRepository, staleAfter time.Duration) *ApiHandler {
	return &ApiHandler{
		WorkerRegistry: workerRegistry,
		WorkerRepo:     workerRepo,
		StaleAfter:     staleAfter,
	}
}

func (api *ApiHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/workers", api.GetWorkers).Methods("GET")
	r.HandleFunc("/api/workers/{workerId}", api.GetWorker).Methods("GET")
}

// GetWorkers returns the live registry snapshot with liveness annotation
func (api *ApiHandler) GetWorkers(w http.ResponseWriter, r *http.Request) {
	snapshot := api.WorkerRegistry.Snapshot()

	now := time.Now()
	for i := range snapshot {
		snapshot[i].IsActive = !snapshot[i].Stale(now, api.StaleAfter)
	}

	handlers.ResponseWithJson(w, http.StatusOK, map[string][]domain.WorkerInfo{"workers": snapshot})
}

// GetWorker returns one worker from the mirror store
func (api *ApiHandler) GetWorker(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	workerID := vars["workerId"]

	if api.WorkerRepo == nil {
		handlers.ResponseError(w, "Worker mirror not configured", http.StatusNotImplemented)
		return
	}

	worker, err := api.WorkerRepo.GetWorker(r.Context(), workerID)
	if err != nil {
		handlers.ResponseError(w, "Failed to get worker", http.StatusInternalServerError)
		return
	}
	if worker == nil {
		handlers.ResponseError(w, "Worker not found", http.StatusNotFound)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, worker)
}
