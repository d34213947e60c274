package tasks

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/core/services/dispatch"
	"gitlab.com/clb-2025.net/internal/domain"
	"gitlab.com/clb-2025.net/internal/handlers"
)

// TaskHandler is the HTTP face of the task source: external producers
// submit work here and it lands in the pending queue.
type TaskHandler struct {
	dispatchService dispatch.IDispatchService
	logger          primary.Logger
}

func NewTaskHandler(dispatchService dispatch.IDispatchService, logger primary.Logger) *TaskHandler {
	return &TaskHandler{
		dispatchService: dispatchService,
		logger:          logger,
	}
}

func (h *TaskHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/tasks", h.SubmitTask).Methods("POST")
	r.HandleFunc("/api/tasks/queue", h.GetQueueDepth).Methods("GET")
}

// SubmitTaskRequest represents a task submission
type SubmitTaskRequest struct {
	Payload map[string]interface{} `json:"payload"`
}

// SubmitTask enqueues a new task for dispatch
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode task submission", "error", err)
		handlers.ResponseError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	task := domain.NewTask(req.Payload)
	if err := h.dispatchService.Enqueue(r.Context(), task); err != nil {
		if errors.Is(err, dispatch.ErrQueueFull) {
			handlers.ResponseError(w, "Pending queue is full", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("Failed to enqueue task", "error", err)
		handlers.ResponseError(w, "Failed to enqueue task", http.StatusInternalServerError)
		return
	}

	handlers.ResponseWithJson(w, http.StatusAccepted, map[string]string{"task_id": task.ID.String()})
}

// GetQueueDepth returns the current pending-queue length
func (h *TaskHandler) GetQueueDepth(w http.ResponseWriter, r *http.Request) {
	handlers.ResponseWithJson(w, http.StatusOK, map[string]int{"depth": h.dispatchService.QueueDepth()})
}
