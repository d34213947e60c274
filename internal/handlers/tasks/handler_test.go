package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/clb-2025.net/internal/core/services/dispatch"
	"gitlab.com/clb-2025.net/internal/core/services/registry"
	"gitlab.com/clb-2025.net/internal/core/services/schedule"
	"gitlab.com/clb-2025.net/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Warn(msg string, args ...interface{})  {}

type discardSender struct{}

func (discardSender) SendTask(ctx context.Context, workerID string, task *domain.Task) error {
	return nil
}

func newTestRouter(capacity int) (*mux.Router, dispatch.IDispatchService) {
	reg := registry.NewWorkerRegistry(nil, nopLogger{})
	scheduler := schedule.NewLeastLoadScheduler(time.Minute)
	svc := dispatch.NewDispatchService(reg, scheduler, capacity, nopLogger{})
	svc.SetSender(discardSender{})

	r := mux.NewRouter()
	NewTaskHandler(svc, nopLogger{}).Register(r)
	return r, svc
}

func TestSubmitTask_Accepted(t *testing.T) {
	router, svc := newTestRouter(4)

	body := bytes.NewBufferString(`{"payload":{"work":"compute_pi","duration":3}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["task_id"])

	// No workers connected, so it stays pending
	assert.Equal(t, 1, svc.QueueDepth())
}

func TestSubmitTask_InvalidBody(t *testing.T) {
	router, _ := newTestRouter(4)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitTask_QueueFull(t *testing.T) {
	router, _ := newTestRouter(1)

	for i := 0; i < 2; i++ {
		body := bytes.NewBufferString(`{"payload":{}}`)
		req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if i == 0 {
			require.Equal(t, http.StatusAccepted, rec.Code)
		} else {
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		}
	}
}

func TestGetQueueDepth(t *testing.T) {
	router, svc := newTestRouter(4)
	require.NoError(t, svc.Enqueue(context.Background(), domain.NewTask(nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/queue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp["depth"])
}
