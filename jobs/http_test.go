package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	got LedgerIntegrityPayload
	err error
}

func (f *fakeEnqueuer) EnqueueLedgerIntegrity(_ context.Context, payload LedgerIntegrityPayload) (*asynq.TaskInfo, error) {
	f.got = payload
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "task-9", Queue: QueueDefault}, nil
}

type fakeQueues struct{ err error }

func (f fakeQueues) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.QueueInfo{Queue: queue, Pending: 3, Retry: 1}, nil
}

func serveJobs(h *Handler, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestEnqueueIntegrityEndpoint(t *testing.T) {
	enq := &fakeEnqueuer{}
	rec := serveJobs(NewHandler(nil, enq, quietLogger()), http.MethodPost, "/ledger-integrity?fail_on_findings=true")

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"task_id":"task-9","queue":"default"}`, rec.Body.String())
	require.Equal(t, LedgerIntegrityPayload{Trigger: "api", FailOnFindings: true}, enq.got)
}

func TestEnqueueIntegrityRejectsBadFlag(t *testing.T) {
	rec := serveJobs(NewHandler(nil, &fakeEnqueuer{}, quietLogger()), http.MethodPost, "/ledger-integrity?fail_on_findings=maybe")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueIntegrityWithoutQueue(t *testing.T) {
	rec := serveJobs(NewHandler(nil, nil, quietLogger()), http.MethodPost, "/ledger-integrity")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobsHealth(t *testing.T) {
	rec := serveJobs(NewHandler(fakeQueues{}, nil, quietLogger()), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":3,"retry":1}`, rec.Body.String())

	rec = serveJobs(NewHandler(fakeQueues{err: errors.New("redis down")}, nil, quietLogger()), http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
