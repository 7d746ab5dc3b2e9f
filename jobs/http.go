package jobs

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgercore/internal/platform/httpx"
)

// QueueReader reads queue counters. *asynq.Inspector satisfies it.
type QueueReader interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler exposes job health and on-demand integrity runs over HTTP.
type Handler struct {
	queues   QueueReader
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewHandler constructs the jobs HTTP handler. queues and enqueuer may be nil
// when Redis is not configured.
func NewHandler(queues QueueReader, enqueuer Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{queues: queues, enqueuer: enqueuer, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/ledger-integrity", h.enqueueIntegrity)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	if h.queues == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"queue": QueueDefault, "pending": 0, "retry": 0})
		return
	}
	info, err := h.queues.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Jobs unavailable", "queue state could not be read")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"queue": info.Queue, "pending": info.Pending, "retry": info.Retry})
}

func (h *Handler) enqueueIntegrity(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Jobs unavailable", "job queue is not configured")
		return
	}
	failOnFindings := false
	if raw := r.URL.Query().Get("fail_on_findings"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, &httpx.ValidationError{Fields: map[string]string{"fail_on_findings": "must be a boolean"}})
			return
		}
		failOnFindings = v
	}
	info, err := h.enqueuer.EnqueueLedgerIntegrity(r.Context(), LedgerIntegrityPayload{Trigger: "api", FailOnFindings: failOnFindings})
	if err != nil {
		h.logger.Error("enqueue ledger integrity", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": info.ID, "queue": info.Queue})
}
