package sequence

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/platform/httpx"
)

// Handler exposes sequence endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
	retries uint64
}

// NewHandler builds a sequence handler. Allocation and activation are retried
// up to retries times on lock contention.
func NewHandler(logger *slog.Logger, service *Service, retries uint64) *Handler {
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder(), retries: retries}
}

// MountRoutes registers sequence routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.ensure)
	r.Get("/peek", h.peek)
	r.Put("/active", h.setActive)
	r.Post("/allocate", h.allocate)
}

type scopeRequest struct {
	CompanyID    int64  `json:"company_id" validate:"required,gt=0"`
	FiscalYearID int64  `json:"fiscal_year_id" validate:"required,gt=0"`
	DocumentType string `json:"document_type" validate:"required,max=16"`
}

type ensureRequest struct {
	scopeRequest
	Prefix  string `json:"prefix" validate:"required,max=32"`
	Padding int    `json:"padding" validate:"required,min=1,max=18"`
	Floor   int64  `json:"floor" validate:"min=0"`
}

type activeRequest struct {
	scopeRequest
	Active bool `json:"active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.List(r.Context(), companyID)
	if err != nil {
		h.fail(w, "list sequences", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sequences": items})
}

func (h *Handler) peek(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fiscalYearID, err := httpx.QueryInt64(r, "fiscal_year_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	state, err := h.service.Peek(r.Context(), NewScope(companyID, fiscalYearID, r.URL.Query().Get("document_type")))
	if err != nil {
		h.fail(w, "peek sequence", err)
		return
	}
	httpx.JSON(w, http.StatusOK, state)
}

func (h *Handler) ensure(w http.ResponseWriter, r *http.Request) {
	var req ensureRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	state, err := h.service.EnsureSequence(r.Context(), EnsureInput{
		CompanyID:    req.CompanyID,
		FiscalYearID: req.FiscalYearID,
		DocumentType: req.DocumentType,
		Prefix:       req.Prefix,
		Padding:      req.Padding,
		Floor:        req.Floor,
	})
	if err != nil {
		h.fail(w, "ensure sequence", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, state)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope := NewScope(req.CompanyID, req.FiscalYearID, req.DocumentType)
	err := db.RetryOnContention(r.Context(), h.retries, func() error {
		return h.service.SetActive(r.Context(), scope, req.Active)
	})
	if err != nil {
		h.fail(w, "set sequence active", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	var req scopeRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var number string
	err := db.RetryOnContention(r.Context(), h.retries, func() error {
		n, err := h.service.AllocateDocumentNumber(r.Context(), req.CompanyID, req.FiscalYearID, req.DocumentType)
		number = n
		return err
	})
	if err != nil {
		h.fail(w, "allocate document number", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"document_number": number})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
