package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/platform/httpx"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
)

// Handler exposes journal and chart of accounts endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
	retries uint64
}

// NewHandler builds a ledger handler. Posting is retried up to retries times
// on lock contention.
func NewHandler(logger *slog.Logger, service *Service, retries uint64) *Handler {
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder(), retries: retries}
}

// MountAccountRoutes registers chart of accounts routes.
func (h *Handler) MountAccountRoutes(r chi.Router) {
	r.Get("/", h.listAccounts)
	r.Post("/", h.createAccount)
	r.Put("/{id}/parent", h.reparentAccount)
}

// MountJournalRoutes registers journal routes.
func (h *Handler) MountJournalRoutes(r chi.Router) {
	r.Post("/", h.createDraft)
	r.Post("/validate", h.validate)
	r.Post("/post", h.postNew)
	r.Get("/{id}", h.showEntry)
	r.Put("/{id}/lines", h.replaceLines)
	r.Put("/{id}/description", h.updateDescription)
	r.Delete("/{id}", h.deleteEntry)
	r.Post("/{id}/post", h.postDraft)
}

type lineRequest struct {
	AccountID int64           `json:"account_id" validate:"required,gt=0"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type entryRequest struct {
	CompanyID    int64         `json:"company_id" validate:"required,gt=0"`
	FiscalYearID int64         `json:"fiscal_year_id" validate:"required,gt=0"`
	Date         time.Time     `json:"date" validate:"required"`
	Description  string        `json:"description" validate:"max=500"`
	DocumentType string        `json:"document_type" validate:"omitempty,max=16"`
	Lines        []lineRequest `json:"lines" validate:"dive"`
}

type linesRequest struct {
	CompanyID int64         `json:"company_id" validate:"required,gt=0"`
	Lines     []lineRequest `json:"lines" validate:"dive"`
}

type descriptionRequest struct {
	Description string `json:"description" validate:"max=500"`
}

type postRequest struct {
	DocumentType string `json:"document_type" validate:"omitempty,max=16"`
}

type accountRequest struct {
	CompanyID int64  `json:"company_id" validate:"required,gt=0"`
	TypeCode  string `json:"type_code" validate:"required,max=20"`
	Code      string `json:"code" validate:"required,max=20"`
	Name      string `json:"name" validate:"required,max=255"`
	ParentID  *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	Postable  bool   `json:"postable"`
	Control   bool   `json:"control"`
}

type parentRequest struct {
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

func toLines(in []lineRequest) []JournalLine {
	lines := make([]JournalLine, len(in))
	for i, l := range in {
		lines[i] = JournalLine{LineNo: i + 1, AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit}
	}
	return lines
}

func (req entryRequest) entry() JournalEntry {
	return JournalEntry{
		CompanyID:    req.CompanyID,
		FiscalYearID: req.FiscalYearID,
		Date:         req.Date,
		Description:  req.Description,
		Lines:        toLines(req.Lines),
	}
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.Accounts(r.Context(), companyID)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": items})
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.CreateAccount(r.Context(), CreateAccountInput(req))
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) reparentAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req parentRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	err = h.retry(r.Context(), func() error {
		return h.service.ReparentAccount(r.Context(), id, req.ParentID)
	})
	if err != nil {
		h.fail(w, "reparent account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.CreateDraftEntry(r.Context(), req.entry())
	if err != nil {
		h.fail(w, "create draft entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req linesRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Validate(r.Context(), req.CompanyID, toLines(req.Lines)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *Handler) postNew(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.post(w, r, req.entry(), req.DocumentType)
}

func (h *Handler) postDraft(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req postRequest
	if r.ContentLength != 0 {
		if err := h.binder.Bind(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	h.post(w, r, JournalEntry{ID: id}, req.DocumentType)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request, entry JournalEntry, documentType string) {
	if documentType == "" {
		documentType = sequence.TypeJournalEntry
	}
	var posted JournalEntry
	err := h.retry(r.Context(), func() error {
		out, err := h.service.PostJournalEntry(r.Context(), entry, documentType)
		posted = out
		return err
	})
	if err != nil {
		h.fail(w, "post journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, posted)
}

func (h *Handler) showEntry(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Entry(r.Context(), id)
	if err != nil {
		h.fail(w, "show journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) replaceLines(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req linesRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	err = h.retry(r.Context(), func() error {
		return h.service.ReplaceLines(r.Context(), id, toLines(req.Lines))
	})
	if err != nil {
		h.fail(w, "replace journal lines", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateDescription(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req descriptionRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.UpdateDescription(r.Context(), id, req.Description); err != nil {
		h.fail(w, "update journal description", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteEntry(r.Context(), id); err != nil {
		h.fail(w, "delete journal entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) retry(ctx context.Context, fn func() error) error {
	return db.RetryOnContention(ctx, h.retries, fn)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
