package procurement

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/platform/httpx"
)

// Handler manages procurement endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
	retries uint64
}

// NewHandler builds Handler instance. Numbering transitions are retried up to
// retries times on lock contention.
func NewHandler(logger *slog.Logger, service *Service, retries uint64) *Handler {
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder(), retries: retries}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/vendors", h.listVendors)
	r.Post("/vendors", h.registerVendor)

	r.Post("/prs", h.createPR)
	r.Get("/prs/{id}", h.showPR)
	r.Post("/prs/{id}/submit", h.prTransition(h.service.SubmitPurchaseRequest, "submit purchase request"))
	r.Post("/prs/{id}/approve", h.prTransition(h.service.ApprovePurchaseRequest, "approve purchase request"))
	r.Post("/prs/{id}/reject", h.prTransition(h.service.RejectPurchaseRequest, "reject purchase request"))

	r.Post("/pos", h.createPO)
	r.Get("/pos/{id}", h.showPO)
	r.Post("/pos/{id}/issue", h.poTransition(h.service.IssuePurchaseOrder, "issue purchase order"))
	r.Post("/pos/{id}/close", h.poTransition(h.service.ClosePurchaseOrder, "close purchase order"))

	r.Post("/grns", h.createGRN)
	r.Get("/grns/{id}", h.showGRN)
	r.Post("/grns/{id}/post", h.postGRN)

	r.Post("/invoices", h.createInvoice)
	r.Get("/invoices/{id}", h.showInvoice)
	r.Post("/invoices/{id}/post", h.postInvoice)
}

type vendorRequest struct {
	CompanyID   int64  `json:"company_id" validate:"required,gt=0"`
	Code        string `json:"code" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,max=255"`
	APAccountID int64  `json:"ap_account_id" validate:"required,gt=0"`
}

type prRequest struct {
	CompanyID       int64               `json:"company_id" validate:"required,gt=0"`
	ProjectID       int64               `json:"project_id" validate:"required,gt=0"`
	CostCenterID    int64               `json:"cost_center_id" validate:"required,gt=0"`
	Description     string              `json:"description" validate:"required,max=2000"`
	RequestedBy     int64               `json:"requested_by" validate:"required,gt=0"`
	RequestDate     *time.Time          `json:"request_date"`
	EstimatedAmount decimal.NullDecimal `json:"estimated_amount"`
}

type poRequest struct {
	PurchaseRequestID int64           `json:"purchase_request_id" validate:"required,gt=0"`
	VendorID          int64           `json:"vendor_id" validate:"required,gt=0"`
	OrderDate         time.Time       `json:"order_date" validate:"required"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

type grnRequest struct {
	PurchaseOrderID int64           `json:"purchase_order_id" validate:"required,gt=0"`
	ReceiptDate     time.Time       `json:"receipt_date"`
	Amount          decimal.Decimal `json:"amount"`
}

type invoiceRequest struct {
	VendorID       int64           `json:"vendor_id" validate:"required,gt=0"`
	GoodsReceiptID int64           `json:"goods_receipt_id" validate:"required,gt=0"`
	InvoiceDate    time.Time       `json:"invoice_date"`
	Amount         decimal.Decimal `json:"amount"`
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	vendors, err := h.service.Vendors(r.Context(), companyID)
	if err != nil {
		h.fail(w, "list vendors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

func (h *Handler) registerVendor(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	vendor, err := h.service.RegisterVendor(r.Context(), RegisterVendorInput(req))
	if err != nil {
		h.fail(w, "register vendor", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, vendor)
}

func (h *Handler) createPR(w http.ResponseWriter, r *http.Request) {
	var req prRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	pr, err := h.service.CreatePurchaseRequest(r.Context(), CreatePurchaseRequestInput(req))
	if err != nil {
		h.fail(w, "create purchase request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pr)
}

func (h *Handler) showPR(w http.ResponseWriter, r *http.Request) {
	show(h, w, r, "show purchase request", h.service.PurchaseRequest)
}

func (h *Handler) prTransition(fn func(context.Context, int64) (PurchaseRequest, error), op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runTransition(h, w, r, op, fn)
	}
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	var req poRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), CreatePurchaseOrderInput(req))
	if err != nil {
		h.fail(w, "create purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) showPO(w http.ResponseWriter, r *http.Request) {
	show(h, w, r, "show purchase order", h.service.PurchaseOrder)
}

func (h *Handler) poTransition(fn func(context.Context, int64) (PurchaseOrder, error), op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runTransition(h, w, r, op, fn)
	}
}

func (h *Handler) createGRN(w http.ResponseWriter, r *http.Request) {
	var req grnRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	gr, err := h.service.CreateGoodsReceipt(r.Context(), CreateGoodsReceiptInput(req))
	if err != nil {
		h.fail(w, "create goods receipt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, gr)
}

func (h *Handler) showGRN(w http.ResponseWriter, r *http.Request) {
	show(h, w, r, "show goods receipt", h.service.GoodsReceipt)
}

func (h *Handler) postGRN(w http.ResponseWriter, r *http.Request) {
	runTransition(h, w, r, "post goods receipt", h.service.PostGoodsReceipt)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.CreateVendorInvoice(r.Context(), CreateVendorInvoiceInput(req))
	if err != nil {
		h.fail(w, "create vendor invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	show(h, w, r, "show vendor invoice", h.service.VendorInvoice)
}

func (h *Handler) postInvoice(w http.ResponseWriter, r *http.Request) {
	runTransition(h, w, r, "post vendor invoice", h.service.PostVendorInvoice)
}

func show[T any](h *Handler, w http.ResponseWriter, r *http.Request, op string, load func(context.Context, int64) (T, error)) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := load(r.Context(), id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// runTransition runs a status change, retrying the whole transaction on lock
// contention.
func runTransition[T any](h *Handler, w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, int64) (T, error)) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var doc T
	err = db.RetryOnContention(r.Context(), h.retries, func() error {
		out, err := fn(r.Context(), id)
		doc = out
		return err
	})
	if err != nil {
		h.fail(w, op, err)
		return
	}
	h.logger.Info(op, slog.Int64("id", id))
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
