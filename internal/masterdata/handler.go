package masterdata

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledgercore/internal/platform/httpx"
)

// Handler manages master data endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder()}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/companies", h.createCompany)
	r.Get("/companies/{id}", h.showCompany)
	r.Post("/fiscal-years", h.createFiscalYear)
	r.Post("/fiscal-years/{id}/activate", h.activateFiscalYear)
	r.Post("/projects", h.createProject)
	r.Put("/projects/{id}/status", h.setProjectStatus)
	r.Get("/projects/{id}/cost-centers", h.listCostCenters)
	r.Post("/cost-centers", h.createCostCenter)
	r.Put("/cost-centers/{id}/parent", h.reparentCostCenter)
}

type companyRequest struct {
	Code string `json:"code" validate:"required,max=50"`
	Name string `json:"name" validate:"required,max=255"`
}

type fiscalYearRequest struct {
	CompanyID int64     `json:"company_id" validate:"required,gt=0"`
	Year      int       `json:"year" validate:"required,gt=0"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

type projectRequest struct {
	CompanyID    int64      `json:"company_id" validate:"required,gt=0"`
	FiscalYearID int64      `json:"fiscal_year_id" validate:"required,gt=0"`
	Code         string     `json:"code" validate:"required,max=50"`
	Name         string     `json:"name" validate:"required,max=255"`
	StartDate    time.Time  `json:"start_date" validate:"required"`
	EndDate      *time.Time `json:"end_date"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type costCenterRequest struct {
	ProjectID int64  `json:"project_id" validate:"required,gt=0"`
	ParentID  *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	Code      string `json:"code" validate:"required,max=50"`
	Name      string `json:"name" validate:"required,max=255"`
	Postable  bool   `json:"postable"`
}

type parentRequest struct {
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	company, err := h.service.CreateCompany(r.Context(), req.Code, req.Name)
	if err != nil {
		h.fail(w, "create company", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, company)
}

func (h *Handler) showCompany(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	company, err := h.service.Company(r.Context(), id)
	if err != nil {
		h.fail(w, "show company", err)
		return
	}
	httpx.JSON(w, http.StatusOK, company)
}

func (h *Handler) createFiscalYear(w http.ResponseWriter, r *http.Request) {
	var req fiscalYearRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	fy, err := h.service.CreateFiscalYear(r.Context(), CreateFiscalYearInput(req))
	if err != nil {
		h.fail(w, "create fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fy)
}

func (h *Handler) activateFiscalYear(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fy, err := h.service.ActivateFiscalYear(r.Context(), id)
	if err != nil {
		h.fail(w, "activate fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	project, err := h.service.CreateProject(r.Context(), CreateProjectInput(req))
	if err != nil {
		h.fail(w, "create project", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, project)
}

func (h *Handler) setProjectStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	status, err := ParseProjectStatus(req.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	project, err := h.service.SetProjectStatus(r.Context(), id, status)
	if err != nil {
		h.fail(w, "set project status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) listCostCenters(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.CostCenters(r.Context(), id)
	if err != nil {
		h.fail(w, "list cost centers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cost_centers": items})
}

func (h *Handler) createCostCenter(w http.ResponseWriter, r *http.Request) {
	var req costCenterRequest
	if err := h.binder.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cc, err := h.service.CreateCostCenter(r.Context(), CreateCostCenterInput(req))
	if err != nil {
		h.fail(w, "create cost center", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cc)
}

func (h *Handler) reparentCostCenter(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.ReparentCostCenter(r.Context(), id, req.ParentID); err != nil {
		h.fail(w, "reparent cost center", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
