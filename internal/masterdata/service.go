package masterdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Company(ctx context.Context, id int64) (Company, error)
	FiscalYear(ctx context.Context, id int64) (FiscalYear, error)
	Project(ctx context.Context, id int64) (Project, error)
	CostCenters(ctx context.Context, projectID int64) ([]CostCenter, error)
}

// Service manages companies, fiscal years, projects and cost centers.
type Service struct {
	repo  RepositoryPort
	audit shared.AuditRecorder
}

// NewService constructs the master data service. audit may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateCompany registers a company.
func (s *Service) CreateCompany(ctx context.Context, code, name string) (Company, error) {
	company := Company{Code: strings.TrimSpace(code), Name: strings.TrimSpace(name), Active: true}
	if company.Code == "" || company.Name == "" {
		return Company{}, fmt.Errorf("%w: company code and name required", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertCompany(ctx, company)
		company.ID = id
		return err
	})
	if err != nil {
		return Company{}, err
	}
	s.recordAudit(ctx, "company.create", "company", company.ID, map[string]any{"code": company.Code})
	return company, nil
}

// Company loads a company.
func (s *Service) Company(ctx context.Context, id int64) (Company, error) {
	return s.repo.Company(ctx, id)
}

// CreateFiscalYearInput describes a new fiscal year.
type CreateFiscalYearInput struct {
	CompanyID int64
	Year      int
	StartDate time.Time
	EndDate   time.Time
}

// CreateFiscalYear stores an inactive fiscal year.
func (s *Service) CreateFiscalYear(ctx context.Context, input CreateFiscalYearInput) (FiscalYear, error) {
	if input.Year <= 0 {
		return FiscalYear{}, fmt.Errorf("%w: year required", shared.ErrValidation)
	}
	if input.EndDate.Before(input.StartDate) {
		return FiscalYear{}, fmt.Errorf("%w: fiscal year ends before it starts", shared.ErrValidation)
	}
	if _, err := s.repo.Company(ctx, input.CompanyID); err != nil {
		return FiscalYear{}, err
	}
	fy := FiscalYear{CompanyID: input.CompanyID, Year: input.Year, StartDate: input.StartDate, EndDate: input.EndDate}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertFiscalYear(ctx, fy)
		fy.ID = id
		return err
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.recordAudit(ctx, "fiscal_year.create", "fiscal_year", fy.ID, map[string]any{"year": fy.Year})
	return fy, nil
}

// ActivateFiscalYear makes fy the single active fiscal year of its company.
func (s *Service) ActivateFiscalYear(ctx context.Context, id int64) (FiscalYear, error) {
	var fy FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.FiscalYearForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Active {
			fy = current
			return nil
		}
		if err := tx.DeactivateFiscalYears(ctx, current.CompanyID); err != nil {
			return err
		}
		if err := tx.SetFiscalYearActive(ctx, id, true); err != nil {
			return err
		}
		current.Active = true
		fy = current
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.recordAudit(ctx, "fiscal_year.activate", "fiscal_year", fy.ID, nil)
	return fy, nil
}

// CreateProjectInput describes a new project.
type CreateProjectInput struct {
	CompanyID    int64
	FiscalYearID int64
	Code         string
	Name         string
	StartDate    time.Time
	EndDate      *time.Time
}

// CreateProject stores a planned project. The fiscal year must belong to the
// same company.
func (s *Service) CreateProject(ctx context.Context, input CreateProjectInput) (Project, error) {
	project := Project{
		CompanyID:    input.CompanyID,
		FiscalYearID: input.FiscalYearID,
		Code:         strings.TrimSpace(input.Code),
		Name:         strings.TrimSpace(input.Name),
		Status:       ProjectPlanned,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		Active:       true,
	}
	if project.Code == "" || project.Name == "" {
		return Project{}, fmt.Errorf("%w: project code and name required", shared.ErrValidation)
	}
	if project.EndDate != nil && project.EndDate.Before(project.StartDate) {
		return Project{}, fmt.Errorf("%w: project ends before it starts", shared.ErrValidation)
	}
	fy, err := s.repo.FiscalYear(ctx, input.FiscalYearID)
	if err != nil {
		return Project{}, err
	}
	if fy.CompanyID != input.CompanyID {
		return Project{}, fmt.Errorf("%w: fiscal year %d belongs to company %d", shared.ErrCrossCompanyMismatch, fy.ID, fy.CompanyID)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertProject(ctx, project)
		project.ID = id
		return err
	})
	if err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, "project.create", "project", project.ID, map[string]any{"code": project.Code})
	return project, nil
}

// SetProjectStatus moves a project to status. Completed and cancelled
// projects are final.
func (s *Service) SetProjectStatus(ctx context.Context, id int64, status ProjectStatus) (Project, error) {
	var project Project
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.ProjectForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == status {
			project = current
			return nil
		}
		if current.Status.Terminal() {
			return &shared.TransitionError{Document: "project", Action: status.String(), From: current.Status.String()}
		}
		if err := tx.UpdateProjectStatus(ctx, id, status); err != nil {
			return err
		}
		current.Status = status
		project = current
		return nil
	})
	if err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, "project.status", "project", id, map[string]any{"status": status.String()})
	return project, nil
}

// CreateCostCenterInput describes a new cost center.
type CreateCostCenterInput struct {
	ProjectID int64
	ParentID  *int64
	Code      string
	Name      string
	Postable  bool
}

// CreateCostCenter adds a node to a project's tree. A parent must belong to the
// same project.
func (s *Service) CreateCostCenter(ctx context.Context, input CreateCostCenterInput) (CostCenter, error) {
	cc := CostCenter{
		ProjectID: input.ProjectID,
		ParentID:  input.ParentID,
		Code:      strings.TrimSpace(input.Code),
		Name:      strings.TrimSpace(input.Name),
		Postable:  input.Postable,
		Active:    true,
	}
	if cc.Code == "" || cc.Name == "" {
		return CostCenter{}, fmt.Errorf("%w: cost center code and name required", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.Project(ctx, cc.ProjectID); err != nil {
			return err
		}
		if cc.ParentID != nil {
			parent, err := tx.CostCenterForUpdate(ctx, *cc.ParentID)
			if err != nil {
				return err
			}
			if parent.ProjectID != cc.ProjectID {
				return fmt.Errorf("%w: parent cost center belongs to project %d", shared.ErrValidation, parent.ProjectID)
			}
		}
		id, err := tx.InsertCostCenter(ctx, cc)
		cc.ID = id
		return err
	})
	if err != nil {
		return CostCenter{}, err
	}
	return cc, nil
}

// ReparentCostCenter moves a cost center under newParent, or to the root when
// newParent is nil. Moves that would create a loop fail with ErrCycle.
func (s *Service) ReparentCostCenter(ctx context.Context, id int64, newParent *int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		node, err := tx.CostCenterForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if newParent != nil {
			parent, err := tx.CostCenterForUpdate(ctx, *newParent)
			if err != nil {
				return err
			}
			if parent.ProjectID != node.ProjectID {
				return fmt.Errorf("%w: parent cost center belongs to project %d", shared.ErrValidation, parent.ProjectID)
			}
		}
		parentOf := func(ctx context.Context, id int64) (*int64, error) {
			cc, err := tx.CostCenterForUpdate(ctx, id)
			if err != nil {
				return nil, err
			}
			return cc.ParentID, nil
		}
		if err := shared.EnsureAcyclic(ctx, id, newParent, parentOf); err != nil {
			return err
		}
		return tx.SetCostCenterParent(ctx, id, newParent)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "cost_center.reparent", "cost_center", id, map[string]any{"parent_id": newParent})
	return nil
}

// CostCenters lists a project's cost centers.
func (s *Service) CostCenters(ctx context.Context, projectID int64) ([]CostCenter, error) {
	return s.repo.CostCenters(ctx, projectID)
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: entity, EntityID: fmt.Sprintf("%d", id), Meta: meta})
}
