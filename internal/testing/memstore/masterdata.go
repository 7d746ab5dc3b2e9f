package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/odyssey-erp/ledgercore/internal/masterdata"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// MasterDataRepo implements masterdata.RepositoryPort.
type MasterDataRepo struct{ d *DB }

// MasterData returns the master data repository view.
func (d *DB) MasterData() *MasterDataRepo { return &MasterDataRepo{d: d} }

// WithTx runs fn inside a new transaction.
func (r *MasterDataRepo) WithTx(ctx context.Context, fn func(context.Context, masterdata.TxRepository) error) error {
	return r.d.run(ctx, func(t *Tx) error {
		return fn(ctx, masterTx{t})
	})
}

// Company loads a company.
func (r *MasterDataRepo) Company(_ context.Context, id int64) (masterdata.Company, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	c, ok := r.d.companies[id]
	if !ok {
		return masterdata.Company{}, notFound("company", id)
	}
	return c, nil
}

// FiscalYear loads a fiscal year.
func (r *MasterDataRepo) FiscalYear(_ context.Context, id int64) (masterdata.FiscalYear, error) {
	return r.d.fiscalYear(id)
}

// Project loads a project.
func (r *MasterDataRepo) Project(_ context.Context, id int64) (masterdata.Project, error) {
	return r.d.project(id)
}

// CostCenters lists a project's cost centers by code.
func (r *MasterDataRepo) CostCenters(_ context.Context, projectID int64) ([]masterdata.CostCenter, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []masterdata.CostCenter
	for _, cc := range r.d.costCenters {
		if cc.ProjectID == projectID {
			out = append(out, cc)
		}
	}
	slices.SortFunc(out, func(a, b masterdata.CostCenter) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

// FiscalYears returns a company's fiscal years, for assertions.
func (d *DB) FiscalYears(companyID int64) []masterdata.FiscalYear {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []masterdata.FiscalYear
	for _, fy := range d.fiscalYears {
		if fy.CompanyID == companyID {
			out = append(out, fy)
		}
	}
	slices.SortFunc(out, func(a, b masterdata.FiscalYear) int { return cmp.Compare(a.Year, b.Year) })
	return out
}

type masterTx struct{ t *Tx }

func (d *DB) fiscalYear(id int64) (masterdata.FiscalYear, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fy, ok := d.fiscalYears[id]
	if !ok {
		return masterdata.FiscalYear{}, notFound("fiscal year", id)
	}
	return fy, nil
}

func (d *DB) project(id int64) (masterdata.Project, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.projects[id]
	if !ok {
		return masterdata.Project{}, notFound("project", id)
	}
	return p, nil
}

func (d *DB) costCenter(id int64) (masterdata.CostCenter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cc, ok := d.costCenters[id]
	if !ok {
		return masterdata.CostCenter{}, notFound("cost center", id)
	}
	return cc, nil
}

func (m masterTx) FiscalYear(_ context.Context, id int64) (masterdata.FiscalYear, error) {
	return m.t.d.fiscalYear(id)
}

func (m masterTx) Project(_ context.Context, id int64) (masterdata.Project, error) {
	return m.t.d.project(id)
}

func (m masterTx) CostCenter(_ context.Context, id int64) (masterdata.CostCenter, error) {
	return m.t.d.costCenter(id)
}

func (m masterTx) InsertCompany(_ context.Context, c masterdata.Company) (int64, error) {
	d := m.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, other := range d.companies {
		if other.Code == c.Code {
			return 0, fmt.Errorf("%w: company code %q already exists", shared.ErrValidation, c.Code)
		}
	}
	c.ID = d.id()
	put(m.t, d.companies, c.ID, c)
	return c.ID, nil
}

func (m masterTx) FiscalYearForUpdate(ctx context.Context, id int64) (masterdata.FiscalYear, error) {
	if err := m.t.lock(rowKey("fiscal_years", id)); err != nil {
		return masterdata.FiscalYear{}, err
	}
	return m.FiscalYear(ctx, id)
}

func (m masterTx) InsertFiscalYear(_ context.Context, fy masterdata.FiscalYear) (int64, error) {
	d := m.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, other := range d.fiscalYears {
		if other.CompanyID == fy.CompanyID && other.Year == fy.Year {
			return 0, fmt.Errorf("%w: fiscal year %d already exists", shared.ErrValidation, fy.Year)
		}
	}
	fy.ID = d.id()
	fy.Active = false
	put(m.t, d.fiscalYears, fy.ID, fy)
	return fy.ID, nil
}

func (m masterTx) DeactivateFiscalYears(_ context.Context, companyID int64) error {
	d := m.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, fy := range d.fiscalYears {
		if fy.CompanyID == companyID && fy.Active {
			fy.Active = false
			put(m.t, d.fiscalYears, id, fy)
		}
	}
	return nil
}

func (m masterTx) SetFiscalYearActive(_ context.Context, id int64, active bool) error {
	d := m.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	fy, ok := d.fiscalYears[id]
	if !ok {
		return notFound("fiscal year", id)
	}
	fy.Active = active
	put(m.t, d.fiscalYears, id, fy)
	return nil
}

func (m masterTx) ProjectForUpdate(ctx context.Context, id int64) (masterdata.Project, error) {
	if err := m.t.lock(rowKey("projects", id)); err != nil {
		return masterdata.Project{}, err
	}
	return m.Project(ctx, id)
}

func (m masterTx) InsertProject(_ context.Context, p masterdata.Project) (int64, error) {
	d := m.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, other := range d.projects {
		if other.CompanyID == p.CompanyID && other.Code == p.Code {
			return 0, fmt.Errorf("%w: project code %q already exists", shared.ErrValidation, p.Code)
		}
	}
	p.ID = d.id()
	put(m.t, d.projects, p.ID, p)
	return p.ID, nil
}

func (m masterTx) UpdateProjectStatus(_ context.Context, id int64, status masterdata.ProjectStatus) error {
	d := m.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.projects[id]
	if !ok {
		return notFound("project", id)
	}
	p.Status = status
	put(m.t, d.projects, id, p)
	return nil
}

func (m masterTx) CostCenterForUpdate(ctx context.Context, id int64) (masterdata.CostCenter, error) {
	if err := m.t.lock(rowKey("project_cost_centers", id)); err != nil {
		return masterdata.CostCenter{}, err
	}
	return m.CostCenter(ctx, id)
}

func (m masterTx) InsertCostCenter(_ context.Context, cc masterdata.CostCenter) (int64, error) {
	d := m.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, other := range d.costCenters {
		if other.ProjectID == cc.ProjectID && other.Code == cc.Code {
			return 0, fmt.Errorf("%w: cost center code %q already exists", shared.ErrValidation, cc.Code)
		}
	}
	cc.ID = d.id()
	put(m.t, d.costCenters, cc.ID, cc)
	return cc.ID, nil
}

func (m masterTx) SetCostCenterParent(_ context.Context, id int64, parentID *int64) error {
	d := m.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	cc, ok := d.costCenters[id]
	if !ok {
		return notFound("cost center", id)
	}
	cc.ParentID = parentID
	put(m.t, d.costCenters, id, cc)
	return nil
}
