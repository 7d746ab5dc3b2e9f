package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Repository persists master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	opts db.TxOptions
}

// NewRepository constructs a master data repository.
func NewRepository(pool *pgxpool.Pool, opts db.TxOptions) *Repository {
	return &Repository{pool: pool, opts: opts}
}

// TxRepository exposes transactional master data operations.
type TxRepository interface {
	InsertCompany(ctx context.Context, company Company) (int64, error)
	FiscalYearForUpdate(ctx context.Context, id int64) (FiscalYear, error)
	InsertFiscalYear(ctx context.Context, fy FiscalYear) (int64, error)
	DeactivateFiscalYears(ctx context.Context, companyID int64) error
	SetFiscalYearActive(ctx context.Context, id int64, active bool) error
	Project(ctx context.Context, id int64) (Project, error)
	ProjectForUpdate(ctx context.Context, id int64) (Project, error)
	InsertProject(ctx context.Context, project Project) (int64, error)
	UpdateProjectStatus(ctx context.Context, id int64, status ProjectStatus) error
	CostCenterForUpdate(ctx context.Context, id int64) (CostCenter, error)
	InsertCostCenter(ctx context.Context, cc CostCenter) (int64, error)
	SetCostCenterParent(ctx context.Context, id int64, parentID *int64) error
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// Company loads a company without locking.
func (r *Repository) Company(ctx context.Context, id int64) (Company, error) {
	return NewReader(r.pool).Company(ctx, id)
}

// FiscalYear loads a fiscal year without locking.
func (r *Repository) FiscalYear(ctx context.Context, id int64) (FiscalYear, error) {
	return NewReader(r.pool).FiscalYear(ctx, id)
}

// Project loads a project without locking.
func (r *Repository) Project(ctx context.Context, id int64) (Project, error) {
	return NewReader(r.pool).Project(ctx, id)
}

// CostCenters lists the cost centers of a project.
func (r *Repository) CostCenters(ctx context.Context, projectID int64) ([]CostCenter, error) {
	rows, err := r.pool.Query(ctx, selectCostCenter+` WHERE project_id = $1 ORDER BY code`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CostCenter
	for rows.Next() {
		cc, err := scanCostCenter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// Reader runs master data lookups on either a pool or an open transaction.
// Other packages embed it in their own transactional repositories.
type Reader struct {
	q db.Querier
}

// NewReader wraps a pool or transaction.
func NewReader(q db.Querier) Reader {
	return Reader{q: q}
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", shared.ErrNotFound, what, id)
	}
	return db.MapError(err)
}

// Company loads a company by id.
func (r Reader) Company(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := r.q.QueryRow(ctx, `SELECT id, code, name, is_active FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &c.Active)
	if err != nil {
		return Company{}, notFound(err, "company", id)
	}
	return c, nil
}

const selectFiscalYear = `SELECT id, company_id, year, start_date, end_date, is_active FROM fiscal_years WHERE id = $1`

// FiscalYear loads a fiscal year by id.
func (r Reader) FiscalYear(ctx context.Context, id int64) (FiscalYear, error) {
	return scanFiscalYear(r.q.QueryRow(ctx, selectFiscalYear, id), id)
}

func scanFiscalYear(row pgx.Row, id int64) (FiscalYear, error) {
	var fy FiscalYear
	if err := row.Scan(&fy.ID, &fy.CompanyID, &fy.Year, &fy.StartDate, &fy.EndDate, &fy.Active); err != nil {
		return FiscalYear{}, notFound(err, "fiscal year", id)
	}
	return fy, nil
}

const selectProject = `SELECT id, company_id, fiscal_year_id, code, name, status, start_date, end_date, is_active FROM projects WHERE id = $1`

// Project loads a project by id.
func (r Reader) Project(ctx context.Context, id int64) (Project, error) {
	return scanProject(r.q.QueryRow(ctx, selectProject, id), id)
}

func scanProject(row pgx.Row, id int64) (Project, error) {
	var (
		p      Project
		status string
		start  *time.Time
	)
	if err := row.Scan(&p.ID, &p.CompanyID, &p.FiscalYearID, &p.Code, &p.Name, &status, &start, &p.EndDate, &p.Active); err != nil {
		return Project{}, notFound(err, "project", id)
	}
	parsed, err := ParseProjectStatus(status)
	if err != nil {
		return Project{}, err
	}
	p.Status = parsed
	if start != nil {
		p.StartDate = *start
	}
	return p, nil
}

const selectCostCenter = `SELECT id, project_id, parent_id, code, name, is_postable, is_active FROM project_cost_centers`

// CostCenter loads a cost center by id.
func (r Reader) CostCenter(ctx context.Context, id int64) (CostCenter, error) {
	cc, err := scanCostCenter(r.q.QueryRow(ctx, selectCostCenter+` WHERE id = $1`, id))
	if err != nil {
		return CostCenter{}, notFound(err, "cost center", id)
	}
	return cc, nil
}

func scanCostCenter(row pgx.Row) (CostCenter, error) {
	var cc CostCenter
	err := row.Scan(&cc.ID, &cc.ProjectID, &cc.ParentID, &cc.Code, &cc.Name, &cc.Postable, &cc.Active)
	return cc, err
}

type txRepo struct {
	Reader
	tx pgx.Tx
}

// NewTxRepository binds master data writes to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{Reader: NewReader(tx), tx: tx}
}

func (r *txRepo) InsertCompany(ctx context.Context, company Company) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO companies (code, name, is_active) VALUES ($1, $2, $3) RETURNING id`,
		company.Code, company.Name, company.Active).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, fmt.Errorf("%w: company code %q already exists", shared.ErrValidation, company.Code)
	}
	return id, err
}

func (r *txRepo) FiscalYearForUpdate(ctx context.Context, id int64) (FiscalYear, error) {
	return scanFiscalYear(r.tx.QueryRow(ctx, selectFiscalYear+` FOR UPDATE`, id), id)
}

func (r *txRepo) InsertFiscalYear(ctx context.Context, fy FiscalYear) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO fiscal_years (company_id, year, start_date, end_date, is_active)
VALUES ($1, $2, $3, $4, FALSE) RETURNING id`, fy.CompanyID, fy.Year, fy.StartDate, fy.EndDate).Scan(&id)
	if db.IsUniqueViolation(err, "uq_fiscal_years_company_year") {
		return 0, fmt.Errorf("%w: fiscal year %d already exists", shared.ErrValidation, fy.Year)
	}
	return id, err
}

func (r *txRepo) DeactivateFiscalYears(ctx context.Context, companyID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET is_active = FALSE WHERE company_id = $1 AND is_active`, companyID)
	return db.MapError(err)
}

func (r *txRepo) SetFiscalYearActive(ctx context.Context, id int64, active bool) error {
	_, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET is_active = $2 WHERE id = $1`, id, active)
	return db.MapError(err)
}

func (r *txRepo) ProjectForUpdate(ctx context.Context, id int64) (Project, error) {
	return scanProject(r.tx.QueryRow(ctx, selectProject+` FOR UPDATE`, id), id)
}

func (r *txRepo) InsertProject(ctx context.Context, p Project) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO projects (company_id, fiscal_year_id, code, name, status, start_date, end_date, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.CompanyID, p.FiscalYearID, p.Code, p.Name, p.Status.String(), p.StartDate, p.EndDate, p.Active).Scan(&id)
	if db.IsUniqueViolation(err, "uq_projects_company_code") {
		return 0, fmt.Errorf("%w: project code %q already exists", shared.ErrValidation, p.Code)
	}
	return id, err
}

func (r *txRepo) UpdateProjectStatus(ctx context.Context, id int64, status ProjectStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE projects SET status = $2 WHERE id = $1`, id, status.String())
	return db.MapError(err)
}

func (r *txRepo) CostCenterForUpdate(ctx context.Context, id int64) (CostCenter, error) {
	cc, err := scanCostCenter(r.tx.QueryRow(ctx, selectCostCenter+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return CostCenter{}, notFound(err, "cost center", id)
	}
	return cc, nil
}

func (r *txRepo) InsertCostCenter(ctx context.Context, cc CostCenter) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO project_cost_centers (project_id, parent_id, code, name, is_postable, is_active)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`, cc.ProjectID, cc.ParentID, cc.Code, cc.Name, cc.Postable, cc.Active).Scan(&id)
	if db.IsUniqueViolation(err, "uq_cost_centers_project_code") {
		return 0, fmt.Errorf("%w: cost center code %q already exists", shared.ErrValidation, cc.Code)
	}
	return id, err
}

func (r *txRepo) SetCostCenterParent(ctx context.Context, id int64, parentID *int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE project_cost_centers SET parent_id = $2 WHERE id = $1`, id, parentID)
	return db.MapError(err)
}
