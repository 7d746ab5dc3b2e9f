package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Repository provides PostgreSQL backed sequence persistence.
type Repository struct {
	pool *pgxpool.Pool
	opts db.TxOptions
}

// NewRepository constructs a repository whose transactions use opts.
func NewRepository(pool *pgxpool.Pool, opts db.TxOptions) *Repository {
	return &Repository{pool: pool, opts: opts}
}

// WithTx runs fn with a Store bound to a fresh read committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

const selectState = `SELECT s.id, s.company_id, s.fiscal_year_id, t.code, s.prefix, s.padding, s.last_number, s.is_active
FROM document_sequences s
JOIN document_types t ON t.id = s.document_type_id`

func scanState(row pgx.Row) (State, error) {
	var st State
	err := row.Scan(&st.ID, &st.Scope.CompanyID, &st.Scope.FiscalYearID, &st.Scope.DocumentType,
		&st.Prefix, &st.Padding, &st.LastNumber, &st.Active)
	return st, err
}

// Get reads a sequence row without locking it.
func (r *Repository) Get(ctx context.Context, scope Scope) (State, error) {
	st, err := scanState(r.pool.QueryRow(ctx, selectState+`
WHERE s.company_id = $1 AND s.fiscal_year_id = $2 AND t.code = $3`, scope.CompanyID, scope.FiscalYearID, scope.DocumentType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, fmt.Errorf("%w: %s", shared.ErrScopeNotFound, scope)
		}
		return State{}, err
	}
	return st, nil
}

// List returns all sequence rows of a company.
func (r *Repository) List(ctx context.Context, companyID int64) ([]State, error) {
	rows, err := r.pool.Query(ctx, selectState+`
WHERE s.company_id = $1 ORDER BY s.fiscal_year_id, t.code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []State
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DocumentType resolves a registry code.
func (r *Repository) DocumentType(ctx context.Context, code string) (DocumentType, error) {
	var dt DocumentType
	err := r.pool.QueryRow(ctx, `SELECT id, code, name FROM document_types WHERE code = $1`, code).Scan(&dt.ID, &dt.Code, &dt.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DocumentType{}, fmt.Errorf("%w: unknown document type %q", shared.ErrScopeNotFound, code)
		}
		return DocumentType{}, err
	}
	return dt, nil
}

// Ensure inserts the row when missing and returns the stored state. An
// existing row is left untouched.
func (r *Repository) Ensure(ctx context.Context, st State) (State, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO document_sequences (company_id, fiscal_year_id, document_type_id, prefix, padding, last_number, is_active)
SELECT $1, $2, t.id, $4, $5, $6, TRUE FROM document_types t WHERE t.code = $3
ON CONFLICT ON CONSTRAINT uq_document_sequences_scope DO NOTHING`,
		st.Scope.CompanyID, st.Scope.FiscalYearID, st.Scope.DocumentType, st.Prefix, st.Padding, st.LastNumber)
	if err != nil {
		return State{}, err
	}
	return r.Get(ctx, st.Scope)
}

// SetActive enables or disables a scope. It waits on the row lock like any
// allocator would.
func (r *Repository) SetActive(ctx context.Context, scope Scope, active bool) error {
	return db.WithTx(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		st, err := NewTxStore(tx).LockScope(ctx, scope)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE document_sequences SET is_active = $2 WHERE id = $1`, st.ID, active)
		return err
	})
}

// FiscalYearCompany returns the company owning a fiscal year.
func (r *Repository) FiscalYearCompany(ctx context.Context, fiscalYearID int64) (int64, error) {
	var companyID int64
	err := r.pool.QueryRow(ctx, `SELECT company_id FROM fiscal_years WHERE id = $1`, fiscalYearID).Scan(&companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: fiscal year %d", shared.ErrNotFound, fiscalYearID)
		}
		return 0, err
	}
	return companyID, nil
}

// issuedSources selects, per document type, the numbered rows of one company
// ($1) and fiscal year ($3). Procurement documents reach their fiscal year
// through the request's project.
var issuedSources = map[string]string{
	TypeJournalEntry: `journal_entries d
WHERE d.company_id = $1 AND d.fiscal_year_id = $3`,
	TypePurchaseOrder: `purchase_orders d
JOIN purchase_requests pr ON pr.id = d.purchase_request_id
JOIN projects p ON p.id = pr.project_id
WHERE d.company_id = $1 AND p.fiscal_year_id = $3`,
	TypeGoodsReceipt: `goods_receipts d
JOIN purchase_orders po ON po.id = d.purchase_order_id
JOIN purchase_requests pr ON pr.id = po.purchase_request_id
JOIN projects p ON p.id = pr.project_id
WHERE d.company_id = $1 AND p.fiscal_year_id = $3`,
	TypeVendorInvoice: `vendor_invoices d
JOIN goods_receipts gr ON gr.id = d.goods_receipt_id
JOIN purchase_orders po ON po.id = gr.purchase_order_id
JOIN purchase_requests pr ON pr.id = po.purchase_request_id
JOIN projects p ON p.id = pr.project_id
WHERE d.company_id = $1 AND p.fiscal_year_id = $3`,
}

// HighestIssued returns the largest numeric suffix stored under the sequence's
// prefix within its company and fiscal year, or zero when the document type has
// no known table.
func (r *Repository) HighestIssued(ctx context.Context, st State) (int64, error) {
	source, ok := issuedSources[st.Scope.DocumentType]
	if !ok {
		return 0, nil
	}
	query := `SELECT COALESCE(MAX(substring(d.document_number FROM length($2) + 2)::bigint), 0)
FROM ` + source + `
AND d.document_number LIKE $2 || '-%'
AND substring(d.document_number FROM length($2) + 2) ~ '^[0-9]+$'`
	var highest int64
	if err := r.pool.QueryRow(ctx, query, st.Scope.CompanyID, st.Prefix, st.Scope.FiscalYearID).Scan(&highest); err != nil {
		return 0, err
	}
	return highest, nil
}

type txStore struct {
	tx pgx.Tx
}

// NewTxStore binds a Store to an open transaction. Callers composing several
// repositories share one pgx.Tx so every lock and write commits together.
func NewTxStore(tx pgx.Tx) Store {
	return &txStore{tx: tx}
}

func (s *txStore) LockScope(ctx context.Context, scope Scope) (State, error) {
	st, err := scanState(s.tx.QueryRow(ctx, selectState+`
WHERE s.company_id = $1 AND s.fiscal_year_id = $2 AND t.code = $3
FOR UPDATE OF s`, scope.CompanyID, scope.FiscalYearID, scope.DocumentType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, fmt.Errorf("%w: %s", shared.ErrScopeNotFound, scope)
		}
		return State{}, db.MapError(err)
	}
	return st, nil
}

func (s *txStore) SaveLastNumber(ctx context.Context, id int64, lastNumber int64) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE document_sequences SET last_number = $2 WHERE id = $1 AND last_number < $2`, id, lastNumber)
	if err != nil {
		return db.MapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("sequence: row %d not advanced to %d", id, lastNumber)
	}
	return nil
}
