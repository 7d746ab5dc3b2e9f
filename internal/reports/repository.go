package reports

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository aggregates posted journal lines in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a reports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TrialBalanceRows sums posted lines per account. Drafts never contribute.
func (r *Repository) TrialBalanceRows(ctx context.Context, companyID, fiscalYearID int64) ([]Row, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, t.code, SUM(l.debit), SUM(l.credit)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
JOIN accounts a ON a.id = l.account_id
JOIN account_types t ON t.id = a.account_type_id
WHERE e.company_id = $1 AND e.fiscal_year_id = $2 AND e.is_posted
GROUP BY a.id, a.code, a.name, t.code
ORDER BY a.code`, companyID, fiscalYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.TypeCode, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
