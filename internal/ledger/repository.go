package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledgercore/internal/masterdata"
	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	opts db.TxOptions
}

// NewRepository constructs a ledger repository.
func NewRepository(pool *pgxpool.Pool, opts db.TxOptions) *Repository {
	return &Repository{pool: pool, opts: opts}
}

// WithTx runs fn inside a read committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// GetEntry loads an entry with its lines without locking.
func (r *Repository) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.pool, id, false)
}

// AccountsByID loads accounts without locking.
func (r *Repository) AccountsByID(ctx context.Context, ids []int64) (map[int64]Account, error) {
	return accountsByID(ctx, r.pool, ids)
}

// Accounts lists a company's chart of accounts.
func (r *Repository) Accounts(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, selectAccount+` WHERE a.company_id = $1 ORDER BY a.code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

const selectAccount = `SELECT a.id, a.company_id, t.code, a.code, a.name, a.parent_id, a.is_active, a.is_postable, a.is_control
FROM accounts a JOIN account_types t ON t.id = a.account_type_id`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.TypeCode, &a.Code, &a.Name, &a.ParentID, &a.Active, &a.Postable, &a.Control)
	return a, err
}

func accountsByID(ctx context.Context, q db.Querier, ids []int64) (map[int64]Account, error) {
	out := make(map[int64]Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, selectAccount+` WHERE a.id = ANY($1)`, ids)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[acc.ID] = acc
	}
	return out, rows.Err()
}

func getEntry(ctx context.Context, q db.Querier, id int64, forUpdate bool) (JournalEntry, error) {
	query := `SELECT id, company_id, fiscal_year_id, date, description, document_number, is_posted, posted_at, source_module, source_id
FROM journal_entries WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		entry    JournalEntry
		sourceID *uuid.UUID
	)
	err := q.QueryRow(ctx, query, id).Scan(&entry.ID, &entry.CompanyID, &entry.FiscalYearID, &entry.Date, &entry.Description,
		&entry.DocumentNumber, &entry.Posted, &entry.PostedAt, &entry.SourceModule, &sourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, fmt.Errorf("%w: journal entry %d", shared.ErrNotFound, id)
		}
		return JournalEntry{}, db.MapError(err)
	}
	if sourceID != nil {
		entry.SourceID = *sourceID
	}
	rows, err := q.Query(ctx, `SELECT id, journal_entry_id, line_no, account_id, debit, credit
FROM journal_lines WHERE journal_entry_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return JournalEntry{}, db.MapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNo, &line.AccountID, &line.Debit, &line.Credit); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

type txRepository struct {
	masterdata.Reader
	tx pgx.Tx
}

// NewTxRepository binds ledger persistence to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{Reader: masterdata.NewReader(tx), tx: tx}
}

func (r *txRepository) Sequences() sequence.Store {
	return sequence.NewTxStore(r.tx)
}

func (r *txRepository) AccountsByID(ctx context.Context, ids []int64) (map[int64]Account, error) {
	return accountsByID(ctx, r.tx, ids)
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.tx, id, true)
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, fiscal_year_id, date, description, document_number, is_posted, posted_at, source_module, source_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		entry.CompanyID, entry.FiscalYearID, entry.Date, entry.Description, entry.DocumentNumber,
		entry.Posted, entry.PostedAt, entry.SourceModule, nullableUUID(entry.SourceID)).Scan(&entry.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_journal_entries_source") {
			return JournalEntry{}, fmt.Errorf("%w: source %s/%s already has an entry", shared.ErrAlreadyPosted, entry.SourceModule, entry.SourceID)
		}
		return JournalEntry{}, db.MapError(err)
	}
	if err := r.insertLines(ctx, entry.ID, entry.Lines); err != nil {
		return JournalEntry{}, err
	}
	for i := range entry.Lines {
		entry.Lines[i].EntryID = entry.ID
		entry.Lines[i].LineNo = i + 1
	}
	return entry, nil
}

func (r *txRepository) insertLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	for i, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (journal_entry_id, line_no, account_id, debit, credit)
VALUES ($1, $2, $3, $4, $5)`, entryID, i+1, line.AccountID, line.Debit, line.Credit); err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, number string, postedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET is_posted = TRUE, document_number = $2, posted_at = $3
WHERE id = $1 AND NOT is_posted`, id, number, postedAt)
	if err != nil {
		return db.MapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: journal entry %d", shared.ErrAlreadyPosted, id)
	}
	return nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE journal_entry_id = $1`, entryID); err != nil {
		return db.MapError(err)
	}
	return r.insertLines(ctx, entryID, lines)
}

func (r *txRepository) UpdateDescription(ctx context.Context, id int64, description string) error {
	_, err := r.tx.Exec(ctx, `UPDATE journal_entries SET description = $2 WHERE id = $1`, id, description)
	return db.MapError(err)
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1 AND NOT is_posted`, id)
	return db.MapError(err)
}

func (r *txRepository) InsertAccount(ctx context.Context, account Account) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO accounts (company_id, account_type_id, code, name, parent_id, is_active, is_postable, is_control)
SELECT $1, t.id, $3, $4, $5, $6, $7, $8 FROM account_types t WHERE t.code = $2
RETURNING id`, account.CompanyID, account.TypeCode, account.Code, account.Name, account.ParentID,
		account.Active, account.Postable, account.Control).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, account.TypeCode)
	case db.IsUniqueViolation(err, "uq_accounts_company_code"):
		return 0, fmt.Errorf("%w: account code %q already exists", shared.ErrValidation, account.Code)
	}
	return id, db.MapError(err)
}

func (r *txRepository) AccountForUpdate(ctx context.Context, id int64) (Account, error) {
	acc, err := scanAccount(r.tx.QueryRow(ctx, selectAccount+` WHERE a.id = $1 FOR UPDATE OF a`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: account %d", shared.ErrNotFound, id)
		}
		return Account{}, db.MapError(err)
	}
	return acc, nil
}

func (r *txRepository) SetAccountParent(ctx context.Context, id int64, parentID *int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET parent_id = $2 WHERE id = $1`, id, parentID)
	return db.MapError(err)
}

// UnbalancedEntries returns posted entries of the scope whose sides differ.
func (r *Repository) UnbalancedEntries(ctx context.Context, scope FiscalScope) ([]EntryTotals, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.document_number, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entries e LEFT JOIN journal_lines l ON l.journal_entry_id = e.id
WHERE e.company_id = $1 AND e.fiscal_year_id = $2 AND e.is_posted
GROUP BY e.id, e.document_number
HAVING COALESCE(SUM(l.debit), 0) <> COALESCE(SUM(l.credit), 0)
ORDER BY e.id`, scope.CompanyID, scope.FiscalYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EntryTotals
	for rows.Next() {
		var t EntryTotals
		if err := rows.Scan(&t.EntryID, &t.DocumentNumber, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UnnumberedEntries returns posted entries of the scope without a number.
func (r *Repository) UnnumberedEntries(ctx context.Context, scope FiscalScope) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM journal_entries
WHERE company_id = $1 AND fiscal_year_id = $2 AND is_posted AND document_number = '' ORDER BY id`, scope.CompanyID, scope.FiscalYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PostedScopes lists every (company, fiscal year) holding posted entries.
func (r *Repository) PostedScopes(ctx context.Context) ([]FiscalScope, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT company_id, fiscal_year_id FROM journal_entries WHERE is_posted ORDER BY 1, 2`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FiscalScope
	for rows.Next() {
		var s FiscalScope
		if err := rows.Scan(&s.CompanyID, &s.FiscalYearID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
