package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/masterdata"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

var accountTypes = []string{"ASSET", "LIABILITY", "EQUITY", "REVENUE", "EXPENSE"}

// LedgerRepo implements ledger.RepositoryPort and ledger.IntegrityStore.
type LedgerRepo struct{ d *DB }

// Ledger returns the ledger repository view.
func (d *DB) Ledger() *LedgerRepo { return &LedgerRepo{d: d} }

// WithTx runs fn inside a new transaction.
func (r *LedgerRepo) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	return r.d.run(ctx, func(t *Tx) error {
		return fn(ctx, ledgerTx{t})
	})
}

// GetEntry loads an entry without locking.
func (r *LedgerRepo) GetEntry(_ context.Context, id int64) (ledger.JournalEntry, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	e, ok := r.d.entries[id]
	if !ok {
		return ledger.JournalEntry{}, notFound("journal entry", id)
	}
	return cloneEntry(e), nil
}

// AccountsByID loads accounts without locking.
func (r *LedgerRepo) AccountsByID(_ context.Context, ids []int64) (map[int64]ledger.Account, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return r.d.accountsByID(ids), nil
}

// Accounts lists a company's chart of accounts ordered by code.
func (r *LedgerRepo) Accounts(_ context.Context, companyID int64) ([]ledger.Account, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []ledger.Account
	for _, a := range r.d.accounts {
		if a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b ledger.Account) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

// PostedScopes lists every company and fiscal year holding posted entries.
func (r *LedgerRepo) PostedScopes(_ context.Context) ([]ledger.FiscalScope, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	seen := map[ledger.FiscalScope]struct{}{}
	var out []ledger.FiscalScope
	for _, e := range r.d.entries {
		scope := ledger.FiscalScope{CompanyID: e.CompanyID, FiscalYearID: e.FiscalYearID}
		if _, dup := seen[scope]; !e.Posted || dup {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	slices.SortFunc(out, func(a, b ledger.FiscalScope) int {
		return cmp.Or(cmp.Compare(a.CompanyID, b.CompanyID), cmp.Compare(a.FiscalYearID, b.FiscalYearID))
	})
	return out, nil
}

// UnbalancedEntries returns posted entries of scope whose sides differ.
func (r *LedgerRepo) UnbalancedEntries(_ context.Context, scope ledger.FiscalScope) ([]ledger.EntryTotals, error) {
	var out []ledger.EntryTotals
	for _, e := range r.d.postedIn(scope) {
		debit, credit := ledger.Totals(e.Lines)
		if !debit.Equal(credit) {
			out = append(out, ledger.EntryTotals{EntryID: e.ID, DocumentNumber: e.DocumentNumber, Debit: debit, Credit: credit})
		}
	}
	return out, nil
}

// UnnumberedEntries returns posted entries of scope without a number.
func (r *LedgerRepo) UnnumberedEntries(_ context.Context, scope ledger.FiscalScope) ([]int64, error) {
	var ids []int64
	for _, e := range r.d.postedIn(scope) {
		if e.DocumentNumber == "" {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (d *DB) postedIn(scope ledger.FiscalScope) []ledger.JournalEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []ledger.JournalEntry
	for _, e := range d.entries {
		if e.Posted && e.CompanyID == scope.CompanyID && e.FiscalYearID == scope.FiscalYearID {
			out = append(out, cloneEntry(e))
		}
	}
	slices.SortFunc(out, func(a, b ledger.JournalEntry) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Entries returns every stored entry ordered by id, for assertions.
func (d *DB) Entries() []ledger.JournalEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ledger.JournalEntry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, cloneEntry(e))
	}
	slices.SortFunc(out, func(a, b ledger.JournalEntry) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// PutEntry stores entry verbatim, bypassing every check. Tests use it to
// plant corrupt rows for the integrity audit.
func (d *DB) PutEntry(entry ledger.JournalEntry) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry.ID == 0 {
		entry.ID = d.id()
	}
	d.entries[entry.ID] = cloneEntry(entry)
	return entry.ID
}

// UpdateAccount applies fn to a stored account outside any transaction.
func (d *DB) UpdateAccount(id int64, fn func(*ledger.Account)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.accounts[id]
	fn(&a)
	d.accounts[id] = a
}

func (d *DB) accountsByID(ids []int64) map[int64]ledger.Account {
	out := make(map[int64]ledger.Account, len(ids))
	for _, id := range ids {
		if a, ok := d.accounts[id]; ok {
			out[id] = a
		}
	}
	return out
}

func cloneEntry(e ledger.JournalEntry) ledger.JournalEntry {
	e.Lines = slices.Clone(e.Lines)
	return e
}

type ledgerTx struct{ t *Tx }

func (l ledgerTx) Sequences() sequence.Store { return seqStore(l) }

func (l ledgerTx) FiscalYear(ctx context.Context, id int64) (masterdata.FiscalYear, error) {
	return masterTx(l).FiscalYear(ctx, id)
}

func (l ledgerTx) AccountsByID(_ context.Context, ids []int64) (map[int64]ledger.Account, error) {
	d := l.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accountsByID(ids), nil
}

func (l ledgerTx) GetEntryForUpdate(_ context.Context, id int64) (ledger.JournalEntry, error) {
	if err := l.t.lock(rowKey("journal_entries", id)); err != nil {
		return ledger.JournalEntry{}, err
	}
	d := l.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return ledger.JournalEntry{}, notFound("journal entry", id)
	}
	return cloneEntry(e), nil
}

func (l ledgerTx) InsertEntry(_ context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	d := l.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := l.t.check("InsertEntry"); err != nil {
		return ledger.JournalEntry{}, err
	}
	if entry.Posted && entry.DocumentNumber == "" {
		return ledger.JournalEntry{}, fmt.Errorf("journal entry posted without number")
	}
	if entry.SourceID != uuid.Nil {
		for _, other := range d.entries {
			if other.SourceModule == entry.SourceModule && other.SourceID == entry.SourceID {
				return ledger.JournalEntry{}, fmt.Errorf("%w: source %s/%s already has an entry",
					shared.ErrAlreadyPosted, entry.SourceModule, entry.SourceID)
			}
		}
	}
	entry.ID = d.id()
	entry.Lines = slices.Clone(entry.Lines)
	for i := range entry.Lines {
		entry.Lines[i].ID = d.id()
		entry.Lines[i].EntryID = entry.ID
		entry.Lines[i].LineNo = i + 1
	}
	put(l.t, d.entries, entry.ID, entry)
	return cloneEntry(entry), nil
}

func (l ledgerTx) MarkPosted(_ context.Context, id int64, number string, postedAt time.Time) error {
	d := l.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := l.t.check("MarkPosted"); err != nil {
		return err
	}
	e, ok := d.entries[id]
	if !ok || e.Posted {
		return fmt.Errorf("%w: journal entry %d", shared.ErrAlreadyPosted, id)
	}
	e.Posted = true
	e.DocumentNumber = number
	e.PostedAt = &postedAt
	put(l.t, d.entries, id, e)
	return nil
}

func (l ledgerTx) ReplaceLines(_ context.Context, entryID int64, lines []ledger.JournalLine) error {
	d := l.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[entryID]
	if !ok {
		return notFound("journal entry", entryID)
	}
	e.Lines = slices.Clone(lines)
	for i := range e.Lines {
		e.Lines[i].ID = d.id()
		e.Lines[i].EntryID = entryID
		e.Lines[i].LineNo = i + 1
	}
	put(l.t, d.entries, entryID, e)
	return nil
}

func (l ledgerTx) UpdateDescription(_ context.Context, id int64, description string) error {
	d := l.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return notFound("journal entry", id)
	}
	e.Description = description
	put(l.t, d.entries, id, cloneEntry(e))
	return nil
}

func (l ledgerTx) DeleteEntry(_ context.Context, id int64) error {
	d := l.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[id]; ok && !e.Posted {
		del(l.t, d.entries, id)
	}
	return nil
}

func (l ledgerTx) InsertAccount(_ context.Context, a ledger.Account) (int64, error) {
	d := l.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Contains(accountTypes, a.TypeCode) {
		return 0, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, a.TypeCode)
	}
	for _, other := range d.accounts {
		if other.CompanyID == a.CompanyID && other.Code == a.Code {
			return 0, fmt.Errorf("%w: account code %q already exists", shared.ErrValidation, a.Code)
		}
	}
	a.ID = d.id()
	put(l.t, d.accounts, a.ID, a)
	return a.ID, nil
}

func (l ledgerTx) AccountForUpdate(_ context.Context, id int64) (ledger.Account, error) {
	if err := l.t.lock(rowKey("accounts", id)); err != nil {
		return ledger.Account{}, err
	}
	d := l.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.accounts[id]
	if !ok {
		return ledger.Account{}, notFound("account", id)
	}
	return a, nil
}

func (l ledgerTx) SetAccountParent(_ context.Context, id int64, parentID *int64) error {
	d := l.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.accounts[id]
	if !ok {
		return notFound("account", id)
	}
	a.ParentID = parentID
	put(l.t, d.accounts, id, a)
	return nil
}
