package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/ledgercore/internal/masterdata"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// TxRepository is transaction-scoped ledger persistence. Every method runs on
// the same underlying transaction, including the sequence store it hands out.
type TxRepository interface {
	Sequences() sequence.Store
	FiscalYear(ctx context.Context, id int64) (masterdata.FiscalYear, error)
	AccountsByID(ctx context.Context, ids []int64) (map[int64]Account, error)
	GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	MarkPosted(ctx context.Context, id int64, number string, postedAt time.Time) error
	ReplaceLines(ctx context.Context, entryID int64, lines []JournalLine) error
	UpdateDescription(ctx context.Context, id int64, description string) error
	DeleteEntry(ctx context.Context, id int64) error
	InsertAccount(ctx context.Context, account Account) (int64, error)
	AccountForUpdate(ctx context.Context, id int64) (Account, error)
	SetAccountParent(ctx context.Context, id int64, parentID *int64) error
}

// Poster posts journal entries inside a caller supplied transaction. It is the
// single path by which an entry gains a document number.
type Poster struct {
	now func() time.Time
}

// NewPoster constructs a Poster. A nil clock uses time.Now.
func NewPoster(now func() time.Time) *Poster {
	if now == nil {
		now = time.Now
	}
	return &Poster{now: now}
}

// Post validates entry, allocates its number from the documentType sequence of
// the entry's fiscal year and persists it as posted. An entry with an ID is
// loaded and locked first; one without is inserted already posted. Any error
// leaves the transaction for the caller to roll back, so no number is consumed.
func (p *Poster) Post(ctx context.Context, tx TxRepository, entry JournalEntry, documentType string) (JournalEntry, error) {
	if entry.ID != 0 {
		stored, err := tx.GetEntryForUpdate(ctx, entry.ID)
		if err != nil {
			return JournalEntry{}, err
		}
		entry = stored
	}
	if entry.Posted {
		return JournalEntry{}, fmt.Errorf("%w: %s", shared.ErrAlreadyPosted, entry.DocumentNumber)
	}

	fy, err := tx.FiscalYear(ctx, entry.FiscalYearID)
	if err != nil {
		return JournalEntry{}, err
	}
	if fy.CompanyID != entry.CompanyID {
		return JournalEntry{}, fmt.Errorf("%w: fiscal year %d belongs to company %d, entry to %d",
			shared.ErrCrossCompanyMismatch, fy.ID, fy.CompanyID, entry.CompanyID)
	}

	accounts, err := tx.AccountsByID(ctx, AccountIDs(entry.Lines))
	if err != nil {
		return JournalEntry{}, err
	}
	if err := Validate(entry.CompanyID, entry.Lines, accounts); err != nil {
		return JournalEntry{}, err
	}

	if documentType == "" {
		documentType = sequence.TypeJournalEntry
	}
	scope := sequence.NewScope(entry.CompanyID, entry.FiscalYearID, documentType)
	number, err := sequence.Allocate(ctx, tx.Sequences(), scope)
	if err != nil {
		return JournalEntry{}, err
	}

	postedAt := p.now().UTC()
	entry.DocumentNumber = number
	entry.Posted = true
	entry.PostedAt = &postedAt
	if entry.ID == 0 {
		return tx.InsertEntry(ctx, entry)
	}
	if err := tx.MarkPosted(ctx, entry.ID, number, postedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}
