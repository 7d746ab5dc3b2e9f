// Package ledger holds the chart of accounts and the journal posting path.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType is a high level classification such as ASSET or LIABILITY.
type AccountType struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Account is a chart of accounts node.
type Account struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"company_id"`
	TypeCode  string `json:"type_code"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	ParentID  *int64 `json:"parent_id,omitempty"`
	Active    bool   `json:"active"`
	Postable  bool   `json:"postable"`
	Control   bool   `json:"control"`
}

// JournalLine is one side of a journal entry. Exactly one of Debit and Credit
// is non-zero.
type JournalLine struct {
	ID        int64           `json:"id,omitempty"`
	EntryID   int64           `json:"entry_id,omitempty"`
	LineNo    int             `json:"line_no"`
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// JournalEntry is a journal header with its lines. A posted entry always has a
// document number and never changes again.
type JournalEntry struct {
	ID             int64         `json:"id"`
	CompanyID      int64         `json:"company_id"`
	FiscalYearID   int64         `json:"fiscal_year_id"`
	Date           time.Time     `json:"date"`
	Description    string        `json:"description"`
	DocumentNumber string        `json:"document_number,omitempty"`
	Posted         bool          `json:"posted"`
	PostedAt       *time.Time    `json:"posted_at,omitempty"`
	SourceModule   string        `json:"source_module,omitempty"`
	SourceID       uuid.UUID     `json:"source_id,omitempty"`
	Lines          []JournalLine `json:"lines"`
}

// AccountIDs returns the distinct accounts referenced by the lines.
func AccountIDs(lines []JournalLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}

// Totals sums both sides exactly.
func Totals(lines []JournalLine) (debit, credit decimal.Decimal) {
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}
