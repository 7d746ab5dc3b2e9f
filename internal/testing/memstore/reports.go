package memstore

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/reports"
)

// ReportsRepo implements reports.Source.
type ReportsRepo struct{ d *DB }

// Reports returns the report source view.
func (d *DB) Reports() *ReportsRepo { return &ReportsRepo{d: d} }

// TrialBalanceRows sums posted lines per account.
func (r *ReportsRepo) TrialBalanceRows(_ context.Context, companyID, fiscalYearID int64) ([]reports.Row, error) {
	entries := r.d.postedIn(ledger.FiscalScope{CompanyID: companyID, FiscalYearID: fiscalYearID})

	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	byAccount := map[int64]*reports.Row{}
	var order []int64
	for _, e := range entries {
		for _, line := range e.Lines {
			row, ok := byAccount[line.AccountID]
			if !ok {
				a := r.d.accounts[line.AccountID]
				row = &reports.Row{AccountID: a.ID, Code: a.Code, Name: a.Name, TypeCode: a.TypeCode, Debit: decimal.Zero, Credit: decimal.Zero}
				byAccount[line.AccountID] = row
				order = append(order, line.AccountID)
			}
			row.Debit = row.Debit.Add(line.Debit)
			row.Credit = row.Credit.Add(line.Credit)
		}
	}
	out := make([]reports.Row, 0, len(order))
	for _, id := range order {
		out = append(out, *byAccount[id])
	}
	return out, nil
}
