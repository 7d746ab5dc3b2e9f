// Package reports builds read-only ledger reports from posted journal lines.
package reports

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// Row is one account's posted activity for a fiscal year.
type Row struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	TypeCode  string          `json:"type_code"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// Balance returns debit minus credit.
func (r Row) Balance() decimal.Decimal {
	return r.Debit.Sub(r.Credit)
}

// TrialBalance lists every account with posted lines plus the column totals.
type TrialBalance struct {
	CompanyID    int64           `json:"company_id"`
	FiscalYearID int64           `json:"fiscal_year_id"`
	Rows         []Row           `json:"rows"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	Balanced     bool            `json:"balanced"`
}

// BuildTrialBalance orders rows by account code and sums both columns.
func BuildTrialBalance(companyID, fiscalYearID int64, rows []Row) TrialBalance {
	tb := TrialBalance{
		CompanyID:    companyID,
		FiscalYearID: fiscalYearID,
		Rows:         slices.Clone(rows),
	}
	if tb.Rows == nil {
		tb.Rows = []Row{}
	}
	slices.SortFunc(tb.Rows, func(a, b Row) int { return cmp.Compare(a.Code, b.Code) })
	for _, row := range tb.Rows {
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
	}
	tb.Balanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb
}
