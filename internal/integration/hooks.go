// Package integration turns posted procurement documents into journal entries.
package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/ledger"
)

// Source modules stamped on synthesized entries.
const (
	SourceGoodsReceipt  = "PROCUREMENT.GR"
	SourceVendorInvoice = "PROCUREMENT.VI"
)

// DocumentPosting is what a procurement document contributes to the ledger.
type DocumentPosting struct {
	CompanyID      int64
	FiscalYearID   int64
	DocumentID     int64
	DocumentNumber string
	Date           time.Time
	Amount         decimal.Decimal
	APAccountID    int64
}

// SourceID derives the stable identifier linking an entry to its document.
func SourceID(module string, documentID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", module, documentID)))
}

// GoodsReceiptEntry builds the holding entry for a posted goods receipt.
func GoodsReceiptEntry(p DocumentPosting) ledger.JournalEntry {
	return holdingEntry(SourceGoodsReceipt, "Goods Receipt", p)
}

// VendorInvoiceEntry builds the entry for a posted vendor invoice.
func VendorInvoiceEntry(p DocumentPosting) ledger.JournalEntry {
	return holdingEntry(SourceVendorInvoice, "Vendor Invoice", p)
}

// holdingEntry debits and credits the vendor's AP control account for the
// document amount. Both lines hit the same account, so the entry nets to zero.
// TODO: split into GRNI and AP accounts once the account mapping is agreed.
func holdingEntry(module, label string, p DocumentPosting) ledger.JournalEntry {
	amount := roundAmount(p.Amount)
	return ledger.JournalEntry{
		CompanyID:    p.CompanyID,
		FiscalYearID: p.FiscalYearID,
		Date:         p.Date,
		Description:  fmt.Sprintf("%s %s", label, p.DocumentNumber),
		SourceModule: module,
		SourceID:     SourceID(module, p.DocumentID),
		Lines: []ledger.JournalLine{
			{LineNo: 1, AccountID: p.APAccountID, Debit: amount, Credit: decimal.Zero},
			{LineNo: 2, AccountID: p.APAccountID, Debit: decimal.Zero, Credit: amount},
		},
	}
}
