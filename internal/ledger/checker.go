package ledger

import (
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Validate checks a set of lines against the accounts they reference. Rules run
// in order across every line before the next rule starts: line shape, then
// account usability, then balance. It never mutates its inputs and is safe to
// call speculatively.
func Validate(companyID int64, lines []JournalLine, accounts map[int64]Account) error {
	if len(lines) == 0 {
		return &shared.InvalidLineError{Reason: "entry has no lines"}
	}
	for i, line := range lines {
		if err := checkShape(i+1, line); err != nil {
			return err
		}
	}
	for i, line := range lines {
		if err := checkAccount(i+1, companyID, line, accounts); err != nil {
			return err
		}
	}
	debit, credit := Totals(lines)
	if !debit.Equal(credit) {
		return &shared.UnbalancedError{Debit: debit, Credit: credit}
	}
	return nil
}

func checkShape(pos int, line JournalLine) error {
	switch {
	case line.Debit.IsNegative() || line.Credit.IsNegative():
		return &shared.InvalidLineError{Line: pos, AccountID: line.AccountID, Reason: "negative amount"}
	case line.Debit.IsZero() && line.Credit.IsZero():
		return &shared.InvalidLineError{Line: pos, AccountID: line.AccountID, Reason: "both sides zero"}
	case !line.Debit.IsZero() && !line.Credit.IsZero():
		return &shared.InvalidLineError{Line: pos, AccountID: line.AccountID, Reason: "both debit and credit set"}
	}
	return checkLineScale(pos, line)
}

// checkScale rejects amounts the NUMERIC(15,2) columns would round. Drafts go
// through it too so a stored draft never differs from what was submitted.
func checkScale(lines []JournalLine) error {
	for i, line := range lines {
		if err := checkLineScale(i+1, line); err != nil {
			return err
		}
	}
	return nil
}

func checkLineScale(pos int, line JournalLine) error {
	if !shared.FitsMoneyScale(line.Debit) || !shared.FitsMoneyScale(line.Credit) {
		return &shared.InvalidLineError{Line: pos, AccountID: line.AccountID, Reason: "more than 2 decimal places"}
	}
	return nil
}

func checkAccount(pos int, companyID int64, line JournalLine, accounts map[int64]Account) error {
	account, ok := accounts[line.AccountID]
	switch {
	case !ok:
		return &shared.InvalidLineError{Line: pos, AccountID: line.AccountID, Reason: "account not found"}
	case account.CompanyID != companyID:
		return &shared.InvalidLineError{Line: pos, AccountID: line.AccountID, Reason: "account belongs to another company"}
	case !account.Postable:
		return &shared.InvalidLineError{Line: pos, AccountID: line.AccountID, Reason: "account not postable"}
	case !account.Active:
		return &shared.InvalidLineError{Line: pos, AccountID: line.AccountID, Reason: "account inactive"}
	}
	return nil
}
