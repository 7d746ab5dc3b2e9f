package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func debit(account int64, amount string) JournalLine {
	return JournalLine{AccountID: account, Debit: dec(amount)}
}

func credit(account int64, amount string) JournalLine {
	return JournalLine{AccountID: account, Credit: dec(amount)}
}

func testAccounts() map[int64]Account {
	return map[int64]Account{
		1: {ID: 1, CompanyID: 1, Code: "1100", Active: true, Postable: true},
		2: {ID: 2, CompanyID: 1, Code: "2100", Active: true, Postable: true, Control: true},
		3: {ID: 3, CompanyID: 1, Code: "2000", Active: true},
		4: {ID: 4, CompanyID: 1, Code: "1900", Postable: true},
		5: {ID: 5, CompanyID: 2, Code: "1100", Active: true, Postable: true},
	}
}

func TestValidateAcceptsBalancedLines(t *testing.T) {
	lines := []JournalLine{debit(1, "1000.10"), credit(2, "600.05"), credit(2, "400.05")}
	require.NoError(t, Validate(1, lines, testAccounts()))
}

func TestValidateRejectsUnbalanced(t *testing.T) {
	err := Validate(1, []JournalLine{debit(1, "100.00"), credit(2, "99.99")}, testAccounts())
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	var unbalanced *shared.UnbalancedError
	require.True(t, errors.As(err, &unbalanced))
	require.True(t, unbalanced.Difference().Equal(dec("0.01")))
}

func TestValidateLineRules(t *testing.T) {
	cases := []struct {
		name   string
		lines  []JournalLine
		line   int
		reason string
	}{
		{"no lines", nil, 0, "entry has no lines"},
		{"negative", []JournalLine{debit(1, "-5"), credit(2, "-5")}, 1, "negative amount"},
		{"both zero", []JournalLine{debit(1, "10"), {AccountID: 2}}, 2, "both sides zero"},
		{"both sides", []JournalLine{{AccountID: 1, Debit: dec("5"), Credit: dec("5")}}, 1, "both debit and credit set"},
		{"unknown account", []JournalLine{debit(1, "5"), credit(99, "5")}, 2, "account not found"},
		{"other company", []JournalLine{debit(5, "5"), credit(2, "5")}, 1, "account belongs to another company"},
		{"not postable", []JournalLine{debit(1, "5"), credit(3, "5")}, 2, "account not postable"},
		{"inactive", []JournalLine{debit(4, "5"), credit(2, "5")}, 1, "account inactive"},
		// 0.005 + 0.005 balances 0.01 only until the columns round it.
		{"sub-cent", []JournalLine{debit(1, "0.005"), debit(1, "0.005"), credit(2, "0.01")}, 1, "more than 2 decimal places"},
		// Shape is checked on every line before any account lookup.
		{"shape before account", []JournalLine{debit(99, "5"), {AccountID: 2}}, 2, "both sides zero"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(1, tc.lines, testAccounts())
			require.ErrorIs(t, err, shared.ErrInvalidLine)
			var lineErr *shared.InvalidLineError
			require.True(t, errors.As(err, &lineErr))
			require.Equal(t, tc.line, lineErr.Line)
			require.Equal(t, tc.reason, lineErr.Reason)
		})
	}
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	lines := []JournalLine{debit(1, "10"), credit(2, "10")}
	before := append([]JournalLine(nil), lines...)
	require.NoError(t, Validate(1, lines, testAccounts()))
	require.Equal(t, before, lines)
}

func TestAccountIDsDeduplicates(t *testing.T) {
	require.Equal(t, []int64{2, 1}, AccountIDs([]JournalLine{credit(2, "1"), debit(1, "1"), credit(2, "1")}))
}
