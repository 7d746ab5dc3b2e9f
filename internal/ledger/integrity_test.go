package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
)

func TestAuditorCleanLedger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.PostJournalEntry(ctx, e.entry(
		line(e.fx.ExpenseAccountID, "40", "0"),
		line(e.fx.CashAccountID, "0", "40"),
	), sequence.TypeJournalEntry)
	require.NoError(t, err)

	findings, err := ledger.NewAuditor(e.db.Ledger(), e.db.Sequences()).Run(ctx)
	require.NoError(t, err)
	require.Empty(t, findings)
}

func TestAuditorReportsViolations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.PostJournalEntry(ctx, e.entry(
		line(e.fx.ExpenseAccountID, "40", "0"),
		line(e.fx.CashAccountID, "0", "40"),
	), sequence.TypeJournalEntry)
	require.NoError(t, err)

	now := time.Now().UTC()
	unbalanced := e.entry(line(e.fx.ExpenseAccountID, "10", "0"), line(e.fx.CashAccountID, "0", "9"))
	unbalanced.Posted, unbalanced.PostedAt, unbalanced.DocumentNumber = true, &now, "BURJ-JE-000050"
	unbalancedID := e.db.PutEntry(unbalanced)

	unnumbered := e.entry(line(e.fx.ExpenseAccountID, "5", "0"), line(e.fx.CashAccountID, "0", "5"))
	unnumbered.Posted, unnumbered.PostedAt = true, &now
	unnumberedID := e.db.PutEntry(unnumbered)

	// Drafts are never audited.
	e.db.PutEntry(e.entry(line(e.fx.ExpenseAccountID, "1", "0")))

	findings, err := ledger.NewAuditor(e.db.Ledger(), e.db.Sequences()).Run(ctx)
	require.NoError(t, err)
	require.Len(t, findings, 3)

	require.Equal(t, ledger.FindingUnbalanced, findings[0].Kind)
	require.Equal(t, unbalancedID, findings[0].EntryID)
	require.Equal(t, "BURJ-JE-000050 debit 10.00 credit 9.00", findings[0].Detail)

	require.Equal(t, ledger.FindingMissingNumber, findings[1].Kind)
	require.Equal(t, unnumberedID, findings[1].EntryID)

	require.Equal(t, ledger.FindingSequenceRegression, findings[2].Kind)
	require.Equal(t, e.fx.CompanyID, findings[2].CompanyID)
	require.Equal(t, "JE last_number 1 below issued 50", findings[2].Detail)

	withoutSequences, err := ledger.NewAuditor(e.db.Ledger(), nil).Run(ctx)
	require.NoError(t, err)
	require.Len(t, withoutSequences, 2)
}

func TestAuditorScopesIssuedNumbersByFiscalYear(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for range 3 {
		_, err := e.svc.PostJournalEntry(ctx, e.entry(
			line(e.fx.ExpenseAccountID, "12.50", "0"),
			line(e.fx.CashAccountID, "0", "12.50"),
		), sequence.TypeJournalEntry)
		require.NoError(t, err)
	}

	// The next year reuses the prefix and starts from zero.
	next := e.db.AddFiscalYear(e.fx.CompanyID, 2026)
	_, err := sequence.NewService(e.db.Sequences()).EnsureSequence(ctx, sequence.EnsureInput{
		CompanyID: e.fx.CompanyID, FiscalYearID: next, DocumentType: sequence.TypeJournalEntry, Prefix: "BURJ-JE", Padding: 6,
	})
	require.NoError(t, err)

	findings, err := ledger.NewAuditor(e.db.Ledger(), e.db.Sequences()).Run(ctx)
	require.NoError(t, err)
	require.Empty(t, findings)

	now := time.Now().UTC()
	ahead := e.entry(line(e.fx.ExpenseAccountID, "1", "0"), line(e.fx.CashAccountID, "0", "1"))
	ahead.FiscalYearID = next
	ahead.Posted, ahead.PostedAt, ahead.DocumentNumber = true, &now, "BURJ-JE-000002"
	e.db.PutEntry(ahead)
	findings, err = ledger.NewAuditor(e.db.Ledger(), e.db.Sequences()).Run(ctx)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Equal(t, ledger.FindingSequenceRegression, findings[0].Kind)
	require.Equal(t, next, findings[0].FiscalYearID)
	require.Equal(t, "JE last_number 0 below issued 2", findings[0].Detail)
}
