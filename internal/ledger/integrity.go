package ledger

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/sequence"
)

// FiscalScope identifies a company's fiscal year.
type FiscalScope struct {
	CompanyID    int64 `json:"company_id"`
	FiscalYearID int64 `json:"fiscal_year_id"`
}

// EntryTotals are the summed sides of one posted entry.
type EntryTotals struct {
	EntryID        int64
	DocumentNumber string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
}

// Finding kinds reported by the integrity audit.
const (
	FindingUnbalanced         = "unbalanced_entry"
	FindingMissingNumber      = "missing_number"
	FindingSequenceRegression = "sequence_regression"
)

// Finding is one integrity violation.
type Finding struct {
	Kind         string `json:"kind"`
	CompanyID    int64  `json:"company_id"`
	FiscalYearID int64  `json:"fiscal_year_id"`
	EntryID      int64  `json:"entry_id,omitempty"`
	Detail       string `json:"detail"`
}

// IntegrityStore reads posted ledger data. Implementations take no locks.
type IntegrityStore interface {
	PostedScopes(ctx context.Context) ([]FiscalScope, error)
	UnbalancedEntries(ctx context.Context, scope FiscalScope) ([]EntryTotals, error)
	UnnumberedEntries(ctx context.Context, scope FiscalScope) ([]int64, error)
}

// SequenceInspector reads sequence rows and the numbers issued from them.
type SequenceInspector interface {
	List(ctx context.Context, companyID int64) ([]sequence.State, error)
	HighestIssued(ctx context.Context, st sequence.State) (int64, error)
}

// Auditor scans posted entries and sequences for invariant violations.
type Auditor struct {
	store     IntegrityStore
	sequences SequenceInspector
}

// NewAuditor constructs an Auditor. sequences may be nil to skip the
// regression check.
func NewAuditor(store IntegrityStore, sequences SequenceInspector) *Auditor {
	return &Auditor{store: store, sequences: sequences}
}

// Run returns every finding across all posted scopes.
func (a *Auditor) Run(ctx context.Context) ([]Finding, error) {
	scopes, err := a.store.PostedScopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: list posted scopes: %w", err)
	}
	var findings []Finding
	companies := map[int64]struct{}{}
	for _, scope := range scopes {
		companies[scope.CompanyID] = struct{}{}
		unbalanced, err := a.store.UnbalancedEntries(ctx, scope)
		if err != nil {
			return nil, err
		}
		for _, t := range unbalanced {
			findings = append(findings, Finding{
				Kind:         FindingUnbalanced,
				CompanyID:    scope.CompanyID,
				FiscalYearID: scope.FiscalYearID,
				EntryID:      t.EntryID,
				Detail:       fmt.Sprintf("%s debit %s credit %s", t.DocumentNumber, t.Debit.StringFixed(2), t.Credit.StringFixed(2)),
			})
		}
		missing, err := a.store.UnnumberedEntries(ctx, scope)
		if err != nil {
			return nil, err
		}
		for _, id := range missing {
			findings = append(findings, Finding{
				Kind:         FindingMissingNumber,
				CompanyID:    scope.CompanyID,
				FiscalYearID: scope.FiscalYearID,
				EntryID:      id,
				Detail:       "posted without document number",
			})
		}
	}
	if a.sequences == nil {
		return findings, nil
	}
	for _, companyID := range slices.Sorted(maps.Keys(companies)) {
		regressions, err := a.sequenceRegressions(ctx, companyID)
		if err != nil {
			return nil, err
		}
		findings = append(findings, regressions...)
	}
	return findings, nil
}

func (a *Auditor) sequenceRegressions(ctx context.Context, companyID int64) ([]Finding, error) {
	states, err := a.sequences.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, st := range states {
		highest, err := a.sequences.HighestIssued(ctx, st)
		if err != nil {
			return nil, err
		}
		if highest > st.LastNumber {
			findings = append(findings, Finding{
				Kind:         FindingSequenceRegression,
				CompanyID:    st.Scope.CompanyID,
				FiscalYearID: st.Scope.FiscalYearID,
				Detail:       fmt.Sprintf("%s last_number %d below issued %d", st.Scope.DocumentType, st.LastNumber, highest),
			})
		}
	}
	return findings, nil
}
