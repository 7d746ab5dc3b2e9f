package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid input supplied by the caller.
	ErrValidation = errors.New("validation failed")
	// ErrCycle indicates a parent update that would make a node its own ancestor.
	ErrCycle = errors.New("hierarchy cycle")

	// ErrScopeNotFound indicates no sequence row exists for the scope.
	ErrScopeNotFound = errors.New("sequence: scope not found")
	// ErrScopeInactive indicates the sequence row for the scope is disabled.
	ErrScopeInactive = errors.New("sequence: scope inactive")

	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrInvalidLine indicates a malformed line or a line on an unusable account.
	ErrInvalidLine = errors.New("ledger: invalid journal line")
	// ErrAlreadyPosted indicates the entry was posted before.
	ErrAlreadyPosted = errors.New("ledger: entry already posted")
	// ErrEntryLocked indicates a mutation of a posted entry.
	ErrEntryLocked = errors.New("ledger: posted entry is locked")
	// ErrCrossCompanyMismatch indicates the fiscal year belongs to another company.
	ErrCrossCompanyMismatch = errors.New("ledger: fiscal year belongs to another company")

	// ErrInvalidTransition indicates the document is not in the required status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotApproved indicates the purchase request behind an order is not approved.
	ErrNotApproved = errors.New("procurement: purchase request not approved")

	// ErrContention indicates a lock wait timed out. Retry the whole operation.
	ErrContention = errors.New("lock contention")
)

// UnbalancedError carries the totals of a rejected entry.
type UnbalancedError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Difference returns debit minus credit.
func (e *UnbalancedError) Difference() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("%s: debit %s credit %s difference %s",
		ErrUnbalanced, e.Debit.StringFixed(2), e.Credit.StringFixed(2), e.Difference().StringFixed(2))
}

func (e *UnbalancedError) Unwrap() error { return ErrUnbalanced }

// InvalidLineError names the offending line by its position (1-based).
type InvalidLineError struct {
	Line      int
	AccountID int64
	Reason    string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("%s: line %d (account %d): %s", ErrInvalidLine, e.Line, e.AccountID, e.Reason)
}

func (e *InvalidLineError) Unwrap() error { return ErrInvalidLine }

// TransitionError reports the status a document was in when an action was refused.
type TransitionError struct {
	Document string
	Action   string
	From     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s %s in status %s", ErrInvalidTransition, e.Action, e.Document, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
