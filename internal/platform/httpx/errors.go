// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Detail-bearing
// errors expose their fields under meta.
func RespondError(w http.ResponseWriter, err error) {
	var (
		unbalanced *shared.UnbalancedError
		badLine    *shared.InvalidLineError
		transition *shared.TransitionError
		invalid    *ValidationError
	)
	switch {
	case errors.As(err, &invalid):
		ProblemWithMeta(w, http.StatusBadRequest, "Validation Failed", err.Error(), map[string]any{"fields": invalid.Fields})
	case errors.As(err, &unbalanced):
		ProblemWithMeta(w, http.StatusUnprocessableEntity, "Unbalanced", err.Error(), map[string]any{
			"debit":      unbalanced.Debit.StringFixed(2),
			"credit":     unbalanced.Credit.StringFixed(2),
			"difference": unbalanced.Difference().StringFixed(2),
		})
	case errors.As(err, &badLine):
		ProblemWithMeta(w, http.StatusUnprocessableEntity, "Invalid Line", err.Error(), map[string]any{
			"line":       badLine.Line,
			"account_id": badLine.AccountID,
			"reason":     badLine.Reason,
		})
	case errors.As(err, &transition):
		ProblemWithMeta(w, http.StatusConflict, "Invalid Transition", err.Error(), map[string]any{
			"document": transition.Document,
			"action":   transition.Action,
			"from":     transition.From,
		})
	case errors.Is(err, shared.ErrContention):
		w.Header().Set("Retry-After", "1")
		Problem(w, http.StatusServiceUnavailable, "Contention", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrScopeNotFound):
		Problem(w, http.StatusNotFound, "Scope Not Found", err.Error())
	case errors.Is(err, shared.ErrScopeInactive):
		Problem(w, http.StatusConflict, "Scope Inactive", err.Error())
	case errors.Is(err, shared.ErrAlreadyPosted):
		Problem(w, http.StatusConflict, "Already Posted", err.Error())
	case errors.Is(err, shared.ErrEntryLocked):
		Problem(w, http.StatusConflict, "Entry Locked", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrUnbalanced):
		Problem(w, http.StatusUnprocessableEntity, "Unbalanced", err.Error())
	case errors.Is(err, shared.ErrInvalidLine):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Line", err.Error())
	case errors.Is(err, shared.ErrCrossCompanyMismatch):
		Problem(w, http.StatusUnprocessableEntity, "Cross Company Mismatch", err.Error())
	case errors.Is(err, shared.ErrNotApproved):
		Problem(w, http.StatusUnprocessableEntity, "Not Approved", err.Error())
	case errors.Is(err, shared.ErrCycle):
		Problem(w, http.StatusUnprocessableEntity, "Hierarchy Cycle", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
