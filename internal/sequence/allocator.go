package sequence

import (
	"context"
	"fmt"
	"slices"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Store is transaction-scoped access to sequence rows. LockScope must take an
// exclusive row lock held until the surrounding transaction ends, and must be
// a no-op re-entry when the same transaction already holds it.
type Store interface {
	LockScope(ctx context.Context, scope Scope) (State, error)
	SaveLastNumber(ctx context.Context, id int64, lastNumber int64) error
}

// Allocate issues the next number for scope inside the store's transaction.
// Rolling the transaction back returns the counter to its previous value.
func Allocate(ctx context.Context, store Store, scope Scope) (string, error) {
	state, err := store.LockScope(ctx, scope)
	if err != nil {
		return "", err
	}
	if !state.Active {
		return "", fmt.Errorf("%w: %s", shared.ErrScopeInactive, scope)
	}
	next := state.LastNumber + 1
	if err := store.SaveLastNumber(ctx, state.ID, next); err != nil {
		return "", err
	}
	return state.Format(next), nil
}

// LockScopes locks every scope in Compare order, skipping duplicates.
// Transitions that allocate from several scopes call this before touching any
// of them so concurrent callers never wait on each other in a cycle.
func LockScopes(ctx context.Context, store Store, scopes ...Scope) error {
	ordered := slices.Clone(scopes)
	slices.SortFunc(ordered, Scope.Compare)
	ordered = slices.Compact(ordered)
	for _, scope := range ordered {
		if _, err := store.LockScope(ctx, scope); err != nil {
			return err
		}
	}
	return nil
}
