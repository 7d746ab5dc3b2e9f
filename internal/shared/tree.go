package shared

import (
	"context"
	"fmt"
)

// ParentLookup returns the parent of id, or nil for a root. Implementations
// running inside a transaction should lock each visited row so two opposite
// moves cannot both pass the check.
type ParentLookup func(ctx context.Context, id int64) (*int64, error)

// EnsureAcyclic reports ErrCycle when attaching id under newParent would make
// id its own ancestor. A nil newParent always succeeds.
func EnsureAcyclic(ctx context.Context, id int64, newParent *int64, parentOf ParentLookup) error {
	if newParent == nil {
		return nil
	}
	seen := map[int64]struct{}{}
	for cur := newParent; cur != nil; {
		if *cur == id {
			return fmt.Errorf("%w: %d would become its own ancestor", ErrCycle, id)
		}
		if _, ok := seen[*cur]; ok {
			return fmt.Errorf("%w: existing loop through %d", ErrCycle, *cur)
		}
		seen[*cur] = struct{}{}
		next, err := parentOf(ctx, *cur)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}
