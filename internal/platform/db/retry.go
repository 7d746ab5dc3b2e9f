package db

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// RetryOnContention re-runs fn while it fails with shared.ErrContention, backing
// off exponentially. fn must be a whole transition (its own transaction), never
// a fragment of one. Any other error stops the loop immediately.
func RetryOnContention(ctx context.Context, maxRetries uint64, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 25 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := fn()
		if err == nil || errors.Is(err, shared.ErrContention) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
}
