package reports

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Source reads aggregated posted lines. Implementations take no locks.
type Source interface {
	TrialBalanceRows(ctx context.Context, companyID, fiscalYearID int64) ([]Row, error)
}

// Service builds reports through the cache, collapsing concurrent identical
// builds into one query.
type Service struct {
	source Source
	cache  *Cache
	group  singleflight.Group
}

// NewService wires a Source with a Cache. cache may be nil.
func NewService(source Source, cache *Cache) *Service {
	return &Service{source: source, cache: cache}
}

// TrialBalance returns the trial balance of a company's fiscal year.
func (s *Service) TrialBalance(ctx context.Context, companyID, fiscalYearID int64) (TrialBalance, error) {
	if companyID <= 0 || fiscalYearID <= 0 {
		return TrialBalance{}, shared.ErrValidation
	}
	load := func(ctx context.Context) (any, error) {
		rows, err := s.source.TrialBalanceRows(ctx, companyID, fiscalYearID)
		if err != nil {
			return nil, err
		}
		return BuildTrialBalance(companyID, fiscalYearID, rows), nil
	}
	key, err := s.cache.BuildKey(ctx, companyID, "tb", strconv.FormatInt(fiscalYearID, 10))
	if err != nil {
		// Without a version the cache cannot be trusted; read the ledger directly.
		tb, err := load(ctx)
		if err != nil {
			return TrialBalance{}, err
		}
		return tb.(TrialBalance), nil
	}
	result, err, _ := s.group.Do(key, func() (any, error) {
		var tb TrialBalance
		err := s.cache.FetchJSON(ctx, key, &tb, load)
		return tb, err
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return result.(TrialBalance), nil
}
