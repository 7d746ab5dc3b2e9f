package sequence_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/testing/memstore"
)

type countingObserver struct {
	mu       sync.Mutex
	ok, fail int
}

func (o *countingObserver) ObserveAllocation(_ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.fail++
		return
	}
	o.ok++
}

func newService(t *testing.T) (*sequence.Service, *memstore.DB, memstore.Fixture) {
	t.Helper()
	db := memstore.New()
	fx := memstore.Seed(db)
	return sequence.NewService(db.Sequences()), db, fx
}

func TestAllocateDocumentNumberFormatsAndAdvances(t *testing.T) {
	svc, db, fx := newService(t)
	ctx := context.Background()
	obs := &countingObserver{}
	svc.WithObserver(obs)

	first, err := svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, "je")
	require.NoError(t, err)
	require.Equal(t, "BURJ-JE-000001", first)

	second, err := svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, sequence.TypeJournalEntry)
	require.NoError(t, err)
	require.Equal(t, "BURJ-JE-000002", second)

	st, ok := db.Sequence(sequence.NewScope(fx.CompanyID, fx.FiscalYearID, sequence.TypeJournalEntry))
	require.True(t, ok)
	require.EqualValues(t, 2, st.LastNumber)
	require.Equal(t, 2, obs.ok)
}

func TestConcurrentAllocationIssuesDistinctSequentialNumbers(t *testing.T) {
	svc, db, fx := newService(t)
	ctx := context.Background()

	const workers = 40
	numbers := make([]string, workers)
	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			n, err := svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, sequence.TypePurchaseOrder)
			numbers[i] = n
			return err
		})
	}
	require.NoError(t, g.Wait())

	slices.Sort(numbers)
	want := make([]string, workers)
	for i := range want {
		want[i] = fmt.Sprintf("BURJ-PO-%06d", i+1)
	}
	require.Equal(t, want, numbers)

	st, _ := db.Sequence(sequence.NewScope(fx.CompanyID, fx.FiscalYearID, sequence.TypePurchaseOrder))
	require.EqualValues(t, workers, st.LastNumber)
}

func TestAllocationOnOtherScopeDoesNotWait(t *testing.T) {
	svc, db, fx := newService(t)
	db.LockWait = 100 * time.Millisecond
	ctx := context.Background()
	held := sequence.NewScope(fx.CompanyID, fx.FiscalYearID, sequence.TypeGoodsReceipt)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- db.Sequences().WithTx(ctx, func(ctx context.Context, store sequence.Store) error {
			if _, err := sequence.Allocate(ctx, store, held); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	start := time.Now()
	n, err := svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, sequence.TypeVendorInvoice)
	require.NoError(t, err)
	require.Equal(t, "BURJ-VI-000001", n)
	n, err = svc.AllocateDocumentNumber(ctx, fx.OtherCompanyID, fx.OtherFiscalYearID, sequence.TypeGoodsReceipt)
	require.NoError(t, err)
	require.Equal(t, "TOWR-GR-000001", n)
	require.Less(t, time.Since(start), db.LockWait)

	_, err = svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, sequence.TypeGoodsReceipt)
	require.ErrorIs(t, err, shared.ErrContention)

	close(release)
	require.NoError(t, <-done)

	n, err = svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, sequence.TypeGoodsReceipt)
	require.NoError(t, err)
	require.Equal(t, "BURJ-GR-000002", n)
}

func TestRollbackReturnsNumber(t *testing.T) {
	svc, db, fx := newService(t)
	ctx := context.Background()
	scope := sequence.NewScope(fx.CompanyID, fx.FiscalYearID, sequence.TypeJournalEntry)
	boom := errors.New("downstream write failed")

	err := db.Sequences().WithTx(ctx, func(ctx context.Context, store sequence.Store) error {
		n, err := sequence.Allocate(ctx, store, scope)
		require.NoError(t, err)
		require.Equal(t, "BURJ-JE-000001", n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	st, _ := db.Sequence(scope)
	require.Zero(t, st.LastNumber)

	n, err := svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, sequence.TypeJournalEntry)
	require.NoError(t, err)
	require.Equal(t, "BURJ-JE-000001", n)
}

func TestInactiveScopeRejectsAllocation(t *testing.T) {
	svc, db, fx := newService(t)
	ctx := context.Background()
	obs := &countingObserver{}
	svc.WithObserver(obs)
	scope := sequence.NewScope(fx.CompanyID, fx.FiscalYearID, sequence.TypePurchaseOrder)

	require.NoError(t, svc.SetActive(ctx, scope, false))
	_, err := svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, sequence.TypePurchaseOrder)
	require.ErrorIs(t, err, shared.ErrScopeInactive)
	require.Equal(t, 1, obs.fail)

	st, _ := db.Sequence(scope)
	require.Zero(t, st.LastNumber)
	require.False(t, st.Active)

	require.NoError(t, svc.SetActive(ctx, scope, true))
	n, err := svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, sequence.TypePurchaseOrder)
	require.NoError(t, err)
	require.Equal(t, "BURJ-PO-000001", n)
}

func TestMissingScope(t *testing.T) {
	svc, _, fx := newService(t)
	ctx := context.Background()

	_, err := svc.AllocateDocumentNumber(ctx, fx.CompanyID, 9999, sequence.TypePurchaseOrder)
	require.ErrorIs(t, err, shared.ErrScopeNotFound)

	_, err = svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, "XX")
	require.ErrorIs(t, err, shared.ErrScopeNotFound)
}

func TestEnsureSequence(t *testing.T) {
	svc, db, fx := newService(t)
	ctx := context.Background()

	fy := db.AddFiscalYear(fx.CompanyID, 2026)
	st, err := svc.EnsureSequence(ctx, sequence.EnsureInput{
		CompanyID:    fx.CompanyID,
		FiscalYearID: fy,
		DocumentType: "po",
		Prefix:       "BURJ26-PO",
		Padding:      4,
		Floor:        100,
	})
	require.NoError(t, err)
	require.Equal(t, sequence.TypePurchaseOrder, st.Scope.DocumentType)
	require.EqualValues(t, 100, st.LastNumber)

	again, err := svc.EnsureSequence(ctx, sequence.EnsureInput{
		CompanyID: fx.CompanyID, FiscalYearID: fy, DocumentType: "PO", Prefix: "OTHER", Padding: 8,
	})
	require.NoError(t, err)
	require.Equal(t, st, again)

	n, err := svc.AllocateDocumentNumber(ctx, fx.CompanyID, fy, sequence.TypePurchaseOrder)
	require.NoError(t, err)
	require.Equal(t, "BURJ26-PO-0101", n)

	_, err = svc.EnsureSequence(ctx, sequence.EnsureInput{CompanyID: fx.CompanyID, FiscalYearID: fy, DocumentType: "GR", Prefix: "X", Padding: 0})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.EnsureSequence(ctx, sequence.EnsureInput{CompanyID: fx.CompanyID, FiscalYearID: fy, DocumentType: "ZZ", Prefix: "X", Padding: 6})
	require.ErrorIs(t, err, shared.ErrScopeNotFound)
}

func TestEnsureSequenceRejectsForeignFiscalYear(t *testing.T) {
	svc, db, fx := newService(t)
	ctx := context.Background()

	_, err := svc.EnsureSequence(ctx, sequence.EnsureInput{
		CompanyID: fx.CompanyID, FiscalYearID: fx.OtherFiscalYearID, DocumentType: "JE", Prefix: "BURJ-JE", Padding: 6,
	})
	require.ErrorIs(t, err, shared.ErrCrossCompanyMismatch)
	_, ok := db.Sequence(sequence.NewScope(fx.CompanyID, fx.OtherFiscalYearID, sequence.TypeJournalEntry))
	require.False(t, ok)

	_, err = svc.EnsureSequence(ctx, sequence.EnsureInput{
		CompanyID: fx.CompanyID, FiscalYearID: fx.OtherFiscalYearID + 1000, DocumentType: "JE", Prefix: "BURJ-JE", Padding: 6,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListAndPeek(t *testing.T) {
	svc, _, fx := newService(t)
	ctx := context.Background()

	items, err := svc.List(ctx, fx.CompanyID)
	require.NoError(t, err)
	require.Len(t, items, 4)
	codes := make([]string, 0, len(items))
	for _, st := range items {
		codes = append(codes, st.Scope.DocumentType)
	}
	require.Equal(t, []string{"GR", "JE", "PO", "VI"}, codes)

	_, err = svc.AllocateDocumentNumber(ctx, fx.CompanyID, fx.FiscalYearID, sequence.TypeVendorInvoice)
	require.NoError(t, err)
	st, err := svc.Peek(ctx, sequence.Scope{CompanyID: fx.CompanyID, FiscalYearID: fx.FiscalYearID, DocumentType: " vi "})
	require.NoError(t, err)
	require.EqualValues(t, 1, st.LastNumber)
}
