package memstore

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// SequenceRepo implements sequence.RepositoryPort and the integrity
// inspector.
type SequenceRepo struct{ d *DB }

// Sequences returns the sequence repository view.
func (d *DB) Sequences() *SequenceRepo { return &SequenceRepo{d: d} }

// WithTx runs fn with a store bound to a new transaction.
func (r *SequenceRepo) WithTx(ctx context.Context, fn func(context.Context, sequence.Store) error) error {
	return r.d.run(ctx, func(t *Tx) error {
		return fn(ctx, seqStore{t})
	})
}

// Get reads a sequence row without locking.
func (r *SequenceRepo) Get(_ context.Context, scope sequence.Scope) (sequence.State, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	st, ok := r.d.findSequence(scope)
	if !ok {
		return sequence.State{}, fmt.Errorf("%w: %s", shared.ErrScopeNotFound, scope)
	}
	return st, nil
}

// List returns a company's sequence rows.
func (r *SequenceRepo) List(_ context.Context, companyID int64) ([]sequence.State, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []sequence.State
	for _, st := range r.d.sequences {
		if st.Scope.CompanyID == companyID {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b sequence.State) int { return a.Scope.Compare(b.Scope) })
	return out, nil
}

// DocumentType resolves a registry code.
func (r *SequenceRepo) DocumentType(_ context.Context, code string) (sequence.DocumentType, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	dt, ok := r.d.docTypes[code]
	if !ok {
		return sequence.DocumentType{}, fmt.Errorf("%w: unknown document type %q", shared.ErrScopeNotFound, code)
	}
	return dt, nil
}

// Ensure inserts the row when missing and returns the stored state.
func (r *SequenceRepo) Ensure(ctx context.Context, st sequence.State) (sequence.State, error) {
	r.d.mu.Lock()
	if _, known := r.d.docTypes[st.Scope.DocumentType]; known {
		if _, exists := r.d.findSequence(st.Scope); !exists {
			st.ID = r.d.id()
			r.d.sequences[st.ID] = st
		}
	}
	r.d.mu.Unlock()
	return r.Get(ctx, st.Scope)
}

// SetActive toggles a scope under its row lock.
func (r *SequenceRepo) SetActive(ctx context.Context, scope sequence.Scope, active bool) error {
	return r.d.run(ctx, func(t *Tx) error {
		st, err := seqStore{t}.LockScope(ctx, scope)
		if err != nil {
			return err
		}
		r.d.mu.Lock()
		defer r.d.mu.Unlock()
		st.Active = active
		put(t, r.d.sequences, st.ID, st)
		return nil
	})
}

// FiscalYearCompany returns the company owning a fiscal year.
func (r *SequenceRepo) FiscalYearCompany(_ context.Context, fiscalYearID int64) (int64, error) {
	fy, err := r.d.fiscalYear(fiscalYearID)
	if err != nil {
		return 0, err
	}
	return fy.CompanyID, nil
}

// HighestIssued returns the largest numeric suffix issued under the state's
// prefix for its company and fiscal year.
func (r *SequenceRepo) HighestIssued(_ context.Context, st sequence.State) (int64, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	scope := st.Scope
	orderYear := func(orderID int64) int64 {
		po := r.d.orders[orderID]
		return r.d.projects[r.d.requests[po.PurchaseRequestID].ProjectID].FiscalYearID
	}
	var numbers []string
	switch scope.DocumentType {
	case sequence.TypeJournalEntry:
		for _, e := range r.d.entries {
			if e.CompanyID == scope.CompanyID && e.FiscalYearID == scope.FiscalYearID {
				numbers = append(numbers, e.DocumentNumber)
			}
		}
	case sequence.TypePurchaseOrder:
		for _, po := range r.d.orders {
			if po.CompanyID == scope.CompanyID && orderYear(po.ID) == scope.FiscalYearID {
				numbers = append(numbers, po.DocumentNumber)
			}
		}
	case sequence.TypeGoodsReceipt:
		for _, gr := range r.d.receipts {
			if gr.CompanyID == scope.CompanyID && orderYear(gr.PurchaseOrderID) == scope.FiscalYearID {
				numbers = append(numbers, gr.DocumentNumber)
			}
		}
	case sequence.TypeVendorInvoice:
		for _, inv := range r.d.invoices {
			gr := r.d.receipts[inv.GoodsReceiptID]
			if inv.CompanyID == scope.CompanyID && orderYear(gr.PurchaseOrderID) == scope.FiscalYearID {
				numbers = append(numbers, inv.DocumentNumber)
			}
		}
	}
	var highest int64
	for _, number := range numbers {
		suffix, ok := strings.CutPrefix(number, st.Prefix+"-")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	return highest, nil
}

// Sequence returns the current row for scope, for assertions.
func (d *DB) Sequence(scope sequence.Scope) (sequence.State, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findSequence(scope)
}

// findSequence must be called with mu held.
func (d *DB) findSequence(scope sequence.Scope) (sequence.State, bool) {
	for _, st := range d.sequences {
		if st.Scope == scope {
			return st, true
		}
	}
	return sequence.State{}, false
}

type seqStore struct{ t *Tx }

func (s seqStore) LockScope(_ context.Context, scope sequence.Scope) (sequence.State, error) {
	if err := s.t.lock("sequence:" + scope.String()); err != nil {
		return sequence.State{}, err
	}
	d := s.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.findSequence(scope)
	if !ok {
		return sequence.State{}, fmt.Errorf("%w: %s", shared.ErrScopeNotFound, scope)
	}
	return st, nil
}

func (s seqStore) SaveLastNumber(_ context.Context, id int64, lastNumber int64) error {
	d := s.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := s.t.check("SaveLastNumber"); err != nil {
		return err
	}
	st, ok := d.sequences[id]
	if !ok || st.LastNumber >= lastNumber {
		return fmt.Errorf("sequence: row %d not advanced to %d", id, lastNumber)
	}
	st.LastNumber = lastNumber
	put(s.t, d.sequences, id, st)
	return nil
}
