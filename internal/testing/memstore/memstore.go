// Package memstore is an in-memory stand-in for the PostgreSQL repositories.
// It models what the services rely on: transactions that roll back as a unit
// and exclusive row locks that the owning transaction can re-take and that
// others wait on for a bounded time. Writes are visible to other
// transactions before commit, so tests must only read contended rows under a
// lock, which is how the services read them anyway.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/masterdata"
	"github.com/odyssey-erp/ledgercore/internal/procurement"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// DefaultLockWait bounds how long a transaction waits for a row lock.
const DefaultLockWait = 2 * time.Second

// DB holds every table in memory.
type DB struct {
	// LockWait bounds lock waits; a timeout surfaces as shared.ErrContention.
	LockWait time.Duration

	mu       sync.Mutex
	nextID   int64
	nextTx   int64
	locks    map[string]int64
	released chan struct{}
	failures map[string]error

	companies   map[int64]masterdata.Company
	fiscalYears map[int64]masterdata.FiscalYear
	projects    map[int64]masterdata.Project
	costCenters map[int64]masterdata.CostCenter
	docTypes    map[string]sequence.DocumentType
	sequences   map[int64]sequence.State
	accounts    map[int64]ledger.Account
	entries     map[int64]ledger.JournalEntry
	vendors     map[int64]procurement.Vendor
	requests    map[int64]procurement.PurchaseRequest
	orders      map[int64]procurement.PurchaseOrder
	receipts    map[int64]procurement.GoodsReceipt
	invoices    map[int64]procurement.VendorInvoice
	audit       []shared.AuditLog
}

// New returns an empty database with the document type registry seeded.
func New() *DB {
	d := &DB{
		LockWait:    DefaultLockWait,
		locks:       map[string]int64{},
		released:    make(chan struct{}),
		failures:    map[string]error{},
		companies:   map[int64]masterdata.Company{},
		fiscalYears: map[int64]masterdata.FiscalYear{},
		projects:    map[int64]masterdata.Project{},
		costCenters: map[int64]masterdata.CostCenter{},
		docTypes:    map[string]sequence.DocumentType{},
		sequences:   map[int64]sequence.State{},
		accounts:    map[int64]ledger.Account{},
		entries:     map[int64]ledger.JournalEntry{},
		vendors:     map[int64]procurement.Vendor{},
		requests:    map[int64]procurement.PurchaseRequest{},
		orders:      map[int64]procurement.PurchaseOrder{},
		receipts:    map[int64]procurement.GoodsReceipt{},
		invoices:    map[int64]procurement.VendorInvoice{},
	}
	for _, dt := range []sequence.DocumentType{
		{Code: sequence.TypePurchaseOrder, Name: "Purchase Order"},
		{Code: sequence.TypeGoodsReceipt, Name: "Goods Receipt"},
		{Code: sequence.TypeVendorInvoice, Name: "Vendor Invoice"},
		{Code: sequence.TypeJournalEntry, Name: "Journal Entry"},
	} {
		dt.ID = d.id()
		d.docTypes[dt.Code] = dt
	}
	return d
}

// FailOn makes the named operation return err until cleared with a nil err.
// Operation names are the TxRepository method names, e.g.
// "MarkGoodsReceiptPosted".
func (d *DB) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Record implements shared.AuditRecorder.
func (d *DB) Record(ctx context.Context, log shared.AuditLog) error {
	if log.ActorID == 0 {
		log.ActorID = shared.ActorFromContext(ctx)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.audit = append(d.audit, log)
	return nil
}

// AuditLogs returns recorded audit entries in order.
func (d *DB) AuditLogs() []shared.AuditLog {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]shared.AuditLog(nil), d.audit...)
}

// id must be called with mu held.
func (d *DB) id() int64 {
	d.nextID++
	return d.nextID
}

// Tx is one open transaction.
type Tx struct {
	d    *DB
	id   int64
	ctx  context.Context
	undo []func()
	held []string
}

func (d *DB) run(ctx context.Context, fn func(*Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.nextTx++
	t := &Tx{d: d, id: d.nextTx, ctx: ctx}
	d.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			t.finish(false)
			panic(p)
		}
	}()
	if err := fn(t); err != nil {
		t.finish(false)
		return err
	}
	t.finish(true)
	return nil
}

func (t *Tx) finish(commit bool) {
	d := t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if !commit {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
	}
	t.undo = nil
	if len(t.held) == 0 {
		return
	}
	for _, key := range t.held {
		delete(d.locks, key)
	}
	t.held = nil
	close(d.released)
	d.released = make(chan struct{})
}

// lock takes an exclusive lock on key for the rest of the transaction.
func (t *Tx) lock(key string) error {
	d := t.d
	timer := time.NewTimer(d.LockWait)
	defer timer.Stop()
	for {
		d.mu.Lock()
		owner, held := d.locks[key]
		if !held {
			d.locks[key] = t.id
			t.held = append(t.held, key)
			d.mu.Unlock()
			return nil
		}
		if owner == t.id {
			d.mu.Unlock()
			return nil
		}
		wait := d.released
		d.mu.Unlock()
		select {
		case <-wait:
		case <-t.ctx.Done():
			return t.ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w: waiting for %s", shared.ErrContention, key)
		}
	}
}

// check returns the injected failure for op. Must be called with mu held.
func (t *Tx) check(op string) error {
	return t.d.failures[op]
}

// put writes m[k] = v and logs the undo. Must be called with mu held.
func put[K comparable, V any](t *Tx, m map[K]V, k K, v V) {
	old, existed := m[k]
	t.undo = append(t.undo, func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// del removes m[k] and logs the undo. Must be called with mu held.
func del[K comparable, V any](t *Tx, m map[K]V, k K) {
	old, existed := m[k]
	if !existed {
		return
	}
	t.undo = append(t.undo, func() { m[k] = old })
	delete(m, k)
}

func rowKey(table string, id int64) string {
	return fmt.Sprintf("%s:%d", table, id)
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%w: %s %d", shared.ErrNotFound, what, id)
}
