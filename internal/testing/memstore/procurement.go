package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/masterdata"
	"github.com/odyssey-erp/ledgercore/internal/procurement"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// ProcurementRepo implements procurement.RepositoryPort.
type ProcurementRepo struct{ d *DB }

// Procurement returns the procurement repository view.
func (d *DB) Procurement() *ProcurementRepo { return &ProcurementRepo{d: d} }

// WithTx runs fn inside a new transaction.
func (r *ProcurementRepo) WithTx(ctx context.Context, fn func(context.Context, procurement.TxRepository) error) error {
	return r.d.run(ctx, func(t *Tx) error {
		return fn(ctx, procTx{t})
	})
}

// Vendor loads a vendor.
func (r *ProcurementRepo) Vendor(_ context.Context, id int64) (procurement.Vendor, error) {
	return get(r.d, r.d.vendors, "vendor", id)
}

// Vendors lists a company's vendors by code.
func (r *ProcurementRepo) Vendors(_ context.Context, companyID int64) ([]procurement.Vendor, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []procurement.Vendor
	for _, v := range r.d.vendors {
		if v.CompanyID == companyID {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b procurement.Vendor) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

// PurchaseRequest loads a request.
func (r *ProcurementRepo) PurchaseRequest(_ context.Context, id int64) (procurement.PurchaseRequest, error) {
	return get(r.d, r.d.requests, "purchase request", id)
}

// PurchaseOrder loads an order.
func (r *ProcurementRepo) PurchaseOrder(_ context.Context, id int64) (procurement.PurchaseOrder, error) {
	return get(r.d, r.d.orders, "purchase order", id)
}

// GoodsReceipt loads a receipt.
func (r *ProcurementRepo) GoodsReceipt(_ context.Context, id int64) (procurement.GoodsReceipt, error) {
	return get(r.d, r.d.receipts, "goods receipt", id)
}

// VendorInvoice loads an invoice.
func (r *ProcurementRepo) VendorInvoice(_ context.Context, id int64) (procurement.VendorInvoice, error) {
	return get(r.d, r.d.invoices, "vendor invoice", id)
}

func get[V any](d *DB, m map[int64]V, what string, id int64) (V, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := m[id]
	if !ok {
		var zero V
		return zero, notFound(what, id)
	}
	return v, nil
}

func getForUpdate[V any](t *Tx, m map[int64]V, table, what string, id int64) (V, error) {
	if err := t.lock(rowKey(table, id)); err != nil {
		var zero V
		return zero, err
	}
	return get(t.d, m, what, id)
}

// update applies fn to m[id] inside t. Must not be called with mu held.
func update[V any](t *Tx, m map[int64]V, op, what string, id int64, fn func(*V)) error {
	d := t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := t.check(op); err != nil {
		return err
	}
	v, ok := m[id]
	if !ok {
		return notFound(what, id)
	}
	fn(&v)
	put(t, m, id, v)
	return nil
}

type procTx struct{ t *Tx }

func (p procTx) Ledger() ledger.TxRepository { return ledgerTx(p) }

func (p procTx) Sequences() sequence.Store { return seqStore(p) }

func (p procTx) Project(ctx context.Context, id int64) (masterdata.Project, error) {
	return masterTx(p).Project(ctx, id)
}

func (p procTx) CostCenter(ctx context.Context, id int64) (masterdata.CostCenter, error) {
	return masterTx(p).CostCenter(ctx, id)
}

func (p procTx) Vendor(_ context.Context, id int64) (procurement.Vendor, error) {
	return get(p.t.d, p.t.d.vendors, "vendor", id)
}

func (p procTx) InsertVendor(_ context.Context, v procurement.Vendor) (int64, error) {
	d := p.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, other := range d.vendors {
		if other.CompanyID == v.CompanyID && other.Code == v.Code {
			return 0, fmt.Errorf("%w: vendor code %s exists", shared.ErrValidation, v.Code)
		}
	}
	v.ID = d.id()
	put(p.t, d.vendors, v.ID, v)
	return v.ID, nil
}

func (p procTx) PurchaseRequest(_ context.Context, id int64) (procurement.PurchaseRequest, error) {
	return get(p.t.d, p.t.d.requests, "purchase request", id)
}

func (p procTx) PurchaseRequestForUpdate(_ context.Context, id int64) (procurement.PurchaseRequest, error) {
	return getForUpdate(p.t, p.t.d.requests, "purchase_requests", "purchase request", id)
}

func (p procTx) InsertPurchaseRequest(_ context.Context, pr procurement.PurchaseRequest) (int64, error) {
	d := p.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	pr.ID = d.id()
	put(p.t, d.requests, pr.ID, pr)
	return pr.ID, nil
}

func (p procTx) UpdatePurchaseRequestStatus(_ context.Context, id int64, status procurement.PRStatus) error {
	return update(p.t, p.t.d.requests, "UpdatePurchaseRequestStatus", "purchase request", id, func(pr *procurement.PurchaseRequest) {
		pr.Status = status
	})
}

func (p procTx) PurchaseOrder(_ context.Context, id int64) (procurement.PurchaseOrder, error) {
	return get(p.t.d, p.t.d.orders, "purchase order", id)
}

func (p procTx) PurchaseOrderForUpdate(_ context.Context, id int64) (procurement.PurchaseOrder, error) {
	return getForUpdate(p.t, p.t.d.orders, "purchase_orders", "purchase order", id)
}

func (p procTx) InsertPurchaseOrder(_ context.Context, po procurement.PurchaseOrder) (int64, error) {
	d := p.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, other := range d.orders {
		if other.PurchaseRequestID == po.PurchaseRequestID {
			return 0, fmt.Errorf("%w: purchase request %d already has an order", shared.ErrValidation, po.PurchaseRequestID)
		}
	}
	po.ID = d.id()
	put(p.t, d.orders, po.ID, po)
	return po.ID, nil
}

func (p procTx) IssuePurchaseOrder(_ context.Context, id int64, number string, at time.Time) error {
	return update(p.t, p.t.d.orders, "IssuePurchaseOrder", "purchase order", id, func(po *procurement.PurchaseOrder) {
		po.Status = procurement.POStatusIssued
		po.DocumentNumber = number
		po.IssuedAt = &at
	})
}

func (p procTx) ClosePurchaseOrder(_ context.Context, id int64, at time.Time) error {
	return update(p.t, p.t.d.orders, "ClosePurchaseOrder", "purchase order", id, func(po *procurement.PurchaseOrder) {
		po.Status = procurement.POStatusClosed
		po.ClosedAt = &at
	})
}

func (p procTx) GoodsReceipt(_ context.Context, id int64) (procurement.GoodsReceipt, error) {
	return get(p.t.d, p.t.d.receipts, "goods receipt", id)
}

func (p procTx) GoodsReceiptForUpdate(_ context.Context, id int64) (procurement.GoodsReceipt, error) {
	return getForUpdate(p.t, p.t.d.receipts, "goods_receipts", "goods receipt", id)
}

func (p procTx) InsertGoodsReceipt(_ context.Context, gr procurement.GoodsReceipt) (int64, error) {
	d := p.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	gr.ID = d.id()
	put(p.t, d.receipts, gr.ID, gr)
	return gr.ID, nil
}

func (p procTx) MarkGoodsReceiptPosted(_ context.Context, id int64, number string, at time.Time) error {
	return update(p.t, p.t.d.receipts, "MarkGoodsReceiptPosted", "goods receipt", id, func(gr *procurement.GoodsReceipt) {
		gr.Status = procurement.PostingPosted
		gr.DocumentNumber = number
		gr.PostedAt = &at
	})
}

func (p procTx) VendorInvoiceForUpdate(_ context.Context, id int64) (procurement.VendorInvoice, error) {
	return getForUpdate(p.t, p.t.d.invoices, "vendor_invoices", "vendor invoice", id)
}

func (p procTx) InsertVendorInvoice(_ context.Context, inv procurement.VendorInvoice) (int64, error) {
	d := p.t.d
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, other := range d.invoices {
		if other.GoodsReceiptID == inv.GoodsReceiptID {
			return 0, fmt.Errorf("%w: goods receipt %d already invoiced", shared.ErrValidation, inv.GoodsReceiptID)
		}
	}
	inv.ID = d.id()
	put(p.t, d.invoices, inv.ID, inv)
	return inv.ID, nil
}

func (p procTx) MarkVendorInvoicePosted(_ context.Context, id int64, number string, at time.Time) error {
	return update(p.t, p.t.d.invoices, "MarkVendorInvoicePosted", "vendor invoice", id, func(inv *procurement.VendorInvoice) {
		inv.Status = procurement.PostingPosted
		inv.DocumentNumber = number
		inv.PostedAt = &at
	})
}
