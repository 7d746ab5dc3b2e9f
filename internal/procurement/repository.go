package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/masterdata"
	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
	opts db.TxOptions
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, opts db.TxOptions) *Repository {
	return &Repository{pool: pool, opts: opts}
}

// TxRepository exposes transactional operations. Ledger and Sequences hand out
// views over the same transaction so a posting transition commits as a unit.
type TxRepository interface {
	Ledger() ledger.TxRepository
	Sequences() sequence.Store

	Project(ctx context.Context, id int64) (masterdata.Project, error)
	CostCenter(ctx context.Context, id int64) (masterdata.CostCenter, error)

	Vendor(ctx context.Context, id int64) (Vendor, error)
	InsertVendor(ctx context.Context, v Vendor) (int64, error)

	PurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, error)
	PurchaseRequestForUpdate(ctx context.Context, id int64) (PurchaseRequest, error)
	InsertPurchaseRequest(ctx context.Context, pr PurchaseRequest) (int64, error)
	UpdatePurchaseRequestStatus(ctx context.Context, id int64, status PRStatus) error

	PurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	PurchaseOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	IssuePurchaseOrder(ctx context.Context, id int64, number string, at time.Time) error
	ClosePurchaseOrder(ctx context.Context, id int64, at time.Time) error

	GoodsReceipt(ctx context.Context, id int64) (GoodsReceipt, error)
	GoodsReceiptForUpdate(ctx context.Context, id int64) (GoodsReceipt, error)
	InsertGoodsReceipt(ctx context.Context, gr GoodsReceipt) (int64, error)
	MarkGoodsReceiptPosted(ctx context.Context, id int64, number string, at time.Time) error

	VendorInvoiceForUpdate(ctx context.Context, id int64) (VendorInvoice, error)
	InsertVendorInvoice(ctx context.Context, inv VendorInvoice) (int64, error)
	MarkVendorInvoicePosted(ctx context.Context, id int64, number string, at time.Time) error
}

// WithTx wraps callback in a read committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(ctx, newTxRepo(tx))
	})
}

// Vendor loads a vendor without locking.
func (r *Repository) Vendor(ctx context.Context, id int64) (Vendor, error) {
	return reader{r.pool}.Vendor(ctx, id)
}

// Vendors lists a company's vendors.
func (r *Repository) Vendors(ctx context.Context, companyID int64) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx, selectVendor+` WHERE company_id = $1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.CompanyID, &v.Code, &v.Name, &v.APAccountID, &v.Active); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// PurchaseRequest loads a purchase request without locking.
func (r *Repository) PurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, error) {
	return reader{r.pool}.PurchaseRequest(ctx, id)
}

// PurchaseOrder loads a purchase order without locking.
func (r *Repository) PurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return reader{r.pool}.PurchaseOrder(ctx, id)
}

// GoodsReceipt loads a goods receipt without locking.
func (r *Repository) GoodsReceipt(ctx context.Context, id int64) (GoodsReceipt, error) {
	return reader{r.pool}.GoodsReceipt(ctx, id)
}

// VendorInvoice loads a vendor invoice without locking.
func (r *Repository) VendorInvoice(ctx context.Context, id int64) (VendorInvoice, error) {
	return reader{r.pool}.vendorInvoice(ctx, id, false)
}

// reader runs document lookups on a pool or a transaction.
type reader struct {
	q db.Querier
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", shared.ErrNotFound, what, id)
	}
	return db.MapError(err)
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return ` FOR UPDATE`
	}
	return ""
}

const selectVendor = `SELECT id, company_id, code, name, ap_account_id, is_active FROM vendors`

func (r reader) Vendor(ctx context.Context, id int64) (Vendor, error) {
	var v Vendor
	err := r.q.QueryRow(ctx, selectVendor+` WHERE id = $1`, id).
		Scan(&v.ID, &v.CompanyID, &v.Code, &v.Name, &v.APAccountID, &v.Active)
	if err != nil {
		return Vendor{}, notFound(err, "vendor", id)
	}
	return v, nil
}

func (r reader) PurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, error) {
	return r.purchaseRequest(ctx, id, false)
}

func (r reader) purchaseRequest(ctx context.Context, id int64, forUpdate bool) (PurchaseRequest, error) {
	var (
		pr     PurchaseRequest
		status string
	)
	err := r.q.QueryRow(ctx, `SELECT id, company_id, project_id, cost_center_id, description, requested_by, request_date, estimated_amount, status
FROM purchase_requests WHERE id = $1`+lockClause(forUpdate), id).
		Scan(&pr.ID, &pr.CompanyID, &pr.ProjectID, &pr.CostCenterID, &pr.Description, &pr.RequestedBy,
			&pr.RequestDate, &pr.EstimatedAmount, &status)
	if err != nil {
		return PurchaseRequest{}, notFound(err, "purchase request", id)
	}
	if pr.Status, err = ParsePRStatus(status); err != nil {
		return PurchaseRequest{}, err
	}
	return pr, nil
}

func (r reader) PurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return r.purchaseOrder(ctx, id, false)
}

func (r reader) purchaseOrder(ctx context.Context, id int64, forUpdate bool) (PurchaseOrder, error) {
	var (
		po     PurchaseOrder
		status string
	)
	err := r.q.QueryRow(ctx, `SELECT id, company_id, purchase_request_id, vendor_id, document_number, order_date, total_amount, status, issued_at, closed_at
FROM purchase_orders WHERE id = $1`+lockClause(forUpdate), id).
		Scan(&po.ID, &po.CompanyID, &po.PurchaseRequestID, &po.VendorID, &po.DocumentNumber, &po.OrderDate,
			&po.TotalAmount, &status, &po.IssuedAt, &po.ClosedAt)
	if err != nil {
		return PurchaseOrder{}, notFound(err, "purchase order", id)
	}
	if po.Status, err = ParsePOStatus(status); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (r reader) GoodsReceipt(ctx context.Context, id int64) (GoodsReceipt, error) {
	return r.goodsReceipt(ctx, id, false)
}

func (r reader) goodsReceipt(ctx context.Context, id int64, forUpdate bool) (GoodsReceipt, error) {
	var (
		gr     GoodsReceipt
		status string
	)
	err := r.q.QueryRow(ctx, `SELECT id, company_id, purchase_order_id, document_number, receipt_date, amount, status, posted_at
FROM goods_receipts WHERE id = $1`+lockClause(forUpdate), id).
		Scan(&gr.ID, &gr.CompanyID, &gr.PurchaseOrderID, &gr.DocumentNumber, &gr.ReceiptDate, &gr.Amount, &status, &gr.PostedAt)
	if err != nil {
		return GoodsReceipt{}, notFound(err, "goods receipt", id)
	}
	if gr.Status, err = ParsePostingStatus(status); err != nil {
		return GoodsReceipt{}, err
	}
	return gr, nil
}

func (r reader) vendorInvoice(ctx context.Context, id int64, forUpdate bool) (VendorInvoice, error) {
	var (
		inv    VendorInvoice
		status string
	)
	err := r.q.QueryRow(ctx, `SELECT id, company_id, vendor_id, goods_receipt_id, document_number, invoice_date, amount, status, posted_at
FROM vendor_invoices WHERE id = $1`+lockClause(forUpdate), id).
		Scan(&inv.ID, &inv.CompanyID, &inv.VendorID, &inv.GoodsReceiptID, &inv.DocumentNumber, &inv.InvoiceDate, &inv.Amount, &status, &inv.PostedAt)
	if err != nil {
		return VendorInvoice{}, notFound(err, "vendor invoice", id)
	}
	if inv.Status, err = ParsePostingStatus(status); err != nil {
		return VendorInvoice{}, err
	}
	return inv, nil
}

type txRepo struct {
	masterdata.Reader
	reader
	tx pgx.Tx
}

func newTxRepo(tx pgx.Tx) *txRepo {
	return &txRepo{Reader: masterdata.NewReader(tx), reader: reader{tx}, tx: tx}
}

func (r *txRepo) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}

func (r *txRepo) Sequences() sequence.Store {
	return sequence.NewTxStore(r.tx)
}

func (r *txRepo) InsertVendor(ctx context.Context, v Vendor) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO vendors (company_id, code, name, ap_account_id, is_active)
VALUES ($1, $2, $3, $4, $5) RETURNING id`, v.CompanyID, v.Code, v.Name, v.APAccountID, v.Active).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_vendors_company_code") {
			return 0, fmt.Errorf("%w: vendor code %s exists", shared.ErrValidation, v.Code)
		}
		return 0, db.MapError(err)
	}
	return id, nil
}

func (r *txRepo) PurchaseRequestForUpdate(ctx context.Context, id int64) (PurchaseRequest, error) {
	return r.purchaseRequest(ctx, id, true)
}

func (r *txRepo) InsertPurchaseRequest(ctx context.Context, pr PurchaseRequest) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_requests (company_id, project_id, cost_center_id, description, requested_by, request_date, estimated_amount, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		pr.CompanyID, pr.ProjectID, pr.CostCenterID, pr.Description, pr.RequestedBy, pr.RequestDate,
		pr.EstimatedAmount, pr.Status.String()).Scan(&id)
	if err != nil {
		return 0, db.MapError(err)
	}
	return id, nil
}

func (r *txRepo) UpdatePurchaseRequestStatus(ctx context.Context, id int64, status PRStatus) error {
	return r.exec(ctx, "purchase request", id, `UPDATE purchase_requests SET status = $2 WHERE id = $1`, id, status.String())
}

func (r *txRepo) PurchaseOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return r.purchaseOrder(ctx, id, true)
}

func (r *txRepo) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (company_id, purchase_request_id, vendor_id, order_date, total_amount, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		po.CompanyID, po.PurchaseRequestID, po.VendorID, po.OrderDate, po.TotalAmount, po.Status.String()).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_purchase_orders_request") {
			return 0, fmt.Errorf("%w: purchase request %d already has an order", shared.ErrValidation, po.PurchaseRequestID)
		}
		return 0, db.MapError(err)
	}
	return id, nil
}

func (r *txRepo) IssuePurchaseOrder(ctx context.Context, id int64, number string, at time.Time) error {
	return r.exec(ctx, "purchase order", id, `UPDATE purchase_orders SET status = $2, document_number = $3, issued_at = $4
WHERE id = $1`, id, POStatusIssued.String(), number, at)
}

func (r *txRepo) ClosePurchaseOrder(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, "purchase order", id, `UPDATE purchase_orders SET status = $2, closed_at = $3 WHERE id = $1`,
		id, POStatusClosed.String(), at)
}

func (r *txRepo) GoodsReceiptForUpdate(ctx context.Context, id int64) (GoodsReceipt, error) {
	return r.goodsReceipt(ctx, id, true)
}

func (r *txRepo) InsertGoodsReceipt(ctx context.Context, gr GoodsReceipt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO goods_receipts (company_id, purchase_order_id, receipt_date, amount, status)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		gr.CompanyID, gr.PurchaseOrderID, gr.ReceiptDate, gr.Amount, gr.Status.String()).Scan(&id)
	if err != nil {
		return 0, db.MapError(err)
	}
	return id, nil
}

func (r *txRepo) MarkGoodsReceiptPosted(ctx context.Context, id int64, number string, at time.Time) error {
	return r.exec(ctx, "goods receipt", id, `UPDATE goods_receipts SET status = $2, document_number = $3, posted_at = $4
WHERE id = $1`, id, PostingPosted.String(), number, at)
}

func (r *txRepo) VendorInvoiceForUpdate(ctx context.Context, id int64) (VendorInvoice, error) {
	return r.vendorInvoice(ctx, id, true)
}

func (r *txRepo) InsertVendorInvoice(ctx context.Context, inv VendorInvoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO vendor_invoices (company_id, vendor_id, goods_receipt_id, invoice_date, amount, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		inv.CompanyID, inv.VendorID, inv.GoodsReceiptID, inv.InvoiceDate, inv.Amount, inv.Status.String()).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_vendor_invoices_receipt") {
			return 0, fmt.Errorf("%w: goods receipt %d already invoiced", shared.ErrValidation, inv.GoodsReceiptID)
		}
		return 0, db.MapError(err)
	}
	return id, nil
}

func (r *txRepo) MarkVendorInvoicePosted(ctx context.Context, id int64, number string, at time.Time) error {
	return r.exec(ctx, "vendor invoice", id, `UPDATE vendor_invoices SET status = $2, document_number = $3, posted_at = $4
WHERE id = $1`, id, PostingPosted.String(), number, at)
}

func (r *txRepo) exec(ctx context.Context, what string, id int64, sql string, args ...any) error {
	cmd, err := r.tx.Exec(ctx, sql, args...)
	if err != nil {
		return db.MapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %d", shared.ErrNotFound, what, id)
	}
	return nil
}
