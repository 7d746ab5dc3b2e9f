package procurement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/integration"
	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Vendor(ctx context.Context, id int64) (Vendor, error)
	Vendors(ctx context.Context, companyID int64) ([]Vendor, error)
	PurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, error)
	PurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	GoodsReceipt(ctx context.Context, id int64) (GoodsReceipt, error)
	VendorInvoice(ctx context.Context, id int64) (VendorInvoice, error)
}

// Service orchestrates procurement flows.
type Service struct {
	repo      RepositoryPort
	poster    *ledger.Poster
	audit     shared.AuditRecorder
	metrics   ledger.PostingMetrics
	observers []ledger.PostingObserver
	now       func() time.Time
}

// NewService constructs procurement service. audit may be nil.
func NewService(repo RepositoryPort, poster *ledger.Poster, audit shared.AuditRecorder) *Service {
	if poster == nil {
		poster = ledger.NewPoster(nil)
	}
	return &Service{repo: repo, poster: poster, audit: audit, now: time.Now}
}

// WithMetrics attaches posting metrics for goods receipts and invoices.
func (s *Service) WithMetrics(metrics ledger.PostingMetrics) *Service {
	s.metrics = metrics
	return s
}

// Observe registers observers notified of each synthesized journal entry.
func (s *Service) Observe(observers ...ledger.PostingObserver) *Service {
	s.observers = append(s.observers, observers...)
	return s
}

// WithClock overrides the clock used for issue and posting timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RegisterVendorInput describes a new vendor.
type RegisterVendorInput struct {
	CompanyID   int64
	Code        string
	Name        string
	APAccountID int64
}

// RegisterVendor stores a vendor whose AP account is a control account of the
// same company.
func (s *Service) RegisterVendor(ctx context.Context, input RegisterVendorInput) (Vendor, error) {
	vendor := Vendor{
		CompanyID:   input.CompanyID,
		Code:        strings.TrimSpace(input.Code),
		Name:        strings.TrimSpace(input.Name),
		APAccountID: input.APAccountID,
		Active:      true,
	}
	if vendor.Code == "" || vendor.Name == "" {
		return Vendor{}, fmt.Errorf("%w: vendor code and name required", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		accounts, err := tx.Ledger().AccountsByID(ctx, []int64{vendor.APAccountID})
		if err != nil {
			return err
		}
		account, ok := accounts[vendor.APAccountID]
		if !ok {
			return fmt.Errorf("%w: account %d", shared.ErrNotFound, vendor.APAccountID)
		}
		if account.CompanyID != vendor.CompanyID {
			return fmt.Errorf("%w: AP account belongs to company %d", shared.ErrCrossCompanyMismatch, account.CompanyID)
		}
		if !account.Control {
			return fmt.Errorf("%w: AP account must be a control account", shared.ErrValidation)
		}
		id, err := tx.InsertVendor(ctx, vendor)
		vendor.ID = id
		return err
	})
	if err != nil {
		return Vendor{}, err
	}
	s.recordAudit(ctx, "vendor.create", "vendor", vendor.ID, map[string]any{"code": vendor.Code})
	return vendor, nil
}

// Vendors lists a company's vendors.
func (s *Service) Vendors(ctx context.Context, companyID int64) ([]Vendor, error) {
	return s.repo.Vendors(ctx, companyID)
}

// CreatePurchaseRequestInput describes a new purchase request.
type CreatePurchaseRequestInput struct {
	CompanyID       int64
	ProjectID       int64
	CostCenterID    int64
	Description     string
	RequestedBy     int64
	RequestDate     *time.Time
	EstimatedAmount decimal.NullDecimal
}

// CreatePurchaseRequest stores a draft request. The cost center must be
// postable and belong to the project, and the project to the company.
func (s *Service) CreatePurchaseRequest(ctx context.Context, input CreatePurchaseRequestInput) (PurchaseRequest, error) {
	pr := PurchaseRequest{
		CompanyID:       input.CompanyID,
		ProjectID:       input.ProjectID,
		CostCenterID:    input.CostCenterID,
		Description:     strings.TrimSpace(input.Description),
		RequestedBy:     input.RequestedBy,
		RequestDate:     input.RequestDate,
		EstimatedAmount: input.EstimatedAmount,
		Status:          PRStatusDraft,
	}
	if pr.Description == "" {
		return PurchaseRequest{}, fmt.Errorf("%w: description required", shared.ErrValidation)
	}
	if pr.EstimatedAmount.Valid && pr.EstimatedAmount.Decimal.IsNegative() {
		return PurchaseRequest{}, fmt.Errorf("%w: estimated amount must not be negative", shared.ErrValidation)
	}
	if pr.EstimatedAmount.Valid && !shared.FitsMoneyScale(pr.EstimatedAmount.Decimal) {
		return PurchaseRequest{}, fmt.Errorf("%w: estimated amount has more than 2 decimal places", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cc, err := tx.CostCenter(ctx, pr.CostCenterID)
		if err != nil {
			return err
		}
		if !cc.Postable {
			return fmt.Errorf("%w: cost center %s is not postable", shared.ErrValidation, cc.Code)
		}
		if cc.ProjectID != pr.ProjectID {
			return fmt.Errorf("%w: cost center %s does not belong to project %d", shared.ErrValidation, cc.Code, pr.ProjectID)
		}
		project, err := tx.Project(ctx, pr.ProjectID)
		if err != nil {
			return err
		}
		if project.CompanyID != pr.CompanyID {
			return fmt.Errorf("%w: project %s belongs to company %d", shared.ErrCrossCompanyMismatch, project.Code, project.CompanyID)
		}
		id, err := tx.InsertPurchaseRequest(ctx, pr)
		pr.ID = id
		return err
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, "pr.create", "purchase_request", pr.ID, nil)
	return pr, nil
}

// SubmitPurchaseRequest moves a draft request to submitted.
func (s *Service) SubmitPurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, error) {
	return s.transitionRequest(ctx, id, "pr.submit", PRStatus.Submit)
}

// ApprovePurchaseRequest moves a submitted request to approved.
func (s *Service) ApprovePurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, error) {
	return s.transitionRequest(ctx, id, "pr.approve", PRStatus.Approve)
}

// RejectPurchaseRequest moves a submitted request to rejected.
func (s *Service) RejectPurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, error) {
	return s.transitionRequest(ctx, id, "pr.reject", PRStatus.Reject)
}

func (s *Service) transitionRequest(ctx context.Context, id int64, action string, step func(PRStatus) (PRStatus, error)) (PurchaseRequest, error) {
	var pr PurchaseRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.PurchaseRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := step(current.Status)
		if err != nil {
			return err
		}
		if err := tx.UpdatePurchaseRequestStatus(ctx, id, next); err != nil {
			return err
		}
		current.Status = next
		pr = current
		return nil
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, action, "purchase_request", id, map[string]any{"status": pr.Status.String()})
	return pr, nil
}

// CreatePurchaseOrderInput describes a draft order.
type CreatePurchaseOrderInput struct {
	PurchaseRequestID int64
	VendorID          int64
	OrderDate         time.Time
	TotalAmount       decimal.Decimal
}

// CreatePurchaseOrder drafts the single order of an approved request.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreatePurchaseOrderInput) (PurchaseOrder, error) {
	if input.TotalAmount.IsNegative() {
		return PurchaseOrder{}, fmt.Errorf("%w: total amount must not be negative", shared.ErrValidation)
	}
	if !shared.FitsMoneyScale(input.TotalAmount) {
		return PurchaseOrder{}, fmt.Errorf("%w: total amount has more than 2 decimal places", shared.ErrValidation)
	}
	if input.OrderDate.IsZero() {
		return PurchaseOrder{}, fmt.Errorf("%w: order date required", shared.ErrValidation)
	}
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.PurchaseRequest(ctx, input.PurchaseRequestID)
		if err != nil {
			return err
		}
		if pr.Status != PRStatusApproved {
			return fmt.Errorf("%w: request %d is %s", shared.ErrNotApproved, pr.ID, pr.Status)
		}
		vendor, err := tx.Vendor(ctx, input.VendorID)
		if err != nil {
			return err
		}
		if vendor.CompanyID != pr.CompanyID {
			return fmt.Errorf("%w: vendor %s belongs to company %d", shared.ErrCrossCompanyMismatch, vendor.Code, vendor.CompanyID)
		}
		if !vendor.Active {
			return fmt.Errorf("%w: vendor %s is inactive", shared.ErrValidation, vendor.Code)
		}
		po = PurchaseOrder{
			CompanyID:         pr.CompanyID,
			PurchaseRequestID: pr.ID,
			VendorID:          vendor.ID,
			OrderDate:         input.OrderDate,
			TotalAmount:       input.TotalAmount,
			Status:            POStatusDraft,
		}
		id, err := tx.InsertPurchaseOrder(ctx, po)
		po.ID = id
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "po.create", "purchase_order", po.ID, map[string]any{"purchase_request_id": po.PurchaseRequestID})
	return po, nil
}

// IssuePurchaseOrder numbers a draft order from the PO sequence of its
// project's fiscal year.
func (s *Service) IssuePurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.PurchaseOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := current.Status.Issue()
		if err != nil {
			return err
		}
		pr, err := tx.PurchaseRequest(ctx, current.PurchaseRequestID)
		if err != nil {
			return err
		}
		if pr.Status != PRStatusApproved {
			return fmt.Errorf("%w: request %d is %s", shared.ErrNotApproved, pr.ID, pr.Status)
		}
		project, err := tx.Project(ctx, pr.ProjectID)
		if err != nil {
			return err
		}
		scope := sequence.NewScope(current.CompanyID, project.FiscalYearID, sequence.TypePurchaseOrder)
		number, err := sequence.Allocate(ctx, tx.Sequences(), scope)
		if err != nil {
			return err
		}
		at := s.now().UTC()
		if err := tx.IssuePurchaseOrder(ctx, id, number, at); err != nil {
			return err
		}
		current.Status = next
		current.DocumentNumber = number
		current.IssuedAt = &at
		po = current
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "po.issue", "purchase_order", id, map[string]any{"number": po.DocumentNumber})
	return po, nil
}

// ClosePurchaseOrder closes an issued order.
func (s *Service) ClosePurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.PurchaseOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := current.Status.Close()
		if err != nil {
			return err
		}
		at := s.now().UTC()
		if err := tx.ClosePurchaseOrder(ctx, id, at); err != nil {
			return err
		}
		current.Status = next
		current.ClosedAt = &at
		po = current
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "po.close", "purchase_order", id, nil)
	return po, nil
}

// CreateGoodsReceiptInput describes a draft receipt.
type CreateGoodsReceiptInput struct {
	PurchaseOrderID int64
	ReceiptDate     time.Time
	Amount          decimal.Decimal
}

// CreateGoodsReceipt drafts a receipt against an issued order.
func (s *Service) CreateGoodsReceipt(ctx context.Context, input CreateGoodsReceiptInput) (GoodsReceipt, error) {
	if input.Amount.IsNegative() {
		return GoodsReceipt{}, fmt.Errorf("%w: amount must not be negative", shared.ErrValidation)
	}
	if !shared.FitsMoneyScale(input.Amount) {
		return GoodsReceipt{}, fmt.Errorf("%w: amount has more than 2 decimal places", shared.ErrValidation)
	}
	var gr GoodsReceipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.PurchaseOrder(ctx, input.PurchaseOrderID)
		if err != nil {
			return err
		}
		if po.Status != POStatusIssued {
			return &shared.TransitionError{Document: "purchase order", Action: "receive against", From: po.Status.String()}
		}
		date := input.ReceiptDate
		if date.IsZero() {
			date = s.today()
		}
		gr = GoodsReceipt{
			CompanyID:       po.CompanyID,
			PurchaseOrderID: po.ID,
			ReceiptDate:     date,
			Amount:          input.Amount,
			Status:          PostingDraft,
		}
		id, err := tx.InsertGoodsReceipt(ctx, gr)
		gr.ID = id
		return err
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	s.recordAudit(ctx, "gr.create", "goods_receipt", gr.ID, map[string]any{"purchase_order_id": gr.PurchaseOrderID})
	return gr, nil
}

// PostGoodsReceipt numbers the receipt and posts its holding entry. Both
// numbers, the entry and the status change commit together or not at all.
func (s *Service) PostGoodsReceipt(ctx context.Context, id int64) (GoodsReceipt, error) {
	var (
		gr    GoodsReceipt
		entry ledger.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GoodsReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := current.Status.Post("goods receipt")
		if err != nil {
			return err
		}
		po, err := tx.PurchaseOrder(ctx, current.PurchaseOrderID)
		if err != nil {
			return err
		}
		if !po.Status.Receivable() {
			return &shared.TransitionError{Document: "purchase order", Action: "receive against", From: po.Status.String()}
		}
		fiscalYearID, err := s.orderFiscalYear(ctx, tx, po)
		if err != nil {
			return err
		}
		vendor, err := tx.Vendor(ctx, po.VendorID)
		if err != nil {
			return err
		}
		number, posted, err := s.postDocument(ctx, tx, documentPosting{
			documentType: sequence.TypeGoodsReceipt,
			companyID:    current.CompanyID,
			fiscalYearID: fiscalYearID,
			build: func(number string) ledger.JournalEntry {
				return integration.GoodsReceiptEntry(integration.DocumentPosting{
					CompanyID:      current.CompanyID,
					FiscalYearID:   fiscalYearID,
					DocumentID:     current.ID,
					DocumentNumber: number,
					Date:           current.ReceiptDate,
					Amount:         current.Amount,
					APAccountID:    vendor.APAccountID,
				})
			},
		})
		if err != nil {
			return err
		}
		at := s.now().UTC()
		if err := tx.MarkGoodsReceiptPosted(ctx, id, number, at); err != nil {
			return err
		}
		current.Status = next
		current.DocumentNumber = number
		current.PostedAt = &at
		gr = current
		entry = posted
		return nil
	})
	s.observePosting(sequence.TypeGoodsReceipt, err)
	if err != nil {
		return GoodsReceipt{}, err
	}
	s.recordAudit(ctx, "gr.post", "goods_receipt", id, map[string]any{
		"number":        gr.DocumentNumber,
		"journal_entry": entry.DocumentNumber,
	})
	s.notify(ctx, entry)
	return gr, nil
}

// CreateVendorInvoiceInput describes a draft invoice.
type CreateVendorInvoiceInput struct {
	VendorID       int64
	GoodsReceiptID int64
	InvoiceDate    time.Time
	Amount         decimal.Decimal
}

// CreateVendorInvoice drafts the single invoice of a goods receipt. The vendor
// must be the one the order was placed with.
func (s *Service) CreateVendorInvoice(ctx context.Context, input CreateVendorInvoiceInput) (VendorInvoice, error) {
	if input.Amount.IsNegative() {
		return VendorInvoice{}, fmt.Errorf("%w: amount must not be negative", shared.ErrValidation)
	}
	if !shared.FitsMoneyScale(input.Amount) {
		return VendorInvoice{}, fmt.Errorf("%w: amount has more than 2 decimal places", shared.ErrValidation)
	}
	var inv VendorInvoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		gr, err := tx.GoodsReceipt(ctx, input.GoodsReceiptID)
		if err != nil {
			return err
		}
		po, err := tx.PurchaseOrder(ctx, gr.PurchaseOrderID)
		if err != nil {
			return err
		}
		if po.VendorID != input.VendorID {
			return fmt.Errorf("%w: goods receipt %d was ordered from vendor %d", shared.ErrValidation, gr.ID, po.VendorID)
		}
		date := input.InvoiceDate
		if date.IsZero() {
			date = s.today()
		}
		inv = VendorInvoice{
			CompanyID:      gr.CompanyID,
			VendorID:       input.VendorID,
			GoodsReceiptID: gr.ID,
			InvoiceDate:    date,
			Amount:         input.Amount,
			Status:         PostingDraft,
		}
		id, err := tx.InsertVendorInvoice(ctx, inv)
		inv.ID = id
		return err
	})
	if err != nil {
		return VendorInvoice{}, err
	}
	s.recordAudit(ctx, "vi.create", "vendor_invoice", inv.ID, map[string]any{"goods_receipt_id": inv.GoodsReceiptID})
	return inv, nil
}

// PostVendorInvoice numbers the invoice and posts its AP entry atomically.
// The goods receipt must already be posted.
func (s *Service) PostVendorInvoice(ctx context.Context, id int64) (VendorInvoice, error) {
	var (
		inv   VendorInvoice
		entry ledger.JournalEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.VendorInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := current.Status.Post("vendor invoice")
		if err != nil {
			return err
		}
		gr, err := tx.GoodsReceipt(ctx, current.GoodsReceiptID)
		if err != nil {
			return err
		}
		if gr.Status != PostingPosted {
			return &shared.TransitionError{Document: "goods receipt", Action: "invoice", From: gr.Status.String()}
		}
		po, err := tx.PurchaseOrder(ctx, gr.PurchaseOrderID)
		if err != nil {
			return err
		}
		fiscalYearID, err := s.orderFiscalYear(ctx, tx, po)
		if err != nil {
			return err
		}
		vendor, err := tx.Vendor(ctx, current.VendorID)
		if err != nil {
			return err
		}
		number, posted, err := s.postDocument(ctx, tx, documentPosting{
			documentType: sequence.TypeVendorInvoice,
			companyID:    current.CompanyID,
			fiscalYearID: fiscalYearID,
			build: func(number string) ledger.JournalEntry {
				return integration.VendorInvoiceEntry(integration.DocumentPosting{
					CompanyID:      current.CompanyID,
					FiscalYearID:   fiscalYearID,
					DocumentID:     current.ID,
					DocumentNumber: number,
					Date:           current.InvoiceDate,
					Amount:         current.Amount,
					APAccountID:    vendor.APAccountID,
				})
			},
		})
		if err != nil {
			return err
		}
		at := s.now().UTC()
		if err := tx.MarkVendorInvoicePosted(ctx, id, number, at); err != nil {
			return err
		}
		current.Status = next
		current.DocumentNumber = number
		current.PostedAt = &at
		inv = current
		entry = posted
		return nil
	})
	s.observePosting(sequence.TypeVendorInvoice, err)
	if err != nil {
		return VendorInvoice{}, err
	}
	s.recordAudit(ctx, "vi.post", "vendor_invoice", id, map[string]any{
		"number":        inv.DocumentNumber,
		"journal_entry": entry.DocumentNumber,
	})
	s.notify(ctx, entry)
	return inv, nil
}

// PurchaseRequest loads a request.
func (s *Service) PurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, error) {
	return s.repo.PurchaseRequest(ctx, id)
}

// PurchaseOrder loads an order.
func (s *Service) PurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.PurchaseOrder(ctx, id)
}

// GoodsReceipt loads a receipt.
func (s *Service) GoodsReceipt(ctx context.Context, id int64) (GoodsReceipt, error) {
	return s.repo.GoodsReceipt(ctx, id)
}

// VendorInvoice loads an invoice.
func (s *Service) VendorInvoice(ctx context.Context, id int64) (VendorInvoice, error) {
	return s.repo.VendorInvoice(ctx, id)
}

type documentPosting struct {
	documentType string
	companyID    int64
	fiscalYearID int64
	build        func(number string) ledger.JournalEntry
}

// postDocument locks the document's own scope and the JE scope in global
// order, allocates the document number, then posts the synthesized entry.
func (s *Service) postDocument(ctx context.Context, tx TxRepository, p documentPosting) (string, ledger.JournalEntry, error) {
	own := sequence.NewScope(p.companyID, p.fiscalYearID, p.documentType)
	journal := sequence.NewScope(p.companyID, p.fiscalYearID, sequence.TypeJournalEntry)
	if err := sequence.LockScopes(ctx, tx.Sequences(), own, journal); err != nil {
		return "", ledger.JournalEntry{}, err
	}
	number, err := sequence.Allocate(ctx, tx.Sequences(), own)
	if err != nil {
		return "", ledger.JournalEntry{}, err
	}
	entry, err := s.poster.Post(ctx, tx.Ledger(), p.build(number), sequence.TypeJournalEntry)
	if err != nil {
		return "", ledger.JournalEntry{}, err
	}
	return number, entry, nil
}

// orderFiscalYear resolves the fiscal year by walking order, request and
// project.
func (s *Service) orderFiscalYear(ctx context.Context, tx TxRepository, po PurchaseOrder) (int64, error) {
	pr, err := tx.PurchaseRequest(ctx, po.PurchaseRequestID)
	if err != nil {
		return 0, err
	}
	project, err := tx.Project(ctx, pr.ProjectID)
	if err != nil {
		return 0, err
	}
	return project.FiscalYearID, nil
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) observePosting(documentType string, err error) {
	if s.metrics != nil {
		s.metrics.ObservePosting(documentType, err)
	}
}

func (s *Service) notify(ctx context.Context, entry ledger.JournalEntry) {
	for _, o := range s.observers {
		o.EntryPosted(ctx, entry)
	}
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now().UTC(),
	})
}
