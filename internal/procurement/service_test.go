package procurement_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledgercore/internal/integration"
	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/procurement"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/testing/memstore"
)

var (
	orderDate   = time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	receiptDate = time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC)
	clock       = func() time.Time { return time.Date(2025, 4, 9, 15, 0, 0, 0, time.UTC) }
)

type posting struct {
	docType string
	err     error
}

type recorder struct {
	postings []posting
	entries  []ledger.JournalEntry
}

func (r *recorder) ObservePosting(documentType string, err error) {
	r.postings = append(r.postings, posting{documentType, err})
}

func (r *recorder) EntryPosted(_ context.Context, entry ledger.JournalEntry) {
	r.entries = append(r.entries, entry)
}

type env struct {
	db  *memstore.DB
	fx  memstore.Fixture
	svc *procurement.Service
	rec *recorder
}

func newEnv(t *testing.T) env {
	t.Helper()
	db := memstore.New()
	fx := memstore.Seed(db)
	rec := &recorder{}
	svc := procurement.NewService(db.Procurement(), ledger.NewPoster(clock), db).
		WithClock(clock).
		WithMetrics(rec).
		Observe(rec)
	return env{db: db, fx: fx, svc: svc, rec: rec}
}

func (e env) counter(docType string) int64 {
	st, _ := e.db.Sequence(sequence.NewScope(e.fx.CompanyID, e.fx.FiscalYearID, docType))
	return st.LastNumber
}

func (e env) approvedRequest(t *testing.T) procurement.PurchaseRequest {
	t.Helper()
	ctx := context.Background()
	pr, err := e.svc.CreatePurchaseRequest(ctx, procurement.CreatePurchaseRequestInput{
		CompanyID:       e.fx.CompanyID,
		ProjectID:       e.fx.ProjectID,
		CostCenterID:    e.fx.CostCenterID,
		Description:     "Ready-mix concrete C40",
		RequestedBy:     7,
		EstimatedAmount: decimal.NewNullDecimal(decimal.RequireFromString("1500.00")),
	})
	require.NoError(t, err)
	_, err = e.svc.SubmitPurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	pr, err = e.svc.ApprovePurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	return pr
}

func (e env) draftOrder(t *testing.T) procurement.PurchaseOrder {
	t.Helper()
	pr := e.approvedRequest(t)
	po, err := e.svc.CreatePurchaseOrder(context.Background(), procurement.CreatePurchaseOrderInput{
		PurchaseRequestID: pr.ID,
		VendorID:          e.fx.VendorID,
		OrderDate:         orderDate,
		TotalAmount:       decimal.RequireFromString("1500.00"),
	})
	require.NoError(t, err)
	return po
}

func (e env) issuedOrder(t *testing.T) procurement.PurchaseOrder {
	t.Helper()
	po, err := e.svc.IssuePurchaseOrder(context.Background(), e.draftOrder(t).ID)
	require.NoError(t, err)
	return po
}

func (e env) draftReceipt(t *testing.T, amount string) procurement.GoodsReceipt {
	t.Helper()
	po := e.issuedOrder(t)
	gr, err := e.svc.CreateGoodsReceipt(context.Background(), procurement.CreateGoodsReceiptInput{
		PurchaseOrderID: po.ID,
		ReceiptDate:     receiptDate,
		Amount:          decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return gr
}

func TestPurchaseRequestLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pr, err := e.svc.CreatePurchaseRequest(ctx, procurement.CreatePurchaseRequestInput{
		CompanyID: e.fx.CompanyID, ProjectID: e.fx.ProjectID, CostCenterID: e.fx.CostCenterID, Description: "Rebar",
	})
	require.NoError(t, err)
	require.Equal(t, procurement.PRStatusDraft, pr.Status)

	_, err = e.svc.ApprovePurchaseRequest(ctx, pr.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	stored, err := e.svc.PurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.PRStatusDraft, stored.Status)

	_, err = e.svc.SubmitPurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	rejected, err := e.svc.RejectPurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.PRStatusRejected, rejected.Status)

	_, err = e.svc.ApprovePurchaseRequest(ctx, pr.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = e.svc.CreatePurchaseOrder(ctx, procurement.CreatePurchaseOrderInput{
		PurchaseRequestID: pr.ID, VendorID: e.fx.VendorID, OrderDate: orderDate, TotalAmount: decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, shared.ErrNotApproved)
}

func TestPurchaseRequestCostCenterRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	base := procurement.CreatePurchaseRequestInput{
		CompanyID: e.fx.CompanyID, ProjectID: e.fx.ProjectID, CostCenterID: e.fx.CostCenterID, Description: "Formwork",
	}

	summary := base
	summary.CostCenterID = e.fx.SummaryCostCenterID
	_, err := e.svc.CreatePurchaseRequest(ctx, summary)
	require.ErrorIs(t, err, shared.ErrValidation)

	foreign := base
	foreign.CompanyID = e.fx.OtherCompanyID
	_, err = e.svc.CreatePurchaseRequest(ctx, foreign)
	require.ErrorIs(t, err, shared.ErrCrossCompanyMismatch)

	blank := base
	blank.Description = "  "
	_, err = e.svc.CreatePurchaseRequest(ctx, blank)
	require.ErrorIs(t, err, shared.ErrValidation)

	negative := base
	negative.EstimatedAmount = decimal.NewNullDecimal(decimal.NewFromInt(-1))
	_, err = e.svc.CreatePurchaseRequest(ctx, negative)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRegisterVendorRequiresControlAccount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v, err := e.svc.RegisterVendor(ctx, procurement.RegisterVendorInput{
		CompanyID: e.fx.CompanyID, Code: "V-002", Name: "Emirates Steel", APAccountID: e.fx.APAccountID,
	})
	require.NoError(t, err)
	require.True(t, v.Active)

	_, err = e.svc.RegisterVendor(ctx, procurement.RegisterVendorInput{
		CompanyID: e.fx.CompanyID, Code: "V-003", Name: "Cash Vendor", APAccountID: e.fx.CashAccountID,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = e.svc.RegisterVendor(ctx, procurement.RegisterVendorInput{
		CompanyID: e.fx.CompanyID, Code: "V-004", Name: "Foreign", APAccountID: e.fx.OtherAPAccountID,
	})
	require.ErrorIs(t, err, shared.ErrCrossCompanyMismatch)

	_, err = e.svc.RegisterVendor(ctx, procurement.RegisterVendorInput{
		CompanyID: e.fx.CompanyID, Code: "V-002", Name: "Duplicate", APAccountID: e.fx.APAccountID,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	vendors, err := e.svc.Vendors(ctx, e.fx.CompanyID)
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	require.Equal(t, "V-001", vendors[0].Code)
}

func TestIssuePurchaseOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft := e.draftOrder(t)
	require.Empty(t, draft.DocumentNumber)

	po, err := e.svc.IssuePurchaseOrder(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.POStatusIssued, po.Status)
	require.Equal(t, "BURJ-PO-000001", po.DocumentNumber)
	require.Equal(t, clock(), *po.IssuedAt)

	_, err = e.svc.IssuePurchaseOrder(ctx, draft.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.EqualValues(t, 1, e.counter(sequence.TypePurchaseOrder))

	// One order per request.
	_, err = e.svc.CreatePurchaseOrder(ctx, procurement.CreatePurchaseOrderInput{
		PurchaseRequestID: draft.PurchaseRequestID, VendorID: e.fx.VendorID, OrderDate: orderDate, TotalAmount: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	closed, err := e.svc.ClosePurchaseOrder(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.POStatusClosed, closed.Status)
	_, err = e.svc.ClosePurchaseOrder(ctx, draft.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestIssueFailureReturnsNumber(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft := e.draftOrder(t)
	e.db.FailOn("IssuePurchaseOrder", errors.New("disk full"))

	_, err := e.svc.IssuePurchaseOrder(ctx, draft.ID)
	require.Error(t, err)
	require.Zero(t, e.counter(sequence.TypePurchaseOrder))

	e.db.FailOn("IssuePurchaseOrder", nil)
	po, err := e.svc.IssuePurchaseOrder(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, "BURJ-PO-000001", po.DocumentNumber)
}

func TestConcurrentIssueGetsDistinctNumbers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first, second := e.draftOrder(t), e.draftOrder(t)

	numbers := make([]string, 2)
	var g errgroup.Group
	for i, id := range []int64{first.ID, second.ID} {
		g.Go(func() error {
			po, err := e.svc.IssuePurchaseOrder(ctx, id)
			numbers[i] = po.DocumentNumber
			return err
		})
	}
	require.NoError(t, g.Wait())
	slices.Sort(numbers)
	require.Equal(t, []string{"BURJ-PO-000001", "BURJ-PO-000002"}, numbers)
}

func TestCreatePurchaseOrderVendorRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pr := e.approvedRequest(t)

	foreign, err := e.svc.RegisterVendor(ctx, procurement.RegisterVendorInput{
		CompanyID: e.fx.OtherCompanyID, Code: "V-900", Name: "Tower Supplies", APAccountID: e.fx.OtherAPAccountID,
	})
	require.NoError(t, err)

	_, err = e.svc.CreatePurchaseOrder(ctx, procurement.CreatePurchaseOrderInput{
		PurchaseRequestID: pr.ID, VendorID: foreign.ID, OrderDate: orderDate, TotalAmount: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, shared.ErrCrossCompanyMismatch)

	_, err = e.svc.CreatePurchaseOrder(ctx, procurement.CreatePurchaseOrderInput{
		PurchaseRequestID: pr.ID, VendorID: e.fx.VendorID, TotalAmount: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPostGoodsReceipt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft := e.draftReceipt(t, "1500.00")

	gr, err := e.svc.PostGoodsReceipt(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.PostingPosted, gr.Status)
	require.Equal(t, "BURJ-GR-000001", gr.DocumentNumber)

	entries := e.db.Entries()
	require.Len(t, entries, 1)
	je := entries[0]
	require.Equal(t, "BURJ-JE-000001", je.DocumentNumber)
	require.True(t, je.Posted)
	require.Equal(t, integration.SourceGoodsReceipt, je.SourceModule)
	require.Equal(t, integration.SourceID(integration.SourceGoodsReceipt, gr.ID), je.SourceID)
	require.Equal(t, receiptDate, je.Date)
	require.Len(t, je.Lines, 2)
	debit, credit := ledger.Totals(je.Lines)
	require.Equal(t, "1500.00", debit.StringFixed(2))
	require.True(t, debit.Equal(credit))

	stored, err := e.svc.GoodsReceipt(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.PostingPosted, stored.Status)
	require.Equal(t, gr.DocumentNumber, stored.DocumentNumber)

	require.Equal(t, []posting{{sequence.TypeGoodsReceipt, nil}}, e.rec.postings)
	require.Len(t, e.rec.entries, 1)

	_, err = e.svc.PostGoodsReceipt(ctx, draft.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.EqualValues(t, 1, e.counter(sequence.TypeGoodsReceipt))
	require.EqualValues(t, 1, e.counter(sequence.TypeJournalEntry))
}

func TestPostGoodsReceiptIsAtomic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft := e.draftReceipt(t, "1500.00")

	e.db.UpdateAccount(e.fx.APAccountID, func(a *ledger.Account) { a.Postable = false })
	_, err := e.svc.PostGoodsReceipt(ctx, draft.ID)
	require.ErrorIs(t, err, shared.ErrInvalidLine)

	stored, err := e.svc.GoodsReceipt(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.PostingDraft, stored.Status)
	require.Empty(t, stored.DocumentNumber)
	require.Zero(t, e.counter(sequence.TypeGoodsReceipt))
	require.Zero(t, e.counter(sequence.TypeJournalEntry))
	require.Empty(t, e.db.Entries())
	require.Len(t, e.rec.postings, 1)
	require.Empty(t, e.rec.entries)

	e.db.UpdateAccount(e.fx.APAccountID, func(a *ledger.Account) { a.Postable = true })
	gr, err := e.svc.PostGoodsReceipt(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, "BURJ-GR-000001", gr.DocumentNumber)
}

func TestPostGoodsReceiptRollsBackOnStatusWriteFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft := e.draftReceipt(t, "820.50")
	boom := errors.New("connection reset")
	e.db.FailOn("MarkGoodsReceiptPosted", boom)

	_, err := e.svc.PostGoodsReceipt(ctx, draft.ID)
	require.ErrorIs(t, err, boom)
	require.Zero(t, e.counter(sequence.TypeGoodsReceipt))
	require.Zero(t, e.counter(sequence.TypeJournalEntry))
	require.Empty(t, e.db.Entries())
	for _, log := range e.db.AuditLogs() {
		require.NotEqual(t, "gr.post", log.Action)
	}
}

func TestPostGoodsReceiptRejectsZeroAmount(t *testing.T) {
	e := newEnv(t)
	draft := e.draftReceipt(t, "0")
	_, err := e.svc.PostGoodsReceipt(context.Background(), draft.ID)
	require.ErrorIs(t, err, shared.ErrInvalidLine)
	require.Zero(t, e.counter(sequence.TypeGoodsReceipt))
}

func TestGoodsReceiptRequiresIssuedOrder(t *testing.T) {
	e := newEnv(t)
	draft := e.draftOrder(t)
	_, err := e.svc.CreateGoodsReceipt(context.Background(), procurement.CreateGoodsReceiptInput{
		PurchaseOrderID: draft.ID, Amount: decimal.NewFromInt(5),
	})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestVendorInvoiceFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft := e.draftReceipt(t, "1500.00")

	inv, err := e.svc.CreateVendorInvoice(ctx, procurement.CreateVendorInvoiceInput{
		VendorID: e.fx.VendorID, GoodsReceiptID: draft.ID, Amount: decimal.RequireFromString("1500.00"),
	})
	require.NoError(t, err)
	require.Equal(t, clock().Truncate(24*time.Hour), inv.InvoiceDate)

	_, err = e.svc.PostVendorInvoice(ctx, inv.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	var te *shared.TransitionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "goods receipt", te.Document)
	require.Zero(t, e.counter(sequence.TypeVendorInvoice))

	_, err = e.svc.PostGoodsReceipt(ctx, draft.ID)
	require.NoError(t, err)

	posted, err := e.svc.PostVendorInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, "BURJ-VI-000001", posted.DocumentNumber)

	entries := e.db.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "BURJ-JE-000002", entries[1].DocumentNumber)
	require.Equal(t, integration.SourceVendorInvoice, entries[1].SourceModule)

	_, err = e.svc.CreateVendorInvoice(ctx, procurement.CreateVendorInvoiceInput{
		VendorID: e.fx.VendorID, GoodsReceiptID: draft.ID, Amount: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	stored, err := e.svc.VendorInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.PostingPosted, stored.Status)
}

func TestPostVendorInvoiceIsAtomic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft := e.draftReceipt(t, "640.00")
	_, err := e.svc.PostGoodsReceipt(ctx, draft.ID)
	require.NoError(t, err)
	inv, err := e.svc.CreateVendorInvoice(ctx, procurement.CreateVendorInvoiceInput{
		VendorID: e.fx.VendorID, GoodsReceiptID: draft.ID, Amount: decimal.RequireFromString("640.00"),
	})
	require.NoError(t, err)

	e.db.UpdateAccount(e.fx.APAccountID, func(a *ledger.Account) { a.Postable = false })
	_, err = e.svc.PostVendorInvoice(ctx, inv.ID)
	require.ErrorIs(t, err, shared.ErrInvalidLine)

	stored, err := e.svc.VendorInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.PostingDraft, stored.Status)
	require.Empty(t, stored.DocumentNumber)
	require.Zero(t, e.counter(sequence.TypeVendorInvoice))
	require.EqualValues(t, 1, e.counter(sequence.TypeJournalEntry))
	require.Len(t, e.db.Entries(), 1)

	e.db.UpdateAccount(e.fx.APAccountID, func(a *ledger.Account) { a.Postable = true })
	posted, err := e.svc.PostVendorInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, "BURJ-VI-000001", posted.DocumentNumber)
	require.EqualValues(t, 2, e.counter(sequence.TypeJournalEntry))
}

func TestDocumentAmountsRejectSubCent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	subCent := decimal.RequireFromString("99.995")

	_, err := e.svc.CreatePurchaseRequest(ctx, procurement.CreatePurchaseRequestInput{
		CompanyID:       e.fx.CompanyID,
		ProjectID:       e.fx.ProjectID,
		CostCenterID:    e.fx.CostCenterID,
		Description:     "Rebar",
		RequestedBy:     7,
		EstimatedAmount: decimal.NewNullDecimal(subCent),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	pr := e.approvedRequest(t)
	_, err = e.svc.CreatePurchaseOrder(ctx, procurement.CreatePurchaseOrderInput{
		PurchaseRequestID: pr.ID, VendorID: e.fx.VendorID, OrderDate: orderDate, TotalAmount: subCent,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	po := e.issuedOrder(t)
	_, err = e.svc.CreateGoodsReceipt(ctx, procurement.CreateGoodsReceiptInput{
		PurchaseOrderID: po.ID, ReceiptDate: receiptDate, Amount: subCent,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	gr := e.draftReceipt(t, "99.99")
	_, err = e.svc.CreateVendorInvoice(ctx, procurement.CreateVendorInvoiceInput{
		VendorID: e.fx.VendorID, GoodsReceiptID: gr.ID, Amount: subCent,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestVendorInvoiceMustMatchOrderVendor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft := e.draftReceipt(t, "100")
	other, err := e.svc.RegisterVendor(ctx, procurement.RegisterVendorInput{
		CompanyID: e.fx.CompanyID, Code: "V-002", Name: "Emirates Steel", APAccountID: e.fx.APAccountID,
	})
	require.NoError(t, err)

	_, err = e.svc.CreateVendorInvoice(ctx, procurement.CreateVendorInvoiceInput{
		VendorID: other.ID, GoodsReceiptID: draft.ID, Amount: decimal.NewFromInt(100),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPostingAgainstInactiveJournalScope(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft := e.draftReceipt(t, "10")
	require.NoError(t, e.db.Sequences().SetActive(ctx,
		sequence.NewScope(e.fx.CompanyID, e.fx.FiscalYearID, sequence.TypeJournalEntry), false))

	_, err := e.svc.PostGoodsReceipt(ctx, draft.ID)
	require.ErrorIs(t, err, shared.ErrScopeInactive)
	require.Zero(t, e.counter(sequence.TypeGoodsReceipt))
}

func TestNewFiscalYearReusingPrefixesAuditsClean(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft := e.draftReceipt(t, "300.00")
	_, err := e.svc.PostGoodsReceipt(ctx, draft.ID)
	require.NoError(t, err)
	inv, err := e.svc.CreateVendorInvoice(ctx, procurement.CreateVendorInvoiceInput{
		VendorID: e.fx.VendorID, GoodsReceiptID: draft.ID, Amount: decimal.RequireFromString("300.00"),
	})
	require.NoError(t, err)
	_, err = e.svc.PostVendorInvoice(ctx, inv.ID)
	require.NoError(t, err)

	next := e.db.AddFiscalYear(e.fx.CompanyID, 2026)
	sequences := sequence.NewService(e.db.Sequences())
	for _, docType := range []string{sequence.TypePurchaseOrder, sequence.TypeGoodsReceipt, sequence.TypeVendorInvoice} {
		_, err := sequences.EnsureSequence(ctx, sequence.EnsureInput{
			CompanyID: e.fx.CompanyID, FiscalYearID: next, DocumentType: docType, Prefix: "BURJ-" + docType, Padding: 6,
		})
		require.NoError(t, err)
	}

	findings, err := ledger.NewAuditor(e.db.Ledger(), e.db.Sequences()).Run(ctx)
	require.NoError(t, err)
	require.Empty(t, findings)
}
