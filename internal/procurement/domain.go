package procurement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// PRStatus enumerates purchase request lifecycle stages.
type PRStatus uint8

const (
	PRStatusDraft PRStatus = iota
	PRStatusSubmitted
	PRStatusApproved
	PRStatusRejected
)

var prStatusNames = [...]string{
	PRStatusDraft:     "draft",
	PRStatusSubmitted: "submitted",
	PRStatusApproved:  "approved",
	PRStatusRejected:  "rejected",
}

func (s PRStatus) String() string { return statusName(prStatusNames[:], int(s)) }

// MarshalText encodes the status by name.
func (s PRStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Submit moves a draft request to submitted.
func (s PRStatus) Submit() (PRStatus, error) {
	switch s {
	case PRStatusDraft:
		return PRStatusSubmitted, nil
	default:
		return s, transition("purchase request", "submit", s)
	}
}

// Approve moves a submitted request to approved.
func (s PRStatus) Approve() (PRStatus, error) {
	switch s {
	case PRStatusSubmitted:
		return PRStatusApproved, nil
	default:
		return s, transition("purchase request", "approve", s)
	}
}

// Reject moves a submitted request to rejected.
func (s PRStatus) Reject() (PRStatus, error) {
	switch s {
	case PRStatusSubmitted:
		return PRStatusRejected, nil
	default:
		return s, transition("purchase request", "reject", s)
	}
}

// ParsePRStatus resolves a stored status name.
func ParsePRStatus(v string) (PRStatus, error) {
	i, err := parseStatus(prStatusNames[:], "purchase request", v)
	return PRStatus(i), err
}

// POStatus enumerates purchase order lifecycle stages.
type POStatus uint8

const (
	POStatusDraft POStatus = iota
	POStatusIssued
	POStatusClosed
)

var poStatusNames = [...]string{
	POStatusDraft:  "draft",
	POStatusIssued: "issued",
	POStatusClosed: "closed",
}

func (s POStatus) String() string { return statusName(poStatusNames[:], int(s)) }

// MarshalText encodes the status by name.
func (s POStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Issue moves a draft order to issued.
func (s POStatus) Issue() (POStatus, error) {
	switch s {
	case POStatusDraft:
		return POStatusIssued, nil
	default:
		return s, transition("purchase order", "issue", s)
	}
}

// Close moves an issued order to closed.
func (s POStatus) Close() (POStatus, error) {
	switch s {
	case POStatusIssued:
		return POStatusClosed, nil
	default:
		return s, transition("purchase order", "close", s)
	}
}

// Receivable reports whether goods may be received against the order.
func (s POStatus) Receivable() bool {
	return s == POStatusIssued || s == POStatusClosed
}

// ParsePOStatus resolves a stored status name.
func ParsePOStatus(v string) (POStatus, error) {
	i, err := parseStatus(poStatusNames[:], "purchase order", v)
	return POStatus(i), err
}

// PostingStatus is shared by goods receipts and vendor invoices.
type PostingStatus uint8

const (
	PostingDraft PostingStatus = iota
	PostingPosted
)

var postingStatusNames = [...]string{
	PostingDraft:  "draft",
	PostingPosted: "posted",
}

func (s PostingStatus) String() string { return statusName(postingStatusNames[:], int(s)) }

// MarshalText encodes the status by name.
func (s PostingStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Post moves a draft document to posted. document names the caller for the
// error message.
func (s PostingStatus) Post(document string) (PostingStatus, error) {
	switch s {
	case PostingDraft:
		return PostingPosted, nil
	default:
		return s, transition(document, "post", s)
	}
}

// ParsePostingStatus resolves a stored status name.
func ParsePostingStatus(v string) (PostingStatus, error) {
	i, err := parseStatus(postingStatusNames[:], "document", v)
	return PostingStatus(i), err
}

func statusName(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("status(%d)", i)
}

func parseStatus(names []string, document, v string) (int, error) {
	for i, name := range names {
		if name == v {
			return i, nil
		}
	}
	return 0, fmt.Errorf("procurement: unknown %s status %q", document, v)
}

func transition(document, action string, from fmt.Stringer) error {
	return &shared.TransitionError{Document: document, Action: action, From: from.String()}
}

// Vendor is a supplier with its accounts payable control account.
type Vendor struct {
	ID          int64  `json:"id"`
	CompanyID   int64  `json:"company_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	APAccountID int64  `json:"ap_account_id"`
	Active      bool   `json:"active"`
}

// PurchaseRequest asks for goods or services against a project cost center.
type PurchaseRequest struct {
	ID              int64               `json:"id"`
	CompanyID       int64               `json:"company_id"`
	ProjectID       int64               `json:"project_id"`
	CostCenterID    int64               `json:"cost_center_id"`
	Description     string              `json:"description"`
	RequestedBy     int64               `json:"requested_by"`
	RequestDate     *time.Time          `json:"request_date,omitempty"`
	EstimatedAmount decimal.NullDecimal `json:"estimated_amount"`
	Status          PRStatus            `json:"status"`
}

// PurchaseOrder is issued to a vendor for exactly one approved request.
type PurchaseOrder struct {
	ID                int64           `json:"id"`
	CompanyID         int64           `json:"company_id"`
	PurchaseRequestID int64           `json:"purchase_request_id"`
	VendorID          int64           `json:"vendor_id"`
	DocumentNumber    string          `json:"document_number,omitempty"`
	OrderDate         time.Time       `json:"order_date"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Status            POStatus        `json:"status"`
	IssuedAt          *time.Time      `json:"issued_at,omitempty"`
	ClosedAt          *time.Time      `json:"closed_at,omitempty"`
}

// GoodsReceipt records goods received against an order.
type GoodsReceipt struct {
	ID              int64           `json:"id"`
	CompanyID       int64           `json:"company_id"`
	PurchaseOrderID int64           `json:"purchase_order_id"`
	DocumentNumber  string          `json:"document_number,omitempty"`
	ReceiptDate     time.Time       `json:"receipt_date"`
	Amount          decimal.Decimal `json:"amount"`
	Status          PostingStatus   `json:"status"`
	PostedAt        *time.Time      `json:"posted_at,omitempty"`
}

// VendorInvoice bills exactly one goods receipt.
type VendorInvoice struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	VendorID       int64           `json:"vendor_id"`
	GoodsReceiptID int64           `json:"goods_receipt_id"`
	DocumentNumber string          `json:"document_number,omitempty"`
	InvoiceDate    time.Time       `json:"invoice_date"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PostingStatus   `json:"status"`
	PostedAt       *time.Time      `json:"posted_at,omitempty"`
}
