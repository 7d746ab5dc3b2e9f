// Package sequence issues document numbers per (company, fiscal year, document type).
package sequence

import (
	"cmp"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Document type codes used by the posting engine.
const (
	TypePurchaseOrder = "PO"
	TypeGoodsReceipt  = "GR"
	TypeVendorInvoice = "VI"
	TypeJournalEntry  = "JE"
)

// Scope identifies one independent counter.
type Scope struct {
	CompanyID    int64  `json:"company_id"`
	FiscalYearID int64  `json:"fiscal_year_id"`
	DocumentType string `json:"document_type"`
}

// NewScope builds a scope with a normalised document type code.
func NewScope(companyID, fiscalYearID int64, documentType string) Scope {
	return Scope{CompanyID: companyID, FiscalYearID: fiscalYearID, DocumentType: NormalizeCode(documentType)}
}

func (s Scope) String() string {
	return fmt.Sprintf("%d/%d/%s", s.CompanyID, s.FiscalYearID, s.DocumentType)
}

// Compare orders scopes by company, fiscal year, then document type code. Every
// caller locking more than one scope does so in this order.
func (s Scope) Compare(other Scope) int {
	if c := cmp.Compare(s.CompanyID, other.CompanyID); c != 0 {
		return c
	}
	if c := cmp.Compare(s.FiscalYearID, other.FiscalYearID); c != 0 {
		return c
	}
	return cmp.Compare(s.DocumentType, other.DocumentType)
}

// State is a persisted sequence row.
type State struct {
	ID         int64  `json:"id"`
	Scope      Scope  `json:"scope"`
	Prefix     string `json:"prefix"`
	Padding    int    `json:"padding"`
	LastNumber int64  `json:"last_number"`
	Active     bool   `json:"active"`
}

// Format renders n as prefix-000n.
func (s State) Format(n int64) string {
	return fmt.Sprintf("%s-%0*d", s.Prefix, s.Padding, n)
}

// DocumentType is an entry of the document type registry.
type DocumentType struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// NormalizeCode trims and upper-cases a document type code. A Caser keeps
// state, so one is built per call.
func NormalizeCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}
