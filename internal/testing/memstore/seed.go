package memstore

import (
	"time"

	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/masterdata"
	"github.com/odyssey-erp/ledgercore/internal/procurement"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
)

// Fixture names the rows created by Seed.
type Fixture struct {
	CompanyID    int64
	FiscalYearID int64
	ProjectID    int64
	CostCenterID int64
	// SummaryCostCenterID is a non-postable parent of CostCenterID.
	SummaryCostCenterID int64

	APAccountID      int64
	ExpenseAccountID int64
	CashAccountID    int64
	// HeaderAccountID is a non-postable parent of APAccountID.
	HeaderAccountID int64
	VendorID        int64

	OtherCompanyID        int64
	OtherFiscalYearID     int64
	OtherCashAccountID    int64
	OtherAPAccountID      int64
	OtherExpenseAccountID int64
}

// SequencePadding is the padding of every seeded sequence.
const SequencePadding = 6

// Seed creates two companies, each with an active fiscal year and PO, GR,
// VI and JE sequences prefixed "<company code>-<type>". The first company
// also gets a project, cost centers, a small chart of accounts and a vendor.
func Seed(d *DB) Fixture {
	d.mu.Lock()
	defer d.mu.Unlock()

	var f Fixture
	f.CompanyID, f.FiscalYearID = d.seedCompany("BURJ", "Burj Construction", 2025)
	f.OtherCompanyID, f.OtherFiscalYearID = d.seedCompany("TOWR", "Tower Holdings", 2025)

	f.ProjectID = d.id()
	d.projects[f.ProjectID] = masterdata.Project{
		ID:           f.ProjectID,
		CompanyID:    f.CompanyID,
		FiscalYearID: f.FiscalYearID,
		Code:         "PRJ-001",
		Name:         "Tower A",
		Status:       masterdata.ProjectActive,
		StartDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:       true,
	}
	f.SummaryCostCenterID = d.id()
	d.costCenters[f.SummaryCostCenterID] = masterdata.CostCenter{
		ID: f.SummaryCostCenterID, ProjectID: f.ProjectID, Code: "CC-100", Name: "Structure", Active: true,
	}
	f.CostCenterID = d.id()
	d.costCenters[f.CostCenterID] = masterdata.CostCenter{
		ID: f.CostCenterID, ProjectID: f.ProjectID, ParentID: &f.SummaryCostCenterID,
		Code: "CC-110", Name: "Concrete", Postable: true, Active: true,
	}

	f.HeaderAccountID = d.seedAccount(ledger.Account{CompanyID: f.CompanyID, TypeCode: "LIABILITY", Code: "2000", Name: "Current Liabilities", Active: true})
	f.APAccountID = d.seedAccount(ledger.Account{
		CompanyID: f.CompanyID, TypeCode: "LIABILITY", Code: "2100", Name: "Accounts Payable",
		ParentID: &f.HeaderAccountID, Active: true, Postable: true, Control: true,
	})
	f.CashAccountID = d.seedAccount(ledger.Account{CompanyID: f.CompanyID, TypeCode: "ASSET", Code: "1100", Name: "Cash", Active: true, Postable: true})
	f.ExpenseAccountID = d.seedAccount(ledger.Account{CompanyID: f.CompanyID, TypeCode: "EXPENSE", Code: "5100", Name: "Materials", Active: true, Postable: true})

	f.OtherCashAccountID = d.seedAccount(ledger.Account{CompanyID: f.OtherCompanyID, TypeCode: "ASSET", Code: "1100", Name: "Cash", Active: true, Postable: true})
	f.OtherAPAccountID = d.seedAccount(ledger.Account{
		CompanyID: f.OtherCompanyID, TypeCode: "LIABILITY", Code: "2100", Name: "Accounts Payable",
		Active: true, Postable: true, Control: true,
	})
	f.OtherExpenseAccountID = d.seedAccount(ledger.Account{CompanyID: f.OtherCompanyID, TypeCode: "EXPENSE", Code: "5100", Name: "Materials", Active: true, Postable: true})

	f.VendorID = d.id()
	d.vendors[f.VendorID] = procurement.Vendor{
		ID: f.VendorID, CompanyID: f.CompanyID, Code: "V-001", Name: "Gulf Cement", APAccountID: f.APAccountID, Active: true,
	}
	return f
}

func (d *DB) seedCompany(code, name string, year int) (companyID, fiscalYearID int64) {
	companyID = d.id()
	d.companies[companyID] = masterdata.Company{ID: companyID, Code: code, Name: name, Active: true}
	fiscalYearID = d.id()
	d.fiscalYears[fiscalYearID] = masterdata.FiscalYear{
		ID:        fiscalYearID,
		CompanyID: companyID,
		Year:      year,
		StartDate: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
		Active:    true,
	}
	for _, docType := range []string{
		sequence.TypePurchaseOrder,
		sequence.TypeGoodsReceipt,
		sequence.TypeVendorInvoice,
		sequence.TypeJournalEntry,
	} {
		id := d.id()
		d.sequences[id] = sequence.State{
			ID:      id,
			Scope:   sequence.NewScope(companyID, fiscalYearID, docType),
			Prefix:  code + "-" + docType,
			Padding: SequencePadding,
			Active:  true,
		}
	}
	return companyID, fiscalYearID
}

// AddFiscalYear stores an inactive fiscal year for companyID without any
// sequences and returns its id.
func (d *DB) AddFiscalYear(companyID int64, year int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.id()
	d.fiscalYears[id] = masterdata.FiscalYear{
		ID:        id,
		CompanyID: companyID,
		Year:      year,
		StartDate: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	return id
}

func (d *DB) seedAccount(a ledger.Account) int64 {
	a.ID = d.id()
	d.accounts[a.ID] = a
	return a.ID
}
