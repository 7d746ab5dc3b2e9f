package masterdata_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/masterdata"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/testing/memstore"
)

func newService(t *testing.T) (*masterdata.Service, *memstore.DB, memstore.Fixture) {
	t.Helper()
	db := memstore.New()
	fx := memstore.Seed(db)
	return masterdata.NewService(db.MasterData(), db), db, fx
}

func TestCompanyAndFiscalYears(t *testing.T) {
	svc, db, fx := newService(t)
	ctx := context.Background()

	company, err := svc.CreateCompany(ctx, " MRNA ", "Marina Contracting")
	require.NoError(t, err)
	require.Equal(t, "MRNA", company.Code)
	_, err = svc.CreateCompany(ctx, "MRNA", "Again")
	require.ErrorIs(t, err, shared.ErrValidation)

	fy, err := svc.CreateFiscalYear(ctx, masterdata.CreateFiscalYearInput{
		CompanyID: fx.CompanyID,
		Year:      2026,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.False(t, fy.Active)

	_, err = svc.CreateFiscalYear(ctx, masterdata.CreateFiscalYearInput{
		CompanyID: fx.CompanyID,
		Year:      2027,
		StartDate: time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ActivateFiscalYear(ctx, fy.ID)
	require.NoError(t, err)

	years := db.FiscalYears(fx.CompanyID)
	require.Len(t, years, 2)
	require.False(t, years[0].Active)
	require.True(t, years[1].Active)

	// The other company's active year is untouched.
	require.True(t, db.FiscalYears(fx.OtherCompanyID)[0].Active)
}

func TestCreateProjectRejectsForeignFiscalYear(t *testing.T) {
	svc, _, fx := newService(t)
	_, err := svc.CreateProject(context.Background(), masterdata.CreateProjectInput{
		CompanyID:    fx.CompanyID,
		FiscalYearID: fx.OtherFiscalYearID,
		Code:         "PRJ-002",
		Name:         "Tower B",
		StartDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, shared.ErrCrossCompanyMismatch)
}

func TestProjectStatus(t *testing.T) {
	svc, _, fx := newService(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, masterdata.CreateProjectInput{
		CompanyID:    fx.CompanyID,
		FiscalYearID: fx.FiscalYearID,
		Code:         "PRJ-002",
		Name:         "Tower B",
		StartDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, masterdata.ProjectPlanned, p.Status)

	p, err = svc.SetProjectStatus(ctx, p.ID, masterdata.ProjectOnHold)
	require.NoError(t, err)
	require.Equal(t, masterdata.ProjectOnHold, p.Status)

	_, err = svc.SetProjectStatus(ctx, p.ID, masterdata.ProjectCancelled)
	require.NoError(t, err)
	_, err = svc.SetProjectStatus(ctx, p.ID, masterdata.ProjectActive)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	// Re-applying the current status is a no-op.
	_, err = svc.SetProjectStatus(ctx, p.ID, masterdata.ProjectCancelled)
	require.NoError(t, err)

	status, err := masterdata.ParseProjectStatus(" On_Hold ")
	require.NoError(t, err)
	require.Equal(t, masterdata.ProjectOnHold, status)
	_, err = masterdata.ParseProjectStatus("archived")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCostCenterTree(t *testing.T) {
	svc, _, fx := newService(t)
	ctx := context.Background()

	leaf, err := svc.CreateCostCenter(ctx, masterdata.CreateCostCenterInput{
		ProjectID: fx.ProjectID, ParentID: &fx.CostCenterID, Code: "CC-111", Name: "Columns", Postable: true,
	})
	require.NoError(t, err)

	// CC-100 -> CC-110 -> CC-111
	require.ErrorIs(t, svc.ReparentCostCenter(ctx, fx.SummaryCostCenterID, &leaf.ID), shared.ErrCycle)
	require.ErrorIs(t, svc.ReparentCostCenter(ctx, leaf.ID, &leaf.ID), shared.ErrCycle)

	require.NoError(t, svc.ReparentCostCenter(ctx, leaf.ID, &fx.SummaryCostCenterID))
	centers, err := svc.CostCenters(ctx, fx.ProjectID)
	require.NoError(t, err)
	require.Len(t, centers, 3)
	require.Equal(t, fx.SummaryCostCenterID, *centers[2].ParentID)

	_, err = svc.CreateCostCenter(ctx, masterdata.CreateCostCenterInput{
		ProjectID: fx.ProjectID, Code: "CC-111", Name: "Duplicate",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCostCenterParentMustShareProject(t *testing.T) {
	svc, _, fx := newService(t)
	ctx := context.Background()

	other, err := svc.CreateProject(ctx, masterdata.CreateProjectInput{
		CompanyID: fx.CompanyID, FiscalYearID: fx.FiscalYearID, Code: "PRJ-009", Name: "Villa", StartDate: time.Now(),
	})
	require.NoError(t, err)
	root, err := svc.CreateCostCenter(ctx, masterdata.CreateCostCenterInput{ProjectID: other.ID, Code: "CC-900", Name: "Villa works"})
	require.NoError(t, err)

	_, err = svc.CreateCostCenter(ctx, masterdata.CreateCostCenterInput{
		ProjectID: fx.ProjectID, ParentID: &root.ID, Code: "CC-120", Name: "Stray",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, svc.ReparentCostCenter(ctx, fx.CostCenterID, &root.ID), shared.ErrValidation)
}
