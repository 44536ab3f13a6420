package workforce_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/site-payroll/rules"
	"github.com/warp/site-payroll/store/sqlite"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	ctx          context.Context
	store        *sqlite.Store
	registry     *workforce.Registry
	locks        *workforce.MonthLockRegistry
	ledger       *workforce.Ledger
	payroll      *workforce.PayrollCalculator
	productivity *workforce.ProductivityCalculator
}

// newFixture returns an in-memory store seeded with the default trades,
// one client (CL-1) and two sites: SITE-A "Marina Tower" (code MT) and
// SITE-B "Airport Hangar" (code AH).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		ctx:          context.Background(),
		store:        store,
		registry:     workforce.NewRegistry(store),
		locks:        workforce.NewMonthLockRegistry(store),
		ledger:       workforce.NewLedger(store),
		payroll:      workforce.NewPayrollCalculator(store),
		productivity: workforce.NewProductivityCalculator(store),
	}

	_, err = rules.EnsureDefaults(f.ctx, f.registry, rules.Defaults())
	require.NoError(t, err)

	_, err = f.registry.CreateClient(f.ctx, workforce.Client{ExternalID: "CL-1", CompanyName: "Gulf Facilities"})
	require.NoError(t, err)
	_, err = f.registry.CreateSite(f.ctx, workforce.SiteInput{ExternalID: "SITE-A", ClientRef: "CL-1", Name: "Marina Tower", Code: "MT"})
	require.NoError(t, err)
	_, err = f.registry.CreateSite(f.ctx, workforce.SiteInput{ExternalID: "SITE-B", ClientRef: "CL-1", Name: "Airport Hangar", Code: "AH"})
	require.NoError(t, err)
	return f
}

func (f *fixture) addEmployee(t *testing.T, id, name, trade string) workforce.Employee {
	t.Helper()
	e, err := f.registry.CreateEmployee(f.ctx, workforce.Employee{ExternalID: id, FullName: name}, trade)
	require.NoError(t, err)
	return e
}

// deploy places emp at site from the given date, open-ended, with a daily
// rate override ("" for none).
func (f *fixture) deploy(t *testing.T, id, emp, site string, from time.Time, rate string) {
	t.Helper()
	in := workforce.DeploymentInput{ExternalID: id, EmployeeRef: emp, SiteRef: site, FromDate: from}
	if rate != "" {
		in.RateOverride = decimal.NewNullDecimal(decimal.RequireFromString(rate))
	}
	_, err := f.registry.CreateDeployment(f.ctx, in)
	require.NoError(t, err)
}

func (f *fixture) mark(t *testing.T, emp, site string, date time.Time, st workforce.Status, src workforce.Source) workforce.AttendanceEvent {
	t.Helper()
	ev, err := f.ledger.Upsert(f.ctx, workforce.UpsertRequest{
		EmployeeRef: emp, SiteRef: site, Date: date, Status: st, Source: src, CreatedBy: "tester",
	})
	require.NoError(t, err)
	return ev
}

// markRun marks consecutive days starting at first.
func (f *fixture) markRun(t *testing.T, emp, site string, first time.Time, n int, st workforce.Status) time.Time {
	t.Helper()
	for i := 0; i < n; i++ {
		f.mark(t, emp, site, first.AddDate(0, 0, i), st, workforce.SourceUI)
	}
	return first.AddDate(0, 0, n)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
