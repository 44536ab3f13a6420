package workforce_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestRegistry_CreateEmployee(t *testing.T) {
	f := newFixture(t)

	e, err := f.registry.CreateEmployee(f.ctx, workforce.Employee{
		ExternalID:  " EMP-001 ",
		FullName:    "Ravi Kumar",
		BasicSalary: decimal.NewNullDecimal(dec("1500")),
	}, "cleaner")
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "EMP-001", e.ExternalID)
	assert.Equal(t, workforce.EmployeeActive, e.Status)
	assert.Equal(t, "CLEANER", e.TradeCategoryCode)

	got, err := f.registry.GetEmployee(f.ctx, "EMP-001")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "CLEANER", got.TradeCategoryCode)
	require.True(t, got.BasicSalary.Valid)
	assertDecimal(t, "1500", got.BasicSalary.Decimal)
	assert.False(t, got.FoodAllowance.Valid)
	assert.Empty(t, got.OtherDocuments)
}

func TestRegistry_CreateEmployee_Validation(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "EMP-001", "Ravi Kumar", "")

	tests := []struct {
		name  string
		e     workforce.Employee
		trade string
		check func(error) bool
	}{
		{"missing id", workforce.Employee{FullName: "X"}, "", workforce.IsBadRequest},
		{"missing name", workforce.Employee{ExternalID: "EMP-009"}, "", workforce.IsBadRequest},
		{"negative salary", workforce.Employee{ExternalID: "EMP-009", FullName: "X", FoodAllowance: decimal.NewNullDecimal(dec("-1"))}, "", workforce.IsBadRequest},
		{"bad status", workforce.Employee{ExternalID: "EMP-009", FullName: "X", Status: "retired"}, "", workforce.IsBadRequest},
		{"duplicate", workforce.Employee{ExternalID: "EMP-001", FullName: "X"}, "", workforce.IsConflict},
		{"unknown trade", workforce.Employee{ExternalID: "EMP-009", FullName: "X"}, "ASTRONAUT", workforce.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registry.CreateEmployee(f.ctx, tt.e, tt.trade)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestRegistry_UpdateEmployee_KeepsIdentityAndDocuments(t *testing.T) {
	f := newFixture(t)
	e := f.addEmployee(t, "EMP-001", "Ravi Kumar", "CLEANER")
	e.PhotoURL = "/uploads/employees/EMP-001/photo.jpg"
	_, err := f.registry.SaveEmployeeDocuments(f.ctx, e)
	require.NoError(t, err)

	updated, err := f.registry.UpdateEmployee(f.ctx, "EMP-001", workforce.Employee{
		ExternalID: "EMP-999", FullName: "Ravi K. Kumar", Status: workforce.EmployeeExited,
	}, "MEP")
	require.NoError(t, err)
	assert.Equal(t, e.ID, updated.ID)
	assert.Equal(t, "EMP-001", updated.ExternalID)
	assert.Equal(t, "/uploads/employees/EMP-001/photo.jpg", updated.PhotoURL)
	assert.Equal(t, "MEP", updated.TradeCategoryCode)

	got, err := f.registry.GetEmployee(f.ctx, "EMP-001")
	require.NoError(t, err)
	assert.Equal(t, "Ravi K. Kumar", got.FullName)
	assert.Equal(t, workforce.EmployeeExited, got.Status)
	assert.Equal(t, "/uploads/employees/EMP-001/photo.jpg", got.PhotoURL)

	_, err = f.registry.UpdateEmployee(f.ctx, "EMP-404", workforce.Employee{FullName: "X"}, "")
	assert.True(t, workforce.IsNotFound(err))
}

func TestRegistry_ListEmployees_ByName(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "EMP-002", "Zaid Hamdan", "")
	f.addEmployee(t, "EMP-001", "Ahmed Ali", "")

	all, err := f.registry.ListEmployees(f.ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ahmed Ali", all[0].FullName)
	assert.Equal(t, "Zaid Hamdan", all[1].FullName)
}

func TestRegistry_DeleteEmployee_WithAttendance_InUse(t *testing.T) {
	// GIVEN: An employee with attendance
	// WHEN: Deleting the employee
	// THEN: Conflict IN_USE; an employee without history deletes cleanly

	f := newFixture(t)
	f.addEmployee(t, "EMP-001", "Ravi Kumar", "CLEANER")
	f.addEmployee(t, "EMP-002", "Sunil Das", "CLEANER")
	f.mark(t, "EMP-001", "SITE-A", day(2024, 5, 1), workforce.StatusPresent, workforce.SourceUI)

	err := f.registry.DeleteEmployee(f.ctx, "EMP-001")
	require.Error(t, err)
	assert.True(t, workforce.IsConflict(err))
	assert.Equal(t, workforce.ReasonInUse, workforce.ReasonOf(err))

	require.NoError(t, f.registry.DeleteEmployee(f.ctx, "EMP-002"))
	_, err = f.registry.GetEmployee(f.ctx, "EMP-002")
	assert.True(t, workforce.IsNotFound(err))
}

// =============================================================================
// CLIENTS AND SITES
// =============================================================================

func TestRegistry_ClientsAndSites(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.CreateClient(f.ctx, workforce.Client{ExternalID: "CL-2", CompanyName: "Desert Builders"})
	require.NoError(t, err)
	_, err = f.registry.CreateSite(f.ctx, workforce.SiteInput{ExternalID: "SITE-C", ClientRef: "CL-2", Name: "Camp C"})
	require.NoError(t, err)

	all, err := f.registry.ListSites(f.ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byClient, err := f.registry.ListSites(f.ctx, "CL-2")
	require.NoError(t, err)
	require.Len(t, byClient, 1)
	assert.Equal(t, "SITE-C", byClient[0].ExternalID)
	assert.Equal(t, "CL-2", byClient[0].ClientExternalID)

	_, err = f.registry.CreateSite(f.ctx, workforce.SiteInput{ExternalID: "SITE-C", ClientRef: "CL-2", Name: "Dup"})
	assert.True(t, workforce.IsConflict(err))
	_, err = f.registry.CreateSite(f.ctx, workforce.SiteInput{ExternalID: "SITE-D", ClientRef: "CL-404", Name: "Orphan"})
	assert.True(t, workforce.IsNotFound(err))

	// Move SITE-C to CL-1 and rename it.
	moved, err := f.registry.UpdateSite(f.ctx, "SITE-C", workforce.SiteInput{ClientRef: "CL-1", Name: "Camp C North", Code: "CCN"})
	require.NoError(t, err)
	assert.Equal(t, "CL-1", moved.ClientExternalID)

	got, err := f.registry.GetSite(f.ctx, "SITE-C")
	require.NoError(t, err)
	assert.Equal(t, "Camp C North", got.Name)
	assert.Equal(t, "CCN", got.Code)

	// CL-2 now has no sites and can go; CL-1 cannot.
	require.NoError(t, f.registry.DeleteClient(f.ctx, "CL-2"))
	err = f.registry.DeleteClient(f.ctx, "CL-1")
	assert.Equal(t, workforce.ReasonInUse, workforce.ReasonOf(err))
}

func TestRegistry_Client_ContractRange(t *testing.T) {
	f := newFixture(t)
	start, end := day(2024, 6, 1), day(2024, 1, 1)

	_, err := f.registry.CreateClient(f.ctx, workforce.Client{ExternalID: "CL-9", CompanyName: "X", ContractStart: &start, ContractEnd: &end})
	assert.True(t, workforce.IsBadRequest(err))

	updated, err := f.registry.UpdateClient(f.ctx, "CL-1", workforce.Client{CompanyName: "Gulf Facilities LLC", ContractStart: &end, ContractEnd: &start})
	require.NoError(t, err)
	assert.Equal(t, "CL-1", updated.ExternalID)

	got, err := f.registry.GetClient(f.ctx, "CL-1")
	require.NoError(t, err)
	assert.Equal(t, "Gulf Facilities LLC", got.CompanyName)
	require.NotNil(t, got.ContractEnd)
	assert.Equal(t, start, *got.ContractEnd)
}

// =============================================================================
// DEPLOYMENTS
// =============================================================================

func TestRegistry_Deployments(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "EMP-001", "Ravi Kumar", "CLEANER")
	f.addEmployee(t, "EMP-002", "Sunil Das", "CLEANER")
	f.deploy(t, "DEP-1", "EMP-001", "SITE-A", day(2024, 1, 1), "100")
	f.deploy(t, "DEP-2", "EMP-001", "SITE-B", day(2024, 3, 1), "")
	f.deploy(t, "DEP-3", "EMP-002", "SITE-B", day(2024, 2, 1), "90")

	byEmp, err := f.registry.ListDeployments(f.ctx, workforce.DeploymentFilter{EmployeeRef: "EMP-001"})
	require.NoError(t, err)
	require.Len(t, byEmp, 2)
	assert.Equal(t, "DEP-2", byEmp[0].ExternalID, "newest first")

	bySite, err := f.registry.ListDeployments(f.ctx, workforce.DeploymentFilter{SiteRef: "SITE-B"})
	require.NoError(t, err)
	assert.Len(t, bySite, 2)

	all, err := f.registry.ListDeployments(f.ctx, workforce.DeploymentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := f.registry.GetDeployment(f.ctx, "DEP-1")
	require.NoError(t, err)
	assert.Equal(t, "EMP-001", got.EmployeeExternalID)
	assert.Equal(t, "SITE-A", got.SiteExternalID)
	assert.Nil(t, got.ToDate)
	require.True(t, got.RateOverride.Valid)
	assertDecimal(t, "100", got.RateOverride.Decimal)

	// Close DEP-1 at the end of April.
	end := day(2024, 4, 30)
	updated, err := f.registry.UpdateDeployment(f.ctx, "DEP-1", workforce.DeploymentInput{
		EmployeeRef: "EMP-001", SiteRef: "SITE-A", FromDate: day(2024, 1, 1), ToDate: &end,
		RateOverride: decimal.NewNullDecimal(dec("105")),
	})
	require.NoError(t, err)
	assert.Equal(t, "DEP-1", updated.ExternalID)
	assert.Equal(t, got.ID, updated.ID)

	require.NoError(t, f.registry.DeleteDeployment(f.ctx, "DEP-3"))
	_, err = f.registry.GetDeployment(f.ctx, "DEP-3")
	assert.True(t, workforce.IsNotFound(err))
}

func TestRegistry_Deployment_Validation(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "EMP-001", "Ravi Kumar", "CLEANER")
	before := day(2023, 12, 31)

	tests := []struct {
		name string
		in   workforce.DeploymentInput
	}{
		{"missing id", workforce.DeploymentInput{EmployeeRef: "EMP-001", SiteRef: "SITE-A", FromDate: day(2024, 1, 1)}},
		{"missing from", workforce.DeploymentInput{ExternalID: "D", EmployeeRef: "EMP-001", SiteRef: "SITE-A"}},
		{"to before from", workforce.DeploymentInput{ExternalID: "D", EmployeeRef: "EMP-001", SiteRef: "SITE-A", FromDate: day(2024, 1, 1), ToDate: &before}},
		{"negative rate", workforce.DeploymentInput{ExternalID: "D", EmployeeRef: "EMP-001", SiteRef: "SITE-A", FromDate: day(2024, 1, 1), RateOverride: decimal.NewNullDecimal(dec("-5"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registry.CreateDeployment(f.ctx, tt.in)
			assert.True(t, workforce.IsBadRequest(err), "unexpected error: %v", err)
		})
	}

	_, err := f.registry.CreateDeployment(f.ctx, workforce.DeploymentInput{ExternalID: "D", EmployeeRef: "EMP-404", SiteRef: "SITE-A", FromDate: day(2024, 1, 1)})
	assert.True(t, workforce.IsNotFound(err))
}

// =============================================================================
// TRADE CATEGORIES
// =============================================================================

func TestRegistry_TradeCategories(t *testing.T) {
	f := newFixture(t)

	all, err := f.registry.ListTradeCategories(f.ctx)
	require.NoError(t, err)
	codes := make([]string, len(all))
	for i, tc := range all {
		codes[i] = tc.Code
	}
	assert.Equal(t, []string{"CIVIL", "CLEANER", "MASON", "MEP"}, codes)

	cleaner, err := f.registry.GetTradeCategory(f.ctx, "cleaner")
	require.NoError(t, err)
	require.NotNil(t, cleaner.Payroll)
	assert.True(t, cleaner.Payroll.PaidStatuses.Contains(workforce.StatusOvertime))
	mult, ok := cleaner.Payroll.Overtime.(workforce.MultiplierOvertime)
	require.True(t, ok)
	assertDecimal(t, "1.5", mult.Factor)

	byID, err := f.registry.GetTradeCategory(f.ctx, cleaner.ID)
	require.NoError(t, err)
	assert.Equal(t, "CLEANER", byID.Code)

	_, err = f.registry.CreateTradeCategory(f.ctx, workforce.TradeCategory{Code: "Cleaner", Name: "Dup"})
	assert.True(t, workforce.IsConflict(err))

	_, err = f.registry.CreateTradeCategory(f.ctx, workforce.TradeCategory{
		Code: "BAD", Name: "Bad",
		Payroll: &workforce.PayrollRules{PaidStatuses: workforce.StatusSet{"ZZ"}},
	})
	assert.True(t, workforce.IsBadRequest(err))

	updated, err := f.registry.UpdateTradeCategory(f.ctx, "CLEANER", workforce.TradeCategory{
		RuleVersion: "2.0",
		Payroll: &workforce.PayrollRules{
			PaidStatuses: workforce.StatusSet{workforce.StatusPresent},
			Overtime:     workforce.FixedOvertime{Rate: dec("25")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "CLEANER", updated.Code)
	assert.Equal(t, "Cleaner", updated.Name)
	assert.Nil(t, updated.Productivity)

	reloaded, err := f.registry.GetTradeCategory(f.ctx, "CLEANER")
	require.NoError(t, err)
	assert.Equal(t, "2.0", reloaded.RuleVersion)
	fixed, ok := reloaded.Payroll.Overtime.(workforce.FixedOvertime)
	require.True(t, ok)
	assertDecimal(t, "25", fixed.Rate)
	assert.Nil(t, reloaded.Productivity)
}

func TestRegistry_DeleteTradeCategory_InUse(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "EMP-001", "Ravi Kumar", "MASON")

	err := f.registry.DeleteTradeCategory(f.ctx, "MASON")
	assert.Equal(t, workforce.ReasonInUse, workforce.ReasonOf(err))

	require.NoError(t, f.registry.DeleteTradeCategory(f.ctx, "CIVIL"))
	_, err = f.registry.GetTradeCategory(f.ctx, "CIVIL")
	assert.True(t, workforce.IsNotFound(err))
}

func TestPeriod(t *testing.T) {
	_, err := workforce.NewPeriod(2024, 13)
	assert.True(t, workforce.IsBadRequest(err))

	feb := workforce.MustPeriod(2024, 2)
	assert.Equal(t, 29, feb.Days())
	assert.Equal(t, day(2024, time.February, 29), feb.End())
	_, ok := feb.Date(30)
	assert.False(t, ok)
	assert.Equal(t, "2024-02", feb.String())
}
