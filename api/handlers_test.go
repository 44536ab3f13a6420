/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Response envelope and error status mapping
- Employee, site and deployment endpoints
- Attendance source conflicts
- Payroll calculation over HTTP
- Month lock and unlock
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/site-payroll/documents"
	"github.com/warp/site-payroll/store/sqlite"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	h      *Handler
	router http.Handler
	docs   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	docs := t.TempDir()
	h.Documents = documents.NewService(h.Registry, docs, "/uploads", 1024)

	return &testServer{
		h:      h,
		router: NewRouter(h, RouterOptions{DemoScenarios: true}),
		docs:   docs,
	}
}

// testEnvelope keeps data raw so each test decodes it into its own DTO.
type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env testEnvelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

// mustDo asserts the status and decodes data into out (if non-nil).
func (s *testServer) mustDo(t *testing.T, method, path string, body any, status int, out any) {
	t.Helper()
	rec, env := s.do(t, method, path, body)
	require.Equal(t, status, rec.Code, rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

// seedSite creates the trade table, one client and site SITE-A, and
// EMP-001 as a CLEANER deployed there at 100/day from April 2024.
func (s *testServer) seedSite(t *testing.T) {
	t.Helper()
	s.mustDo(t, "POST", "/api/trade-categories/initialize", nil, http.StatusOK, nil)
	s.mustDo(t, "POST", "/api/clients", ClientRequest{ClientID: "CL-1", CompanyName: "Gulf Facilities"}, http.StatusCreated, nil)
	s.mustDo(t, "POST", "/api/sites", SiteRequest{SiteID: "SITE-A", ClientID: "CL-1", Name: "Marina Tower", SiteCode: "MT"}, http.StatusCreated, nil)
	s.mustDo(t, "POST", "/api/employees", EmployeeRequest{EmployeeID: "EMP-001", FullName: "Ravi Kumar", TradeCategory: "CLEANER"}, http.StatusCreated, nil)

	rate := decimal.NewFromInt(100)
	s.mustDo(t, "POST", "/api/deployments", DeploymentRequest{
		DeploymentID: "DEP-1", EmployeeID: "EMP-001", SiteID: "SITE-A", FromDate: "2024-04-01", RateOverride: &rate,
	}, http.StatusCreated, nil)
}

// markMay writes 20 P, 2 OT and 1 A for EMP-001 at SITE-A from May 1st.
func (s *testServer) markMay(t *testing.T) {
	t.Helper()
	var events []BulkAttendanceEvent
	for d := 1; d <= 23; d++ {
		status := "P"
		switch {
		case d == 21 || d == 22:
			status = "OT"
		case d == 23:
			status = "A"
		}
		events = append(events, BulkAttendanceEvent{
			EmployeeID: "EMP-001", SiteID: "SITE-A", Date: fmt.Sprintf("2024-05-%02d", d), Status: status,
		})
	}
	var res workforce.BulkResult
	s.mustDo(t, "POST", "/api/attendance/bulk", BulkAttendanceRequest{Events: events, Source: "ui", CreatedBy: "hr"}, http.StatusOK, &res)
	require.Equal(t, 23, res.SuccessCount)
	require.Empty(t, res.Errors)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// =============================================================================
// ENVELOPE AND ERRORS
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	var data map[string]string
	s.mustDo(t, "GET", "/api/health", nil, http.StatusOK, &data)
	assert.Equal(t, "ok", data["status"])
}

func TestErrors_MapToStatusAndReason(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, "GET", "/api/employees/EMP-404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "NOT_FOUND", env.Reason)
	assert.Contains(t, env.Message, "EMP-404")

	rec, env = s.do(t, "POST", "/api/employees", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", env.Reason)
	assert.Contains(t, env.Message, "Invalid request body")

	rec, env = s.do(t, "GET", "/api/payroll/month?year=2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", env.Reason)

	rec, env = s.do(t, "GET", "/api/month-locks/2024/13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestWriteDomainError_UnclassifiedIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/anything", nil)

	writeDomainError(rec, req, fmt.Errorf("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
	assert.Contains(t, rec.Body.String(), "Internal server error")
}

func TestWriteDomainError_KeepsWrappedMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/anything", nil)

	err := fmt.Errorf("trade MEP: %w", workforce.BadRequestf(workforce.ReasonInvalidInput, "otRate must not be negative"))
	writeDomainError(rec, req, err)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "trade MEP: otRate must not be negative", env.Message)
	assert.Equal(t, "INVALID_INPUT", env.Reason)
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestEmployees_CreateUpdateList(t *testing.T) {
	s := newTestServer(t)
	s.seedSite(t)

	var emp EmployeeDTO
	s.mustDo(t, "GET", "/api/employees/EMP-001", nil, http.StatusOK, &emp)
	assert.Equal(t, "Ravi Kumar", emp.FullName)
	assert.Equal(t, "CLEANER", emp.TradeCategory)
	assert.Equal(t, "active", emp.Status)
	assert.Empty(t, emp.OtherDocuments)

	s.mustDo(t, "PUT", "/api/employees/EMP-001", EmployeeRequest{
		FullName: "Ravi Kumar", TradeCategory: "MEP", VisaExpiry: strPtr("2026-01-31"),
	}, http.StatusOK, &emp)
	assert.Equal(t, "MEP", emp.TradeCategory)
	require.NotNil(t, emp.VisaExpiry)
	assert.Equal(t, "2026-01-31", *emp.VisaExpiry)

	var list []EmployeeDTO
	s.mustDo(t, "GET", "/api/employees", nil, http.StatusOK, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "EMP-001", list[0].EmployeeID)

	rec, env := s.do(t, "POST", "/api/employees", EmployeeRequest{EmployeeID: "EMP-002", FullName: "X", DateOfBirth: strPtr("31/12/1990")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "dateOfBirth")
}

func TestEmployees_DeleteWithAttendance_Conflict(t *testing.T) {
	s := newTestServer(t)
	s.seedSite(t)
	s.mustDo(t, "POST", "/api/attendance", AttendanceRequest{
		EmployeeID: "EMP-001", SiteID: "SITE-A", Date: "2024-05-06", Status: "P", Source: "UI",
	}, http.StatusOK, nil)

	rec, env := s.do(t, "DELETE", "/api/employees/EMP-001", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IN_USE", env.Reason)
}

func TestSitesAndDeployments_Filters(t *testing.T) {
	s := newTestServer(t)
	s.seedSite(t)
	s.mustDo(t, "POST", "/api/clients", ClientRequest{ClientID: "CL-2", CompanyName: "Harbour Works"}, http.StatusCreated, nil)
	s.mustDo(t, "POST", "/api/sites", SiteRequest{SiteID: "SITE-B", ClientID: "CL-2", Name: "Dry Dock"}, http.StatusCreated, nil)

	var sites []SiteDTO
	s.mustDo(t, "GET", "/api/sites?clientId=CL-2", nil, http.StatusOK, &sites)
	require.Len(t, sites, 1)
	assert.Equal(t, "SITE-B", sites[0].SiteID)

	var deps []DeploymentDTO
	s.mustDo(t, "GET", "/api/deployments?employeeId=EMP-001", nil, http.StatusOK, &deps)
	require.Len(t, deps, 1)
	assert.Equal(t, "SITE-A", deps[0].SiteID)
	require.NotNil(t, deps[0].RateOverride)
	assertDecimal(t, "100", *deps[0].RateOverride)

	s.mustDo(t, "GET", "/api/deployments?siteId=SITE-B", nil, http.StatusOK, &deps)
	assert.Empty(t, deps)
}

func TestTradeCategories_InitializeIsIdempotent(t *testing.T) {
	s := newTestServer(t)

	var first, second struct {
		Created []string `json:"created"`
	}
	s.mustDo(t, "POST", "/api/trade-categories/initialize", nil, http.StatusOK, &first)
	s.mustDo(t, "POST", "/api/trade-categories/initialize", nil, http.StatusOK, &second)
	assert.Contains(t, first.Created, "CLEANER")
	assert.Empty(t, second.Created)

	var tc TradeCategoryDTO
	s.mustDo(t, "GET", "/api/trade-categories/CLEANER", nil, http.StatusOK, &tc)
	assert.Equal(t, "CLEANER", tc.Code)
	assert.NotEmpty(t, tc.ID)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestAttendance_SourceConflict(t *testing.T) {
	// GIVEN: EMP-001 marked P on May 6 from the UI
	// WHEN: An EXCEL write arrives for the same (employee, site, date)
	// THEN: 409 SOURCE_MISMATCH and the UI row is untouched

	s := newTestServer(t)
	s.seedSite(t)

	var first AttendanceDTO
	s.mustDo(t, "POST", "/api/attendance", AttendanceRequest{
		EmployeeID: "EMP-001", SiteID: "SITE-A", Date: "2024-05-06", Status: "P", Source: "ui", CreatedBy: "hr",
	}, http.StatusOK, &first)
	assert.Equal(t, "UI", first.Source)
	assert.Equal(t, "EMP-001", first.EmployeeID)
	assert.Equal(t, "2024-05-06", first.Date)

	rec, env := s.do(t, "POST", "/api/attendance", AttendanceRequest{
		EmployeeID: "EMP-001", SiteID: "SITE-A", Date: "2024-05-06", Status: "A", Source: "EXCEL",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SOURCE_MISMATCH", env.Reason)
	assert.Contains(t, env.Message, "Attendance already exists from UI")

	var month []AttendanceDTO
	s.mustDo(t, "GET", "/api/attendance/employee/EMP-001?year=2024&month=5", nil, http.StatusOK, &month)
	require.Len(t, month, 1)
	assert.Equal(t, "P", month[0].Status)
	assert.Equal(t, first.ID, month[0].ID)
}

func TestAttendance_AliasesAndValidation(t *testing.T) {
	s := newTestServer(t)
	s.seedSite(t)

	var ev AttendanceDTO
	s.mustDo(t, "POST", "/api/attendance", AttendanceRequest{
		EmployeeID: "EMP-001", SiteID: "SITE-A", Date: "2024-05-07", Status: "o/t", Source: "UI",
	}, http.StatusOK, &ev)
	assert.Equal(t, "OT", ev.Status)

	rec, env := s.do(t, "POST", "/api/attendance", AttendanceRequest{
		EmployeeID: "EMP-001", SiteID: "SITE-A", Date: "2024-05-08", Status: "ZZ", Source: "UI",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "Invalid attendance status")

	rec, _ = s.do(t, "POST", "/api/attendance", AttendanceRequest{
		EmployeeID: "EMP-001", SiteID: "SITE-A", Date: "08-05-2024", Status: "P", Source: "UI",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(t, "POST", "/api/attendance/bulk", BulkAttendanceRequest{
		Events: []BulkAttendanceEvent{{EmployeeID: "EMP-001", SiteID: "SITE-A", Date: "nope", Status: "P"}},
		Source: "UI",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "events[0].date")
}

func TestAttendance_BulkRowErrorsAndSiteRange(t *testing.T) {
	s := newTestServer(t)
	s.seedSite(t)

	var res workforce.BulkResult
	s.mustDo(t, "POST", "/api/attendance/bulk", BulkAttendanceRequest{
		Events: []BulkAttendanceEvent{
			{EmployeeID: "EMP-001", SiteID: "SITE-A", Date: "2024-05-01", Status: "P"},
			{EmployeeID: "EMP-404", SiteID: "SITE-A", Date: "2024-05-01", Status: "P"},
			{EmployeeID: "EMP-001", SiteID: "SITE-A", Date: "2024-05-02", Status: "A"},
		},
		Source: "UI",
	}, http.StatusOK, &res)
	assert.Equal(t, 2, res.SuccessCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)

	var rows []AttendanceDTO
	s.mustDo(t, "GET", "/api/attendance/site/SITE-A?startDate=2024-05-02&endDate=2024-05-31", nil, http.StatusOK, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].Status)

	s.mustDo(t, "DELETE", "/api/attendance/"+rows[0].ID, nil, http.StatusOK, nil)
	s.mustDo(t, "GET", "/api/attendance/site/SITE-A?startDate=2024-05-02&endDate=2024-05-31", nil, http.StatusOK, &rows)
	assert.Empty(t, rows)
}

// =============================================================================
// PAYROLL
// =============================================================================

func TestPayroll_CleanerMonth(t *testing.T) {
	// GIVEN: A CLEANER at 100/day with 20 P, 2 OT and 1 A in May 2024
	// WHEN: Calculating May payroll over HTTP
	// THEN: 22 paid days, 2200 salary, 300 OT, 2500 net, stored for lookup

	s := newTestServer(t)
	s.seedSite(t)
	s.markMay(t)

	var pay PayrollDTO
	s.mustDo(t, "POST", "/api/payroll/calculate", CalculatePayrollRequest{
		EmployeeID: "EMP-001", Year: 2024, Month: 5, CalculatedBy: "hr",
	}, http.StatusOK, &pay)
	assert.Equal(t, 22, pay.PaidDays)
	assert.Equal(t, 2, pay.OTCount)
	assertDecimal(t, "100", pay.DailyRate)
	assertDecimal(t, "2200", pay.Salary)
	assertDecimal(t, "300", pay.OTAmount)
	assertDecimal(t, "2500", pay.NetSalary)
	assert.Equal(t, "1.0", pay.RuleVersion)
	assert.Equal(t, "hr", pay.CalculatedBy)

	var stored PayrollDTO
	s.mustDo(t, "GET", "/api/payroll/employee/EMP-001?year=2024&month=5", nil, http.StatusOK, &stored)
	assertDecimal(t, "2500", stored.NetSalary)
	assert.Equal(t, "Ravi Kumar", stored.EmployeeName)

	var month []PayrollDTO
	s.mustDo(t, "GET", "/api/payroll/month?year=2024&month=5", nil, http.StatusOK, &month)
	require.Len(t, month, 1)

	rec, env := s.do(t, "GET", "/api/payroll/employee/EMP-001?year=2024&month=6", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, env.Message, "2024-06")
}

func TestPayroll_MissingRate(t *testing.T) {
	s := newTestServer(t)
	s.seedSite(t)
	s.mustDo(t, "POST", "/api/employees", EmployeeRequest{EmployeeID: "EMP-002", FullName: "Sunil Das", TradeCategory: "MEP"}, http.StatusCreated, nil)
	s.mustDo(t, "POST", "/api/deployments", DeploymentRequest{
		DeploymentID: "DEP-2", EmployeeID: "EMP-002", SiteID: "SITE-A", FromDate: "2024-04-01",
	}, http.StatusCreated, nil)

	rec, env := s.do(t, "POST", "/api/payroll/calculate", CalculatePayrollRequest{EmployeeID: "EMP-002", Year: 2024, Month: 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NO_DAILY_RATE", env.Reason)

	var res workforce.BatchResult
	s.mustDo(t, "POST", "/api/payroll/recalculate-month", RecalculateMonthRequest{Year: 2024, Month: 5, CalculatedBy: "hr"}, http.StatusOK, &res)
	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Employee EMP-002:")
}

func TestProductivity_CalculateAndList(t *testing.T) {
	s := newTestServer(t)
	s.seedSite(t)
	s.markMay(t)

	var prod ProductivityDTO
	s.mustDo(t, "POST", "/api/productivity/calculate", CalculateProductivityRequest{
		EmployeeID: "EMP-001", SiteID: "SITE-A", Year: 2024, Month: 5, ProductivityRate: decimal.NewFromInt(10),
	}, http.StatusOK, &prod)
	assert.Equal(t, 22, prod.ProductivityDays)
	assertDecimal(t, "220", prod.Amount)

	var list []ProductivityDTO
	s.mustDo(t, "GET", "/api/productivity/site/SITE-A?year=2024&month=5", nil, http.StatusOK, &list)
	require.Len(t, list, 1)

	rec, _ := s.do(t, "GET", "/api/productivity/employee/EMP-001/site/SITE-A?year=2024&month=4", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// MONTH LOCKS
// =============================================================================

func TestMonthLock_Flow(t *testing.T) {
	// GIVEN: May 2024 with attendance and a calculated payroll
	// WHEN: The month is locked, then unlocked
	// THEN: Writes and plain calculation are refused while locked,
	//       recalculate=true still works, unlock needs a reason

	s := newTestServer(t)
	s.seedSite(t)
	s.markMay(t)

	var lock MonthLockDTO
	s.mustDo(t, "GET", "/api/month-locks/2024/5", nil, http.StatusOK, &lock)
	assert.False(t, lock.IsLocked)

	s.mustDo(t, "POST", "/api/month-locks/lock", LockMonthRequest{Year: 2024, Month: 5, LockedBy: "finance"}, http.StatusOK, &lock)
	assert.True(t, lock.IsLocked)
	assert.Equal(t, "finance", lock.LockedBy)
	assert.NotNil(t, lock.LockedAt)

	rec, env := s.do(t, "POST", "/api/month-locks/lock", LockMonthRequest{Year: 2024, Month: 5, LockedBy: "finance"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_LOCKED", env.Reason)

	rec, env = s.do(t, "POST", "/api/attendance", AttendanceRequest{
		EmployeeID: "EMP-001", SiteID: "SITE-A", Date: "2024-05-30", Status: "P", Source: "UI",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MONTH_LOCKED", env.Reason)

	rec, env = s.do(t, "POST", "/api/payroll/calculate", CalculatePayrollRequest{EmployeeID: "EMP-001", Year: 2024, Month: 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MONTH_LOCKED", env.Reason)

	s.mustDo(t, "POST", "/api/payroll/calculate", CalculatePayrollRequest{
		EmployeeID: "EMP-001", Year: 2024, Month: 5, Recalculate: true,
	}, http.StatusOK, nil)

	rec, env = s.do(t, "POST", "/api/month-locks/unlock", UnlockMonthRequest{Year: 2024, Month: 5, UnlockedBy: "finance"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REASON_REQUIRED", env.Reason)

	s.mustDo(t, "POST", "/api/month-locks/unlock", UnlockMonthRequest{
		Year: 2024, Month: 5, UnlockedBy: "finance", Reason: "late register from site",
	}, http.StatusOK, &lock)
	assert.False(t, lock.IsLocked)
	assert.Empty(t, lock.LockedBy)
	assert.Equal(t, "late register from site", lock.UnlockReason)

	rec, env = s.do(t, "POST", "/api/month-locks/unlock", UnlockMonthRequest{Year: 2024, Month: 5, UnlockedBy: "finance", Reason: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NOT_LOCKED", env.Reason)

	var locks []MonthLockDTO
	s.mustDo(t, "GET", "/api/month-locks", nil, http.StatusOK, &locks)
	require.Len(t, locks, 1)
	assert.Equal(t, 5, locks[0].Month)
}

func TestHandler_ServicesShareStore(t *testing.T) {
	s := newTestServer(t)
	s.seedSite(t)

	_, err := s.h.Locks.Lock(context.Background(), workforce.MustPeriod(2024, 5), "finance")
	require.NoError(t, err)

	var lock MonthLockDTO
	s.mustDo(t, "GET", "/api/month-locks/2024/5", nil, http.StatusOK, &lock)
	assert.True(t, lock.IsLocked)
}

func strPtr(s string) *string { return &s }
