/*
scenarios_test.go - Tests for demo scenarios and the payroll scheduler

Tests for:
- Loading, listing and resetting scenarios
- Scenario routes being off unless enabled
- Scheduler refresh of the current month and lock skipping
*/
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_List(t *testing.T) {
	s := newTestServer(t)

	var list []ScenarioDTO
	s.mustDo(t, "GET", "/api/scenarios", nil, http.StatusOK, &list)
	require.Len(t, list, 3)
	assert.Equal(t, "site-month", list[0].ID)

	rec, env := s.do(t, "GET", "/api/scenarios/current", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.Data)
}

func TestScenarios_LoadLockedMonth(t *testing.T) {
	// GIVEN: An empty database
	// WHEN: Loading locked-month
	// THEN: Last month has payroll for the whole crew and is locked

	s := newTestServer(t)

	var loaded struct {
		Scenario string `json:"scenario"`
		Year     int    `json:"year"`
		Month    int    `json:"month"`
	}
	s.mustDo(t, "POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "locked-month"}, http.StatusOK, &loaded)
	p := previousMonth(time.Now())
	assert.Equal(t, "locked-month", loaded.Scenario)
	assert.Equal(t, p.Year, loaded.Year)
	assert.Equal(t, int(p.Month), loaded.Month)

	var current ScenarioDTO
	s.mustDo(t, "GET", "/api/scenarios/current", nil, http.StatusOK, &current)
	assert.Equal(t, "locked-month", current.ID)

	locked, err := s.h.Locks.IsLocked(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, locked)

	recs, err := s.h.Payroll.ListForMonth(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	for _, rec := range recs {
		assert.Equal(t, "demo", rec.CalculatedBy)
		assert.True(t, rec.NetSalary.IsPositive(), rec.EmployeeExternalID)
	}
}

func TestScenarios_MissingRate_ReportsWorker(t *testing.T) {
	s := newTestServer(t)
	s.mustDo(t, "POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "missing-rate"}, http.StatusOK, nil)

	p := previousMonth(time.Now())
	res, err := s.h.Payroll.RecalculateForMonth(context.Background(), p, "hr")
	require.NoError(t, err)
	assert.Equal(t, 3, res.SuccessCount)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "Employee EMP-004:"), res.Errors[0])
}

func TestScenarios_LoadTwice_Resets(t *testing.T) {
	s := newTestServer(t)
	s.mustDo(t, "POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "missing-rate"}, http.StatusOK, nil)
	s.mustDo(t, "POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "site-month"}, http.StatusOK, nil)

	var emps []EmployeeDTO
	s.mustDo(t, "GET", "/api/employees", nil, http.StatusOK, &emps)
	assert.Len(t, emps, 3)

	s.mustDo(t, "POST", "/api/scenarios/reset", nil, http.StatusOK, nil)
	s.mustDo(t, "GET", "/api/employees", nil, http.StatusOK, &emps)
	assert.Empty(t, emps)

	rec, env := s.do(t, "GET", "/api/scenarios/current", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.Data)
}

func TestScenarios_Unknown(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, "POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "Unknown scenario")
}

func TestScenarios_DisabledByDefault(t *testing.T) {
	s := newTestServer(t)
	router := NewRouter(s.h, RouterOptions{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/scenarios/reset", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviousMonth(t *testing.T) {
	assert.Equal(t, workforce.MustPeriod(2023, 12), previousMonth(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, workforce.MustPeriod(2024, 2), previousMonth(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)))
}

// =============================================================================
// SCHEDULER
// =============================================================================

func newTestScheduler(t *testing.T, s *testServer, now time.Time) *PayrollScheduler {
	t.Helper()
	ps := NewPayrollScheduler(s.h, time.Hour)
	ps.Clock = func() time.Time { return now }
	return ps
}

func TestScheduler_RunNow_RefreshesCurrentMonth(t *testing.T) {
	// GIVEN: May 2024 attendance for EMP-001 and a worker with no rate
	// WHEN: The scheduler runs on May 24th
	// THEN: EMP-001's payroll is stored, the other worker is reported

	s := newTestServer(t)
	s.seedSite(t)
	s.markMay(t)
	s.mustDo(t, "POST", "/api/employees", EmployeeRequest{EmployeeID: "EMP-002", FullName: "Sunil Das", TradeCategory: "MEP"}, http.StatusCreated, nil)

	ps := newTestScheduler(t, s, time.Date(2024, 5, 24, 9, 0, 0, 0, time.UTC))
	res, err := ps.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, workforce.MustPeriod(2024, 5), res.Period)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Employee EMP-002:")

	rec, err := s.h.Payroll.Get(context.Background(), "EMP-001", workforce.MustPeriod(2024, 5))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "scheduler", rec.CalculatedBy)
	assertDecimal(t, "2500", rec.NetSalary)
}

func TestScheduler_RunNow_SkipsLockedMonth(t *testing.T) {
	s := newTestServer(t)
	s.seedSite(t)
	s.markMay(t)
	_, err := s.h.Locks.Lock(context.Background(), workforce.MustPeriod(2024, 5), "finance")
	require.NoError(t, err)

	ps := newTestScheduler(t, s, time.Date(2024, 5, 24, 9, 0, 0, 0, time.UTC))
	res, err := ps.RunNow(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.SuccessCount)

	rec, err := s.h.Payroll.Get(context.Background(), "EMP-001", workforce.MustPeriod(2024, 5))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestServer(t)

	disabled := NewPayrollScheduler(s.h, 0)
	assert.False(t, disabled.Enabled)
	disabled.Start()
	disabled.Stop()

	ps := newTestScheduler(t, s, time.Date(2024, 5, 24, 9, 0, 0, 0, time.UTC))
	ps.Start()
	ps.Stop()
	// Restart after stop.
	ps.Start()
	ps.Stop()

	assert.Equal(t, time.Date(2024, 5, 24, 10, 0, 0, 0, time.UTC), ps.GetNextRunTime())
}
