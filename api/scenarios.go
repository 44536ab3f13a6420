/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with a realistic
  site month: a client, two sites, a crew of workers with trades and
  deployment rates, and a full month of attendance. Each scenario shows
  one part of the payroll flow.

AVAILABLE SCENARIOS (all for the previous calendar month):
  site-month:    Three workers, full attendance, ready to calculate
  locked-month:  site-month with payroll calculated and the month locked
  missing-rate:  site-month plus a worker deployed without a daily rate,
                 so month recalculation reports NO_DAILY_RATE for them

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed the default trade categories
 3. Create client, sites, employees and deployments
 4. Bulk-write attendance through the ledger (source UI)
 5. Optionally calculate payroll and lock the month

USAGE VIA API (only when server.demo_scenarios is on):
  POST /api/scenarios/load
  {"scenarioId": "locked-month"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - server.go: Scenario routes
  - rules/defaults.yaml: The trade table the scenarios rely on
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/site-payroll/rules"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "site-month",
		Name:        "Site Month",
		Description: "Three workers on two sites with a full month of attendance",
	},
	{
		ID:          "locked-month",
		Name:        "Locked Month",
		Description: "Payroll calculated and the month locked; edits are refused",
	},
	{
		ID:          "missing-rate",
		Name:        "Missing Rate",
		Description: "One worker has no deployment rate; month recalculation reports it",
	},
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var load func(context.Context, workforce.Period) error
	switch req.ScenarioID {
	case "site-month":
		load = h.loadSiteMonthScenario
	case "locked-month":
		load = h.loadLockedMonthScenario
	case "missing-rate":
		load = h.loadMissingRateScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, workforce.ReasonInvalidInput)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.resetLocked(ctx); err != nil {
		writeDomainError(w, r, err)
		return
	}
	p := previousMonth(time.Now())
	if err := load(ctx, p); err != nil {
		writeDomainError(w, r, fmt.Errorf("failed to load scenario %s: %w", req.ScenarioID, err))
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"year":     p.Year,
		"month":    int(p.Month),
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.resetLocked(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Database reset")
}

// resetLocked clears the store; h.mu must be held.
func (h *Handler) resetLocked(ctx context.Context) error {
	if h.resetter == nil {
		return workforce.BadRequestf(workforce.ReasonInvalidInput, "This store cannot be reset")
	}
	if err := h.resetter.Reset(ctx); err != nil {
		return err
	}
	h.currentScenario = ""
	return nil
}

func previousMonth(now time.Time) workforce.Period {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return workforce.PeriodOf(first.AddDate(0, -1, 0))
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type demoWorker struct {
	id, name, trade, site string
	rate                  string // "" = no rate override
	// status returns the register code for a day, "" for no row.
	status func(day int, wd time.Weekday) workforce.Status
}

// regular works every day except Fridays, with overtime on the 10th and 20th.
func regular(day int, wd time.Weekday) workforce.Status {
	switch {
	case wd == time.Friday:
		return workforce.StatusAbsent
	case day == 10 || day == 20:
		return workforce.StatusOvertime
	}
	return workforce.StatusPresent
}

// technician is regular with a public holiday on the 1st and a sick day on the 15th.
func technician(day int, wd time.Weekday) workforce.Status {
	switch {
	case day == 1:
		return workforce.StatusPublicHoliday
	case day == 15:
		return workforce.StatusMedicalLeave
	}
	return regular(day, wd)
}

var demoCrew = []demoWorker{
	{id: "EMP-001", name: "Ravi Kumar", trade: "CLEANER", site: "SITE-MT", rate: "100", status: regular},
	{id: "EMP-002", name: "Sunil Das", trade: "MEP", site: "SITE-AH", rate: "150", status: technician},
	{id: "EMP-003", name: "Arjun Nair", trade: "MASON", site: "SITE-MT", rate: "120", status: regular},
}

func (h *Handler) loadSiteMonthScenario(ctx context.Context, p workforce.Period) error {
	return h.loadCrew(ctx, p, demoCrew)
}

func (h *Handler) loadLockedMonthScenario(ctx context.Context, p workforce.Period) error {
	if err := h.loadCrew(ctx, p, demoCrew); err != nil {
		return err
	}
	res, err := h.Payroll.RecalculateForMonth(ctx, p, "demo")
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("payroll: %v", res.Errors)
	}
	_, err = h.Locks.Lock(ctx, p, "demo")
	return err
}

func (h *Handler) loadMissingRateScenario(ctx context.Context, p workforce.Period) error {
	crew := append([]demoWorker{}, demoCrew...)
	crew = append(crew, demoWorker{id: "EMP-004", name: "Vijay Singh", trade: "CIVIL", site: "SITE-AH", status: regular})
	return h.loadCrew(ctx, p, crew)
}

func (h *Handler) loadCrew(ctx context.Context, p workforce.Period, crew []demoWorker) error {
	if _, err := rules.EnsureDefaults(ctx, h.Registry, h.TradeDefaults); err != nil {
		return err
	}

	start := p.Start()
	if _, err := h.Registry.CreateClient(ctx, workforce.Client{
		ExternalID: "CL-GULF", CompanyName: "Gulf Facilities LLC", ContractStart: &start,
	}); err != nil {
		return err
	}
	for _, s := range []workforce.SiteInput{
		{ExternalID: "SITE-MT", ClientRef: "CL-GULF", Name: "Marina Tower", Code: "MT"},
		{ExternalID: "SITE-AH", ClientRef: "CL-GULF", Name: "Airport Hangar", Code: "AH"},
	} {
		if _, err := h.Registry.CreateSite(ctx, s); err != nil {
			return err
		}
	}

	var rows []workforce.BulkRow
	for i, wkr := range crew {
		if _, err := h.Registry.CreateEmployee(ctx, workforce.Employee{
			ExternalID: wkr.id, FullName: wkr.name, JoiningDate: &start,
		}, wkr.trade); err != nil {
			return err
		}
		dep := workforce.DeploymentInput{
			ExternalID:  fmt.Sprintf("DEP-%03d", i+1),
			EmployeeRef: wkr.id,
			SiteRef:     wkr.site,
			FromDate:    start,
		}
		if wkr.rate != "" {
			dep.RateOverride = decimal.NewNullDecimal(decimal.RequireFromString(wkr.rate))
		}
		if _, err := h.Registry.CreateDeployment(ctx, dep); err != nil {
			return err
		}

		for day := 1; day <= p.Days(); day++ {
			date, _ := p.Date(day)
			if st := wkr.status(day, date.Weekday()); st != "" {
				rows = append(rows, workforce.BulkRow{EmployeeRef: wkr.id, SiteRef: wkr.site, Date: date, Status: st})
			}
		}
	}

	res := h.Ledger.BulkUpsert(ctx, rows, workforce.SourceUI, "", "demo")
	if len(res.Errors) > 0 {
		return fmt.Errorf("attendance: %d rows failed, first: row %d: %s", len(res.Errors), res.Errors[0].Row, res.Errors[0].Error)
	}
	return nil
}
