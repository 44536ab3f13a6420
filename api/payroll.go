package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// CalculatePayroll computes one employee's month. recalculate=true is
// required once the month is locked.
// POST /api/payroll/calculate
func (h *Handler) CalculatePayroll(w http.ResponseWriter, r *http.Request) {
	var req CalculatePayrollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := workforce.NewPeriod(req.Year, req.Month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	rec, err := h.Payroll.Calculate(r.Context(), req.EmployeeID, p, workforce.CalculateOptions{
		Force:        req.Recalculate,
		CalculatedBy: req.CalculatedBy,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(rec))
}

// RecalculateMonth recalculates every active employee. Per-employee
// failures are listed in the result.
// POST /api/payroll/recalculate-month
func (h *Handler) RecalculateMonth(w http.ResponseWriter, r *http.Request) {
	var req RecalculateMonthRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := workforce.NewPeriod(req.Year, req.Month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	res, err := h.Payroll.RecalculateForMonth(r.Context(), p, req.CalculatedBy)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetPayroll returns the stored record for an employee's month.
// GET /api/payroll/employee/{id}?year=&month=
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ref := chi.URLParam(r, "id")
	rec, err := h.Payroll.Get(r.Context(), ref, p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "No payroll for employee "+ref+" in "+p.String(), workforce.ReasonNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(*rec))
}

// ListPayroll returns every stored record for a month.
// GET /api/payroll/month?year=&month=
func (h *Handler) ListPayroll(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	recs, err := h.Payroll.ListForMonth(r.Context(), p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]PayrollDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toPayrollDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PRODUCTIVITY HANDLERS
// =============================================================================

// CalculateProductivity computes one employee's month at one site.
// POST /api/productivity/calculate
func (h *Handler) CalculateProductivity(w http.ResponseWriter, r *http.Request) {
	var req CalculateProductivityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := workforce.NewPeriod(req.Year, req.Month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	rec, err := h.Productivity.Calculate(r.Context(), workforce.ProductivityRequest{
		EmployeeRef:  req.EmployeeID,
		SiteRef:      req.SiteID,
		Period:       p,
		Rate:         req.ProductivityRate,
		CalculatedBy: req.CalculatedBy,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductivityDTO(rec))
}

// GetProductivity returns the stored record for (employee, site, month).
// GET /api/productivity/employee/{id}/site/{siteId}?year=&month=
func (h *Handler) GetProductivity(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	empRef, siteRef := chi.URLParam(r, "id"), chi.URLParam(r, "siteId")
	rec, err := h.Productivity.Get(r.Context(), empRef, siteRef, p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound,
			"No productivity for employee "+empRef+" at site "+siteRef+" in "+p.String(), workforce.ReasonNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toProductivityDTO(*rec))
}

// ListSiteProductivity returns a site's month ordered by employee name.
// GET /api/productivity/site/{siteId}?year=&month=
func (h *Handler) ListSiteProductivity(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	recs, err := h.Productivity.ListForSite(r.Context(), chi.URLParam(r, "siteId"), p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]ProductivityDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toProductivityDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}
