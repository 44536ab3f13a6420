/*
handlers.go - HTTP API handlers for the site payroll system

PURPOSE:
  Exposes the attendance ledger, calculators and registries via REST API.
  Handles HTTP request/response and JSON serialization, and delegates to
  the workforce package for every rule.

ENDPOINTS:
  Registries (this file):
    GET|POST        /api/employees
    GET|PUT|DELETE  /api/employees/{id}
    POST            /api/employees/{id}/documents   (uploads.go)
    GET|POST        /api/clients, /api/sites, /api/deployments
    GET|PUT|DELETE  /api/clients/{id}, /api/sites/{id}, /api/deployments/{id}
    GET|POST        /api/trade-categories
    POST            /api/trade-categories/initialize
    GET|PUT|DELETE  /api/trade-categories/{id}

  Attendance and month locks: attendance.go
  Payroll and productivity:   payroll.go
  Excel import and documents: uploads.go

ARCHITECTURE:
  Handler struct holds one service per workforce concern. Handlers parse
  the request, call exactly one service method and map the result to a
  DTO.

ERROR HANDLING:
  Domain errors carry their kind; writeDomainError maps it:
  - 400: workforce.ErrBadRequest (invalid input, missing rules, no rate)
  - 404: workforce.ErrNotFound
  - 409: workforce.ErrConflict (month locked, source mismatch, duplicate)
  - 500: anything else; the message is generic and the cause is logged

SECURITY NOTE:
  No authentication. The createdBy/lockedBy/calculatedBy fields are taken
  from the request body as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/site-payroll/documents"
	"github.com/warp/site-payroll/ingest"
	"github.com/warp/site-payroll/rules"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry     *workforce.Registry
	Locks        *workforce.MonthLockRegistry
	Ledger       *workforce.Ledger
	Payroll      *workforce.PayrollCalculator
	Productivity *workforce.ProductivityCalculator
	Importer     *ingest.Importer
	Documents    *documents.Service // nil disables document upload

	// TradeDefaults is what POST /api/trade-categories/initialize seeds.
	TradeDefaults []workforce.TradeCategory

	pinger   interface{ Ping(context.Context) error }
	resetter interface{ Reset(context.Context) error }

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires every service over one store. Callers tune the
// calculators (DefaultActor, EnforceMonthLock) and set Documents after.
func NewHandler(store workforce.TxStore) *Handler {
	ledger := workforce.NewLedger(store)
	h := &Handler{
		Registry:      workforce.NewRegistry(store),
		Locks:         workforce.NewMonthLockRegistry(store),
		Ledger:        ledger,
		Payroll:       workforce.NewPayrollCalculator(store),
		Productivity:  workforce.NewProductivityCalculator(store),
		Importer:      ingest.NewImporter(store, ledger),
		TradeDefaults: rules.Defaults(),
	}
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		h.pinger = p
	}
	if rs, ok := store.(interface{ Reset(context.Context) error }); ok {
		h.resetter = rs
	}
	return h
}

// Health reports whether the database answers.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", "")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees ordered by name.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Registry.ListEmployees(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Registry.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := req.toEmployee()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := h.Registry.CreateEmployee(r.Context(), e, req.TradeCategory)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.employeeResponse(w, r, http.StatusCreated, created)
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := req.toEmployee()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := h.Registry.UpdateEmployee(r.Context(), chi.URLParam(r, "id"), e, req.TradeCategory)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.employeeResponse(w, r, http.StatusOK, updated)
}

// employeeResponse re-reads the employee so the trade code join is filled.
func (h *Handler) employeeResponse(w http.ResponseWriter, r *http.Request, status int, e workforce.Employee) {
	fresh, err := h.Registry.GetEmployee(r.Context(), e.ExternalID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, toEmployeeDTO(fresh))
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.DeleteEmployee(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Employee deleted successfully")
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Registry.ListClients(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.Registry.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := req.toClient()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := h.Registry.CreateClient(r.Context(), c)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(created))
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := req.toClient()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := h.Registry.UpdateClient(r.Context(), chi.URLParam(r, "id"), c)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(updated))
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.DeleteClient(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Client deleted successfully")
}

// =============================================================================
// SITE HANDLERS
// =============================================================================

// ListSites returns all sites, or one client's with ?clientId=.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.Registry.ListSites(r.Context(), r.URL.Query().Get("clientId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]SiteDTO, len(sites))
	for i, s := range sites {
		dtos[i] = toSiteDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	s, err := h.Registry.GetSite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSiteDTO(s))
}

func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req SiteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.Registry.CreateSite(r.Context(), req.toInput())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSiteDTO(created))
}

func (h *Handler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	var req SiteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.Registry.UpdateSite(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSiteDTO(updated))
}

func (h *Handler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.DeleteSite(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Site deleted successfully")
}

// =============================================================================
// DEPLOYMENT HANDLERS
// =============================================================================

// ListDeployments accepts ?employeeId= or ?siteId= filters.
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deployments, err := h.Registry.ListDeployments(r.Context(), workforce.DeploymentFilter{
		EmployeeRef: q.Get("employeeId"),
		SiteRef:     q.Get("siteId"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]DeploymentDTO, len(deployments))
	for i, d := range deployments {
		dtos[i] = toDeploymentDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := h.Registry.GetDeployment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeploymentDTO(d))
}

func (h *Handler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req DeploymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := h.Registry.CreateDeployment(r.Context(), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDeploymentDTO(created))
}

func (h *Handler) UpdateDeployment(w http.ResponseWriter, r *http.Request) {
	var req DeploymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := h.Registry.UpdateDeployment(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeploymentDTO(updated))
}

func (h *Handler) DeleteDeployment(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.DeleteDeployment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Deployment deleted successfully")
}

// =============================================================================
// TRADE CATEGORY HANDLERS
// =============================================================================

func (h *Handler) ListTradeCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Registry.ListTradeCategories(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]TradeCategoryDTO, len(cats))
	for i, tc := range cats {
		dtos[i] = toTradeCategoryDTO(tc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTradeCategory accepts an ID or a code.
func (h *Handler) GetTradeCategory(w http.ResponseWriter, r *http.Request) {
	tc, err := h.Registry.GetTradeCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeCategoryDTO(tc))
}

func (h *Handler) CreateTradeCategory(w http.ResponseWriter, r *http.Request) {
	var doc rules.TradeCategoryDoc
	if !decodeBody(w, r, &doc) {
		return
	}
	tc, err := rules.ToTradeCategory(doc)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := h.Registry.CreateTradeCategory(r.Context(), tc)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTradeCategoryDTO(created))
}

func (h *Handler) UpdateTradeCategory(w http.ResponseWriter, r *http.Request) {
	var doc rules.TradeCategoryDoc
	if !decodeBody(w, r, &doc) {
		return
	}
	tc, err := rules.ToTradeCategory(doc)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := h.Registry.UpdateTradeCategory(r.Context(), chi.URLParam(r, "id"), tc)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeCategoryDTO(updated))
}

func (h *Handler) DeleteTradeCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.DeleteTradeCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Trade category deleted successfully")
}

// InitializeTradeCategories seeds the default trade table, skipping codes
// that already exist.
// POST /api/trade-categories/initialize
func (h *Handler) InitializeTradeCategories(w http.ResponseWriter, r *http.Request) {
	created, err := rules.EnsureDefaults(r.Context(), h.Registry, h.TradeDefaults)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": created})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusOK, Envelope{Success: true, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string, reason workforce.Reason) {
	writeEnvelope(w, status, Envelope{Success: false, Message: message, Reason: string(reason)})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// writeDomainError maps an error's kind to an HTTP status. Unclassified
// errors are logged with the request ID and reported as 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var de *workforce.Error
	if errors.As(err, &de) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, workforce.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, workforce.ErrBadRequest):
			status = http.StatusBadRequest
		case errors.Is(err, workforce.ErrConflict):
			status = http.StatusConflict
		}
		writeError(w, status, err.Error(), de.Reason)
		return
	}
	log.Printf("[API] %s %s (request %s): %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
	writeError(w, http.StatusInternalServerError, "Internal server error", "")
}

// decodeBody decodes the JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), workforce.ReasonInvalidInput)
		return false
	}
	return true
}

// periodFromQuery reads ?year=&month=.
func periodFromQuery(r *http.Request) (workforce.Period, error) {
	q := r.URL.Query()
	year, yerr := strconv.Atoi(q.Get("year"))
	month, merr := strconv.Atoi(q.Get("month"))
	if yerr != nil || merr != nil {
		return workforce.Period{}, workforce.BadRequestf(workforce.ReasonInvalidInput, "year and month query parameters are required")
	}
	return workforce.NewPeriod(year, month)
}

// periodFromPath reads {year}/{month} route params.
func periodFromPath(r *http.Request) (workforce.Period, error) {
	year, yerr := strconv.Atoi(chi.URLParam(r, "year"))
	month, merr := strconv.Atoi(chi.URLParam(r, "month"))
	if yerr != nil || merr != nil {
		return workforce.Period{}, workforce.BadRequestf(workforce.ReasonInvalidInput, "year and month must be numbers")
	}
	return workforce.NewPeriod(year, month)
}
