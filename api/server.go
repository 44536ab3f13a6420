/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, included in 500 logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the HR frontend

ROUTE GROUPS:
  /api/health              Liveness and database check
  /api/employees/*         Employees and their documents
  /api/clients/*           Clients
  /api/sites/*             Sites
  /api/deployments/*       Deployments and rate overrides
  /api/trade-categories/*  Trade rule table
  /api/attendance/*        Attendance ledger
  /api/month-locks/*       Month lock registry
  /api/payroll/*           Payroll calculator
  /api/productivity/*      Productivity calculator
  /api/excel/*             Excel register import
  /api/scenarios/*         Demo data (only with DemoScenarios)
  /uploads/*               Stored employee documents (static)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tunes NewRouter. The zero value allows any origin.
type RouterOptions struct {
	CORSOrigins []string
	// DemoScenarios mounts /api/scenarios, which can wipe the database.
	DemoScenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Put("/{id}", h.UpdateEmployee)
			r.Delete("/{id}", h.DeleteEmployee)
			r.Post("/{id}/documents", h.UploadDocuments)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
			r.Put("/{id}", h.UpdateClient)
			r.Delete("/{id}", h.DeleteClient)
		})

		r.Route("/sites", func(r chi.Router) {
			r.Get("/", h.ListSites)
			r.Post("/", h.CreateSite)
			r.Get("/{id}", h.GetSite)
			r.Put("/{id}", h.UpdateSite)
			r.Delete("/{id}", h.DeleteSite)
		})

		r.Route("/deployments", func(r chi.Router) {
			r.Get("/", h.ListDeployments)
			r.Post("/", h.CreateDeployment)
			r.Get("/{id}", h.GetDeployment)
			r.Put("/{id}", h.UpdateDeployment)
			r.Delete("/{id}", h.DeleteDeployment)
		})

		r.Route("/trade-categories", func(r chi.Router) {
			r.Get("/", h.ListTradeCategories)
			r.Post("/", h.CreateTradeCategory)
			r.Post("/initialize", h.InitializeTradeCategories)
			r.Get("/{id}", h.GetTradeCategory)
			r.Put("/{id}", h.UpdateTradeCategory)
			r.Delete("/{id}", h.DeleteTradeCategory)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/", h.UpsertAttendance)
			r.Post("/bulk", h.BulkUpsertAttendance)
			r.Get("/employee/{id}", h.EmployeeAttendance)
			r.Get("/site/{id}", h.SiteAttendance)
			r.Delete("/{id}", h.DeleteAttendance)
		})

		r.Route("/month-locks", func(r chi.Router) {
			r.Get("/", h.ListMonthLocks)
			r.Get("/{year}/{month}", h.GetMonthLock)
			r.Post("/lock", h.LockMonth)
			r.Post("/unlock", h.UnlockMonth)
		})

		r.Route("/payroll", func(r chi.Router) {
			r.Post("/calculate", h.CalculatePayroll)
			r.Post("/recalculate-month", h.RecalculateMonth)
			r.Get("/employee/{id}", h.GetPayroll)
			r.Get("/month", h.ListPayroll)
		})

		r.Route("/productivity", func(r chi.Router) {
			r.Post("/calculate", h.CalculateProductivity)
			r.Get("/employee/{id}/site/{siteId}", h.GetProductivity)
			r.Get("/site/{siteId}", h.ListSiteProductivity)
		})

		r.Route("/excel", func(r chi.Router) {
			r.Post("/preview", h.PreviewExcel)
			r.Post("/upload", h.UploadExcel)
			r.Get("/uploads", h.ListUploads)
			r.Get("/uploads/{id}", h.GetUpload)
		})

		if opts.DemoScenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		}
	})

	// Stored documents
	if h.Documents != nil {
		prefix := h.Documents.URLPrefix()
		fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(h.Documents.Dir())))
		r.Get(prefix+"/*", fileServer.ServeHTTP)
	}

	return r
}
