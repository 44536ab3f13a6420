/*
registry.go - Reference data: employees, clients, sites, deployments, trades

PURPOSE:
  The calculators only read reference data. The Registry is the single
  write path for it: it validates input, resolves external IDs of the
  records a row points at, and assigns internal IDs.

RESOLUTION:
  Callers always name related records by external ID ("EMP-001",
  "CL-ACME", "SITE-04"). Trade categories are named by code or ID. An
  unknown reference is ErrNotFound; a repeated external ID or trade code is
  ErrConflict (DUPLICATE).

DELETES:
  Deleting a record that is still referenced (an employee with attendance,
  a client with sites) is refused by the store with ErrConflict.
*/
package workforce

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Registry struct {
	store Store
	now   func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// CreateEmployee registers e. tradeRef may be empty, a trade category ID or
// a trade code.
func (r *Registry) CreateEmployee(ctx context.Context, e Employee, tradeRef string) (Employee, error) {
	e.ExternalID = strings.TrimSpace(e.ExternalID)
	e.FullName = strings.TrimSpace(e.FullName)
	if e.ExternalID == "" {
		return Employee{}, badRequest(ReasonInvalidInput, "employeeId is required")
	}
	if e.FullName == "" {
		return Employee{}, badRequest(ReasonInvalidInput, "fullName is required")
	}
	if err := validateSalary(e); err != nil {
		return Employee{}, err
	}
	existing, err := r.store.GetEmployeeByExternalID(ctx, e.ExternalID)
	if err != nil {
		return Employee{}, err
	}
	if existing != nil {
		return Employee{}, conflict(ReasonDuplicate, "Employee %s already exists", e.ExternalID)
	}
	if err := r.assignTrade(ctx, &e, tradeRef); err != nil {
		return Employee{}, err
	}

	now := r.now().UTC()
	e.ID = uuid.NewString()
	if e.Status == "" {
		e.Status = EmployeeActive
	}
	if e.OtherDocuments == nil {
		e.OtherDocuments = []Document{}
	}
	e.CreatedAt, e.UpdatedAt = now, now
	if err := r.store.SaveEmployee(ctx, e); err != nil {
		return Employee{}, err
	}
	return e, nil
}

// UpdateEmployee replaces the profile fields of the employee named by ref.
// Identity, document URLs and creation time are kept.
func (r *Registry) UpdateEmployee(ctx context.Context, ref string, e Employee, tradeRef string) (Employee, error) {
	current, err := r.GetEmployee(ctx, ref)
	if err != nil {
		return Employee{}, err
	}
	e.FullName = strings.TrimSpace(e.FullName)
	if e.FullName == "" {
		return Employee{}, badRequest(ReasonInvalidInput, "fullName is required")
	}
	if err := validateSalary(e); err != nil {
		return Employee{}, err
	}
	if err := r.assignTrade(ctx, &e, tradeRef); err != nil {
		return Employee{}, err
	}

	e.ID = current.ID
	e.ExternalID = current.ExternalID
	e.PassportDocURL = current.PassportDocURL
	e.VisaDocURL = current.VisaDocURL
	e.PhotoURL = current.PhotoURL
	e.OtherDocuments = current.OtherDocuments
	if e.Status == "" {
		e.Status = current.Status
	}
	e.CreatedAt = current.CreatedAt
	e.UpdatedAt = r.now().UTC()
	if err := r.store.SaveEmployee(ctx, e); err != nil {
		return Employee{}, err
	}
	return e, nil
}

// SaveEmployeeDocuments persists document URL changes made to emp.
func (r *Registry) SaveEmployeeDocuments(ctx context.Context, emp Employee) (Employee, error) {
	emp.UpdatedAt = r.now().UTC()
	if err := r.store.SaveEmployee(ctx, emp); err != nil {
		return Employee{}, err
	}
	return emp, nil
}

func (r *Registry) GetEmployee(ctx context.Context, ref string) (Employee, error) {
	e, err := r.store.GetEmployeeByExternalID(ctx, ref)
	if err != nil {
		return Employee{}, err
	}
	if e == nil {
		return Employee{}, notFound("Employee %s not found", ref)
	}
	return *e, nil
}

// ListEmployees returns every employee ordered by name.
func (r *Registry) ListEmployees(ctx context.Context) ([]Employee, error) {
	return r.store.ListEmployees(ctx)
}

func (r *Registry) DeleteEmployee(ctx context.Context, ref string) error {
	e, err := r.GetEmployee(ctx, ref)
	if err != nil {
		return err
	}
	return r.store.DeleteEmployee(ctx, e.ID)
}

func (r *Registry) assignTrade(ctx context.Context, e *Employee, tradeRef string) error {
	tradeRef = strings.TrimSpace(tradeRef)
	if tradeRef == "" {
		e.TradeCategoryID = ""
		e.TradeCategoryCode = ""
		return nil
	}
	tc, err := r.GetTradeCategory(ctx, tradeRef)
	if err != nil {
		return err
	}
	e.TradeCategoryID = tc.ID
	e.TradeCategoryCode = tc.Code
	return nil
}

func validateSalary(e Employee) error {
	for name, v := range map[string]decimal.NullDecimal{
		"basicSalary":      e.BasicSalary,
		"foodAllowance":    e.FoodAllowance,
		"foremanAllowance": e.ForemanAllowance,
	} {
		if v.Valid && v.Decimal.IsNegative() {
			return badRequest(ReasonInvalidInput, "%s must not be negative", name)
		}
	}
	if e.Status != "" && e.Status != EmployeeActive && e.Status != EmployeeExited {
		return badRequest(ReasonInvalidInput, "Invalid employee status: %q", e.Status)
	}
	return nil
}

// =============================================================================
// CLIENTS
// =============================================================================

func (r *Registry) CreateClient(ctx context.Context, c Client) (Client, error) {
	c.ExternalID = strings.TrimSpace(c.ExternalID)
	c.CompanyName = strings.TrimSpace(c.CompanyName)
	if c.ExternalID == "" || c.CompanyName == "" {
		return Client{}, badRequest(ReasonInvalidInput, "clientId and companyName are required")
	}
	if err := validateRange(c.ContractStart, c.ContractEnd, "contractEnd"); err != nil {
		return Client{}, err
	}
	existing, err := r.store.GetClientByExternalID(ctx, c.ExternalID)
	if err != nil {
		return Client{}, err
	}
	if existing != nil {
		return Client{}, conflict(ReasonDuplicate, "Client %s already exists", c.ExternalID)
	}

	now := r.now().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := r.store.SaveClient(ctx, c); err != nil {
		return Client{}, err
	}
	return c, nil
}

func (r *Registry) UpdateClient(ctx context.Context, ref string, c Client) (Client, error) {
	current, err := r.GetClient(ctx, ref)
	if err != nil {
		return Client{}, err
	}
	c.CompanyName = strings.TrimSpace(c.CompanyName)
	if c.CompanyName == "" {
		return Client{}, badRequest(ReasonInvalidInput, "companyName is required")
	}
	if err := validateRange(c.ContractStart, c.ContractEnd, "contractEnd"); err != nil {
		return Client{}, err
	}
	c.ID, c.ExternalID, c.CreatedAt = current.ID, current.ExternalID, current.CreatedAt
	c.UpdatedAt = r.now().UTC()
	if err := r.store.SaveClient(ctx, c); err != nil {
		return Client{}, err
	}
	return c, nil
}

func (r *Registry) GetClient(ctx context.Context, ref string) (Client, error) {
	c, err := r.store.GetClientByExternalID(ctx, ref)
	if err != nil {
		return Client{}, err
	}
	if c == nil {
		return Client{}, notFound("Client %s not found", ref)
	}
	return *c, nil
}

func (r *Registry) ListClients(ctx context.Context) ([]Client, error) {
	return r.store.ListClients(ctx)
}

func (r *Registry) DeleteClient(ctx context.Context, ref string) error {
	c, err := r.GetClient(ctx, ref)
	if err != nil {
		return err
	}
	return r.store.DeleteClient(ctx, c.ID)
}

// =============================================================================
// SITES
// =============================================================================

// SiteInput names the owning client by external ID.
type SiteInput struct {
	ExternalID string
	ClientRef  string
	Name       string
	Code       string
}

func (r *Registry) CreateSite(ctx context.Context, in SiteInput) (Site, error) {
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ExternalID == "" || in.Name == "" {
		return Site{}, badRequest(ReasonInvalidInput, "siteId and name are required")
	}
	client, err := r.GetClient(ctx, in.ClientRef)
	if err != nil {
		return Site{}, err
	}
	existing, err := r.store.GetSiteByExternalID(ctx, in.ExternalID)
	if err != nil {
		return Site{}, err
	}
	if existing != nil {
		return Site{}, conflict(ReasonDuplicate, "Site %s already exists", in.ExternalID)
	}

	now := r.now().UTC()
	site := Site{
		ID:               uuid.NewString(),
		ExternalID:       in.ExternalID,
		ClientID:         client.ID,
		Name:             in.Name,
		Code:             strings.TrimSpace(in.Code),
		CreatedAt:        now,
		UpdatedAt:        now,
		ClientExternalID: client.ExternalID,
	}
	if err := r.store.SaveSite(ctx, site); err != nil {
		return Site{}, err
	}
	return site, nil
}

func (r *Registry) UpdateSite(ctx context.Context, ref string, in SiteInput) (Site, error) {
	site, err := r.GetSite(ctx, ref)
	if err != nil {
		return Site{}, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		site.Name = name
	}
	if in.ClientRef != "" {
		client, err := r.GetClient(ctx, in.ClientRef)
		if err != nil {
			return Site{}, err
		}
		site.ClientID, site.ClientExternalID = client.ID, client.ExternalID
	}
	site.Code = strings.TrimSpace(in.Code)
	site.UpdatedAt = r.now().UTC()
	if err := r.store.SaveSite(ctx, site); err != nil {
		return Site{}, err
	}
	return site, nil
}

func (r *Registry) GetSite(ctx context.Context, ref string) (Site, error) {
	s, err := r.store.GetSiteByExternalID(ctx, ref)
	if err != nil {
		return Site{}, err
	}
	if s == nil {
		return Site{}, notFound("Site %s not found", ref)
	}
	return *s, nil
}

// ListSites returns all sites, or only those of clientRef when it is set.
func (r *Registry) ListSites(ctx context.Context, clientRef string) ([]Site, error) {
	if clientRef == "" {
		return r.store.ListSites(ctx)
	}
	client, err := r.GetClient(ctx, clientRef)
	if err != nil {
		return nil, err
	}
	return r.store.ListSitesByClient(ctx, client.ID)
}

func (r *Registry) DeleteSite(ctx context.Context, ref string) error {
	s, err := r.GetSite(ctx, ref)
	if err != nil {
		return err
	}
	return r.store.DeleteSite(ctx, s.ID)
}

// =============================================================================
// DEPLOYMENTS
// =============================================================================

// DeploymentInput names employee and site by external ID.
type DeploymentInput struct {
	ExternalID   string
	EmployeeRef  string
	SiteRef      string
	FromDate     time.Time
	ToDate       *time.Time
	RateOverride decimal.NullDecimal
}

func (r *Registry) CreateDeployment(ctx context.Context, in DeploymentInput) (Deployment, error) {
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.ExternalID == "" {
		return Deployment{}, badRequest(ReasonInvalidInput, "deploymentId is required")
	}
	d, err := r.buildDeployment(ctx, in)
	if err != nil {
		return Deployment{}, err
	}
	existing, err := r.store.GetDeploymentByExternalID(ctx, in.ExternalID)
	if err != nil {
		return Deployment{}, err
	}
	if existing != nil {
		return Deployment{}, conflict(ReasonDuplicate, "Deployment %s already exists", in.ExternalID)
	}

	now := r.now().UTC()
	d.ID = uuid.NewString()
	d.CreatedAt, d.UpdatedAt = now, now
	if err := r.store.SaveDeployment(ctx, d); err != nil {
		return Deployment{}, err
	}
	return d, nil
}

func (r *Registry) UpdateDeployment(ctx context.Context, ref string, in DeploymentInput) (Deployment, error) {
	current, err := r.GetDeployment(ctx, ref)
	if err != nil {
		return Deployment{}, err
	}
	in.ExternalID = current.ExternalID
	d, err := r.buildDeployment(ctx, in)
	if err != nil {
		return Deployment{}, err
	}
	d.ID, d.CreatedAt = current.ID, current.CreatedAt
	d.UpdatedAt = r.now().UTC()
	if err := r.store.SaveDeployment(ctx, d); err != nil {
		return Deployment{}, err
	}
	return d, nil
}

func (r *Registry) buildDeployment(ctx context.Context, in DeploymentInput) (Deployment, error) {
	if in.FromDate.IsZero() {
		return Deployment{}, badRequest(ReasonInvalidInput, "fromDate is required")
	}
	from := DateOnly(in.FromDate)
	var to *time.Time
	if in.ToDate != nil {
		t := DateOnly(*in.ToDate)
		to = &t
	}
	if err := validateRange(&from, to, "toDate"); err != nil {
		return Deployment{}, err
	}
	if in.RateOverride.Valid && in.RateOverride.Decimal.IsNegative() {
		return Deployment{}, badRequest(ReasonInvalidInput, "rateOverride must not be negative")
	}
	emp, err := r.GetEmployee(ctx, in.EmployeeRef)
	if err != nil {
		return Deployment{}, err
	}
	site, err := r.GetSite(ctx, in.SiteRef)
	if err != nil {
		return Deployment{}, err
	}
	return Deployment{
		ExternalID:         in.ExternalID,
		EmployeeID:         emp.ID,
		SiteID:             site.ID,
		FromDate:           from,
		ToDate:             to,
		RateOverride:       in.RateOverride,
		EmployeeExternalID: emp.ExternalID,
		SiteExternalID:     site.ExternalID,
	}, nil
}

func (r *Registry) GetDeployment(ctx context.Context, ref string) (Deployment, error) {
	d, err := r.store.GetDeploymentByExternalID(ctx, ref)
	if err != nil {
		return Deployment{}, err
	}
	if d == nil {
		return Deployment{}, notFound("Deployment %s not found", ref)
	}
	return *d, nil
}

// DeploymentFilter narrows ListDeployments. At most one field is used,
// employee first.
type DeploymentFilter struct {
	EmployeeRef string
	SiteRef     string
}

func (r *Registry) ListDeployments(ctx context.Context, f DeploymentFilter) ([]Deployment, error) {
	switch {
	case f.EmployeeRef != "":
		emp, err := r.GetEmployee(ctx, f.EmployeeRef)
		if err != nil {
			return nil, err
		}
		return r.store.ListDeploymentsByEmployee(ctx, emp.ID)
	case f.SiteRef != "":
		site, err := r.GetSite(ctx, f.SiteRef)
		if err != nil {
			return nil, err
		}
		return r.store.ListDeploymentsBySite(ctx, site.ID)
	default:
		return r.store.ListDeployments(ctx)
	}
}

func (r *Registry) DeleteDeployment(ctx context.Context, ref string) error {
	d, err := r.GetDeployment(ctx, ref)
	if err != nil {
		return err
	}
	return r.store.DeleteDeployment(ctx, d.ID)
}

// =============================================================================
// TRADE CATEGORIES
// =============================================================================

func (r *Registry) CreateTradeCategory(ctx context.Context, tc TradeCategory) (TradeCategory, error) {
	tc.Code = strings.ToUpper(strings.TrimSpace(tc.Code))
	tc.Name = strings.TrimSpace(tc.Name)
	if tc.Code == "" || tc.Name == "" {
		return TradeCategory{}, badRequest(ReasonInvalidInput, "code and name are required")
	}
	if err := validateRules(tc); err != nil {
		return TradeCategory{}, err
	}
	existing, err := r.store.GetTradeCategoryByCode(ctx, tc.Code)
	if err != nil {
		return TradeCategory{}, err
	}
	if existing != nil {
		return TradeCategory{}, conflict(ReasonDuplicate, "Trade category %s already exists", tc.Code)
	}

	now := r.now().UTC()
	tc.ID = uuid.NewString()
	if tc.RuleVersion == "" {
		tc.RuleVersion = DefaultRuleVersion
	}
	tc.CreatedAt, tc.UpdatedAt = now, now
	if err := r.store.SaveTradeCategory(ctx, tc); err != nil {
		return TradeCategory{}, err
	}
	return tc, nil
}

// UpdateTradeCategory replaces name, rules and version. The code is fixed.
func (r *Registry) UpdateTradeCategory(ctx context.Context, ref string, tc TradeCategory) (TradeCategory, error) {
	current, err := r.GetTradeCategory(ctx, ref)
	if err != nil {
		return TradeCategory{}, err
	}
	if err := validateRules(tc); err != nil {
		return TradeCategory{}, err
	}
	if name := strings.TrimSpace(tc.Name); name != "" {
		current.Name = name
	}
	current.Payroll = tc.Payroll
	current.Productivity = tc.Productivity
	if tc.RuleVersion != "" {
		current.RuleVersion = tc.RuleVersion
	}
	current.UpdatedAt = r.now().UTC()
	if err := r.store.SaveTradeCategory(ctx, current); err != nil {
		return TradeCategory{}, err
	}
	return current, nil
}

// GetTradeCategory accepts an ID or a code.
func (r *Registry) GetTradeCategory(ctx context.Context, ref string) (TradeCategory, error) {
	tc, err := r.store.GetTradeCategory(ctx, ref)
	if err != nil {
		return TradeCategory{}, err
	}
	if tc == nil {
		tc, err = r.store.GetTradeCategoryByCode(ctx, strings.ToUpper(strings.TrimSpace(ref)))
		if err != nil {
			return TradeCategory{}, err
		}
	}
	if tc == nil {
		return TradeCategory{}, notFound("Trade category %s not found", ref)
	}
	return *tc, nil
}

// ListTradeCategories returns every trade ordered by code.
func (r *Registry) ListTradeCategories(ctx context.Context) ([]TradeCategory, error) {
	return r.store.ListTradeCategories(ctx)
}

func (r *Registry) DeleteTradeCategory(ctx context.Context, ref string) error {
	tc, err := r.GetTradeCategory(ctx, ref)
	if err != nil {
		return err
	}
	return r.store.DeleteTradeCategory(ctx, tc.ID)
}

func validateRules(tc TradeCategory) error {
	if tc.Payroll != nil {
		for _, s := range tc.Payroll.PaidStatuses {
			if !s.Valid() {
				return badRequest(ReasonInvalidInput, "Invalid paid status: %q", s)
			}
		}
		switch p := tc.Payroll.Overtime.(type) {
		case FixedOvertime:
			if p.Rate.IsNegative() {
				return badRequest(ReasonInvalidInput, "otRate must not be negative")
			}
		case MultiplierOvertime:
			if p.Factor.IsNegative() {
				return badRequest(ReasonInvalidInput, "otMultiplier must not be negative")
			}
		}
	}
	if tc.Productivity != nil {
		for _, s := range tc.Productivity.ProductivityStatuses {
			if !s.Valid() {
				return badRequest(ReasonInvalidInput, "Invalid productivity status: %q", s)
			}
		}
	}
	return nil
}

func validateRange(from, to *time.Time, field string) error {
	if from != nil && to != nil && to.Before(*from) {
		return badRequest(ReasonInvalidInput, "%s must not be before the start date", field)
	}
	return nil
}
