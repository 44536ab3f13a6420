package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/site-payroll/rules"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `
	e.id, e.external_id, e.full_name, e.father_name, e.mother_name, e.date_of_birth,
	e.home_address, e.home_phone, e.emergency_contact, e.passport_number,
	e.passport_expiry, e.visa_type, e.visa_expiry, e.passport_doc_url,
	e.visa_doc_url, e.photo_url, e.other_documents, e.trade_category_id,
	e.joining_date, e.recruitment_agency, e.basic_salary, e.food_allowance,
	e.foreman_allowance, e.status, e.created_at, e.updated_at, tc.code`

const employeeSelect = `SELECT` + employeeColumns + `
	FROM employees e
	LEFT JOIN trade_categories tc ON tc.id = e.trade_category_id`

// SaveEmployee inserts or updates an employee by ID.
func (q queries) SaveEmployee(ctx context.Context, e workforce.Employee) error {
	query := `
		INSERT INTO employees (
			id, external_id, full_name, father_name, mother_name, date_of_birth,
			home_address, home_phone, emergency_contact, passport_number,
			passport_expiry, visa_type, visa_expiry, passport_doc_url,
			visa_doc_url, photo_url, other_documents, trade_category_id,
			joining_date, recruitment_agency, basic_salary, food_allowance,
			foreman_allowance, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id = excluded.external_id,
			full_name = excluded.full_name,
			father_name = excluded.father_name,
			mother_name = excluded.mother_name,
			date_of_birth = excluded.date_of_birth,
			home_address = excluded.home_address,
			home_phone = excluded.home_phone,
			emergency_contact = excluded.emergency_contact,
			passport_number = excluded.passport_number,
			passport_expiry = excluded.passport_expiry,
			visa_type = excluded.visa_type,
			visa_expiry = excluded.visa_expiry,
			passport_doc_url = excluded.passport_doc_url,
			visa_doc_url = excluded.visa_doc_url,
			photo_url = excluded.photo_url,
			other_documents = excluded.other_documents,
			trade_category_id = excluded.trade_category_id,
			joining_date = excluded.joining_date,
			recruitment_agency = excluded.recruitment_agency,
			basic_salary = excluded.basic_salary,
			food_allowance = excluded.food_allowance,
			foreman_allowance = excluded.foreman_allowance,
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	docs := e.OtherDocuments
	if docs == nil {
		docs = []workforce.Document{}
	}
	_, err := q.db.ExecContext(ctx, query,
		e.ID, e.ExternalID, e.FullName, nullString(e.FatherName), nullString(e.MotherName),
		nullDate(e.DateOfBirth), nullString(e.HomeAddress), nullString(e.HomePhone),
		nullString(e.EmergencyContact), nullString(e.PassportNumber), nullDate(e.PassportExpiry),
		nullString(e.VisaType), nullDate(e.VisaExpiry), nullString(e.PassportDocURL),
		nullString(e.VisaDocURL), nullString(e.PhotoURL), toJSON(docs),
		nullString(e.TradeCategoryID), nullDate(e.JoiningDate), nullString(e.RecruitmentAgency),
		e.BasicSalary, e.FoodAllowance, e.ForemanAllowance, string(e.Status),
		fmtTime(e.CreatedAt), fmtTime(e.UpdatedAt),
	)
	return mapErr(err, "save employee")
}

func scanEmployee(row scanner) (workforce.Employee, error) {
	var (
		e                                         workforce.Employee
		father, mother, address, phone, emergency sql.NullString
		passport, visaType, passportURL, visaURL  sql.NullString
		photoURL, tradeID, agency, tradeCode      sql.NullString
		dob, passportExp, visaExp, joining        sql.NullString
		docs, status, createdAt, updatedAt        string
	)
	err := row.Scan(
		&e.ID, &e.ExternalID, &e.FullName, &father, &mother, &dob,
		&address, &phone, &emergency, &passport,
		&passportExp, &visaType, &visaExp, &passportURL,
		&visaURL, &photoURL, &docs, &tradeID,
		&joining, &agency, &e.BasicSalary, &e.FoodAllowance,
		&e.ForemanAllowance, &status, &createdAt, &updatedAt, &tradeCode,
	)
	if err != nil {
		return e, err
	}
	e.FatherName, e.MotherName = father.String, mother.String
	e.DateOfBirth = datePtr(dob)
	e.HomeAddress, e.HomePhone, e.EmergencyContact = address.String, phone.String, emergency.String
	e.PassportNumber, e.PassportExpiry = passport.String, datePtr(passportExp)
	e.VisaType, e.VisaExpiry = visaType.String, datePtr(visaExp)
	e.PassportDocURL, e.VisaDocURL, e.PhotoURL = passportURL.String, visaURL.String, photoURL.String
	e.OtherDocuments = []workforce.Document{}
	if err := json.Unmarshal([]byte(docs), &e.OtherDocuments); err != nil {
		return e, fmt.Errorf("employee %s: bad other_documents: %w", e.ExternalID, err)
	}
	e.TradeCategoryID, e.TradeCategoryCode = tradeID.String, tradeCode.String
	e.JoiningDate = datePtr(joining)
	e.RecruitmentAgency = agency.String
	e.Status = workforce.EmployeeStatus(status)
	e.CreatedAt, e.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return e, nil
}

func (q queries) getEmployee(ctx context.Context, where string, arg any) (*workforce.Employee, error) {
	e, err := scanEmployee(q.db.QueryRowContext(ctx, employeeSelect+" WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &e, nil
}

func (q queries) listEmployees(ctx context.Context, where string, args ...any) ([]workforce.Employee, error) {
	query := employeeSelect
	if where != "" {
		query += " WHERE " + where
	}
	rows, err := q.db.QueryContext(ctx, query+" ORDER BY e.full_name, e.external_id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := []workforce.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (q queries) GetEmployee(ctx context.Context, id string) (*workforce.Employee, error) {
	return q.getEmployee(ctx, "e.id = ?", id)
}

func (q queries) GetEmployeeByExternalID(ctx context.Context, externalID string) (*workforce.Employee, error) {
	return q.getEmployee(ctx, "e.external_id = ?", externalID)
}

// GetEmployeeByPassport matches the passport number case-insensitively.
func (q queries) GetEmployeeByPassport(ctx context.Context, passport string) (*workforce.Employee, error) {
	return q.getEmployee(ctx, "UPPER(e.passport_number) = UPPER(?)", passport)
}

// ListEmployees returns all employees ordered by name.
func (q queries) ListEmployees(ctx context.Context) ([]workforce.Employee, error) {
	return q.listEmployees(ctx, "")
}

func (q queries) ListActiveEmployees(ctx context.Context) ([]workforce.Employee, error) {
	return q.listEmployees(ctx, "e.status = ?", string(workforce.EmployeeActive))
}

func (q queries) DeleteEmployee(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	return mapErr(err, "delete employee")
}

// =============================================================================
// CLIENTS
// =============================================================================

const clientSelect = `
	SELECT id, external_id, company_name, contract_start, contract_end, created_at, updated_at
	FROM clients`

func (q queries) SaveClient(ctx context.Context, c workforce.Client) error {
	query := `
		INSERT INTO clients (id, external_id, company_name, contract_start, contract_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id = excluded.external_id,
			company_name = excluded.company_name,
			contract_start = excluded.contract_start,
			contract_end = excluded.contract_end,
			updated_at = excluded.updated_at
	`
	_, err := q.db.ExecContext(ctx, query,
		c.ID, c.ExternalID, c.CompanyName, nullDate(c.ContractStart), nullDate(c.ContractEnd),
		fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt),
	)
	return mapErr(err, "save client")
}

func scanClient(row scanner) (workforce.Client, error) {
	var (
		c                    workforce.Client
		start, end           sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.ExternalID, &c.CompanyName, &start, &end, &createdAt, &updatedAt); err != nil {
		return c, err
	}
	c.ContractStart, c.ContractEnd = datePtr(start), datePtr(end)
	c.CreatedAt, c.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return c, nil
}

func (q queries) GetClientByExternalID(ctx context.Context, externalID string) (*workforce.Client, error) {
	c, err := scanClient(q.db.QueryRowContext(ctx, clientSelect+" WHERE external_id = ?", externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &c, nil
}

func (q queries) ListClients(ctx context.Context) ([]workforce.Client, error) {
	rows, err := q.db.QueryContext(ctx, clientSelect+" ORDER BY company_name")
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := []workforce.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (q queries) DeleteClient(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	return mapErr(err, "delete client")
}

// =============================================================================
// SITES
// =============================================================================

const siteSelect = `
	SELECT s.id, s.external_id, s.client_id, s.name, s.code, s.created_at, s.updated_at, c.external_id
	FROM sites s
	JOIN clients c ON c.id = s.client_id`

func (q queries) SaveSite(ctx context.Context, s workforce.Site) error {
	query := `
		INSERT INTO sites (id, external_id, client_id, name, code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id = excluded.external_id,
			client_id = excluded.client_id,
			name = excluded.name,
			code = excluded.code,
			updated_at = excluded.updated_at
	`
	_, err := q.db.ExecContext(ctx, query,
		s.ID, s.ExternalID, s.ClientID, s.Name, nullString(s.Code),
		fmtTime(s.CreatedAt), fmtTime(s.UpdatedAt),
	)
	return mapErr(err, "save site")
}

func scanSite(row scanner) (workforce.Site, error) {
	var (
		s                    workforce.Site
		code                 sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&s.ID, &s.ExternalID, &s.ClientID, &s.Name, &code, &createdAt, &updatedAt, &s.ClientExternalID); err != nil {
		return s, err
	}
	s.Code = code.String
	s.CreatedAt, s.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return s, nil
}

func (q queries) getSite(ctx context.Context, where string, arg any) (*workforce.Site, error) {
	s, err := scanSite(q.db.QueryRowContext(ctx, siteSelect+" WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return &s, nil
}

func (q queries) listSites(ctx context.Context, where string, args ...any) ([]workforce.Site, error) {
	query := siteSelect
	if where != "" {
		query += " WHERE " + where
	}
	rows, err := q.db.QueryContext(ctx, query+" ORDER BY s.name, s.external_id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	sites := []workforce.Site{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

func (q queries) GetSite(ctx context.Context, id string) (*workforce.Site, error) {
	return q.getSite(ctx, "s.id = ?", id)
}

func (q queries) GetSiteByExternalID(ctx context.Context, externalID string) (*workforce.Site, error) {
	return q.getSite(ctx, "s.external_id = ?", externalID)
}

// GetSiteByCode matches the site code case-insensitively.
func (q queries) GetSiteByCode(ctx context.Context, code string) (*workforce.Site, error) {
	return q.getSite(ctx, "UPPER(s.code) = UPPER(?)", code)
}

func (q queries) ListSites(ctx context.Context) ([]workforce.Site, error) {
	return q.listSites(ctx, "")
}

func (q queries) ListSitesByClient(ctx context.Context, clientID string) ([]workforce.Site, error) {
	return q.listSites(ctx, "s.client_id = ?", clientID)
}

func (q queries) DeleteSite(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM sites WHERE id = ?", id)
	return mapErr(err, "delete site")
}

// =============================================================================
// DEPLOYMENTS
// =============================================================================

const deploymentSelect = `
	SELECT d.id, d.external_id, d.employee_id, d.site_id, d.from_date, d.to_date,
	       d.rate_override, d.created_at, d.updated_at, e.external_id, s.external_id
	FROM deployments d
	JOIN employees e ON e.id = d.employee_id
	JOIN sites s ON s.id = d.site_id`

func (q queries) SaveDeployment(ctx context.Context, d workforce.Deployment) error {
	query := `
		INSERT INTO deployments (id, external_id, employee_id, site_id, from_date, to_date, rate_override, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id = excluded.external_id,
			employee_id = excluded.employee_id,
			site_id = excluded.site_id,
			from_date = excluded.from_date,
			to_date = excluded.to_date,
			rate_override = excluded.rate_override,
			updated_at = excluded.updated_at
	`
	_, err := q.db.ExecContext(ctx, query,
		d.ID, d.ExternalID, d.EmployeeID, d.SiteID, fmtDate(d.FromDate), nullDate(d.ToDate),
		d.RateOverride, fmtTime(d.CreatedAt), fmtTime(d.UpdatedAt),
	)
	return mapErr(err, "save deployment")
}

func scanDeployment(row scanner) (workforce.Deployment, error) {
	var (
		d                          workforce.Deployment
		from, createdAt, updatedAt string
		to                         sql.NullString
		rate                       decimal.NullDecimal
	)
	err := row.Scan(&d.ID, &d.ExternalID, &d.EmployeeID, &d.SiteID, &from, &to,
		&rate, &createdAt, &updatedAt, &d.EmployeeExternalID, &d.SiteExternalID)
	if err != nil {
		return d, err
	}
	d.FromDate, d.ToDate = parseDate(from), datePtr(to)
	d.RateOverride = rate
	d.CreatedAt, d.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return d, nil
}

func (q queries) listDeployments(ctx context.Context, suffix string, args ...any) ([]workforce.Deployment, error) {
	rows, err := q.db.QueryContext(ctx, deploymentSelect+" "+suffix, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	deployments := []workforce.Deployment{}
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

func (q queries) GetDeploymentByExternalID(ctx context.Context, externalID string) (*workforce.Deployment, error) {
	d, err := scanDeployment(q.db.QueryRowContext(ctx, deploymentSelect+" WHERE d.external_id = ?", externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}
	return &d, nil
}

// ListDeployments returns every deployment, latest start first.
func (q queries) ListDeployments(ctx context.Context) ([]workforce.Deployment, error) {
	return q.listDeployments(ctx, "ORDER BY d.from_date DESC, d.created_at DESC")
}

func (q queries) ListDeploymentsByEmployee(ctx context.Context, employeeID string) ([]workforce.Deployment, error) {
	return q.listDeployments(ctx, "WHERE d.employee_id = ? ORDER BY d.from_date DESC, d.created_at DESC", employeeID)
}

func (q queries) ListDeploymentsBySite(ctx context.Context, siteID string) ([]workforce.Deployment, error) {
	return q.listDeployments(ctx, "WHERE d.site_id = ? ORDER BY d.from_date DESC, d.created_at DESC", siteID)
}

func (q queries) ListDeploymentsOverlapping(ctx context.Context, employeeID string, from, to time.Time) ([]workforce.Deployment, error) {
	return q.listDeployments(ctx, `
		WHERE d.employee_id = ?
		  AND d.from_date <= ?
		  AND (d.to_date IS NULL OR d.to_date >= ?)
		ORDER BY d.from_date, d.created_at`,
		employeeID, fmtDate(to), fmtDate(from))
}

func (q queries) DeleteDeployment(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM deployments WHERE id = ?", id)
	return mapErr(err, "delete deployment")
}

// =============================================================================
// TRADE CATEGORIES
// =============================================================================

const tradeSelect = `
	SELECT id, code, name, payroll_rules, productivity_rules, rule_version, created_at, updated_at
	FROM trade_categories`

func (q queries) SaveTradeCategory(ctx context.Context, tc workforce.TradeCategory) error {
	payroll, err := rules.EncodePayroll(tc.Payroll)
	if err != nil {
		return err
	}
	productivity, err := rules.EncodeProductivity(tc.Productivity)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO trade_categories (id, code, name, payroll_rules, productivity_rules, rule_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			payroll_rules = excluded.payroll_rules,
			productivity_rules = excluded.productivity_rules,
			rule_version = excluded.rule_version,
			updated_at = excluded.updated_at
	`
	_, err = q.db.ExecContext(ctx, query,
		tc.ID, tc.Code, tc.Name, nullString(payroll), nullString(productivity), tc.Version(),
		fmtTime(tc.CreatedAt), fmtTime(tc.UpdatedAt),
	)
	return mapErr(err, "save trade category")
}

func scanTradeCategory(row scanner) (workforce.TradeCategory, error) {
	var (
		tc                    workforce.TradeCategory
		payroll, productivity sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(&tc.ID, &tc.Code, &tc.Name, &payroll, &productivity, &tc.RuleVersion, &createdAt, &updatedAt)
	if err != nil {
		return tc, err
	}
	if tc.Payroll, err = rules.DecodePayroll(payroll.String); err != nil {
		return tc, fmt.Errorf("trade category %s: %w", tc.Code, err)
	}
	if tc.Productivity, err = rules.DecodeProductivity(productivity.String); err != nil {
		return tc, fmt.Errorf("trade category %s: %w", tc.Code, err)
	}
	tc.CreatedAt, tc.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return tc, nil
}

func (q queries) getTradeCategory(ctx context.Context, where string, arg any) (*workforce.TradeCategory, error) {
	tc, err := scanTradeCategory(q.db.QueryRowContext(ctx, tradeSelect+" WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade category: %w", err)
	}
	return &tc, nil
}

func (q queries) GetTradeCategory(ctx context.Context, id string) (*workforce.TradeCategory, error) {
	return q.getTradeCategory(ctx, "id = ?", id)
}

func (q queries) GetTradeCategoryByCode(ctx context.Context, code string) (*workforce.TradeCategory, error) {
	return q.getTradeCategory(ctx, "code = ?", code)
}

// ListTradeCategories returns all trade categories ordered by code.
func (q queries) ListTradeCategories(ctx context.Context) ([]workforce.TradeCategory, error) {
	rows, err := q.db.QueryContext(ctx, tradeSelect+" ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to list trade categories: %w", err)
	}
	defer rows.Close()

	categories := []workforce.TradeCategory{}
	for rows.Next() {
		tc, err := scanTradeCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, tc)
	}
	return categories, rows.Err()
}

func (q queries) DeleteTradeCategory(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM trade_categories WHERE id = ?", id)
	return mapErr(err, "delete trade category")
}
