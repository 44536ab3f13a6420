/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: internal UUIDs
  never leave the server, records are named by their external IDs
  ("EMP-001", "SITE-A") and dates travel as YYYY-MM-DD strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

ENVELOPE:
  Every response is wrapped:
    {"success": true,  "data": ...}
    {"success": false, "message": "...", "reason": "MONTH_LOCKED"}

MONEY:
  decimal.Decimal marshals as a JSON string ("2500.00") and accepts either
  a number or a string on input.

VALIDATION:
  Validation is done by the workforce package, not in DTOs. DTOs are pure
  data carriers; handlers only parse dates and periods.

SEE ALSO:
  - handlers.go: Uses these types
  - rules/rules.go: TradeCategoryDoc, the trade category wire form
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/site-payroll/rules"
	"github.com/warp/site-payroll/workforce"
)

const dateLayout = "2006-01-02"

// Envelope wraps every response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	EmployeeID        string               `json:"employeeId"`
	FullName          string               `json:"fullName"`
	FatherName        string               `json:"fatherName,omitempty"`
	MotherName        string               `json:"motherName,omitempty"`
	DateOfBirth       *string              `json:"dateOfBirth,omitempty"`
	HomeAddress       string               `json:"homeAddress,omitempty"`
	HomePhone         string               `json:"homePhone,omitempty"`
	EmergencyContact  string               `json:"emergencyContact,omitempty"`
	PassportNumber    string               `json:"passportNumber,omitempty"`
	PassportExpiry    *string              `json:"passportExpiry,omitempty"`
	VisaType          string               `json:"visaType,omitempty"`
	VisaExpiry        *string              `json:"visaExpiry,omitempty"`
	PassportDocURL    string               `json:"passportDocUrl,omitempty"`
	VisaDocURL        string               `json:"visaDocUrl,omitempty"`
	PhotoURL          string               `json:"photoUrl,omitempty"`
	OtherDocuments    []workforce.Document `json:"otherDocuments"`
	TradeCategory     string               `json:"tradeCategory,omitempty"`
	JoiningDate       *string              `json:"joiningDate,omitempty"`
	RecruitmentAgency string               `json:"recruitmentAgency,omitempty"`
	BasicSalary       *decimal.Decimal     `json:"basicSalary,omitempty"`
	FoodAllowance     *decimal.Decimal     `json:"foodAllowance,omitempty"`
	ForemanAllowance  *decimal.Decimal     `json:"foremanAllowance,omitempty"`
	Status            string               `json:"status"`
	CreatedAt         string               `json:"createdAt"`
	UpdatedAt         string               `json:"updatedAt"`
}

// EmployeeRequest creates or updates an employee. TradeCategory is a code
// or an ID; EmployeeID is ignored on update.
type EmployeeRequest struct {
	EmployeeID        string           `json:"employeeId"`
	FullName          string           `json:"fullName"`
	FatherName        string           `json:"fatherName"`
	MotherName        string           `json:"motherName"`
	DateOfBirth       *string          `json:"dateOfBirth"`
	HomeAddress       string           `json:"homeAddress"`
	HomePhone         string           `json:"homePhone"`
	EmergencyContact  string           `json:"emergencyContact"`
	PassportNumber    string           `json:"passportNumber"`
	PassportExpiry    *string          `json:"passportExpiry"`
	VisaType          string           `json:"visaType"`
	VisaExpiry        *string          `json:"visaExpiry"`
	TradeCategory     string           `json:"tradeCategory"`
	JoiningDate       *string          `json:"joiningDate"`
	RecruitmentAgency string           `json:"recruitmentAgency"`
	BasicSalary       *decimal.Decimal `json:"basicSalary"`
	FoodAllowance     *decimal.Decimal `json:"foodAllowance"`
	ForemanAllowance  *decimal.Decimal `json:"foremanAllowance"`
	Status            string           `json:"status"`
}

func (req EmployeeRequest) toEmployee() (workforce.Employee, error) {
	e := workforce.Employee{
		ExternalID:        req.EmployeeID,
		FullName:          req.FullName,
		FatherName:        req.FatherName,
		MotherName:        req.MotherName,
		HomeAddress:       req.HomeAddress,
		HomePhone:         req.HomePhone,
		EmergencyContact:  req.EmergencyContact,
		PassportNumber:    req.PassportNumber,
		VisaType:          req.VisaType,
		RecruitmentAgency: req.RecruitmentAgency,
		BasicSalary:       nullDecimal(req.BasicSalary),
		FoodAllowance:     nullDecimal(req.FoodAllowance),
		ForemanAllowance:  nullDecimal(req.ForemanAllowance),
		Status:            workforce.EmployeeStatus(req.Status),
	}
	var err error
	if e.DateOfBirth, err = optionalDate(req.DateOfBirth, "dateOfBirth"); err != nil {
		return e, err
	}
	if e.PassportExpiry, err = optionalDate(req.PassportExpiry, "passportExpiry"); err != nil {
		return e, err
	}
	if e.VisaExpiry, err = optionalDate(req.VisaExpiry, "visaExpiry"); err != nil {
		return e, err
	}
	if e.JoiningDate, err = optionalDate(req.JoiningDate, "joiningDate"); err != nil {
		return e, err
	}
	return e, nil
}

func toEmployeeDTO(e workforce.Employee) EmployeeDTO {
	docs := e.OtherDocuments
	if docs == nil {
		docs = []workforce.Document{}
	}
	return EmployeeDTO{
		EmployeeID:        e.ExternalID,
		FullName:          e.FullName,
		FatherName:        e.FatherName,
		MotherName:        e.MotherName,
		DateOfBirth:       formatOptionalDate(e.DateOfBirth),
		HomeAddress:       e.HomeAddress,
		HomePhone:         e.HomePhone,
		EmergencyContact:  e.EmergencyContact,
		PassportNumber:    e.PassportNumber,
		PassportExpiry:    formatOptionalDate(e.PassportExpiry),
		VisaType:          e.VisaType,
		VisaExpiry:        formatOptionalDate(e.VisaExpiry),
		PassportDocURL:    e.PassportDocURL,
		VisaDocURL:        e.VisaDocURL,
		PhotoURL:          e.PhotoURL,
		OtherDocuments:    docs,
		TradeCategory:     e.TradeCategoryCode,
		JoiningDate:       formatOptionalDate(e.JoiningDate),
		RecruitmentAgency: e.RecruitmentAgency,
		BasicSalary:       decimalPtr(e.BasicSalary),
		FoodAllowance:     decimalPtr(e.FoodAllowance),
		ForemanAllowance:  decimalPtr(e.ForemanAllowance),
		Status:            string(e.Status),
		CreatedAt:         e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         e.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// CLIENTS AND SITES
// =============================================================================

type ClientDTO struct {
	ClientID      string  `json:"clientId"`
	CompanyName   string  `json:"companyName"`
	ContractStart *string `json:"contractStart,omitempty"`
	ContractEnd   *string `json:"contractEnd,omitempty"`
	CreatedAt     string  `json:"createdAt"`
}

type ClientRequest struct {
	ClientID      string  `json:"clientId"`
	CompanyName   string  `json:"companyName"`
	ContractStart *string `json:"contractStart"`
	ContractEnd   *string `json:"contractEnd"`
}

func (req ClientRequest) toClient() (workforce.Client, error) {
	c := workforce.Client{ExternalID: req.ClientID, CompanyName: req.CompanyName}
	var err error
	if c.ContractStart, err = optionalDate(req.ContractStart, "contractStart"); err != nil {
		return c, err
	}
	if c.ContractEnd, err = optionalDate(req.ContractEnd, "contractEnd"); err != nil {
		return c, err
	}
	return c, nil
}

func toClientDTO(c workforce.Client) ClientDTO {
	return ClientDTO{
		ClientID:      c.ExternalID,
		CompanyName:   c.CompanyName,
		ContractStart: formatOptionalDate(c.ContractStart),
		ContractEnd:   formatOptionalDate(c.ContractEnd),
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
}

type SiteDTO struct {
	SiteID    string `json:"siteId"`
	ClientID  string `json:"clientId"`
	Name      string `json:"name"`
	SiteCode  string `json:"siteCode,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type SiteRequest struct {
	SiteID   string `json:"siteId"`
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	SiteCode string `json:"siteCode"`
}

func (req SiteRequest) toInput() workforce.SiteInput {
	return workforce.SiteInput{ExternalID: req.SiteID, ClientRef: req.ClientID, Name: req.Name, Code: req.SiteCode}
}

func toSiteDTO(s workforce.Site) SiteDTO {
	return SiteDTO{
		SiteID:    s.ExternalID,
		ClientID:  s.ClientExternalID,
		Name:      s.Name,
		SiteCode:  s.Code,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// DEPLOYMENTS
// =============================================================================

type DeploymentDTO struct {
	DeploymentID string           `json:"deploymentId"`
	EmployeeID   string           `json:"employeeId"`
	SiteID       string           `json:"siteId"`
	FromDate     string           `json:"fromDate"`
	ToDate       *string          `json:"toDate,omitempty"`
	RateOverride *decimal.Decimal `json:"rateOverride,omitempty"`
	CreatedAt    string           `json:"createdAt"`
}

type DeploymentRequest struct {
	DeploymentID string           `json:"deploymentId"`
	EmployeeID   string           `json:"employeeId"`
	SiteID       string           `json:"siteId"`
	FromDate     string           `json:"fromDate"`
	ToDate       *string          `json:"toDate"`
	RateOverride *decimal.Decimal `json:"rateOverride"`
}

func (req DeploymentRequest) toInput() (workforce.DeploymentInput, error) {
	in := workforce.DeploymentInput{
		ExternalID:   req.DeploymentID,
		EmployeeRef:  req.EmployeeID,
		SiteRef:      req.SiteID,
		RateOverride: nullDecimal(req.RateOverride),
	}
	from, err := parseDate(req.FromDate, "fromDate")
	if err != nil {
		return in, err
	}
	in.FromDate = from
	if in.ToDate, err = optionalDate(req.ToDate, "toDate"); err != nil {
		return in, err
	}
	return in, nil
}

func toDeploymentDTO(d workforce.Deployment) DeploymentDTO {
	return DeploymentDTO{
		DeploymentID: d.ExternalID,
		EmployeeID:   d.EmployeeExternalID,
		SiteID:       d.SiteExternalID,
		FromDate:     d.FromDate.Format(dateLayout),
		ToDate:       formatOptionalDate(d.ToDate),
		RateOverride: decimalPtr(d.RateOverride),
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// TRADE CATEGORIES
// =============================================================================

type TradeCategoryDTO struct {
	ID string `json:"id"`
	rules.TradeCategoryDoc
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toTradeCategoryDTO(tc workforce.TradeCategory) TradeCategoryDTO {
	return TradeCategoryDTO{
		ID:               tc.ID,
		TradeCategoryDoc: rules.FromTradeCategory(tc),
		CreatedAt:        tc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        tc.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceDTO struct {
	ID           string           `json:"id"`
	EmployeeID   string           `json:"employeeId"`
	EmployeeName string           `json:"employeeName,omitempty"`
	SiteID       string           `json:"siteId"`
	SiteName     string           `json:"siteName,omitempty"`
	Date         string           `json:"date"`
	Status       string           `json:"status"`
	Hours        *decimal.Decimal `json:"hours,omitempty"`
	Source       string           `json:"source"`
	SourceFileID string           `json:"sourceFileId,omitempty"`
	CreatedBy    string           `json:"createdBy,omitempty"`
	CreatedAt    string           `json:"createdAt"`
	UpdatedAt    string           `json:"updatedAt"`
}

type AttendanceRequest struct {
	EmployeeID   string           `json:"employeeId"`
	SiteID       string           `json:"siteId"`
	Date         string           `json:"date"`
	Status       string           `json:"status"`
	Source       string           `json:"source"`
	SourceFileID string           `json:"sourceFileId"`
	CreatedBy    string           `json:"createdBy"`
	Hours        *decimal.Decimal `json:"hours"`
}

type BulkAttendanceEvent struct {
	EmployeeID string           `json:"employeeId"`
	SiteID     string           `json:"siteId"`
	Date       string           `json:"date"`
	Status     string           `json:"status"`
	Hours      *decimal.Decimal `json:"hours"`
}

type BulkAttendanceRequest struct {
	Events       []BulkAttendanceEvent `json:"events"`
	Source       string                `json:"source"`
	SourceFileID string                `json:"sourceFileId"`
	CreatedBy    string                `json:"createdBy"`
}

func toAttendanceDTO(e workforce.AttendanceEvent) AttendanceDTO {
	return AttendanceDTO{
		ID:           e.ID,
		EmployeeID:   e.EmployeeExternalID,
		EmployeeName: e.EmployeeName,
		SiteID:       e.SiteExternalID,
		SiteName:     e.SiteName,
		Date:         e.Date.Format(dateLayout),
		Status:       string(e.Status),
		Hours:        decimalPtr(e.Hours),
		Source:       string(e.Source),
		SourceFileID: e.SourceFileID,
		CreatedBy:    e.CreatedBy,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    e.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PAYROLL AND PRODUCTIVITY
// =============================================================================

type PayrollDTO struct {
	EmployeeID   string          `json:"employeeId"`
	EmployeeName string          `json:"employeeName,omitempty"`
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	PaidDays     int             `json:"paidDays"`
	OTCount      int             `json:"otCount"`
	DailyRate    decimal.Decimal `json:"dailyRate"`
	Salary       decimal.Decimal `json:"salary"`
	OTAmount     decimal.Decimal `json:"otAmount"`
	NetSalary    decimal.Decimal `json:"netSalary"`
	RuleVersion  string          `json:"ruleVersion"`
	CalculatedAt string          `json:"calculatedAt"`
	CalculatedBy string          `json:"calculatedBy,omitempty"`
}

type CalculatePayrollRequest struct {
	EmployeeID   string `json:"employeeId"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	Recalculate  bool   `json:"recalculate"`
	CalculatedBy string `json:"calculatedBy"`
}

type RecalculateMonthRequest struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	CalculatedBy string `json:"calculatedBy"`
}

func toPayrollDTO(p workforce.PayrollRecord) PayrollDTO {
	return PayrollDTO{
		EmployeeID:   p.EmployeeExternalID,
		EmployeeName: p.EmployeeName,
		Year:         p.Period.Year,
		Month:        int(p.Period.Month),
		PaidDays:     p.PaidDays,
		OTCount:      p.OTCount,
		DailyRate:    p.DailyRate,
		Salary:       p.Salary,
		OTAmount:     p.OTAmount,
		NetSalary:    p.NetSalary,
		RuleVersion:  p.RuleVersion,
		CalculatedAt: p.CalculatedAt.Format(time.RFC3339),
		CalculatedBy: p.CalculatedBy,
	}
}

type ProductivityDTO struct {
	EmployeeID       string          `json:"employeeId"`
	EmployeeName     string          `json:"employeeName,omitempty"`
	SiteID           string          `json:"siteId"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	ProductivityDays int             `json:"productivityDays"`
	ProductivityRate decimal.Decimal `json:"productivityRate"`
	Amount           decimal.Decimal `json:"productivityAmount"`
	RuleVersion      string          `json:"ruleVersion"`
	CalculatedAt     string          `json:"calculatedAt"`
	CalculatedBy     string          `json:"calculatedBy,omitempty"`
}

type CalculateProductivityRequest struct {
	EmployeeID       string          `json:"employeeId"`
	SiteID           string          `json:"siteId"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	ProductivityRate decimal.Decimal `json:"productivityRate"`
	CalculatedBy     string          `json:"calculatedBy"`
}

func toProductivityDTO(p workforce.ProductivityRecord) ProductivityDTO {
	return ProductivityDTO{
		EmployeeID:       p.EmployeeExternalID,
		EmployeeName:     p.EmployeeName,
		SiteID:           p.SiteExternalID,
		Year:             p.Period.Year,
		Month:            int(p.Period.Month),
		ProductivityDays: p.ProductivityDays,
		ProductivityRate: p.Rate,
		Amount:           p.Amount,
		RuleVersion:      p.RuleVersion,
		CalculatedAt:     p.CalculatedAt.Format(time.RFC3339),
		CalculatedBy:     p.CalculatedBy,
	}
}

// =============================================================================
// MONTH LOCKS
// =============================================================================

type MonthLockDTO struct {
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	IsLocked     bool    `json:"isLocked"`
	LockedBy     string  `json:"lockedBy,omitempty"`
	LockedAt     *string `json:"lockedAt,omitempty"`
	UnlockedBy   string  `json:"unlockedBy,omitempty"`
	UnlockReason string  `json:"unlockReason,omitempty"`
	UnlockedAt   *string `json:"unlockedAt,omitempty"`
}

type LockMonthRequest struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	LockedBy string `json:"lockedBy"`
}

type UnlockMonthRequest struct {
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	UnlockedBy string `json:"unlockedBy"`
	Reason     string `json:"reason"`
}

func toMonthLockDTO(l workforce.MonthLock) MonthLockDTO {
	return MonthLockDTO{
		Year:         l.Period.Year,
		Month:        int(l.Period.Month),
		IsLocked:     l.Locked,
		LockedBy:     l.LockedBy,
		LockedAt:     formatOptionalTime(l.LockedAt),
		UnlockedBy:   l.UnlockedBy,
		UnlockReason: l.UnlockReason,
		UnlockedAt:   formatOptionalTime(l.UnlockedAt),
	}
}

// =============================================================================
// UPLOADS
// =============================================================================

type UploadDTO struct {
	ID               string                  `json:"id"`
	Filename         string                  `json:"filename"`
	OriginalFilename string                  `json:"originalFilename"`
	Type             string                  `json:"uploadType"`
	Status           string                  `json:"status"`
	Year             int                     `json:"year,omitempty"`
	Month            int                     `json:"month,omitempty"`
	TotalRows        int                     `json:"totalRows"`
	ProcessedRows    int                     `json:"processedRows"`
	SuccessRows      int                     `json:"successRows"`
	ErrorRows        int                     `json:"errorRows"`
	Errors           []workforce.UploadError `json:"errors"`
	Mapping          map[string]string       `json:"mapping,omitempty"`
	UploadedBy       string                  `json:"uploadedBy,omitempty"`
	CreatedAt        string                  `json:"createdAt"`
}

func toUploadDTO(u workforce.Upload) UploadDTO {
	dto := UploadDTO{
		ID:               u.ID,
		Filename:         u.Filename,
		OriginalFilename: u.OriginalFilename,
		Type:             string(u.Type),
		Status:           string(u.Status),
		TotalRows:        u.TotalRows,
		ProcessedRows:    u.ProcessedRows,
		SuccessRows:      u.SuccessRows,
		ErrorRows:        u.ErrorRows,
		Errors:           u.Errors,
		Mapping:          u.Mapping,
		UploadedBy:       u.UploadedBy,
		CreatedAt:        u.CreatedAt.Format(time.RFC3339),
	}
	if dto.Errors == nil {
		dto.Errors = []workforce.UploadError{}
	}
	if u.Period != nil {
		dto.Year, dto.Month = u.Period.Year, int(u.Period.Month)
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func parseDate(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, workforce.BadRequestf(workforce.ReasonInvalidInput, "%s is required", field)
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return workforce.DateOnly(t), nil
	}
	return time.Time{}, workforce.BadRequestf(workforce.ReasonInvalidInput, "Invalid %s format (use YYYY-MM-DD)", field)
}

func optionalDate(s *string, field string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseDate(*s, field)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
