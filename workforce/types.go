/*
Package workforce provides the attendance, payroll and productivity engine.

PURPOSE:
  Site workers are deployed to client sites and mark attendance once per
  day per site. At month end their attendance is turned into a payroll
  record (paid days x daily rate plus overtime) and, per site, into a
  productivity record. A month lock freezes a month once it is finalized.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status: attendance status codes (P, A, OT, PH, ML, OD, 8, 8.5)
  - Source: where an attendance row came from (EXCEL or UI)
  - Registry records: Employee, Client, Site, Deployment
  - Ledger record: AttendanceEvent
  - Derived records: PayrollRecord, ProductivityRecord
  - MonthLock: the per-month freeze flag

IDENTIFIERS:
  Every record has an internal ID (UUID, never shown to operators).
  Employees, clients, sites and deployments also carry an ExternalID: the
  code operators type and spreadsheets contain ("EMP-001", "SITE-DXB-04").
  Public operations accept external IDs and resolve them internally.

MONEY:
  All rates and amounts are decimal.Decimal. Optional amounts use
  decimal.NullDecimal so "not set" is distinct from zero.

SEE ALSO:
  - rules.go: Trade categories and the overtime policy variant
  - ledger.go: Attendance ledger invariants
  - payroll.go, productivity.go: The calculators
*/
package workforce

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ATTENDANCE STATUS
// =============================================================================

// Status is an attendance status code as written on the site register.
type Status string

const (
	StatusPresent       Status = "P"
	StatusAbsent        Status = "A"
	StatusOvertime      Status = "OT"
	StatusPublicHoliday Status = "PH"
	StatusMedicalLeave  Status = "ML"
	StatusOnDuty        Status = "OD"
	StatusShift8        Status = "8"   // fixed 8-hour shift
	StatusShift8_5      Status = "8.5" // fixed 8.5-hour shift
)

// AllStatuses lists every valid status code.
var AllStatuses = []Status{
	StatusPresent, StatusAbsent, StatusOvertime, StatusPublicHoliday,
	StatusMedicalLeave, StatusOnDuty, StatusShift8, StatusShift8_5,
}

// statusAliases maps the spellings found in site registers to status codes.
var statusAliases = map[string]Status{
	"P":   StatusPresent,
	"A":   StatusAbsent,
	"OT":  StatusOvertime,
	"O/T": StatusOvertime,
	"PH":  StatusPublicHoliday,
	"ML":  StatusMedicalLeave,
	"OD":  StatusOnDuty,
	"8":   StatusShift8,
	"8.0": StatusShift8,
	"8.5": StatusShift8_5,
}

// ParseStatus accepts a status code or one of its register aliases,
// case-insensitively.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusAliases[strings.ToUpper(strings.TrimSpace(s))]
	return st, ok
}

// Valid reports whether s is one of the canonical status codes.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// StatusSet is an ordered set of status codes used by the rule table.
type StatusSet []Status

// Contains reports whether st is in the set.
func (ss StatusSet) Contains(st Status) bool {
	for _, s := range ss {
		if s == st {
			return true
		}
	}
	return false
}

// Count returns how many events have a status in the set.
func (ss StatusSet) Count(events []AttendanceEvent) int {
	n := 0
	for _, e := range events {
		if ss.Contains(e.Status) {
			n++
		}
	}
	return n
}

// =============================================================================
// ATTENDANCE SOURCE
// =============================================================================

// Source identifies the input channel that produced an attendance row.
// Rows from different sources never overwrite each other.
type Source string

const (
	SourceExcel Source = "EXCEL"
	SourceUI    Source = "UI"
)

func (s Source) Valid() bool { return s == SourceExcel || s == SourceUI }

// =============================================================================
// REGISTRY RECORDS
// =============================================================================

type EmployeeStatus string

const (
	EmployeeActive EmployeeStatus = "active"
	EmployeeExited EmployeeStatus = "exited"
)

// Document is an extra file attached to an employee.
type Document struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type Employee struct {
	ID                string
	ExternalID        string
	FullName          string
	FatherName        string
	MotherName        string
	DateOfBirth       *time.Time
	HomeAddress       string
	HomePhone         string
	EmergencyContact  string
	PassportNumber    string
	PassportExpiry    *time.Time
	VisaType          string
	VisaExpiry        *time.Time
	PassportDocURL    string
	VisaDocURL        string
	PhotoURL          string
	OtherDocuments    []Document
	TradeCategoryID   string // empty when no trade is assigned
	JoiningDate       *time.Time
	RecruitmentAgency string
	BasicSalary       decimal.NullDecimal
	FoodAllowance     decimal.NullDecimal
	ForemanAllowance  decimal.NullDecimal
	Status            EmployeeStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time

	TradeCategoryCode string // read-side join
}

type Client struct {
	ID            string
	ExternalID    string
	CompanyName   string
	ContractStart *time.Time
	ContractEnd   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Site struct {
	ID         string
	ExternalID string
	ClientID   string
	Name       string
	Code       string // secondary identifier used on some registers
	CreatedAt  time.Time
	UpdatedAt  time.Time

	ClientExternalID string // read-side join
}

// Deployment places an employee at a site for a date range. Only the rate
// override matters to payroll.
type Deployment struct {
	ID           string
	ExternalID   string
	EmployeeID   string
	SiteID       string
	FromDate     time.Time
	ToDate       *time.Time // nil = open-ended
	RateOverride decimal.NullDecimal
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Read-side joins.
	EmployeeExternalID string
	SiteExternalID     string
}

// Overlaps reports whether the deployment covers any day of the period.
func (d Deployment) Overlaps(p Period) bool {
	if d.FromDate.After(p.End()) {
		return false
	}
	return d.ToDate == nil || !d.ToDate.Before(p.Start())
}

// =============================================================================
// ATTENDANCE EVENT - One row per (employee, site, date)
// =============================================================================

type AttendanceEvent struct {
	ID           string
	EmployeeID   string
	SiteID       string
	Date         time.Time // midnight UTC
	Status       Status
	Hours        decimal.NullDecimal
	Source       Source
	SourceFileID string
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Read-side joins, filled by queries.
	EmployeeExternalID string
	EmployeeName       string
	SiteExternalID     string
	SiteName           string
}

// =============================================================================
// DERIVED RECORDS - Written only by the calculators
// =============================================================================

type PayrollRecord struct {
	ID           string
	EmployeeID   string
	Period       Period
	PaidDays     int
	OTCount      int
	DailyRate    decimal.Decimal
	Salary       decimal.Decimal
	OTAmount     decimal.Decimal
	NetSalary    decimal.Decimal
	RuleVersion  string
	CalculatedAt time.Time
	CalculatedBy string

	EmployeeExternalID string
	EmployeeName       string
}

type ProductivityRecord struct {
	ID               string
	EmployeeID       string
	SiteID           string
	Period           Period
	ProductivityDays int
	Rate             decimal.Decimal
	Amount           decimal.Decimal
	RuleVersion      string
	CalculatedAt     time.Time
	CalculatedBy     string

	EmployeeExternalID string
	EmployeeName       string
	SiteExternalID     string
}

// =============================================================================
// MONTH LOCK
// =============================================================================

type MonthLock struct {
	ID           string
	Period       Period
	Locked       bool
	LockedBy     string
	LockedAt     *time.Time
	UnlockedBy   string
	UnlockReason string
	UnlockedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
