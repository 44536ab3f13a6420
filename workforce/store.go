/*
store.go - Persistence interfaces for the workforce engine

PURPOSE:
  Defines the boundary between business rules and the database. The
  engine never issues SQL; it asks a Store.

CONVENTIONS:
  - Get* returns (nil, nil) when the row does not exist.
  - Save* inserts or updates by ID.
  - Unique-key violations come back as ErrConflict with ReasonDuplicate.

TRANSACTIONS:
  Every mutation guarded by the month lock runs inside TxStore.WithTx, so
  the lock check and the write it guards commit together. Implementations
  must serialize write transactions (SQLite: BEGIN IMMEDIATE); that is what
  closes the gap between "month is unlocked" and "row is written".

IMPLEMENTATIONS:
  - store/sqlite: SQLite via database/sql
*/
package workforce

import (
	"context"
	"time"
)

type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	GetEmployeeByExternalID(ctx context.Context, externalID string) (*Employee, error)
	GetEmployeeByPassport(ctx context.Context, passport string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
}

type ClientStore interface {
	SaveClient(ctx context.Context, c Client) error
	GetClientByExternalID(ctx context.Context, externalID string) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	DeleteClient(ctx context.Context, id string) error
}

type SiteStore interface {
	SaveSite(ctx context.Context, s Site) error
	GetSite(ctx context.Context, id string) (*Site, error)
	GetSiteByExternalID(ctx context.Context, externalID string) (*Site, error)
	GetSiteByCode(ctx context.Context, code string) (*Site, error)
	ListSites(ctx context.Context) ([]Site, error)
	ListSitesByClient(ctx context.Context, clientID string) ([]Site, error)
	DeleteSite(ctx context.Context, id string) error
}

type DeploymentStore interface {
	SaveDeployment(ctx context.Context, d Deployment) error
	GetDeploymentByExternalID(ctx context.Context, externalID string) (*Deployment, error)
	ListDeployments(ctx context.Context) ([]Deployment, error)
	ListDeploymentsByEmployee(ctx context.Context, employeeID string) ([]Deployment, error)
	ListDeploymentsBySite(ctx context.Context, siteID string) ([]Deployment, error)
	// ListDeploymentsOverlapping returns the employee's deployments covering
	// any day of [from, to], ordered by from_date then creation.
	ListDeploymentsOverlapping(ctx context.Context, employeeID string, from, to time.Time) ([]Deployment, error)
	DeleteDeployment(ctx context.Context, id string) error
}

type TradeCategoryStore interface {
	SaveTradeCategory(ctx context.Context, tc TradeCategory) error
	GetTradeCategory(ctx context.Context, id string) (*TradeCategory, error)
	GetTradeCategoryByCode(ctx context.Context, code string) (*TradeCategory, error)
	ListTradeCategories(ctx context.Context) ([]TradeCategory, error)
	DeleteTradeCategory(ctx context.Context, id string) error
}

type MonthLockStore interface {
	GetMonthLock(ctx context.Context, p Period) (*MonthLock, error)
	SaveMonthLock(ctx context.Context, l MonthLock) error
	ListMonthLocks(ctx context.Context) ([]MonthLock, error)
}

type AttendanceStore interface {
	GetAttendance(ctx context.Context, id string) (*AttendanceEvent, error)
	FindAttendance(ctx context.Context, employeeID, siteID string, date time.Time) (*AttendanceEvent, error)
	SaveAttendance(ctx context.Context, e AttendanceEvent) error
	DeleteAttendance(ctx context.Context, id string) error
	// ListAttendanceByEmployee spans all sites, ordered by date.
	ListAttendanceByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]AttendanceEvent, error)
	// ListAttendanceBySite is ordered by date, then employee name.
	ListAttendanceBySite(ctx context.Context, siteID string, from, to time.Time) ([]AttendanceEvent, error)
}

type PayrollStore interface {
	GetPayroll(ctx context.Context, employeeID string, p Period) (*PayrollRecord, error)
	// SavePayroll upserts on (employee, year, month).
	SavePayroll(ctx context.Context, r PayrollRecord) error
	ListPayroll(ctx context.Context, p Period) ([]PayrollRecord, error)
}

type ProductivityStore interface {
	GetProductivity(ctx context.Context, employeeID, siteID string, p Period) (*ProductivityRecord, error)
	// SaveProductivity upserts on (employee, site, year, month).
	SaveProductivity(ctx context.Context, r ProductivityRecord) error
	ListProductivityBySite(ctx context.Context, siteID string, p Period) ([]ProductivityRecord, error)
}

type UploadStore interface {
	SaveUpload(ctx context.Context, u Upload) error
	GetUpload(ctx context.Context, id string) (*Upload, error)
	ListUploads(ctx context.Context) ([]Upload, error)
}

// Store is everything the engine persists.
type Store interface {
	EmployeeStore
	ClientStore
	SiteStore
	DeploymentStore
	TradeCategoryStore
	MonthLockStore
	AttendanceStore
	PayrollStore
	ProductivityStore
	UploadStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
