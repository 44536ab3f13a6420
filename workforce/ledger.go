/*
ledger.go - Attendance ledger with source-conflict detection

PURPOSE:
  The ledger is the source of truth payroll and productivity are derived
  from. It holds exactly one row per (employee, site, date).

INVARIANTS:
  1. UNIQUE: at most one event per (employee, site, date).
  2. SOURCE-STICKY: an existing row is only updated by a write from the
     same source. An Excel import cannot clobber a UI correction and vice
     versa; the second write fails with ErrConflict (SOURCE_MISMATCH) and
     an operator resolves it by deleting the row first.
  3. FROZEN MONTHS: no write or delete lands in a locked month.

WRITE SEQUENCE (single transaction):
  1. month of date locked?           -> ErrConflict (MONTH_LOCKED), even
                                        when the rest of the write is invalid
  2. resolve employee and site       -> ErrNotFound
     and the named source upload     -> ErrNotFound, never dropped
  3. look up existing row
  4. existing row from other source? -> ErrConflict (SOURCE_MISMATCH)
  5. insert, or update status/hours

BATCHES:
  BulkUpsert applies Upsert row by row. A failing row is recorded with its
  1-based index and does not stop the others.

SEE ALSO:
  - monthlock.go: the lock this ledger consults
  - payroll.go: consumes QueryByEmployeeMonth
  - productivity.go: consumes QueryBySiteRange
*/
package workforce

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Ledger struct {
	store TxStore
	now   func() time.Time
}

func NewLedger(store TxStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// UpsertRequest is one attendance write. Employee and site are external IDs.
type UpsertRequest struct {
	EmployeeRef   string
	SiteRef       string
	Date          time.Time
	Status        Status
	Source        Source
	SourceFileRef string // upload ID, optional
	CreatedBy     string
	Hours         decimal.NullDecimal
}

// Upsert creates or updates the attendance row for (employee, site, date).
func (l *Ledger) Upsert(ctx context.Context, req UpsertRequest) (AttendanceEvent, error) {
	if req.Date.IsZero() {
		return AttendanceEvent{}, badRequest(ReasonInvalidInput, "date is required")
	}
	date := DateOnly(req.Date)
	period := PeriodOf(date)

	var out AttendanceEvent
	err := l.store.WithTx(ctx, func(s Store) error {
		locked, err := isLocked(ctx, s, period)
		if err != nil {
			return err
		}
		if locked {
			return errMonthLocked(period, "modify attendance")
		}
		if !req.Status.Valid() {
			return badRequest(ReasonInvalidInput, "Invalid attendance status: %q", req.Status)
		}
		if !req.Source.Valid() {
			return badRequest(ReasonInvalidInput, "Invalid attendance source: %q", req.Source)
		}

		emp, err := s.GetEmployeeByExternalID(ctx, req.EmployeeRef)
		if err != nil {
			return err
		}
		if emp == nil {
			return notFound("Employee %s not found", req.EmployeeRef)
		}
		site, err := s.GetSiteByExternalID(ctx, req.SiteRef)
		if err != nil {
			return err
		}
		if site == nil {
			return notFound("Site %s not found", req.SiteRef)
		}

		var sourceFileID string
		if ref := strings.TrimSpace(req.SourceFileRef); ref != "" {
			upload, err := s.GetUpload(ctx, ref)
			if err != nil {
				return err
			}
			if upload == nil {
				return notFound("Upload %s not found", ref)
			}
			sourceFileID = upload.ID
		}

		existing, err := s.FindAttendance(ctx, emp.ID, site.ID, date)
		if err != nil {
			return err
		}
		if existing != nil && existing.Source != req.Source {
			return conflict(ReasonSourceMismatch,
				"Attendance already exists from %s. Please resolve conflict manually.", existing.Source)
		}

		now := l.now().UTC()
		if existing != nil {
			existing.Status = req.Status
			existing.Hours = req.Hours
			existing.UpdatedAt = now
			if err := s.SaveAttendance(ctx, *existing); err != nil {
				return err
			}
			out = *existing
			return nil
		}

		event := AttendanceEvent{
			ID:           uuid.NewString(),
			EmployeeID:   emp.ID,
			SiteID:       site.ID,
			Date:         date,
			Status:       req.Status,
			Hours:        req.Hours,
			Source:       req.Source,
			SourceFileID: sourceFileID,
			CreatedBy:    strings.TrimSpace(req.CreatedBy),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.SaveAttendance(ctx, event); err != nil {
			return err
		}
		out = event
		return nil
	})
	if err != nil {
		return AttendanceEvent{}, err
	}
	out.EmployeeExternalID = req.EmployeeRef
	out.SiteExternalID = req.SiteRef
	return out, nil
}

// BulkRow is one row of a bulk write.
type BulkRow struct {
	EmployeeRef string
	SiteRef     string
	Date        time.Time
	Status      Status
	Hours       decimal.NullDecimal
}

// RowError reports a failed bulk row. Row is 1-based.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type BulkResult struct {
	SuccessCount int        `json:"success"`
	Errors       []RowError `json:"errors"`
}

// BulkUpsert applies Upsert to each row independently.
func (l *Ledger) BulkUpsert(ctx context.Context, rows []BulkRow, source Source, sourceFileRef, createdBy string) BulkResult {
	res := BulkResult{Errors: []RowError{}}
	for i, row := range rows {
		_, err := l.Upsert(ctx, UpsertRequest{
			EmployeeRef:   row.EmployeeRef,
			SiteRef:       row.SiteRef,
			Date:          row.Date,
			Status:        row.Status,
			Source:        source,
			SourceFileRef: sourceFileRef,
			CreatedBy:     createdBy,
			Hours:         row.Hours,
		})
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: i + 1, Error: err.Error()})
			continue
		}
		res.SuccessCount++
	}
	return res
}

// QueryByEmployeeMonth returns the employee's attendance for the month
// across all sites, ordered by date.
func (l *Ledger) QueryByEmployeeMonth(ctx context.Context, employeeRef string, p Period) ([]AttendanceEvent, error) {
	return queryByEmployeeMonth(ctx, l.store, employeeRef, p)
}

func queryByEmployeeMonth(ctx context.Context, s Store, employeeRef string, p Period) ([]AttendanceEvent, error) {
	emp, err := s.GetEmployeeByExternalID(ctx, employeeRef)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, notFound("Employee %s not found", employeeRef)
	}
	return s.ListAttendanceByEmployee(ctx, emp.ID, p.Start(), p.End())
}

// QueryBySiteRange returns a site's attendance in [start, end], ordered by
// date then employee name.
func (l *Ledger) QueryBySiteRange(ctx context.Context, siteRef string, start, end time.Time) ([]AttendanceEvent, error) {
	return queryBySiteRange(ctx, l.store, siteRef, start, end)
}

func queryBySiteRange(ctx context.Context, s Store, siteRef string, start, end time.Time) ([]AttendanceEvent, error) {
	start, end = DateOnly(start), DateOnly(end)
	if end.Before(start) {
		return nil, badRequest(ReasonInvalidInput, "endDate %s is before startDate %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	site, err := s.GetSiteByExternalID(ctx, siteRef)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, notFound("Site %s not found", siteRef)
	}
	return s.ListAttendanceBySite(ctx, site.ID, start, end)
}

// Delete hard-deletes an attendance row unless its month is locked.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	return l.store.WithTx(ctx, func(s Store) error {
		event, err := s.GetAttendance(ctx, id)
		if err != nil {
			return err
		}
		if event == nil {
			return notFound("Attendance %s not found", id)
		}
		period := PeriodOf(event.Date)
		locked, err := isLocked(ctx, s, period)
		if err != nil {
			return err
		}
		if locked {
			return errMonthLocked(period, "delete attendance")
		}
		return s.DeleteAttendance(ctx, id)
	})
}
