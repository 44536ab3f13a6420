package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// UpsertAttendance creates or updates the row for (employee, site, date).
// POST /api/attendance
func (h *Handler) UpsertAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date, "date")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	event, err := h.Ledger.Upsert(r.Context(), workforce.UpsertRequest{
		EmployeeRef:   req.EmployeeID,
		SiteRef:       req.SiteID,
		Date:          date,
		Status:        parseStatus(req.Status),
		Source:        workforce.Source(strings.ToUpper(strings.TrimSpace(req.Source))),
		SourceFileRef: req.SourceFileID,
		CreatedBy:     req.CreatedBy,
		Hours:         nullDecimal(req.Hours),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	event.EmployeeExternalID, event.SiteExternalID = req.EmployeeID, req.SiteID
	writeJSON(w, http.StatusOK, toAttendanceDTO(event))
}

// BulkUpsertAttendance writes many rows; row failures are reported in the
// result, never as an HTTP error.
// POST /api/attendance/bulk
func (h *Handler) BulkUpsertAttendance(w http.ResponseWriter, r *http.Request) {
	var req BulkAttendanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rows := make([]workforce.BulkRow, len(req.Events))
	for i, e := range req.Events {
		date, err := parseDate(e.Date, "events["+strconv.Itoa(i)+"].date")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		rows[i] = workforce.BulkRow{
			EmployeeRef: e.EmployeeID,
			SiteRef:     e.SiteID,
			Date:        date,
			Status:      parseStatus(e.Status),
			Hours:       nullDecimal(e.Hours),
		}
	}
	source := workforce.Source(strings.ToUpper(strings.TrimSpace(req.Source)))
	res := h.Ledger.BulkUpsert(r.Context(), rows, source, req.SourceFileID, req.CreatedBy)
	writeJSON(w, http.StatusOK, res)
}

// EmployeeAttendance returns one employee's month across all sites.
// GET /api/attendance/employee/{id}?year=&month=
func (h *Handler) EmployeeAttendance(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	events, err := h.Ledger.QueryByEmployeeMonth(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTOs(events))
}

// SiteAttendance returns a site's rows in an inclusive date range.
// GET /api/attendance/site/{id}?startDate=&endDate=
func (h *Handler) SiteAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("startDate"), "startDate")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	end, err := parseDate(q.Get("endDate"), "endDate")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	events, err := h.Ledger.QueryBySiteRange(r.Context(), chi.URLParam(r, "id"), start, end)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTOs(events))
}

// DeleteAttendance removes one row unless its month is locked.
// DELETE /api/attendance/{id}
func (h *Handler) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, "Attendance deleted successfully")
}

// parseStatus accepts register aliases (O/T, 8.0). Unknown codes pass
// through so the ledger reports them after its lock check.
func parseStatus(s string) workforce.Status {
	if st, ok := workforce.ParseStatus(s); ok {
		return st
	}
	return workforce.Status(strings.TrimSpace(s))
}

func toAttendanceDTOs(events []workforce.AttendanceEvent) []AttendanceDTO {
	dtos := make([]AttendanceDTO, len(events))
	for i, e := range events {
		dtos[i] = toAttendanceDTO(e)
	}
	return dtos
}

// =============================================================================
// MONTH LOCK HANDLERS
// =============================================================================

// ListMonthLocks returns every lock row, newest month first.
// GET /api/month-locks
func (h *Handler) ListMonthLocks(w http.ResponseWriter, r *http.Request) {
	locks, err := h.Locks.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]MonthLockDTO, len(locks))
	for i, l := range locks {
		dtos[i] = toMonthLockDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMonthLock reports a month's state; a month never locked is open.
// GET /api/month-locks/{year}/{month}
func (h *Handler) GetMonthLock(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromPath(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	lock, err := h.Locks.Get(r.Context(), p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if lock == nil {
		lock = &workforce.MonthLock{Period: p}
	}
	writeJSON(w, http.StatusOK, toMonthLockDTO(*lock))
}

// LockMonth freezes a month.
// POST /api/month-locks/lock
func (h *Handler) LockMonth(w http.ResponseWriter, r *http.Request) {
	var req LockMonthRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := workforce.NewPeriod(req.Year, req.Month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	lock, err := h.Locks.Lock(r.Context(), p, req.LockedBy)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthLockDTO(lock))
}

// UnlockMonth reopens a month; reason is mandatory.
// POST /api/month-locks/unlock
func (h *Handler) UnlockMonth(w http.ResponseWriter, r *http.Request) {
	var req UnlockMonthRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := workforce.NewPeriod(req.Year, req.Month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	lock, err := h.Locks.Unlock(r.Context(), p, req.UnlockedBy, req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthLockDTO(lock))
}
