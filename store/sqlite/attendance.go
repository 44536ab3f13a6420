package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// MONTH LOCKS
// =============================================================================

const lockSelect = `
	SELECT id, year, month, is_locked, locked_by, locked_at, unlocked_by,
	       unlock_reason, unlocked_at, created_at, updated_at
	FROM month_locks`

func (q queries) SaveMonthLock(ctx context.Context, l workforce.MonthLock) error {
	query := `
		INSERT INTO month_locks (id, year, month, is_locked, locked_by, locked_at,
			unlocked_by, unlock_reason, unlocked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_locked = excluded.is_locked,
			locked_by = excluded.locked_by,
			locked_at = excluded.locked_at,
			unlocked_by = excluded.unlocked_by,
			unlock_reason = excluded.unlock_reason,
			unlocked_at = excluded.unlocked_at,
			updated_at = excluded.updated_at
	`
	_, err := q.db.ExecContext(ctx, query,
		l.ID, l.Period.Year, int(l.Period.Month), l.Locked, nullString(l.LockedBy), nullTime(l.LockedAt),
		nullString(l.UnlockedBy), nullString(l.UnlockReason), nullTime(l.UnlockedAt),
		fmtTime(l.CreatedAt), fmtTime(l.UpdatedAt),
	)
	return mapErr(err, "save month lock")
}

func scanMonthLock(row scanner) (workforce.MonthLock, error) {
	var (
		l                            workforce.MonthLock
		month                        int
		lockedBy, unlockedBy, reason sql.NullString
		lockedAt, unlockedAt         sql.NullString
		createdAt, updatedAt         string
	)
	err := row.Scan(&l.ID, &l.Period.Year, &month, &l.Locked, &lockedBy, &lockedAt,
		&unlockedBy, &reason, &unlockedAt, &createdAt, &updatedAt)
	if err != nil {
		return l, err
	}
	l.Period.Month = time.Month(month)
	l.LockedBy, l.LockedAt = lockedBy.String, timePtr(lockedAt)
	l.UnlockedBy, l.UnlockReason, l.UnlockedAt = unlockedBy.String, reason.String, timePtr(unlockedAt)
	l.CreatedAt, l.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return l, nil
}

func (q queries) GetMonthLock(ctx context.Context, p workforce.Period) (*workforce.MonthLock, error) {
	l, err := scanMonthLock(q.db.QueryRowContext(ctx, lockSelect+" WHERE year = ? AND month = ?", p.Year, int(p.Month)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get month lock: %w", err)
	}
	return &l, nil
}

// ListMonthLocks returns every lock row, newest month first.
func (q queries) ListMonthLocks(ctx context.Context) ([]workforce.MonthLock, error) {
	rows, err := q.db.QueryContext(ctx, lockSelect+" ORDER BY year DESC, month DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list month locks: %w", err)
	}
	defer rows.Close()

	locks := []workforce.MonthLock{}
	for rows.Next() {
		l, err := scanMonthLock(rows)
		if err != nil {
			return nil, err
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

// =============================================================================
// ATTENDANCE LEDGER
// =============================================================================

const attendanceSelect = `
	SELECT a.id, a.employee_id, a.site_id, a.date, a.status, a.hours, a.source,
	       a.source_file_id, a.created_by, a.created_at, a.updated_at,
	       e.external_id, e.full_name, s.external_id, s.name
	FROM attendance_events a
	JOIN employees e ON e.id = a.employee_id
	JOIN sites s ON s.id = a.site_id`

// SaveAttendance inserts or updates an event by ID. Only status and hours
// change on update; the source is fixed at creation.
func (q queries) SaveAttendance(ctx context.Context, a workforce.AttendanceEvent) error {
	query := `
		INSERT INTO attendance_events (id, employee_id, site_id, date, status, hours, source,
			source_file_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			hours = excluded.hours,
			updated_at = excluded.updated_at
	`
	_, err := q.db.ExecContext(ctx, query,
		a.ID, a.EmployeeID, a.SiteID, fmtDate(a.Date), string(a.Status), a.Hours, string(a.Source),
		nullString(a.SourceFileID), nullString(a.CreatedBy), fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt),
	)
	return mapErr(err, "save attendance")
}

func scanAttendance(row scanner) (workforce.AttendanceEvent, error) {
	var (
		a                    workforce.AttendanceEvent
		date, status, source string
		fileID, createdBy    sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.EmployeeID, &a.SiteID, &date, &status, &a.Hours, &source,
		&fileID, &createdBy, &createdAt, &updatedAt,
		&a.EmployeeExternalID, &a.EmployeeName, &a.SiteExternalID, &a.SiteName)
	if err != nil {
		return a, err
	}
	a.Date = parseDate(date)
	a.Status, a.Source = workforce.Status(status), workforce.Source(source)
	a.SourceFileID, a.CreatedBy = fileID.String, createdBy.String
	a.CreatedAt, a.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return a, nil
}

func (q queries) getAttendance(ctx context.Context, where string, args ...any) (*workforce.AttendanceEvent, error) {
	a, err := scanAttendance(q.db.QueryRowContext(ctx, attendanceSelect+" WHERE "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	return &a, nil
}

func (q queries) listAttendance(ctx context.Context, suffix string, args ...any) ([]workforce.AttendanceEvent, error) {
	rows, err := q.db.QueryContext(ctx, attendanceSelect+" "+suffix, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	events := []workforce.AttendanceEvent{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, a)
	}
	return events, rows.Err()
}

func (q queries) GetAttendance(ctx context.Context, id string) (*workforce.AttendanceEvent, error) {
	return q.getAttendance(ctx, "a.id = ?", id)
}

func (q queries) FindAttendance(ctx context.Context, employeeID, siteID string, date time.Time) (*workforce.AttendanceEvent, error) {
	return q.getAttendance(ctx, "a.employee_id = ? AND a.site_id = ? AND a.date = ?", employeeID, siteID, fmtDate(date))
}

func (q queries) DeleteAttendance(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM attendance_events WHERE id = ?", id)
	return mapErr(err, "delete attendance")
}

func (q queries) ListAttendanceByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]workforce.AttendanceEvent, error) {
	return q.listAttendance(ctx,
		"WHERE a.employee_id = ? AND a.date BETWEEN ? AND ? ORDER BY a.date, s.name",
		employeeID, fmtDate(from), fmtDate(to))
}

func (q queries) ListAttendanceBySite(ctx context.Context, siteID string, from, to time.Time) ([]workforce.AttendanceEvent, error) {
	return q.listAttendance(ctx,
		"WHERE a.site_id = ? AND a.date BETWEEN ? AND ? ORDER BY a.date, e.full_name",
		siteID, fmtDate(from), fmtDate(to))
}

// =============================================================================
// PAYROLL
// =============================================================================

const payrollSelect = `
	SELECT p.id, p.employee_id, p.year, p.month, p.paid_days, p.ot_count, p.daily_rate,
	       p.salary, p.ot_amount, p.net_salary, p.rule_version, p.calculated_at,
	       p.calculated_by, e.external_id, e.full_name
	FROM payroll_records p
	JOIN employees e ON e.id = p.employee_id`

// SavePayroll upserts on (employee, year, month). Every derived field is
// overwritten.
func (q queries) SavePayroll(ctx context.Context, r workforce.PayrollRecord) error {
	query := `
		INSERT INTO payroll_records (id, employee_id, year, month, paid_days, ot_count, daily_rate,
			salary, ot_amount, net_salary, rule_version, calculated_at, calculated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year, month) DO UPDATE SET
			paid_days = excluded.paid_days,
			ot_count = excluded.ot_count,
			daily_rate = excluded.daily_rate,
			salary = excluded.salary,
			ot_amount = excluded.ot_amount,
			net_salary = excluded.net_salary,
			rule_version = excluded.rule_version,
			calculated_at = excluded.calculated_at,
			calculated_by = excluded.calculated_by
	`
	_, err := q.db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.Period.Year, int(r.Period.Month), r.PaidDays, r.OTCount, r.DailyRate,
		r.Salary, r.OTAmount, r.NetSalary, r.RuleVersion, fmtTime(r.CalculatedAt), r.CalculatedBy,
	)
	return mapErr(err, "save payroll")
}

func scanPayroll(row scanner) (workforce.PayrollRecord, error) {
	var (
		r            workforce.PayrollRecord
		month        int
		calculatedAt string
	)
	err := row.Scan(&r.ID, &r.EmployeeID, &r.Period.Year, &month, &r.PaidDays, &r.OTCount, &r.DailyRate,
		&r.Salary, &r.OTAmount, &r.NetSalary, &r.RuleVersion, &calculatedAt,
		&r.CalculatedBy, &r.EmployeeExternalID, &r.EmployeeName)
	if err != nil {
		return r, err
	}
	r.Period.Month = time.Month(month)
	r.CalculatedAt = parseTime(calculatedAt)
	return r, nil
}

func (q queries) GetPayroll(ctx context.Context, employeeID string, p workforce.Period) (*workforce.PayrollRecord, error) {
	r, err := scanPayroll(q.db.QueryRowContext(ctx,
		payrollSelect+" WHERE p.employee_id = ? AND p.year = ? AND p.month = ?",
		employeeID, p.Year, int(p.Month)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payroll: %w", err)
	}
	return &r, nil
}

// ListPayroll returns the month's records ordered by employee name.
func (q queries) ListPayroll(ctx context.Context, p workforce.Period) ([]workforce.PayrollRecord, error) {
	rows, err := q.db.QueryContext(ctx,
		payrollSelect+" WHERE p.year = ? AND p.month = ? ORDER BY e.full_name, e.external_id",
		p.Year, int(p.Month))
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll: %w", err)
	}
	defer rows.Close()

	records := []workforce.PayrollRecord{}
	for rows.Next() {
		r, err := scanPayroll(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// PRODUCTIVITY
// =============================================================================

const productivitySelect = `
	SELECT p.id, p.employee_id, p.site_id, p.year, p.month, p.productivity_days, p.rate,
	       p.amount, p.rule_version, p.calculated_at, p.calculated_by,
	       e.external_id, e.full_name, s.external_id
	FROM productivity_records p
	JOIN employees e ON e.id = p.employee_id
	JOIN sites s ON s.id = p.site_id`

// SaveProductivity upserts on (employee, site, year, month).
func (q queries) SaveProductivity(ctx context.Context, r workforce.ProductivityRecord) error {
	query := `
		INSERT INTO productivity_records (id, employee_id, site_id, year, month, productivity_days,
			rate, amount, rule_version, calculated_at, calculated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, site_id, year, month) DO UPDATE SET
			productivity_days = excluded.productivity_days,
			rate = excluded.rate,
			amount = excluded.amount,
			rule_version = excluded.rule_version,
			calculated_at = excluded.calculated_at,
			calculated_by = excluded.calculated_by
	`
	_, err := q.db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.SiteID, r.Period.Year, int(r.Period.Month), r.ProductivityDays,
		r.Rate, r.Amount, r.RuleVersion, fmtTime(r.CalculatedAt), r.CalculatedBy,
	)
	return mapErr(err, "save productivity")
}

func scanProductivity(row scanner) (workforce.ProductivityRecord, error) {
	var (
		r            workforce.ProductivityRecord
		month        int
		calculatedAt string
	)
	err := row.Scan(&r.ID, &r.EmployeeID, &r.SiteID, &r.Period.Year, &month, &r.ProductivityDays, &r.Rate,
		&r.Amount, &r.RuleVersion, &calculatedAt, &r.CalculatedBy,
		&r.EmployeeExternalID, &r.EmployeeName, &r.SiteExternalID)
	if err != nil {
		return r, err
	}
	r.Period.Month = time.Month(month)
	r.CalculatedAt = parseTime(calculatedAt)
	return r, nil
}

func (q queries) GetProductivity(ctx context.Context, employeeID, siteID string, p workforce.Period) (*workforce.ProductivityRecord, error) {
	r, err := scanProductivity(q.db.QueryRowContext(ctx,
		productivitySelect+" WHERE p.employee_id = ? AND p.site_id = ? AND p.year = ? AND p.month = ?",
		employeeID, siteID, p.Year, int(p.Month)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get productivity: %w", err)
	}
	return &r, nil
}

func (q queries) ListProductivityBySite(ctx context.Context, siteID string, p workforce.Period) ([]workforce.ProductivityRecord, error) {
	rows, err := q.db.QueryContext(ctx,
		productivitySelect+" WHERE p.site_id = ? AND p.year = ? AND p.month = ? ORDER BY e.full_name, e.external_id",
		siteID, p.Year, int(p.Month))
	if err != nil {
		return nil, fmt.Errorf("failed to list productivity: %w", err)
	}
	defer rows.Close()

	records := []workforce.ProductivityRecord{}
	for rows.Next() {
		r, err := scanProductivity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// UPLOADS
// =============================================================================

const uploadSelect = `
	SELECT id, filename, original_filename, upload_type, status, year, month, total_rows,
	       processed_rows, success_rows, error_rows, errors, mapping, uploaded_by, notes,
	       created_at, updated_at
	FROM excel_uploads`

func (q queries) SaveUpload(ctx context.Context, u workforce.Upload) error {
	query := `
		INSERT INTO excel_uploads (id, filename, original_filename, upload_type, status, year, month,
			total_rows, processed_rows, success_rows, error_rows, errors, mapping, uploaded_by, notes,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			upload_type = excluded.upload_type,
			status = excluded.status,
			year = excluded.year,
			month = excluded.month,
			total_rows = excluded.total_rows,
			processed_rows = excluded.processed_rows,
			success_rows = excluded.success_rows,
			error_rows = excluded.error_rows,
			errors = excluded.errors,
			mapping = excluded.mapping,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	var year, month sql.NullInt64
	if u.Period != nil {
		year = sql.NullInt64{Int64: int64(u.Period.Year), Valid: true}
		month = sql.NullInt64{Int64: int64(u.Period.Month), Valid: true}
	}
	errs := u.Errors
	if errs == nil {
		errs = []workforce.UploadError{}
	}
	mapping := u.Mapping
	if mapping == nil {
		mapping = map[string]string{}
	}
	_, err := q.db.ExecContext(ctx, query,
		u.ID, u.Filename, u.OriginalFilename, string(u.Type), string(u.Status), year, month,
		u.TotalRows, u.ProcessedRows, u.SuccessRows, u.ErrorRows, toJSON(errs), toJSON(mapping),
		nullString(u.UploadedBy), nullString(u.Notes), fmtTime(u.CreatedAt), fmtTime(u.UpdatedAt),
	)
	return mapErr(err, "save upload")
}

func scanUpload(row scanner) (workforce.Upload, error) {
	var (
		u                    workforce.Upload
		uploadType, status   string
		year, month          sql.NullInt64
		errs, mapping        string
		uploadedBy, notes    sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.Filename, &u.OriginalFilename, &uploadType, &status, &year, &month,
		&u.TotalRows, &u.ProcessedRows, &u.SuccessRows, &u.ErrorRows, &errs, &mapping,
		&uploadedBy, &notes, &createdAt, &updatedAt)
	if err != nil {
		return u, err
	}
	u.Type, u.Status = workforce.UploadType(uploadType), workforce.UploadStatus(status)
	if year.Valid && month.Valid {
		u.Period = &workforce.Period{Year: int(year.Int64), Month: time.Month(month.Int64)}
	}
	u.Errors = []workforce.UploadError{}
	if err := json.Unmarshal([]byte(errs), &u.Errors); err != nil {
		return u, fmt.Errorf("upload %s: bad errors column: %w", u.ID, err)
	}
	u.Mapping = map[string]string{}
	if err := json.Unmarshal([]byte(mapping), &u.Mapping); err != nil {
		return u, fmt.Errorf("upload %s: bad mapping column: %w", u.ID, err)
	}
	u.UploadedBy, u.Notes = uploadedBy.String, notes.String
	u.CreatedAt, u.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return u, nil
}

func (q queries) GetUpload(ctx context.Context, id string) (*workforce.Upload, error) {
	u, err := scanUpload(q.db.QueryRowContext(ctx, uploadSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return &u, nil
}

// ListUploads returns uploads newest first.
func (q queries) ListUploads(ctx context.Context) ([]workforce.Upload, error) {
	rows, err := q.db.QueryContext(ctx, uploadSelect+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	uploads := []workforce.Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}
