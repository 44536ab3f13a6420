/*
payroll.go - Monthly payroll calculation

PURPOSE:
  Turns one employee's attendance for one month into a PayrollRecord.
  The record is derived: it is never edited by hand, only recalculated.

FORMULA:
  paid_days  = rows whose status is in the trade's paidStatuses
  ot_count   = rows whose status is OT
  ot_rate    = Fixed(rate)        -> rate
               Multiplier(factor) -> daily_rate x factor
  salary     = paid_days x daily_rate
  ot_amount  = ot_count x ot_rate
  net_salary = salary + ot_amount

  Attendance is consolidated across every site the employee worked.

DAILY RATE:
  The first deployment overlapping the month (by from_date) that carries a
  rate override. Without one the calculation fails with NO_DAILY_RATE.

MONTH LOCK:
  A locked month is rejected unless Force is set. Batch recalculation
  always forces. The lock check, the reads and the upsert share one
  transaction, so a failed calculation never touches the stored record.
*/
package workforce

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayrollFigures are the derived fields of a payroll record.
type PayrollFigures struct {
	PaidDays  int
	OTCount   int
	DailyRate decimal.Decimal
	Salary    decimal.Decimal
	OTAmount  decimal.Decimal
	NetSalary decimal.Decimal
}

// ComputePayroll applies the payroll formula. It has no side effects.
func ComputePayroll(events []AttendanceEvent, rules PayrollRules, dailyRate decimal.Decimal) PayrollFigures {
	paidDays := rules.PaidStatuses.Count(events)
	otCount := StatusSet{StatusOvertime}.Count(events)

	salary := dailyRate.Mul(decimal.NewFromInt(int64(paidDays)))
	otAmount := effectiveOvertimeRate(rules.Overtime, dailyRate).Mul(decimal.NewFromInt(int64(otCount)))

	return PayrollFigures{
		PaidDays:  paidDays,
		OTCount:   otCount,
		DailyRate: dailyRate,
		Salary:    salary,
		OTAmount:  otAmount,
		NetSalary: salary.Add(otAmount),
	}
}

// ResolveDailyRate returns the rate override of the first deployment in
// deployments that overlaps p and has one set.
func ResolveDailyRate(deployments []Deployment, p Period) (decimal.Decimal, bool) {
	for _, d := range deployments {
		if d.Overlaps(p) && d.RateOverride.Valid {
			return d.RateOverride.Decimal, true
		}
	}
	return decimal.Zero, false
}

// =============================================================================
// PAYROLL CALCULATOR
// =============================================================================

type PayrollCalculator struct {
	store TxStore
	now   func() time.Time

	// DefaultActor is recorded as calculated_by when the caller gives none.
	DefaultActor string
}

func NewPayrollCalculator(store TxStore) *PayrollCalculator {
	return &PayrollCalculator{store: store, now: time.Now, DefaultActor: "system"}
}

type CalculateOptions struct {
	// Force recalculates even when the month is locked.
	Force        bool
	CalculatedBy string
}

// Calculate computes and stores the payroll record for (employee, month).
func (c *PayrollCalculator) Calculate(ctx context.Context, employeeRef string, p Period, opts CalculateOptions) (PayrollRecord, error) {
	actor := strings.TrimSpace(opts.CalculatedBy)
	if actor == "" {
		actor = c.DefaultActor
	}

	var out PayrollRecord
	err := c.store.WithTx(ctx, func(s Store) error {
		locked, err := isLocked(ctx, s, p)
		if err != nil {
			return err
		}
		if locked && !opts.Force {
			return badRequest(ReasonMonthLocked, "Month %s is locked. Cannot calculate payroll.", p)
		}

		emp, err := s.GetEmployeeByExternalID(ctx, employeeRef)
		if err != nil {
			return err
		}
		if emp == nil {
			return notFound("Employee %s not found", employeeRef)
		}
		trade, err := tradeOf(ctx, s, emp)
		if err != nil {
			return err
		}

		events, err := s.ListAttendanceByEmployee(ctx, emp.ID, p.Start(), p.End())
		if err != nil {
			return err
		}

		deployments, err := s.ListDeploymentsOverlapping(ctx, emp.ID, p.Start(), p.End())
		if err != nil {
			return err
		}
		dailyRate, ok := ResolveDailyRate(deployments, p)
		if !ok {
			return badRequest(ReasonNoDailyRate,
				"No daily rate found for employee %s for month %s. Set rate_override on a deployment covering the month.",
				employeeRef, p)
		}

		if trade.Payroll == nil {
			return badRequest(ReasonNoPayrollRules, "Trade category %s has no payroll rules configured", trade.Code)
		}

		figures := ComputePayroll(events, *trade.Payroll, dailyRate)

		existing, err := s.GetPayroll(ctx, emp.ID, p)
		if err != nil {
			return err
		}
		record := PayrollRecord{ID: uuid.NewString(), EmployeeID: emp.ID, Period: p}
		if existing != nil {
			record.ID = existing.ID
		}
		record.PaidDays = figures.PaidDays
		record.OTCount = figures.OTCount
		record.DailyRate = figures.DailyRate
		record.Salary = figures.Salary
		record.OTAmount = figures.OTAmount
		record.NetSalary = figures.NetSalary
		record.RuleVersion = trade.Version()
		record.CalculatedAt = c.now().UTC()
		record.CalculatedBy = actor

		if err := s.SavePayroll(ctx, record); err != nil {
			return err
		}
		record.EmployeeExternalID = emp.ExternalID
		record.EmployeeName = emp.FullName
		out = record
		return nil
	})
	return out, err
}

// BatchResult summarizes a per-employee batch. Errors are
// "Employee <id>: <message>".
type BatchResult struct {
	SuccessCount int      `json:"success"`
	Errors       []string `json:"errors"`
}

// RecalculateForMonth recalculates every active employee, forcing past the
// month lock. One employee's failure does not stop the batch.
func (c *PayrollCalculator) RecalculateForMonth(ctx context.Context, p Period, calculatedBy string) (BatchResult, error) {
	employees, err := c.store.ListActiveEmployees(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{Errors: []string{}}
	for _, emp := range employees {
		if _, err := c.Calculate(ctx, emp.ExternalID, p, CalculateOptions{Force: true, CalculatedBy: calculatedBy}); err != nil {
			res.Errors = append(res.Errors, "Employee "+emp.ExternalID+": "+err.Error())
			continue
		}
		res.SuccessCount++
	}
	return res, nil
}

// Get returns the stored payroll record, or nil if the employee or record
// does not exist.
func (c *PayrollCalculator) Get(ctx context.Context, employeeRef string, p Period) (*PayrollRecord, error) {
	emp, err := c.store.GetEmployeeByExternalID(ctx, employeeRef)
	if err != nil || emp == nil {
		return nil, err
	}
	rec, err := c.store.GetPayroll(ctx, emp.ID, p)
	if err != nil || rec == nil {
		return nil, err
	}
	rec.EmployeeExternalID = emp.ExternalID
	rec.EmployeeName = emp.FullName
	return rec, nil
}

// ListForMonth returns every stored payroll record for the month.
func (c *PayrollCalculator) ListForMonth(ctx context.Context, p Period) ([]PayrollRecord, error) {
	return c.store.ListPayroll(ctx, p)
}

// tradeOf loads the employee's trade category; BadRequest if none.
func tradeOf(ctx context.Context, s TradeCategoryStore, emp *Employee) (*TradeCategory, error) {
	if emp.TradeCategoryID == "" {
		return nil, badRequest(ReasonNoTradeCategory, "Employee %s has no trade category assigned", emp.ExternalID)
	}
	tc, err := s.GetTradeCategory(ctx, emp.TradeCategoryID)
	if err != nil {
		return nil, err
	}
	if tc == nil {
		return nil, badRequest(ReasonNoTradeCategory, "Employee %s has no trade category assigned", emp.ExternalID)
	}
	return tc, nil
}
