package workforce

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComputeProductivity counts the productivity days in events and prices
// them at rate.
func ComputeProductivity(events []AttendanceEvent, rules ProductivityRules, rate decimal.Decimal) (int, decimal.Decimal) {
	days := rules.ProductivityStatuses.Count(events)
	return days, rate.Mul(decimal.NewFromInt(int64(days)))
}

// ProductivityCalculator derives the per-site productivity bonus. Unlike
// payroll the rate is supplied by the caller on every call.
//
// The month lock is not consulted unless EnforceMonthLock is set.
type ProductivityCalculator struct {
	store TxStore
	now   func() time.Time

	EnforceMonthLock bool
	DefaultActor     string
}

func NewProductivityCalculator(store TxStore) *ProductivityCalculator {
	return &ProductivityCalculator{store: store, now: time.Now, DefaultActor: "system"}
}

// ProductivityRequest identifies the record to calculate. Employee and site
// are external IDs.
type ProductivityRequest struct {
	EmployeeRef  string
	SiteRef      string
	Period       Period
	Rate         decimal.Decimal
	CalculatedBy string
}

// Calculate computes and stores the productivity record for
// (employee, site, month).
func (c *ProductivityCalculator) Calculate(ctx context.Context, req ProductivityRequest) (ProductivityRecord, error) {
	if req.Rate.IsNegative() {
		return ProductivityRecord{}, badRequest(ReasonInvalidInput, "productivityRate must not be negative")
	}
	actor := strings.TrimSpace(req.CalculatedBy)
	if actor == "" {
		actor = c.DefaultActor
	}
	p := req.Period

	var out ProductivityRecord
	err := c.store.WithTx(ctx, func(s Store) error {
		if c.EnforceMonthLock {
			locked, err := isLocked(ctx, s, p)
			if err != nil {
				return err
			}
			if locked {
				return badRequest(ReasonMonthLocked, "Month %s is locked. Cannot calculate productivity.", p)
			}
		}

		emp, err := s.GetEmployeeByExternalID(ctx, req.EmployeeRef)
		if err != nil {
			return err
		}
		if emp == nil {
			return notFound("Employee %s not found", req.EmployeeRef)
		}
		trade, err := tradeOf(ctx, s, emp)
		if err != nil {
			return err
		}

		siteEvents, err := queryBySiteRange(ctx, s, req.SiteRef, p.Start(), p.End())
		if err != nil {
			return err
		}
		events := make([]AttendanceEvent, 0, len(siteEvents))
		var siteID string
		for _, e := range siteEvents {
			siteID = e.SiteID
			if e.EmployeeID == emp.ID {
				events = append(events, e)
			}
		}

		if trade.Productivity == nil {
			return badRequest(ReasonNoProductivityRules, "Trade category %s has no productivity rules configured", trade.Code)
		}
		days, amount := ComputeProductivity(events, *trade.Productivity, req.Rate)

		if siteID == "" {
			site, err := s.GetSiteByExternalID(ctx, req.SiteRef)
			if err != nil {
				return err
			}
			siteID = site.ID
		}

		existing, err := s.GetProductivity(ctx, emp.ID, siteID, p)
		if err != nil {
			return err
		}
		record := ProductivityRecord{ID: uuid.NewString(), EmployeeID: emp.ID, SiteID: siteID, Period: p}
		if existing != nil {
			record.ID = existing.ID
		}
		record.ProductivityDays = days
		record.Rate = req.Rate
		record.Amount = amount
		record.RuleVersion = trade.Version()
		record.CalculatedAt = c.now().UTC()
		record.CalculatedBy = actor

		if err := s.SaveProductivity(ctx, record); err != nil {
			return err
		}
		record.EmployeeExternalID = emp.ExternalID
		record.EmployeeName = emp.FullName
		record.SiteExternalID = req.SiteRef
		out = record
		return nil
	})
	return out, err
}

// Get returns the stored record, or nil if employee, site or record is missing.
func (c *ProductivityCalculator) Get(ctx context.Context, employeeRef, siteRef string, p Period) (*ProductivityRecord, error) {
	emp, err := c.store.GetEmployeeByExternalID(ctx, employeeRef)
	if err != nil || emp == nil {
		return nil, err
	}
	site, err := c.store.GetSiteByExternalID(ctx, siteRef)
	if err != nil || site == nil {
		return nil, err
	}
	rec, err := c.store.GetProductivity(ctx, emp.ID, site.ID, p)
	if err != nil || rec == nil {
		return nil, err
	}
	rec.EmployeeExternalID = emp.ExternalID
	rec.EmployeeName = emp.FullName
	rec.SiteExternalID = site.ExternalID
	return rec, nil
}

// ListForSite returns the site's records for the month, by employee name.
func (c *ProductivityCalculator) ListForSite(ctx context.Context, siteRef string, p Period) ([]ProductivityRecord, error) {
	site, err := c.store.GetSiteByExternalID(ctx, siteRef)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, notFound("Site %s not found", siteRef)
	}
	return c.store.ListProductivityBySite(ctx, site.ID, p)
}
