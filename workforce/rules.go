package workforce

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRuleVersion is stamped on derived records when a trade category
// carries no version.
const DefaultRuleVersion = "1.0"

// TradeCategory is a job trade (cleaner, MEP, mason, civil) and the rule set
// its workers are paid by. Calculators read rules, they never change them.
type TradeCategory struct {
	ID           string
	Code         string
	Name         string
	Payroll      *PayrollRules      // nil = payroll cannot be calculated
	Productivity *ProductivityRules // nil = productivity cannot be calculated
	RuleVersion  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Version returns the rule version, defaulting to DefaultRuleVersion.
func (tc TradeCategory) Version() string {
	if tc.RuleVersion == "" {
		return DefaultRuleVersion
	}
	return tc.RuleVersion
}

type PayrollRules struct {
	PaidStatuses StatusSet
	Overtime     OvertimePolicy
}

type ProductivityRules struct {
	ProductivityStatuses StatusSet
}

// =============================================================================
// OVERTIME POLICY - Fixed(rate) | Multiplier(factor)
// =============================================================================

// OvertimePolicy decides what one OT day pays. It is a closed set: the only
// implementations are FixedOvertime and MultiplierOvertime.
type OvertimePolicy interface {
	// EffectiveRate returns the amount paid per OT day.
	EffectiveRate(dailyRate decimal.Decimal) decimal.Decimal
	overtimePolicy()
}

// FixedOvertime pays a flat amount per OT day.
type FixedOvertime struct {
	Rate decimal.Decimal
}

func (f FixedOvertime) EffectiveRate(decimal.Decimal) decimal.Decimal { return f.Rate }
func (FixedOvertime) overtimePolicy()                                 {}

// MultiplierOvertime pays the daily rate times a factor per OT day.
type MultiplierOvertime struct {
	Factor decimal.Decimal
}

func (m MultiplierOvertime) EffectiveRate(dailyRate decimal.Decimal) decimal.Decimal {
	return dailyRate.Mul(m.Factor)
}
func (MultiplierOvertime) overtimePolicy() {}

// effectiveOvertimeRate treats a missing policy as no overtime pay.
func effectiveOvertimeRate(p OvertimePolicy, dailyRate decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.EffectiveRate(dailyRate)
}
