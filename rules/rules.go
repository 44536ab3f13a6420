/*
Package rules converts trade-category rule documents to workforce rules.

PURPOSE:
  Rule tables are configured by people, not code. They arrive as JSON from
  the admin API, as YAML from the embedded default table, and are stored as
  JSON in the database. This package is the one place that knows the wire
  shape and turns it into the typed workforce.PayrollRules with its
  OvertimePolicy variant.

WIRE SCHEMA (JSON or YAML):
  {
    "code": "CLEANER",
    "name": "Cleaner",
    "payrollRules": {
      "paidStatuses": ["P", "OT"],
      "otRateType": "multiplier",
      "otRate": 0,
      "otMultiplier": 1.5
    },
    "productivityRules": {
      "productivityStatuses": ["P", "OT"]
    },
    "ruleVersion": "1.0"
  }

OVERTIME:
  otRateType "fixed"      -> FixedOvertime{otRate}
  otRateType "multiplier" -> MultiplierOvertime{otMultiplier}
  A multiplier rule with no (or zero) otMultiplier pays the fixed otRate
  instead, which is how older rule rows were written.

SEE ALSO:
  - workforce/rules.go: the typed rule set
  - defaults.go: the default trade table
*/
package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/site-payroll/workforce"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

const (
	RateTypeFixed      = "fixed"
	RateTypeMultiplier = "multiplier"
)

// PayrollDoc is the wire form of workforce.PayrollRules.
type PayrollDoc struct {
	PaidStatuses []string         `json:"paidStatuses" yaml:"paidStatuses"`
	OTRateType   string           `json:"otRateType" yaml:"otRateType"`
	OTRate       *decimal.Decimal `json:"otRate,omitempty" yaml:"otRate,omitempty"`
	OTMultiplier *decimal.Decimal `json:"otMultiplier,omitempty" yaml:"otMultiplier,omitempty"`
}

// ProductivityDoc is the wire form of workforce.ProductivityRules.
type ProductivityDoc struct {
	ProductivityStatuses []string `json:"productivityStatuses" yaml:"productivityStatuses"`
}

// TradeCategoryDoc is one trade category with its rules.
type TradeCategoryDoc struct {
	Code              string           `json:"code" yaml:"code"`
	Name              string           `json:"name" yaml:"name"`
	PayrollRules      *PayrollDoc      `json:"payrollRules,omitempty" yaml:"payrollRules,omitempty"`
	ProductivityRules *ProductivityDoc `json:"productivityRules,omitempty" yaml:"productivityRules,omitempty"`
	RuleVersion       string           `json:"ruleVersion,omitempty" yaml:"ruleVersion,omitempty"`
}

// =============================================================================
// DOC -> DOMAIN
// =============================================================================

// ToTradeCategory builds a workforce.TradeCategory (without ID) from doc.
func ToTradeCategory(doc TradeCategoryDoc) (workforce.TradeCategory, error) {
	payroll, err := ToPayrollRules(doc.PayrollRules)
	if err != nil {
		return workforce.TradeCategory{}, fmt.Errorf("trade %s: %w", doc.Code, err)
	}
	productivity, err := ToProductivityRules(doc.ProductivityRules)
	if err != nil {
		return workforce.TradeCategory{}, fmt.Errorf("trade %s: %w", doc.Code, err)
	}
	return workforce.TradeCategory{
		Code:         strings.ToUpper(strings.TrimSpace(doc.Code)),
		Name:         strings.TrimSpace(doc.Name),
		Payroll:      payroll,
		Productivity: productivity,
		RuleVersion:  doc.RuleVersion,
	}, nil
}

// ToPayrollRules converts the wire form. A nil doc means "not configured".
func ToPayrollRules(doc *PayrollDoc) (*workforce.PayrollRules, error) {
	if doc == nil {
		return nil, nil
	}
	paid, err := parseStatuses(doc.PaidStatuses, "paidStatuses")
	if err != nil {
		return nil, err
	}
	policy, err := parseOvertime(*doc)
	if err != nil {
		return nil, err
	}
	return &workforce.PayrollRules{PaidStatuses: paid, Overtime: policy}, nil
}

// ToProductivityRules converts the wire form. A nil doc means "not configured".
func ToProductivityRules(doc *ProductivityDoc) (*workforce.ProductivityRules, error) {
	if doc == nil {
		return nil, nil
	}
	statuses, err := parseStatuses(doc.ProductivityStatuses, "productivityStatuses")
	if err != nil {
		return nil, err
	}
	return &workforce.ProductivityRules{ProductivityStatuses: statuses}, nil
}

func parseOvertime(doc PayrollDoc) (workforce.OvertimePolicy, error) {
	rate := decimal.Zero
	if doc.OTRate != nil {
		rate = *doc.OTRate
	}

	switch strings.ToLower(strings.TrimSpace(doc.OTRateType)) {
	case RateTypeMultiplier:
		if doc.OTMultiplier == nil || doc.OTMultiplier.IsZero() {
			return workforce.FixedOvertime{Rate: rate}, nil
		}
		return workforce.MultiplierOvertime{Factor: *doc.OTMultiplier}, nil
	case RateTypeFixed, "":
		return workforce.FixedOvertime{Rate: rate}, nil
	default:
		return nil, workforce.BadRequestf(workforce.ReasonInvalidInput,
			"unknown otRateType %q (use fixed or multiplier)", doc.OTRateType)
	}
}

func parseStatuses(codes []string, field string) (workforce.StatusSet, error) {
	set := make(workforce.StatusSet, 0, len(codes))
	for _, c := range codes {
		st, ok := workforce.ParseStatus(c)
		if !ok {
			return nil, workforce.BadRequestf(workforce.ReasonInvalidInput, "%s: unknown status %q", field, c)
		}
		if !set.Contains(st) {
			set = append(set, st)
		}
	}
	return set, nil
}

// =============================================================================
// DOMAIN -> DOC
// =============================================================================

// FromTradeCategory is the inverse of ToTradeCategory.
func FromTradeCategory(tc workforce.TradeCategory) TradeCategoryDoc {
	return TradeCategoryDoc{
		Code:              tc.Code,
		Name:              tc.Name,
		PayrollRules:      FromPayrollRules(tc.Payroll),
		ProductivityRules: FromProductivityRules(tc.Productivity),
		RuleVersion:       tc.Version(),
	}
}

func FromPayrollRules(r *workforce.PayrollRules) *PayrollDoc {
	if r == nil {
		return nil
	}
	doc := &PayrollDoc{PaidStatuses: statusStrings(r.PaidStatuses)}
	zero := decimal.Zero
	switch p := r.Overtime.(type) {
	case workforce.MultiplierOvertime:
		factor := p.Factor
		doc.OTRateType = RateTypeMultiplier
		doc.OTRate = &zero
		doc.OTMultiplier = &factor
	case workforce.FixedOvertime:
		rate := p.Rate
		doc.OTRateType = RateTypeFixed
		doc.OTRate = &rate
	default:
		doc.OTRateType = RateTypeFixed
		doc.OTRate = &zero
	}
	return doc
}

func FromProductivityRules(r *workforce.ProductivityRules) *ProductivityDoc {
	if r == nil {
		return nil
	}
	return &ProductivityDoc{ProductivityStatuses: statusStrings(r.ProductivityStatuses)}
}

func statusStrings(set workforce.StatusSet) []string {
	out := make([]string, len(set))
	for i, s := range set {
		out[i] = string(s)
	}
	return out
}

// =============================================================================
// JSON COLUMNS
// =============================================================================

// EncodePayroll returns the JSON stored for r, or "" when r is nil.
func EncodePayroll(r *workforce.PayrollRules) (string, error) {
	return encode(FromPayrollRules(r))
}

// DecodePayroll parses a stored JSON column. "" and "null" decode to nil.
func DecodePayroll(s string) (*workforce.PayrollRules, error) {
	var doc *PayrollDoc
	if err := decode(s, &doc); err != nil {
		return nil, err
	}
	return ToPayrollRules(doc)
}

func EncodeProductivity(r *workforce.ProductivityRules) (string, error) {
	return encode(FromProductivityRules(r))
}

func DecodeProductivity(s string) (*workforce.ProductivityRules, error) {
	var doc *ProductivityDoc
	if err := decode(s, &doc); err != nil {
		return nil, err
	}
	return ToProductivityRules(doc)
}

func encode[T any](doc *T) (string, error) {
	if doc == nil {
		return "", nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode rules: %w", err)
	}
	return string(b), nil
}

func decode(s string, out any) error {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return nil
}
