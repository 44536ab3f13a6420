package rules

import (
	"context"
	_ "embed"
	"fmt"
	"log"

	"github.com/warp/site-payroll/workforce"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Table is the top-level shape of a rule table file.
type Table struct {
	TradeCategories []TradeCategoryDoc `yaml:"tradeCategories"`
}

// LoadYAML parses a rule table file.
func LoadYAML(data []byte) ([]workforce.TradeCategory, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse rule table: %w", err)
	}
	out := make([]workforce.TradeCategory, 0, len(t.TradeCategories))
	for _, doc := range t.TradeCategories {
		tc, err := ToTradeCategory(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, nil
}

// MarshalYAML renders trade categories in the rule table file format.
func MarshalYAML(categories []workforce.TradeCategory) ([]byte, error) {
	t := Table{TradeCategories: make([]TradeCategoryDoc, len(categories))}
	for i, tc := range categories {
		t.TradeCategories[i] = FromTradeCategory(tc)
	}
	return yaml.Marshal(t)
}

// Defaults returns the built-in trade table: CLEANER, MEP, MASON, CIVIL.
func Defaults() []workforce.TradeCategory {
	categories, err := LoadYAML(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("rules: embedded defaults are invalid: %v", err))
	}
	return categories
}

// EnsureDefaults creates every category of table whose code is not yet
// registered. Existing categories are left untouched. It returns the codes
// it created.
func EnsureDefaults(ctx context.Context, reg *workforce.Registry, table []workforce.TradeCategory) ([]string, error) {
	existing, err := reg.ListTradeCategories(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, tc := range existing {
		known[tc.Code] = true
	}

	var created []string
	for _, tc := range table {
		if known[tc.Code] {
			continue
		}
		if _, err := reg.CreateTradeCategory(ctx, tc); err != nil {
			return created, fmt.Errorf("failed to seed trade category %s: %w", tc.Code, err)
		}
		created = append(created, tc.Code)
	}
	if len(created) > 0 {
		log.Printf("[Rules] Seeded trade categories: %v", created)
	}
	return created, nil
}
