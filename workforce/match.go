/*
match.go - Fuzzy entity resolution for imported identifiers

PURPOSE:
  Spreadsheets identify people and places loosely: sometimes by code,
  sometimes by a fragment of a name, sometimes by passport number. A
  Matcher tries an ordered list of lookup strategies and returns the first
  hit.

STRATEGIES:
  Employee: external ID (exact) -> name substring -> passport number
  Site:     external ID (exact) -> name substring -> site code

  Name matching compares NormalizeName forms, so case, accents and
  punctuation do not matter. When several names contain the fragment the
  first in name order wins.

  The ledger itself only resolves exact external IDs. Matching happens in
  the ingestion adapter, which then writes with the resolved external ID.
*/
package workforce

import (
	"context"
	"strings"
)

// Strategy is one way of looking up an entity. Find returns (nil, nil) on
// a miss.
type Strategy[T any] struct {
	Name string
	Find func(ctx context.Context, ref string) (*T, error)
}

// Matcher tries its strategies in order.
type Matcher[T any] struct {
	strategies []Strategy[T]
}

func NewMatcher[T any](strategies ...Strategy[T]) *Matcher[T] {
	return &Matcher[T]{strategies: strategies}
}

// Match returns the first hit and the name of the strategy that found it.
// A miss on every strategy returns (nil, "", nil).
func (m *Matcher[T]) Match(ctx context.Context, ref string) (*T, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, "", nil
	}
	for _, s := range m.strategies {
		found, err := s.Find(ctx, ref)
		if err != nil {
			return nil, "", err
		}
		if found != nil {
			return found, s.Name, nil
		}
	}
	return nil, "", nil
}

// NewEmployeeMatcher resolves employees by external ID, name fragment, then
// passport number.
func NewEmployeeMatcher(s EmployeeStore) *Matcher[Employee] {
	return NewMatcher(
		Strategy[Employee]{Name: "external_id", Find: s.GetEmployeeByExternalID},
		Strategy[Employee]{Name: "name", Find: func(ctx context.Context, ref string) (*Employee, error) {
			employees, err := s.ListEmployees(ctx)
			if err != nil {
				return nil, err
			}
			return firstNameMatch(employees, ref, func(e Employee) string { return e.FullName }), nil
		}},
		Strategy[Employee]{Name: "passport", Find: s.GetEmployeeByPassport},
	)
}

// NewSiteMatcher resolves sites by external ID, name fragment, then site
// code.
func NewSiteMatcher(s SiteStore) *Matcher[Site] {
	return NewMatcher(
		Strategy[Site]{Name: "external_id", Find: s.GetSiteByExternalID},
		Strategy[Site]{Name: "name", Find: func(ctx context.Context, ref string) (*Site, error) {
			sites, err := s.ListSites(ctx)
			if err != nil {
				return nil, err
			}
			return firstNameMatch(sites, ref, func(s Site) string { return s.Name }), nil
		}},
		Strategy[Site]{Name: "code", Find: s.GetSiteByCode},
	)
}

func firstNameMatch[T any](items []T, ref string, name func(T) string) *T {
	needle := NormalizeName(ref)
	if needle == "" {
		return nil
	}
	for i := range items {
		if strings.Contains(NormalizeName(name(items[i])), needle) {
			return &items[i]
		}
	}
	return nil
}
