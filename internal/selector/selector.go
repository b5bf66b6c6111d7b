// Package selector decides which filings in a company's history belong in a
// pack as of a point in time.
//
// Selection is a fixed, ordered list of rules. Each rule looks at the
// eligible filings (dated on or before the as-of date) and claims zero or
// more of them with a reason. Results are concatenated in rule order and
// deduplicated by accession number; the first rule to claim a filing wins.
package selector

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/secpack/pkg/models"
	"github.com/seenimoa/secpack/pkg/utils"
)

// Form codes the rules key on.
const (
	FormAnnual           = "10-K"
	FormQuarterly        = "10-Q"
	FormCurrent          = "8-K"
	FormEffect           = "EFFECT"
	FormEquityComp       = "S-8"
	FormInsider          = "4"
	ProspectusPrefix     = "424B"
	defaultQuarterlyKeep = 2
)

// ShelfForms is the shelf-registration family.
var ShelfForms = []string{"S-3", "S-3/A", "S-3ASR", "F-3", "F-3/A", "F-3ASR"}

// ProxyForms is the proxy-statement family.
var ProxyForms = []string{"DEF 14A", "DEFA14A", "DEFM14A", "PRE 14A"}

// Audit reasons for filings that no rule claimed.
const (
	ReasonAfterAsOf   = "filed after as-of date"
	ReasonNotSelected = "not selected"
)

// Window is the as-of instant plus the look-back range used by the
// windowed rules. Both ends are inclusive calendar dates.
type Window struct {
	AsOf  time.Time
	Start time.Time
	Days  int
}

// NewWindow builds the [asOf-days, asOf] window. A zero asOf means today (UTC).
func NewWindow(asOf time.Time, days int) Window {
	asOf = ResolveAsOf(asOf)
	return Window{
		AsOf:  asOf,
		Start: asOf.AddDate(0, 0, -days),
		Days:  days,
	}
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.AsOf)
}

// ResolveAsOf returns the calendar date for asOf, or today when it is zero.
func ResolveAsOf(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return utils.TodayUTC()
	}
	return utils.DateOnly(asOf)
}

// Rule claims filings from the eligible set. Eligible filings arrive newest
// first; rules must not mutate the slice.
type Rule struct {
	Name  string
	Apply func(eligible []models.Filing, w Window) []models.SelectedFiling
}

// Rules returns the selection rules in application order.
func Rules() []Rule {
	return []Rule{
		{"annual", newest(formIs(FormAnnual), 1, func(models.Filing) string { return "latest 10-K" })},
		{"quarterly", newest(formIs(FormQuarterly), defaultQuarterlyKeep, func(models.Filing) string { return "latest two 10-Q" })},
		{"current", inWindow(formIs(FormCurrent), func(w Window) string {
			return fmt.Sprintf("8-K within %d days of as-of", w.Days)
		})},
		{"shelf", newest(formIn(ShelfForms), 1, func(f models.Filing) string {
			return fmt.Sprintf("latest shelf registration (%s)", f.Form)
		})},
		{"prospectus", newest(formHasPrefix(ProspectusPrefix), 1, func(f models.Filing) string {
			return fmt.Sprintf("latest prospectus supplement (%s)", f.Form)
		})},
		{"effect", newest(formIs(FormEffect), 1, func(models.Filing) string { return "latest EFFECT notice" })},
		{"proxy", newest(formIn(ProxyForms), 1, func(f models.Filing) string {
			return fmt.Sprintf("latest proxy statement (%s)", f.Form)
		})},
		{"equity_comp", newest(formIs(FormEquityComp), 1, func(models.Filing) string { return "latest S-8 registration" })},
		{"insider", inWindow(formIs(FormInsider), func(w Window) string {
			return fmt.Sprintf("Form 4 within %d days of as-of", w.Days)
		})},
	}
}

// Select applies Rules to filings as of asOf (zero = today) with a look-back
// of windowDays for the 8-K and Form 4 rules.
func Select(filings []models.Filing, windowDays int, asOf time.Time) []models.SelectedFiling {
	w := NewWindow(asOf, windowDays)
	eligible := Eligible(filings, w.AsOf)

	var out []models.SelectedFiling
	seen := make(map[string]bool)
	for _, rule := range Rules() {
		for _, sf := range rule.Apply(eligible, w) {
			if seen[sf.AccessionNo] {
				continue
			}
			seen[sf.AccessionNo] = true
			out = append(out, sf)
		}
	}
	return out
}

// Eligible returns the filings dated on or before asOf, newest first. Equal
// dates keep their input order. The input slice is not modified.
func Eligible(filings []models.Filing, asOf time.Time) []models.Filing {
	asOf = ResolveAsOf(asOf)
	out := make([]models.Filing, 0, len(filings))
	for _, f := range filings {
		if !f.FilingDate.After(asOf) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FilingDate.After(out[j].FilingDate)
	})
	return out
}

// Candidate is one row of the filing audit: every listed filing, selected or not.
type Candidate struct {
	models.Filing
	Selected bool   `json:"selected"`
	Reason   string `json:"reason"`
}

// Audit explains the outcome for every filing in the history, in listing order.
func Audit(filings []models.Filing, selected []models.SelectedFiling, asOf time.Time) []Candidate {
	asOf = ResolveAsOf(asOf)
	reasons := make(map[string]string, len(selected))
	for _, sf := range selected {
		reasons[sf.AccessionNo] = sf.Reason
	}

	out := make([]Candidate, 0, len(filings))
	for _, f := range filings {
		c := Candidate{Filing: f}
		switch reason, ok := reasons[f.AccessionNo]; {
		case ok:
			c.Selected, c.Reason = true, reason
		case f.FilingDate.After(asOf):
			c.Reason = ReasonAfterAsOf
		default:
			c.Reason = ReasonNotSelected
		}
		out = append(out, c)
	}
	return out
}

// --- predicates and selectors ---

type predicate func(form string) bool

func normalizeForm(form string) string {
	return strings.ToUpper(strings.Join(strings.Fields(form), " "))
}

func formIs(code string) predicate {
	return func(form string) bool { return normalizeForm(form) == code }
}

func formIn(codes []string) predicate {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return func(form string) bool { return set[normalizeForm(form)] }
}

func formHasPrefix(prefix string) predicate {
	return func(form string) bool { return strings.HasPrefix(normalizeForm(form), prefix) }
}

// newest claims up to n of the most recent matching filings.
func newest(match predicate, n int, reason func(models.Filing) string) func([]models.Filing, Window) []models.SelectedFiling {
	return func(eligible []models.Filing, _ Window) []models.SelectedFiling {
		var out []models.SelectedFiling
		for _, f := range eligible {
			if len(out) == n {
				break
			}
			if match(f.Form) {
				out = append(out, models.SelectedFiling{Filing: f, Reason: reason(f)})
			}
		}
		return out
	}
}

// inWindow claims every matching filing inside the look-back window.
func inWindow(match predicate, reason func(Window) string) func([]models.Filing, Window) []models.SelectedFiling {
	return func(eligible []models.Filing, w Window) []models.SelectedFiling {
		var out []models.SelectedFiling
		r := reason(w)
		for _, f := range eligible {
			if match(f.Form) && w.Contains(f.FilingDate) {
				out = append(out, models.SelectedFiling{Filing: f, Reason: r})
			}
		}
		return out
	}
}
