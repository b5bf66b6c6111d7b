// Package prompt renders the evaluation checklist placed at the top of every
// filing pack.
package prompt

import (
	"bytes"
	"regexp"
	"text/template"
)

// FileName is the checklist's path inside the archive.
const FileName = "00_PROMPT.md"

// ChecklistTemplate is the reviewer checklist. The as-of line is machine
// readable; ExtractAsOf depends on its exact shape.
const ChecklistTemplate = `# SEC Filing Pack Review

As-of date: {{.AsOf}}

Treat {{.AsOf}} as "today". Every document in this pack was filed on or before
that date. Do not use knowledge of events after it.

## Files in this pack

- MANIFEST.txt: parameters and counts for this pack.
- filings_audit.csv: every filing in the company's history, selected or not, with the reason.
- exhibits_audit.csv: every exhibit row found in a selected filing's index, downloaded or skipped, with the reason.
- MISSING_FILINGS.txt: filings whose documents could not be retrieved.
- filings/, index/, exhibits/: the documents themselves.

## Checklist

1. Business and segments: what does the company sell, to whom, and how concentrated is revenue?
2. Latest annual report (10-K): risk factors, going-concern language, auditor changes.
3. Latest two quarterly reports (10-Q): revenue, margin and cash-burn trend; liquidity runway in months.
4. Current reports (8-K): material agreements, departures of officers or directors, restatements, delisting notices.
5. Capital structure: shelf registrations (S-3/F-3), prospectus supplements (424B), EFFECT notices, ATM programs, warrants and convertibles. Estimate dilution.
6. Material contracts (EX-10) and instruments defining rights (EX-4): covenants, change-of-control terms, reset or ratchet provisions.
7. Governance: latest proxy statement, executive compensation, equity plans (S-8), related-party transactions.
8. Insider activity (Form 4): net buying or selling in the window, and by whom.
9. Press releases and investor materials (EX-99): claims to verify against the filings.
10. Gaps: anything listed in MISSING_FILINGS.txt or skipped in the audits that could change the conclusion.

## Output

Summarize the findings for each checklist item with citations to file names in this
pack. Close with the three largest risks and the three strongest positives as of {{.AsOf}}.
`

var (
	checklist = template.Must(template.New("checklist").Parse(ChecklistTemplate))
	asOfLine  = regexp.MustCompile(`(?m)^As-of date: (\d{4}-\d{2}-\d{2})\s*$`)
)

type data struct {
	AsOf string
}

// Render fills the checklist with asOf, a YYYY-MM-DD date.
func Render(asOf string) string {
	var buf bytes.Buffer
	// The template is fixed and its only field is a string; execution cannot fail.
	_ = checklist.Execute(&buf, data{AsOf: asOf})
	return buf.String()
}

// ExtractAsOf returns the as-of date recorded in a rendered checklist.
func ExtractAsOf(text string) (string, bool) {
	m := asOfLine.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
