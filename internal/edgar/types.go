package edgar

import (
	"strings"
	"time"
)

// --- Company tickers (www.sec.gov/files/company_tickers.json) ---
// The file is a map: {"0": {cik_str, ticker, title}, ...}

// tickerEntry is a row from the CIK<->ticker mapping file.
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// --- EDGAR Submissions (data.sec.gov/submissions) ---

// submissionsResponse is the response from the company submissions endpoint.
type submissionsResponse struct {
	CIK     string   `json:"cik"`
	Name    string   `json:"name"`
	Tickers []string `json:"tickers"`
	Filings struct {
		Recent filingSet     `json:"recent"`
		Files  []archiveFile `json:"files"`
	} `json:"filings"`
}

// filingSet is EDGAR's columnar filing table. The same shape is the top level
// of every archived submissions-NNN.json document.
type filingSet struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// archiveFile points at an older page of the filing history.
type archiveFile struct {
	Name        string `json:"name"`
	FilingCount int    `json:"filingCount"`
	FilingFrom  string `json:"filingFrom"`
	FilingTo    string `json:"filingTo"`
}

// column returns s[i] or "" when EDGAR sent a short column.
func column(s []string, i int) string {
	if i < len(s) {
		return strings.TrimSpace(s[i])
	}
	return ""
}

// ParseDate parses the date layouts EDGAR emits into a UTC calendar date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		"2006-01-02",
		"2006-01-02T15:04:05.000Z",
		"01/02/2006",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
