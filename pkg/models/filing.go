package models

import "time"

// --- EDGAR filings ---

// Filing is one submission in a company's EDGAR history.
// Identity is AccessionNo; a Filing is never mutated after listing.
type Filing struct {
	CIK             string    `json:"cik" yaml:"cik"`
	Form            string    `json:"form" yaml:"form"` // "10-K", "8-K", "4", "S-3/A", ...
	AccessionNo     string    `json:"accession_no" yaml:"accession_no"`
	FilingDate      time.Time `json:"filing_date" yaml:"filing_date"` // UTC midnight
	PrimaryDocument string    `json:"primary_document,omitempty" yaml:"primary_document,omitempty"`
}

// DateString returns the filing date as YYYY-MM-DD.
func (f Filing) DateString() string {
	return f.FilingDate.Format("2006-01-02")
}

// SelectedFiling pairs a filing with the reason the selector kept it.
type SelectedFiling struct {
	Filing
	Reason string `json:"reason" yaml:"reason"`
}

// ExhibitDoc is a document row from a filing's index page.
type ExhibitDoc struct {
	Seq         string `json:"seq"`
	Description string `json:"description"`
	Type        string `json:"type"` // normalized, e.g. "EX-10.1"
	Filename    string `json:"filename"`
	SizeText    string `json:"size_text"` // as reported, e.g. "52341" or "1.2 MB"
	URL         string `json:"url,omitempty"`
}

// CompanyInfo is the identity EDGAR returns alongside a filing history.
type CompanyInfo struct {
	CIK    string `json:"cik" yaml:"cik"`
	Ticker string `json:"ticker" yaml:"ticker"`
	Name   string `json:"name" yaml:"name"`
}
