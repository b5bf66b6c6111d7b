package pack

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/secpack/pkg/utils"
)

// FilingsAuditHeader is the column order of filings_audit.csv.
var FilingsAuditHeader = []string{"form", "filing_date", "accession", "primary_document", "selected", "reason", "url"}

// ExhibitsAuditHeader is the column order of exhibits_audit.csv.
var ExhibitsAuditHeader = []string{
	"accession", "form", "filing_date", "seq", "type", "description", "filename",
	"size_reported", "tier", "status", "bytes", "reason", "url",
}

func (p *Pack) writeReports(a *archive, res *Result) error {
	reports := []struct {
		name   string
		render func(*Result) ([]byte, error)
	}{
		{FilingsAuditCSV, p.filingsAudit},
		{ExhibitsAuditCSV, p.exhibitsAudit},
		{MissingFilings, p.missingReport},
		{ManifestText, p.manifestText},
		{ManifestYAML, p.manifestYAML},
	}
	for _, r := range reports {
		body, err := r.render(res)
		if err != nil {
			return fmt.Errorf("render %s: %w", r.name, err)
		}
		if err := a.add(r.name, body); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// filingsAudit lists every filing in the history, selected or not.
func (p *Pack) filingsAudit(*Result) ([]byte, error) {
	rows := make([][]string, 0, len(p.Audit))
	for _, c := range p.Audit {
		u := p.b.src.FilingURL(c.Filing)
		if u == "" {
			u = p.b.src.IndexURL(c.Filing)
		}
		rows = append(rows, []string{
			c.Form,
			c.DateString(),
			c.AccessionNo,
			c.PrimaryDocument,
			strconv.FormatBool(c.Selected),
			c.Reason,
			u,
		})
	}
	return writeCSV(FilingsAuditHeader, rows)
}

// exhibitsAudit lists every document row found in a selected filing's index.
func (p *Pack) exhibitsAudit(res *Result) ([]byte, error) {
	rows := make([][]string, 0, len(res.Exhibits))
	for _, r := range res.Exhibits {
		d := r.Decision
		rows = append(rows, []string{
			r.Filing.AccessionNo,
			r.Filing.Form,
			r.Filing.DateString(),
			d.Doc.Seq,
			d.Doc.Type,
			d.Doc.Description,
			d.Doc.Filename,
			d.Doc.SizeText,
			string(d.Tier),
			string(d.Status),
			strconv.FormatInt(d.Bytes, 10),
			d.Reason,
			d.Doc.URL,
		})
	}
	return writeCSV(ExhibitsAuditHeader, rows)
}

func (p *Pack) missingReport(res *Result) ([]byte, error) {
	var b strings.Builder
	if len(res.Missing) == 0 {
		b.WriteString("All selected filing documents were retrieved.\n")
		return []byte(b.String()), nil
	}
	fmt.Fprintf(&b, "%d document(s) could not be retrieved:\n\n", len(res.Missing))
	for _, m := range res.Missing {
		fmt.Fprintf(&b, "%s  %-8s  %s  %s\n  %s\n  %s\n\n",
			m.Filing.DateString(), m.Filing.Form, m.Filing.AccessionNo, m.Kind, m.URL, m.Err)
	}
	return []byte(b.String()), nil
}

func (p *Pack) manifestText(res *Result) ([]byte, error) {
	r := p.Request
	var b strings.Builder
	fmt.Fprintf(&b, "SEC filing pack\n\n")
	fmt.Fprintf(&b, "Build ID:        %s\n", p.ID)
	fmt.Fprintf(&b, "Generated:       %s\n", p.b.now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Company:         %s (%s)\n", p.Company.Name, p.Company.Ticker)
	fmt.Fprintf(&b, "CIK:             %s\n", p.Company.CIK)
	asOfNote := ""
	if r.AsOf.IsZero() {
		asOfNote = " (today)"
	}
	fmt.Fprintf(&b, "As-of date:      %s%s\n", p.AsOfString(), asOfNote)
	fmt.Fprintf(&b, "History listing: %s\n\n", p.Listing)

	fmt.Fprintf(&b, "Parameters\n")
	fmt.Fprintf(&b, "  daysBack: %d\n  maxEx:    %d\n  maxMb:    %d\n  exhibits: %t\n  deep:     %t\n\n",
		r.DaysBack, r.MaxExhibits, r.MaxMB, r.Exhibits, r.Deep)

	fmt.Fprintf(&b, "Counts\n")
	fmt.Fprintf(&b, "  filings listed:      %s\n", humanize.Comma(int64(len(p.Filings))))
	fmt.Fprintf(&b, "  filings selected:    %d\n", len(p.Selected))
	fmt.Fprintf(&b, "  documents missing:   %d\n", len(res.Missing))
	fmt.Fprintf(&b, "  exhibit rows:        %d\n", len(res.Exhibits))
	fmt.Fprintf(&b, "  exhibits downloaded: %d (%s)\n", res.ExhibitsDownloaded, humanize.IBytes(uint64(res.ExhibitBytes)))
	fmt.Fprintf(&b, "  exhibits skipped:    %d\n\n", res.ExhibitsSkipped)

	fmt.Fprintf(&b, "Selected filings\n")
	for _, sf := range p.Selected {
		fmt.Fprintf(&b, "  %s  %-8s  %s  %s\n", sf.DateString(), sf.Form, sf.AccessionNo, sf.Reason)
	}
	return []byte(b.String()), nil
}

// Manifest is the machine-readable summary written as manifest.yaml.
type Manifest struct {
	BuildID     string             `yaml:"build_id"`
	GeneratedAt time.Time          `yaml:"generated_at"`
	Company     ManifestCompany    `yaml:"company"`
	AsOf        string             `yaml:"as_of"`
	AsOfGiven   bool               `yaml:"as_of_given"`
	Listing     string             `yaml:"listing"`
	Parameters  ManifestParameters `yaml:"parameters"`
	Counts      ManifestCounts     `yaml:"counts"`
	Selected    []ManifestFiling   `yaml:"selected"`
}

type ManifestCompany struct {
	Ticker string `yaml:"ticker"`
	CIK    string `yaml:"cik"`
	Name   string `yaml:"name"`
}

type ManifestParameters struct {
	DaysBack    int  `yaml:"days_back"`
	MaxExhibits int  `yaml:"max_exhibits"`
	MaxMB       int  `yaml:"max_mb"`
	Exhibits    bool `yaml:"exhibits"`
	Deep        bool `yaml:"deep"`
}

type ManifestCounts struct {
	FilingsListed      int   `yaml:"filings_listed"`
	FilingsSelected    int   `yaml:"filings_selected"`
	FilingsArchived    int   `yaml:"filings_archived"`
	IndexesArchived    int   `yaml:"indexes_archived"`
	DocumentsMissing   int   `yaml:"documents_missing"`
	ExhibitRows        int   `yaml:"exhibit_rows"`
	ExhibitsDownloaded int   `yaml:"exhibits_downloaded"`
	ExhibitsSkipped    int   `yaml:"exhibits_skipped"`
	ExhibitBytes       int64 `yaml:"exhibit_bytes"`
}

type ManifestFiling struct {
	Form      string `yaml:"form"`
	Date      string `yaml:"filing_date"`
	Accession string `yaml:"accession"`
	Reason    string `yaml:"reason"`
}

func (p *Pack) manifest(res *Result) Manifest {
	r := p.Request
	m := Manifest{
		BuildID:     p.ID,
		GeneratedAt: p.b.now().UTC(),
		Company:     ManifestCompany{Ticker: p.Company.Ticker, CIK: p.Company.CIK, Name: p.Company.Name},
		AsOf:        utils.FormatDate(p.AsOf),
		AsOfGiven:   !r.AsOf.IsZero(),
		Listing:     p.Listing,
		Parameters: ManifestParameters{
			DaysBack: r.DaysBack, MaxExhibits: r.MaxExhibits, MaxMB: r.MaxMB,
			Exhibits: r.Exhibits, Deep: r.Deep,
		},
		Counts: ManifestCounts{
			FilingsListed:      len(p.Filings),
			FilingsSelected:    len(p.Selected),
			FilingsArchived:    res.FilingsArchived,
			IndexesArchived:    res.IndexesArchived,
			DocumentsMissing:   len(res.Missing),
			ExhibitRows:        len(res.Exhibits),
			ExhibitsDownloaded: res.ExhibitsDownloaded,
			ExhibitsSkipped:    res.ExhibitsSkipped,
			ExhibitBytes:       res.ExhibitBytes,
		},
	}
	for _, sf := range p.Selected {
		m.Selected = append(m.Selected, ManifestFiling{
			Form: sf.Form, Date: sf.DateString(), Accession: sf.AccessionNo, Reason: sf.Reason,
		})
	}
	return m
}

func (p *Pack) manifestYAML(res *Result) ([]byte, error) {
	return yaml.Marshal(p.manifest(res))
}
