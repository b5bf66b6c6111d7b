package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/seenimoa/secpack/pkg/models"
)

// Lister retrieves a company's filing history, newest first.
type Lister interface {
	// Name identifies the strategy in manifests and logs.
	Name() string
	List(ctx context.Context, cik string) ([]models.Filing, error)
}

// Listing strategies by name.
const (
	ModeRecent = "recent"
	ModeFull   = "full"
	ModeFeed   = "feed"
)

// ListerFor returns the strategy with the given name. An empty mode means full history.
func (c *Client) ListerFor(mode string) (Lister, error) {
	switch mode {
	case ModeRecent:
		return NewRecentLister(c), nil
	case ModeFull, "":
		return NewFullHistoryLister(c), nil
	case ModeFeed:
		return NewFeedLister(c), nil
	}
	return nil, fmt.Errorf("unknown listing mode %q", mode)
}

// RecentLister reads only the "recent" block of the submissions document
// (roughly the last 1000 filings). One request.
type RecentLister struct {
	client *Client
}

// NewRecentLister creates a recent-window lister.
func NewRecentLister(c *Client) *RecentLister { return &RecentLister{client: c} }

func (l *RecentLister) Name() string { return ModeRecent }

func (l *RecentLister) List(ctx context.Context, cik string) ([]models.Filing, error) {
	resp, err := l.client.submissions(ctx, cik)
	if err != nil {
		return nil, err
	}
	filings := l.client.filingsFromSet(cik, resp.Filings.Recent)
	sortNewestFirst(filings)
	return filings, nil
}

// FullHistoryLister merges the recent block with every archived history page.
// One request per page; slower, complete.
type FullHistoryLister struct {
	client *Client
}

// NewFullHistoryLister creates a full-history lister.
func NewFullHistoryLister(c *Client) *FullHistoryLister { return &FullHistoryLister{client: c} }

func (l *FullHistoryLister) Name() string { return ModeFull }

func (l *FullHistoryLister) List(ctx context.Context, cik string) ([]models.Filing, error) {
	resp, err := l.client.submissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	filings := l.client.filingsFromSet(cik, resp.Filings.Recent)
	seen := make(map[string]bool, len(filings))
	for _, f := range filings {
		seen[f.AccessionNo] = true
	}

	for _, page := range resp.Filings.Files {
		u := fmt.Sprintf("%s/submissions/%s", l.client.dataURL, page.Name)
		body, err := l.client.Get(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("fetch filing history page %s: %w", page.Name, err)
		}
		var set filingSet
		if err := json.Unmarshal(body, &set); err != nil {
			return nil, fmt.Errorf("parse filing history page %s: %w", page.Name, err)
		}
		for _, f := range l.client.filingsFromSet(cik, set) {
			if seen[f.AccessionNo] {
				continue
			}
			seen[f.AccessionNo] = true
			filings = append(filings, f)
		}
	}

	sortNewestFirst(filings)
	return filings, nil
}

func (c *Client) submissions(ctx context.Context, cik string) (*submissionsResponse, error) {
	u := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, PadCIK(cik))
	body, err := c.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch submissions for CIK %s: %w", PadCIK(cik), err)
	}
	var resp submissionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse submissions for CIK %s: %w", PadCIK(cik), err)
	}
	return &resp, nil
}

// filingsFromSet flattens EDGAR's columnar table. Rows without an accession
// number or with an unparseable date are skipped.
func (c *Client) filingsFromSet(cik string, set filingSet) []models.Filing {
	filings := make([]models.Filing, 0, len(set.AccessionNumber))
	skipped := 0
	for i := range set.AccessionNumber {
		acc := column(set.AccessionNumber, i)
		date, ok := ParseDate(column(set.FilingDate, i))
		if acc == "" || !ok {
			skipped++
			continue
		}
		filings = append(filings, models.Filing{
			CIK:             PadCIK(cik),
			Form:            column(set.Form, i),
			AccessionNo:     acc,
			FilingDate:      date,
			PrimaryDocument: column(set.PrimaryDocument, i),
		})
	}
	if skipped > 0 {
		c.log.Warn("skipped malformed filing rows", zap.String("cik", cik), zap.Int("rows", skipped))
	}
	return filings
}

// sortNewestFirst orders by filing date descending; equal dates keep their
// listing order.
func sortNewestFirst(filings []models.Filing) {
	sort.SliceStable(filings, func(i, j int) bool {
		return filings[i].FilingDate.After(filings[j].FilingDate)
	})
}
