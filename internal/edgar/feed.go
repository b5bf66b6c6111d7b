package edgar

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/secpack/pkg/models"
)

// FeedLister reads the company's EDGAR Atom feed (browse-edgar, output=atom).
// It returns at most the latest 100 filings and does not carry primary
// document names, so packs built from it archive index pages only.
type FeedLister struct {
	client *Client
	count  int
}

// NewFeedLister creates a feed lister.
func NewFeedLister(c *Client) *FeedLister { return &FeedLister{client: c, count: 100} }

func (l *FeedLister) Name() string { return ModeFeed }

func (l *FeedLister) List(ctx context.Context, cik string) ([]models.Filing, error) {
	q := url.Values{}
	q.Set("action", "getcompany")
	q.Set("CIK", PadCIK(cik))
	q.Set("type", "")
	q.Set("dateb", "")
	q.Set("owner", "include")
	q.Set("count", fmt.Sprint(l.count))
	q.Set("output", "atom")
	u := l.client.wwwURL + "/cgi-bin/browse-edgar?" + q.Encode()

	body, err := l.client.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch filing feed for CIK %s: %w", PadCIK(cik), err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse filing feed for CIK %s: %w", PadCIK(cik), err)
	}

	filings := make([]models.Filing, 0, len(feed.Items))
	for _, item := range feed.Items {
		f, ok := filingFromFeedItem(cik, item)
		if ok {
			filings = append(filings, f)
		}
	}
	sortNewestFirst(filings)
	return filings, nil
}

// filingFromFeedItem reads form (category term), accession (entry id) and
// filing date (the local date of <updated>) from one Atom entry.
func filingFromFeedItem(cik string, item *gofeed.Item) (models.Filing, bool) {
	acc := accessionFromID(item.GUID)
	if acc == "" && item.Link != "" {
		acc = accessionFromIndexLink(item.Link)
	}
	if acc == "" || len(item.Categories) == 0 {
		return models.Filing{}, false
	}

	date, ok := ParseDate(item.Updated)
	if !ok && item.UpdatedParsed != nil {
		date, ok = ParseDate(item.UpdatedParsed.Format("2006-01-02"))
	}
	if !ok {
		return models.Filing{}, false
	}

	return models.Filing{
		CIK:         PadCIK(cik),
		Form:        strings.TrimSpace(item.Categories[0]),
		AccessionNo: acc,
		FilingDate:  date,
	}, true
}

// accessionFromID extracts the accession from
// "urn:tag:sec.gov,2008:accession-number=0000320193-24-000123".
func accessionFromID(id string) string {
	const marker = "accession-number="
	if i := strings.Index(id, marker); i >= 0 {
		return strings.TrimSpace(id[i+len(marker):])
	}
	return ""
}

// accessionFromIndexLink extracts the accession from ".../0000320193-24-000123-index.htm".
func accessionFromIndexLink(link string) string {
	base := link[strings.LastIndex(link, "/")+1:]
	if !strings.HasSuffix(base, "-index.htm") {
		return ""
	}
	return strings.TrimSuffix(base, "-index.htm")
}
