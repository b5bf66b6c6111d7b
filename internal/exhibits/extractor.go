// Package exhibits reads the document table of an EDGAR filing index page
// and decides which exhibits are worth downloading under a count and size
// budget.
package exhibits

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/secpack/pkg/models"
)

// MarkerPhrase labels the document table on an EDGAR "-index.htm" page.
const MarkerPhrase = "Document Format Files"

const headerType = "TYPE"

// Column positions in an index table row: Seq | Description | Document | Type | Size.
const (
	colSeq = iota
	colDescription
	colDocument
	colType
	colSize
	minCells = colType + 1
)

// ExtractDocs parses an index page and returns its document rows in page
// order. Links are resolved against indexURL. Rows without a filename, with
// fewer than four cells, or whose type is blank or the header text are
// omitted; a page with no recognizable rows yields an empty slice.
func ExtractDocs(page []byte, indexURL string) ([]models.ExhibitDoc, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("parse index url %q: %w", indexURL, err)
	}

	var docs []models.ExhibitDoc
	documentRows(doc).Each(func(_ int, row *goquery.Selection) {
		if d, ok := parseRow(row, base); ok {
			docs = append(docs, d)
		}
	})
	return docs, nil
}

// documentRows finds the rows of the document table. It prefers the table
// EDGAR tags with a summary or caption, then any table mentioning the marker
// phrase, then every row on the page.
func documentRows(doc *goquery.Document) *goquery.Selection {
	tagged := doc.Find("table").FilterFunction(func(_ int, t *goquery.Selection) bool {
		if s, ok := t.Attr("summary"); ok && strings.EqualFold(strings.TrimSpace(s), MarkerPhrase) {
			return true
		}
		return strings.EqualFold(collapse(t.ChildrenFiltered("caption").Text()), MarkerPhrase)
	})
	if tagged.Length() > 0 {
		return tagged.First().Find("tr")
	}

	mentioned := doc.Find("table").FilterFunction(func(_ int, t *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(t.Text()), strings.ToLower(MarkerPhrase))
	})
	if mentioned.Length() > 0 {
		// Innermost match: layout tables wrapping the document table also
		// contain the phrase.
		return mentioned.Last().Find("tr")
	}

	return doc.Find("tr")
}

func parseRow(row *goquery.Selection, base *url.URL) (models.ExhibitDoc, bool) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() < minCells {
		return models.ExhibitDoc{}, false
	}

	docType := NormalizeType(cells.Eq(colType).Text())
	if docType == "" || docType == headerType {
		return models.ExhibitDoc{}, false
	}

	filename, href := documentRef(cells.Eq(colDocument))
	if filename == "" {
		return models.ExhibitDoc{}, false
	}
	if href == "" {
		href = filename
	}

	d := models.ExhibitDoc{
		Seq:         collapse(cells.Eq(colSeq).Text()),
		Description: collapse(cells.Eq(colDescription).Text()),
		Type:        docType,
		Filename:    filename,
		URL:         resolve(base, href),
	}
	if cells.Length() > colSize {
		d.SizeText = collapse(cells.Eq(colSize).Text())
	}
	return d, true
}

// documentRef returns the filename shown in the Document cell and the link
// behind it, if any. Inline XBRL documents carry an "iXBRL" suffix in the
// link text.
func documentRef(cell *goquery.Selection) (filename, href string) {
	link := cell.Find("a").First()
	if h, ok := link.Attr("href"); ok {
		href = unwrapViewer(strings.TrimSpace(h))
	}
	if fields := strings.Fields(link.Text()); len(fields) > 0 {
		filename = fields[0]
	} else if fields := strings.Fields(cell.Text()); len(fields) > 0 {
		filename = fields[0]
	}
	if filename == "" && href != "" {
		if p, err := url.Parse(href); err == nil && path.Base(p.Path) != "/" && path.Base(p.Path) != "." {
			filename = path.Base(p.Path)
		}
	}
	return filename, href
}

// unwrapViewer turns "/ix?doc=/Archives/..." into "/Archives/...".
func unwrapViewer(href string) string {
	if strings.HasPrefix(href, "/ix?doc=") {
		return strings.TrimPrefix(href, "/ix?doc=")
	}
	return href
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// NormalizeType upper-cases an exhibit type and collapses its whitespace.
func NormalizeType(s string) string {
	return strings.ToUpper(collapse(s))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
