package edgar

import (
	"fmt"
	"strings"

	"github.com/seenimoa/secpack/pkg/models"
)

// PadCIK pads a CIK number to 10 digits with leading zeros.
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

// trimCIK strips leading zeros; the Archives tree uses the bare number.
func trimCIK(cik string) string {
	t := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if t == "" {
		return "0"
	}
	return t
}

func (c *Client) archiveDir(f models.Filing) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s",
		c.wwwURL, trimCIK(f.CIK), strings.ReplaceAll(f.AccessionNo, "-", ""))
}

// FilingURL is the primary document URL, or "" when the listing did not name one.
func (c *Client) FilingURL(f models.Filing) string {
	if f.PrimaryDocument == "" {
		return ""
	}
	return c.archiveDir(f) + "/" + f.PrimaryDocument
}

// IndexURL is the filing's "-index.htm" document listing page.
func (c *Client) IndexURL(f models.Filing) string {
	return c.archiveDir(f) + "/" + f.AccessionNo + "-index.htm"
}
