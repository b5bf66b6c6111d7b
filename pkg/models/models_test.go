package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFilingDateString(t *testing.T) {
	f := Filing{FilingDate: time.Date(2023, 11, 3, 0, 0, 0, 0, time.UTC)}
	if got := f.DateString(); got != "2023-11-03" {
		t.Errorf("DateString: got %q, want %q", got, "2023-11-03")
	}
}

func TestSelectedFilingJSONFlattens(t *testing.T) {
	sf := SelectedFiling{
		Filing: Filing{CIK: "0000320193", Form: "10-K", AccessionNo: "0000320193-23-000106"},
		Reason: "latest 10-K",
	}
	b, err := json.Marshal(sf)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, want := range []string{`"form":"10-K"`, `"accession_no":"0000320193-23-000106"`, `"reason":"latest 10-K"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
	if strings.Contains(s, `"Filing"`) {
		t.Errorf("embedded filing should flatten: %s", s)
	}
	if strings.Contains(s, "primary_document") {
		t.Errorf("empty primary document should be omitted: %s", s)
	}
}
