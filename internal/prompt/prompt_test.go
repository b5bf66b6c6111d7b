package prompt

import (
	"strings"
	"testing"
	"time"
)

func TestRenderExtractRoundTrip(t *testing.T) {
	start := time.Date(1993, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2031, 12, 31, 0, 0, 0, 0, time.UTC)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 17) {
		want := d.Format("2006-01-02")
		got, ok := ExtractAsOf(Render(want))
		if !ok || got != want {
			t.Fatalf("round trip %s: got %q (ok=%v)", want, got, ok)
		}
	}
}

func TestRenderFillsEveryPlaceholder(t *testing.T) {
	out := Render("2024-01-01")
	if strings.Contains(out, "{{") {
		t.Error("unrendered template action in output")
	}
	if n := strings.Count(out, "2024-01-01"); n != 3 {
		t.Errorf("as-of occurrences: got %d, want 3", n)
	}
	if !strings.HasPrefix(out, "# SEC Filing Pack Review") {
		t.Errorf("unexpected header: %q", strings.SplitN(out, "\n", 2)[0])
	}
}

func TestExtractAsOfMissing(t *testing.T) {
	for _, text := range []string{"", "As-of date: soon", "as of 2024-01-01"} {
		if got, ok := ExtractAsOf(text); ok {
			t.Errorf("ExtractAsOf(%q): got %q, want no match", text, got)
		}
	}
}
