package exhibits

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/secpack/pkg/models"
)

const mib = 1024 * 1024

func ex(docType, size string) models.ExhibitDoc {
	return models.ExhibitDoc{Type: docType, SizeText: size, Filename: strings.ToLower(docType) + ".htm"}
}

func byType(ds []Decision) map[string]Decision {
	m := make(map[string]Decision, len(ds))
	for _, d := range ds {
		m[d.Doc.Type] = d
	}
	return m
}

func TestClassify(t *testing.T) {
	tests := []struct {
		typ  string
		want Tier
	}{
		{"EX-101.INS", TierJunk},
		{"EX-101.SCH", TierJunk},
		{"EX-104", TierJunk},
		{"XML", TierJunk},
		{"zip", TierJunk},
		{"JSON", TierJunk},
		{"EXCEL", TierJunk},
		{"EX-1.1", TierHigh},
		{"EX-3(i)", TierHigh},
		{"EX-4", TierHigh},
		{"EX-5.1", TierHigh},
		{"EX-10.1", TierHigh},
		{"ex-10.12", TierHigh},
		{"EX-23.1", TierHigh},
		{"EX-99.1", TierHigh},
		{"EX-21.1", TierLow},
		{"EX-31.1", TierLow},
		{"EX-100", TierLow},
		{"EX-1000", TierLow},
		{"GRAPHIC", TierLow},
		{"10-K", TierLow},
	}
	for _, tt := range tests {
		if got := Classify(tt.typ); got != tt.want {
			t.Errorf("Classify(%q): got %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"52341", 52341},
		{"52,341", 52341},
		{"50KB", 50000},
		{"1.5 MiB", 1572864},
		{"", -1},
		{"n/a", -1},
	}
	for _, tt := range tests {
		if got := ParseSize(tt.in); got != tt.want {
			t.Errorf("ParseSize(%q): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTriageBudgetScenario(t *testing.T) {
	docs := []models.ExhibitDoc{
		ex("EX-101.INS", "500KB"),
		ex("EX-99.1", "2000KB"),
		ex("EX-10.1", "50KB"),
	}
	got := Triage(docs, Budget{MaxPerFiling: 25, MaxTotalBytes: 1 * mib})
	require.Len(t, got, 3)

	assert.Equal(t, "EX-10.1", got[0].Doc.Type, "smaller high-signal exhibit goes first")
	assert.True(t, got[0].Accepted())

	assert.Equal(t, "EX-99.1", got[1].Doc.Type)
	assert.Equal(t, StatusSkipped, got[1].Status)
	assert.Contains(t, got[1].Reason, "total-size cap")
	assert.Equal(t, TierHigh, got[1].Tier)

	assert.Equal(t, "EX-101.INS", got[2].Doc.Type)
	assert.Equal(t, StatusSkipped, got[2].Status)
	assert.Equal(t, ReasonJunk, got[2].Reason)
}

func TestTriageOrdering(t *testing.T) {
	docs := []models.ExhibitDoc{
		ex("EX-21.1", "10"),
		ex("EX-10.2", ""),
		ex("EX-10.1", "300"),
		ex("EX-99.1", "100"),
		ex("EX-31.1", "5"),
		ex("EX-4.1", "300"),
	}
	got := Triage(docs, Budget{Deep: true})
	var order []string
	for _, d := range got {
		order = append(order, d.Doc.Type)
	}
	assert.Equal(t, []string{"EX-99.1", "EX-10.1", "EX-4.1", "EX-10.2", "EX-31.1", "EX-21.1"}, order)
}

func TestTriageNonDeepSkipsLowSignal(t *testing.T) {
	docs := []models.ExhibitDoc{ex("EX-21.1", "10"), ex("EX-10.1", "10")}
	got := byType(Triage(docs, Budget{MaxPerFiling: 5, MaxTotalBytes: mib}))
	assert.Equal(t, ReasonNotHighSignal, got["EX-21.1"].Reason)
	assert.True(t, got["EX-10.1"].Accepted())
}

func TestTriagePerFilingCap(t *testing.T) {
	docs := []models.ExhibitDoc{ex("EX-10.1", "1"), ex("EX-10.2", "2"), ex("EX-10.3", "3")}
	got := byType(Triage(docs, Budget{MaxPerFiling: 2, MaxTotalBytes: mib}))
	assert.True(t, got["EX-10.1"].Accepted())
	assert.True(t, got["EX-10.2"].Accepted())
	assert.Equal(t, ReasonPerFilingCap, got["EX-10.3"].Reason)
}

func TestTriageDeepLiftsCapsButNotJunk(t *testing.T) {
	docs := []models.ExhibitDoc{
		ex("EX-10.1", "900MB"),
		ex("EX-10.2", "900MB"),
		ex("EX-31.1", "1"),
		ex("EX-101.INS", "1"),
		ex("XML", "1"),
	}
	got := byType(Triage(docs, Budget{MaxPerFiling: 1, MaxTotalBytes: 1, Deep: true}))
	assert.True(t, got["EX-10.1"].Accepted())
	assert.True(t, got["EX-10.2"].Accepted())
	assert.True(t, got["EX-31.1"].Accepted())
	assert.Equal(t, ReasonJunk, got["EX-101.INS"].Reason)
	assert.Equal(t, ReasonJunk, got["XML"].Reason)
}

func TestPlanPostDownloadCheck(t *testing.T) {
	l := NewLedger(Budget{MaxPerFiling: 10, MaxTotalBytes: 1000})
	p := l.Plan([]models.ExhibitDoc{ex("EX-10.1", "100"), ex("EX-10.2", "200")})
	c := p.Candidates()
	require.Len(t, c, 2)

	require.True(t, p.Admit(c[0]), "reported 100 fits")
	assert.False(t, p.Commit(c[0], 1500), "actual size over budget is rejected")
	assert.Contains(t, p.Decision(c[0]).Reason, "total-size cap (downloaded")
	assert.Zero(t, l.Used())

	require.True(t, p.Admit(c[1]))
	require.True(t, p.Commit(c[1], 250))
	assert.Equal(t, int64(250), l.Used())
	assert.Equal(t, StatusDownloaded, p.Decision(c[1]).Status)
	assert.Equal(t, int64(250), p.Decision(c[1]).Bytes)
	assert.Equal(t, 1, p.Accepted())
}

func TestPlanDownloadFailureIsRecorded(t *testing.T) {
	l := NewLedger(Budget{MaxPerFiling: 10, MaxTotalBytes: 1000})
	p := l.Plan([]models.ExhibitDoc{ex("EX-99.1", "10")})
	i := p.Candidates()[0]
	require.True(t, p.Admit(i))
	p.Fail(i, errors.New("HTTP 404"))

	d := p.Decision(i)
	assert.Equal(t, StatusSkipped, d.Status)
	assert.Equal(t, "download failed: HTTP 404", d.Reason)
	assert.Zero(t, l.Used())
	assert.Zero(t, p.Accepted())
}

func TestLedgerIsSharedAcrossFilings(t *testing.T) {
	l := NewLedger(Budget{MaxPerFiling: 1, MaxTotalBytes: 300})

	first := l.Plan([]models.ExhibitDoc{ex("EX-10.1", "200"), ex("EX-10.2", "10")})
	c := first.Candidates()
	require.True(t, first.Admit(c[0]))
	require.True(t, first.Commit(c[0], 10))
	assert.False(t, first.Admit(c[1]), "second exhibit of the same filing hits the count cap")

	second := l.Plan([]models.ExhibitDoc{ex("EX-99.1", "250")})
	i := second.Candidates()[0]
	require.True(t, second.Admit(i), "count cap resets per filing")
	require.True(t, second.Commit(i, 250))

	third := l.Plan([]models.ExhibitDoc{ex("EX-99.2", "50")})
	assert.False(t, third.Admit(third.Candidates()[0]), "bytes are never released")
	assert.Equal(t, int64(260), l.Used())
}

// Property: under any non-deep budget the accepted bytes and per-filing count
// stay within their caps, and every row gets exactly one non-empty reason.
func TestTriageInvariants(t *testing.T) {
	types := []string{"EX-10.1", "EX-99.1", "EX-4.1", "EX-21", "EX-101.INS", "EX-3.1", "GRAPHIC"}
	sizes := []string{"100", "2 KB", "", "50000", "7", "1 MB", "abc"}

	for maxPer := 1; maxPer <= 4; maxPer++ {
		for _, maxBytes := range []int64{50, 5000, 2 * mib} {
			var docs []models.ExhibitDoc
			for i := range types {
				docs = append(docs, models.ExhibitDoc{
					Seq:      fmt.Sprint(i),
					Type:     types[i],
					SizeText: sizes[(i+maxPer)%len(sizes)],
				})
			}
			l := NewLedger(Budget{MaxPerFiling: maxPer, MaxTotalBytes: maxBytes})
			p := l.Plan(docs)
			for _, i := range p.Candidates() {
				if !p.Admit(i) {
					continue
				}
				n := p.Decision(i).ReportedBytes
				if n < 0 {
					n = 40
				}
				p.Commit(i, n)
			}

			got := p.Decisions()
			require.Len(t, got, len(docs))
			seen := map[string]bool{}
			var total int64
			count := 0
			for _, d := range got {
				assert.False(t, seen[d.Doc.Seq], "row %s decided twice", d.Doc.Seq)
				seen[d.Doc.Seq] = true
				assert.NotEmpty(t, d.Reason)
				assert.NotEqual(t, StatusPending, d.Status)
				if d.Accepted() {
					total += d.Bytes
					count++
				}
			}
			assert.LessOrEqual(t, total, maxBytes)
			assert.LessOrEqual(t, count, maxPer)
		}
	}
}

func TestSkip(t *testing.T) {
	got := Skip([]models.ExhibitDoc{ex("EX-10.1", "10"), ex("EX-101.INS", "")}, ReasonDisabled)
	require.Len(t, got, 2)
	for _, d := range got {
		assert.Equal(t, StatusSkipped, d.Status)
		assert.Equal(t, ReasonDisabled, d.Reason)
	}
	assert.Equal(t, TierJunk, got[1].Tier)
	assert.Equal(t, int64(-1), got[1].ReportedBytes)
}
