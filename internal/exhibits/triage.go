package exhibits

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/seenimoa/secpack/pkg/models"
)

// Tier is the signal class of an exhibit type.
type Tier string

const (
	TierJunk Tier = "junk"
	TierHigh Tier = "high"
	TierLow  Tier = "low"
)

// Status is the outcome recorded for an exhibit row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusDownloaded Status = "downloaded"
	StatusSkipped    Status = "skipped"
)

// Reasons recorded in the exhibit audit.
const (
	ReasonJunk          = "junk (machine-readable data)"
	ReasonNotHighSignal = "not high-signal"
	ReasonPerFilingCap  = "per-filing cap"
	ReasonDownloaded    = "downloaded"
	ReasonWithinBudget  = "within budget"
	ReasonPrimary       = "primary document"
	ReasonDisabled      = "exhibits disabled"
)

// Material contracts, underwriting agreements, charter and bylaws,
// instruments defining rights, legal opinions, consents and press releases.
var highSignal = regexp.MustCompile(`^EX-(1|3|4|5|10|23|99)(\.|\(|$)`)

var junkExact = map[string]bool{
	"EX-104": true,
	"XML":    true,
	"ZIP":    true,
	"JSON":   true,
	"EXCEL":  true,
}

// Classify returns the tier for an exhibit type. Junk is checked first.
func Classify(docType string) Tier {
	t := NormalizeType(docType)
	switch {
	case strings.HasPrefix(t, "EX-101"), junkExact[t]:
		return TierJunk
	case highSignal.MatchString(t):
		return TierHigh
	default:
		return TierLow
	}
}

// ParseSize parses a reported size such as "52341", "1.2 MB" or "850 KB".
// It returns -1 when the text is empty or not a size.
func ParseSize(text string) int64 {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if text == "" {
		return -1
	}
	n, err := humanize.ParseBytes(text)
	if err != nil {
		return -1
	}
	return int64(n)
}

// Budget limits what one pack build downloads. Deep lifts both caps and
// admits low-signal exhibits; junk is still skipped.
type Budget struct {
	MaxPerFiling  int
	MaxTotalBytes int64
	Deep          bool
}

// Decision is the audit record for one exhibit row.
type Decision struct {
	Doc           models.ExhibitDoc
	Tier          Tier
	ReportedBytes int64 // -1 when unknown
	Status        Status
	Reason        string
	Bytes         int64 // bytes actually downloaded
}

// Accepted reports whether the exhibit made it into the archive (or would, in a dry run).
func (d Decision) Accepted() bool {
	return d.Status == StatusDownloaded || d.Status == StatusAccepted
}

// Skip records every doc as skipped with the same reason.
func Skip(docs []models.ExhibitDoc, reason string) []Decision {
	out := make([]Decision, len(docs))
	for i, d := range docs {
		out[i] = Decision{
			Doc:           d,
			Tier:          Classify(d.Type),
			ReportedBytes: ParseSize(d.SizeText),
			Status:        StatusSkipped,
			Reason:        reason,
		}
	}
	return out
}

// Ledger tracks the total-size budget across every filing in one pack build.
// Bytes counted against it are never released.
type Ledger struct {
	budget Budget
	used   int64
}

// NewLedger starts an empty ledger.
func NewLedger(b Budget) *Ledger {
	return &Ledger{budget: b}
}

// Used returns the bytes accepted so far.
func (l *Ledger) Used() int64 { return l.used }

// Budget returns the budget the ledger enforces.
func (l *Ledger) Budget() Budget { return l.budget }

func (l *Ledger) fits(n int64) bool {
	return l.budget.Deep || l.used+n <= l.budget.MaxTotalBytes
}

func (l *Ledger) capReason(kind string, n int64) string {
	return fmt.Sprintf("total-size cap (%s %s, %s of %s used)",
		kind, humanize.IBytes(uint64(n)), humanize.IBytes(uint64(l.used)), humanize.IBytes(uint64(l.budget.MaxTotalBytes)))
}

// Plan is the triage of one filing's exhibits against the shared ledger.
// Junk and (outside deep mode) low-signal rows are decided up front; the
// rest are pending, ordered high tier first then by ascending reported size.
type Plan struct {
	ledger    *Ledger
	decisions []Decision
	pending   []int
	accepted  int
}

// Plan classifies docs and orders the download candidates.
func (l *Ledger) Plan(docs []models.ExhibitDoc) *Plan {
	p := &Plan{ledger: l}

	var candidates, rejected []Decision
	for _, d := range docs {
		dec := Decision{
			Doc:           d,
			Tier:          Classify(d.Type),
			ReportedBytes: ParseSize(d.SizeText),
			Status:        StatusPending,
		}
		switch {
		case dec.Tier == TierJunk:
			dec.Status, dec.Reason = StatusSkipped, ReasonJunk
			rejected = append(rejected, dec)
		case dec.Tier == TierLow && !l.budget.Deep:
			dec.Status, dec.Reason = StatusSkipped, ReasonNotHighSignal
			rejected = append(rejected, dec)
		default:
			candidates = append(candidates, dec)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Tier != b.Tier {
			return a.Tier == TierHigh
		}
		if (a.ReportedBytes < 0) != (b.ReportedBytes < 0) {
			return b.ReportedBytes < 0
		}
		return a.ReportedBytes < b.ReportedBytes
	})

	p.decisions = append(candidates, rejected...)
	for i := range candidates {
		p.pending = append(p.pending, i)
	}
	return p
}

// Candidates returns the indexes of the pending decisions in download order.
func (p *Plan) Candidates() []int {
	return append([]int(nil), p.pending...)
}

// Decision returns the current record at index i.
func (p *Plan) Decision(i int) Decision { return p.decisions[i] }

// Decisions returns every record: candidates in download order, then the
// rows rejected by tier.
func (p *Plan) Decisions() []Decision {
	return append([]Decision(nil), p.decisions...)
}

// Accepted returns how many exhibits of this filing have been committed.
func (p *Plan) Accepted() int { return p.accepted }

// Admit runs the checks that can be made before downloading: the per-filing
// count and the total-size cap against the reported size. A rejected row is
// marked skipped.
func (p *Plan) Admit(i int) bool {
	d := &p.decisions[i]
	if d.Status != StatusPending {
		return false
	}
	b := p.ledger.budget
	if !b.Deep && p.accepted >= b.MaxPerFiling {
		d.Status, d.Reason = StatusSkipped, ReasonPerFilingCap
		return false
	}
	if d.ReportedBytes >= 0 && !p.ledger.fits(d.ReportedBytes) {
		d.Status, d.Reason = StatusSkipped, p.ledger.capReason("reported", d.ReportedBytes)
		return false
	}
	return true
}

// Commit charges n downloaded bytes to the ledger. It re-checks the size cap
// against the actual byte count, which can differ from the reported size.
func (p *Plan) Commit(i int, n int64) bool {
	return p.commit(i, n, StatusDownloaded, ReasonDownloaded)
}

func (p *Plan) commit(i int, n int64, status Status, reason string) bool {
	d := &p.decisions[i]
	if d.Status != StatusPending {
		return false
	}
	if !p.ledger.fits(n) {
		d.Status, d.Reason = StatusSkipped, p.ledger.capReason("downloaded", n)
		return false
	}
	p.ledger.used += n
	p.accepted++
	d.Status, d.Reason, d.Bytes = status, reason, n
	return true
}

// Fail records a download error for an admitted row.
func (p *Plan) Fail(i int, err error) {
	d := &p.decisions[i]
	if d.Status != StatusPending {
		return
	}
	d.Status, d.Reason = StatusSkipped, "download failed: "+err.Error()
}

// Triage is a dry run of the policy over one filing's exhibits: reported
// sizes stand in for downloads, and rows of unknown size are charged nothing.
func Triage(docs []models.ExhibitDoc, b Budget) []Decision {
	p := NewLedger(b).Plan(docs)
	for _, i := range p.Candidates() {
		if !p.Admit(i) {
			continue
		}
		n := p.decisions[i].ReportedBytes
		if n < 0 {
			n = 0
		}
		p.commit(i, n, StatusAccepted, ReasonWithinBudget)
	}
	return p.Decisions()
}
