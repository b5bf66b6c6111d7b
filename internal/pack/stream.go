package pack

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/seenimoa/secpack/internal/exhibits"
	"github.com/seenimoa/secpack/internal/prompt"
	"github.com/seenimoa/secpack/internal/telemetry"
	"github.com/seenimoa/secpack/pkg/models"
	"github.com/seenimoa/secpack/pkg/utils"
)

// Archive entry names.
const (
	ManifestText     = "MANIFEST.txt"
	ManifestYAML     = "manifest.yaml"
	FilingsAuditCSV  = "filings_audit.csv"
	ExhibitsAuditCSV = "exhibits_audit.csv"
	MissingFilings   = "MISSING_FILINGS.txt"

	filingsDir  = "filings"
	indexDir    = "index"
	exhibitsDir = "exhibits"
)

// Missing documents by kind.
const (
	MissingPrimary = "primary document"
	MissingIndex   = "index"
)

// MissingDoc is a filing document that could not be retrieved.
type MissingDoc struct {
	Filing models.SelectedFiling
	Kind   string
	URL    string
	Err    string
}

// ExhibitRow is one line of the exhibit audit.
type ExhibitRow struct {
	Filing   models.SelectedFiling
	Decision exhibits.Decision
}

// Result summarizes a streamed pack.
type Result struct {
	BuildID            string
	FilingsSelected    int
	FilingsArchived    int
	IndexesArchived    int
	Missing            []MissingDoc
	Exhibits           []ExhibitRow
	ExhibitsDownloaded int
	ExhibitsSkipped    int
	ExhibitBytes       int64
	PayloadBytes       int64
	ArchiveBytes       int64
	Duration           time.Duration
}

type flusher interface{ Flush() }

// countingWriter counts compressed bytes and forwards flushes.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (c *countingWriter) Flush() {
	if f, ok := c.w.(flusher); ok {
		f.Flush()
	}
}

// archive writes entries one at a time, flushing after each so a client
// receives bytes while later filings are still downloading.
type archive struct {
	zw      *zip.Writer
	out     *countingWriter
	payload int64
	mtime   time.Time
}

func (a *archive) add(name string, body []byte) error {
	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: a.mtime,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := a.zw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	a.out.Flush()
	a.payload += int64(len(body))
	return nil
}

// Stream downloads the selected filings, their index pages and admitted
// exhibits, and writes the archive to w. Document failures are recorded in
// the audit files; only a write failure or a cancelled ctx aborts.
func (p *Pack) Stream(ctx context.Context, w io.Writer) (res *Result, err error) {
	b := p.b
	ctx, span := telemetry.Tracer().Start(ctx, "pack.stream")
	defer func() {
		telemetry.PackBuilds.WithLabelValues(Outcome(err)).Inc()
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	out := &countingWriter{w: w}
	a := &archive{zw: zip.NewWriter(out), out: out, mtime: b.now()}
	res = &Result{BuildID: p.ID, FilingsSelected: len(p.Selected)}

	if err := a.add(prompt.FileName, []byte(prompt.Render(p.AsOfString()))); err != nil {
		return nil, err
	}

	ledger := exhibits.NewLedger(p.Request.Budget())
	for i, sf := range p.Selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.notify.Publish(Event{
			Type: EventFilingStarted, BuildID: p.ID, Ticker: p.Company.Ticker,
			Accession: sf.AccessionNo, Form: sf.Form, Index: i + 1, Total: len(p.Selected), Time: b.now(),
		})
		if err := p.streamFiling(ctx, a, ledger, sf, res); err != nil {
			return nil, err
		}
	}

	if err := p.writeReports(a, res); err != nil {
		return nil, err
	}
	if err := a.zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	out.Flush()

	res.PayloadBytes = a.payload
	res.ArchiveBytes = out.n
	res.Duration = b.now().Sub(p.StartedAt)
	telemetry.ArchiveBytes.Add(float64(a.payload))
	telemetry.PackDuration.Observe(res.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("pack.exhibits_downloaded", res.ExhibitsDownloaded),
		attribute.Int("pack.missing", len(res.Missing)),
		attribute.Int64("pack.archive_bytes", res.ArchiveBytes),
	)

	b.notify.Publish(Event{
		Type: EventPackFinished, BuildID: p.ID, Ticker: p.Company.Ticker,
		Total: len(p.Selected), Status: "ok", Time: b.now(),
	})
	b.log.Info("pack streamed",
		zap.String("id", p.ID),
		zap.String("ticker", p.Company.Ticker),
		zap.Int("filings", res.FilingsArchived),
		zap.Int("missing", len(res.Missing)),
		zap.Int("exhibits", res.ExhibitsDownloaded),
		zap.Int64("archive_bytes", res.ArchiveBytes),
		zap.Duration("took", res.Duration),
	)
	return res, nil
}

func (p *Pack) streamFiling(ctx context.Context, a *archive, ledger *exhibits.Ledger, sf models.SelectedFiling, res *Result) error {
	b := p.b
	log := b.log.With(zap.String("accession", sf.AccessionNo), zap.String("form", sf.Form))
	stem := filingStem(sf.Filing)

	if u := b.src.FilingURL(sf.Filing); u != "" {
		body, err := b.src.Get(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("primary document unavailable", zap.Error(err))
			res.Missing = append(res.Missing, MissingDoc{Filing: sf, Kind: MissingPrimary, URL: u, Err: err.Error()})
		} else {
			name := path.Join(filingsDir, stem+"_"+utils.SafeName(sf.PrimaryDocument))
			if err := a.add(name, body); err != nil {
				return err
			}
			res.FilingsArchived++
		}
	}

	indexURL := b.src.IndexURL(sf.Filing)
	page, err := b.src.Get(ctx, indexURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("index page unavailable", zap.Error(err))
		res.Missing = append(res.Missing, MissingDoc{Filing: sf, Kind: MissingIndex, URL: indexURL, Err: err.Error()})
		return nil
	}
	if err := a.add(path.Join(indexDir, stem+"-index.htm"), page); err != nil {
		return err
	}
	res.IndexesArchived++

	docs, err := exhibits.ExtractDocs(page, indexURL)
	if err != nil {
		log.Warn("index page unparseable, no exhibits", zap.Error(err))
		docs = nil
	}
	if len(docs) == 0 {
		log.Info("no document rows in index")
	}

	decisions, err := p.triageFiling(ctx, a, ledger, sf, stem, docs)
	if err != nil {
		return err
	}
	for _, d := range decisions {
		res.Exhibits = append(res.Exhibits, ExhibitRow{Filing: sf, Decision: d})
		telemetry.ExhibitDecisions.WithLabelValues(string(d.Tier), string(d.Status)).Inc()
		if d.Accepted() {
			res.ExhibitsDownloaded++
			res.ExhibitBytes += d.Bytes
		} else {
			res.ExhibitsSkipped++
		}
		b.notify.Publish(Event{
			Type: EventExhibitDecided, BuildID: p.ID, Ticker: p.Company.Ticker,
			Accession: sf.AccessionNo, Form: sf.Form, Exhibit: d.Doc.Type,
			Status: string(d.Status), Reason: d.Reason, Time: b.now(),
		})
	}
	return nil
}

// isPrimaryRow reports whether an index row is the filing's primary document.
// Rendered forms list the primary document under an XSL directory
// (xslF345X05/wf4.xml) while the index row names only the file.
func isPrimaryRow(sf models.SelectedFiling, d models.ExhibitDoc) bool {
	if sf.PrimaryDocument == "" {
		return false
	}
	return d.Filename == sf.PrimaryDocument || d.Filename == path.Base(sf.PrimaryDocument)
}

// triageFiling decides every document row of one filing and downloads the
// admitted exhibits.
func (p *Pack) triageFiling(ctx context.Context, a *archive, ledger *exhibits.Ledger, sf models.SelectedFiling, stem string, docs []models.ExhibitDoc) ([]exhibits.Decision, error) {
	if !p.Request.Exhibits {
		return exhibits.Skip(docs, exhibits.ReasonDisabled), nil
	}

	var primary, rest []models.ExhibitDoc
	for _, d := range docs {
		if isPrimaryRow(sf, d) {
			primary = append(primary, d)
		} else {
			rest = append(rest, d)
		}
	}

	plan := ledger.Plan(rest)
	for _, i := range plan.Candidates() {
		if !plan.Admit(i) {
			continue
		}
		doc := plan.Decision(i).Doc
		body, err := p.b.src.Get(ctx, doc.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			plan.Fail(i, err)
			continue
		}
		if !plan.Commit(i, int64(len(body))) {
			continue
		}
		if err := a.add(path.Join(exhibitsDir, stem, exhibitName(doc, i)), body); err != nil {
			return nil, err
		}
	}

	return append(exhibits.Skip(primary, exhibits.ReasonPrimary), plan.Decisions()...), nil
}

// filingStem is DATE_FORM_ACCESSION, the prefix of every payload path for a filing.
func filingStem(f models.Filing) string {
	return f.DateString() + "_" + utils.SafeName(f.Form) + "_" + utils.SafeName(f.AccessionNo)
}

func exhibitName(d models.ExhibitDoc, i int) string {
	seq := utils.SafeName(d.Seq)
	if d.Seq == "" {
		seq = "r" + strconv.Itoa(i)
	}
	return seq + "_" + utils.SafeName(d.Filename)
}
