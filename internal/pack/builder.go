// Package pack assembles a filing pack: it resolves the company, selects
// filings as of a date, triages their exhibits and streams everything into
// one ZIP archive with manifests and audit files.
package pack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/seenimoa/secpack/internal/edgar"
	"github.com/seenimoa/secpack/internal/selector"
	"github.com/seenimoa/secpack/internal/telemetry"
	"github.com/seenimoa/secpack/pkg/models"
	"github.com/seenimoa/secpack/pkg/utils"
)

// ErrNoFilings means no filing survived selection.
var ErrNoFilings = errors.New("no eligible filings")

// Source is the registry the builder reads from. *edgar.Client implements it.
type Source interface {
	Validate() error
	ResolveCIK(ctx context.Context, ticker string) (models.CompanyInfo, error)
	ListerFor(mode string) (edgar.Lister, error)
	Get(ctx context.Context, url string) ([]byte, error)
	FilingURL(f models.Filing) string
	IndexURL(f models.Filing) string
}

// Builder prepares and streams packs. One Builder serves many requests.
type Builder struct {
	src    Source
	log    *zap.Logger
	notify Notifier
	now    func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithNotifier sends progress events to n.
func WithNotifier(n Notifier) Option {
	return func(b *Builder) {
		if n != nil {
			b.notify = n
		}
	}
}

// WithClock overrides the time source used for manifests.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a builder reading from src.
func NewBuilder(src Source, log *zap.Logger, opts ...Option) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Builder{
		src:    src,
		log:    log.Named("pack"),
		notify: nopNotifier{},
		now:    time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Pack is a prepared build: everything that can fail fatally has already
// been checked, and only document downloads remain.
type Pack struct {
	ID        string
	Request   Request
	Company   models.CompanyInfo
	Listing   string // lister strategy name
	AsOf      time.Time
	Filings   []models.Filing
	Selected  []models.SelectedFiling
	Audit     []selector.Candidate
	StartedAt time.Time

	b *Builder
}

// FileName is the archive's download name.
func (p *Pack) FileName() string {
	r := p.Request
	if p.Company.Ticker != "" {
		r.Ticker = p.Company.Ticker
	}
	return r.FileName()
}

// AsOfString is the as-of date as YYYY-MM-DD.
func (p *Pack) AsOfString() string { return utils.FormatDate(p.AsOf) }

// Prepare validates the request, resolves the ticker, lists the filing
// history and runs selection. Errors here are fatal to the build:
// *InvalidRequestError, *edgar.ConfigError, edgar.ErrTickerNotFound,
// ErrNoFilings, or a registry failure.
func (b *Builder) Prepare(ctx context.Context, req Request) (p *Pack, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pack.prepare",
		trace.WithAttributes(attribute.String("pack.ticker", req.Ticker)))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			telemetry.PackBuilds.WithLabelValues(Outcome(err)).Inc()
		}
		span.End()
	}()

	started := b.now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := b.src.Validate(); err != nil {
		return nil, err
	}

	company, err := b.src.ResolveCIK(ctx, req.Ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", req.Ticker, err)
	}

	lister, err := b.src.ListerFor(req.Mode)
	if err != nil {
		return nil, &InvalidRequestError{Field: "mode", Detail: err.Error()}
	}
	filings, err := lister.List(ctx, company.CIK)
	if err != nil {
		return nil, fmt.Errorf("list filings for %s: %w", company.Ticker, err)
	}

	asOf := selector.ResolveAsOf(req.AsOf)
	selected := selector.Select(filings, req.DaysBack, asOf)
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w for %s as of %s (%d listed)",
			ErrNoFilings, company.Ticker, utils.FormatDate(asOf), len(filings))
	}

	p = &Pack{
		ID:        uuid.NewString(),
		Request:   req,
		Company:   company,
		Listing:   lister.Name(),
		AsOf:      asOf,
		Filings:   filings,
		Selected:  selected,
		Audit:     selector.Audit(filings, selected, asOf),
		StartedAt: started,
		b:         b,
	}
	span.SetAttributes(
		attribute.String("pack.id", p.ID),
		attribute.String("pack.cik", company.CIK),
		attribute.Int("pack.filings_listed", len(filings)),
		attribute.Int("pack.filings_selected", len(selected)),
	)
	b.log.Info("pack prepared",
		zap.String("id", p.ID),
		zap.String("ticker", company.Ticker),
		zap.String("cik", company.CIK),
		zap.String("listing", p.Listing),
		zap.String("as_of", p.AsOfString()),
		zap.Int("listed", len(filings)),
		zap.Int("selected", len(selected)),
	)
	return p, nil
}

// Outcome labels an error for metrics and logs.
func Outcome(err error) string {
	var cfgErr *edgar.ConfigError
	var reqErr *InvalidRequestError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &reqErr):
		return "bad_request"
	case errors.As(err, &cfgErr):
		return "config_error"
	case errors.Is(err, edgar.ErrTickerNotFound), errors.Is(err, ErrNoFilings):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
