// Package edgar is the SEC EDGAR registry client: ticker-to-CIK resolution,
// filing history listing and raw document retrieval.
//
// EDGAR requires a User-Agent naming the requester on every request and
// allows 10 requests/second per client.
// Docs: https://www.sec.gov/os/accessing-edgar-data
package edgar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/seenimoa/secpack/internal/config"
	"github.com/seenimoa/secpack/internal/infra"
	"github.com/seenimoa/secpack/internal/telemetry"
)

const (
	// DataBaseURL serves the JSON submissions API.
	DataBaseURL = "https://data.sec.gov"
	// WWWBaseURL serves the ticker map, the Archives tree and the Atom feeds.
	WWWBaseURL = "https://www.sec.gov"

	maxErrorBody = 512
)

// Options configures a Client.
type Options struct {
	UserAgent         string
	RequestsPerSecond float64
	TickerCacheTTL    time.Duration
	Timeout           time.Duration
	Retry             config.RetryConfig

	// Overridable for tests.
	DataBaseURL string
	WWWBaseURL  string
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// OptionsFromConfig maps the sec section of the config onto client options.
func OptionsFromConfig(cfg config.SECConfig) Options {
	return Options{
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		TickerCacheTTL:    cfg.TickerCacheTTL,
		Timeout:           cfg.Timeout,
		Retry:             cfg.Retry,
	}
}

// Client talks to EDGAR. It is safe for concurrent use; the ticker map cache
// is shared by every caller of the same Client.
type Client struct {
	userAgent string
	dataURL   string
	wwwURL    string
	http      *http.Client
	limiter   *infra.Limiter
	tickers   *infra.Cache
	retry     config.RetryConfig
	log       *zap.Logger
}

// NewClient builds a client. A missing user agent is not an error here;
// it is reported by Validate and by every request.
func NewClient(opts Options) *Client {
	if opts.DataBaseURL == "" {
		opts.DataBaseURL = DataBaseURL
	}
	if opts.WWWBaseURL == "" {
		opts.WWWBaseURL = WWWBaseURL
	}
	if opts.TickerCacheTTL <= 0 {
		opts.TickerCacheTTL = 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 5
	}
	if opts.Retry.InitialInterval <= 0 {
		opts.Retry.InitialInterval = 500 * time.Millisecond
	}
	if opts.Retry.MaxInterval < opts.Retry.InitialInterval {
		opts.Retry.MaxInterval = 16 * opts.Retry.InitialInterval
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Client{
		userAgent: strings.TrimSpace(opts.UserAgent),
		dataURL:   strings.TrimRight(opts.DataBaseURL, "/"),
		wwwURL:    strings.TrimRight(opts.WWWBaseURL, "/"),
		http:      opts.HTTPClient,
		limiter:   infra.NewLimiter(opts.RequestsPerSecond),
		tickers:   infra.NewCache(opts.TickerCacheTTL),
		retry:     opts.Retry,
		log:       opts.Logger.Named("edgar"),
	}
}

// Validate reports whether the client may issue requests at all.
func (c *Client) Validate() error {
	if c.userAgent == "" {
		return &ConfigError{Setting: "sec.user_agent", Detail: "EDGAR requires an identifying User-Agent"}
	}
	return nil
}

// Get fetches url and returns the response body. 429, 5xx and transport
// errors are retried with exponential backoff up to the configured attempt
// budget; any other failure is returned immediately as a *FetchError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "edgar.get",
		trace.WithAttributes(attribute.String("http.url", url)))
	defer span.End()

	req, err := c.newRequest(ctx, url)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &FetchError{URL: url, Err: err}
	}

	attempts := 0
	lastStatus := 0
	op := func() ([]byte, error) {
		attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		body, status, retryAfter, err := c.doGet(req)
		lastStatus = status
		telemetry.RegistryRequests.WithLabelValues(telemetry.StatusClass(status)).Inc()
		if err == nil {
			return body, nil
		}
		if !retryable(ctx, status) {
			return nil, backoff.Permanent(err)
		}
		if retryAfter > 0 {
			return nil, backoff.RetryAfter(retryAfter)
		}
		return nil, err
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.retry.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			telemetry.RegistryRetries.Inc()
			c.log.Debug("retrying EDGAR request",
				zap.String("url", url), zap.Int("attempt", attempts), zap.Duration("wait", wait), zap.Error(err))
		}),
	)
	span.SetAttributes(attribute.Int("http.status_code", lastStatus), attribute.Int("edgar.attempts", attempts))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: err}
	}
	return body, nil
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval
	b.Multiplier = 2
	return b
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/html, application/atom+xml, */*")
	return req, nil
}

// doGet performs a single attempt of req. retryAfter is the server's
// Retry-After in seconds when it sent one with a 429. A status of 0 means
// the exchange failed in transport, including a body cut short.
func (c *Client) doGet(req *http.Request) (body []byte, status, retryAfter int, err error) {
	url := req.URL.String()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter, _ = strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
		}
		return nil, resp.StatusCode, retryAfter, &statusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read %s: %w", url, err)
	}
	return body, resp.StatusCode, 0, nil
}

// retryable reports whether a failed attempt is worth repeating.
func retryable(ctx context.Context, status int) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case status == 0:
		return true // connection failure
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	}
	return false
}

// IsNotFound reports whether err is a 404 from EDGAR.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound
}
