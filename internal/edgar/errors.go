package edgar

import (
	"errors"
	"fmt"
)

// ErrTickerNotFound is returned when a ticker is absent from the EDGAR mapping table.
var ErrTickerNotFound = errors.New("ticker not found in EDGAR company tickers")

// ConfigError reports client configuration that makes any request pointless.
// It is raised before a connection is attempted.
type ConfigError struct {
	Setting string
	Detail  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("edgar configuration: %s: %s", e.Setting, e.Detail)
}

// FetchError is returned when a GET fails permanently or exhausts its retries.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d after %d attempt(s): %v", e.URL, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s: failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// statusError is the per-attempt error for a non-2xx response.
type statusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %s: %s", e.Status, e.Body)
}
