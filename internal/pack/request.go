package pack

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/seenimoa/secpack/internal/config"
	"github.com/seenimoa/secpack/internal/edgar"
	"github.com/seenimoa/secpack/internal/exhibits"
	"github.com/seenimoa/secpack/pkg/utils"
)

var requestValidate = validator.New()

// Parameter bounds; the validate tags on Request carry the same values.
const (
	MinDaysBack = 30
	MaxDaysBack = 730
	MinExhibits = 1
	MaxExhibits = 100
	MinMB       = 5
	MaxMB       = 500
)

// Request is one pack build's parameters.
type Request struct {
	Ticker      string    `json:"ticker" validate:"required"`
	DaysBack    int       `json:"days_back" validate:"gte=30,lte=730"`
	MaxExhibits int       `json:"max_exhibits" validate:"gte=1,lte=100"`
	MaxMB       int       `json:"max_mb" validate:"gte=5,lte=500"`
	Exhibits    bool      `json:"exhibits"`
	Deep        bool      `json:"deep"`
	Mode        string    `json:"mode" validate:"oneof=recent full feed"`
	AsOf        time.Time `json:"as_of,omitempty"` // zero: today
}

// DefaultRequest fills a request for ticker from the pack section of the config.
func DefaultRequest(ticker string, cfg config.PackConfig) Request {
	mode := edgar.ModeRecent
	if cfg.FullHistory {
		mode = edgar.ModeFull
	}
	return Request{
		Ticker:      ticker,
		DaysBack:    cfg.DaysBack,
		MaxExhibits: cfg.MaxExhibits,
		MaxMB:       cfg.MaxMB,
		Exhibits:    cfg.Exhibits,
		Deep:        cfg.Deep,
		Mode:        mode,
	}
}

// InvalidRequestError reports a parameter outside its allowed range.
type InvalidRequestError struct {
	Field  string
	Detail string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

// Param names as they appear on the query string.
var paramNames = map[string]string{
	"Ticker":      "ticker",
	"DaysBack":    "daysBack",
	"MaxExhibits": "maxEx",
	"MaxMB":       "maxMb",
	"Mode":        "mode",
}

// Validate checks ranges; out-of-range values are rejected, never clamped.
func (r Request) Validate() error {
	r.Ticker = strings.TrimSpace(r.Ticker)
	err := requestValidate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	name := paramNames[fe.Field()]
	switch fe.Tag() {
	case "required":
		return &InvalidRequestError{Field: name, Detail: "is required"}
	case "gte":
		return &InvalidRequestError{Field: name, Detail: fmt.Sprintf("%v is below the minimum %s", fe.Value(), fe.Param())}
	case "lte":
		return &InvalidRequestError{Field: name, Detail: fmt.Sprintf("%v is above the maximum %s", fe.Value(), fe.Param())}
	case "oneof":
		return &InvalidRequestError{Field: name, Detail: fmt.Sprintf("%q is not one of %s", fe.Value(), fe.Param())}
	}
	return &InvalidRequestError{Field: name, Detail: fe.Error()}
}

// Budget converts the exhibit limits to a triage budget. MaxMB is in MiB.
func (r Request) Budget() exhibits.Budget {
	return exhibits.Budget{
		MaxPerFiling:  r.MaxExhibits,
		MaxTotalBytes: int64(r.MaxMB) * 1024 * 1024,
		Deep:          r.Deep,
	}
}

// FileName is the archive's download name: TICKER_sec_pack[_asof_DATE].zip.
func (r Request) FileName() string {
	name := utils.SafeName(utils.NormalizeTicker(r.Ticker)) + "_sec_pack"
	if !r.AsOf.IsZero() {
		name += "_asof_" + utils.FormatDate(r.AsOf)
	}
	return name + ".zip"
}
