package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/secpack/pkg/models"
	"github.com/seenimoa/secpack/pkg/utils"
)

const tickersCacheKey = "company_tickers"

// ResolveCIK maps a ticker symbol to its company identity. The mapping table
// is downloaded once and cached for the configured TTL. A stale table is
// refreshed wholesale by whichever caller first sees it stale; concurrent
// refreshes are not coalesced.
func (c *Client) ResolveCIK(ctx context.Context, ticker string) (models.CompanyInfo, error) {
	sym := utils.NormalizeTicker(ticker)
	if sym == "" {
		return models.CompanyInfo{}, fmt.Errorf("%w: empty ticker", ErrTickerNotFound)
	}

	table, err := c.tickerTable(ctx)
	if err != nil {
		return models.CompanyInfo{}, err
	}

	if entry, ok := table[sym]; ok {
		return models.CompanyInfo{
			CIK:    PadCIK(strconv.FormatInt(entry.CIK, 10)),
			Ticker: strings.ToUpper(entry.Ticker),
			Name:   entry.Title,
		}, nil
	}
	// A numeric symbol is taken as a CIK already.
	if utils.IsNumeric(sym) {
		return models.CompanyInfo{CIK: PadCIK(sym), Ticker: sym}, nil
	}
	return models.CompanyInfo{}, fmt.Errorf("%w: %s", ErrTickerNotFound, sym)
}

func (c *Client) tickerTable(ctx context.Context) (map[string]tickerEntry, error) {
	if cached, ok := c.tickers.Get(tickersCacheKey); ok {
		return cached.(map[string]tickerEntry), nil
	}

	body, err := c.Get(ctx, c.wwwURL+"/files/company_tickers.json")
	if err != nil {
		return nil, fmt.Errorf("fetch company tickers: %w", err)
	}

	var raw map[string]tickerEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse company tickers: %w", err)
	}

	table := make(map[string]tickerEntry, len(raw))
	for _, entry := range raw {
		table[utils.NormalizeTicker(entry.Ticker)] = entry
	}
	c.tickers.Set(tickersCacheKey, table)
	c.log.Info("refreshed ticker map", zap.Int("tickers", len(table)))
	return table, nil
}
