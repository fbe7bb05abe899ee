// Package extract downloads the daily price history of one ticker from a
// market-data provider.
package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sfazliddinov385/walmart-stock-analysis/config"
	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
	"github.com/sfazliddinov385/walmart-stock-analysis/utils"
)

// SeriesFetcher returns the full daily history of a ticker, oldest first.
// Record dates are exchange-local midnight.
type SeriesFetcher interface {
	FetchHistory(ctx context.Context, ticker string) ([]dataset.PriceRecord, error)
}

// NewSeriesFetcher builds the fetcher named by extract.provider.
func NewSeriesFetcher(cfg *config.Config, logger *slog.Logger) (SeriesFetcher, error) {
	switch cfg.Extract.Provider {
	case "", "yahoo":
		return NewYahooClient(cfg, logger, utils.RealTimeProvider{}), nil
	case "tiingo":
		return NewTiingoClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown extract provider %q", cfg.Extract.Provider)
	}
}

func newHTTPClient(cfg *config.Config, logger *slog.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryWaitMin = cfg.Extract.Backoff.RetryWaitMin
	client.RetryWaitMax = cfg.Extract.Backoff.RetryWaitMax
	client.RetryMax = cfg.Extract.Backoff.RetryMax
	client.Logger = logger
	return client
}

// get fetches the URL and returns the body and response
func get(ctx context.Context, client *retryablehttp.Client, url string, header http.Header) (body []byte, resp *http.Response, err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err = client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return body, resp, nil
}
