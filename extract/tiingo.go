package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sfazliddinov385/walmart-stock-analysis/config"
	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
	"github.com/shopspring/decimal"
)

// tiingoLocation is the exchange time zone Tiingo end-of-day dates refer to.
const tiingoLocation = "America/New_York"

type TiingoClient struct {
	HTTPClient   *retryablehttp.Client
	Logger       *slog.Logger
	TiingoConfig *config.TiingoConfig
	BaseURL      string
	tiingoToken  string
}

func NewTiingoClient(config *config.Config, logger *slog.Logger) (*TiingoClient, error) {
	tiingoToken := os.Getenv("TIINGO_TOKEN")
	if tiingoToken == "" {
		return nil, fmt.Errorf("TIINGO_TOKEN env variable is not set")
	}

	baseURL := config.Tiingo.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tiingo.com"
	}

	return &TiingoClient{
		HTTPClient:   newHTTPClient(config, logger),
		Logger:       logger,
		TiingoConfig: &config.Tiingo,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		tiingoToken:  tiingoToken,
	}, nil
}

// GetHistory fetches the historical EoD prices for a ticker, from the
// configured start date to the present
func (c *TiingoClient) GetHistory(ctx context.Context, ticker string) ([]byte, error) {
	historyURL, err := c.addTiingoConfigToURL(
		c.TiingoConfig.Eod,
		fmt.Sprintf("%s/tiingo/daily/%s/prices", c.BaseURL, url.PathEscape(ticker)),
		true,
	)
	if err != nil {
		return nil, err
	}
	return c.FetchData(ctx, historyURL, fmt.Sprintf("history for ticker %s", ticker))
}

// FetchHistory downloads the history as CSV and converts it to records.
func (c *TiingoClient) FetchHistory(ctx context.Context, ticker string) ([]dataset.PriceRecord, error) {
	body, err := c.GetHistory(ctx, ticker)
	if err != nil {
		return nil, err
	}
	// Tiingo answers "None%" when it has no data for the request.
	if strings.TrimSpace(string(body)) == "None%" {
		return nil, fmt.Errorf("received 'None%%' response from API, indicating no data available for %s", ticker)
	}

	records, err := parseTiingoCSV(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse history for ticker %s: %w", ticker, err)
	}
	c.Logger.Info("Fetched price history", "ticker", ticker, "provider", "tiingo", "rows", len(records))
	return records, nil
}

// FetchData handles the common logic of making the HTTP request and checking the response status.
// The token is sent in the Authorization header, never in the URL.
func (c *TiingoClient) FetchData(ctx context.Context, url, description string) ([]byte, error) {
	header := http.Header{}
	header.Set("Authorization", "Token "+c.tiingoToken)
	body, resp, err := get(ctx, c.HTTPClient, url, header)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch the `%s` file, status: %s, body: %s", description, resp.Status, string(body))
	}

	return body, nil
}

// addTiingoConfigToURL adds the format, startDate and columns to the URL
func (c *TiingoClient) addTiingoConfigToURL(apiConfig config.TiingoAPIConfig, rawURL string, history bool) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	query := parsedURL.Query()
	query.Set("format", apiConfig.Format)
	if apiConfig.Columns != "" {
		query.Set("columns", apiConfig.Columns)
	}
	if history {
		if apiConfig.StartDate == "" {
			return "", fmt.Errorf("startDate is required for historical data")
		}
		query.Set("startDate", apiConfig.StartDate)
	}
	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}

// parseTiingoCSV maps Tiingo's EoD columns onto records. divCash becomes
// Dividends and a splitFactor of 1 (no split) becomes 0.
func parseTiingoCSV(body []byte) ([]dataset.PriceRecord, error) {
	t, err := dataset.ParseCSV(body)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(tiingoLocation)
	if err != nil {
		loc = time.UTC
	}

	col := func(name string) (int, error) {
		if i := t.ColumnIndex(name); i >= 0 {
			return i, nil
		}
		return -1, fmt.Errorf("missing column %q in Tiingo response", name)
	}
	idx := map[string]int{}
	for _, name := range []string{"date", "open", "high", "low", "close", "volume"} {
		i, err := col(name)
		if err != nil {
			return nil, err
		}
		idx[name] = i
	}
	divIdx := t.ColumnIndex("divCash")
	splitIdx := t.ColumnIndex("splitFactor")

	one := decimal.NewFromInt(1)
	records := make([]dataset.PriceRecord, 0, t.Len())
	for n, row := range t.Rows {
		cell := func(i int) string {
			if i < 0 || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		dec := func(i int, name string) (decimal.Decimal, error) {
			raw := cell(i)
			if raw == "" {
				return decimal.Zero, nil
			}
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return decimal.Zero, fmt.Errorf("row %d: invalid %s %q: %w", n+1, name, raw, err)
			}
			return d, nil
		}

		raw := cell(idx["date"])
		if len(raw) >= len(dataset.DateLayout) {
			raw = raw[:len(dataset.DateLayout)]
		}
		day, err := time.ParseInLocation(dataset.DateLayout, raw, loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date %q: %w", n+1, cell(idx["date"]), err)
		}

		rec := dataset.PriceRecord{Date: day}
		for _, f := range []struct {
			name string
			dst  *decimal.Decimal
		}{
			{"open", &rec.Open},
			{"high", &rec.High},
			{"low", &rec.Low},
			{"close", &rec.Close},
		} {
			if *f.dst, err = dec(idx[f.name], f.name); err != nil {
				return nil, err
			}
		}

		volume, err := dec(idx["volume"], "volume")
		if err != nil {
			return nil, err
		}
		if rec.Volume, err = dataset.VolumeFromDecimal(volume); err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}

		if rec.Dividends, err = dec(divIdx, "divCash"); err != nil {
			return nil, err
		}
		split, err := dec(splitIdx, "splitFactor")
		if err != nil {
			return nil, err
		}
		if split.Equal(one) {
			split = decimal.Zero
		}
		rec.StockSplits = split

		records = append(records, rec)
	}
	return records, nil
}
