package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange time zones without relying on the host database

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sfazliddinov385/walmart-stock-analysis/config"
	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
	"github.com/sfazliddinov385/walmart-stock-analysis/utils"
	"github.com/shopspring/decimal"
)

// yahooEpoch is the earliest period1 requested, so the whole history is
// returned.
var yahooEpoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// YahooClient reads the Yahoo Finance chart API.
type YahooClient struct {
	HTTPClient *retryablehttp.Client
	Logger     *slog.Logger
	BaseURL    string
	AutoAdjust bool
	UserAgent  string
	Clock      utils.TimeProvider
}

func NewYahooClient(cfg *config.Config, logger *slog.Logger, clock utils.TimeProvider) *YahooClient {
	baseURL := cfg.Yahoo.BaseURL
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &YahooClient{
		HTTPClient: newHTTPClient(cfg, logger),
		Logger:     logger,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AutoAdjust: cfg.Yahoo.AutoAdjust,
		UserAgent:  cfg.Yahoo.UserAgent,
		Clock:      clock,
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		Currency             string `json:"currency"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		GMTOffset            int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]struct {
			Amount float64 `json:"amount"`
			Date   int64   `json:"date"`
		} `json:"dividends"`
		Splits map[string]struct {
			Date        int64   `json:"date"`
			Numerator   float64 `json:"numerator"`
			Denominator float64 `json:"denominator"`
		} `json:"splits"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

func (c *YahooClient) chartURL(ticker string) string {
	query := url.Values{}
	query.Set("period1", strconv.FormatInt(yahooEpoch.Unix(), 10))
	query.Set("period2", strconv.FormatInt(c.Clock.Now().Unix(), 10))
	query.Set("interval", "1d")
	query.Set("events", "div,split")
	query.Set("includeAdjustedClose", "true")
	return fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.BaseURL, url.PathEscape(ticker), query.Encode())
}

// FetchHistory downloads the full daily history of ticker.
func (c *YahooClient) FetchHistory(ctx context.Context, ticker string) ([]dataset.PriceRecord, error) {
	header := http.Header{}
	if c.UserAgent != "" {
		header.Set("User-Agent", c.UserAgent)
	}

	body, resp, err := get(ctx, c.HTTPClient, c.chartURL(ticker), header)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for ticker %s: %w", ticker, err)
	}

	var chart chartResponse
	decodeErr := json.Unmarshal(body, &chart)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && chart.Chart.Error != nil {
			return nil, fmt.Errorf("failed to fetch history for ticker %s, status: %s: %s", ticker, resp.Status, chart.Chart.Error.Description)
		}
		return nil, fmt.Errorf("failed to fetch history for ticker %s, status: %s, body: %s", ticker, resp.Status, string(body))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode chart response for ticker %s: %w", ticker, decodeErr)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for ticker %s: %s: %s", ticker, chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data returned for ticker %s", ticker)
	}

	records, err := c.toRecords(chart.Chart.Result[0])
	if err != nil {
		return nil, fmt.Errorf("ticker %s: %w", ticker, err)
	}
	c.Logger.Info("Fetched price history", "ticker", ticker, "provider", "yahoo", "rows", len(records))
	return records, nil
}

func (r chartResult) location() *time.Location {
	if r.Meta.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(r.Meta.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	return time.FixedZone("", r.Meta.GMTOffset)
}

func localDay(unix int64, loc *time.Location) time.Time {
	t := time.Unix(unix, 0).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

// toRecords joins bars with dividend and split events by exchange-local
// date. Bars without a close are skipped.
func (c *YahooClient) toRecords(r chartResult) ([]dataset.PriceRecord, error) {
	if len(r.Indicators.Quote) == 0 {
		if len(r.Timestamp) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("chart response has timestamps but no quotes")
	}
	quote := r.Indicators.Quote[0]
	var adjClose []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adjClose = r.Indicators.AdjClose[0].AdjClose
	}

	loc := r.location()

	dividends := map[string]decimal.Decimal{}
	for _, d := range r.Events.Dividends {
		key := localDay(d.Date, loc).Format(dataset.DateLayout)
		dividends[key] = dividends[key].Add(decimal.NewFromFloat(d.Amount))
	}
	splits := map[string]decimal.Decimal{}
	for _, s := range r.Events.Splits {
		if s.Denominator == 0 {
			continue
		}
		key := localDay(s.Date, loc).Format(dataset.DateLayout)
		splits[key] = decimal.NewFromFloat(s.Numerator).Div(decimal.NewFromFloat(s.Denominator))
	}

	byDay := map[string]dataset.PriceRecord{}
	for i, ts := range r.Timestamp {
		closePrice, ok := at(quote.Close, i)
		if !ok {
			continue
		}
		open, _ := at(quote.Open, i)
		high, _ := at(quote.High, i)
		low, _ := at(quote.Low, i)
		volume, _ := at(quote.Volume, i)

		if c.AutoAdjust {
			if adj, ok := at(adjClose, i); ok && closePrice != 0 {
				ratio := adj / closePrice
				open, high, low, closePrice = open*ratio, high*ratio, low*ratio, adj
			}
		}

		day := localDay(ts, loc)
		key := day.Format(dataset.DateLayout)
		shares, err := dataset.VolumeFromFloat(volume)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", key, err)
		}
		byDay[key] = dataset.PriceRecord{
			Date:        day,
			Open:        decimal.NewFromFloat(open),
			High:        decimal.NewFromFloat(high),
			Low:         decimal.NewFromFloat(low),
			Close:       decimal.NewFromFloat(closePrice),
			Volume:      shares,
			Dividends:   dividends[key],
			StockSplits: splits[key],
		}
	}

	records := make([]dataset.PriceRecord, 0, len(byDay))
	for _, rec := range byDay {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}
