package extract

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sfazliddinov385/walmart-stock-analysis/config"
	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tiingoCSV = `date,open,high,low,close,volume,divCash,splitFactor
2024-03-07,175.1,177.0,174.5,176.2,3100000,0.0,1.0
2024-03-08,176.0,178.4,175.9,178.0,2900000,0.57,1.0
2024-03-11,59.4,60.1,59.0,59.8,8700000,0.0,3.0
`

func getTestConfig() *config.Config {
	return &config.Config{
		Tiingo: config.TiingoConfig{
			Eod: config.TiingoAPIConfig{
				Format:    "csv",
				StartDate: "2020-01-01",
				Columns:   "open,close",
			},
		},
		Extract: config.ExtractConfig{
			Backoff: config.BackoffConfig{
				RetryWaitMin: 1 * time.Millisecond,
				RetryWaitMax: 2 * time.Millisecond,
				RetryMax:     1,
			},
		},
	}
}

func getTestLogger(buffer *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buffer, nil))
}

func TestNewClient(t *testing.T) {
	t.Setenv("TIINGO_TOKEN", "test_token")

	logger := getTestLogger(&bytes.Buffer{})
	cfg := getTestConfig()

	client, err := NewTiingoClient(cfg, logger)
	assert.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, "test_token", client.tiingoToken)
	assert.Equal(t, "https://api.tiingo.com", client.BaseURL)
	assert.Equal(t, cfg.Tiingo.Eod.Format, client.TiingoConfig.Eod.Format)
	assert.Equal(t, cfg.Tiingo.Eod.StartDate, client.TiingoConfig.Eod.StartDate)
	assert.Equal(t, cfg.Tiingo.Eod.Columns, client.TiingoConfig.Eod.Columns)
	assert.Equal(t, 1, client.HTTPClient.RetryMax)
}

func TestNewClient_NoToken(t *testing.T) {
	t.Setenv("TIINGO_TOKEN", "")

	client, err := NewTiingoClient(getTestConfig(), getTestLogger(&bytes.Buffer{}))
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestClient_FetchData(t *testing.T) {
	t.Setenv("TIINGO_TOKEN", "test_token")

	client, err := NewTiingoClient(getTestConfig(), getTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Not found"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test content"))
	}))
	defer server.Close()

	client.HTTPClient = retryablehttp.NewClient()
	client.HTTPClient.HTTPClient = server.Client()
	client.HTTPClient.Logger = nil

	body, err := client.FetchData(context.Background(), server.URL, "test description")
	assert.NoError(t, err)
	assert.Equal(t, []byte("test content"), body)

	_, err = client.FetchData(context.Background(), server.URL+"/missing", "test description")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch the `test description` file, status: 404")
	assert.Contains(t, err.Error(), "Not found")
}

func TestClient_FetchDataKeepsTokenOutOfErrors(t *testing.T) {
	t.Setenv("TIINGO_TOKEN", "test_token")

	client, err := NewTiingoClient(getTestConfig(), getTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	historyURL, err := client.addTiingoConfigToURL(client.TiingoConfig.Eod, server.URL+"/tiingo/daily/WMT/prices", true)
	require.NoError(t, err)

	_, err = client.FetchData(context.Background(), historyURL, "history for ticker WMT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after")
	assert.NotContains(t, err.Error(), "test_token")
}

func TestClient_addTiingoConfigToURL(t *testing.T) {
	t.Setenv("TIINGO_TOKEN", "test_token")

	client, err := NewTiingoClient(getTestConfig(), getTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	rawURL := "https://api.tiingo.com/tiingo/daily/WMT/prices"
	expectedURL := "https://api.tiingo.com/tiingo/daily/WMT/prices?columns=open%2Cclose&format=csv&startDate=2020-01-01"

	resultURL, err := client.addTiingoConfigToURL(client.TiingoConfig.Eod, rawURL, true)
	assert.NoError(t, err)
	assert.Equal(t, expectedURL, resultURL)

	expectedURLWithoutHistory := "https://api.tiingo.com/tiingo/daily/WMT/prices?columns=open%2Cclose&format=csv"
	resultURL, err = client.addTiingoConfigToURL(client.TiingoConfig.Eod, rawURL, false)
	assert.NoError(t, err)
	assert.Equal(t, expectedURLWithoutHistory, resultURL)

	noStart := client.TiingoConfig.Eod
	noStart.StartDate = ""
	_, err = client.addTiingoConfigToURL(noStart, rawURL, true)
	assert.EqualError(t, err, "startDate is required for historical data")
}

func setupTiingoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test_token" || r.URL.Query().Has("token") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/tiingo/daily/WMT/prices":
			w.Header().Set("Content-Type", "text/csv")
			w.Write([]byte(tiingoCSV))
		case "/tiingo/daily/EMPTY/prices":
			w.Write([]byte("None%"))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Not found"))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func setupTestClient(t *testing.T, server *httptest.Server) *TiingoClient {
	t.Helper()
	t.Setenv("TIINGO_TOKEN", "test_token")

	cfg := getTestConfig()
	cfg.Tiingo.BaseURL = server.URL + "/"
	cfg.Tiingo.Eod.Columns = "date,open,high,low,close,volume,divCash,splitFactor"

	client, err := NewTiingoClient(cfg, getTestLogger(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, server.URL, client.BaseURL)
	return client
}

func TestTiingoFetchHistory(t *testing.T) {
	server := setupTiingoServer(t)
	client := setupTestClient(t, server)

	tests := []struct {
		name        string
		ticker      string
		wantRows    int
		errContains string
	}{
		{
			name:     "successful fetch",
			ticker:   "WMT",
			wantRows: 3,
		},
		{
			name:        "no data",
			ticker:      "EMPTY",
			errContains: "'None%' response",
		},
		{
			name:        "unknown ticker",
			ticker:      "INVALID",
			errContains: "status: 404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := client.FetchHistory(context.Background(), tt.ticker)

			if tt.errContains != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			assert.Len(t, records, tt.wantRows)
		})
	}
}

func TestParseTiingoCSV(t *testing.T) {
	records, err := parseTiingoCSV([]byte(tiingoCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	table := dataset.FromRecords(records, dataset.TimestampLayout)
	assert.Equal(t, []string{"2024-03-07 00:00:00-05:00", "175.1", "177", "174.5", "176.2", "3100000", "0", "0"}, table.Rows[0])
	assert.Equal(t, "0.57", records[1].Dividends.String())
	assert.True(t, records[1].StockSplits.IsZero())
	assert.Equal(t, "3", records[2].StockSplits.String())
	// Daylight saving starts on 2024-03-10 in New York.
	assert.Equal(t, "2024-03-11 00:00:00-04:00", table.Rows[2][0])
}

func TestParseTiingoCSVErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		errContains string
	}{
		{
			name:        "missing column",
			body:        "date,open,high,low,close\n2024-03-07,1,2,1,2\n",
			errContains: `missing column "volume"`,
		},
		{
			name:        "bad date",
			body:        "date,open,high,low,close,volume\nyesterday,1,2,1,2,10\n",
			errContains: `row 1: invalid date "yesterday"`,
		},
		{
			name:        "bad price",
			body:        "date,open,high,low,close,volume\n2024-03-07,1,2,x,2,10\n",
			errContains: `row 1: invalid low "x"`,
		},
		{
			name:        "volume above int64",
			body:        "date,open,high,low,close,volume\n2024-03-07,1,2,1,2,1e25\n",
			errContains: "row 1: volume out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTiingoCSV([]byte(tt.body))
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestNewSeriesFetcher(t *testing.T) {
	t.Setenv("TIINGO_TOKEN", "test_token")
	logger := getTestLogger(&bytes.Buffer{})

	cfg := getTestConfig()
	fetcher, err := NewSeriesFetcher(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &YahooClient{}, fetcher)

	cfg.Extract.Provider = "tiingo"
	fetcher, err = NewSeriesFetcher(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &TiingoClient{}, fetcher)

	cfg.Extract.Provider = "bloomberg"
	_, err = NewSeriesFetcher(cfg, logger)
	assert.EqualError(t, err, `unknown extract provider "bloomberg"`)
}
