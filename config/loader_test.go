package config

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, baseYAML, envYAML, env string) *Config {
	t.Helper()
	viper.Reset()

	var envConfigReader io.Reader
	if envYAML != "" {
		envConfigReader = strings.NewReader(envYAML)
	}
	cfg, err := NewConfig(strings.NewReader(baseYAML), envConfigReader, env)
	require.NoError(t, err)
	return cfg
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := loadConfig(t, "ticker: WMT\n", "", "")

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "WMT", cfg.Ticker)
	assert.Equal(t, FilesConfig{Raw: "walmart_stock_history.csv", Clean: "walmart_stock_history_clean.csv"}, cfg.Files)
	assert.Equal(t, "yahoo", cfg.Extract.Provider)
	assert.Equal(t, BackoffConfig{RetryWaitMin: time.Second, RetryWaitMax: 30 * time.Second, RetryMax: 5}, cfg.Extract.Backoff)
	assert.True(t, cfg.Yahoo.AutoAdjust)
	assert.Equal(t, "auto", cfg.Transform.Strategy)
	assert.Equal(t, StoreConfig{
		Driver:         "sqlite",
		Table:          "walmart_stock",
		BatchSize:      1000,
		OnExisting:     "ask",
		ConnectTimeout: 30 * time.Second,
	}, cfg.Store)
	assert.Equal(t, ReportConfig{RecentRows: 5, SplitThreshold: -0.40, Render: "auto"}, cfg.Report)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name     string
		baseYAML string
		envYAML  string
		env      string
		check    func(t *testing.T, cfg *Config)
	}{
		{
			name: "Successful Load with Default Env",
			baseYAML: `
extract:
  provider: tiingo
  backoff:
    retry_wait_min: 2s
    retry_wait_max: 10s
    retry_max: 3
duckdb:
  path: "test.db"
tiingo:
  eod:
    format: csv
    start_date: "1995-01-01"
    columns: "date,close"
store:
  driver: duckdb
  batch_size: 250
`,
			env: "bar",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "bar", cfg.Env)
				assert.Equal(t, "tiingo", cfg.Extract.Provider)
				assert.Equal(t, BackoffConfig{RetryWaitMin: 2 * time.Second, RetryWaitMax: 10 * time.Second, RetryMax: 3}, cfg.Extract.Backoff)
				assert.Equal(t, DuckDBConfig{Path: "test.db"}, cfg.DuckDB)
				assert.Equal(t, TiingoAPIConfig{Format: "csv", StartDate: "1995-01-01", Columns: "date,close"}, cfg.Tiingo.Eod)
				assert.Equal(t, "duckdb", cfg.Store.Driver)
				assert.Equal(t, 250, cfg.Store.BatchSize)
				assert.Equal(t, "walmart_stock", cfg.Store.Table)
			},
		},
		{
			name: "Successful Load with Environment Override",
			baseYAML: `
duckdb:
  conn_init_fn_queries:
    - "../sql/db__stage.sql"
postgres:
  host: db.internal
  database: prices
`,
			envYAML: `
duckdb:
  conn_init_fn_queries:
    - "../sql/db__dev.sql"
postgres:
  port: 6543
report:
  render: plain
`,
			env: "foo",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "foo", cfg.Env)
				assert.Equal(t, []string{"../sql/db__dev.sql"}, cfg.DuckDB.ConnInitFnQueries)
				assert.Equal(t, PostgresConfig{Host: "db.internal", Port: 6543, Database: "prices", SSLMode: "prefer"}, cfg.Postgres)
				assert.Equal(t, "plain", cfg.Report.Render)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, tt.baseYAML, tt.envYAML, tt.env)
			tt.check(t, cfg)
		})
	}
}

func TestNewConfigInvalidYAML(t *testing.T) {
	viper.Reset()
	_, err := NewConfig(strings.NewReader("store: [unclosed"), nil, "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "error reading base config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name: "table name must be an identifier",
			mutate: func(c *Config) {
				c.Store.Table = `prices"; DROP TABLE x; --`
			},
			wantErr: []string{"store.table"},
		},
		{
			name: "several errors are reported together",
			mutate: func(c *Config) {
				c.Store.Driver = "mssql"
				c.Store.BatchSize = 0
				c.Extract.Provider = "bloomberg"
				c.Transform.Strategy = "regex"
				c.Store.OnExisting = "merge"
			},
			wantErr: []string{"store.driver", "store.batch_size", "extract.provider", "transform.strategy", "store.on_existing"},
		},
		{
			name: "render mode",
			mutate: func(c *Config) {
				c.Report.Render = "html"
			},
			wantErr: []string{"report.render"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, "ticker: WMT\n", "", "")
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
