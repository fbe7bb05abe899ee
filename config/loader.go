package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Ticker    string          `mapstructure:"ticker"`
	Files     FilesConfig     `mapstructure:"files"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Yahoo     YahooConfig     `mapstructure:"yahoo"`
	Tiingo    TiingoConfig    `mapstructure:"tiingo"`
	Transform TransformConfig `mapstructure:"transform"`
	Store     StoreConfig     `mapstructure:"store"`
	DuckDB    DuckDBConfig    `mapstructure:"duckdb"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Report    ReportConfig    `mapstructure:"report"`
	Log       LogConfig       `mapstructure:"log"`
	Env       string
}

// FilesConfig names the intermediate artifacts. The extension selects the
// codec: .csv or .parquet.
type FilesConfig struct {
	Raw   string `mapstructure:"raw"`
	Clean string `mapstructure:"clean"`
}

type ExtractConfig struct {
	Provider string        `mapstructure:"provider"`
	Backoff  BackoffConfig `mapstructure:"backoff"`
}

type BackoffConfig struct {
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	RetryMax     int           `mapstructure:"retry_max"`
}

type YahooConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	AutoAdjust bool   `mapstructure:"auto_adjust"`
	UserAgent  string `mapstructure:"user_agent"`
}

type TiingoConfig struct {
	BaseURL string          `mapstructure:"base_url"`
	Eod     TiingoAPIConfig `mapstructure:"eod"`
}

type TiingoAPIConfig struct {
	Format    string `mapstructure:"format"`
	StartDate string `mapstructure:"start_date"`
	Columns   string `mapstructure:"columns"`
}

type TransformConfig struct {
	Strategy string `mapstructure:"strategy"`
}

type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Table     string `mapstructure:"table"`
	BatchSize int    `mapstructure:"batch_size"`
	// OnExisting decides what happens when the table already has rows:
	// ask, truncate or keep.
	OnExisting     string        `mapstructure:"on_existing"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type DuckDBConfig struct {
	Path              string   `mapstructure:"path"`
	ConnInitFnQueries []string `mapstructure:"conn_init_fn_queries"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ReportConfig struct {
	RecentRows     int     `mapstructure:"recent_rows"`
	SplitThreshold float64 `mapstructure:"split_threshold"`
	Render         string  `mapstructure:"render"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func setDefaults() {
	viper.SetDefault("ticker", "WMT")
	viper.SetDefault("files.raw", "walmart_stock_history.csv")
	viper.SetDefault("files.clean", "walmart_stock_history_clean.csv")
	viper.SetDefault("extract.provider", "yahoo")
	viper.SetDefault("extract.backoff.retry_wait_min", time.Second)
	viper.SetDefault("extract.backoff.retry_wait_max", 30*time.Second)
	viper.SetDefault("extract.backoff.retry_max", 5)
	viper.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	viper.SetDefault("yahoo.auto_adjust", true)
	viper.SetDefault("yahoo.user_agent", "Mozilla/5.0 (compatible; stockload/1.0)")
	viper.SetDefault("tiingo.base_url", "https://api.tiingo.com")
	viper.SetDefault("tiingo.eod.format", "csv")
	viper.SetDefault("tiingo.eod.start_date", "1970-01-01")
	viper.SetDefault("tiingo.eod.columns", "date,open,high,low,close,volume,divCash,splitFactor")
	viper.SetDefault("transform.strategy", "auto")
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.table", "walmart_stock")
	viper.SetDefault("store.batch_size", 1000)
	viper.SetDefault("store.on_existing", "ask")
	viper.SetDefault("store.connect_timeout", 30*time.Second)
	viper.SetDefault("sqlite.path", "walmart_stock.db")
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.database", "walmart_stock_history")
	viper.SetDefault("postgres.sslmode", "prefer")
	viper.SetDefault("report.recent_rows", 5)
	viper.SetDefault("report.split_threshold", -0.40)
	viper.SetDefault("report.render", "auto")
	viper.SetDefault("log.level", "info")
}

// NewConfig loads the configuration from the provided base config reader
// and merges it with the environment-specific configuration.
func NewConfig(baseConfigReader io.Reader, envConfigReader io.Reader, env string) (*Config, error) {
	if env == "" { // Use the provided 'env' or default to "dev"
		env = "dev"
	}

	viper.SetConfigType("yaml")
	setDefaults()

	// Read the base configuration
	if err := viper.ReadConfig(baseConfigReader); err != nil {
		return nil, fmt.Errorf("error reading base config: %w", err)
	}

	// Merge with environment-specific configuration (only if provided)
	if envConfigReader != nil {
		if err := viper.MergeConfig(envConfigReader); err != nil {
			log.Printf("Error merging environment-specific config: %s", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	config.Env = env

	return &config, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Ticker == "" {
		errs = append(errs, errors.New("ticker must be set"))
	}
	if c.Files.Raw == "" || c.Files.Clean == "" {
		errs = append(errs, errors.New("files.raw and files.clean must be set"))
	}
	switch c.Extract.Provider {
	case "yahoo", "tiingo":
	default:
		errs = append(errs, fmt.Errorf("extract.provider %q is not one of yahoo, tiingo", c.Extract.Provider))
	}
	switch c.Transform.Strategy {
	case "", "auto", "parse", "prefix":
	default:
		errs = append(errs, fmt.Errorf("transform.strategy %q is not one of auto, parse, prefix", c.Transform.Strategy))
	}
	switch c.Store.Driver {
	case "sqlite", "duckdb", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of sqlite, duckdb, postgres", c.Store.Driver))
	}
	if !identifierPattern.MatchString(c.Store.Table) {
		errs = append(errs, fmt.Errorf("store.table %q is not a plain SQL identifier", c.Store.Table))
	}
	if c.Store.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("store.batch_size must be positive, got %d", c.Store.BatchSize))
	}
	switch c.Store.OnExisting {
	case "ask", "truncate", "keep":
	default:
		errs = append(errs, fmt.Errorf("store.on_existing %q is not one of ask, truncate, keep", c.Store.OnExisting))
	}
	if c.Store.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("store.connect_timeout must be positive"))
	}
	if c.Report.RecentRows < 0 {
		errs = append(errs, errors.New("report.recent_rows must not be negative"))
	}
	switch c.Report.Render {
	case "auto", "plain", "glamour":
	default:
		errs = append(errs, fmt.Errorf("report.render %q is not one of auto, plain, glamour", c.Report.Render))
	}

	return errors.Join(errs...)
}
