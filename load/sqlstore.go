package load

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
	"github.com/sfazliddinov385/walmart-stock-analysis/template"
	"github.com/shopspring/decimal"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect captures what differs between the supported databases.
type dialect struct {
	name string
	// placeholder returns the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// valueExprs wraps the eight insert placeholders, e.g. with casts.
	valueExprs func(ph []string) []string
	// abortsTx is true when any failed statement poisons the transaction.
	abortsTx bool
}

func questionMark(int) string { return "?" }

func dollarN(n int) string { return fmt.Sprintf("$%d", n) }

func plainValues(ph []string) []string { return ph }

// SQLStore implements Store over database/sql. Every backend shares it and
// differs only in dialect and connection setup.
type SQLStore struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Table   string
	dialect dialect
	queries map[string]string
}

func newSQLStore(db *sql.DB, d dialect, table string, logger *slog.Logger) (*SQLStore, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q: must be a plain SQL identifier", table)
	}

	placeholders := make([]string, len(dataset.Columns))
	for i := range placeholders {
		placeholders[i] = d.placeholder(i + 1)
	}
	params := map[string]any{
		"Table":  table,
		"Values": d.valueExprs(placeholders),
	}

	queries := make(map[string]string)
	for _, name := range []string{"create_table", "insert", "count", "truncate", "summary", "first_last_close"} {
		q, err := template.ExecuteSqlTemplate(sqlFiles, "sql/"+name+".sql", params)
		if err != nil {
			return nil, err
		}
		queries[name] = q
	}

	return &SQLStore{
		DB:      db,
		Logger:  logger,
		Table:   table,
		dialect: d,
		queries: queries,
	}, nil
}

// openPinged applies the single-connection policy and pings under timeout.
func openPinged(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.queries["create_table"]); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.Table, err)
	}
	s.Logger.Debug("Table created/verified", "table", s.Table)
	return nil
}

func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.QueryRowContext(ctx, s.queries["count"]).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", s.Table, err)
	}
	return n, nil
}

func (s *SQLStore) Truncate(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin truncate: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.queries["truncate"]); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete rows from %s: %w", s.Table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit truncate: %w", err)
	}
	return nil
}

func (s *SQLStore) Begin(ctx context.Context) (Batch, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx, s.queries["insert"])
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	return &sqlBatch{tx: tx, stmt: stmt, abortsTx: s.dialect.abortsTx}, nil
}

type sqlBatch struct {
	tx       *sql.Tx
	stmt     *sql.Stmt
	abortsTx bool
}

// Insert binds dates and decimals as strings so every driver receives the
// exact 4-digit text and the database does the conversion.
func (b *sqlBatch) Insert(ctx context.Context, rec dataset.PriceRecord) error {
	res, err := b.stmt.ExecContext(ctx,
		rec.Day(),
		rec.Open.StringFixed(4),
		rec.High.StringFixed(4),
		rec.Low.StringFixed(4),
		rec.Close.StringFixed(4),
		rec.Volume,
		rec.Dividends.StringFixed(4),
		rec.StockSplits.StringFixed(4),
	)
	if err != nil {
		if b.abortsTx {
			return fmt.Errorf("%w: %w", ErrBatchFault, err)
		}
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateDate, rec.Day())
	}
	return nil
}

func (b *sqlBatch) Commit() error {
	return b.tx.Commit()
}

func (b *sqlBatch) Rollback() error {
	err := b.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func parseNullDecimal(ns sql.NullString, what string) (decimal.Decimal, error) {
	if !ns.Valid {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(ns.String))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", what, ns.String, err)
	}
	return d, nil
}

// Summarize reads the verification figures. An empty table gives the zero
// Summary.
func (s *SQLStore) Summarize(ctx context.Context, recent int) (Summary, error) {
	var (
		sum                      Summary
		firstDate, lastDate      sql.NullString
		minClose, maxClose, avgC sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, s.queries["summary"]).Scan(
		&sum.Rows, &firstDate, &lastDate, &minClose, &maxClose, &avgC, &sum.Splits,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to query summary: %w", err)
	}
	if sum.Rows == 0 {
		return Summary{}, nil
	}

	sum.FirstDate = normalizeDateText(firstDate.String)
	sum.LastDate = normalizeDateText(lastDate.String)
	if sum.MinClose, err = parseNullDecimal(minClose, "min close"); err != nil {
		return Summary{}, err
	}
	if sum.MaxClose, err = parseNullDecimal(maxClose, "max close"); err != nil {
		return Summary{}, err
	}
	if sum.AvgClose, err = parseNullDecimal(avgC, "average close"); err != nil {
		return Summary{}, err
	}

	var firstClose, lastClose sql.NullString
	if err := s.DB.QueryRowContext(ctx, s.queries["first_last_close"]).Scan(&firstClose, &lastClose); err != nil {
		return Summary{}, fmt.Errorf("failed to query first and last close: %w", err)
	}
	if sum.FirstClose, err = parseNullDecimal(firstClose, "first close"); err != nil {
		return Summary{}, err
	}
	if sum.LastClose, err = parseNullDecimal(lastClose, "last close"); err != nil {
		return Summary{}, err
	}
	sum.TotalReturn = TotalReturn(sum.FirstClose, sum.LastClose)

	if recent > 0 {
		if sum.Recent, err = s.recent(ctx, recent); err != nil {
			return Summary{}, err
		}
	}
	return sum, nil
}

func (s *SQLStore) recent(ctx context.Context, limit int) ([]RecentRow, error) {
	query, err := template.ExecuteSqlTemplate(sqlFiles, "sql/recent.sql", map[string]any{
		"Table": s.Table,
		"Limit": limit,
	})
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent rows: %w", err)
	}
	defer rows.Close()

	var out []RecentRow
	for rows.Next() {
		var (
			date, closeText sql.NullString
			volume          sql.NullInt64
		)
		if err := rows.Scan(&date, &closeText, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		closePrice, err := parseNullDecimal(closeText, "close")
		if err != nil {
			return nil, err
		}
		out = append(out, RecentRow{
			Date:   normalizeDateText(date.String),
			Close:  closePrice,
			Volume: volume.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return out, nil
}

// normalizeDateText trims any time part a driver appends to a DATE cast.
func normalizeDateText(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(dataset.DateLayout) {
		return s[:len(dataset.DateLayout)]
	}
	return s
}

// RunQuery executes a statement that returns no rows.
func (s *SQLStore) RunQuery(ctx context.Context, query string) error {
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	return nil
}

// QueryResults executes a query and returns the results as a map of column
// names to slices of values.
func (s *SQLStore) QueryResults(ctx context.Context, query string) (*QueryResults, error) {
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	results := &QueryResults{Columns: columns, Values: make(map[string][]string)}
	for _, col := range columns {
		results.Values[col] = []string{}
	}

	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, col := range columns {
			results.Values[col] = append(results.Values[col], formatValue(values[i]))
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return results, nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case duckdb.Decimal:
		if t.Value == nil {
			return "NULL"
		}
		return decimal.NewFromBigInt(t.Value, -int32(t.Scale)).StringFixed(int32(t.Scale))
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(dataset.DateLayout)
		}
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
