package load

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
	"github.com/sfazliddinov385/walmart-stock-analysis/prompt"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/panics"
)

const (
	DefaultBatchSize = 1000
	// MaxReportedErrors caps Result.FirstErrors.
	MaxReportedErrors = 5
)

// decimalLimit is the first magnitude DECIMAL(10,4) cannot hold.
var decimalLimit = decimal.New(1, 6)

// RowError is a rejected row. Row is 1-based within the table.
type RowError struct {
	Row  int
	Date string
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Row, e.Date, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a load. Success counts committed rows only.
type Result struct {
	Total       int
	Success     int
	Errors      int
	FirstErrors []RowError
	Batches     int
	// Declined is set when the operator chose to keep existing rows.
	Declined bool
}

func (r *Result) addError(e RowError) {
	r.Errors++
	if len(r.FirstErrors) < MaxReportedErrors {
		r.FirstErrors = append(r.FirstErrors, e)
	}
}

// Loader bulk-inserts a normalized table into a Store in fixed-size,
// individually committed batches.
type Loader struct {
	Store     Store
	Confirm   prompt.ConfirmationPrompt
	BatchSize int
	Logger    *slog.Logger
}

func NewLoader(store Store, confirm prompt.ConfirmationPrompt, batchSize int, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{Store: store, Confirm: confirm, BatchSize: batchSize, Logger: logger}
}

func (l *Loader) EnsureSchema(ctx context.Context) error {
	return l.Store.EnsureSchema(ctx)
}

// ResolveConflict asks whether to replace rows already in the table. A yes
// deletes them before returning; a no returns proceed=false and leaves the
// table untouched.
func (l *Loader) ResolveConflict(ctx context.Context) (bool, error) {
	n, err := l.Store.Count(ctx)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return true, nil
	}

	l.Logger.Warn("Table already contains rows", "rows", n)
	ok, err := l.Confirm.Confirm(ctx, fmt.Sprintf("Table already contains %d rows. Do you want to delete existing data and reload?", n))
	if err != nil {
		return false, fmt.Errorf("failed to confirm overwrite: %w", err)
	}
	if !ok {
		l.Logger.Info("Keeping existing data")
		return false, nil
	}

	l.Logger.Info("Deleting existing data", "rows", n)
	if err := l.Store.Truncate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Run creates the table, resolves a non-empty table and loads t.
func (l *Loader) Run(ctx context.Context, t *dataset.Table) (Result, error) {
	if err := l.EnsureSchema(ctx); err != nil {
		return Result{}, err
	}
	proceed, err := l.ResolveConflict(ctx)
	if err != nil {
		return Result{}, err
	}
	if !proceed {
		return Result{Total: t.Len(), Declined: true}, nil
	}
	return l.Load(ctx, t)
}

// Load inserts every row of t. Row-level failures are counted and never stop
// the batch. A batch fault stops the load after committing what the batch
// already holds; earlier batches stay committed.
func (l *Loader) Load(ctx context.Context, t *dataset.Table) (Result, error) {
	res := Result{Total: t.Len()}
	if res.Total == 0 {
		l.Logger.Info("Nothing to upload")
		return res, nil
	}
	if err := t.CheckColumns(); err != nil {
		return res, err
	}

	size := l.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	l.Logger.Info("Uploading data", "rows", res.Total, "batch_size", size)

	for start := 0; start < res.Total; start += size {
		end := min(start+size, res.Total)

		batch, err := l.Store.Begin(ctx)
		if err != nil {
			return res, fmt.Errorf("failed to begin batch starting at row %d: %w", start+1, err)
		}

		pending := 0
		var fault error
		for i := start; i < end; i++ {
			err := l.insertRow(ctx, batch, t, i)
			if err == nil {
				pending++
				continue
			}
			if isBatchFault(err) {
				fault = fmt.Errorf("row %d: %w", i+1, err)
				break
			}
			rowErr := RowError{Row: i + 1, Date: t.Rows[i][t.ColumnIndex(dataset.ColDate)], Err: err}
			if res.Errors < MaxReportedErrors {
				l.Logger.Warn("Error on row", "row", rowErr.Row, "date", rowErr.Date, "error", err)
			}
			res.addError(rowErr)
		}

		if err := batch.Commit(); err != nil {
			_ = batch.Rollback()
			return res, errors.Join(fault, fmt.Errorf("failed to commit batch starting at row %d: %w", start+1, err))
		}
		res.Success += pending
		res.Batches++

		if fault != nil {
			l.Logger.Error("Batch fault, stopping upload", "committed", res.Success, "error", fault)
			return res, fault
		}

		l.Logger.Info(fmt.Sprintf("Progress: %d/%d rows (%.1f%%)", end, res.Total, float64(end)/float64(res.Total)*100))
	}

	l.Logger.Info("Upload complete", "success", res.Success, "errors", res.Errors)
	return res, nil
}

// insertRow converts and inserts row i. A panic inside the insert is
// returned as an error for that row.
func (l *Loader) insertRow(ctx context.Context, batch Batch, t *dataset.Table, i int) error {
	rec, err := t.Record(i)
	if err != nil {
		return err
	}
	if rec, err = prepareRecord(rec); err != nil {
		return err
	}

	var catcher panics.Catcher
	catcher.Try(func() {
		err = batch.Insert(ctx, rec)
	})
	if r := catcher.Recovered(); r != nil {
		return fmt.Errorf("insert panicked: %w", r.AsError())
	}
	return err
}

// prepareRecord rounds every decimal to 4 places and rejects values that do
// not fit DECIMAL(10,4).
func prepareRecord(rec dataset.PriceRecord) (dataset.PriceRecord, error) {
	fields := []struct {
		name string
		v    *decimal.Decimal
	}{
		{dataset.ColOpen, &rec.Open},
		{dataset.ColHigh, &rec.High},
		{dataset.ColLow, &rec.Low},
		{dataset.ColClose, &rec.Close},
		{dataset.ColDividends, &rec.Dividends},
		{dataset.ColStockSplits, &rec.StockSplits},
	}
	for _, f := range fields {
		*f.v = f.v.Round(4)
		if f.v.Abs().GreaterThanOrEqual(decimalLimit) {
			return rec, fmt.Errorf("%w: %s %s", ErrOutOfRange, f.name, f.v.String())
		}
	}
	return rec, nil
}

// isBatchFault reports whether err leaves the batch unusable.
func isBatchFault(err error) bool {
	return errors.Is(err, ErrBatchFault) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Summarize reads the verification figures, with the recent most recent
// rows.
func (l *Loader) Summarize(ctx context.Context, recent int) (Summary, error) {
	return l.Store.Summarize(ctx, recent)
}
