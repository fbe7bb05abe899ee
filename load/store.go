// Package load moves normalized price rows into a relational table and reads
// verification figures back out of it.
package load

import (
	"context"
	"errors"

	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
	"github.com/shopspring/decimal"
)

var (
	// ErrAuthentication means the store rejected the supplied credentials.
	ErrAuthentication = errors.New("authentication failed")
	// ErrDuplicateDate means a row with the same date is already stored.
	ErrDuplicateDate = errors.New("duplicate date")
	// ErrOutOfRange means a value does not fit DECIMAL(10,4).
	ErrOutOfRange = errors.New("value out of range for DECIMAL(10,4)")
	// ErrBatchFault means the open batch can take no further statements.
	ErrBatchFault = errors.New("batch fault")
)

// Store is the destination table of one price history.
type Store interface {
	// EnsureSchema creates the table if it does not exist.
	EnsureSchema(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	// Truncate deletes every row and commits before returning.
	Truncate(ctx context.Context) error
	// Begin opens a batch. Rows inserted into it become visible on Commit.
	Begin(ctx context.Context) (Batch, error)
	Summarize(ctx context.Context, recent int) (Summary, error)
	QueryResults(ctx context.Context, query string) (*QueryResults, error)
	Close() error
}

// Batch is one transaction worth of inserts.
type Batch interface {
	// Insert adds one record. It returns an error wrapping ErrDuplicateDate
	// when the date is already stored, and one wrapping ErrBatchFault when
	// the batch can no longer accept statements.
	Insert(ctx context.Context, rec dataset.PriceRecord) error
	Commit() error
	Rollback() error
}

// Summary holds the verification figures printed after a load.
type Summary struct {
	Rows        int64
	FirstDate   string
	LastDate    string
	MinClose    decimal.Decimal
	MaxClose    decimal.Decimal
	AvgClose    decimal.Decimal
	Splits      int64
	FirstClose  decimal.Decimal
	LastClose   decimal.Decimal
	TotalReturn float64
	Recent      []RecentRow
}

// RecentRow is one of the most recent trading days, newest first.
type RecentRow struct {
	Date   string
	Close  decimal.Decimal
	Volume int64
}

// QueryResults holds an ad-hoc query result. Values maps column names to the
// string form of each row's value; Columns keeps the select order.
type QueryResults struct {
	Columns []string
	Values  map[string][]string
}

// Len returns the number of rows.
func (q *QueryResults) Len() int {
	if len(q.Columns) == 0 {
		return 0
	}
	return len(q.Values[q.Columns[0]])
}

// TotalReturn is (last/first - 1) * 100. A zero first close yields zero.
func TotalReturn(first, last decimal.Decimal) float64 {
	if first.IsZero() {
		return 0
	}
	return last.Div(first).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
