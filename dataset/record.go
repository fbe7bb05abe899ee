// Package dataset holds the price history in its two shapes: typed
// PriceRecords and the flat Table that is written between pipeline stages.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ColDate        = "Date"
	ColOpen        = "Open"
	ColHigh        = "High"
	ColLow         = "Low"
	ColClose       = "Close"
	ColVolume      = "Volume"
	ColDividends   = "Dividends"
	ColStockSplits = "Stock Splits"
)

// Columns is the canonical header of every flat file, in order.
var Columns = []string{
	ColDate, ColOpen, ColHigh, ColLow, ColClose, ColVolume, ColDividends, ColStockSplits,
}

const (
	// DateLayout is the normalized calendar date.
	DateLayout = "2006-01-02"
	// TimestampLayout is how fetchers serialize dates: local midnight plus UTC offset.
	TimestampLayout = "2006-01-02 15:04:05-07:00"
)

// PriceRecord is one trading day.
type PriceRecord struct {
	Date        time.Time
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      int64
	Dividends   decimal.Decimal
	StockSplits decimal.Decimal
}

// Day returns the calendar date of the record as YYYY-MM-DD, in the
// record's own location.
func (r PriceRecord) Day() string {
	return r.Date.Format(DateLayout)
}

// Fields returns the record as canonical-order strings, formatting the date
// with dateLayout.
func (r PriceRecord) Fields(dateLayout string) []string {
	return []string{
		r.Date.Format(dateLayout),
		r.Open.String(),
		r.High.String(),
		r.Low.String(),
		r.Close.String(),
		strconv.FormatInt(r.Volume, 10),
		r.Dividends.String(),
		r.StockSplits.String(),
	}
}

// ErrVolumeOutOfRange means a volume does not fit a BIGINT column.
var ErrVolumeOutOfRange = errors.New("volume out of range for BIGINT")

var maxVolume = decimal.NewFromInt(math.MaxInt64)

// VolumeFromDecimal converts an integral, non-negative decimal to a volume.
func VolumeFromDecimal(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("invalid %s %s: not an integer", ColVolume, d.String())
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative volume %s", d.String())
	}
	if d.GreaterThan(maxVolume) {
		return 0, fmt.Errorf("%w: %s", ErrVolumeOutOfRange, d.String())
	}
	return d.IntPart(), nil
}

// VolumeFromFloat converts a JSON-decoded volume, rounding to the nearest
// share.
func VolumeFromFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s %v", ColVolume, f)
	}
	return VolumeFromDecimal(decimal.NewFromFloat(f).Round(0))
}
