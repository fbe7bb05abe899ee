package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Table is the flat, string-valued form of a dataset. Rows keep the exact
// bytes they were read with so stages can rewrite one column and leave the
// others untouched.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable returns an empty table with the given header.
func NewTable(header []string) *Table {
	return &Table{Header: append([]string(nil), header...)}
}

// FromRecords builds a canonical table from records, formatting dates with
// dateLayout.
func FromRecords(records []PriceRecord, dateLayout string) *Table {
	t := NewTable(Columns)
	t.Rows = make([][]string, 0, len(records))
	for _, r := range records {
		t.Rows = append(t.Rows, r.Fields(dateLayout))
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1. Header cells
// are compared after trimming surrounding whitespace.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := NewTable(t.Header)
	c.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		c.Rows[i] = append([]string(nil), row...)
	}
	return c
}

// CheckColumns reports the first canonical column missing from the header.
func (t *Table) CheckColumns() error {
	for _, col := range Columns {
		if t.ColumnIndex(col) < 0 {
			return fmt.Errorf("missing column %q in header %v", col, t.Header)
		}
	}
	return nil
}

// Record converts row i into a PriceRecord. The date must already be
// normalized to YYYY-MM-DD.
func (t *Table) Record(i int) (PriceRecord, error) {
	if i < 0 || i >= len(t.Rows) {
		return PriceRecord{}, fmt.Errorf("row %d out of range", i)
	}
	row := t.Rows[i]

	cell := func(col string) (string, error) {
		idx := t.ColumnIndex(col)
		if idx < 0 {
			return "", fmt.Errorf("missing column %q", col)
		}
		if idx >= len(row) {
			return "", fmt.Errorf("row has %d fields, column %q is at %d", len(row), col, idx+1)
		}
		return strings.TrimSpace(row[idx]), nil
	}

	var rec PriceRecord

	raw, err := cell(ColDate)
	if err != nil {
		return rec, err
	}
	rec.Date, err = time.Parse(DateLayout, raw)
	if err != nil {
		return rec, fmt.Errorf("invalid date %q: %w", raw, err)
	}

	prices := []struct {
		col string
		dst *decimal.Decimal
	}{
		{ColOpen, &rec.Open},
		{ColHigh, &rec.High},
		{ColLow, &rec.Low},
		{ColClose, &rec.Close},
	}
	for _, p := range prices {
		raw, err := cell(p.col)
		if err != nil {
			return rec, err
		}
		if *p.dst, err = decimal.NewFromString(raw); err != nil {
			return rec, fmt.Errorf("invalid %s %q: %w", p.col, raw, err)
		}
	}

	// Dividends and splits are zero when the upstream cell is blank.
	optional := []struct {
		col string
		dst *decimal.Decimal
	}{
		{ColDividends, &rec.Dividends},
		{ColStockSplits, &rec.StockSplits},
	}
	for _, o := range optional {
		raw, err := cell(o.col)
		if err != nil {
			return rec, err
		}
		if raw == "" {
			*o.dst = decimal.Zero
			continue
		}
		if *o.dst, err = decimal.NewFromString(raw); err != nil {
			return rec, fmt.Errorf("invalid %s %q: %w", o.col, raw, err)
		}
	}

	raw, err = cell(ColVolume)
	if err != nil {
		return rec, err
	}
	rec.Volume, err = parseVolume(raw)
	if err != nil {
		return rec, err
	}

	return rec, nil
}

// Records converts every row, stopping at the first invalid one.
func (t *Table) Records() ([]PriceRecord, error) {
	records := make([]PriceRecord, 0, len(t.Rows))
	for i := range t.Rows {
		rec, err := t.Record(i)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseVolume accepts plain integers and integral decimals such as "1200.0",
// which some writers emit for integer columns.
func parseVolume(raw string) (int64, error) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("negative volume %d", v)
		}
		return v, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", ColVolume, raw, err)
	}
	return VolumeFromDecimal(d)
}
