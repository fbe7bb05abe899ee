// Package transform rewrites the Date column of a fetched price history into
// plain calendar dates.
package transform

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
)

type Strategy string

const (
	// StrategyParse parses every value as a date-like value and fails on the
	// first one it cannot read.
	StrategyParse Strategy = "parse"
	// StrategyPrefix keeps the text before the first whitespace.
	StrategyPrefix Strategy = "prefix"
	// StrategyAuto tries StrategyParse and redoes the whole table with
	// StrategyPrefix if any row fails to parse.
	StrategyAuto Strategy = "auto"
)

// ParseStrategy maps a config value onto a Strategy. Empty means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyParse:
		return StrategyParse, nil
	case StrategyPrefix:
		return StrategyPrefix, nil
	default:
		return "", fmt.Errorf("unknown date normalization strategy %q (want parse, prefix or auto)", s)
	}
}

// dateLayouts are tried in order. Time-of-day and offset are dropped after
// parsing; the calendar date is taken in the value's own offset.
var dateLayouts = []string{
	dataset.TimestampLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	dataset.DateLayout,
}

func parseDate(value string) (string, error) {
	v := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(dataset.DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", value)
}

func prefixDate(value string) string {
	v := strings.TrimSpace(value)
	if i := strings.IndexFunc(v, unicode.IsSpace); i >= 0 {
		return v[:i]
	}
	return v
}

// NormalizeDates returns a copy of t whose Date column holds YYYY-MM-DD
// strings. Row count, order and every other cell are unchanged.
func NormalizeDates(t *dataset.Table, strategy Strategy, logger *slog.Logger) (*dataset.Table, error) {
	col := t.ColumnIndex(dataset.ColDate)
	if col < 0 {
		return nil, fmt.Errorf("missing %q column in header %v", dataset.ColDate, t.Header)
	}

	switch strategy {
	case StrategyParse:
		return normalizeParse(t, col)
	case StrategyPrefix:
		return normalizePrefix(t, col)
	case StrategyAuto, "":
		out, err := normalizeParse(t, col)
		if err == nil {
			return out, nil
		}
		logger.Warn("Date parsing failed, falling back to prefix truncation", "error", err)
		return normalizePrefix(t, col)
	default:
		return nil, fmt.Errorf("unknown date normalization strategy %q", strategy)
	}
}

func normalizeParse(t *dataset.Table, col int) (*dataset.Table, error) {
	out := t.Clone()
	for i, row := range out.Rows {
		if col >= len(row) {
			return nil, fmt.Errorf("row %d: missing %s field", i+1, dataset.ColDate)
		}
		d, err := parseDate(row[col])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		row[col] = d
	}
	return out, nil
}

func normalizePrefix(t *dataset.Table, col int) (*dataset.Table, error) {
	out := t.Clone()
	for i, row := range out.Rows {
		if col >= len(row) {
			return nil, fmt.Errorf("row %d: missing %s field", i+1, dataset.ColDate)
		}
		row[col] = prefixDate(row[col])
	}
	return out, nil
}

// NormalizeDatesCSV is NormalizeDates over CSV bytes.
func NormalizeDatesCSV(csvData []byte, strategy Strategy, logger *slog.Logger) ([]byte, error) {
	t, err := dataset.ParseCSV(csvData)
	if err != nil {
		return nil, err
	}
	out, err := NormalizeDates(t, strategy, logger)
	if err != nil {
		return nil, err
	}
	return dataset.FormatCSV(out)
}
