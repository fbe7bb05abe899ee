package transform

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/sfazliddinov385/walmart-stock-analysis/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func table(dates ...string) *dataset.Table {
	t := dataset.NewTable(dataset.Columns)
	for _, d := range dates {
		t.Rows = append(t.Rows, []string{d, "0.0212", "0.0215", "0.0212", "0.0212", "7833600", "0.0", "0.0"})
	}
	return t
}

func dateColumn(t *dataset.Table) []string {
	var out []string
	for _, row := range t.Rows {
		out = append(out, row[0])
	}
	return out
}

func TestNormalizeDates(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		dates    []string
		want     []string
		wantErr  string
	}{
		{
			name:     "parse offsets keep local calendar date",
			strategy: StrategyParse,
			dates: []string{
				"1972-08-25 00:00:00-04:00",
				"1972-12-01 00:00:00-05:00",
				"2020-01-02T00:00:00Z",
				"2020-01-03 23:30:00+00:00",
				"2020-01-06 09:30:00",
				"2020-01-07",
			},
			want: []string{"1972-08-25", "1972-12-01", "2020-01-02", "2020-01-03", "2020-01-06", "2020-01-07"},
		},
		{
			name:     "parse does not convert to UTC",
			strategy: StrategyParse,
			dates:    []string{"2020-01-02 23:00:00-05:00"},
			want:     []string{"2020-01-02"},
		},
		{
			name:     "parse fails on garbage",
			strategy: StrategyParse,
			dates:    []string{"2020-01-02 00:00:00-05:00", "not a date"},
			wantErr:  "row 2",
		},
		{
			name:     "prefix truncates at whitespace",
			strategy: StrategyPrefix,
			dates:    []string{"1972-08-25 00:00:00-04:00", "2020-01-07", "weird\tvalue"},
			want:     []string{"1972-08-25", "2020-01-07", "weird"},
		},
		{
			name:     "auto parses when possible",
			strategy: StrategyAuto,
			dates:    []string{"2020-01-02T00:00:00-05:00"},
			want:     []string{"2020-01-02"},
		},
		{
			name:     "auto falls back to prefix for the whole table",
			strategy: StrategyAuto,
			dates:    []string{"2020-01-02T00:00:00-05:00", "2020/01/03 00:00:00"},
			want:     []string{"2020-01-02T00:00:00-05:00", "2020/01/03"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			in := table(tt.dates...)
			got, err := NormalizeDates(in, tt.strategy, testLogger(&logs))
			if tt.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dateColumn(got))
			assert.Equal(t, in.Len(), got.Len())

			// Non-date cells are untouched and the input is not mutated.
			for i := range in.Rows {
				assert.Equal(t, in.Rows[i][1:], got.Rows[i][1:])
				assert.Equal(t, tt.dates[i], in.Rows[i][0])
			}
		})
	}
}

func TestNormalizeDatesAutoFallbackLogsWarning(t *testing.T) {
	var logs bytes.Buffer
	_, err := NormalizeDates(table("2020/01/03 00:00:00"), StrategyAuto, testLogger(&logs))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Contains(t, logs.String(), "falling back to prefix")
}

func TestNormalizeDatesIdempotent(t *testing.T) {
	dates := []string{"1972-08-25 00:00:00-04:00", "1972-12-01 00:00:00-05:00", "2024-06-14 00:00:00-04:00"}
	for _, s := range []Strategy{StrategyParse, StrategyPrefix, StrategyAuto} {
		t.Run(string(s), func(t *testing.T) {
			var logs bytes.Buffer
			once, err := NormalizeDates(table(dates...), s, testLogger(&logs))
			require.NoError(t, err)
			twice, err := NormalizeDates(once, s, testLogger(&logs))
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		})
	}
}

func TestNormalizeDatesMissingColumn(t *testing.T) {
	var logs bytes.Buffer
	in := dataset.NewTable([]string{"Timestamp", "Close"})
	in.Rows = [][]string{{"2020-01-02 00:00:00-05:00", "1"}}
	_, err := NormalizeDates(in, StrategyAuto, testLogger(&logs))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `missing "Date" column`)
}

func TestNormalizeDatesEmptyTable(t *testing.T) {
	var logs bytes.Buffer
	got, err := NormalizeDates(table(), StrategyParse, testLogger(&logs))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, dataset.Columns, got.Header)
}

func TestNormalizeDatesCSV(t *testing.T) {
	var logs bytes.Buffer
	in := []byte("Date,Open,Close\n2020-01-02 00:00:00-05:00,100.10,\"1,5\"\n")
	out, err := NormalizeDatesCSV(in, StrategyAuto, testLogger(&logs))
	require.NoError(t, err)
	assert.Equal(t, "Date,Open,Close\n2020-01-02,100.10,\"1,5\"\n", string(out))

	_, err = NormalizeDatesCSV(nil, StrategyAuto, testLogger(&logs))
	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyAuto, false},
		{"auto", StrategyAuto, false},
		{"PARSE", StrategyParse, false},
		{" prefix ", StrategyPrefix, false},
		{"regex", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
