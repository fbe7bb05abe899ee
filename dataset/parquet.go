package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// parquetRow is the on-disk schema of a parquet artifact. Cells are stored as
// the strings they were read with so a round trip through parquet is
// lossless and date normalization stays byte-preserving.
type parquetRow struct {
	Date        string `parquet:"date"`
	Open        string `parquet:"open"`
	High        string `parquet:"high"`
	Low         string `parquet:"low"`
	Close       string `parquet:"close"`
	Volume      string `parquet:"volume"`
	Dividends   string `parquet:"dividends"`
	StockSplits string `parquet:"stock_splits"`
}

func (r parquetRow) fields() []string {
	return []string{r.Date, r.Open, r.High, r.Low, r.Close, r.Volume, r.Dividends, r.StockSplits}
}

// writeParquet writes the canonical columns of t. Columns outside the
// canonical set are not representable and make the write fail.
func writeParquet(path string, t *Table) error {
	if err := t.CheckColumns(); err != nil {
		return err
	}
	if len(t.Header) != len(Columns) {
		return fmt.Errorf("parquet artifacts hold exactly %d columns, table has %d", len(Columns), len(t.Header))
	}

	idx := make([]int, len(Columns))
	for i, col := range Columns {
		idx[i] = t.ColumnIndex(col)
	}

	rows := make([]parquetRow, 0, len(t.Rows))
	for n, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("row %d has %d fields, expected %d", n+1, len(row), len(t.Header))
		}
		rows = append(rows, parquetRow{
			Date:        row[idx[0]],
			Open:        row[idx[1]],
			High:        row[idx[2]],
			Low:         row[idx[3]],
			Close:       row[idx[4]],
			Volume:      row[idx[5]],
			Dividends:   row[idx[6]],
			StockSplits: row[idx[7]],
		})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet file %s: %w", path, err)
	}
	return nil
}

func readParquet(path string) (*Table, error) {
	rows, err := parquet.ReadFile[parquetRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}

	t := NewTable(Columns)
	t.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		t.Rows = append(t.Rows, r.fields())
	}
	return t, nil
}
