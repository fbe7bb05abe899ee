package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// ReadCSV reads a header row followed by data rows. Every row must have as
// many fields as the header.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	t := NewTable(header)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV data: %w", err)
		}
		t.Rows = append(t.Rows, record)
	}

	return t, nil
}

// WriteCSV writes the header and all rows.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV data: %w", err)
		}
	}

	// Flush the writer to ensure all data is written
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// ParseCSV is ReadCSV over a byte slice.
func ParseCSV(data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("received empty CSV data")
	}
	return ReadCSV(bytes.NewReader(data))
}

// FormatCSV is WriteCSV into a byte slice.
func FormatCSV(t *Table) ([]byte, error) {
	var buffer bytes.Buffer
	if err := WriteCSV(&buffer, t); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
