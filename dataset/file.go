package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadFile reads a table from a .csv or .parquet file. A missing file yields
// an error wrapping os.ErrNotExist.
func ReadFile(path string) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s: %w", path, err)
		}
		defer file.Close()

		t, err := ReadCSV(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return t, nil
	case ".parquet":
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to open file %s: %w", path, err)
		}
		return readParquet(path)
	default:
		return nil, fmt.Errorf("unsupported file extension %q for %s", ext, path)
	}
}

// WriteFile writes a table to a .csv or .parquet file, replacing it.
func WriteFile(path string, t *Table) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", path, err)
		}
		if err := WriteCSV(file, t); err != nil {
			file.Close()
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("failed to close file %s: %w", path, err)
		}
		return nil
	case ".parquet":
		return writeParquet(path, t)
	default:
		return fmt.Errorf("unsupported file extension %q for %s", ext, path)
	}
}
