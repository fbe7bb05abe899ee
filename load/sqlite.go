package load

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sfazliddinov385/walmart-stock-analysis/config"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: questionMark,
	valueExprs:  plainValues,
}

// SQLite is a file-backed store using the pure-Go SQLite driver.
type SQLite struct {
	*SQLStore
	Path string
}

// NewSQLite opens (or creates) the database at cfg.SQLite.Path.
func NewSQLite(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*SQLite, error) {
	path := cfg.SQLite.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := openPinged(ctx, db, cfg.Store.ConnectTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	store, err := newSQLStore(db, sqliteDialect, cfg.Store.Table, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info(fmt.Sprintf("Connected to SQLite database at %s", path))
	return &SQLite{SQLStore: store, Path: path}, nil
}

func (s *SQLite) Close() error {
	return s.DB.Close()
}
