package load

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/marcboeker/go-duckdb"
	"github.com/sfazliddinov385/walmart-stock-analysis/config"
)

// DuckDB binds the insert parameters through explicit casts so string
// values reach DATE and DECIMAL columns unchanged.
var duckdbDialect = dialect{
	name:        "duckdb",
	placeholder: questionMark,
	valueExprs: func(ph []string) []string {
		return []string{
			fmt.Sprintf("CAST(%s AS DATE)", ph[0]),
			fmt.Sprintf("CAST(%s AS DECIMAL(10, 4))", ph[1]),
			fmt.Sprintf("CAST(%s AS DECIMAL(10, 4))", ph[2]),
			fmt.Sprintf("CAST(%s AS DECIMAL(10, 4))", ph[3]),
			fmt.Sprintf("CAST(%s AS DECIMAL(10, 4))", ph[4]),
			fmt.Sprintf("CAST(%s AS BIGINT)", ph[5]),
			fmt.Sprintf("CAST(%s AS DECIMAL(10, 4))", ph[6]),
			fmt.Sprintf("CAST(%s AS DECIMAL(10, 4))", ph[7]),
		}
	},
	abortsTx: true,
}

type DuckDB struct {
	*SQLStore
	Connector *duckdb.Connector
	DBType    string
}

// NewDuckDB connects to an in-memory database ("" or ":memory:"), a local
// file, or MotherDuck ("md:" prefix, token from MOTHERDUCK_TOKEN).
func NewDuckDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*DuckDB, error) {
	var path string
	var dbType string
	if strings.HasPrefix(cfg.DuckDB.Path, "md:") {
		motherduckToken := os.Getenv("MOTHERDUCK_TOKEN")
		if motherduckToken == "" {
			return nil, fmt.Errorf("MOTHERDUCK_TOKEN env variable is not set")
		}
		path = fmt.Sprintf("%s?motherduck_token=%s", cfg.DuckDB.Path, motherduckToken)
		dbType = ":md:"
	} else if cfg.DuckDB.Path == "" || cfg.DuckDB.Path == ":memory:" {
		path = ""
		dbType = ":memory:"
	} else {
		path = cfg.DuckDB.Path
		dbType = path
	}

	var connInitFn func(driver.ExecerContext) error
	if len(cfg.DuckDB.ConnInitFnQueries) > 0 {
		queries := cfg.DuckDB.ConnInitFnQueries
		connInitFn = func(exec driver.ExecerContext) error {
			for _, path := range queries {
				query, err := readQuery(path)
				if err != nil {
					return err
				}

				if _, err := exec.ExecContext(context.Background(), string(query), nil); err != nil {
					return fmt.Errorf("failed to execute query from file %s: %w", path, err)
				}
			}
			return nil
		}
		logger.Debug(fmt.Sprintf("Connection initialization queries: %v", queries))
	}

	connector, err := duckdb.NewConnector(path, connInitFn)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	if err := openPinged(ctx, db, cfg.Store.ConnectTimeout); err != nil {
		db.Close()
		connector.Close()
		return nil, fmt.Errorf("failed to connect to duckdb database: %w", err)
	}

	store, err := newSQLStore(db, duckdbDialect, cfg.Store.Table, logger)
	if err != nil {
		db.Close()
		connector.Close()
		return nil, err
	}

	switch dbType {
	case ":memory:":
		logger.Info("Connected to DuckDB in-memory database")
	case ":md:":
		logger.Info("Connected to MotherDuck database")
	default:
		logger.Info(fmt.Sprintf("Connected to local DuckDB database at %s", dbType))
	}

	return &DuckDB{
		SQLStore:  store,
		Connector: connector,
		DBType:    dbType,
	}, nil
}

func readQuery(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	query, err := io.ReadAll(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file %s: %w", path, err)
	}
	return query, nil
}

func (db *DuckDB) Close() error {
	err := db.DB.Close()
	if cerr := db.Connector.Close(); err == nil {
		err = cerr
	}
	return err
}

// RunQueryFile executes the statements in a SQL file.
func (db *DuckDB) RunQueryFile(ctx context.Context, path string) error {
	query, err := readQuery(path)
	if err != nil {
		return err
	}

	return db.RunQuery(ctx, string(query))
}
