package load

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sfazliddinov385/walmart-stock-analysis/config"
	"github.com/sfazliddinov385/walmart-stock-analysis/prompt"
)

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: dollarN,
	valueExprs:  plainValues,
	abortsTx:    true,
}

// Postgres is a remote store reached with interactive or environment
// credentials.
type Postgres struct {
	*SQLStore
	Host     string
	Database string
}

// postgresDSN builds a URL connection string. The password is only ever
// placed in the returned string, never logged.
func postgresDSN(cfg *config.Config, creds prompt.Credentials) string {
	q := url.Values{}
	if cfg.Postgres.SSLMode != "" {
		q.Set("sslmode", cfg.Postgres.SSLMode)
	}
	if secs := int(cfg.Store.ConnectTimeout.Seconds()); secs > 0 {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(creds.Username, creds.Password),
		Host:     net.JoinHostPort(cfg.Postgres.Host, strconv.Itoa(cfg.Postgres.Port)),
		Path:     "/" + cfg.Postgres.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// NewPostgres asks credentials for the username and password and connects.
// Rejected credentials are reported as ErrAuthentication.
func NewPostgres(ctx context.Context, cfg *config.Config, credentials prompt.CredentialProvider, logger *slog.Logger) (*Postgres, error) {
	creds, err := credentials.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	db, err := sql.Open("pgx", postgresDSN(cfg, creds))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	logger.Info("Connecting to Postgres database", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database, "credentials", creds)
	if err := openPinged(ctx, db, cfg.Store.ConnectTimeout); err != nil {
		db.Close()
		return nil, classifyPostgresError(err, cfg.Postgres.Database, creds.Username)
	}

	store, err := newSQLStore(db, postgresDialect, cfg.Store.Table, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Connected to Postgres database", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	return &Postgres{SQLStore: store, Host: cfg.Postgres.Host, Database: cfg.Postgres.Database}, nil
}

func classifyPostgresError(err error, database, username string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28P01", "28000":
			return fmt.Errorf("%w for user %q on %s: %s (check the username, the password and that password authentication is enabled)",
				ErrAuthentication, username, database, pgErr.Message)
		}
	}
	return fmt.Errorf("failed to connect to postgres database %s: %w", database, err)
}

func (p *Postgres) Close() error {
	return p.DB.Close()
}
