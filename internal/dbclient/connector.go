package dbclient

import (
	"context"
	"database/sql"
	"fmt"

	"awful/internal/storage"
)

// Driver names accepted in Settings.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Settings describes how to reach the database holding the block tables.
type Settings struct {
	Driver   string
	Path     string // sqlite file
	Host     string
	Port     int
	Username string
	Password string
	Database string
	SSLMode  string
	// DSN overrides the fields above when set.
	DSN string
}

// Open connects to the configured database, verifies the connection and
// returns it with the matching SQL dialect.
func Open(ctx context.Context, s Settings) (*sql.DB, storage.Dialect, error) {
	var (
		conn *sql.DB
		err  error
	)
	switch s.Driver {
	case DriverSQLite, "":
		conn, err = openSQLite(s)
	case DriverMySQL:
		conn, err = openSQL("mysql", pick(s.DSN, buildMySQLDSN(s)))
	case DriverPostgres:
		conn, err = openSQL("postgres", pick(s.DSN, buildPostgresDSN(s)))
	default:
		return nil, nil, fmt.Errorf("unsupported driver: %s", s.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	dialect, err := storage.DialectFor(pick(s.Driver, DriverSQLite))
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := ping(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("connect %s: %w", dialect.Name(), err)
	}
	return conn, dialect, nil
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
