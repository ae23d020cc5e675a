package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteConn opens (or creates) the SQLite file at dbPath.
func SQLiteConn(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer, a single connection avoids SQLITE_BUSY
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// OpenSQLite opens the SQLite file at dbPath and wraps it in a DB.
func OpenSQLite(ctx context.Context, dbPath string, opts Options) (*DB, error) {
	conn, err := SQLiteConn(dbPath)
	if err != nil {
		return nil, err
	}
	db, err := New(ctx, conn, SQLite{}, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}
