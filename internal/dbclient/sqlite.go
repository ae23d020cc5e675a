package dbclient

import (
	"database/sql"
	"errors"

	"awful/internal/storage"
)

func openSQLite(s Settings) (*sql.DB, error) {
	path := pick(s.DSN, s.Path)
	if path == "" {
		return nil, errors.New("sqlite: no database path")
	}
	return storage.SQLiteConn(path)
}
