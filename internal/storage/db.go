package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"

	"awful/internal/domain"
	"awful/internal/tenant"
)

// SchemaVersion is the version recorded by Install once every migration
// has been applied.
const SchemaVersion = "2"

const (
	blocksTableName = "awful_blocks"
	schemaTableName = "awful_schema"
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Options configures a DB.
type Options struct {
	// Prefix is prepended to every table name, e.g. "wp_".
	Prefix string
	// Primary is the tenant whose tables carry no tenant infix and the only
	// one with a user_id column.
	Primary tenant.ID
	// Hosts maps owner columns to the host tables they cascade from. The
	// table names are unprefixed.
	Hosts map[string]HostRef
	// Switcher is notified whenever work moves to another tenant.
	Switcher tenant.Switcher
	Logger   zerolog.Logger
}

// DB is the persistence gateway. It owns the connection and knows how the
// per-tenant tables are named and shaped.
type DB struct {
	conn     *sql.DB
	dialect  Dialect
	prefix   string
	primary  tenant.ID
	hosts    map[string]HostRef
	switcher tenant.Switcher
	logger   zerolog.Logger
}

// New wraps an open connection and makes sure the schema version table exists.
func New(ctx context.Context, conn *sql.DB, dialect Dialect, opts Options) (*DB, error) {
	if !prefixPattern.MatchString(opts.Prefix) {
		return nil, fmt.Errorf("invalid table prefix %q", opts.Prefix)
	}
	for col, ref := range opts.Hosts {
		if _, ok := kindOfColumn(col); !ok || col == ColumnSite {
			return nil, &domain.DisallowedColumnError{Column: col}
		}
		if !prefixPattern.MatchString(ref.Table) || !prefixPattern.MatchString(ref.Column) {
			return nil, fmt.Errorf("invalid host reference %s(%s)", ref.Table, ref.Column)
		}
	}
	db := &DB{
		conn:     conn,
		dialect:  dialect,
		prefix:   opts.Prefix,
		primary:  opts.Primary,
		hosts:    opts.Hosts,
		switcher: opts.Switcher,
		logger:   opts.Logger.With().Str("component", "storage").Logger(),
	}
	if _, err := conn.ExecContext(ctx, dialect.CreateSchemaTable(db.schemaTable())); err != nil {
		return nil, &domain.DatabaseError{Op: "create schema table", Err: err}
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Dialect returns the SQL dialect in use.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Primary returns the primary tenant.
func (db *DB) Primary() tenant.ID {
	return db.primary
}

// tablePrefix is the prefix of every table belonging to t.
func (db *DB) tablePrefix(t tenant.ID) string {
	if t == db.primary {
		return db.prefix
	}
	return db.prefix + strconv.FormatInt(int64(t), 10) + "_"
}

// BlocksTable returns the name of t's blocks table.
func (db *DB) BlocksTable(t tenant.ID) string {
	return db.tablePrefix(t) + blocksTableName
}

// currentTable is the blocks table of the tenant ctx is scoped to.
func (db *DB) currentTable(ctx context.Context) (string, tenant.ID) {
	t := tenant.FromOr(ctx, db.primary)
	return db.BlocksTable(t), t
}

func (db *DB) schemaTable() string {
	return db.prefix + schemaTableName
}

func (db *DB) tableSpec(t tenant.ID) TableSpec {
	spec := TableSpec{UserColumn: t == db.primary, Hosts: map[string]HostRef{}}
	for col, ref := range db.hosts {
		if ref.Table == "" {
			continue
		}
		// User accounts are shared, their table is never tenant-prefixed.
		if col == ColumnUser {
			ref.Table = db.prefix + ref.Table
		} else {
			ref.Table = db.tablePrefix(t) + ref.Table
		}
		spec.Hosts[col] = ref
	}
	return spec
}

type migration struct {
	version    string
	statements func(db *DB, t tenant.ID) []string
}

// migrations run in order; Install applies those newer than the recorded
// version.
var migrations = []migration{
	{
		version: "1",
		statements: func(db *DB, t tenant.ID) []string {
			return db.dialect.CreateBlocksTable(db.BlocksTable(t), db.tableSpec(t))
		},
	},
	{
		// Versions before 2 only indexed for_site.
		version: "2",
		statements: func(db *DB, t tenant.ID) []string {
			if db.dialect.Name() == "mysql" {
				return nil
			}
			return ownerIndexes(db.BlocksTable(t))
		},
	},
}

// InstalledVersion returns the schema version recorded for t, or "" if t
// has never been installed.
func (db *DB) InstalledVersion(ctx context.Context, t tenant.ID) (string, error) {
	var version string
	err := db.conn.QueryRowContext(ctx,
		"SELECT version FROM "+db.schemaTable()+" WHERE tenant_id = "+db.dialect.Placeholder(1),
		int64(t),
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &domain.DatabaseError{Op: "read schema version", Err: err}
	}
	return version, nil
}

// Install creates t's blocks table. It is a no-op when t is already at
// SchemaVersion.
func (db *DB) Install(ctx context.Context, t tenant.ID) error {
	return tenant.Within(ctx, db.switcher, t, func(ctx context.Context) error {
		installed, err := db.InstalledVersion(ctx, t)
		if err != nil {
			return err
		}
		if installed == SchemaVersion {
			return nil
		}

		var pending []migration
		for _, m := range migrations {
			if versionAfter(m.version, installed) {
				pending = append(pending, m)
			}
		}

		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return &domain.DatabaseError{Op: "install", Err: err}
		}
		defer tx.Rollback()

		for _, m := range pending {
			for _, stmt := range m.statements(db, t) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return &domain.DatabaseError{Op: "install " + m.version, Err: err}
				}
			}
		}
		if err := db.writeVersion(ctx, tx, t, SchemaVersion); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return &domain.DatabaseError{Op: "install", Err: err}
		}

		db.logger.Info().
			Int64("tenant", int64(t)).
			Str("from", installed).
			Str("to", SchemaVersion).
			Msg("installed block table")
		return nil
	})
}

// Uninstall drops t's blocks table and its version marker. Uninstalling a
// tenant that is not installed does nothing.
func (db *DB) Uninstall(ctx context.Context, t tenant.ID) error {
	return tenant.Within(ctx, db.switcher, t, func(ctx context.Context) error {
		if _, err := db.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+db.BlocksTable(t)); err != nil {
			return &domain.DatabaseError{Op: "uninstall", Err: err}
		}
		if _, err := db.conn.ExecContext(ctx,
			"DELETE FROM "+db.schemaTable()+" WHERE tenant_id = "+db.dialect.Placeholder(1), int64(t),
		); err != nil {
			return &domain.DatabaseError{Op: "uninstall", Err: err}
		}
		db.logger.Info().Int64("tenant", int64(t)).Msg("uninstalled block table")
		return nil
	})
}

func (db *DB) writeVersion(ctx context.Context, tx *sql.Tx, t tenant.ID, version string) error {
	ph := db.dialect.Placeholder
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+db.schemaTable()+" WHERE tenant_id = "+ph(1), int64(t)); err != nil {
		return &domain.DatabaseError{Op: "write schema version", Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+db.schemaTable()+" (tenant_id, version) VALUES ("+ph(1)+", "+ph(2)+")",
		int64(t), version,
	); err != nil {
		return &domain.DatabaseError{Op: "write schema version", Err: err}
	}
	return nil
}

// versionAfter reports whether a is newer than b. The empty version is
// older than everything.
func versionAfter(a, b string) bool {
	if b == "" {
		return true
	}
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr != nil || berr != nil {
		return a > b
	}
	return ai > bi
}
