package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect renders the SQL that differs between the supported engines.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th argument, 1-based.
	Placeholder(n int) string
	Bool(v bool) string
	// NewID is the id literal that makes the engine assign one.
	NewID() string
	// Upsert is appended to a multi-row INSERT so that rows whose id already
	// exists only get their data column replaced.
	Upsert() string
	CreateBlocksTable(table string, spec TableSpec) []string
	CreateSchemaTable(table string) string
}

// HostRef points an owner column at the host table it references.
type HostRef struct {
	Table  string
	Column string
}

// TableSpec describes the per-tenant differences of the blocks table.
type TableSpec struct {
	// UserColumn is only set for the primary tenant; user accounts are shared
	// so their foreign key must live in exactly one table.
	UserColumn bool
	// Hosts maps owner columns to host tables. Columns without an entry get
	// no foreign key.
	Hosts map[string]HostRef
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	case "postgres", "postgresql":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", name)
	}
}

func refColumns(spec TableSpec, refType string, fk func(col string, ref HostRef) string) []string {
	var cols []string
	if spec.UserColumn {
		cols = append(cols, ColumnUser)
	}
	cols = append(cols, ColumnPost, ColumnTerm, ColumnComment)

	out := make([]string, 0, len(cols))
	for _, col := range cols {
		def := col + " " + refType + " NULL"
		if ref, ok := spec.Hosts[col]; ok && ref.Table != "" {
			def += fk(col, ref)
		}
		out = append(out, def)
	}
	return out
}

func ownerCount(spec TableSpec, wrap func(string) string) string {
	cols := []string{ColumnSite}
	if spec.UserColumn {
		cols = append(cols, ColumnUser)
	}
	cols = append(cols, ColumnPost, ColumnTerm, ColumnComment)
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = wrap("(" + col + " IS NOT NULL)")
	}
	return "CHECK (" + strings.Join(parts, " + ") + " = 1)"
}

func ownerIndexes(table string) []string {
	var out []string
	for _, col := range []string{ColumnSite, ColumnPost, ColumnTerm, ColumnComment} {
		out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_%s ON %s (%s)", table, col, table, col))
	}
	return out
}

// SQLite is the dialect of modernc.org/sqlite.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }
func (SQLite) Placeholder(int) string { return "?" }
func (SQLite) NewID() string { return "NULL" }
func (SQLite) Upsert() string { return " ON CONFLICT(id) DO UPDATE SET data = excluded.data" }
func (SQLite) Bool(v bool) string { return boolDigit(v) }

func (SQLite) CreateBlocksTable(table string, spec TableSpec) []string {
	defs := []string{
		"id INTEGER PRIMARY KEY AUTOINCREMENT",
		"uuid CHAR(36) NOT NULL UNIQUE",
		ColumnSite + " BOOLEAN NULL",
	}
	defs = append(defs, refColumns(spec, "INTEGER", func(_ string, ref HostRef) string {
		return fmt.Sprintf(" REFERENCES %s(%s) ON DELETE CASCADE", ref.Table, ref.Column)
	})...)
	defs = append(defs,
		"type VARCHAR(255) NOT NULL",
		"data TEXT NOT NULL CHECK (json_valid(data))",
		ownerCount(spec, func(s string) string { return s }),
	)
	stmts := []string{"CREATE TABLE IF NOT EXISTS " + table + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"}
	return append(stmts, ownerIndexes(table)...)
}

func (SQLite) CreateSchemaTable(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (tenant_id INTEGER PRIMARY KEY, version VARCHAR(32) NOT NULL)"
}

// MySQL is the dialect of github.com/go-sql-driver/mysql.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }
func (MySQL) Placeholder(int) string { return "?" }
func (MySQL) NewID() string { return "NULL" }

// Upsert only touches the row that matched on id; a clash on the uuid key
// of another row leaves that row alone.
func (MySQL) Upsert() string {
	return " ON DUPLICATE KEY UPDATE data = IF(uuid = VALUES(uuid), VALUES(data), data)"
}

func (MySQL) Bool(v bool) string { return boolDigit(v) }

func (MySQL) CreateBlocksTable(table string, spec TableSpec) []string {
	defs := []string{
		"id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT",
		"uuid CHAR(36) NOT NULL",
		ColumnSite + " TINYINT(1) NULL",
	}
	var constraints []string
	defs = append(defs, refColumns(spec, "BIGINT UNSIGNED", func(col string, ref HostRef) string {
		constraints = append(constraints, fmt.Sprintf(
			"CONSTRAINT %s_%s_fk FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
			table, col, col, ref.Table, ref.Column))
		return ""
	})...)
	defs = append(defs,
		"type VARCHAR(255) NOT NULL",
		"data JSON NOT NULL CHECK (JSON_VALID(data))",
		"PRIMARY KEY (id)",
		"UNIQUE KEY uuid (uuid)",
	)
	keyed := []string{ColumnSite}
	if spec.UserColumn {
		keyed = append(keyed, ColumnUser)
	}
	for _, col := range append(keyed, ColumnPost, ColumnTerm, ColumnComment) {
		defs = append(defs, "KEY "+col+" ("+col+")")
	}
	// MySQL rejects a CHECK over columns used by a cascading foreign key.
	// The gateway writes exactly one owner column either way.
	if len(constraints) == 0 {
		defs = append(defs, ownerCount(spec, func(s string) string { return s }))
	}
	defs = append(defs, constraints...)
	return []string{"CREATE TABLE IF NOT EXISTS " + table + " (\n\t" + strings.Join(defs, ",\n\t") + "\n) DEFAULT CHARSET=utf8mb4"}
}

func (MySQL) CreateSchemaTable(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (tenant_id BIGINT NOT NULL PRIMARY KEY, version VARCHAR(32) NOT NULL) DEFAULT CHARSET=utf8mb4"
}

// Postgres is the dialect of github.com/lib/pq.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }
func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (Postgres) NewID() string { return "DEFAULT" }
func (Postgres) Upsert() string { return " ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data" }

func (Postgres) Bool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (Postgres) CreateBlocksTable(table string, spec TableSpec) []string {
	defs := []string{
		"id BIGSERIAL PRIMARY KEY",
		"uuid CHAR(36) NOT NULL UNIQUE",
		ColumnSite + " BOOLEAN NULL",
	}
	defs = append(defs, refColumns(spec, "BIGINT", func(_ string, ref HostRef) string {
		return fmt.Sprintf(" REFERENCES %s (%s) ON DELETE CASCADE", ref.Table, ref.Column)
	})...)
	defs = append(defs,
		"type VARCHAR(255) NOT NULL",
		"data JSONB NOT NULL",
		ownerCount(spec, func(s string) string { return s + "::int" }),
	)
	stmts := []string{"CREATE TABLE IF NOT EXISTS " + table + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"}
	return append(stmts, ownerIndexes(table)...)
}

func (Postgres) CreateSchemaTable(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (tenant_id BIGINT PRIMARY KEY, version VARCHAR(32) NOT NULL)"
}

func boolDigit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
