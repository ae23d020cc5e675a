package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awful/internal/domain"
	"awful/internal/tenant"
)

type recordingSwitcher struct {
	current tenant.ID
	seen    []tenant.ID
}

func (s *recordingSwitcher) Current() tenant.ID { return s.current }

func (s *recordingSwitcher) SwitchTo(id tenant.ID) {
	s.current = id
	s.seen = append(s.seen, id)
}

func openTestDB(t *testing.T, opts Options) *DB {
	t.Helper()
	opts.Logger = zerolog.Nop()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "blocks.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.Conn().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestInstall_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, Options{Prefix: "wp_"})

	require.NoError(t, db.Install(ctx, 0))
	assert.True(t, tableExists(t, db, "wp_awful_blocks"))

	v, err := db.InstalledVersion(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)

	require.NoError(t, db.Install(ctx, 0))
	v, err = db.InstalledVersion(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)

	var markers int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM wp_awful_schema").Scan(&markers))
	assert.Equal(t, 1, markers)
}

func TestUninstall_Twice(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, Options{Prefix: "wp_"})

	require.NoError(t, db.Install(ctx, 0))
	require.NoError(t, db.Uninstall(ctx, 0))
	assert.False(t, tableExists(t, db, "wp_awful_blocks"))
	require.NoError(t, db.Uninstall(ctx, 0))

	v, err := db.InstalledVersion(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestInstall_SecondaryTenantHasNoUserColumn(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, Options{Prefix: "wp_", Primary: 1})

	require.NoError(t, db.Install(ctx, 1))
	require.NoError(t, db.Install(ctx, 2))
	assert.True(t, tableExists(t, db, "wp_awful_blocks"))
	assert.True(t, tableExists(t, db, "wp_2_awful_blocks"))

	hasColumn := func(table string) bool {
		rows, err := db.Conn().Query("SELECT name FROM pragma_table_info('" + table + "')")
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			if name == ColumnUser {
				return true
			}
		}
		return false
	}
	assert.True(t, hasColumn("wp_awful_blocks"))
	assert.False(t, hasColumn("wp_2_awful_blocks"))
}

func TestInstall_RestoresSwitcherOnError(t *testing.T) {
	ctx := context.Background()
	sw := &recordingSwitcher{current: 1}
	db := openTestDB(t, Options{Primary: 1, Switcher: sw})

	// A closed connection makes every statement fail.
	db.Close()
	err := db.Install(ctx, 3)
	require.Error(t, err)

	var dbErr *domain.DatabaseError
	assert.True(t, errors.As(err, &dbErr))
	assert.Equal(t, tenant.ID(1), sw.current)
	assert.Equal(t, []tenant.ID{3, 1}, sw.seen)
}

func TestNew_RejectsBadPrefix(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"), Options{Prefix: "wp; DROP"})
	require.Error(t, err)
}

func TestNew_RejectsUnknownHostColumn(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"), Options{
		Hosts: map[string]HostRef{"password": {Table: "users", Column: "id"}},
	})
	var colErr *domain.DisallowedColumnError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, "password", colErr.Column)
}

func TestVersionAfter(t *testing.T) {
	assert.True(t, versionAfter("1", ""))
	assert.True(t, versionAfter("2", "1"))
	assert.True(t, versionAfter("10", "9"))
	assert.False(t, versionAfter("1", "2"))
	assert.False(t, versionAfter("2", "2"))
}
