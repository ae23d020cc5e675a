package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awful/internal/config"
	"awful/internal/tenant"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func initConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "awful.toml")
	_, err := run(t, "init", "-c", path)
	require.NoError(t, err)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	cfg.Logging.Output = filepath.Join(filepath.Dir(path), "awful.log")
	cfg.Sweeper.Tenants = []tenant.ID{1, 2}
	require.NoError(t, config.WriteConfigFile(path, cfg))
	return path
}

func TestInit(t *testing.T) {
	path := initConfig(t)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data", "awful.db"), cfg.Database.Path)
	assert.DirExists(t, filepath.Join(filepath.Dir(path), "data"))

	_, err = run(t, "init", "-c", path)
	require.ErrorContains(t, err, "already exists")
	_, err = run(t, "init", "-c", path, "--force")
	require.NoError(t, err)
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "install", "-c", filepath.Join(t.TempDir(), "nope.toml"))
	require.ErrorContains(t, err, "config file not found")
}

func TestInstallSweepPruneUninstall(t *testing.T) {
	path := initConfig(t)

	_, err := run(t, "install", "-c", path, "1", "2")
	require.NoError(t, err)

	out, err := run(t, "sweep", "-c", path)
	require.NoError(t, err)
	var results []struct {
		Tenant  int `json:"tenant"`
		Owners  int `json:"owners"`
		Deleted int `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Tenant)
	assert.Equal(t, 2, results[1].Tenant)

	out, err = run(t, "prune", "-c", path, "2", "post", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"pruned": null`)

	_, err = run(t, "prune", "-c", path, "2", "planet", "7")
	require.Error(t, err)

	_, err = run(t, "uninstall", "-c", path, "2")
	require.NoError(t, err)
	_, err = run(t, "uninstall", "-c", path)
	require.Error(t, err)
}

func TestParseTenants(t *testing.T) {
	ids, err := parseTenants([]string{"1", "12"})
	require.NoError(t, err)
	assert.Equal(t, []tenant.ID{1, 12}, ids)

	for _, bad := range []string{"0", "-3", "x"} {
		_, err := parseTenants([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "awful dev")
}
