package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, "prod_toxrefdb_3_0", cfg.Convert.SchemaName)
	assert.Equal(t, 1000, cfg.Convert.BatchSize)
	assert.Equal(t, filepath.Join("brick", "toxrefdb.sqlite"), cfg.Convert.OutputPath)
	assert.Equal(t, 8192, cfg.Download.ChunkSize)
}

func TestLoadConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
source:
  host: db.internal
  port: 6543
  password: hunter2
convert:
  batch_size: 250
  exclude: [tmp_load]
download:
  api_key: k
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Source.Host)
	assert.Equal(t, 6543, cfg.Source.Port)
	assert.Equal(t, "hunter2", cfg.Source.Password)
	// untouched keys keep their defaults
	assert.Equal(t, "toxrefdb", cfg.Source.Database)
	assert.Equal(t, 250, cfg.Convert.BatchSize)
	assert.Equal(t, []string{"tmp_load"}, cfg.Convert.Exclude)
	assert.Equal(t, "k", cfg.Download.APIKey)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOXREF_SOURCE_PASSWORD", "from-env")
	t.Setenv("TOXREF_BATCH_SIZE", "50")
	t.Setenv("TOXREF_BACKUP", "false")
	path := writeConfig(t, "source:\n  password: from-file\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Source.Password)
	assert.Equal(t, 50, cfg.Convert.BatchSize)
	assert.False(t, cfg.Convert.Backup)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TOXREF_SCHEMA_NAME=from_dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("TOXREF_SCHEMA_NAME") })

	cfg, err := LoadConfig(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.Convert.SchemaName)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, "convert:\n  batch_size: 0\n  schema_name: \"\"\n")

	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "convert.batch_size")
	assert.Contains(t, err.Error(), "convert.schema_name")
}

func TestLoadConfigMalformed(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, "source: [not, a, map\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateDriver(t *testing.T) {
	cfg := Default()
	cfg.Source.Driver = "oracle"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestGetConnectionString(t *testing.T) {
	pg := Default().Source
	assert.Equal(t, "host=localhost port=5432 user=postgres password=password dbname=toxrefdb sslmode=disable", pg.GetConnectionString())

	my := pg
	my.Driver = "mysql"
	my.Port = 3306
	assert.Equal(t, "postgres:password@tcp(localhost:3306)/toxrefdb?parseTime=true&charset=utf8mb4", my.GetConnectionString())
}
