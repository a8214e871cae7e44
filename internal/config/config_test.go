package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: ":8080"
cache:
  capacity: 42
fetcher:
  timeout: 3s
kafka:
  enabled: true
  topic: warm
  brokers: ["a:9092", "b:9092"]
database:
  master:
    host: db
    port: "5432"
    user: u
    pass: p
    name: n
    ssl_mode: disable
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPPort)
	assert.Equal(t, 42, cfg.Cache.Capacity)
	assert.Equal(t, 3*time.Second, cfg.Fetcher.Timeout)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", cfg.Database.Master.DSN())

	// Defaults fill what the file leaves out.
	assert.Equal(t, "png", cfg.Render.DefaultFormat)
	assert.EqualValues(t, 8192, cfg.Render.MaxDimension)
	assert.EqualValues(t, 50_000_000, cfg.Render.MaxSourcePixels)
	assert.Equal(t, 3, cfg.Retry.Attempts)
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("CACHE_CAPACITY", "7")

	cfg, err := Load(writeConfig(t, "database:\n  master:\n    pass: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Master.Pass)
	assert.Equal(t, 7, cfg.Cache.Capacity)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_RepositoryConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yml"))
	require.NoError(t, err)
	assert.Equal(t, 10240, cfg.Cache.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
}
