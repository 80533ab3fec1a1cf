package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Defaults(t *testing.T) {
	cfg := Init(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "127.0.0.1:9410", cfg.BusListen)
	assert.Equal(t, 7, cfg.TrialDays)
	assert.Equal(t, 1, cfg.FreeEmailLimit)
	assert.Empty(t, cfg.Trackers)
	assert.Equal(t, cfg, Get())
}

func TestInit_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `agent:
  log_level: debug
  store:
    driver: redis
    redis:
      addr: 10.0.0.5:6379
      db: 2
  bus:
    listen: 127.0.0.1:9999
  trial_days: 14
  trackers:
    - tracker.example
    - ads.example
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg := Init(path)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis", cfg.StoreDriver)
	assert.Equal(t, "10.0.0.5:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "tracker-guard:", cfg.RedisPrefix)
	assert.Equal(t, "127.0.0.1:9999", cfg.BusListen)
	assert.Equal(t, 14, cfg.TrialDays)
	assert.Equal(t, []string{"tracker.example", "ads.example"}, cfg.Trackers)
}

func TestDataDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  db:\n    dsn: "+filepath.Join(dir, "data", "a.db")+"\n"), 0o644))
	Init(path)
	assert.Equal(t, filepath.Join(dir, "data"), DataDir())
}
