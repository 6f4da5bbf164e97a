package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultTestConfig(t *testing.T) *Config {
	t.Helper()

	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	cfg.Directory.URL = "https://directory.example.com"
	return &cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := defaultTestConfig(t)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "marquee.db", cfg.Database.DSN)
	assert.Equal(t, 20*time.Second, cfg.Player.ReconcileInterval)
	assert.Equal(t, time.Minute, cfg.Player.HeartbeatInterval)
	assert.Equal(t, int64(500*1024*1024), cfg.Cache.Budget.Bytes())
	assert.Equal(t, 2, cfg.Cache.DownloadRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := defaultTestConfig(t)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing directory url", func(t *testing.T) {
		cfg := defaultTestConfig(t)
		cfg.Directory.URL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("relative directory url", func(t *testing.T) {
		cfg := defaultTestConfig(t)
		cfg.Directory.URL = "/not/absolute"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad database driver", func(t *testing.T) {
		cfg := defaultTestConfig(t)
		cfg.Database.Driver = "oracle"
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero cache budget", func(t *testing.T) {
		cfg := defaultTestConfig(t)
		cfg.Cache.Budget = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("reconcile interval too small", func(t *testing.T) {
		cfg := defaultTestConfig(t)
		cfg.Player.ReconcileInterval = 100 * time.Millisecond
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := defaultTestConfig(t)
		cfg.Logging.Level = "verbose"
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
directory:
  url: https://directory.example.com
cache:
  budget: 100MB
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://directory.example.com", cfg.Directory.URL)
	assert.Equal(t, int64(100*1024*1024), cfg.Cache.Budget.Bytes())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	// Untouched values keep defaults.
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestByteSizeUnmarshalText(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("5MB")))
	assert.Equal(t, int64(5*1024*1024), b.Bytes())

	require.NoError(t, b.UnmarshalText([]byte("1024")))
	assert.Equal(t, int64(1024), b.Bytes())

	assert.Error(t, b.UnmarshalText([]byte("lots")))
}

func TestEnsureScreenID(t *testing.T) {
	t.Run("configured id wins", func(t *testing.T) {
		cfg := defaultTestConfig(t)
		cfg.Screen.ID = "screen-42"
		id, err := cfg.EnsureScreenID()
		require.NoError(t, err)
		assert.Equal(t, "screen-42", id)
	})

	t.Run("generated id is persisted", func(t *testing.T) {
		cfg := defaultTestConfig(t)
		cfg.Storage.BaseDir = t.TempDir()

		id1, err := cfg.EnsureScreenID()
		require.NoError(t, err)
		require.NotEmpty(t, id1)

		id2, err := cfg.EnsureScreenID()
		require.NoError(t, err)
		assert.Equal(t, id1, id2)
	})
}
