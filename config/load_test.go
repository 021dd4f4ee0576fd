package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "easel.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
[database]
path = "custom.db"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "custom.db", cfg.Database.Path)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Publisher.TickerIntervalSeconds)
	assert.Equal(t, 5.0, cfg.Publisher.BroadcastEventsPerSecond)
}

func TestLoadFromFileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 9000
allowed_origins = ["https://studio.example.com"]

[publisher]
ticker_interval_seconds = 5
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://studio.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5, cfg.Publisher.TickerIntervalSeconds)
	assert.Equal(t, "easel.db", cfg.Database.Path)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "easel.toml")

	cfg := &Config{}
	cfg.Database.Path = "saved.db"
	cfg.Server.Port = 9100
	cfg.Publisher.TickerIntervalSeconds = 10
	cfg.Publisher.BroadcastEventsPerSecond = 2.5

	require.NoError(t, Save(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "saved.db", loaded.Database.Path)
	assert.Equal(t, 9100, loaded.Server.Port)
	assert.Equal(t, 10, loaded.Publisher.TickerIntervalSeconds)
	assert.Equal(t, 2.5, loaded.Publisher.BroadcastEventsPerSecond)
}

func TestSaveRotatesBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "easel.toml")
	cfg := &Config{}
	cfg.Database.Path = "first.db"

	// First save: no existing file, no backup.
	require.NoError(t, Save(cfg, path))
	_, err := os.Stat(path + ".back1")
	assert.True(t, os.IsNotExist(err))

	cfg.Database.Path = "second.db"
	require.NoError(t, Save(cfg, path))

	// The previous contents moved into .back1.
	back1, err := LoadFromFile(path + ".back1")
	require.NoError(t, err)
	assert.Equal(t, "first.db", back1.Database.Path)

	cfg.Database.Path = "third.db"
	require.NoError(t, Save(cfg, path))

	back2, err := LoadFromFile(path + ".back2")
	require.NoError(t, err)
	assert.Equal(t, "first.db", back2.Database.Path)
}
