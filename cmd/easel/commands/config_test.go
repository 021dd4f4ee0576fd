package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/config"
)

func TestApplyConfigValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(t *testing.T, cfg *config.Config)
	}{
		{"database.path", "/tmp/other.db", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
		}},
		{"server.port", "9001", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, 9001, cfg.Server.Port)
		}},
		{"server.allowed_origins", "http://a.test, http://b.test", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
		}},
		{"publisher.ticker_interval_seconds", "5", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, 5, cfg.Publisher.TickerIntervalSeconds)
		}},
		{"publisher.broadcast_events_per_second", "2.5", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, 2.5, cfg.Publisher.BroadcastEventsPerSecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := &config.Config{}
			require.NoError(t, applyConfigValue(cfg, tt.key, tt.value))
			tt.check(t, cfg)
		})
	}
}

func TestApplyConfigValueRejectsBadInput(t *testing.T) {
	cfg := &config.Config{}

	assert.Error(t, applyConfigValue(cfg, "no.such.key", "x"))
	assert.Error(t, applyConfigValue(cfg, "server.port", "not-a-port"))
	assert.Error(t, applyConfigValue(cfg, "server.port", "70000"))
	assert.Error(t, applyConfigValue(cfg, "publisher.ticker_interval_seconds", "0"))
	assert.Error(t, applyConfigValue(cfg, "publisher.broadcast_events_per_second", "-1"))
}

func TestConfigSetPersistsValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "easel.toml")

	cfg := &config.Config{}
	cfg.Database.Path = "easel.db"
	require.NoError(t, applyConfigValue(cfg, "server.port", "9001"))
	require.NoError(t, config.Save(cfg, path))

	// A fresh load through the file sees the written value.
	loaded, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, loaded.Server.Port)
	assert.Equal(t, "easel.db", loaded.Database.Path)

	// A second edit rotates the previous contents into a backup.
	require.NoError(t, applyConfigValue(loaded, "server.port", "9002"))
	require.NoError(t, config.Save(loaded, path))
	assert.FileExists(t, path+".back1")

	reloaded, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9002, reloaded.Server.Port)
}
