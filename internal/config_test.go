package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-card-game/internal"
)

func TestLoadConfig(t *testing.T) {
	t.Run("empty path yields defaults", func(t *testing.T) {
		cfg, err := internal.LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 1000, cfg.Rooms.MaxRooms)
		assert.Equal(t, 5*time.Minute, cfg.Rooms.ReconnectionTimeout)
		assert.Equal(t, 30*time.Minute, cfg.Rooms.RoomCleanupInterval)
		assert.True(t, cfg.Rooms.AllowReconnection)
		assert.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("file overrides selected fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
server:
  port: 9000
rooms:
  max_rooms: 50
  reconnection_timeout: 2m
log:
  level: debug
  format: json
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := internal.LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 50, cfg.Rooms.MaxRooms)
		assert.Equal(t, 2*time.Minute, cfg.Rooms.ReconnectionTimeout)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)

		// 未覆寫的欄位保持預設值
		assert.Equal(t, 30*time.Minute, cfg.Rooms.RoomCleanupInterval)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := internal.LoadConfig("/nonexistent/config.yaml")
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

		_, err := internal.LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestRoomsConfigManagerConfig(t *testing.T) {
	rc := internal.RoomsConfig{
		MaxRooms:            10,
		RoomCleanupInterval: time.Hour,
		ReconnectionTimeout: time.Minute,
		SweepInterval:       30 * time.Second,
		AllowReconnection:   true,
	}

	mc := rc.ManagerConfig()
	assert.Equal(t, 10, mc.MaxRooms)
	assert.Equal(t, time.Hour, mc.RoomCleanupInterval)
	assert.Equal(t, time.Minute, mc.ReconnectionTimeout)
	assert.Equal(t, 30*time.Second, mc.SweepInterval)
	assert.True(t, mc.AllowReconnection)
}
