package internal_test

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-card-game/internal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, cfg internal.ManagerConfig) *internal.Manager {
	t.Helper()

	// 拉長掃描間隔，避免背景掃描干擾測試
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour
	}

	m := internal.NewManager(cfg, testLogger())
	t.Cleanup(m.Stop)
	return m
}

func defaultRoomConfig() internal.RoomConfig {
	return internal.RoomConfig{MinPlayers: 2, MaxPlayers: 4}
}

func TestManagerCreateRoom(t *testing.T) {
	t.Run("creates room with valid code", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{AllowReconnection: true})

		room, host, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
		require.NoError(t, err)

		assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{6}$`), room.Code)
		assert.True(t, host.IsHost)
		assert.Equal(t, "Alice", host.Nickname)
	})

	t.Run("codes are unique", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{})

		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			room, _, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
			require.NoError(t, err)
			assert.False(t, seen[room.Code], "duplicate room code: %s", room.Code)
			seen[room.Code] = true
		}
	})

	t.Run("rejects at capacity", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{MaxRooms: 2})

		_, _, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
		require.NoError(t, err)
		_, _, err = m.CreateRoom("Bob", nil, defaultRoomConfig())
		require.NoError(t, err)

		_, _, err = m.CreateRoom("Carol", nil, defaultRoomConfig())
		assert.ErrorIs(t, err, internal.ErrAtCapacity)
	})

	t.Run("rejects invalid host nickname", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{})

		_, _, err := m.CreateRoom("", nil, defaultRoomConfig())
		assert.ErrorIs(t, err, internal.ErrInvalidNickname)
	})
}

func TestManagerJoinRoom(t *testing.T) {
	t.Run("join existing room", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{})
		room, _, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
		require.NoError(t, err)

		joined, bob, err := m.JoinRoom(room.Code, "Bob", nil)
		require.NoError(t, err)

		assert.Equal(t, room.Code, joined.Code)
		assert.Equal(t, 2, joined.PlayerCount())
		assert.False(t, bob.IsHost)
	})

	t.Run("join is case-insensitive on code", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{})
		room, _, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
		require.NoError(t, err)

		_, _, err = m.JoinRoom(strings.ToLower(room.Code), "Bob", nil)
		require.NoError(t, err)
	})

	t.Run("unknown room", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{})

		_, _, err := m.JoinRoom("NOPE99", "Bob", nil)
		assert.ErrorIs(t, err, internal.ErrRoomNotFound)
	})
}

func TestManagerLeave(t *testing.T) {
	t.Run("last player leaving removes the room", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{})
		room, host, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
		require.NoError(t, err)

		_, _, _, err = m.Leave(room.Code, host.ID)
		require.NoError(t, err)

		_, err = m.GetRoom(room.Code)
		assert.ErrorIs(t, err, internal.ErrRoomNotFound)
	})

	t.Run("host leaving transfers host", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{})
		room, host, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
		require.NoError(t, err)
		_, bob, err := m.JoinRoom(room.Code, "Bob", nil)
		require.NoError(t, err)

		_, _, newHost, err := m.Leave(room.Code, host.ID)
		require.NoError(t, err)

		require.NotNil(t, newHost)
		assert.Equal(t, bob.ID, newHost.ID)
	})
}

func TestManagerSweep(t *testing.T) {
	t.Run("removes expired disconnected players", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{
			ReconnectionTimeout: 5 * time.Minute,
			AllowReconnection:   true,
		})
		room, _, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
		require.NoError(t, err)
		_, bob, err := m.JoinRoom(room.Code, "Bob", nil)
		require.NoError(t, err)

		_, _, err = m.Disconnect(room.Code, bob.ID)
		require.NoError(t, err)

		var reaped []*internal.Player
		m.OnPlayersReaped = func(r *internal.Room, removed []*internal.Player) {
			reaped = append(reaped, removed...)
		}

		m.Sweep(time.Now().Add(6 * time.Minute))

		require.Len(t, reaped, 1)
		assert.Equal(t, bob.ID, reaped[0].ID)
		assert.Equal(t, 1, room.PlayerCount())
	})

	t.Run("removes room when all players expire", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{
			ReconnectionTimeout: 5 * time.Minute,
			AllowReconnection:   true,
		})
		room, host, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
		require.NoError(t, err)

		_, _, err = m.Disconnect(room.Code, host.ID)
		require.NoError(t, err)

		m.Sweep(time.Now().Add(6 * time.Minute))

		_, err = m.GetRoom(room.Code)
		assert.ErrorIs(t, err, internal.ErrRoomNotFound)
	})

	t.Run("removes inactive rooms", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{
			RoomCleanupInterval: 30 * time.Minute,
		})
		room, _, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
		require.NoError(t, err)

		m.Sweep(time.Now().Add(31 * time.Minute))

		_, err = m.GetRoom(room.Code)
		assert.ErrorIs(t, err, internal.ErrRoomNotFound)
	})

	t.Run("sweep is idempotent", func(t *testing.T) {
		m := newTestManager(t, internal.ManagerConfig{
			ReconnectionTimeout: 5 * time.Minute,
			AllowReconnection:   true,
		})
		room, _, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
		require.NoError(t, err)
		_, bob, err := m.JoinRoom(room.Code, "Bob", nil)
		require.NoError(t, err)

		_, _, err = m.Disconnect(room.Code, bob.ID)
		require.NoError(t, err)

		calls := 0
		m.OnPlayersReaped = func(r *internal.Room, removed []*internal.Player) {
			calls += len(removed)
		}

		at := time.Now().Add(6 * time.Minute)
		m.Sweep(at)
		m.Sweep(at)

		assert.Equal(t, 1, calls)
	})
}

func TestManagerStats(t *testing.T) {
	m := newTestManager(t, internal.ManagerConfig{})

	room, _, err := m.CreateRoom("Alice", nil, defaultRoomConfig())
	require.NoError(t, err)
	_, _, err = m.JoinRoom(room.Code, "Bob", nil)
	require.NoError(t, err)
	_, _, err = m.CreateRoom("Carol", nil, defaultRoomConfig())
	require.NoError(t, err)

	room.Mu.Lock()
	room.Session = &internal.BaseState{Phase: internal.StatusPlaying}
	room.Mu.Unlock()

	stats := m.Stats()
	assert.Equal(t, 2, stats.TotalRooms)
	assert.Equal(t, 3, stats.TotalPlayers)
	assert.Equal(t, 1, stats.ActiveGames)
	assert.Equal(t, 1, stats.WaitingRooms)
}
