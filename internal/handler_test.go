package internal_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-card-game/internal"
)

func newTestHandler(t *testing.T) (http.Handler, *internal.Manager) {
	t.Helper()

	m := internal.NewManager(internal.ManagerConfig{}, testLogger())
	t.Cleanup(m.Stop)

	gs := internal.NewGameServer(m, internal.NewSimpleCardGame(nil), testLogger())
	ws := internal.NewWSServer(gs, testLogger())
	return internal.NewHandler(gs, ws, testLogger()).Routes(), m
}

func getJSON(t *testing.T, handler http.Handler, path string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestHandlerHealth(t *testing.T) {
	handler, _ := newTestHandler(t)

	status, body := getJSON(t, handler, "/health")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Simple Card Game", body["game"])
	assert.NotNil(t, body["stats"])
}

func TestHandlerStats(t *testing.T) {
	handler, m := newTestHandler(t)

	_, _, err := m.CreateRoom("Alice", nil, internal.RoomConfig{MinPlayers: 2, MaxPlayers: 4})
	require.NoError(t, err)

	status, body := getJSON(t, handler, "/stats")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total_rooms"])
	assert.Equal(t, float64(1), body["total_players"])
}

func TestHandlerGameInfo(t *testing.T) {
	handler, _ := newTestHandler(t)

	status, body := getJSON(t, handler, "/game-info")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Simple Card Game", body["name"])
	assert.Equal(t, float64(2), body["min_players"])
	assert.Equal(t, float64(4), body["max_players"])
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
