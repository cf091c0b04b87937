package internal

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Handler HTTP API 處理器。遊戲流量走 WebSocket，
// 這裡只提供唯讀的觀測端點。
type Handler struct {
	game   *GameServer
	ws     *WSServer
	logger *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(game *GameServer, ws *WSServer, logger *slog.Logger) *Handler {
	return &Handler{
		game:   game,
		ws:     ws,
		logger: logger,
	}
}

// Routes 註冊所有路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /stats", h.handleStats)
	mux.HandleFunc("GET /game-info", h.handleGameInfo)
	mux.HandleFunc("/ws", h.ws.HandleWS)

	return h.loggerMiddleware(h.recoverer(mux))
}

// handleHealth 健康檢查
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := h.game.Game().Config()

	jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"game":      cfg.Name,
		"version":   cfg.Version,
		"stats":     h.game.ManagerStats(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleStats 管理器統計
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.game.ManagerStats())
}

// handleGameInfo 目前掛載的遊戲資訊
func (h *Handler) handleGameInfo(w http.ResponseWriter, r *http.Request) {
	cfg := h.game.Game().Config()

	jsonResponse(w, http.StatusOK, map[string]any{
		"name":        cfg.Name,
		"version":     cfg.Version,
		"min_players": cfg.MinPlayers,
		"max_players": cfg.MaxPlayers,
	})
}

// loggerMiddleware 記錄每個請求
func (h *Handler) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		h.logger.Info("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start))
	})
}

// recoverer 攔截 panic，避免單一請求拖垮服務
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("請求處理 panic",
					"error", err,
					"path", r.URL.Path)
				errorResponse(w, http.StatusInternalServerError, "內部伺服器錯誤")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter 包裝 http.ResponseWriter 以記錄狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack 讓 WebSocket 升級能穿過狀態碼包裝
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}

// jsonResponse 送出 JSON 回應
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorResponse 送出錯誤回應
func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}
