package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket 傳輸層
//
// 系統設計問題：遊戲事件透過長連線雙向流動，如何把
// 傳輸細節（心跳、斷線偵測、寫入序列化）跟會話邏輯隔開？
//
// 核心挑戰：
//  1. gorilla/websocket 的連線同時只允許一個寫入者，
//     廣播卻可能從任何 goroutine 發起
//  2. 編排器在持有房間鎖時送出事件，送出不能阻塞
//  3. 連線悄悄死掉時必須及時察覺並觸發斷線流程
//
// 設計方案 ✅：
//   - 每條連線一對 goroutine：readPump 收、writePump 送
//   - Send 只把事件放進帶緩衝的 channel，writePump 獨佔寫入
//   - 緩衝滿代表客戶端消化不過來，直接丟棄該事件並記錄
//   - ping/pong 心跳：54 秒 ping 一次，60 秒沒回應視為斷線

const (
	// writeWait 單次寫入的期限
	writeWait = 10 * time.Second

	// pongWait 等待 pong 回應的期限
	pongWait = 60 * time.Second

	// pingPeriod 發送 ping 的間隔，必須小於 pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize 進站訊息大小上限
	maxMessageSize = 4096

	// sendBufferSize 出站緩衝大小
	sendBufferSize = 64
)

// clientMessage 進站訊息格式。Action 保持原始 JSON，
// 由遊戲自己解碼。
type clientMessage struct {
	Type     string          `json:"type"`
	Nickname string          `json:"nickname,omitempty"`
	RoomCode string          `json:"room_code,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
	Action   json.RawMessage `json:"action,omitempty"`
}

// outEvent 出站事件格式
type outEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// wsClient 一條 WebSocket 連線。實作 Sender。
type wsClient struct {
	id     string
	conn   *websocket.Conn
	send   chan outEvent
	logger *slog.Logger

	closeOnce sync.Once
}

// Send 非阻塞送出事件。緩衝滿時丟棄並記錄，
// 不能讓一個慢客戶端卡住持有房間鎖的呼叫方。
func (c *wsClient) Send(event string, data any) {
	select {
	case c.send <- outEvent{Event: event, Data: data}:
	default:
		c.logger.Warn("出站緩衝已滿，丟棄事件",
			"conn_id", c.id,
			"event", event)
	}
}

// close 關閉出站 channel，讓 writePump 結束
func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// WSServer WebSocket 接入點
type WSServer struct {
	game     *GameServer
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSServer 創建 WebSocket 服務
func NewWSServer(game *GameServer, logger *slog.Logger) *WSServer {
	return &WSServer{
		game:   game,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 示範用：接受任何來源。生產環境應檢查 Origin。
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS 升級 HTTP 連線並啟動收送迴圈
func (s *WSServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket 升級失敗", "error", err)
		return
	}

	client := &wsClient{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan outEvent, sendBufferSize),
		logger: s.logger,
	}

	s.logger.Info("新連線", "conn_id", client.id, "remote", r.RemoteAddr)

	go s.writePump(client)
	s.readPump(client)
}

// readPump 讀取並分派進站訊息。連線結束時觸發斷線流程。
func (s *WSServer) readPump(client *wsClient) {
	defer func() {
		s.game.HandleDisconnect(client.id)
		client.close()
		client.conn.Close()
		s.logger.Info("連線關閉", "conn_id", client.id)
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg clientMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("連線異常關閉", "conn_id", client.id, "error", err)
			}
			return
		}

		s.dispatch(client, msg)
	}
}

// dispatch 把進站訊息交給對應的編排器方法
func (s *WSServer) dispatch(client *wsClient, msg clientMessage) {
	switch msg.Type {
	case "createRoom":
		s.game.HandleCreateRoom(client.id, client, msg.Nickname)
	case "joinRoom":
		s.game.HandleJoinRoom(client.id, client, msg.RoomCode, msg.Nickname)
	case "reconnectToRoom":
		s.game.HandleReconnect(client.id, client, msg.RoomCode, msg.PlayerID)
	case "leaveRoom":
		s.game.HandleLeaveRoom(client.id)
	case "startGame":
		s.game.HandleStartGame(client.id, client, msg.Options)
	case "gameAction":
		s.game.HandleGameAction(client.id, client, msg.Action)
	default:
		client.Send("error", map[string]any{
			"message": "未知的訊息類型: " + msg.Type,
		})
	}
}

// writePump 序列化所有寫入並維持心跳
func (s *WSServer) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
