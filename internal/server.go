package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// 遊戲會話編排器
//
// 系統設計問題：框架核心如何在不認識任何具體遊戲的前提下，
// 驅動完整的遊戲生命週期？
//
// 核心挑戰：
//  1. 動作管線必須是原子的：驗證、套用、終局判定、廣播
//     之間不能插入其他變更，否則玩家會看到不一致的狀態
//  2. 廣播不能洩漏隱藏資訊：每位玩家只能收到自己的視角
//  3. 斷線與重連由遊戲決定後果（暫停、結束、繼續），
//     編排器只負責執行決定
//
// 設計方案 ✅：
//   - 單一 GameServer 持有 Manager 與 GameStateMachine，
//     所有進站事件都經過它
//   - 動作管線全程持有房間鎖，透過 room 的 *Locked 輔助方法操作
//   - 廣播時對每位連線中的玩家各呼叫一次 PlayerView
type GameServer struct {
	manager *Manager
	game    GameStateMachine
	logger  *slog.Logger

	// conns 連線 ID -> 玩家身分。傳輸層斷線時據此找回
	// 玩家在哪個房間。
	conns map[string]connRef
	mu    sync.Mutex
}

// connRef 一條連線對應的玩家身分
type connRef struct {
	playerID string
	roomCode string
}

// NewGameServer 創建會話編排器並掛上掃描回呼
func NewGameServer(manager *Manager, game GameStateMachine, logger *slog.Logger) *GameServer {
	s := &GameServer{
		manager: manager,
		game:    game,
		logger:  logger,
		conns:   make(map[string]connRef),
	}

	manager.OnPlayersReaped = s.handleReaped

	return s
}

// Game 目前掛載的遊戲狀態機
func (s *GameServer) Game() GameStateMachine {
	return s.game
}

// ManagerStats 轉發管理器統計
func (s *GameServer) ManagerStats() Stats {
	return s.manager.Stats()
}

// HandleCreateRoom 創建房間並回覆 roomCreated
func (s *GameServer) HandleCreateRoom(connID string, conn Sender, nickname string) {
	cfg := s.game.Config()
	room, host, err := s.manager.CreateRoom(nickname, conn, RoomConfig{
		MinPlayers: cfg.MinPlayers,
		MaxPlayers: cfg.MaxPlayers,
	})
	if err != nil {
		s.sendError(conn, err)
		return
	}

	s.bind(connID, host.ID, room.Code)

	conn.Send("roomCreated", map[string]any{
		"room":   room.Snapshot(),
		"player": s.liveInfo(room, host),
	})
}

// HandleJoinRoom 加入房間，回覆 roomJoined 並向其他人廣播 playerJoined
func (s *GameServer) HandleJoinRoom(connID string, conn Sender, code, nickname string) {
	room, player, err := s.manager.JoinRoom(code, nickname, conn)
	if err != nil {
		s.sendError(conn, err)
		return
	}

	s.bind(connID, player.ID, room.Code)

	info := s.liveInfo(room, player)

	conn.Send("roomJoined", map[string]any{
		"room":   room.Snapshot(),
		"player": info,
	})

	s.broadcastExcept(room, player.ID, "playerJoined", map[string]any{
		"player": info,
		"room":   room.Snapshot(),
	})
}

// HandleReconnect 在寬限期內重連。回覆 reconnected（含個人視角），
// 向其他人廣播 playerReconnected，並依遊戲指示決定是否恢復。
func (s *GameServer) HandleReconnect(connID string, conn Sender, code, playerID string) {
	room, player, err := s.manager.Reconnect(code, playerID, conn)
	if err != nil {
		s.sendError(conn, err)
		return
	}

	s.bind(connID, player.ID, room.Code)

	resumed := false
	var view any
	var message string
	var info PlayerInfo

	room.Mu.Lock()
	info = player.Info()
	if room.Session != nil {
		directive := s.game.HandleReconnection(room.Session, playerID)
		message = directive.Message

		if directive.ShouldResume && room.Session.Status() == StatusPaused {
			room.Session.SetStatus(StatusPlaying)
			resumed = true
		}
		view = s.game.PlayerView(room.Session, playerID)
	}
	room.Mu.Unlock()

	conn.Send("reconnected", map[string]any{
		"room":       room.Snapshot(),
		"player":     info,
		"game_state": view,
	})

	s.broadcastExcept(room, player.ID, "playerReconnected", map[string]any{
		"player":  info,
		"message": message,
	})

	if resumed {
		room.Mu.Lock()
		s.broadcastGameStateLocked(room, nil)
		room.Mu.Unlock()
	}
}

// HandleLeaveRoom 明確離開房間
func (s *GameServer) HandleLeaveRoom(connID string) {
	ref, ok := s.unbind(connID)
	if !ok {
		return
	}

	room, removed, newHost, err := s.manager.Leave(ref.roomCode, ref.playerID)
	if err != nil {
		s.logger.Warn("離開房間失敗",
			"room_code", ref.roomCode,
			"player_id", ref.playerID,
			"error", err)
		return
	}

	s.broadcastExcept(room, removed.ID, "playerLeft", map[string]any{
		"player": removed.Info(), // 已移除，不再有人變更
		"room":   room.Snapshot(),
	})

	if newHost != nil {
		s.broadcastExcept(room, "", "hostChanged", map[string]any{
			"new_host": s.liveInfo(room, newHost),
		})
	}

	s.applyDepartureDirective(room, removed.ID)
}

// HandleStartGame 房主開始遊戲
func (s *GameServer) HandleStartGame(connID string, conn Sender, options map[string]any) {
	ref, ok := s.lookup(connID)
	if !ok {
		s.sendError(conn, ErrNotInRoom)
		return
	}

	room, err := s.manager.GetRoom(ref.roomCode)
	if err != nil {
		s.sendError(conn, err)
		return
	}

	room.Mu.Lock()

	if room.HostID != ref.playerID {
		room.Mu.Unlock()
		s.sendError(conn, ErrNotHost)
		return
	}

	if !room.canStartGameLocked() {
		room.Mu.Unlock()
		s.sendError(conn, ErrCannotStart)
		return
	}

	players := room.connectedPlayersLocked()
	playerIDs := make([]string, len(players))
	for i, p := range players {
		playerIDs[i] = p.ID
	}

	state, err := s.game.CreateInitialState(playerIDs, options)
	if err != nil {
		room.Mu.Unlock()
		s.sendError(conn, err)
		return
	}

	room.Session = state
	room.SessionResult = nil
	room.touchLocked()

	s.broadcastGameStateLocked(room, nil)
	room.Mu.Unlock()

	s.logger.Info("遊戲開始",
		"room_code", room.Code,
		"players", len(playerIDs))
}

// HandleGameAction 動作管線：驗證 → 套用 → 終局判定 → 廣播。
// 全程持有房間鎖，保證管線原子性。
func (s *GameServer) HandleGameAction(connID string, conn Sender, action json.RawMessage) {
	ref, ok := s.lookup(connID)
	if !ok {
		s.sendError(conn, ErrNotInRoom)
		return
	}

	room, err := s.manager.GetRoom(ref.roomCode)
	if err != nil {
		s.sendError(conn, err)
		return
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	// 只擋「從未開始」；暫停或已結束的會話交給遊戲自己拒絕，
	// 讓玩家收到的是遊戲的措辭而不是框架的
	if room.Session == nil {
		conn.Send("actionError", map[string]any{
			"error": ErrNoActiveGame.Error(),
		})
		return
	}

	// 驗證失敗只通知發起者，不打擾其他玩家
	validation := s.game.ValidateAction(action, room.Session, ref.playerID)
	if !validation.Valid {
		conn.Send("actionError", map[string]any{
			"error": validation.Err,
		})
		return
	}

	result, err := s.processAction(action, room.Session, ref.playerID)
	if err != nil {
		s.logger.Error("處理動作失敗",
			"room_code", room.Code,
			"player_id", ref.playerID,
			"error", err)
		conn.Send("actionError", map[string]any{
			"error": "處理動作時發生內部錯誤",
		})
		return
	}

	room.touchLocked()

	if s.game.CheckEndConditions(room.Session).Ended {
		room.Session.SetStatus(StatusEnded)
		room.SessionResult = s.game.FinalResult(room.Session)

		s.logger.Info("遊戲結束", "room_code", room.Code)
	}

	s.broadcastGameStateLocked(room, result)
}

// HandleDisconnect 傳輸層斷線。允許重連時保留座位並等待寬限期，
// 否則直接移除玩家。
func (s *GameServer) HandleDisconnect(connID string) {
	ref, ok := s.unbind(connID)
	if !ok {
		return
	}

	room, newHost, err := s.manager.Disconnect(ref.roomCode, ref.playerID)
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) && !errors.Is(err, ErrPlayerNotFound) {
			s.logger.Warn("處理斷線失敗",
				"room_code", ref.roomCode,
				"player_id", ref.playerID,
				"error", err)
		}
		return
	}

	directiveMsg := s.applyDepartureDirective(room, ref.playerID)

	s.broadcastExcept(room, ref.playerID, "playerDisconnected", map[string]any{
		"player_id": ref.playerID,
		"message":   directiveMsg,
	})

	if newHost != nil {
		s.broadcastExcept(room, "", "hostChanged", map[string]any{
			"new_host": s.liveInfo(room, newHost),
		})
	}
}

// handleReaped 掃描移除寬限期逾時的玩家後套用遊戲指示並廣播
func (s *GameServer) handleReaped(room *Room, removed []*Player) {
	for _, p := range removed {
		s.broadcastExcept(room, "", "playerLeft", map[string]any{
			"player": p.Info(),
			"room":   room.Snapshot(),
		})
		s.applyDepartureDirective(room, p.ID)
	}
}

// applyDepartureDirective 玩家離開（斷線、離房或被掃除）時
// 詢問遊戲的處置並執行。回傳遊戲附帶的訊息。
func (s *GameServer) applyDepartureDirective(room *Room, playerID string) string {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.Session == nil || room.Session.Status() != StatusPlaying {
		return ""
	}

	directive := s.game.HandleDisconnection(room.Session, playerID)

	switch {
	case directive.ShouldEnd:
		room.Session.SetStatus(StatusEnded)
		room.SessionResult = s.game.FinalResult(room.Session)
		s.broadcastGameStateLocked(room, nil)

	case directive.ShouldPause:
		room.Session.SetStatus(StatusPaused)
		s.broadcastGameStateLocked(room, nil)
	}

	return directive.Message
}

// processAction 套用動作。遊戲實作來自框架外部，
// panic 必須被攔截，不能拖垮整個服務。
func (s *GameServer) processAction(action json.RawMessage, state GameState, playerID string) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorsFromPanic(r)
		}
	}()

	return s.game.ProcessAction(action, state, playerID)
}

// broadcastGameStateLocked 向每位連線中的玩家送出
// 各自的 gameStateUpdate。呼叫方需持有 room.Mu。
func (s *GameServer) broadcastGameStateLocked(room *Room, actionResult any) {
	snapshot := room.snapshotLocked()

	for _, p := range room.connectedPlayersLocked() {
		if p.Conn == nil {
			continue
		}
		p.Conn.Send("gameStateUpdate", map[string]any{
			"game_state":    s.game.PlayerView(room.Session, p.ID),
			"action_result": actionResult,
			"room":          snapshot,
			"final_result":  room.SessionResult,
		})
	}
}

// broadcastExcept 向房間內除 exceptID 外所有連線中的玩家廣播。
// exceptID 為空字串時廣播給所有人。
func (s *GameServer) broadcastExcept(room *Room, exceptID, event string, data any) {
	for _, p := range room.ConnectedPlayers() {
		if p.ID == exceptID || p.Conn == nil {
			continue
		}
		p.Conn.Send(event, data)
	}
}

// liveInfo 在房間鎖下複製仍在房間內的玩家資料
func (s *GameServer) liveInfo(room *Room, p *Player) PlayerInfo {
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	return p.Info()
}

// sendError 送出 error 事件
func (s *GameServer) sendError(conn Sender, err error) {
	conn.Send("error", map[string]any{
		"message": err.Error(),
	})
}

// bind 記錄連線對應的玩家身分
func (s *GameServer) bind(connID, playerID, roomCode string) {
	s.mu.Lock()
	s.conns[connID] = connRef{playerID: playerID, roomCode: roomCode}
	s.mu.Unlock()
}

// lookup 查詢連線對應的玩家身分
func (s *GameServer) lookup(connID string) (connRef, bool) {
	s.mu.Lock()
	ref, ok := s.conns[connID]
	s.mu.Unlock()
	return ref, ok
}

// unbind 移除並回傳連線對應的玩家身分
func (s *GameServer) unbind(connID string) (connRef, bool) {
	s.mu.Lock()
	ref, ok := s.conns[connID]
	delete(s.conns, connID)
	s.mu.Unlock()
	return ref, ok
}

// errorsFromPanic 把 recover 到的值包成 error
func errorsFromPanic(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
