package internal

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// codeLength 房間碼長度
const codeLength = 6

// codeAttempts 產生房間碼的嘗試上限。
// 碰撞時重新抽樣，超過上限回傳 ErrCodeExhausted，
// 把一個理論上無界的重試迴圈變成有界操作。
const codeAttempts = 100

// ManagerConfig 房間管理器設定
type ManagerConfig struct {
	// MaxRooms 全域房間數上限
	MaxRooms int

	// RoomCleanupInterval 房間閒置多久後被清理
	RoomCleanupInterval time.Duration

	// ReconnectionTimeout 斷線玩家座位保留時間
	ReconnectionTimeout time.Duration

	// SweepInterval 定期掃描間隔
	SweepInterval time.Duration

	// AllowReconnection 是否允許斷線重連
	AllowReconnection bool
}

// DefaultManagerConfig 預設值：
// 1000 房間、30 分鐘閒置清理、5 分鐘重連寬限、每分鐘掃描一次
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxRooms:            1000,
		RoomCleanupInterval: 30 * time.Minute,
		ReconnectionTimeout: 5 * time.Minute,
		SweepInterval:       time.Minute,
		AllowReconnection:   true,
	}
}

// Stats 管理器統計資訊（唯讀聚合，無副作用）
type Stats struct {
	TotalRooms   int `json:"total_rooms"`
	TotalPlayers int `json:"total_players"`
	ActiveGames  int `json:"active_games"`
	WaitingRooms int `json:"waiting_rooms"`
}

// Manager 房間管理器
//
// 單一寫入者原則：房間註冊表只由 Manager 變更；
// 個別房間的變更只經由該房間自己的操作進行。
// 定期掃描是唯一非請求觸發的變更路徑，與請求路徑共用同一組鎖。
type Manager struct {
	rooms  map[string]*Room // roomCode -> Room
	mu     sync.RWMutex
	cfg    ManagerConfig
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup

	// OnPlayersReaped 掃描移除斷線玩家後的回呼（編排器用來
	// 套用遊戲的斷線指示並廣播）。在持有任何房間鎖之外呼叫。
	OnPlayersReaped func(room *Room, removed []*Player)
}

// NewManager 創建房間管理器並啟動定期掃描
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if cfg.MaxRooms <= 0 {
		cfg.MaxRooms = 1000
	}
	if cfg.RoomCleanupInterval <= 0 {
		cfg.RoomCleanupInterval = 30 * time.Minute
	}
	if cfg.ReconnectionTimeout <= 0 {
		cfg.ReconnectionTimeout = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	m := &Manager{
		rooms:  make(map[string]*Room),
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.sweepLoop()

	return m
}

// CreateRoom 創建房間，第一位玩家自動成為房主
func (m *Manager) CreateRoom(hostNickname string, conn Sender, roomCfg RoomConfig) (*Room, *Player, error) {
	host, err := NewPlayer(hostNickname, conn)
	if err != nil {
		return nil, nil, err
	}

	roomCfg.AllowReconnection = m.cfg.AllowReconnection
	roomCfg.ReconnectionTimeout = m.cfg.ReconnectionTimeout

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.rooms) >= m.cfg.MaxRooms {
		return nil, nil, ErrAtCapacity
	}

	code, err := m.generateRoomCodeLocked()
	if err != nil {
		return nil, nil, err
	}

	room := NewRoom(code, host, roomCfg)
	m.rooms[code] = room

	m.logger.Info("房間已創建",
		"room_code", code,
		"host", host.Nickname,
		"max_players", roomCfg.MaxPlayers)

	return room, host, nil
}

// JoinRoom 加入現有房間
func (m *Manager) JoinRoom(code, nickname string, conn Sender) (*Room, *Player, error) {
	room, err := m.GetRoom(code)
	if err != nil {
		return nil, nil, err
	}

	player, err := NewPlayer(nickname, conn)
	if err != nil {
		return nil, nil, err
	}

	if err := room.AddPlayer(player); err != nil {
		return nil, nil, err
	}

	m.logger.Info("玩家加入房間",
		"room_code", code,
		"player", player.Nickname)

	return room, player, nil
}

// Reconnect 在寬限期內重連
func (m *Manager) Reconnect(code, playerID string, conn Sender) (*Room, *Player, error) {
	room, err := m.GetRoom(code)
	if err != nil {
		return nil, nil, err
	}

	player, err := room.ReconnectPlayer(playerID, conn)
	if err != nil {
		return nil, nil, err
	}

	m.logger.Info("玩家重連",
		"room_code", code,
		"player", player.Nickname)

	return room, player, nil
}

// Leave 明確離開房間。房間變空時立即註銷。
// 回傳被移除的玩家與新房主（沒有轉移時為 nil）。
func (m *Manager) Leave(code, playerID string) (*Room, *Player, *Player, error) {
	room, err := m.GetRoom(code)
	if err != nil {
		return nil, nil, nil, err
	}

	removed, newHost, err := room.RemovePlayer(playerID)
	if err != nil {
		return nil, nil, nil, err
	}

	if room.IsEmpty() {
		m.removeRoom(code, "empty")
	}

	m.logger.Info("玩家離開房間",
		"room_code", code,
		"player", removed.Nickname)

	return room, removed, newHost, nil
}

// Disconnect 處理傳輸層斷線。房間變空時立即註銷。
func (m *Manager) Disconnect(code, playerID string) (*Room, *Player, error) {
	room, err := m.GetRoom(code)
	if err != nil {
		return nil, nil, err
	}

	_, newHost, err := room.DisconnectPlayer(playerID)
	if err != nil {
		return nil, nil, err
	}

	if room.IsEmpty() {
		m.removeRoom(code, "empty")
	}

	return room, newHost, nil
}

// GetRoom 以房間碼查詢房間
func (m *Manager) GetRoom(code string) (*Room, error) {
	m.mu.RLock()
	room, exists := m.rooms[strings.ToUpper(code)]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}

	return room, nil
}

// Stats 統計資訊
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	stats := Stats{TotalRooms: len(rooms)}
	for _, room := range rooms {
		room.Mu.RLock()
		stats.TotalPlayers += len(room.Players)
		if room.Session != nil && room.Session.Status() == StatusPlaying {
			stats.ActiveGames++
		}
		room.Mu.RUnlock()
	}
	stats.WaitingRooms = stats.TotalRooms - stats.ActiveGames

	return stats
}

// Sweep 執行一輪清理：
//  1. 各房間移除寬限期逾時的斷線玩家
//  2. 刪除空房間與閒置超過清理窗口的房間
//
// 冪等：緊接著的第二輪掃描不會有任何效果。
func (m *Manager) Sweep(now time.Time) {
	m.mu.RLock()
	snapshot := make(map[string]*Room, len(m.rooms))
	for code, room := range m.rooms {
		snapshot[code] = room
	}
	m.mu.RUnlock()

	for code, room := range snapshot {
		removed := room.SweepExpiredDisconnections(now, m.cfg.ReconnectionTimeout)
		if len(removed) > 0 {
			m.logger.Info("已移除逾時斷線玩家",
				"room_code", code,
				"count", len(removed))

			if m.OnPlayersReaped != nil {
				m.OnPlayersReaped(room, removed)
			}
		}

		if room.IsEmpty() {
			m.removeRoom(code, "empty")
			continue
		}

		if now.Sub(room.LastActivityAt()) > m.cfg.RoomCleanupInterval {
			m.removeRoom(code, "inactive")
		}
	}
}

// Stop 停止管理器（停止掃描並等待其結束）
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()

	m.logger.Info("房間管理器已停止")
}

// sweepLoop 定期掃描。與請求路徑共用同一組鎖，
// 不會和請求觸發的變更產生競態。
func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(time.Now())
		case <-m.stopCh:
			return
		}
	}
}

// removeRoom 註銷房間
func (m *Manager) removeRoom(code, reason string) {
	m.mu.Lock()
	_, exists := m.rooms[code]
	delete(m.rooms, code)
	m.mu.Unlock()

	if exists {
		m.logger.Info("房間已移除", "room_code", code, "reason", reason)
	}
}

// generateRoomCodeLocked 產生未使用的 6 字元房間碼。
// 呼叫方需持有 m.mu。
func (m *Manager) generateRoomCodeLocked() (string, error) {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	for attempt := 0; attempt < codeAttempts; attempt++ {
		b := make([]byte, codeLength)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("讀取隨機源失敗: %w", err)
		}
		for i := range b {
			b[i] = chars[int(b[i])%len(chars)]
		}

		code := string(b)
		if _, exists := m.rooms[code]; !exists {
			return code, nil
		}
	}

	return "", ErrCodeExhausted
}
