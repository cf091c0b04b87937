package internal

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// 系統設計問題：
//   如何管理多人卡牌遊戲房間的生命週期，處理斷線重連，並維持房主不變量？
//
// 核心挑戰：
//   1. 連接狀態機：玩家斷線後保留座位一段寬限期，逾時才移除
//   2. 房主轉移：房主離開/斷線時，必須確定性地選出新房主
//   3. 並發控制：請求觸發的操作與定期清理共用同一批資料
//   4. 資源回收：不為每位斷線玩家開計時器，改由定期掃描統一處理
//
// 設計方案：
//   ✅ disconnectedSince 時間戳映射 - 計時器數量 O(1)，掃描時統一判定
//   ✅ 確定性房主轉移 - 以加入時間最早的在線玩家為準（同時間比較 ID）
//   ✅ RWMutex - 讀多寫少優化；複合操作可由同套件的編排器直接持鎖

// RoomConfig 房間設定
type RoomConfig struct {
	MinPlayers          int           `json:"min_players"`
	MaxPlayers          int           `json:"max_players"`
	AllowReconnection   bool          `json:"-"`
	ReconnectionTimeout time.Duration `json:"-"`
}

// Room 遊戲房間
//
// 不變量：
//   - len(Players) <= Config.MaxPlayers
//   - 房間非空時，恰好一位玩家 IsHost == true
//   - DisconnectedSince 只包含「目前斷線但仍保留座位」的玩家
//   - Session 在遊戲開始前為 nil，之後保持有效直到被新會話取代
type Room struct {
	Code              string
	Players           map[string]*Player
	HostID            string
	Session           GameState
	SessionResult     any
	DisconnectedSince map[string]time.Time
	Config            RoomConfig
	CreatedAt         time.Time
	LastActivity      time.Time

	Mu sync.RWMutex
}

// NewRoom 創建房間並將 host 設為房主
func NewRoom(code string, host *Player, cfg RoomConfig) *Room {
	now := time.Now()
	host.IsHost = true

	return &Room{
		Code:              code,
		Players:           map[string]*Player{host.ID: host},
		HostID:            host.ID,
		DisconnectedSince: make(map[string]time.Time),
		Config:            cfg,
		CreatedAt:         now,
		LastActivity:      now,
	}
}

// AddPlayer 加入玩家
//
// 失敗情況（皆不產生任何變更）：
//   - ErrRoomFull：已達人數上限
//   - ErrGameInProgress：會話狀態為 playing
//   - ErrNicknameTaken：暱稱與現有玩家重複（不分大小寫）
func (r *Room) AddPlayer(p *Player) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if len(r.Players) >= r.Config.MaxPlayers {
		return ErrRoomFull
	}

	if r.Session != nil && r.Session.Status() == StatusPlaying {
		return ErrGameInProgress
	}

	lower := strings.ToLower(p.Nickname)
	for _, existing := range r.Players {
		if strings.ToLower(existing.Nickname) == lower {
			return fmt.Errorf("%w: %s", ErrNicknameTaken, p.Nickname)
		}
	}

	r.Players[p.ID] = p
	r.touchLocked()

	return nil
}

// RemovePlayer 移除玩家（明確離開或寬限期逾時）。
// 回傳被移除的玩家與新房主（沒有轉移時為 nil）。
func (r *Room) RemovePlayer(playerID string) (*Player, *Player, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	return r.removePlayerLocked(playerID)
}

func (r *Room) removePlayerLocked(playerID string) (*Player, *Player, error) {
	p, exists := r.Players[playerID]
	if !exists {
		return nil, nil, ErrPlayerNotFound
	}

	delete(r.Players, playerID)
	delete(r.DisconnectedSince, playerID)
	r.touchLocked()

	var newHost *Player
	if p.IsHost && len(r.Players) > 0 {
		newHost = r.transferHostLocked()
	}

	return p, newHost, nil
}

// DisconnectPlayer 處理傳輸層斷線。
//
// 允許重連時只標記斷線並記錄時間戳（保留座位）；
// 否則立即移除。回傳是否仍保留座位與新房主。
func (r *Room) DisconnectPlayer(playerID string) (retained bool, newHost *Player, err error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p, exists := r.Players[playerID]
	if !exists {
		return false, nil, ErrPlayerNotFound
	}

	p.MarkDisconnected()

	if r.Config.AllowReconnection {
		r.DisconnectedSince[playerID] = time.Now()
		retained = true
		r.touchLocked()

		// 斷線的房主立即讓位給仍在線的玩家；
		// 若無人在線，房主身份懸置，待重連或清理時處理
		if p.IsHost {
			newHost = r.transferHostLocked()
		}

		return retained, newHost, nil
	}

	_, newHost, _ = r.removePlayerLocked(playerID)
	return false, newHost, nil
}

// ReconnectPlayer 在寬限期內重連
func (r *Room) ReconnectPlayer(playerID string, conn Sender) (*Player, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p, exists := r.Players[playerID]
	if !exists {
		return nil, ErrPlayerNotFound
	}
	if _, ok := r.DisconnectedSince[playerID]; !ok {
		return nil, ErrNotDisconnected
	}

	p.AttachConnection(conn)
	delete(r.DisconnectedSince, playerID)
	r.touchLocked()

	return p, nil
}

// CanStartGame 在線人數落在允許範圍內，且沒有進行中的會話
func (r *Room) CanStartGame() bool {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	return r.canStartGameLocked()
}

func (r *Room) canStartGameLocked() bool {
	connected := len(r.connectedPlayersLocked())
	if connected < r.Config.MinPlayers || connected > r.Config.MaxPlayers {
		return false
	}

	return r.Session == nil || r.Session.Status() != StatusPlaying
}

// SweepExpiredDisconnections 移除斷線超過 timeout 的玩家，回傳被移除者。
// 副作用：可能觸發房主轉移，也可能讓房間變空（由呼叫方決定是否刪除房間）。
func (r *Room) SweepExpiredDisconnections(now time.Time, timeout time.Duration) []*Player {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	var expired []string
	for playerID, since := range r.DisconnectedSince {
		if now.Sub(since) > timeout {
			expired = append(expired, playerID)
		}
	}

	// 排序讓移除順序確定，便於測試
	sort.Strings(expired)

	removed := make([]*Player, 0, len(expired))
	for _, playerID := range expired {
		if p, _, err := r.removePlayerLocked(playerID); err == nil {
			removed = append(removed, p)
		}
	}

	return removed
}

// IsEmpty 房間沒有任何玩家（含斷線保留座位者）
func (r *Room) IsEmpty() bool {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	return len(r.Players) == 0
}

// GetPlayer 以 ID 查詢玩家
func (r *Room) GetPlayer(playerID string) (*Player, bool) {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	p, ok := r.Players[playerID]
	return p, ok
}

// ConnectedPlayers 依加入時間排序的在線玩家
func (r *Room) ConnectedPlayers() []*Player {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	return r.connectedPlayersLocked()
}

func (r *Room) connectedPlayersLocked() []*Player {
	players := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.Connected {
			players = append(players, p)
		}
	}

	sortPlayersByJoin(players)
	return players
}

// PlayerCount 玩家數量（含斷線保留座位者）
func (r *Room) PlayerCount() int {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	return len(r.Players)
}

// Snapshot 取得可安全傳給客戶端的房間快照
func (r *Room) Snapshot() map[string]any {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	return r.snapshotLocked()
}

// snapshotLocked 所有玩家資料都以值複製，
// 快照離開鎖之後的序列化不會讀到後續變更
func (r *Room) snapshotLocked() map[string]any {
	sorted := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		sorted = append(sorted, p)
	}
	sortPlayersByJoin(sorted)

	players := make([]PlayerInfo, 0, len(sorted))
	for _, p := range sorted {
		players = append(players, p.Info())
	}

	gameStatus := StatusWaiting
	if r.Session != nil {
		gameStatus = r.Session.Status()
	}

	return map[string]any{
		"code":        r.Code,
		"players":     players,
		"host_id":     r.HostID,
		"game_status": gameStatus,
		"config": map[string]any{
			"min_players": r.Config.MinPlayers,
			"max_players": r.Config.MaxPlayers,
		},
		"created_at": r.CreatedAt,
	}
}

// LastActivityAt 最後活動時間（供清理判定）
func (r *Room) LastActivityAt() time.Time {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	return r.LastActivity
}

func (r *Room) touchLocked() {
	r.LastActivity = time.Now()
}

// transferHostLocked 確定性房主轉移：
// 加入時間最早的在線玩家成為新房主，時間相同時比較 ID。
// 無人在線時回傳 nil（房主身份保持原狀）。
func (r *Room) transferHostLocked() *Player {
	candidates := r.connectedPlayersLocked()
	if len(candidates) == 0 {
		return nil
	}

	for _, p := range r.Players {
		p.IsHost = false
	}

	newHost := candidates[0]
	newHost.IsHost = true
	r.HostID = newHost.ID

	return newHost
}

// sortPlayersByJoin 以加入時間排序，相同時以 ID 排序（確定性）
func sortPlayersByJoin(players []*Player) {
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID < players[j].ID
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
}
