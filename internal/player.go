package internal

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender 傳輸層的抽象：一條可靠、有序、單一連接的事件通道。
//
// 實作要求 Send 不可阻塞（緩衝滿時丟棄），
// 這讓房間操作可以在持有鎖的情況下安全推送事件。
type Sender interface {
	Send(event string, data any)
}

// nicknameRe 允許英數字、空格、連字號、底線
var nicknameRe = regexp.MustCompile(`^[a-zA-Z0-9_\- ]+$`)

// ValidNickname 檢查暱稱格式（去除前後空白後長度 1-20）
func ValidNickname(nickname string) bool {
	trimmed := strings.TrimSpace(nickname)
	return len(trimmed) >= 1 && len(trimmed) <= 20 && nicknameRe.MatchString(trimmed)
}

// Player 玩家：身份 + 連接狀態
//
// 身份（ID、暱稱）在房間存續期間不變；
// 連接狀態（Conn、Connected）隨斷線/重連變動。
// 欄位只在持有所屬房間鎖的情況下被修改，Player 本身不帶鎖。
type Player struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	IsHost    bool      `json:"is_host"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joined_at"`

	Conn Sender `json:"-"` // 連接中時非 nil
}

// NewPlayer 創建玩家。暱稱格式不符時回傳 ErrInvalidNickname。
func NewPlayer(nickname string, conn Sender) (*Player, error) {
	if !ValidNickname(nickname) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNickname, nickname)
	}

	return &Player{
		ID:        uuid.NewString(),
		Nickname:  strings.TrimSpace(nickname),
		Connected: true,
		JoinedAt:  time.Now(),
		Conn:      conn,
	}, nil
}

// PlayerInfo 玩家資料的值型投影。
//
// 送往客戶端的事件一律攜帶 PlayerInfo 而非 *Player：
// 事件在傳輸層的 goroutine 才被序列化，指標會跟
// 房間鎖保護下的後續變更（IsHost、Connected）產生競態。
type PlayerInfo struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	IsHost    bool      `json:"is_host"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Info 複製玩家資料。玩家仍在房間內時，呼叫方需持有房間鎖；
// 已被移除的玩家不再被任何人變更，可直接呼叫。
func (p *Player) Info() PlayerInfo {
	return PlayerInfo{
		ID:        p.ID,
		Nickname:  p.Nickname,
		IsHost:    p.IsHost,
		Connected: p.Connected,
		JoinedAt:  p.JoinedAt,
	}
}

// AttachConnection 重新掛上連接（重連時使用）
func (p *Player) AttachConnection(conn Sender) {
	p.Conn = conn
	p.Connected = true
}

// MarkDisconnected 標記斷線並釋放連接
func (p *Player) MarkDisconnected() {
	p.Conn = nil
	p.Connected = false
}
