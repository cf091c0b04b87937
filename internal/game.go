package internal

import "encoding/json"

// 系統設計問題：
//   如何讓異質的卡牌遊戲共用同一套房間/會話編排邏輯？
//
// 核心挑戰：
//   1. 多型：每個遊戲有自己的狀態、動作與規則
//   2. 隱藏資訊：每位玩家只能看到被過濾後的狀態投影
//   3. 責任邊界：核心只管理 status 轉換，不得窺探遊戲內部欄位
//
// 設計方案：
//   ✅ GameStateMachine 介面 - 每個遊戲一個實作，編排器只持有介面
//   ✅ GameState 只暴露 Status - 其餘欄位對核心完全不透明
//   ✅ 動作以 json.RawMessage 傳遞 - 由遊戲自行解碼成封閉的動作集合

// Status 遊戲會話狀態（所有遊戲共用的最小詞彙）
//
// 狀態轉換：
//
//	waiting → playing → paused → playing → ended
//	                 ↘_________________↗
//
// waiting/playing/paused 之間的轉換由編排器擁有；
// 只有遊戲本身（透過 CheckEndConditions）能決定進入 ended。
type Status string

const (
	StatusWaiting Status = "waiting" // 等待開始
	StatusPlaying Status = "playing" // 遊戲進行中
	StatusPaused  Status = "paused"  // 因玩家斷線暫停
	StatusEnded   Status = "ended"   // 遊戲結束
)

// GameState 遊戲會話狀態的不透明值。
//
// 核心只讀寫 Status；其餘一切由擁有它的遊戲狀態機自行管理。
// 具體遊戲通常內嵌 BaseState 來滿足此介面。
type GameState interface {
	Status() Status
	SetStatus(Status)
}

// BaseState 供具體遊戲內嵌的 Status 實作
type BaseState struct {
	Phase Status `json:"status"`
}

func (b *BaseState) Status() Status     { return b.Phase }
func (b *BaseState) SetStatus(s Status) { b.Phase = s }

// GameConfig 遊戲的靜態設定（純值，不隨會話變動）
type GameConfig struct {
	MinPlayers int    `json:"min_players"`
	MaxPlayers int    `json:"max_players"`
	Name       string `json:"name"`
	Version    string `json:"version"`
}

// Validation 動作驗證結果。Err 是遊戲自訂的錯誤訊息，核心不解讀。
type Validation struct {
	Valid bool
	Err   string
}

// EndCheck 結束條件檢查結果
type EndCheck struct {
	Ended bool
}

// DisconnectDirective 玩家斷線時遊戲給編排器的指示
type DisconnectDirective struct {
	ShouldPause bool
	ShouldEnd   bool
	Message     string
}

// ReconnectDirective 玩家重連時遊戲給編排器的指示
type ReconnectDirective struct {
	ShouldResume bool
	Message      string
}

// GameStateMachine 具體遊戲必須實作的狀態機合約。
//
// 合約要求：
//   - CreateInitialState 在注入的隨機源固定時必須產生確定性的結果
//   - ValidateAction 是純函數，不得變更狀態
//   - ProcessAction 就地變更傳入的狀態（避免每個動作都複製整份狀態）；
//     編排器保證只在驗證通過後呼叫一次，不會重放
//   - PlayerView 必須隱去其他玩家的私密資訊（如手牌內容）
//   - 其餘方法皆為純函數
type GameStateMachine interface {
	// Config 回傳遊戲靜態設定
	Config() GameConfig

	// CreateInitialState 建立初始會話狀態。
	// playerIDs 按回合順序排列；人數超出範圍時回傳 ErrPlayerCount。
	CreateInitialState(playerIDs []string, options map[string]any) (GameState, error)

	// ValidateAction 檢查動作是否合法（純函數）
	ValidateAction(action json.RawMessage, state GameState, playerID string) Validation

	// ProcessAction 執行已驗證的動作，就地變更狀態，回傳遊戲自訂的結果
	ProcessAction(action json.RawMessage, state GameState, playerID string) (any, error)

	// CheckEndConditions 檢查遊戲是否結束（純函數）
	CheckEndConditions(state GameState) EndCheck

	// PlayerView 回傳某玩家視角的狀態投影（隱藏資訊過濾）
	PlayerView(state GameState, playerID string) any

	// HandleDisconnection 玩家斷線時的處置指示（純函數，預設暫停）
	HandleDisconnection(state GameState, playerID string) DisconnectDirective

	// HandleReconnection 玩家重連時的處置指示（純函數，預設恢復）
	HandleReconnection(state GameState, playerID string) ReconnectDirective

	// FinalResult 計算最終結果摘要（純函數）
	FinalResult(state GameState) any
}
