package internal

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// 簡單抽牌遊戲
//
// 框架驗收用的參考遊戲，刻意保持簡單：
//   - 40 張牌（4 花色 × 1-10），每人起手 3 張
//   - 輪到你時可以抽牌或結束回合
//   - 結束回合時手牌點數總和計入分數
//   - 回合數達上限或牌庫抽空時遊戲結束，最高分獲勝
//
// 重點不在遊戲性，而在完整走過狀態機合約的每一個方法：
// 驗證、處理、終局判定、視角過濾、斷線與重連指示。

// Card 一張牌
type Card struct {
	Suit  string `json:"suit"`
	Value int    `json:"value"`
}

// SimpleCardState 簡單抽牌遊戲的完整狀態
type SimpleCardState struct {
	BaseState

	PlayerIDs          []string          `json:"player_ids"`
	CurrentPlayerIndex int               `json:"current_player_index"`
	CurrentPlayerID    string            `json:"current_player_id"`
	Deck               []Card            `json:"deck"`
	Hands              map[string][]Card `json:"hands"`
	Scores             map[string]int    `json:"scores"`
	TurnCount          int               `json:"turn_count"`
	MaxTurns           int               `json:"max_turns"`
	CreatedAt          time.Time         `json:"created_at"`
}

// simpleCardAction 進站動作格式。封閉集合：未知類型一律拒絕。
type simpleCardAction struct {
	Type string `json:"type"`
}

// SimpleCardGame 簡單抽牌遊戲的狀態機實作
type SimpleCardGame struct {
	rng *rand.Rand
}

// NewSimpleCardGame 創建遊戲狀態機。
// rng 為 nil 時使用時間種子；測試可注入固定種子取得確定性。
func NewSimpleCardGame(rng *rand.Rand) *SimpleCardGame {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SimpleCardGame{rng: rng}
}

// Config 遊戲設定：2-4 人
func (g *SimpleCardGame) Config() GameConfig {
	return GameConfig{
		MinPlayers: 2,
		MaxPlayers: 4,
		Name:       "Simple Card Game",
		Version:    "1.0.0",
	}
}

// CreateInitialState 洗牌、發牌、決定起始玩家
func (g *SimpleCardGame) CreateInitialState(playerIDs []string, options map[string]any) (GameState, error) {
	cfg := g.Config()
	if len(playerIDs) < cfg.MinPlayers || len(playerIDs) > cfg.MaxPlayers {
		return nil, fmt.Errorf("%w: 需要 %d-%d 位玩家，收到 %d 位",
			ErrPlayerCount, cfg.MinPlayers, cfg.MaxPlayers, len(playerIDs))
	}

	maxTurns := 10
	if v, ok := options["maxTurns"]; ok {
		switch n := v.(type) {
		case int:
			maxTurns = n
		case float64: // JSON 數字解碼後是 float64
			maxTurns = int(n)
		}
	}

	deck := g.buildDeck()
	state := &SimpleCardState{
		BaseState:          BaseState{Phase: StatusPlaying},
		PlayerIDs:          append([]string(nil), playerIDs...),
		CurrentPlayerIndex: 0,
		CurrentPlayerID:    playerIDs[0],
		Deck:               deck,
		Hands:              make(map[string][]Card, len(playerIDs)),
		Scores:             make(map[string]int, len(playerIDs)),
		TurnCount:          0,
		MaxTurns:           maxTurns,
		CreatedAt:          time.Now(),
	}

	// 每人發 3 張起手牌。複製切片避免手牌與牌庫共用底層陣列。
	for _, id := range playerIDs {
		hand := make([]Card, 3)
		copy(hand, state.Deck[:3])
		state.Hands[id] = hand
		state.Deck = state.Deck[3:]
		state.Scores[id] = 0
	}

	return state, nil
}

// ValidateAction 驗證動作但不改變狀態
func (g *SimpleCardGame) ValidateAction(action json.RawMessage, state GameState, playerID string) Validation {
	s, ok := state.(*SimpleCardState)
	if !ok {
		return Validation{Err: "狀態類型不符"}
	}

	if s.Status() != StatusPlaying {
		return Validation{Err: "遊戲未在進行中"}
	}

	if s.CurrentPlayerID != playerID {
		return Validation{Err: "還沒輪到你"}
	}

	var a simpleCardAction
	if err := json.Unmarshal(action, &a); err != nil {
		return Validation{Err: "無法解析動作"}
	}

	switch a.Type {
	case "drawCard":
		if len(s.Deck) == 0 {
			return Validation{Err: "牌庫已空"}
		}
	case "endTurn":
		// 永遠合法
	default:
		return Validation{Err: "未知的動作類型: " + a.Type}
	}

	return Validation{Valid: true}
}

// ProcessAction 套用已通過驗證的動作並回傳結果描述
func (g *SimpleCardGame) ProcessAction(action json.RawMessage, state GameState, playerID string) (any, error) {
	s, ok := state.(*SimpleCardState)
	if !ok {
		return nil, fmt.Errorf("狀態類型不符")
	}

	var a simpleCardAction
	if err := json.Unmarshal(action, &a); err != nil {
		return nil, fmt.Errorf("無法解析動作: %w", err)
	}

	switch a.Type {
	case "drawCard":
		card := s.Deck[0]
		s.Deck = s.Deck[1:]
		s.Hands[playerID] = append(s.Hands[playerID], card)

		return map[string]any{
			"action":    "drawCard",
			"player_id": playerID,
			"card":      card,
			"deck_size": len(s.Deck),
		}, nil

	case "endTurn":
		// 分數是結束回合當下的手牌總和，手牌保留到下一輪
		score := 0
		for _, card := range s.Hands[playerID] {
			score += card.Value
		}
		s.Scores[playerID] = score

		s.CurrentPlayerIndex = (s.CurrentPlayerIndex + 1) % len(s.PlayerIDs)
		s.CurrentPlayerID = s.PlayerIDs[s.CurrentPlayerIndex]
		s.TurnCount++

		return map[string]any{
			"action":      "endTurn",
			"player_id":   playerID,
			"turn_score":  score,
			"next_player": s.CurrentPlayerID,
		}, nil

	default:
		return nil, fmt.Errorf("未知的動作類型: %s", a.Type)
	}
}

// CheckEndConditions 回合數達上限或牌庫抽空時結束
func (g *SimpleCardGame) CheckEndConditions(state GameState) EndCheck {
	s, ok := state.(*SimpleCardState)
	if !ok {
		return EndCheck{}
	}

	if s.TurnCount >= s.MaxTurns || len(s.Deck) == 0 {
		return EndCheck{Ended: true}
	}

	return EndCheck{}
}

// PlayerView 過濾隱藏資訊：只看得到自己的手牌，其他人只有張數
func (g *SimpleCardGame) PlayerView(state GameState, playerID string) any {
	s, ok := state.(*SimpleCardState)
	if !ok {
		return nil
	}

	handCounts := make(map[string]int, len(s.Hands))
	for id, hand := range s.Hands {
		handCounts[id] = len(hand)
	}

	return map[string]any{
		"status":               s.Status(),
		"player_ids":           s.PlayerIDs,
		"current_player_id":    s.CurrentPlayerID,
		"current_player_index": s.CurrentPlayerIndex,
		"deck_size":            len(s.Deck),
		"your_hand":            s.Hands[playerID],
		"hand_counts":          handCounts,
		"scores":               s.Scores,
		"turn_count":           s.TurnCount,
		"max_turns":            s.MaxTurns,
	}
}

// HandleDisconnection 斷線時暫停遊戲，等待重連
func (g *SimpleCardGame) HandleDisconnection(state GameState, playerID string) DisconnectDirective {
	return DisconnectDirective{
		ShouldPause: true,
		Message:     "玩家斷線，遊戲暫停",
	}
}

// HandleReconnection 重連後恢復遊戲
func (g *SimpleCardGame) HandleReconnection(state GameState, playerID string) ReconnectDirective {
	return ReconnectDirective{
		ShouldResume: true,
		Message:      "玩家重連，遊戲繼續",
	}
}

// FinalResult 最高分獲勝
func (g *SimpleCardGame) FinalResult(state GameState) any {
	s, ok := state.(*SimpleCardState)
	if !ok {
		return nil
	}

	winnerID := ""
	best := -1
	for _, id := range s.PlayerIDs {
		if s.Scores[id] > best {
			best = s.Scores[id]
			winnerID = id
		}
	}

	return map[string]any{
		"winner_id":   winnerID,
		"scores":      s.Scores,
		"turns":       s.TurnCount,
		"finished_at": time.Now(),
	}
}

// buildDeck 建立並洗勻 40 張牌
func (g *SimpleCardGame) buildDeck() []Card {
	suits := []string{"hearts", "diamonds", "clubs", "spades"}

	deck := make([]Card, 0, 40)
	for _, suit := range suits {
		for value := 1; value <= 10; value++ {
			deck = append(deck, Card{Suit: suit, Value: value})
		}
	}

	// Fisher-Yates 洗牌
	g.rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	return deck
}
