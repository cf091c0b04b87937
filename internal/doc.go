// Package internal 實作一個回合制卡牌遊戲的多人會話框架。
//
// 系統設計問題：每個即時多人遊戲都要解決同一批問題——
// 房間生命週期、玩家斷線重連、動作驗證、隱藏資訊過濾。
// 如何把這些跟具體遊戲規則完全分離？
//
// 架構分層：
//
//	WebSocket 傳輸層 (websocket.go)
//	        ↓ 進站事件
//	會話編排器 (server.go)
//	        ↓ 操作
//	房間管理器 (manager.go) → 房間 (room.go) → 玩家 (player.go)
//	        ↓ 委派
//	遊戲狀態機合約 (game.go) ← 具體遊戲實作 (simplecard.go)
//
// 框架核心對遊戲狀態完全不透視：它只認識 GameStateMachine
// 介面與 GameState 的狀態標記。換一個遊戲只需要換一個
// GameStateMachine 實作，房間、重連、廣播邏輯原封不動。
package internal
