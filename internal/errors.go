package internal

import "errors"

// 錯誤分類設計：
//   - 驗證錯誤（暱稱格式）：在任何狀態變更前被拒絕
//   - 容量/生命週期錯誤（房間已滿、遊戲進行中）：回報給呼叫方，無部分變更
//   - 權限錯誤（非房主操作）：直接拒絕
//   - 遊戲規則錯誤：由各遊戲的 ValidateAction 以字串回傳，核心不解讀
//
// 所有錯誤都是局部的：一次失敗的操作只終止該次請求，
// 不會破壞房間或遊戲狀態的不變量，也不會波及其他玩家。
var (
	// ErrInvalidNickname 暱稱格式不正確（長度 1-20，僅限英數字、空格、連字號、底線）
	ErrInvalidNickname = errors.New("暱稱格式不正確")

	// ErrNicknameTaken 暱稱已被房間內其他玩家使用（不分大小寫）
	ErrNicknameTaken = errors.New("暱稱已被使用")

	// ErrRoomFull 房間已達人數上限
	ErrRoomFull = errors.New("房間已滿")

	// ErrGameInProgress 遊戲進行中，無法加入
	ErrGameInProgress = errors.New("遊戲進行中，無法加入")

	// ErrRoomNotFound 房間不存在
	ErrRoomNotFound = errors.New("房間不存在")

	// ErrPlayerNotFound 玩家不在房間內
	ErrPlayerNotFound = errors.New("玩家不在房間內")

	// ErrNotDisconnected 玩家不在斷線名單中，無法重連
	ErrNotDisconnected = errors.New("玩家不在斷線名單中")

	// ErrNotInRoom 連接尚未加入任何房間
	ErrNotInRoom = errors.New("尚未加入任何房間")

	// ErrNoActiveGame 房間內沒有進行中的遊戲
	ErrNoActiveGame = errors.New("沒有進行中的遊戲")

	// ErrNotHost 只有房主可以執行此操作
	ErrNotHost = errors.New("只有房主可以執行此操作")

	// ErrCannotStart 目前人數或狀態不允許開始遊戲
	ErrCannotStart = errors.New("目前無法開始遊戲")

	// ErrCodeExhausted 連續多次無法產生未使用的房間碼
	ErrCodeExhausted = errors.New("無法產生未使用的房間碼")

	// ErrAtCapacity 伺服器房間數已達上限
	ErrAtCapacity = errors.New("伺服器房間數已達上限")

	// ErrPlayerCount 玩家人數不在遊戲允許的範圍內
	ErrPlayerCount = errors.New("玩家人數不在允許範圍內")
)
