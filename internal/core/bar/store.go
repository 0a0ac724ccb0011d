package bar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// OwnedIngredientRecord 遠端持久層中的一筆持有食材
type OwnedIngredientRecord struct {
	IdentityID   string    `json:"identity_id"`
	IngredientID string    `json:"ingredient_id"`
	DisplayName  string    `json:"display_name"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RemoteStore 帳號層級的持久儲存，跨裝置共享且為權威來源。
// Upsert 以 (identity, ingredient) 為自然鍵，重複寫入視為成功而非衝突。
type RemoteStore interface {
	List(ctx context.Context, identityID string) ([]OwnedIngredientRecord, error)
	Upsert(ctx context.Context, identityID, ingredientID, displayName string) error
	Delete(ctx context.Context, identityID, ingredientID string) error
	DeleteAll(ctx context.Context, identityID string) error
}

// LocalCache 裝置層級的暫存儲存，僅供單一裝置使用，登入前的酒吧存放於此
type LocalCache interface {
	Read(ctx context.Context, deviceID string) ([]string, error)
	Write(ctx context.Context, deviceID string, ids []string) error
	Clear(ctx context.Context, deviceID string) error
}

// 操作結果的哨兵錯誤。前兩者是軟性警告，呼叫端不應視為失敗。
var (
	ErrAlreadyOwned  = errors.New("ingredient already owned")
	ErrNotOwned      = errors.New("ingredient not owned")
	ErrStaleIdentity = errors.New("identity changed while operation in flight")
	ErrQueueFull     = errors.New("mutation queue is full")
	ErrClosed        = errors.New("controller is closed")
)

// RecoverableError 重試耗盡後回傳的可恢復錯誤；樂觀更新已回滾，
// 呼叫端可提示使用者稍後重試
type RecoverableError struct {
	Op  string
	Err error
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("%s failed after retries: %v", e.Op, e.Err)
}

func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// IsRecoverable 檢查是否為重試耗盡的可恢復錯誤
func IsRecoverable(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}
