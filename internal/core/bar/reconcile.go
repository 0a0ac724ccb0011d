package bar

import (
	"context"
	"time"

	"bar-inventory-api/internal/pkg/common"

	"go.uber.org/zap"
)

// nowFunc 測試時可替換
var nowFunc = time.Now

// reconcile 匿名→登入轉換時的一次性合併：
// 遠端為權威來源，本地登入前的新增以冪等 upsert 補進遠端，
// 合併只做加法，任何一方記錄過的食材都不會因對帳而消失。
// 整個流程可冪等重跑，部分失敗的項目留在裝置快取待下次對帳。
func (c *Controller) reconcile(ctx context.Context, identity Identity, gen uint64) error {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return ErrStaleIdentity
	}
	if c.syncState.InFlight {
		c.mu.Unlock()
		return common.ErrSyncInFlight
	}
	c.syncState.InFlight = true
	c.mu.Unlock()

	outcome := SyncOutcomeFailed
	published := false
	defer func() {
		c.mu.Lock()
		c.syncState.InFlight = false
		c.syncState.Outcome = outcome
		if published {
			c.syncState.LastReconciledAt = nowFunc()
		}
		c.mu.Unlock()
	}()

	snap := c.catalog.Snapshot(ctx)
	idx := indexOf(snap)

	// 1. 遠端集合（權威來源）。失敗絕不等於「沒有持有任何食材」
	var records []OwnedIngredientRecord
	if err := c.withRetry(ctx, "list remote bar", func(ctx context.Context) error {
		var listErr error
		records, listErr = c.remote.List(ctx, identity.AccountID)
		return listErr
	}); err != nil {
		return &RecoverableError{Op: "reconcile", Err: err}
	}

	// 2. 裝置快取（可能有登入前的新增）。讀不到時只發佈遠端集合，
	//    快取內容原封不動留待下次對帳
	partial := false
	localReadable := true
	var raw []string
	if err := c.withRetry(ctx, "read local cache", func(ctx context.Context) error {
		var readErr error
		raw, readErr = c.local.Read(ctx, identity.DeviceID)
		return readErr
	}); err != nil {
		common.LogWarn("對帳時讀取裝置快取失敗，僅發佈遠端集合", zap.Error(err))
		partial = true
		localReadable = false
		raw = nil
	}

	// 3. 解析雙方識別碼後取聯集，遠端成員永遠不會被移除
	merged := make(map[string]string, len(records)+len(raw))
	remoteSet := make(map[string]bool, len(records))
	for _, rec := range records {
		id := idx.Resolve(rec.IngredientID)
		if id == "" {
			continue
		}
		remoteSet[id] = true
		name := rec.DisplayName
		if name == "" {
			name = nameOf(snap, id)
		}
		merged[id] = name
	}

	resolvedLocal := idx.ResolveMany(raw)

	// 4. 登入前新增的項目逐一 upsert，已存在視為成功
	var failed []string
	for _, id := range resolvedLocal {
		if remoteSet[id] {
			continue
		}
		name := nameOf(snap, id)
		merged[id] = name
		if err := c.withRetry(ctx, "upsert contributed", func(ctx context.Context) error {
			return c.remote.Upsert(ctx, identity.AccountID, id, name)
		}); err != nil {
			failed = append(failed, id)
		}
	}

	// 5. 只清掉已確認寫入的項目；失敗的留在快取，下次對帳重試，絕不丟棄
	if localReadable {
		if len(failed) == 0 {
			if err := c.withRetry(ctx, "clear local cache", func(ctx context.Context) error {
				return c.local.Clear(ctx, identity.DeviceID)
			}); err != nil {
				common.LogWarn("對帳後清空裝置快取失敗", zap.Error(err))
				partial = true
			}
		} else {
			partial = true
			if err := c.withRetry(ctx, "rewrite local cache", func(ctx context.Context) error {
				return c.local.Write(ctx, identity.DeviceID, failed)
			}); err != nil {
				// 寫回失敗時舊快取仍在，內容是待重試集合的超集，資料不會遺失
				common.LogWarn("對帳後改寫裝置快取失敗", zap.Error(err))
			}
		}
	}

	// 6. 發佈合併結果
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return ErrStaleIdentity
	}
	c.owned = merged
	c.mu.Unlock()
	published = true

	if partial {
		outcome = SyncOutcomePartial
	} else {
		outcome = SyncOutcomeSuccess
	}

	common.LogInfo("酒吧對帳完成",
		zap.Int("遠端數", len(remoteSet)),
		zap.Int("本地貢獻數", len(resolvedLocal)),
		zap.Int("合併後總數", len(merged)),
		zap.Int("失敗數", len(failed)),
		zap.String("結果", string(outcome)),
	)

	return nil
}
