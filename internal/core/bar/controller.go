package bar

import (
	"context"
	"sort"
	"sync"
	"time"

	"bar-inventory-api/internal/core/catalog"
	"bar-inventory-api/internal/core/match"
	"bar-inventory-api/internal/infrastructure/config"
	"bar-inventory-api/internal/pkg/common"

	"go.uber.org/zap"
)

// Identity 會話身份：匿名時只有裝置識別碼，登入後帶帳號識別碼
type Identity struct {
	DeviceID  string
	AccountID string
}

// Authenticated 是否為已登入身份
func (id Identity) Authenticated() bool {
	return id.AccountID != ""
}

// Key 會話鍵，登入身份以帳號為準
func (id Identity) Key() string {
	if id.Authenticated() {
		return "account:" + id.AccountID
	}
	return "device:" + id.DeviceID
}

// State 控制器狀態
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAnonymousReady
	StateAuthenticatedReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAnonymousReady:
		return "anonymous_ready"
	case StateAuthenticatedReady:
		return "authenticated_ready"
	default:
		return "uninitialized"
	}
}

// SyncOutcome 一次對帳的結果
type SyncOutcome string

const (
	SyncOutcomeNone    SyncOutcome = ""
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomePartial SyncOutcome = "partial"
	SyncOutcomeFailed  SyncOutcome = "failed"
)

// SyncState 每會話的對帳記錄
type SyncState struct {
	LastReconciledAt time.Time   `json:"last_reconciled_at"`
	Outcome          SyncOutcome `json:"outcome"`
	InFlight         bool        `json:"in_flight"`
}

// OwnedIngredient 對外暴露的持有食材
type OwnedIngredient struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Controller 酒吧同步控制器：擁有單一會話的持有食材集合，
// 調和裝置快取與遠端儲存，所有變更走單工佇列序列化
type Controller struct {
	remote   RemoteStore
	local    LocalCache
	catalog  *catalog.Cache
	syncCfg  config.SyncConfig
	matchCfg config.MatchConfig

	mu         sync.RWMutex
	state      State
	owned      map[string]string // 正準識別碼 -> 顯示名稱
	identity   Identity
	lastInit   string // 最後一次完成初始化的身份標記
	initMarker string // 最後一次受理初始化的身份標記，用於併合同身份的並行初始化
	generation uint64 // 身份世代，變更時遞增以丟棄在途結果
	syncState  SyncState

	tasks     chan *task
	done      chan struct{}
	closeOnce sync.Once
}

// task 佇列任務：世代落後的任務不會被執行
type task struct {
	ctx        context.Context
	generation uint64
	name       string
	run        func(ctx context.Context, gen uint64) error
	result     chan error
}

// NewController 創建同步控制器並啟動變更佇列
func NewController(remote RemoteStore, local LocalCache, catalogCache *catalog.Cache, syncCfg config.SyncConfig, matchCfg config.MatchConfig) *Controller {
	queueSize := syncCfg.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}

	c := &Controller{
		remote:   remote,
		local:    local,
		catalog:  catalogCache,
		syncCfg:  syncCfg,
		matchCfg: matchCfg,
		state:    StateUninitialized,
		owned:    make(map[string]string),
		tasks:    make(chan *task, queueSize),
		done:     make(chan struct{}),
	}

	go c.worker()

	return c
}

// worker 單一工作協程：同一時間最多一個變更在途，樂觀狀態不會交錯
func (c *Controller) worker() {
	for {
		select {
		case t := <-c.tasks:
			if !c.stillCurrent(t.generation) {
				// 身份已變更，在途任務的結果必須丟棄
				common.LogWarn("任務因身份變更被丟棄", zap.String("任務", t.name))
				t.result <- ErrStaleIdentity
				continue
			}
			t.result <- t.run(t.ctx, t.generation)
		case <-c.done:
			return
		}
	}
}

// enqueue 將任務加入佇列並等待結果
func (c *Controller) enqueue(ctx context.Context, gen uint64, name string, run func(ctx context.Context, gen uint64) error) error {
	if len(c.tasks) >= cap(c.tasks) {
		return ErrQueueFull
	}

	t := &task{
		ctx:        ctx,
		generation: gen,
		name:       name,
		run:        run,
		result:     make(chan error, 1),
	}

	select {
	case c.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-t.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) currentGen() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Controller) stillCurrent(gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return gen == c.generation
}

// Initialize 初始化控制器。同一身份重複呼叫是冪等的；
// 身份變更（匿名→登入、帳號切換、換裝置）時完整重跑
func (c *Controller) Initialize(ctx context.Context, identity Identity) error {
	marker := identity.Key() + "|" + identity.DeviceID

	c.mu.Lock()
	if c.lastInit == marker {
		c.mu.Unlock()
		return nil
	}
	// 只有身份真的變更才遞增世代。同身份的並行初始化共用同一世代，
	// 由佇列序列化後併合，而不是互相以 ErrStaleIdentity 丟棄
	if c.initMarker != marker {
		c.generation++
		c.identity = identity
		c.initMarker = marker
	}
	gen := c.generation
	c.state = StateLoading
	c.mu.Unlock()

	return c.enqueue(ctx, gen, "initialize", func(ctx context.Context, gen uint64) error {
		c.mu.RLock()
		done := c.lastInit == marker
		c.mu.RUnlock()
		if done {
			// 前一個同身份任務已完成初始化，不重新抓取或合併
			return nil
		}

		var err error
		if identity.Authenticated() {
			err = c.reconcile(ctx, identity, gen)
		} else {
			err = c.initializeAnonymous(ctx, identity, gen)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation {
			return ErrStaleIdentity
		}
		if err != nil {
			// 初始化失敗可安全重試
			c.state = StateUninitialized
			return err
		}
		c.lastInit = marker
		if identity.Authenticated() {
			c.state = StateAuthenticatedReady
		} else {
			c.state = StateAnonymousReady
		}
		return nil
	})
}

// initializeAnonymous 載入裝置快取，解析後若與儲存內容不同則寫回（讀取時遷移）
func (c *Controller) initializeAnonymous(ctx context.Context, identity Identity, gen uint64) error {
	snap := c.catalog.Snapshot(ctx)
	idx := indexOf(snap)

	var raw []string
	err := c.withRetry(ctx, "read local cache", func(ctx context.Context) error {
		var readErr error
		raw, readErr = c.local.Read(ctx, identity.DeviceID)
		return readErr
	})
	if err != nil {
		return &RecoverableError{Op: "read local cache", Err: err}
	}

	resolved := idx.ResolveMany(raw)

	// 讀取時遷移：寫回失敗不致命，舊格式下次再遷移
	if !equalStrings(raw, resolved) {
		if writeErr := c.withRetry(ctx, "migrate local cache", func(ctx context.Context) error {
			return c.local.Write(ctx, identity.DeviceID, resolved)
		}); writeErr != nil {
			common.LogWarn("裝置快取遷移寫回失敗",
				zap.Error(writeErr),
			)
		}
	}

	owned := make(map[string]string, len(resolved))
	for _, id := range resolved {
		owned[id] = nameOf(snap, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return ErrStaleIdentity
	}
	c.owned = owned
	return nil
}

// AddIngredient 加入食材。已持有時是軟性警告（ErrAlreadyOwned），不是錯誤。
// 樂觀更新先行，重試耗盡才回滾並回報可恢復錯誤
func (c *Controller) AddIngredient(ctx context.Context, rawID, displayName string) error {
	gen := c.currentGen()
	return c.enqueue(ctx, gen, "add ingredient", func(ctx context.Context, gen uint64) error {
		snap := c.catalog.Snapshot(ctx)
		id := indexOf(snap).Resolve(rawID)
		if id == "" {
			return common.NewValidationError("ingredient id is required")
		}
		name := displayName
		if name == "" {
			name = nameOf(snap, id)
		}

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return ErrStaleIdentity
		}
		if _, exists := c.owned[id]; exists {
			c.mu.Unlock()
			common.LogWarn("食材已在酒吧中", zap.String("食材", id))
			return ErrAlreadyOwned
		}
		c.owned[id] = name // 樂觀更新
		identity := c.identity
		c.mu.Unlock()

		var err error
		if identity.Authenticated() {
			err = c.withRetry(ctx, "upsert", func(ctx context.Context) error {
				return c.remote.Upsert(ctx, identity.AccountID, id, name)
			})
		} else {
			err = c.persistLocal(ctx, identity.DeviceID)
		}

		if err != nil {
			c.rollback(gen, func() {
				delete(c.owned, id)
			})
			return &RecoverableError{Op: "add ingredient", Err: err}
		}
		return nil
	})
}

// RemoveIngredient 移除食材，樂觀更新，確認失敗時回滾（重新加回）
func (c *Controller) RemoveIngredient(ctx context.Context, rawID string) error {
	gen := c.currentGen()
	return c.enqueue(ctx, gen, "remove ingredient", func(ctx context.Context, gen uint64) error {
		snap := c.catalog.Snapshot(ctx)
		id := indexOf(snap).Resolve(rawID)
		if id == "" {
			return common.NewValidationError("ingredient id is required")
		}

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return ErrStaleIdentity
		}
		prevName, exists := c.owned[id]
		if !exists {
			c.mu.Unlock()
			return ErrNotOwned
		}
		delete(c.owned, id) // 樂觀更新
		identity := c.identity
		c.mu.Unlock()

		var err error
		if identity.Authenticated() {
			err = c.withRetry(ctx, "delete", func(ctx context.Context) error {
				return c.remote.Delete(ctx, identity.AccountID, id)
			})
		} else {
			err = c.persistLocal(ctx, identity.DeviceID)
		}

		if err != nil {
			c.rollback(gen, func() {
				c.owned[id] = prevName
			})
			return &RecoverableError{Op: "remove ingredient", Err: err}
		}
		return nil
	})
}

// SetIngredients 批次加入：效果是 current ∪ ids，永遠不會刪除清單以外的食材
func (c *Controller) SetIngredients(ctx context.Context, rawIDs []string) error {
	gen := c.currentGen()
	return c.enqueue(ctx, gen, "bulk add", func(ctx context.Context, gen uint64) error {
		snap := c.catalog.Snapshot(ctx)
		resolved := indexOf(snap).ResolveMany(rawIDs)

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return ErrStaleIdentity
		}
		var added []string
		for _, id := range resolved {
			if _, exists := c.owned[id]; !exists {
				c.owned[id] = nameOf(snap, id) // 樂觀更新
				added = append(added, id)
			}
		}
		identity := c.identity
		c.mu.Unlock()

		if len(added) == 0 {
			return nil
		}

		if identity.Authenticated() {
			var failed []string
			var lastErr error
			for _, id := range added {
				id := id
				if err := c.withRetry(ctx, "upsert", func(ctx context.Context) error {
					return c.remote.Upsert(ctx, identity.AccountID, id, nameOf(snap, id))
				}); err != nil {
					failed = append(failed, id)
					lastErr = err
				}
			}
			if len(failed) > 0 {
				// 只回滾寫入失敗的項目，成功的保留
				c.rollback(gen, func() {
					for _, id := range failed {
						delete(c.owned, id)
					}
				})
				return &RecoverableError{Op: "bulk add", Err: lastErr}
			}
			return nil
		}

		if err := c.persistLocal(ctx, identity.DeviceID); err != nil {
			c.rollback(gen, func() {
				for _, id := range added {
					delete(c.owned, id)
				}
			})
			return &RecoverableError{Op: "bulk add", Err: err}
		}
		return nil
	})
}

// ClearAll 唯一允許清空整個集合的操作，對權威儲存執行完整刪除
func (c *Controller) ClearAll(ctx context.Context) error {
	gen := c.currentGen()
	return c.enqueue(ctx, gen, "clear all", func(ctx context.Context, gen uint64) error {
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return ErrStaleIdentity
		}
		prev := c.owned
		c.owned = make(map[string]string) // 樂觀更新
		identity := c.identity
		c.mu.Unlock()

		if identity.Authenticated() {
			if err := c.withRetry(ctx, "delete all", func(ctx context.Context) error {
				return c.remote.DeleteAll(ctx, identity.AccountID)
			}); err != nil {
				c.rollback(gen, func() {
					c.owned = prev
				})
				return &RecoverableError{Op: "clear all", Err: err}
			}
			// 裝置快取也一併清空，避免下次對帳把舊內容加回來；失敗只記錄
			if err := c.local.Clear(ctx, identity.DeviceID); err != nil {
				common.LogWarn("清空裝置快取失敗", zap.Error(err))
			}
			return nil
		}

		if err := c.withRetry(ctx, "clear local cache", func(ctx context.Context) error {
			return c.local.Clear(ctx, identity.DeviceID)
		}); err != nil {
			c.rollback(gen, func() {
				c.owned = prev
			})
			return &RecoverableError{Op: "clear all", Err: err}
		}
		return nil
	})
}

// ForceSync 重新執行對帳，冪等，可安全重試
func (c *Controller) ForceSync(ctx context.Context) error {
	c.mu.RLock()
	identity := c.identity
	gen := c.generation
	c.mu.RUnlock()

	if !identity.Authenticated() {
		return common.NewValidationError("sync requires an authenticated identity")
	}

	return c.enqueue(ctx, gen, "reconcile", func(ctx context.Context, gen uint64) error {
		return c.reconcile(ctx, identity, gen)
	})
}

// OwnedIngredients 目前持有的食材，依名稱排序
func (c *Controller) OwnedIngredients() []OwnedIngredient {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]OwnedIngredient, 0, len(c.owned))
	for id, name := range c.owned {
		out = append(out, OwnedIngredient{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IsLoading 是否尚在載入中
func (c *Controller) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateLoading
}

// State 目前狀態
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SyncStatus 對帳記錄的副本
func (c *Controller) SyncStatus() SyncState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syncState
}

// ClassifyRecipes 以目前酒吧內容對配方分級，recipes 為 nil 時使用目錄全集
func (c *Controller) ClassifyRecipes(ctx context.Context, recipes []catalog.Recipe) match.Result {
	snap := c.catalog.Snapshot(ctx)
	if recipes == nil && snap != nil {
		recipes = snap.Recipes
	}

	c.mu.RLock()
	owned := make(map[string]bool, len(c.owned))
	for id := range c.owned {
		owned[id] = true
	}
	c.mu.RUnlock()

	staples := map[string]bool{}
	var nameFor func(string) string
	if snap != nil {
		staples = snap.Staples
		nameFor = snap.NameFor
	}

	return match.Classify(recipes, owned, staples, match.Options{
		MaxMissingForAlmost: c.matchCfg.MaxMissingForAlmost,
		OptionalWeight:      c.matchCfg.OptionalWeight,
		NameFor:             nameFor,
	})
}

// Close 關閉控制器佇列
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// rollback 回滾樂觀更新；身份已變更時狀態已被重建，跳過
func (c *Controller) rollback(gen uint64, undo func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	undo()
}

// persistLocal 將目前持有集合同步寫入裝置快取
func (c *Controller) persistLocal(ctx context.Context, deviceID string) error {
	c.mu.RLock()
	ids := make([]string, 0, len(c.owned))
	for id := range c.owned {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Strings(ids)

	return c.withRetry(ctx, "write local cache", func(ctx context.Context) error {
		return c.local.Write(ctx, deviceID, ids)
	})
}

// withRetry 有界重試加退避；每次呼叫都套用逾時，逾時視為暫時性失敗，
// 絕不把逾時當成空結果
func (c *Controller) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := c.syncCfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	backoff := c.syncCfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if c.syncCfg.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.syncCfg.CallTimeout)
		}
		start := time.Now()
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		common.LogStoreCall(op, time.Since(start), err)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < attempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
	}
	return lastErr
}

// indexOf 從快照取得解析索引，目錄未載入時退化為空索引
func indexOf(snap *catalog.Snapshot) *catalog.CanonicalIndex {
	if snap == nil || snap.Index == nil {
		return catalog.BuildCanonicalIndex(nil)
	}
	return snap.Index
}

// nameOf 查顯示名稱，目錄未載入時以識別碼代替
func nameOf(snap *catalog.Snapshot, id string) string {
	if snap == nil {
		return id
	}
	return snap.NameFor(id)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
