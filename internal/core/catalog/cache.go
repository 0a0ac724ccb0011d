package catalog

import (
	"context"
	"sync"
	"time"

	"bar-inventory-api/internal/infrastructure/config"
	"bar-inventory-api/internal/pkg/common"

	"go.uber.org/zap"
)

// Snapshot 一次目錄載入的不可變視圖，索引與常備品集合隨之重建
type Snapshot struct {
	Ingredients []Ingredient
	Recipes     []Recipe
	Index       *CanonicalIndex
	Staples     map[string]bool
	names       map[string]string
	loadedAt    time.Time
}

// NameFor 回傳顯示名稱；目錄不認識的識別碼以原識別碼顯示
func (s *Snapshot) NameFor(id string) string {
	if name, ok := s.names[id]; ok {
		return name
	}
	return id
}

// Empty 目錄是否尚未載入任何食材
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Ingredients) == 0
}

// Resolver 回傳解析索引；快照尚未載入時回傳空索引（解析退化為原樣保留）
func (s *Snapshot) Resolver() *CanonicalIndex {
	if s == nil || s.Index == nil {
		return BuildCanonicalIndex(nil)
	}
	return s.Index
}

// cacheStats 緩存統計
type cacheStats struct {
	hits      int64
	misses    int64
	refreshes int64
	errors    int64
}

// Cache 目錄快取管理器：以 TTL 重新載入目錄，載入失敗時沿用上一份快照
type Cache struct {
	provider Provider
	cfg      *config.CatalogConfig
	mu       sync.RWMutex
	snapshot *Snapshot
	stats    cacheStats
}

// NewCache 創建目錄快取管理器
func NewCache(provider Provider, cfg *config.CatalogConfig) *Cache {
	c := &Cache{
		provider: provider,
		cfg:      cfg,
	}

	common.LogInfo("目錄快取已初始化",
		zap.Duration("重載間隔", cfg.RefreshTTL),
	)

	return c
}

// Snapshot 取得目前快照；過期時先嘗試重載，重載失敗則沿用舊快照（寧可陳舊，不可崩潰）
func (c *Cache) Snapshot(ctx context.Context) *Snapshot {
	c.mu.RLock()
	snap := c.snapshot
	c.mu.RUnlock()

	if snap != nil && time.Since(snap.loadedAt) < c.cfg.RefreshTTL {
		c.mu.Lock()
		c.stats.hits++
		c.mu.Unlock()
		common.LogCacheHit("目錄")
		return snap
	}

	refreshed, err := c.refresh(ctx)
	if err != nil {
		common.LogWarn("目錄重載失敗，沿用舊快照",
			zap.Error(err),
			zap.Bool("有舊快照", snap != nil),
		)
		c.mu.Lock()
		c.stats.errors++
		c.mu.Unlock()
		return snap
	}

	return refreshed
}

// refresh 重新載入目錄並重建索引
func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	common.LogCacheMiss("目錄")

	ingredients, err := c.provider.GetIngredients(ctx)
	if err != nil {
		return nil, err
	}
	recipes, err := c.provider.GetRecipes(ctx)
	if err != nil {
		return nil, err
	}

	snap := buildSnapshot(ingredients, recipes)

	c.mu.Lock()
	c.snapshot = snap
	c.stats.misses++
	c.stats.refreshes++
	c.mu.Unlock()

	common.LogInfo("目錄已載入",
		zap.Int("食材數", len(ingredients)),
		zap.Int("配方數", len(recipes)),
	)

	return snap, nil
}

// GetStats 獲取快取統計信息
func (c *Cache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"hits":      c.stats.hits,
		"misses":    c.stats.misses,
		"refreshes": c.stats.refreshes,
		"errors":    c.stats.errors,
		"loaded":    c.snapshot != nil,
	}
}

func buildSnapshot(ingredients []Ingredient, recipes []Recipe) *Snapshot {
	staples := make(map[string]bool)
	names := make(map[string]string, len(ingredients))
	for _, ing := range ingredients {
		if ing.IsStaple {
			staples[ing.ID] = true
		}
		names[ing.ID] = ing.Name
	}

	return &Snapshot{
		Ingredients: ingredients,
		Recipes:     recipes,
		Index:       BuildCanonicalIndex(ingredients),
		Staples:     staples,
		names:       names,
		loadedAt:    time.Now(),
	}
}
