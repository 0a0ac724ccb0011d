package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"bar-inventory-api/internal/infrastructure/config"
)

// flakyProvider 在 fail 為真時回傳錯誤，用於驗證快照回退
type flakyProvider struct {
	inner Provider
	fail  bool
}

func (p *flakyProvider) GetIngredients(ctx context.Context) ([]Ingredient, error) {
	if p.fail {
		return nil, errors.New("catalog service unavailable")
	}
	return p.inner.GetIngredients(ctx)
}

func (p *flakyProvider) GetRecipes(ctx context.Context) ([]Recipe, error) {
	if p.fail {
		return nil, errors.New("catalog service unavailable")
	}
	return p.inner.GetRecipes(ctx)
}

func TestCacheSnapshot(t *testing.T) {
	provider := &StaticProvider{
		Ingredients: testIngredients(),
		Recipes: []Recipe{
			{ID: "r1", Slug: "gimlet", Name: "Gimlet", Ingredients: []RecipeIngredientLine{
				{IngredientID: "gin"},
				{IngredientID: "lime-juice"},
			}},
		},
	}
	cache := NewCache(provider, &config.CatalogConfig{RefreshTTL: time.Hour})

	snap := cache.Snapshot(context.Background())
	if snap == nil {
		t.Fatal("Snapshot returned nil after successful load")
	}
	if snap.Empty() {
		t.Fatal("Snapshot reported empty after successful load")
	}
	if len(snap.Recipes) != 1 {
		t.Fatalf("got %d recipes, want 1", len(snap.Recipes))
	}
	if !snap.Staples["ice"] {
		t.Error("ice should be registered as a staple")
	}
	if got := snap.NameFor("lime-juice"); got != "Lime Juice" {
		t.Errorf("NameFor(lime-juice) = %q, want Lime Juice", got)
	}
	if got := snap.NameFor("mystery-cordial"); got != "mystery-cordial" {
		t.Errorf("NameFor falls back to the id, got %q", got)
	}
	if got := snap.Resolver().Resolve("42"); got != "lime-juice" {
		t.Errorf("Resolver().Resolve(42) = %q, want lime-juice", got)
	}
}

func TestCacheSnapshotKeepsStaleOnFailure(t *testing.T) {
	provider := &flakyProvider{inner: &StaticProvider{Ingredients: testIngredients()}}
	cache := NewCache(provider, &config.CatalogConfig{RefreshTTL: time.Nanosecond})

	first := cache.Snapshot(context.Background())
	if first.Empty() {
		t.Fatal("first snapshot should load")
	}

	// 來源故障後快照必須沿用舊資料而非變成空集合
	provider.fail = true
	time.Sleep(time.Millisecond)
	second := cache.Snapshot(context.Background())
	if second == nil || second.Empty() {
		t.Fatal("snapshot should fall back to the previous load when refresh fails")
	}
	if second != first {
		t.Error("expected the stale snapshot instance to be reused")
	}
}

func TestCacheSnapshotNeverLoaded(t *testing.T) {
	provider := &flakyProvider{inner: &StaticProvider{}, fail: true}
	cache := NewCache(provider, &config.CatalogConfig{RefreshTTL: time.Hour})

	snap := cache.Snapshot(context.Background())
	if !snap.Empty() {
		t.Error("snapshot should report empty when nothing ever loaded")
	}
	// nil 快照的解析索引仍可用，解析退化為原樣保留
	if got := snap.Resolver().Resolve("gin"); got != "gin" {
		t.Errorf("Resolver on nil snapshot = %q, want gin", got)
	}
}
