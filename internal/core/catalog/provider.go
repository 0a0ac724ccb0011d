package catalog

import (
	"context"
	"fmt"
	"net/http"

	"bar-inventory-api/internal/infrastructure/config"
	"bar-inventory-api/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

// Provider 目錄提供者（外部內容服務），唯讀
type Provider interface {
	GetIngredients(ctx context.Context) ([]Ingredient, error)
	GetRecipes(ctx context.Context) ([]Recipe, error)
}

// HTTPProvider 透過 HTTP 讀取託管內容服務的目錄
type HTTPProvider struct {
	client *resty.Client
}

// NewHTTPProvider 創建目錄 HTTP 提供者
func NewHTTPProvider(cfg *config.CatalogConfig) *HTTPProvider {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &HTTPProvider{client: client}
}

// GetIngredients 讀取全部食材
func (p *HTTPProvider) GetIngredients(ctx context.Context) ([]Ingredient, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		Get("/ingredients")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ingredients: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned status %d", resp.StatusCode())
	}

	var out []Ingredient
	if err := common.ParseJSONBytes(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ingredients: %w", err)
	}
	return out, nil
}

// GetRecipes 讀取全部配方
func (p *HTTPProvider) GetRecipes(ctx context.Context) ([]Recipe, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		Get("/recipes")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recipes: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned status %d", resp.StatusCode())
	}

	var out []Recipe
	if err := common.ParseJSONBytes(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse recipes: %w", err)
	}
	return out, nil
}

// StaticProvider 以固定資料作為目錄來源，測試與離線啟動用
type StaticProvider struct {
	Ingredients []Ingredient
	Recipes     []Recipe
}

func (p *StaticProvider) GetIngredients(ctx context.Context) ([]Ingredient, error) {
	return p.Ingredients, nil
}

func (p *StaticProvider) GetRecipes(ctx context.Context) ([]Recipe, error) {
	return p.Recipes, nil
}
