package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	catalogcore "bar-inventory-api/internal/core/catalog"
	"bar-inventory-api/internal/pkg/common"
)

// Handler 目錄處理器
type Handler struct {
	cache *catalogcore.Cache
}

// NewHandler 創建目錄處理器
func NewHandler(cache *catalogcore.Cache) *Handler {
	return &Handler{cache: cache}
}

// resolveRequest 識別碼解析請求
type resolveRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// ListIngredients 列出目錄食材
func (h *Handler) ListIngredients(c *gin.Context) {
	snap := h.cache.Snapshot(c.Request.Context())
	if snap.Empty() {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{
			Code:    common.ErrCatalogEmpty.Code,
			Message: common.ErrCatalogEmpty.Message,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingredients": snap.Ingredients,
	})
}

// ListRecipes 列出目錄配方
func (h *Handler) ListRecipes(c *gin.Context) {
	snap := h.cache.Snapshot(c.Request.Context())
	if snap.Empty() {
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{
			Code:    common.ErrCatalogEmpty.Code,
			Message: common.ErrCatalogEmpty.Message,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recipes": snap.Recipes,
	})
}

// ResolveIDs 將任意識別碼批次解析為正準識別碼，未知者原樣保留
func (h *Handler) ResolveIDs(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: "invalid request body",
		})
		return
	}

	snap := h.cache.Snapshot(c.Request.Context())
	resolved := snap.Resolver().ResolveMany(req.IDs)
	c.JSON(http.StatusOK, gin.H{
		"ids": resolved,
	})
}
