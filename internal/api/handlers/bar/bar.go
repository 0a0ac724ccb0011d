package bar

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bar-inventory-api/internal/api/middleware"
	barcore "bar-inventory-api/internal/core/bar"
	"bar-inventory-api/internal/pkg/common"
)

// Handler 酒吧庫存處理器
type Handler struct {
	sessions *barcore.SessionManager
}

// NewHandler 創建酒吧庫存處理器
func NewHandler(sessions *barcore.SessionManager) *Handler {
	return &Handler{sessions: sessions}
}

// barResponse 酒吧內容響應
type barResponse struct {
	Ingredients []barcore.OwnedIngredient `json:"ingredients"`
	Loading     bool                      `json:"loading"`
	State       string                    `json:"state"`
	Sync        barcore.SyncState         `json:"sync"`
}

// addRequest 加入食材請求
type addRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

// bulkRequest 批次加入請求
type bulkRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// controller 取得會話控制器並確保已依目前身份初始化
func (h *Handler) controller(c *gin.Context) (*barcore.Controller, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{
			Code:    common.ErrCodeInternalError,
			Message: "identity missing from request context",
		})
		return nil, false
	}

	controller, err := h.sessions.Get(identity)
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	if err := controller.Initialize(c.Request.Context(), identity); err != nil {
		respondError(c, err)
		return nil, false
	}

	return controller, true
}

// GetBar 讀取目前酒吧內容
func (h *Handler) GetBar(c *gin.Context) {
	controller, ok := h.controller(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, barResponse{
		Ingredients: controller.OwnedIngredients(),
		Loading:     controller.IsLoading(),
		State:       controller.State().String(),
		Sync:        controller.SyncStatus(),
	})
}

// AddIngredient 加入單一食材
func (h *Handler) AddIngredient(c *gin.Context) {
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: "invalid request body",
		})
		return
	}

	controller, ok := h.controller(c)
	if !ok {
		return
	}

	err := controller.AddIngredient(c.Request.Context(), req.ID, req.Name)
	if errors.Is(err, barcore.ErrAlreadyOwned) {
		// 軟性警告，不是錯誤
		c.JSON(http.StatusOK, gin.H{
			"warning":     "already_owned",
			"ingredients": controller.OwnedIngredients(),
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingredients": controller.OwnedIngredients(),
	})
}

// RemoveIngredient 移除單一食材
func (h *Handler) RemoveIngredient(c *gin.Context) {
	id := c.Param("id")

	controller, ok := h.controller(c)
	if !ok {
		return
	}

	err := controller.RemoveIngredient(c.Request.Context(), id)
	if errors.Is(err, barcore.ErrNotOwned) {
		c.JSON(http.StatusOK, gin.H{
			"warning":     "not_owned",
			"ingredients": controller.OwnedIngredients(),
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingredients": controller.OwnedIngredients(),
	})
}

// SetIngredients 批次加入（只做加法，不會刪除清單以外的食材）
func (h *Handler) SetIngredients(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: "invalid request body",
		})
		return
	}

	controller, ok := h.controller(c)
	if !ok {
		return
	}

	if err := controller.SetIngredients(c.Request.Context(), req.IDs); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingredients": controller.OwnedIngredients(),
	})
}

// ClearBar 清空酒吧，唯一的整批刪除操作
func (h *Handler) ClearBar(c *gin.Context) {
	controller, ok := h.controller(c)
	if !ok {
		return
	}

	if err := controller.ClearAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingredients": controller.OwnedIngredients(),
	})
}

// SyncBar 重新執行對帳，冪等
func (h *Handler) SyncBar(c *gin.Context) {
	controller, ok := h.controller(c)
	if !ok {
		return
	}

	if err := controller.ForceSync(c.Request.Context()); err != nil {
		// 對帳的重試耗盡有自己的錯誤碼，與單筆變更失敗區分
		if barcore.IsRecoverable(err) {
			common.LogWarn("酒吧對帳重試耗盡", zap.Error(err))
			c.JSON(common.ErrSyncFailed.Status, common.ErrorResponse{
				Code:    common.ErrSyncFailed.Code,
				Message: common.ErrSyncFailed.Message,
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sync":        controller.SyncStatus(),
		"ingredients": controller.OwnedIngredients(),
	})
}

// Matches 以目前酒吧內容對全部配方分級
func (h *Handler) Matches(c *gin.Context) {
	controller, ok := h.controller(c)
	if !ok {
		return
	}

	// nil 表示使用目錄快照的全部配方；目錄空時回傳空分組而非錯誤
	result := controller.ClassifyRecipes(c.Request.Context(), nil)

	c.JSON(http.StatusOK, result)
}

// respondError 將核心錯誤映射為 API 錯誤響應
func respondError(c *gin.Context, err error) {
	switch {
	case common.IsValidationError(err):
		c.JSON(http.StatusBadRequest, common.ErrorResponse{
			Code:    common.ErrCodeInvalidRequest,
			Message: err.Error(),
		})
	case errors.Is(err, barcore.ErrStaleIdentity):
		// 操作期間身份變更，結果已丟棄，客戶端重試即可
		c.JSON(http.StatusConflict, common.ErrorResponse{
			Code:    common.ErrCodeConflict,
			Message: "identity changed, please retry",
		})
	case barcore.IsRecoverable(err):
		common.LogWarn("酒吧操作重試耗盡", zap.Error(err))
		c.JSON(common.ErrStoreUnavailable.Status, common.ErrorResponse{
			Code:    common.ErrStoreUnavailable.Code,
			Message: "operation failed, your bar was not changed",
		})
	default:
		var custom *common.CustomError
		if errors.As(err, &custom) {
			c.JSON(custom.Status, common.ErrorResponse{
				Code:    custom.Code,
				Message: custom.Message,
			})
			return
		}
		common.LogError("酒吧操作失敗", zap.Error(err))
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{
			Code:    common.ErrCodeInternalError,
			Message: "internal error",
		})
	}
}
