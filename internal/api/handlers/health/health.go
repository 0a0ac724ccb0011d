package health

import (
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"bar-inventory-api/internal/core/bar"
	"bar-inventory-api/internal/core/catalog"
	"bar-inventory-api/internal/infrastructure/config"
	"bar-inventory-api/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Sessions  map[string]interface{} `json:"sessions,omitempty"`
	Catalog   map[string]interface{} `json:"catalog,omitempty"`
}

// HealthCheck 健康檢查處理器
func HealthCheck(c *gin.Context) {
	// 獲取配置
	cfg, exists := c.Get("config")
	if !exists {
		common.LogError("Configuration not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Configuration not found",
		})
		return
	}
	config, ok := cfg.(*config.Config)
	if !ok {
		common.LogError("Invalid configuration type in context")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Invalid configuration type",
		})
		return
	}

	// 獲取運行時信息
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	// 構建響應
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   config.App.Version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}

	if v, exists := c.Get("session_manager"); exists {
		if sessions, ok := v.(*bar.SessionManager); ok {
			response.Sessions = sessions.GetStats()
		}
	}
	if v, exists := c.Get("catalog_cache"); exists {
		if cache, ok := v.(*catalog.Cache); ok {
			response.Catalog = cache.GetStats()
		}
	}

	// 記錄請求
	common.LogInfo("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器：確認儲存可連線且目錄已載入
func ReadinessCheck(c *gin.Context) {
	if v, exists := c.Get("store_db"); exists {
		if db, ok := v.(*sql.DB); ok && db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				common.LogWarn("就緒檢查失敗：儲存無法連線", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not_ready",
					"reason": "store unreachable",
				})
				return
			}
		}
	}

	if v, exists := c.Get("catalog_cache"); exists {
		if cache, ok := v.(*catalog.Cache); ok {
			if cache.Snapshot(c.Request.Context()).Empty() {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not_ready",
					"reason": "catalog not loaded",
				})
				return
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
