package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	barHandler "bar-inventory-api/internal/api/handlers/bar"
	catalogHandler "bar-inventory-api/internal/api/handlers/catalog"
	"bar-inventory-api/internal/api/handlers/health"
	"bar-inventory-api/internal/api/middleware"
	"bar-inventory-api/internal/core/bar"
	"bar-inventory-api/internal/core/catalog"
	"bar-inventory-api/internal/infrastructure/config"
	"bar-inventory-api/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 超時設置
	timeoutDuration = 30 * time.Second
	// 請求體大小限制 (1MB)，最大的請求只是批次識別碼清單
	maxBodySize = 1 << 20
)

// Dependencies 路由依賴
type Dependencies struct {
	Config       *config.Config
	Sessions     *bar.SessionManager
	CatalogCache *catalog.Cache
	StoreDB      *sql.DB
}

// SetupRouter 設置路由
func SetupRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 創建路由引擎
	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New()) // 自動生成請求 ID

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-Request-ID", middleware.HeaderAccountID, middleware.HeaderDeviceID,
		},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", middleware.HeaderDeviceID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 限流與去重
	rateStore := middleware.NewRateLimiterStore(cfg.RateLimit)
	router.Use(middleware.RateLimit(rateStore))

	dedupStore := middleware.NewDedupStore(cfg.DedupWindow)
	router.Use(middleware.Deduplication(dedupStore))

	// 身份組裝
	router.Use(middleware.Identity())

	// 全局中間件：設置超時並注入健康檢查所需依賴
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Set("config", cfg)
		c.Set("session_manager", deps.Sessions)
		c.Set("catalog_cache", deps.CatalogCache)
		c.Set("store_db", deps.StoreDB)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeoutDuration),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  "REQUEST_TIMEOUT",
				"details": gin.H{
					"timeout": timeoutDuration.String(),
				},
			})
			c.Abort()
			return
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		barInstance := barHandler.NewHandler(deps.Sessions)
		catalogInstance := catalogHandler.NewHandler(deps.CatalogCache)

		// 酒吧庫存路由
		barGroup := api.Group("/bar")
		{
			barGroup.GET("", barInstance.GetBar)
			barGroup.DELETE("", barInstance.ClearBar)
			barGroup.POST("/ingredients", barInstance.AddIngredient)
			barGroup.PUT("/ingredients", barInstance.SetIngredients)
			barGroup.DELETE("/ingredients/:id", barInstance.RemoveIngredient)
			barGroup.POST("/sync", barInstance.SyncBar)
		}

		// 配方分級
		api.GET("/recipes/matches", barInstance.Matches)

		// 目錄路由
		catalogGroup := api.Group("/catalog")
		{
			catalogGroup.GET("/ingredients", catalogInstance.ListIngredients)
			catalogGroup.GET("/recipes", catalogInstance.ListRecipes)
			catalogGroup.POST("/resolve", catalogInstance.ResolveIDs)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}
