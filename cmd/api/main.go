package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bar-inventory-api/internal/api"
	"bar-inventory-api/internal/core/bar"
	"bar-inventory-api/internal/core/catalog"
	"bar-inventory-api/internal/infrastructure/config"
	"bar-inventory-api/internal/infrastructure/store"
	"bar-inventory-api/internal/pkg/common"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	// 使用 logger 記錄啟動信息
	common.LogInfo("載入設定",
		zap.String("store_path", cfg.Store.Path),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.String("catalog_base_url", cfg.Catalog.BaseURL),
	)

	// 初始化持久層
	db, err := store.OpenSQLite(&cfg.Store)
	if err != nil {
		common.LogFatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()
	barStore := store.NewBarStore(db)

	// 初始化裝置快取
	deviceCache, err := store.NewDeviceCache(&cfg.Cache)
	// 只在快取開啟但初始化失敗時才 Fatal
	if cfg.Cache.Enabled && err != nil {
		common.LogFatal("Failed to initialize device cache", zap.Error(err))
	}
	defer deviceCache.Close()

	// 初始化目錄快取
	catalogCache := catalog.NewCache(catalog.NewHTTPProvider(&cfg.Catalog), &cfg.Catalog)

	// 初始化會話管理器，每個身份一個同步控制器
	sessions := bar.NewSessionManager(cfg.Session, func() *bar.Controller {
		return bar.NewController(barStore, deviceCache, catalogCache, cfg.Sync, cfg.Match)
	})
	defer sessions.Close()

	// 設置路由
	router, err := api.SetupRouter(api.Dependencies{
		Config:       cfg,
		Sessions:     sessions,
		CatalogCache: catalogCache,
		StoreDB:      db,
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogError("Failed to start server",
				zap.Error(err),
			)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown",
			zap.Error(err),
		)
		os.Exit(1)
	}

	common.LogInfo("Server exited")
}
