package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig       `mapstructure:"app"`
	Server      ServerConfig    `mapstructure:"server"`
	Store       StoreConfig     `mapstructure:"store"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Catalog     CatalogConfig   `mapstructure:"catalog"`
	Sync        SyncConfig      `mapstructure:"sync"`
	Match       MatchConfig     `mapstructure:"match"`
	Session     SessionConfig   `mapstructure:"session"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	DedupWindow time.Duration   `mapstructure:"dedup_window"`
	LogLevel    string          `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// StoreConfig 酒吧庫存持久層設定（sqlite）
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig 裝置快取設定（redis，存放匿名裝置的暫存酒吧）
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// CatalogConfig 目錄來源設定（外部內容服務）
type CatalogConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

// SyncConfig 同步控制器設定
type SyncConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
	QueueSize    int           `mapstructure:"queue_size"`
}

// MatchConfig 配對引擎設定
type MatchConfig struct {
	MaxMissingForAlmost int     `mapstructure:"max_missing_for_almost"`
	OptionalWeight      float64 `mapstructure:"optional_weight"`
}

// SessionConfig 會話管理設定
type SessionConfig struct {
	MaxSessions     int           `mapstructure:"max_sessions"`
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	MaxKeys  int           `mapstructure:"max_keys"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件（不存在時不視為錯誤）
	_ = godotenv.Load()

	// 設定預設值
	setDefaults()

	// 設定環境變數前綴
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("store.path", "STORE_PATH")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("cache.addr", "REDIS_ADDR")
	viper.BindEnv("cache.password", "REDIS_PASSWORD")
	viper.BindEnv("catalog.base_url", "CATALOG_BASE_URL")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("dedup_window", "DEDUP_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// 讀取設定檔
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析設定
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "bar-inventory-api")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// 持久層設定
	viper.SetDefault("store.path", "data/bar.db")

	// 裝置快取設定
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.addr", "localhost:6379")
	viper.SetDefault("cache.password", "")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.ttl", "720h") // 匿名酒吧保留 30 天

	// 目錄設定
	viper.SetDefault("catalog.base_url", "")
	viper.SetDefault("catalog.timeout", "10s")
	viper.SetDefault("catalog.refresh_ttl", "10m")

	// 同步設定
	viper.SetDefault("sync.max_retries", 3)
	viper.SetDefault("sync.retry_backoff", "200ms")
	viper.SetDefault("sync.call_timeout", "5s")
	viper.SetDefault("sync.queue_size", 64)

	// 配對設定
	viper.SetDefault("match.max_missing_for_almost", 2)
	viper.SetDefault("match.optional_weight", 0.01)

	// 會話設定
	viper.SetDefault("session.max_sessions", 1000)
	viper.SetDefault("session.idle_ttl", "1h")
	viper.SetDefault("session.cleanup_interval", "10m")

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")
	viper.SetDefault("rate_limit.max_keys", 10000)

	// 去重設定
	viper.SetDefault("dedup_window", "1s")

	viper.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證持久層設定
	if config.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}

	// 驗證同步設定
	if config.Sync.MaxRetries < 0 {
		return fmt.Errorf("invalid sync max retries")
	}
	if config.Sync.CallTimeout <= 0 {
		return fmt.Errorf("invalid sync call timeout")
	}
	if config.Sync.QueueSize <= 0 {
		return fmt.Errorf("invalid sync queue size")
	}

	// 驗證配對設定
	if config.Match.MaxMissingForAlmost < 0 {
		return fmt.Errorf("invalid match max missing threshold")
	}

	// 驗證會話設定
	if config.Session.MaxSessions <= 0 {
		return fmt.Errorf("invalid session max sessions")
	}
	if config.Session.IdleTTL <= 0 {
		return fmt.Errorf("invalid session idle ttl")
	}
	if config.Session.CleanupInterval <= 0 {
		return fmt.Errorf("invalid session cleanup interval")
	}

	return nil
}
