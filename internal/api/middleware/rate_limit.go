package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"bar-inventory-api/internal/infrastructure/config"
	"bar-inventory-api/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiter 單一客戶端的令牌桶。令牌以小數累計，
// 比補充間隔更快的輪詢不會把零碎的補充額度歸零
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

// NewRateLimiter 創建新的限流器
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:   float64(requests),
		capacity: float64(requests),
		rate:     float64(requests) / window.Seconds(),
		lastTime: time.Now(),
	}
}

// Allow 檢查是否允許請求
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastTime).Seconds()
	rl.lastTime = now

	// 添加新令牌
	rl.tokens = math.Min(rl.capacity, rl.tokens+elapsed*rl.rate)

	// 檢查是否有可用令牌
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}

	return false
}

// RateLimiterStore 以客戶端為鍵的有界限流器集合，
// 顯式建立並注入路由，而非行程級全域映射
type RateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*RateLimiter
	cfg      config.RateLimitConfig
}

// NewRateLimiterStore 創建限流器集合
func NewRateLimiterStore(cfg config.RateLimitConfig) *RateLimiterStore {
	return &RateLimiterStore{
		limiters: make(map[string]*RateLimiter),
		cfg:      cfg,
	}
}

// get 取得客戶端的限流器，超出上限時整批重置（粗略但有界）
func (s *RateLimiterStore) get(key string) *RateLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, exists := s.limiters[key]; exists {
		return limiter
	}

	if s.cfg.MaxKeys > 0 && len(s.limiters) >= s.cfg.MaxKeys {
		s.limiters = make(map[string]*RateLimiter)
		common.LogWarn("限流器數量達上限，已重置",
			zap.Int("上限", s.cfg.MaxKeys),
		)
	}

	limiter := NewRateLimiter(s.cfg.Requests, s.cfg.Window)
	s.limiters[key] = limiter
	return limiter
}

// RateLimit 按客戶端限流的中間件
func RateLimit(store *RateLimiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.cfg.Enabled {
			c.Next()
			return
		}

		key := c.GetHeader("X-Account-ID")
		if key == "" {
			key = c.GetHeader("X-Device-ID")
		}
		if key == "" {
			key = c.ClientIP()
		}

		if !store.get(key).Allow() {
			common.LogInfo("Rate limit exceeded",
				zap.String("client", key),
				zap.String("path", c.Request.URL.Path),
			)

			c.Header("Retry-After", fmt.Sprintf("%d", int(store.cfg.Window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": store.cfg.Window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
