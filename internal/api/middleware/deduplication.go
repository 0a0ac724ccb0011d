package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bar-inventory-api/internal/pkg/common"
)

// DedupStore 請求去重記錄，顯式建立並注入路由，測試可建立隔離實例
type DedupStore struct {
	mu       sync.RWMutex
	requests map[string]time.Time
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewDedupStore 創建去重記錄並啟動自動清理
func NewDedupStore(window time.Duration) *DedupStore {
	if window <= 0 {
		window = 1 * time.Second
	}
	s := &DedupStore{
		requests: make(map[string]time.Time),
		window:   window,
		done:     make(chan struct{}),
	}

	go s.startCleanup()

	return s
}

func (s *DedupStore) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for k, t := range s.requests {
				if now.Sub(t) > 10*s.window {
					delete(s.requests, k)
				}
			}
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// Close 停止清理協程
func (s *DedupStore) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Deduplication 請求去重中間件：短時間內完全相同的變更請求直接拒絕，
// 避免連點造成的重複提交
func Deduplication(store *DedupStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 只處理變更請求
		if c.Request.Method != "POST" && c.Request.Method != "PUT" {
			c.Next()
			return
		}

		// 計算請求體哈希
		bodyHash := ""
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogError("Failed to read request body", zap.Error(err))
				c.Next()
				return
			}

			hash := sha256.Sum256(body)
			bodyHash = hex.EncodeToString(hash[:])

			// 恢復請求體
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		// 生成請求指紋，加入身份避免不同使用者互相影響
		fingerprint := c.Request.Method + ":" + c.Request.URL.Path +
			":" + c.GetHeader("X-Account-ID") + ":" + c.GetHeader("X-Device-ID")
		if bodyHash != "" {
			fingerprint += ":" + bodyHash
		}

		// 檢查是否是重複請求
		now := time.Now()
		store.mu.RLock()
		if lastTime, exists := store.requests[fingerprint]; exists {
			if now.Sub(lastTime) <= store.window {
				store.mu.RUnlock()
				c.JSON(429, gin.H{
					"error": "Request too frequent",
					"code":  "TOO_MANY_REQUESTS",
				})
				c.Abort()
				return
			}
		}
		store.mu.RUnlock()

		// 記錄請求
		store.mu.Lock()
		store.requests[fingerprint] = now
		store.mu.Unlock()

		c.Next()
	}
}
