package bar

import (
	"sync"
	"time"

	"bar-inventory-api/internal/infrastructure/config"
	"bar-inventory-api/internal/pkg/common"

	"go.uber.org/zap"
)

// sessionEntry 會話條目
type sessionEntry struct {
	controller  *Controller
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int
}

// sessionStats 會話統計
type sessionStats struct {
	hits      int64
	misses    int64
	evictions int64
	rejected  int64
}

// SessionManager 會話管理器：以身份鍵持有控制器的有界快取，
// 顯式注入而非行程級單例，測試可建立隔離實例
type SessionManager struct {
	cfg       config.SessionConfig
	factory   func() *Controller
	mu        sync.Mutex
	sessions  map[string]*sessionEntry
	stats     sessionStats
	done      chan struct{}
	closeOnce sync.Once
}

// NewSessionManager 創建會話管理器
func NewSessionManager(cfg config.SessionConfig, factory func() *Controller) *SessionManager {
	m := &SessionManager{
		cfg:      cfg,
		factory:  factory,
		sessions: make(map[string]*sessionEntry),
		done:     make(chan struct{}),
	}

	// 啟動清理閒置會話的協程
	go m.startCleanup()

	common.LogInfo("會話管理員已初始化",
		zap.Int("最大會話數", cfg.MaxSessions),
		zap.Duration("閒置存活時間", cfg.IdleTTL),
		zap.Duration("清理間隔", cfg.CleanupInterval),
	)

	return m
}

// Get 取得身份對應的控制器，不存在時建立
func (m *SessionManager) Get(identity Identity) (*Controller, error) {
	key := identity.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.sessions[key]; exists {
		entry.lastAccess = time.Now()
		entry.accessCount++
		m.stats.hits++
		return entry.controller, nil
	}

	m.stats.misses++

	// 檢查會話數量
	if len(m.sessions) >= m.cfg.MaxSessions {
		// 先清理閒置會話
		evicted := m.cleanup()
		common.LogInfo("會話清理執行",
			zap.Int("清理數量", evicted),
		)

		// 仍然超過上限時執行 LRU 清理
		if len(m.sessions) >= m.cfg.MaxSessions {
			m.evictLRU()
		}

		// 仍然超過上限時拒絕
		if len(m.sessions) >= m.cfg.MaxSessions {
			m.stats.rejected++
			common.LogWarn("會話數已達上限",
				zap.Int("目前數量", len(m.sessions)),
			)
			return nil, common.ErrSessionLimit
		}
	}

	now := time.Now()
	controller := m.factory()
	m.sessions[key] = &sessionEntry{
		controller:  controller,
		createdAt:   now,
		lastAccess:  now,
		accessCount: 1,
	}

	common.LogDebug("會話已建立", zap.String("鍵", key))

	return controller, nil
}

// startCleanup 啟動清理閒置會話的協程
func (m *SessionManager) startCleanup() {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			count := m.cleanup()
			m.mu.Unlock()
			if count > 0 {
				common.LogInfo("已清理閒置會話",
					zap.Int("數量", count),
				)
			}
		case <-m.done:
			return
		}
	}
}

// cleanup 清理閒置超過存活時間的會話，呼叫端需持有鎖
func (m *SessionManager) cleanup() int {
	now := time.Now()
	count := 0

	for key, entry := range m.sessions {
		if now.Sub(entry.lastAccess) > m.cfg.IdleTTL {
			entry.controller.Close()
			delete(m.sessions, key)
			count++
			m.stats.evictions++
		}
	}

	return count
}

// evictLRU 執行 LRU 清理，呼叫端需持有鎖
func (m *SessionManager) evictLRU() {
	var oldestKey string
	var oldestAccess time.Time
	var lowestAccessCount int

	// 找到最少使用的會話
	for key, entry := range m.sessions {
		if oldestKey == "" ||
			entry.accessCount < lowestAccessCount ||
			(entry.accessCount == lowestAccessCount && entry.lastAccess.Before(oldestAccess)) {
			oldestKey = key
			oldestAccess = entry.lastAccess
			lowestAccessCount = entry.accessCount
		}
	}

	if oldestKey != "" {
		m.sessions[oldestKey].controller.Close()
		delete(m.sessions, oldestKey)
		m.stats.evictions++
		common.LogInfo("會話已淘汰(LRU)",
			zap.String("鍵", oldestKey),
		)
	}
}

// GetStats 獲取會話統計信息
func (m *SessionManager) GetStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]interface{}{
		"size":      len(m.sessions),
		"max_size":  m.cfg.MaxSessions,
		"hits":      m.stats.hits,
		"misses":    m.stats.misses,
		"evictions": m.stats.evictions,
		"rejected":  m.stats.rejected,
	}
}

// Close 關閉會話管理器
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.sessions {
		entry.controller.Close()
		delete(m.sessions, key)
	}

	common.LogInfo("會話管理員已關閉",
		zap.Int64("命中次數", m.stats.hits),
		zap.Int64("未命中次數", m.stats.misses),
		zap.Int64("淘汰次數", m.stats.evictions),
	)
}
