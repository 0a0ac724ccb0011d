package bar

import (
	"testing"
	"time"

	"bar-inventory-api/internal/infrastructure/config"
)

func newTestSessionManager(maxSessions int) *SessionManager {
	return NewSessionManager(config.SessionConfig{
		MaxSessions:     maxSessions,
		IdleTTL:         time.Hour,
		CleanupInterval: time.Hour,
	}, func() *Controller {
		return newTestController(newFakeRemote(), newFakeLocal())
	})
}

func TestSessionManagerReusesController(t *testing.T) {
	m := newTestSessionManager(10)
	defer m.Close()

	first, err := m.Get(Identity{DeviceID: "device-1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := m.Get(Identity{DeviceID: "device-1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Error("same identity must map to the same controller")
	}

	other, err := m.Get(Identity{DeviceID: "device-2"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if other == first {
		t.Error("different identities must not share a controller")
	}
}

func TestSessionManagerKeySpace(t *testing.T) {
	m := newTestSessionManager(10)
	defer m.Close()

	// 登入身份以帳號為鍵：同帳號跨裝置共用同一控制器
	a, _ := m.Get(Identity{DeviceID: "device-1", AccountID: "account-1"})
	b, _ := m.Get(Identity{DeviceID: "device-2", AccountID: "account-1"})
	if a != b {
		t.Error("same account on different devices must share a controller")
	}

	// 匿名身份以裝置為鍵
	c, _ := m.Get(Identity{DeviceID: "device-1"})
	if c == a {
		t.Error("anonymous device session must be distinct from the account session")
	}
}

func TestSessionManagerEvictsAtCapacity(t *testing.T) {
	m := newTestSessionManager(2)
	defer m.Close()

	if _, err := m.Get(Identity{DeviceID: "device-1"}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := m.Get(Identity{DeviceID: "device-2"}); err != nil {
		t.Fatalf("Get: %v", err)
	}

	// 容量滿載時淘汰最少使用的會話，新會話仍可建立
	if _, err := m.Get(Identity{DeviceID: "device-3"}); err != nil {
		t.Fatalf("Get at capacity: %v", err)
	}

	stats := m.GetStats()
	if stats["size"].(int) > 2 {
		t.Errorf("size = %v, want at most 2", stats["size"])
	}
	if stats["evictions"].(int64) < 1 {
		t.Errorf("evictions = %v, want at least 1", stats["evictions"])
	}
}

func TestSessionManagerCloseShutsDownControllers(t *testing.T) {
	m := newTestSessionManager(10)

	c, err := m.Get(Identity{DeviceID: "device-1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	m.Close()

	select {
	case <-c.done:
	default:
		t.Error("controller not closed when manager shut down")
	}
}
