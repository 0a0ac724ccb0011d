package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsBurstUpToCapacity(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Fatalf("burst request %d denied within capacity", i+1)
		}
	}
	if rl.Allow() {
		t.Error("request beyond capacity must be denied")
	}
}

func TestRateLimiterRefillsUnderFastPolling(t *testing.T) {
	// 每 100ms 補充一個令牌
	rl := NewRateLimiter(5, 500*time.Millisecond)

	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Fatalf("burst request %d denied", i+1)
		}
	}

	// 以遠快於補充間隔的頻率輪詢：零碎的補充額度必須累計，
	// 而不是每次輪詢都被歸零導致永遠拿不到令牌
	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if rl.Allow() {
				return
			}
		case <-deadline:
			t.Fatal("limiter starved: fast polling never regained a token")
		}
	}
}
