package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bar-inventory-api/internal/pkg/common"
)

func TestLoggerIncludesIdentityFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.InfoLevel)
	prev := common.Logger
	common.Logger = zap.New(core)
	defer func() { common.Logger = prev }()

	router := gin.New()
	router.Use(Logger())
	router.GET("/bar", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/bar", nil)
	req.Header.Set(HeaderAccountID, "account-1")
	req.Header.Set(HeaderDeviceID, "device-1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("請求完成").All()
	if len(entries) != 1 {
		t.Fatalf("got %d completion log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["device_id"] != "device-1" {
		t.Errorf("device_id = %v, want device-1", fields["device_id"])
	}
	if fields["account_id"] != "account-1" {
		t.Errorf("account_id = %v, want account-1", fields["account_id"])
	}
}
