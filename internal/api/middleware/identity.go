package middleware

import (
	"github.com/gin-gonic/gin"

	"bar-inventory-api/internal/core/bar"
	"bar-inventory-api/internal/pkg/common"
)

// 身份標頭。驗證機制在上游（閘道/託管認證服務），這裡只信任結果
const (
	HeaderAccountID = "X-Account-ID"
	HeaderDeviceID  = "X-Device-ID"

	ContextIdentityKey = "identity"
)

// Identity 身份中間件：從標頭組出會話身份，
// 匿名且沒有裝置識別碼時發一個新的並回寫標頭讓客戶端保存
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetHeader(HeaderAccountID)
		deviceID := c.GetHeader(HeaderDeviceID)

		if deviceID == "" {
			deviceID = common.GenerateUUID()
			c.Header(HeaderDeviceID, deviceID)
		}

		c.Set(ContextIdentityKey, bar.Identity{
			DeviceID:  deviceID,
			AccountID: accountID,
		})

		c.Next()
	}
}

// IdentityFrom 取出請求身份
func IdentityFrom(c *gin.Context) (bar.Identity, bool) {
	v, exists := c.Get(ContextIdentityKey)
	if !exists {
		return bar.Identity{}, false
	}
	identity, ok := v.(bar.Identity)
	return identity, ok
}
