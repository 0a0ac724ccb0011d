package store

import (
	"context"
	"fmt"

	"bar-inventory-api/internal/core/bar"
	"bar-inventory-api/internal/infrastructure/config"
	"bar-inventory-api/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

// DeviceCache 以 redis 實作裝置層級的暫存酒吧，鍵帶 TTL，
// 匿名裝置久未使用自然過期
type DeviceCache struct {
	client *redis.Client
	config *config.CacheConfig
}

// NewDeviceCache 創建裝置快取
func NewDeviceCache(cfg *config.CacheConfig) (*DeviceCache, error) {
	if !cfg.Enabled {
		return &DeviceCache{config: cfg}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 測試連接
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &DeviceCache{
		client: client,
		config: cfg,
	}, nil
}

var _ bar.LocalCache = (*DeviceCache)(nil)

// Read 讀取裝置的暫存酒吧，鍵不存在時回傳空集合
func (c *DeviceCache) Read(ctx context.Context, deviceID string) ([]string, error) {
	if !c.config.Enabled || c.client == nil {
		return nil, common.ErrCacheDisabled
	}

	data, err := c.client.Get(ctx, c.key(deviceID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read device cache: %w", err)
	}

	var ids []string
	if err := common.ParseJSONBytes(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device cache: %w", err)
	}
	return ids, nil
}

// Write 覆寫裝置的暫存酒吧並重設 TTL
func (c *DeviceCache) Write(ctx context.Context, deviceID string, ids []string) error {
	if !c.config.Enabled || c.client == nil {
		return common.ErrCacheDisabled
	}

	data, err := common.ToJSON(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal device cache: %w", err)
	}

	if err := c.client.Set(ctx, c.key(deviceID), data, c.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to write device cache: %w", err)
	}
	return nil
}

// Clear 清空裝置的暫存酒吧
func (c *DeviceCache) Clear(ctx context.Context, deviceID string) error {
	if !c.config.Enabled || c.client == nil {
		return common.ErrCacheDisabled
	}

	if err := c.client.Del(ctx, c.key(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to clear device cache: %w", err)
	}
	return nil
}

// Close 關閉 redis 連線
func (c *DeviceCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *DeviceCache) key(deviceID string) string {
	return fmt.Sprintf("bar:device:%s", deviceID)
}
