package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"storyloom-api/pkg/logger"
)

// 缓存键前缀
const (
	KeyPrefixStory   = "story:"
	KeyPrefixChapter = "chapter:"
)

// Cache Redis 缓存封装
// 读穿场景使用 singleflight 合并并发回源，避免缓存击穿
type Cache struct {
	client *Client
	group  singleflight.Group
}

// NewCache 创建缓存
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// StoryKey 故事缓存键
func StoryKey(storyID string) string {
	return KeyPrefixStory + storyID
}

// ChapterKey 章节缓存键
func ChapterKey(storyID string, seqNum int) string {
	return fmt.Sprintf("%s%s:%d", KeyPrefixChapter, storyID, seqNum)
}

// GetJSON 获取并反序列化缓存值，未命中时返回 (false, nil)
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if IsNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// 缓存损坏按未命中处理并清理
		logger.Warn(ctx, "corrupted cache entry, evicting", "key", key)
		_ = c.client.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON 序列化并写入缓存
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// Delete 删除缓存键
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...)
}

// GetOrLoad 读穿缓存：未命中时通过 loader 回源并回填
// 相同键的并发回源被合并为一次
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) ([]byte, error) {
	raw, err := c.client.Get(ctx, key)
	if err == nil {
		return []byte(raw), nil
	}
	if !IsNil(err) {
		// 缓存故障降级为直接回源
		logger.Warn(ctx, "cache read failed, falling back to loader", "key", key, "error", err)
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal loaded value: %w", err)
		}
		if err := c.client.Set(ctx, key, data, ttl); err != nil {
			logger.Warn(ctx, "failed to backfill cache", "key", key, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
