// Package localcache 提供进程内带 TTL 的翻译缓存
// 作为翻译结果的第一层缓存，未命中时回落到持久层
package localcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type item struct {
	value     string
	expiresAt time.Time
}

// Cache 进程内 TTL 缓存
// 过期条目在读取时惰性清理，进程重启后缓存为空
type Cache struct {
	mu    sync.RWMutex
	items map[string]item
	ttl   time.Duration
	now   func() time.Time
}

// New 创建本地缓存
func New(ttl time.Duration) *Cache {
	return &Cache{
		items: make(map[string]item),
		ttl:   ttl,
		now:   time.Now,
	}
}

// NewWithClock 创建使用指定时钟的本地缓存（测试用）
func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	c := New(ttl)
	c.now = now
	return c
}

// Get 获取缓存值，过期或不存在时返回空
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	if c.now().After(it.expiresAt) {
		c.mu.Lock()
		// 双检：持锁期间可能已被覆盖写入
		if cur, ok := c.items[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return "", false
	}
	return it.value, true
}

// Set 写入缓存值
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Evict 删除缓存键
func (c *Cache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len 当前条目数（含未清理的过期条目）
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ContentKey 基于内容哈希构建缓存键
// 相同输入内容与语言对命中同一条目，内容变化自然失效
func ContentKey(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}
