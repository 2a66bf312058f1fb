// Package cache 提供进程内的定价结果缓存，底层使用 allegro/bigcache。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// ErrMiss 缓存未命中。
var ErrMiss = errors.New("cache miss")

// Cache 定义缓存接口，值以 JSON 序列化存储。
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
	Reset() error
	Close() error
}

// BigCache 实现了 `Cache` 接口。BigCache 对所有条目使用统一的过期时间。
type BigCache struct {
	cache *bigcache.BigCache
}

// NewBigCache 创建并返回一个新的 BigCache 实例。
// ttl: 全局过期时间；maxMB: 最大容量 (MB)，0 表示不限制。
func NewBigCache(ttl time.Duration, maxMB int) (*BigCache, error) {
	config := bigcache.DefaultConfig(ttl)
	config.HardMaxCacheSize = maxMB
	config.CleanWindow = ttl
	config.Verbose = false

	cache, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("初始化 bigcache 失败: %w", err)
	}

	return &BigCache{cache: cache}, nil
}

// Get 读取并反序列化到 value，value 必须是指针。未命中时返回 ErrMiss。
func (c *BigCache) Get(_ context.Context, key string, value any) error {
	data, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return fmt.Errorf("%w: %s", ErrMiss, key)
		}
		return err
	}
	return json.Unmarshal(data, value)
}

// Set 将 value 序列化为 JSON 后写入。
func (c *BigCache) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.cache.Set(key, data)
}

// Delete 删除一个或多个键，键不存在不视为错误。
func (c *BigCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Reset 清空全部条目。
func (c *BigCache) Reset() error {
	return c.cache.Reset()
}

// Len 返回当前条目数。
func (c *BigCache) Len() int {
	return c.cache.Len()
}

// Close 关闭 BigCache 实例，释放其占用的资源。
func (c *BigCache) Close() error {
	return c.cache.Close()
}
