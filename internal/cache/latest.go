// Package cache provides internal cache management.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/store"
)

// =============================================================================
// 💾 最新版本缓存
// =============================================================================

// ErrCacheMiss 表示键不存在
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss 判断错误是否为缓存未命中
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

const latestKey = "configtrail:latest"

// Config 缓存配置
type Config struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"-" json:"-"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 缓存条目过期时间
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Addr:       "localhost:6379",
		DB:         0,
		TTL:        5 * time.Minute,
		MaxRetries: 3,
		PoolSize:   10,
	}
}

// LatestCache 基于 Redis 缓存最新版本记录，减轻读多写少场景下
// 最新配置查询对后端存储的压力。
type LatestCache struct {
	redis  *redis.Client
	config Config
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewLatestCache 创建缓存并验证连接。
func NewLatestCache(config Config, logger *zap.Logger) (*LatestCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:       config.Addr,
		Password:   config.Password,
		DB:         config.DB,
		MaxRetries: config.MaxRetries,
		PoolSize:   config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c := &LatestCache{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "cache")),
	}

	logger.Info("latest-version cache initialized", zap.String("addr", config.Addr))

	return c, nil
}

// GetLatest 读取缓存的最新版本记录。未命中返回 ErrCacheMiss。
func (c *LatestCache) GetLatest(ctx context.Context) (*store.VersionRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("cache is closed")
	}

	val, err := c.redis.Get(ctx, latestKey).Result()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.logger.Error("cache get failed", zap.Error(err))
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var rec store.VersionRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		// 损坏的条目当作未命中，下一次 SetLatest 覆盖
		c.logger.Warn("cached latest record is corrupt, treating as miss", zap.Error(err))
		return nil, ErrCacheMiss
	}

	return &rec, nil
}

// SetLatest 写入最新版本记录。
func (c *LatestCache) SetLatest(ctx context.Context, rec *store.VersionRecord) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("cache is closed")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal version record: %w", err)
	}

	if err := c.redis.Set(ctx, latestKey, string(data), c.config.TTL).Err(); err != nil {
		c.logger.Error("cache set failed", zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}

	return nil
}

// Invalidate 清除缓存的最新版本记录。
func (c *LatestCache) Invalidate(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("cache is closed")
	}

	if err := c.redis.Del(ctx, latestKey).Err(); err != nil {
		c.logger.Error("cache invalidate failed", zap.Error(err))
		return fmt.Errorf("cache invalidate failed: %w", err)
	}

	return nil
}

// Ping 检查 Redis 连接
func (c *LatestCache) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("cache is closed")
	}

	return c.redis.Ping(ctx).Err()
}

// Close 关闭缓存
func (c *LatestCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.logger.Info("closing latest-version cache")

	return c.redis.Close()
}
