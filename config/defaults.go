// =============================================================================
// 📦 ConfigTrail 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:  DefaultServerConfig(),
		Store:   DefaultStoreConfig(),
		Watcher: DefaultWatcherConfig(),
		Cache:   DefaultCacheConfig(),
		Log:     DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		AuthEnabled:     false,
	}
}

// DefaultStoreConfig 返回默认存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Driver:     "mongo",
		Database:   "config_db",
		Collection: "config_data",
		Timeout:    5 * time.Second,
		SQLitePath: "configtrail.db",
	}
}

// DefaultWatcherConfig 返回默认文件监听配置
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Path:          "config.yaml",
		PollInterval:  1 * time.Second,
		DebounceDelay: 200 * time.Millisecond,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  false,
		Addr:     "localhost:6379",
		DB:       0,
		TTL:      5 * time.Minute,
		PoolSize: 10,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
