// =============================================================================
// 🔐 ConfigTrail 凭据加载
// =============================================================================
// 连接串与密钥从独立的 secrets 文件读取，不进入主配置，也绝不写日志
// =============================================================================
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Secrets 持有全部敏感凭据。字段值是不透明的：不校验格式、
// 不截断展示、不出现在任何日志或错误消息里。
type Secrets struct {
	// Mongo 连接凭据
	Mongo struct {
		URI string `yaml:"uri"`
	} `yaml:"mongo"`

	// Postgres 连接凭据
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	// Redis 连接凭据
	Redis struct {
		Password string `yaml:"password"`
	} `yaml:"redis"`

	// API 访问密钥
	API struct {
		Key string `yaml:"key"`
	} `yaml:"api"`
}

// LoadSecrets 从 YAML 文件加载凭据。文件不存在时返回空凭据，
// 让仅用内存或本地 sqlite 存储的部署无需 secrets 文件。
func LoadSecrets(path string) (*Secrets, error) {
	var s Secrets

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		// 错误消息只含路径，不含文件内容
		return nil, fmt.Errorf("failed to read secrets file %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse secrets file %s: %w", path, err)
		}
	}

	// 环境变量覆盖，便于容器部署
	if v := os.Getenv("CONFIGTRAIL_MONGO_URI"); v != "" {
		s.Mongo.URI = v
	}
	if v := os.Getenv("CONFIGTRAIL_POSTGRES_DSN"); v != "" {
		s.Postgres.DSN = v
	}
	if v := os.Getenv("CONFIGTRAIL_REDIS_PASSWORD"); v != "" {
		s.Redis.Password = v
	}
	if v := os.Getenv("CONFIGTRAIL_API_KEY"); v != "" {
		s.API.Key = v
	}

	return &s, nil
}
