package store

import (
	"context"
	"time"

	"github.com/BaSui01/configtrail/document"
)

// =============================================================================
// 📦 版本记录与存储契约
// =============================================================================

// VersionRecord 是一份配置快照加元数据，一经创建不可变。
type VersionRecord struct {
	// Version 正整数，唯一，按创建顺序严格递增
	Version int64 `json:"version" bson:"version"`

	// Timestamp 创建时刻（UTC）
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	// Config 归一化后的配置文档深拷贝快照
	Config document.Document `json:"config" bson:"config"`

	// RolledBackFrom 回滚来源版本号；常规摄入的版本没有该字段
	RolledBackFrom *int64 `json:"rolled_back_from,omitempty" bson:"rolled_back_from,omitempty"`

	// Fingerprint 归一化文档的规范内容指纹，用于全历史去重
	Fingerprint string `json:"-" bson:"fingerprint"`
}

// IsRollback reports whether this record was created by a rollback.
func (r *VersionRecord) IsRollback() bool {
	return r.RolledBackFrom != nil
}

// Store 是版本化配置存储的统一契约。实现必须满足：
//
//   - 版本号从 1 开始严格递增，下一版本恒为 max(已有版本)+1
//   - Save 对整个历史做内容去重：命中时返回既有记录，不产生新版本
//   - SaveRollback 绕过去重，总是创建新版本并携带来源版本号
//   - 去重检查 + 版本分配 + 插入的序列对单个实例串行化，
//     两个并发 Save 不会分到同一个版本号
//   - 记录一经持久化永不修改、永不删除
//
// 后端不可用以 STORAGE_UNAVAILABLE 上抛，核心不做内部重试。
type Store interface {
	// Save 持久化一份归一化文档。内容与任一既有记录相等时为去重命中：
	// 返回该记录且 created 为 false，不产生写入。
	Save(ctx context.Context, doc document.Document) (rec *VersionRecord, created bool, err error)

	// SaveRollback 以目标版本的内容创建新版本，绕过去重并记录来源。
	SaveRollback(ctx context.Context, doc document.Document, fromVersion int64) (*VersionRecord, error)

	// Latest 返回版本号最大的记录；存储为空时返回 (nil, nil)。
	Latest(ctx context.Context) (*VersionRecord, error)

	// History 返回全部记录，按版本号升序。
	History(ctx context.Context) ([]*VersionRecord, error)

	// ByVersion 精确查找；不存在时返回 (nil, nil)。
	ByVersion(ctx context.Context, version int64) (*VersionRecord, error)

	// Ping 探测后端可用性，用于就绪检查。
	Ping(ctx context.Context) error

	// Close 释放后端连接。
	Close(ctx context.Context) error
}
