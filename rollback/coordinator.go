// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

package rollback

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/store"
	"github.com/BaSui01/configtrail/types"
)

// ===== ⏪ 回滚协调器 =====

// Coordinator 执行回滚：读取目标版本，创建带来源标记的新版本，
// 再把内容写回被监听的配置文件。
type Coordinator struct {
	store  store.Store
	writer FileWriter
	logger *zap.Logger
}

// NewCoordinator 创建回滚协调器。writer 可为 nil，此时跳过文件写回。
func NewCoordinator(s store.Store, writer FileWriter, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:  s,
		writer: writer,
		logger: logger.With(zap.String("component", "rollback")),
	}
}

// Rollback 将配置回滚到 version。成功时返回新创建的版本记录。
//
// 回滚记录一旦落库就不会因文件写回失败而撤销：此时返回已创建的
// 记录和 WRITE_FAILURE 错误，调用方据此得知存储与磁盘出现分歧。
func (c *Coordinator) Rollback(ctx context.Context, version int64) (*store.VersionRecord, error) {
	target, err := c.store.ByVersion(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("lookup version %d: %w", version, err)
	}
	if target == nil {
		return nil, types.NewVersionNotFoundError(version)
	}

	rec, err := c.store.SaveRollback(ctx, target.Config, target.Version)
	if err != nil {
		return nil, fmt.Errorf("persist rollback of version %d: %w", version, err)
	}

	c.logger.Info("rollback persisted",
		zap.Int64("from_version", version),
		zap.Int64("new_version", rec.Version),
	)

	if c.writer != nil {
		if err := c.writer.WriteConfig(rec.Config); err != nil {
			// 记录已持久化，磁盘落后于存储
			c.logger.Error("config file rewrite failed after rollback",
				zap.Int64("version", rec.Version),
				zap.Error(err),
			)
			return rec, types.NewWriteFailureError(
				fmt.Sprintf("rollback to version %d recorded as version %d but config file rewrite failed", version, rec.Version),
				err,
			)
		}
	}

	return rec, nil
}
