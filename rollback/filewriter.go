// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

package rollback

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/document"
)

// ===== 📝 配置文件写回 =====

// FileWriter 将配置文档物化为磁盘上的 YAML 文件。
type FileWriter interface {
	WriteConfig(doc document.Document) error
}

// AtomicFileWriter 以临时文件加重命名的方式写回配置文件，
// 保证监听方永远不会读到半截内容。
type AtomicFileWriter struct {
	path   string
	logger *zap.Logger
}

// NewAtomicFileWriter 创建指向 path 的写回器。
func NewAtomicFileWriter(path string, logger *zap.Logger) *AtomicFileWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AtomicFileWriter{
		path:   path,
		logger: logger.With(zap.String("component", "filewriter")),
	}
}

// WriteConfig 序列化文档并原子替换目标文件。
func (w *AtomicFileWriter) WriteConfig(doc document.Document) error {
	data, err := document.Serialize(doc)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}

	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, ".configtrail-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	// 任何一步失败都清掉临时文件
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}

	w.logger.Debug("config file rewritten",
		zap.String("path", w.path),
		zap.Int("bytes", len(data)),
	)
	return nil
}
