// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/document"
	"github.com/BaSui01/configtrail/internal/cache"
	"github.com/BaSui01/configtrail/internal/metrics"
	"github.com/BaSui01/configtrail/store"
	"github.com/BaSui01/configtrail/watch"
)

// ===== 📥 摄取管道 =====

// Pipeline 把被监听文件的变更转化为版本记录：
// 读取文件、解析规范化、提交存储，并把新版本广播给订阅者。
type Pipeline struct {
	path    string
	store   store.Store
	metrics *metrics.Collector
	cache   *cache.LatestCache
	logger  *zap.Logger

	mu          sync.RWMutex
	subscribers map[int]chan *store.VersionRecord
	nextSubID   int
}

// PipelineOption configures the Pipeline.
type PipelineOption func(*Pipeline)

// WithMetrics attaches a metrics collector.
func WithMetrics(collector *metrics.Collector) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = collector
	}
}

// WithLatestCache attaches the latest-version cache. Every newly created
// version overwrites the cached latest entry so readers never see a
// predecessor version served from the cache.
func WithLatestCache(c *cache.LatestCache) PipelineOption {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline ingesting the config file at path into s.
func NewPipeline(path string, s store.Store, opts ...PipelineOption) (*Pipeline, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}

	p := &Pipeline{
		path:        abs,
		store:       s,
		logger:      zap.NewNop(),
		subscribers: make(map[int]chan *store.VersionRecord),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("component", "ingest"))

	return p, nil
}

// Path returns the absolute path of the ingested file.
func (p *Pipeline) Path() string {
	return p.path
}

// HandleEvent 处理一个文件事件。非目标路径和删除事件被忽略；
// 摄取失败只记日志和指标，不中断监听。
func (p *Pipeline) HandleEvent(ctx context.Context, event watch.Event) {
	if event.Path != p.path {
		return
	}
	if event.Op != watch.OpCreate && event.Op != watch.OpModify {
		p.logger.Debug("ignoring file event",
			zap.String("op", event.Op.String()),
			zap.String("path", event.Path))
		return
	}

	if p.metrics != nil {
		p.metrics.RecordFileEvent(event.Op.String())
	}

	if _, err := p.IngestFile(ctx); err != nil {
		// 坏文件不终止服务，等待下一次保存
		p.logger.Warn("failed to ingest config file",
			zap.String("path", p.path),
			zap.Error(err))
	}
}

// IngestFile 读取并摄取当前文件内容。文件内容与历史某版本相同时
// 返回该版本且 created 为 false。
func (p *Pipeline) IngestFile(ctx context.Context) (*store.VersionRecord, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		p.recordError("read")
		return nil, fmt.Errorf("read config file: %w", err)
	}

	doc, err := document.Parse(data)
	if err != nil {
		p.recordError("parse")
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	doc = document.Normalize(doc)

	start := time.Now()
	rec, created, err := p.store.Save(ctx, doc)
	if err != nil {
		p.recordError("store")
		return nil, fmt.Errorf("persist config version: %w", err)
	}

	if p.metrics != nil {
		outcome := "deduplicated"
		if created {
			outcome = "created"
		}
		p.metrics.RecordSave(outcome, time.Since(start))
	}

	if created {
		p.logger.Info("new config version captured",
			zap.Int64("version", rec.Version),
			zap.String("fingerprint", rec.Fingerprint))
		if p.metrics != nil {
			p.metrics.SetLatestVersion(rec.Version)
		}
		if p.cache != nil {
			// 缓存失败只降级，不影响已持久化的版本
			if err := p.cache.SetLatest(ctx, rec); err != nil {
				p.logger.Warn("failed to refresh latest-version cache",
					zap.Int64("version", rec.Version),
					zap.Error(err))
			}
		}
		p.broadcast(rec)
	} else {
		p.logger.Debug("config content already recorded",
			zap.Int64("version", rec.Version))
	}

	return rec, nil
}

// LoadInitial 摄取启动时已存在的文件内容。文件缺失不算错误。
func (p *Pipeline) LoadInitial(ctx context.Context) error {
	if _, err := os.Stat(p.path); err != nil {
		if os.IsNotExist(err) {
			p.logger.Info("config file not present at startup, waiting for creation",
				zap.String("path", p.path))
			return nil
		}
		return fmt.Errorf("stat config file: %w", err)
	}

	_, err := p.IngestFile(ctx)
	return err
}

// Subscribe 返回一个接收新版本记录的通道和对应的退订函数。
// 慢消费者会丢事件而不是阻塞摄取。
func (p *Pipeline) Subscribe() (<-chan *store.VersionRecord, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSubID
	p.nextSubID++
	ch := make(chan *store.VersionRecord, 16)
	p.subscribers[id] = ch

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subscribers[id]; ok {
			delete(p.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (p *Pipeline) broadcast(rec *store.VersionRecord) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ch := range p.subscribers {
		select {
		case ch <- rec:
		default:
			p.logger.Warn("subscriber channel full, dropping version notification",
				zap.Int64("version", rec.Version))
		}
	}
}

func (p *Pipeline) recordError(reason string) {
	if p.metrics != nil {
		p.metrics.RecordIngestError(reason)
	}
}
