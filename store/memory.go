package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/document"
	"github.com/BaSui01/configtrail/types"
)

// =============================================================================
// 💾 内存存储实现
// =============================================================================

// MemoryStore 是进程内的 Store 实现，用于测试与 memory 驱动的独立运行。
// 记录按版本号升序保存在切片中，读写互斥锁保证分配-插入序列的原子性。
type MemoryStore struct {
	mu      sync.RWMutex
	records []*VersionRecord
	logger  *zap.Logger
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		records: make([]*VersionRecord, 0),
		logger:  logger.With(zap.String("component", "memory_store")),
	}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, doc document.Document) (*VersionRecord, bool, error) {
	if doc == nil {
		return nil, false, types.NewInvalidDocumentError("document is nil", nil)
	}

	fp, err := document.Fingerprint(doc)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 全历史去重：命中任一既有记录即返回，不产生新版本
	for _, rec := range s.records {
		if rec.Fingerprint == fp {
			return snapshotRecord(rec), false, nil
		}
	}

	rec := &VersionRecord{
		Version:     s.nextVersionLocked(),
		Timestamp:   time.Now().UTC(),
		Config:      document.Clone(doc),
		Fingerprint: fp,
	}
	s.records = append(s.records, rec)

	s.logger.Debug("version created", zap.Int64("version", rec.Version))
	return snapshotRecord(rec), true, nil
}

// SaveRollback implements Store.
func (s *MemoryStore) SaveRollback(ctx context.Context, doc document.Document, fromVersion int64) (*VersionRecord, error) {
	if doc == nil {
		return nil, types.NewInvalidDocumentError("document is nil", nil)
	}

	fp, err := document.Fingerprint(doc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from := fromVersion
	rec := &VersionRecord{
		Version:        s.nextVersionLocked(),
		Timestamp:      time.Now().UTC(),
		Config:         document.Clone(doc),
		RolledBackFrom: &from,
		Fingerprint:    fp,
	}
	s.records = append(s.records, rec)

	s.logger.Debug("rollback version created",
		zap.Int64("version", rec.Version),
		zap.Int64("rolled_back_from", fromVersion))
	return snapshotRecord(rec), nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(ctx context.Context) (*VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, nil
	}
	return snapshotRecord(s.records[len(s.records)-1]), nil
}

// History implements Store.
func (s *MemoryStore) History(ctx context.Context) ([]*VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*VersionRecord, len(s.records))
	for i, rec := range s.records {
		out[i] = snapshotRecord(rec)
	}
	return out, nil
}

// ByVersion implements Store.
func (s *MemoryStore) ByVersion(ctx context.Context, version int64) (*VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.Version == version {
			return snapshotRecord(rec), nil
		}
	}
	return nil, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// snapshotRecord 返回记录的独立副本。历史记录不可变，
// 调用方改动取回的 Config 不得波及存储内部状态。
func snapshotRecord(rec *VersionRecord) *VersionRecord {
	if rec == nil {
		return nil
	}
	out := *rec
	out.Config = document.Clone(rec.Config)
	if rec.RolledBackFrom != nil {
		from := *rec.RolledBackFrom
		out.RolledBackFrom = &from
	}
	return &out
}

// nextVersionLocked 返回 max(已有版本)+1。记录按升序追加，
// 末尾记录即最大版本。调用方必须持有写锁。
func (s *MemoryStore) nextVersionLocked() int64 {
	if len(s.records) == 0 {
		return 1
	}
	return s.records[len(s.records)-1].Version + 1
}
