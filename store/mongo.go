package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/document"
	"github.com/BaSui01/configtrail/types"
)

// =============================================================================
// 🍃 MongoDB 存储实现
// =============================================================================

// MongoConfig MongoDB 后端配置
type MongoConfig struct {
	// 连接字符串（来自 secrets，不落日志）
	URI string `yaml:"-" json:"-"`

	// 数据库名
	Database string `yaml:"database" json:"database"`

	// 集合名
	Collection string `yaml:"collection" json:"collection"`

	// 单次操作超时
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultMongoConfig 返回默认 MongoDB 配置。
// 数据库与集合名沿用历史部署的命名。
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Database:   "config_db",
		Collection: "config_data",
		Timeout:    5 * time.Second,
	}
}

// MongoStore 基于 MongoDB 的 Store 实现。
//
// 去重通过记录上的规范内容指纹完成：对嵌入文档直接做相等过滤在
// BSON 中是字段序敏感的，指纹过滤给出与键序无关的深相等语义。
// Save/SaveRollback 全程持有实例级互斥锁，串行化去重检查、
// 版本分配与插入；version 上的唯一索引兜底多进程部署下的竞争。
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	cfg    MongoConfig
	mu     sync.Mutex
	logger *zap.Logger
}

// NewMongoStore connects to MongoDB and prepares the version collection.
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.Timeout).
		SetBSONOptions(&options.BSONOptions{
			// interface{} 字段解码为 bson.M（map[string]any），
			// 与 document.Document 的嵌套表示保持一致
			DefaultDocumentM: true,
		})

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, types.NewStorageUnavailableError("failed to connect to MongoDB", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, types.NewStorageUnavailableError("MongoDB ping failed", err)
	}

	s := &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "mongo_store")),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	// URI 是凭证，日志中只出现库名与集合名
	s.logger.Info("mongo store initialized",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))

	return s, nil
}

// ensureIndexes 建立 version 唯一索引与 fingerprint 查询索引。
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	idxCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	_, err := s.coll.Indexes().CreateMany(idxCtx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "fingerprint", Value: 1}},
		},
	})
	if err != nil {
		return types.NewStorageUnavailableError("failed to create indexes", err)
	}
	return nil
}

// Save implements Store.
func (s *MongoStore) Save(ctx context.Context, doc document.Document) (*VersionRecord, bool, error) {
	if doc == nil {
		return nil, false, types.NewInvalidDocumentError("document is nil", nil)
	}

	fp, err := document.Fingerprint(doc)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	// 全历史去重：任一记录指纹命中即返回既有版本
	var existing VersionRecord
	err = s.coll.FindOne(opCtx, bson.M{"fingerprint": fp}).Decode(&existing)
	switch {
	case err == nil:
		return &existing, false, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, false, types.NewStorageUnavailableError("dedup lookup failed", err)
	}

	next, err := s.nextVersion(opCtx)
	if err != nil {
		return nil, false, err
	}

	rec := &VersionRecord{
		Version:     next,
		Timestamp:   time.Now().UTC(),
		Config:      document.Clone(doc),
		Fingerprint: fp,
	}
	if _, err := s.coll.InsertOne(opCtx, rec); err != nil {
		return nil, false, types.NewStorageUnavailableError("failed to insert version record", err)
	}

	s.logger.Info("configuration saved", zap.Int64("version", rec.Version))
	return rec, true, nil
}

// SaveRollback implements Store.
func (s *MongoStore) SaveRollback(ctx context.Context, doc document.Document, fromVersion int64) (*VersionRecord, error) {
	if doc == nil {
		return nil, types.NewInvalidDocumentError("document is nil", nil)
	}

	fp, err := document.Fingerprint(doc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	next, err := s.nextVersion(opCtx)
	if err != nil {
		return nil, err
	}

	from := fromVersion
	rec := &VersionRecord{
		Version:        next,
		Timestamp:      time.Now().UTC(),
		Config:         document.Clone(doc),
		RolledBackFrom: &from,
		Fingerprint:    fp,
	}
	if _, err := s.coll.InsertOne(opCtx, rec); err != nil {
		return nil, types.NewStorageUnavailableError("failed to insert rollback record", err)
	}

	s.logger.Info("rollback version created",
		zap.Int64("version", rec.Version),
		zap.Int64("rolled_back_from", fromVersion))
	return rec, nil
}

// Latest implements Store.
func (s *MongoStore) Latest(ctx context.Context) (*VersionRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var rec VersionRecord
	err := s.coll.FindOne(opCtx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})).Decode(&rec)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, nil
	case err != nil:
		return nil, types.NewStorageUnavailableError("failed to fetch latest version", err)
	}
	return &rec, nil
}

// History implements Store.
func (s *MongoStore) History(ctx context.Context) ([]*VersionRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cursor, err := s.coll.Find(opCtx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, types.NewStorageUnavailableError("failed to fetch history", err)
	}
	defer cursor.Close(opCtx)

	var records []*VersionRecord
	if err := cursor.All(opCtx, &records); err != nil {
		return nil, types.NewStorageUnavailableError("failed to decode history", err)
	}
	return records, nil
}

// ByVersion implements Store.
func (s *MongoStore) ByVersion(ctx context.Context, version int64) (*VersionRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var rec VersionRecord
	err := s.coll.FindOne(opCtx, bson.M{"version": version}).Decode(&rec)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, nil
	case err != nil:
		return nil, types.NewStorageUnavailableError("failed to fetch version", err)
	}
	return &rec, nil
}

// Ping implements Store.
func (s *MongoStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.client.Ping(pingCtx, readpref.Primary()); err != nil {
		return types.NewStorageUnavailableError("MongoDB ping failed", err)
	}
	return nil
}

// Close implements Store.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// nextVersion 返回 max(已有版本)+1，空集合时为 1。
func (s *MongoStore) nextVersion(ctx context.Context) (int64, error) {
	var last VersionRecord
	err := s.coll.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})).Decode(&last)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return 1, nil
	case err != nil:
		return 0, types.NewStorageUnavailableError("failed to determine next version", err)
	}
	return last.Version + 1, nil
}
