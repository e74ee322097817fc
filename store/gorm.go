package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/configtrail/document"
	"github.com/BaSui01/configtrail/types"
)

// =============================================================================
// 🗄️ SQL 存储实现（gorm）
// =============================================================================

// GormConfig SQL 后端配置
type GormConfig struct {
	// 驱动类型: sqlite, postgres
	Driver string `yaml:"driver" json:"driver"`

	// 连接串。sqlite 为文件路径（支持 :memory:），postgres 为 DSN。
	DSN string `yaml:"-" json:"-"`
}

// versionRow 是 version_records 表的行结构。
// 配置以规范 JSON 存储（encoding/json 排序键），fingerprint 支撑全历史去重。
type versionRow struct {
	Version        int64     `gorm:"primaryKey;autoIncrement:false"`
	Timestamp      time.Time `gorm:"not null"`
	ConfigJSON     string    `gorm:"column:config_json;not null"`
	Fingerprint    string    `gorm:"not null;index:idx_version_records_fingerprint"`
	RolledBackFrom *int64
}

// TableName implements gorm's table naming.
func (versionRow) TableName() string { return "version_records" }

// GormStore 基于 gorm 的 Store 实现，支持 SQLite（纯 Go 驱动）与 Postgres。
//
// 注意：配置经 JSON 往返后数值统一为 float64；指纹与 YAML 序列化
// 对 int/float64 的整数值给出相同结果，相等性语义不受影响。
type GormStore struct {
	db     *gorm.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewGormStore opens the SQL backend and migrates the version table.
func NewGormStore(cfg GormConfig, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported SQL driver: %s (supported: sqlite, postgres)", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, types.NewStorageUnavailableError("failed to open SQL backend", err)
	}

	if err := db.AutoMigrate(&versionRow{}); err != nil {
		return nil, types.NewStorageUnavailableError("failed to migrate version table", err)
	}

	s := &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "gorm_store")),
	}

	s.logger.Info("sql store initialized", zap.String("driver", cfg.Driver))
	return s, nil
}

// Save implements Store.
func (s *GormStore) Save(ctx context.Context, doc document.Document) (*VersionRecord, bool, error) {
	if doc == nil {
		return nil, false, types.NewInvalidDocumentError("document is nil", nil)
	}

	fp, err := document.Fingerprint(doc)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing versionRow
	err = s.db.WithContext(ctx).Where("fingerprint = ?", fp).First(&existing).Error
	switch {
	case err == nil:
		rec, decodeErr := rowToRecord(&existing)
		if decodeErr != nil {
			return nil, false, decodeErr
		}
		return rec, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, types.NewStorageUnavailableError("dedup lookup failed", err)
	}

	next, err := s.nextVersion(ctx)
	if err != nil {
		return nil, false, err
	}

	row, err := recordToRow(next, doc, fp, nil)
	if err != nil {
		return nil, false, err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, false, types.NewStorageUnavailableError("failed to insert version record", err)
	}

	rec, err := rowToRecord(row)
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("configuration saved", zap.Int64("version", rec.Version))
	return rec, true, nil
}

// SaveRollback implements Store.
func (s *GormStore) SaveRollback(ctx context.Context, doc document.Document, fromVersion int64) (*VersionRecord, error) {
	if doc == nil {
		return nil, types.NewInvalidDocumentError("document is nil", nil)
	}

	fp, err := document.Fingerprint(doc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.nextVersion(ctx)
	if err != nil {
		return nil, err
	}

	from := fromVersion
	row, err := recordToRow(next, doc, fp, &from)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, types.NewStorageUnavailableError("failed to insert rollback record", err)
	}

	rec, err := rowToRecord(row)
	if err != nil {
		return nil, err
	}

	s.logger.Info("rollback version created",
		zap.Int64("version", rec.Version),
		zap.Int64("rolled_back_from", fromVersion))
	return rec, nil
}

// Latest implements Store.
func (s *GormStore) Latest(ctx context.Context) (*VersionRecord, error) {
	var row versionRow
	err := s.db.WithContext(ctx).Order("version DESC").First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, types.NewStorageUnavailableError("failed to fetch latest version", err)
	}
	return rowToRecord(&row)
}

// History implements Store.
func (s *GormStore) History(ctx context.Context) ([]*VersionRecord, error) {
	var rows []versionRow
	if err := s.db.WithContext(ctx).Order("version ASC").Find(&rows).Error; err != nil {
		return nil, types.NewStorageUnavailableError("failed to fetch history", err)
	}

	records := make([]*VersionRecord, 0, len(rows))
	for i := range rows {
		rec, err := rowToRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ByVersion implements Store.
func (s *GormStore) ByVersion(ctx context.Context, version int64) (*VersionRecord, error) {
	var row versionRow
	err := s.db.WithContext(ctx).Where("version = ?", version).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, types.NewStorageUnavailableError("failed to fetch version", err)
	}
	return rowToRecord(&row)
}

// Ping implements Store.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return types.NewStorageUnavailableError("failed to access SQL connection", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return types.NewStorageUnavailableError("SQL ping failed", err)
	}
	return nil
}

// Close implements Store.
func (s *GormStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// nextVersion 返回 max(已有版本)+1，空表时为 1。
func (s *GormStore) nextVersion(ctx context.Context) (int64, error) {
	var max *int64
	if err := s.db.WithContext(ctx).Model(&versionRow{}).
		Select("MAX(version)").Scan(&max).Error; err != nil {
		return 0, types.NewStorageUnavailableError("failed to determine next version", err)
	}
	if max == nil {
		return 1, nil
	}
	return *max + 1, nil
}

func recordToRow(version int64, doc document.Document, fp string, from *int64) (*versionRow, error) {
	data, err := json.Marshal(map[string]any(doc))
	if err != nil {
		return nil, types.NewInvalidDocumentError("failed to encode document", err)
	}
	return &versionRow{
		Version:        version,
		Timestamp:      time.Now().UTC(),
		ConfigJSON:     string(data),
		Fingerprint:    fp,
		RolledBackFrom: from,
	}, nil
}

func rowToRecord(row *versionRow) (*VersionRecord, error) {
	var cfg map[string]any
	if err := json.Unmarshal([]byte(row.ConfigJSON), &cfg); err != nil {
		return nil, types.NewStorageUnavailableError("failed to decode stored document", err)
	}
	return &VersionRecord{
		Version:        row.Version,
		Timestamp:      row.Timestamp.UTC(),
		Config:         document.Document(cfg),
		RolledBackFrom: row.RolledBackFrom,
		Fingerprint:    row.Fingerprint,
	}, nil
}
