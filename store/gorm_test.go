package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/document"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore(GormConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestGormStore_UnsupportedDriver(t *testing.T) {
	_, err := NewGormStore(GormConfig{Driver: "oracle", DSN: "x"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported SQL driver")
}

func TestGormStore_SaveAndDedup(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	v1, created, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), v1.Version)

	again, created, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), again.Version)

	v2, created, err := s.Save(ctx, document.Document{"a": 2})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(2), v2.Version)

	// 对整个历史去重：重新出现的旧内容复用旧版本号
	old, created, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), old.Version)
}

func TestGormStore_RoundTripPreservesStructure(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	doc := document.Document{
		"server": map[string]any{"host": "localhost", "port": 8080},
		"tags":   []any{"alpha", "beta"},
		"debug":  true,
	}
	rec, _, err := s.Save(ctx, doc)
	require.NoError(t, err)

	stored, err := s.ByVersion(ctx, rec.Version)
	require.NoError(t, err)
	require.NotNil(t, stored)
	// JSON 往返后数值变为 float64，但规范指纹保持一致
	assert.True(t, document.Equal(doc, stored.Config))
	assert.Equal(t, true, stored.Config["debug"])
}

func TestGormStore_RollbackProvenance(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	v1, _, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)
	_, _, err = s.Save(ctx, document.Document{"a": 2})
	require.NoError(t, err)

	rec, err := s.SaveRollback(ctx, v1.Config, v1.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Version)
	require.NotNil(t, rec.RolledBackFrom)
	assert.Equal(t, int64(1), *rec.RolledBackFrom)
	assert.True(t, document.Equal(v1.Config, rec.Config))

	// 回滚记录的内容即使与 v1 相同也必须真实落库
	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestGormStore_LatestAndHistoryOrdering(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i := 1; i <= 3; i++ {
		_, _, err := s.Save(ctx, document.Document{"n": i})
		require.NoError(t, err)
	}

	history, err := s.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, rec := range history {
		assert.Equal(t, int64(i+1), rec.Version)
	}

	latest, err = s.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(3), latest.Version)
}

func TestGormStore_ByVersionAbsent(t *testing.T) {
	s := newSQLiteStore(t)

	rec, err := s.ByVersion(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGormStore_Ping(t *testing.T) {
	s := newSQLiteStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
