package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/document"
	"github.com/BaSui01/configtrail/types"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(zap.NewNop())
}

func TestMemoryStore_SaveAssignsSequentialVersions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		rec, created, err := s.Save(ctx, document.Document{"n": i})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(i), rec.Version)
		assert.False(t, rec.Timestamp.IsZero())
		assert.Nil(t, rec.RolledBackFrom)
	}
}

func TestMemoryStore_SaveDeduplicatesRepeatedDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, created, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Version, second.Version)

	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryStore_SaveMatchingOlderVersionReturnsIt(t *testing.T) {
	// 去重针对整个历史而不是最新版本：重新保存旧内容会静默复用
	// 旧版本号，而不是创建新版本。
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)
	_, _, err = s.Save(ctx, document.Document{"a": 2})
	require.NoError(t, err)
	_, _, err = s.Save(ctx, document.Document{"a": 3})
	require.NoError(t, err)

	rec, created, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), rec.Version)

	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestMemoryStore_SaveKeyOrderDoesNotMatter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, created, err := s.Save(ctx, document.Document{"a": 1, "b": map[string]any{"x": 1, "y": 2}})
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = s.Save(ctx, document.Document{"b": map[string]any{"y": 2, "x": 1}, "a": 1})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestMemoryStore_SaveNilDocumentRejected(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Save(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidDocument))
}

func TestMemoryStore_SaveSnapshotsDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := document.Document{"nested": map[string]any{"k": "v"}}
	rec, _, err := s.Save(ctx, doc)
	require.NoError(t, err)

	// 调用方事后修改不得影响已持久化的快照
	doc["nested"].(map[string]any)["k"] = "mutated"

	stored, err := s.ByVersion(ctx, rec.Version)
	require.NoError(t, err)
	assert.Equal(t, "v", stored.Config["nested"].(map[string]any)["k"])
}

func TestMemoryStore_LatestEmptyStore(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryStore_ByVersionAbsent(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.ByVersion(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryStore_SaveRollbackAlwaysCreates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)

	// 即使内容与当前最新版本完全一致，回滚也必须创建新版本：
	// 来源不同
	rec, err := s.SaveRollback(ctx, first.Config, first.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
	require.NotNil(t, rec.RolledBackFrom)
	assert.Equal(t, first.Version, *rec.RolledBackFrom)
	assert.True(t, document.Equal(first.Config, rec.Config))

	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestMemoryStore_WorkedExample(t *testing.T) {
	// 空存储 → save{a:1} → v1；save{a:1} → 仍是 v1；save{a:2} → v2；
	// rollback(1) → v3 内容 {a:1} 来源 1；history = [v1,v2,v3]；latest = v3
	s := newTestStore(t)
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

	target, err := s.ByVersion(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, target)

	v3, err := s.SaveRollback(ctx, target.Config, target.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v3.Version)
	assert.True(t, document.Equal(document.Document{"a": 1}, v3.Config))
	require.NotNil(t, v3.RolledBackFrom)
	assert.Equal(t, int64(1), *v3.RolledBackFrom)

	history, err := s.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(1), history[0].Version)
	assert.Equal(t, int64(2), history[1].Version)
	assert.Equal(t, int64(3), history[2].Version)

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.Version)
}

func TestMemoryStore_ConcurrentSavesDistinctContent(t *testing.T) {
	// 并发保存互不相同的文档：版本号不得重复
	s := newTestStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, err := s.Save(ctx, document.Document{"key": fmt.Sprintf("value-%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := s.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, n)

	seen := make(map[int64]bool, n)
	for _, rec := range history {
		assert.False(t, seen[rec.Version], "duplicate version %d", rec.Version)
		seen[rec.Version] = true
	}
}

func TestMemoryStore_ConcurrentSavesSameContent(t *testing.T) {
	// 并发保存同一文档：去重检查必须只产生一条记录
	s := newTestStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := s.Save(ctx, document.Document{"same": "content"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := s.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryStore_ReadsReturnIndependentCopies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Save(ctx, document.Document{"app": map[string]any{"port": 8080}})
	require.NoError(t, err)

	// 改动取回的记录不得污染存储内的历史
	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	latest.Config["app"].(map[string]any)["port"] = 9999
	latest.Config["injected"] = true

	byVersion, err := s.ByVersion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8080, byVersion.Config["app"].(map[string]any)["port"])
	assert.NotContains(t, byVersion.Config, "injected")

	history, err := s.History(ctx)
	require.NoError(t, err)
	history[0].Config["app"].(map[string]any)["port"] = 7777

	again, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8080, again.Config["app"].(map[string]any)["port"])
}

func TestMemoryStore_DedupHitReturnsIndependentCopy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)

	rec, created, err := s.Save(ctx, document.Document{"a": 1})
	require.NoError(t, err)
	require.False(t, created)
	rec.Config["a"] = 42

	stored, err := s.ByVersion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Config["a"])
}
