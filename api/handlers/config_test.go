package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/document"
	"github.com/BaSui01/configtrail/rollback"
	"github.com/BaSui01/configtrail/store"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

type noopWriter struct {
	err error
}

func (w *noopWriter) WriteConfig(document.Document) error {
	return w.err
}

func newConfigHandler(t *testing.T) (*ConfigHandler, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore(zap.NewNop())
	coordinator := rollback.NewCoordinator(s, &noopWriter{}, zap.NewNop())
	return NewConfigHandler(s, coordinator, zap.NewNop()), s
}

func seedVersions(t *testing.T, s *store.MemoryStore, docs ...document.Document) {
	t.Helper()
	for _, doc := range docs {
		_, _, err := s.Save(context.Background(), doc)
		require.NoError(t, err)
	}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

// =============================================================================
// 🧪 HandleLatest 测试
// =============================================================================

func TestConfigHandler_HandleLatest(t *testing.T) {
	h, s := newConfigHandler(t)
	seedVersions(t, s, document.Document{"a": 1}, document.Document{"a": 2})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	h.HandleLatest(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(2), data["version"])
	cfg := data["config"].(map[string]any)
	assert.Equal(t, float64(2), cfg["a"])
}

func TestConfigHandler_HandleLatest_EmptyStore(t *testing.T) {
	h, _ := newConfigHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	h.HandleLatest(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	// 空存储返回空配置对象
	assert.Equal(t, map[string]any{}, resp.Data)
}

func TestConfigHandler_HandleLatest_MethodNotAllowed(t *testing.T) {
	h, _ := newConfigHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/config", nil)
	h.HandleLatest(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodGet, w.Header().Get("Allow"))
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "METHOD_NOT_ALLOWED", resp.Error.Code)
}

// =============================================================================
// 🧪 HandleHistory / HandleAll 测试
// =============================================================================

func TestConfigHandler_HandleHistory(t *testing.T) {
	h, s := newConfigHandler(t)
	seedVersions(t, s, document.Document{"a": 1}, document.Document{"a": 2}, document.Document{"a": 3})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/config/history", nil)
	h.HandleHistory(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	items := resp.Data.([]any)
	require.Len(t, items, 3)
	for i, item := range items {
		entry := item.(map[string]any)
		assert.Equal(t, float64(i+1), entry["version"])
		cfg := entry["config"].(map[string]any)
		assert.Equal(t, float64(i+1), cfg["a"])
	}
}

func TestConfigHandler_HandleHistory_Empty(t *testing.T) {
	h, _ := newConfigHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/config/history", nil)
	h.HandleHistory(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Data)
}

func TestConfigHandler_HandleAll(t *testing.T) {
	h, s := newConfigHandler(t)
	seedVersions(t, s, document.Document{"a": 1}, document.Document{"a": 2})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/config/all", nil)
	h.HandleAll(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	items := resp.Data.([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	cfg := first["config"].(map[string]any)
	assert.Equal(t, float64(1), cfg["a"])
}

// =============================================================================
// 🧪 HandleByVersion 测试
// =============================================================================

func TestConfigHandler_HandleByVersion(t *testing.T) {
	h, s := newConfigHandler(t)
	seedVersions(t, s, document.Document{"a": 1}, document.Document{"a": 2})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/config/versions/1", nil)
	h.HandleByVersion(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["version"])
}

func TestConfigHandler_HandleByVersion_NotFound(t *testing.T) {
	h, s := newConfigHandler(t)
	seedVersions(t, s, document.Document{"a": 1})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/config/versions/42", nil)
	h.HandleByVersion(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "VERSION_NOT_FOUND", resp.Error.Code)
}

func TestConfigHandler_HandleByVersion_InvalidNumber(t *testing.T) {
	h, _ := newConfigHandler(t)

	tests := []struct {
		name string
		path string
	}{
		{"non-numeric", "/api/v1/config/versions/abc"},
		{"zero", "/api/v1/config/versions/0"},
		{"negative", "/api/v1/config/versions/-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			h.HandleByVersion(w, r)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
		})
	}
}

// =============================================================================
// 🧪 HandleRollback 测试
// =============================================================================

func TestConfigHandler_HandleRollback(t *testing.T) {
	h, s := newConfigHandler(t)
	seedVersions(t, s, document.Document{"a": 1}, document.Document{"a": 2})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/config/rollback/1", nil)
	h.HandleRollback(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, float64(3), data["version"])

	// 回滚真正创建了新版本
	history, err := s.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.NotNil(t, history[2].RolledBackFrom)
	assert.Equal(t, int64(1), *history[2].RolledBackFrom)
}

func TestConfigHandler_HandleRollback_NotFound(t *testing.T) {
	h, s := newConfigHandler(t)
	seedVersions(t, s, document.Document{"a": 1})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/config/rollback/99", nil)
	h.HandleRollback(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)

	// 失败的回滚不留痕迹
	history, err := s.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestConfigHandler_HandleRollback_GetNotAllowed(t *testing.T) {
	h, _ := newConfigHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/config/rollback/1", nil)
	h.HandleRollback(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

func TestConfigHandler_HandleRollback_WriteFailureReportsDivergence(t *testing.T) {
	s := store.NewMemoryStore(zap.NewNop())
	coordinator := rollback.NewCoordinator(s, &noopWriter{err: errors.New("disk full")}, zap.NewNop())
	h := NewConfigHandler(s, coordinator, zap.NewNop())
	seedVersions(t, s, document.Document{"a": 1}, document.Document{"a": 2})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/config/rollback/1", nil)
	h.HandleRollback(w, r)

	// 记录已创建但文件没写回：500 且消息里给出新版本号
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["success"])
	assert.Equal(t, float64(3), data["version"])
	assert.Contains(t, data["message"], "version 3")

	history, err := s.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 3)
}
