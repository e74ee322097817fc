package handlers

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/document"
	"github.com/BaSui01/configtrail/internal/cache"
	"github.com/BaSui01/configtrail/internal/metrics"
	"github.com/BaSui01/configtrail/rollback"
	"github.com/BaSui01/configtrail/store"
	"github.com/BaSui01/configtrail/types"
)

// =============================================================================
// ⚙️ 配置查询 Handler
// =============================================================================

// ConfigHandler 配置版本查询与回滚处理器
type ConfigHandler struct {
	store       store.Store
	coordinator *rollback.Coordinator
	cache       *cache.LatestCache
	metrics     *metrics.Collector
	logger      *zap.Logger
}

// ConfigHandlerOption configures the ConfigHandler.
type ConfigHandlerOption func(*ConfigHandler)

// WithLatestCache attaches a latest-version cache.
func WithLatestCache(c *cache.LatestCache) ConfigHandlerOption {
	return func(h *ConfigHandler) {
		h.cache = c
	}
}

// WithMetricsCollector attaches a metrics collector.
func WithMetricsCollector(m *metrics.Collector) ConfigHandlerOption {
	return func(h *ConfigHandler) {
		h.metrics = m
	}
}

// NewConfigHandler 创建配置处理器
func NewConfigHandler(s store.Store, coordinator *rollback.Coordinator, logger *zap.Logger, opts ...ConfigHandlerOption) *ConfigHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ConfigHandler{
		store:       s,
		coordinator: coordinator,
		logger:      logger.With(zap.String("component", "config_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// 📦 响应载荷
// =============================================================================

// VersionInfo 版本元信息
type VersionInfo struct {
	Version        int64     `json:"version"`
	Timestamp      time.Time `json:"timestamp"`
	RolledBackFrom *int64    `json:"rolled_back_from,omitempty"`
}

// VersionPayload 版本元信息加完整配置内容
type VersionPayload struct {
	VersionInfo
	Config document.Document `json:"config"`
}

// RollbackResult 回滚操作结果
type RollbackResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version int64  `json:"version,omitempty"`
}

func toPayload(rec *store.VersionRecord) VersionPayload {
	return VersionPayload{
		VersionInfo: VersionInfo{
			Version:        rec.Version,
			Timestamp:      rec.Timestamp,
			RolledBackFrom: rec.RolledBackFrom,
		},
		Config: rec.Config,
	}
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleLatest 处理 GET /api/v1/config 请求
// @Summary 最新配置
// @Description 返回最新版本的配置；存储为空时返回空配置
// @Tags 配置
// @Produce json
// @Success 200 {object} Response "最新配置"
// @Router /api/v1/config [get]
func (h *ConfigHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	if !h.requireMethod(w, r, http.MethodGet) {
		return
	}

	rec, err := h.latest(r.Context())
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	if rec == nil {
		// 尚无任何版本：空配置而不是错误
		WriteSuccess(w, document.Document{})
		return
	}

	WriteSuccess(w, toPayload(rec))
}

// HandleHistory 处理 GET /api/v1/config/history 请求
// @Summary 版本历史
// @Description 按版本号升序返回全部版本记录，含配置内容
// @Tags 配置
// @Produce json
// @Success 200 {object} Response "版本历史"
// @Router /api/v1/config/history [get]
func (h *ConfigHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireMethod(w, r, http.MethodGet) {
		return
	}

	start := time.Now()
	records, err := h.store.History(r.Context())
	h.recordStoreOp("history", start)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}

	payloads := make([]VersionPayload, 0, len(records))
	for _, rec := range records {
		payloads = append(payloads, toPayload(rec))
	}

	WriteSuccess(w, payloads)
}

// HandleAll 处理 GET /api/v1/config/all 请求
// 与 /history 等价，保留是为了兼容历史部署的路由
// @Summary 完整历史
// @Description 按版本号升序返回全部版本记录，含配置内容
// @Tags 配置
// @Produce json
// @Success 200 {object} Response "全部版本记录"
// @Router /api/v1/config/all [get]
func (h *ConfigHandler) HandleAll(w http.ResponseWriter, r *http.Request) {
	h.HandleHistory(w, r)
}

// HandleByVersion 处理 GET /api/v1/config/versions/{version} 请求
// @Summary 指定版本
// @Description 返回指定版本号的版本记录
// @Tags 配置
// @Produce json
// @Success 200 {object} Response "版本记录"
// @Failure 404 {object} Response "版本不存在"
// @Router /api/v1/config/versions/{version} [get]
func (h *ConfigHandler) HandleByVersion(w http.ResponseWriter, r *http.Request) {
	if !h.requireMethod(w, r, http.MethodGet) {
		return
	}

	version, ok := h.parseVersion(w, r)
	if !ok {
		return
	}

	start := time.Now()
	rec, err := h.store.ByVersion(r.Context(), version)
	h.recordStoreOp("by_version", start)
	if err != nil {
		WriteStoreError(w, err, h.logger)
		return
	}
	if rec == nil {
		WriteError(w, types.NewVersionNotFoundError(version), h.logger)
		return
	}

	WriteSuccess(w, toPayload(rec))
}

// HandleRollback 处理 POST /api/v1/config/rollback/{version} 请求
// @Summary 回滚配置
// @Description 回滚到指定版本：创建带来源标记的新版本并重写配置文件
// @Tags 配置
// @Produce json
// @Success 200 {object} Response "回滚成功"
// @Failure 404 {object} Response "目标版本不存在"
// @Failure 500 {object} Response "记录已创建但文件写回失败"
// @Router /api/v1/config/rollback/{version} [post]
func (h *ConfigHandler) HandleRollback(w http.ResponseWriter, r *http.Request) {
	if !h.requireMethod(w, r, http.MethodPost) {
		return
	}

	version, ok := h.parseVersion(w, r)
	if !ok {
		return
	}

	start := time.Now()
	rec, err := h.coordinator.Rollback(r.Context(), version)
	if err != nil {
		if types.IsErrorCode(err, types.ErrWriteFailure) && rec != nil {
			// 回滚记录已持久化，但配置文件没写回去：如实报告分歧
			h.invalidateCache(r.Context())
			h.recordRollback(start)
			WriteJSON(w, http.StatusInternalServerError, Response{
				Success: false,
				Data: RollbackResult{
					Success: false,
					Message: fmt.Sprintf("rollback recorded as version %d but config file rewrite failed", rec.Version),
					Version: rec.Version,
				},
				Timestamp: time.Now(),
			})
			return
		}
		WriteStoreError(w, err, h.logger)
		return
	}

	h.invalidateCache(r.Context())
	h.recordRollback(start)
	if h.metrics != nil {
		h.metrics.SetLatestVersion(rec.Version)
	}

	WriteSuccess(w, RollbackResult{
		Success: true,
		Message: fmt.Sprintf("rolled back to version %d as new version %d", version, rec.Version),
		Version: rec.Version,
	})
}

// =============================================================================
// 🔧 内部辅助
// =============================================================================

// latest 先查缓存再查存储，缓存故障静默降级
func (h *ConfigHandler) latest(ctx context.Context) (*store.VersionRecord, error) {
	if h.cache != nil {
		if rec, err := h.cache.GetLatest(ctx); err == nil {
			if h.metrics != nil {
				h.metrics.RecordCacheHit("latest")
			}
			return rec, nil
		} else if cache.IsCacheMiss(err) {
			if h.metrics != nil {
				h.metrics.RecordCacheMiss("latest")
			}
		} else {
			h.logger.Warn("latest cache unavailable, falling back to store", zap.Error(err))
		}
	}

	start := time.Now()
	rec, err := h.store.Latest(ctx)
	h.recordStoreOp("latest", start)
	if err != nil {
		return nil, err
	}

	if rec != nil && h.cache != nil {
		if err := h.cache.SetLatest(ctx, rec); err != nil {
			h.logger.Warn("failed to populate latest cache", zap.Error(err))
		}
	}
	return rec, nil
}

func (h *ConfigHandler) invalidateCache(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		h.logger.Warn("failed to invalidate latest cache", zap.Error(err))
	}
}

func (h *ConfigHandler) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", r.Method), h.logger)
		return false
	}
	return true
}

// parseVersion 从路径最后一段解析版本号
func (h *ConfigHandler) parseVersion(w http.ResponseWriter, r *http.Request) (int64, bool) {
	seg := path.Base(r.URL.Path)
	version, err := strconv.ParseInt(seg, 10, 64)
	if err != nil || version < 1 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			fmt.Sprintf("invalid version number: %q", seg), h.logger)
		return 0, false
	}
	return version, true
}

func (h *ConfigHandler) recordStoreOp(operation string, start time.Time) {
	if h.metrics != nil {
		h.metrics.RecordStoreOp(operation, time.Since(start))
	}
}

func (h *ConfigHandler) recordRollback(start time.Time) {
	if h.metrics != nil {
		h.metrics.RecordSave("rollback", time.Since(start))
	}
}
