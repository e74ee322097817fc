package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/configtrail/ingest"
	"github.com/BaSui01/configtrail/internal/metrics"
)

// =============================================================================
// 🔌 版本流 Handler
// =============================================================================

// WatchHandler 通过 WebSocket 推送新产生的配置版本
type WatchHandler struct {
	pipeline *ingest.Pipeline
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewWatchHandler 创建版本流处理器。collector 可为 nil。
func NewWatchHandler(pipeline *ingest.Pipeline, collector *metrics.Collector, logger *zap.Logger) *WatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchHandler{
		pipeline: pipeline,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "watch_handler")),
	}
}

// HandleWatch 处理 GET /api/v1/config/watch 请求：升级为 WebSocket
// 并推送此后产生的每个新版本，去重命中不会推送。
// @Summary 版本流
// @Description WebSocket 推送新配置版本
// @Tags 配置
// @Router /api/v1/config/watch [get]
func (h *WatchHandler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ch, cancel := h.pipeline.Subscribe()
	defer cancel()

	if h.metrics != nil {
		h.metrics.WatchClientConnected()
		defer h.metrics.WatchClientDisconnected()
	}

	h.logger.Info("version stream client connected", zap.String("remote", r.RemoteAddr))

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case rec, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "stream ended")
				return
			}

			payload, err := json.Marshal(toPayload(rec))
			if err != nil {
				h.logger.Error("failed to encode version record", zap.Error(err))
				continue
			}

			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				h.logger.Debug("version stream client gone",
					zap.String("remote", r.RemoteAddr),
					zap.Error(err))
				return
			}
		}
	}
}
