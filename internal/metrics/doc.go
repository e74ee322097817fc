// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

// Package metrics 提供基于 Prometheus 的内部指标收集。
//
// Collector 覆盖四类指标：HTTP 请求量与时延、文件事件摄取量与失败
// 原因、版本保存结果（created / deduplicated / rollback）与存储操作
// 时延、以及缓存命中率和 WebSocket 客户端数。指标通过 promauto 注册
// 到全局 registry，由独立的 metrics 端口上的 /metrics 暴露。
package metrics
