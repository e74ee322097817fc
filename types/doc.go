// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

/*
Package types 提供 ConfigTrail 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 store、rollback、ingest、
api 等上层模块提供统一的错误契约。所有跨包共享的错误码与结构化错误
均定义于此，以避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable 标记与底层 Cause

# 错误分类

  - INVALID_DOCUMENT     — 输入文档解析失败或顶层不是映射，丢弃并上报，不触碰存储
  - STORAGE_UNAVAILABLE  — 存储后端不可达，直接上抛，核心不做内部重试
  - VERSION_NOT_FOUND    — 回滚目标版本不存在，返回失败结果，无任何变更
  - WRITE_FAILURE        — 版本记录已持久化但配置文件落盘失败，存储与磁盘出现分歧

# 主要能力

  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
  - 常用错误构造：NewInvalidDocumentError / NewStorageUnavailableError 等
*/
package types
