// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的最新版本记录缓存。

# 概述

最新配置查询是典型的读多写少负载：配置文件几分钟才变一次，而
客户端可能每秒轮询。LatestCache 在 Redis 中缓存单条最新版本记录，
新版本产生时由摄取侧写入或失效，读取侧未命中或 Redis 故障时回退
到后端存储，缓存故障从不影响正确性。

# 核心类型

  - LatestCache：持有 go-redis 客户端，提供 GetLatest/SetLatest/
    Invalidate 三个操作与 Ping/Close 生命周期方法。
  - Config：地址、库号、TTL、连接池大小等连接参数；密码不参与
    序列化。

# 错误语义

GetLatest 未命中返回 ErrCacheMiss 哨兵错误，用 IsCacheMiss 判断。
损坏的缓存条目按未命中处理，不向调用方暴露反序列化失败。
*/
package cache
