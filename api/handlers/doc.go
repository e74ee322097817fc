// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

/*
包 handlers 实现 HTTP API 处理器。

# 概述

ConfigHandler 暴露配置版本的查询与回滚接口：最新配置、版本历史
（只含元信息）、完整历史（含配置内容）、按版本号查询、回滚到指定
版本。WatchHandler 把摄取管道的新版本广播升级为 WebSocket 推送。
HealthHandler 提供 /health、/healthz、/ready、/version 四个运维
端点，就绪检查聚合注册的存储与缓存探活。

# 响应约定

所有端点返回统一的 Response 信封：success 标志、data 载荷、error
信息与时间戳。存储层错误通过 types.Error 的错误码映射为 HTTP 状态
码；回滚时记录已落库但文件写回失败的情况以 500 返回，并在消息中
说明已创建的版本号。

空存储上的最新配置查询返回空对象而不是 404：尚无版本不是错误。
*/
package handlers
