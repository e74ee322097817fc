// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

/*
包 config 提供服务自身的配置加载。

# 概述

注意区分两类"配置"：本包加载的是 ConfigTrail 服务自身的运行配置
（监听端口、存储驱动、被监听文件的路径等），而不是被版本化追踪的
那个配置文件——后者由 document 和 ingest 包处理。

Loader 采用 Builder 模式，优先级为默认值 → YAML 文件 → 环境变量。
环境变量按结构体 env tag 逐级拼接，前缀默认 CONFIGTRAIL，例如
CONFIGTRAIL_SERVER_HTTP_PORT、CONFIGTRAIL_STORE_DRIVER。

# 凭据

数据库连接串、Redis 密码和 API 密钥走独立的 secrets 文件（LoadSecrets），
不混入主配置。凭据值被当作不透明数据：不校验、不记日志、错误消息
里只出现文件路径。容器部署可用 CONFIGTRAIL_MONGO_URI 等环境变量
直接覆盖。
*/
package config
