// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

// Package ingest 把配置文件的变更转化为版本记录。
//
// # 概述
//
// Pipeline 订阅文件监听事件，对目标文件的 CREATE 和 MODIFY 事件执行
// 读取、YAML 解析、规范化、入库四步。路径按绝对路径精确匹配，其他
// 文件的事件被丢弃。
//
// 解析失败的文件（语法错误、顶层不是映射）只记日志和指标，不会让
// 服务崩溃，下一次合法保存会正常摄取。入库走整史去重：内容与任何
// 历史版本相同时复用旧版本号，不产生新记录。
//
// 只有真正创建了新版本才广播给订阅者；WebSocket 版本流即建立在这个
// 订阅机制上。慢消费者丢事件而不阻塞摄取路径。
package ingest
