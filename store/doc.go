// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

/*
Package store 实现版本化配置存储——系统的核心。

# 概述

store 负责版本号分配、内容去重、不可变版本记录的持久化与
latest/history/by-version 读取。三个后端实现同一 Store 契约：

  - MongoStore  — MongoDB（go.mongodb.org/mongo-driver/v2），生产默认
  - GormStore   — SQLite / Postgres（gorm.io/gorm）
  - MemoryStore — 进程内存储，测试与独立运行

# 不变量

  - 版本号从 1 开始严格递增，下一版本恒为 max(已有版本)+1
  - 记录一经持久化永不修改、永不删除，集合只增不减
  - Save 对整个历史去重：新文档与任一既有记录内容相等时不产生新版本
  - 回滚记录的 rolled_back_from 在创建时刻必须指向已存在的版本

# 去重设计

内容相等性通过规范指纹（归一化文档规范 JSON 的 SHA-256）判定。
对嵌入文档直接做相等过滤在 BSON 中是字段序敏感的，与"各映射层
键序无关的深相等"语义不符；每条记录持久化指纹后，所有后端的
去重查询退化为一次等值过滤。

# 并发模型

文件变更摄入与查询/回滚 API 是汇聚到同一存储的两个独立触发源。
每个实现以实例级互斥锁串行化"去重检查 → 版本分配 → 插入"序列，
去掉 check-then-act 竞争；version 唯一索引兜底多进程部署。
任何操作都不会无限阻塞，等待上界由后端延迟决定。
*/
package store
