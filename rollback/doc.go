// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

// Package rollback 实现配置版本回滚。
//
// # 概述
//
// 回滚不是删除历史，而是追加历史：Coordinator 读取目标版本的配置，
// 通过 store.SaveRollback 创建一条带 rolled_back_from 来源标记的新
// 版本记录（绕过去重，即使内容与当前最新版本相同也会落库），随后用
// AtomicFileWriter 把配置物化回被监听的文件。
//
// 文件写回失败不会撤销已落库的回滚记录；此时 Rollback 同时返回记录
// 和 WRITE_FAILURE 错误，表示存储与磁盘出现分歧，需要人工或下一次
// 文件变更来收敛。
//
// 写回采用临时文件加 rename 的原子替换，文件监听方看到的要么是旧
// 内容要么是完整的新内容。写回触发的文件变更会被采集管道重新摄取，
// 但内容与刚创建的回滚记录完全一致，会被整史去重吸收，不产生多余
// 版本。
package rollback
