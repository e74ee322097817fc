// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

// Package watch 监听配置文件的变化。
//
// # 概述
//
// Watcher 以固定间隔轮询一组文件，比较 mtime 和文件大小来判断变化，
// 不依赖平台特定的文件系统通知接口，在容器挂载卷和网络文件系统上
// 也能稳定工作。mtime 在部分文件系统上只有秒级精度，大小变化作为
// 同一秒内连续写入的兜底信号。
//
// 编辑器保存往往触发多次写入（truncate、write、rename），事件经过
// 防抖窗口合并，同一路径在窗口内只派发最后一个事件，避免摄取管道
// 读到写了一半的文件。
//
// 被监听文件在启动时不存在是允许的：文件出现时派发 CREATE 事件。
package watch
