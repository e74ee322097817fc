// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

// Package server 提供 HTTP 服务器的生命周期管理。
//
// Manager 封装 net/http 服务器：非阻塞启动、错误通道、信号驱动的
// 优雅关闭。API 服务与指标服务各用一个 Manager 实例，监听地址与
// 超时均由 Config 控制。
package server
