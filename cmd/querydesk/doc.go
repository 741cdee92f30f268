// Copyright (c) QueryDesk Authors.
// Licensed under the MIT License.

/*
Package main 提供 QueryDesk 服务端程序入口。

# 概述

cmd/querydesk 是 QueryDesk 的可执行入口，提供查询路由与文档检索的
HTTP API 服务、健康检查和版本查询等子命令。程序支持 YAML 配置文件
加载、结构化日志（zap）、Prometheus 指标采集以及可选的 SQLite 持久化。

# 核心类型

  - Server        — 主服务器，组装检索管线并管理 HTTP、Metrics 双端口
  - Middleware    — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、RequestLogger、MetricsMiddleware
  - 管线组装：分块器 → 向量化提供者（重试/限流包装）→ 向量索引 →
    文档库 → 检索引擎 → 路由器
  - 持久化恢复：启动时从 SQLite 重建文档库、索引与会话上下文
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus），
    未配置独立端口时挂载到主端口
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
