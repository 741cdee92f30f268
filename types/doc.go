// Copyright (c) QueryDesk Authors.
// Licensed under the MIT License.

/*
Package types 提供 QueryDesk 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 router、rag、session、
api 等上层模块提供统一的类型契约。所有跨包共享的结构体、枚举和错误码
均定义于此，以避免循环依赖。

# 核心类型

  - Query / RoutingSignal / RoutingDecision — 查询与路由决策
  - Handler / HandlerKind — 处理器能力接口与标签联合结果类型
  - AnswerResult / Passage — 检索问答结果
  - TabularResult — 表格处理器结果（外部协作者产出，原样透传）
  - SourceKind — 已加载数据源类型（tabular / document）
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 主要能力

  - Context 传播：WithRequestID / RequestID
  - 错误工具链：NewError / WithCause / IsRetryable / GetErrorCode
*/
package types
