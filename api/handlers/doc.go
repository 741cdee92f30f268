// Copyright (c) QueryDesk Authors.
// Licensed under the MIT License.

// Package handlers 实现 HTTP 处理器：查询、文档摄入、数据源注册、
// 状态与健康检查。统一的响应包装与错误码映射见 common.go。
package handlers
