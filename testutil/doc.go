// Copyright (c) QueryDesk Authors.
// Licensed under the MIT License.

// Package testutil 提供测试共享的模拟实现与辅助函数。
// 仅供本仓库测试导入。
package testutil
