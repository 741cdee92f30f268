package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

// HashEmbedder 确定性的词袋哈希向量化器。
// 相同文本总是产生相同向量；共享词汇的文本向量方向相近，
// 足以让余弦相似度测试表现出语义检索的排序行为。
type HashEmbedder struct {
	Dim     int
	ModelID string
	// Calls 累计调用次数
	Calls atomic.Int64
}

// NewHashEmbedder 创建 64 维词袋哈希向量化器。
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dim: 64, ModelID: "hash-bow-64"}
}

// Embed 将文本的小写词元哈希入固定桶并计数。
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	h.Calls.Add(1)
	vec := make([]float64, h.Dim)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" {
			continue
		}
		hash := fnv.New32a()
		_, _ = hash.Write([]byte(word))
		vec[int(hash.Sum32())%h.Dim]++
	}
	return vec, nil
}

// Dimension 返回向量维度。
func (h *HashEmbedder) Dimension() int { return h.Dim }

// Model 返回模型标识。
func (h *HashEmbedder) Model() string { return h.ModelID }

// ErrEmbedUnavailable 模拟提供者的瞬态失败。
var ErrEmbedUnavailable = errors.New("embedding service unavailable")

// FlakyEmbedder 包装底层向量化器，按匹配函数注入失败。
type FlakyEmbedder struct {
	Inner *HashEmbedder
	// FailFn 返回 true 时该文本的调用失败
	FailFn func(text string) bool
	// FailFirst 前 N 次调用失败（与 FailFn 互斥使用）
	FailFirst int

	mu    sync.Mutex
	calls int
}

// Embed 按配置注入失败，否则委托底层。
func (f *FlakyEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.FailFirst > 0 && n <= f.FailFirst {
		return nil, ErrEmbedUnavailable
	}
	if f.FailFn != nil && f.FailFn(text) {
		return nil, ErrEmbedUnavailable
	}
	return f.Inner.Embed(ctx, text)
}

// Dimension 返回底层维度。
func (f *FlakyEmbedder) Dimension() int { return f.Inner.Dimension() }

// Model 返回底层模型标识。
func (f *FlakyEmbedder) Model() string { return f.Inner.Model() }

// WrongDimEmbedder 返回与声明维度不符的向量，用于维度校验测试。
type WrongDimEmbedder struct {
	Inner *HashEmbedder
	// ActualDim 实际返回的向量维度
	ActualDim int
}

// Embed 返回 ActualDim 维向量。
func (w *WrongDimEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := w.Inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	out := make([]float64, w.ActualDim)
	copy(out, vec)
	return out, nil
}

// Dimension 返回声明维度（与实际不符）。
func (w *WrongDimEmbedder) Dimension() int { return w.Inner.Dimension() }

// Model 返回底层模型标识。
func (w *WrongDimEmbedder) Model() string { return w.Inner.Model() }
