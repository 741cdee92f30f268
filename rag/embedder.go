package rag

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/querydesk/internal/metrics"
	"github.com/BaSui01/querydesk/types"
)

// EmbeddingProvider 外部向量化能力接口。
// 对给定模型版本确定性；调用有延迟，实现必须遵守 ctx 取消。
type EmbeddingProvider interface {
	// Embed 将文本映射为固定长度向量。
	Embed(ctx context.Context, text string) ([]float64, error)
	// Dimension 返回向量维度。
	Dimension() int
	// Model 返回模型标识，随索引持久化用于检测模型不匹配。
	Model() string
}

// RetryConfig 向量化调用的重试与限流配置
type RetryConfig struct {
	// MaxRetries 瞬态失败最大重试次数
	MaxRetries int
	// Timeout 单次调用超时
	Timeout time.Duration
	// RatePerSecond 每秒请求数限制（0 表示不限流）
	RatePerSecond float64
}

// RetryingProvider 为底层提供者增加有界指数退避重试、单次调用超时
// 与可选限流。结构性失败（维度不匹配等）不重试。
type RetryingProvider struct {
	inner     EmbeddingProvider
	cfg       RetryConfig
	limiter   *rate.Limiter
	collector *metrics.Collector // 可选，nil 表示不采集
	logger    *zap.Logger
}

// NewRetryingProvider 包装底层提供者。collector 可为 nil。
func NewRetryingProvider(inner EmbeddingProvider, cfg RetryConfig, collector *metrics.Collector, logger *zap.Logger) *RetryingProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &RetryingProvider{
		inner:     inner,
		cfg:       cfg,
		limiter:   limiter,
		collector: collector,
		logger:    logger.With(zap.String("component", "embedder")),
	}
}

// Embed 调用底层提供者，瞬态失败时指数退避重试。
// 重试耗尽后返回 EMBEDDING_PROVIDER_FAILURE。
func (p *RetryingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	operation := func() ([]float64, error) {
		callCtx := ctx
		if p.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()
		}
		start := time.Now()
		vec, err := p.inner.Embed(callCtx, text)
		p.recordCall(err, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				// 调用方取消：不再重试
				return nil, backoff.Permanent(ctx.Err())
			}
			if isStructural(err) {
				// 结构性失败：重试不会改变结果，原样上抛
				return nil, backoff.Permanent(err)
			}
			p.logger.Warn("embedding call failed, will retry", zap.Error(err))
			return nil, err
		}
		return vec, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	vec, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(p.cfg.MaxRetries+1)),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isStructural(err) {
			return nil, err
		}
		return nil, types.NewError(types.ErrEmbeddingProvider, "embedding provider exhausted retries").
			WithCause(err).
			WithRetryable(true)
	}
	return vec, nil
}

// isStructural 判定错误是否为不可重试的结构性失败（维度不匹配、请求被拒等）。
func isStructural(err error) bool {
	var serr *types.Error
	return errors.As(err, &serr) && !serr.Retryable
}

// recordCall 上报单次底层调用的状态与耗时。
func (p *RetryingProvider) recordCall(err error, duration time.Duration) {
	if p.collector == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.collector.RecordEmbeddingCall(status, duration)
}

// Dimension 返回底层提供者的向量维度。
func (p *RetryingProvider) Dimension() int { return p.inner.Dimension() }

// Model 返回底层提供者的模型标识。
func (p *RetryingProvider) Model() string { return p.inner.Model() }
