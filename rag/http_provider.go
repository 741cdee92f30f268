package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/types"
)

// HTTPProviderConfig 远程向量化服务配置（OpenAI 兼容 /embeddings 接口）。
type HTTPProviderConfig struct {
	// BaseURL 服务地址，如 https://api.openai.com/v1
	BaseURL string
	// APIKey 鉴权密钥，空则不发送 Authorization 头
	APIKey string
	// Model 模型标识
	Model string
	// Dimension 期望的向量维度
	Dimension int
	// Timeout 单次 HTTP 调用超时
	Timeout time.Duration
}

// HTTPProvider 通过 OpenAI 兼容接口调用远程向量化服务。
// 本身不做重试，由 RetryingProvider 包装。
type HTTPProvider struct {
	cfg    HTTPProviderConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPProvider 创建远程向量化提供者。
func NewHTTPProvider(cfg HTTPProviderConfig, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With(zap.String("component", "http_embedder")),
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingErrorResp struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed 将文本提交到远程服务并返回向量。
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	payload, err := json.Marshal(embeddingRequest{
		Model: p.cfg.Model,
		Input: []string{text},
	})
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingProvider, "marshal embedding request").WithCause(err)
	}

	endpoint := fmt.Sprintf("%s/embeddings", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingProvider, "build embedding request").WithCause(err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.NewError(types.ErrEmbeddingProvider, "embedding request failed").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readErrMsg(resp.Body)
		p.logger.Warn("embedding service returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, types.NewError(types.ErrEmbeddingProvider,
			fmt.Sprintf("embedding service: status=%d msg=%s", resp.StatusCode, msg)).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewError(types.ErrEmbeddingProvider, "decode embedding response").
			WithCause(err).
			WithRetryable(true)
	}
	if len(out.Data) == 0 {
		return nil, types.NewError(types.ErrEmbeddingProvider, "embedding response contains no data").
			WithRetryable(true)
	}

	vec := out.Data[0].Embedding
	if p.cfg.Dimension > 0 && len(vec) != p.cfg.Dimension {
		// 结构性失败：重试不会改变服务端返回的维度
		return nil, types.NewError(types.ErrDimensionMismatch,
			fmt.Sprintf("embedding service returned dimension %d, expected %d", len(vec), p.cfg.Dimension))
	}
	return vec, nil
}

// Dimension 返回配置的向量维度。
func (p *HTTPProvider) Dimension() int { return p.cfg.Dimension }

// Model 返回配置的模型标识。
func (p *HTTPProvider) Model() string { return p.cfg.Model }

func (p *HTTPProvider) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
}

// readErrMsg 尽力从错误响应体中提取可读信息。
func readErrMsg(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "<empty>"
	}
	var errResp embeddingErrorResp
	if json.Unmarshal(data, &errResp) == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}
