package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/api/handlers"
	"github.com/BaSui01/querydesk/config"
	"github.com/BaSui01/querydesk/internal/metrics"
	"github.com/BaSui01/querydesk/internal/server"
	"github.com/BaSui01/querydesk/rag"
	"github.com/BaSui01/querydesk/router"
	"github.com/BaSui01/querydesk/session"
	"github.com/BaSui01/querydesk/types"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 QueryDesk 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 检索管线
	sess         *session.Context
	index        *rag.Index
	store        *rag.DocumentStore
	engine       *rag.Engine
	orchestrator *router.Orchestrator

	// Handlers
	queryHandler  *handlers.QueryHandler
	docHandler    *handlers.DocumentHandler
	adminHandler  *handlers.AdminHandler
	healthHandler *handlers.HealthHandler

	// 指标收集器
	metricsCollector *metrics.Collector
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("querydesk", s.logger)

	// 2. 组装检索管线
	if err := s.initPipeline(); err != nil {
		return fmt.Errorf("failed to init pipeline: %w", err)
	}

	// 3. 初始化 Handlers
	s.initHandlers()

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动独立 Metrics 服务器（配置了独立端口时）
	if s.cfg.Server.MetricsPort != 0 {
		if err := s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("persistence_enabled", s.cfg.Persistence.Enabled),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initPipeline 组装 分块 → 向量化 → 索引 → 检索 管线并接入路由器
func (s *Server) initPipeline() error {
	tokenizer := s.initTokenizer()
	chunker := rag.NewChunker(
		s.cfg.Chunking.MaxSize,
		s.cfg.Chunking.Overlap,
		s.cfg.Chunking.MinSize,
		tokenizer,
		s.logger,
	)

	if s.cfg.Embedding.BaseURL == "" {
		s.logger.Warn("embedding.base_url not configured, document ingest and retrieval will fail until set")
	}
	provider := rag.NewRetryingProvider(
		rag.NewHTTPProvider(rag.HTTPProviderConfig{
			BaseURL:   s.cfg.Embedding.BaseURL,
			APIKey:    s.cfg.Embedding.APIKey,
			Model:     s.cfg.Embedding.Model,
			Dimension: s.cfg.Embedding.Dimension,
			Timeout:   s.cfg.Embedding.Timeout,
		}, s.logger),
		rag.RetryConfig{
			MaxRetries:    s.cfg.Embedding.MaxRetries,
			Timeout:       s.cfg.Embedding.Timeout,
			RatePerSecond: s.cfg.Embedding.RatePerSecond,
		},
		s.metricsCollector,
		s.logger,
	)

	s.index = rag.NewIndex(s.cfg.Embedding.Dimension, s.cfg.Retrieval.SimilarityThreshold, s.logger)
	s.store = rag.NewDocumentStore(s.logger)
	s.sess = session.New(s.logger)

	var persist *rag.Persistence
	if s.cfg.Persistence.Enabled {
		p, err := rag.OpenPersistence(s.cfg.Persistence.Path, s.cfg.Embedding.Model, s.logger)
		if err != nil {
			return fmt.Errorf("open persistence %s: %w", s.cfg.Persistence.Path, err)
		}
		persist = p
	}

	s.engine = rag.NewEngine(
		chunker, provider, s.index, s.store, s.sess, persist,
		rag.EngineConfig{
			TopK:             s.cfg.Retrieval.TopK,
			SummarySentences: s.cfg.Retrieval.SummarySentences,
			KeywordCount:     s.cfg.Retrieval.KeywordCount,
			EmbedConcurrency: s.cfg.Embedding.Concurrency,
		},
		s.logger,
	)

	if persist != nil {
		if err := s.engine.Restore(context.Background()); err != nil {
			s.logger.Warn("failed to restore persisted documents, starting empty", zap.Error(err))
		} else {
			s.metricsCollector.SetIndexStats(s.index.Size(), s.store.Count())
			s.logger.Info("persisted documents restored",
				zap.Int("documents", s.store.Count()),
				zap.Int("index_entries", s.index.Size()))
		}
	}

	// 检索引擎是唯一内置处理器；表格处理器属于外部系统，
	// 未接入时对应查询返回 HANDLER_UNAVAILABLE。
	r := router.New(s.cfg.Router, s.logger)
	s.orchestrator = router.NewOrchestrator(r, s.sess, []types.Handler{s.engine}, s.logger)

	return nil
}

// initTokenizer 优先使用 tiktoken 词元计数，模型不受支持时回退估算器。
func (s *Server) initTokenizer() rag.Tokenizer {
	tk, err := rag.NewTiktokenTokenizer(s.cfg.Embedding.Model)
	if err != nil {
		s.logger.Info("tiktoken encoding unavailable for model, using estimator",
			zap.String("model", s.cfg.Embedding.Model))
		return rag.EstimatorTokenizer{}
	}
	return tk
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.queryHandler = handlers.NewQueryHandler(s.orchestrator, s.metricsCollector, s.logger)
	s.docHandler = handlers.NewDocumentHandler(s.engine, s.store, s.metricsCollector, s.logger)
	s.adminHandler = handlers.NewAdminHandler(s.sess, s.index, s.store, s.orchestrator, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.logger)

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)

	// ========================================
	// API 路由
	// ========================================
	mux.HandleFunc("POST /v1/query", s.queryHandler.HandleQuery)
	mux.HandleFunc("POST /v1/documents", s.docHandler.HandleIngest)
	mux.HandleFunc("GET /v1/documents", s.docHandler.HandleList)
	mux.HandleFunc("DELETE /v1/documents/{id}", s.docHandler.HandleDelete)
	mux.HandleFunc("GET /v1/documents/{name}/summary", s.docHandler.HandleSummary)
	mux.HandleFunc("POST /v1/datasets", s.adminHandler.HandleRegisterDataset)
	mux.HandleFunc("GET /v1/status", s.adminHandler.HandleStatus)
	mux.HandleFunc("POST /v1/clear", s.adminHandler.HandleClear)

	// 未配置独立 Metrics 端口时挂载到主端口
	if s.cfg.Server.MetricsPort == 0 {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// ========================================
	// 构建中间件链
	// ========================================
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 在独立端口启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
