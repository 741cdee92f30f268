// =============================================================================
// 📦 QueryDesk 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("QUERYDESK").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 QueryDesk 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server"`

	// Router 查询路由配置
	Router RouterConfig `yaml:"router"`

	// Chunking 文档分块配置
	Chunking ChunkingConfig `yaml:"chunking"`

	// Retrieval 检索配置
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Embedding 向量化提供者配置
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Persistence 可选持久化配置
	Persistence PersistenceConfig `yaml:"persistence"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port"`
	// Metrics 端口（0 表示与 HTTP 共用）
	MetricsPort int `yaml:"metrics_port"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// KeywordSet 一组领域关键词及其命中权重
type KeywordSet struct {
	// 分组名称（用于决策解释）
	Name string `yaml:"name"`
	// 关键词列表（小写）
	Keywords []string `yaml:"keywords"`
	// 单词命中权重
	Weight float64 `yaml:"weight"`
}

// RouterConfig 查询路由配置
type RouterConfig struct {
	// 派发阈值：最高分低于该值时返回 ambiguous
	DispatchThreshold float64 `yaml:"dispatch_threshold"`
	// 歧义边际：两边得分差小于该值时不猜测
	AmbiguityMargin float64 `yaml:"ambiguity_margin"`
	// 重复命中衰减因子（第 n 次命中权重乘以 decay^(n-1)）
	RepeatDecay float64 `yaml:"repeat_decay"`
	// 上下文偏置：仅加载单一类型数据源时加给对应处理器
	ContextBias float64 `yaml:"context_bias"`
	// 近因偏置：仅在歧义边际内加给上次使用的处理器
	RecencyBias float64 `yaml:"recency_bias"`
	// 表格处理器关键词组
	TabularKeywords []KeywordSet `yaml:"tabular_keywords"`
	// 文档检索处理器关键词组
	ResearchKeywords []KeywordSet `yaml:"research_keywords"`
}

// ChunkingConfig 分块配置
type ChunkingConfig struct {
	// 最大块大小（字符）
	MaxSize int `yaml:"max_size"`
	// 相邻块重叠（字符）
	Overlap int `yaml:"overlap"`
	// 最小块大小，低于此值的尾块并入前块
	MinSize int `yaml:"min_size"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	// Top-K 返回片段数
	TopK int `yaml:"top_k"`
	// 相似度阈值，低于该值的片段被排除
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// 摘要句子数
	SummarySentences int `yaml:"summary_sentences"`
	// 关键词提取数
	KeywordCount int `yaml:"keyword_count"`
}

// EmbeddingConfig 向量化提供者配置
type EmbeddingConfig struct {
	// BaseURL 向量化服务地址（OpenAI 兼容 /embeddings 接口）
	BaseURL string `yaml:"base_url"`
	// APIKey 鉴权密钥（通常来自环境变量）
	APIKey string `yaml:"api_key"`
	// 模型标识（随索引持久化，用于检测模型不匹配）
	Model string `yaml:"model"`
	// Dimension 向量维度
	Dimension int `yaml:"dimension"`
	// 单次调用超时
	Timeout time.Duration `yaml:"timeout"`
	// 最大重试次数（瞬态失败）
	MaxRetries int `yaml:"max_retries"`
	// 每秒请求数限制（0 表示不限流）
	RatePerSecond float64 `yaml:"rate_per_second"`
	// ingest 时并发向量化的块数上限
	Concurrency int `yaml:"concurrency"`
}

// PersistenceConfig 可选持久化配置
type PersistenceConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled"`
	// SQLite 数据库路径
	Path string `yaml:"path"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 级别: debug, info, warn, error
	Level string `yaml:"level"`
	// 开发模式（console 编码）
	Development bool `yaml:"development"`
}

// Default 返回带生产级默认值的配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     0,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Router: RouterConfig{
			DispatchThreshold: 0.3,
			AmbiguityMargin:   0.1,
			RepeatDecay:       0.5,
			ContextBias:       0.2,
			RecencyBias:       0.05,
			TabularKeywords: []KeywordSet{
				{
					Name: "aggregation",
					Keywords: []string{
						"total", "sum", "average", "mean", "count", "maximum",
						"minimum", "top", "aggregate", "group", "filter", "sort",
					},
					Weight: 0.15,
				},
				{
					Name: "dataset",
					Keywords: []string{
						"csv", "excel", "spreadsheet", "table", "column", "row",
						"sales", "revenue", "profit", "expense", "trend",
					},
					Weight: 0.15,
				},
				{
					Name: "visualization",
					Keywords: []string{
						"plot", "chart", "graph", "visualize", "bar", "line",
						"pie", "scatter", "histogram",
					},
					Weight: 0.15,
				},
			},
			ResearchKeywords: []KeywordSet{
				{
					Name: "document",
					Keywords: []string{
						"paper", "document", "pdf", "research", "study",
						"article", "publication", "journal", "abstract",
					},
					Weight: 0.15,
				},
				{
					Name: "analysis",
					Keywords: []string{
						"summarize", "summary", "extract", "keyword", "topic",
						"theme", "methodology", "conclusion", "finding",
					},
					Weight: 0.15,
				},
				{
					Name: "search",
					Keywords: []string{
						"find", "search", "locate", "identify", "explain",
						"describe",
					},
					Weight: 0.1,
				},
			},
		},
		Chunking: ChunkingConfig{
			MaxSize: 500,
			Overlap: 50,
			MinSize: 20,
		},
		Retrieval: RetrievalConfig{
			TopK:                5,
			SimilarityThreshold: 0.25,
			SummarySentences:    3,
			KeywordCount:        10,
		},
		Embedding: EmbeddingConfig{
			BaseURL:       "",
			Model:         "all-MiniLM-L6-v2",
			Dimension:     384,
			Timeout:       15 * time.Second,
			MaxRetries:    3,
			RatePerSecond: 0,
			Concurrency:   4,
		},
		Persistence: PersistenceConfig{
			Enabled: false,
			Path:    "querydesk.db",
		},
		Log: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}
	if c.Router.DispatchThreshold <= 0 {
		return fmt.Errorf("router.dispatch_threshold must be positive")
	}
	if c.Router.AmbiguityMargin < 0 {
		return fmt.Errorf("router.ambiguity_margin must be non-negative")
	}
	if c.Router.RepeatDecay <= 0 || c.Router.RepeatDecay > 1 {
		return fmt.Errorf("router.repeat_decay must be in (0, 1]")
	}
	if c.Chunking.MaxSize <= 0 {
		return fmt.Errorf("chunking.max_size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxSize {
		return fmt.Errorf("chunking.overlap must be in [0, max_size): %d", c.Chunking.Overlap)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be in [0, 1]")
	}
	if c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("embedding.max_retries must be non-negative")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	if c.Embedding.Concurrency <= 0 {
		return fmt.Errorf("embedding.concurrency must be positive")
	}
	if c.Persistence.Enabled && c.Persistence.Path == "" {
		return fmt.Errorf("persistence.path required when persistence enabled")
	}
	return nil
}

// =============================================================================
// 🎯 加载器
// =============================================================================

// Loader 配置加载器
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader 创建加载器
func NewLoader() *Loader {
	return &Loader{envPrefix: "QUERYDESK"}
}

// WithConfigPath 设置 YAML 配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load 按 默认值 → YAML → 环境变量 顺序加载并校验配置
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", l.configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", l.configPath, err)
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv 应用环境变量覆盖
func (l *Loader) applyEnv(cfg *Config) {
	l.envInt("SERVER_HTTP_PORT", &cfg.Server.HTTPPort)
	l.envInt("SERVER_METRICS_PORT", &cfg.Server.MetricsPort)
	l.envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	l.envFloat("ROUTER_DISPATCH_THRESHOLD", &cfg.Router.DispatchThreshold)
	l.envFloat("ROUTER_AMBIGUITY_MARGIN", &cfg.Router.AmbiguityMargin)
	l.envInt("CHUNKING_MAX_SIZE", &cfg.Chunking.MaxSize)
	l.envInt("CHUNKING_OVERLAP", &cfg.Chunking.Overlap)
	l.envInt("RETRIEVAL_TOP_K", &cfg.Retrieval.TopK)
	l.envFloat("RETRIEVAL_SIMILARITY_THRESHOLD", &cfg.Retrieval.SimilarityThreshold)
	l.envString("EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	l.envString("EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	l.envString("EMBEDDING_MODEL", &cfg.Embedding.Model)
	l.envInt("EMBEDDING_DIMENSION", &cfg.Embedding.Dimension)
	l.envInt("EMBEDDING_MAX_RETRIES", &cfg.Embedding.MaxRetries)
	l.envBool("PERSISTENCE_ENABLED", &cfg.Persistence.Enabled)
	l.envString("PERSISTENCE_PATH", &cfg.Persistence.Path)
	l.envString("LOG_LEVEL", &cfg.Log.Level)
}

func (l *Loader) envString(key string, dst *string) {
	if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
		*dst = v
	}
}

func (l *Loader) envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (l *Loader) envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func (l *Loader) envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (l *Loader) envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
