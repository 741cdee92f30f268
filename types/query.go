package types

import (
	"context"
	"time"
)

// HandlerKind 路由目标处理器类型
type HandlerKind string

const (
	HandlerTabular   HandlerKind = "tabular"   // 结构化数据处理器
	HandlerResearch  HandlerKind = "research"  // 文档检索处理器
	HandlerAmbiguous HandlerKind = "ambiguous" // 无法判定，需要澄清
	HandlerSystem    HandlerKind = "system"    // 系统查询（status / help）
)

// SourceKind 已加载数据源类型
type SourceKind string

const (
	SourceTabular  SourceKind = "tabular"
	SourceDocument SourceKind = "document"
)

// Query 一次入站查询。接收后不可变。
type Query struct {
	Text       string      `json:"text"`
	Hint       HandlerKind `json:"hint,omitempty"` // 显式处理器提示，覆盖所有评分
	ReceivedAt time.Time   `json:"received_at"`
}

// NewQuery 创建带时间戳的查询。
func NewQuery(text string) Query {
	return Query{Text: text, ReceivedAt: time.Now()}
}

// RoutingSignal 从查询中提取的单个命名特征及其权重贡献。
// 每次分类临时计算，仅用于决策解释。
type RoutingSignal struct {
	Name    string      `json:"name"`
	Target  HandlerKind `json:"target"`
	Weight  float64     `json:"weight"`
	Matched string      `json:"matched,omitempty"`
}

// RoutingDecision 一次查询的路由决策。产生后不再修改。
type RoutingDecision struct {
	Handler    HandlerKind     `json:"handler"`
	Confidence float64         `json:"confidence"`
	Signals    []RoutingSignal `json:"signals,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	// Candidates 在 ambiguous 决策中列出并列的候选处理器
	Candidates []HandlerKind `json:"candidates,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Passage 检索命中的文档片段及其相似度得分。
type Passage struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
}

// AnswerResult 检索问答结果。逐查询产生，不持久化。
//
// 空 Passages 是合法结果（"没有相关内容"），与失败不同：
// 失败通过 error 返回。
type AnswerResult struct {
	Answer   string    `json:"answer"`
	Passages []Passage `json:"passages,omitempty"`
	Keywords []string  `json:"keywords,omitempty"`
	// NotFound 为真表示检索成功但无片段超过相似度阈值
	NotFound bool `json:"not_found,omitempty"`
}

// TabularResult 表格处理器结果。路由器原样透传，不做解释。
type TabularResult struct {
	Text  string           `json:"text,omitempty"`
	Table []map[string]any `json:"table,omitempty"`
	Chart map[string]any   `json:"chart,omitempty"`
}

// DocumentSummary 文档摘要结果。
type DocumentSummary struct {
	DocumentID   string   `json:"document_id"`
	DocumentName string   `json:"document_name"`
	Title        string   `json:"title,omitempty"`
	Summary      string   `json:"summary"`
	Keywords     []string `json:"keywords,omitempty"`
}

// Disambiguation 要求调用方澄清的路由结果。
type Disambiguation struct {
	Message    string        `json:"message"`
	Candidates []HandlerKind `json:"candidates,omitempty"`
	// 当前已加载的数据源，帮助调用方重述
	Datasets    []string `json:"datasets,omitempty"`
	Documents   []string `json:"documents,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// SystemInfo 系统查询（help / status）的结果。
type SystemInfo struct {
	Message      string   `json:"message"`
	Capabilities []string `json:"capabilities,omitempty"`
	Datasets     []string `json:"datasets,omitempty"`
	Documents    []string `json:"documents,omitempty"`
}

// Result 路由后的标签联合结果：四种变体中恰好一个非空。
type Result struct {
	Decision       RoutingDecision `json:"decision"`
	Answer         *AnswerResult   `json:"answer,omitempty"`
	Tabular        *TabularResult  `json:"tabular,omitempty"`
	Disambiguation *Disambiguation `json:"disambiguation,omitempty"`
	System         *SystemInfo     `json:"system,omitempty"`
}

// Handler 是路由目标实现的最小能力接口。
// 路由器通过它分发查询，不关心处理器内部结构。
type Handler interface {
	// Kind 返回处理器类型标签。
	Kind() HandlerKind
	// Handle 处理查询并返回结果变体。
	Handle(ctx context.Context, q Query) (*Result, error)
}
