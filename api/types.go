package api

import "github.com/BaSui01/querydesk/types"

// =============================================================================
// 📦 请求结构
// =============================================================================

// QueryRequest 查询请求
type QueryRequest struct {
	// Text 查询文本
	Text string `json:"text"`
	// Hint 可选的显式处理器提示（tabular / research），覆盖评分
	Hint types.HandlerKind `json:"hint,omitempty"`
}

// IngestDocumentRequest 文档摄入请求
type IngestDocumentRequest struct {
	// Name 来源名称（上传文件名），同名文档被替换
	Name string `json:"name"`
	// Text 文档全文
	Text string `json:"text"`
}

// RegisterDatasetRequest 表格数据源注册请求
type RegisterDatasetRequest struct {
	// Name 数据源名称
	Name string `json:"name"`
}

// =============================================================================
// 📦 响应结构
// =============================================================================

// IngestDocumentResponse 文档摄入响应
type IngestDocumentResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	WordCount  int    `json:"word_count"`
	// Warning 部分块向量化失败，文档以成功子集注册
	Warning bool `json:"warning,omitempty"`
}

// DocumentInfo 文档列表项
type DocumentInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	WordCount  int    `json:"word_count"`
	Warning    bool   `json:"warning,omitempty"`
}

// StatusResponse 会话状态响应
type StatusResponse struct {
	Datasets    []string          `json:"datasets"`
	Documents   []string          `json:"documents"`
	LastHandler types.HandlerKind `json:"last_handler,omitempty"`
	// IndexSize 向量索引条目数
	IndexSize int `json:"index_size"`
	// DocumentCount 已加载文档数
	DocumentCount int `json:"document_count"`
}
