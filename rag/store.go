package rag

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Document 一份已摄入的文档。上传时创建，此后不可变——
// 只有派生产物缓存（摘要、关键词）延迟计算后写入。
type Document struct {
	// ID 文档唯一标识
	ID string `json:"id"`
	// Name 来源名称（上传文件名）
	Name string `json:"name"`
	// Seq ingest 序号，store 内单调递增
	Seq uint64 `json:"seq"`
	// Title 首个有实质内容的行
	Title string `json:"title,omitempty"`
	// Text 清洗后的全文
	Text string `json:"-"`
	// Chunks 成功向量化并入索引的块（保留原始序号）
	Chunks []Chunk `json:"-"`
	// WordCount 全文词数
	WordCount int `json:"word_count"`
	// Warning 部分块向量化失败，文档以成功子集注册
	Warning bool `json:"warning,omitempty"`
	// CreatedAt ingest 时间
	CreatedAt time.Time `json:"created_at"`

	// 派生产物缓存：首次计算后固定
	mu           sync.Mutex
	summary      string
	summaryDone  bool
	keywords     []string
	keywordsDone bool
}

// ChunkCount 返回注册的块数。
func (d *Document) ChunkCount() int { return len(d.Chunks) }

// Summary 返回缓存摘要，首次调用时用 gen 计算。
func (d *Document) Summary(gen func(string) string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.summaryDone {
		d.summary = gen(d.Text)
		d.summaryDone = true
	}
	return d.summary
}

// Keywords 返回缓存关键词，首次调用时用 gen 计算。
func (d *Document) Keywords(gen func(string) []string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.keywordsDone {
		d.keywords = gen(d.Text)
		d.keywordsDone = true
	}
	return d.keywords
}

// extractTitle 取首个长度超过 10 的行作为标题。
func extractTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) > 10 {
			if len([]rune(line)) > 100 {
				return string([]rune(line)[:100])
			}
			return line
		}
	}
	return ""
}

// DocumentStore 按 ID 与名称存取文档。
type DocumentStore struct {
	mu     sync.RWMutex
	byID   map[string]*Document
	byName map[string]*Document
	seq    uint64
	logger *zap.Logger
}

// NewDocumentStore 创建空存储。
func NewDocumentStore(logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{
		byID:   make(map[string]*Document),
		byName: make(map[string]*Document),
		logger: logger.With(zap.String("component", "document_store")),
	}
}

// NewDocument 构建带新 ID 与序号的文档，尚未注册。
func (s *DocumentStore) NewDocument(name, text string, chunks []Chunk, warning bool) *Document {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	return &Document{
		ID:        uuid.NewString(),
		Name:      name,
		Seq:       seq,
		Title:     extractTitle(text),
		Text:      text,
		Chunks:    chunks,
		WordCount: len(strings.Fields(text)),
		Warning:   warning,
		CreatedAt: time.Now(),
	}
}

// Register 注册文档。同名文档被替换，返回被替换文档的 ID（供索引清理）。
func (s *DocumentStore) Register(doc *Document) (replacedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byName[doc.Name]; ok {
		replacedID = prev.ID
		delete(s.byID, prev.ID)
	}
	s.byID[doc.ID] = doc
	s.byName[doc.Name] = doc

	s.logger.Info("document registered",
		zap.String("id", doc.ID),
		zap.String("name", doc.Name),
		zap.Int("chunks", doc.ChunkCount()),
		zap.Bool("warning", doc.Warning))
	return replacedID
}

// Get 按 ID 取文档。
func (s *DocumentStore) Get(id string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.byID[id]
	return doc, ok
}

// GetByName 按名称取文档。
func (s *DocumentStore) GetByName(name string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.byName[name]
	return doc, ok
}

// Remove 按 ID 删除文档。重复删除是空操作。
func (s *DocumentStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	delete(s.byName, doc.Name)

	s.logger.Info("document removed", zap.String("id", id), zap.String("name", doc.Name))
	return true
}

// List 返回全部文档，按 ingest 序号排序。
func (s *DocumentStore) List() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*Document, 0, len(s.byID))
	for _, doc := range s.byID {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	return docs
}

// EnsureSeq 将内部序号计数器抬升到至少 atLeast。
// 从持久化恢复文档后调用，避免新文档序号回退。
func (s *DocumentStore) EnsureSeq(atLeast uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq < atLeast {
		s.seq = atLeast
	}
}

// Count 返回文档数。
func (s *DocumentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// TotalChunks 返回全部文档的块数之和。
func (s *DocumentStore) TotalChunks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, doc := range s.byID {
		total += doc.ChunkCount()
	}
	return total
}

// Clear 清空全部文档。
func (s *DocumentStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Document)
	s.byName = make(map[string]*Document)
	s.logger.Info("document store cleared")
}
