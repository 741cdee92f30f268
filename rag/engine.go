package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/querydesk/session"
	"github.com/BaSui01/querydesk/types"
)

// EngineConfig 检索引擎配置
type EngineConfig struct {
	// TopK 检索返回片段数
	TopK int
	// SummarySentences 摘要句子数
	SummarySentences int
	// KeywordCount 关键词提取数
	KeywordCount int
	// EmbedConcurrency ingest 时并发向量化的块数上限
	EmbedConcurrency int
}

// Engine 检索引擎：编排 分块 → 向量化 → 索引 的 ingest 流程，
// 以及 向量化 → 搜索 → 片段组装 → 答案合成 的查询流程。
// 实现 types.Handler，作为 research 处理器接入路由器。
type Engine struct {
	chunker  *Chunker
	provider EmbeddingProvider
	index    *Index
	store    *DocumentStore
	session  *session.Context
	persist  *Persistence // 可选，nil 表示不持久化
	cfg      EngineConfig
	logger   *zap.Logger
}

// NewEngine 创建检索引擎。persist 可为 nil。
func NewEngine(
	chunker *Chunker,
	provider EmbeddingProvider,
	index *Index,
	store *DocumentStore,
	sess *session.Context,
	persist *Persistence,
	cfg EngineConfig,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.SummarySentences <= 0 {
		cfg.SummarySentences = 3
	}
	if cfg.KeywordCount <= 0 {
		cfg.KeywordCount = 10
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	return &Engine{
		chunker:  chunker,
		provider: provider,
		index:    index,
		store:    store,
		session:  sess,
		persist:  persist,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "retrieval_engine")),
	}
}

// Kind 实现 types.Handler。
func (e *Engine) Kind() types.HandlerKind { return types.HandlerResearch }

// Handle 实现 types.Handler：将查询交给 Answer 并包装为结果变体。
func (e *Engine) Handle(ctx context.Context, q types.Query) (*types.Result, error) {
	answer, err := e.Answer(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	return &types.Result{Answer: answer}, nil
}

// Ingest 摄入文档：分块 → 并发向量化 → 提交
// （索引发布 → 同名旧版本撤除 → 文档注册 → 会话更新）。
//
// 部分块向量化失败时，文档仍以成功子集注册并带警告标记；
// 全部失败则中止，不注册任何状态。空白文本拒绝。
func (e *Engine) Ingest(ctx context.Context, name, text string) (*Document, error) {
	cleaned := CleanText(text)
	if strings.TrimSpace(cleaned) == "" {
		return nil, types.NewError(types.ErrInvalidDocument,
			fmt.Sprintf("document %q has no extractable text", name))
	}

	chunks := e.chunker.Chunk(cleaned)
	if len(chunks) == 0 {
		return nil, types.NewError(types.ErrInvalidDocument,
			fmt.Sprintf("document %q produced no chunks", name))
	}

	// 提交点之前的向量化不持有任何索引锁
	vectors := make([][]float64, len(chunks))
	embedErrs := make([]error, len(chunks))
	var g errgroup.Group
	g.SetLimit(e.cfg.EmbedConcurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, err := e.provider.Embed(ctx, chunks[i].Text)
			if err != nil {
				embedErrs[i] = err
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		// 取消不留下部分状态：尚未提交任何内容
		return nil, err
	}

	var embedded []Chunk
	failed := 0
	for i, chunk := range chunks {
		if embedErrs[i] != nil {
			failed++
			continue
		}
		embedded = append(embedded, chunk)
	}
	if len(embedded) == 0 {
		return nil, types.NewError(types.ErrEmbeddingProvider,
			fmt.Sprintf("embedding failed for all %d chunks of %q", len(chunks), name)).
			WithCause(firstError(embedErrs)).
			WithRetryable(true)
	}
	warning := failed > 0
	if warning {
		e.logger.Warn("partial embedding failure",
			zap.String("document", name),
			zap.Int("failed", failed),
			zap.Int("embedded", len(embedded)))
	}

	doc := e.store.NewDocument(name, cleaned, embedded, warning)

	entries := make([]Entry, 0, len(embedded))
	for i, chunk := range chunks {
		if embedErrs[i] != nil {
			continue
		}
		entries = append(entries, Entry{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			DocumentSeq:  doc.Seq,
			ChunkIndex:   chunk.Index,
			Text:         chunk.Text,
			Vector:       vectors[i],
		})
	}

	// 提交：先发布新条目进索引（维度校验在此拒绝，旧状态原封不动），
	// 再撤下同名旧版本的条目，最后注册文档与会话。注册晚于索引发布，
	// 保证并发读取者在文档库看到的文档总能在索引中搜到。
	if err := e.index.Insert(entries); err != nil {
		if serr, ok := err.(*types.Error); ok {
			return nil, serr.WithDocumentID(doc.ID)
		}
		return nil, err
	}
	if old, ok := e.store.GetByName(doc.Name); ok {
		e.index.Remove(old.ID)
	}
	e.store.Register(doc)
	e.session.Register(doc.Name, types.SourceDocument)

	if e.persist != nil {
		if err := e.persist.SaveDocument(doc, entries); err != nil {
			e.logger.Warn("persist document failed", zap.String("document", doc.ID), zap.Error(err))
		}
	}

	e.logger.Info("document ingested",
		zap.String("id", doc.ID),
		zap.String("name", doc.Name),
		zap.Int("chunks", doc.ChunkCount()),
		zap.Bool("warning", doc.Warning))
	return doc, nil
}

// Answer 回答查询：向量化 → 搜索 → 抽取式合成。
// 无片段超过阈值时返回 NotFound 结果，从不捏造内容。
// 显式要求摘要时走全文摘要路径，读取完整文档而非 top-k 片段。
func (e *Engine) Answer(ctx context.Context, queryText string) (*types.AnswerResult, error) {
	if e.store.Count() == 0 {
		return &types.AnswerResult{
			NotFound: true,
			Answer:   "No documents are loaded. Upload a document before asking research questions.",
		}, nil
	}

	if isSummaryQuery(queryText) {
		return e.summaryAnswer(queryText)
	}

	vec, err := e.provider.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	hits, err := e.index.Search(vec, e.cfg.TopK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &types.AnswerResult{
			NotFound: true,
			Answer:   "Nothing relevant was found in the loaded documents.",
		}, nil
	}

	// 去重同一块的重复命中，按得分降序拼接
	seen := make(map[string]struct{}, len(hits))
	passages := make([]types.Passage, 0, len(hits))
	var parts []string
	for _, hit := range hits {
		key := fmt.Sprintf("%s/%d", hit.Entry.DocumentID, hit.Entry.ChunkIndex)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		passages = append(passages, types.Passage{
			DocumentID:   hit.Entry.DocumentID,
			DocumentName: hit.Entry.DocumentName,
			ChunkIndex:   hit.Entry.ChunkIndex,
			Text:         hit.Entry.Text,
			Score:        hit.Score,
		})
		parts = append(parts, hit.Entry.Text)
	}

	result := &types.AnswerResult{
		Answer:   strings.Join(parts, "\n\n"),
		Passages: passages,
	}
	if doc, ok := e.store.Get(passages[0].DocumentID); ok {
		result.Keywords = doc.Keywords(func(text string) []string {
			return ExtractKeywords(text, e.cfg.KeywordCount)
		})
	}
	return result, nil
}

// summaryAnswer 全文摘要路径：定位目标文档（查询中点名的，
// 否则最近摄入的），摘要基于完整文档文本。
func (e *Engine) summaryAnswer(queryText string) (*types.AnswerResult, error) {
	doc := e.resolveDocument(queryText)
	if doc == nil {
		return &types.AnswerResult{
			NotFound: true,
			Answer:   "No documents are loaded. Upload a document before asking for a summary.",
		}, nil
	}

	summary := doc.Summary(func(text string) string {
		return Summarize(text, e.cfg.SummarySentences)
	})
	keywords := doc.Keywords(func(text string) []string {
		return ExtractKeywords(text, e.cfg.KeywordCount)
	})

	answer := summary
	if doc.Title != "" {
		answer = doc.Title + ": " + summary
	}
	return &types.AnswerResult{
		Answer:   answer,
		Keywords: keywords,
	}, nil
}

// resolveDocument 返回查询中点名的文档，否则最近摄入的文档。
func (e *Engine) resolveDocument(queryText string) *Document {
	docs := e.store.List()
	if len(docs) == 0 {
		return nil
	}
	lower := strings.ToLower(queryText)
	for _, doc := range docs {
		if strings.Contains(lower, strings.ToLower(doc.Name)) {
			return doc
		}
	}
	return docs[len(docs)-1]
}

// Summarize 返回指定文档的摘要与关键词。
func (e *Engine) Summarize(documentName string) (*types.DocumentSummary, error) {
	doc, ok := e.store.GetByName(documentName)
	if !ok {
		return nil, types.NewError(types.ErrDocumentNotFound,
			fmt.Sprintf("document %q not found", documentName))
	}
	return &types.DocumentSummary{
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		Title:        doc.Title,
		Summary: doc.Summary(func(text string) string {
			return Summarize(text, e.cfg.SummarySentences)
		}),
		Keywords: doc.Keywords(func(text string) []string {
			return ExtractKeywords(text, e.cfg.KeywordCount)
		}),
	}, nil
}

// Remove 撤回文档：索引条目一步删除，文档注销，会话更新。幂等。
func (e *Engine) Remove(documentID string) {
	doc, ok := e.store.Get(documentID)
	if !ok {
		return
	}
	e.index.Remove(documentID)
	e.store.Remove(documentID)
	e.session.Unregister(doc.Name)

	if e.persist != nil {
		if err := e.persist.DeleteDocument(documentID); err != nil {
			e.logger.Warn("persist delete failed", zap.String("document", documentID), zap.Error(err))
		}
	}
}

// Clear 清空索引与文档存储（会话由编排方清空）。
func (e *Engine) Clear() {
	e.index.Clear()
	e.store.Clear()
	if e.persist != nil {
		if err := e.persist.Clear(); err != nil {
			e.logger.Warn("persist clear failed", zap.Error(err))
		}
	}
}

// Restore 从持久化恢复文档与索引，启动时调用一次。
// 持久化记录的模型与当前提供者不一致时拒绝加载。
func (e *Engine) Restore(ctx context.Context) error {
	if e.persist == nil {
		return nil
	}
	docs, entriesByDoc, err := e.persist.LoadAll(e.provider.Model(), e.provider.Dimension())
	if err != nil {
		return err
	}
	var restored int
	for _, doc := range docs {
		if err := e.index.Insert(entriesByDoc[doc.ID]); err != nil {
			return err
		}
		e.store.Register(doc)
		e.store.EnsureSeq(doc.Seq)
		e.session.Register(doc.Name, types.SourceDocument)
		restored++
	}
	if restored > 0 {
		e.logger.Info("documents restored from persistence", zap.Int("count", restored))
	}
	return nil
}

// isSummaryQuery 显式摘要请求检测。
func isSummaryQuery(queryText string) bool {
	lower := strings.ToLower(queryText)
	for _, kw := range []string{"summarize", "summary", "abstract"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
