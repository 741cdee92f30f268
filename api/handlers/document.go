package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/api"
	"github.com/BaSui01/querydesk/internal/metrics"
	"github.com/BaSui01/querydesk/rag"
	"github.com/BaSui01/querydesk/types"
)

// =============================================================================
// 📄 文档接口 Handler
// =============================================================================

// DocumentHandler 文档接口处理器
type DocumentHandler struct {
	engine    *rag.Engine
	store     *rag.DocumentStore
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewDocumentHandler 创建文档处理器。collector 可为 nil。
func NewDocumentHandler(engine *rag.Engine, store *rag.DocumentStore, collector *metrics.Collector, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{engine: engine, store: store, collector: collector, logger: logger}
}

// HandleIngest 处理文档摄入请求
// @Summary 摄入文档
// @Description 分块、向量化并索引文档；同名文档被替换
// @Tags 文档
// @Accept json
// @Produce json
// @Param request body api.IngestDocumentRequest true "文档"
// @Success 200 {object} Response "摄入结果"
// @Failure 400 {object} Response "无效文档"
// @Failure 502 {object} Response "向量化提供者失败"
// @Router /v1/documents [post]
func (h *DocumentHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req api.IngestDocumentRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Name == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest,
			"name is required", h.logger)
		return
	}

	start := time.Now()
	doc, err := h.engine.Ingest(r.Context(), req.Name, req.Text)
	if err != nil {
		if h.collector != nil {
			h.collector.RecordIngest("error", 0, time.Since(start))
		}
		WriteError(w, r, err, h.logger)
		return
	}

	if h.collector != nil {
		h.collector.RecordIngest("ok", doc.ChunkCount(), time.Since(start))
	}
	WriteSuccess(w, r, api.IngestDocumentResponse{
		ID:         doc.ID,
		Name:       doc.Name,
		Title:      doc.Title,
		ChunkCount: doc.ChunkCount(),
		WordCount:  doc.WordCount,
		Warning:    doc.Warning,
	})
}

// HandleList 处理文档列表请求
// @Summary 文档列表
// @Tags 文档
// @Produce json
// @Success 200 {object} Response "已加载文档"
// @Router /v1/documents [get]
func (h *DocumentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	docs := h.store.List()
	infos := make([]api.DocumentInfo, 0, len(docs))
	for _, doc := range docs {
		infos = append(infos, api.DocumentInfo{
			ID:         doc.ID,
			Name:       doc.Name,
			Title:      doc.Title,
			ChunkCount: doc.ChunkCount(),
			WordCount:  doc.WordCount,
			Warning:    doc.Warning,
		})
	}
	WriteSuccess(w, r, infos)
}

// HandleDelete 处理文档删除请求。删除不存在的文档是空操作。
// @Summary 删除文档
// @Tags 文档
// @Produce json
// @Param id path string true "文档 ID"
// @Success 200 {object} Response "删除完成"
// @Router /v1/documents/{id} [delete]
func (h *DocumentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest,
			"document id is required", h.logger)
		return
	}
	h.engine.Remove(id)
	WriteSuccess(w, r, map[string]string{"id": id, "status": "removed"})
}

// HandleSummary 处理文档摘要请求
// @Summary 文档摘要
// @Tags 文档
// @Produce json
// @Param name path string true "文档名称"
// @Success 200 {object} Response "摘要与关键词"
// @Failure 404 {object} Response "文档不存在"
// @Router /v1/documents/{name}/summary [get]
func (h *DocumentHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	summary, err := h.engine.Summarize(name)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, summary)
}
