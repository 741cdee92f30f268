package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/api"
	"github.com/BaSui01/querydesk/rag"
	"github.com/BaSui01/querydesk/router"
	"github.com/BaSui01/querydesk/session"
	"github.com/BaSui01/querydesk/types"
)

// =============================================================================
// ⚙️ 数据源与状态 Handler
// =============================================================================

// AdminHandler 数据源注册、状态查询与全局清空。
type AdminHandler struct {
	sess   *session.Context
	index  *rag.Index
	store  *rag.DocumentStore
	orch   *router.Orchestrator
	logger *zap.Logger
}

// NewAdminHandler 创建管理处理器。
func NewAdminHandler(sess *session.Context, index *rag.Index, store *rag.DocumentStore, orch *router.Orchestrator, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{sess: sess, index: index, store: store, orch: orch, logger: logger}
}

// HandleRegisterDataset 注册表格数据源
// @Summary 注册数据集
// @Description 将表格数据源注册进会话，使 tabular 路由可派发
// @Tags 数据源
// @Accept json
// @Produce json
// @Param request body api.RegisterDatasetRequest true "数据源"
// @Success 200 {object} Response "注册完成"
// @Failure 400 {object} Response "无效请求"
// @Router /v1/datasets [post]
func (h *AdminHandler) HandleRegisterDataset(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterDatasetRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Name == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest,
			"name is required", h.logger)
		return
	}

	h.sess.Register(req.Name, types.SourceTabular)
	h.logger.Info("dataset registered", zap.String("name", req.Name))
	WriteSuccess(w, r, map[string]string{"name": req.Name, "status": "registered"})
}

// HandleStatus 返回会话快照与索引统计
// @Summary 状态
// @Tags 状态
// @Produce json
// @Success 200 {object} Response "会话状态"
// @Router /v1/status [get]
func (h *AdminHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.sess.Snapshot()
	WriteSuccess(w, r, api.StatusResponse{
		Datasets:      snap.Datasets,
		Documents:     snap.Documents,
		LastHandler:   snap.LastHandler,
		IndexSize:     h.index.Size(),
		DocumentCount: h.store.Count(),
	})
}

// HandleClear 清空全部已加载状态
// @Summary 清空
// @Description 清空文档存储、向量索引与会话注册表
// @Tags 状态
// @Produce json
// @Success 200 {object} Response "清空完成"
// @Router /v1/clear [post]
func (h *AdminHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.orch.Clear()
	WriteSuccess(w, r, map[string]string{"status": "cleared"})
}
