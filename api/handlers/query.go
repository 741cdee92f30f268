package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/api"
	"github.com/BaSui01/querydesk/internal/metrics"
	"github.com/BaSui01/querydesk/router"
	"github.com/BaSui01/querydesk/types"
)

// =============================================================================
// 🔀 查询接口 Handler
// =============================================================================

// QueryHandler 查询接口处理器
type QueryHandler struct {
	orch      *router.Orchestrator
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewQueryHandler 创建查询处理器。collector 可为 nil。
func NewQueryHandler(orch *router.Orchestrator, collector *metrics.Collector, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{orch: orch, collector: collector, logger: logger}
}

// HandleQuery 处理路由查询请求
// @Summary 查询
// @Description 分类查询并派发到对应处理器
// @Tags 查询
// @Accept json
// @Produce json
// @Param request body api.QueryRequest true "查询请求"
// @Success 200 {object} Response "路由决策与结果"
// @Failure 400 {object} Response "无效请求"
// @Router /v1/query [post]
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req api.QueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Text == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest,
			"text is required", h.logger)
		return
	}

	q := types.Query{Text: req.Text, Hint: req.Hint, ReceivedAt: time.Now()}

	start := time.Now()
	result, err := h.orch.Process(r.Context(), q)
	duration := time.Since(start)

	if err != nil {
		if h.collector != nil {
			h.collector.RecordQuery("error", duration)
		}
		WriteError(w, r, err, h.logger)
		return
	}

	if h.collector != nil {
		h.collector.RecordQuery(string(result.Decision.Handler), duration)
	}
	h.logger.Info("query processed",
		zap.String("handler", string(result.Decision.Handler)),
		zap.Float64("confidence", result.Decision.Confidence),
		zap.Duration("duration", duration),
	)
	WriteSuccess(w, r, result)
}
