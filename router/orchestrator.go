package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/session"
	"github.com/BaSui01/querydesk/types"
)

// Clearable 可选接口：持有已加载状态的处理器实现它以参与全局清空。
//
// 使用示例：
//
//	if c, ok := handler.(Clearable); ok {
//	    c.Clear()
//	}
type Clearable interface {
	Clear()
}

// capabilities 系统查询返回的能力列表。
var capabilities = []string{
	"Ask questions about uploaded documents (research)",
	"Analyze uploaded tabular datasets (tabular)",
	"Summarize a document: 'summarize <name>'",
	"Show loaded sources: 'what is loaded'",
}

// Orchestrator 路由编排器：分类查询、派发给对应处理器、
// 维护会话近因，并将 ambiguous / system 决策就地物化为结果。
type Orchestrator struct {
	router   *Router
	session  *session.Context
	handlers map[types.HandlerKind]types.Handler
	logger   *zap.Logger
}

// NewOrchestrator 创建编排器。handlers 中缺失的处理器在被
// 路由命中时返回 HANDLER_UNAVAILABLE。
func NewOrchestrator(r *Router, sess *session.Context, handlers []types.Handler, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	byKind := make(map[types.HandlerKind]types.Handler, len(handlers))
	for _, h := range handlers {
		byKind[h.Kind()] = h
	}
	return &Orchestrator{
		router:   r,
		session:  sess,
		handlers: byKind,
		logger:   logger.With(zap.String("component", "orchestrator")),
	}
}

// Process 处理一次查询：分类 → 派发 → 记录近因。
// ambiguous 与 system 决策不派发，由编排器直接构造结果。
func (o *Orchestrator) Process(ctx context.Context, q types.Query) (*types.Result, error) {
	snap := o.session.Snapshot()
	decision := o.router.Classify(q, snap)

	switch decision.Handler {
	case types.HandlerSystem:
		return &types.Result{
			Decision: decision,
			System:   o.systemInfo(snap),
		}, nil

	case types.HandlerAmbiguous:
		return &types.Result{
			Decision:       decision,
			Disambiguation: o.disambiguation(q, decision, snap),
		}, nil
	}

	h, ok := o.handlers[decision.Handler]
	if !ok {
		return nil, types.NewError(types.ErrHandlerUnavailable,
			fmt.Sprintf("no handler registered for %q", decision.Handler))
	}

	result, err := h.Handle(ctx, q)
	if err != nil {
		o.logger.Warn("handler failed",
			zap.String("handler", string(decision.Handler)),
			zap.Error(err))
		return nil, err
	}
	result.Decision = decision

	// 近因只在成功派发后更新
	o.session.SetLastHandler(decision.Handler)
	return result, nil
}

// Clear 清空全部已加载状态：会话注册表与所有实现 Clearable 的处理器。
func (o *Orchestrator) Clear() {
	for _, h := range o.handlers {
		if c, ok := h.(Clearable); ok {
			c.Clear()
		}
	}
	o.session.Clear()
	o.logger.Info("all loaded state cleared")
}

// systemInfo 从会话快照构造系统查询结果。
func (o *Orchestrator) systemInfo(snap *session.Snapshot) *types.SystemInfo {
	info := &types.SystemInfo{
		Capabilities: capabilities,
		Datasets:     snap.Datasets,
		Documents:    snap.Documents,
	}
	switch {
	case snap.Empty():
		info.Message = "No data sources are loaded."
	default:
		info.Message = fmt.Sprintf("%d dataset(s) and %d document(s) loaded.",
			len(snap.Datasets), len(snap.Documents))
	}
	return info
}

// disambiguation 物化 ambiguous 决策：枚举已加载数据源并
// 为每个候选处理器给出重述建议。
func (o *Orchestrator) disambiguation(q types.Query, decision types.RoutingDecision, snap *session.Snapshot) *types.Disambiguation {
	d := &types.Disambiguation{
		Message:    decision.Reason,
		Candidates: decision.Candidates,
		Datasets:   snap.Datasets,
		Documents:  snap.Documents,
	}
	for _, kind := range decision.Candidates {
		switch kind {
		case types.HandlerTabular:
			d.Suggestions = append(d.Suggestions,
				fmt.Sprintf("For data analysis: %q (from the loaded datasets)", q.Text))
		case types.HandlerResearch:
			d.Suggestions = append(d.Suggestions,
				fmt.Sprintf("For document research: %q (from the loaded documents)", q.Text))
		}
	}
	return d
}
