// Package router 将自由文本查询分类并派发到专门处理器。
//
// 分类器是确定性的、可解释的固定信号加权评分，不是通用 NLU：
// 词法信号（领域关键词命中，重复衰减）、上下文信号（已加载数据源
// 类型偏置）与显式提示信号共同产生带置信度与贡献信号列表的决策。
package router

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/config"
	"github.com/BaSui01/querydesk/session"
	"github.com/BaSui01/querydesk/types"
)

// systemPhrases 系统意图短语集，在领域评分之前检查并短路。
var systemPhrases = []string{
	"help",
	"what can you do",
	"capabilities",
	"status",
	"what is loaded",
	"list files",
}

// Router 查询分类器。
type Router struct {
	cfg    config.RouterConfig
	logger *zap.Logger
}

// New 创建分类器。
func New(cfg config.RouterConfig, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "router")),
	}
}

// Classify 对查询分类。对任意输入从不失败：
// 空白查询降级为 ambiguous。
func (r *Router) Classify(q types.Query, snap *session.Snapshot) types.RoutingDecision {
	decision := types.RoutingDecision{
		Handler:   types.HandlerAmbiguous,
		Timestamp: time.Now(),
	}

	text := strings.TrimSpace(strings.ToLower(q.Text))
	if text == "" {
		decision.Reason = "query is empty; need more detail"
		return decision
	}

	// 系统意图在领域评分之前短路
	if phrase, ok := matchSystemPhrase(text); ok {
		decision.Handler = types.HandlerSystem
		decision.Confidence = 1.0
		decision.Reason = "system phrase: " + phrase
		decision.Signals = append(decision.Signals, types.RoutingSignal{
			Name:    "system_phrase",
			Target:  types.HandlerSystem,
			Weight:  1.0,
			Matched: phrase,
		})
		return decision
	}

	// 显式提示覆盖全部评分
	if q.Hint == types.HandlerTabular || q.Hint == types.HandlerResearch {
		decision.Handler = q.Hint
		decision.Confidence = 1.0
		decision.Reason = "explicit handler hint"
		decision.Signals = append(decision.Signals, types.RoutingSignal{
			Name:   "explicit_hint",
			Target: q.Hint,
			Weight: 1.0,
		})
		return r.enforceResearchSources(decision, snap)
	}

	// 词法信号
	var signals []types.RoutingSignal
	tabularScore := r.scoreKeywords(text, types.HandlerTabular, r.cfg.TabularKeywords, &signals)
	researchScore := r.scoreKeywords(text, types.HandlerResearch, r.cfg.ResearchKeywords, &signals)

	// 上下文信号
	switch {
	case snap == nil || snap.Empty():
		// 无数据源：两边都压到阈值之下
		ceiling := r.cfg.DispatchThreshold - 1e-9
		tabularScore = math.Min(tabularScore, ceiling)
		researchScore = math.Min(researchScore, ceiling)
	case snap.HasDatasets() && !snap.HasDocuments():
		tabularScore += r.cfg.ContextBias
		signals = append(signals, types.RoutingSignal{
			Name: "only_datasets_loaded", Target: types.HandlerTabular, Weight: r.cfg.ContextBias,
		})
	case snap.HasDocuments() && !snap.HasDatasets():
		researchScore += r.cfg.ContextBias
		signals = append(signals, types.RoutingSignal{
			Name: "only_documents_loaded", Target: types.HandlerResearch, Weight: r.cfg.ContextBias,
		})
	}

	// 近因偏置：仅在歧义边际内、且不覆盖显式提示时参与
	if snap != nil && math.Abs(tabularScore-researchScore) < r.cfg.AmbiguityMargin {
		switch snap.LastHandler {
		case types.HandlerTabular:
			tabularScore += r.cfg.RecencyBias
			signals = append(signals, types.RoutingSignal{
				Name: "recency", Target: types.HandlerTabular, Weight: r.cfg.RecencyBias,
			})
		case types.HandlerResearch:
			researchScore += r.cfg.RecencyBias
			signals = append(signals, types.RoutingSignal{
				Name: "recency", Target: types.HandlerResearch, Weight: r.cfg.RecencyBias,
			})
		}
	}

	decision.Signals = signals
	best := math.Max(tabularScore, researchScore)

	switch {
	case best < r.cfg.DispatchThreshold:
		decision.Handler = types.HandlerAmbiguous
		decision.Confidence = best
		if snap == nil || snap.Empty() {
			decision.Reason = "no data sources loaded; upload a dataset or document first"
		} else {
			decision.Reason = "no clear category match; please restate the question"
		}
		decision.Candidates = []types.HandlerKind{types.HandlerTabular, types.HandlerResearch}

	case math.Abs(tabularScore-researchScore) < r.cfg.AmbiguityMargin:
		// 并列不猜测
		decision.Handler = types.HandlerAmbiguous
		decision.Confidence = best
		decision.Reason = "query matches both handlers equally well"
		decision.Candidates = []types.HandlerKind{types.HandlerTabular, types.HandlerResearch}

	case tabularScore > researchScore:
		decision.Handler = types.HandlerTabular
		decision.Confidence = math.Min(tabularScore, 1.0)
		decision.Reason = "tabular keyword score wins"

	default:
		decision.Handler = types.HandlerResearch
		decision.Confidence = math.Min(researchScore, 1.0)
		decision.Reason = "research keyword score wins"
	}

	decision = r.enforceResearchSources(decision, snap)

	r.logger.Debug("query classified",
		zap.String("handler", string(decision.Handler)),
		zap.Float64("confidence", decision.Confidence),
		zap.Float64("tabular_score", tabularScore),
		zap.Float64("research_score", researchScore))
	return decision
}

// scoreKeywords 累计一个处理器的关键词命中分。
// 同一关键词第 n 次命中贡献 weight * decay^(n-1)。
func (r *Router) scoreKeywords(text string, target types.HandlerKind, sets []config.KeywordSet, signals *[]types.RoutingSignal) float64 {
	score := 0.0
	for _, set := range sets {
		for _, kw := range set.Keywords {
			n := countOccurrences(text, kw)
			if n == 0 {
				continue
			}
			contribution := 0.0
			factor := 1.0
			for i := 0; i < n; i++ {
				contribution += set.Weight * factor
				factor *= r.cfg.RepeatDecay
			}
			score += contribution
			*signals = append(*signals, types.RoutingSignal{
				Name:    "keyword:" + set.Name,
				Target:  target,
				Weight:  contribution,
				Matched: kw,
			})
		}
	}
	return score
}

// enforceResearchSources 强制 research 决策引用至少一份已加载文档，
// 否则重分类为 ambiguous。
func (r *Router) enforceResearchSources(decision types.RoutingDecision, snap *session.Snapshot) types.RoutingDecision {
	if decision.Handler != types.HandlerResearch {
		return decision
	}
	if snap != nil && snap.HasDocuments() {
		return decision
	}
	decision.Handler = types.HandlerAmbiguous
	decision.Reason = "no documents loaded; upload a document for research questions"
	decision.Candidates = nil
	return decision
}

// matchSystemPhrase 检查固定系统短语集。
func matchSystemPhrase(text string) (string, bool) {
	for _, phrase := range systemPhrases {
		if text == phrase || strings.Contains(text, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// countOccurrences 统计词边界感知的关键词出现次数。
func countOccurrences(text, keyword string) int {
	count := 0
	for start := 0; ; {
		i := strings.Index(text[start:], keyword)
		if i < 0 {
			return count
		}
		abs := start + i
		if isWordBoundary(text, abs, len(keyword)) {
			count++
		}
		start = abs + len(keyword)
	}
}

// isWordBoundary 检查 [pos, pos+n) 两侧是否为非字母。
func isWordBoundary(text string, pos, n int) bool {
	if pos > 0 {
		prev := text[pos-1]
		if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
			return false
		}
	}
	if end := pos + n; end < len(text) {
		next := text[end]
		if next >= 'a' && next <= 'z' || next >= '0' && next <= '9' {
			return false
		}
	}
	return true
}
