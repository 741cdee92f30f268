// Package session 维护进程级会话上下文：当前加载的数据源清单
// 与最近一次使用的处理器。显式创建、显式传递，没有隐式全局单例。
package session

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/types"
)

// Snapshot 会话上下文的不可变视图。
// 读取方持有的快照不会被后续修改影响。
type Snapshot struct {
	// Sources 数据源标识 → 类型
	Sources map[string]types.SourceKind `json:"sources"`
	// Datasets 已加载的表格数据源（按名称排序）
	Datasets []string `json:"datasets"`
	// Documents 已加载的文档（按名称排序）
	Documents []string `json:"documents"`
	// LastHandler 上次成功派发的处理器（空表示尚未派发）
	LastHandler types.HandlerKind `json:"last_handler,omitempty"`
}

// HasDatasets 是否有表格数据源
func (s *Snapshot) HasDatasets() bool { return len(s.Datasets) > 0 }

// HasDocuments 是否有文档
func (s *Snapshot) HasDocuments() bool { return len(s.Documents) > 0 }

// Empty 是否没有任何数据源
func (s *Snapshot) Empty() bool { return len(s.Sources) == 0 }

// Context 进程级会话上下文。
//
// 所有写操作互斥串行；Snapshot 无锁读取最近一次提交的状态，
// 不会被并发写阻塞，也不会观察到撕裂的中间状态。
type Context struct {
	mu      sync.Mutex
	sources map[string]types.SourceKind
	last    types.HandlerKind

	snapshot atomic.Pointer[Snapshot]
	logger   *zap.Logger
}

// New 创建空的会话上下文。
func New(logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Context{
		sources: make(map[string]types.SourceKind),
		logger:  logger.With(zap.String("component", "session")),
	}
	c.publishLocked()
	return c
}

// Register 登记一个数据源。同名数据源覆盖旧类型。
func (c *Context) Register(sourceID string, kind types.SourceKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources[sourceID] = kind
	c.publishLocked()

	c.logger.Info("source registered",
		zap.String("source", sourceID),
		zap.String("kind", string(kind)))
}

// Unregister 移除一个数据源。不存在时为空操作。
func (c *Context) Unregister(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sources[sourceID]; !ok {
		return
	}
	delete(c.sources, sourceID)
	c.publishLocked()

	c.logger.Info("source unregistered", zap.String("source", sourceID))
}

// SetLastHandler 记录最近一次成功派发的处理器。
func (c *Context) SetLastHandler(kind types.HandlerKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = kind
	c.publishLocked()
}

// Clear 清空全部数据源与派发历史。
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources = make(map[string]types.SourceKind)
	c.last = ""
	c.publishLocked()

	c.logger.Info("session cleared")
}

// Snapshot 返回最近一次提交的不可变视图。从不阻塞。
func (c *Context) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// publishLocked 构建并原子发布新快照。调用方必须持有 c.mu。
func (c *Context) publishLocked() {
	snap := &Snapshot{
		Sources:     make(map[string]types.SourceKind, len(c.sources)),
		LastHandler: c.last,
	}
	for id, kind := range c.sources {
		snap.Sources[id] = kind
		switch kind {
		case types.SourceTabular:
			snap.Datasets = append(snap.Datasets, id)
		case types.SourceDocument:
			snap.Documents = append(snap.Documents, id)
		}
	}
	sort.Strings(snap.Datasets)
	sort.Strings(snap.Documents)

	c.snapshot.Store(snap)
}
