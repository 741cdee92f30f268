package rag

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/types"
)

// Entry 向量索引条目：一个块的向量与回引。
type Entry struct {
	DocumentID   string
	DocumentName string
	// DocumentSeq 文档 ingest 序号，用于跨文档并列时的确定性排序
	DocumentSeq uint64
	ChunkIndex  int
	Text        string
	// Vector 存储时归一化为单位向量
	Vector []float64
}

// Hit 一次搜索命中。
type Hit struct {
	Entry Entry
	// Score 余弦相似度，降序
	Score float64
}

// Index 内存向量索引，余弦相似度 top-k 搜索。
//
// 条目集合以写时复制快照发布：读取方无锁加载最近快照，写入方
// （Insert / Remove）仅在提交交换时互斥。进行中的搜索持有旧快照，
// 不会被并发写破坏（快照隔离）。
type Index struct {
	dimension int
	threshold float64

	mu       sync.Mutex // 写入方串行
	snapshot atomic.Pointer[[]Entry]
	logger   *zap.Logger
}

// NewIndex 创建固定维度的空索引。
// threshold 为相似度下限，低于该值的条目不出现在结果中。
func NewIndex(dimension int, threshold float64, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &Index{
		dimension: dimension,
		threshold: threshold,
		logger:    logger.With(zap.String("component", "vector_index")),
	}
	empty := make([]Entry, 0)
	idx.snapshot.Store(&empty)
	return idx
}

// Dimension 返回索引的固定向量维度。
func (idx *Index) Dimension() int { return idx.dimension }

// Size 返回当前条目数。
func (idx *Index) Size() int {
	return len(*idx.snapshot.Load())
}

// Insert 原子追加一批条目。
// 任一条目维度不符时整批拒绝，索引不变。
func (idx *Index) Insert(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	normalized := make([]Entry, len(entries))
	for i, e := range entries {
		if len(e.Vector) != idx.dimension {
			return types.NewError(types.ErrDimensionMismatch,
				fmt.Sprintf("entry for document %s chunk %d has dimension %d, index requires %d",
					e.DocumentID, e.ChunkIndex, len(e.Vector), idx.dimension)).
				WithDocumentID(e.DocumentID)
		}
		e.Vector = normalize(e.Vector)
		normalized[i] = e
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	old := *idx.snapshot.Load()
	next := make([]Entry, 0, len(old)+len(normalized))
	next = append(next, old...)
	next = append(next, normalized...)
	idx.snapshot.Store(&next)

	idx.logger.Info("entries inserted",
		zap.Int("count", len(normalized)),
		zap.Int("total", len(next)))
	return nil
}

// Search 返回与查询向量最相似的 k 个条目，相似度降序。
// 低于阈值的条目被排除；空结果表示"没有相关片段"，不是错误。
// 并列时低块序号优先（靠前文本获胜），再按文档序号保证确定性。
func (idx *Index) Search(query []float64, k int) ([]Hit, error) {
	if len(query) != idx.dimension {
		return nil, types.NewError(types.ErrDimensionMismatch,
			fmt.Sprintf("query vector has dimension %d, index requires %d", len(query), idx.dimension))
	}
	if k <= 0 {
		return nil, nil
	}

	entries := *idx.snapshot.Load()
	if len(entries) == 0 {
		return nil, nil
	}

	q := normalize(query)
	hits := make([]Hit, 0, len(entries))
	for _, e := range entries {
		score := dot(q, e.Vector)
		if score < idx.threshold {
			continue
		}
		hits = append(hits, Hit{Entry: e, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Entry.ChunkIndex != hits[j].Entry.ChunkIndex {
			return hits[i].Entry.ChunkIndex < hits[j].Entry.ChunkIndex
		}
		return hits[i].Entry.DocumentSeq < hits[j].Entry.DocumentSeq
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Remove 一步删除指定文档的全部条目。
// 文档不存在时为空操作；进行中的搜索持有旧快照不受影响。
func (idx *Index) Remove(documentID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	old := *idx.snapshot.Load()
	next := make([]Entry, 0, len(old))
	for _, e := range old {
		if e.DocumentID != documentID {
			next = append(next, e)
		}
	}
	if len(next) == len(old) {
		return
	}
	idx.snapshot.Store(&next)

	idx.logger.Info("document entries removed",
		zap.String("document", documentID),
		zap.Int("removed", len(old)-len(next)),
		zap.Int("remaining", len(next)))
}

// Clear 清空索引。
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	empty := make([]Entry, 0)
	idx.snapshot.Store(&empty)
	idx.logger.Info("index cleared")
}

// normalize 返回单位向量副本。零向量原样返回副本。
func normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	out := make([]float64, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// dot 归一化向量的内积即余弦相似度。
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
