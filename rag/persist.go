package rag

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/querydesk/types"
)

// documentRecord 持久化的文档行。嵌入模型标识随索引记录，
// 重载时用于检测维度/模型不匹配。
type documentRecord struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"index"`
	Seq       uint64
	Title     string
	Text      string
	WordCount int
	Warning   bool
	Model     string
	Dimension int
	CreatedAt time.Time
}

// chunkRecord 持久化的 (Chunk, Embedding) 行，按 (文档, 块序号) 键入。
type chunkRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	DocumentID string `gorm:"index"`
	ChunkIndex int
	Text       string
	TokenCount int
	// Vector JSON 编码的 []float64
	Vector []byte
}

// Persistence 将 (Document, Chunk, Embedding) 三元组持久化到 SQLite，
// 支持重启恢复。核心不依赖它，nil Persistence 表示纯内存运行。
type Persistence struct {
	db *gorm.DB
	// model 当前嵌入模型标识，随每份文档记录写入
	model  string
	logger *zap.Logger
}

// OpenPersistence 打开（或创建）SQLite 数据库并迁移表结构。
// model 为当前嵌入模型标识，随记录写入用于重载校验。
func OpenPersistence(path, model string, logger *zap.Logger) (*Persistence, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, types.NewError(types.ErrPersistence, "open sqlite database").WithCause(err)
	}
	if err := db.AutoMigrate(&documentRecord{}, &chunkRecord{}); err != nil {
		return nil, types.NewError(types.ErrPersistence, "migrate schema").WithCause(err)
	}
	return &Persistence{
		db:     db,
		model:  model,
		logger: logger.With(zap.String("component", "persistence")),
	}, nil
}

// SaveDocument 原子写入文档及其块。同名旧文档的记录被替换。
func (p *Persistence) SaveDocument(doc *Document, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	dimension := len(entries[0].Vector)

	return p.db.Transaction(func(tx *gorm.DB) error {
		var stale []documentRecord
		if err := tx.Where("name = ?", doc.Name).Find(&stale).Error; err != nil {
			return err
		}
		for _, rec := range stale {
			if err := tx.Where("document_id = ?", rec.ID).Delete(&chunkRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&documentRecord{}, "id = ?", rec.ID).Error; err != nil {
				return err
			}
		}

		rec := documentRecord{
			ID:        doc.ID,
			Name:      doc.Name,
			Seq:       doc.Seq,
			Title:     doc.Title,
			Text:      doc.Text,
			WordCount: doc.WordCount,
			Warning:   doc.Warning,
			Model:     p.model,
			Dimension: dimension,
			CreatedAt: doc.CreatedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}

		tokenCounts := make(map[int]int, len(doc.Chunks))
		for _, c := range doc.Chunks {
			tokenCounts[c.Index] = c.TokenCount
		}

		rows := make([]chunkRecord, 0, len(entries))
		for _, e := range entries {
			vec, err := json.Marshal(e.Vector)
			if err != nil {
				return err
			}
			rows = append(rows, chunkRecord{
				DocumentID: doc.ID,
				ChunkIndex: e.ChunkIndex,
				Text:       e.Text,
				TokenCount: tokenCounts[e.ChunkIndex],
				Vector:     vec,
			})
		}
		return tx.Create(&rows).Error
	})
}

// DeleteDocument 删除文档及其块记录。
func (p *Persistence) DeleteDocument(documentID string) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&chunkRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&documentRecord{}, "id = ?", documentID).Error
	})
}

// Clear 删除全部持久化记录。
func (p *Persistence) Clear() error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&chunkRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&documentRecord{}).Error
	})
}

// LoadAll 加载全部持久化文档与索引条目。
// 任一文档的嵌入模型或维度与当前提供者不一致时拒绝加载，
// 调用方需要重建索引。
func (p *Persistence) LoadAll(model string, dimension int) ([]*Document, map[string][]Entry, error) {
	var docRecs []documentRecord
	if err := p.db.Order("seq asc").Find(&docRecs).Error; err != nil {
		return nil, nil, types.NewError(types.ErrPersistence, "load documents").WithCause(err)
	}

	docs := make([]*Document, 0, len(docRecs))
	entriesByDoc := make(map[string][]Entry, len(docRecs))
	for _, rec := range docRecs {
		if rec.Model != model || rec.Dimension != dimension {
			return nil, nil, types.NewError(types.ErrModelMismatch,
				fmt.Sprintf("document %q was indexed with model %s (dim %d), current provider is %s (dim %d); re-ingest required",
					rec.Name, rec.Model, rec.Dimension, model, dimension)).
				WithDocumentID(rec.ID)
		}

		var chunkRecs []chunkRecord
		if err := p.db.Where("document_id = ?", rec.ID).Order("chunk_index asc").Find(&chunkRecs).Error; err != nil {
			return nil, nil, types.NewError(types.ErrPersistence, "load chunks").WithCause(err)
		}

		chunks := make([]Chunk, 0, len(chunkRecs))
		entries := make([]Entry, 0, len(chunkRecs))
		for _, cr := range chunkRecs {
			var vec []float64
			if err := json.Unmarshal(cr.Vector, &vec); err != nil {
				return nil, nil, types.NewError(types.ErrPersistence, "decode embedding").WithCause(err)
			}
			chunks = append(chunks, Chunk{
				Index:      cr.ChunkIndex,
				Text:       cr.Text,
				TokenCount: cr.TokenCount,
			})
			entries = append(entries, Entry{
				DocumentID:   rec.ID,
				DocumentName: rec.Name,
				DocumentSeq:  rec.Seq,
				ChunkIndex:   cr.ChunkIndex,
				Text:         cr.Text,
				Vector:       vec,
			})
		}

		docs = append(docs, &Document{
			ID:        rec.ID,
			Name:      rec.Name,
			Seq:       rec.Seq,
			Title:     rec.Title,
			Text:      rec.Text,
			Chunks:    chunks,
			WordCount: rec.WordCount,
			Warning:   rec.Warning,
			CreatedAt: rec.CreatedAt,
		})
		entriesByDoc[rec.ID] = entries
	}
	return docs, entriesByDoc, nil
}
