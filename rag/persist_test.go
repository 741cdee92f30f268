package rag

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/querydesk/types"
)

func persistFixture(t *testing.T) (string, *Persistence) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "querydesk.db")
	p, err := OpenPersistence(path, "model-a", nil)
	require.NoError(t, err)
	return path, p
}

func persistedDoc() (*Document, []Entry) {
	doc := &Document{
		ID:        "doc-1",
		Name:      "report.txt",
		Seq:       7,
		Title:     "Quarterly Report",
		Text:      "Quarterly Report\n\nRevenue grew.",
		WordCount: 4,
		CreatedAt: time.Now().Truncate(time.Second),
		Chunks: []Chunk{
			{Index: 0, Text: "Quarterly Report Revenue grew.", TokenCount: 8},
			{Index: 1, Text: "Second chunk text.", TokenCount: 5},
		},
	}
	entries := []Entry{
		{DocumentID: "doc-1", DocumentName: "report.txt", DocumentSeq: 7, ChunkIndex: 0,
			Text: "Quarterly Report Revenue grew.", Vector: []float64{1, 0, 0}},
		{DocumentID: "doc-1", DocumentName: "report.txt", DocumentSeq: 7, ChunkIndex: 1,
			Text: "Second chunk text.", Vector: []float64{0, 1, 0}},
	}
	return doc, entries
}

func TestPersistRoundTrip(t *testing.T) {
	path, p := persistFixture(t)
	doc, entries := persistedDoc()
	require.NoError(t, p.SaveDocument(doc, entries))

	// 重新打开，模拟进程重启
	reopened, err := OpenPersistence(path, "model-a", nil)
	require.NoError(t, err)

	docs, entriesByDoc, err := reopened.LoadAll("model-a", 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	got := docs[0]
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Name, got.Name)
	assert.Equal(t, doc.Seq, got.Seq)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Text, got.Text)
	assert.Len(t, got.Chunks, 2)
	assert.Equal(t, 8, got.Chunks[0].TokenCount)

	restored := entriesByDoc[doc.ID]
	require.Len(t, restored, 2)
	assert.Equal(t, []float64{1, 0, 0}, restored[0].Vector)
	assert.Equal(t, 1, restored[1].ChunkIndex)
}

func TestPersistModelMismatchRejected(t *testing.T) {
	_, p := persistFixture(t)
	doc, entries := persistedDoc()
	require.NoError(t, p.SaveDocument(doc, entries))

	_, _, err := p.LoadAll("model-b", 3)
	require.Error(t, err)
	assert.Equal(t, types.ErrModelMismatch, types.GetErrorCode(err))
	assert.Equal(t, "doc-1", err.(*types.Error).DocumentID)

	// 维度不一致同样拒绝
	_, _, err = p.LoadAll("model-a", 768)
	require.Error(t, err)
	assert.Equal(t, types.ErrModelMismatch, types.GetErrorCode(err))
}

func TestPersistSameNameReplaced(t *testing.T) {
	_, p := persistFixture(t)
	doc, entries := persistedDoc()
	require.NoError(t, p.SaveDocument(doc, entries))

	replacement := &Document{
		ID:        "doc-2",
		Name:      doc.Name,
		Seq:       8,
		Text:      "replacement text",
		Chunks:    doc.Chunks[:1],
		CreatedAt: time.Now(),
	}
	require.NoError(t, p.SaveDocument(replacement, entries[:1]))

	docs, entriesByDoc, err := p.LoadAll("model-a", 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-2", docs[0].ID)
	assert.Len(t, entriesByDoc["doc-2"], 1)
}

func TestPersistDeleteDocument(t *testing.T) {
	_, p := persistFixture(t)
	doc, entries := persistedDoc()
	require.NoError(t, p.SaveDocument(doc, entries))

	require.NoError(t, p.DeleteDocument(doc.ID))
	docs, _, err := p.LoadAll("model-a", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestPersistClear(t *testing.T) {
	_, p := persistFixture(t)
	doc, entries := persistedDoc()
	require.NoError(t, p.SaveDocument(doc, entries))

	require.NoError(t, p.Clear())
	docs, _, err := p.LoadAll("model-a", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
