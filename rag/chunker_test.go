package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestChunkEmptyText(t *testing.T) {
	c := NewChunker(100, 10, 5, nil, nil)
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\n  "))
}

func TestChunkSingleSentence(t *testing.T) {
	c := NewChunker(100, 10, 5, nil, nil)
	chunks := c.Chunk("Revenue grew in the second quarter.")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Revenue grew in the second quarter.", chunks[0].Text)
	assert.Positive(t, chunks[0].TokenCount)
}

func TestChunkOverlapPrefix(t *testing.T) {
	c := NewChunker(40, 10, 5, nil, nil)
	chunks := c.Chunk("Revenue grew due to strong Q2 demand. Costs remained flat.")
	require.Len(t, chunks, 2)
	assert.Equal(t, "Revenue grew due to strong Q2 demand.", chunks[0].Text)
	// 第二块以前一块末尾 10 个字符开头
	assert.Equal(t, "Q2 demand. Costs remained flat.", chunks[1].Text)
}

func TestChunkLongSentenceHardCut(t *testing.T) {
	c := NewChunker(50, 0, 5, nil, nil)
	// 无标点的超长句退化为硬切分
	long := strings.Repeat("abcde ", 40)
	chunks := c.Chunk(long)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 50)
	}
}

func TestChunkTailMerge(t *testing.T) {
	c := NewChunker(40, 0, 20, nil, nil)
	// 尾句过短时并入前块，即使前块因此略超预算
	chunks := c.Chunk("This is the first full sentence here. Tiny end.")
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "Tiny end.")
}

func TestChunkParagraphBoundary(t *testing.T) {
	c := NewChunker(80, 0, 5, nil, nil)
	chunks := c.Chunk("First paragraph sentence one. Sentence two.\n\nSecond paragraph content here.")
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestSplitSentencesKeepsDecimals(t *testing.T) {
	sentences := splitSentences("The value of pi is 3.14 exactly. Next sentence.")
	require.Len(t, sentences, 2)
	assert.Equal(t, "The value of pi is 3.14 exactly.", sentences[0])
}

func TestCleanText(t *testing.T) {
	raw := "Quarterly   Report\n\n\nx\nRevenue grew   strongly.\n\nCosts   flat."
	cleaned := CleanText(raw)
	assert.Equal(t, "Quarterly Report\n\nRevenue grew strongly.\n\nCosts flat.", cleaned)
}

func TestChunkDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringN(0, 2000, -1).Draw(t, "text")
		maxSize := rapid.IntRange(20, 300).Draw(t, "maxSize")
		overlap := rapid.IntRange(0, maxSize/2).Draw(t, "overlap")

		c := NewChunker(maxSize, overlap, 5, nil, nil)
		first := c.Chunk(text)
		second := c.Chunk(text)
		require.Equal(t, first, second)

		for i, ch := range first {
			assert.Equal(t, i, ch.Index)
			assert.NotEmpty(t, strings.TrimSpace(ch.Text))
			// 上界：内容（含尾块并入的超额）+ 重叠前缀 + 分隔符
			assert.LessOrEqual(t, len([]rune(ch.Text)), maxSize+5+overlap+1)
		}
	})
}
