package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKeywordsFrequencyOrder(t *testing.T) {
	text := "revenue revenue revenue growth growth market"
	kws := ExtractKeywords(text, 10)
	assert.Equal(t, []string{"revenue", "growth", "market"}, kws)
}

func TestExtractKeywordsFilters(t *testing.T) {
	text := "The cat ran with them through 2024 and abc123 tokens quickly"
	kws := ExtractKeywords(text, 10)
	// 停用词、短词、含数字的词都被过滤
	assert.NotContains(t, kws, "with")
	assert.NotContains(t, kws, "them")
	assert.NotContains(t, kws, "through")
	assert.NotContains(t, kws, "cat")
	assert.NotContains(t, kws, "2024")
	assert.NotContains(t, kws, "abc123")
	assert.Contains(t, kws, "tokens")
	assert.Contains(t, kws, "quickly")
}

func TestExtractKeywordsTopK(t *testing.T) {
	text := "alpha bravo charlie delta echo foxtrot golfing hotels"
	kws := ExtractKeywords(text, 3)
	require.Len(t, kws, 3)
	// 同频按字典序
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, kws)
}

func TestExtractKeywordsStripsPunctuation(t *testing.T) {
	kws := ExtractKeywords("Revenue, revenue; REVENUE!", 5)
	assert.Equal(t, []string{"revenue"}, kws)
}

func TestSummarizeShortTextUnchanged(t *testing.T) {
	text := "First sentence here. Second sentence here."
	assert.Equal(t, text, Summarize(text, 3))
}

func TestSummarizeSelectsAndPreservesOrder(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Sentence one. Sentence two. Sentence three. ")
	for i := 0; i < 7; i++ {
		sb.WriteString("Filler sentence. ")
	}

	// 开头 30% 的句子得分最高，按原文顺序入选
	summary := Summarize(sb.String(), 3)
	assert.Equal(t, "Sentence one. Sentence two. Sentence three.", summary)
}

func TestSummarizeDeterministic(t *testing.T) {
	text := strings.Repeat("Some sentence with a reasonable length for scoring purposes. ", 12)
	assert.Equal(t, Summarize(text, 3), Summarize(text, 3))
}
