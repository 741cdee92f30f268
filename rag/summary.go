package rag

import (
	"sort"
	"strings"
)

// Summarize 抽取式摘要：按句子位置与长度打分，取前 maxSentences 句，
// 按原文顺序拼接。句子数不足时原样返回。
//
// 打分：开头 30% 的句子 +2，结尾 30% 的句子 +1，长度 50–200 字符 +1。
func Summarize(text string, maxSentences int) string {
	sentences := splitSentences(strings.Join(strings.Fields(text), " "))
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " ")
	}

	type scored struct {
		pos   int
		score int
	}
	items := make([]scored, len(sentences))
	n := len(sentences)
	for i, sent := range sentences {
		s := scored{pos: i}
		if float64(i) < float64(n)*0.3 {
			s.score += 2
		}
		if float64(i) > float64(n)*0.7 {
			s.score++
		}
		if l := len(sent); l > 50 && l < 200 {
			s.score++
		}
		items[i] = s
	}

	// 高分优先，同分靠前的句子优先
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})
	selected := items[:maxSentences]
	sort.Slice(selected, func(i, j int) bool { return selected[i].pos < selected[j].pos })

	parts := make([]string, len(selected))
	for i, s := range selected {
		parts[i] = sentences[s.pos]
	}
	return strings.Join(parts, " ")
}
