package rag

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords 英文停用词表（高频功能词）。
var stopwords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "against": {},
	"also": {}, "among": {}, "because": {}, "been": {}, "before": {},
	"being": {}, "below": {}, "between": {}, "both": {}, "cannot": {},
	"could": {}, "does": {}, "doing": {}, "down": {}, "during": {},
	"each": {}, "every": {}, "from": {}, "further": {}, "have": {},
	"having": {}, "here": {}, "into": {}, "itself": {}, "just": {},
	"more": {}, "most": {}, "much": {}, "once": {}, "only": {},
	"other": {}, "over": {}, "same": {}, "should": {}, "since": {},
	"some": {}, "such": {}, "than": {}, "that": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "those": {}, "through": {}, "under": {}, "until": {},
	"very": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "will": {}, "with": {}, "within": {},
	"would": {}, "your": {},
}

// ExtractKeywords 词频提取关键词：小写、纯字母、长度大于 3、
// 过滤停用词，按频次降序取前 topK，同频按字典序保证确定性。
func ExtractKeywords(text string, topK int) []string {
	freq := make(map[string]int)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		if len(word) <= 3 || !isAlpha(word) {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		freq[word]++
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > topK {
		words = words[:topK]
	}
	return words
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
