package rag

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Chunk 文档的连续文本片段，检索的基本单元。
// 在 ingest 时创建，此后不可变；只随整个文档一起删除。
type Chunk struct {
	// Index 文档内顺序编号，从 0 开始单调递增
	Index int `json:"index"`
	// Text 片段文本（含与前块的重叠前缀）
	Text string `json:"text"`
	// TokenCount token 计数元数据
	TokenCount int `json:"token_count"`
}

// Chunker 将文档文本切分为重叠片段。
//
// 优先在段落/句子边界分割；单个句子超过 maxSize 时退化为硬切分。
// 除第一块外，每块重复前一块末尾 overlap 个字符，使相似度搜索对
// 跨边界的概念保持鲁棒。相同输入与参数产生相同的块序列。
type Chunker struct {
	maxSize   int
	overlap   int
	minSize   int
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewChunker 创建分块器。maxSize 与 overlap 以字符（rune）计。
func NewChunker(maxSize, overlap, minSize int, tokenizer Tokenizer, logger *zap.Logger) *Chunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokenizer == nil {
		tokenizer = EstimatorTokenizer{}
	}
	return &Chunker{
		maxSize:   maxSize,
		overlap:   overlap,
		minSize:   minSize,
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("component", "chunker")),
	}
}

// Chunk 切分文本，返回有序块序列。空白文本返回空序列。
func (c *Chunker) Chunk(text string) []Chunk {
	units := c.splitUnits(text)
	if len(units) == 0 {
		return nil
	}

	// 贪心打包：尽量多装句子，不超过 maxSize
	var contents []string
	var current []rune
	for _, unit := range units {
		ur := []rune(unit)
		switch {
		case len(current) == 0:
			current = ur
		case len(current)+1+len(ur) <= c.maxSize:
			current = append(current, ' ')
			current = append(current, ur...)
		default:
			contents = append(contents, string(current))
			current = ur
		}
	}
	if len(current) > 0 {
		// 过小的尾块并入前块，允许前块超出预算至多 minSize
		if len(contents) > 0 && len(current) < c.minSize {
			prev := []rune(contents[len(contents)-1])
			if len(prev)+1+len(current) <= c.maxSize+c.minSize {
				contents[len(contents)-1] = string(prev) + " " + string(current)
				current = nil
			}
		}
		if len(current) > 0 {
			contents = append(contents, string(current))
		}
	}

	// 添加重叠前缀
	chunks := make([]Chunk, 0, len(contents))
	for i, content := range contents {
		text := content
		if i > 0 && c.overlap > 0 {
			prev := []rune(contents[i-1])
			tail := prev
			if len(prev) > c.overlap {
				tail = prev[len(prev)-c.overlap:]
			}
			text = strings.TrimSpace(string(tail)) + " " + content
		}
		chunks = append(chunks, Chunk{
			Index:      i,
			Text:       text,
			TokenCount: c.tokenizer.CountTokens(text),
		})
	}

	c.logger.Debug("text chunked",
		zap.Int("chunks", len(chunks)),
		zap.Int("max_size", c.maxSize),
		zap.Int("overlap", c.overlap))

	return chunks
}

// splitUnits 将文本拆成不超过 maxSize 的打包单元：
// 段落 → 句子 → 硬切分。
func (c *Chunker) splitUnits(text string) []string {
	var units []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, sent := range splitSentences(para) {
			if len([]rune(sent)) <= c.maxSize {
				units = append(units, sent)
				continue
			}
			// 单个句子超过预算：按字符硬切分
			runes := []rune(sent)
			for start := 0; start < len(runes); start += c.maxSize {
				end := start + c.maxSize
				if end > len(runes) {
					end = len(runes)
				}
				piece := strings.TrimSpace(string(runes[start:end]))
				if piece != "" {
					units = append(units, piece)
				}
			}
		}
	}
	return units
}

// splitSentences 按句子结束标点切分段落。
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		// 标点后跟空白或文本结束才算句子边界，避免切断 "3.14"
		if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
			s := strings.TrimSpace(current.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '\n':
		return true
	}
	return false
}

// CleanText 清洗抽取文本：折叠多余空白、丢弃疑似抽取伪影的短行。
func CleanText(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blank = true
			continue
		}
		if len([]rune(trimmed)) <= 2 {
			continue
		}
		if blank && len(kept) > 0 {
			kept = append(kept, "")
		}
		blank = false
		kept = append(kept, strings.Join(strings.Fields(trimmed), " "))
	}
	return strings.Join(kept, "\n")
}
