package rag

import (
	"fmt"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer 为块提供 token 计数元数据。
// 分块边界本身按字符计算以保证确定性；token 计数仅作为元数据
// 随块记录，供下游上下文预算使用。
type Tokenizer interface {
	CountTokens(text string) int
}

// EstimatorTokenizer 基于字符的 token 估算器（CJK 感知）。
// 不需要外部编码数据，适合测试与离线环境。
type EstimatorTokenizer struct{}

// CountTokens 估算 token 数：CJK 字符按 1 token，其余按 4 字符/token。
func (EstimatorTokenizer) CountTokens(text string) int {
	cjk := 0
	other := 0
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			cjk++
		} else {
			other++
		}
	}
	n := cjk + (other+3)/4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// TiktokenTokenizer 基于 tiktoken 编码的精确分词器。
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer 创建 tiktoken 分词器。
// model 指定编码模型（如 "gpt-4o", "gpt-3.5-turbo"）。
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("create tiktoken encoding for %s: %w", model, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// CountTokens 返回文本的精确 token 数。
func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
