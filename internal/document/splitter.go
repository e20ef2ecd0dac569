package document

import (
	"fmt"
	"iter"
	"slices"
)

// SplitterConfig 分段器配置
type SplitterConfig struct {
	ChunkSize    int // 分块大小（按字符数）
	ChunkOverlap int // 分块重叠大小（字符数）
}

// DefaultSplitterConfig 返回默认分段器配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    500,
		ChunkOverlap: 50,
	}
}

// Validate 检查分块参数，重叠必须小于分块大小
func (c SplitterConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// TextSplitter 固定长度、带重叠的文本分段器
type TextSplitter struct {
	config SplitterConfig
}

// NewTextSplitter 创建新的文本分段器
func NewTextSplitter(config SplitterConfig) (*TextSplitter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TextSplitter{config: config}, nil
}

// Config 返回分段配置
func (s *TextSplitter) Config() SplitterConfig {
	return s.config
}

// Passages 惰性地从左到右切分文本
// 除第一个片段外，每个片段从上一个片段结尾前ChunkOverlap个字符处开始
func (s *TextSplitter) Passages(text string) iter.Seq[Passage] {
	return func(yield func(Passage) bool) {
		runes := []rune(text)
		total := len(runes)
		step := s.config.ChunkSize - s.config.ChunkOverlap

		for index, start := 0, 0; start < total; index, start = index+1, start+step {
			end := min(start+s.config.ChunkSize, total)
			if !yield(Passage{Index: index, Start: start, Text: string(runes[start:end])}) {
				return
			}
			if end == total {
				return
			}
		}
	}
}

// Split 收集全部片段
func (s *TextSplitter) Split(text string) []Passage {
	return slices.Collect(s.Passages(text))
}
