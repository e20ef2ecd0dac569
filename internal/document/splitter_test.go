package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reconstruct 拼接每个片段中不重叠的部分
func reconstruct(passages []Passage, overlap int) string {
	var b strings.Builder
	for i, p := range passages {
		runes := []rune(p.Text)
		if i > 0 {
			runes = runes[overlap:]
		}
		b.WriteString(string(runes))
	}
	return b.String()
}

// TestSplitDefaultLengths 测试默认参数下的片段长度
func TestSplitDefaultLengths(t *testing.T) {
	splitter, err := NewTextSplitter(DefaultSplitterConfig())
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 120) // 1200 个字符
	passages := splitter.Split(text)
	require.Len(t, passages, 3)

	lengths := []int{len(passages[0].Text), len(passages[1].Text), len(passages[2].Text)}
	assert.Equal(t, []int{500, 500, 300}, lengths)
	assert.Equal(t, []int{0, 450, 900}, []int{passages[0].Start, passages[1].Start, passages[2].Start})

	// 后一个片段以前一个片段最后50个字符开头
	for i := 1; i < len(passages); i++ {
		prev := passages[i-1].Text
		assert.Equal(t, prev[len(prev)-50:], passages[i].Text[:50])
	}
	assert.Equal(t, text, reconstruct(passages, 50))
}

// TestSplitShortText 测试短文本只产生一个片段
func TestSplitShortText(t *testing.T) {
	splitter, err := NewTextSplitter(DefaultSplitterConfig())
	require.NoError(t, err)

	passages := splitter.Split("Tamimi Group  Jeddah  5M revenue")
	require.Len(t, passages, 1)
	assert.Equal(t, "Tamimi Group  Jeddah  5M revenue", passages[0].Text)

	exact := strings.Repeat("x", 500)
	require.Len(t, splitter.Split(exact), 1)

	assert.Empty(t, splitter.Split(""))
}

// TestSplitCoverage 测试不同参数下的往返覆盖
func TestSplitCoverage(t *testing.T) {
	text := strings.Repeat("مدائن العقارية، الرياض. Tamimi Group, Jeddah. ", 37)

	cases := []SplitterConfig{
		{ChunkSize: 500, ChunkOverlap: 50},
		{ChunkSize: 100, ChunkOverlap: 0},
		{ChunkSize: 64, ChunkOverlap: 63},
		{ChunkSize: 7, ChunkOverlap: 3},
	}
	for _, cfg := range cases {
		splitter, err := NewTextSplitter(cfg)
		require.NoError(t, err)

		passages := splitter.Split(text)
		require.NotEmpty(t, passages)
		for i, p := range passages {
			n := len([]rune(p.Text))
			assert.LessOrEqual(t, n, cfg.ChunkSize)
			if i < len(passages)-1 {
				assert.Equal(t, cfg.ChunkSize, n)
			}
			assert.Equal(t, i, p.Index)
		}
		assert.Equal(t, text, reconstruct(passages, cfg.ChunkOverlap))
	}
}

// TestSplitDeterministic 测试相同输入产生相同片段
func TestSplitDeterministic(t *testing.T) {
	splitter, err := NewTextSplitter(SplitterConfig{ChunkSize: 40, ChunkOverlap: 8})
	require.NoError(t, err)

	text := strings.Repeat("Madaen Real Estate, Riyadh; ", 20)
	assert.Equal(t, splitter.Split(text), splitter.Split(text))
}

// TestPassagesLazy 测试提前停止迭代
func TestPassagesLazy(t *testing.T) {
	splitter, err := NewTextSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: 2})
	require.NoError(t, err)

	count := 0
	for p := range splitter.Passages(strings.Repeat("a", 1000)) {
		count++
		if p.Index == 2 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

// TestSplitterConfigValidate 测试非法分块参数
func TestSplitterConfigValidate(t *testing.T) {
	_, err := NewTextSplitter(SplitterConfig{ChunkSize: 50, ChunkOverlap: 50})
	assert.Error(t, err)

	_, err = NewTextSplitter(SplitterConfig{ChunkSize: 0})
	assert.Error(t, err)

	_, err = NewTextSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: -1})
	assert.Error(t, err)
}
