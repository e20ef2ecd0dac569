package vectordb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocs(vectors ...[]float32) []Document {
	docs := make([]Document, len(vectors))
	for i, v := range vectors {
		docs[i] = Document{
			ID:       fmt.Sprintf("p-%d", i),
			Position: i,
			Text:     fmt.Sprintf("passage %d", i),
			Vector:   v,
		}
	}
	return docs
}

// TestMemoryIndexSearchOrder 测试按相似度降序返回
func TestMemoryIndexSearchOrder(t *testing.T) {
	idx, err := Build(Config{Type: "memory", Dimension: 3}, testDocs(
		[]float32{0, 1, 0},
		[]float32{1, 0, 0},
		[]float32{0.9, 0.1, 0},
		[]float32{0, 0, 1},
	))
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 3, idx.Dimension())

	results, err := idx.Search([]float32{2, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Document.Position)
	assert.Equal(t, 2, results[1].Document.Position)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

// TestMemoryIndexTieBreak 测试相同评分按位置排序，结果稳定
func TestMemoryIndexTieBreak(t *testing.T) {
	docs := make([]Document, 0, 300)
	for i := 0; i < 300; i++ {
		docs = append(docs, Document{ID: fmt.Sprint(i), Position: i, Vector: []float32{1, 1}})
	}
	idx, err := NewMemoryIndex(Config{Dimension: 2}, docs)
	require.NoError(t, err)

	first, err := idx.Search([]float32{1, 1}, 4)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := idx.Search([]float32{1, 1}, 4)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	for i, r := range first {
		assert.Equal(t, i, r.Document.Position)
	}
}

// TestMemoryIndexKLargerThanSize 测试k大于文档数
func TestMemoryIndexKLargerThanSize(t *testing.T) {
	idx, err := NewMemoryIndex(Config{Dimension: 2}, testDocs([]float32{1, 0}, []float32{0, 1}))
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

// TestMemoryIndexEmpty 测试空索引
func TestMemoryIndexEmpty(t *testing.T) {
	idx, err := NewMemoryIndex(Config{Dimension: 2}, nil)
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 0}, 4)
	assert.True(t, errors.Is(err, ErrEmptyIndex))
}

// TestMemoryIndexValidation 测试向量维度校验
func TestMemoryIndexValidation(t *testing.T) {
	_, err := NewMemoryIndex(Config{Dimension: 3}, testDocs([]float32{1, 0}))
	assert.True(t, errors.Is(err, ErrInvalidDimension))

	_, err = NewMemoryIndex(Config{Dimension: 0}, nil)
	assert.Error(t, err)

	idx, err := NewMemoryIndex(Config{Dimension: 2}, testDocs([]float32{1, 0}))
	require.NoError(t, err)
	_, err = idx.Search([]float32{1, 0, 0}, 1)
	assert.True(t, errors.Is(err, ErrInvalidDimension))
	_, err = idx.Search(nil, 1)
	assert.True(t, errors.Is(err, ErrEmptyVector))
}

// TestMemoryIndexDoesNotAliasInput 测试构建后修改输入不影响索引
func TestMemoryIndexDoesNotAliasInput(t *testing.T) {
	docs := testDocs([]float32{3, 4})
	idx, err := NewMemoryIndex(Config{Dimension: 2, DistanceType: Euclidean}, docs)
	require.NoError(t, err)

	docs[0].Text = "changed"
	results, err := idx.Search([]float32{3, 4}, 1)
	require.NoError(t, err)
	assert.Equal(t, "passage 0", results[0].Document.Text)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
}

// TestBuildUnknownType 测试未注册的索引类型
func TestBuildUnknownType(t *testing.T) {
	_, err := Build(Config{Type: "qdrant", Dimension: 2}, nil)
	assert.Error(t, err)

	assert.True(t, Registered("memory"))
	assert.False(t, Registered("qdrant"))
}

// TestComputeDistance 测试距离计算
func TestComputeDistance(t *testing.T) {
	d, err := ComputeDistance([]float32{1, 0}, []float32{0, 1}, Cosine)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-6)

	d, err = ComputeDistance([]float32{0, 0}, []float32{3, 4}, Euclidean)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-6)

	_, err = ComputeDistance([]float32{1}, []float32{1, 2}, Cosine)
	assert.Error(t, err)
}
