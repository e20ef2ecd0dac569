//go:build faiss

package vectordb

import (
	"fmt"
	"math"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissIndex 基于Faiss平面索引的实现
// 需要本地安装libfaiss_c，使用 -tags faiss 编译
type FaissIndex struct {
	index     faiss.Index
	docs      []Document // Faiss内部序号即切片下标
	dimension int
	distType  DistanceType
}

// NewFaissIndex 从全部文档构建Faiss索引
func NewFaissIndex(config Config, docs []Document) (Index, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	index, err := createFaissIndex(config.Dimension, distType)
	if err != nil {
		return nil, fmt.Errorf("failed to create Faiss index: %v", err)
	}

	stored := make([]Document, len(docs))
	flat := make([]float32, 0, len(docs)*config.Dimension)
	for i, doc := range docs {
		if err := ValidateVector(doc.Vector, config.Dimension); err != nil {
			index.Delete()
			return nil, fmt.Errorf("document %d: %w", doc.Position, err)
		}
		if distType == Cosine {
			doc.Vector = normalizeVector(doc.Vector)
		}
		stored[i] = doc
		flat = append(flat, doc.Vector...)
	}

	if len(flat) > 0 {
		if err := index.Add(flat); err != nil {
			index.Delete()
			return nil, fmt.Errorf("failed to add vectors: %v", err)
		}
	}

	return &FaissIndex{
		index:     index,
		docs:      stored,
		dimension: config.Dimension,
		distType:  distType,
	}, nil
}

// createFaissIndex 创建Faiss索引
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	switch distType {
	case Cosine, DotProduct:
		return faiss.NewIndexFlat(dimension, faiss.MetricInnerProduct)
	default:
		return faiss.NewIndexFlat(dimension, faiss.MetricL2)
	}
}

// Search 相似度搜索
func (f *FaissIndex) Search(vector []float32, k int) ([]SearchResult, error) {
	if len(f.docs) == 0 {
		return nil, ErrEmptyIndex
	}
	if err := ValidateVector(vector, f.dimension); err != nil {
		return nil, err
	}
	if f.distType == Cosine {
		vector = normalizeVector(vector)
	}
	if k <= 0 || k > len(f.docs) {
		k = len(f.docs)
	}

	distances, labels, err := f.index.Search(vector, int64(k))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %v", err)
	}

	results := make([]SearchResult, 0, len(labels))
	for i, label := range labels {
		if label < 0 || int(label) >= len(f.docs) {
			continue
		}
		dist := distances[i]
		switch f.distType {
		case Cosine:
			// 内积即余弦相似度
			dist = 1 - dist
		case Euclidean:
			// Faiss返回的是平方距离
			dist = sqrt32(dist)
		}
		results = append(results, SearchResult{
			Document: f.docs[label],
			Score:    DistanceToScore(dist, f.distType),
			Distance: dist,
		})
	}

	SortSearchResults(results)
	return results, nil
}

// Len 返回文档总数
func (f *FaissIndex) Len() int {
	return len(f.docs)
}

// Dimension 返回向量维数
func (f *FaissIndex) Dimension() int {
	return f.dimension
}

// Close 释放Faiss索引
func (f *FaissIndex) Close() error {
	f.index.Delete()
	return nil
}

func sqrt32(v float32) float32 {
	if v <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(v)))
}

func init() {
	RegisterIndex("faiss", NewFaissIndex)
}
