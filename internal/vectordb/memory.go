package vectordb

import (
	"fmt"
	"runtime"
	"sync"
)

// parallelThreshold 文档数量达到该值时并行计算距离
const parallelThreshold = 256

// MemoryIndex 内存中的暴力检索索引
// 文档在构建时一次性写入，之后只读
type MemoryIndex struct {
	dimension int
	distType  DistanceType
	docs      []Document
}

// NewMemoryIndex 从全部文档构建内存索引
func NewMemoryIndex(config Config, docs []Document) (Index, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	distType := config.DistanceType
	if distType != Cosine && distType != DotProduct && distType != Euclidean {
		distType = Cosine // 默认使用余弦距离
	}

	stored := make([]Document, len(docs))
	for i, doc := range docs {
		if err := ValidateVector(doc.Vector, config.Dimension); err != nil {
			return nil, fmt.Errorf("document %d: %w", doc.Position, err)
		}
		// 余弦距离下预先归一化，查询时只需点积
		if distType == Cosine {
			doc.Vector = normalizeVector(doc.Vector)
		}
		stored[i] = doc
	}

	return &MemoryIndex{
		dimension: config.Dimension,
		distType:  distType,
		docs:      stored,
	}, nil
}

// Search 相似度搜索
func (idx *MemoryIndex) Search(vector []float32, k int) ([]SearchResult, error) {
	if len(idx.docs) == 0 {
		return nil, ErrEmptyIndex
	}
	if err := ValidateVector(vector, idx.dimension); err != nil {
		return nil, err
	}
	if idx.distType == Cosine {
		vector = normalizeVector(vector)
	}

	results := make([]SearchResult, len(idx.docs))
	threads := runtime.NumCPU()
	if len(idx.docs) < parallelThreshold || threads <= 1 {
		idx.scoreRange(vector, results, 0, len(idx.docs))
	} else {
		perThread := (len(idx.docs) + threads - 1) / threads
		var wg sync.WaitGroup
		for start := 0; start < len(idx.docs); start += perThread {
			end := min(start+perThread, len(idx.docs))
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				idx.scoreRange(vector, results, start, end)
			}(start, end)
		}
		wg.Wait()
	}

	SortSearchResults(results)
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// scoreRange 计算[start, end)区间内文档的距离，各自写入对应槽位
func (idx *MemoryIndex) scoreRange(vector []float32, results []SearchResult, start, end int) {
	for i := start; i < end; i++ {
		doc := idx.docs[i]

		var dist float32
		switch idx.distType {
		case Cosine:
			// 两侧均已归一化
			dist = 1 - dotProduct(vector, doc.Vector)
		case DotProduct:
			dist = dotProduct(vector, doc.Vector)
		default:
			dist = euclideanDistance(vector, doc.Vector)
		}

		results[i] = SearchResult{
			Document: doc,
			Score:    DistanceToScore(dist, idx.distType),
			Distance: dist,
		}
	}
}

// Len 返回文档总数
func (idx *MemoryIndex) Len() int {
	return len(idx.docs)
}

// Dimension 返回向量维数
func (idx *MemoryIndex) Dimension() int {
	return idx.dimension
}

// Close 对于内存实现这是一个空操作
func (idx *MemoryIndex) Close() error {
	return nil
}

func init() {
	RegisterIndex("memory", NewMemoryIndex)
}
