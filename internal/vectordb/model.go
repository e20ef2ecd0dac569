package vectordb

import (
	"errors"
	"fmt"
)

// 常用错误定义
var (
	ErrEmptyVector      = errors.New("empty vector")
	ErrEmptyIndex       = errors.New("index has no documents")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
)

// Document 已嵌入的文本片段
type Document struct {
	ID       string                 // 唯一标识符
	Position int                    // 在规范化文本中的片段序号
	Text     string                 // 原始文本内容
	Vector   []float32              // 向量表示
	Metadata map[string]interface{} // 附加元数据
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// SearchResult 搜索结果
type SearchResult struct {
	Document Document // 文档对象
	Score    float32  // 相似度得分
	Distance float32  // 计算的距离
}

// Index 只读的相似度索引
// 构建完成后不再修改，可被多个查询并发读取
type Index interface {
	// Search 返回最相似的k个文档，按相似度降序
	Search(vector []float32, k int) ([]SearchResult, error)

	// Len 返回文档总数
	Len() int

	// Dimension 返回向量维数
	Dimension() int

	// Close 释放索引资源
	Close() error
}

// Config 向量索引配置
type Config struct {
	Type         string       // 索引类型，如 "memory", "faiss"
	Dimension    int          // 向量维度
	DistanceType DistanceType // 距离计算类型
}

// Factory 索引工厂函数类型，一次性从全部文档构建
type Factory func(config Config, docs []Document) (Index, error)

// IndexRegistry 注册可用的索引实现
var IndexRegistry = map[string]Factory{}

// RegisterIndex 注册索引工厂函数
func RegisterIndex(name string, factory Factory) {
	IndexRegistry[name] = factory
}

// Registered 判断索引类型是否编译进了当前二进制
func Registered(name string) bool {
	_, ok := IndexRegistry[name]
	return ok
}

// Build 根据配置构建索引
func Build(config Config, docs []Document) (Index, error) {
	if config.DistanceType == "" {
		config.DistanceType = Cosine
	}
	factory, ok := IndexRegistry[config.Type]
	if !ok {
		if config.Type != "" {
			return nil, fmt.Errorf("index type not registered: %s", config.Type)
		}
		factory = NewMemoryIndex
	}
	return factory(config, docs)
}
