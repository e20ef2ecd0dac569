package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/embedding"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/vectordb"
)

// DefaultRetrievalK 默认返回的片段数量
const DefaultRetrievalK = 4

// PassageRef 检索到的片段
type PassageRef struct {
	Position int     `json:"position"`
	Score    float32 `json:"score"`
	Text     string  `json:"text"`
}

// Retrieval 检索结果
type Retrieval struct {
	Context  string       // 按相似度顺序用换行拼接的片段文本
	Passages []PassageRef // 同顺序的片段
}

// Retriever 用建索引时的同一嵌入模型检索最相似的k个片段
type Retriever struct {
	embedder embedding.Client
	k        int
}

// NewRetriever 创建检索器
func NewRetriever(embedder embedding.Client, k int) *Retriever {
	if k <= 0 {
		k = DefaultRetrievalK
	}
	return &Retriever{embedder: embedder, k: k}
}

// K 返回检索数量
func (r *Retriever) K() int {
	return r.k
}

// Retrieve 检索与查询最相似的片段
func (r *Retriever) Retrieve(ctx context.Context, index vectordb.Index, query string) (*Retrieval, error) {
	if index == nil {
		return nil, NewRetrievalError(ErrCodeNoWorkbook, "index has not been built", nil)
	}
	if index.Len() == 0 {
		return nil, NewRetrievalError(ErrCodeEmptyIndex, "index contains no passages", vectordb.ErrEmptyIndex)
	}
	if strings.TrimSpace(query) == "" {
		return nil, NewRetrievalError(ErrCodeEmptyQuery, "query cannot be empty", nil)
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, NewRetrievalError(ErrCodeQueryEmbedding, "failed to embed query", err)
	}

	results, err := index.Search(vector, r.k)
	if err != nil {
		if errors.Is(err, vectordb.ErrEmptyIndex) {
			return nil, NewRetrievalError(ErrCodeEmptyIndex, "index contains no passages", err)
		}
		return nil, NewRetrievalError(ErrCodeSearchFailed, "vector search failed", err)
	}

	out := &Retrieval{Passages: make([]PassageRef, len(results))}
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Document.Text
		out.Passages[i] = PassageRef{Position: res.Document.Position, Score: res.Score, Text: res.Document.Text}
	}
	out.Context = strings.Join(texts, "\n")
	return out, nil
}
