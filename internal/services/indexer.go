package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/document"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/embedding"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/vectordb"
	"github.com/sirupsen/logrus"
)

// IndexBuilderConfig 索引构建配置
type IndexBuilderConfig struct {
	IndexType    string                // memory 或 faiss
	DistanceType vectordb.DistanceType // 距离类型
	BatchSize    int                   // 每批嵌入的片段数
	Workers      int                   // 并行批次数
}

// IndexBuilder 把规范化文本分块、嵌入并一次性构建只读索引
type IndexBuilder struct {
	splitter  *document.TextSplitter
	embedder  embedding.Client
	processor *embedding.BatchProcessor
	config    IndexBuilderConfig
	logger    *logrus.Logger
}

// NewIndexBuilder 创建索引构建器
func NewIndexBuilder(splitter *document.TextSplitter, embedder embedding.Client, cfg IndexBuilderConfig, logger *logrus.Logger) *IndexBuilder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.DistanceType == "" {
		cfg.DistanceType = vectordb.Cosine
	}
	return &IndexBuilder{
		splitter:  splitter,
		embedder:  embedder,
		processor: embedding.NewBatchProcessor(embedder, cfg.BatchSize, cfg.Workers),
		config:    cfg,
		logger:    logger,
	}
}

// Build 构建索引，失败时返回BuildError，不会产生部分索引
func (b *IndexBuilder) Build(ctx context.Context, text string) (vectordb.Index, error) {
	start := time.Now()

	// 只含空白的片段没有可检索的内容
	var passages []document.Passage
	for p := range b.splitter.Passages(text) {
		if strings.TrimSpace(p.Text) != "" {
			passages = append(passages, p)
		}
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	vectors, err := b.processor.Process(ctx, texts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, NewBuildError(ErrCodeBuildCancelled, "index build cancelled", err)
		}
		return nil, NewBuildError(ErrCodeEmbedFailed, "failed to embed passages", err)
	}

	docs := make([]vectordb.Document, len(passages))
	for i, p := range passages {
		docs[i] = vectordb.Document{
			ID:       fmt.Sprintf("passage-%d", p.Index),
			Position: p.Index,
			Text:     p.Text,
			Vector:   vectors[i],
			Metadata: map[string]interface{}{"start": p.Start},
		}
	}

	index, err := vectordb.Build(vectordb.Config{
		Type:         b.config.IndexType,
		Dimension:    b.embedder.Dimensions(),
		DistanceType: b.config.DistanceType,
	}, docs)
	if err != nil {
		return nil, NewBuildError(ErrCodeIndexFailed, "failed to build vector index", err)
	}

	b.logger.WithFields(logrus.Fields{
		"passages":   len(docs),
		"embedder":   b.embedder.Name(),
		"index":      b.config.IndexType,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Vector index built")
	return index, nil
}
