package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// ModelLocalHashing 本地哈希嵌入模型名称
const ModelLocalHashing = "local-hashing"

// trigramWeight 字符三元组相对整词的权重
const trigramWeight = 0.5

// HashingClient 本地特征哈希嵌入
// 词和字符三元组被哈希到固定维度的桶中，结果做L2归一化，不依赖网络，完全确定
type HashingClient struct {
	dimensions int
}

// NewHashingClient 创建本地哈希嵌入客户端
func NewHashingClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.Dimensions <= 0 {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, "dimensions must be positive")
	}
	return &HashingClient{dimensions: cfg.Dimensions}, nil
}

// Name 返回模型名称
func (c *HashingClient) Name() string {
	return ModelLocalHashing
}

// Dimensions 返回向量维度
func (c *HashingClient) Dimensions() int {
	return c.dimensions
}

// Embed 生成单条文本的向量表示
func (c *HashingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, NewEmbeddingError(ErrCodeTimeout, err.Error())
	}
	return c.vectorize(text), nil
}

// EmbedBatch 批量生成向量
func (c *HashingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (c *HashingClient) vectorize(text string) []float32 {
	vec := make([]float32, c.dimensions)
	for _, token := range tokenize(text) {
		c.add(vec, token, 1)

		padded := []rune("#" + token + "#")
		for i := 0; i+3 <= len(padded); i++ {
			c.add(vec, string(padded[i:i+3]), trigramWeight)
		}
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// add 带符号的哈希累加，减少桶冲突带来的偏差
func (c *HashingClient) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(c.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

// tokenize 按非字母数字切分并转为小写
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// 在包初始化时注册本地嵌入客户端
func init() {
	RegisterClient("local", NewHashingClient)
}
