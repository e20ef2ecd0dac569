package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaHost 本地Ollama服务地址
	DefaultOllamaHost = "http://127.0.0.1:11434"
	// ModelAllMiniLM Ollama中的all-MiniLM-L6-v2，384维
	ModelAllMiniLM = "all-minilm"
)

// OllamaClient 通过本地Ollama服务调用预训练句向量模型
// /api/embeddings 每次只接受一条文本，批量请求逐条发送
type OllamaClient struct {
	httpClient *http.Client
	host       string
	model      string
	dimensions int
	maxRetries int
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// NewOllamaClient 创建Ollama嵌入客户端
func NewOllamaClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	host := strings.TrimRight(cfg.BaseURL, "/")
	if host == "" {
		host = DefaultOllamaHost
	}
	model := cfg.Model
	if model == "" {
		model = ModelAllMiniLM
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OllamaClient{
		httpClient: &http.Client{Timeout: timeout},
		host:       host,
		model:      model,
		dimensions: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Name 返回模型名称
func (c *OllamaClient) Name() string {
	return c.model
}

// Dimensions 返回向量维度
func (c *OllamaClient) Dimensions() int {
	return c.dimensions
}

// Embed 生成单条文本的向量
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewEmbeddingError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		vec, retry, err := c.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

// EmbedBatch 逐条生成向量，结果顺序与输入一致
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

// embedOnce 发送一次请求，返回是否值得重试
func (c *OllamaClient) embedOnce(ctx context.Context, text string) ([]float32, bool, error) {
	payload, err := json.Marshal(ollamaRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, false, NewEmbeddingError(ErrCodeInvalidRequest, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, false, NewEmbeddingError(ErrCodeInvalidRequest, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, false, NewEmbeddingError(ErrCodeTimeout, err.Error())
		}
		return nil, true, NewEmbeddingError(ErrCodeNetworkError, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		message := fmt.Sprintf("ollama embeddings status %s: %s", resp.Status, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 500 {
			return nil, true, NewEmbeddingError(ErrCodeServerError, message)
		}
		return nil, false, NewEmbeddingError(ErrCodeInvalidRequest, message)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, NewEmbeddingError(ErrCodeServerError, "decode ollama response: "+err.Error())
	}
	if out.Error != "" {
		return nil, false, NewEmbeddingError(ErrCodeServerError, out.Error)
	}
	if len(out.Embedding) == 0 {
		return nil, false, NewEmbeddingError(ErrCodeServerError, "ollama returned an empty embedding")
	}
	if c.dimensions > 0 && len(out.Embedding) != c.dimensions {
		return nil, false, NewEmbeddingError(ErrCodeDimension,
			fmt.Sprintf("expected dimension %d, got %d", c.dimensions, len(out.Embedding)))
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, false, nil
}

func init() {
	RegisterClient("ollama", NewOllamaClient)
}
