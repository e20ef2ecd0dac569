package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

// TestHashingClientDeterministic 测试本地嵌入的确定性和归一化
func TestHashingClientDeterministic(t *testing.T) {
	client, err := NewClient("local", WithDimensions(128))
	require.NoError(t, err)
	assert.Equal(t, 128, client.Dimensions())
	assert.Equal(t, ModelLocalHashing, client.Name())

	ctx := context.Background()
	v1, err := client.Embed(ctx, "Tamimi Group Jeddah 5M revenue")
	require.NoError(t, err)
	v2, err := client.Embed(ctx, "Tamimi Group Jeddah 5M revenue")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 128)
	assert.InDelta(t, 1.0, cosine(v1, v1), 1e-5)
}

// TestHashingClientSimilarity 测试共享词汇的文本更相似
func TestHashingClientSimilarity(t *testing.T) {
	client, err := NewHashingClient(WithDimensions(384))
	require.NoError(t, err)

	ctx := context.Background()
	query, _ := client.Embed(ctx, "compare Madaen and Tamimi")
	related, _ := client.Embed(ctx, "Tamimi Group  Jeddah  5M revenue")
	unrelated, _ := client.Embed(ctx, "quarterly weather forecast for Oslo")

	assert.Greater(t, cosine(query, related), cosine(query, unrelated))
}

// TestHashingClientEmptyInput 测试空文本
func TestHashingClientEmptyInput(t *testing.T) {
	client, err := NewHashingClient()
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = NewHashingClient(WithDimensions(0))
	assert.Error(t, err)
}

// TestNewClientUnknown 测试未注册的客户端类型
func TestNewClientUnknown(t *testing.T) {
	_, err := NewClient("minilm")
	var embErr EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, ErrCodeInvalidRequest, embErr.Code)
}

// TestBatchProcessorOrder 测试分批并行处理后保持顺序
func TestBatchProcessorOrder(t *testing.T) {
	client := NewMockClient(t)
	client.On("EmbedBatch", mock.Anything, mock.Anything).Return(
		func(texts []string) [][]float32 {
			out := make([][]float32, len(texts))
			for i, text := range texts {
				var n float32
				fmt.Sscanf(text, "p%f", &n)
				out[i] = []float32{n}
			}
			return out
		}, nil)

	texts := make([]string, 23)
	for i := range texts {
		texts[i] = fmt.Sprintf("p%d", i)
	}

	vectors, err := NewBatchProcessor(client, 4, 3).Process(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, vec := range vectors {
		assert.Equal(t, float32(i), vec[0])
	}
	client.AssertNumberOfCalls(t, "EmbedBatch", 6)
}

// TestBatchProcessorError 测试任一批次失败时整体失败
func TestBatchProcessorError(t *testing.T) {
	client := NewMockClient(t)
	client.On("EmbedBatch", mock.Anything, mock.Anything).
		Return(nil, NewEmbeddingError(ErrCodeServerError, "model unavailable")).Maybe()

	_, err := NewBatchProcessor(client, 2, 2).Process(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

// TestOpenAIClientEmbedBatch 测试OpenAI兼容接口的批量嵌入
func TestOpenAIClientEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		// 故意倒序返回，客户端应按index还原
		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
	defer server.Close()

	client, err := NewClient("openai",
		WithAPIKey("test-key"),
		WithBaseURL(server.URL+"/v1"),
		WithDimensions(2),
		WithMaxRetries(0),
	)
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{0, 1}, vectors[0])
	assert.Equal(t, []float32{2, 1}, vectors[2])
}

// TestOpenAIClientUnauthorized 测试鉴权失败的错误分类
func TestOpenAIClientUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("wrong"), WithBaseURL(server.URL+"/v1"), WithMaxRetries(0))
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello")
	var embErr EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, ErrCodeInvalidAPIKey, embErr.Code)

	_, err = NewOpenAIClient()
	assert.Error(t, err)
}

func newOllamaServer(t *testing.T, dims int, status *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		if code := status.Load(); code != 0 {
			status.Store(0)
			w.WriteHeader(int(code))
			_, _ = w.Write([]byte(`{"error":"model is loading"}`))
			return
		}

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ModelAllMiniLM, req.Model)

		vec := make([]float64, dims)
		vec[len(req.Prompt)%dims] = 1
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embedding": vec})
	}))
	t.Cleanup(server.Close)
	return server
}

// TestOllamaClientEmbedBatch 测试逐条请求并保持顺序
func TestOllamaClientEmbedBatch(t *testing.T) {
	var status atomic.Int32
	server := newOllamaServer(t, 8, &status)

	client, err := NewClient("ollama", WithBaseURL(server.URL+"/"), WithDimensions(8), WithMaxRetries(0))
	require.NoError(t, err)
	assert.Equal(t, ModelAllMiniLM, client.Name())
	assert.Equal(t, 8, client.Dimensions())

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, vec := range vectors {
		require.Len(t, vec, 8)
		assert.Equal(t, float32(1), vec[i+1])
	}

	_, err = client.Embed(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

// TestOllamaClientRetriesServerErrors 测试5xx重试
func TestOllamaClientRetriesServerErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	server := newOllamaServer(t, 4, &status)

	client, err := NewOllamaClient(WithBaseURL(server.URL), WithDimensions(4), WithMaxRetries(1))
	require.NoError(t, err)

	vec, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

// TestOllamaClientErrors 测试模型缺失和维度不一致
func TestOllamaClientErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	server := newOllamaServer(t, 4, &status)

	client, err := NewOllamaClient(WithBaseURL(server.URL), WithDimensions(4), WithMaxRetries(3))
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello")
	var embErr EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, ErrCodeInvalidRequest, embErr.Code)
	assert.Contains(t, embErr.Message, "model is loading")

	mismatched, err := NewOllamaClient(WithBaseURL(server.URL), WithDimensions(384), WithMaxRetries(0))
	require.NoError(t, err)
	_, err = mismatched.Embed(context.Background(), "hello")
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, ErrCodeDimension, embErr.Code)
}
