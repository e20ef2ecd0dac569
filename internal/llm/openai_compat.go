package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ChatClient OpenAI兼容聊天补全接口的客户端
type ChatClient struct {
	apiKey      string       // API密钥
	baseURL     string       // API端点
	model       string       // 模型名称
	httpClient  *http.Client // HTTP客户端
	maxRetries  int          // 最大重试次数
	maxTokens   int          // 最大生成Token数
	temperature float32      // 温度参数
}

// newChatClient 创建聊天补全客户端
func newChatClient(cfg *Config) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}
	if cfg.BaseURL == "" {
		return nil, NewLLMError(ErrCodeInvalidRequest, "completion endpoint is required")
	}

	return &ChatClient{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name 返回模型名称
func (c *ChatClient) Name() string {
	return c.model
}

// Generate 以单条用户消息发送提示词
func (c *ChatClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	opts := &GenerateOptions{}
	for _, opt := range options {
		opt(opts)
	}

	req := &ChatCompletionRequest{
		Model:    c.model,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}

	temp := c.temperature
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}
	req.Temperature = &temp

	if opts.MaxTokens != nil {
		req.MaxTokens = opts.MaxTokens
	} else if c.maxTokens > 0 {
		maxTokens := c.maxTokens
		req.MaxTokens = &maxTokens
	}

	status, body, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.processResponse(status, body)
}

// sendRequest 发送请求，网络错误、限流和5xx会按指数退避重试
func (c *ChatClient) sendRequest(ctx context.Context, req *ChatCompletionRequest) (int, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	var (
		status  int
		body    []byte
		lastErr error
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, nil, classifyTransportError(ctx.Err())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		status, body, lastErr = c.do(ctx, payload)
		if lastErr != nil {
			if IsTimeout(lastErr) {
				return 0, nil, lastErr
			}
			continue
		}
		if status != http.StatusTooManyRequests && status < 500 {
			break
		}
	}

	if lastErr != nil {
		return 0, nil, lastErr
	}
	return status, body, nil
}

// do 执行一次HTTP请求
func (c *ChatClient) do(ctx context.Context, payload []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, classifyTransportError(err)
	}
	return resp.StatusCode, body, nil
}

// processResponse 解析响应，任何无法识别的结构都返回错误而不是panic
func (c *ChatClient) processResponse(status int, body []byte) (*Response, error) {
	var parsed ChatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if status != http.StatusOK {
			return nil, statusError(status, fmt.Sprintf("API error (status %d): %s", status, truncate(string(body), 200)))
		}
		return nil, NewLLMError(ErrCodeMalformedResponse, fmt.Sprintf("%s: %v", ErrMsgMalformedResponse, err))
	}

	if parsed.Error != nil && parsed.Error.Message != "" {
		err := statusError(status, parsed.Error.Message)
		if err.Code == ErrCodeServerError {
			err.Code = ErrCodeAPIError
		}
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError(status, fmt.Sprintf("API error (status %d): %s", status, truncate(string(body), 200)))
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return nil, NewLLMError(ErrCodeMalformedResponse, ErrMsgMalformedResponse)
	}

	result := &Response{
		Text:       parsed.Choices[0].Message.Content,
		ModelName:  c.model,
		FinishTime: time.Now(),
	}
	if parsed.Model != "" {
		result.ModelName = parsed.Model
	}
	if parsed.Usage != nil {
		result.TokenCount = parsed.Usage.TotalTokens
	}
	return result, nil
}

// statusError 根据HTTP状态码选择错误码
func statusError(status int, message string) LLMError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewLLMError(ErrCodeInvalidAPIKey, message)
	case status == http.StatusTooManyRequests:
		return NewLLMError(ErrCodeRateLimited, message)
	case status == http.StatusRequestEntityTooLarge:
		return NewLLMError(ErrCodeContextTooLong, message)
	case status == http.StatusServiceUnavailable:
		return NewLLMError(ErrCodeModelOverload, message)
	case status >= 400 && status < 500:
		return NewLLMError(ErrCodeInvalidRequest, message)
	default:
		return NewLLMError(ErrCodeServerError, message)
	}
}

// classifyTransportError 区分超时和其他网络错误
func classifyTransportError(err error) LLMError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewLLMError(ErrCodeTimeout, fmt.Sprintf("%s: %v", ErrMsgTimeout, err))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewLLMError(ErrCodeTimeout, fmt.Sprintf("%s: %v", ErrMsgTimeout, err))
	}
	return NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
