package llm

import (
	"context"
	"time"
)

// Client 补全服务客户端
// 一次调用发送一条用户消息，返回补全文本
type Client interface {
	// Generate 根据提示词生成回答
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error)

	// Name 返回模型名称
	Name() string
}

// 内置提供方名称
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
)

const (
	// DefaultGroqEndpoint Groq聊天补全端点
	DefaultGroqEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	// DefaultOpenAIEndpoint OpenAI聊天补全端点
	DefaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
)

// Provider OpenAI兼容的补全服务提供方
type Provider struct {
	Name     string // 提供方名称
	Endpoint string // 默认端点
	Model    string // 默认模型
}

var providers = map[string]Provider{
	ProviderGroq:   {Name: ProviderGroq, Endpoint: DefaultGroqEndpoint, Model: ModelLlama4Scout},
	ProviderOpenAI: {Name: ProviderOpenAI, Endpoint: DefaultOpenAIEndpoint, Model: ModelGPT4oMini},
}

// LookupProvider 查找提供方
func LookupProvider(name string) (Provider, bool) {
	p, ok := providers[name]
	return p, ok
}

// Config 客户端配置
type Config struct {
	APIKey      string        // API密钥
	BaseURL     string        // 聊天补全端点
	Model       string        // 模型名称
	Timeout     time.Duration // 单次请求超时
	MaxRetries  int           // 5xx和网络错误的重试次数
	MaxTokens   int           // 0表示由服务端决定
	Temperature float32       // 采样温度(0.0-2.0)
}

// Option 客户端配置选项
type Option func(*Config)

// WithAPIKey 设置API密钥
func WithAPIKey(apiKey string) Option {
	return func(c *Config) { c.APIKey = apiKey }
}

// WithBaseURL 覆盖提供方的默认端点
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel 覆盖提供方的默认模型
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithTimeout 设置请求超时
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithMaxRetries 设置重试次数
func WithMaxRetries(retries int) Option {
	return func(c *Config) { c.MaxRetries = retries }
}

// WithMaxTokens 设置最大生成Token数
func WithMaxTokens(tokens int) Option {
	return func(c *Config) { c.MaxTokens = tokens }
}

// WithTemperature 设置采样温度
func WithTemperature(temp float32) Option {
	return func(c *Config) { c.Temperature = temp }
}

// newConfig 以提供方默认值为基础应用选项
func newConfig(p Provider, opts ...Option) *Config {
	cfg := &Config{
		BaseURL:     p.Endpoint,
		Model:       p.Model,
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// GenerateOption 单次请求的选项
type GenerateOption func(*GenerateOptions)

// GenerateOptions 单次请求覆盖的参数，nil表示使用客户端配置
type GenerateOptions struct {
	MaxTokens   *int
	Temperature *float32
}

// WithGenerateMaxTokens 覆盖本次请求的最大Token数
func WithGenerateMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = &tokens }
}

// WithGenerateTemperature 覆盖本次请求的采样温度
func WithGenerateTemperature(temp float32) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = &temp }
}

// NewClient 按提供方名称创建客户端
func NewClient(name string, opts ...Option) (Client, error) {
	p, ok := LookupProvider(name)
	if !ok {
		return nil, NewLLMError(ErrCodeInvalidRequest, "unknown completion provider: "+name)
	}
	client, err := newChatClient(newConfig(p, opts...))
	if err != nil {
		return nil, err
	}
	return client, nil
}
