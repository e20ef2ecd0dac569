package llm

import "time"

// MessageRole 消息角色类型
type MessageRole string

const (
	// RoleSystem 系统角色
	RoleSystem MessageRole = "system"
	// RoleUser 用户角色
	RoleUser MessageRole = "user"
	// RoleAssistant 助手角色
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息结构
type Message struct {
	Role    MessageRole `json:"role"`    // 角色
	Content string      `json:"content"` // 内容
}

// ChatCompletionRequest OpenAI兼容的聊天补全请求
type ChatCompletionRequest struct {
	Model       string    `json:"model"`                 // 模型名称
	Messages    []Message `json:"messages"`              // 消息列表
	Temperature *float32  `json:"temperature,omitempty"` // 采样温度
	MaxTokens   *int      `json:"max_tokens,omitempty"`  // 最大生成Token数
}

// ChatCompletionResponse 聊天补全响应
// 成功时包含choices，失败时包含error
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *ChatUsage   `json:"usage"`
	Error   *APIError    `json:"error"`
}

// ChatChoice 输出选择
type ChatChoice struct {
	Index        int      `json:"index"`
	FinishReason string   `json:"finish_reason"`
	Message      *Message `json:"message"`
}

// ChatUsage 资源使用情况
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError 服务端返回的错误对象
type APIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"` // 不同服务商可能是字符串或数字
}

// Response 统一的响应结构
type Response struct {
	Text       string    // 生成的文本
	TokenCount int       // 使用的token数
	ModelName  string    // 使用的模型名称
	FinishTime time.Time // 完成时间
}

// Model 常用模型名称
const (
	ModelLlama4Scout = "meta-llama/llama-4-scout-17b-16e-instruct" // Groq默认模型
	ModelLlama33     = "llama-3.3-70b-versatile"
	ModelGPT4oMini   = "gpt-4o-mini" // OpenAI默认模型
)
