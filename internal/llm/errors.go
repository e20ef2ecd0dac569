package llm

import (
	"errors"
	"fmt"
)

// LLMError 补全服务调用错误
type LLMError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey     = 1001 // 无效的API密钥
	ErrCodeInvalidRequest    = 1002 // 无效的请求
	ErrCodeNetworkError      = 1003 // 网络连接错误
	ErrCodeRateLimited       = 1004 // 请求频率超限
	ErrCodeServerError       = 1005 // 服务器错误
	ErrCodeTimeout           = 1006 // 请求超时
	ErrCodeEmptyPrompt       = 1007 // 提示词为空
	ErrCodeContentFilter     = 1008 // 内容安全过滤
	ErrCodeModelOverload     = 1009 // 模型过载
	ErrCodeContextTooLong    = 1010 // 上下文过长
	ErrCodeMalformedResponse = 1011 // 响应格式无法识别
	ErrCodeAPIError          = 1012 // 服务端返回error对象
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey     = "invalid API key"
	ErrMsgInvalidRequest    = "invalid request parameters"
	ErrMsgRateLimited       = "too many requests, rate limit exceeded"
	ErrMsgServerError       = "server error occurred"
	ErrMsgTimeout           = "request timed out"
	ErrMsgEmptyPrompt       = "prompt cannot be empty"
	ErrMsgNetworkError      = "network connection error"
	ErrMsgMalformedResponse = "unexpected API response format"
	ErrMsgContextTooLong    = "context length exceeds model's maximum"
)

// NewLLMError 创建新的大模型错误
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装普通错误为LLM错误
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}

	// 如果已经是LLMError类型，则直接返回
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr
	}

	return LLMError{
		Code:    code,
		Message: err.Error(),
	}
}

// IsTimeout 判断是否为超时错误
func IsTimeout(err error) bool {
	var llmErr LLMError
	return errors.As(err, &llmErr) && llmErr.Code == ErrCodeTimeout
}

// Diagnostic 把补全失败转换为可以直接展示给用户的文本
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}

	var llmErr LLMError
	if !errors.As(err, &llmErr) {
		return fmt.Sprintf("❌ Failed to call completion API: %v", err)
	}

	switch llmErr.Code {
	case ErrCodeAPIError, ErrCodeRateLimited, ErrCodeInvalidAPIKey, ErrCodeServerError,
		ErrCodeContextTooLong, ErrCodeModelOverload, ErrCodeContentFilter:
		return fmt.Sprintf("⚠️ API Error: %s", llmErr.Message)
	case ErrCodeMalformedResponse:
		return "⚠️ Unexpected API response format."
	case ErrCodeTimeout:
		return fmt.Sprintf("❌ Completion request timed out: %s", llmErr.Message)
	default:
		return fmt.Sprintf("❌ Failed to call completion API: %s", llmErr.Message)
	}
}
