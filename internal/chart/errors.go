package chart

import "fmt"

// ExecutionError 生成的图表代码执行失败
type ExecutionError struct {
	Code    int    // 错误码
	Message string // 错误消息
	Output  string // 解释器输出（可能被截断）
}

// Error 实现error接口
func (e ExecutionError) Error() string {
	return fmt.Sprintf("chart execution error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeDisabled    = 4001 // 执行器未启用
	ErrCodeEmptyCode   = 4002 // 代码为空
	ErrCodeSetup       = 4003 // 准备执行环境失败
	ErrCodeTimeout     = 4004 // 执行超时
	ErrCodeRuntime     = 4005 // 代码运行失败
	ErrCodeInterpreter = 4006 // 解释器不可用
	ErrCodePanic       = 4007 // 执行器内部异常
)

func newExecutionError(code int, format string, args ...interface{}) ExecutionError {
	return ExecutionError{Code: code, Message: fmt.Sprintf(format, args...)}
}
