package services

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("session not found")

// 索引构建错误码
const (
	ErrCodeEmbedFailed    = 2001 // 片段嵌入失败
	ErrCodeIndexFailed    = 2002 // 向量索引构建失败
	ErrCodeBuildCancelled = 2003 // 构建被新的上传取消
	ErrCodeBuildPanic     = 2004 // 构建过程异常
)

// 检索错误码
const (
	ErrCodeNoWorkbook     = 2101 // 会话尚未上传工作簿
	ErrCodeEmptyIndex     = 2102 // 索引中没有片段
	ErrCodeEmptyQuery     = 2103 // 查询为空
	ErrCodeQueryEmbedding = 2104 // 查询嵌入失败
	ErrCodeSearchFailed   = 2105 // 检索失败
)

// BuildError 嵌入或索引构建失败，本次上传作废
type BuildError struct {
	Code    int
	Message string
	Err     error
}

// Error 实现error接口
func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index build error (code=%d): %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("index build error (code=%d): %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *BuildError) Unwrap() error {
	return e.Err
}

// NewBuildError 创建构建错误
func NewBuildError(code int, message string, err error) *BuildError {
	return &BuildError{Code: code, Message: message, Err: err}
}

// RetrievalError 索引未就绪或为空时的检索失败
type RetrievalError struct {
	Code    int
	Message string
	Err     error
}

// Error 实现error接口
func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retrieval error (code=%d): %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("retrieval error (code=%d): %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewRetrievalError 创建检索错误
func NewRetrievalError(code int, message string, err error) *RetrievalError {
	return &RetrievalError{Code: code, Message: message, Err: err}
}

// IsRetrievalError 判断是否为指定码的检索错误，code为0时匹配任意码
func IsRetrievalError(err error, code int) bool {
	var re *RetrievalError
	return errors.As(err, &re) && (code == 0 || re.Code == code)
}

// IsBuildError 判断是否为构建错误
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}
