package model

import (
	"time"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Details string      `json:"details,omitempty"`  // 错误详情
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// SessionCreatedResponse 创建会话响应
type SessionCreatedResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionDeleteResponse 删除会话响应
type SessionDeleteResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

// HistoryItem 历史查询条目
type HistoryItem struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Question   string    `json:"question,omitempty"`
	Answer     string    `json:"answer,omitempty"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	Generation uint64    `json:"generation"`
	Passages   int       `json:"passages"`
	Cached     bool      `json:"cached"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryResponse 会话历史响应
type HistoryResponse struct {
	SessionID string        `json:"session_id"`
	Total     int           `json:"total"`
	Queries   []HistoryItem `json:"queries"`
}

// ConvertToHistory 将查询记录转换为历史条目
func ConvertToHistory(queries []*models.Query) []HistoryItem {
	items := make([]HistoryItem, len(queries))
	for i, q := range queries {
		items[i] = HistoryItem{
			ID:         q.ID,
			Mode:       string(q.Mode),
			Question:   q.Question,
			Answer:     q.Answer,
			Diagnostic: q.Diagnostic,
			Generation: q.Generation,
			Passages:   q.Passages,
			Cached:     q.Cached,
			LatencyMs:  q.LatencyMs,
			CreatedAt:  q.CreatedAt,
		}
	}
	return items
}
