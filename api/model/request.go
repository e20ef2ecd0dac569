package model

import "mime/multipart"

// SessionURI 路径中的会话ID
type SessionURI struct {
	ID string `uri:"id" binding:"required"` // 会话ID
}

// WorkbookUploadRequest 工作簿上传请求
type WorkbookUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"` // 上传的xlsx文件
}

// AskRequest 问答请求
type AskRequest struct {
	Question string `json:"question" binding:"required"` // 问题内容
}

// DashboardRequest 仪表盘请求
type DashboardRequest struct {
	Query   string `json:"query" binding:"required"` // 仪表盘需求描述
	Execute bool   `json:"execute"`                  // 是否运行生成的图表代码
}

// HistoryRequest 历史查询参数
type HistoryRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// GetLimit 获取条数，默认为20
func (r *HistoryRequest) GetLimit() int {
	if r.Limit <= 0 {
		return 20
	}
	return r.Limit
}
