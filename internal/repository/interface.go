package repository

import (
	"context"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/models"
)

// HistoryRepository 上传与查询历史仓储接口
type HistoryRepository interface {
	// CreateUpload 创建上传记录，同会话中仍在使用的旧记录标记为已取代
	CreateUpload(ctx context.Context, upload *models.Upload) error

	// UpdateUploadStatus 更新索引状态
	UpdateUploadStatus(ctx context.Context, id string, status models.UploadStatus, passages int, errMsg string) error

	// GetUpload 根据ID获取上传记录
	GetUpload(ctx context.Context, id string) (*models.Upload, error)

	// LatestUpload 会话最近一次上传
	LatestUpload(ctx context.Context, sessionID string) (*models.Upload, error)

	// RecordQuery 保存查询记录
	RecordQuery(ctx context.Context, query *models.Query) error

	// ListQueries 按时间倒序列出会话的查询
	ListQueries(ctx context.Context, sessionID string, limit int) ([]*models.Query, error)

	// CountQueries 统计会话的查询数
	CountQueries(ctx context.Context, sessionID string) (int64, error)
}
