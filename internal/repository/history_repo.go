package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 列表查询的最大条数
const maxListLimit = 200

// historyRepository 历史仓储实现
type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 使用指定的数据库连接创建历史仓储
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// CreateUpload 创建上传记录
func (r *historyRepository) CreateUpload(ctx context.Context, upload *models.Upload) error {
	if upload.SessionID == "" {
		return errors.New("upload session ID cannot be empty")
	}
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if upload.Status == "" {
		upload.Status = models.UploadStatusIndexing
	}

	// 只取代更早的代，迟到的旧记录直接标记为已取代
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Upload{}).
			Where("session_id = ? AND generation < ? AND status IN ?", upload.SessionID, upload.Generation,
				[]models.UploadStatus{models.UploadStatusIndexing, models.UploadStatusReady}).
			Updates(map[string]interface{}{
				"status":     models.UploadStatusSuperseded,
				"updated_at": time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to supersede previous uploads: %w", err)
		}

		var newer int64
		err = tx.Model(&models.Upload{}).
			Where("session_id = ? AND generation > ?", upload.SessionID, upload.Generation).
			Count(&newer).Error
		if err != nil {
			return fmt.Errorf("failed to check newer uploads: %w", err)
		}
		if newer > 0 {
			upload.Status = models.UploadStatusSuperseded
		}
		return tx.Create(upload).Error
	})
}

// UpdateUploadStatus 更新索引状态
func (r *historyRepository) UpdateUploadStatus(ctx context.Context, id string, status models.UploadStatus, passages int, errMsg string) error {
	switch status {
	case models.UploadStatusIndexing, models.UploadStatusReady, models.UploadStatusFailed, models.UploadStatusSuperseded:
	default:
		return models.ErrInvalidUploadStatus
	}

	updates := map[string]interface{}{
		"status":        status,
		"passage_count": passages,
		"error":         errMsg,
		"updated_at":    time.Now(),
	}
	if status == models.UploadStatusReady {
		updates["indexed_at"] = time.Now()
	}

	// 已取代的记录不再回到其他状态
	result := r.db.WithContext(ctx).Model(&models.Upload{}).
		Where("id = ? AND status <> ?", id, models.UploadStatusSuperseded).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetUpload(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// GetUpload 根据ID获取上传记录
func (r *historyRepository) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	var upload models.Upload
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrUploadNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// LatestUpload 会话最近一次上传
func (r *historyRepository) LatestUpload(ctx context.Context, sessionID string) (*models.Upload, error) {
	var upload models.Upload
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("generation DESC").
		First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: session %s", models.ErrUploadNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// RecordQuery 保存查询记录
func (r *historyRepository) RecordQuery(ctx context.Context, query *models.Query) error {
	if query.SessionID == "" {
		return errors.New("query session ID cannot be empty")
	}
	if query.ID == "" {
		query.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(query).Error
}

// ListQueries 按时间倒序列出会话的查询
func (r *historyRepository) ListQueries(ctx context.Context, sessionID string, limit int) ([]*models.Query, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	var queries []*models.Query
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&queries).Error
	if err != nil {
		return nil, err
	}
	return queries, nil
}

// CountQueries 统计会话的查询数
func (r *historyRepository) CountQueries(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Query{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}
