package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UploadStatus 上传工作簿的索引状态
type UploadStatus string

const (
	// UploadStatusIndexing 正在构建索引
	UploadStatusIndexing UploadStatus = "indexing"
	// UploadStatusReady 索引可用
	UploadStatusReady UploadStatus = "ready"
	// UploadStatusFailed 索引构建失败
	UploadStatusFailed UploadStatus = "failed"
	// UploadStatusSuperseded 已被同一会话的新上传取代
	UploadStatusSuperseded UploadStatus = "superseded"
)

// Upload 一次工作簿上传的记录
type Upload struct {
	ID           string         `gorm:"primaryKey;size:36"`     // 上传ID
	SessionID    string         `gorm:"size:36;not null;index"` // 会话ID
	Generation   uint64         `gorm:"not null"`               // 会话内的索引代数
	FileName     string         `gorm:"not null"`               // 原始文件名
	FileSize     int64          `gorm:"not null"`               // 文件大小（字节）
	StorageKey   string         `gorm:"size:255"`               // 归档存储中的键
	Sheets       datatypes.JSON `gorm:"type:json"`              // 非空工作表名称
	TextLength   int            `gorm:"not null;default:0"`     // 规范化文本的字符数
	PassageCount int            `gorm:"not null;default:0"`     // 分块数量
	Status       UploadStatus   `gorm:"size:20;not null;index"` // 索引状态
	Error        string         `gorm:"type:text"`              // 失败原因
	UploadedAt   time.Time      `gorm:"not null;index"`         // 上传时间
	IndexedAt    *time.Time     `gorm:"index"`                  // 索引完成时间
	UpdatedAt    time.Time      `gorm:"not null"`               // 更新时间
}

// BeforeCreate 创建记录前设置时间
func (u *Upload) BeforeCreate(tx *gorm.DB) error {
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now()
	}
	u.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate 更新记录前刷新更新时间
func (u *Upload) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// TableName 表名
func (Upload) TableName() string {
	return "uploads"
}
