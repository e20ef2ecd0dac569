package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QueryMode 查询类型
type QueryMode string

const (
	QueryModeSummary   QueryMode = "summary"
	QueryModeAsk       QueryMode = "ask"
	QueryModeDashboard QueryMode = "dashboard"
)

// Query 一次查询及其回答
type Query struct {
	ID         string         `gorm:"primaryKey;size:36"`
	SessionID  string         `gorm:"size:36;not null;index:idx_query_session_time"`
	UploadID   string         `gorm:"size:36;index"`
	Generation uint64         `gorm:"not null"`
	Mode       QueryMode      `gorm:"size:20;not null"`
	Question   string         `gorm:"type:text"`
	Answer     string         `gorm:"type:text"`
	Diagnostic string         `gorm:"type:text"` // 补全失败时展示给用户的文本
	Passages   int            `gorm:"not null;default:0"`
	Warnings   datatypes.JSON `gorm:"type:json"`
	Cached     bool           `gorm:"not null;default:false"`
	LatencyMs  int64          `gorm:"not null;default:0"`
	CreatedAt  time.Time      `gorm:"not null;index:idx_query_session_time"`
}

// BeforeCreate 创建记录前设置时间
func (q *Query) BeforeCreate(tx *gorm.DB) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	return nil
}

// TableName 表名
func (Query) TableName() string {
	return "queries"
}
