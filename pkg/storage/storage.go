package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// FileInfo 归档对象的元数据
type FileInfo struct {
	Key         string    // 对象键，使用/分隔
	Size        int64     // 大小（字节）
	ContentType string    // MIME类型
	ModifiedAt  time.Time // 最后修改时间
}

// Storage 上传工作簿的归档存储
// 对象以键寻址，键由调用方生成，例如 sessions/<session>/<upload>.xlsx
type Storage interface {
	// Save 写入对象，size未知时传-1
	Save(ctx context.Context, key string, reader io.Reader, size int64) (FileInfo, error)

	// Open 读取对象内容
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除对象，不存在时不报错
	Delete(ctx context.Context, key string) error

	// List 列出前缀下的对象
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type  string // local 或 minio
	Local LocalConfig
	Minio MinioConfig
}

// New 根据配置创建存储
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.Local)
	case "minio":
		return NewMinioStorage(ctx, cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// WorkbookKey 会话工作簿的对象键
func WorkbookKey(sessionID, uploadID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".xlsx"
	}
	return path.Join("sessions", sessionID, uploadID+ext)
}

// cleanKey 规范化对象键并拒绝越出根目录的键
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return cleaned, nil
}

// contentType 根据扩展名判断MIME类型
func contentType(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xlsm":
		return "application/vnd.ms-excel.sheet.macroEnabled.12"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
