package models

import "errors"

var (
	// ErrUploadNotFound 上传记录不存在
	ErrUploadNotFound = errors.New("upload not found")

	// ErrInvalidUploadStatus 无效的上传状态
	ErrInvalidUploadStatus = errors.New("invalid upload status")
)
