package storage

import (
	"context"
	"errors"
	"fmt"

	"hr-access/backend/config"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("文件不存在")

// Storage 文件存储接口（抓拍图片、员工照片）
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// New 按配置创建存储实现
func New(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Prefix)
	case "local", "":
		return NewLocalStorage(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", cfg.Driver)
	}
}
