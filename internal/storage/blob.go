package storage

import "context"

// Store 是附件 blob 存储的协作方接口：按容器+对象名上传，返回可访问的 URL。
type Store interface {
	Upload(ctx context.Context, container, name string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, container, name string) error
}
