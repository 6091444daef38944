package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore 把 blob 落到本地目录，URL 指向 /uploads 静态路由。
// 用于未配置对象存储的开发环境。
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func safeName(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}

func (s *LocalStore) Upload(_ context.Context, container, name string, data []byte, _ string) (string, error) {
	dir := filepath.Join(s.dir, container)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	file := safeName(name)
	if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
		return "", err
	}
	return "/uploads/" + container + "/" + file, nil
}

func (s *LocalStore) Delete(_ context.Context, container, name string) error {
	path := filepath.Join(s.dir, container, safeName(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
