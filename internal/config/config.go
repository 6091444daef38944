package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseDSN string
	JWTSecret   string
	Env         string
	CORSOrigin  string

	// blob 存储：backend 为 local 或 s3。
	BlobBackend   string
	BlobLocalDir  string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	ChatContainer string

	MaxUploadBytes int64
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt64(key string, def int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// Load 读取环境变量（本地开发时先尝试 .env），缺省值面向 dev 环境。
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:           getenv("APP_PORT", "4000"),
		DatabaseDSN:    getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=saashrm port=5432 sslmode=disable TimeZone=UTC"),
		JWTSecret:      getenv("JWT_SECRET", "dev-secret-change-me"),
		Env:            getenv("APP_ENV", "dev"),
		CORSOrigin:     getenv("CORS_ORIGIN", "http://localhost:5173"),
		BlobBackend:    getenv("BLOB_BACKEND", "local"),
		BlobLocalDir:   getenv("BLOB_LOCAL_DIR", "./uploads"),
		S3Bucket:       getenv("S3_BUCKET", ""),
		S3Region:       getenv("S3_REGION", "us-east-1"),
		S3Endpoint:     getenv("S3_ENDPOINT", ""),
		S3AccessKey:    getenv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:    getenv("S3_SECRET_ACCESS_KEY", ""),
		ChatContainer:  getenv("CHAT_CONTAINER", "chat-files"),
		MaxUploadBytes: getenvInt64("MAX_UPLOAD_BYTES", 15<<20),
	}
}

// Validate 拦截明显不可用的配置，特别是生产环境沿用默认密钥。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("config: database dsn is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwt secret is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == "dev-secret-change-me" {
		return errors.New("config: default jwt secret is not allowed outside dev")
	}
	if cfg.BlobBackend != "local" && cfg.BlobBackend != "s3" {
		return errors.New("config: blob backend must be local or s3")
	}
	if cfg.BlobBackend == "s3" && cfg.S3Bucket == "" {
		return errors.New("config: s3 bucket is required for s3 blob backend")
	}
	return nil
}
