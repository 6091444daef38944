package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "4000" {
		t.Errorf("Port = %s, want 4000", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Errorf("Env = %s, want dev", cfg.Env)
	}
	if cfg.BlobBackend != "local" {
		t.Errorf("BlobBackend = %s, want local", cfg.BlobBackend)
	}
	if cfg.ChatContainer != "chat-files" {
		t.Errorf("ChatContainer = %s, want chat-files", cfg.ChatContainer)
	}
	if cfg.MaxUploadBytes != 15<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 15<<20)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("BLOB_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "attachments")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.BlobBackend != "s3" || cfg.S3Bucket != "attachments" {
		t.Errorf("blob config = %s/%s, want s3/attachments", cfg.BlobBackend, cfg.S3Bucket)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Errorf("MaxUploadBytes = %d, want 1048576", cfg.MaxUploadBytes)
	}
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "lots")
	if cfg := Load(); cfg.MaxUploadBytes != 15<<20 {
		t.Errorf("MaxUploadBytes = %d, want default on parse failure", cfg.MaxUploadBytes)
	}
	t.Setenv("MAX_UPLOAD_BYTES", "-5")
	if cfg := Load(); cfg.MaxUploadBytes != 15<<20 {
		t.Errorf("MaxUploadBytes = %d, want default on non-positive value", cfg.MaxUploadBytes)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:        "4000",
		DatabaseDSN: "host=db",
		JWTSecret:   "real-secret",
		Env:         "prod",
		BlobBackend: "local",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Port = "" }, "port"},
		{"missing dsn", func(c *Config) { c.DatabaseDSN = "" }, "dsn"},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "secret"},
		{"default secret outside dev", func(c *Config) { c.JWTSecret = "dev-secret-change-me" }, "default jwt secret"},
		{"default secret in dev ok", func(c *Config) { c.JWTSecret = "dev-secret-change-me"; c.Env = "dev" }, ""},
		{"bad blob backend", func(c *Config) { c.BlobBackend = "azure" }, "blob backend"},
		{"s3 without bucket", func(c *Config) { c.BlobBackend = "s3" }, "bucket"},
		{"s3 with bucket ok", func(c *Config) { c.BlobBackend = "s3"; c.S3Bucket = "b" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
