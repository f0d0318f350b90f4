package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestConfig_Resolve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data/burrow"
	cfg.Resolve()

	if cfg.Archive.Path != filepath.Join("/data/burrow", "archives") {
		t.Errorf("archive path = %s", cfg.Archive.Path)
	}
	if cfg.StorePath() != filepath.Join("/data/burrow", "store.db") {
		t.Errorf("store path = %s", cfg.StorePath())
	}
}

func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad archive type", func(c *Config) { c.Archive.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Archive.Type = "s3"; c.Archive.S3.Bucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("data_dir: /data/burrow\nlog:\n  level: debug\narchive:\n  type: s3\n  s3:\n    bucket: burrow-archives\n    region: eu-west-1\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.DataDir != "/data/burrow" {
		t.Errorf("data_dir = %s", cfg.DataDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s", cfg.Log.Level)
	}
	if cfg.Archive.S3.Bucket != "burrow-archives" {
		t.Errorf("bucket = %s", cfg.Archive.S3.Bucket)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := []byte(`{"data_dir": "/tmp/b", "log": {"level": "warn"}}`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.DataDir != "/tmp/b" || cfg.Log.Level != "warn" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BURROW_DATA_DIR", "/env/data")
	t.Setenv("BURROW_LOG_LEVEL", "error")
	t.Setenv("BURROW_S3_BUCKET", "env-bucket")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.DataDir != "/env/data" {
		t.Errorf("data_dir = %s", cfg.DataDir)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log level = %s", cfg.Log.Level)
	}
	if cfg.Archive.S3.Bucket != "env-bucket" {
		t.Errorf("bucket = %s", cfg.Archive.S3.Bucket)
	}
}
