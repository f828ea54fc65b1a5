package config

import (
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"EMBEDDING_URL", "EMBEDDING_DIM",
		"DRIVE_SERVICE_ACCOUNT_FILE", "DRIVE_ROOT_FOLDER_ID",
		"UPLOAD_DIR", "OUTPUT_DIR", "MATCH_WORKERS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Embedding.Dim != 512 {
		t.Errorf("expected default embedding dim 512, got %d", cfg.Embedding.Dim)
	}
	if cfg.Storage.UploadDir != "uploads" {
		t.Errorf("expected default upload dir, got %q", cfg.Storage.UploadDir)
	}
	if cfg.Storage.OutputDir != "output" {
		t.Errorf("expected default output dir, got %q", cfg.Storage.OutputDir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EMBEDDING_URL", "http://faces:8000")
	t.Setenv("EMBEDDING_DIM", "128")
	t.Setenv("UPLOAD_DIR", "/data/uploads")
	t.Setenv("OUTPUT_DIR", "/data/output")
	t.Setenv("MATCH_WORKERS", "8")

	cfg := Load()

	if cfg.Embedding.URL != "http://faces:8000" {
		t.Errorf("unexpected embedding URL: %q", cfg.Embedding.URL)
	}
	if cfg.Embedding.Dim != 128 {
		t.Errorf("unexpected embedding dim: %d", cfg.Embedding.Dim)
	}
	if cfg.Match.Workers != 8 {
		t.Errorf("unexpected worker count: %d", cfg.Match.Workers)
	}
}

func TestEnvInt_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not a number", "abc"},
		{"negative", "-3"},
		{"zero", "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tc.value)
			if got := envInt("TEST_ENV_INT", 42); got != 42 {
				t.Errorf("expected default 42, got %d", got)
			}
		})
	}
}

func TestCacheDir(t *testing.T) {
	cfg := StorageConfig{OutputDir: "/data/output"}

	want := filepath.Join("/data/output", "thumbnails")
	if got := cfg.CacheDir(); got != want {
		t.Errorf("CacheDir() = %q, want %q", got, want)
	}
}

func TestEnvList_AllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")

	cfg := Load()
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Web.AllowedOrigins) != len(want) {
		t.Fatalf("expected %d origins, got %v", len(want), cfg.Web.AllowedOrigins)
	}
	for i, o := range want {
		if cfg.Web.AllowedOrigins[i] != o {
			t.Errorf("origin %d: expected %q, got %q", i, o, cfg.Web.AllowedOrigins[i])
		}
	}
}

func TestEnvList_Unset(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "")

	if got := Load().Web.AllowedOrigins; len(got) != 0 {
		t.Errorf("expected no origins, got %v", got)
	}
}
