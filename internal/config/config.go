// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Embedding EmbeddingConfig
	Drive     DriveConfig
	Storage   StorageConfig
	Match     MatchConfig
	Web       WebConfig
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 512 (buffalo_l)
}

type DriveConfig struct {
	CredentialsFile string // service account JSON key file
	RootFolderID    string // Drive folder holding the event photo folders
}

type StorageConfig struct {
	UploadDir string // where scanned/downloaded candidate images live
	OutputDir string // match results, exports and the thumbnail cache
}

type MatchConfig struct {
	Workers int // worker pool size for match runs
}

type WebConfig struct {
	AllowedOrigins []string // CORS origins allowed beyond localhost
}

// CacheDir returns the thumbnail cache directory inside the output dir.
func (c *StorageConfig) CacheDir() string {
	return filepath.Join(c.OutputDir, "thumbnails")
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable with a default.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func Load() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Drive: DriveConfig{
			CredentialsFile: os.Getenv("DRIVE_SERVICE_ACCOUNT_FILE"),
			RootFolderID:    os.Getenv("DRIVE_ROOT_FOLDER_ID"),
		},
		Storage: StorageConfig{
			UploadDir: envString("UPLOAD_DIR", "uploads"),
			OutputDir: envString("OUTPUT_DIR", "output"),
		},
		Match: MatchConfig{
			Workers: envInt("MATCH_WORKERS", 0),
		},
		Web: WebConfig{
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}
