package handlers

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/constants"
	"github.com/kozaktomas/face-finder/internal/imaging"
)

// UploadHandler handles image uploads.
type UploadHandler struct {
	config *config.Config
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(cfg *config.Config) *UploadHandler {
	return &UploadHandler{config: cfg}
}

// saveUploadedFile saves one multipart file into the upload directory and
// returns its path.
func saveUploadedFile(fileHeader *multipart.FileHeader, dir string) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", fileHeader.Filename, err)
	}
	defer file.Close()

	safeName := filepath.Base(fileHeader.Filename)
	path := filepath.Join(dir, safeName)
	out, err := os.Create(path) //nolint:gosec // filename sanitized via filepath.Base
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", safeName, err)
	}

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return "", fmt.Errorf("writing %s: %w", safeName, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", safeName, err)
	}
	return path, nil
}

// Upload saves uploaded image files into the upload directory and returns
// their local paths.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	if err := os.MkdirAll(h.config.Storage.UploadDir, 0o750); err != nil {
		log.Printf("Creating upload directory failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create upload directory")
		return
	}

	var paths []string
	for _, fileHeader := range files {
		if !imaging.IsImagePath(fileHeader.Filename) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type: %s", sanitizeForLog(fileHeader.Filename)))
			return
		}

		path, err := saveUploadedFile(fileHeader, h.config.Storage.UploadDir)
		if err != nil {
			log.Printf("Upload failed: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to save uploaded file")
			return
		}
		paths = append(paths, path)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(paths),
		"paths": paths,
	})
}
