package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/kozaktomas/face-finder/internal/cache"
	"github.com/kozaktomas/face-finder/internal/constants"
	"github.com/kozaktomas/face-finder/internal/imaging"
)

// GalleryHandler handles gallery listing and image serving.
type GalleryHandler struct {
	cache *cache.Cache
}

// NewGalleryHandler creates a new gallery handler.
func NewGalleryHandler(c *cache.Cache) *GalleryHandler {
	return &GalleryHandler{cache: c}
}

// GalleryRequest represents a gallery page request.
type GalleryRequest struct {
	Folder string `json:"folder"`
	Page   int    `json:"page"`
}

// GalleryItem is one image in a gallery page.
type GalleryItem struct {
	Path     string `json:"path"`
	ThumbURL string `json:"thumb_url"`
}

// GalleryResponse is one page of a folder's images.
type GalleryResponse struct {
	Folder     string        `json:"folder"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
	Items      []GalleryItem `json:"items"`
}

// List returns one page of images from a local folder, newest-neutral,
// sorted by path.
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	var req GalleryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" {
		respondError(w, http.StatusBadRequest, "folder is required")
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}

	if info, err := os.Stat(req.Folder); err != nil || !info.IsDir() {
		respondError(w, http.StatusNotFound, "folder not found")
		return
	}

	paths := imaging.ScanFolder(req.Folder)
	total := len(paths)
	totalPages := (total + constants.GalleryPageSize - 1) / constants.GalleryPageSize

	start := (req.Page - 1) * constants.GalleryPageSize
	if start > total {
		start = total
	}
	end := start + constants.GalleryPageSize
	if end > total {
		end = total
	}

	items := make([]GalleryItem, 0, end-start)
	for _, p := range paths[start:end] {
		items = append(items, GalleryItem{
			Path:     p,
			ThumbURL: fmt.Sprintf("/api/v1/image?path=%s&size=%d", url.QueryEscape(p), constants.ThumbnailSize),
		})
	}

	respondJSON(w, http.StatusOK, GalleryResponse{
		Folder:     req.Folder,
		Page:       req.Page,
		PageSize:   constants.GalleryPageSize,
		Total:      total,
		TotalPages: totalPages,
		Items:      items,
	})
}

// Image serves a resized JPEG rendition of a local image, backed by the
// two-tier thumbnail cache.
func (h *GalleryHandler) Image(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	if !imaging.IsImagePath(path) {
		respondError(w, http.StatusBadRequest, "unsupported image type")
		return
	}

	size := constants.DefaultImageSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid size")
			return
		}
		size = parsed
	}

	data := h.cache.Get(path, size)
	if data == nil {
		img, ok := imaging.Load(path)
		if !ok {
			respondError(w, http.StatusNotFound, "image not found")
			return
		}

		var err error
		data, err = imaging.EncodeJPEG(imaging.ResizeBounded(img, size), constants.CacheJPEGQuality)
		if err != nil {
			log.Printf("Encoding %s failed: %v", sanitizeForLog(path), err)
			respondError(w, http.StatusInternalServerError, "failed to encode image")
			return
		}
		h.cache.Put(path, size, data)
	}

	sum := sha256.Sum256(data)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("ETag", etag)
	w.Write(data)
}
