package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/matcher"
	"github.com/kozaktomas/face-finder/internal/results"
)

// ExportHandler handles exporting matched images to a folder, a zip archive
// or Google Drive.
type ExportHandler struct {
	config   *config.Config
	store    *results.Store
	uploader results.Uploader
}

// NewExportHandler creates a new export handler. The uploader may be nil when
// no Drive credentials are configured.
func NewExportHandler(cfg *config.Config, store *results.Store, up results.Uploader) *ExportHandler {
	return &ExportHandler{
		config:   cfg,
		store:    store,
		uploader: up,
	}
}

// loadMatches loads the stored result set and filters it to matches, writing
// an error response and returning nil when there is nothing to export.
func (h *ExportHandler) loadMatches(w http.ResponseWriter) []matcher.MatchRecord {
	set, err := h.store.Load()
	if err != nil {
		if errors.Is(err, results.ErrNoResults) {
			respondError(w, http.StatusNotFound, "no results available")
			return nil
		}
		log.Printf("Loading results failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load results")
		return nil
	}

	matches := results.Matches(set)
	if len(matches) == 0 {
		respondError(w, http.StatusNotFound, "no matched images to export")
		return nil
	}
	return matches
}

// ExportFolderRequest represents a folder export request.
type ExportFolderRequest struct {
	DestFolder string `json:"dest_folder"`
}

// Folder copies all matched images into a destination folder.
func (h *ExportHandler) Folder(w http.ResponseWriter, r *http.Request) {
	var req ExportFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	dest := req.DestFolder
	if dest == "" {
		dest = filepath.Join(h.config.Storage.OutputDir, "matched")
	}

	matches := h.loadMatches(w)
	if matches == nil {
		return
	}

	exported, err := results.ExportToFolder(matches, dest)
	if err != nil {
		log.Printf("Folder export to %s failed: %v", sanitizeForLog(dest), err)
		respondError(w, http.StatusInternalServerError, "export failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"dest_folder": dest,
		"exported":    len(exported),
		"files":       exported,
	})
}

// Zip streams all matched images as a zip archive.
func (h *ExportHandler) Zip(w http.ResponseWriter, r *http.Request) {
	matches := h.loadMatches(w)
	if matches == nil {
		return
	}

	name := fmt.Sprintf("matches-%s.zip", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if _, err := results.ExportToArchive(matches, w); err != nil {
		// Headers are already sent, all we can do is log.
		log.Printf("Zip export failed: %v", err)
	}
}

// ExportDriveRequest represents a Drive export request.
type ExportDriveRequest struct {
	FolderName string `json:"folder_name"`
}

// Drive uploads all matched images into a new Google Drive folder.
func (h *ExportHandler) Drive(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		respondError(w, http.StatusServiceUnavailable, "google drive is not configured")
		return
	}

	var req ExportDriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	name := req.FolderName
	if name == "" {
		name = fmt.Sprintf("matches-%s", time.Now().Format("2006-01-02"))
	}

	matches := h.loadMatches(w)
	if matches == nil {
		return
	}

	export, err := results.ExportToRemote(r.Context(), matches, results.SanitizeName(name), h.uploader)
	if err != nil {
		log.Printf("Drive export failed: %v", err)
		respondError(w, http.StatusBadGateway, "drive export failed")
		return
	}

	respondJSON(w, http.StatusOK, export)
}
