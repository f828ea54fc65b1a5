package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/drive"
	"github.com/kozaktomas/face-finder/internal/imaging"
	"github.com/kozaktomas/face-finder/internal/results"
)

// ScanHandler handles candidate image discovery, both local folders and
// Google Drive downloads.
type ScanHandler struct {
	config *config.Config
	drive  drive.Lister
}

// NewScanHandler creates a new scan handler. The drive lister may be nil when
// no Drive credentials are configured.
func NewScanHandler(cfg *config.Config, dc drive.Lister) *ScanHandler {
	return &ScanHandler{
		config: cfg,
		drive:  dc,
	}
}

// ScanRequest represents a local folder scan request.
type ScanRequest struct {
	Folder string `json:"folder"`
}

// ScanResponse lists the image files found in a folder tree.
type ScanResponse struct {
	Folder string   `json:"folder"`
	Count  int      `json:"count"`
	Paths  []string `json:"paths"`
}

// Scan walks a local folder recursively and returns all image file paths,
// sorted.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Folder == "" {
		respondError(w, http.StatusBadRequest, "folder is required")
		return
	}

	if info, err := os.Stat(req.Folder); err != nil || !info.IsDir() {
		respondError(w, http.StatusNotFound, "folder not found")
		return
	}

	paths := imaging.ScanFolder(req.Folder)
	respondJSON(w, http.StatusOK, ScanResponse{
		Folder: req.Folder,
		Count:  len(paths),
		Paths:  paths,
	})
}

// DriveFolderRequest represents a Drive folder download request. Either the
// folder ID or a folder name to resolve under the configured root.
type DriveFolderRequest struct {
	FolderID   string `json:"folder_id"`
	FolderName string `json:"folder_name"`
}

// DriveFolder downloads a Google Drive folder tree into the upload directory
// and returns the local paths of the downloaded images.
func (h *ScanHandler) DriveFolder(w http.ResponseWriter, r *http.Request) {
	if h.drive == nil {
		respondError(w, http.StatusServiceUnavailable, "google drive is not configured")
		return
	}

	var req DriveFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.FolderID == "" && req.FolderName == "" {
		respondError(w, http.StatusBadRequest, "folder_id or folder_name is required")
		return
	}

	folderID := req.FolderID
	localName := folderID
	if folderID == "" {
		id, err := drive.FindFolder(r.Context(), h.drive, h.config.Drive.RootFolderID, req.FolderName)
		if err != nil {
			if errors.Is(err, drive.ErrFolderNotFound) {
				respondError(w, http.StatusNotFound, "drive folder not found")
				return
			}
			log.Printf("Drive folder lookup for %q failed: %v", sanitizeForLog(req.FolderName), err)
			respondError(w, http.StatusBadGateway, "drive folder lookup failed")
			return
		}
		folderID = id
		localName = results.SanitizeName(req.FolderName)
	}

	localDir := filepath.Join(h.config.Storage.UploadDir, localName)
	paths, err := drive.DownloadFolder(r.Context(), h.drive, folderID, localDir)
	if err != nil {
		log.Printf("Drive download of %s failed: %v", sanitizeForLog(folderID), err)
		respondError(w, http.StatusBadGateway, "drive download failed")
		return
	}

	respondJSON(w, http.StatusOK, ScanResponse{
		Folder: localDir,
		Count:  len(paths),
		Paths:  paths,
	})
}
