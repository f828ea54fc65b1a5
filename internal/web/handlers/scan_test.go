package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/drive"
)

func TestScan_InvalidBody(t *testing.T) {
	h := NewScanHandler(&config.Config{}, nil)

	recorder := httptest.NewRecorder()
	h.Scan(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/images/scan", nil))

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestScan_FolderNotFound(t *testing.T) {
	h := NewScanHandler(&config.Config{}, nil)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/scan",
		jsonBody(t, ScanRequest{Folder: "/nonexistent"}))
	h.Scan(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestScan_ListsImages(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, dir, "b.jpg")
	writeTestJPEG(t, dir, "a.jpg")

	h := NewScanHandler(&config.Config{}, nil)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/scan",
		jsonBody(t, ScanRequest{Folder: dir}))
	h.Scan(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp ScanResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 2 || len(resp.Paths) != 2 {
		t.Errorf("expected 2 images, got %+v", resp)
	}
	if resp.Paths[0] > resp.Paths[1] {
		t.Errorf("expected sorted paths, got %v", resp.Paths)
	}
}

func TestDriveFolder_NotConfigured(t *testing.T) {
	h := NewScanHandler(&config.Config{}, nil)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drive/folders",
		jsonBody(t, DriveFolderRequest{FolderName: "holiday"}))
	h.DriveFolder(recorder, req)

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
}

func TestDriveFolder_UnknownNameIsNotFound(t *testing.T) {
	cfg := &config.Config{}
	cfg.Drive.RootFolderID = "root"
	cfg.Storage.UploadDir = t.TempDir()

	lister := &fakeDriveLister{
		tree: map[string][]drive.Item{
			"root": {{ID: "f1", Name: "Summer Camp", MimeType: "application/vnd.google-apps.folder"}},
		},
	}
	h := NewScanHandler(cfg, lister)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drive/folders",
		jsonBody(t, DriveFolderRequest{FolderName: "no such event"}))
	h.DriveFolder(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)

	// The missing folder must not leave an empty directory behind either.
	entries, err := os.ReadDir(cfg.Storage.UploadDir)
	if err != nil {
		t.Fatalf("reading upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no local directories, found %d", len(entries))
	}
}

func TestDriveFolder_DownloadsByName(t *testing.T) {
	cfg := &config.Config{}
	cfg.Drive.RootFolderID = "root"
	cfg.Storage.UploadDir = t.TempDir()

	lister := &fakeDriveLister{
		tree: map[string][]drive.Item{
			"root": {{ID: "f1", Name: "Summer Camp", MimeType: "application/vnd.google-apps.folder"}},
			"f1":   {{ID: "img1", Name: "a.jpg", MimeType: "image/jpeg"}},
		},
		contents: map[string]string{"img1": "jpeg-bytes"},
	}
	h := NewScanHandler(cfg, lister)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drive/folders",
		jsonBody(t, DriveFolderRequest{FolderName: "Summer Camp"}))
	h.DriveFolder(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp ScanResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 1 || len(resp.Paths) != 1 {
		t.Fatalf("expected 1 downloaded image, got %+v", resp)
	}
	if _, err := os.Stat(resp.Paths[0]); err != nil {
		t.Errorf("expected downloaded file on disk: %v", err)
	}
}
